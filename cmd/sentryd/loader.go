// Copyright © 2026 Jonathan Whitaker <github@whitaker.io>.
//
// Use of this source code is governed by an MIT-style
// license that can be found in the LICENSE file.

package main

import (
	"bufio"
	"fmt"
	"io"
	"strings"

	"github.com/whitaker-io/sentrytx"
	"github.com/whitaker-io/sentrytx/parser"
	"github.com/whitaker-io/sentrytx/script"
)

// loadRules reads a `.rules` file line by line and feeds each `Rule`/
// `RuleExt` directive to parser.ParseRule/ParseRuleExt. The
// line-splitting/tokenizing front end lives here, in the host binary,
// keeping the parser package free of file-format concerns.
//
// Grammar: one directive per logical line; a trailing backslash continues
// the directive onto the next physical line (the common convention for
// long rule lines); `#` starts a comment that runs to end of line unless
// inside a double-quoted token; blank lines are ignored.
func loadRules(e *sentrytx.Engine, host *script.Host, r io.Reader) error {
	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 0, 64*1024), 1<<20)

	var pending strings.Builder
	lineNo := 0

	flush := func() error {
		line := pending.String()
		pending.Reset()
		return parseLine(e, host, line)
	}

	for sc.Scan() {
		lineNo++
		line := stripComment(sc.Text())
		trimmed := strings.TrimRight(line, " \t")
		if cont := strings.HasSuffix(trimmed, `\`); cont {
			pending.WriteString(strings.TrimSuffix(trimmed, `\`))
			pending.WriteByte(' ')
			continue
		}
		pending.WriteString(trimmed)
		if strings.TrimSpace(pending.String()) == "" {
			pending.Reset()
			continue
		}
		if err := flush(); err != nil {
			return fmt.Errorf("rules file line %d: %w", lineNo, err)
		}
	}
	if strings.TrimSpace(pending.String()) != "" {
		if err := flush(); err != nil {
			return fmt.Errorf("rules file line %d: %w", lineNo, err)
		}
	}
	return sc.Err()
}

// stripComment removes a trailing `# ...` comment, respecting double-quoted
// tokens so a `#` inside a quoted operator argument is not treated as a
// comment start.
func stripComment(line string) string {
	inQuotes := false
	for i, c := range line {
		switch c {
		case '"':
			inQuotes = !inQuotes
		case '#':
			if !inQuotes {
				return line[:i]
			}
		}
	}
	return line
}

func parseLine(e *sentrytx.Engine, host *script.Host, line string) error {
	fields, err := tokenize(line)
	if err != nil {
		return err
	}
	if len(fields) == 0 {
		return nil
	}

	switch strings.ToLower(fields[0]) {
	case "rule":
		if len(fields) < 3 {
			return fmt.Errorf("Rule directive needs at least <inputs> <operator>: %q", line)
		}
		_, err := parser.ParseRule(e, fields[1], fields[2], fields[3:])
		return err

	case "ruleext":
		if len(fields) < 2 {
			return fmt.Errorf("RuleExt directive needs a <scheme:uri>: %q", line)
		}
		if host == nil {
			return fmt.Errorf("RuleExt directive present but no script host configured")
		}
		_, err := parser.ParseRuleExt(e, host, fields[1], fields[2:])
		return err

	default:
		return fmt.Errorf("unrecognised directive %q", fields[0])
	}
}

// tokenize splits line on whitespace, honouring double-quoted tokens
// (quotes are stripped from the resulting field).
func tokenize(line string) ([]string, error) {
	var fields []string
	var cur strings.Builder
	inQuotes := false
	has := false

	flush := func() {
		if has {
			fields = append(fields, cur.String())
			cur.Reset()
			has = false
		}
	}

	for _, c := range line {
		switch {
		case c == '"':
			inQuotes = !inQuotes
			has = true
		case !inQuotes && (c == ' ' || c == '\t'):
			flush()
		default:
			cur.WriteRune(c)
			has = true
		}
	}
	if inQuotes {
		return nil, fmt.Errorf("unterminated quoted string in %q", line)
	}
	flush()
	return fields, nil
}
