// Copyright © 2026 Jonathan Whitaker <github@whitaker.io>.
//
// Use of this source code is governed by an MIT-style
// license that can be found in the LICENSE file.

// Package parser turns the already-tokenized arguments of a Rule or
// RuleExt directive into a compiled *sentrytx.Rule, registered against an
// Engine's operator and action registries. The line-splitting/tokenizing
// front end itself (quoted-string handling, directive dispatch) stays out
// of scope: callers are expected to have already split a directive line
// into its whitespace-separated fields (respecting quotes) before calling
// ParseRule/ParseRuleExt.
package parser

import (
	"fmt"
	"strings"

	"github.com/whitaker-io/sentrytx"
	"github.com/whitaker-io/sentrytx/script"
)

// ParseRule implements the `Rule <inputs> <operator> <modifier>*`
// directive: parse the inputs string, then the operator string, then each
// modifier in order, and register the resulting rule against e.
func ParseRule(e *sentrytx.Engine, inputsStr, operatorStr string, modifiers []string) (*sentrytx.Rule, error) {
	r := sentrytx.NewRule()
	arena := sentrytx.NewArena()

	if err := parseInputs(r, inputsStr); err != nil {
		return nil, err
	}
	if err := parseOperator(e, arena, r, operatorStr); err != nil {
		return nil, err
	}

	phase := sentrytx.PhaseNone
	for _, m := range modifiers {
		p, err := parseModifier(e, arena, r, m)
		if err != nil {
			return nil, err
		}
		if p != sentrytx.PhaseInvalid {
			phase = p
		}
	}
	if err := r.SetPhase(phase); err != nil {
		return nil, err
	}
	if err := maybeChainedTo(e, r); err != nil {
		return nil, err
	}

	if err := e.Register(r); err != nil {
		return nil, err
	}
	return r, nil
}

// ParseRuleExt implements the `RuleExt <scheme:uri> <modifier>*`
// directive. uri's scheme selects a loader; today only the script host's
// scheme ("lua:", per host.Scheme) is recognised, with an unknown-scheme
// error for anything else.
func ParseRuleExt(e *sentrytx.Engine, host *script.Host, uri string, modifiers []string) (*sentrytx.Rule, error) {
	if uri == "" {
		return nil, sentrytx.E(sentrytx.KindInvalid, "parse_ruleext", errf("no uri for RuleExt rule"))
	}

	r := sentrytx.NewRule()
	if err := r.UpdateFlags(sentrytx.FlagOr, sentrytx.RuleFlagExternal); err != nil {
		return nil, err
	}

	arena := sentrytx.NewArena()
	phase := sentrytx.PhaseNone
	for _, m := range modifiers {
		p, err := parseModifier(e, arena, r, m)
		if err != nil {
			return nil, err
		}
		if p != sentrytx.PhaseInvalid {
			phase = p
		}
	}
	if err := r.SetPhase(phase); err != nil {
		return nil, err
	}

	if r.ID() == "" {
		if err := r.SetID(deriveID(uri)); err != nil {
			return nil, err
		}
	}
	if err := maybeChainedTo(e, r); err != nil {
		return nil, err
	}

	scheme, body, ok := strings.Cut(uri, ":")
	if !ok || !strings.EqualFold(scheme, host.Scheme()) {
		return nil, sentrytx.E(sentrytx.KindInvalid, "parse_ruleext",
			errf("RuleExt does not support rule type %s", uri))
	}

	if err := host.LoadFunction(body, r.ID()); err != nil {
		return nil, sentrytx.E(sentrytx.KindInvalid, "parse_ruleext", err)
	}

	desc := script.OperatorDescriptor(host)
	if err := e.Operators.Register(desc); err != nil {
		return nil, err
	}
	op, err := e.Operators.Create(arena, desc.Name, r.ID(), false)
	if err != nil {
		return nil, err
	}
	if err := r.SetOperator(op); err != nil {
		return nil, err
	}

	if err := e.Register(r); err != nil {
		return nil, err
	}
	return r, nil
}

// parseInputs implements the inputs grammar: one or more selectors
// separated by '|' or ',', leading
// whitespace stripped; empty string is invalid.
func parseInputs(r *sentrytx.Rule, inputsStr string) error {
	trimmed := strings.TrimLeft(inputsStr, " \t")
	if trimmed == "" {
		return sentrytx.E(sentrytx.KindInvalid, "parse_inputs", errf("rule inputs is empty"))
	}
	for _, field := range strings.FieldsFunc(trimmed, func(r rune) bool { return r == '|' || r == ',' }) {
		if err := r.AddInput(field); err != nil {
			return err
		}
	}
	return nil
}

// parseOperator implements the operator-string grammar: optional leading
// '!' sets invert, then '@', then the operator name, then an optional
// argument tail split at the first space with trailing whitespace
// trimmed.
func parseOperator(e *sentrytx.Engine, arena *sentrytx.Arena, r *sentrytx.Rule, operatorStr string) error {
	invert := false
	at := -1
	for i, c := range operatorStr {
		switch {
		case at < 0 && !invert && c == '!':
			invert = true
		case at < 0 && c == '@':
			at = i
		case at < 0 && c != ' ' && c != '\t':
			return sentrytx.E(sentrytx.KindInvalid, "parse_operator", errf("invalid rule syntax %q", operatorStr))
		}
		if at >= 0 {
			break
		}
	}
	if at < 0 || at+1 >= len(operatorStr) {
		return sentrytx.E(sentrytx.KindInvalid, "parse_operator", errf("invalid rule syntax %q", operatorStr))
	}

	rest := operatorStr[at+1:]
	name := rest
	args := ""
	if sp := strings.IndexAny(rest, " \t"); sp >= 0 {
		name = rest[:sp]
		args = strings.TrimSpace(rest[sp+1:])
	}
	if name == "" {
		return sentrytx.E(sentrytx.KindInvalid, "parse_operator", errf("invalid rule syntax %q", operatorStr))
	}

	op, err := e.Operators.Create(arena, name, args, invert)
	if err != nil {
		return err
	}
	return r.SetOperator(op)
}

// parseModifier implements the modifier grammar: `name[:value]`,
// case-insensitive name. Returns the parsed
// phase if the modifier was `phase:`, or sentrytx.PhaseInvalid otherwise
// (meaning "this modifier did not set a phase").
func parseModifier(e *sentrytx.Engine, arena *sentrytx.Arena, r *sentrytx.Rule, modifier string) (sentrytx.Phase, error) {
	name := modifier
	value := ""
	if idx := strings.IndexByte(modifier, ':'); idx >= 0 && idx+1 < len(modifier) {
		name = modifier[:idx]
		value = strings.TrimSpace(modifier[idx+1:])
	}

	switch strings.ToLower(name) {
	case "id":
		if value == "" {
			return sentrytx.PhaseInvalid, sentrytx.E(sentrytx.KindInvalid, "parse_modifier", errf("modifier id with no value"))
		}
		return sentrytx.PhaseInvalid, r.SetID(value)

	case "phase":
		if value == "" {
			return sentrytx.PhaseInvalid, sentrytx.E(sentrytx.KindInvalid, "parse_modifier", errf("modifier phase with no value"))
		}
		p, err := sentrytx.ParsePhaseTag(value)
		if err != nil {
			return sentrytx.PhaseInvalid, err
		}
		return p, nil

	case "chain":
		return sentrytx.PhaseInvalid, r.UpdateFlags(sentrytx.FlagOr, sentrytx.RuleFlagChain)

	default:
		kind := sentrytx.ActionOnTrue
		actionName := name
		if strings.HasPrefix(actionName, "!") {
			kind = sentrytx.ActionOnFalse
			actionName = actionName[1:]
		}
		inst, err := e.Actions.Create(arena, actionName, value)
		if err != nil {
			return sentrytx.PhaseInvalid, err
		}
		return sentrytx.PhaseInvalid, r.AddAction(inst, kind)
	}
}

// maybeChainedTo sets RuleFlagChainedTo on r when the rule immediately
// preceding it in r's phase carries RuleFlagChain. No directive modifier
// ever sets RuleFlagChainedTo directly; continuation is purely
// positional: the next Rule/RuleExt directive parsed into the same phase
// after a chain rule is automatically its continuation, grouped by
// adjacency rather than by label. This is resolved here, at parse time;
// Engine.Register only verifies the adjacency invariant once the flag is
// already set.
func maybeChainedTo(e *sentrytx.Engine, r *sentrytx.Rule) error {
	existing := e.Rules(r.Phase())
	if len(existing) == 0 {
		return nil
	}
	last := existing[len(existing)-1]
	if !last.HasFlag(sentrytx.RuleFlagChain) {
		return nil
	}
	return r.UpdateFlags(sentrytx.FlagOr, sentrytx.RuleFlagChainedTo)
}

// deriveID derives a rule id from a RuleExt uri when no `id:` modifier was
// given, e.g. "lua:/etc/ib/check.lua" -> "check.lua".
func deriveID(uri string) string {
	if idx := strings.LastIndexAny(uri, "/:"); idx >= 0 && idx+1 < len(uri) {
		return uri[idx+1:]
	}
	return uri
}

func errf(format string, args ...interface{}) error {
	return fmt.Errorf(format, args...)
}
