// Copyright © 2026 Jonathan Whitaker <github@whitaker.io>.
//
// Use of this source code is governed by an MIT-style
// license that can be found in the LICENSE file.

// Package action registers the engine's built-in action catalogue against
// a sentrytx.ActionRegistry. Actions have no boolean result: they mutate
// TX state for side effect, fired by the scheduler according to the
// owning rule's verdict.
package action

import (
	"bytes"
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/whitaker-io/sentrytx"
	"github.com/whitaker-io/sentrytx/store"
)

// Register adds every built-in descriptor except `ratelimit` to r.
// `ratelimit` needs a store.Store and is registered separately via
// RegisterRatelimit, so callers that never configure a store never pay for
// the dependency.
func Register(r *sentrytx.ActionRegistry) error {
	for _, d := range []*sentrytx.ActionDescriptor{
		blockDescriptor(),
		allowDescriptor(),
		logDescriptor(),
		setvarDescriptor(),
		setstatusDescriptor(),
		rewriteDescriptor(),
	} {
		if err := r.Register(d); err != nil {
			return err
		}
	}
	return nil
}

// blockDescriptor implements `block`: sets TxFlagBlocked, optionally also
// pre-setting the response status if params is a valid status code (the
// common `block:403` shorthand for "block and use this status").
func blockDescriptor() *sentrytx.ActionDescriptor {
	return &sentrytx.ActionDescriptor{
		Name: "block",
		Execute: func(tx *sentrytx.TX, state interface{}) error {
			if err := tx.UpdateFlags(sentrytx.FlagOr, sentrytx.TxFlagBlocked); err != nil {
				return err
			}
			if code, ok := state.(int); ok {
				tx.SetStatus(code)
			}
			if tx.Engine != nil && tx.Engine.Recorder != nil {
				tx.Engine.Recorder("tx_blocked", map[string]interface{}{"tx": tx.ID})
			}
			return nil
		},
		Create: func(arena *sentrytx.Arena, params string) (interface{}, error) {
			params = strings.TrimSpace(params)
			if params == "" {
				return nil, nil
			}
			code, err := strconv.Atoi(params)
			if err != nil {
				return nil, fmt.Errorf("block: invalid status %q: %w", params, err)
			}
			return code, nil
		},
	}
}

// allowDescriptor implements `allow`: sets TxFlagAllowRequest, or
// TxFlagAllowAll when params is "all". A body filter context initialised
// after the flag is set runs in nobuf mode (TxFlagAllowRequest covers only
// the request direction); rule firing is not affected.
func allowDescriptor() *sentrytx.ActionDescriptor {
	return &sentrytx.ActionDescriptor{
		Name: "allow",
		Create: func(arena *sentrytx.Arena, params string) (interface{}, error) {
			return strings.EqualFold(strings.TrimSpace(params), "all"), nil
		},
		Execute: func(tx *sentrytx.TX, state interface{}) error {
			mask := sentrytx.TxFlagAllowRequest
			if all, _ := state.(bool); all {
				mask = sentrytx.TxFlagAllowAll
			}
			return tx.UpdateFlags(sentrytx.FlagOr, mask)
		},
	}
}

// logDescriptor implements `log`: appends a LogEntry carrying params as the
// free-text message to the TX log, which the host reads back via TX.Log.
func logDescriptor() *sentrytx.ActionDescriptor {
	return &sentrytx.ActionDescriptor{
		Name: "log",
		Create: func(arena *sentrytx.Arena, params string) (interface{}, error) {
			return params, nil
		},
		Execute: func(tx *sentrytx.TX, state interface{}) error {
			tx.AppendLog(sentrytx.LogEntry{Action: "log:" + state.(string)})
			return nil
		},
	}
}

// setvarDescriptor implements `setvar:name=value` (and `setvar:name=+N` /
// `setvar:name=-N` numeric adjustment of an existing field): params is
// parsed once at Create into a name/op/value triple.
func setvarDescriptor() *sentrytx.ActionDescriptor {
	return &sentrytx.ActionDescriptor{
		Name: "setvar",
		Create: func(arena *sentrytx.Arena, params string) (interface{}, error) {
			name, value, ok := strings.Cut(params, "=")
			if !ok || name == "" {
				return nil, fmt.Errorf("setvar: expected name=value, got %q", params)
			}
			return setvarArgs{name: name, value: value}, nil
		},
		Execute: func(tx *sentrytx.TX, state interface{}) error {
			args := state.(setvarArgs)
			if delta, ok := strings.CutPrefix(args.value, "+"); ok {
				return adjustNumeric(tx, args.name, delta, 1)
			}
			if delta, ok := strings.CutPrefix(args.value, "-"); ok {
				return adjustNumeric(tx, args.name, delta, -1)
			}
			tx.Fields.Set(args.name, args.value)
			return nil
		},
	}
}

type setvarArgs struct {
	name, value string
}

func adjustNumeric(tx *sentrytx.TX, name, deltaStr string, sign int) error {
	delta, err := strconv.ParseFloat(deltaStr, 64)
	if err != nil {
		return fmt.Errorf("setvar: invalid numeric delta %q: %w", deltaStr, err)
	}
	var cur float64
	if v, ok := tx.Fields.Get(name); ok {
		switch n := v.(type) {
		case float64:
			cur = n
		case string:
			cur, _ = strconv.ParseFloat(n, 64)
		}
	}
	tx.Fields.Set(name, cur+float64(sign)*delta)
	return nil
}

// setstatusDescriptor implements `setstatus:code`: records an intended
// response status without also blocking, for rules that want to override
// the eventual error document without necessarily aborting upstream.
func setstatusDescriptor() *sentrytx.ActionDescriptor {
	return &sentrytx.ActionDescriptor{
		Name: "setstatus",
		Create: func(arena *sentrytx.Arena, params string) (interface{}, error) {
			code, err := strconv.Atoi(strings.TrimSpace(params))
			if err != nil {
				return nil, fmt.Errorf("setstatus: invalid status %q: %w", params, err)
			}
			return code, nil
		},
		Execute: func(tx *sentrytx.TX, state interface{}) error {
			tx.SetStatus(state.(int))
			return nil
		},
	}
}

// rewriteDescriptor implements `rewrite:<direction>:<needle>=<replacement>`:
// every occurrence of needle in the direction's body stream is replaced by
// replacement, by appending byte-range edits to the direction's filter
// context as the notified body grows. This is the rule-surface entry point
// to the deferred edit list: a body-phase rule fires it once per chunk,
// and the scan resumes where the previous
// invocation stopped so no occurrence is matched twice.
func rewriteDescriptor() *sentrytx.ActionDescriptor {
	return &sentrytx.ActionDescriptor{
		Name: "rewrite",
		Create: func(arena *sentrytx.Arena, params string) (interface{}, error) {
			dirStr, rest, ok := strings.Cut(params, ":")
			if !ok {
				return nil, fmt.Errorf("rewrite: expected direction:needle=replacement, got %q", params)
			}
			needle, replacement, ok := strings.Cut(rest, "=")
			if !ok || needle == "" {
				return nil, fmt.Errorf("rewrite: expected needle=replacement, got %q", rest)
			}
			args := rewriteArgs{needle: needle, replacement: replacement, posKey: "rewrite_pos:" + params}
			switch strings.ToLower(dirStr) {
			case "request":
			case "response":
				args.response = true
			default:
				return nil, fmt.Errorf("rewrite: unknown direction %q", dirStr)
			}
			return args, nil
		},
		Execute: func(tx *sentrytx.TX, state interface{}) error {
			args := state.(rewriteArgs)
			fc, fieldName := tx.Request, "REQUEST_BODY"
			if args.response {
				fc, fieldName = tx.Response, "RESPONSE_BODY"
			}
			v, _ := tx.Fields.Get(fieldName)
			body, _ := v.([]byte)
			if len(body) == 0 {
				return nil
			}

			// Scan progress is per-TX, so it lives in the attribute bag,
			// not in the shared instance state.
			pos := 0
			if p, ok := tx.Fields.Get(args.posKey); ok {
				pos, _ = p.(int)
			}
			for pos < len(body) {
				idx := bytes.Index(body[pos:], []byte(args.needle))
				if idx < 0 {
					break
				}
				at := pos + idx
				fc.AddEdit(sentrytx.Edit{
					Start:       uint64(at),
					Delete:      uint64(len(args.needle)),
					Replacement: []byte(args.replacement),
				})
				pos = at + len(args.needle)
			}
			// Leave the last len(needle)-1 bytes unscanned: a needle
			// straddling the next chunk boundary is found once that chunk
			// arrives, and a full match can never fit inside the window, so
			// nothing is ever matched twice.
			if tail := len(body) - (len(args.needle) - 1); pos < tail {
				pos = tail
			}
			tx.Fields.Set(args.posKey, pos)
			return nil
		},
	}
}

type rewriteArgs struct {
	response    bool
	needle      string
	replacement string
	posKey      string
}

// RegisterRatelimit adds `ratelimit:<key>:<limit>:<window_seconds>` to r,
// backed by s. Exceeding limit within window sets TxFlagBlocked the same as
// the `block` action, so a rule chaining `ratelimit` needs no separate
// `block` modifier.
func RegisterRatelimit(r *sentrytx.ActionRegistry, s store.Store) error {
	return r.Register(&sentrytx.ActionDescriptor{
		Name: "ratelimit",
		Create: func(arena *sentrytx.Arena, params string) (interface{}, error) {
			parts := strings.SplitN(params, ":", 3)
			if len(parts) != 3 {
				return nil, fmt.Errorf("ratelimit: expected key:limit:window_seconds, got %q", params)
			}
			limit, err := strconv.ParseInt(parts[1], 10, 64)
			if err != nil {
				return nil, fmt.Errorf("ratelimit: invalid limit %q: %w", parts[1], err)
			}
			windowSecs, err := strconv.Atoi(parts[2])
			if err != nil {
				return nil, fmt.Errorf("ratelimit: invalid window %q: %w", parts[2], err)
			}
			return ratelimitArgs{key: parts[0], limit: limit, window: time.Duration(windowSecs) * time.Second}, nil
		},
		Execute: func(tx *sentrytx.TX, state interface{}) error {
			args := state.(ratelimitArgs)
			n, err := s.Incr(context.Background(), args.key, args.window)
			if err != nil {
				return sentrytx.E(sentrytx.KindTransient, "ratelimit", err)
			}
			if n > args.limit {
				return tx.UpdateFlags(sentrytx.FlagOr, sentrytx.TxFlagBlocked)
			}
			return nil
		},
	})
}

type ratelimitArgs struct {
	key    string
	limit  int64
	window time.Duration
}
