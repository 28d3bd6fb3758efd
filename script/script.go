// Copyright © 2026 Jonathan Whitaker <github@whitaker.io>.
//
// Use of this source code is governed by an MIT-style
// license that can be found in the LICENSE file.

// Package script adapts a named function loaded into an embeddable Go
// interpreter (github.com/traefik/yaegi) into a synthetic sentrytx
// operator, filling the role an embedded Lua runtime plays in other
// inspection engines. Interpreter construction runs under a single
// engine-wide gate; calls into already-loaded functions do not.
package script

import (
	"fmt"
	"os"
	"reflect"
	"sync"

	"github.com/traefik/yaegi/interp"
	"github.com/traefik/yaegi/stdlib"

	"github.com/whitaker-io/sentrytx"
)

// Symbols exposes the engine types a rule script may reference, keyed the
// way yaegi's extract tool keys generated tables (import path + package
// name). Scripts import the engine module like any other package:
//
//	import "github.com/whitaker-io/sentrytx"
//
// The surface is deliberately small (the TX a rule receives and the types
// reachable from it) rather than an extract of the whole module.
var Symbols = interp.Exports{
	"github.com/whitaker-io/sentrytx/sentrytx": {
		"TX":     reflect.ValueOf((*sentrytx.TX)(nil)),
		"Fields": reflect.ValueOf((*sentrytx.Fields)(nil)),
		"Edit":   reflect.ValueOf((*sentrytx.Edit)(nil)),
	},
}

// RuleFunc is the signature every script-rule function must expose: given
// the firing transaction, return an integer the adapter coerces to a
// boolean result, the classic 0/1 scripting convention.
type RuleFunc func(tx *sentrytx.TX) (int, error)

// Host is the engine-scoped script host. Keeping it per-engine rather
// than process-wide means tests can instantiate multiple engines without
// shared interpreter state. One Host is created at engine init;
// interpreter construction runs under Host's gate, while evaluating a
// loaded script and Call run outside it.
type Host struct {
	scheme string

	gate sync.Mutex

	mu        sync.RWMutex
	functions map[string]RuleFunc

	desc     *sentrytx.OperatorDescriptor
	descOnce sync.Once
}

// NewHost returns a Host whose RuleExt scheme prefix is scheme (e.g.
// "lua"). The scheme name is a directive surface detail, not an
// interpreter choice.
func NewHost(scheme string) *Host {
	return &Host{
		scheme:    scheme,
		functions: map[string]RuleFunc{},
	}
}

// Scheme returns the RuleExt uri scheme this host handles.
func (h *Host) Scheme() string { return h.scheme }

// LoadFunction reads the script file at path, evaluates it in a fresh
// interpreter built under the gate, resolves its Rule entry function, and
// publishes it under id: the rule id becomes the function's name in the
// host's library. Re-loading the same id replaces the function, matching
// a configuration reload.
//
// The file must declare, at top level, an entry function matching
// RuleFunc's shape:
//
//	func Rule(tx *sentrytx.TX) (int, error)
//
// Each file gets its own interpreter, so two scripts both declaring Rule
// never collide and a loaded function closes over only its own file's
// state.
func (h *Host) LoadFunction(path, id string) error {
	source, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("script: reading script for rule %q: %w", id, err)
	}

	i, err := h.newContext()
	if err != nil {
		return fmt.Errorf("script: building context for rule %q: %w", id, err)
	}
	if _, err := i.Eval(string(source)); err != nil {
		return fmt.Errorf("script: error evaluating %s for rule %q: %w", path, id, err)
	}
	sym, err := i.Eval("Rule")
	if err != nil {
		return fmt.Errorf("script: %s declares no Rule entry function: %w", path, err)
	}
	fn, ok := sym.Interface().(func(*sentrytx.TX) (int, error))
	if !ok {
		return fmt.Errorf("script: %s's Rule is not of shape func(*sentrytx.TX) (int, error)", path)
	}

	h.mu.Lock()
	h.functions[id] = fn
	h.mu.Unlock()
	return nil
}

// newContext builds a fresh interpreter under the gate. yaegi interpreters
// cannot safely be shared across goroutines, so every script file is
// evaluated in its own interpreter built here, and only construction is
// serialised; the loaded functions themselves run outside the gate.
func (h *Host) newContext() (*interp.Interpreter, error) {
	h.gate.Lock()
	defer h.gate.Unlock()

	i := interp.New(interp.Options{})
	if err := i.Use(stdlib.Symbols); err != nil {
		return nil, fmt.Errorf("script: failed to load stdlib symbols: %w", err)
	}
	if err := i.Use(Symbols); err != nil {
		return nil, fmt.Errorf("script: failed to load engine symbols: %w", err)
	}
	return i, nil
}

// Call invokes the function registered under name against tx. It creates
// no context and never takes the gate, so a slow rule function never
// blocks LoadFunction or other calls.
func (h *Host) Call(name string, tx *sentrytx.TX) (bool, error) {
	h.mu.RLock()
	fn, ok := h.functions[name]
	h.mu.RUnlock()
	if !ok {
		return false, fmt.Errorf("script: no function loaded for %q", name)
	}

	// fn closed over the interpreter LoadFunction built for its file; no
	// per-call context (and so no gate acquisition) is needed here.
	result, err := fn(tx)
	if err != nil {
		return false, err
	}
	return result != 0, nil
}

// OperatorDescriptor returns the single sentrytx.OperatorDescriptor shared
// by every script-backed rule on this host: Execute's params is the
// function name (the RuleExt rule's id), and the field argument is always
// nil since script rules are always external. The same
// *sentrytx.OperatorDescriptor pointer is returned on every call so
// repeated registration against an Engine is idempotent rather than a
// conflict.
func OperatorDescriptor(h *Host) *sentrytx.OperatorDescriptor {
	h.descOnce.Do(func() {
		h.desc = &sentrytx.OperatorDescriptor{
			Name:         "script:" + h.scheme,
			Capabilities: sentrytx.CapAcceptsNull,
			Create: func(arena *sentrytx.Arena, params string) (interface{}, error) {
				if params == "" {
					return nil, fmt.Errorf("script operator requires a function name")
				}
				return params, nil
			},
			Execute: func(tx *sentrytx.TX, state interface{}, field interface{}) (bool, error) {
				name := state.(string)
				ok, err := h.Call(name, tx)
				if err != nil {
					return false, sentrytx.E(sentrytx.KindTransient, "script_call", err)
				}
				return ok, nil
			},
		}
	})
	return h.desc
}
