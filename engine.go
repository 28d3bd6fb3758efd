// Copyright © 2026 Jonathan Whitaker <github@whitaker.io>.
//
// Use of this source code is governed by an MIT-style
// license that can be found in the LICENSE file.

package sentrytx

import (
	"sync"

	"github.com/google/uuid"
)

// Recorder is the engine's sink for structured telemetry events: rule
// matches ("rule_match"), operator and action failures ("rule_error",
// "action_error"), and blocked transactions ("tx_blocked"). The
// sentrytx/telemetry package builds Recorders backed by logrus, otel
// metric counters, and a non-blocking Kafka sink; tests can pass a Recorder
// that appends to a slice. A nil Recorder is valid and drops every event.
type Recorder func(event string, fields map[string]interface{})

func (r Recorder) emit(event string, fields map[string]interface{}) {
	if r == nil {
		return
	}
	r(event, fields)
}

// Engine owns the operator and action registries and the phase-ordered
// rule schedule built from them. One Engine serves every transaction a
// host creates; Register is only ever called during configuration load,
// never while a TX is live.
type Engine struct {
	Config    Config
	Operators *OperatorRegistry
	Actions   *ActionRegistry
	Recorder  Recorder

	mu     sync.Mutex
	phases map[Phase][]*Rule
}

// NewEngine returns an Engine with empty registries and an empty schedule.
func NewEngine(cfg Config) *Engine {
	return &Engine{
		Config:    cfg,
		Operators: NewOperatorRegistry(),
		Actions:   NewActionRegistry(),
		phases:    map[Phase][]*Rule{},
	}
}

// Register validates r, seals it, assigns a generated id if one was never
// set, and appends it to its phase's rule list in registration order. A
// chained_to rule must immediately follow, in the same phase, a rule that
// carries the chain flag; the adjacency invariant is verified here, once,
// at load time.
func (e *Engine) Register(r *Rule) error {
	if r == nil {
		return E(KindInvalid, "engine_register", errFmt("rule must not be nil"))
	}
	if r.sealed {
		return E(KindInvalid, "engine_register", errFmt("rule %q already registered", r.id))
	}
	if err := r.validate(); err != nil {
		return err
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	if r.id == "" {
		r.id = uuid.New().String()
	}
	list := e.phases[r.phase]
	if r.flags.has(RuleFlagChainedTo) {
		if len(list) == 0 || !list[len(list)-1].flags.has(RuleFlagChain) {
			return E(KindInvalid, "engine_register",
				errFmt("rule %q is chained_to but has no preceding chain rule in phase %s", r.id, r.phase))
		}
	}
	r.sealed = true
	e.phases[r.phase] = append(list, r)
	return nil
}

// Rules returns the rules registered under phase, in firing order. The
// returned slice is a copy; callers may not mutate the live schedule
// through it.
func (e *Engine) Rules(phase Phase) []*Rule {
	e.mu.Lock()
	defer e.mu.Unlock()
	list := e.phases[phase]
	out := make([]*Rule, len(list))
	copy(out, list)
	return out
}

// RuleByID searches every phase for a rule with the given id. It is meant
// for admin/introspection endpoints, not the hot path.
func (e *Engine) RuleByID(id string) (*Rule, bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	for _, list := range e.phases {
		for _, r := range list {
			if r.id == id {
				return r, true
			}
		}
	}
	return nil, false
}
