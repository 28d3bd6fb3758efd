// Copyright © 2026 Jonathan Whitaker <github@whitaker.io>.
//
// Use of this source code is governed by an MIT-style
// license that can be found in the LICENSE file.

package sentrytx

// ActionKind distinguishes a rule's on-true action list from its on-false
// list. Most rules only populate OnTrue; on-false actions exist mainly for
// script-adapted rules that want to log a miss.
type ActionKind int

const (
	ActionOnTrue ActionKind = iota
	ActionOnFalse
)

// Rule is the engine's rule object: inputs, an operator, and
// one or two action lists, built incrementally through the methods below
// and then sealed by Engine.Register. Every mutator returns an error
// instead of panicking so a parser translating directive text can surface
// a line-numbered failure instead of crashing the whole load.
type Rule struct {
	id      string
	phase   Phase
	flags   RuleFlags
	inputs  []string
	op      *OperatorInstance
	onTrue  []*ActionInstance
	onFalse []*ActionInstance
	sealed  bool
}

// NewRule returns an empty, unsealed rule with PhaseNone.
func NewRule() *Rule {
	return &Rule{phase: PhaseNone}
}

func (r *Rule) checkMutable(op string) error {
	if r.sealed {
		return E(KindInvalid, op, errFmt("rule %q is sealed", r.id))
	}
	return nil
}

// SetID sets the rule's id. Required before Register unless the rule is
// external, in which case Register fills in a generated id.
func (r *Rule) SetID(id string) error {
	if err := r.checkMutable("rule_set_id"); err != nil {
		return err
	}
	r.id = id
	return nil
}

// ID returns the rule's id, which is empty until SetID or Register runs.
func (r *Rule) ID() string { return r.id }

// SetPhase sets the phase the rule is scheduled under.
func (r *Rule) SetPhase(p Phase) error {
	if err := r.checkMutable("rule_set_phase"); err != nil {
		return err
	}
	r.phase = p
	return nil
}

// Phase returns the rule's scheduled phase.
func (r *Rule) Phase() Phase { return r.phase }

// AddInput appends a field selector to the rule's input list. Selectors are
// evaluated in the order they were added, and the operator fires once per
// selector that resolves to a non-absent field; if none resolves, it
// fires once against a nil field.
func (r *Rule) AddInput(selector string) error {
	if err := r.checkMutable("rule_add_input"); err != nil {
		return err
	}
	if selector == "" {
		return E(KindInvalid, "rule_add_input", errFmt("input selector must not be empty"))
	}
	r.inputs = append(r.inputs, selector)
	return nil
}

// Inputs returns the rule's input selectors in registration order.
func (r *Rule) Inputs() []string {
	out := make([]string, len(r.inputs))
	copy(out, r.inputs)
	return out
}

// SetOperator sets the rule's operator instance. A nil operator is only
// valid on a rule that will end up with RuleFlagExternal set: Register
// rejects a non-external rule with no operator.
func (r *Rule) SetOperator(op *OperatorInstance) error {
	if err := r.checkMutable("rule_set_operator"); err != nil {
		return err
	}
	r.op = op
	return nil
}

// Operator returns the rule's operator instance, or nil for an external
// rule that never set one.
func (r *Rule) Operator() *OperatorInstance { return r.op }

// AddAction appends an action instance to the on-true or on-false list.
func (r *Rule) AddAction(a *ActionInstance, kind ActionKind) error {
	if err := r.checkMutable("rule_add_action"); err != nil {
		return err
	}
	if a == nil {
		return E(KindInvalid, "rule_add_action", errFmt("action instance must not be nil"))
	}
	switch kind {
	case ActionOnTrue:
		r.onTrue = append(r.onTrue, a)
	case ActionOnFalse:
		r.onFalse = append(r.onFalse, a)
	default:
		return E(KindInvalid, "rule_add_action", errFmt("unknown action kind %d", kind))
	}
	return nil
}

// Actions returns the rule's action list for the given kind, in the order
// they fire.
func (r *Rule) Actions(kind ActionKind) []*ActionInstance {
	switch kind {
	case ActionOnTrue:
		out := make([]*ActionInstance, len(r.onTrue))
		copy(out, r.onTrue)
		return out
	case ActionOnFalse:
		out := make([]*ActionInstance, len(r.onFalse))
		copy(out, r.onFalse)
		return out
	default:
		return nil
	}
}

// UpdateFlags applies op to the rule's flag word.
func (r *Rule) UpdateFlags(op FlagOp, mask RuleFlags) error {
	if err := r.checkMutable("rule_update_flags"); err != nil {
		return err
	}
	next, err := r.flags.update(op, mask)
	if err != nil {
		return err
	}
	r.flags = next
	return nil
}

// Flags returns the rule's current flag word.
func (r *Rule) Flags() RuleFlags { return r.flags }

// HasFlag reports whether every bit in mask is set.
func (r *Rule) HasFlag(mask RuleFlags) bool { return r.flags.has(mask) }

// Sealed reports whether Register has already sealed this rule.
func (r *Rule) Sealed() bool { return r.sealed }

func (r *Rule) validate() error {
	if r.phase == PhaseNone || r.phase == PhaseInvalid {
		return E(KindInvalid, "rule_register", errFmt("rule %q has no phase", r.id))
	}
	if !r.flags.has(RuleFlagExternal) {
		if r.id == "" {
			return E(KindInvalid, "rule_register", errFmt("rule has no id"))
		}
		if len(r.inputs) == 0 {
			return E(KindInvalid, "rule_register", errFmt("rule %q has no inputs", r.id))
		}
		if r.op == nil {
			return E(KindInvalid, "rule_register", errFmt("rule %q has no operator", r.id))
		}
	}
	return nil
}
