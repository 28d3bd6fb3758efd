// Copyright © 2026 Jonathan Whitaker <github@whitaker.io>.
//
// Use of this source code is governed by an MIT-style
// license that can be found in the LICENSE file.

package sentrytx

// Fire evaluates every rule registered for phase against tx, in
// registration order. It is the host's signal that a phase
// boundary has been reached for this transaction; the scheduler never
// fires a rule of a later phase before every rule of an earlier phase has
// fired for the same TX, because the host is expected to call Fire once
// per phase in phaseOrder sequence.
func (e *Engine) Fire(tx *TX, phase Phase) error {
	rules := e.Rules(phase)

	var prev *Rule
	var prevTrue bool
	for _, r := range rules {
		if r.HasFlag(RuleFlagChainedTo) {
			if prev == nil || !prevTrue {
				prev = r
				prevTrue = false
				continue
			}
		}

		verdict, err := e.fireRule(tx, r)
		if err != nil {
			tx.AppendLog(LogEntry{RuleID: r.id, Phase: phase, Verdict: verdict, Err: err})
		}

		prev = r
		prevTrue = verdict
	}
	return nil
}

// NotifyBody delivers one raw body chunk to the engine before the host
// enqueues it through the filter; notification always precedes
// buffering. The chunk is appended to the direction's body field
// in the TX attribute bag and the direction's body phase fires, so
// body-phase rules observe the stream as it arrives and their actions may
// append edits to the filter context before those bytes are emitted.
func (e *Engine) NotifyBody(tx *TX, dir Direction, chunk []byte) error {
	name := "REQUEST_BODY"
	phase := PhaseRequestBody
	if dir == DirectionResponse {
		name = "RESPONSE_BODY"
		phase = PhaseResponseBody
	}
	var body []byte
	if v, ok := tx.Fields.Get(name); ok {
		body, _ = v.([]byte)
	}
	tx.Fields.Set(name, append(body, chunk...))
	return e.Fire(tx, phase)
}

// fireRule resolves r's inputs, invokes its operator once per selector that
// resolves to a non-absent field (external rules invoke it exactly once,
// against a nil field), and runs the matching action list
// for each invocation. The rule's verdict for chaining purposes is true iff
// at least one invocation produced true. A hard error from an action
// aborts that invocation's remaining actions but never the phase.
func (e *Engine) fireRule(tx *TX, r *Rule) (bool, error) {
	if r.HasFlag(RuleFlagExternal) {
		return e.evalOnce(tx, r, nil)
	}

	var ruleVerdict bool
	var firstErr error
	var invoked bool
	for _, selector := range r.inputs {
		field, ok := tx.Fields.Get(selector)
		if !ok {
			continue
		}
		invoked = true
		verdict, err := e.evalOnce(tx, r, field)
		if err != nil && firstErr == nil {
			firstErr = err
		}
		if verdict {
			ruleVerdict = true
		}
	}
	if !invoked {
		// No selector resolved to anything: run as a single absent-field
		// evaluation, so operators that accept a null field still get
		// their shot.
		return e.evalOnce(tx, r, nil)
	}
	return ruleVerdict, firstErr
}

// evalOnce invokes r's operator against field and runs the matching
// action list, once.
func (e *Engine) evalOnce(tx *TX, r *Rule, field interface{}) (bool, error) {
	verdict, err := r.op.Execute(tx, field)
	if err != nil {
		if e.Recorder != nil {
			e.Recorder.emit("rule_error", map[string]interface{}{"rule": r.id, "err": err.Error()})
		}
		return false, err
	}

	if verdict && e.Recorder != nil {
		e.Recorder.emit("rule_match", map[string]interface{}{"rule": r.id, "phase": r.phase.String()})
	}

	actions := r.onFalse
	if verdict {
		actions = r.onTrue
	}
	for _, a := range actions {
		if aerr := a.Execute(tx); aerr != nil {
			if e.Recorder != nil {
				e.Recorder.emit("action_error", map[string]interface{}{"rule": r.id, "err": aerr.Error()})
			}
			// A hard error aborts this invocation's remaining actions, not
			// the phase.
			break
		}
	}
	return verdict, nil
}
