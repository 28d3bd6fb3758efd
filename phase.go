// Copyright © 2026 Jonathan Whitaker <github@whitaker.io>.
//
// Use of this source code is governed by an MIT-style
// license that can be found in the LICENSE file.

package sentrytx

import "strings"

// Phase identifies the point in a transaction's lifecycle at which a rule
// is scheduled to fire. Ordering matters: phases fire in the order they are
// declared below, and the scheduler never fires a rule of a later phase
// before every rule of an earlier phase has fired for the same transaction.
type Phase int

// The rule-engine phases, in firing order. PhaseInvalid is a reserved
// sentinel used only to terminate lists; it is never a rule's live phase.
const (
	PhaseInvalid Phase = iota - 1
	PhaseNone
	PhaseRequestHeader
	PhaseRequestBody
	PhaseResponseHeader
	PhaseResponseBody
	PhasePostprocess
)

var phaseNames = [...]string{
	PhaseNone:           "NONE",
	PhaseRequestHeader:  "REQUEST_HEADER",
	PhaseRequestBody:    "REQUEST",
	PhaseResponseHeader: "RESPONSE_HEADER",
	PhaseResponseBody:   "RESPONSE",
	PhasePostprocess:    "POSTPROCESS",
}

// String returns the directive-tag spelling of the phase (the inverse of
// ParsePhaseTag), or "INVALID" for the terminator sentinel.
func (p Phase) String() string {
	if p < PhaseNone || int(p) >= len(phaseNames) {
		return "INVALID"
	}
	return phaseNames[p]
}

// phaseOrder lists every schedulable phase (excludes PhaseNone and
// PhaseInvalid) in firing order, for the scheduler to iterate.
var phaseOrder = []Phase{
	PhaseRequestHeader,
	PhaseRequestBody,
	PhaseResponseHeader,
	PhaseResponseBody,
	PhasePostprocess,
}

// Phases returns every schedulable phase in firing order, for admin/
// introspection endpoints that want to report per-phase rule counts
// without reaching into engine-internal state.
func Phases() []Phase {
	out := make([]Phase, len(phaseOrder))
	copy(out, phaseOrder)
	return out
}

// ParsePhaseTag parses one of the modifier tags recognised by the `phase:`
// rule modifier. Matching is case-insensitive.
func ParsePhaseTag(tag string) (Phase, error) {
	switch strings.ToUpper(strings.TrimSpace(tag)) {
	case "REQUEST_HEADER":
		return PhaseRequestHeader, nil
	case "REQUEST":
		return PhaseRequestBody, nil
	case "RESPONSE_HEADER":
		return PhaseResponseHeader, nil
	case "RESPONSE":
		return PhaseResponseBody, nil
	case "POSTPROCESS":
		return PhasePostprocess, nil
	case "NONE":
		return PhaseNone, nil
	default:
		return PhaseInvalid, E(KindInvalid, "parse_phase", errFmt("invalid PHASE modifier '%s'", tag))
	}
}
