// Copyright © 2026 Jonathan Whitaker <github@whitaker.io>.
//
// Use of this source code is governed by an MIT-style
// license that can be found in the LICENSE file.

package parser_test

import (
	"testing"

	"github.com/whitaker-io/sentrytx"
	"github.com/whitaker-io/sentrytx/action"
	"github.com/whitaker-io/sentrytx/operator"
	"github.com/whitaker-io/sentrytx/parser"
)

func newTestEngine(t *testing.T) *sentrytx.Engine {
	t.Helper()
	e := sentrytx.NewEngine(sentrytx.DefaultConfig())
	if err := operator.Register(e.Operators); err != nil {
		t.Fatalf("operator.Register: %v", err)
	}
	if err := action.Register(e.Actions); err != nil {
		t.Fatalf("action.Register: %v", err)
	}
	return e
}

func parseSample(t *testing.T, e *sentrytx.Engine) *sentrytx.Rule {
	t.Helper()
	r, err := parser.ParseRule(e, "ARGS", "@rx ^foo", []string{"phase:REQUEST_HEADER", "id:1", "block"})
	if err != nil {
		t.Fatalf("ParseRule: %v", err)
	}
	return r
}

// TestParseRuleIdempotentReparse checks that parsing the
// same directive text twice (against independent engines) yields two rules
// that are structurally equal in everything that matters to execution.
func TestParseRuleIdempotentReparse(t *testing.T) {
	r1 := parseSample(t, newTestEngine(t))
	r2 := parseSample(t, newTestEngine(t))

	if r1.Phase() != sentrytx.PhaseRequestHeader || r2.Phase() != sentrytx.PhaseRequestHeader {
		t.Fatalf("phase = %v / %v, want PhaseRequestHeader both", r1.Phase(), r2.Phase())
	}
	if r1.ID() != "1" || r2.ID() != "1" {
		t.Fatalf("id = %q / %q, want \"1\" both", r1.ID(), r2.ID())
	}

	wantInputs := []string{"ARGS"}
	if !equalStrings(r1.Inputs(), wantInputs) || !equalStrings(r2.Inputs(), wantInputs) {
		t.Fatalf("inputs = %v / %v, want %v both", r1.Inputs(), r2.Inputs(), wantInputs)
	}

	if r1.Operator().Descriptor.Name != "rx" || r2.Operator().Descriptor.Name != "rx" {
		t.Fatalf("operator name = %q / %q, want rx both", r1.Operator().Descriptor.Name, r2.Operator().Descriptor.Name)
	}
	if r1.Operator().Params != "^foo" || r2.Operator().Params != "^foo" {
		t.Fatalf("operator params = %q / %q, want ^foo both", r1.Operator().Params, r2.Operator().Params)
	}
	if r1.Operator().Invert || r2.Operator().Invert {
		t.Fatalf("expected invert=false on both")
	}

	a1 := r1.Actions(sentrytx.ActionOnTrue)
	a2 := r2.Actions(sentrytx.ActionOnTrue)
	if len(a1) != 1 || len(a2) != 1 {
		t.Fatalf("on_true actions = %d / %d, want 1 both", len(a1), len(a2))
	}
	if a1[0].Descriptor.Name != "block" || a2[0].Descriptor.Name != "block" {
		t.Fatalf("on_true action = %q / %q, want block both", a1[0].Descriptor.Name, a2[0].Descriptor.Name)
	}
	if len(r1.Actions(sentrytx.ActionOnFalse)) != 0 || len(r2.Actions(sentrytx.ActionOnFalse)) != 0 {
		t.Fatalf("expected no on_false actions on either parse")
	}
}

func TestParseRuleChainPositionalInference(t *testing.T) {
	e := newTestEngine(t)

	producer, err := parser.ParseRule(e, "ARGS", "@streq x", []string{"phase:REQUEST_HEADER", "id:c1", "chain"})
	if err != nil {
		t.Fatalf("ParseRule producer: %v", err)
	}
	if !producer.HasFlag(sentrytx.RuleFlagChain) {
		t.Fatalf("expected producer to carry RuleFlagChain")
	}
	if producer.HasFlag(sentrytx.RuleFlagChainedTo) {
		t.Fatalf("producer must not carry RuleFlagChainedTo")
	}

	continuation, err := parser.ParseRule(e, "ARGS", "@streq y", []string{"phase:REQUEST_HEADER", "id:c2"})
	if err != nil {
		t.Fatalf("ParseRule continuation: %v", err)
	}
	if !continuation.HasFlag(sentrytx.RuleFlagChainedTo) {
		t.Fatalf("expected continuation to carry RuleFlagChainedTo from positional inference, no directive ever set it explicitly")
	}

	// A rule with nothing registered before it in its phase never gets
	// chained_to, even with no `chain` modifier of its own.
	standalone, err := parser.ParseRule(e, "ARGS", "@streq z", []string{"phase:RESPONSE_HEADER", "id:s1"})
	if err != nil {
		t.Fatalf("ParseRule standalone: %v", err)
	}
	if standalone.HasFlag(sentrytx.RuleFlagChainedTo) {
		t.Fatalf("first rule in a phase must never be chained_to")
	}
}

func equalStrings(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}
