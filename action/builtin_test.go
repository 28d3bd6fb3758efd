// Copyright © 2026 Jonathan Whitaker <github@whitaker.io>.
//
// Use of this source code is governed by an MIT-style
// license that can be found in the LICENSE file.

package action

import (
	"testing"

	"github.com/whitaker-io/sentrytx"
	"github.com/whitaker-io/sentrytx/store"
)

func newEngine(t *testing.T) *sentrytx.Engine {
	t.Helper()
	e := sentrytx.NewEngine(sentrytx.DefaultConfig())
	if err := Register(e.Actions); err != nil {
		t.Fatalf("Register: %v", err)
	}
	return e
}

func createAction(t *testing.T, e *sentrytx.Engine, name, params string) *sentrytx.ActionInstance {
	t.Helper()
	arena := sentrytx.NewArena()
	inst, err := e.Actions.Create(arena, name, params)
	if err != nil {
		t.Fatalf("Create(%s): %v", name, err)
	}
	return inst
}

func TestBlockSetsFlagAndStatus(t *testing.T) {
	e := newEngine(t)
	tx := sentrytx.NewTX(e)
	defer tx.Close()

	inst := createAction(t, e, "block", "403")
	if err := inst.Execute(tx); err != nil {
		t.Fatalf("Execute: %v", err)
	}
	if !tx.Flags().Has(sentrytx.TxFlagBlocked) {
		t.Fatal("expected TxFlagBlocked set")
	}
	if tx.Status() != 403 {
		t.Fatalf("Status() = %d, want 403", tx.Status())
	}
}

func TestAllowAll(t *testing.T) {
	e := newEngine(t)
	tx := sentrytx.NewTX(e)
	defer tx.Close()

	inst := createAction(t, e, "allow", "all")
	if err := inst.Execute(tx); err != nil {
		t.Fatalf("Execute: %v", err)
	}
	if !tx.Flags().Has(sentrytx.TxFlagAllowAll) {
		t.Fatal("expected TxFlagAllowAll set")
	}
}

func TestSetvarLiteralAndNumeric(t *testing.T) {
	e := newEngine(t)
	tx := sentrytx.NewTX(e)
	defer tx.Close()

	createAction(t, e, "setvar", "score=5").Execute(tx)
	v, _ := tx.Fields.Get("score")
	if v != "5" {
		t.Fatalf("score = %v, want \"5\"", v)
	}

	createAction(t, e, "setvar", "counter=+1").Execute(tx)
	createAction(t, e, "setvar", "counter=+1").Execute(tx)
	got, _ := tx.Fields.Get("counter")
	if got.(float64) != 2 {
		t.Fatalf("counter = %v, want 2", got)
	}

	createAction(t, e, "setvar", "counter=-1").Execute(tx)
	got, _ = tx.Fields.Get("counter")
	if got.(float64) != 1 {
		t.Fatalf("counter = %v, want 1", got)
	}
}

func TestSetstatus(t *testing.T) {
	e := newEngine(t)
	tx := sentrytx.NewTX(e)
	defer tx.Close()

	createAction(t, e, "setstatus", "451").Execute(tx)
	if tx.Status() != 451 {
		t.Fatalf("Status() = %d, want 451", tx.Status())
	}
	if tx.Flags().Has(sentrytx.TxFlagBlocked) {
		t.Fatal("setstatus must not imply block")
	}
}

func TestLogAppendsEntry(t *testing.T) {
	e := newEngine(t)
	tx := sentrytx.NewTX(e)
	defer tx.Close()

	createAction(t, e, "log", "suspicious request").Execute(tx)
	entries := tx.Log()
	if len(entries) != 1 || entries[0].Action != "log:suspicious request" {
		t.Fatalf("Log() = %+v, want one log:suspicious request entry", entries)
	}
}

func TestRatelimitBlocksOverLimit(t *testing.T) {
	e := newEngine(t)
	s := store.NewMem()
	if err := RegisterRatelimit(e.Actions, s); err != nil {
		t.Fatalf("RegisterRatelimit: %v", err)
	}

	tx := sentrytx.NewTX(e)
	defer tx.Close()
	inst := createAction(t, e, "ratelimit", "ip_192.0.2.1:2:60")

	for i := 0; i < 2; i++ {
		if err := inst.Execute(tx); err != nil {
			t.Fatalf("Execute %d: %v", i, err)
		}
		if tx.Flags().Has(sentrytx.TxFlagBlocked) {
			t.Fatalf("blocked too early at request %d", i)
		}
	}
	if err := inst.Execute(tx); err != nil {
		t.Fatalf("Execute 3rd: %v", err)
	}
	if !tx.Flags().Has(sentrytx.TxFlagBlocked) {
		t.Fatal("expected TxFlagBlocked after exceeding limit")
	}
}
