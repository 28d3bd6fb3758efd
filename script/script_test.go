// Copyright © 2026 Jonathan Whitaker <github@whitaker.io>.
//
// Use of this source code is governed by an MIT-style
// license that can be found in the LICENSE file.

package script

import (
	"os"
	"path/filepath"
	"sync"
	"testing"

	"github.com/whitaker-io/sentrytx"
)

func newTestTX(t *testing.T) *sentrytx.TX {
	t.Helper()
	e := sentrytx.NewEngine(sentrytx.Config{})
	tx := sentrytx.NewTX(e)
	t.Cleanup(tx.Close)
	return tx
}

func TestHostScheme(t *testing.T) {
	h := NewHost("lua")
	if got := h.Scheme(); got != "lua" {
		t.Fatalf("Scheme() = %q, want %q", got, "lua")
	}
}

// TestLoadFunctionFromFile exercises the whole RuleExt script path: a
// script file on disk declaring a Rule entry function, loaded
// and published under a numeric rule id, invoked with its integer result
// coerced to bool.
func TestLoadFunctionFromFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "check.rule")
	src := `import "github.com/whitaker-io/sentrytx"

func Rule(tx *sentrytx.TX) (int, error) {
	if v, ok := tx.Fields.Get("ARGS"); ok && v == "attack" {
		return 1, nil
	}
	return 0, nil
}
`
	if err := os.WriteFile(path, []byte(src), 0o644); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}

	h := NewHost("lua")
	if err := h.LoadFunction(path, "99"); err != nil {
		t.Fatalf("LoadFunction: %v", err)
	}

	tx := newTestTX(t)
	tx.Fields.Set("ARGS", "attack")
	ok, err := h.Call("99", tx)
	if err != nil {
		t.Fatalf("Call: %v", err)
	}
	if !ok {
		t.Fatalf("Call = false, want true for matching field")
	}

	tx2 := newTestTX(t)
	tx2.Fields.Set("ARGS", "benign")
	ok, err = h.Call("99", tx2)
	if err != nil {
		t.Fatalf("Call: %v", err)
	}
	if ok {
		t.Fatalf("Call = true, want false for non-matching field")
	}
}

func TestLoadFunctionMissingEntry(t *testing.T) {
	path := filepath.Join(t.TempDir(), "broken.rule")
	if err := os.WriteFile(path, []byte("func NotRule() int { return 1 }\n"), 0o644); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}
	h := NewHost("lua")
	if err := h.LoadFunction(path, "broken"); err == nil {
		t.Fatalf("expected error for a script with no Rule entry function")
	}
}

func TestCallUnknownFunction(t *testing.T) {
	h := NewHost("lua")
	tx := newTestTX(t)
	if _, err := h.Call("never-loaded", tx); err == nil {
		t.Fatalf("expected error calling a function that was never loaded")
	}
}

// TestCallCoercesIntToBool exercises the 0/1 -> bool convention
// directly against the function table, bypassing LoadFunction's yaegi
// Eval; the adapter's coercion logic lives entirely in Call, not in the
// interpreter, so a hand-installed RuleFunc is a faithful unit under test.
func TestCallCoercesIntToBool(t *testing.T) {
	h := NewHost("lua")
	h.mu.Lock()
	h.functions["truthy"] = func(tx *sentrytx.TX) (int, error) { return 1, nil }
	h.functions["falsy"] = func(tx *sentrytx.TX) (int, error) { return 0, nil }
	h.mu.Unlock()

	tx := newTestTX(t)

	ok, err := h.Call("truthy", tx)
	if err != nil {
		t.Fatalf("Call(truthy): %v", err)
	}
	if !ok {
		t.Fatalf("Call(truthy) = false, want true")
	}

	ok, err = h.Call("falsy", tx)
	if err != nil {
		t.Fatalf("Call(falsy): %v", err)
	}
	if ok {
		t.Fatalf("Call(falsy) = true, want false")
	}
}

// TestCallConcurrentIsolation checks transaction isolation: concurrent
// invocations of the same script rule, one per transaction, never observe
// another transaction's state. Each goroutine's RuleFunc reads a value
// seeded into its own TX's Fields and echoes it back through the int
// result; any cross-transaction leakage would show up as a goroutine
// reporting a value it never seeded.
func TestCallConcurrentIsolation(t *testing.T) {
	h := NewHost("lua")
	h.mu.Lock()
	h.functions["echo"] = func(tx *sentrytx.TX) (int, error) {
		v, _ := tx.Fields.Get("n")
		n, _ := v.(int)
		return n, nil
	}
	h.mu.Unlock()

	const n = 64
	var wg sync.WaitGroup
	results := make([]bool, n)
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			e := sentrytx.NewEngine(sentrytx.Config{})
			tx := sentrytx.NewTX(e)
			defer tx.Close()
			tx.Fields.Set("n", i%2)

			ok, err := h.Call("echo", tx)
			if err != nil {
				t.Errorf("Call(echo) goroutine %d: %v", i, err)
				return
			}
			results[i] = ok
		}(i)
	}
	wg.Wait()

	for i, ok := range results {
		want := i%2 == 1
		if ok != want {
			t.Fatalf("goroutine %d: Call result = %v, want %v (cross-transaction leakage)", i, ok, want)
		}
	}
}
