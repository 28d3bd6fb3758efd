// Copyright © 2026 Jonathan Whitaker <github@whitaker.io>.
//
// Use of this source code is governed by an MIT-style
// license that can be found in the LICENSE file.

package operator

import (
	"testing"

	"github.com/whitaker-io/sentrytx"
)

func newRegistry(t *testing.T) *sentrytx.OperatorRegistry {
	t.Helper()
	r := sentrytx.NewOperatorRegistry()
	if err := Register(r); err != nil {
		t.Fatalf("Register: %v", err)
	}
	return r
}

func create(t *testing.T, r *sentrytx.OperatorRegistry, name, params string) *sentrytx.OperatorInstance {
	t.Helper()
	arena := sentrytx.NewArena()
	inst, err := r.Create(arena, name, params, false)
	if err != nil {
		t.Fatalf("Create(%s): %v", name, err)
	}
	return inst
}

func TestRxMatches(t *testing.T) {
	r := newRegistry(t)
	op := create(t, r, "rx", `^\d+$`)
	ok, err := op.Execute(nil, "12345")
	if err != nil || !ok {
		t.Fatalf("Execute = (%v, %v), want (true, nil)", ok, err)
	}
	ok, err = op.Execute(nil, "abc")
	if err != nil || ok {
		t.Fatalf("Execute = (%v, %v), want (false, nil)", ok, err)
	}
}

func TestStreqExact(t *testing.T) {
	r := newRegistry(t)
	op := create(t, r, "streq", "admin")
	if ok, _ := op.Execute(nil, "admin"); !ok {
		t.Fatal("expected match")
	}
	if ok, _ := op.Execute(nil, "administrator"); ok {
		t.Fatal("expected no match for prefix")
	}
}

func TestContains(t *testing.T) {
	r := newRegistry(t)
	op := create(t, r, "contains", "union select")
	if ok, _ := op.Execute(nil, "1 UNION union select * from users"); !ok {
		t.Fatal("expected substring match")
	}
}

func TestCompareFamily(t *testing.T) {
	r := newRegistry(t)
	cases := []struct {
		name  string
		value string
		want  bool
	}{
		{"gt", "10", true},
		{"ge", "5", true},
		{"lt", "1", true},
		{"le", "5", true},
		{"eq", "5", true},
	}
	for _, c := range cases {
		op := create(t, r, c.name, "5")
		got, err := op.Execute(nil, c.value)
		if err != nil {
			t.Fatalf("%s: %v", c.name, err)
		}
		if got != c.want {
			t.Fatalf("%s(%s,5) = %v, want %v", c.name, c.value, got, c.want)
		}
	}
}

func TestExistsAcceptsNull(t *testing.T) {
	r := newRegistry(t)
	arena := sentrytx.NewArena()
	inst, err := r.Create(arena, "exists", "", false)
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	if ok, _ := inst.Execute(nil, nil); ok {
		t.Fatal("expected false for nil field")
	}
	if ok, _ := inst.Execute(nil, "x"); !ok {
		t.Fatal("expected true for non-nil field")
	}
}

func TestIPMatchCIDRAndExact(t *testing.T) {
	r := newRegistry(t)
	op := create(t, r, "ipmatch", "10.0.0.0/8, 192.168.1.1")
	if ok, _ := op.Execute(nil, "10.1.2.3"); !ok {
		t.Fatal("expected CIDR match")
	}
	if ok, _ := op.Execute(nil, "192.168.1.1"); !ok {
		t.Fatal("expected exact match")
	}
	if ok, _ := op.Execute(nil, "8.8.8.8"); ok {
		t.Fatal("expected no match")
	}
}

func TestInvertFlag(t *testing.T) {
	r := newRegistry(t)
	arena := sentrytx.NewArena()
	inst, err := r.Create(arena, "streq", "admin", true)
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	if ok, _ := inst.Execute(nil, "admin"); ok {
		t.Fatal("expected inverted match to be false")
	}
	if ok, _ := inst.Execute(nil, "guest"); !ok {
		t.Fatal("expected inverted mismatch to be true")
	}
}
