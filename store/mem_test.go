// Copyright © 2026 Jonathan Whitaker <github@whitaker.io>.
//
// Use of this source code is governed by an MIT-style
// license that can be found in the LICENSE file.

package store

import (
	"context"
	"testing"
	"time"
)

func TestMemIncr(t *testing.T) {
	m := NewMem()
	ctx := context.Background()

	for want := int64(1); want <= 3; want++ {
		n, err := m.Incr(ctx, "k", time.Minute)
		if err != nil {
			t.Fatalf("Incr: %v", err)
		}
		if n != want {
			t.Fatalf("Incr = %d, want %d", n, want)
		}
	}
}

func TestMemGetSet(t *testing.T) {
	m := NewMem()
	ctx := context.Background()

	if _, ok, _ := m.Get(ctx, "missing"); ok {
		t.Fatal("expected missing key to be absent")
	}
	if err := m.Set(ctx, "k", "v", 0); err != nil {
		t.Fatalf("Set: %v", err)
	}
	v, ok, err := m.Get(ctx, "k")
	if err != nil || !ok || v != "v" {
		t.Fatalf("Get = (%q, %v, %v), want (\"v\", true, nil)", v, ok, err)
	}
}

func TestMemIncrExpiry(t *testing.T) {
	m := NewMem()
	ctx := context.Background()
	if _, err := m.Incr(ctx, "k", time.Nanosecond); err != nil {
		t.Fatalf("Incr: %v", err)
	}
	time.Sleep(time.Millisecond)
	n, err := m.Incr(ctx, "k", time.Minute)
	if err != nil {
		t.Fatalf("Incr: %v", err)
	}
	if n != 1 {
		t.Fatalf("Incr after expiry = %d, want 1", n)
	}
}
