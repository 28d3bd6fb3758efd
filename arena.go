// Copyright © 2026 Jonathan Whitaker <github@whitaker.io>.
//
// Use of this source code is governed by an MIT-style
// license that can be found in the LICENSE file.

package sentrytx

import "sync"

// Arena owns cleanup closures for resources allocated on behalf of a
// transaction: transport buffers, reader handles, per-invocation script
// contexts. Cyclic resource graphs (a filter context referencing
// reference-counted transport buffers) never need back-references: the
// arena is the single owner, and everything else holds non-owning
// references. Cleanups run in reverse registration order, mirroring a
// defer stack, and Release is safe to call more than once.
type Arena struct {
	mu       sync.Mutex
	cleanups []func()
	released bool
}

// NewArena returns an empty arena.
func NewArena() *Arena {
	return &Arena{}
}

// Defer registers a cleanup to run when the arena is released. Cleanups
// registered later run first (LIFO), so a resource that depends on an
// earlier one is always torn down before it.
func (a *Arena) Defer(cleanup func()) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.released {
		cleanup()
		return
	}
	a.cleanups = append(a.cleanups, cleanup)
}

// Release runs every registered cleanup in reverse order. It is idempotent:
// calling it again after the first release is a no-op, so every TX exit
// path (success, error, host-initiated close) can call it unconditionally.
func (a *Arena) Release() {
	a.mu.Lock()
	if a.released {
		a.mu.Unlock()
		return
	}
	a.released = true
	cleanups := a.cleanups
	a.cleanups = nil
	a.mu.Unlock()

	for i := len(cleanups) - 1; i >= 0; i-- {
		cleanups[i]()
	}
}
