// Copyright © 2026 Jonathan Whitaker <github@whitaker.io>.
//
// Use of this source code is governed by an MIT-style
// license that can be found in the LICENSE file.

package sentrytx

import (
	"sync"

	"github.com/google/uuid"
)

// LogEntry is one line of a TX's accumulated rule-activity log, read back
// by the host through TX.Log. The telemetry package does not read it.
type LogEntry struct {
	RuleID  string
	Phase   Phase
	Verdict bool
	Action  string
	Err     error
}

// TX is the unit of processing: a stable id, a lifecycle flag
// bitfield, a reference to the owning engine, a per-transaction arena, a
// directional pair of filter contexts, and an attribute bag. It is created
// by the host at request start, mutated only by engine-owned code, and
// destroyed at transaction end via Close.
type TX struct {
	ID     string
	Engine *Engine
	Arena  *Arena
	Fields *Fields

	Request  *FilterContext
	Response *FilterContext

	mu     sync.Mutex
	flags  TxFlags
	log    []LogEntry
	status int
}

// NewTX builds a TX owned by e, seeding its lifecycle flags from e.Config's
// inspection settings and allocating its arena and both
// filter contexts. The host must call Close when the transaction ends.
func NewTX(e *Engine) *TX {
	arena := NewArena()
	tx := &TX{
		ID:     uuid.New().String(),
		Engine: e,
		Arena:  arena,
		Fields: NewFields(),
	}

	var flags TxFlags
	if e.Config.InspectRequestHeader {
		flags |= TxFlagInspectReqHdr
	}
	if e.Config.InspectRequestBody {
		flags |= TxFlagInspectReqBody
	}
	if e.Config.InspectResponseHeader {
		flags |= TxFlagInspectResHdr
	}
	if e.Config.InspectResponseBody {
		flags |= TxFlagInspectResBody
	}
	tx.flags = flags

	tx.Request = newFilterContext(tx, DirectionRequest)
	tx.Response = newFilterContext(tx, DirectionResponse)
	return tx
}

// Flags returns the TX's current lifecycle flag word.
func (tx *TX) Flags() TxFlags {
	tx.mu.Lock()
	defer tx.mu.Unlock()
	return tx.flags
}

// UpdateFlags applies op to the TX's flag word. Actions use this to signal
// intent back to the host (block, allow-all bypass, phase-finished
// markers).
func (tx *TX) UpdateFlags(op FlagOp, mask TxFlags) error {
	tx.mu.Lock()
	defer tx.mu.Unlock()
	next, err := tx.flags.Update(op, mask)
	if err != nil {
		return err
	}
	tx.flags = next
	return nil
}

// SetStatus records an intended HTTP response status for the host to
// apply (the `setstatus` built-in action).
func (tx *TX) SetStatus(code int) {
	tx.mu.Lock()
	defer tx.mu.Unlock()
	tx.status = code
}

// Status returns the last status recorded via SetStatus, or 0 if none.
func (tx *TX) Status() int {
	tx.mu.Lock()
	defer tx.mu.Unlock()
	return tx.status
}

// AppendLog appends one structured log entry to the TX's activity log.
// Nothing drains it automatically; the host and tests read it via Log.
func (tx *TX) AppendLog(entry LogEntry) {
	tx.mu.Lock()
	defer tx.mu.Unlock()
	tx.log = append(tx.log, entry)
}

// Log returns a copy of the TX's accumulated log entries.
func (tx *TX) Log() []LogEntry {
	tx.mu.Lock()
	defer tx.mu.Unlock()
	out := make([]LogEntry, len(tx.log))
	copy(out, tx.log)
	return out
}

// Close releases the TX's arena, tearing down every transport buffer,
// reader, and script context registered against it, regardless of how the
// transaction exited. Safe to call more than once.
func (tx *TX) Close() {
	tx.Arena.Release()
}
