// Copyright © 2026 Jonathan Whitaker <github@whitaker.io>.
//
// Use of this source code is governed by an MIT-style
// license that can be found in the LICENSE file.

// Package transport provides a reference, in-memory implementation of
// sentrytx's Transport I/O port, modelled on Apache Traffic Server's
// TSIOBuffer/TSIOBufferReader/TSVIO contract. It is sufficient to drive
// the body filter state machine end-to-end in tests and in cmd/sentryd's
// replay command, without a real reverse proxy.
package transport

import (
	"sync"

	"github.com/whitaker-io/sentrytx"
)

// block is one reference-counted slice of bytes appended to a Buffer.
// Copying a block between buffers (CopyFrom) shares the underlying slice
// and only tracks offsets, preserving the transport's zero-copy
// discipline for verbatim regions.
type block struct {
	data []byte
}

// MemBuffer is an in-memory, append-only byte sink implementing
// sentrytx.Buffer. Multiple readers may be allocated over the same
// buffer; each tracks its own consumption position independently.
type MemBuffer struct {
	mu     sync.Mutex
	blocks []*block
}

var (
	_ sentrytx.Buffer      = (*MemBuffer)(nil)
	_ sentrytx.Reader      = (*MemReader)(nil)
	_ sentrytx.WriteIntent = (*MemWriteIntent)(nil)
	_ sentrytx.Transport   = (*MemTransport)(nil)
)

// NewMemBuffer returns an empty buffer.
func NewMemBuffer() *MemBuffer {
	return &MemBuffer{}
}

// NewReader allocates a fresh MemReader starting at the buffer's current
// write position: it only ever sees blocks appended after allocation,
// matching TSIOBufferReaderAlloc's "sees everything written from now on"
// semantics used by the filter's output reader.
func (b *MemBuffer) NewReader() sentrytx.Reader {
	b.mu.Lock()
	defer b.mu.Unlock()
	return &MemReader{buf: b, blockIdx: len(b.blocks)}
}

// Write appends a private copy of p as a new block (TSIOBufferWrite);
// used only for edit replacement bytes, which are never zero-copy by
// nature since they are freshly produced content, not a share of the
// input stream.
func (b *MemBuffer) Write(p []byte) (int, error) {
	if len(p) == 0 {
		return 0, nil
	}
	cp := make([]byte, len(p))
	copy(cp, p)
	b.mu.Lock()
	b.blocks = append(b.blocks, &block{data: cp})
	b.mu.Unlock()
	return len(cp), nil
}

// CopyFrom shares up to n bytes from src into b without copying the
// underlying bytes (TSIOBufferCopy), when src is a *MemReader. It does not
// consume src. For any other sentrytx.Reader implementation it falls back
// to a Peek+Write copy, since the zero-copy path only exists between two
// MemBuffers.
func (b *MemBuffer) CopyFrom(src sentrytx.Reader, n int64) (int64, error) {
	if n <= 0 {
		return 0, nil
	}
	if mr, ok := src.(*MemReader); ok {
		views, copied := mr.peekBlocks(n)
		if copied == 0 {
			return 0, nil
		}
		b.mu.Lock()
		b.blocks = append(b.blocks, views...)
		b.mu.Unlock()
		return copied, nil
	}

	p := src.Peek(n)
	if len(p) == 0 {
		return 0, nil
	}
	written, err := b.Write(p)
	return int64(written), err
}

// Bytes returns the full concatenated contents currently in the buffer.
// Meant for tests and for cmd/sentryd's replay command to read out the
// engine's final output; a production host never needs this, since it
// reads the buffer through its own reader.
func (b *MemBuffer) Bytes() []byte {
	b.mu.Lock()
	defer b.mu.Unlock()
	var out []byte
	for _, blk := range b.blocks {
		out = append(out, blk.data...)
	}
	return out
}

// Destroy releases the buffer's blocks (TSIOBufferDestroy). Filter
// contexts register this against the owning TX's arena.
func (b *MemBuffer) Destroy() {
	b.mu.Lock()
	b.blocks = nil
	b.mu.Unlock()
}

// MemReader is a cursor over a MemBuffer implementing sentrytx.Reader.
type MemReader struct {
	mu       sync.Mutex
	buf      *MemBuffer
	blockIdx int // index of the first block still containing unread bytes
	blockOff int // offset within blocks[blockIdx] already consumed
}

// Avail reports how many unread bytes remain (TSIOBufferReaderAvail).
func (r *MemReader) Avail() int64 {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.buf.mu.Lock()
	defer r.buf.mu.Unlock()
	return r.availLocked()
}

func (r *MemReader) availLocked() int64 {
	var n int64
	for i := r.blockIdx; i < len(r.buf.blocks); i++ {
		l := len(r.buf.blocks[i].data)
		if i == r.blockIdx {
			l -= r.blockOff
		}
		n += int64(l)
	}
	return n
}

// Consume discards n bytes from the front of the reader
// (TSIOBufferReaderConsume).
func (r *MemReader) Consume(n int64) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.buf.mu.Lock()
	defer r.buf.mu.Unlock()

	for n > 0 && r.blockIdx < len(r.buf.blocks) {
		cur := r.buf.blocks[r.blockIdx]
		remaining := int64(len(cur.data) - r.blockOff)
		if n < remaining {
			r.blockOff += int(n)
			return
		}
		n -= remaining
		r.blockIdx++
		r.blockOff = 0
	}
}

// Peek returns up to n bytes from the current position without consuming
// them (TSIOBufferBlockReadStart). A single call never crosses a block
// boundary, matching the underlying transport's block-at-a-time contract;
// callers needing more call Peek again after Consume.
func (r *MemReader) Peek(n int64) []byte {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.buf.mu.Lock()
	defer r.buf.mu.Unlock()

	if r.blockIdx >= len(r.buf.blocks) {
		return nil
	}
	cur := r.buf.blocks[r.blockIdx].data[r.blockOff:]
	if int64(len(cur)) > n {
		cur = cur[:n]
	}
	return cur
}

// peekBlocks returns block-sized reference views covering up to n bytes
// from the reader's current position, without consuming them, and the
// total number of bytes they cover.
func (r *MemReader) peekBlocks(n int64) ([]*block, int64) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.buf.mu.Lock()
	defer r.buf.mu.Unlock()

	var out []*block
	var total int64
	idx := r.blockIdx
	off := r.blockOff
	for total < n && idx < len(r.buf.blocks) {
		data := r.buf.blocks[idx].data[off:]
		want := n - total
		if int64(len(data)) > want {
			data = data[:want]
		}
		out = append(out, &block{data: data})
		total += int64(len(data))
		idx++
		off = 0
	}
	return out, total
}

// MemTransport implements sentrytx.Transport over MemBuffer/MemReader and
// MemWriteIntent.
type MemTransport struct{}

// NewMemTransport returns a transport backed entirely by process memory.
func NewMemTransport() *MemTransport { return &MemTransport{} }

// NewBuffer allocates an empty MemBuffer (TSIOBufferCreate).
func (t *MemTransport) NewBuffer() sentrytx.Buffer { return NewMemBuffer() }

// WriteIntent obtains a MemWriteIntent over reader for nbytesOrUnbounded
// total bytes (TSVConnWrite).
func (t *MemTransport) WriteIntent(reader sentrytx.Reader, nbytesOrUnbounded int64) sentrytx.WriteIntent {
	return &MemWriteIntent{reader: reader, ntodo: nbytesOrUnbounded}
}

// MemWriteIntent implements sentrytx.WriteIntent for MemTransport.
type MemWriteIntent struct {
	mu           sync.Mutex
	reader       sentrytx.Reader
	ntodo        int64
	ndone        int64
	nbytesFinal  int64
	finalized    bool
	reenableHits int
}

// SetNBytes commits the final total byte count (TSVIONBytesSet).
func (v *MemWriteIntent) SetNBytes(n int64) {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.nbytesFinal = n
	v.finalized = true
}

// Reenable signals more output may be available (TSVIOReenable). The
// in-memory transport has nothing asynchronous to wake, so this only
// tracks a call count for test assertions.
func (v *MemWriteIntent) Reenable() {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.reenableHits++
}

// NTodo reports how many bytes the transport still expects
// (TSVIONTodoGet).
func (v *MemWriteIntent) NTodo() int64 {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.ntodo
}

// NDoneInc advances the transport's done counter by n
// (TSVIONDoneSet(vio, TSVIONDoneGet(vio)+n)).
func (v *MemWriteIntent) NDoneInc(n int64) {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.ndone += n
	if v.ntodo > 0 {
		v.ntodo -= n
	}
}

// FinalNBytes returns the value committed by SetNBytes, and whether it was
// ever called; tests use this to assert the final-size commitment
// contract.
func (v *MemWriteIntent) FinalNBytes() (int64, bool) {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.nbytesFinal, v.finalized
}

// ReenableCount returns how many times Reenable was called.
func (v *MemWriteIntent) ReenableCount() int {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.reenableHits
}
