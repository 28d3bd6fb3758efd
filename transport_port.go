// Copyright © 2026 Jonathan Whitaker <github@whitaker.io>.
//
// Use of this source code is governed by an MIT-style
// license that can be found in the LICENSE file.

package sentrytx

// This file defines the Transport I/O port: the minimal set of operations
// the body filter requires from the host intermediary's native
// transform/continuation API. The engine core depends only on these
// interfaces; sentrytx/transport provides a reference in-memory
// implementation modelled on Apache Traffic Server's
// TSIOBuffer/TSIOBufferReader/TSVIO semantics.

// Reader is a cursor over a Buffer's resident bytes (TSIOBufferReader).
type Reader interface {
	// Avail reports how many bytes are currently available to read
	// (TSIOBufferReaderAvail).
	Avail() int64
	// Consume discards n bytes from the front of the reader
	// (TSIOBufferReaderConsume).
	Consume(n int64)
	// Peek returns up to n bytes starting at the reader's current
	// position without consuming them (TSIOBufferBlockReadStart). It may return fewer than n bytes if
	// fewer are contiguously available; callers must not retain the
	// returned slice past the next mutation of the underlying buffer.
	Peek(n int64) []byte
}

// Buffer is a reference-counted, appendable byte sink (TSIOBuffer).
type Buffer interface {
	// NewReader allocates a fresh reader over the buffer's current and
	// future contents (TSIOBufferReaderAlloc).
	NewReader() Reader
	// Write copies p into the buffer, returning the number of bytes
	// written (TSIOBufferWrite). Used only for edit replacement bytes,
	// which are not zero-copy by nature.
	Write(p []byte) (int, error)
	// CopyFrom shares up to n bytes from src (starting at src's current
	// position) into the buffer without touching raw bytes, the
	// transport's reference-counted zero-copy discipline (TSIOBufferCopy).
	// It does not consume src; callers call src.Consume separately.
	CopyFrom(src Reader, n int64) (int64, error)
	// Destroy releases the buffer. Filter contexts register this against
	// the owning TX's arena rather than calling it directly.
	Destroy()
}

// WriteIntent is the transport-side handle representing an outstanding
// downstream write (TSVIO).
type WriteIntent interface {
	// SetNBytes commits the final total byte count the downstream peer
	// should expect (TSVIONBytesSet).
	SetNBytes(n int64)
	// Reenable signals the transport that more output may be available
	// (TSVIOReenable).
	Reenable()
	// NTodo reports how many bytes the transport still expects
	// (TSVIONTodoGet).
	NTodo() int64
	// NDoneInc advances the transport's done counter by n
	// (TSVIONDoneSet(vio, TSVIONDoneGet(vio)+n)).
	NDoneInc(n int64)
}

// Transport is the port the body filter drives: it creates buffers and
// obtains a write-intent for its output side. A reference in-memory
// implementation lives in sentrytx/transport.
type Transport interface {
	// NewBuffer allocates an empty Buffer (TSIOBufferCreate).
	NewBuffer() Buffer
	// WriteIntent obtains a WriteIntent over reader, for nbytesOrUnbounded
	// total bytes; a negative value means unbounded, mirroring
	// TSVConnWrite's unbounded-write convention.
	WriteIntent(reader Reader, nbytesOrUnbounded int64) WriteIntent
}
