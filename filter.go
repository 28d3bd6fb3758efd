// Copyright © 2026 Jonathan Whitaker <github@whitaker.io>.
//
// Use of this source code is governed by an MIT-style
// license that can be found in the LICENSE file.

package sentrytx

// Direction distinguishes the request-body and response-body filter
// contexts a TX carries.
type Direction int

const (
	DirectionRequest Direction = iota
	DirectionResponse
)

func (d Direction) String() string {
	if d == DirectionResponse {
		return "response"
	}
	return "request"
}

// BufferMode is one of the five buffering policies a filter context can
// run under.
type BufferMode int

const (
	ModeNoBuf BufferMode = iota
	ModeDiscard
	ModeBufferAll
	ModeBufferFlushAll
	ModeBufferFlushPart
)

// FlushAll is the nbytes sentinel meaning "flush everything currently
// buffered".
const FlushAll int64 = -1

// FilterContext is the per-direction buffering state machine: it buffers
// body chunks, applies deferred edits, and drives the transport's
// reenable/complete signalling. One FilterContext lives for the lifetime
// of one TX's one direction and is torn down via the TX arena.
type FilterContext struct {
	tx        *TX
	dir       Direction
	transport Transport

	input  Buffer
	reader Reader

	output Buffer
	vio    WriteIntent

	bytesDone uint64
	offs      int64
	buffered  int64
	bufLimit  int64

	mode  BufferMode
	edits EditList

	initialized bool
	invalidEdit bool // sticky: set when an edit is dropped, surfaced once per flush
	closed      bool
}

func newFilterContext(tx *TX, dir Direction) *FilterContext {
	return &FilterContext{tx: tx, dir: dir, mode: ModeNoBuf}
}

// AddEdit enqueues an edit to be applied on the next Flush. Rule actions
// call this; it performs no validation against bytesDone, and Flush is solely
// responsible for rejecting overlaps.
func (f *FilterContext) AddEdit(e Edit) {
	f.edits.Add(e)
}

// BytesDone returns the number of input bytes already emitted or
// consumed-by-edit. Monotonic for the life of the context.
func (f *FilterContext) BytesDone() uint64 { return f.bytesDone }

// Offset returns the running sum of (len(replacement) - delete) applied so
// far.
func (f *FilterContext) Offset() int64 { return f.offs }

// Buffered returns the number of bytes currently resident in the input
// buffer reader.
func (f *FilterContext) Buffered() int64 { return f.buffered }

// Mode returns the context's current buffering mode.
func (f *FilterContext) Mode() BufferMode { return f.mode }

// Output returns the context's output buffer, the transport-owned sink
// Flush writes emitted bytes into. Exposed so a host (or a test driving
// the filter end-to-end against sentrytx/transport's MemBuffer) can read
// back what was actually emitted.
func (f *FilterContext) Output() Buffer { return f.output }

// VIO returns the context's write-intent handle, so a host or test can
// inspect the final byte count committed via SetNBytes and the reenable
// call count.
func (f *FilterContext) VIO() WriteIntent { return f.vio }

// ensureInit performs the lazy first-chunk initialisation: allocate the
// output buffer and write-intent, allocate the staging buffer and reader,
// and pick the buffering mode. Cleanup closures are registered
// on the TX arena so buffers are released at TX end regardless of exit
// path.
func (f *FilterContext) ensureInit(transport Transport) {
	if f.initialized {
		return
	}
	f.transport = transport
	f.output = transport.NewBuffer()
	f.tx.Arena.Defer(f.output.Destroy)

	f.input = transport.NewBuffer()
	f.tx.Arena.Defer(f.input.Destroy)
	f.reader = f.input.NewReader()

	f.vio = transport.WriteIntent(f.output.NewReader(), -1)

	f.mode, f.bufLimit = f.selectMode()
	f.initialized = true
}

// selectMode derives the buffering mode from engine config and TX flags:
// pick a mode from the configured limit/action, then forcibly downgrade
// to nobuf if inspection
// is disabled for this direction or the TX is in an allow-all bypass state.
func (f *FilterContext) selectMode() (BufferMode, int64) {
	cfg := f.tx.Engine.Config
	flags := f.tx.Flags()

	var (
		enabled     bool
		limit       int64
		limitAction BufferLimitAction
		inspectHdr  TxFlags
		inspectBody TxFlags
		allowMask   TxFlags
	)

	if f.dir == DirectionRequest {
		enabled = cfg.BufferRequest
		limit = cfg.RequestBodyBufferLimit
		limitAction = cfg.RequestBodyBufferLimitAction
		inspectHdr = TxFlagInspectReqHdr
		inspectBody = TxFlagInspectReqBody
		allowMask = TxFlagAllowAll | TxFlagAllowRequest
	} else {
		enabled = cfg.BufferResponse
		limit = cfg.ResponseBodyBufferLimit
		limitAction = cfg.ResponseBodyBufferLimitAction
		inspectHdr = TxFlagInspectResHdr
		inspectBody = TxFlagInspectResBody
		allowMask = TxFlagAllowAll
	}

	var mode BufferMode
	switch {
	case !enabled:
		mode = ModeNoBuf
	case limit < 0:
		mode = ModeBufferAll
	case limitAction == ActionFlushAll:
		mode = ModeBufferFlushAll
	default:
		mode = ModeBufferFlushPart
	}

	if mode != ModeNoBuf {
		if flags.HasAny(allowMask) || (!flags.Has(inspectBody) && !flags.Has(inspectHdr)) {
			mode = ModeNoBuf
		}
	}

	return mode, limit
}

// OnChunk is called once per body chunk the host delivers. The caller is
// expected to have already notified the engine of the raw bytes
// (triggering whatever rules append to the edit list) before calling this;
// OnChunk itself only buffers/flushes according to the selected mode.
func (f *FilterContext) OnChunk(transport Transport, src Reader, nbytes int64) error {
	f.ensureInit(transport)
	return f.bufferDataChunk(src, nbytes)
}

// bufferDataChunk stages one chunk: copy (zero-copy share) nbytes from
// src into the staging buffer, then flush according to the selected mode.
func (f *FilterContext) bufferDataChunk(src Reader, nbytes int64) error {
	if f.mode == ModeDiscard {
		if f.buffered > 0 {
			f.reader.Consume(f.buffered)
			f.buffered = 0
		}
		src.Consume(nbytes)
		return nil
	}

	if f.mode == ModeBufferFlushAll && f.buffered+nbytes > f.bufLimit {
		if err := f.Flush(FlushAll, false); err != nil && !IsKind(err, KindInvalidEdit) {
			return err
		}
	}

	copied, err := f.input.CopyFrom(src, nbytes)
	if err != nil {
		return E(KindFatal, "buffer_data_chunk", err)
	}
	f.buffered += copied

	switch f.mode {
	case ModeNoBuf:
		return f.flushOrInvalidEdit(FlushAll, false)
	case ModeBufferFlushPart:
		if f.buffered > f.bufLimit {
			return f.flushOrInvalidEdit(f.buffered-f.bufLimit, false)
		}
	}
	return nil
}

func (f *FilterContext) flushOrInvalidEdit(nbytes int64, last bool) error {
	err := f.Flush(nbytes, last)
	if err != nil && IsKind(err, KindInvalidEdit) {
		return nil
	}
	return err
}

// OnEnd flushes all remaining data with last=true and signals write-complete
// upstream.
func (f *FilterContext) OnEnd(transport Transport) error {
	f.ensureInit(transport)
	err := f.Flush(FlushAll, true)
	if err != nil && !IsKind(err, KindInvalidEdit) {
		return err
	}
	return nil
}

// OnError discards any remaining buffered bytes and marks the context
// closed; the host is expected to signal error upstream on the
// write-intent itself. Cancellation is cooperative.
func (f *FilterContext) OnError() {
	if f.reader != nil && f.buffered > 0 {
		f.reader.Consume(f.buffered)
		f.buffered = 0
	}
	f.closed = true
}

// Flush drains up to nbytesOrAll staged bytes to the output buffer,
// applying pending edits in ascending-start order on the way. nbytesOrAll is
// FlushAll to flush everything currently buffered, or an explicit byte
// count. Returns ErrAgain if an edit straddles the emit horizon and the
// caller should retry with more data (only possible when !last), and
// ErrInvalidEdit if one or more edits were dropped for overlap or
// out-of-range on a final flush (logged, never fatal).
func (f *FilterContext) Flush(nbytesOrAll int64, last bool) error {
	nbytes := nbytesOrAll
	if nbytes == FlushAll {
		nbytes = f.buffered
	}

	f.invalidEdit = false
	var again bool

	if f.edits.Len() > 0 {
		for _, e := range f.sortedPending() {
			if again {
				break
			}
			switch {
			case e.Start < f.bytesDone:
				// Overlap with already-emitted bytes: drop, record, continue.
				f.invalidEdit = true
				f.edits.remove(e.seq)

			case e.Start+e.Delete > f.bytesDone+uint64(nbytes):
				if !last {
					// Clip nbytes to flush only up to this edit's start and
					// leave it (and everything after) for the next call.
					nbytes = int64(e.Start - f.bytesDone)
					again = true
				} else {
					f.invalidEdit = true
					f.edits.remove(e.seq)
				}

			default:
				// Copy verbatim bytes up to the edit, discard the deleted
				// span, write the replacement, and account for the size
				// delta.
				verbatim := int64(e.Start - f.bytesDone)
				if err := f.copyVerbatim(verbatim); err != nil {
					return err
				}
				nbytes -= verbatim

				f.reader.Consume(int64(e.Delete))
				f.buffered -= int64(e.Delete)
				f.bytesDone += e.Delete
				nbytes -= int64(e.Delete)

				n, err := f.output.Write(e.Replacement)
				if err != nil {
					return E(KindFatal, "flush", err)
				}
				f.offs += int64(n) - int64(e.Delete)
				f.edits.remove(e.seq)
			}
		}
	}

	if err := f.copyVerbatim(nbytes); err != nil {
		return err
	}

	if last {
		f.vio.SetNBytes(int64(f.bytesDone) + f.offs)
	}
	f.vio.Reenable()

	switch {
	case again:
		return ErrAgain
	case f.invalidEdit:
		return ErrInvalidEdit
	default:
		return nil
	}
}

// sortedPending returns the edit list's current contents ordered ascending
// by Start. Taken as a snapshot because Flush mutates
// the live list (via remove) while iterating logical edits in order.
func (f *FilterContext) sortedPending() []Edit {
	return f.edits.sorted()
}

// copyVerbatim shares n bytes from the staging reader into the output
// buffer via the transport's zero-copy CopyFrom, advancing bytesDone and
// buffered. n of 0 is a no-op.
func (f *FilterContext) copyVerbatim(n int64) error {
	for n > 0 {
		copied, err := f.output.CopyFrom(f.reader, n)
		if err != nil {
			return E(KindFatal, "flush", err)
		}
		if copied <= 0 {
			break
		}
		f.reader.Consume(copied)
		f.buffered -= copied
		f.bytesDone += uint64(copied)
		n -= copied
	}
	return nil
}
