// Copyright © 2026 Jonathan Whitaker <github@whitaker.io>.
//
// Use of this source code is governed by an MIT-style
// license that can be found in the LICENSE file.

package sentrytx_test

import (
	"errors"
	"testing"

	"github.com/whitaker-io/sentrytx"
	"github.com/whitaker-io/sentrytx/transport"
)

// newChunk returns a reader over a fresh buffer holding data, allocated
// the way FilterContext itself allocates its input reader: before any
// bytes are written, so the reader actually observes them (MemBuffer's
// NewReader only sees blocks appended after allocation).
func newChunk(data string) sentrytx.Reader {
	buf := transport.NewMemBuffer()
	r := buf.NewReader()
	buf.Write([]byte(data))
	return r
}

func outputBytes(f *sentrytx.FilterContext) string {
	return string(f.Output().(*transport.MemBuffer).Bytes())
}

// TestFilterNoBufByteConservation: "HelloWorld" in five 2-byte chunks
// under nobuf, no edits, each chunk flushed immediately and the output
// byte-for-byte equal to the input.
func TestFilterNoBufByteConservation(t *testing.T) {
	cfg := sentrytx.DefaultConfig()
	cfg.BufferRequest = false
	e := sentrytx.NewEngine(cfg)
	tx := sentrytx.NewTX(e)
	tr := transport.NewMemTransport()
	f := tx.Request

	input := "HelloWorld"
	for i := 0; i < len(input); i += 2 {
		chunk := input[i : i+2]
		if err := f.OnChunk(tr, newChunk(chunk), 2); err != nil {
			t.Fatalf("OnChunk(%q): %v", chunk, err)
		}
	}

	if got := outputBytes(f); got != input {
		t.Fatalf("output = %q, want %q", got, input)
	}
	if f.Mode() != sentrytx.ModeNoBuf {
		t.Fatalf("mode = %v, want ModeNoBuf", f.Mode())
	}
	vio := f.VIO().(*transport.MemWriteIntent)
	if n := vio.ReenableCount(); n != 5 {
		t.Fatalf("ReenableCount() = %d, want 5 (one flush per chunk)", n)
	}
}

// TestFilterSingleEditWithinOneFlush: "HelloWorld" buffered whole, edit
// {5,5,"There"} -> "HelloThere", offs=0.
func TestFilterSingleEditWithinOneFlush(t *testing.T) {
	cfg := sentrytx.DefaultConfig() // RequestBodyBufferLimit < 0 -> ModeBufferAll
	e := sentrytx.NewEngine(cfg)
	tx := sentrytx.NewTX(e)
	tr := transport.NewMemTransport()
	f := tx.Request

	if err := f.OnChunk(tr, newChunk("HelloWorld"), 10); err != nil {
		t.Fatalf("OnChunk: %v", err)
	}
	if f.Mode() != sentrytx.ModeBufferAll {
		t.Fatalf("mode = %v, want ModeBufferAll", f.Mode())
	}

	f.AddEdit(sentrytx.Edit{Start: 5, Delete: 5, Replacement: []byte("There")})

	if err := f.OnEnd(tr); err != nil {
		t.Fatalf("OnEnd: %v", err)
	}

	if got, want := outputBytes(f), "HelloThere"; got != want {
		t.Fatalf("output = %q, want %q", got, want)
	}
	if f.Offset() != 0 {
		t.Fatalf("offs = %d, want 0", f.Offset())
	}
	vio := f.VIO().(*transport.MemWriteIntent)
	n, ok := vio.FinalNBytes()
	if !ok || n != 10 {
		t.Fatalf("FinalNBytes() = (%d, %v), want (10, true)", n, ok)
	}
}

// TestFilterEditStraddlesFlushHorizon: streamed "Hello" then "World",
// edit {3,4,"p!"} applied before the second chunk arrives. The first
// flush must report again (the edit straddles the horizon); the second,
// after more data has arrived, must complete.
func TestFilterEditStraddlesFlushHorizon(t *testing.T) {
	cfg := sentrytx.DefaultConfig()
	e := sentrytx.NewEngine(cfg)
	tx := sentrytx.NewTX(e)
	tr := transport.NewMemTransport()
	f := tx.Request

	if err := f.OnChunk(tr, newChunk("Hello"), 5); err != nil {
		t.Fatalf("OnChunk(Hello): %v", err)
	}
	f.AddEdit(sentrytx.Edit{Start: 3, Delete: 4, Replacement: []byte("p!")})

	err := f.Flush(sentrytx.FlushAll, false)
	if !errors.Is(err, sentrytx.ErrAgain) {
		t.Fatalf("first flush err = %v, want ErrAgain", err)
	}

	if err := f.OnChunk(tr, newChunk("World"), 5); err != nil {
		t.Fatalf("OnChunk(World): %v", err)
	}

	if err := f.Flush(sentrytx.FlushAll, true); err != nil {
		t.Fatalf("second flush: %v", err)
	}

	if got, want := outputBytes(f), "Help!rld"; got != want {
		t.Fatalf("output = %q, want %q", got, want)
	}
	if f.Offset() != -2 {
		t.Fatalf("offs = %d, want -2", f.Offset())
	}
	vio := f.VIO().(*transport.MemWriteIntent)
	n, ok := vio.FinalNBytes()
	if !ok || n != 8 {
		t.Fatalf("FinalNBytes() = (%d, %v), want (8, true)", n, ok)
	}
}

// TestFilterOverlappingEditsDropSecond: two overlapping edits; the second
// is dropped as an invalid edit and the first still applies.
func TestFilterOverlappingEditsDropSecond(t *testing.T) {
	cfg := sentrytx.DefaultConfig()
	e := sentrytx.NewEngine(cfg)
	tx := sentrytx.NewTX(e)
	tr := transport.NewMemTransport()
	f := tx.Request

	if err := f.OnChunk(tr, newChunk("HelloWorld"), 10); err != nil {
		t.Fatalf("OnChunk: %v", err)
	}
	f.AddEdit(sentrytx.Edit{Start: 0, Delete: 3, Replacement: []byte("x")})
	f.AddEdit(sentrytx.Edit{Start: 1, Delete: 2, Replacement: []byte("y")})

	err := f.Flush(sentrytx.FlushAll, true)
	if !errors.Is(err, sentrytx.ErrInvalidEdit) {
		t.Fatalf("flush err = %v, want ErrInvalidEdit", err)
	}

	if got, want := outputBytes(f), "xloWorld"; got != want {
		t.Fatalf("output = %q, want %q", got, want)
	}
}

// TestFilterOnErrorDiscardsBuffered checks that OnError drops whatever is
// still sitting in the staging buffer rather than leaving it for a later
// flush that will never come.
func TestFilterOnErrorDiscardsBuffered(t *testing.T) {
	cfg := sentrytx.DefaultConfig()
	e := sentrytx.NewEngine(cfg)
	tx := sentrytx.NewTX(e)
	tr := transport.NewMemTransport()
	f := tx.Request

	if err := f.OnChunk(tr, newChunk("Hello"), 5); err != nil {
		t.Fatalf("OnChunk: %v", err)
	}
	if f.Buffered() != 5 {
		t.Fatalf("buffered = %d, want 5 before OnError", f.Buffered())
	}
	f.OnError()
	if f.Buffered() != 0 {
		t.Fatalf("buffered = %d, want 0 after OnError", f.Buffered())
	}
}
