// Copyright © 2026 Jonathan Whitaker <github@whitaker.io>.
//
// Use of this source code is governed by an MIT-style
// license that can be found in the LICENSE file.

package transport

import "testing"

func TestMemBufferCopyFromZeroCopyShare(t *testing.T) {
	src := NewMemBuffer()
	reader := src.NewReader()
	if _, err := src.Write([]byte("HelloWorld")); err != nil {
		t.Fatalf("write: %v", err)
	}

	dst := NewMemBuffer()
	copied, err := dst.CopyFrom(reader, 5)
	if err != nil {
		t.Fatalf("copy: %v", err)
	}
	if copied != 5 {
		t.Fatalf("copied = %d, want 5", copied)
	}
	reader.Consume(5)

	if got := string(dst.Bytes()); got != "Hello" {
		t.Fatalf("dst = %q, want %q", got, "Hello")
	}
	if avail := reader.Avail(); avail != 5 {
		t.Fatalf("avail = %d, want 5", avail)
	}
}

func TestMemReaderConsumeAcrossBlocks(t *testing.T) {
	buf := NewMemBuffer()
	r := buf.NewReader()
	buf.Write([]byte("abc"))
	buf.Write([]byte("def"))

	if avail := r.Avail(); avail != 6 {
		t.Fatalf("avail = %d, want 6", avail)
	}
	r.Consume(4)
	if avail := r.Avail(); avail != 2 {
		t.Fatalf("avail after consume = %d, want 2", avail)
	}
	if got := string(r.Peek(2)); got != "ef" {
		t.Fatalf("peek = %q, want %q", got, "ef")
	}
}

func TestMemWriteIntentFinalNBytes(t *testing.T) {
	buf := NewMemBuffer()
	vio := &MemWriteIntent{reader: buf.NewReader(), ntodo: -1}
	if _, ok := vio.FinalNBytes(); ok {
		t.Fatalf("expected no final nbytes before SetNBytes")
	}
	vio.SetNBytes(42)
	n, ok := vio.FinalNBytes()
	if !ok || n != 42 {
		t.Fatalf("FinalNBytes() = (%d, %v), want (42, true)", n, ok)
	}
	vio.Reenable()
	vio.Reenable()
	if vio.ReenableCount() != 2 {
		t.Fatalf("ReenableCount() = %d, want 2", vio.ReenableCount())
	}
}
