// Copyright © 2026 Jonathan Whitaker <github@whitaker.io>.
//
// Use of this source code is governed by an MIT-style
// license that can be found in the LICENSE file.

package sentrytx

import "sort"

// Edit is a deferred in-stream byte-range replacement: replace
// Delete bytes starting at the absolute stream offset Start with
// Replacement.
type Edit struct {
	Start       uint64
	Delete      uint64
	Replacement []byte

	seq int // insertion order, for stable tie-breaking on equal Start
}

// EditList is the ordered collection of pending edits for one filter
// context. Edits apply in ascending-start order, ties broken by insertion
// order.
type EditList struct {
	edits []Edit
	next  int
}

// Add appends e to the list. Start is an absolute stream offset; Add does
// not validate it against bytesDone; that check happens during Flush so
// an edit added before its data has arrived is still valid.
func (l *EditList) Add(e Edit) {
	e.seq = l.next
	l.next++
	l.edits = append(l.edits, e)
}

// Len reports how many edits are still pending.
func (l *EditList) Len() int { return len(l.edits) }

// sorted returns the pending edits ordered by Start ascending, ties broken
// by insertion order.
func (l *EditList) sorted() []Edit {
	out := make([]Edit, len(l.edits))
	copy(out, l.edits)
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].Start != out[j].Start {
			return out[i].Start < out[j].Start
		}
		return out[i].seq < out[j].seq
	})
	return out
}

// remove deletes the edit with the given seq from the live list.
func (l *EditList) remove(seq int) {
	for i, e := range l.edits {
		if e.seq == seq {
			l.edits = append(l.edits[:i], l.edits[i+1:]...)
			return
		}
	}
}
