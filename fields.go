// Copyright © 2026 Jonathan Whitaker <github@whitaker.io>.
//
// Use of this source code is governed by an MIT-style
// license that can be found in the LICENSE file.

package sentrytx

// Fields is the transaction attribute bag: an ordered mapping from
// field-name to field-value that operators read their inputs from. Order is
// preserved because selector resolution and `log` actions should observe
// fields in the order they were set, not map iteration order.
type Fields struct {
	order []string
	data  map[string]interface{}
}

// NewFields returns an empty attribute bag.
func NewFields() *Fields {
	return &Fields{data: map[string]interface{}{}}
}

// Set assigns name to value, appending name to the insertion order the
// first time it is seen.
func (f *Fields) Set(name string, value interface{}) {
	if _, ok := f.data[name]; !ok {
		f.order = append(f.order, name)
	}
	f.data[name] = value
}

// Get resolves a single field selector. ok is false if the selector has
// never been set; operators treat that as an absent field, not as an
// error; only `external` rules may legitimately have nothing to resolve.
func (f *Fields) Get(name string) (interface{}, bool) {
	v, ok := f.data[name]
	return v, ok
}

// Delete removes name from the bag, if present.
func (f *Fields) Delete(name string) {
	if _, ok := f.data[name]; !ok {
		return
	}
	delete(f.data, name)
	for i, n := range f.order {
		if n == name {
			f.order = append(f.order[:i], f.order[i+1:]...)
			break
		}
	}
}

// Names returns field names in insertion order.
func (f *Fields) Names() []string {
	out := make([]string, len(f.order))
	copy(out, f.order)
	return out
}

// Len returns the number of fields currently set.
func (f *Fields) Len() int { return len(f.order) }

// Clone returns a shallow copy of the bag: field values are not deep-copied,
// but the bag itself (order and key set) is independent of the original.
func (f *Fields) Clone() *Fields {
	out := &Fields{
		order: make([]string, len(f.order)),
		data:  make(map[string]interface{}, len(f.data)),
	}
	copy(out.order, f.order)
	for k, v := range f.data {
		out.data[k] = v
	}
	return out
}
