// Copyright © 2026 Jonathan Whitaker <github@whitaker.io>.
//
// Use of this source code is governed by an MIT-style
// license that can be found in the LICENSE file.

package sentrytx

import "sync"

// OperatorCapability advertises what an operator accepts. It is consulted
// at execution time only (see OperatorInstance.Execute); registration does
// not check it.
type OperatorCapability uint32

const (
	CapNone OperatorCapability = 0
	// CapAcceptsNull lets an operator run against a nil field, which is
	// what `external` rules always pass.
	CapAcceptsNull OperatorCapability = 1 << 0
	// CapStreaming marks an operator that expects to be invoked once per
	// body chunk rather than once against a fully-resolved field.
	CapStreaming OperatorCapability = 1 << 1
)

// OperatorDescriptor is the registration-time shape of an operator: its
// name, what it accepts, and its create/execute/destroy lifecycle
// functions.
//
// Create parses params (the argument text that follows the operator name in
// the rule directive) once, at registration time, and returns opaque state that
// Execute reuses on every invocation: a compiled regexp, a parsed CIDR
// list, whatever the operator needs to avoid re-parsing params per
// transaction. Execute must be safe to call concurrently from multiple
// transactions; state built by Create is therefore read-only after
// construction.
type OperatorDescriptor struct {
	Name         string
	Capabilities OperatorCapability
	Create       func(arena *Arena, params string) (interface{}, error)
	Execute      func(tx *TX, state interface{}, field interface{}) (bool, error)
	Destroy      func(state interface{})
}

// OperatorInstance binds a descriptor to the params and invert flag a
// particular rule declared it with.
type OperatorInstance struct {
	Descriptor *OperatorDescriptor
	Params     string
	Invert     bool
	state      interface{}
}

// Execute runs the operator against field, applying invert if the rule was
// declared with a leading '!' on its operator.
func (oi *OperatorInstance) Execute(tx *TX, field interface{}) (bool, error) {
	if field == nil && oi.Descriptor.Capabilities&CapAcceptsNull == 0 {
		return false, nil
	}
	result, err := oi.Descriptor.Execute(tx, oi.state, field)
	if err != nil {
		return false, err
	}
	if oi.Invert {
		result = !result
	}
	return result, nil
}

// OperatorRegistry maps operator names to descriptors. It is written to at
// configuration time (module init, rule-file load) and read from
// concurrently once traffic starts; the mutex only ever contends during
// startup.
type OperatorRegistry struct {
	mu    sync.RWMutex
	descs map[string]*OperatorDescriptor
}

// NewOperatorRegistry returns an empty registry.
func NewOperatorRegistry() *OperatorRegistry {
	return &OperatorRegistry{descs: map[string]*OperatorDescriptor{}}
}

// Register adds d under d.Name. Re-registering the exact same descriptor
// pointer is a no-op (modules that register idempotently on repeated
// load should not have to guard against it themselves); registering a
// different descriptor under a name already taken is a conflict.
func (r *OperatorRegistry) Register(d *OperatorDescriptor) error {
	if d == nil || d.Name == "" {
		return E(KindInvalid, "operator_register", errFmt("operator descriptor must have a name"))
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if existing, ok := r.descs[d.Name]; ok {
		if existing == d {
			return nil
		}
		return E(KindInvalid, "operator_register", errFmt("operator %q already registered", d.Name))
	}
	r.descs[d.Name] = d
	return nil
}

// Lookup returns the descriptor registered under name, if any.
func (r *OperatorRegistry) Lookup(name string) (*OperatorDescriptor, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	d, ok := r.descs[name]
	return d, ok
}

// Create resolves name to a descriptor and builds an OperatorInstance from
// params, registering the descriptor's Destroy (if any) against arena.
func (r *OperatorRegistry) Create(arena *Arena, name, params string, invert bool) (*OperatorInstance, error) {
	d, ok := r.Lookup(name)
	if !ok {
		return nil, E(KindNotFound, "operator_create", errFmt("unknown operator %q", name))
	}
	var state interface{}
	if d.Create != nil {
		var err error
		state, err = d.Create(arena, params)
		if err != nil {
			return nil, E(KindInvalid, "operator_create", err)
		}
	}
	inst := &OperatorInstance{Descriptor: d, Params: params, Invert: invert, state: state}
	if d.Destroy != nil {
		arena.Defer(func() { d.Destroy(inst.state) })
	}
	return inst, nil
}
