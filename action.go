// Copyright © 2026 Jonathan Whitaker <github@whitaker.io>.
//
// Use of this source code is governed by an MIT-style
// license that can be found in the LICENSE file.

package sentrytx

import "sync"

// ActionDescriptor is the registration-time shape of an action. Unlike
// operators, actions have no boolean result: they run for
// side effect (set a flag, append a log entry, mutate a field) and either
// succeed or return an error.
type ActionDescriptor struct {
	Name    string
	Create  func(arena *Arena, params string) (interface{}, error)
	Execute func(tx *TX, state interface{}) error
}

// ActionInstance binds a descriptor to the params a particular rule
// declared it with.
type ActionInstance struct {
	Descriptor *ActionDescriptor
	Params     string
	state      interface{}
}

// Execute runs the action. A returned error aborts the rule that owns this
// action instance but never the phase: the scheduler logs it and continues
// to the next rule.
func (ai *ActionInstance) Execute(tx *TX) error {
	return ai.Descriptor.Execute(tx, ai.state)
}

// ActionRegistry maps action names to descriptors, with the same
// configuration-time-write / traffic-time-read discipline as
// OperatorRegistry.
type ActionRegistry struct {
	mu    sync.RWMutex
	descs map[string]*ActionDescriptor
}

// NewActionRegistry returns an empty registry.
func NewActionRegistry() *ActionRegistry {
	return &ActionRegistry{descs: map[string]*ActionDescriptor{}}
}

// Register adds d under d.Name, with the same re-registration rules as
// OperatorRegistry.Register.
func (r *ActionRegistry) Register(d *ActionDescriptor) error {
	if d == nil || d.Name == "" {
		return E(KindInvalid, "action_register", errFmt("action descriptor must have a name"))
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if existing, ok := r.descs[d.Name]; ok {
		if existing == d {
			return nil
		}
		return E(KindInvalid, "action_register", errFmt("action %q already registered", d.Name))
	}
	r.descs[d.Name] = d
	return nil
}

// Lookup returns the descriptor registered under name, if any.
func (r *ActionRegistry) Lookup(name string) (*ActionDescriptor, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	d, ok := r.descs[name]
	return d, ok
}

// Create resolves name to a descriptor and builds an ActionInstance from
// params. Actions have no Destroy hook in this engine: their state is
// either immutable (parsed params) or owned by the tx Fields bag, which the
// arena already tears down.
func (r *ActionRegistry) Create(arena *Arena, name, params string) (*ActionInstance, error) {
	d, ok := r.Lookup(name)
	if !ok {
		return nil, E(KindNotFound, "action_create", errFmt("unknown action %q", name))
	}
	var state interface{}
	if d.Create != nil {
		var err error
		state, err = d.Create(arena, params)
		if err != nil {
			return nil, E(KindInvalid, "action_create", err)
		}
	}
	return &ActionInstance{Descriptor: d, Params: params, state: state}, nil
}
