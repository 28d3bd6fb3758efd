// Copyright © 2026 Jonathan Whitaker <github@whitaker.io>.
//
// Use of this source code is governed by an MIT-style
// license that can be found in the LICENSE file.

package store

import (
	"context"
	"strconv"
	"sync"
	"time"
)

// Mem is an in-process Store, used by cmd/sentryd when no external store is
// configured and by tests that want ratelimit behaviour without a Redis
// server.
type Mem struct {
	mu   sync.Mutex
	vals map[string]string
	exp  map[string]time.Time
}

// NewMem returns an empty in-memory store.
func NewMem() *Mem {
	return &Mem{vals: map[string]string{}, exp: map[string]time.Time{}}
}

func (m *Mem) expired(key string) bool {
	t, ok := m.exp[key]
	return ok && time.Now().After(t)
}

func (m *Mem) Incr(ctx context.Context, key string, ttl time.Duration) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.expired(key) {
		delete(m.vals, key)
		delete(m.exp, key)
	}

	var n int64
	if v, ok := m.vals[key]; ok {
		n, _ = strconv.ParseInt(v, 10, 64)
	}
	n++
	m.vals[key] = strconv.FormatInt(n, 10)
	if _, had := m.exp[key]; !had && ttl > 0 {
		m.exp[key] = time.Now().Add(ttl)
	}
	return n, nil
}

func (m *Mem) Get(ctx context.Context, key string) (string, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.expired(key) {
		delete(m.vals, key)
		delete(m.exp, key)
		return "", false, nil
	}
	v, ok := m.vals[key]
	return v, ok, nil
}

func (m *Mem) Set(ctx context.Context, key, value string, ttl time.Duration) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.vals[key] = value
	if ttl > 0 {
		m.exp[key] = time.Now().Add(ttl)
	} else {
		delete(m.exp, key)
	}
	return nil
}

var _ Store = (*Mem)(nil)
