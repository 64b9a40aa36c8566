// Copyright 2015 Google Inc. All Rights Reserved.
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

// Package registry maps (instance, name) pairs to connected back-ends and
// their advertised capabilities, and lets a caller block until a named
// back-end appears.
package registry

import (
	"context"
	"errors"
	"sync"

	"github.com/google/uuid"

	"github.com/vfsmux/vfsmux/backend"
)

// ErrNoSuchBackend is returned by Resolve when the (instance, name) pair is
// unknown and the caller did not opt into waiting.
var ErrNoSuchBackend = errors.New("registry: no such backend")

type key struct {
	instance uint32
	name     string
}

type entry struct {
	handle backend.Handle
	connID uuid.UUID
	caps   backend.Capabilities
	server backend.Server
}

// Registry is the back-end registry: a single mutex guarding a map plus a
// condition variable broadcast to on every Register, so Resolve's blocking
// form never busy-polls.
type Registry struct {
	mu      sync.Mutex
	cond    *sync.Cond
	entries map[key]entry
	next    backend.Handle
}

func New() *Registry {
	r := &Registry{
		entries: make(map[key]entry),
		next:    1,
	}
	r.cond = sync.NewCond(&r.mu)
	return r
}

// Register inserts the mapping for a back-end connecting inbound and wakes
// any Resolve callers blocked waiting for it. The returned handle is stable
// for the lifetime of the connection; the returned UUID is a
// connection-scoped correlation id (surfaced in debug logs and the
// REGISTER ack) distinct from the handle, which is only ever unique within
// this process's lifetime and reused across restarts.
func (r *Registry) Register(instance uint32, name string, caps backend.Capabilities, server backend.Server) (backend.Handle, uuid.UUID) {
	r.mu.Lock()
	defer r.mu.Unlock()

	h := r.next
	r.next++
	id := uuid.New()

	r.entries[key{instance, name}] = entry{handle: h, connID: id, caps: caps, server: server}
	r.cond.Broadcast()

	return h, id
}

// ConnID returns the correlation id assigned at Register time for
// (instance, name), or the zero UUID if no such mapping exists.
func (r *Registry) ConnID(instance uint32, name string) uuid.UUID {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.entries[key{instance, name}].connID
}

// Deregister removes the mapping, e.g. when a back-end's connection drops.
func (r *Registry) Deregister(instance uint32, name string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	delete(r.entries, key{instance, name})
}

// Resolve returns the handle and server for (instance, name). If absent and
// ctx is non-nil, Resolve blocks until the back-end registers or ctx is
// done, whichever happens first. A nil ctx makes Resolve non-blocking:
// absence is reported immediately as ErrNoSuchBackend.
func (r *Registry) Resolve(ctx context.Context, instance uint32, name string) (backend.Handle, backend.Server, error) {
	k := key{instance, name}

	r.mu.Lock()
	defer r.mu.Unlock()

	if ctx == nil {
		e, ok := r.entries[k]
		if !ok {
			return 0, nil, ErrNoSuchBackend
		}
		return e.handle, e.server, nil
	}

	// Wake the waiter loop below when ctx is cancelled, by broadcasting
	// once more; the loop rechecks ctx.Err() each time it wakes.
	done := make(chan struct{})
	defer close(done)
	go func() {
		select {
		case <-ctx.Done():
			r.mu.Lock()
			r.cond.Broadcast()
			r.mu.Unlock()
		case <-done:
		}
	}()

	for {
		if e, ok := r.entries[k]; ok {
			return e.handle, e.server, nil
		}
		if err := ctx.Err(); err != nil {
			return 0, nil, err
		}
		r.cond.Wait()
	}
}

// Info fetches the capability record for a handle registered under
// (instance, name). Returns false if no such mapping exists.
func (r *Registry) Info(instance uint32, name string) (backend.Capabilities, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	e, ok := r.entries[key{instance, name}]
	return e.caps, ok
}
