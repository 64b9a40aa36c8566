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

// Package mount implements the mount table and the Mount, Unmount, Rename
// and Unlink orchestration that ties the registry, exchange pools, node
// cache, descriptor table and namespace lock together.
package mount

import (
	"sync"

	"github.com/vfsmux/vfsmux/backend"
)

// Entry is one row of the mount table.
type Entry struct {
	Path        string
	BackendName string
	Options     string
	Instance    uint32
	Backend     backend.Handle
	Service     uint64
}

// Table is the mount list plus its own lock: it is taken and released
// around a single list edit, with no other lock acquired while it is held.
// Mount and Unmount take it while already holding the namespace write lock.
type Table struct {
	mu      sync.Mutex
	entries []*Entry
}

func NewTable() *Table {
	return &Table{}
}

// Append inserts e at the end of the list.
func (t *Table) Append(e *Entry) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.entries = append(t.entries, e)
}

// RemoveByService removes and returns the entry for (backendHandle,
// service), matching by back-end identity rather than by path, so a
// placeholder or stale path string in an entry can never cause unmount to
// match the wrong row.
func (t *Table) RemoveByService(h backend.Handle, service uint64) *Entry {
	t.mu.Lock()
	defer t.mu.Unlock()

	for i, e := range t.entries {
		if e.Backend == h && e.Service == service {
			t.entries = append(t.entries[:i], t.entries[i+1:]...)
			return e
		}
	}
	return nil
}

// Snapshot returns a copy of the current entry list, used by GET_MTAB and
// by the shutdown-time persistence routine.
func (t *Table) Snapshot() []Entry {
	t.mu.Lock()
	defer t.mu.Unlock()

	out := make([]Entry, len(t.entries))
	for i, e := range t.entries {
		out[i] = *e
	}
	return out
}
