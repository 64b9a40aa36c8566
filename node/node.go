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

// Package node implements the triplet-keyed node cache: the set of live
// in-memory records for file-system objects resolved by the path engine,
// reference-counted so the last drop forgets the entry.
package node

import (
	"fmt"
	"sync"

	"github.com/jacobsa/syncutil"

	"github.com/vfsmux/vfsmux/backend"
)

// Node is the cache's record for one triplet. Everything but Triplet and
// the content lock is guarded by the owning Cache's mutex; the content
// rwlock is acquired directly by callers doing reads/writes and is never
// held across a Cache method call.
type Node struct {
	Triplet backend.Triplet
	Type    backend.NodeType

	// Content serializes read/write/truncate access to this node's data,
	// per the read/write pre-amble's locking-mode choice. It is never
	// acquired while the namespace lock is held for writing and never
	// acquired while the cache mutex is held.
	Content sync.RWMutex

	size     uint64 // GUARDED_BY(cache.mu)
	refcount uint64 // GUARDED_BY(cache.mu)

	// Mount is a strong reference to the root node of a file system
	// mounted over this node, or nil. Set/cleared only while the
	// namespace write lock is held.
	Mount *Node // GUARDED_BY(namespace write lock)
}

// Size returns the node's cached size.
func (n *Node) Size() uint64 {
	return n.size
}

// Cache is the node cache: a map from triplet to *Node protected by an
// invariant-checked mutex, mirroring the teacher's memFS.mu /
// memFS.inodes discipline but keyed by triplet instead of a dense inode
// index (a back-end's index space is its own, not ours to allocate).
type Cache struct {
	mu      syncutil.InvariantMutex
	entries map[backend.Triplet]*Node // GUARDED_BY(mu)
}

func New() *Cache {
	c := &Cache{
		entries: make(map[backend.Triplet]*Node),
	}
	c.mu = syncutil.NewInvariantMutex(c.checkInvariants)
	return c
}

func (c *Cache) checkInvariants() {
	for t, n := range c.entries {
		if n.Triplet != t {
			panic(fmt.Sprintf("node cache: entry at key %v has triplet %v", t, n.Triplet))
		}
		if n.refcount == 0 {
			panic(fmt.Sprintf("node cache: live entry %v has refcount 0", t))
		}
	}
}

// Get returns the cached node for r.Triplet, adding a reference, inserting
// a new record with refcount 1 if none exists yet.
func (c *Cache) Get(r backend.LookupResult) *Node {
	c.mu.Lock()
	defer c.mu.Unlock()

	if n, ok := c.entries[r.Triplet]; ok {
		n.refcount++
		return n
	}

	n := &Node{
		Triplet:  r.Triplet,
		Type:     r.Type,
		size:     r.Size,
		refcount: 1,
	}
	c.entries[r.Triplet] = n
	return n
}

// Peek returns the cached node for t without adding a reference, or nil if
// absent. Used by unlink/rename to decide whether the final drop of a
// removed name should also ask the back-end to destroy the object.
func (c *Cache) Peek(t backend.Triplet) *Node {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.entries[t]
}

// AddRef increments n's reference count. The caller must already hold a
// reference (e.g. have obtained n via Get or Peek-then-AddRef under a lock
// that prevents concurrent removal).
func (c *Cache) AddRef(n *Node) {
	c.mu.Lock()
	defer c.mu.Unlock()
	n.refcount++
}

// Put drops one reference on n. It reports whether the refcount reached
// zero, in which case n has been removed from the cache and the caller
// owns the decision of whether to issue a Destroy request to the back-end.
func (c *Cache) Put(n *Node) (destroyed bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	n.refcount--
	if n.refcount > 0 {
		return false
	}

	delete(c.entries, n.Triplet)
	return true
}

// Forget drops n's reference without any accounting beyond the decrement,
// used when ownership of the reference is being transferred rather than
// released, e.g. a mount performed with the no-reference flag.
func (c *Cache) Forget(n *Node) {
	c.Put(n)
}

// SetSize updates n's cached size, e.g. after a size-mutating write or a
// truncate. Callers must hold n.Content for writing.
func (c *Cache) SetSize(n *Node, size uint64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	n.size = size
}

// RefCountSum totals the live refcount across every node whose triplet
// belongs to the given back-end and service, used by the unmount-safety
// check (a mount may be torn down only when its sole remaining reference
// is the mountpoint edge itself).
func (c *Cache) RefCountSum(b backend.Handle, service uint64) uint64 {
	c.mu.Lock()
	defer c.mu.Unlock()

	var sum uint64
	for t, n := range c.entries {
		if t.Backend == b && t.Service == service {
			sum += n.refcount
		}
	}
	return sum
}
