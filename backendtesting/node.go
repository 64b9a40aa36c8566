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

package backendtesting

import (
	"fmt"
	"sync"
	"time"

	"github.com/jacobsa/syncutil"

	"github.com/vfsmux/vfsmux/backend"
)

// memNode is this back-end's index-addressed object: a directory's entries
// or a regular file's byte contents.
//
// INVARIANT: typ == backend.Directory <=> children != nil
// INVARIANT: typ == backend.Directory => contents == nil
// INVARIANT: linkCount >= 0
type memNode struct {
	mu syncutil.InvariantMutex

	typ       backend.NodeType
	children  map[string]uint64 // GUARDED_BY(mu), directory only
	contents  []byte            // GUARDED_BY(mu), regular only
	linkCount int               // GUARDED_BY(mu)

	mtime time.Time // GUARDED_BY(mu), bumped on Write/Truncate
	ctime time.Time // GUARDED_BY(mu), bumped on any metadata change
}

func newMemNode(typ backend.NodeType, now time.Time) *memNode {
	n := &memNode{typ: typ, linkCount: 1, mtime: now, ctime: now}
	if typ == backend.Directory {
		n.children = make(map[string]uint64)
	}
	n.mu = syncutil.NewInvariantMutex(n.checkInvariants)
	return n
}

func (n *memNode) checkInvariants() {
	if (n.typ == backend.Directory) != (n.children != nil) {
		panic(fmt.Sprintf("children/type mismatch for type %v", n.typ))
	}
	if n.typ == backend.Directory && len(n.contents) != 0 {
		panic("directory with contents")
	}
	if n.linkCount < 0 {
		panic(fmt.Sprintf("negative link count: %d", n.linkCount))
	}
}

// size returns the length callers should report for this node's contents;
// directories hold no contents and so report zero (a directory's entry
// count is reported separately, as StatResponse.Children).
func (n *memNode) size() uint64 {
	return uint64(len(n.contents))
}

// childCount returns the directory entry count; zero for a regular file.
func (n *memNode) childCount() uint64 {
	return uint64(len(n.children))
}

// instance is one mounted tree: the set of live nodes addressed the way a
// Triplet.Index addresses them, plus a free list for reuse — the same
// allocate/deallocate idiom the node cache's teacher uses for inode IDs,
// just over this back-end's own index space.
type instance struct {
	mu    sync.Mutex
	nodes []*memNode // GUARDED_BY(mu); index 0 is this instance's root
	free  []uint64   // GUARDED_BY(mu)
}

func newInstance(now time.Time) *instance {
	inst := &instance{nodes: make([]*memNode, 1)}
	inst.nodes[0] = newMemNode(backend.Directory, now)
	return inst
}

func (inst *instance) alloc(typ backend.NodeType, now time.Time) (uint64, *memNode) {
	inst.mu.Lock()
	defer inst.mu.Unlock()

	n := newMemNode(typ, now)

	if k := len(inst.free); k != 0 {
		idx := inst.free[k-1]
		inst.free = inst.free[:k-1]
		inst.nodes[idx] = n
		return idx, n
	}

	idx := uint64(len(inst.nodes))
	inst.nodes = append(inst.nodes, n)
	return idx, n
}

func (inst *instance) dealloc(idx uint64) {
	inst.mu.Lock()
	defer inst.mu.Unlock()
	inst.nodes[idx] = nil
	inst.free = append(inst.free, idx)
}

func (inst *instance) at(idx uint64) (*memNode, error) {
	inst.mu.Lock()
	defer inst.mu.Unlock()
	if idx >= uint64(len(inst.nodes)) || inst.nodes[idx] == nil {
		return nil, backend.ErrNotFound
	}
	return inst.nodes[idx], nil
}

func (inst *instance) liveCount() uint64 {
	inst.mu.Lock()
	defer inst.mu.Unlock()
	return uint64(len(inst.nodes) - len(inst.free))
}
