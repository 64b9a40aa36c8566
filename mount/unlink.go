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

package mount

import (
	"context"

	"github.com/vfsmux/vfsmux/backend"
	"github.com/vfsmux/vfsmux/node"
	"github.com/vfsmux/vfsmux/pathwalk"
)

// Unlink removes path (resolved relative to root) and, if nothing else in
// the cache still references the removed object, issues Destroy to its
// owning back-end.
//
// dirOnly restricts the match to a directory, the distinction WALK's
// DIRECTORY flag makes for creation. If expected is non-nil, path must
// resolve to exactly that triplet or ErrNotFound is returned and nothing
// is removed — a caller that already holds a reference to the target uses
// this to detect (not prevent: the check and the unlink are not atomic) a
// race against a concurrent rename of the same name.
func (m *Mounter) Unlink(ctx context.Context, root *node.Node, path string, dirOnly bool, expected *backend.Triplet) error {
	m.NS.Lock()
	defer m.NS.Unlock()

	ctx = m.Context(ctx)

	if dirOnly || expected != nil {
		probe, err := m.Walk.Lookup(ctx, root, path, pathwalk.DisableMounts)
		if err != nil {
			return err
		}
		typ, triplet := probe.Type, probe.Triplet
		m.Cache.Put(probe)

		if dirOnly && typ != backend.Directory {
			return backend.ErrNotDirectory
		}
		if expected != nil && triplet != *expected {
			return backend.ErrNotFound
		}
	}

	removed, err := m.Walk.Lookup(ctx, root, path, pathwalk.Unlink|pathwalk.DisableMounts)
	if err != nil {
		return err
	}

	triplet := removed.Triplet
	if m.Cache.Put(removed) {
		if pool, ok := m.PoolFor(triplet.Backend); ok {
			ex := pool.Grab()
			ex.Destroy(ctx, &backend.DestroyRequest{Target: triplet})
			ex.Release()
		}
	}

	return nil
}
