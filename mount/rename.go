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
	"strings"

	"github.com/vfsmux/vfsmux/backend"
	"github.com/vfsmux/vfsmux/node"
	"github.com/vfsmux/vfsmux/pathwalk"
)

// Rename moves oldPath to newPath, both resolved relative to root. The
// shared path prefix is resolved once; the three-step unlink/unlink/link
// edit that follows rolls itself back on any failure so that, on error,
// both old and new resolve exactly as they did before the call.
func (m *Mounter) Rename(ctx context.Context, root *node.Node, oldPath, newPath string) error {
	oldNorm, _, err := pathwalk.Canonify(oldPath)
	if err != nil {
		return err
	}
	newNorm, _, err := pathwalk.Canonify(newPath)
	if err != nil {
		return err
	}

	oldComps := pathwalk.Components(oldNorm)
	newComps := pathwalk.Components(newNorm)

	shared, err := pathwalk.SharedPrefix(oldComps, newComps)
	if err != nil {
		return err
	}
	if shared == len(oldComps) || shared == len(newComps) {
		// Either path is a prefix of the other: renaming a directory into
		// its own subtree.
		return ErrInvalid
	}

	m.NS.Lock()
	defer m.NS.Unlock()

	ctx = m.Context(ctx)

	if shared > 0 {
		basePath := "/" + strings.Join(oldComps[:shared], "/")
		base, err := m.Walk.Lookup(ctx, root, basePath, pathwalk.DisableMounts)
		if err != nil {
			return err
		}
		m.Cache.Put(base)
	}

	destParent, destName, err := m.resolveParent(ctx, root, newNorm)
	if err != nil {
		return err
	}
	defer m.Cache.Put(destParent)

	srcParent, srcName, err := m.resolveParent(ctx, root, oldNorm)
	if err != nil {
		return err
	}
	defer m.Cache.Put(srcParent)

	destPool, ok := m.PoolFor(destParent.Triplet.Backend)
	if !ok {
		return ErrInvalid
	}
	srcPool, ok := m.PoolFor(srcParent.Triplet.Backend)
	if !ok {
		return ErrInvalid
	}

	destServer := destPool.Grab()
	defer destServer.Release()
	srcServer := srcPool.Grab()
	defer srcServer.Release()

	destRemoved, destWasUnlinked, err := tryUnlink(ctx, destServer, destParent.Triplet, destName)
	if err != nil {
		return err
	}

	srcRemoved, _, err := tryUnlink(ctx, srcServer, srcParent.Triplet, srcName)
	if err != nil {
		if destWasUnlinked {
			relink(ctx, destServer, destParent.Triplet, destName, destRemoved)
		}
		return err
	}

	if _, err := destServer.Link(ctx, &backend.LinkRequest{
		Parent: destParent.Triplet,
		Name:   destName,
		Target: srcRemoved,
	}); err != nil {
		relink(ctx, srcServer, srcParent.Triplet, srcName, srcRemoved)
		if destWasUnlinked {
			relink(ctx, destServer, destParent.Triplet, destName, destRemoved)
		}
		return err
	}

	if destWasUnlinked && m.Cache.Peek(destRemoved) == nil {
		destServer.Destroy(ctx, &backend.DestroyRequest{Target: destRemoved})
	}

	return nil
}

// tryUnlink removes name from parent, reporting whether anything was
// actually unlinked; NOT_FOUND is reported as (zero, false, nil) since
// rename treats a missing destination as acceptable.
func tryUnlink(ctx context.Context, server backend.Server, parent backend.Triplet, name string) (backend.Triplet, bool, error) {
	resp, err := server.Lookup(ctx, &backend.LookupRequest{
		Parent: parent,
		Name:   name,
		Flags:  backend.LookupUnlink,
	})
	if err == backend.ErrNotFound {
		return backend.Triplet{}, false, nil
	}
	if err != nil {
		return backend.Triplet{}, false, err
	}
	return resp.Result.Triplet, true, nil
}

func relink(ctx context.Context, server backend.Server, parent backend.Triplet, name string, target backend.Triplet) {
	server.Link(ctx, &backend.LinkRequest{Parent: parent, Name: name, Target: target})
}
