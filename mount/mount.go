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
	"sync"

	"github.com/vfsmux/vfsmux/backend"
	"github.com/vfsmux/vfsmux/exchange"
	"github.com/vfsmux/vfsmux/node"
	"github.com/vfsmux/vfsmux/pathwalk"
	"github.com/vfsmux/vfsmux/registry"
)

const (
	MaxOptionsLen     = 4096
	MaxBackendNameLen = 32
)

// Re-exported for callers of this package; Mount/Unmount/Rename/Unlink
// never invent their own error kinds beyond these canonical ones.
var (
	ErrNotEmpty     = backend.ErrNotEmpty
	ErrBusy         = backend.ErrBusy
	ErrNotDirectory = backend.ErrNotDirectory
	ErrInvalid      = backend.ErrInvalid
)

// Flags for the MOUNT client operation.
type Flags uint32

const (
	Blocking Flags = 1 << iota
	ConnectOnly
	NoRef
)

// Mounter ties together the components a mount/unmount/rename/unlink edit
// touches: the mount table, the namespace lock, the node cache, the
// back-end registry, and a resolved-pool map used to route a node's
// cached triplet back to a borrowable exchange on the live connection that
// serves it. Nothing in this package (or in the multiplexer sitting on top
// of it) calls a *backend.Server directly; every back-end round trip is
// made on an *exchange.Exchange grabbed from the pool for its handle and
// released immediately after, mount's own Mounted/Unmounted calls
// included.
type Mounter struct {
	Table    *Table
	NS       *Namespace
	Cache    *node.Cache
	Registry *registry.Registry
	Walk     *pathwalk.Engine

	serversMu sync.Mutex
	pools     map[backend.Handle]*exchange.Pool
	caps      map[backend.Handle]backend.Capabilities

	nextServiceMu sync.Mutex
	nextService   uint64
}

func New(cache *node.Cache, reg *registry.Registry) *Mounter {
	m := &Mounter{
		Table:    NewTable(),
		NS:       &Namespace{},
		Cache:    cache,
		Registry: reg,
		pools:    make(map[backend.Handle]*exchange.Pool),
		caps:     make(map[backend.Handle]backend.Capabilities),
	}
	m.Walk = pathwalk.New(cache, reg)
	return m
}

// PoolFor implements pathwalk.ServerResolver, returning the exchange pool
// for h so a caller can Grab/Release around each back-end round trip.
func (m *Mounter) PoolFor(h backend.Handle) (*exchange.Pool, bool) {
	m.serversMu.Lock()
	defer m.serversMu.Unlock()
	p, ok := m.pools[h]
	return p, ok
}

// CapabilitiesFor returns the capability flags the back-end advertised
// when it registered, used by the read/write pre-amble to pick a locking
// mode.
func (m *Mounter) CapabilitiesFor(h backend.Handle) (backend.Capabilities, bool) {
	m.serversMu.Lock()
	defer m.serversMu.Unlock()
	c, ok := m.caps[h]
	return c, ok
}

// registerServer records the live server behind h, minting its exchange
// pool the first time h is seen and reusing it thereafter, and returns
// that pool so the caller can issue its own first request (e.g. MOUNT's
// Mounted call) through it rather than reaching for the bare server.
func (m *Mounter) registerServer(h backend.Handle, s backend.Server, caps backend.Capabilities) *exchange.Pool {
	m.serversMu.Lock()
	defer m.serversMu.Unlock()
	m.caps[h] = caps
	p, ok := m.pools[h]
	if !ok {
		p = exchange.New(s)
		m.pools[h] = p
	}
	return p
}

// Context returns ctx with this Mounter's server resolver attached, for
// callers about to invoke Walk.Lookup.
func (m *Mounter) Context(ctx context.Context) context.Context {
	return pathwalk.WithServerResolver(ctx, m)
}

func (m *Mounter) allocService() uint64 {
	m.nextServiceMu.Lock()
	defer m.nextServiceMu.Unlock()
	m.nextService++
	return m.nextService
}

// Mount attaches a back-end at mountPoint. path is the caller-supplied,
// already-canonicalized mountpoint path, stored verbatim in the resulting
// mount entry (never a placeholder). On success it returns the back-end's
// root node, which the caller installs into a descriptor. With NoRef set in
// flags, Mount drops that reference itself and returns a nil node.
func (m *Mounter) Mount(ctx context.Context, path string, mountPoint *node.Node, flags Flags, instance uint32, backendName, options string) (*node.Node, error) {
	if len(options) > MaxOptionsLen || len(backendName) > MaxBackendNameLen {
		return nil, ErrInvalid
	}

	m.NS.Lock()
	defer m.NS.Unlock()

	if flags&ConnectOnly == 0 {
		if mountPoint.Type != backend.Directory {
			return nil, ErrNotDirectory
		}
		if mountPoint.Mount != nil {
			return nil, ErrBusy
		}

		// The bootstrap root is the one mountpoint with no back-end pool
		// behind it: a placeholder directory with no entries to check.
		if mountPointPool, ok := m.PoolFor(mountPoint.Triplet.Backend); ok {
			ex := mountPointPool.Grab()
			statResp, err := ex.Stat(ctx, &backend.StatRequest{Target: mountPoint.Triplet})
			ex.Release()
			if err != nil {
				return nil, err
			}
			if statResp.Children != 0 {
				return nil, ErrNotEmpty
			}
		}
	}

	var resolveCtx context.Context
	if flags&Blocking != 0 {
		resolveCtx = ctx
	}

	handle, server, err := m.Registry.Resolve(resolveCtx, instance, backendName)
	if err != nil {
		return nil, err
	}
	caps, _ := m.Registry.Info(instance, backendName)

	pool := m.registerServer(handle, server, caps)

	service := m.allocService()

	ex := pool.Grab()
	resp, err := ex.Mounted(ctx, &backend.MountedRequest{
		Service: service,
		Options: options,
	})
	ex.Release()
	if err != nil {
		return nil, err
	}

	result := backend.LookupResult{Triplet: resp.Root, Size: resp.Size, Type: backend.Directory}
	root := m.Cache.Get(result) // reference #1: the cache entry itself
	m.Cache.AddRef(root)        // reference #2: the mountpoint's strong edge
	m.Cache.AddRef(mountPoint)  // the mirrored edge back, per the mountpoint<->root pair invariant

	mountPoint.Mount = root

	m.Table.Append(&Entry{
		Path:        path,
		BackendName: backendName,
		Options:     options,
		Instance:    instance,
		Backend:     handle,
		Service:     service,
	})

	if flags&NoRef != 0 {
		m.Cache.Forget(root)
		return nil, nil
	}

	return root, nil
}

// Unmount detaches the back-end mounted at mountPoint. It fails with
// ErrBusy if anything beyond the mountpoint edge still references the
// mounted file system.
func (m *Mounter) Unmount(ctx context.Context, mountPoint *node.Node) error {
	m.NS.Lock()
	defer m.NS.Unlock()

	root := mountPoint.Mount
	if root == nil {
		return ErrInvalid
	}

	h := root.Triplet.Backend
	service := root.Triplet.Service

	if sum := m.Cache.RefCountSum(h, service); sum != 1 {
		return ErrBusy
	}

	pool, ok := m.PoolFor(h)
	if !ok {
		return ErrInvalid
	}

	ex := pool.Grab()
	_, err := ex.Unmounted(ctx, &backend.UnmountedRequest{Service: service})
	ex.Release()
	if err != nil {
		return err
	}

	m.Cache.Forget(root)
	m.Cache.Put(mountPoint)
	mountPoint.Mount = nil

	m.Table.RemoveByService(h, service)

	return nil
}

// resolveParent walks to the directory containing the final component of
// path and returns it (as an owned reference the caller must Put) along
// with that final component's name.
func (m *Mounter) resolveParent(ctx context.Context, root *node.Node, path string) (*node.Node, string, error) {
	normalized, _, err := pathwalk.Canonify(path)
	if err != nil {
		return nil, "", err
	}

	comps := pathwalk.Components(normalized)
	if len(comps) == 0 {
		return nil, "", ErrInvalid
	}

	name := comps[len(comps)-1]
	dir := "/" + strings.Join(comps[:len(comps)-1], "/")

	parent, err := m.Walk.Lookup(m.Context(ctx), root, dir, pathwalk.DisableMounts)
	if err != nil {
		return nil, "", err
	}

	return parent, name, nil
}
