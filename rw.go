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

package vfsmux

import (
	"context"
	"math"

	"github.com/google/uuid"

	"github.com/vfsmux/vfsmux/backend"
	"github.com/vfsmux/vfsmux/descriptor"
)

// RegisterAck is the REGISTER operation's reply: the handle the
// multiplexer will address this back-end by from now on, and a
// connection-scoped correlation id for debug logs and crash reports.
type RegisterAck struct {
	Handle backend.Handle
	ConnID uuid.UUID
}

// Register inserts a connecting back-end into the registry.
func (m *Multiplexer) Register(instance uint32, name string, caps BackendCapabilities, server backend.Server) RegisterAck {
	h, id := m.Registry.Register(instance, name, backend.Capabilities{
		ConcurrentReadWrite: caps.ConcurrentReadWrite,
		WriteRetainsSize:    caps.WriteRetainsSize,
	}, server)
	debugf("REGISTER %s/%d] handle=%d conn=%s", name, instance, h, id)
	return RegisterAck{Handle: h, ConnID: id}
}

// Walk resolves args.Path relative to the node behind args.ParentFD,
// installing the result in a fresh descriptor.
func (m *Multiplexer) Walk(ctx context.Context, c *Connection, args WalkArgs) (descriptor.FD, error) {
	pf, err := c.Descriptors.Get(args.ParentFD)
	if err != nil {
		return 0, err
	}
	parent := pf.Node
	c.Descriptors.Put(pf)

	m.Mounter.NS.RLock()
	result, err := m.Mounter.Walk.Lookup(m.Mounter.Context(ctx), parent, args.Path, args.Flags)
	m.Mounter.NS.RUnlock()
	if err != nil {
		return 0, err
	}

	fd, err := c.Descriptors.Alloc(&descriptor.File{Node: result}, false)
	if err != nil {
		m.Cache.Put(result)
		return 0, err
	}

	debugf("WALK %q -> fd %d (triplet %v)", args.Path, fd, result.Triplet)
	return fd, nil
}

// Mount attaches a back-end, per mount.Mounter.Mount, wiring the client's
// descriptor for the mountpoint and, unless NoRef is set, installing the
// new root in a fresh descriptor.
func (m *Multiplexer) Mount(ctx context.Context, c *Connection, args MountArgs) (descriptor.FD, error) {
	mpf, err := c.Descriptors.Get(args.MountPointFD)
	if err != nil {
		return 0, err
	}
	mountPoint := mpf.Node
	c.Descriptors.Put(mpf)

	root, err := m.Mounter.Mount(ctx, args.Path, mountPoint, args.Flags, args.Instance, args.BackendName, args.Options)
	if err != nil {
		return 0, err
	}
	if root == nil {
		// NoRef: the caller forwent a descriptor for the new root.
		return 0, nil
	}

	fd, err := c.Descriptors.Alloc(&descriptor.File{Node: root}, false)
	if err != nil {
		m.Cache.Put(root)
		return 0, err
	}
	return fd, nil
}

// Unmount detaches the back-end mounted at args fd.
func (m *Multiplexer) Unmount(ctx context.Context, c *Connection, mountPointFD descriptor.FD) error {
	mpf, err := c.Descriptors.Get(mountPointFD)
	if err != nil {
		return err
	}
	mountPoint := mpf.Node
	c.Descriptors.Put(mpf)

	return m.Mounter.Unmount(ctx, mountPoint)
}

// Rename renames args.OldPath to args.NewPath, both resolved relative to
// the node behind args.BaseFD.
func (m *Multiplexer) Rename(ctx context.Context, c *Connection, args RenameArgs) error {
	bf, err := c.Descriptors.Get(args.BaseFD)
	if err != nil {
		return err
	}
	base := bf.Node
	c.Descriptors.Put(bf)

	return m.Mounter.Rename(ctx, base, args.OldPath, args.NewPath)
}

// Unlink removes args.Path, resolved relative to the node behind
// args.ParentFD. If args.ExpectedFD is non-negative, the two descriptors
// are fetched in ascending order to avoid a lock inversion against a
// concurrent UNLINK2 doing the reverse, and args.ExpectedFD's node must
// match what WALK would resolve for args.Path.
func (m *Multiplexer) Unlink(ctx context.Context, c *Connection, args UnlinkArgs) error {
	if args.ExpectedFD >= 0 && args.ParentFD == args.ExpectedFD {
		return ErrInvalid
	}

	dirOnly := args.Flags&WalkDirectory != 0

	if args.ExpectedFD < 0 {
		pf, err := c.Descriptors.Get(args.ParentFD)
		if err != nil {
			return err
		}
		parent := pf.Node
		c.Descriptors.Put(pf)

		return m.Mounter.Unlink(ctx, parent, args.Path, dirOnly, nil)
	}

	first, second := args.ParentFD, args.ExpectedFD
	parentIsFirst := true
	if second < first {
		first, second = second, first
		parentIsFirst = false
	}

	ff, err := c.Descriptors.Get(first)
	if err != nil {
		return err
	}
	sf, err := c.Descriptors.Get(second)
	if err != nil {
		c.Descriptors.Put(ff)
		return err
	}

	parent, expected := ff.Node, sf.Node.Triplet
	if !parentIsFirst {
		parent, expected = sf.Node, ff.Node.Triplet
	}

	c.Descriptors.Put(ff)
	c.Descriptors.Put(sf)

	return m.Mounter.Unlink(ctx, parent, args.Path, dirOnly, &expected)
}

// Open2 checks that mode is within the node's permission set and installs
// it on the open-file record; the multiplexer has no notion of file
// permission bits of its own, so this always succeeds unless mode
// requests a direction the node's type forbids (write on a directory).
func (m *Multiplexer) Open2(c *Connection, fd descriptor.FD, mode OpenMode) error {
	f, err := c.Descriptors.Get(fd)
	if err != nil {
		return err
	}
	defer c.Descriptors.Put(f)

	if mode&OpenWrite != 0 && f.Node.Type == backend.Directory {
		return ErrInvalid
	}

	f.Mode = mode
	return nil
}

// Close frees fd, releasing its node reference, if any: a descriptor
// minted by WaitHandle and never bound by a subsequent MOUNT carries none.
func (m *Multiplexer) Close(c *Connection, fd descriptor.FD) error {
	f, err := c.Descriptors.Free(fd)
	if err != nil {
		return err
	}
	if f.Node != nil {
		m.Cache.Put(f.Node)
	}
	return nil
}

// WaitHandle allocates a descriptor bound to no node, for a caller that
// needs an fd to hand out (e.g. to a child process) before any node exists
// to back it. Nothing binds a node to the descriptor afterwards.
func (m *Multiplexer) WaitHandle(c *Connection, preferHigh bool) (descriptor.FD, error) {
	return c.Descriptors.Alloc(&descriptor.File{}, preferHigh)
}

// Dup installs a second reference to oldfd's node at newfd, evicting and
// releasing whatever was at newfd first.
func (m *Multiplexer) Dup(c *Connection, oldfd, newfd descriptor.FD) error {
	src, err := c.Descriptors.Get(oldfd)
	if err != nil {
		return err
	}
	m.Cache.AddRef(src.Node)
	dst := &descriptor.File{Node: src.Node, Mode: src.Mode}
	c.Descriptors.Put(src)

	old := c.Descriptors.Assign(newfd, dst)
	if old != nil {
		m.Cache.Put(old.Node)
	}
	return nil
}

// Clone creates a new descriptor bound to the same node as oldfd.
func (m *Multiplexer) Clone(c *Connection, oldfd descriptor.FD, preferHigh bool) (descriptor.FD, error) {
	return c.Descriptors.Clone(oldfd, preferHigh, m.Cache.AddRef)
}

// readLockSuffices reports whether a read-direction lock suffices for
// this call, per the capability pre-amble: reads always take the read
// lock; writes do too, but only when the back-end can serve a write
// concurrently with reads and a write never shrinks the reported size.
func (m *Multiplexer) readLockSuffices(n *descriptor.File, forWrite bool) bool {
	if !forWrite {
		return true
	}
	caps, _ := m.Mounter.CapabilitiesFor(n.Node.Triplet.Backend)
	return caps.ConcurrentReadWrite && caps.WriteRetainsSize
}

// Read transfers up to size bytes from fd at its current position.
func (m *Multiplexer) Read(ctx context.Context, c *Connection, fd descriptor.FD, size uint32) ([]byte, error) {
	f, err := c.Descriptors.Get(fd)
	if err != nil {
		return nil, err
	}
	defer c.Descriptors.Put(f)

	if f.Mode&OpenRead == 0 {
		return nil, ErrPermission
	}

	if f.Node.Type == backend.Directory {
		m.Mounter.NS.RLock()
		defer m.Mounter.NS.RUnlock()
	}

	f.Node.Content.RLock()
	defer f.Node.Content.RUnlock()

	pool, ok := m.Mounter.PoolFor(f.Node.Triplet.Backend)
	if !ok {
		return nil, errUnreachableBackend
	}

	ex := pool.Grab()
	resp, err := ex.Read(ctx, &backend.ReadRequest{
		Target: f.Node.Triplet,
		Offset: f.Position,
		Size:   size,
	})
	ex.Release()
	if err != nil {
		return nil, err
	}

	f.Position += uint64(len(resp.Data))
	return resp.Data, nil
}

// Write transfers data to fd at its current position (or at the node's
// cached size first, if the descriptor was opened with Append).
func (m *Multiplexer) Write(ctx context.Context, c *Connection, fd descriptor.FD, data []byte) (int, error) {
	f, err := c.Descriptors.Get(fd)
	if err != nil {
		return 0, err
	}
	defer c.Descriptors.Put(f)

	if f.Mode&OpenWrite == 0 {
		return 0, ErrPermission
	}
	if f.Node.Type == backend.Directory {
		return 0, ErrInvalid
	}

	if f.Mode&OpenAppend != 0 {
		f.Position = f.Node.Size()
	}

	useReadLock := m.readLockSuffices(f, true)
	if useReadLock {
		f.Node.Content.RLock()
		defer f.Node.Content.RUnlock()
	} else {
		f.Node.Content.Lock()
		defer f.Node.Content.Unlock()
	}

	pool, ok := m.Mounter.PoolFor(f.Node.Triplet.Backend)
	if !ok {
		return 0, errUnreachableBackend
	}

	ex := pool.Grab()
	resp, err := ex.Write(ctx, &backend.WriteRequest{
		Target: f.Node.Triplet,
		Offset: f.Position,
		Data:   data,
	})
	ex.Release()
	if err != nil {
		return 0, err
	}

	n := len(data)
	f.Position += uint64(n)

	// A write never shrinks the cached size: under a read-locked
	// concurrent write, two in-flight writes' replies can arrive in
	// either order, and the smaller one must not stomp the larger.
	if resp.Size > f.Node.Size() {
		m.Cache.SetSize(f.Node, resp.Size)
	}

	return n, nil
}

// Seek repositions fd per whence, checking for 64-bit overflow, and
// returns the new position.
func (m *Multiplexer) Seek(c *Connection, fd descriptor.FD, offset int64, whence SeekWhence) (uint64, error) {
	f, err := c.Descriptors.Get(fd)
	if err != nil {
		return 0, err
	}
	defer c.Descriptors.Put(f)

	var base uint64

	switch whence {
	case SeekSet:
		if offset < 0 {
			return 0, ErrInvalid
		}
		f.Position = uint64(offset)
		return f.Position, nil

	case SeekCur:
		base = f.Position

	case SeekEnd:
		f.Node.Content.RLock()
		base = f.Node.Size()
		f.Node.Content.RUnlock()

	default:
		return 0, ErrInvalid
	}

	var newPos uint64
	if offset >= 0 {
		if uint64(offset) > math.MaxUint64-base {
			return 0, ErrOverflow
		}
		newPos = base + uint64(offset)
	} else {
		neg := uint64(-offset)
		if neg > base {
			return 0, ErrOverflow
		}
		newPos = base - neg
	}

	f.Position = newPos
	return newPos, nil
}

// Truncate sets fd's node to the given size.
func (m *Multiplexer) Truncate(ctx context.Context, c *Connection, fd descriptor.FD, size uint64) error {
	f, err := c.Descriptors.Get(fd)
	if err != nil {
		return err
	}
	defer c.Descriptors.Put(f)

	f.Node.Content.Lock()
	defer f.Node.Content.Unlock()

	pool, ok := m.Mounter.PoolFor(f.Node.Triplet.Backend)
	if !ok {
		return errUnreachableBackend
	}

	ex := pool.Grab()
	_, err = ex.Truncate(ctx, &backend.TruncateRequest{Target: f.Node.Triplet, Size: size})
	ex.Release()
	if err != nil {
		return err
	}

	m.Cache.SetSize(f.Node, size)
	return nil
}

// Sync flushes fd's node.
func (m *Multiplexer) Sync(ctx context.Context, c *Connection, fd descriptor.FD) error {
	f, err := c.Descriptors.Get(fd)
	if err != nil {
		return err
	}
	defer c.Descriptors.Put(f)

	pool, ok := m.Mounter.PoolFor(f.Node.Triplet.Backend)
	if !ok {
		return errUnreachableBackend
	}

	ex := pool.Grab()
	_, err = ex.Sync(ctx, &backend.SyncRequest{Target: f.Node.Triplet})
	ex.Release()
	return err
}

// Stat returns the back-end's stat reply for fd's node; the back-end is
// consulted directly rather than served from the node's cached size, since
// the multiplexer does no content caching of its own.
func (m *Multiplexer) Stat(ctx context.Context, c *Connection, fd descriptor.FD) (backend.StatResponse, error) {
	f, err := c.Descriptors.Get(fd)
	if err != nil {
		return backend.StatResponse{}, err
	}
	defer c.Descriptors.Put(f)

	pool, ok := m.Mounter.PoolFor(f.Node.Triplet.Backend)
	if !ok {
		return backend.StatResponse{}, errUnreachableBackend
	}

	ex := pool.Grab()
	resp, err := ex.Stat(ctx, &backend.StatRequest{Target: f.Node.Triplet})
	ex.Release()
	if err != nil {
		return backend.StatResponse{}, err
	}
	return *resp, nil
}

// Statfs forwards the client's STATFS to the back-end owning fd's
// triplet, unchanged, with no caching.
func (m *Multiplexer) Statfs(ctx context.Context, c *Connection, fd descriptor.FD) (backend.StatfsResponse, error) {
	f, err := c.Descriptors.Get(fd)
	if err != nil {
		return backend.StatfsResponse{}, err
	}
	defer c.Descriptors.Put(f)

	pool, ok := m.Mounter.PoolFor(f.Node.Triplet.Backend)
	if !ok {
		return backend.StatfsResponse{}, errUnreachableBackend
	}

	ex := pool.Grab()
	resp, err := ex.Statfs(ctx, &backend.StatfsRequest{Target: f.Node.Triplet})
	ex.Release()
	if err != nil {
		return backend.StatfsResponse{}, err
	}
	return *resp, nil
}

// GetMtab returns a snapshot of the current mount table.
func (m *Multiplexer) GetMtab() []MtabEntry {
	snap := m.Mounter.Table.Snapshot()
	out := make([]MtabEntry, len(snap))
	for i, e := range snap {
		out[i] = MtabEntry{
			Path:        e.Path,
			Options:     e.Options,
			BackendName: e.BackendName,
			Instance:    e.Instance,
			Service:     e.Service,
		}
	}
	return out
}
