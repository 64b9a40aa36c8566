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

// Package backendtesting provides an in-memory reference implementation of
// backend.Server, the Server-side analogue of the teacher's memFS: every
// directory entry and file's bytes live only as long as the process does.
// It exists so the multiplexer has something concrete to exercise
// backend.Server against, both in package tests and as a runnable example
// back-end, without requiring a real storage or transport dependency.
package backendtesting

import (
	"context"
	"sync"

	"github.com/jacobsa/timeutil"

	"github.com/vfsmux/vfsmux/backend"
)

// Server keeps every tree it is Mounted onto entirely in memory, one
// instance per service id so the same Server can back more than one
// concurrent mount.
type Server struct {
	clock timeutil.Clock

	mu        sync.Mutex
	handle    backend.Handle // GUARDED_BY(mu)
	instances map[uint64]*instance
}

func New(clock timeutil.Clock) *Server {
	return &Server{
		clock:     clock,
		instances: make(map[uint64]*instance),
	}
}

var _ backend.Server = (*Server)(nil)

// Bind records the Handle the registry minted for this server's connection.
// Every Triplet this server hands back echoes this value in its Backend
// field, since the multiplexer treats a node's cached triplet as already
// carrying its owning back-end's identity and never patches it in after the
// fact. Callers must Bind immediately after registry.Register returns,
// before the back-end's name becomes resolvable to a blocking MOUNT.
func (s *Server) Bind(h backend.Handle) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.handle = h
}

func (s *Server) triplet(service, index uint64) backend.Triplet {
	s.mu.Lock()
	h := s.handle
	s.mu.Unlock()
	return backend.Triplet{Backend: h, Service: service, Index: index}
}

func (s *Server) instanceFor(service uint64) (*instance, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	inst, ok := s.instances[service]
	if !ok {
		return nil, backend.ErrNotFound
	}
	return inst, nil
}

func (s *Server) Mounted(ctx context.Context, req *backend.MountedRequest) (*backend.MountedResponse, error) {
	s.mu.Lock()
	s.instances[req.Service] = newInstance(s.clock.Now())
	s.mu.Unlock()

	return &backend.MountedResponse{
		Root: s.triplet(req.Service, 0),
		Size: 0,
	}, nil
}

func (s *Server) Unmounted(ctx context.Context, req *backend.UnmountedRequest) (*backend.UnmountedResponse, error) {
	s.mu.Lock()
	delete(s.instances, req.Service)
	s.mu.Unlock()
	return &backend.UnmountedResponse{}, nil
}

func (s *Server) Lookup(ctx context.Context, req *backend.LookupRequest) (*backend.LookupResponse, error) {
	inst, err := s.instanceFor(req.Parent.Service)
	if err != nil {
		return nil, err
	}

	parent, err := inst.at(req.Parent.Index)
	if err != nil {
		return nil, err
	}

	parent.mu.Lock()
	defer parent.mu.Unlock()

	if parent.typ != backend.Directory {
		return nil, backend.ErrNotDirectory
	}

	idx, existed := parent.children[req.Name]

	switch {
	case existed && req.Flags&backend.LookupExclusive != 0:
		return nil, backend.ErrExists

	case !existed && req.Flags&backend.LookupCreate == 0:
		return nil, backend.ErrNotFound

	case !existed:
		typ := backend.Regular
		if req.Flags&backend.LookupDirectory != 0 {
			typ = backend.Directory
		}
		newIdx, _ := inst.alloc(typ, s.clock.Now())
		parent.children[req.Name] = newIdx
		idx = newIdx
		parent.ctime = s.clock.Now()
	}

	child, err := inst.at(idx)
	if err != nil {
		return nil, err
	}

	child.mu.Lock()
	if req.Flags&backend.LookupUnlink != 0 && child.typ == backend.Directory && len(child.children) != 0 {
		child.mu.Unlock()
		return nil, backend.ErrNotEmpty
	}
	size := child.size()
	typ := child.typ
	if req.Flags&backend.LookupUnlink != 0 {
		child.linkCount--
		child.ctime = s.clock.Now()
	}
	child.mu.Unlock()

	if req.Flags&backend.LookupUnlink != 0 {
		delete(parent.children, req.Name)
	}

	return &backend.LookupResponse{Result: backend.LookupResult{
		Triplet: s.triplet(req.Parent.Service, idx),
		Size:    size,
		Type:    typ,
	}}, nil
}

func (s *Server) Read(ctx context.Context, req *backend.ReadRequest) (*backend.ReadResponse, error) {
	inst, err := s.instanceFor(req.Target.Service)
	if err != nil {
		return nil, err
	}
	n, err := inst.at(req.Target.Index)
	if err != nil {
		return nil, err
	}

	n.mu.RLock()
	defer n.mu.RUnlock()

	if n.typ == backend.Directory {
		return nil, backend.ErrIsDirectory
	}

	if req.Offset >= uint64(len(n.contents)) {
		return &backend.ReadResponse{}, nil
	}

	end := req.Offset + uint64(req.Size)
	if end > uint64(len(n.contents)) {
		end = uint64(len(n.contents))
	}

	data := make([]byte, end-req.Offset)
	copy(data, n.contents[req.Offset:end])
	return &backend.ReadResponse{Data: data}, nil
}

func (s *Server) Write(ctx context.Context, req *backend.WriteRequest) (*backend.WriteResponse, error) {
	inst, err := s.instanceFor(req.Target.Service)
	if err != nil {
		return nil, err
	}
	n, err := inst.at(req.Target.Index)
	if err != nil {
		return nil, err
	}

	n.mu.Lock()
	defer n.mu.Unlock()

	if n.typ == backend.Directory {
		return nil, backend.ErrIsDirectory
	}

	newLen := req.Offset + uint64(len(req.Data))
	if uint64(len(n.contents)) < newLen {
		padding := make([]byte, newLen-uint64(len(n.contents)))
		n.contents = append(n.contents, padding...)
	}
	copy(n.contents[req.Offset:], req.Data)
	n.mtime = s.clock.Now()

	return &backend.WriteResponse{Size: uint64(len(n.contents))}, nil
}

func (s *Server) Truncate(ctx context.Context, req *backend.TruncateRequest) (*backend.TruncateResponse, error) {
	inst, err := s.instanceFor(req.Target.Service)
	if err != nil {
		return nil, err
	}
	n, err := inst.at(req.Target.Index)
	if err != nil {
		return nil, err
	}

	n.mu.Lock()
	defer n.mu.Unlock()

	if n.typ == backend.Directory {
		return nil, backend.ErrIsDirectory
	}

	if req.Size <= uint64(len(n.contents)) {
		n.contents = n.contents[:req.Size]
	} else {
		padding := make([]byte, req.Size-uint64(len(n.contents)))
		n.contents = append(n.contents, padding...)
	}
	n.mtime = s.clock.Now()

	return &backend.TruncateResponse{}, nil
}

func (s *Server) Sync(ctx context.Context, req *backend.SyncRequest) (*backend.SyncResponse, error) {
	// Nothing is ever buffered outside of n.contents itself.
	return &backend.SyncResponse{}, nil
}

func (s *Server) Stat(ctx context.Context, req *backend.StatRequest) (*backend.StatResponse, error) {
	inst, err := s.instanceFor(req.Target.Service)
	if err != nil {
		return nil, err
	}
	n, err := inst.at(req.Target.Index)
	if err != nil {
		return nil, err
	}

	n.mu.RLock()
	defer n.mu.RUnlock()
	return &backend.StatResponse{
		Size:     n.size(),
		Type:     n.typ,
		Children: n.childCount(),
		Mtime:    n.mtime,
		Ctime:    n.ctime,
	}, nil
}

func (s *Server) Statfs(ctx context.Context, req *backend.StatfsRequest) (*backend.StatfsResponse, error) {
	inst, err := s.instanceFor(req.Target.Service)
	if err != nil {
		return nil, err
	}

	return &backend.StatfsResponse{
		BlockSize:  4096,
		Blocks:     1 << 20,
		BlocksFree: 1 << 20,
		Files:      inst.liveCount(),
		FilesFree:  1 << 20,
	}, nil
}

func (s *Server) Destroy(ctx context.Context, req *backend.DestroyRequest) (*backend.DestroyResponse, error) {
	inst, err := s.instanceFor(req.Target.Service)
	if err != nil {
		return nil, err
	}
	inst.dealloc(req.Target.Index)
	return &backend.DestroyResponse{}, nil
}

func (s *Server) Link(ctx context.Context, req *backend.LinkRequest) (*backend.LinkResponse, error) {
	inst, err := s.instanceFor(req.Parent.Service)
	if err != nil {
		return nil, err
	}

	parent, err := inst.at(req.Parent.Index)
	if err != nil {
		return nil, err
	}

	parent.mu.Lock()
	defer parent.mu.Unlock()

	if parent.typ != backend.Directory {
		return nil, backend.ErrNotDirectory
	}
	if _, exists := parent.children[req.Name]; exists {
		return nil, backend.ErrExists
	}

	target, err := inst.at(req.Target.Index)
	if err != nil {
		return nil, err
	}

	target.mu.Lock()
	target.linkCount++
	target.mu.Unlock()

	parent.children[req.Name] = req.Target.Index
	return &backend.LinkResponse{}, nil
}
