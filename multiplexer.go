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
	"log"

	"github.com/vfsmux/vfsmux/backend"
	"github.com/vfsmux/vfsmux/descriptor"
	"github.com/vfsmux/vfsmux/mount"
	"github.com/vfsmux/vfsmux/node"
	"github.com/vfsmux/vfsmux/registry"
)

// bootstrapHandle is the reserved back-end handle of the bootstrap root,
// never handed out by registry.Register (which starts counting at 1), so
// a real back-end's triplets never collide with it.
const bootstrapHandle backend.Handle = 0

// Config bounds the resource limits of a Multiplexer.
type Config struct {
	// DescriptorTableSize is the number of descriptor slots given to each
	// new connection.
	DescriptorTableSize int
}

// DefaultConfig mirrors the bounds a VFS session typically runs with.
func DefaultConfig() Config {
	return Config{DescriptorTableSize: 64}
}

// Multiplexer owns the four process-wide globals this package brokers
// requests through: the mount table (inside Mounter), the namespace lock
// (also inside Mounter), the node cache, and — one per connection — a
// descriptor table.
type Multiplexer struct {
	Registry *registry.Registry
	Cache    *node.Cache
	Mounter  *mount.Mounter

	config Config
	root   *node.Node
}

// New creates a Multiplexer with a bootstrap root node already installed,
// so WALK of "/" succeeds predictably before any back-end has mounted.
func New(config Config) *Multiplexer {
	if config.DescriptorTableSize <= 0 {
		config.DescriptorTableSize = DefaultConfig().DescriptorTableSize
	}

	cache := node.New()
	reg := registry.New()

	m := &Multiplexer{
		Registry: reg,
		Cache:    cache,
		Mounter:  mount.New(cache, reg),
		config:   config,
	}

	m.root = cache.Get(backend.LookupResult{
		Triplet: backend.Triplet{Backend: bootstrapHandle},
		Type:    backend.Directory,
	})

	return m
}

// DebugLogger receives low-level per-op trace lines, in the teacher's
// terse "Op ...] msg" style. Nil (the default) discards them.
var debugLogger *log.Logger

// SetDebugLogger installs l as the destination for per-op wire trace; pass
// nil to disable.
func SetDebugLogger(l *log.Logger) {
	debugLogger = l
}

func debugf(format string, v ...interface{}) {
	if debugLogger != nil {
		debugLogger.Printf(format, v...)
	}
}

// Connection is one client's view of the Multiplexer: its own descriptor
// table, seeded with a reference to the bootstrap or current namespace
// root at slot 0.
type Connection struct {
	mux         *Multiplexer
	Descriptors *descriptor.Table
}

// NewConnection allocates a fresh descriptor table for a client and
// installs the root at descriptor 0.
func (m *Multiplexer) NewConnection() *Connection {
	dt := descriptor.New(m.config.DescriptorTableSize)

	m.Cache.AddRef(m.root)
	dt.Assign(0, &descriptor.File{Node: m.root, Mode: descriptor.Read})

	return &Connection{mux: m, Descriptors: dt}
}

// Close releases every descriptor still open on the connection, mirroring
// process teardown freeing a descriptor table.
func (c *Connection) Close() {
	for i := 0; i < c.mux.config.DescriptorTableSize; i++ {
		f, err := c.Descriptors.Free(descriptor.FD(i))
		if err != nil {
			continue
		}
		if f.Node != nil {
			c.mux.Cache.Put(f.Node)
		}
	}
}

// Root returns the bootstrap namespace root, for callers (such as mtab
// replay at startup) that need a starting point before any connection has
// been established.
func (m *Multiplexer) Root() *node.Node {
	return m.root
}

// LoadMtab best-effort replays a mount table snapshot written by a prior
// SaveMtab, reattaching back-ends as they reappear within ctx's deadline.
func (m *Multiplexer) LoadMtab(ctx context.Context, path string) ([]mount.ReplayResult, error) {
	return m.Mounter.LoadPath(ctx, m.root, path)
}

// SaveMtab snapshots the current mount table to path, so a restarted
// multiplexer can replay it via LoadMtab.
func (m *Multiplexer) SaveMtab(path string) error {
	return m.Mounter.Table.SavePath(path)
}
