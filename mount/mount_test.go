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

package mount_test

import (
	"context"
	"testing"

	"github.com/jacobsa/timeutil"
	"github.com/kylelemons/godebug/pretty"

	"github.com/vfsmux/vfsmux/backend"
	"github.com/vfsmux/vfsmux/backendtesting"
	"github.com/vfsmux/vfsmux/mount"
	"github.com/vfsmux/vfsmux/node"
	"github.com/vfsmux/vfsmux/pathwalk"
	"github.com/vfsmux/vfsmux/registry"
)

// fixture wires up a Mounter with its own bootstrap root, the way
// Multiplexer.New does, without pulling in the root package (which itself
// depends on mount).
type fixture struct {
	ctx     context.Context
	cache   *node.Cache
	reg     *registry.Registry
	mounter *mount.Mounter
	root    *node.Node
}

func newFixture() *fixture {
	cache := node.New()
	reg := registry.New()

	f := &fixture{
		ctx:     context.Background(),
		cache:   cache,
		reg:     reg,
		mounter: mount.New(cache, reg),
	}
	f.root = cache.Get(backend.LookupResult{
		Triplet: backend.Triplet{Backend: 0},
		Type:    backend.Directory,
	})
	return f
}

// attachBackend registers a fresh in-memory backend under (instance, name)
// and returns it, already bound to the handle the registry minted.
func (f *fixture) attachBackend(instance uint32, name string) *backendtesting.Server {
	srv := backendtesting.New(timeutil.RealClock())
	h, _ := f.reg.Register(instance, name, backend.Capabilities{}, srv)
	srv.Bind(h)
	return srv
}

func TestMountInstallsTheBackendRootAsTheMountField(t *testing.T) {
	f := newFixture()
	f.attachBackend(1, "fs0")

	root, err := f.mounter.Mount(f.ctx, "/", f.root, 0, 1, "fs0", "")
	if err != nil {
		t.Fatalf("Mount: %v", err)
	}
	if f.root.Mount != root {
		t.Fatalf("mountpoint.Mount was not set to the returned root")
	}
	if root.Type != backend.Directory {
		t.Fatalf("got root type %v, want Directory", root.Type)
	}

	snap := f.mounter.Table.Snapshot()
	want := []mount.Entry{{Path: "/", BackendName: "fs0", Instance: 1, Backend: snap[0].Backend, Service: snap[0].Service}}
	if diff := pretty.Compare(want, snap); diff != "" {
		t.Fatalf("mount table snapshot differs (-want +got):\n%s", diff)
	}
}

func TestMountOverABusyMountpointFails(t *testing.T) {
	f := newFixture()
	f.attachBackend(1, "fs0")
	f.attachBackend(2, "fs1")

	if _, err := f.mounter.Mount(f.ctx, "/", f.root, 0, 1, "fs0", ""); err != nil {
		t.Fatalf("first Mount: %v", err)
	}

	_, err := f.mounter.Mount(f.ctx, "/", f.root, 0, 2, "fs1", "")
	if err != mount.ErrBusy {
		t.Fatalf("got %v, want ErrBusy", err)
	}
}

func TestMountOverARegularFileFails(t *testing.T) {
	f := newFixture()
	f.attachBackend(1, "fs0")
	if _, err := f.mounter.Mount(f.ctx, "/", f.root, 0, 1, "fs0", ""); err != nil {
		t.Fatalf("Mount: %v", err)
	}

	file, err := f.mounter.Walk.Lookup(f.mounter.Context(f.ctx), f.root, "/foo", pathwalk.MayCreate|pathwalk.Regular)
	if err != nil {
		t.Fatalf("Lookup: %v", err)
	}
	defer f.cache.Put(file)

	f.attachBackend(2, "fs1")
	_, err = f.mounter.Mount(f.ctx, "/foo", file, 0, 2, "fs1", "")
	if err != mount.ErrNotDirectory {
		t.Fatalf("got %v, want ErrNotDirectory", err)
	}
}

func TestUnmountFailsWhileSomethingElseHoldsAReference(t *testing.T) {
	f := newFixture()
	f.attachBackend(1, "fs0")

	root, err := f.mounter.Mount(f.ctx, "/", f.root, 0, 1, "fs0", "")
	if err != nil {
		t.Fatalf("Mount: %v", err)
	}

	f.cache.AddRef(root)
	defer f.cache.Put(root)

	if err := f.mounter.Unmount(f.ctx, f.root); err != mount.ErrBusy {
		t.Fatalf("got %v, want ErrBusy", err)
	}
}

func TestUnmountDetachesAndRemovesTheTableEntry(t *testing.T) {
	f := newFixture()
	f.attachBackend(1, "fs0")

	root, err := f.mounter.Mount(f.ctx, "/", f.root, 0, 1, "fs0", "")
	if err != nil {
		t.Fatalf("Mount: %v", err)
	}
	// Drop the reference Mount handed back, leaving only the mountpoint edge.
	f.cache.Put(root)

	if err := f.mounter.Unmount(f.ctx, f.root); err != nil {
		t.Fatalf("Unmount: %v", err)
	}
	if f.root.Mount != nil {
		t.Fatalf("mountpoint.Mount was not cleared")
	}
	if diff := pretty.Compare([]mount.Entry{}, f.mounter.Table.Snapshot()); diff != "" {
		t.Fatalf("mount table not empty after unmount (-want +got):\n%s", diff)
	}
}

func TestUnlinkRemovesTheEntryAndDestroysOnLastReference(t *testing.T) {
	f := newFixture()
	srv := f.attachBackend(1, "fs0")
	root, err := f.mounter.Mount(f.ctx, "/", f.root, 0, 1, "fs0", "")
	if err != nil {
		t.Fatalf("Mount: %v", err)
	}
	defer f.cache.Put(root)

	foo, err := f.mounter.Walk.Lookup(f.mounter.Context(f.ctx), f.root, "/foo", pathwalk.MayCreate|pathwalk.Regular)
	if err != nil {
		t.Fatalf("Lookup (create): %v", err)
	}
	triplet := foo.Triplet
	f.cache.Put(foo)

	// Unlink walks with DisableMounts, so it starts from the mounted root.
	if err := f.mounter.Unlink(f.ctx, root, "/foo", false, nil); err != nil {
		t.Fatalf("Unlink: %v", err)
	}

	if _, err := srv.Stat(f.ctx, &backend.StatRequest{Target: triplet}); err != backend.ErrNotFound {
		t.Fatalf("got %v, want ErrNotFound after unlink dropped the last reference", err)
	}
}

func TestRenameMovesAnEntryBetweenDirectories(t *testing.T) {
	f := newFixture()
	f.attachBackend(1, "fs0")
	root, err := f.mounter.Mount(f.ctx, "/", f.root, 0, 1, "fs0", "")
	if err != nil {
		t.Fatalf("Mount: %v", err)
	}
	defer f.cache.Put(root)

	ctx := f.mounter.Context(f.ctx)

	src, err := f.mounter.Walk.Lookup(ctx, f.root, "/src", pathwalk.MayCreate|pathwalk.Regular)
	if err != nil {
		t.Fatalf("Lookup (create src): %v", err)
	}
	srcTriplet := src.Triplet
	f.cache.Put(src)

	dir, err := f.mounter.Walk.Lookup(ctx, f.root, "/dir", pathwalk.MayCreate|pathwalk.Directory)
	if err != nil {
		t.Fatalf("Lookup (create dir): %v", err)
	}
	f.cache.Put(dir)

	// Rename walks with DisableMounts, so it starts from the mounted root.
	if err := f.mounter.Rename(f.ctx, root, "/src", "/dir/dst"); err != nil {
		t.Fatalf("Rename: %v", err)
	}

	if _, err := f.mounter.Walk.Lookup(ctx, f.root, "/src", 0); err != backend.ErrNotFound {
		t.Fatalf("got %v, want ErrNotFound at the old path", err)
	}

	moved, err := f.mounter.Walk.Lookup(ctx, f.root, "/dir/dst", 0)
	if err != nil {
		t.Fatalf("Lookup (new path): %v", err)
	}
	defer f.cache.Put(moved)

	if moved.Triplet != srcTriplet {
		t.Fatalf("got triplet %v at the new path, want %v", moved.Triplet, srcTriplet)
	}
}

func TestRenameOfADirectoryIntoItsOwnSubtreeFails(t *testing.T) {
	f := newFixture()
	f.attachBackend(1, "fs0")
	if _, err := f.mounter.Mount(f.ctx, "/", f.root, 0, 1, "fs0", ""); err != nil {
		t.Fatalf("Mount: %v", err)
	}

	dir, err := f.mounter.Walk.Lookup(f.mounter.Context(f.ctx), f.root, "/dir", pathwalk.MayCreate|pathwalk.Directory)
	if err != nil {
		t.Fatalf("Lookup (create dir): %v", err)
	}
	f.cache.Put(dir)

	err = f.mounter.Rename(f.ctx, f.root, "/dir", "/dir/nested")
	if err != mount.ErrInvalid {
		t.Fatalf("got %v, want ErrInvalid", err)
	}
}
