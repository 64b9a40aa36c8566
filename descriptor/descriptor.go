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

// Package descriptor implements the per-client descriptor table: a small
// integer namespace mapping a file descriptor to an open-file record.
package descriptor

import (
	"errors"
	"sync"

	"github.com/vfsmux/vfsmux/backend"
	"github.com/vfsmux/vfsmux/node"
)

// ErrBadDescriptor is returned by Get/Free for an unknown or already-freed
// descriptor; it is the same sentinel the client boundary reports.
var ErrBadDescriptor = backend.ErrBadDescriptor

// Mode bits requested at open time.
type Mode uint32

const (
	Read Mode = 1 << iota
	Write
	Append
)

// File is the open-file record bound to one descriptor: a strong reference
// to a node, a cursor position, and the mode it was opened with. Every
// operation on a File is serialized by its own mutex, so concurrent
// operations on different descriptors never block one another.
type File struct {
	mu sync.Mutex

	Node     *node.Node
	Position uint64
	Mode     Mode
}

// FD is a descriptor: an index into a Table.
type FD int

// Table is a per-instance descriptor table. Slots are reused the same way
// the teacher reuses inode IDs: a free list of vacated slots, falling back
// to growing the backing slice.
//
// Table itself only tracks slot occupancy; it does not know how to release
// a File's node reference — callers supply that via Free's return value.
type Table struct {
	mu sync.Mutex

	files    []*File // GUARDED_BY(mu); nil entries are free
	freeLow  []FD    // GUARDED_BY(mu); reusable low slots
	freeHigh []FD    // GUARDED_BY(mu); reusable high slots, from Alloc(preferHigh=true)

	high map[FD]bool // GUARDED_BY(mu); slots handed out by Alloc(preferHigh=true)

	limit int
}

// New creates a table bounded to at most limit live descriptors.
func New(limit int) *Table {
	return &Table{limit: limit}
}

// ErrTableFull is returned by Alloc when the table is at its configured
// limit and has no free slot to reuse.
var ErrTableFull = errors.New("descriptor: table full")

// Alloc installs f at a free slot, returning the descriptor. By default
// the lowest slot vacated by an earlier allocation without preferHigh is
// reused; with preferHigh, a slot vacated by an earlier preferHigh
// allocation is reused instead, which keeps the two kinds from taking each
// other's vacated slots. When no such slot is free, either kind grows the
// table by one slot at its end: a preferHigh descriptor is not placed at
// the top of the descriptor range.
func (t *Table) Alloc(f *File, preferHigh bool) (FD, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if preferHigh && len(t.freeHigh) > 0 {
		n := len(t.freeHigh)
		fd := t.freeHigh[n-1]
		t.freeHigh = t.freeHigh[:n-1]
		t.files[fd] = f
		return fd, nil
	}

	if !preferHigh && len(t.freeLow) > 0 {
		i := 0
		for j, cand := range t.freeLow {
			if cand < t.freeLow[i] {
				i = j
			}
		}
		fd := t.freeLow[i]
		t.freeLow = append(t.freeLow[:i], t.freeLow[i+1:]...)
		t.files[fd] = f
		return fd, nil
	}

	if len(t.files) >= t.limit {
		return 0, ErrTableFull
	}

	fd := FD(len(t.files))
	t.files = append(t.files, f)

	if preferHigh {
		if t.high == nil {
			t.high = make(map[FD]bool)
		}
		t.high[fd] = true
	}

	return fd, nil
}

// Get returns the File at fd with its mutex held for the caller, or
// ErrBadDescriptor if fd is out of range or currently free. Every Get must
// be matched by a Put.
func (t *Table) Get(fd FD) (*File, error) {
	t.mu.Lock()
	f := t.at(fd)
	t.mu.Unlock()

	if f == nil {
		return nil, ErrBadDescriptor
	}

	f.mu.Lock()
	return f, nil
}

// Put releases the mutex acquired by Get without affecting the descriptor
// table or the file's node reference.
func (t *Table) Put(f *File) {
	f.mu.Unlock()
}

func (t *Table) at(fd FD) *File {
	if fd < 0 || int(fd) >= len(t.files) {
		return nil
	}
	return t.files[fd]
}

// Assign installs f at slot fd, evicting and returning whatever File was
// previously there (nil if the slot was free). The caller is responsible
// for releasing the evicted File's node reference.
func (t *Table) Assign(fd FD, f *File) *File {
	t.mu.Lock()
	defer t.mu.Unlock()

	var old *File
	if int(fd) < len(t.files) {
		old = t.files[fd]
	} else {
		for int(fd) >= len(t.files) {
			t.files = append(t.files, nil)
		}
	}
	t.files[fd] = f
	return old
}

// Free vacates fd, returning the File that was installed there so the
// caller can drop its node reference. Returns ErrBadDescriptor if fd was
// already free.
func (t *Table) Free(fd FD) (*File, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	f := t.at(fd)
	if f == nil {
		return nil, ErrBadDescriptor
	}

	t.files[fd] = nil
	if t.high[fd] {
		t.freeHigh = append(t.freeHigh, fd)
	} else {
		t.freeLow = append(t.freeLow, fd)
	}

	return f, nil
}

// Clone creates a second File bound to the same node as oldfd (adding a
// reference to it), starting with the source's permission mode; the new
// File's position is independent of the source's.
func (t *Table) Clone(oldfd FD, preferHigh bool, addRef func(*node.Node)) (FD, error) {
	src, err := t.Get(oldfd)
	if err != nil {
		return 0, err
	}
	defer t.Put(src)

	addRef(src.Node)

	dst := &File{
		Node: src.Node,
		Mode: src.Mode,
	}

	return t.Alloc(dst, preferHigh)
}
