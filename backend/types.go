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

// Package backend defines the contract between the multiplexer and the
// file-system server processes it brokers requests to: the triplet that
// names an object, the capability flags a back-end advertises, and the
// request/response types the multiplexer sends over an exchange.
package backend

import "fmt"

// Handle identifies a connected back-end within the registry. It is opaque
// to everything except the registry and exchange pool.
type Handle uint32

// NodeType mirrors fuseops.Filetype: a small enum carried alongside a
// triplet so the multiplexer never has to ask a back-end "what is this"
// before it can decide how to treat a cached node.
type NodeType int

const (
	NoType NodeType = iota
	Regular
	Directory
	Symlink
	MountPoint
)

func (t NodeType) String() string {
	switch t {
	case Regular:
		return "regular"
	case Directory:
		return "directory"
	case Symlink:
		return "symlink"
	case MountPoint:
		return "mountpoint"
	}
	return "none"
}

// Triplet is the three-part name that uniquely identifies a file-system
// object across all back-ends: which back-end, which service (mounted
// instance of that back-end) and which index within that service.
type Triplet struct {
	Backend Handle
	Service uint64
	Index   uint64
}

func (t Triplet) String() string {
	return fmt.Sprintf("%d/%d/%d", t.Backend, t.Service, t.Index)
}

// Capabilities are advertised by a back-end at REGISTER time and consulted
// by the read/write pre-amble to decide locking mode.
type Capabilities struct {
	// ConcurrentReadWrite: the back-end can serve a write concurrently with
	// reads on the same node without the multiplexer serializing them.
	ConcurrentReadWrite bool

	// WriteRetainsSize: a write never shrinks the file's reported size
	// (i.e. the back-end is append/hole-friendly), which lets the
	// multiplexer take a read lock instead of a write lock for writes when
	// combined with ConcurrentReadWrite.
	WriteRetainsSize bool
}

// LookupResult is the transient value returned by a successful back-end
// Lookup (or Mounted) call: enough information for the node cache to either
// find or mint a cache entry, without yet touching the cache itself.
type LookupResult struct {
	Triplet Triplet
	Size    uint64
	Type    NodeType
}
