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

package backend

import "time"

// MountedRequest is sent once when a back-end is attached to the namespace,
// carrying the service id the multiplexer minted for this mount and the
// options string the client passed to MOUNT. The back-end is expected to
// return the triplet and size of its root.
type MountedRequest struct {
	Service uint64
	Options string
}

type MountedResponse struct {
	Root Triplet
	Size uint64
}

// UnmountedRequest tells the back-end it is being detached; after a
// successful reply the multiplexer issues no further requests bearing this
// Service id.
type UnmountedRequest struct {
	Service uint64
}

type UnmountedResponse struct{}

// LookupFlags mirror the subset of pathwalk.Flags a single step of a walk
// needs once the multiplexer has already decided which back-end and parent
// index to consult.
type LookupFlags uint32

const (
	LookupCreate LookupFlags = 1 << iota
	LookupExclusive
	LookupFile
	LookupDirectory
	LookupUnlink
)

type LookupRequest struct {
	Parent Triplet
	Name   string
	Flags  LookupFlags
}

type LookupResponse struct {
	Result LookupResult
}

type ReadRequest struct {
	Target    Triplet
	RequestID uint64
	Offset    uint64
	Size      uint32
}

type ReadResponse struct {
	Data []byte
}

type WriteRequest struct {
	Target    Triplet
	RequestID uint64
	Offset    uint64
	Data      []byte
}

type WriteResponse struct {
	// Size is the back-end's report of the resulting file size after the
	// write. The multiplexer always folds this into the cached size with
	// max(current, Size), regardless of WriteRetainsSize — that flag only
	// selects the lock mode a write is issued under, never the size update.
	Size uint64
}

type TruncateRequest struct {
	Target Triplet
	Size   uint64
}

type TruncateResponse struct{}

type SyncRequest struct {
	Target Triplet
}

type SyncResponse struct{}

type StatRequest struct {
	Target Triplet
}

type StatResponse struct {
	Size uint64
	Type NodeType

	// Children is the directory entry count; meaningless (and left zero)
	// for a regular file. Mount's NOT_EMPTY precondition reads this rather
	// than Size, since a directory's byte size carries no such meaning.
	Children uint64

	// Mtime is bumped on Write/Truncate; Ctime on any metadata change
	// (creation, link count change). Both are back-end-supplied and
	// opaque to the multiplexer, which does no clock-keeping of its own.
	Mtime time.Time
	Ctime time.Time
}

type StatfsRequest struct {
	Target Triplet
}

type StatfsResponse struct {
	BlockSize  uint32
	Blocks     uint64
	BlocksFree uint64
	Files      uint64
	FilesFree  uint64
}

// DestroyRequest tells the back-end that the object is no longer referenced
// anywhere (not in the node cache, not by an open-file, not by a mount
// edge) and, having already been unlinked, may be reclaimed.
type DestroyRequest struct {
	Target Triplet
}

type DestroyResponse struct{}

// LinkRequest asks the back-end to add a directory entry Name under Parent
// pointing at Target's index, used both by ordinary link-creation and by
// rename's "link at new name" step.
type LinkRequest struct {
	Parent Triplet
	Name   string
	Target Triplet
}

type LinkResponse struct{}
