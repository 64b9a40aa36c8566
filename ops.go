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
	"github.com/vfsmux/vfsmux/backend"
	"github.com/vfsmux/vfsmux/descriptor"
	"github.com/vfsmux/vfsmux/mount"
	"github.com/vfsmux/vfsmux/pathwalk"
)

// MountFlags is the client-facing alias of mount.Flags: BLOCKING,
// CONNECT_ONLY, NO_REF.
type MountFlags = mount.Flags

const (
	MountBlocking    = mount.Blocking
	MountConnectOnly = mount.ConnectOnly
	MountNoRef       = mount.NoRef
)

// WalkFlags is the client-facing alias of pathwalk.Flags.
type WalkFlags = pathwalk.Flags

const (
	WalkMayCreate      = pathwalk.MayCreate
	WalkMustCreate     = pathwalk.MustCreate
	WalkRegular        = pathwalk.Regular
	WalkDirectory      = pathwalk.Directory
	WalkMountPointOnly = pathwalk.MountPointOnly
	WalkUnlink         = pathwalk.Unlink
	WalkDisableMounts  = pathwalk.DisableMounts
)

// OpenMode is the client-facing permission mask requested by OPEN2.
type OpenMode = descriptor.Mode

const (
	OpenRead   = descriptor.Read
	OpenWrite  = descriptor.Write
	OpenAppend = descriptor.Append
)

// SeekWhence selects the reference point for a SEEK call.
type SeekWhence int

const (
	SeekSet SeekWhence = iota
	SeekCur
	SeekEnd
)

// RegisterArgs carries a connecting back-end's declared name, capability
// flags, and the Server stub the transport layer has already built for
// this connection (e.g. an internal/wire client for an out-of-process
// back-end); the dispatcher turns this into a registry.Register call and
// answers with an ack.
type RegisterArgs struct {
	Instance     uint32
	Name         string
	Capabilities BackendCapabilities
	Server       backend.Server
}

// BackendCapabilities mirrors backend.Capabilities at the wire boundary.
type BackendCapabilities struct {
	ConcurrentReadWrite bool
	WriteRetainsSize    bool
}

// MountArgs carries a MOUNT call's fixed fields; Path, Options and
// BackendName are the call's data-phase payload. Path is the caller's
// already-canonicalized mountpoint path, stored verbatim in the resulting
// mount entry — the client sends it explicitly rather than leaving the
// multiplexer to reconstruct it from MountPointFD after the fact.
type MountArgs struct {
	MountPointFD descriptor.FD
	Flags        MountFlags
	Instance     uint32
	Path         string
	Options      string
	BackendName  string
}

// WalkArgs carries a WALK call's fixed fields; Path is the data-phase
// payload.
type WalkArgs struct {
	ParentFD descriptor.FD
	Flags    WalkFlags
	Path     string
}

// RenameArgs carries a RENAME call's fixed fields; OldPath and NewPath are
// the data-phase payload.
type RenameArgs struct {
	BaseFD  descriptor.FD
	OldPath string
	NewPath string
}

// UnlinkArgs carries an UNLINK2 call's fixed fields. ExpectedFD, when
// non-negative, must match the descriptor WALK would have resolved for
// Path; it is a distinct value from ParentFD, used by a caller that
// already holds a reference to the target to detect a race against a
// concurrent rename of the same name. Flags carries only WalkDirectory,
// which restricts the match to a directory (the RMDIR-style half of
// UNLINK2); every other WalkFlags bit is ignored.
type UnlinkArgs struct {
	ParentFD   descriptor.FD
	ExpectedFD descriptor.FD
	Flags      WalkFlags
	Path       string
}

// OpenArgs carries an OPEN2 call.
type OpenArgs struct {
	FD   descriptor.FD
	Mode OpenMode
}

// ReadArgs carries a READ call.
type ReadArgs struct {
	FD   descriptor.FD
	Size uint32
}

// WriteArgs carries a WRITE call; Data is the call's data-phase payload.
type WriteArgs struct {
	FD   descriptor.FD
	Data []byte
}

// SeekArgs carries a SEEK call.
type SeekArgs struct {
	FD     descriptor.FD
	Offset int64
	Whence SeekWhence
}

// TruncateArgs carries a TRUNCATE call.
type TruncateArgs struct {
	FD   descriptor.FD
	Size uint64
}

// DupArgs carries a DUP call.
type DupArgs struct {
	OldFD descriptor.FD
	NewFD descriptor.FD
}

// CloneArgs carries a CLONE call.
type CloneArgs struct {
	OldFD      descriptor.FD
	PreferHigh bool
}

// WaitHandleArgs carries a WAIT_HANDLE call: a request for an unbound
// descriptor a client can hold before any node exists to back it, e.g. to
// pass to a child process.
type WaitHandleArgs struct {
	PreferHigh bool
}

// MtabEntry is one row of a GET_MTAB reply.
type MtabEntry struct {
	Path        string
	Options     string
	BackendName string
	Instance    uint32
	Service     uint64
}
