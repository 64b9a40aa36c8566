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

// Package vfsmux implements a virtual file system multiplexer: a broker
// that maps one unified namespace of open descriptors, path lookup,
// read/write, mount/unmount and rename onto a pluggable set of file-system
// back-end server processes.
package vfsmux

import (
	"errors"

	"github.com/vfsmux/vfsmux/backend"
)

// Canonical error kinds at the client boundary. These are the same
// sentinels backend.Server implementations report; vfsmux re-exports them
// under client-facing names so callers of this package never need to
// import backend directly just to compare against an error.
var (
	ErrBadDescriptor = backend.ErrBadDescriptor
	ErrNotFound      = backend.ErrNotFound
	ErrExists        = backend.ErrExists
	ErrNotDirectory  = backend.ErrNotDirectory
	ErrIsDirectory   = backend.ErrIsDirectory
	ErrNotEmpty      = backend.ErrNotEmpty
	ErrBusy          = backend.ErrBusy
	ErrInvalid       = backend.ErrInvalid
	ErrPermission    = backend.ErrPermission
	ErrOverflow      = backend.ErrOverflow
	ErrNotSupported  = backend.ErrNotSupported
	ErrNoMemory      = backend.ErrNoMemory
)

// BackendError is an opaque error code or message reported by a back-end
// that isn't one of the canonical kinds; it is forwarded to the client
// unchanged.
type BackendError = backend.WireError

var errUnreachableBackend = errors.New("vfsmux: backend unreachable")
