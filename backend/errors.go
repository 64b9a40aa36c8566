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

import "errors"

// These are the canonical, exhaustive error kinds at the client boundary.
// A back-end's Server implementation reports them directly (whether it is
// in-process, like backendtesting, or a stub fronting a wire connection to
// an out-of-process server), and every layer above — pathwalk, mount, the
// dispatcher — forwards them unchanged rather than reinterpreting them,
// except where a specific kind (e.g. ErrNotFound during rename's
// destination unlink) is itself part of that layer's own control flow.
var (
	ErrBadDescriptor = errors.New("backend: bad descriptor")
	ErrNotFound      = errors.New("backend: not found")
	ErrExists        = errors.New("backend: exists")
	ErrNotDirectory  = errors.New("backend: not a directory")
	ErrIsDirectory   = errors.New("backend: is a directory")
	ErrNotEmpty      = errors.New("backend: not empty")
	ErrBusy          = errors.New("backend: busy")
	ErrInvalid       = errors.New("backend: invalid argument")
	ErrPermission    = errors.New("backend: permission denied")
	ErrOverflow      = errors.New("backend: overflow")
	ErrNoMemory      = errors.New("backend: no memory")
)

// WireError wraps an opaque error code or message reported by a back-end
// that does not correspond to one of the canonical kinds above (I/O
// failure, device error, anything back-end-specific). It is forwarded to
// the client unchanged rather than collapsed into one of the sentinels.
type WireError struct {
	Code    int32
	Message string
}

func (e *WireError) Error() string {
	if e.Message != "" {
		return e.Message
	}
	return "backend: wire error"
}
