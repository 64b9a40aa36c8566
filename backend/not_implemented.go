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

import (
	"context"
	"errors"
)

// ErrNotSupported is returned by every NotImplementedServer method. It is
// distinct from the multiplexer's own error sentinels so a back-end author
// can tell "I didn't implement this" apart from a real back-end-reported
// failure while building out a new server incrementally.
var ErrNotSupported = errors.New("backend: not supported")

// NotImplementedServer can be embedded in a Server implementation to supply
// every method as a stub returning ErrNotSupported, so a partial back-end
// only needs to implement the methods it actually serves.
type NotImplementedServer struct{}

var _ Server = &NotImplementedServer{}

func (s *NotImplementedServer) Mounted(ctx context.Context, req *MountedRequest) (*MountedResponse, error) {
	return nil, ErrNotSupported
}

func (s *NotImplementedServer) Unmounted(ctx context.Context, req *UnmountedRequest) (*UnmountedResponse, error) {
	return nil, ErrNotSupported
}

func (s *NotImplementedServer) Lookup(ctx context.Context, req *LookupRequest) (*LookupResponse, error) {
	return nil, ErrNotSupported
}

func (s *NotImplementedServer) Read(ctx context.Context, req *ReadRequest) (*ReadResponse, error) {
	return nil, ErrNotSupported
}

func (s *NotImplementedServer) Write(ctx context.Context, req *WriteRequest) (*WriteResponse, error) {
	return nil, ErrNotSupported
}

func (s *NotImplementedServer) Truncate(ctx context.Context, req *TruncateRequest) (*TruncateResponse, error) {
	return nil, ErrNotSupported
}

func (s *NotImplementedServer) Sync(ctx context.Context, req *SyncRequest) (*SyncResponse, error) {
	return nil, ErrNotSupported
}

func (s *NotImplementedServer) Stat(ctx context.Context, req *StatRequest) (*StatResponse, error) {
	return nil, ErrNotSupported
}

func (s *NotImplementedServer) Statfs(ctx context.Context, req *StatfsRequest) (*StatfsResponse, error) {
	return nil, ErrNotSupported
}

func (s *NotImplementedServer) Destroy(ctx context.Context, req *DestroyRequest) (*DestroyResponse, error) {
	return nil, ErrNotSupported
}

func (s *NotImplementedServer) Link(ctx context.Context, req *LinkRequest) (*LinkResponse, error) {
	return nil, ErrNotSupported
}
