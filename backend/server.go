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

import "context"

// Server is the contract a file-system back-end process implements. The
// multiplexer calls these methods synchronously over an exchange borrowed
// from the back-end's channel pool; each call corresponds to exactly one
// request/response round trip on the wire.
//
// Implementations must be safe for concurrent use: the multiplexer may have
// one call in flight per exchange channel, and a back-end advertising
// multiple channels will see concurrent calls across them.
type Server interface {
	// Mounted is called once when the multiplexer attaches this back-end
	// at a mountpoint, with the service id the multiplexer minted for the
	// attachment. The returned triplet becomes the root of the mounted
	// subtree.
	Mounted(ctx context.Context, req *MountedRequest) (*MountedResponse, error)

	// Unmounted is called once when the back-end is detached. No further
	// calls bearing this request's Service id follow a successful reply.
	Unmounted(ctx context.Context, req *UnmountedRequest) (*UnmountedResponse, error)

	// Lookup resolves Name within Parent, optionally creating it per
	// req.Flags.
	Lookup(ctx context.Context, req *LookupRequest) (*LookupResponse, error)

	Read(ctx context.Context, req *ReadRequest) (*ReadResponse, error)
	Write(ctx context.Context, req *WriteRequest) (*WriteResponse, error)
	Truncate(ctx context.Context, req *TruncateRequest) (*TruncateResponse, error)
	Sync(ctx context.Context, req *SyncRequest) (*SyncResponse, error)
	Stat(ctx context.Context, req *StatRequest) (*StatResponse, error)
	Statfs(ctx context.Context, req *StatfsRequest) (*StatfsResponse, error)

	// Destroy tells the back-end an object has no remaining references
	// anywhere in the multiplexer (cache, open files, mount edges) and,
	// having already been unlinked, may be reclaimed.
	Destroy(ctx context.Context, req *DestroyRequest) (*DestroyResponse, error)

	// Link adds a directory entry; used both for ordinary link creation
	// and as the second half of a rename.
	Link(ctx context.Context, req *LinkRequest) (*LinkResponse, error)
}
