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

package rpcbackend

import (
	"context"
	"net"

	"github.com/vfsmux/vfsmux/backend"
	"github.com/vfsmux/vfsmux/internal/wire"
)

// Serve runs srv behind conn until the connection closes or ctx is done,
// decoding one Envelope per frame, dispatching by Op, and writing back a
// reply Envelope per request. It is the out-of-process counterpart to
// Client: a back-end binary built against the backend.Server interface
// (backendtesting.Server, or a purpose-built one) links this in to become
// reachable over the wire instead of in-process, without its own
// implementation ever touching wire.Envelope directly.
//
// Requests are answered concurrently, each on its own goroutine, mirroring
// the multiplexer's own per-request dispatch (dispatcher.go) so a slow
// back-end operation never head-of-line-blocks an unrelated one on the
// same connection.
func Serve(ctx context.Context, conn net.Conn, srv backend.Server) error {
	var writeMu chanMutex
	writeMu.init()

	done := make(chan error, 1)
	go func() {
		for {
			payload, err := wire.ReadFrame(conn)
			if err != nil {
				done <- err
				return
			}
			env, err := wire.DecodeEnvelope(payload)
			wire.PutBuffer(payload)
			if err != nil {
				continue
			}

			go serveOne(ctx, conn, &writeMu, srv, env)
		}
	}()

	select {
	case <-ctx.Done():
		conn.Close()
		return ctx.Err()
	case err := <-done:
		return err
	}
}

// chanMutex is a channel-based mutex, used here purely so a reader holding
// no other lock can still serialize concurrent writers without importing
// sync just for one Mutex; functionally identical to sync.Mutex.
type chanMutex chan struct{}

func (m *chanMutex) init()  { *m = make(chan struct{}, 1); *m <- struct{}{} }
func (m chanMutex) lock()   { <-m }
func (m chanMutex) unlock() { m <- struct{}{} }

func serveOne(ctx context.Context, conn net.Conn, writeMu *chanMutex, srv backend.Server, env wire.Envelope) {
	resp, err := dispatch(ctx, srv, env)

	out := wire.Envelope{ID: env.ID}
	if err != nil {
		fault := encodeErr(err)
		faultBytes, _ := wire.Marshal(fault)
		out.Err = string(faultBytes)
	} else {
		payload, merr := wire.Marshal(resp)
		if merr != nil {
			faultBytes, _ := wire.Marshal(&wireFault{Message: merr.Error()})
			out.Err = string(faultBytes)
		} else {
			out.Payload = payload
		}
	}

	envPayload, err := wire.EncodeEnvelope(out)
	if err != nil {
		return
	}

	writeMu.lock()
	wire.WriteFrame(conn, envPayload)
	writeMu.unlock()
}

func dispatch(ctx context.Context, srv backend.Server, env wire.Envelope) (interface{}, error) {
	switch env.Op {
	case "MOUNTED":
		var req backend.MountedRequest
		if err := wire.Unmarshal(env.Payload, &req); err != nil {
			return nil, err
		}
		return srv.Mounted(ctx, &req)

	case "UNMOUNTED":
		var req backend.UnmountedRequest
		if err := wire.Unmarshal(env.Payload, &req); err != nil {
			return nil, err
		}
		return srv.Unmounted(ctx, &req)

	case "LOOKUP":
		var req backend.LookupRequest
		if err := wire.Unmarshal(env.Payload, &req); err != nil {
			return nil, err
		}
		return srv.Lookup(ctx, &req)

	case "READ":
		var req backend.ReadRequest
		if err := wire.Unmarshal(env.Payload, &req); err != nil {
			return nil, err
		}
		return srv.Read(ctx, &req)

	case "WRITE":
		var req backend.WriteRequest
		if err := wire.Unmarshal(env.Payload, &req); err != nil {
			return nil, err
		}
		return srv.Write(ctx, &req)

	case "TRUNCATE":
		var req backend.TruncateRequest
		if err := wire.Unmarshal(env.Payload, &req); err != nil {
			return nil, err
		}
		return srv.Truncate(ctx, &req)

	case "SYNC":
		var req backend.SyncRequest
		if err := wire.Unmarshal(env.Payload, &req); err != nil {
			return nil, err
		}
		return srv.Sync(ctx, &req)

	case "STAT":
		var req backend.StatRequest
		if err := wire.Unmarshal(env.Payload, &req); err != nil {
			return nil, err
		}
		return srv.Stat(ctx, &req)

	case "STATFS":
		var req backend.StatfsRequest
		if err := wire.Unmarshal(env.Payload, &req); err != nil {
			return nil, err
		}
		return srv.Statfs(ctx, &req)

	case "DESTROY":
		var req backend.DestroyRequest
		if err := wire.Unmarshal(env.Payload, &req); err != nil {
			return nil, err
		}
		return srv.Destroy(ctx, &req)

	case "LINK":
		var req backend.LinkRequest
		if err := wire.Unmarshal(env.Payload, &req); err != nil {
			return nil, err
		}
		return srv.Link(ctx, &req)
	}

	return nil, backend.ErrNotSupported
}
