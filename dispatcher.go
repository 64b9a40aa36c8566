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
	"context"

	"github.com/jacobsa/reqtrace"
	"golang.org/x/sync/errgroup"

	"github.com/vfsmux/vfsmux/descriptor"
)

// Request is one decoded client call together with the means to answer
// it. Args holds one of the *Args structs in ops.go, or a descriptor.FD /
// other scalar for the single-argument operations.
type Request struct {
	Op     string
	Args   interface{}
	Answer func(resp interface{}, err error)
}

// Dispatcher runs each decoded Request on its own goroutine against one
// Connection, so a slow back-end round trip triggered by one client call
// never blocks another concurrent call on the same connection. Every
// Request receives exactly one Answer call, including on the error path.
type Dispatcher struct {
	mux  *Multiplexer
	conn *Connection
}

func NewDispatcher(mux *Multiplexer, conn *Connection) *Dispatcher {
	return &Dispatcher{mux: mux, conn: conn}
}

// Serve reads from reqs until it is closed or ctx is done, fanning each
// request out to its own goroutine, and returns once every in-flight
// request has been answered.
func (d *Dispatcher) Serve(ctx context.Context, reqs <-chan *Request) error {
	g, gctx := errgroup.WithContext(ctx)

loop:
	for {
		select {
		case <-ctx.Done():
			break loop
		case req, ok := <-reqs:
			if !ok {
				break loop
			}
			req := req
			g.Go(func() error {
				d.handle(gctx, req)
				return nil
			})
		}
	}

	return g.Wait()
}

func (d *Dispatcher) handle(ctx context.Context, req *Request) {
	spanCtx, report := reqtrace.StartSpan(ctx, req.Op)

	resp, err := d.dispatch(spanCtx, req)
	report(err)

	debugf("%s] -> err=%v", req.Op, err)
	req.Answer(resp, err)
}

func (d *Dispatcher) dispatch(ctx context.Context, req *Request) (interface{}, error) {
	switch args := req.Args.(type) {
	case *WalkArgs:
		return d.mux.Walk(ctx, d.conn, *args)

	case *MountArgs:
		return d.mux.Mount(ctx, d.conn, *args)

	case descriptor.FD:
		switch req.Op {
		case "UNMOUNT":
			return nil, d.mux.Unmount(ctx, d.conn, args)
		case "CLOSE":
			return nil, d.mux.Close(d.conn, args)
		case "SYNC":
			return nil, d.mux.Sync(ctx, d.conn, args)
		case "STAT":
			return d.mux.Stat(ctx, d.conn, args)
		case "STATFS":
			return d.mux.Statfs(ctx, d.conn, args)
		}
		return nil, ErrNotSupported

	case *RenameArgs:
		return nil, d.mux.Rename(ctx, d.conn, *args)

	case *UnlinkArgs:
		return nil, d.mux.Unlink(ctx, d.conn, *args)

	case *OpenArgs:
		return nil, d.mux.Open2(d.conn, args.FD, args.Mode)

	case *ReadArgs:
		return d.mux.Read(ctx, d.conn, args.FD, args.Size)

	case *WriteArgs:
		return d.mux.Write(ctx, d.conn, args.FD, args.Data)

	case *SeekArgs:
		return d.mux.Seek(d.conn, args.FD, args.Offset, args.Whence)

	case *TruncateArgs:
		return nil, d.mux.Truncate(ctx, d.conn, args.FD, args.Size)

	case *DupArgs:
		return nil, d.mux.Dup(d.conn, args.OldFD, args.NewFD)

	case *CloneArgs:
		return d.mux.Clone(d.conn, args.OldFD, args.PreferHigh)

	case *WaitHandleArgs:
		return d.mux.WaitHandle(d.conn, args.PreferHigh)

	case *RegisterArgs:
		return d.mux.Register(args.Instance, args.Name, args.Capabilities, args.Server), nil

	case nil:
		if req.Op == "GET_MTAB" {
			return d.mux.GetMtab(), nil
		}
		return nil, ErrNotSupported

	default:
		return nil, ErrNotSupported
	}
}
