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

// Package rpcbackend implements backend.Server over a net.Conn using
// internal/wire framing, for a back-end that connects to the multiplexer
// out of process rather than linking against it directly (as
// backendtesting.Server does in-process). It is the multiplexer-side half
// of the connection only: the registry holds a *Client in place of an
// in-process backend.Server, and every interface method becomes one
// request/response round trip over the wire.
package rpcbackend

import (
	"context"
	"fmt"
	"net"
	"sync"
	"sync/atomic"

	"github.com/vfsmux/vfsmux/backend"
	"github.com/vfsmux/vfsmux/internal/wire"
)

// errCode is the wire representation of one of backend's canonical error
// sentinels; zero means "not one of the canonical kinds", in which case
// the envelope's Err string is surfaced as a backend.WireError instead.
type errCode int32

const (
	codeNone errCode = iota
	codeBadDescriptor
	codeNotFound
	codeExists
	codeNotDirectory
	codeIsDirectory
	codeNotEmpty
	codeBusy
	codeInvalid
	codePermission
	codeOverflow
	codeNotSupported
	codeNoMemory
)

var sentinelToCode = map[error]errCode{
	backend.ErrBadDescriptor: codeBadDescriptor,
	backend.ErrNotFound:      codeNotFound,
	backend.ErrExists:        codeExists,
	backend.ErrNotDirectory:  codeNotDirectory,
	backend.ErrIsDirectory:   codeIsDirectory,
	backend.ErrNotEmpty:      codeNotEmpty,
	backend.ErrBusy:          codeBusy,
	backend.ErrInvalid:       codeInvalid,
	backend.ErrPermission:    codePermission,
	backend.ErrOverflow:      codeOverflow,
	backend.ErrNotSupported:  codeNotSupported,
	backend.ErrNoMemory:      codeNoMemory,
}

var codeToSentinel = map[errCode]error{
	codeBadDescriptor: backend.ErrBadDescriptor,
	codeNotFound:      backend.ErrNotFound,
	codeExists:        backend.ErrExists,
	codeNotDirectory:  backend.ErrNotDirectory,
	codeIsDirectory:   backend.ErrIsDirectory,
	codeNotEmpty:      backend.ErrNotEmpty,
	codeBusy:          backend.ErrBusy,
	codeInvalid:       backend.ErrInvalid,
	codePermission:    backend.ErrPermission,
	codeOverflow:      backend.ErrOverflow,
	codeNotSupported:  backend.ErrNotSupported,
	codeNoMemory:      backend.ErrNoMemory,
}

// wireFault is the envelope payload carried instead of a normal response
// when a call fails; it round-trips both canonical sentinels and opaque
// back-end-specific errors without collapsing one into the other.
type wireFault struct {
	Code     errCode
	WireCode int32
	Message  string
}

func encodeErr(err error) *wireFault {
	if err == nil {
		return nil
	}
	if code, ok := sentinelToCode[err]; ok {
		return &wireFault{Code: code}
	}
	if we, ok := err.(*backend.WireError); ok {
		return &wireFault{WireCode: we.Code, Message: we.Message}
	}
	return &wireFault{Message: err.Error()}
}

func decodeErr(f *wireFault) error {
	if f == nil {
		return nil
	}
	if f.Code != codeNone {
		if s, ok := codeToSentinel[f.Code]; ok {
			return s
		}
	}
	return &backend.WireError{Code: f.WireCode, Message: f.Message}
}

// Client is a backend.Server stub that forwards every call over conn.
// Safe for concurrent use: each call is tagged with a fresh correlation
// id, so replies may arrive out of order across a single Client the same
// way exchange.Pool lets many logical calls share one connection.
type Client struct {
	conn net.Conn

	writeMu sync.Mutex

	nextID  uint64
	pendMu  sync.Mutex
	pending map[uint64]chan wire.Envelope

	closeOnce sync.Once
	closed    chan struct{}
}

var _ backend.Server = (*Client)(nil)

// NewClient wraps conn as a backend.Server and starts reading replies from
// it in the background. The caller must have already completed whatever
// handshake precedes ordinary request/response traffic (see the REGISTER
// handling in cmd/vfsmuxd) before calling NewClient, since the read loop
// treats every subsequent frame as a reply to one of this Client's own
// requests.
func NewClient(conn net.Conn) *Client {
	c := &Client{
		conn:    conn,
		pending: make(map[uint64]chan wire.Envelope),
		closed:  make(chan struct{}),
	}
	go c.readLoop()
	return c
}

// Close terminates the underlying connection and fails every outstanding
// call.
func (c *Client) Close() error {
	c.closeOnce.Do(func() { close(c.closed) })
	return c.conn.Close()
}

func (c *Client) readLoop() {
	for {
		payload, err := wire.ReadFrame(c.conn)
		if err != nil {
			c.failAllPending(err)
			return
		}
		env, err := wire.DecodeEnvelope(payload)
		wire.PutBuffer(payload)
		if err != nil {
			continue
		}

		c.pendMu.Lock()
		ch, ok := c.pending[env.ID]
		if ok {
			delete(c.pending, env.ID)
		}
		c.pendMu.Unlock()

		if ok {
			ch <- env
		}
	}
}

func (c *Client) failAllPending(err error) {
	c.pendMu.Lock()
	defer c.pendMu.Unlock()
	for id, ch := range c.pending {
		ch <- wire.Envelope{ID: id, Err: err.Error()}
		delete(c.pending, id)
	}
}

func (c *Client) call(ctx context.Context, op string, req, resp interface{}) error {
	payload, err := wire.Marshal(req)
	if err != nil {
		return err
	}

	id := atomic.AddUint64(&c.nextID, 1)
	ch := make(chan wire.Envelope, 1)

	c.pendMu.Lock()
	c.pending[id] = ch
	c.pendMu.Unlock()

	envPayload, err := wire.EncodeEnvelope(wire.Envelope{ID: id, Op: op, Payload: payload})
	if err != nil {
		return err
	}

	c.writeMu.Lock()
	err = wire.WriteFrame(c.conn, envPayload)
	c.writeMu.Unlock()
	if err != nil {
		return err
	}

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-c.closed:
		return fmt.Errorf("rpcbackend: connection closed")
	case env := <-ch:
		if env.Err != "" {
			var f wireFault
			if uerr := wire.Unmarshal([]byte(env.Err), &f); uerr == nil {
				return decodeErr(&f)
			}
			return &backend.WireError{Message: env.Err}
		}
		return wire.Unmarshal(env.Payload, resp)
	}
}

func (c *Client) Mounted(ctx context.Context, req *backend.MountedRequest) (*backend.MountedResponse, error) {
	resp := &backend.MountedResponse{}
	if err := c.call(ctx, "MOUNTED", req, resp); err != nil {
		return nil, err
	}
	return resp, nil
}

func (c *Client) Unmounted(ctx context.Context, req *backend.UnmountedRequest) (*backend.UnmountedResponse, error) {
	resp := &backend.UnmountedResponse{}
	if err := c.call(ctx, "UNMOUNTED", req, resp); err != nil {
		return nil, err
	}
	return resp, nil
}

func (c *Client) Lookup(ctx context.Context, req *backend.LookupRequest) (*backend.LookupResponse, error) {
	resp := &backend.LookupResponse{}
	if err := c.call(ctx, "LOOKUP", req, resp); err != nil {
		return nil, err
	}
	return resp, nil
}

func (c *Client) Read(ctx context.Context, req *backend.ReadRequest) (*backend.ReadResponse, error) {
	resp := &backend.ReadResponse{}
	if err := c.call(ctx, "READ", req, resp); err != nil {
		return nil, err
	}
	return resp, nil
}

func (c *Client) Write(ctx context.Context, req *backend.WriteRequest) (*backend.WriteResponse, error) {
	resp := &backend.WriteResponse{}
	if err := c.call(ctx, "WRITE", req, resp); err != nil {
		return nil, err
	}
	return resp, nil
}

func (c *Client) Truncate(ctx context.Context, req *backend.TruncateRequest) (*backend.TruncateResponse, error) {
	resp := &backend.TruncateResponse{}
	if err := c.call(ctx, "TRUNCATE", req, resp); err != nil {
		return nil, err
	}
	return resp, nil
}

func (c *Client) Sync(ctx context.Context, req *backend.SyncRequest) (*backend.SyncResponse, error) {
	resp := &backend.SyncResponse{}
	if err := c.call(ctx, "SYNC", req, resp); err != nil {
		return nil, err
	}
	return resp, nil
}

func (c *Client) Stat(ctx context.Context, req *backend.StatRequest) (*backend.StatResponse, error) {
	resp := &backend.StatResponse{}
	if err := c.call(ctx, "STAT", req, resp); err != nil {
		return nil, err
	}
	return resp, nil
}

func (c *Client) Statfs(ctx context.Context, req *backend.StatfsRequest) (*backend.StatfsResponse, error) {
	resp := &backend.StatfsResponse{}
	if err := c.call(ctx, "STATFS", req, resp); err != nil {
		return nil, err
	}
	return resp, nil
}

func (c *Client) Destroy(ctx context.Context, req *backend.DestroyRequest) (*backend.DestroyResponse, error) {
	resp := &backend.DestroyResponse{}
	if err := c.call(ctx, "DESTROY", req, resp); err != nil {
		return nil, err
	}
	return resp, nil
}

func (c *Client) Link(ctx context.Context, req *backend.LinkRequest) (*backend.LinkResponse, error) {
	resp := &backend.LinkResponse{}
	if err := c.call(ctx, "LINK", req, resp); err != nil {
		return nil, err
	}
	return resp, nil
}
