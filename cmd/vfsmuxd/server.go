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

package main

import (
	"context"
	"net"
	"os"
	"sync"
	"time"

	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"

	"github.com/vfsmux/vfsmux"
	"github.com/vfsmux/vfsmux/descriptor"
	"github.com/vfsmux/vfsmux/internal/wire"
	"github.com/vfsmux/vfsmux/rpcbackend"
)

// server owns the listeners and the Multiplexer they front.
type server struct {
	cfg Config
	log *logrus.Logger
	mux *vfsmux.Multiplexer
}

func newServer(cfg Config, log *logrus.Logger) *server {
	return &server{
		cfg: cfg,
		log: log,
		mux: vfsmux.New(vfsmux.Config{DescriptorTableSize: cfg.DescriptorTableSize}),
	}
}

// Run loads any persisted mount table, serves both listeners until ctx is
// cancelled, then snapshots the mount table and returns.
func (s *server) Run(ctx context.Context) error {
	loadCtx, loadCancel := context.WithTimeout(ctx, time.Duration(s.cfg.MtabLoadTimeout)*time.Second)
	results, err := s.mux.LoadMtab(loadCtx, s.cfg.MtabPath)
	loadCancel()
	if err != nil {
		s.log.WithError(err).Warn("could not load mtab snapshot")
	}
	for _, r := range results {
		if r.Err != nil {
			s.log.WithError(r.Err).WithField("path", r.Path).Warn("replay of persisted mount failed")
		} else {
			s.log.WithField("path", r.Path).Info("replayed persisted mount")
		}
	}

	clientLn, err := listenUnix(s.cfg.ClientAddr)
	if err != nil {
		return err
	}
	backendLn, err := listenUnix(s.cfg.BackendAddr)
	if err != nil {
		clientLn.Close()
		return err
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error { return s.acceptClients(gctx, clientLn) })
	g.Go(func() error { return s.acceptBackends(gctx, backendLn) })
	g.Go(func() error {
		<-gctx.Done()
		clientLn.Close()
		backendLn.Close()
		return nil
	})

	s.log.WithFields(logrus.Fields{
		"client_addr":  s.cfg.ClientAddr,
		"backend_addr": s.cfg.BackendAddr,
	}).Info("vfsmuxd listening")

	err = g.Wait()

	if serr := s.mux.SaveMtab(s.cfg.MtabPath); serr != nil {
		s.log.WithError(serr).Warn("could not save mtab snapshot on shutdown")
	}

	return err
}

func listenUnix(addr string) (net.Listener, error) {
	os.Remove(addr)
	return net.Listen("unix", addr)
}

func (s *server) acceptClients(ctx context.Context, ln net.Listener) error {
	for {
		conn, err := ln.Accept()
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			return err
		}
		go s.serveClient(ctx, conn)
	}
}

func (s *server) serveClient(ctx context.Context, conn net.Conn) {
	defer conn.Close()

	c := s.mux.NewConnection()
	defer c.Close()

	reqs := make(chan *vfsmux.Request)
	disp := vfsmux.NewDispatcher(s.mux, c)

	done := make(chan error, 1)
	go func() { done <- disp.Serve(ctx, reqs) }()

	var writeMu sync.Mutex

	readErr := make(chan struct{})
	go func() {
		defer close(readErr)
		defer close(reqs)

		for {
			payload, err := wire.ReadFrame(conn)
			if err != nil {
				return
			}
			env, err := wire.DecodeEnvelope(payload)
			wire.PutBuffer(payload)
			if err != nil {
				continue
			}

			req, err := decodeClientRequest(env)
			if err != nil {
				reply := wire.Envelope{ID: env.ID, Err: err.Error()}
				writeReply(conn, &writeMu, reply)
				continue
			}

			id := env.ID
			req.Answer = func(resp interface{}, err error) {
				reply := wire.Envelope{ID: id}
				if err != nil {
					reply.Err = err.Error()
				} else if resp != nil {
					payload, merr := wire.Marshal(resp)
					if merr != nil {
						reply.Err = merr.Error()
					} else {
						reply.Payload = payload
					}
				}
				writeReply(conn, &writeMu, reply)
			}

			select {
			case reqs <- req:
			case <-ctx.Done():
				return
			}
		}
	}()

	select {
	case <-ctx.Done():
	case <-readErr:
	}
	<-done
}

func writeReply(conn net.Conn, mu *sync.Mutex, env wire.Envelope) {
	payload, err := wire.EncodeEnvelope(env)
	if err != nil {
		return
	}
	mu.Lock()
	wire.WriteFrame(conn, payload)
	mu.Unlock()
}

// decodeClientRequest turns one client-facing Envelope into a
// *vfsmux.Request, decoding the op-specific payload into the matching
// Args struct. The Answer field is filled in by the caller once the
// FD/payload decode below succeeds.
func decodeClientRequest(env wire.Envelope) (*vfsmux.Request, error) {
	req := &vfsmux.Request{Op: env.Op}

	switch env.Op {
	case "WALK":
		var a vfsmux.WalkArgs
		if err := wire.Unmarshal(env.Payload, &a); err != nil {
			return nil, err
		}
		req.Args = &a

	case "MOUNT":
		var a vfsmux.MountArgs
		if err := wire.Unmarshal(env.Payload, &a); err != nil {
			return nil, err
		}
		req.Args = &a

	case "RENAME":
		var a vfsmux.RenameArgs
		if err := wire.Unmarshal(env.Payload, &a); err != nil {
			return nil, err
		}
		req.Args = &a

	case "UNLINK2":
		var a vfsmux.UnlinkArgs
		if err := wire.Unmarshal(env.Payload, &a); err != nil {
			return nil, err
		}
		req.Args = &a

	case "OPEN2":
		var a vfsmux.OpenArgs
		if err := wire.Unmarshal(env.Payload, &a); err != nil {
			return nil, err
		}
		req.Args = &a

	case "READ":
		var a vfsmux.ReadArgs
		if err := wire.Unmarshal(env.Payload, &a); err != nil {
			return nil, err
		}
		req.Args = &a

	case "WRITE":
		var a vfsmux.WriteArgs
		if err := wire.Unmarshal(env.Payload, &a); err != nil {
			return nil, err
		}
		req.Args = &a

	case "SEEK":
		var a vfsmux.SeekArgs
		if err := wire.Unmarshal(env.Payload, &a); err != nil {
			return nil, err
		}
		req.Args = &a

	case "TRUNCATE":
		var a vfsmux.TruncateArgs
		if err := wire.Unmarshal(env.Payload, &a); err != nil {
			return nil, err
		}
		req.Args = &a

	case "DUP":
		var a vfsmux.DupArgs
		if err := wire.Unmarshal(env.Payload, &a); err != nil {
			return nil, err
		}
		req.Args = &a

	case "CLONE":
		var a vfsmux.CloneArgs
		if err := wire.Unmarshal(env.Payload, &a); err != nil {
			return nil, err
		}
		req.Args = &a

	case "WAIT_HANDLE":
		var a vfsmux.WaitHandleArgs
		if err := wire.Unmarshal(env.Payload, &a); err != nil {
			return nil, err
		}
		req.Args = &a

	case "UNMOUNT", "CLOSE", "SYNC", "STAT", "STATFS":
		var fd descriptor.FD
		if err := wire.Unmarshal(env.Payload, &fd); err != nil {
			return nil, err
		}
		req.Args = fd

	case "GET_MTAB":
		req.Args = nil

	default:
		return nil, vfsmux.ErrNotSupported
	}

	return req, nil
}

// acceptBackends handles the REGISTER handshake directly (it precedes
// ordinary request/response traffic and is initiated by the back-end, not
// the multiplexer), then hands the connection to rpcbackend.Client for
// every call the multiplexer subsequently makes of it.
func (s *server) acceptBackends(ctx context.Context, ln net.Listener) error {
	for {
		conn, err := ln.Accept()
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			return err
		}
		go s.serveBackendRegistration(conn)
	}
}

type registerPayload struct {
	Instance     uint32
	Name         string
	Capabilities vfsmux.BackendCapabilities
}

func (s *server) serveBackendRegistration(conn net.Conn) {
	payload, err := wire.ReadFrame(conn)
	if err != nil {
		conn.Close()
		return
	}
	env, err := wire.DecodeEnvelope(payload)
	wire.PutBuffer(payload)
	if err != nil || env.Op != "REGISTER" {
		conn.Close()
		return
	}

	var reg registerPayload
	if err := wire.Unmarshal(env.Payload, &reg); err != nil {
		conn.Close()
		return
	}

	client := rpcbackend.NewClient(conn)
	ack := s.mux.Register(reg.Instance, reg.Name, reg.Capabilities, client)

	ackPayload, err := wire.Marshal(ack)
	if err != nil {
		client.Close()
		return
	}
	replyPayload, err := wire.EncodeEnvelope(wire.Envelope{ID: env.ID, Payload: ackPayload})
	if err != nil {
		client.Close()
		return
	}
	if err := wire.WriteFrame(conn, replyPayload); err != nil {
		client.Close()
		return
	}

	s.log.WithFields(logrus.Fields{
		"name":     reg.Name,
		"instance": reg.Instance,
		"handle":   ack.Handle,
		"conn_id":  ack.ConnID,
	}).Info("back-end registered")
}
