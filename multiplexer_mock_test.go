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

package vfsmux_test

import (
	"context"
	"fmt"
	"testing"

	. "github.com/jacobsa/oglematchers"
	"github.com/jacobsa/oglemock"
	. "github.com/jacobsa/ogletest"

	"github.com/vfsmux/vfsmux"
	"github.com/vfsmux/vfsmux/backend"
	"github.com/vfsmux/vfsmux/backend/mock_backend"
	"github.com/vfsmux/vfsmux/descriptor"
)

func TestMultiplexerMock(t *testing.T) { RunTests(t) }

// MultiplexerMockTest drives a Multiplexer against a mocked backend.Server
// rather than the in-memory reference implementation, so it can assert on
// the exact request the read/write pre-amble hands down — the locking mode
// it picked is otherwise invisible from outside the package.
type MultiplexerMockTest struct {
	ctx    context.Context
	mux    *vfsmux.Multiplexer
	conn   *vfsmux.Connection
	server mock_backend.MockServer
	handle backend.Handle
	rootFD descriptor.FD
}

func init() { RegisterTestSuite(&MultiplexerMockTest{}) }

func (t *MultiplexerMockTest) SetUp(ti *TestInfo) {
	t.ctx = context.Background()
	t.mux = vfsmux.New(vfsmux.DefaultConfig())
	t.conn = t.mux.NewConnection()

	t.server = mock_backend.NewMockServer(ti.MockController, "backend")
	ack := t.mux.Register(1, "fs0", vfsmux.BackendCapabilities{}, t.server)
	t.handle = ack.Handle

	ExpectCall(t.server, "Mounted")(Any(), Any()).
		WillOnce(oglemock.Return(
			&backend.MountedResponse{Root: backend.Triplet{Backend: ack.Handle, Service: 1, Index: 1}},
			nil))

	fd, err := t.mux.Mount(t.ctx, t.conn, vfsmux.MountArgs{
		MountPointFD: descriptor.FD(0),
		Flags:        vfsmux.MountBlocking,
		Instance:     1,
		Path:         "/",
		BackendName:  "fs0",
	})
	AssertEq(nil, err)
	t.rootFD = fd
}

func (t *MultiplexerMockTest) TearDown() {
	t.conn.Close()
}

func (t *MultiplexerMockTest) WriteIssuesASingleRequestAtTheCurrentOffset() {
	// The mount root is a directory, which cannot be opened for writing;
	// walk to a regular file under it instead.
	ExpectCall(t.server, "Lookup")(Any(), Any()).
		WillOnce(oglemock.Return(&backend.LookupResponse{Result: backend.LookupResult{
			Triplet: backend.Triplet{Backend: t.handle, Service: 1, Index: 2},
			Type:    backend.Regular,
		}}, nil))

	fd, err := t.mux.Walk(t.ctx, t.conn, vfsmux.WalkArgs{ParentFD: t.rootFD, Path: "/taco"})
	AssertEq(nil, err)
	AssertEq(nil, t.mux.Open2(t.conn, fd, vfsmux.OpenWrite))

	ExpectCall(t.server, "Write")(Any(), Any()).
		WillOnce(oglemock.Return(&backend.WriteResponse{Size: 4}, nil))

	n, err := t.mux.Write(t.ctx, t.conn, fd, []byte("taco"))
	AssertEq(nil, err)
	ExpectEq(4, n)
}

func (t *MultiplexerMockTest) ReadForwardsTheRequestedSizeAndOffset() {
	AssertEq(nil, t.mux.Open2(t.conn, t.rootFD, vfsmux.OpenRead))

	_, err := t.mux.Seek(t.conn, t.rootFD, 3, vfsmux.SeekSet)
	AssertEq(nil, err)

	ExpectCall(t.server, "Read")(Any(), offsetIs(3)).
		WillOnce(oglemock.Return(&backend.ReadResponse{Data: []byte("co")}, nil))

	data, err := t.mux.Read(t.ctx, t.conn, t.rootFD, 2)
	AssertEq(nil, err)
	ExpectThat(data, DeepEquals([]byte("co")))
}

func (t *MultiplexerMockTest) StatForwardsTheBackendErrorUnchanged() {
	ExpectCall(t.server, "Stat")(Any(), Any()).
		WillOnce(oglemock.Return(nil, backend.ErrNotFound))

	_, err := t.mux.Stat(t.ctx, t.conn, t.rootFD)
	ExpectEq(backend.ErrNotFound, err)
}

// offsetIs matches a *backend.ReadRequest with the given offset.
func offsetIs(offset uint64) Matcher {
	return NewMatcher(
		func(candidate interface{}) error {
			req, ok := candidate.(*backend.ReadRequest)
			if !ok {
				return fmt.Errorf("which is not a *backend.ReadRequest")
			}
			if req.Offset != offset {
				return fmt.Errorf("which has offset %d", req.Offset)
			}
			return nil
		},
		"offset matches")
}
