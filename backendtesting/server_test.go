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

package backendtesting_test

import (
	"context"
	"testing"

	"github.com/jacobsa/timeutil"
	. "github.com/jacobsa/oglematchers"
	. "github.com/jacobsa/ogletest"

	"github.com/vfsmux/vfsmux/backend"
	"github.com/vfsmux/vfsmux/backendtesting"
)

func TestServer(t *testing.T) { RunTests(t) }

type ServerTest struct {
	ctx    context.Context
	server *backendtesting.Server
	root   backend.Triplet
}

func init() { RegisterTestSuite(&ServerTest{}) }

func (t *ServerTest) SetUp(ti *TestInfo) {
	t.ctx = context.Background()
	t.server = backendtesting.New(timeutil.RealClock())
	t.server.Bind(backend.Handle(7))

	resp, err := t.server.Mounted(t.ctx, &backend.MountedRequest{Service: 1})
	AssertEq(nil, err)
	t.root = resp.Root
}

func (t *ServerTest) RootIsEmptyDirectory() {
	resp, err := t.server.Stat(t.ctx, &backend.StatRequest{Target: t.root})
	AssertEq(nil, err)
	ExpectEq(backend.Directory, resp.Type)
	ExpectEq(0, resp.Size)
}

func (t *ServerTest) CreateLookupWriteReadRoundTrip() {
	lookup, err := t.server.Lookup(t.ctx, &backend.LookupRequest{
		Parent: t.root,
		Name:   "foo",
		Flags:  backend.LookupCreate | backend.LookupFile,
	})
	AssertEq(nil, err)
	ExpectEq(backend.Regular, lookup.Result.Type)

	_, err = t.server.Write(t.ctx, &backend.WriteRequest{
		Target: lookup.Result.Triplet,
		Offset: 0,
		Data:   []byte("taco"),
	})
	AssertEq(nil, err)

	read, err := t.server.Read(t.ctx, &backend.ReadRequest{
		Target: lookup.Result.Triplet,
		Offset: 0,
		Size:   4,
	})
	AssertEq(nil, err)
	ExpectThat(read.Data, DeepEquals([]byte("taco")))

	again, err := t.server.Lookup(t.ctx, &backend.LookupRequest{
		Parent: t.root,
		Name:   "foo",
	})
	AssertEq(nil, err)
	ExpectEq(lookup.Result.Triplet, again.Result.Triplet)
	ExpectEq(4, again.Result.Size)
}

func (t *ServerTest) MustCreateOnExistingNameFails() {
	_, err := t.server.Lookup(t.ctx, &backend.LookupRequest{
		Parent: t.root,
		Name:   "foo",
		Flags:  backend.LookupCreate | backend.LookupExclusive | backend.LookupFile,
	})
	AssertEq(nil, err)

	_, err = t.server.Lookup(t.ctx, &backend.LookupRequest{
		Parent: t.root,
		Name:   "foo",
		Flags:  backend.LookupCreate | backend.LookupExclusive | backend.LookupFile,
	})
	ExpectEq(backend.ErrExists, err)
}

func (t *ServerTest) LookupMissingNameFails() {
	_, err := t.server.Lookup(t.ctx, &backend.LookupRequest{
		Parent: t.root,
		Name:   "missing",
	})
	ExpectEq(backend.ErrNotFound, err)
}

func (t *ServerTest) UnlinkRemovesEntry() {
	created, err := t.server.Lookup(t.ctx, &backend.LookupRequest{
		Parent: t.root,
		Name:   "foo",
		Flags:  backend.LookupCreate | backend.LookupFile,
	})
	AssertEq(nil, err)

	_, err = t.server.Lookup(t.ctx, &backend.LookupRequest{
		Parent: t.root,
		Name:   "foo",
		Flags:  backend.LookupUnlink,
	})
	AssertEq(nil, err)

	_, err = t.server.Lookup(t.ctx, &backend.LookupRequest{
		Parent: t.root,
		Name:   "foo",
	})
	ExpectEq(backend.ErrNotFound, err)

	// The node itself is still addressable until Destroy is called.
	_, err = t.server.Stat(t.ctx, &backend.StatRequest{Target: created.Result.Triplet})
	ExpectEq(nil, err)
}

func (t *ServerTest) UnlinkNonEmptyDirectoryFails() {
	dir, err := t.server.Lookup(t.ctx, &backend.LookupRequest{
		Parent: t.root,
		Name:   "dir",
		Flags:  backend.LookupCreate | backend.LookupDirectory,
	})
	AssertEq(nil, err)

	_, err = t.server.Lookup(t.ctx, &backend.LookupRequest{
		Parent: dir.Result.Triplet,
		Name:   "child",
		Flags:  backend.LookupCreate | backend.LookupFile,
	})
	AssertEq(nil, err)

	_, err = t.server.Lookup(t.ctx, &backend.LookupRequest{
		Parent: t.root,
		Name:   "dir",
		Flags:  backend.LookupUnlink,
	})
	ExpectEq(backend.ErrNotEmpty, err)
}

func (t *ServerTest) LinkAddsASecondName() {
	created, err := t.server.Lookup(t.ctx, &backend.LookupRequest{
		Parent: t.root,
		Name:   "foo",
		Flags:  backend.LookupCreate | backend.LookupFile,
	})
	AssertEq(nil, err)

	_, err = t.server.Link(t.ctx, &backend.LinkRequest{
		Parent: t.root,
		Name:   "bar",
		Target: created.Result.Triplet,
	})
	AssertEq(nil, err)

	viaBar, err := t.server.Lookup(t.ctx, &backend.LookupRequest{
		Parent: t.root,
		Name:   "bar",
	})
	AssertEq(nil, err)
	ExpectEq(created.Result.Triplet, viaBar.Result.Triplet)
}

func (t *ServerTest) TruncateGrowsAndShrinks() {
	created, err := t.server.Lookup(t.ctx, &backend.LookupRequest{
		Parent: t.root,
		Name:   "foo",
		Flags:  backend.LookupCreate | backend.LookupFile,
	})
	AssertEq(nil, err)

	_, err = t.server.Truncate(t.ctx, &backend.TruncateRequest{
		Target: created.Result.Triplet,
		Size:   10,
	})
	AssertEq(nil, err)

	stat, err := t.server.Stat(t.ctx, &backend.StatRequest{Target: created.Result.Triplet})
	AssertEq(nil, err)
	ExpectEq(10, stat.Size)

	_, err = t.server.Truncate(t.ctx, &backend.TruncateRequest{
		Target: created.Result.Triplet,
		Size:   3,
	})
	AssertEq(nil, err)

	stat, err = t.server.Stat(t.ctx, &backend.StatRequest{Target: created.Result.Triplet})
	AssertEq(nil, err)
	ExpectEq(3, stat.Size)
}

func (t *ServerTest) UnmountedInvalidatesTheInstance() {
	_, err := t.server.Unmounted(t.ctx, &backend.UnmountedRequest{Service: 1})
	AssertEq(nil, err)

	_, err = t.server.Stat(t.ctx, &backend.StatRequest{Target: t.root})
	ExpectEq(backend.ErrNotFound, err)
}
