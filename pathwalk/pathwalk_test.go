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

package pathwalk_test

import (
	"context"
	"testing"

	. "github.com/jacobsa/oglematchers"
	. "github.com/jacobsa/ogletest"
	"github.com/jacobsa/timeutil"

	"github.com/vfsmux/vfsmux/backend"
	"github.com/vfsmux/vfsmux/backendtesting"
	"github.com/vfsmux/vfsmux/exchange"
	"github.com/vfsmux/vfsmux/node"
	"github.com/vfsmux/vfsmux/pathwalk"
	"github.com/vfsmux/vfsmux/registry"
)

func TestPathwalk(t *testing.T) { RunTests(t) }

// singleServerResolver answers every lookup with a pool wrapping the one
// bound backend, mirroring the map the mount table would build from its
// live entries.
type singleServerResolver struct {
	handle backend.Handle
	pool   *exchange.Pool
}

func (r singleServerResolver) PoolFor(h backend.Handle) (*exchange.Pool, bool) {
	if h != r.handle {
		return nil, false
	}
	return r.pool, true
}

////////////////////////////////////////////////////////////////////////
// Flags and path syntax
////////////////////////////////////////////////////////////////////////

type FlagsAndSyntaxTest struct{}

func init() { RegisterTestSuite(&FlagsAndSyntaxTest{}) }

func (t *FlagsAndSyntaxTest) ValidateWalkFlagsRejectsConflictingCreateFlags() {
	ExpectEq(pathwalk.ErrInvalid, pathwalk.ValidateWalkFlags(pathwalk.MayCreate|pathwalk.MustCreate|pathwalk.Regular))
}

func (t *FlagsAndSyntaxTest) ValidateWalkFlagsRejectsConflictingTypeFlags() {
	ExpectEq(pathwalk.ErrInvalid, pathwalk.ValidateWalkFlags(pathwalk.Regular|pathwalk.Directory))
}

func (t *FlagsAndSyntaxTest) ValidateWalkFlagsRejectsCreateWithoutAType() {
	ExpectEq(pathwalk.ErrInvalid, pathwalk.ValidateWalkFlags(pathwalk.MayCreate))
}

func (t *FlagsAndSyntaxTest) ValidateWalkFlagsAcceptsAPlainLookup() {
	ExpectEq(nil, pathwalk.ValidateWalkFlags(0))
}

func (t *FlagsAndSyntaxTest) CanonifyRejectsRelativePaths() {
	_, _, err := pathwalk.Canonify("foo/bar")
	ExpectEq(pathwalk.ErrInvalid, err)
}

func (t *FlagsAndSyntaxTest) CanonifyDropsDotAndResolvesDotDot() {
	norm, length, err := pathwalk.Canonify("/a/./b/../c/")
	AssertEq(nil, err)
	ExpectEq("/a/c", norm)
	ExpectEq(len(norm), length)
}

func (t *FlagsAndSyntaxTest) CanonifyOfRootIsRoot() {
	norm, _, err := pathwalk.Canonify("/")
	AssertEq(nil, err)
	ExpectEq("/", norm)
}

func (t *FlagsAndSyntaxTest) ComponentsSplitsOnSlash() {
	ExpectThat(pathwalk.Components("/a/b/c"), DeepEquals([]string{"a", "b", "c"}))
}

func (t *FlagsAndSyntaxTest) ComponentsOfRootIsEmpty() {
	ExpectThat(pathwalk.Components("/"), DeepEquals([]string(nil)))
}

func (t *FlagsAndSyntaxTest) SharedPrefixStopsAtFirstDivergence() {
	n, err := pathwalk.SharedPrefix([]string{"a", "b", "c"}, []string{"a", "b", "d"})
	AssertEq(nil, err)
	ExpectEq(2, n)
}

func (t *FlagsAndSyntaxTest) SharedPrefixOfImmediatelyDivergentPathsIsZero() {
	n, err := pathwalk.SharedPrefix([]string{"a"}, []string{"b"})
	AssertEq(nil, err)
	ExpectEq(0, n)
}

func (t *FlagsAndSyntaxTest) SharedPrefixOfIdenticalPathsIsTheWholeLength() {
	n, err := pathwalk.SharedPrefix([]string{"a", "b"}, []string{"a", "b"})
	AssertEq(nil, err)
	ExpectEq(2, n)
}

////////////////////////////////////////////////////////////////////////
// Engine.Lookup
////////////////////////////////////////////////////////////////////////

type EngineTest struct {
	ctx    context.Context
	cache  *node.Cache
	engine *pathwalk.Engine
	server *backendtesting.Server
	root   *node.Node
}

func init() { RegisterTestSuite(&EngineTest{}) }

func (t *EngineTest) SetUp(ti *TestInfo) {
	t.ctx = context.Background()
	t.cache = node.New()
	t.engine = pathwalk.New(t.cache, registry.New())

	t.server = backendtesting.New(timeutil.RealClock())
	t.server.Bind(backend.Handle(1))

	resp, err := t.server.Mounted(t.ctx, &backend.MountedRequest{Service: 1})
	AssertEq(nil, err)

	t.root = t.cache.Get(backend.LookupResult{Triplet: resp.Root, Type: backend.Directory, Size: resp.Size})
	t.ctx = pathwalk.WithServerResolver(t.ctx, singleServerResolver{handle: 1, pool: exchange.New(t.server)})
}

func (t *EngineTest) LookupOfRootReturnsBaseWithANewReference() {
	n, err := t.engine.Lookup(t.ctx, t.root, "/", 0)
	AssertEq(nil, err)
	ExpectEq(t.root, n)
	t.cache.Put(n)
}

func (t *EngineTest) LookupOfAMissingNameFails() {
	_, err := t.engine.Lookup(t.ctx, t.root, "/nope", 0)
	ExpectEq(backend.ErrNotFound, err)
}

func (t *EngineTest) LookupWithMayCreateMintsAFile() {
	n, err := t.engine.Lookup(t.ctx, t.root, "/foo", pathwalk.MayCreate|pathwalk.Regular)
	AssertEq(nil, err)
	defer t.cache.Put(n)

	ExpectEq(backend.Regular, n.Type)
}

func (t *EngineTest) LookupWithMustCreateOnExistingNameFails() {
	n, err := t.engine.Lookup(t.ctx, t.root, "/foo", pathwalk.MustCreate|pathwalk.Regular)
	AssertEq(nil, err)
	t.cache.Put(n)

	_, err = t.engine.Lookup(t.ctx, t.root, "/foo", pathwalk.MustCreate|pathwalk.Regular)
	ExpectEq(backend.ErrExists, err)
}

func (t *EngineTest) LookupWalksMultipleComponents() {
	dir, err := t.engine.Lookup(t.ctx, t.root, "/dir", pathwalk.MayCreate|pathwalk.Directory)
	AssertEq(nil, err)
	t.cache.Put(dir)

	child, err := t.engine.Lookup(t.ctx, t.root, "/dir/child", pathwalk.MayCreate|pathwalk.Regular)
	AssertEq(nil, err)
	defer t.cache.Put(child)

	ExpectEq(backend.Regular, child.Type)
}

func (t *EngineTest) LookupWithUnlinkRemovesTheEntry() {
	n, err := t.engine.Lookup(t.ctx, t.root, "/foo", pathwalk.MayCreate|pathwalk.Regular)
	AssertEq(nil, err)
	t.cache.Put(n)

	removed, err := t.engine.Lookup(t.ctx, t.root, "/foo", pathwalk.Unlink)
	AssertEq(nil, err)
	t.cache.Put(removed)

	_, err = t.engine.Lookup(t.ctx, t.root, "/foo", 0)
	ExpectEq(backend.ErrNotFound, err)
}

func (t *EngineTest) LookupWithDisableMountsSkipsTheMountRoot() {
	// Install a self-mount on a freshly created node so n.Mount is non-nil,
	// then confirm DisableMounts resolves to the mountpoint node itself.
	mounted, err := t.engine.Lookup(t.ctx, t.root, "/mnt", pathwalk.MayCreate|pathwalk.Directory)
	AssertEq(nil, err)

	t.cache.AddRef(t.root)
	mounted.Mount = t.root

	n, err := t.engine.Lookup(t.ctx, t.root, "/mnt", pathwalk.DisableMounts)
	AssertEq(nil, err)
	ExpectEq(mounted, n)

	t.cache.Put(n)
	t.cache.Put(t.root)
	t.cache.Put(mounted)
}
