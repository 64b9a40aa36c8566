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

package descriptor_test

import (
	"testing"

	. "github.com/jacobsa/oglematchers"
	. "github.com/jacobsa/ogletest"

	"github.com/vfsmux/vfsmux/descriptor"
	"github.com/vfsmux/vfsmux/node"
)

func TestDescriptor(t *testing.T) { RunTests(t) }

type TableTest struct {
	table *descriptor.Table
}

func init() { RegisterTestSuite(&TableTest{}) }

func (t *TableTest) SetUp(ti *TestInfo) {
	t.table = descriptor.New(4)
}

func (t *TableTest) AllocAssignsIncreasingLowSlots() {
	a, err := t.table.Alloc(&descriptor.File{}, false)
	AssertEq(nil, err)
	ExpectEq(descriptor.FD(0), a)

	b, err := t.table.Alloc(&descriptor.File{}, false)
	AssertEq(nil, err)
	ExpectEq(descriptor.FD(1), b)
}

func (t *TableTest) AllocFailsWhenFull() {
	for i := 0; i < 4; i++ {
		_, err := t.table.Alloc(&descriptor.File{}, false)
		AssertEq(nil, err)
	}

	_, err := t.table.Alloc(&descriptor.File{}, false)
	ExpectEq(descriptor.ErrTableFull, err)
}

func (t *TableTest) FreeReusesTheVacatedSlot() {
	fd, err := t.table.Alloc(&descriptor.File{Mode: descriptor.Read}, false)
	AssertEq(nil, err)

	_, err = t.table.Free(fd)
	AssertEq(nil, err)

	again, err := t.table.Alloc(&descriptor.File{Mode: descriptor.Write}, false)
	AssertEq(nil, err)
	ExpectEq(fd, again)
}

func (t *TableTest) FreeOfAnAlreadyFreeSlotFails() {
	fd, err := t.table.Alloc(&descriptor.File{}, false)
	AssertEq(nil, err)

	_, err = t.table.Free(fd)
	AssertEq(nil, err)

	_, err = t.table.Free(fd)
	ExpectEq(descriptor.ErrBadDescriptor, err)
}

func (t *TableTest) GetOfAnUnknownDescriptorFails() {
	_, err := t.table.Get(descriptor.FD(99))
	ExpectEq(descriptor.ErrBadDescriptor, err)
}

func (t *TableTest) GetReturnsTheInstalledFile() {
	f := &descriptor.File{Mode: descriptor.Read | descriptor.Write}
	fd, err := t.table.Alloc(f, false)
	AssertEq(nil, err)

	got, err := t.table.Get(fd)
	AssertEq(nil, err)
	defer t.table.Put(got)

	ExpectEq(f, got)
}

func (t *TableTest) AssignEvictsWhateverWasThere() {
	first := &descriptor.File{}
	fd, err := t.table.Alloc(first, false)
	AssertEq(nil, err)

	second := &descriptor.File{}
	evicted := t.table.Assign(fd, second)

	ExpectEq(first, evicted)

	got, err := t.table.Get(fd)
	AssertEq(nil, err)
	defer t.table.Put(got)
	ExpectEq(second, got)
}

func (t *TableTest) AssignPastTheEndGrowsTheTable() {
	f := &descriptor.File{}
	evicted := t.table.Assign(descriptor.FD(3), f)
	ExpectEq((*descriptor.File)(nil), evicted)

	got, err := t.table.Get(descriptor.FD(3))
	AssertEq(nil, err)
	defer t.table.Put(got)
	ExpectEq(f, got)
}

func (t *TableTest) HighAndLowFreeListsAreIndependent() {
	low, err := t.table.Alloc(&descriptor.File{}, false)
	AssertEq(nil, err)
	high, err := t.table.Alloc(&descriptor.File{}, true)
	AssertEq(nil, err)

	_, err = t.table.Free(low)
	AssertEq(nil, err)
	_, err = t.table.Free(high)
	AssertEq(nil, err)

	reusedHigh, err := t.table.Alloc(&descriptor.File{}, true)
	AssertEq(nil, err)
	ExpectEq(high, reusedHigh)

	reusedLow, err := t.table.Alloc(&descriptor.File{}, false)
	AssertEq(nil, err)
	ExpectEq(low, reusedLow)
}

func (t *TableTest) CloneSharesTheModeButNotThePosition() {
	src := &descriptor.File{Mode: descriptor.Read, Position: 42}
	fd, err := t.table.Alloc(src, false)
	AssertEq(nil, err)

	addRefCalled := false
	clone, err := t.table.Clone(fd, false, func(n *node.Node) { addRefCalled = true })
	AssertEq(nil, err)
	ExpectTrue(addRefCalled)

	got, err := t.table.Get(clone)
	AssertEq(nil, err)
	defer t.table.Put(got)

	ExpectEq(descriptor.Read, got.Mode)
	ExpectEq(uint64(0), got.Position)
}
