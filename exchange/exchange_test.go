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

package exchange_test

import (
	"testing"

	"github.com/vfsmux/vfsmux/backend"
	"github.com/vfsmux/vfsmux/exchange"
)

type stubServer struct {
	backend.NotImplementedServer
}

func TestGrabOnAnEmptyPoolMintsAFreshExchange(t *testing.T) {
	p := exchange.New(&stubServer{})
	if p.Len() != 0 {
		t.Fatalf("got Len() = %d, want 0", p.Len())
	}

	e := p.Grab()
	if e == nil {
		t.Fatal("Grab returned nil")
	}
	if p.Len() != 0 {
		t.Fatalf("Grab should not add to the free list; got Len() = %d", p.Len())
	}
}

func TestReleaseMakesTheExchangeReusable(t *testing.T) {
	p := exchange.New(&stubServer{})

	e := p.Grab()
	e.Release()

	if p.Len() != 1 {
		t.Fatalf("got Len() = %d, want 1", p.Len())
	}

	again := p.Grab()
	if again != e {
		t.Fatal("Grab after Release should reuse the same exchange")
	}
	if p.Len() != 0 {
		t.Fatalf("got Len() = %d, want 0", p.Len())
	}
}

func TestConcurrentGrabsEachGetADistinctExchange(t *testing.T) {
	p := exchange.New(&stubServer{})

	a := p.Grab()
	b := p.Grab()

	if a == b {
		t.Fatal("two concurrent Grabs returned the same exchange")
	}

	a.Release()
	b.Release()
	if p.Len() != 2 {
		t.Fatalf("got Len() = %d, want 2", p.Len())
	}
}
