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

// Package exchange provides a pool of borrowable request channels to a
// single back-end, guaranteeing at most one in-flight request per channel
// while allowing many channels to the same back-end to be used at once.
package exchange

import (
	"sync"

	"github.com/vfsmux/vfsmux/backend"
)

// Exchange is a borrowed handle to a back-end's Server, held for the
// duration of one or more related calls and released back to the pool
// afterward. It carries no state of its own beyond the server it wraps;
// Grab/Release only track which exchanges are idle for reuse and place no
// bound on how many concurrent calls a back-end sees.
type Exchange struct {
	backend.Server

	pool *Pool
}

// Release returns the exchange to its pool's free list. Every Grab must be
// matched by exactly one Release on every exit path, mirroring the
// caller-managed discipline the teacher's connection pool uses around
// in-flight messages.
func (e *Exchange) Release() {
	e.pool.put(e)
}

// Pool hands out Exchanges bound to a single back-end server. It never
// blocks on Grab: an idle exchange is reused if one is free, otherwise a
// new one is minted, so "at most one in-flight request per channel" is a
// property of how a caller uses what it grabbed, not a limit the pool
// enforces by blocking.
type Pool struct {
	mu   sync.Mutex
	free []*Exchange

	server backend.Server
}

func New(server backend.Server) *Pool {
	return &Pool{server: server}
}

// Grab returns a free exchange, reusing one returned by a previous Release
// if available.
func (p *Pool) Grab() *Exchange {
	p.mu.Lock()
	n := len(p.free)
	if n == 0 {
		p.mu.Unlock()
		return &Exchange{Server: p.server, pool: p}
	}

	e := p.free[n-1]
	p.free[n-1] = nil
	p.free = p.free[:n-1]
	p.mu.Unlock()

	return e
}

func (p *Pool) put(e *Exchange) {
	p.mu.Lock()
	p.free = append(p.free, e)
	p.mu.Unlock()
}

// Len reports the number of idle exchanges currently held in the free
// list, for tests and diagnostics.
func (p *Pool) Len() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.free)
}
