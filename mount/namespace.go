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

package mount

import "sync"

// Namespace is the single process-wide read/write lock that orders path
// lookup against namespace-mutating calls: read-locked for WALK and the
// directory-read half of READ (STAT takes no namespace lock); write-locked
// for the whole of Mount, Unmount, Rename and Unlink. Where both are held,
// a node content lock is acquired after this lock. READ of a directory
// takes this lock's read side while already holding the descriptor's
// open-file mutex; no path acquires an open-file mutex while holding this
// lock. The node cache mutex is always released before any back-end IPC
// is issued.
type Namespace struct {
	mu sync.RWMutex
}

func (n *Namespace) RLock()   { n.mu.RLock() }
func (n *Namespace) RUnlock() { n.mu.RUnlock() }
func (n *Namespace) Lock()    { n.mu.Lock() }
func (n *Namespace) Unlock()  { n.mu.Unlock() }
