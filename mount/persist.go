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

import (
	"bytes"
	"context"
	"encoding/gob"
	"os"

	"golang.org/x/sys/unix"

	"github.com/vfsmux/vfsmux/node"
	"github.com/vfsmux/vfsmux/pathwalk"
)

// persistedEntry is the on-disk shape of a mount table row: everything
// Entry carries except the in-process Backend handle, which is only
// meaningful for the lifetime of the registry that minted it and is
// rederived by re-resolving BackendName at load time.
type persistedEntry struct {
	Path        string
	BackendName string
	Options     string
	Instance    uint32
}

// SavePath snapshots the mount table to path on graceful shutdown, so a
// restarted multiplexer can best-effort reattach the same back-ends
// without the operator having to replay every MOUNT by hand. This adds no
// on-disk file-content format of its own (the Non-goal is about file
// content storage); the snapshot is pure service bookkeeping.
func (t *Table) SavePath(path string) error {
	snap := t.Snapshot()
	out := make([]persistedEntry, len(snap))
	for i, e := range snap {
		out[i] = persistedEntry{Path: e.Path, BackendName: e.BackendName, Options: e.Options, Instance: e.Instance}
	}

	var buf bytes.Buffer
	if err := gob.NewEncoder(&buf).Encode(out); err != nil {
		return err
	}

	f, err := os.OpenFile(path, os.O_RDWR|os.O_CREATE, 0o600)
	if err != nil {
		return err
	}
	defer f.Close()

	// Flock guards against a second multiplexer instance writing the same
	// snapshot file concurrently; it is released implicitly on close.
	if err := unix.Flock(int(f.Fd()), unix.LOCK_EX); err != nil {
		return err
	}
	defer unix.Flock(int(f.Fd()), unix.LOCK_UN)

	if err := f.Truncate(0); err != nil {
		return err
	}
	if _, err := f.WriteAt(buf.Bytes(), 0); err != nil {
		return err
	}
	return nil
}

// ReplayResult reports the outcome of remounting one persisted entry.
type ReplayResult struct {
	Path string
	Err  error
}

// LoadPath replays a snapshot written by SavePath, remounting each
// back-end in its original order against root. Replay is best-effort: a
// back-end that never reappears within ctx's deadline is recorded as a
// failed entry rather than aborting the remaining ones. Because a later
// entry may mount onto a directory created by an earlier one (e.g. a
// nested mount), order matters and is preserved from the snapshot. Every
// entry is remounted with ConnectOnly, which skips the directory, not-yet-
// mounted and empty checks a fresh mount makes; the root mount ("/") goes
// directly onto root, and any other entry's mountpoint is found by walking
// its path from root across the mounts replayed before it.
func (m *Mounter) LoadPath(ctx context.Context, root *node.Node, path string) ([]ReplayResult, error) {
	f, err := os.Open(path)
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	defer f.Close()

	if err := unix.Flock(int(f.Fd()), unix.LOCK_SH); err != nil {
		return nil, err
	}
	defer unix.Flock(int(f.Fd()), unix.LOCK_UN)

	var entries []persistedEntry
	if err := gob.NewDecoder(f).Decode(&entries); err != nil {
		return nil, err
	}

	results := make([]ReplayResult, 0, len(entries))
	for _, e := range entries {
		mountPoint := root
		flags := ConnectOnly | Blocking

		if e.Path != "/" {
			// The final component is never crossed, so this yields the
			// mountpoint directory itself, reached through earlier mounts.
			mp, err := m.Walk.Lookup(m.Context(ctx), root, e.Path, pathwalk.Flags(0))
			if err != nil {
				results = append(results, ReplayResult{Path: e.Path, Err: err})
				continue
			}
			mountPoint = mp
		}

		_, err := m.Mount(ctx, e.Path, mountPoint, flags, e.Instance, e.BackendName, e.Options)
		if mountPoint != root {
			m.Cache.Put(mountPoint)
		}
		results = append(results, ReplayResult{Path: e.Path, Err: err})
	}

	return results, nil
}
