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

// Package pathwalk implements path canonicalization and step-wise lookup,
// including mountpoint crossing, against the node cache and the back-ends
// it fronts.
package pathwalk

import (
	"context"
	"strings"

	"github.com/vfsmux/vfsmux/backend"
	"github.com/vfsmux/vfsmux/exchange"
	"github.com/vfsmux/vfsmux/node"
	"github.com/vfsmux/vfsmux/registry"
)

// ErrInvalid, ErrNotFound and ErrExists are aliases of the canonical
// backend error kinds, re-exported here so callers that only import
// pathwalk (e.g. for Canonify/ValidateWalkFlags) don't also need to
// import backend just to compare against them.
var (
	ErrInvalid  = backend.ErrInvalid
	ErrNotFound = backend.ErrNotFound
	ErrExists   = backend.ErrExists
)

// Flags is the bitset a caller supplies to Lookup, one bit per walk
// behavior. The names follow the client-facing walk flag set.
type Flags uint32

const (
	MayCreate Flags = 1 << iota
	MustCreate
	Regular
	Directory
	MountPointOnly
	Unlink
	DisableMounts
)

// ValidateWalkFlags rejects the combinations that can never be satisfied:
// both MayCreate and MustCreate set, both Regular and Directory set, or a
// create flag with neither kind selector set.
func ValidateWalkFlags(f Flags) error {
	if f&MayCreate != 0 && f&MustCreate != 0 {
		return ErrInvalid
	}
	if f&Regular != 0 && f&Directory != 0 {
		return ErrInvalid
	}
	if (f&MayCreate != 0 || f&MustCreate != 0) && f&(Regular|Directory) == 0 {
		return ErrInvalid
	}
	return nil
}

// Canonify normalizes path: it must be non-empty and start with "/"; "."
// segments are dropped and ".." segments pop the preceding segment (a
// leading ".." is simply dropped). Every ".." is resolved here, textually,
// so Lookup never sees one and never ascends past its base. It returns the
// normalized path and its length so callers can bound on an exact byte
// count rather than re-scanning.
func Canonify(path string) (normalized string, length int, err error) {
	if path == "" || path[0] != '/' {
		return "", 0, ErrInvalid
	}

	parts := strings.Split(path, "/")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		switch p {
		case "", ".":
			continue
		case "..":
			if len(out) > 0 {
				out = out[:len(out)-1]
			}
		default:
			out = append(out, p)
		}
	}

	normalized = "/" + strings.Join(out, "/")
	return normalized, len(normalized), nil
}

// Components splits an already-canonicalized path into its segments,
// dropping the leading "/".
func Components(path string) []string {
	trimmed := strings.TrimPrefix(path, "/")
	if trimmed == "" {
		return nil
	}
	return strings.Split(trimmed, "/")
}

// SharedPrefix returns the longest shared leading sequence of path
// components between a and b, used by rename to find the common base node
// to resolve once. Unlike the source this is grounded on, it special-cases
// the very first component explicitly instead of reading one element
// before either slice starts when they differ immediately: if a and b
// disagree at index 0, the shared prefix is empty, reported as zero
// components, not an error. The error result is always nil: malformed
// (unrooted) paths are rejected earlier, by Canonify.
func SharedPrefix(a, b []string) (int, error) {
	if a == nil || b == nil {
		return 0, nil
	}

	n := 0
	for n < len(a) && n < len(b) && a[n] == b[n] {
		n++
	}
	return n, nil
}

// Engine resolves paths against the node cache and the back-ends it
// fronts, crossing mountpoints transparently unless DisableMounts is set.
type Engine struct {
	Cache    *node.Cache
	Registry *registry.Registry
}

func New(cache *node.Cache, reg *registry.Registry) *Engine {
	return &Engine{Cache: cache, Registry: reg}
}

// crossMount replaces n with its mount root, repeating in case of a mount
// stacked directly on another mount's root (not expected in practice, but
// cheap to handle uniformly).
func crossMount(n *node.Node, flags Flags) *node.Node {
	if flags&DisableMounts != 0 {
		return n
	}
	for n.Mount != nil {
		n = n.Mount
	}
	return n
}

// Lookup walks path component by component starting at base, crossing
// mountpoints at entry unless DisableMounts is set, issuing one back-end
// Lookup request per step. When the final component is reached and
// MayCreate or MustCreate is set, creation is requested (MustCreate plus
// an existing name yields ErrExists); when Unlink is set, a server-side
// unlink of the parent's entry is requested after a successful walk.
func (e *Engine) Lookup(ctx context.Context, base *node.Node, path string, flags Flags) (*node.Node, error) {
	if err := ValidateWalkFlags(flags); err != nil {
		return nil, err
	}

	normalized, _, err := Canonify(path)
	if err != nil {
		return nil, err
	}
	comps := Components(normalized)

	cur := crossMount(base, flags)

	if len(comps) == 0 {
		// Walking "/" from base resolves to base itself; the caller still
		// gets back a reference it owns, distinct from whatever reference
		// base was held under, since it may end up installed in a second
		// descriptor.
		e.Cache.AddRef(cur)
		return cur, nil
	}

	// owned is the reference acquired for the current step; it is
	// released as soon as the walk advances past it, except for the
	// final step, whose reference transfers to the caller.
	var owned *node.Node

	for i, name := range comps {
		last := i == len(comps)-1

		var lookupFlags backend.LookupFlags
		if last {
			if flags&MayCreate != 0 {
				lookupFlags |= backend.LookupCreate
			}
			if flags&MustCreate != 0 {
				lookupFlags |= backend.LookupCreate | backend.LookupExclusive
			}
			if flags&Regular != 0 {
				lookupFlags |= backend.LookupFile
			}
			if flags&Directory != 0 {
				lookupFlags |= backend.LookupDirectory
			}
			if flags&Unlink != 0 {
				lookupFlags |= backend.LookupUnlink
			}
		}

		pool, err := e.poolFor(ctx, cur.Triplet.Backend)
		if err != nil {
			if owned != nil {
				e.Cache.Put(owned)
			}
			return nil, err
		}

		ex := pool.Grab()
		resp, err := ex.Lookup(ctx, &backend.LookupRequest{
			Parent: cur.Triplet,
			Name:   name,
			Flags:  lookupFlags,
		})
		ex.Release()
		if err != nil {
			if owned != nil {
				e.Cache.Put(owned)
			}
			return nil, translateBackendError(err)
		}

		child := e.Cache.Get(resp.Result)
		if owned != nil {
			e.Cache.Put(owned)
		}

		if !last {
			child = crossMount(child, flags)
		}
		owned = child
		cur = child
	}

	return owned, nil
}

func (e *Engine) poolFor(ctx context.Context, h backend.Handle) (*exchange.Pool, error) {
	// The registry is keyed by (instance, name), not by the opaque handle
	// minted at Register time; a walk only ever has handles, so the
	// caller attaches a ServerResolver to ctx (see WithServerResolver)
	// before invoking Lookup.
	pool, ok := poolFromContext(ctx, h)
	if !ok {
		return nil, ErrNotFound
	}
	return pool, nil
}

// translateBackendError returns a raw back-end error unchanged, with no
// mapping onto pathwalk's own sentinels, so it reaches the client intact.
func translateBackendError(err error) error {
	return err
}
