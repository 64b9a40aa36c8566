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

package pathwalk

import (
	"context"

	"github.com/vfsmux/vfsmux/backend"
	"github.com/vfsmux/vfsmux/exchange"
)

type serverMapKey struct{}

// ServerResolver answers "which exchange pool backs this handle" for the
// back-ends reachable during a single walk. The mount package's Mounter
// implements it from the exchange pools it keeps per registered back-end
// and attaches itself before calling Lookup, since Engine itself holds no
// notion of live connections — that bookkeeping, and the borrowable
// channels each back-end call is issued on, belong to the registry and
// exchange pool, not the path engine.
type ServerResolver interface {
	PoolFor(backend.Handle) (*exchange.Pool, bool)
}

// WithServerResolver attaches r to ctx so Engine.Lookup can resolve the
// exchange pool backing each node it walks through.
func WithServerResolver(ctx context.Context, r ServerResolver) context.Context {
	return context.WithValue(ctx, serverMapKey{}, r)
}

func poolFromContext(ctx context.Context, h backend.Handle) (*exchange.Pool, bool) {
	r, ok := ctx.Value(serverMapKey{}).(ServerResolver)
	if !ok {
		return nil, false
	}
	return r.PoolFor(h)
}
