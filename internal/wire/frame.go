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

// Package wire implements the length-prefixed message framing the
// multiplexer and its back-ends speak over a net.Conn, playing the role the
// teacher's internal/buffer InMessage/OutMessage helpers play for the
// kernel's /dev/fuse protocol: a pooled, reusable buffer standing in front
// of a stream of discrete messages.
package wire

import (
	"encoding/binary"
	"errors"
	"io"
	"sync"
)

// MaxFrameSize bounds a single frame's payload, guarding a misbehaving peer
// from driving an unbounded allocation off of a corrupt length prefix.
const MaxFrameSize = 64 << 20

var ErrFrameTooLarge = errors.New("wire: frame exceeds MaxFrameSize")

// bufPool recycles the byte slices ReadFrame fills in, mirroring the
// teacher's DefaultMessageProvider pooling its InMessage/OutMessage buffers
// instead of allocating one per operation.
var bufPool = sync.Pool{
	New: func() interface{} {
		b := make([]byte, 4096)
		return &b
	},
}

// GetBuffer returns a pooled buffer with at least n bytes of capacity,
// truncated to length n. Callers that keep the slice past a single request
// (e.g. to hand a ReadResponse's Data up through several layers) must not
// call PutBuffer on it.
func GetBuffer(n int) []byte {
	p := bufPool.Get().(*[]byte)
	b := *p
	if cap(b) < n {
		b = make([]byte, n)
	} else {
		b = b[:n]
	}
	return b
}

// PutBuffer returns b to the pool for reuse by a later GetBuffer call.
func PutBuffer(b []byte) {
	bufPool.Put(&b)
}

// WriteFrame writes payload to w as a 4-byte big-endian length prefix
// followed by the payload bytes.
func WriteFrame(w io.Writer, payload []byte) error {
	if len(payload) > MaxFrameSize {
		return ErrFrameTooLarge
	}

	var header [4]byte
	binary.BigEndian.PutUint32(header[:], uint32(len(payload)))

	if _, err := w.Write(header[:]); err != nil {
		return err
	}
	if len(payload) == 0 {
		return nil
	}
	_, err := w.Write(payload)
	return err
}

// ReadFrame reads one length-prefixed frame from r into a pooled buffer.
// The caller owns the returned slice until it calls PutBuffer on it.
func ReadFrame(r io.Reader) ([]byte, error) {
	var header [4]byte
	if _, err := io.ReadFull(r, header[:]); err != nil {
		return nil, err
	}

	n := binary.BigEndian.Uint32(header[:])
	if n > MaxFrameSize {
		return nil, ErrFrameTooLarge
	}
	if n == 0 {
		return nil, nil
	}

	buf := GetBuffer(int(n))
	if _, err := io.ReadFull(r, buf); err != nil {
		PutBuffer(buf)
		return nil, err
	}
	return buf, nil
}
