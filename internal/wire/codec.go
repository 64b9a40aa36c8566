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

package wire

import (
	"bytes"
	"encoding/gob"
)

// Envelope is the one message shape that ever crosses a frame: a
// correlation ID so replies can be matched against the request that
// produced them (the dispatcher answers out of order across its
// goroutine-per-request fan-out), the operation name, and the gob-encoded
// body of whichever *Args or response struct the caller is carrying. Err
// is set instead of Payload on an error reply.
type Envelope struct {
	ID      uint64
	Op      string
	Payload []byte
	Err     string
}

// Marshal gob-encodes v, for use as an Envelope's Payload.
func Marshal(v interface{}) ([]byte, error) {
	var buf bytes.Buffer
	if err := gob.NewEncoder(&buf).Encode(v); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// Unmarshal decodes data (as produced by Marshal) into v, which must be a
// pointer to a type gob can reconstruct — the concrete *Args or response
// struct the caller expects for this Envelope's Op.
func Unmarshal(data []byte, v interface{}) error {
	return gob.NewDecoder(bytes.NewReader(data)).Decode(v)
}

// EncodeEnvelope gob-encodes env itself, the outer layer of every frame
// passed to WriteFrame.
func EncodeEnvelope(env Envelope) ([]byte, error) {
	return Marshal(env)
}

// DecodeEnvelope reverses EncodeEnvelope.
func DecodeEnvelope(data []byte) (Envelope, error) {
	var env Envelope
	err := Unmarshal(data, &env)
	return env, err
}
