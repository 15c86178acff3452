// ©Hayabusa Cloud Co., Ltd. 2026. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package pfq

import (
	"bytes"
	"encoding/gob"
	"fmt"

	"github.com/sugawarayuuta/sonnet"
)

// Codec converts elements to and from the opaque byte payloads stored in the
// queue file.
//
// The encoding must be self-describing enough that Decode fails on bytes that
// were not produced for a T value: payloads survive process restarts, so a
// reader with a mismatched element type must be rejected rather than yield
// garbage.
//
// Implementations must be safe for concurrent use.
type Codec[T any] interface {
	// Encode serializes the element to a contiguous byte sequence.
	Encode(elem *T) ([]byte, error)

	// Decode reconstructs an element from a payload produced by Encode.
	Decode(data []byte) (T, error)
}

// GobCodec is the default Codec.
//
// Each payload is a standalone gob stream: binary, self-describing, carries
// type information, and encodes integers with variable length so writer and
// reader disagreeing on word size cannot corrupt values. Decoding a payload
// that was not produced for T fails.
type GobCodec[T any] struct{}

// Encode serializes the element as a standalone gob stream.
func (GobCodec[T]) Encode(elem *T) ([]byte, error) {
	var buf bytes.Buffer
	if err := gob.NewEncoder(&buf).Encode(elem); err != nil {
		return nil, fmt.Errorf("pfq: encode: %w", err)
	}
	return buf.Bytes(), nil
}

// Decode reconstructs an element from a gob payload.
func (GobCodec[T]) Decode(data []byte) (T, error) {
	var elem T
	if err := gob.NewDecoder(bytes.NewReader(data)).Decode(&elem); err != nil {
		return elem, fmt.Errorf("pfq: decode: %w", err)
	}
	return elem, nil
}

// JSONCodec stores payloads as JSON text.
//
// Useful when queue files must be inspectable with standard tooling or
// consumed by readers in other languages. JSON numbers lose integer width
// distinctions; prefer [GobCodec] when exact round-tripping matters.
type JSONCodec[T any] struct{}

// Encode serializes the element as JSON.
func (JSONCodec[T]) Encode(elem *T) ([]byte, error) {
	data, err := sonnet.Marshal(elem)
	if err != nil {
		return nil, fmt.Errorf("pfq: encode: %w", err)
	}
	return data, nil
}

// Decode reconstructs an element from a JSON payload.
func (JSONCodec[T]) Decode(data []byte) (T, error) {
	var elem T
	if err := sonnet.Unmarshal(data, &elem); err != nil {
		return elem, fmt.Errorf("pfq: decode: %w", err)
	}
	return elem, nil
}
