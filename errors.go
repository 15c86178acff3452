// ©Hayabusa Cloud Co., Ltd. 2026. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package pfq

import (
	"errors"

	"code.hybscloud.com/iox"
)

// ErrWouldBlock indicates the operation cannot proceed immediately.
//
// For Offer: not enough free blocks remain for the serialized element.
// For Poll and Peek: the queue is empty (no data available).
// The timed variants return it when the deadline elapses first.
//
// ErrWouldBlock is a control flow signal, not a failure. The caller should
// retry the operation later (with backoff or yield) rather than propagating
// the error.
//
// This is an alias for [iox.ErrWouldBlock] for ecosystem consistency.
var ErrWouldBlock = iox.ErrWouldBlock

var (
	// ErrClosed is returned by every operation on a closed queue.
	ErrClosed = errors.New("pfq: queue is closed")

	// ErrNoElement is returned by Element and Remove on an empty queue.
	ErrNoElement = errors.New("pfq: queue is empty")

	// ErrNoCapacity is returned by Add when Offer would not succeed.
	ErrNoCapacity = errors.New("pfq: insufficient blocks available for element")

	// ErrConcurrentModification is returned by Iterator.Next after the
	// queue's cursors moved under the iterator.
	ErrConcurrentModification = errors.New("pfq: queue modified during iteration")

	// ErrGeometry reports malformed construction parameters.
	ErrGeometry = errors.New("pfq: invalid queue geometry")

	// ErrHeaderMismatch reports an existing file whose header disagrees
	// with the construction parameters.
	ErrHeaderMismatch = errors.New("pfq: header does not match existing file")

	// ErrCorrupted reports bytes in the mapping that do not form a valid
	// record. The failing call fails; further behavior of the instance on
	// the corrupt region is undefined.
	ErrCorrupted = errors.New("pfq: corrupted record")

	// ErrUnsupported is returned by operations this queue deliberately
	// does not provide, such as Iterator.Remove.
	ErrUnsupported = errors.ErrUnsupported
)

// IsWouldBlock reports whether err indicates the operation would block.
// Delegates to [iox.IsWouldBlock] for wrapped error support.
func IsWouldBlock(err error) bool {
	return iox.IsWouldBlock(err)
}

// IsSemantic reports whether err is a control flow signal (not a failure).
// Delegates to [iox.IsSemantic].
func IsSemantic(err error) bool {
	return iox.IsSemantic(err)
}

// IsNonFailure reports whether err represents a non-failure condition.
// Delegates to [iox.IsNonFailure].
func IsNonFailure(err error) bool {
	return iox.IsNonFailure(err)
}
