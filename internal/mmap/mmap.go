// ©Hayabusa Cloud Co., Ltd. 2026. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

// Package mmap maps fixed-size files into memory.
//
// The package exposes the minimal surface the queue needs: map a file of an
// exact size (growing it if necessary), read and write the mapping as a byte
// slice, ask the OS to write dirty pages out, and unmap. Durability timing is
// owned by the OS pagecache.
package mmap

import (
	"errors"
	"os"
)

// ErrUnsupported is returned on platforms without memory mapping support.
var ErrUnsupported = errors.New("mmap: not supported on this platform")

// Map is a read-write shared mapping of a file.
type Map struct {
	file *os.File
	data []byte
}

// Bytes returns the mapped bytes. The slice is invalid after Close.
func (m *Map) Bytes() []byte {
	return m.data
}
