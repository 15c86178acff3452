// ©Hayabusa Cloud Co., Ltd. 2026. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

//go:build !unix

package mmap

// Open is a stub for platforms without memory mapping support.
func Open(path string, size int) (*Map, bool, error) {
	return nil, false, ErrUnsupported
}

// Sync is a stub for platforms without memory mapping support.
func (m *Map) Sync() error {
	return ErrUnsupported
}

// Close is a stub for platforms without memory mapping support.
func (m *Map) Close() error {
	return ErrUnsupported
}
