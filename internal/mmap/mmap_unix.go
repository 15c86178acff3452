// ©Hayabusa Cloud Co., Ltd. 2026. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

//go:build unix

package mmap

import (
	"os"

	"golang.org/x/sys/unix"
)

// Open maps the file at path as a read-write shared mapping of exactly size
// bytes, creating or growing the file as needed. The second return value
// reports whether the file already held data before this call.
func Open(path string, size int) (*Map, bool, error) {
	f, err := os.OpenFile(path, os.O_RDWR|os.O_CREATE, 0o644)
	if err != nil {
		return nil, false, err
	}

	fi, err := f.Stat()
	if err != nil {
		_ = f.Close()
		return nil, false, err
	}
	existed := fi.Size() > 0

	if fi.Size() < int64(size) {
		if err := f.Truncate(int64(size)); err != nil {
			_ = f.Close()
			return nil, false, err
		}
	}

	data, err := unix.Mmap(int(f.Fd()), 0, size, unix.PROT_READ|unix.PROT_WRITE, unix.MAP_SHARED)
	if err != nil {
		_ = f.Close()
		return nil, false, err
	}

	return &Map{file: f, data: data}, existed, nil
}

// Sync asks the OS to write the mapping's dirty pages to the file.
func (m *Map) Sync() error {
	return unix.Msync(m.data, unix.MS_SYNC)
}

// Close unmaps the file and closes it. The mapped bytes must not be used
// afterwards.
func (m *Map) Close() error {
	err := unix.Munmap(m.data)
	m.data = nil
	if cerr := m.file.Close(); err == nil {
		err = cerr
	}
	return err
}
