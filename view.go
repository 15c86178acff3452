// ©Hayabusa Cloud Co., Ltd. 2026. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package pfq

import "encoding/binary"

// view is a lightweight cursor over the shared mapped bytes.
//
// Every operation works on its own view so that position bookkeeping never
// races between goroutines; the bytes underneath are shared and guarded by
// the header lock. The mark is the first byte after the reserved header
// region: reads and writes that run off the end of the mapping resume there.
type view struct {
	data []byte
	pos  int
	mark int
}

func (v *view) remaining() int {
	return len(v.data) - v.pos
}

// putUint32 writes a big-endian 32-bit value at the cursor. The caller
// guarantees four contiguous bytes remain.
func (v *view) putUint32(x uint32) {
	binary.BigEndian.PutUint32(v.data[v.pos:], x)
	v.pos += 4
}

// uint32 reads a big-endian 32-bit value at the cursor. The caller guarantees
// four contiguous bytes remain.
func (v *view) uint32() uint32 {
	x := binary.BigEndian.Uint32(v.data[v.pos:])
	v.pos += 4
	return x
}

// write copies p into the mapping at the cursor, wrapping to the mark when
// the mapping ends mid-copy.
func (v *view) write(p []byte) {
	n := copy(v.data[v.pos:], p)
	v.pos += n
	if n < len(p) {
		v.pos = v.mark + copy(v.data[v.mark:], p[n:])
	}
}

// read copies n bytes out of the mapping from the cursor, wrapping to the
// mark when the mapping ends mid-copy.
func (v *view) read(n int) []byte {
	p := make([]byte, n)
	c := copy(p, v.data[v.pos:])
	v.pos += c
	if c < n {
		v.pos = v.mark + copy(p[c:], v.data[v.mark:])
	}
	return p
}
