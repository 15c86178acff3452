// ©Hayabusa Cloud Co., Ltd. 2026. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package pfq_test

import (
	"testing"

	"code.hybscloud.com/pfq"
)

// TestCircularShortSnapshot snapshots a buffer that has not filled yet.
func TestCircularShortSnapshot(t *testing.T) {
	buffer := pfq.NewCircularBuffer[int](50)

	for i := range 20 {
		buffer.Add(i)
	}

	snapshot := buffer.Snapshot()
	if len(snapshot) != 20 {
		t.Fatalf("Snapshot length: got %d, want 20", len(snapshot))
	}
	for i, v := range snapshot {
		if v != i {
			t.Fatalf("snapshot[%d]: got %d, want %d", i, v, i)
		}
	}
}

// TestCircularLongSnapshot snapshots a buffer written past its capacity.
func TestCircularLongSnapshot(t *testing.T) {
	buffer := pfq.NewCircularBuffer[int](50)

	for i := range 100 {
		buffer.Add(i)
	}

	snapshot := buffer.Snapshot()
	if len(snapshot) != 50 {
		t.Fatalf("Snapshot length: got %d, want 50", len(snapshot))
	}
	for i, v := range snapshot {
		if v != 50+i {
			t.Fatalf("snapshot[%d]: got %d, want %d", i, v, 50+i)
		}
	}
}

// TestCircularEmptySnapshot snapshots an untouched buffer.
func TestCircularEmptySnapshot(t *testing.T) {
	buffer := pfq.NewCircularBuffer[int](50)

	if n := len(buffer.Snapshot()); n != 0 {
		t.Fatalf("Snapshot length: got %d, want 0", n)
	}
}

// TestCircularWrappedSnapshot snapshots a buffer whose stable window wraps
// the physical end of the backing array.
func TestCircularWrappedSnapshot(t *testing.T) {
	buffer := pfq.NewCircularBuffer[int](50)

	for i := range 75 {
		buffer.Add(i)
	}

	snapshot := buffer.Snapshot()
	if len(snapshot) != 50 {
		t.Fatalf("Snapshot length: got %d, want 50", len(snapshot))
	}
	for i := 1; i < len(snapshot); i++ {
		if snapshot[i-1] >= snapshot[i] {
			t.Fatalf("snapshot out of order at %d: %d then %d",
				i, snapshot[i-1], snapshot[i])
		}
	}
	if snapshot[0] != 25 || snapshot[49] != 74 {
		t.Fatalf("snapshot range: got [%d, %d], want [25, 74]",
			snapshot[0], snapshot[49])
	}
}

// TestCircularCompleteSnapshot retries until a full-capacity window comes
// back.
func TestCircularCompleteSnapshot(t *testing.T) {
	buffer := pfq.NewCircularBuffer[int](16)

	for i := range 24 {
		buffer.Add(i)
	}

	snapshot := buffer.CompleteSnapshot()
	if len(snapshot) != buffer.Cap() {
		t.Fatalf("CompleteSnapshot length: got %d, want %d",
			len(snapshot), buffer.Cap())
	}
	for i := 1; i < len(snapshot); i++ {
		if snapshot[i-1] >= snapshot[i] {
			t.Fatalf("snapshot out of order at %d", i)
		}
	}
}

// TestCircularCapacityPanics rejects non-positive capacities.
func TestCircularCapacityPanics(t *testing.T) {
	defer func() {
		if recover() == nil {
			t.Fatal("NewCircularBuffer(0): expected panic")
		}
	}()
	pfq.NewCircularBuffer[int](0)
}
