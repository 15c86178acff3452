// ©Hayabusa Cloud Co., Ltd. 2026. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package pfq

import "time"

// LatencyMonitor measures average latency from a fixed-size ring of duration
// samples. Collection is O(1) and wait-free; computing the average is
// O(sample size).
//
//	monitor := pfq.NewLatencyMonitor(512)
//
//	timer := monitor.StartTimer()
//	handle(request)
//	timer.Stop()
type LatencyMonitor struct {
	samples *CircularBuffer[time.Duration]
}

// NewLatencyMonitor creates a latency monitor keeping sampleSize samples.
// The sample size trades memory for how quickly the average converges.
// Panics if sampleSize < 1.
func NewLatencyMonitor(sampleSize int) *LatencyMonitor {
	return &LatencyMonitor{samples: NewCircularBuffer[time.Duration](sampleSize)}
}

// StartTimer returns a running timer that records into this monitor when
// stopped.
func (m *LatencyMonitor) StartTimer() *Timer {
	return &Timer{monitor: m, start: time.Now()}
}

func (m *LatencyMonitor) add(d time.Duration) {
	m.samples.Add(d)
}

// AverageDuration returns the mean of the currently stable samples, or 0
// when no samples have been collected yet.
func (m *LatencyMonitor) AverageDuration() time.Duration {
	snap := m.samples.Snapshot()
	if len(snap) == 0 {
		return 0
	}
	var total time.Duration
	for _, d := range snap {
		total += d
	}
	return total / time.Duration(len(snap))
}

// Timer measures one duration for a LatencyMonitor.
//
// A timer is not safe for concurrent use; it is expected to live on one
// goroutine between StartTimer and Stop. It borrows a handle to its monitor
// that is valid for the timer's lifetime only.
type Timer struct {
	monitor  *LatencyMonitor
	start    time.Time
	duration time.Duration
	stopped  bool
}

// Stop stops the timer and records the measured duration into its monitor.
// Panics when called twice.
func (t *Timer) Stop() {
	if t.stopped {
		panic("pfq: timer stopped twice")
	}
	t.stopped = true
	t.duration = time.Since(t.start)
	t.monitor.add(t.duration)
}

// Duration returns the measured duration. Panics if the timer has not been
// stopped.
func (t *Timer) Duration() time.Duration {
	if !t.stopped {
		panic("pfq: duration is not available until the timer has been stopped")
	}
	return t.duration
}

// ThroughputMonitor measures event rate by time-sampling a fixed number of
// events. Both collection and the rate computation are cheap; accuracy grows
// with the sample size.
//
//	monitor := pfq.NewThroughputMonitor(1024)
//
//	monitor.Count()              // per event
//	rps := monitor.Rate(time.Second)
type ThroughputMonitor struct {
	samples *CircularBuffer[int64]
}

// NewThroughputMonitor creates a throughput monitor keeping sampleSize event
// timestamps. Panics if sampleSize < 1.
func NewThroughputMonitor(sampleSize int) *ThroughputMonitor {
	return &ThroughputMonitor{samples: NewCircularBuffer[int64](sampleSize)}
}

// Count records one event.
func (m *ThroughputMonitor) Count() {
	m.samples.Add(time.Now().UnixNano())
}

// Rate returns the observed number of events per the given unit, derived
// from the span between the oldest and newest stable samples. Returns 0 when
// nothing has been counted.
func (m *ThroughputMonitor) Rate(per time.Duration) float64 {
	snap := m.samples.Snapshot()
	if len(snap) == 0 {
		return 0
	}

	span := snap[len(snap)-1] - snap[0]
	if span <= 0 {
		// A zero-nanosecond sample window; report the sample count as a
		// floor instead of dividing by it.
		if len(snap) == 1 {
			return 1
		}
		return float64(len(snap))
	}
	return float64(len(snap)) / float64(span) * float64(per)
}
