// ©Hayabusa Cloud Co., Ltd. 2026. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

//go:build race

package pfq

// RaceEnabled is true when the race detector is active.
// Used by tests to skip concurrent sample-buffer tests, whose deliberately
// unordered slot stores trigger false positives.
const RaceEnabled = true
