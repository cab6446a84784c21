// SPDX-FileCopyrightText: 2025 Jon Thor Kristinsson
// SPDX-License-Identifier: Apache-2.0

package schedule

import (
	"time"

	"github.com/jontk/ddpctl/session"
)

// brightnessRamp builds the per-frame brightness multiplier for a rule's
// activation window (spec.md §4.8 step 5): a linear 0→1 ramp over
// rampDurationSeconds from the window's start if rampOnStart, and a
// linear 1→0 ramp over the same duration ending at the window's end if
// rampOffEnd. Outside either ramp period the multiplier is 1.0.
func brightnessRamp(r Rule, windowStart, windowEnd time.Time) session.BrightnessFunc {
	dur := time.Duration(r.RampDurationSeconds) * time.Second
	rampOnStart, rampOffEnd := r.RampOnStart, r.RampOffEnd

	return func(now time.Time) float64 {
		level := 1.0

		if rampOnStart && dur > 0 {
			elapsed := now.Sub(windowStart)
			if elapsed < dur {
				level = clampUnit(elapsed.Seconds() / dur.Seconds())
			}
		}

		if rampOffEnd && dur > 0 {
			remaining := windowEnd.Sub(now)
			if remaining < dur {
				offLevel := clampUnit(remaining.Seconds() / dur.Seconds())
				if offLevel < level {
					level = offLevel
				}
			}
		}

		return level
	}
}

func clampUnit(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
