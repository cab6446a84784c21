// SPDX-FileCopyrightText: 2025 Jon Thor Kristinsson
// SPDX-License-Identifier: Apache-2.0

package config

import "errors"

var (
	// ErrInvalidUDPPort is returned when the configured UDP port is out of range.
	ErrInvalidUDPPort = errors.New("udp port must be between 1 and 65535")

	// ErrInvalidFPS is returned when the default frame rate is out of spec.md's [1,120] range.
	ErrInvalidFPS = errors.New("default fps must be between 1 and 120")

	// ErrInvalidInterval is returned when the health check interval is not positive.
	ErrInvalidInterval = errors.New("health check interval must be greater than 0")

	// ErrInvalidScheduleTick is returned when the schedule tick interval exceeds 1s (spec.md §4.8).
	ErrInvalidScheduleTick = errors.New("schedule tick interval must be in (0, 1s]")

	// ErrInvalidThreshold is returned when the unhealthy-fixture threshold is not positive.
	ErrInvalidThreshold = errors.New("unhealthy threshold must be greater than 0")
)
