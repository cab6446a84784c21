// SPDX-FileCopyrightText: 2025 Jon Thor Kristinsson
// SPDX-License-Identifier: Apache-2.0

package ddp

import (
	"context"
	"fmt"
	"sync"
	"time"

	ctrlerrors "github.com/jontk/ddpctl/pkg/errors"
	"github.com/jontk/ddpctl/pkg/logging"
	"github.com/jontk/ddpctl/pkg/metrics"
	"github.com/jontk/ddpctl/pkg/pool"
	"github.com/jontk/ddpctl/pkg/retry"
)

// FixtureAddr identifies the network endpoint a Sender writes to.
type FixtureAddr struct {
	FixtureID string
	Address   string // host:port, DDP default port is 4048
}

// Sender owns a pool of UDP sockets and serializes+ships frames to fixture
// addresses, one sequence counter per fixture (spec.md §4.1, §5: "one Wire
// Sender per fixture ... so blocking I/O for one fixture cannot stall
// others").
type Sender struct {
	pool      *pool.UDPSenderPool
	policy    retry.Policy
	metrics   metrics.Collector
	logger    logging.Logger
	threshold int

	mu        sync.Mutex
	sequences map[string]*SequenceCounter
	failures  map[string]int
}

// Config holds Sender construction parameters.
type Config struct {
	Pool               *pool.UDPSenderPool
	RetryPolicy        retry.Policy
	Metrics            metrics.Collector
	Logger             logging.Logger
	UnhealthyThreshold int // consecutive failures before a fixture is marked unhealthy (spec.md §4.9, default 60)
}

// NewSender creates a new DDP wire sender.
func NewSender(cfg Config) *Sender {
	if cfg.Pool == nil {
		cfg.Pool = pool.NewUDPSenderPool(nil, cfg.Logger)
	}
	if cfg.RetryPolicy == nil {
		cfg.RetryPolicy = retry.NewSendExponentialBackoff()
	}
	if cfg.Metrics == nil {
		cfg.Metrics = metrics.NoOpCollector{}
	}
	if cfg.Logger == nil {
		cfg.Logger = logging.NoOpLogger{}
	}
	if cfg.UnhealthyThreshold <= 0 {
		cfg.UnhealthyThreshold = 60
	}

	return &Sender{
		pool:      cfg.Pool,
		policy:    cfg.RetryPolicy,
		metrics:   cfg.Metrics,
		logger:    cfg.Logger,
		threshold: cfg.UnhealthyThreshold,
		sequences: make(map[string]*SequenceCounter),
		failures:  make(map[string]int),
	}
}

// SendPixels serializes rgbBytes for fixture at byte offset byteOffset
// (3*chunkStartPixel) and ships it, chunking as needed. It returns a
// TransientIO or FatalIO *ControllerError on failure; the caller (session
// loop) is expected to log and continue per spec.md §7.
func (s *Sender) SendPixels(ctx context.Context, fixture FixtureAddr, byteOffset uint32, rgbBytes []byte) error {
	seq := s.nextSequence(fixture.FixtureID)
	packets := Chunk(seq, byteOffset, rgbBytes)

	conn, err := s.pool.GetConn(fixture.Address)
	if err != nil {
		s.recordFailure(fixture)
		return ctrlerrors.NewFatalIOError(ctrlerrors.ErrorCodeUnknownFixture,
			fmt.Sprintf("resolve fixture %s", fixture.FixtureID), err)
	}

	start := time.Now()
	totalBytes := 0

	for _, pkt := range packets {
		wire := pkt.Bytes()
		sendErr := retry.Do(ctx, s.policy, func() error {
			if s.pool.WriteTimeout() > 0 {
				conn.SetWriteDeadline(time.Now().Add(s.pool.WriteTimeout()))
			}
			n, writeErr := conn.Write(wire)
			if writeErr == nil {
				totalBytes += n
			}
			return writeErr
		})

		if sendErr != nil {
			s.metrics.RecordSendError(fixture.FixtureID, sendErr)
			unhealthy := s.recordFailure(fixture)
			if unhealthy {
				return ctrlerrors.NewFatalIOError(ctrlerrors.ErrorCodeFixtureUnhealthy,
					fmt.Sprintf("fixture %s marked unhealthy after %d consecutive failures",
						fixture.FixtureID, s.threshold), sendErr)
			}
			return ctrlerrors.WrapSendError(sendErr)
		}

		s.pool.RecordSend(fixture.Address, len(wire))
	}

	s.resetFailures(fixture.FixtureID)
	s.metrics.RecordSend(fixture.FixtureID, totalBytes, time.Since(start))
	return nil
}

// IsUnhealthy reports whether fixtureID has accumulated UnhealthyThreshold
// or more consecutive send failures.
func (s *Sender) IsUnhealthy(fixtureID string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.failures[fixtureID] >= s.threshold
}

// ResetHealth clears a fixture's failure count, e.g. after an operator
// confirms the fixture is back online.
func (s *Sender) ResetHealth(fixtureID string) {
	s.resetFailures(fixtureID)
}

// Close releases every pooled socket.
func (s *Sender) Close() error {
	return s.pool.Close()
}

func (s *Sender) nextSequence(fixtureID string) byte {
	s.mu.Lock()
	defer s.mu.Unlock()
	counter, ok := s.sequences[fixtureID]
	if !ok {
		counter = &SequenceCounter{}
		s.sequences[fixtureID] = counter
	}
	return counter.Next()
}

// recordFailure increments the consecutive-failure count for fixture and
// reports whether this failure pushed it past the unhealthy threshold.
func (s *Sender) recordFailure(fixture FixtureAddr) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.failures[fixture.FixtureID]++
	if s.failures[fixture.FixtureID] == s.threshold {
		s.logger.WithFixtureID(fixture.FixtureID).Error("fixture marked unhealthy", "threshold", s.threshold)
	}
	return s.failures[fixture.FixtureID] >= s.threshold
}

func (s *Sender) resetFailures(fixtureID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.failures, fixtureID)
}
