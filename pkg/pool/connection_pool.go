// SPDX-FileCopyrightText: 2025 Jon Thor Kristinsson
// SPDX-License-Identifier: Apache-2.0

// Package pool provides UDP socket pooling for the DDP wire sender, so that
// one socket per fixture address is reused across sessions and frames
// instead of dialed per send (spec.md §5: "one Wire Sender per fixture ...
// so that blocking I/O for one fixture cannot stall others").
package pool

import (
	"context"
	"fmt"
	"net"
	"sync"
	"time"

	"github.com/jontk/ddpctl/pkg/logging"
)

// UDPSenderPool manages one *net.UDPConn per fixture network address.
type UDPSenderPool struct {
	mu      sync.RWMutex
	conns   map[string]*pooledConn
	config  *PoolConfig
	logger  logging.Logger
}

// pooledConn wraps a UDP connection with usage statistics.
type pooledConn struct {
	conn      *net.UDPConn
	created   time.Time
	lastUsed  time.Time
	useCount  int64
	sendBytes int64
}

// PoolConfig holds configuration for the UDP sender pool.
type PoolConfig struct {
	// WriteTimeout bounds each UDP write so a blocked fixture can't stall
	// the frame loop indefinitely.
	WriteTimeout time.Duration

	// MaxIdleTime is how long a fixture connection may sit unused before
	// CleanupIdleConns reclaims it.
	MaxIdleTime time.Duration
}

// DefaultPoolConfig returns pool settings suited to LAN-local DDP fixtures.
func DefaultPoolConfig() *PoolConfig {
	return &PoolConfig{
		WriteTimeout: 200 * time.Millisecond,
		MaxIdleTime:  15 * time.Minute,
	}
}

// NewUDPSenderPool creates a new UDP socket pool.
func NewUDPSenderPool(config *PoolConfig, logger logging.Logger) *UDPSenderPool {
	if config == nil {
		config = DefaultPoolConfig()
	}
	if logger == nil {
		logger = logging.NoOpLogger{}
	}

	return &UDPSenderPool{
		conns:  make(map[string]*pooledConn),
		config: config,
		logger: logger,
	}
}

// GetConn returns a pooled UDP connection for address (host:port),
// dialing a new one on first use.
func (p *UDPSenderPool) GetConn(address string) (*net.UDPConn, error) {
	p.mu.RLock()
	pc, exists := p.conns[address]
	p.mu.RUnlock()

	if exists {
		p.mu.Lock()
		pc.lastUsed = time.Now()
		pc.useCount++
		p.mu.Unlock()
		return pc.conn, nil
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	if pc, exists := p.conns[address]; exists {
		pc.lastUsed = time.Now()
		pc.useCount++
		return pc.conn, nil
	}

	udpAddr, err := net.ResolveUDPAddr("udp4", address)
	if err != nil {
		return nil, fmt.Errorf("resolve fixture address %q: %w", address, err)
	}

	conn, err := net.DialUDP("udp4", nil, udpAddr)
	if err != nil {
		return nil, fmt.Errorf("dial fixture address %q: %w", address, err)
	}

	pc = &pooledConn{
		conn:     conn,
		created:  time.Now(),
		lastUsed: time.Now(),
		useCount: 1,
	}
	p.conns[address] = pc
	p.logger.Info("opened udp socket for fixture", "address", address)

	return conn, nil
}

// RecordSend updates usage statistics after a successful write.
func (p *UDPSenderPool) RecordSend(address string, n int) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if pc, ok := p.conns[address]; ok {
		pc.sendBytes += int64(n)
	}
}

// WriteTimeout returns the configured per-send deadline.
func (p *UDPSenderPool) WriteTimeout() time.Duration {
	return p.config.WriteTimeout
}

// Stats returns statistics about the connection pool.
func (p *UDPSenderPool) Stats() PoolStats {
	p.mu.RLock()
	defer p.mu.RUnlock()

	stats := PoolStats{
		TotalConns: len(p.conns),
		ConnStats:  make(map[string]ConnStats, len(p.conns)),
	}
	for address, pc := range p.conns {
		stats.ConnStats[address] = ConnStats{
			Created:   pc.created,
			LastUsed:  pc.lastUsed,
			UseCount:  pc.useCount,
			SendBytes: pc.sendBytes,
		}
	}
	return stats
}

// CleanupIdleConns closes and removes connections idle past maxIdleTime.
func (p *UDPSenderPool) CleanupIdleConns(maxIdleTime time.Duration) int {
	p.mu.Lock()
	defer p.mu.Unlock()

	removed := 0
	cutoff := time.Now().Add(-maxIdleTime)

	for address, pc := range p.conns {
		if pc.lastUsed.Before(cutoff) {
			pc.conn.Close()
			delete(p.conns, address)
			removed++
			p.logger.Info("closed idle fixture socket", "address", address, "idle_duration", time.Since(pc.lastUsed))
		}
	}
	return removed
}

// Close closes every pooled connection.
func (p *UDPSenderPool) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()

	for address, pc := range p.conns {
		pc.conn.Close()
		delete(p.conns, address)
	}
	p.logger.Info("closed all fixture sockets")
	return nil
}

// PoolStats contains statistics about the connection pool.
type PoolStats struct {
	TotalConns int
	ConnStats  map[string]ConnStats
}

// ConnStats contains statistics for a single connection.
type ConnStats struct {
	Created   time.Time
	LastUsed  time.Time
	UseCount  int64
	SendBytes int64
}

// Manager periodically evicts idle connections from a UDPSenderPool, the
// way the teacher corpus's ConnectionManager does for HTTP clients.
type Manager struct {
	pool            *UDPSenderPool
	cleanupInterval time.Duration
	maxIdleTime     time.Duration
	ctx             context.Context
	cancel          context.CancelFunc
	wg              sync.WaitGroup
	logger          logging.Logger
}

// NewManager creates a new idle-connection manager for pool.
func NewManager(pool *UDPSenderPool, logger logging.Logger) *Manager {
	ctx, cancel := context.WithCancel(context.Background())
	if logger == nil {
		logger = logging.NoOpLogger{}
	}
	return &Manager{
		pool:            pool,
		cleanupInterval: 5 * time.Minute,
		maxIdleTime:     pool.config.MaxIdleTime,
		ctx:             ctx,
		cancel:          cancel,
		logger:          logger,
	}
}

// Start begins the cleanup routine.
func (m *Manager) Start() {
	m.wg.Add(1)
	go m.cleanupRoutine()
}

// Stop stops the cleanup routine and waits for it to exit.
func (m *Manager) Stop() {
	m.cancel()
	m.wg.Wait()
}

func (m *Manager) cleanupRoutine() {
	defer m.wg.Done()

	ticker := time.NewTicker(m.cleanupInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			if removed := m.pool.CleanupIdleConns(m.maxIdleTime); removed > 0 {
				m.logger.Info("cleaned up idle fixture sockets", "removed", removed)
			}
		case <-m.ctx.Done():
			return
		}
	}
}
