package datasource

import (
	"context"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/ekaya-inc/ekaya-text2sql/pkg/logging"
	"github.com/ekaya-inc/ekaya-text2sql/pkg/retry"
)

const (
	DefaultConnectionTTLMinutes = 5
	DefaultCleanupInterval      = 1 * time.Minute
	DefaultPoolMaxConns         = 10
	DefaultPoolMinConns         = 1
)

// ConnectionManagerConfig holds configuration for the connection manager
type ConnectionManagerConfig struct {
	TTLMinutes   int
	PoolMaxConns int32
	PoolMinConns int32
}

// ConnectionManager keeps one pool per datasource alive while it is in use
// and closes pools idle for longer than the TTL.
type ConnectionManager struct {
	mu           sync.RWMutex
	connections  map[string]*ManagedConnection // key: "{dialect}://{user}@{host}:{port}/{database}"
	ttl          time.Duration
	poolMaxConns int32
	poolMinConns int32
	stopped      bool
	stopChan     chan struct{}
	logger       *zap.Logger

	// open is datasource.Open outside tests.
	open func(ctx context.Context, d Dialect, options map[string]any, settings PoolSettings) (PoolConnector, error)
}

// ManagedConnection represents a pooled connection with its last use time.
type ManagedConnection struct {
	connector PoolConnector
	dialect   Dialect
	lastUsed  time.Time
	mu        sync.Mutex
}

// NewConnectionManager creates a connection manager with the given configuration.
// Starts a background cleanup goroutine that runs until Close() is called.
func NewConnectionManager(cfg ConnectionManagerConfig, logger *zap.Logger) *ConnectionManager {
	if cfg.TTLMinutes <= 0 {
		cfg.TTLMinutes = DefaultConnectionTTLMinutes
	}
	if cfg.PoolMaxConns <= 0 {
		cfg.PoolMaxConns = DefaultPoolMaxConns
	}
	if cfg.PoolMinConns <= 0 {
		cfg.PoolMinConns = DefaultPoolMinConns
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	manager := &ConnectionManager{
		connections:  make(map[string]*ManagedConnection),
		ttl:          time.Duration(cfg.TTLMinutes) * time.Minute,
		poolMaxConns: cfg.PoolMaxConns,
		poolMinConns: cfg.PoolMinConns,
		stopChan:     make(chan struct{}),
		logger:       logger.Named("connections"),
		open:         Open,
	}

	go manager.cleanupExpiredConnections()
	return manager
}

// connectionKey identifies a datasource without including its password.
func connectionKey(d Dialect, options map[string]any) string {
	return fmt.Sprintf("%s://%v@%v:%v/%v", d, options["user"], options["host"], options["port"], options["database"])
}

// GetOrCreateConnection returns the pool for the datasource described by
// options, creating it on first use. An existing pool that fails its health
// check is replaced.
func (m *ConnectionManager) GetOrCreateConnection(ctx context.Context, d Dialect, options map[string]any) (PoolConnector, error) {
	key := connectionKey(d, options)

	m.mu.RLock()
	managed, exists := m.connections[key]
	m.mu.RUnlock()

	if exists {
		managed.mu.Lock()

		healthCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
		defer cancel()

		err := retry.Do(healthCtx, retry.DefaultConfig(), func() error {
			return managed.connector.Ping(healthCtx)
		})

		if err != nil {
			m.logger.Warn("connection unhealthy, recreating",
				zap.String("key", key),
				zap.String("error", logging.SanitizeError(err)),
			)
			managed.mu.Unlock()
			m.removeConnection(key)
			return m.createNewConnection(ctx, key, d, options)
		}

		managed.lastUsed = time.Now()
		managed.mu.Unlock()
		return managed.connector, nil
	}

	return m.createNewConnection(ctx, key, d, options)
}

// createNewConnection opens a new pool with retry logic.
// Caller must NOT hold any locks (this method acquires write lock).
func (m *ConnectionManager) createNewConnection(ctx context.Context, key string, d Dialect, options map[string]any) (PoolConnector, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.stopped {
		return nil, fmt.Errorf("connection manager is closed")
	}

	// Double-check after acquiring write lock (another goroutine may have created it)
	if managed, exists := m.connections[key]; exists && managed != nil {
		managed.mu.Lock()
		defer managed.mu.Unlock()
		managed.lastUsed = time.Now()
		return managed.connector, nil
	}

	settings := PoolSettings{
		MaxConns:    m.poolMaxConns,
		MinConns:    m.poolMinConns,
		MaxIdleTime: m.ttl,
	}

	connector, err := retry.DoIfRetryableWithResult(ctx, retry.DefaultConfig(), func() (PoolConnector, error) {
		return m.open(ctx, d, options, settings)
	})
	if err != nil {
		m.logger.Error("failed to create pool",
			zap.String("key", key),
			zap.String("error", logging.SanitizeError(err)),
		)
		return nil, fmt.Errorf("failed to create pool for %s: %w", key, err)
	}

	m.connections[key] = &ManagedConnection{
		connector: connector,
		dialect:   d,
		lastUsed:  time.Now(),
	}

	m.logger.Info("created new connection pool",
		zap.String("key", key),
		zap.String("dialect", d.String()),
		zap.Int("totalConnections", len(m.connections)),
	)

	return connector, nil
}

// removeConnection removes a connection from the pool and closes it.
// Caller must NOT hold m.mu lock (this method acquires write lock).
func (m *ConnectionManager) removeConnection(key string) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if managed, exists := m.connections[key]; exists && managed != nil {
		m.closeConnector(key, managed)
		delete(m.connections, key)
		m.logger.Debug("removed connection", zap.String("key", key))
	}
}

func (m *ConnectionManager) closeConnector(key string, managed *ManagedConnection) {
	if managed.connector == nil {
		return
	}
	if err := managed.connector.Close(); err != nil {
		m.logger.Warn("error closing pool",
			zap.String("key", key),
			zap.String("error", logging.SanitizeError(err)),
		)
	}
}

// cleanupExpiredConnections runs periodically to remove expired connections.
// Runs in a background goroutine until stopChan is closed.
func (m *ConnectionManager) cleanupExpiredConnections() {
	ticker := time.NewTicker(DefaultCleanupInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			m.performCleanup(time.Now())
		case <-m.stopChan:
			return
		}
	}
}

// performCleanup removes connections that haven't been used within TTL.
// Lock ordering: manager lock, then connection lock.
func (m *ConnectionManager) performCleanup(now time.Time) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.stopped {
		return
	}

	var expiredKeys []string
	for key, managed := range m.connections {
		if managed == nil {
			continue
		}
		managed.mu.Lock()
		idleTime := now.Sub(managed.lastUsed)
		managed.mu.Unlock()

		if idleTime > m.ttl {
			expiredKeys = append(expiredKeys, key)
			m.logger.Debug("marking connection for cleanup",
				zap.String("key", key),
				zap.Duration("idleTime", idleTime),
				zap.Duration("ttl", m.ttl),
			)
		}
	}

	for _, key := range expiredKeys {
		m.closeConnector(key, m.connections[key])
		delete(m.connections, key)
	}

	if len(expiredKeys) > 0 {
		m.logger.Info("cleaned up expired connections",
			zap.Int("count", len(expiredKeys)),
			zap.Int("remaining", len(m.connections)),
		)
	}
}

// Close closes all connections in the manager and stops the cleanup goroutine.
// This method is idempotent and safe to call multiple times.
func (m *ConnectionManager) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.stopped {
		return nil
	}

	m.stopped = true
	close(m.stopChan)

	for key, managed := range m.connections {
		if managed != nil {
			m.closeConnector(key, managed)
		}
	}

	m.connections = make(map[string]*ManagedConnection)
	m.logger.Info("connection manager closed")
	return nil
}

// GetStats returns statistics about the connection manager.
// Safe to call concurrently.
func (m *ConnectionManager) GetStats() ConnectionStats {
	m.mu.RLock()
	defer m.mu.RUnlock()

	now := time.Now()
	stats := ConnectionStats{
		TotalConnections:     len(m.connections),
		TTLMinutes:           int(m.ttl.Minutes()),
		ConnectionsByDialect: make(map[string]int),
	}

	for _, managed := range m.connections {
		if managed == nil {
			continue
		}
		stats.ConnectionsByDialect[managed.dialect.String()]++

		managed.mu.Lock()
		idleSeconds := int(now.Sub(managed.lastUsed).Seconds())
		managed.mu.Unlock()
		if idleSeconds > stats.OldestIdleSeconds {
			stats.OldestIdleSeconds = idleSeconds
		}
	}

	return stats
}

// ConnectionStats contains statistics about the connection manager state.
type ConnectionStats struct {
	TotalConnections     int            `json:"total_connections"`
	TTLMinutes           int            `json:"ttl_minutes"`
	ConnectionsByDialect map[string]int `json:"connections_by_dialect"`
	OldestIdleSeconds    int            `json:"oldest_idle_seconds"`
}
