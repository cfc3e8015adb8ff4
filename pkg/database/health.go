package database

import (
	"context"
	"database/sql"
	"time"
)

// Health statuses reported by Health.
const (
	StatusHealthy   = "healthy"
	StatusDegraded  = "degraded"
	StatusUnhealthy = "unhealthy"
)

// HealthStatus reports database reachability and a snapshot of the
// shared connection pool.
type HealthStatus struct {
	Status       string `json:"status"`
	PingMillis   int64  `json:"ping_ms"`
	OpenConns    int    `json:"open_connections"`
	InUseConns   int    `json:"in_use"`
	IdleConns    int    `json:"idle"`
	PoolCapacity int    `json:"pool_capacity"`
	WaitedTotal  int64  `json:"waited_total"`
	WaitMillis   int64  `json:"wait_total_ms"`
}

// Health pings the database and snapshots the pool. A reachable
// database with a saturated pool reports degraded: queries are
// queueing behind the capacity limit.
func Health(ctx context.Context, db *sql.DB) (*HealthStatus, error) {
	start := time.Now()

	if err := db.PingContext(ctx); err != nil {
		return &HealthStatus{
			Status:     StatusUnhealthy,
			PingMillis: time.Since(start).Milliseconds(),
		}, err
	}

	stats := db.Stats()
	return &HealthStatus{
		Status:       classifyPool(stats),
		PingMillis:   time.Since(start).Milliseconds(),
		OpenConns:    stats.OpenConnections,
		InUseConns:   stats.InUse,
		IdleConns:    stats.Idle,
		PoolCapacity: stats.MaxOpenConnections,
		WaitedTotal:  stats.WaitCount,
		WaitMillis:   stats.WaitDuration.Milliseconds(),
	}, nil
}

// classifyPool flags a saturated pool: every connection in use and
// queries already waiting for one.
func classifyPool(stats sql.DBStats) string {
	if stats.MaxOpenConnections > 0 && stats.InUse >= stats.MaxOpenConnections && stats.WaitCount > 0 {
		return StatusDegraded
	}
	return StatusHealthy
}
