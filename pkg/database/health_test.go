package database

import (
	"database/sql"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestClassifyPool(t *testing.T) {
	t.Run("idle pool is healthy", func(t *testing.T) {
		assert.Equal(t, StatusHealthy, classifyPool(sql.DBStats{
			MaxOpenConnections: 10,
			OpenConnections:    2,
			Idle:               2,
		}))
	})

	t.Run("busy but unsaturated pool is healthy", func(t *testing.T) {
		assert.Equal(t, StatusHealthy, classifyPool(sql.DBStats{
			MaxOpenConnections: 10,
			OpenConnections:    10,
			InUse:              9,
			WaitCount:          3,
		}))
	})

	t.Run("saturated pool with waiters is degraded", func(t *testing.T) {
		assert.Equal(t, StatusDegraded, classifyPool(sql.DBStats{
			MaxOpenConnections: 10,
			OpenConnections:    10,
			InUse:              10,
			WaitCount:          3,
			WaitDuration:       250 * time.Millisecond,
		}))
	})

	t.Run("unlimited pool never degrades", func(t *testing.T) {
		assert.Equal(t, StatusHealthy, classifyPool(sql.DBStats{
			OpenConnections: 50,
			InUse:           50,
			WaitCount:       1,
		}))
	})
}
