//go:build integration

// Package containers manages shared test containers for integration tests.
// Containers are started once per test binary and shared across suites; Ryuk
// reaps them when the process exits.
package containers

import (
	"sync"
	"testing"
)

// Manager hands out singleton containers to test suites.
type Manager struct {
	pgOnce    sync.Once
	postgres  *PostgresContainer
	redisOnce sync.Once
	redis     *RedisContainer
}

var manager = &Manager{}

// GetManager returns the process-wide container manager.
func GetManager() *Manager {
	return manager
}

// GetPostgres returns the shared Postgres container, starting it on first use.
func (m *Manager) GetPostgres(t *testing.T) *PostgresContainer {
	t.Helper()
	m.pgOnce.Do(func() {
		m.postgres = NewPostgresContainer(t)
	})
	return m.postgres
}

// GetRedis returns the shared Redis container, starting it on first use.
func (m *Manager) GetRedis(t *testing.T) *RedisContainer {
	t.Helper()
	m.redisOnce.Do(func() {
		m.redis = NewRedisContainer(t)
	})
	return m.redis
}
