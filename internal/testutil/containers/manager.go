//go:build integration

// Package containers starts throwaway Postgres and Redis instances for
// integration tests. Containers are shared by every suite in a test binary
// and reaped by Ryuk when the binary exits.
package containers

import (
	"sync"
	"testing"
)

type Manager struct {
	pgOnce sync.Once
	pg     *PostgresContainer
	pgErr  error

	redisOnce sync.Once
	redis     *RedisContainer
	redisErr  error
}

var (
	mgr     *Manager
	mgrOnce sync.Once
)

func GetManager() *Manager {
	mgrOnce.Do(func() { mgr = &Manager{} })
	return mgr
}

// GetPostgres returns the shared, migrated Postgres container.
func (m *Manager) GetPostgres(t *testing.T) *PostgresContainer {
	t.Helper()
	m.pgOnce.Do(func() { m.pg, m.pgErr = startPostgres() })
	if m.pgErr != nil {
		t.Fatalf("postgres container: %v", m.pgErr)
	}
	return m.pg
}

// GetRedis returns the shared Redis container.
func (m *Manager) GetRedis(t *testing.T) *RedisContainer {
	t.Helper()
	m.redisOnce.Do(func() { m.redis, m.redisErr = startRedis() })
	if m.redisErr != nil {
		t.Fatalf("redis container: %v", m.redisErr)
	}
	return m.redis
}
