//go:build integration

// Package containers starts Postgres, Kafka and Redis with testcontainers
// for the integration suites. Each container is started once per test
// binary and shared by every suite in the package.
package containers

import (
	"sync"
	"testing"
)

// Manager owns the shared containers of one test binary.
type Manager struct {
	postgres lazy[*PostgresContainer]
	kafka    lazy[*KafkaContainer]
	redis    lazy[*RedisContainer]
}

var manager = sync.OnceValue(func() *Manager { return &Manager{} })

// GetManager returns the process-wide manager.
func GetManager() *Manager { return manager() }

func (m *Manager) GetPostgres(t *testing.T) *PostgresContainer {
	t.Helper()
	return m.postgres.get(t, NewPostgresContainer)
}

func (m *Manager) GetKafka(t *testing.T) *KafkaContainer {
	t.Helper()
	return m.kafka.get(t, NewKafkaContainer)
}

func (m *Manager) GetRedis(t *testing.T) *RedisContainer {
	t.Helper()
	return m.redis.get(t, NewRedisContainer)
}

// lazy starts its container on first use. A failed start is retried by the
// next caller since start aborts the test before v is set.
type lazy[T any] struct {
	mu sync.Mutex
	v  T
	ok bool
}

func (l *lazy[T]) get(t *testing.T, start func(*testing.T) T) T {
	t.Helper()
	l.mu.Lock()
	defer l.mu.Unlock()
	if !l.ok {
		l.v = start(t)
		l.ok = true
	}
	return l.v
}
