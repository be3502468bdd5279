//go:build integration

// Package containers starts the Postgres, Redis and Redpanda instances the
// integration suites run against. Each is started on first use and shared by
// every test in the binary; Ryuk reaps them when the process exits.
package containers

import (
	"sync"
	"testing"
)

// Manager hands out the shared containers.
type Manager struct {
	postgres lazy[*PostgresContainer]
	redis    lazy[*RedisContainer]
	kafka    lazy[*KafkaContainer]
}

var GetManager = sync.OnceValue(func() *Manager { return &Manager{} })

// GetPostgres returns the Postgres container with every migration applied.
func (m *Manager) GetPostgres(t *testing.T) *PostgresContainer {
	t.Helper()
	return m.postgres.get(t, NewPostgresContainer)
}

func (m *Manager) GetRedis(t *testing.T) *RedisContainer {
	t.Helper()
	return m.redis.get(t, NewRedisContainer)
}

// GetKafka returns a Redpanda broker speaking the Kafka protocol.
func (m *Manager) GetKafka(t *testing.T) *KafkaContainer {
	t.Helper()
	return m.kafka.get(t, NewKafkaContainer)
}

// lazy starts a value once. A start that fails the test leaves it unset so
// the next caller retries.
type lazy[T any] struct {
	mu      sync.Mutex
	val     T
	started bool
}

func (l *lazy[T]) get(t *testing.T, start func(*testing.T) T) T {
	t.Helper()
	if testing.Short() {
		t.Skip("container-backed test skipped in -short mode")
	}

	l.mu.Lock()
	defer l.mu.Unlock()
	if !l.started {
		l.val = start(t)
		l.started = true
	}
	return l.val
}
