package database

import (
	"context"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNew_EmptyURLDisablesPool(t *testing.T) {
	pool, err := New(context.Background(), DefaultConfig())
	require.NoError(t, err)
	assert.Nil(t, pool)
}

func TestNilPool(t *testing.T) {
	var pool *Pool

	assert.ErrorIs(t, pool.Health(context.Background()), ErrNotConfigured)
	assert.NoError(t, pool.Close())
	assert.Zero(t, pool.Stats().OpenConnections)
}

func TestCollector_ReportsAllSeries(t *testing.T) {
	var pool *Pool
	assert.Equal(t, 5, testutil.CollectAndCount(pool.Collector()))
}
