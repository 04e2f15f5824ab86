package monitor

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRefreshRecordsEveryCheck(t *testing.T) {
	var redisDown atomic.Bool
	m := New(time.Minute, nil,
		Check{Name: "bolt", Ping: func(context.Context) error { return nil }},
		Check{Name: "redis", Ping: func(context.Context) error {
			if redisDown.Load() {
				return errors.New("connection refused")
			}
			return nil
		}},
	)

	status := m.Refresh(context.Background())
	assert.True(t, status.Healthy())
	assert.True(t, m.IsOnline())
	assert.True(t, m.Component("redis").IsOnline())

	redisDown.Store(true)
	status = m.Refresh(context.Background())
	assert.False(t, status.Healthy())
	assert.Equal(t, map[string]bool{"bolt": true, "redis": false}, status.Components)
	assert.False(t, m.Component("redis").IsOnline())
	assert.True(t, m.Component("bolt").IsOnline())
}

func TestCheckTimeout(t *testing.T) {
	m := New(time.Minute, nil, Check{
		Name:    "slow",
		Timeout: 10 * time.Millisecond,
		Ping: func(ctx context.Context) error {
			<-ctx.Done()
			return ctx.Err()
		},
	})
	status := m.Refresh(context.Background())
	assert.False(t, status.Components["slow"])
}

func TestUnknownComponentAndEmptyMonitor(t *testing.T) {
	m := New(time.Minute, nil)
	assert.False(t, m.IsOnline())
	assert.False(t, m.Component("postgres").IsOnline())
	assert.False(t, ComponentHealth{}.IsOnline())
}

func TestStartRefreshesImmediately(t *testing.T) {
	m := New(time.Hour, nil, Check{Name: "bolt", Ping: func(context.Context) error { return nil }})
	m.Start()
	defer m.Stop()

	require.Eventually(t, m.IsOnline, time.Second, 10*time.Millisecond)
	m.Stop()
}
