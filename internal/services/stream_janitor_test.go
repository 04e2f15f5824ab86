package services

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type countingTrimmer struct {
	calls   atomic.Int64
	lastMax atomic.Int64
	evicted int64
	err     error
}

func (c *countingTrimmer) Trim(_ context.Context, maxLen int64) (int64, error) {
	c.calls.Add(1)
	c.lastMax.Store(maxLen)
	return c.evicted, c.err
}

type staticHealth bool

func (s staticHealth) IsOnline() bool { return bool(s) }

func TestJanitorTrim(t *testing.T) {
	trimmer := &countingTrimmer{evicted: 12}
	j := NewStreamJanitor(trimmer, staticHealth(true), nil, JanitorConfig{Interval: time.Minute, MaxLen: 500})

	evicted, err := j.Trim(context.Background())
	require.NoError(t, err)
	assert.Equal(t, int64(12), evicted)
	assert.Equal(t, int64(500), trimmer.lastMax.Load())
}

func TestJanitorSkipsWhenOffline(t *testing.T) {
	trimmer := &countingTrimmer{}
	j := NewStreamJanitor(trimmer, staticHealth(false), nil, JanitorConfig{})

	evicted, err := j.Trim(context.Background())
	require.NoError(t, err)
	assert.Zero(t, evicted)
	assert.Zero(t, trimmer.calls.Load())
}

func TestJanitorPropagatesTrimError(t *testing.T) {
	trimmer := &countingTrimmer{err: errors.New("READONLY")}
	j := NewStreamJanitor(trimmer, nil, nil, JanitorConfig{})

	_, err := j.Trim(context.Background())
	assert.EqualError(t, err, "READONLY")
}

func TestJanitorRunsOnSchedule(t *testing.T) {
	trimmer := &countingTrimmer{}
	j := NewStreamJanitor(trimmer, nil, nil, JanitorConfig{Interval: time.Second})

	j.Start()
	require.Eventually(t, func() bool { return trimmer.calls.Load() >= 1 }, 3*time.Second, 50*time.Millisecond)
	j.Stop(context.Background())
	assert.Equal(t, int64(100000), trimmer.lastMax.Load())
}
