package services

import (
	"context"
	"fmt"
	"time"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"

	"github.com/fastygo/todolog/repository"
)

// ConnectionHealth abstracts the connection monitor functionality.
type ConnectionHealth interface {
	IsOnline() bool
}

// JanitorConfig controls how often and how far the event stream is trimmed.
type JanitorConfig struct {
	Interval time.Duration
	MaxLen   int64
}

// StreamJanitor trims the event stream on a schedule so acknowledged history does not grow
// without bound. Trimming is approximate; entries still pending for a consumer can be trimmed
// only once the stream exceeds MaxLen by a full node.
type StreamJanitor struct {
	trimmer repository.StreamTrimmer
	monitor ConnectionHealth
	logger  *zap.Logger
	cron    *cron.Cron
	cfg     JanitorConfig
}

func NewStreamJanitor(trimmer repository.StreamTrimmer, monitor ConnectionHealth, logger *zap.Logger, cfg JanitorConfig) *StreamJanitor {
	if cfg.Interval < time.Second {
		cfg.Interval = 10 * time.Minute
	}
	if cfg.MaxLen <= 0 {
		cfg.MaxLen = 100000
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	j := &StreamJanitor{
		trimmer: trimmer,
		monitor: monitor,
		logger:  logger,
		cfg:     cfg,
		cron:    cron.New(cron.WithSeconds()),
	}

	schedule := fmt.Sprintf("@every %ds", int(cfg.Interval.Seconds()))
	_, _ = j.cron.AddFunc(schedule, func() {
		ctx, cancel := context.WithTimeout(context.Background(), cfg.Interval)
		defer cancel()
		if _, err := j.Trim(ctx); err != nil {
			j.logger.Error("event stream trim failed", zap.Error(err))
		}
	})

	return j
}

// Start launches the cron scheduler.
func (j *StreamJanitor) Start() {
	if j == nil || j.cron == nil {
		return
	}
	j.cron.Start()
	j.logger.Info("stream janitor started",
		zap.Duration("interval", j.cfg.Interval),
		zap.Int64("max_len", j.cfg.MaxLen))
}

// Stop gracefully stops the scheduler.
func (j *StreamJanitor) Stop(ctx context.Context) {
	if j == nil || j.cron == nil {
		return
	}
	stopCtx := j.cron.Stop()
	select {
	case <-stopCtx.Done():
	case <-ctx.Done():
	}
	j.logger.Info("stream janitor stopped")
}

// Trim runs one trim pass and returns the number of entries evicted.
func (j *StreamJanitor) Trim(ctx context.Context) (int64, error) {
	if j == nil || j.trimmer == nil {
		return 0, nil
	}
	if j.monitor != nil && !j.monitor.IsOnline() {
		j.logger.Debug("skipping stream trim (offline)")
		return 0, nil
	}

	evicted, err := j.trimmer.Trim(ctx, j.cfg.MaxLen)
	if err != nil {
		return 0, err
	}
	if evicted > 0 {
		j.logger.Info("event stream trimmed", zap.Int64("evicted", evicted))
	}
	return evicted, nil
}
