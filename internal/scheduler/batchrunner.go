package scheduler

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/hamed0406/sitewatch/internal/detect"
	"github.com/hamed0406/sitewatch/internal/domain"
)

// SiteSource yields the current site list.
type SiteSource interface {
	All() []domain.Site
}

type Batcher interface {
	DetectAll(ctx context.Context, sites []domain.Site, opts detect.BatchOptions) (*detect.BatchReport, error)
}

// BatchRunner runs a full batch over the enabled sites on a fixed interval.
type BatchRunner struct {
	Logger      *zap.Logger
	Sites       SiteSource
	Detector    Batcher
	Interval    time.Duration
	Timeout     time.Duration
	Concurrency int
}

func NewBatchRunner(
	logger *zap.Logger,
	sites SiteSource,
	detector Batcher,
	interval time.Duration,
	timeout time.Duration,
	concurrency int,
) *BatchRunner {
	if logger == nil {
		logger = zap.NewNop()
	}
	if interval < 0 {
		interval = 0
	}
	return &BatchRunner{
		Logger:      logger,
		Sites:       sites,
		Detector:    detector,
		Interval:    interval,
		Timeout:     timeout,
		Concurrency: detect.ClampConcurrency(concurrency),
	}
}

// Run does an immediate pass, then one per tick, until ctx is cancelled.
func (r *BatchRunner) Run(ctx context.Context) {
	if r.Interval == 0 {
		r.Logger.Info("batch_runner_disabled")
		return
	}
	t := time.NewTicker(r.Interval)
	defer t.Stop()

	r.RunOnce(ctx)

	for {
		select {
		case <-ctx.Done():
			r.Logger.Info("batch_runner_stopped")
			return
		case <-t.C:
			r.RunOnce(ctx)
		}
	}
}

func (r *BatchRunner) RunOnce(ctx context.Context) {
	sites := detect.Enabled(r.Sites.All())
	if len(sites) == 0 {
		return
	}
	rep, err := r.Detector.DetectAll(ctx, sites, detect.BatchOptions{
		Concurrency: r.Concurrency,
		Timeout:     r.Timeout,
	})
	if err != nil {
		r.Logger.Warn("batch_runner_error", zap.Error(err))
		return
	}
	if len(rep.Flagged) > 0 {
		names := make([]string, 0, len(rep.Flagged))
		for _, f := range rep.Flagged {
			names = append(names, f.Site)
		}
		r.Logger.Warn("batch_runner_auth_flagged", zap.String("run_id", rep.RunID), zap.Strings("sites", names))
	}
}
