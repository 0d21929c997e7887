package detect

import (
	"context"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/hamed0406/sitewatch/internal/domain"
	"github.com/hamed0406/sitewatch/internal/probe"
	"github.com/hamed0406/sitewatch/internal/recovery"
)

const (
	MinConcurrency = 1
	MaxConcurrency = 5
)

// ClampConcurrency bounds a requested worker count to [1, 5].
func ClampConcurrency(n int) int {
	return min(MaxConcurrency, max(MinConcurrency, n))
}

type BatchOptions struct {
	Concurrency int
	Timeout     time.Duration // per probe; zero uses the detector default
}

// BatchReport is the outcome of one DetectAll call.
type BatchReport struct {
	RunID string
	// Results holds the effective result per input site, in input order.
	Results []domain.Result
	// Flagged lists sites whose probe looked like an expired login.
	Flagged []recovery.Record
	// Recovery tracks the login recovery of Flagged sites; nil when the
	// detector has no recovery protocol. It outlives DetectAll.
	Recovery *recovery.Session
}

// DetectAll probes every site once with at most Concurrency probes in
// flight. Each result is merged into the store as soon as it settles.
// Only batch-setup problems are returned as errors.
func (d *Detector) DetectAll(ctx context.Context, sites []domain.Site, opts BatchOptions) (*BatchReport, error) {
	if err := validateBatch(sites); err != nil {
		return nil, err
	}
	report := &BatchReport{RunID: uuid.NewString(), Results: make([]domain.Result, len(sites))}
	if len(sites) == 0 {
		return report, nil
	}

	timeout := opts.Timeout
	if timeout <= 0 {
		timeout = d.timeout
	}
	workers := min(ClampConcurrency(opts.Concurrency), len(sites))
	log := d.log.With(zap.String("run_id", report.RunID))

	var session *recovery.Session
	if d.recovery != nil {
		session = d.recovery.Begin(report.RunID, d.retryFull)
		report.Recovery = session
		defer session.Seal()
	}

	start := time.Now()
	log.Info("detect_batch_start", zap.Int("sites", len(sites)), zap.Int("workers", workers))

	var (
		cursor  atomic.Int64
		failed  atomic.Int32
		flagged atomic.Int32
		g       errgroup.Group
	)
	for w := 0; w < workers; w++ {
		g.Go(func() error {
			for {
				i := int(cursor.Add(1) - 1)
				if i >= len(sites) {
					return nil
				}
				res, auth := d.batchJob(ctx, log, sites[i], timeout, session)
				report.Results[i] = res
				if !res.Succeeded() {
					failed.Add(1)
				}
				if auth {
					flagged.Add(1)
				}
			}
		})
	}
	_ = g.Wait()

	if c, ok := d.prober.(probe.SharedCloser); ok {
		c.CloseShared()
	}

	if session != nil {
		report.Flagged = session.Flagged()
	}
	log.Info("detect_batch_done",
		zap.Int("sites", len(sites)),
		zap.Int32("failed", failed.Load()),
		zap.Int32("auth_flagged", flagged.Load()),
		zap.Duration("took", time.Since(start)),
	)
	return report, nil
}

func (d *Detector) batchJob(ctx context.Context, log *zap.Logger, site domain.Site, timeout time.Duration, session *recovery.Session) (domain.Result, bool) {
	o, err := d.run(ctx, site, runOpts{quick: true, timeout: timeout})
	if err != nil {
		log.Warn("detect_batch_site_error", zap.String("site", site.Name), zap.Error(err))
		return domain.Failure(site, err.Error()), false
	}

	log.Info("detect_batch_site_done",
		zap.String("site", site.Name),
		zap.String("status", string(o.raw.Status)),
		zap.String("notice", string(noticeFor(o))),
		zap.String("error", o.raw.Error),
	)

	if o.auth {
		switch {
		case session != nil:
			session.Suspend(site, o.raw.Error)
		case d.registry != nil:
			d.registry.Flag(site, o.raw.Error)
		}
	}
	return o.effective, o.auth
}

func validateBatch(sites []domain.Site) error {
	seen := make(map[string]struct{}, len(sites))
	for i, s := range sites {
		if s.Name == "" {
			return fmt.Errorf("%w: site %d has no name", ErrInvalidBatch, i)
		}
		if _, dup := seen[s.Name]; dup {
			return fmt.Errorf("%w: duplicate site name %q", ErrInvalidBatch, s.Name)
		}
		seen[s.Name] = struct{}{}
	}
	return nil
}

// Enabled filters sites down to the enabled ones.
func Enabled(sites []domain.Site) []domain.Site {
	out := make([]domain.Site, 0, len(sites))
	for _, s := range sites {
		if s.Enabled {
			out = append(out, s)
		}
	}
	return out
}
