// Package detect runs probes against sites and reconciles their results
// into the result store, one site at a time or as a bounded batch.
package detect

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/hamed0406/sitewatch/internal/domain"
	"github.com/hamed0406/sitewatch/internal/notify"
	"github.com/hamed0406/sitewatch/internal/probe"
	"github.com/hamed0406/sitewatch/internal/reconcile"
	"github.com/hamed0406/sitewatch/internal/recovery"
	"github.com/hamed0406/sitewatch/internal/repo"
)

const DefaultTimeout = 30 * time.Second

type Config struct {
	Logger   *zap.Logger
	Store    repo.ResultStore
	Synced   repo.SyncRecorder // optional
	Prober   probe.Prober
	Notices  notify.Notifier    // optional, per-refresh notices
	Registry *recovery.Registry // optional, auth-error records
	Recovery *recovery.Protocol // optional, batch login recovery
	Timeout  time.Duration
	Now      func() time.Time
}

type Detector struct {
	log      *zap.Logger
	store    repo.ResultStore
	synced   repo.SyncRecorder
	prober   probe.Prober
	notices  notify.Notifier
	registry *recovery.Registry
	recovery *recovery.Protocol
	timeout  time.Duration
	now      func() time.Time
	busy     *inflight
}

func New(cfg Config) *Detector {
	if cfg.Logger == nil {
		cfg.Logger = zap.NewNop()
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultTimeout
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	if cfg.Registry == nil && cfg.Recovery != nil {
		cfg.Registry = cfg.Recovery.Registry()
	}
	return &Detector{
		log:      cfg.Logger,
		store:    cfg.Store,
		synced:   cfg.Synced,
		prober:   cfg.Prober,
		notices:  cfg.Notices,
		registry: cfg.Registry,
		recovery: cfg.Recovery,
		timeout:  cfg.Timeout,
		now:      cfg.Now,
		busy:     newInflight(),
	}
}

// Detecting lists sites with a single-site detection outstanding.
func (d *Detector) Detecting() []string { return d.busy.list() }

type runOpts struct {
	quick       bool
	forceEmpty  bool
	timeout     time.Duration
	keepOnAbort bool // leave the store untouched on cancellation
}

// outcome is one settled probe.
type outcome struct {
	raw       domain.Result // normalised probe answer
	effective domain.Result // what the store holds afterwards
	changed   bool
	auth      bool
	cancelled bool
	stored    bool
}

// run probes one site and merges the answer into the store. Errors are
// store failures only; probe failures are folded into the outcome.
func (d *Detector) run(ctx context.Context, site domain.Site, o runOpts) (outcome, error) {
	var out outcome

	popts := probe.Options{Timeout: o.timeout, Quick: o.quick}
	if o.quick {
		prev, err := d.store.Get(ctx, site.Name)
		if err != nil {
			return out, fmt.Errorf("load previous result: %w", err)
		}
		popts.Previous = prev
	}

	raw, err := d.safeProbe(ctx, site, popts)
	if err != nil {
		out.cancelled = IsCancellation(err)
		raw = domain.Failure(site, err.Error())
		if out.cancelled && o.keepOnAbort {
			out.raw = raw
			out.effective = raw
			return out, nil
		}
	}
	now := d.now()
	raw = d.normalise(site, raw, o.forceEmpty)
	if raw.Succeeded() {
		ts := now.UTC()
		raw.LastRefresh = &ts
	}
	out.raw = raw

	var before *domain.Result
	eff, err := d.store.Update(ctx, site.Name, func(old *domain.Result) domain.Result {
		before = old
		return reconcile.Merge(old, raw, now)
	})
	if err != nil {
		return out, fmt.Errorf("store result: %w", err)
	}
	out.effective = eff
	out.stored = true
	out.changed = reconcile.SignificantChange(before, eff)

	if raw.Succeeded() {
		if d.synced != nil {
			if err := d.synced.MarkSynced(ctx, site.Name, now); err != nil {
				d.log.Warn("detect_mark_synced_error", zap.String("site", site.Name), zap.Error(err))
			}
		}
		if d.registry != nil {
			d.registry.Clear(site.Name)
		}
	} else {
		out.auth = !out.cancelled && IsAuthFailure(raw)
	}
	return out, nil
}

// safeProbe turns a panicking prober into an error.
func (d *Detector) safeProbe(ctx context.Context, site domain.Site, opts probe.Options) (res domain.Result, err error) {
	defer func() {
		if r := recover(); r != nil {
			d.log.Error("detect_probe_panic", zap.String("site", site.Name), zap.Any("panic", r))
			err = fmt.Errorf("probe panicked: %v", r)
		}
	}()
	return d.prober.Probe(ctx, site, opts)
}

func (d *Detector) normalise(site domain.Site, r domain.Result, forceEmpty bool) domain.Result {
	r.Name = site.Name
	if r.URL == "" {
		r.URL = site.URL
	}
	if r.Models == nil {
		r.Models = []string{}
	}
	if r.Status != domain.StatusSuccess && r.Status != domain.StatusFailure {
		r.Status = domain.StatusFailure
	}
	if !forceEmpty && emptyResult(r) {
		return domain.Failure(site, NoDataMessage)
	}
	return r
}

// retryFull is the recovery retry: a non-quick probe of one site.
func (d *Detector) retryFull(ctx context.Context, site domain.Site) (domain.Result, error) {
	o, err := d.run(ctx, site, runOpts{timeout: d.timeout})
	if err != nil {
		return domain.Result{}, err
	}
	d.log.Info("detect_retry_done",
		zap.String("site", site.Name),
		zap.String("status", string(o.raw.Status)),
		zap.String("error", o.raw.Error),
	)
	return o.raw, nil
}
