package scheduler

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/jonboulle/clockwork"
	"go.uber.org/zap"

	"github.com/hamed0406/sitewatch/internal/domain"
	"github.com/hamed0406/sitewatch/internal/notify"
	"github.com/hamed0406/sitewatch/internal/repo"
)

type AlerterConfig struct {
	AlertOnRecovery bool
	Cooldown        time.Duration
	PollInterval    time.Duration
	Clock           clockwork.Clock
}

type alertState struct {
	up         bool
	lastSentAt time.Time
}

// Alerter watches the result store and notifies on success/failure flips.
type Alerter struct {
	log      *zap.Logger
	results  repo.ResultStore
	notifier notify.Notifier
	cfg      AlerterConfig

	mu    sync.Mutex
	state map[string]alertState
}

func NewAlerter(log *zap.Logger, results repo.ResultStore, notifier notify.Notifier, cfg AlerterConfig) *Alerter {
	if log == nil {
		log = zap.NewNop()
	}
	if cfg.Clock == nil {
		cfg.Clock = clockwork.NewRealClock()
	}
	if cfg.PollInterval <= 0 {
		cfg.PollInterval = 30 * time.Second
	}
	return &Alerter{
		log:      log,
		results:  results,
		notifier: notifier,
		cfg:      cfg,
		state:    map[string]alertState{},
	}
}

func (a *Alerter) Run(ctx context.Context) error {
	t := a.cfg.Clock.NewTicker(a.cfg.PollInterval)
	defer t.Stop()

	// initial pass
	a.logScan(a.scanOnce(ctx))

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-t.Chan():
			a.logScan(a.scanOnce(ctx))
		}
	}
}

func (a *Alerter) logScan(err error) {
	if err != nil {
		a.log.Warn("alerter_scan_error", zap.Error(err))
	}
}

func (a *Alerter) scanOnce(ctx context.Context) error {
	rows, err := a.results.List(ctx)
	if err != nil {
		return err
	}

	now := a.cfg.Clock.Now()
	a.mu.Lock()
	defer a.mu.Unlock()

	seen := make(map[string]struct{}, len(rows))
	for _, r := range rows {
		seen[r.Name] = struct{}{}
		up := r.Succeeded()
		prev, known := a.state[r.Name]

		stateChanged := !known || prev.up != up

		// Cooldown only matters for failure alerts.
		cooled := prev.lastSentAt.IsZero() || now.Sub(prev.lastSentAt) >= a.cfg.Cooldown

		downAlert := stateChanged && !up && cooled
		recoveryAlert := stateChanged && up && known && a.cfg.AlertOnRecovery

		if downAlert || recoveryAlert {
			if a.notifier != nil {
				title, text := alertText(r)
				if err := a.notifier.Send(ctx, title, text); err != nil {
					a.log.Warn("alerter_send_error", zap.String("site", r.Name), zap.Error(err))
				}
			}
			a.state[r.Name] = alertState{up: up, lastSentAt: now}
			continue
		}
		if stateChanged {
			a.state[r.Name] = alertState{up: up, lastSentAt: prev.lastSentAt}
		}
	}
	for name := range a.state {
		if _, ok := seen[name]; !ok {
			delete(a.state, name)
		}
	}
	return nil
}

func alertText(r domain.Result) (string, string) {
	title := "Site FAILING: " + r.Name
	if r.Succeeded() {
		title = "Site RECOVERED: " + r.Name
	}

	balance := "n/a"
	if r.Balance != nil {
		balance = fmt.Sprintf("%.2f", *r.Balance)
	}
	checked := "n/a"
	if r.LastRefresh != nil {
		checked = r.LastRefresh.Format(time.RFC3339)
	}
	reason := r.Error
	if reason == "" {
		reason = "ok"
	}
	return title, fmt.Sprintf("URL: %s\nBalance: %s\nReason: %s\nLast refresh: %s", r.URL, balance, reason, checked)
}
