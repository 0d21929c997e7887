package scheduler

import (
	"context"
	"errors"
	"sort"
	"sync"

	"github.com/jonboulle/clockwork"
	"go.uber.org/zap"

	"github.com/hamed0406/sitewatch/internal/detect"
	"github.com/hamed0406/sitewatch/internal/domain"
)

// RefreshFunc refreshes one site in quick mode.
type RefreshFunc func(ctx context.Context, site domain.Site) error

type AutoRefreshConfig struct {
	Clock     clockwork.Clock
	OnRefresh func(site string)            // optional
	OnError   func(site string, err error) // optional
}

// TimerInfo describes one live auto-refresh timer.
type TimerInfo struct {
	Site            string `json:"site"`
	IntervalMinutes int    `json:"interval_minutes"`
}

type timerEntry struct {
	site     string
	interval int
	ticker   clockwork.Ticker
	stop     chan struct{}
}

// AutoRefresher keeps one recurring timer per site with auto-refresh on.
// Reconcile diffs the live timers against the latest site list; a tick
// always acts on the latest list, never on the one its timer was built from.
type AutoRefresher struct {
	log       *zap.Logger
	clock     clockwork.Clock
	refresh   RefreshFunc
	onRefresh func(string)
	onError   func(string, error)

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	mu     sync.Mutex
	sites  map[string]domain.Site
	timers map[string]*timerEntry
	closed bool
}

func NewAutoRefresher(log *zap.Logger, refresh RefreshFunc, cfg AutoRefreshConfig) *AutoRefresher {
	if log == nil {
		log = zap.NewNop()
	}
	if cfg.Clock == nil {
		cfg.Clock = clockwork.NewRealClock()
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &AutoRefresher{
		log:       log,
		clock:     cfg.Clock,
		refresh:   refresh,
		onRefresh: cfg.OnRefresh,
		onError:   cfg.OnError,
		ctx:       ctx,
		cancel:    cancel,
		sites:     map[string]domain.Site{},
		timers:    map[string]*timerEntry{},
	}
}

// Reconcile brings the live timer set in line with sites.
func (a *AutoRefresher) Reconcile(sites []domain.Site, enabled bool) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.closed {
		return
	}

	a.sites = make(map[string]domain.Site, len(sites))
	for _, s := range sites {
		a.sites[s.Name] = s
	}

	if !enabled {
		for name := range a.timers {
			a.destroyLocked(name)
		}
		return
	}

	want := map[string]int{}
	for _, s := range sites {
		if s.AutoRefresh {
			want[s.Name] = s.RefreshInterval()
		}
	}

	for name, e := range a.timers {
		interval, keep := want[name]
		if !keep || interval != e.interval {
			a.destroyLocked(name)
		}
	}
	for name, interval := range want {
		if _, live := a.timers[name]; !live {
			a.createLocked(name, interval)
		}
	}
}

func (a *AutoRefresher) createLocked(name string, interval int) {
	site := a.sites[name]
	e := &timerEntry{
		site:     name,
		interval: interval,
		ticker:   a.clock.NewTicker(site.RefreshPeriod()),
		stop:     make(chan struct{}),
	}
	a.timers[name] = e
	a.wg.Add(1)
	go a.loop(e)
	a.log.Info("autorefresh_timer_started", zap.String("site", name), zap.Int("interval_min", interval))
}

func (a *AutoRefresher) destroyLocked(name string) {
	e, ok := a.timers[name]
	if !ok {
		return
	}
	e.ticker.Stop()
	close(e.stop)
	delete(a.timers, name)
	a.log.Info("autorefresh_timer_stopped", zap.String("site", name))
}

func (a *AutoRefresher) loop(e *timerEntry) {
	defer a.wg.Done()
	for {
		select {
		case <-e.stop:
			return
		case <-a.ctx.Done():
			return
		case <-e.ticker.Chan():
			a.tick(e)
		}
	}
}

func (a *AutoRefresher) tick(e *timerEntry) {
	a.mu.Lock()
	site, ok := a.sites[e.site]
	live := a.timers[e.site] == e
	a.mu.Unlock()
	if !ok || !live || !site.AutoRefresh {
		return
	}

	err := a.refresh(a.ctx, site)
	switch {
	case err == nil:
		if a.onRefresh != nil {
			a.onRefresh(site.Name)
		}
	case errors.Is(err, detect.ErrInProgress):
		a.log.Debug("autorefresh_tick_skipped", zap.String("site", site.Name))
	default:
		a.log.Warn("autorefresh_tick_error", zap.String("site", site.Name), zap.Error(err))
		if a.onError != nil {
			a.onError(site.Name, err)
		}
	}
}

// Timers lists the live timers ordered by site name.
func (a *AutoRefresher) Timers() []TimerInfo {
	a.mu.Lock()
	defer a.mu.Unlock()
	out := make([]TimerInfo, 0, len(a.timers))
	for _, e := range a.timers {
		out = append(out, TimerInfo{Site: e.site, IntervalMinutes: e.interval})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Site < out[j].Site })
	return out
}

// Close destroys every timer and waits for running ticks. It is safe to
// call more than once.
func (a *AutoRefresher) Close() {
	a.mu.Lock()
	if a.closed {
		a.mu.Unlock()
		return
	}
	a.closed = true
	for name := range a.timers {
		a.destroyLocked(name)
	}
	a.mu.Unlock()

	a.cancel()
	a.wg.Wait()
}
