package recovery

import (
	"context"
	"sync"

	"go.uber.org/zap"

	"github.com/hamed0406/sitewatch/internal/domain"
)

// RetryFunc re-probes a site with a full probe and stores the outcome.
// A nil error with a successful result means the login was restored.
type RetryFunc func(ctx context.Context, site domain.Site) (domain.Result, error)

// Protocol drives sites whose probe failed with a login-expired symptom:
// open the login page once, ask the operator, retry once on confirmation.
// Its goroutines live until Close, independent of the caller that started
// a Session.
type Protocol struct {
	registry  *Registry
	assistant LoginAssistant
	confirmer Confirmer
	log       *zap.Logger

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
	mu     sync.Mutex
	closed bool
}

func NewProtocol(reg *Registry, assistant LoginAssistant, confirmer Confirmer, log *zap.Logger) *Protocol {
	if log == nil {
		log = zap.NewNop()
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &Protocol{
		registry:  reg,
		assistant: assistant,
		confirmer: confirmer,
		log:       log,
		ctx:       ctx,
		cancel:    cancel,
	}
}

func (p *Protocol) Registry() *Registry { return p.registry }

// Close abandons outstanding prompts and waits for their goroutines.
// Sites suspended after Close are flagged without starting the flow.
func (p *Protocol) Close() {
	p.mu.Lock()
	p.closed = true
	p.mu.Unlock()
	p.cancel()
	p.wg.Wait()
}

// track registers one flow goroutine unless the protocol is closed.
func (p *Protocol) track() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.closed {
		return false
	}
	p.wg.Add(1)
	return true
}

// Begin starts a recovery session for one batch run.
func (p *Protocol) Begin(runID string, retry RetryFunc) *Session {
	return &Session{
		p:        p,
		runID:    runID,
		retry:    retry,
		opened:   make(map[string]bool),
		outcomes: make(map[string]State),
		done:     make(chan struct{}),
	}
}

// Session tracks the sites suspended during one batch run.
type Session struct {
	p     *Protocol
	runID string
	retry RetryFunc

	mu       sync.Mutex
	flagged  []Record
	opened   map[string]bool
	outcomes map[string]State
	active   int
	sealed   bool
	done     chan struct{}
}

// Suspend flags site and hands it to the operator flow in the background.
// A site already suspended in this session is only re-flagged.
func (s *Session) Suspend(site domain.Site, errText string) Record {
	rec := s.p.registry.Flag(site, errText)

	s.mu.Lock()
	defer s.mu.Unlock()
	for i := range s.flagged {
		if s.flagged[i].Site == site.Name {
			s.flagged[i] = rec
			return rec
		}
	}
	if !s.p.track() {
		s.p.registry.SetState(site.Name, StateFlagged)
		rec.State = StateFlagged
		s.flagged = append(s.flagged, rec)
		s.outcomes[site.Name] = StateFlagged
		return rec
	}
	s.flagged = append(s.flagged, rec)
	s.outcomes[site.Name] = StateAuthSuspected
	s.active++
	go s.await(site, errText)
	return rec
}

// Seal marks the end of suspensions for this session. Wait returns once the
// session is sealed and every suspended site has settled.
func (s *Session) Seal() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.sealed {
		return
	}
	s.sealed = true
	if s.active == 0 {
		close(s.done)
	}
}

func (s *Session) Wait(ctx context.Context) error {
	select {
	case <-s.done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Flagged returns the records suspended in this session, in suspension order.
func (s *Session) Flagged() []Record {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]Record(nil), s.flagged...)
}

// Outcome reports the latest state of a site suspended in this session.
func (s *Session) Outcome(name string) (State, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	st, ok := s.outcomes[name]
	return st, ok
}

func (s *Session) setOutcome(name string, st State) {
	s.mu.Lock()
	s.outcomes[name] = st
	s.mu.Unlock()
	if st == StateNormal {
		s.p.registry.Clear(name)
		return
	}
	s.p.registry.SetState(name, st)
}

func (s *Session) finish() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.active--
	if s.active == 0 && s.sealed {
		close(s.done)
	}
}

func (s *Session) await(site domain.Site, errText string) {
	defer s.p.wg.Done()
	defer s.finish()
	ctx := s.p.ctx
	log := s.p.log.With(zap.String("run_id", s.runID), zap.String("site", site.Name))

	s.setOutcome(site.Name, StateAwaitingUserAction)

	s.mu.Lock()
	first := !s.opened[site.Name]
	s.opened[site.Name] = true
	s.mu.Unlock()
	if first && s.p.assistant != nil {
		if err := s.p.assistant.Open(ctx, site.Name, site.URL); err != nil {
			log.Warn("login_assist_error", zap.Error(err))
		}
	}

	if s.p.confirmer == nil {
		s.setOutcome(site.Name, StateFlagged)
		return
	}
	ok, err := s.p.confirmer.Confirm(ctx, Prompt{Site: site.Name, URL: site.URL, Error: errText})
	if err != nil || !ok {
		log.Info("login_not_confirmed", zap.Bool("declined", err == nil), zap.Error(err))
		s.setOutcome(site.Name, StateFlagged)
		return
	}

	s.setOutcome(site.Name, StateRetrying)
	res, err := s.retry(ctx, site)
	switch {
	case err == nil && res.Succeeded():
		log.Info("login_recovered")
		s.setOutcome(site.Name, StateNormal)
	default:
		msg := res.Error
		if err != nil {
			msg = err.Error()
		}
		log.Warn("login_retry_failed", zap.String("error", msg))
		s.p.registry.Flag(site, msg)
		s.setOutcome(site.Name, StateFlagged)
	}
}
