package recovery

import (
	"sort"
	"sync"
	"time"

	"github.com/hamed0406/sitewatch/internal/domain"
)

// State is where a site sits in the login-recovery flow.
type State string

const (
	StateNormal             State = "normal"
	StateAuthSuspected      State = "auth_suspected"
	StateAwaitingUserAction State = "awaiting_user_action"
	StateRetrying           State = "retrying"
	StateFlagged            State = "flagged"
)

// Record marks a site whose last failure looked like an expired login.
type Record struct {
	Site      string    `json:"site"`
	URL       string    `json:"url"`
	Error     string    `json:"error"`
	State     State     `json:"state"`
	FlaggedAt time.Time `json:"flagged_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Registry holds at most one Record per site name.
type Registry struct {
	mu      sync.RWMutex
	records map[string]Record
	now     func() time.Time
}

// RegistryOption configures a Registry.
type RegistryOption func(*Registry)

// WithClock sets the time source used for FlaggedAt and UpdatedAt.
func WithClock(now func() time.Time) RegistryOption {
	return func(r *Registry) {
		if now != nil {
			r.now = now
		}
	}
}

func NewRegistry(opts ...RegistryOption) *Registry {
	r := &Registry{records: make(map[string]Record), now: time.Now}
	for _, o := range opts {
		o(r)
	}
	return r
}

// Flag creates the record for site or refreshes its error text.
func (r *Registry) Flag(site domain.Site, errText string) Record {
	r.mu.Lock()
	defer r.mu.Unlock()
	now := r.now().UTC()
	rec, ok := r.records[site.Name]
	if !ok {
		rec = Record{Site: site.Name, FlaggedAt: now}
	}
	rec.URL = site.URL
	rec.Error = errText
	rec.State = StateAuthSuspected
	rec.UpdatedAt = now
	r.records[site.Name] = rec
	return rec
}

// SetState moves an existing record; it reports false if none exists.
func (r *Registry) SetState(name string, s State) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	rec, ok := r.records[name]
	if !ok {
		return false
	}
	rec.State = s
	rec.UpdatedAt = r.now().UTC()
	r.records[name] = rec
	return true
}

func (r *Registry) Get(name string) (Record, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	rec, ok := r.records[name]
	return rec, ok
}

// Clear removes the record, on a successful probe or a user dismissal.
func (r *Registry) Clear(name string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	_, ok := r.records[name]
	delete(r.records, name)
	return ok
}

func (r *Registry) List() []Record {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]Record, 0, len(r.records))
	for _, rec := range r.records {
		out = append(out, rec)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Site < out[j].Site })
	return out
}
