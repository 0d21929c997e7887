package detect

import (
	"sort"
	"sync"
)

// inflight tracks site names with a single-site detection outstanding.
type inflight struct {
	mu    sync.Mutex
	names map[string]struct{}
}

func newInflight() *inflight {
	return &inflight{names: make(map[string]struct{})}
}

func (f *inflight) acquire(name string) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, busy := f.names[name]; busy {
		return false
	}
	f.names[name] = struct{}{}
	return true
}

func (f *inflight) release(name string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.names, name)
}

func (f *inflight) list() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]string, 0, len(f.names))
	for n := range f.names {
		out = append(out, n)
	}
	sort.Strings(out)
	return out
}
