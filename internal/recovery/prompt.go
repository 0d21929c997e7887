package recovery

import (
	"context"
	"errors"
	"sort"
	"sync"
	"time"
)

var ErrNoPrompt = errors.New("recovery: no pending prompt")

// Prompt asks the operator whether they have logged in to a site again.
type Prompt struct {
	Site    string    `json:"site"`
	URL     string    `json:"url"`
	Error   string    `json:"error"`
	AskedAt time.Time `json:"asked_at"`
}

// Confirmer blocks until the operator answers a Prompt or ctx ends.
type Confirmer interface {
	Confirm(ctx context.Context, p Prompt) (bool, error)
}

// ConfirmFunc adapts a function to Confirmer.
type ConfirmFunc func(ctx context.Context, p Prompt) (bool, error)

func (f ConfirmFunc) Confirm(ctx context.Context, p Prompt) (bool, error) { return f(ctx, p) }

type pending struct {
	prompt Prompt
	done   chan struct{}
	answer bool
}

// PromptQueue is a Confirmer answered out of band, e.g. over the HTTP API.
// Concurrent prompts for the same site share one answer.
type PromptQueue struct {
	mu      sync.Mutex
	pending map[string]*pending
}

func NewPromptQueue() *PromptQueue {
	return &PromptQueue{pending: make(map[string]*pending)}
}

func (q *PromptQueue) Confirm(ctx context.Context, p Prompt) (bool, error) {
	q.mu.Lock()
	pd, ok := q.pending[p.Site]
	if !ok {
		if p.AskedAt.IsZero() {
			p.AskedAt = time.Now().UTC()
		}
		pd = &pending{prompt: p, done: make(chan struct{})}
		q.pending[p.Site] = pd
	}
	q.mu.Unlock()

	select {
	case <-pd.done:
		return pd.answer, nil
	case <-ctx.Done():
		q.mu.Lock()
		if q.pending[p.Site] == pd {
			delete(q.pending, p.Site)
		}
		q.mu.Unlock()
		return false, ctx.Err()
	}
}

// Resolve answers the pending prompt for site.
func (q *PromptQueue) Resolve(site string, confirmed bool) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	pd, ok := q.pending[site]
	if !ok {
		return ErrNoPrompt
	}
	delete(q.pending, site)
	pd.answer = confirmed
	close(pd.done)
	return nil
}

// Pending lists unanswered prompts ordered by site name.
func (q *PromptQueue) Pending() []Prompt {
	q.mu.Lock()
	defer q.mu.Unlock()
	out := make([]Prompt, 0, len(q.pending))
	for _, pd := range q.pending {
		out = append(out, pd.prompt)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Site < out[j].Site })
	return out
}
