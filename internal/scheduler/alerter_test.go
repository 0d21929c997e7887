package scheduler

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
	"go.uber.org/zap"

	"github.com/hamed0406/sitewatch/internal/domain"
	"github.com/hamed0406/sitewatch/internal/repo/memory"
)

// ---- shared helpers ----

type memNotifier struct {
	mu     sync.Mutex
	titles []string
}

func (m *memNotifier) Send(ctx context.Context, title, text string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.titles = append(m.titles, title)
	return nil
}

func (m *memNotifier) count() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.titles)
}

func put(t *testing.T, s *memory.Store, name string, status domain.Status) {
	t.Helper()
	r := domain.Result{Name: name, URL: "https://" + name, Status: status, Models: []string{}}
	if status == domain.StatusFailure {
		r.Error = "timeout"
	}
	if err := s.Upsert(context.Background(), r); err != nil {
		t.Fatal(err)
	}
}

// ---- tests ----

func TestAlerter_SendsOnFailure_RespectsCooldown(t *testing.T) {
	store := memory.New()
	put(t, store, "A", domain.StatusFailure)
	clk := clockwork.NewFakeClock()
	nt := &memNotifier{}
	al := NewAlerter(zap.NewNop(), store, nt, AlerterConfig{
		AlertOnRecovery: true,
		Cooldown:        time.Minute,
		Clock:           clk,
	})
	ctx := context.Background()

	// first scan -> should alert
	if err := al.scanOnce(ctx); err != nil {
		t.Fatal(err)
	}
	if nt.count() != 1 {
		t.Fatalf("want 1 alert, got %d", nt.count())
	}

	// recover, then fail again within cooldown -> recovery alert only
	put(t, store, "A", domain.StatusSuccess)
	if err := al.scanOnce(ctx); err != nil {
		t.Fatal(err)
	}
	put(t, store, "A", domain.StatusFailure)
	if err := al.scanOnce(ctx); err != nil {
		t.Fatal(err)
	}
	if nt.count() != 2 {
		t.Fatalf("want cooldown to suppress the second failure, got %d", nt.count())
	}

	// after the cooldown a new flip alerts again
	clk.Advance(2 * time.Minute)
	put(t, store, "A", domain.StatusSuccess)
	_ = al.scanOnce(ctx)
	put(t, store, "A", domain.StatusFailure)
	_ = al.scanOnce(ctx)
	if nt.count() != 4 {
		t.Fatalf("want 4 alerts after cooldown, got %d", nt.count())
	}
}

func TestAlerter_NoRecoveryIfDisabled(t *testing.T) {
	store := memory.New()
	put(t, store, "B", domain.StatusSuccess)
	nt := &memNotifier{}
	al := NewAlerter(nil, store, nt, AlerterConfig{Clock: clockwork.NewFakeClock()})
	ctx := context.Background()

	// first time up -> nothing to report
	if err := al.scanOnce(ctx); err != nil {
		t.Fatal(err)
	}
	if nt.count() != 0 {
		t.Fatalf("unexpected alert: %d", nt.count())
	}

	put(t, store, "B", domain.StatusFailure)
	_ = al.scanOnce(ctx)
	put(t, store, "B", domain.StatusSuccess)
	_ = al.scanOnce(ctx)
	if nt.count() != 1 {
		t.Fatalf("want only the failure alert, got %d", nt.count())
	}
}
