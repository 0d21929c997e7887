package reconcile

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hamed0406/sitewatch/internal/domain"
)

func f64(v float64) *float64 { return &v }
func i64(v int64) *int64     { return &v }

var now = time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)

func richResult() domain.Result {
	last := now.Add(-time.Hour)
	return domain.Result{
		Name:                  "alpha",
		URL:                   "https://alpha.example.com",
		Status:                domain.StatusSuccess,
		Models:                []string{"a", "b"},
		Balance:               f64(42),
		TodayUsage:            f64(1.5),
		TodayPromptTokens:     i64(100),
		TodayCompletionTokens: i64(200),
		TodayRequests:         i64(7),
		APIKeys:               json.RawMessage(`[{"id":1}]`),
		UserGroups:            json.RawMessage(`{"default":{"ratio":1}}`),
		ModelPricing:          json.RawMessage(`{"data":{}}`),
		LastRefresh:           &last,
	}
}

func TestMerge_FirstObservationWins(t *testing.T) {
	fresh := domain.Result{Name: "alpha", Status: domain.StatusFailure, Error: "timeout", Models: []string{}}
	got := Merge(nil, fresh, now)
	assert.Equal(t, fresh, got)
}

func TestMerge_FirstSuccessIsStoredAsProbed(t *testing.T) {
	fresh := domain.Result{Name: "alpha", Status: domain.StatusSuccess, Models: []string{"x"}}
	got := Merge(nil, fresh, now)
	assert.Equal(t, fresh, got)
	assert.Nil(t, got.LastRefresh)

	rich := richResult()
	assert.Equal(t, rich, Merge(nil, rich, now))
}

func TestMerge_FailureKeepsEverythingButStatusAndError(t *testing.T) {
	old := richResult()
	fresh := domain.Result{
		Name:       "alpha",
		URL:        "https://alpha.example.com",
		Status:     domain.StatusFailure,
		Error:      "timeout",
		StatusCode: 504,
		Models:     []string{},
	}

	got := Merge(&old, fresh, now)

	want := richResult()
	want.Status = domain.StatusFailure
	want.Error = "timeout"
	want.StatusCode = 504
	assert.Equal(t, want, got)
}

func TestMerge_FailurePreservesBalanceScenario(t *testing.T) {
	old := domain.Result{Name: "s", Status: domain.StatusSuccess, Balance: f64(42), Models: []string{"a", "b"}}
	fresh := domain.Result{Name: "s", Status: domain.StatusFailure, Error: "timeout"}

	got := Merge(&old, fresh, now)

	assert.Equal(t, domain.StatusFailure, got.Status)
	assert.Equal(t, "timeout", got.Error)
	require.NotNil(t, got.Balance)
	assert.Equal(t, 42.0, *got.Balance)
	assert.Equal(t, []string{"a", "b"}, got.Models)
}

func TestMerge_SuccessReplacesWholesale(t *testing.T) {
	old := richResult()
	fresh := domain.Result{
		Name:    "alpha",
		URL:     "https://alpha.example.com",
		Status:  domain.StatusSuccess,
		Models:  []string{"c"},
		Balance: f64(1),
	}

	got := Merge(&old, fresh, now)

	want := fresh
	ts := now
	want.LastRefresh = &ts
	assert.Equal(t, want, got)
	assert.Nil(t, got.APIKeys, "payloads from the old result must not survive a success")
}

func TestMerge_DoesNotAliasInputs(t *testing.T) {
	old := richResult()
	got := Merge(&old, domain.Result{Status: domain.StatusFailure, Error: "x"}, now)
	got.Models[0] = "mutated"
	*got.Balance = 0
	assert.Equal(t, "a", old.Models[0])
	assert.Equal(t, 42.0, *old.Balance)
}

func TestSignificantChange(t *testing.T) {
	base := domain.Result{Status: domain.StatusSuccess, Balance: f64(10), Models: []string{"a"}}

	assert.True(t, SignificantChange(nil, base))
	assert.False(t, SignificantChange(&base, base))

	same := base
	same.Balance = f64(10)
	same.LastRefresh = &now
	assert.False(t, SignificantChange(&base, same), "timestamps alone are not a change")

	for name, mutate := range map[string]func(r *domain.Result){
		"status":  func(r *domain.Result) { r.Status = domain.StatusFailure },
		"balance": func(r *domain.Result) { r.Balance = f64(11) },
		"usage":   func(r *domain.Result) { r.TodayUsage = f64(1) },
		"models":  func(r *domain.Result) { r.Models = []string{"a", "b"} },
		"keys":    func(r *domain.Result) { r.APIKeys = json.RawMessage(`[1]`) },
	} {
		changed := base
		mutate(&changed)
		assert.True(t, SignificantChange(&base, changed), name)
	}
}
