// Package reconcile decides which result is stored after a probe and whether
// the change is worth telling the user about.
package reconcile

import (
	"bytes"
	"slices"
	"time"

	"github.com/hamed0406/sitewatch/internal/domain"
)

// Merge combines the stored result (nil when the site was never observed)
// with a fresh one. A first observation is stored exactly as probed. A
// failure keeps every previously known field and only replaces status, error
// and status code. A success replaces the old result wholesale and stamps
// LastRefresh with now.
func Merge(old *domain.Result, fresh domain.Result, now time.Time) domain.Result {
	if old == nil {
		return Clone(fresh)
	}
	if !fresh.Succeeded() {
		out := Clone(*old)
		out.Status = fresh.Status
		out.Error = fresh.Error
		out.StatusCode = fresh.StatusCode
		return out
	}
	return Clone(stamp(fresh, now))
}

func stamp(r domain.Result, now time.Time) domain.Result {
	ts := now.UTC()
	r.LastRefresh = &ts
	return r
}

// Clone deep-copies a result so stored values never alias caller memory.
func Clone(r domain.Result) domain.Result {
	out := r
	if r.Models != nil {
		out.Models = slices.Clone(r.Models)
	}
	out.Balance = clonePtr(r.Balance)
	out.TodayUsage = clonePtr(r.TodayUsage)
	out.TodayPromptTokens = clonePtr(r.TodayPromptTokens)
	out.TodayCompletionTokens = clonePtr(r.TodayCompletionTokens)
	out.TodayRequests = clonePtr(r.TodayRequests)
	out.LastRefresh = clonePtr(r.LastRefresh)
	out.APIKeys = bytes.Clone(r.APIKeys)
	out.UserGroups = bytes.Clone(r.UserGroups)
	out.ModelPricing = bytes.Clone(r.ModelPricing)
	return out
}

func clonePtr[T any](p *T) *T {
	if p == nil {
		return nil
	}
	v := *p
	return &v
}

// SignificantChange reports whether the user should hear that data changed.
// It compares status, balance, today's usage, model count and the serialised
// API keys. It plays no part in merging.
func SignificantChange(old *domain.Result, fresh domain.Result) bool {
	if old == nil {
		return true
	}
	return old.Status != fresh.Status ||
		!equalPtr(old.Balance, fresh.Balance) ||
		!equalPtr(old.TodayUsage, fresh.TodayUsage) ||
		len(old.Models) != len(fresh.Models) ||
		!bytes.Equal(old.APIKeys, fresh.APIKeys)
}

func equalPtr[T comparable](a, b *T) bool {
	if a == nil || b == nil {
		return a == b
	}
	return *a == *b
}
