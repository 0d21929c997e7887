package domain

import (
	"encoding/json"
	"time"
)

// Status is the outcome of the most recent probe of a site.
type Status string

const (
	StatusSuccess Status = "success"
	StatusFailure Status = "failure"
)

const (
	// DefaultRefreshMinutes applies when a site has no usable interval.
	DefaultRefreshMinutes = 5
	// MinRefreshMinutes is the smallest interval honoured; anything lower
	// falls back to DefaultRefreshMinutes.
	MinRefreshMinutes = 3
)

// Site describes one monitored dashboard account. It is owned by
// configuration management and read-only to the detection engine.
type Site struct {
	Name                string `json:"name" yaml:"name" validate:"required"`
	URL                 string `json:"url" yaml:"url" validate:"required,url,startswith=http"`
	Enabled             bool   `json:"enabled" yaml:"enabled"`
	AutoRefresh         bool   `json:"auto_refresh" yaml:"auto_refresh"`
	AutoRefreshInterval int    `json:"auto_refresh_interval,omitempty" yaml:"auto_refresh_interval" validate:"gte=0"`

	// credentials, opaque to the engine
	APIKey      string `json:"-" yaml:"api_key"`
	AccessToken string `json:"-" yaml:"access_token"`
	UserID      string `json:"-" yaml:"user_id"`
}

// RefreshInterval resolves the configured auto-refresh interval in minutes.
func (s Site) RefreshInterval() int {
	if s.AutoRefreshInterval < MinRefreshMinutes {
		return DefaultRefreshMinutes
	}
	return s.AutoRefreshInterval
}

// RefreshPeriod is RefreshInterval as a duration.
func (s Site) RefreshPeriod() time.Duration {
	return time.Duration(s.RefreshInterval()) * time.Minute
}

// Result is the latest known state of one site. Results are replaced or
// merged as whole values, never mutated in place once stored.
type Result struct {
	Name   string `json:"name"`
	URL    string `json:"url"`
	Status Status `json:"status"`
	Error  string `json:"error,omitempty"`
	// StatusCode is the HTTP status behind a failure, when known.
	StatusCode int `json:"status_code,omitempty"`

	Models                []string `json:"models"`
	Balance               *float64 `json:"balance,omitempty"`
	TodayUsage            *float64 `json:"today_usage,omitempty"`
	TodayPromptTokens     *int64   `json:"today_prompt_tokens,omitempty"`
	TodayCompletionTokens *int64   `json:"today_completion_tokens,omitempty"`
	TodayRequests         *int64   `json:"today_requests,omitempty"`

	APIKeys      json.RawMessage `json:"api_keys,omitempty"`
	UserGroups   json.RawMessage `json:"user_groups,omitempty"`
	ModelPricing json.RawMessage `json:"model_pricing,omitempty"`

	LastRefresh *time.Time `json:"last_refresh,omitempty"`
}

// Succeeded reports whether the result carries a success status.
func (r Result) Succeeded() bool { return r.Status == StatusSuccess }

// Failure builds a failure result for a site with no other data.
func Failure(site Site, msg string) Result {
	return Result{
		Name:   site.Name,
		URL:    site.URL,
		Status: StatusFailure,
		Error:  msg,
		Models: []string{},
	}
}
