package probe

import (
	"context"
	"time"

	"github.com/hamed0406/sitewatch/internal/domain"
)

// Options tunes a single probe.
//
// Fields:
//   - Timeout: upper bound for the whole probe; zero means the caller's context.
//   - Quick: reuse Previous for data that is expensive to fetch (API keys,
//     user groups, pricing) instead of fetching it again.
//   - Previous: the last stored result for the site, if any.
type Options struct {
	Timeout  time.Duration
	Quick    bool
	Previous *domain.Result
}

// Prober determines the live state of one site. A returned error means the
// probe itself broke (transport, cancellation); an application level failure
// is reported as a result with StatusFailure.
type Prober interface {
	Probe(ctx context.Context, site domain.Site, opts Options) (domain.Result, error)
}

// ProberFunc adapts a function to Prober.
type ProberFunc func(ctx context.Context, site domain.Site, opts Options) (domain.Result, error)

func (f ProberFunc) Probe(ctx context.Context, site domain.Site, opts Options) (domain.Result, error) {
	return f(ctx, site, opts)
}

// SharedCloser is implemented by probers that keep long-lived connections
// open between probes. CloseShared must be idempotent.
type SharedCloser interface {
	CloseShared()
}
