package repo

import (
	"context"
	"time"

	"github.com/cenkalti/backoff/v4"
)

// ConnectWithRetry runs connect with exponential backoff until it succeeds,
// maxElapsed passes or ctx is done. Databases started next to the daemon
// (compose, systemd) are often not ready on the first attempt.
func ConnectWithRetry(ctx context.Context, maxElapsed time.Duration, connect func() error) error {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = 500 * time.Millisecond
	b.MaxElapsedTime = maxElapsed
	return backoff.Retry(connect, backoff.WithContext(b, ctx))
}
