package detect

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/hamed0406/sitewatch/internal/domain"
)

// SingleOptions tunes DetectSingle.
type SingleOptions struct {
	Quick bool
	// ForceAcceptEmpty stores an empty successful answer as success instead
	// of treating it as an expired session.
	ForceAcceptEmpty bool
}

// DetectSingle refreshes one site. It is used for manual refreshes, newly
// added sites and auto-refresh ticks.
//
// Returned errors:
//   - ErrInProgress when a detection for the same name is outstanding;
//   - an error wrapping ErrCancelled when the probe was aborted, in which
//     case the stored result is left as it was;
//   - *AuthError when the failure looks like an expired login. The result
//     is still stored and returned alongside it. No login prompt is opened.
func (d *Detector) DetectSingle(ctx context.Context, site domain.Site, opts SingleOptions) (domain.Result, error) {
	if !d.busy.acquire(site.Name) {
		return domain.Result{}, ErrInProgress
	}
	defer d.busy.release(site.Name)

	o, err := d.run(ctx, site, runOpts{
		quick:       opts.Quick,
		forceEmpty:  opts.ForceAcceptEmpty,
		timeout:     d.timeout,
		keepOnAbort: true,
	})
	if err != nil {
		d.log.Warn("detect_single_store_error", zap.String("site", site.Name), zap.Error(err))
		return domain.Result{}, err
	}

	kind := noticeFor(o)
	d.log.Info("detect_single_done",
		zap.String("site", site.Name),
		zap.Bool("quick", opts.Quick),
		zap.String("notice", string(kind)),
		zap.String("error", o.raw.Error),
	)
	d.notice(ctx, site, kind, o.raw.Error)

	switch {
	case o.cancelled:
		return o.effective, fmt.Errorf("%w: %s", ErrCancelled, o.raw.Error)
	case o.auth:
		if d.registry != nil {
			d.registry.Flag(site, o.raw.Error)
		}
		return o.effective, &AuthError{Site: site.Name, URL: site.URL, Msg: o.raw.Error}
	}
	return o.effective, nil
}
