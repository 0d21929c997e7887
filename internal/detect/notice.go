package detect

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/hamed0406/sitewatch/internal/domain"
)

// NoticeKind is the user-facing outcome of a single refresh.
type NoticeKind string

const (
	NoticeUpdated   NoticeKind = "updated"
	NoticeUnchanged NoticeKind = "unchanged"
	NoticeFailed    NoticeKind = "failed"
	NoticeCancelled NoticeKind = "cancelled"
)

func noticeFor(o outcome) NoticeKind {
	switch {
	case o.cancelled:
		return NoticeCancelled
	case !o.raw.Succeeded():
		return NoticeFailed
	case o.changed:
		return NoticeUpdated
	default:
		return NoticeUnchanged
	}
}

func (d *Detector) notice(ctx context.Context, site domain.Site, kind NoticeKind, detail string) {
	if d.notices == nil {
		return
	}
	var title string
	switch kind {
	case NoticeUpdated:
		title = fmt.Sprintf("%s refreshed", site.Name)
	case NoticeUnchanged:
		title = fmt.Sprintf("%s refreshed, no changes", site.Name)
	case NoticeCancelled:
		title = fmt.Sprintf("%s refresh cancelled", site.Name)
	default:
		title = fmt.Sprintf("%s refresh failed", site.Name)
	}
	if err := d.notices.Send(ctx, title, detail); err != nil {
		d.log.Warn("detect_notice_error", zap.String("site", site.Name), zap.Error(err))
	}
}
