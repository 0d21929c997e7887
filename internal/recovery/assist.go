package recovery

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/hamed0406/sitewatch/internal/notify"
)

// LoginAssistant helps the operator reach a site's login page.
type LoginAssistant interface {
	Open(ctx context.Context, siteName, url string) error
}

// NotifyAssistant sends the login link through a notifier.
type NotifyAssistant struct {
	Notifier notify.Notifier
}

func (a NotifyAssistant) Open(ctx context.Context, siteName, url string) error {
	if a.Notifier == nil {
		return nil
	}
	return a.Notifier.Send(ctx,
		"Login required: "+siteName,
		fmt.Sprintf("The session for %s looks expired. Log in at %s, then confirm the prompt.", siteName, url),
	)
}

// LogAssistant only records that a login is needed.
type LogAssistant struct {
	L *zap.Logger
}

func (a LogAssistant) Open(_ context.Context, siteName, url string) error {
	if a.L != nil {
		a.L.Warn("login_required", zap.String("site", siteName), zap.String("url", url))
	}
	return nil
}
