package notify

import (
	"context"

	"go.uber.org/multierr"
)

type Notifier interface {
	Send(ctx context.Context, title, text string) error
}

// Multi fans a message out to every notifier and joins their errors.
type Multi []Notifier

func (m Multi) Send(ctx context.Context, title, text string) error {
	var err error
	for _, n := range m {
		if n == nil {
			continue
		}
		err = multierr.Append(err, n.Send(ctx, title, text))
	}
	return err
}

// Join builds a Multi from the non-nil notifiers. It returns nil when none
// remain so callers can skip notification entirely.
func Join(ns ...Notifier) Notifier {
	var out Multi
	for _, n := range ns {
		if n == nil {
			continue
		}
		if s, ok := n.(*Slack); ok && s == nil {
			continue
		}
		out = append(out, n)
	}
	if len(out) == 0 {
		return nil
	}
	return out
}
