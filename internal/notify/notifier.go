// Package notify delivers user-facing notices (title, message, severity) to
// every registered sender: the local UI via the event bus, the log, and
// optional Discord or Telegram webhooks. Each notice is tagged with the action
// that produced it so operators can filter which actions reach chat channels.
package notify

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/zoomiesmarket/zoomies/internal/domain"
)

// Sender is one notification channel.
type Sender interface {
	Send(ctx context.Context, n domain.Notice) error
	Name() string
}

// Notifier fans a notice out to its senders. Filtered senders only receive
// notices whose action appears in the configured allow-list; local senders
// receive everything.
type Notifier struct {
	local    []Sender
	filtered []Sender
	actions  map[string]bool
	logger   *slog.Logger
}

// NewNotifier creates a Notifier. local senders always receive notices.
// remote senders receive only actions listed in actions, or every action
// when actions is empty.
func NewNotifier(local, remote []Sender, actions []string, logger *slog.Logger) *Notifier {
	allowed := make(map[string]bool, len(actions))
	for _, a := range actions {
		if a = strings.TrimSpace(a); a != "" {
			allowed[a] = true
		}
	}
	return &Notifier{
		local:    local,
		filtered: remote,
		actions:  allowed,
		logger:   logger.With(slog.String("component", "notifier")),
	}
}

// Notify delivers n for the given action. A failing sender does not stop
// delivery to the rest; the failures are joined into the returned error.
func (n *Notifier) Notify(ctx context.Context, action string, notice domain.Notice) error {
	if notice.Severity == "" {
		notice.Severity = domain.SeverityInfo
	}

	senders := n.local
	if len(n.actions) == 0 || n.actions[action] {
		senders = append(senders[:len(senders):len(senders)], n.filtered...)
	} else if len(n.filtered) > 0 {
		n.logger.DebugContext(ctx, "action filtered for remote senders",
			slog.String("action", action),
		)
	}
	return n.dispatch(ctx, senders, notice)
}

func (n *Notifier) dispatch(ctx context.Context, senders []Sender, notice domain.Notice) error {
	var errs []error
	for _, s := range senders {
		if err := s.Send(ctx, notice); err != nil {
			n.logger.ErrorContext(ctx, "sender failed",
				slog.String("sender", s.Name()),
				slog.String("error", err.Error()),
			)
			errs = append(errs, fmt.Errorf("%s: %w", s.Name(), err))
			continue
		}
		n.logger.DebugContext(ctx, "notice sent",
			slog.String("sender", s.Name()),
			slog.String("title", notice.Title),
		)
	}
	if len(errs) > 0 {
		return fmt.Errorf("notify: %w", errors.Join(errs...))
	}
	return nil
}
