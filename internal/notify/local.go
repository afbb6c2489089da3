package notify

import (
	"context"
	"log/slog"

	"github.com/zoomiesmarket/zoomies/internal/domain"
)

// LogSender writes notices to the structured log at a level matching their
// severity.
type LogSender struct {
	logger *slog.Logger
}

// NewLogSender creates a LogSender.
func NewLogSender(logger *slog.Logger) *LogSender {
	return &LogSender{logger: logger.With(slog.String("component", "notice"))}
}

func (l *LogSender) Send(ctx context.Context, n domain.Notice) error {
	level := slog.LevelInfo
	switch n.Severity {
	case domain.SeverityWarning:
		level = slog.LevelWarn
	case domain.SeverityError:
		level = slog.LevelError
	}
	l.logger.Log(ctx, level, n.Title,
		slog.String("message", n.Message),
		slog.String("severity", string(n.Severity)),
	)
	return nil
}

func (l *LogSender) Name() string { return "log" }

// BusSender publishes notices as "notice" events so connected UI clients can
// render them as toasts.
type BusSender struct {
	bus domain.EventPublisher
}

// NewBusSender creates a BusSender.
func NewBusSender(bus domain.EventPublisher) *BusSender {
	return &BusSender{bus: bus}
}

func (b *BusSender) Send(ctx context.Context, n domain.Notice) error {
	b.bus.Publish(ctx, domain.NewEvent(domain.EventNotice, "", n))
	return nil
}

func (b *BusSender) Name() string { return "bus" }
