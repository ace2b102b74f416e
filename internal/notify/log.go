package notify

import (
	"context"

	"github.com/rs/zerolog"
)

// Log writes notifications to the application log. Used when no external
// channel is configured, so change detection still leaves a visible trail.
type Log struct {
	logger zerolog.Logger
}

// NewLog constructs a log sink.
func NewLog(logger zerolog.Logger) *Log {
	return &Log{logger: logger.With().Str("component", "log_sink").Logger()}
}

// Send records the notification at info level.
func (l *Log) Send(_ context.Context, msg Message) error {
	l.logger.Info().
		Str("monitor", msg.Monitor).
		Str("summary", msg.Summary).
		Msg(msg.Body)
	return nil
}

var _ Sink = (*Log)(nil)
