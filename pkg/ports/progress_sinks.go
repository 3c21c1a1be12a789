package ports

import (
	"context"

	"github.com/sirupsen/logrus"
)

// LoggingProgressSink publishes every message as a structured logrus
// entry, matching the teacher's per-component *logrus.Logger injection
// idiom used throughout internal/dispatcher and internal/sinks.
type LoggingProgressSink struct {
	logger *logrus.Logger
}

// NewLoggingProgressSink wraps a logger as a ProgressSink.
func NewLoggingProgressSink(logger *logrus.Logger) *LoggingProgressSink {
	return &LoggingProgressSink{logger: logger}
}

func (s *LoggingProgressSink) Publish(_ context.Context, msg ProgressMessage) error {
	s.logger.WithFields(logrus.Fields{
		"analysis_id": msg.AnalysisID,
		"kind":        msg.Kind,
		"payload":     msg.Payload,
	}).Info("progress")
	return nil
}

// ChannelProgressSink fans every message out onto a buffered channel so
// tests can assert anchor ordering without a real push channel. Delivery
// is best-effort: a full channel drops the message rather than blocking
// the orchestrator, per spec §6's bounded-delivery requirement.
type ChannelProgressSink struct {
	ch chan ProgressMessage
}

// NewChannelProgressSink creates a sink buffering up to capacity messages.
func NewChannelProgressSink(capacity int) *ChannelProgressSink {
	return &ChannelProgressSink{ch: make(chan ProgressMessage, capacity)}
}

func (s *ChannelProgressSink) Publish(ctx context.Context, msg ProgressMessage) error {
	select {
	case s.ch <- msg:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	default:
		return nil // best-effort: drop rather than block orchestration
	}
}

// Messages exposes the receive side for test assertions.
func (s *ChannelProgressSink) Messages() <-chan ProgressMessage {
	return s.ch
}
