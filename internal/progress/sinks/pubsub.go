package sinks

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/JakeFAU/contact-harvester/internal/progress"
	"github.com/JakeFAU/contact-harvester/internal/publisher"
)

// PublishSink publishes run outcomes (complete and fatal error events) so
// downstream systems learn when a collection or dispatch finishes.
type PublishSink struct {
	pub    publisher.Publisher
	topic  string
	logger *zap.Logger
}

// NewPublishSink builds a sink publishing to topic.
func NewPublishSink(pub publisher.Publisher, topic string, logger *zap.Logger) *PublishSink {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &PublishSink{pub: pub, topic: topic, logger: logger}
}

// Consume publishes the terminal events in the batch.
func (s *PublishSink) Consume(ctx context.Context, batch []progress.Event) error {
	if s == nil || s.pub == nil {
		return nil
	}
	for _, evt := range batch {
		if !evt.Terminal() {
			continue
		}
		runID := uuid.UUID(evt.RunID).String()
		msg := publisher.Message{
			Topic: s.topic,
			Data:  evt.Payload(),
			Attributes: map[string]string{
				"run_id": runID,
				"flow":   string(evt.Flow),
				"kind":   string(evt.Kind),
			},
		}
		id, err := s.pub.Publish(ctx, msg)
		if err != nil {
			return fmt.Errorf("publish %s for run %s: %w", evt.Kind, runID, err)
		}
		s.logger.Debug("published run outcome", zap.String("run_id", runID), zap.String("message_id", id))
	}
	return nil
}

// Close implements the Sink interface; it performs no action.
func (s *PublishSink) Close(context.Context) error {
	return nil
}
