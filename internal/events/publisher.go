package events

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"drill-review-service/internal/domain"
	"github.com/ThreeDotsLabs/watermill-kafka/v2/pkg/kafka"
	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/ThreeDotsLabs/watermill/pubsub/gochannel"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// AnswerEvent is the payload published for every committed answer change.
type AnswerEvent struct {
	ID         string            `json:"id"`
	Type       domain.ChangeKind `json:"type"`
	OccurredAt time.Time         `json:"occurredAt"`
	Answer     domain.Answer     `json:"answer"`
}

// Publisher forwards answer changes to a watermill topic. It implements
// app.ChangeListener; publish failures are logged and swallowed.
type Publisher struct {
	publisher message.Publisher
	topic     string
	log       *zap.Logger
}

func NewPublisher(publisher message.Publisher, topic string, log *zap.Logger) *Publisher {
	if log == nil {
		log = zap.NewNop()
	}
	return &Publisher{publisher: publisher, topic: topic, log: log}
}

// NewKafkaPublisher connects a watermill Kafka publisher to brokers.
func NewKafkaPublisher(brokers []string, log *zap.Logger) (message.Publisher, error) {
	publisher, err := kafka.NewPublisher(kafka.PublisherConfig{
		Brokers:   brokers,
		Marshaler: kafka.DefaultMarshaler{},
	}, NewZapAdapter(log))
	if err != nil {
		return nil, fmt.Errorf("failed to create Kafka publisher: %w", err)
	}
	return publisher, nil
}

// NewGoChannel returns the in-process pub/sub used when no broker is configured.
func NewGoChannel(log *zap.Logger) *gochannel.GoChannel {
	return gochannel.NewGoChannel(gochannel.Config{OutputChannelBuffer: 64}, NewZapAdapter(log))
}

// Publish sends change as an AnswerEvent.
func (p *Publisher) Publish(ctx context.Context, change domain.AnswerChange) error {
	event := AnswerEvent{
		ID:         uuid.NewString(),
		Type:       change.Kind,
		OccurredAt: change.At,
		Answer:     change.Answer,
	}
	payload, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("failed to marshal answer event: %w", err)
	}

	msg := message.NewMessage(event.ID, payload)
	msg.SetContext(ctx)
	msg.Metadata.Set("event_type", string(event.Type))
	msg.Metadata.Set("session_id", change.Answer.SessionID)
	msg.Metadata.Set("timestamp", event.OccurredAt.Format(time.RFC3339))

	if err := p.publisher.Publish(p.topic, msg); err != nil {
		return fmt.Errorf("failed to publish answer event: %w", err)
	}
	return nil
}

func (p *Publisher) AnswerChanged(ctx context.Context, change domain.AnswerChange) {
	if err := p.Publish(ctx, change); err != nil {
		p.log.Warn("answer event not published",
			zap.String("answer_id", change.Answer.ID),
			zap.String("event_type", string(change.Kind)),
			zap.Error(err))
		return
	}
	p.log.Debug("published answer event",
		zap.String("answer_id", change.Answer.ID),
		zap.String("event_type", string(change.Kind)),
		zap.String("topic", p.topic))
}

func (p *Publisher) Close() error {
	return p.publisher.Close()
}
