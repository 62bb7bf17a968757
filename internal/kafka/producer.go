package kafka

import (
	"context"
	"encoding/json"
	"time"

	"github.com/CDeX-Labs/CDeX-Duel-Service/pkg/events"
	"github.com/rs/zerolog"
	"github.com/segmentio/kafka-go"
)

const (
	TopicDuelStarted      = "duel.started"
	TopicSubmissionJudged = "submission.judged"
	TopicDuelEnded        = "duel.ended"
)

const publishTimeout = 5 * time.Second

// Producer publishes duel lifecycle events for downstream consumers
// (leaderboards, notification fan-out). Publishing is fire-and-forget; a
// broker outage must never stall a live duel.
type Producer struct {
	writers map[string]*kafka.Writer
	logger  zerolog.Logger
}

func NewProducer(brokers []string, logger zerolog.Logger) *Producer {
	writers := make(map[string]*kafka.Writer)
	for _, topic := range []string{TopicDuelStarted, TopicSubmissionJudged, TopicDuelEnded} {
		writers[topic] = kafka.NewWriter(kafka.WriterConfig{
			Brokers:  brokers,
			Topic:    topic,
			Balancer: &kafka.LeastBytes{},
		})
	}

	return &Producer{
		writers: writers,
		logger:  logger.With().Str("component", "kafka").Logger(),
	}
}

func (p *Producer) DuelStarted(event *events.DuelStartedEvent) {
	p.publish(TopicDuelStarted, event.DuelID, event)
}

func (p *Producer) SubmissionJudged(event *events.SubmissionJudgedEvent) {
	p.publish(TopicSubmissionJudged, event.UserID, event)
}

func (p *Producer) DuelEnded(event *events.DuelEndedEvent) {
	p.publish(TopicDuelEnded, event.DuelID, event)
}

func (p *Producer) publish(topic, key string, event interface{}) {
	data, err := json.Marshal(event)
	if err != nil {
		p.logger.Error().Err(err).Str("topic", topic).Msg("Failed to marshal event")
		return
	}

	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), publishTimeout)
		defer cancel()

		err := p.writers[topic].WriteMessages(ctx, kafka.Message{
			Key:   []byte(key),
			Value: data,
		})
		if err != nil {
			p.logger.Error().Err(err).Str("topic", topic).Msg("Failed to publish event")
			return
		}
		p.logger.Debug().Str("topic", topic).Str("key", key).Msg("Event published")
	}()
}

func (p *Producer) Close() error {
	var lastErr error
	for _, writer := range p.writers {
		if err := writer.Close(); err != nil {
			lastErr = err
			p.logger.Error().Err(err).Msg("Failed to close writer")
		}
	}
	return lastErr
}
