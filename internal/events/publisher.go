// Package events provides event publishing functionality.
package events

import (
	"context"
	"encoding/json"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/segmentio/kafka-go"

	"radpad-intake-service/internal/models"
	"radpad-intake-service/internal/observability/metrics"
)

// Publisher publishes intake events to separate Kafka topics.
type Publisher struct {
	writerAttempts    *kafka.Writer
	writerTransitions *kafka.Writer
	writerCapture     *kafka.Writer
	principal         string
	topicAttempts     string
	topicTransitions  string
	topicCapture      string
	enabled           bool
	metrics           *metrics.Metrics
}

// Config holds Kafka publisher configuration.
type Config struct {
	Brokers          []string
	TopicAttempts    string
	TopicTransitions string
	TopicCapture     string
	Principal        string
	Enabled          bool
}

// New creates a new Kafka event publisher with one writer per topic.
func New(cfg *Config) *Publisher {
	m := metrics.DefaultMetrics

	if cfg == nil {
		log.Info().Msg("Kafka disabled (nil config), using log-only mode")
		return &Publisher{
			enabled: false,
			metrics: m,
		}
	}

	if !cfg.Enabled || len(cfg.Brokers) == 0 {
		log.Info().Msg("Kafka disabled, using log-only mode")
		return &Publisher{
			principal:        cfg.Principal,
			topicAttempts:    cfg.TopicAttempts,
			topicTransitions: cfg.TopicTransitions,
			topicCapture:     cfg.TopicCapture,
			enabled:          false,
			metrics:          m,
		}
	}

	// Longer dial timeout for DNS resolution in Kubernetes
	dialer := &kafka.Dialer{
		Timeout:   10 * time.Second,
		DualStack: true,
	}

	transport := &kafka.Transport{
		Dial: dialer.DialFunc,
	}

	newWriter := func(topic string) *kafka.Writer {
		return &kafka.Writer{
			Addr:         kafka.TCP(cfg.Brokers...),
			Topic:        topic,
			Balancer:     &kafka.Hash{},
			BatchTimeout: 10 * time.Millisecond,
			WriteTimeout: 10 * time.Second,
			RequiredAcks: kafka.RequireOne,
			Transport:    transport,
		}
	}

	log.Info().
		Strs("brokers", cfg.Brokers).
		Str("topicAttempts", cfg.TopicAttempts).
		Str("topicTransitions", cfg.TopicTransitions).
		Str("topicCapture", cfg.TopicCapture).
		Str("principal", cfg.Principal).
		Msg("Kafka publisher initialized")

	return &Publisher{
		writerAttempts:    newWriter(cfg.TopicAttempts),
		writerTransitions: newWriter(cfg.TopicTransitions),
		writerCapture:     newWriter(cfg.TopicCapture),
		principal:         cfg.Principal,
		topicAttempts:     cfg.TopicAttempts,
		topicTransitions:  cfg.TopicTransitions,
		topicCapture:      cfg.TopicCapture,
		enabled:           true,
		metrics:           m,
	}
}

// PublishAttempt publishes a validation attempt keyed by workflow.
func (p *Publisher) PublishAttempt(ctx context.Context, ev *models.AttemptEvent) error {
	return p.publish(ctx, p.writerAttempts, p.topicAttempts, "attempt", ev.WorkflowID, ev)
}

// PublishTransition publishes a workflow state change keyed by workflow.
func (p *Publisher) PublishTransition(ctx context.Context, ev *models.TransitionEvent) error {
	return p.publish(ctx, p.writerTransitions, p.topicTransitions, "transition", ev.WorkflowID, ev)
}

// PublishCapture publishes capture metadata keyed by capture session.
func (p *Publisher) PublishCapture(ctx context.Context, ev *models.CaptureEvent) error {
	return p.publish(ctx, p.writerCapture, p.topicCapture, "capture", ev.SessionID, ev)
}

func (p *Publisher) publish(ctx context.Context, writer *kafka.Writer, topic, eventType, key string, event any) error {
	start := time.Now()

	payload, err := json.Marshal(event)
	if err != nil {
		log.Error().Err(err).Str("topic", topic).Msg("Failed to marshal event")
		return err
	}

	log.Debug().
		Str("principal", p.principal).
		Str("topic", topic).
		Str("key", key).
		RawJSON("payload", payload).
		Msg("Publishing event")

	// If Kafka is disabled, just log
	if !p.enabled || writer == nil {
		p.metrics.RecordKafkaPublish(topic, eventType, nil, time.Since(start).Seconds())
		return nil
	}

	msg := kafka.Message{
		Key:   []byte(key),
		Value: payload,
		Headers: []kafka.Header{
			{Key: "eventType", Value: []byte(eventType)},
			{Key: "principal", Value: []byte(p.principal)},
		},
	}

	if err := writer.WriteMessages(ctx, msg); err != nil {
		log.Error().
			Err(err).
			Str("topic", topic).
			Str("key", key).
			Msg("Failed to write to Kafka")
		p.metrics.RecordKafkaPublish(topic, eventType, err, time.Since(start).Seconds())
		return err
	}

	p.metrics.RecordKafkaPublish(topic, eventType, nil, time.Since(start).Seconds())
	return nil
}

// Close closes all Kafka writers.
func (p *Publisher) Close() error {
	var err error
	for name, w := range map[string]*kafka.Writer{
		"attempts":    p.writerAttempts,
		"transitions": p.writerTransitions,
		"capture":     p.writerCapture,
	} {
		if w == nil {
			continue
		}
		if e := w.Close(); e != nil {
			log.Error().Err(e).Str("writer", name).Msg("Error closing writer")
			err = e
		}
	}
	return err
}
