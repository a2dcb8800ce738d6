package main

import (
	"context"
	"fmt"
	"io"

	"radpad-intake-service/internal/config"
	"radpad-intake-service/internal/credits"
	"radpad-intake-service/internal/events"
	"radpad-intake-service/internal/service/validator"
	"radpad-intake-service/internal/service/workflow"
)

// session bundles what one CLI run needs to drive a workflow.
type session struct {
	ledger    *credits.Ledger
	publisher *events.Publisher
	workflow  *workflow.Workflow
	closer    io.Closer
}

func openLedger(ctx context.Context, cfg *config.Config) (*credits.Ledger, io.Closer, error) {
	store, closer, err := credits.Open(cfg.Credits)
	if err != nil {
		return nil, nil, fmt.Errorf("open credit store: %w", err)
	}
	ledger := credits.NewLedger(store)
	if err := ledger.Load(ctx); err != nil {
		_ = closer.Close()
		return nil, nil, fmt.Errorf("load credits: %w", err)
	}
	return ledger, closer, nil
}

func newPublisher(cfg *config.Config) *events.Publisher {
	return events.New(&events.Config{
		Enabled:          cfg.Kafka.Enabled,
		Brokers:          cfg.Kafka.Brokers,
		TopicAttempts:    cfg.Kafka.TopicAttempts,
		TopicTransitions: cfg.Kafka.TopicTransitions,
		TopicCapture:     cfg.Kafka.TopicCapture,
		Principal:        cfg.Kafka.Principal,
	})
}

func openSession(ctx context.Context, cfg *config.Config, id string) (*session, error) {
	ledger, closer, err := openLedger(ctx, cfg)
	if err != nil {
		return nil, err
	}
	pub := newPublisher(cfg)
	client := validator.New(validator.Config{
		BaseURL:   cfg.Validator.BaseURL,
		Path:      cfg.Validator.Path,
		AuthToken: cfg.Validator.AuthToken,
		Timeout:   cfg.Validator.Timeout,
	})
	wf := workflow.New(id, workflow.Policy{
		MinInputLength:      cfg.Workflow.MinInputLength,
		OverrideMinAttempts: cfg.Workflow.OverrideMinAttempts,
	}, client, ledger, pub)

	return &session{
		ledger:    ledger,
		publisher: pub,
		workflow:  wf,
		closer:    closer,
	}, nil
}

func (s *session) Close() error {
	perr := s.publisher.Close()
	cerr := s.closer.Close()
	if perr != nil {
		return perr
	}
	return cerr
}
