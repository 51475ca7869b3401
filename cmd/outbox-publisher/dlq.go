package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"

	"github.com/google/uuid"

	"github.com/horologe/storefront-backend/pkg/db/models"
	"github.com/horologe/storefront-backend/pkg/outbox"
)

type dlqOperator interface {
	ListRecent(ctx context.Context, limit int) ([]models.OutboxDLQ, error)
	Requeue(ctx context.Context, eventID uuid.UUID) error
}

type dlqLine struct {
	EventID      uuid.UUID `json:"event_id"`
	EventType    string    `json:"event_type"`
	AggregateID  uuid.UUID `json:"aggregate_id"`
	Reason       string    `json:"reason"`
	Error        string    `json:"error,omitempty"`
	AttemptCount int       `json:"attempt_count"`
	FailedAt     string    `json:"failed_at"`
}

// printDeadLetters writes one JSON object per dead letter.
func printDeadLetters(ctx context.Context, dlq dlqOperator, limit int, out io.Writer) error {
	rows, err := dlq.ListRecent(ctx, limit)
	if err != nil {
		return fmt.Errorf("list dead letters: %w", err)
	}
	enc := json.NewEncoder(out)
	for _, row := range rows {
		line := dlqLine{
			EventID:      row.EventID,
			EventType:    string(row.EventType),
			AggregateID:  row.AggregateID,
			Reason:       string(row.ErrorReason),
			AttemptCount: row.AttemptCount,
			FailedAt:     row.FailedAt.UTC().Format("2006-01-02T15:04:05Z"),
		}
		if row.ErrorMessage != nil {
			line.Error = *row.ErrorMessage
		}
		if err := enc.Encode(line); err != nil {
			return err
		}
	}
	return nil
}

func replayDeadLetter(ctx context.Context, dlq dlqOperator, rawID string) error {
	eventID, err := uuid.Parse(rawID)
	if err != nil {
		return fmt.Errorf("invalid event id %q: %w", rawID, err)
	}
	if err := dlq.Requeue(ctx, eventID); err != nil {
		return fmt.Errorf("requeue %s: %w", eventID, err)
	}
	return nil
}

var _ dlqOperator = (*outbox.DLQRepository)(nil)
