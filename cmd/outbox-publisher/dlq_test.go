package main

import (
	"bytes"
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/horologe/storefront-backend/pkg/db/models"
	"github.com/horologe/storefront-backend/pkg/enums"
)

type fakeDLQOperator struct {
	rows     []models.OutboxDLQ
	requeued []uuid.UUID
}

func (f *fakeDLQOperator) ListRecent(context.Context, int) ([]models.OutboxDLQ, error) {
	return f.rows, nil
}

func (f *fakeDLQOperator) Requeue(_ context.Context, id uuid.UUID) error {
	f.requeued = append(f.requeued, id)
	return nil
}

func TestPrintDeadLettersWritesJSONLines(t *testing.T) {
	msg := "permission denied"
	op := &fakeDLQOperator{rows: []models.OutboxDLQ{
		{EventID: uuid.New(), EventType: enums.EventOrderCreated, ErrorReason: enums.OutboxDLQReasonNonRetryable, ErrorMessage: &msg, FailedAt: time.Date(2025, 3, 1, 10, 0, 0, 0, time.UTC)},
		{EventID: uuid.New(), EventType: enums.EventOrderStatusChanged, ErrorReason: enums.OutboxDLQReasonMaxAttempts, AttemptCount: 25},
	}}

	var buf bytes.Buffer
	require.NoError(t, printDeadLetters(context.Background(), op, 10, &buf))

	lines := bytes.Split(bytes.TrimSpace(buf.Bytes()), []byte("\n"))
	require.Len(t, lines, 2)
	var first dlqLine
	require.NoError(t, json.Unmarshal(lines[0], &first))
	assert.Equal(t, "order_created", first.EventType)
	assert.Equal(t, "permission denied", first.Error)
	assert.Equal(t, "2025-03-01T10:00:00Z", first.FailedAt)
}

func TestReplayDeadLetterParsesID(t *testing.T) {
	op := &fakeDLQOperator{}
	id := uuid.New()
	require.NoError(t, replayDeadLetter(context.Background(), op, id.String()))
	assert.Equal(t, []uuid.UUID{id}, op.requeued)

	assert.Error(t, replayDeadLetter(context.Background(), op, "not-a-uuid"))
	assert.Len(t, op.requeued, 1)
}
