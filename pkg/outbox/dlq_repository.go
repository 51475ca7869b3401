package outbox

import (
	"context"
	"errors"
	"unicode/utf8"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/horologe/storefront-backend/pkg/db/models"
)

const (
	maxDLQErrorLen   = 1024
	defaultDLQListed = 50
)

// ErrDLQEntryNotFound is returned when no dead letter exists for an event.
var ErrDLQEntryNotFound = errors.New("dead letter not found")

// DLQRepository stores order events the relay gave up on and lets an
// operator requeue them.
type DLQRepository struct {
	db *gorm.DB
}

func NewDLQRepository(db *gorm.DB) *DLQRepository {
	return &DLQRepository{db: db}
}

func (r *DLQRepository) InsertTx(tx *gorm.DB, entry models.OutboxDLQ) error {
	if tx == nil {
		return errors.New("transaction required")
	}
	if entry.ErrorMessage != nil {
		msg := truncateMessage(*entry.ErrorMessage, maxDLQErrorLen)
		entry.ErrorMessage = &msg
	}
	return tx.Create(&entry).Error
}

// ListRecent returns dead letters, most recent failure first.
func (r *DLQRepository) ListRecent(ctx context.Context, limit int) ([]models.OutboxDLQ, error) {
	if limit <= 0 {
		limit = defaultDLQListed
	}
	var rows []models.OutboxDLQ
	err := r.db.WithContext(ctx).
		Order("failed_at DESC").
		Limit(limit).
		Find(&rows).Error
	return rows, err
}

// Requeue hands a dead-lettered event back to the relay: the outbox row gets
// a fresh attempt budget (recreated from the dead letter if it is gone) and
// the dead letter is removed. The event keeps its id so consumers still
// deduplicate it.
func (r *DLQRepository) Requeue(ctx context.Context, eventID uuid.UUID) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var entry models.OutboxDLQ
		err := tx.Where("event_id = ?", eventID).Take(&entry).Error
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return ErrDLQEntryNotFound
		}
		if err != nil {
			return err
		}

		reset := tx.Model(&models.OutboxEvent{}).
			Where("id = ?", eventID).
			Updates(map[string]any{
				"attempt_count": 0,
				"last_error":    nil,
				"published_at":  nil,
			})
		if reset.Error != nil {
			return reset.Error
		}
		if reset.RowsAffected == 0 {
			restored := models.OutboxEvent{
				ID:            entry.EventID,
				EventType:     entry.EventType,
				AggregateType: entry.AggregateType,
				AggregateID:   entry.AggregateID,
				Payload:       entry.Payload,
			}
			if err := tx.Create(&restored).Error; err != nil {
				return err
			}
		}
		return tx.Delete(&models.OutboxDLQ{}, "event_id = ?", eventID).Error
	})
}

// truncateMessage cuts message to at most limit bytes without splitting a rune.
func truncateMessage(message string, limit int) string {
	if len(message) <= limit {
		return message
	}
	cut := message[:limit]
	for !utf8.ValidString(cut) {
		cut = cut[:len(cut)-1]
	}
	return cut
}
