package models

import "time"

// ProcessedMessage is the idempotency ledger: one row per inbound provider
// message id, insert-only. A failed insert on the unique index means the
// message was already handled by an earlier delivery.
type ProcessedMessage struct {
	ID        uint      `json:"id" gorm:"primaryKey"`
	MessageID string    `json:"message_id" gorm:"uniqueIndex;size:128"`
	CreatedAt time.Time `json:"created_at"`
}
