package models

import "time"

type WebhookEvent struct {
	ID              int64      `db:"id" json:"id"`
	EventID         string     `db:"event_id" json:"event_id"`
	EventType       string     `db:"event_type" json:"event_type"`
	ProcessedAt     *time.Time `db:"processed_at" json:"processed_at"`
	ProcessingError string     `db:"processing_error" json:"processing_error"`
	CreatedAt       time.Time  `db:"created_at" json:"created_at"`
}
