package models

import "time"

const EventTypeGeneration = "generation"

type UsageEvent struct {
	ID        string    `db:"id" json:"id"`
	UserID    string    `db:"user_id" json:"user_id"`
	AppID     string    `db:"app_id" json:"app_id"`
	EventType string    `db:"event_type" json:"event_type"`
	Platform  string    `db:"platform" json:"platform"`
	CreatedAt time.Time `db:"created_at" json:"created_at"`
}

const (
	PlatformInstagram  = "instagram"
	PlatformX          = "x"
	PlatformGoogleMaps = "google_maps"
)
