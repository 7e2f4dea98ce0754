package models

import "time"

type User struct {
	ID             string    `db:"id" json:"id"`
	GoogleID       string    `db:"google_id" json:"google_id"`
	Email          string    `db:"email" json:"email"`
	Name           string    `db:"name" json:"name"`
	ProfilePicture string    `db:"profile_picture" json:"profile_picture"`
	CreatedAt      time.Time `db:"created_at" json:"created_at"`
	UpdatedAt      time.Time `db:"updated_at" json:"updated_at"`
}

// Profile is the per-user application profile. Only its existence matters to
// plan checks; other tables reference it.
type Profile struct {
	ID        string    `db:"id" json:"id"`
	CreatedAt time.Time `db:"created_at" json:"created_at"`
}

// UserApp registers that a user has opened a given application.
type UserApp struct {
	UserID    string    `db:"user_id" json:"user_id"`
	AppID     string    `db:"app_id" json:"app_id"`
	CreatedAt time.Time `db:"created_at" json:"created_at"`
}
