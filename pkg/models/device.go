package models

import "time"

// Device is a metered resource registered by one user. The (user_id,
// fingerprint) pair is unique; re-registering a known fingerprint refreshes
// last_active instead of creating a duplicate.
type Device struct {
	UserID       string    `json:"user_id" db:"user_id"`
	DeviceID     string    `json:"device_id" db:"device_id"`
	Name         string    `json:"name" db:"name"`
	Fingerprint  string    `json:"fingerprint" db:"fingerprint"`
	Browser      string    `json:"browser,omitempty" db:"browser"`
	UserAgent    string    `json:"user_agent,omitempty" db:"user_agent"`
	DeviceType   string    `json:"device_type,omitempty" db:"device_type"`
	RegisteredAt time.Time `json:"registered_at" db:"registered_at"`
	LastActive   time.Time `json:"last_active" db:"last_active"`
}
