package model

import "time"

// UserState is one persisted UI key/value pair. Keys are unique; writes
// are last-write-wins upserts.
type UserState struct {
	Key       string
	Value     string
	UpdatedAt time.Time
}
