package model

import "time"

type Direction string

const (
	Inbound  Direction = "inbound"
	Outbound Direction = "outbound"
)

// Valid reports whether d is one of the two recorded directions.
func (d Direction) Valid() bool {
	return d == Inbound || d == Outbound
}

// Message is a single conversation turn, inbound or outbound. Rows are
// immutable once written; ordering for a phone number is Timestamp
// ascending with ID breaking ties.
type Message struct {
	ID                 int64
	PhoneNumber        string
	Direction          Direction
	Text               string
	Timestamp          time.Time
	TransportMessageID *string
}
