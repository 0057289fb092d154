package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/LeventeLantos/scripture-messaging/internal/model"
)

// InsertMessage appends one message row and fills m.ID.
func (s *Store) InsertMessage(ctx context.Context, m *model.Message) error {
	var transportID sql.NullString
	if m.TransportMessageID != nil {
		transportID = sql.NullString{String: *m.TransportMessageID, Valid: true}
	}

	err := s.db.QueryRowContext(ctx, s.rebind(`
		INSERT INTO messages (phone_number, direction, message_text, timestamp_ns, transport_message_id)
		VALUES (?, ?, ?, ?, ?)
		RETURNING id
	`),
		m.PhoneNumber,
		string(m.Direction),
		m.Text,
		m.Timestamp.UnixNano(),
		transportID,
	).Scan(&m.ID)
	if err != nil {
		return fmt.Errorf("store: insert message: %w", err)
	}
	return nil
}

// ListMessages returns the most recent limit messages for a phone number,
// oldest first. limit <= 0 falls back to 50.
func (s *Store) ListMessages(ctx context.Context, phoneNumber string, limit int) ([]model.Message, error) {
	if limit <= 0 {
		limit = 50
	}

	rows, err := s.db.QueryContext(ctx, s.rebind(`
		SELECT id, phone_number, direction, message_text, timestamp_ns, transport_message_id
		FROM messages
		WHERE phone_number = ?
		ORDER BY timestamp_ns DESC, id DESC
		LIMIT ?
	`), phoneNumber, limit)
	if err != nil {
		return nil, fmt.Errorf("store: list messages: %w", err)
	}
	defer rows.Close()

	var out []model.Message
	for rows.Next() {
		var m model.Message
		var direction string
		var ts int64
		var transportID sql.NullString

		if err := rows.Scan(&m.ID, &m.PhoneNumber, &direction, &m.Text, &ts, &transportID); err != nil {
			return nil, fmt.Errorf("store: scan message: %w", err)
		}

		m.Direction = model.Direction(direction)
		m.Timestamp = time.Unix(0, ts).UTC()
		if transportID.Valid {
			v := transportID.String
			m.TransportMessageID = &v
		}
		out = append(out, m)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("store: list messages: %w", err)
	}

	// Query keeps the newest rows; history is read oldest first.
	for i, j := 0, len(out)-1; i < j; i, j = i+1, j-1 {
		out[i], out[j] = out[j], out[i]
	}
	return out, nil
}
