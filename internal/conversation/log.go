// Package conversation is the append-only message history: every inbound
// and outbound SMS is recorded here, and the dialogue context handed to
// the answer generator is built from it.
package conversation

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/LeventeLantos/scripture-messaging/internal/model"
)

// Roles used when turning history into LLM dialogue context.
const (
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

// Turn is one prior exchange in the dialogue context.
type Turn struct {
	Role string
	Text string
}

type MessageStore interface {
	InsertMessage(ctx context.Context, m *model.Message) error
	ListMessages(ctx context.Context, phoneNumber string, limit int) ([]model.Message, error)
}

type Log struct {
	store MessageStore

	mu   sync.Mutex
	last time.Time
	now  func() time.Time
}

func NewLog(store MessageStore) *Log {
	return &Log{store: store, now: time.Now}
}

// WithClock overrides the record clock. Test hook.
func (l *Log) WithClock(now func() time.Time) *Log {
	l.now = now
	return l
}

// Record appends one message. Timestamps are assigned here from a
// monotonically non-decreasing clock so history order matches record
// order even if the wall clock steps backwards. transportMessageID may
// be empty for messages that never hit the transport.
func (l *Log) Record(ctx context.Context, phoneNumber string, direction model.Direction, text, transportMessageID string) (model.Message, error) {
	if !direction.Valid() {
		return model.Message{}, fmt.Errorf("conversation: invalid direction %q", direction)
	}

	l.mu.Lock()
	ts := l.now().UTC()
	if ts.Before(l.last) {
		ts = l.last
	}
	l.last = ts
	l.mu.Unlock()

	m := model.Message{
		PhoneNumber: phoneNumber,
		Direction:   direction,
		Text:        text,
		Timestamp:   ts,
	}
	if transportMessageID != "" {
		m.TransportMessageID = &transportMessageID
	}

	if err := l.store.InsertMessage(ctx, &m); err != nil {
		return model.Message{}, err
	}
	return m, nil
}

// History returns the most recent limit messages for a phone number,
// oldest first.
func (l *Log) History(ctx context.Context, phoneNumber string, limit int) ([]model.Message, error) {
	return l.store.ListMessages(ctx, phoneNumber, limit)
}

// DialogueContext maps history onto LLM roles: outbound messages were
// said by the assistant, inbound by the user. maxTurns keeps the most
// recent turns, truncating from the oldest end.
func (l *Log) DialogueContext(ctx context.Context, phoneNumber string, maxTurns int) ([]Turn, error) {
	history, err := l.store.ListMessages(ctx, phoneNumber, maxTurns)
	if err != nil {
		return nil, err
	}

	turns := make([]Turn, 0, len(history))
	for _, m := range history {
		role := RoleUser
		if m.Direction == model.Outbound {
			role = RoleAssistant
		}
		turns = append(turns, Turn{Role: role, Text: m.Text})
	}
	return turns, nil
}
