package dispatch

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/LeventeLantos/scripture-messaging/internal/model"
)

type fakeRegistry struct {
	due []model.ScheduledMessage

	dueErr  error
	sentErr error

	sentIDs    []int64
	sentDates  []string
	failedIDs  []int64
	failReason []string
}

func (f *fakeRegistry) DueSchedules(ctx context.Context, now time.Time) ([]model.ScheduledMessage, error) {
	return f.due, f.dueErr
}

func (f *fakeRegistry) MarkScheduleSent(ctx context.Context, id int64, firedDate string) error {
	if f.sentErr != nil {
		return f.sentErr
	}
	f.sentIDs = append(f.sentIDs, id)
	f.sentDates = append(f.sentDates, firedDate)
	return nil
}

func (f *fakeRegistry) MarkScheduleFailed(ctx context.Context, id int64, reason string) error {
	f.failedIDs = append(f.failedIDs, id)
	f.failReason = append(f.failReason, reason)
	return nil
}

type recorded struct {
	phone       string
	direction   model.Direction
	text        string
	transportID string
}

type fakeLog struct {
	records []recorded
	err     error
}

func (f *fakeLog) Record(ctx context.Context, phoneNumber string, direction model.Direction, text, transportMessageID string) (model.Message, error) {
	if f.err != nil {
		return model.Message{}, f.err
	}
	f.records = append(f.records, recorded{phoneNumber, direction, text, transportMessageID})
	return model.Message{ID: int64(len(f.records)), PhoneNumber: phoneNumber, Direction: direction, Text: text}, nil
}

type fakeContent struct {
	text string
	err  error
}

func (f *fakeContent) Fetch(ctx context.Context, book string, chapter, startVerse, endVerse int) (string, error) {
	return f.text, f.err
}

type fakeReflections struct {
	text  string
	err   error
	calls int
}

func (f *fakeReflections) Reflect(ctx context.Context, verseText, reference string) (string, error) {
	f.calls++
	return f.text, f.err
}

type fakeTransport struct {
	sid   string
	err   error
	sent  []string
	to    []string
	calls int
}

func (f *fakeTransport) Send(ctx context.Context, recipient, text string) (string, error) {
	f.calls++
	if f.err != nil {
		return "", f.err
	}
	f.to = append(f.to, recipient)
	f.sent = append(f.sent, text)
	return f.sid, nil
}

func john316Schedule() model.ScheduledMessage {
	return model.ScheduledMessage{
		ID:                1,
		Book:              "John",
		Chapter:           3,
		StartVerse:        16,
		EndVerse:          16,
		ScheduleTime:      "08:00",
		IncludeReflection: false,
		RecipientNumber:   "+15550001111",
		Status:            model.SchedulePending,
	}
}

func fixedClock(t time.Time) func() time.Time {
	return func() time.Time { return t }
}

func TestTick_DueScheduleSendsAndMarksSent(t *testing.T) {
	t.Parallel()

	registry := &fakeRegistry{due: []model.ScheduledMessage{john316Schedule()}}
	log := &fakeLog{}
	content := &fakeContent{text: "For God so loved the world..."}
	transport := &fakeTransport{sid: "SM1"}

	d := NewDispatcher(registry, log, content, &fakeReflections{}, transport).
		WithClock(fixedClock(time.Date(2026, 8, 31, 8, 0, 30, 0, time.UTC)))

	d.Tick(context.Background())

	if len(log.records) != 1 {
		t.Fatalf("expected 1 recorded message, got %d", len(log.records))
	}
	rec := log.records[0]
	if rec.direction != model.Outbound {
		t.Fatalf("expected outbound record, got %q", rec.direction)
	}
	if !strings.Contains(rec.text, "For God so loved the world...") {
		t.Fatalf("expected verse text in message, got %q", rec.text)
	}
	if !strings.Contains(rec.text, "John 3:16") {
		t.Fatalf("expected reference in message, got %q", rec.text)
	}
	if rec.transportID != "SM1" {
		t.Fatalf("expected transport id SM1, got %q", rec.transportID)
	}

	if len(registry.sentIDs) != 1 || registry.sentIDs[0] != 1 {
		t.Fatalf("expected schedule 1 marked sent, got %v", registry.sentIDs)
	}
	if registry.sentDates[0] != "2026-08-31" {
		t.Fatalf("expected fired date 2026-08-31, got %q", registry.sentDates[0])
	}
	if len(registry.failedIDs) != 0 {
		t.Fatalf("expected no failures, got %v", registry.failedIDs)
	}
}

func TestTick_TransportFailureMarksFailedAndRecordsNothing(t *testing.T) {
	t.Parallel()

	registry := &fakeRegistry{due: []model.ScheduledMessage{john316Schedule()}}
	log := &fakeLog{}
	content := &fakeContent{text: "For God so loved the world..."}
	transport := &fakeTransport{err: errors.New("delivery failed")}

	d := NewDispatcher(registry, log, content, &fakeReflections{}, transport).
		WithClock(fixedClock(time.Date(2026, 8, 31, 8, 0, 30, 0, time.UTC)))

	d.Tick(context.Background())

	if len(log.records) != 0 {
		t.Fatalf("expected no recorded messages, got %d", len(log.records))
	}
	if len(registry.failedIDs) != 1 || registry.failedIDs[0] != 1 {
		t.Fatalf("expected schedule 1 marked failed, got %v", registry.failedIDs)
	}
	if len(registry.sentIDs) != 0 {
		t.Fatalf("expected no sent marks, got %v", registry.sentIDs)
	}
}

func TestTick_ContentUnavailableMarksFailed(t *testing.T) {
	t.Parallel()

	registry := &fakeRegistry{due: []model.ScheduledMessage{john316Schedule()}}
	log := &fakeLog{}
	content := &fakeContent{err: errors.New("content unavailable")}
	transport := &fakeTransport{sid: "SM1"}

	d := NewDispatcher(registry, log, content, &fakeReflections{}, transport)
	d.Tick(context.Background())

	if transport.calls != 0 {
		t.Fatalf("expected no send attempt, got %d", transport.calls)
	}
	if len(registry.failedIDs) != 1 {
		t.Fatalf("expected schedule marked failed, got %v", registry.failedIDs)
	}
	if len(log.records) != 0 {
		t.Fatalf("expected no recorded messages, got %d", len(log.records))
	}
}

func TestTick_ReflectionUsedWhenRequested(t *testing.T) {
	t.Parallel()

	sched := john316Schedule()
	sched.IncludeReflection = true

	registry := &fakeRegistry{due: []model.ScheduledMessage{sched}}
	log := &fakeLog{}
	content := &fakeContent{text: "For God so loved the world..."}
	reflections := &fakeReflections{text: "John 3:16 devotional with reflection"}
	transport := &fakeTransport{sid: "SM1"}

	d := NewDispatcher(registry, log, content, reflections, transport)
	d.Tick(context.Background())

	if reflections.calls != 1 {
		t.Fatalf("expected 1 reflection call, got %d", reflections.calls)
	}
	if len(transport.sent) != 1 || transport.sent[0] != "John 3:16 devotional with reflection" {
		t.Fatalf("expected reflection text sent, got %v", transport.sent)
	}
}

func TestTick_ReflectionFailureMarksFailed(t *testing.T) {
	t.Parallel()

	sched := john316Schedule()
	sched.IncludeReflection = true

	registry := &fakeRegistry{due: []model.ScheduledMessage{sched}}
	transport := &fakeTransport{sid: "SM1"}
	d := NewDispatcher(
		registry,
		&fakeLog{},
		&fakeContent{text: "verse"},
		&fakeReflections{err: errors.New("generation failed")},
		transport,
	)
	d.Tick(context.Background())

	if transport.calls != 0 {
		t.Fatalf("expected no send attempt, got %d", transport.calls)
	}
	if len(registry.failedIDs) != 1 {
		t.Fatalf("expected schedule marked failed, got %v", registry.failedIDs)
	}
}

func TestTick_RecordFailureAfterSendLeavesStatusAlone(t *testing.T) {
	t.Parallel()

	registry := &fakeRegistry{due: []model.ScheduledMessage{john316Schedule()}}
	log := &fakeLog{err: errors.New("insert failed")}
	transport := &fakeTransport{sid: "SM1"}

	d := NewDispatcher(registry, log, &fakeContent{text: "verse"}, &fakeReflections{}, transport)
	d.Tick(context.Background())

	if transport.calls != 1 {
		t.Fatalf("expected 1 send, got %d", transport.calls)
	}
	// The message was delivered; a store failure afterwards must not flip
	// the schedule to failed.
	if len(registry.failedIDs) != 0 {
		t.Fatalf("expected no failed marks, got %v", registry.failedIDs)
	}
	if len(registry.sentIDs) != 0 {
		t.Fatalf("expected no sent marks after record failure, got %v", registry.sentIDs)
	}
}

func TestTick_MarkSentFailureLeavesStatusAlone(t *testing.T) {
	t.Parallel()

	registry := &fakeRegistry{
		due:     []model.ScheduledMessage{john316Schedule()},
		sentErr: errors.New("update failed"),
	}
	log := &fakeLog{}
	transport := &fakeTransport{sid: "SM1"}

	d := NewDispatcher(registry, log, &fakeContent{text: "verse"}, &fakeReflections{}, transport)
	d.Tick(context.Background())

	if len(log.records) != 1 {
		t.Fatalf("expected 1 recorded message, got %d", len(log.records))
	}
	if len(registry.failedIDs) != 0 {
		t.Fatalf("expected no failed marks, got %v", registry.failedIDs)
	}
}

func TestTick_NoDueSchedulesDoesNothing(t *testing.T) {
	t.Parallel()

	registry := &fakeRegistry{}
	log := &fakeLog{}
	transport := &fakeTransport{sid: "SM1"}

	d := NewDispatcher(registry, log, &fakeContent{text: "verse"}, &fakeReflections{}, transport)

	// Two consecutive ticks before schedule_time: zero messages, no marks.
	d.Tick(context.Background())
	d.Tick(context.Background())

	if len(log.records) != 0 || transport.calls != 0 {
		t.Fatalf("expected no activity, got %d records and %d sends", len(log.records), transport.calls)
	}
	if len(registry.sentIDs) != 0 || len(registry.failedIDs) != 0 {
		t.Fatalf("expected no status transitions")
	}
}

func TestTick_OneFailureDoesNotStopBatch(t *testing.T) {
	t.Parallel()

	bad := john316Schedule()
	bad.ID = 1
	bad.Book = "Nowhere" // content fetch fails per-schedule below
	good := john316Schedule()
	good.ID = 2

	content := &perBookContent{texts: map[string]string{"John": "For God so loved the world..."}}
	registry := &fakeRegistry{due: []model.ScheduledMessage{bad, good}}
	log := &fakeLog{}
	transport := &fakeTransport{sid: "SM1"}

	d := NewDispatcher(registry, log, content, &fakeReflections{}, transport)
	d.Tick(context.Background())

	if len(registry.failedIDs) != 1 || registry.failedIDs[0] != 1 {
		t.Fatalf("expected schedule 1 failed, got %v", registry.failedIDs)
	}
	if len(registry.sentIDs) != 1 || registry.sentIDs[0] != 2 {
		t.Fatalf("expected schedule 2 sent, got %v", registry.sentIDs)
	}
	if len(log.records) != 1 {
		t.Fatalf("expected 1 recorded message, got %d", len(log.records))
	}
}

type perBookContent struct {
	texts map[string]string
}

func (f *perBookContent) Fetch(ctx context.Context, book string, chapter, startVerse, endVerse int) (string, error) {
	text, ok := f.texts[book]
	if !ok {
		return "", errors.New("content unavailable")
	}
	return text, nil
}

func TestSendVerse_Immediate(t *testing.T) {
	t.Parallel()

	log := &fakeLog{}
	transport := &fakeTransport{sid: "SM9"}
	d := NewDispatcher(&fakeRegistry{}, log, &fakeContent{text: "For God so loved the world..."}, &fakeReflections{}, transport)

	msg, err := d.SendVerse(context.Background(), VerseRequest{
		Book:       "John",
		Chapter:    3,
		StartVerse: 16,
		EndVerse:   16,
		Recipient:  "+15550001111",
	})
	if err != nil {
		t.Fatalf("SendVerse() error: %v", err)
	}
	if msg.Direction != model.Outbound {
		t.Fatalf("expected outbound message, got %q", msg.Direction)
	}
	if len(transport.to) != 1 || transport.to[0] != "+15550001111" {
		t.Fatalf("expected send to +15550001111, got %v", transport.to)
	}
}

func TestSendVerse_TransportFailureSurfaces(t *testing.T) {
	t.Parallel()

	log := &fakeLog{}
	d := NewDispatcher(&fakeRegistry{}, log, &fakeContent{text: "verse"}, &fakeReflections{}, &fakeTransport{err: errors.New("boom")})

	_, err := d.SendVerse(context.Background(), VerseRequest{
		Book: "John", Chapter: 3, StartVerse: 16, Recipient: "+15550001111",
	})
	if err == nil {
		t.Fatalf("expected error, got nil")
	}
	if len(log.records) != 0 {
		t.Fatalf("expected nothing recorded on failure, got %d", len(log.records))
	}
}

func TestReference(t *testing.T) {
	t.Parallel()

	if got := Reference("John", 3, 16, 16); got != "John 3:16" {
		t.Fatalf("single verse: got %q", got)
	}
	if got := Reference("John", 3, 16, 17); got != "John 3:16-17" {
		t.Fatalf("range: got %q", got)
	}
}
