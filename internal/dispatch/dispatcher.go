// Package dispatch fires due schedules: fetch verse text, optionally add
// a reflection, send, record, advance status. One process runs one
// dispatcher; within a tick schedules are processed sequentially so two
// schedules never race on the same recipient.
package dispatch

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/LeventeLantos/scripture-messaging/internal/model"
)

type ContentLookup interface {
	Fetch(ctx context.Context, book string, chapter, startVerse, endVerse int) (string, error)
}

type ReflectionGenerator interface {
	Reflect(ctx context.Context, verseText, reference string) (string, error)
}

type Transport interface {
	Send(ctx context.Context, recipient, text string) (string, error)
}

type ScheduleRegistry interface {
	DueSchedules(ctx context.Context, now time.Time) ([]model.ScheduledMessage, error)
	MarkScheduleSent(ctx context.Context, id int64, firedDate string) error
	MarkScheduleFailed(ctx context.Context, id int64, reason string) error
}

type ConversationLog interface {
	Record(ctx context.Context, phoneNumber string, direction model.Direction, text, transportMessageID string) (model.Message, error)
}

type Dispatcher struct {
	registry    ScheduleRegistry
	log         ConversationLog
	content     ContentLookup
	reflections ReflectionGenerator
	transport   Transport
	now         func() time.Time
}

func NewDispatcher(registry ScheduleRegistry, log ConversationLog, content ContentLookup, reflections ReflectionGenerator, transport Transport) *Dispatcher {
	return &Dispatcher{
		registry:    registry,
		log:         log,
		content:     content,
		reflections: reflections,
		transport:   transport,
		now:         time.Now,
	}
}

// WithClock overrides the tick clock. Test hook.
func (d *Dispatcher) WithClock(now func() time.Time) *Dispatcher {
	d.now = now
	return d
}

// Tick is one pass of the dispatch loop. Store errors are logged and the
// loop carries on; per-schedule collaborator failures mark that schedule
// failed without touching the rest of the batch.
func (d *Dispatcher) Tick(ctx context.Context) {
	now := d.now()

	due, err := d.registry.DueSchedules(ctx, now)
	if err != nil {
		slog.Error("due schedule query failed", "error", err)
		return
	}
	if len(due) == 0 {
		return
	}

	var sent, failed int
	for _, sched := range due {
		delivered, err := d.dispatch(ctx, sched, now)
		if err != nil {
			ref := Reference(sched.Book, sched.Chapter, sched.StartVerse, sched.EndVerse)
			if delivered {
				// The message went out; only the store write after it failed.
				// The status stays untouched, so the next tick runs the
				// occurrence again (at-least-once).
				sent++
				slog.Error("schedule delivered but bookkeeping failed",
					"schedule_id", sched.ID, "reference", ref, "error", err)
				continue
			}
			failed++
			slog.Error("schedule dispatch failed",
				"schedule_id", sched.ID, "reference", ref, "error", err)
			if markErr := d.registry.MarkScheduleFailed(ctx, sched.ID, err.Error()); markErr != nil {
				slog.Error("mark schedule failed errored", "schedule_id", sched.ID, "error", markErr)
			}
			continue
		}
		sent++
	}

	slog.Info("dispatch tick processed schedules", "due", len(due), "sent", sent, "failed", failed)
}

// dispatch delivers a single occurrence. delivered reports whether the
// transport accepted the message: an error with delivered=false is
// terminal and the caller flips the schedule to failed; an error with
// delivered=true is a store failure after the send and must not change
// the schedule's status.
func (d *Dispatcher) dispatch(ctx context.Context, sched model.ScheduledMessage, now time.Time) (delivered bool, err error) {
	text, err := d.assemble(ctx, VerseRequest{
		Book:              sched.Book,
		Chapter:           sched.Chapter,
		StartVerse:        sched.StartVerse,
		EndVerse:          sched.EndVerse,
		IncludeReflection: sched.IncludeReflection,
	})
	if err != nil {
		return false, err
	}

	transportID, err := d.transport.Send(ctx, sched.RecipientNumber, text)
	if err != nil {
		return false, err
	}

	if _, err := d.log.Record(ctx, sched.RecipientNumber, model.Outbound, text, transportID); err != nil {
		return true, fmt.Errorf("sent but not recorded: %w", err)
	}
	if err := d.registry.MarkScheduleSent(ctx, sched.ID, now.Format("2006-01-02")); err != nil {
		return true, fmt.Errorf("sent but not marked: %w", err)
	}
	return true, nil
}

// VerseRequest is an on-demand delivery, the same pipeline a schedule
// occurrence runs minus the registry bookkeeping.
type VerseRequest struct {
	Book              string
	Chapter           int
	StartVerse        int
	EndVerse          int
	IncludeReflection bool
	Recipient         string
}

// SendVerse fetches, formats, sends and records one verse message
// immediately. Collaborator failures surface to the caller unretried.
func (d *Dispatcher) SendVerse(ctx context.Context, req VerseRequest) (model.Message, error) {
	text, err := d.assemble(ctx, req)
	if err != nil {
		return model.Message{}, err
	}

	transportID, err := d.transport.Send(ctx, req.Recipient, text)
	if err != nil {
		return model.Message{}, err
	}

	return d.log.Record(ctx, req.Recipient, model.Outbound, text, transportID)
}

func (d *Dispatcher) assemble(ctx context.Context, req VerseRequest) (string, error) {
	verseText, err := d.content.Fetch(ctx, req.Book, req.Chapter, req.StartVerse, req.EndVerse)
	if err != nil {
		return "", err
	}

	reference := Reference(req.Book, req.Chapter, req.StartVerse, req.EndVerse)
	if !req.IncludeReflection {
		return fmt.Sprintf("%s\n\n%s", reference, verseText), nil
	}
	return d.reflections.Reflect(ctx, verseText, reference)
}

// Reference formats "Book C:S" or "Book C:S-E".
func Reference(book string, chapter, startVerse, endVerse int) string {
	ref := fmt.Sprintf("%s %d:%d", book, chapter, startVerse)
	if endVerse > startVerse {
		ref += fmt.Sprintf("-%d", endVerse)
	}
	return ref
}
