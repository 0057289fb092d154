package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/LeventeLantos/scripture-messaging/internal/model"
)

// InsertSchedule creates a pending schedule and fills s.ID and s.Status.
func (s *Store) InsertSchedule(ctx context.Context, sched *model.ScheduledMessage) error {
	if sched.CreatedAt.IsZero() {
		sched.CreatedAt = time.Now().UTC()
	}
	sched.Status = model.SchedulePending

	include := 0
	if sched.IncludeReflection {
		include = 1
	}

	err := s.db.QueryRowContext(ctx, s.rebind(`
		INSERT INTO scheduled_messages
			(book, chapter, start_verse, end_verse, schedule_time, include_reflection, recipient_number, status, created_at_ns)
		VALUES (?, ?, ?, ?, ?, ?, ?, 'pending', ?)
		RETURNING id
	`),
		sched.Book,
		sched.Chapter,
		sched.StartVerse,
		sched.EndVerse,
		sched.ScheduleTime,
		include,
		sched.RecipientNumber,
		sched.CreatedAt.UnixNano(),
	).Scan(&sched.ID)
	if err != nil {
		return fmt.Errorf("store: insert schedule: %w", err)
	}
	return nil
}

// DeleteSchedule removes a schedule by id. Only explicit user action
// deletes schedules; the dispatcher never does.
func (s *Store) DeleteSchedule(ctx context.Context, id int64) error {
	res, err := s.db.ExecContext(ctx, s.rebind(`DELETE FROM scheduled_messages WHERE id = ?`), id)
	if err != nil {
		return fmt.Errorf("store: delete schedule: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("store: delete schedule: %w", err)
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

// ListSchedules returns schedules ordered by schedule time, optionally
// filtered by status ("" lists all).
func (s *Store) ListSchedules(ctx context.Context, status model.ScheduleStatus) ([]model.ScheduledMessage, error) {
	query := `
		SELECT id, book, chapter, start_verse, end_verse, schedule_time,
		       include_reflection, recipient_number, status, last_fired_date, last_error, created_at_ns
		FROM scheduled_messages`
	args := []any{}
	if status != "" {
		query += ` WHERE status = ?`
		args = append(args, string(status))
	}
	query += ` ORDER BY schedule_time, id`

	rows, err := s.db.QueryContext(ctx, s.rebind(query), args...)
	if err != nil {
		return nil, fmt.Errorf("store: list schedules: %w", err)
	}
	defer rows.Close()
	return scanSchedules(rows)
}

// DueSchedules returns every schedule whose time of day has been reached
// at now and which has not already fired today: pending rows, plus sent
// rows whose last fired date is before today. failed rows never come back.
func (s *Store) DueSchedules(ctx context.Context, now time.Time) ([]model.ScheduledMessage, error) {
	timeOfDay := now.Format("15:04")
	today := now.Format("2006-01-02")

	rows, err := s.db.QueryContext(ctx, s.rebind(`
		SELECT id, book, chapter, start_verse, end_verse, schedule_time,
		       include_reflection, recipient_number, status, last_fired_date, last_error, created_at_ns
		FROM scheduled_messages
		WHERE schedule_time <= ?
		  AND (status = 'pending'
		       OR (status = 'sent' AND (last_fired_date IS NULL OR last_fired_date < ?)))
		ORDER BY schedule_time, id
	`), timeOfDay, today)
	if err != nil {
		return nil, fmt.Errorf("store: due schedules: %w", err)
	}
	defer rows.Close()
	return scanSchedules(rows)
}

// MarkScheduleSent records a successful firing on firedDate ("YYYY-MM-DD").
func (s *Store) MarkScheduleSent(ctx context.Context, id int64, firedDate string) error {
	res, err := s.db.ExecContext(ctx, s.rebind(`
		UPDATE scheduled_messages
		SET status = 'sent', last_fired_date = ?, last_error = NULL
		WHERE id = ?
	`), firedDate, id)
	if err != nil {
		return fmt.Errorf("store: mark schedule sent: %w", err)
	}
	return affectedOne(res)
}

// MarkScheduleFailed transitions a schedule to its terminal failed state.
func (s *Store) MarkScheduleFailed(ctx context.Context, id int64, reason string) error {
	res, err := s.db.ExecContext(ctx, s.rebind(`
		UPDATE scheduled_messages
		SET status = 'failed', last_error = ?
		WHERE id = ?
	`), reason, id)
	if err != nil {
		return fmt.Errorf("store: mark schedule failed: %w", err)
	}
	return affectedOne(res)
}

func affectedOne(res sql.Result) error {
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("store: rows affected: %w", err)
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

func scanSchedules(rows *sql.Rows) ([]model.ScheduledMessage, error) {
	var out []model.ScheduledMessage
	for rows.Next() {
		var sched model.ScheduledMessage
		var status string
		var include int
		var createdAt int64
		var firedDate, lastErr sql.NullString

		if err := rows.Scan(
			&sched.ID,
			&sched.Book,
			&sched.Chapter,
			&sched.StartVerse,
			&sched.EndVerse,
			&sched.ScheduleTime,
			&include,
			&sched.RecipientNumber,
			&status,
			&firedDate,
			&lastErr,
			&createdAt,
		); err != nil {
			return nil, fmt.Errorf("store: scan schedule: %w", err)
		}

		sched.Status = model.ScheduleStatus(status)
		sched.IncludeReflection = include != 0
		sched.CreatedAt = time.Unix(0, createdAt).UTC()
		if firedDate.Valid {
			v := firedDate.String
			sched.LastFiredDate = &v
		}
		if lastErr.Valid {
			v := lastErr.String
			sched.LastError = &v
		}
		out = append(out, sched)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("store: scan schedules: %w", err)
	}
	return out, nil
}
