package store

import (
	"context"
	"errors"
	"testing"
)

func TestState_RoundTrip(t *testing.T) {
	t.Parallel()

	s := newTestStore(t)
	ctx := context.Background()

	if err := s.SetState(ctx, "last_book", "John"); err != nil {
		t.Fatalf("SetState() error: %v", err)
	}

	got, err := s.GetState(ctx, "last_book")
	if err != nil {
		t.Fatalf("GetState() error: %v", err)
	}
	if got != "John" {
		t.Fatalf("expected %q, got %q", "John", got)
	}
}

func TestState_UpsertKeepsOneRowPerKey(t *testing.T) {
	t.Parallel()

	s := newTestStore(t)
	ctx := context.Background()

	if err := s.SetState(ctx, "last_chapter", "3"); err != nil {
		t.Fatalf("first SetState() error: %v", err)
	}
	if err := s.SetState(ctx, "last_chapter", "4"); err != nil {
		t.Fatalf("second SetState() error: %v", err)
	}

	got, err := s.GetState(ctx, "last_chapter")
	if err != nil {
		t.Fatalf("GetState() error: %v", err)
	}
	if got != "4" {
		t.Fatalf("expected latest value %q, got %q", "4", got)
	}

	all, err := s.AllState(ctx)
	if err != nil {
		t.Fatalf("AllState() error: %v", err)
	}
	if len(all) != 1 {
		t.Fatalf("expected exactly one row for the key, got %d", len(all))
	}
}

func TestState_MissingKey(t *testing.T) {
	t.Parallel()

	s := newTestStore(t)

	_, err := s.GetState(context.Background(), "never_written")
	if !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestAllState_SortedByKey(t *testing.T) {
	t.Parallel()

	s := newTestStore(t)
	ctx := context.Background()

	for _, kv := range [][2]string{{"recipient_number", "+1555"}, {"last_book", "John"}} {
		if err := s.SetState(ctx, kv[0], kv[1]); err != nil {
			t.Fatalf("SetState(%q) error: %v", kv[0], err)
		}
	}

	all, err := s.AllState(ctx)
	if err != nil {
		t.Fatalf("AllState() error: %v", err)
	}
	if len(all) != 2 {
		t.Fatalf("expected 2 rows, got %d", len(all))
	}
	if all[0].Key != "last_book" || all[1].Key != "recipient_number" {
		t.Fatalf("expected keys sorted, got %q then %q", all[0].Key, all[1].Key)
	}
	if all[0].UpdatedAt.IsZero() {
		t.Fatalf("expected updated_at set")
	}
}
