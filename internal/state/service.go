// Package state persists the interactive session's last selection so a
// stateless interface process resumes exactly where the user left off
// after a restart.
package state

import (
	"context"
	"errors"
	"log/slog"
	"strconv"

	"github.com/LeventeLantos/scripture-messaging/internal/model"
	"github.com/LeventeLantos/scripture-messaging/internal/store"
)

// Well-known session keys.
const (
	KeyLastBook       = "last_book"
	KeyLastChapter    = "last_chapter"
	KeyLastStartVerse = "last_start_verse"
	KeyLastEndVerse   = "last_end_verse"
	KeyPreviewMessage = "preview_message"
	KeyVerseRef       = "current_verse_ref"
	KeyRecipient      = "recipient_number"
)

// ErrNotFound mirrors the store sentinel for absent keys.
var ErrNotFound = store.ErrNotFound

type StateStore interface {
	SetState(ctx context.Context, key, value string) error
	GetState(ctx context.Context, key string) (string, error)
	AllState(ctx context.Context) ([]model.UserState, error)
}

type Service struct {
	store StateStore
	cache *RedisCache // nil when redis is disabled
}

func NewService(st StateStore, cache *RedisCache) *Service {
	return &Service{store: st, cache: cache}
}

// Set writes through to the store first; the cache update is best-effort
// because the store is the authoritative copy.
func (s *Service) Set(ctx context.Context, key, value string) error {
	if err := s.store.SetState(ctx, key, value); err != nil {
		return err
	}
	if s.cache != nil {
		if err := s.cache.Set(ctx, key, value); err != nil {
			slog.Warn("state cache set failed", "key", key, "error", err)
		}
	}
	return nil
}

// Get reads a key, trying the cache first and back-filling on a store hit.
func (s *Service) Get(ctx context.Context, key string) (string, error) {
	if s.cache != nil {
		if val, ok, err := s.cache.Get(ctx, key); err == nil && ok {
			return val, nil
		} else if err != nil {
			slog.Warn("state cache get failed", "key", key, "error", err)
		}
	}

	val, err := s.store.GetState(ctx, key)
	if err != nil {
		return "", err
	}
	if s.cache != nil {
		if err := s.cache.Set(ctx, key, val); err != nil {
			slog.Warn("state cache backfill failed", "key", key, "error", err)
		}
	}
	return val, nil
}

// All returns every persisted key straight from the store.
func (s *Service) All(ctx context.Context) ([]model.UserState, error) {
	return s.store.AllState(ctx)
}

// VerseSelection is the composite last-selection snapshot the interface
// restores on startup.
type VerseSelection struct {
	Book           string
	Chapter        int
	StartVerse     int
	EndVerse       int
	PreviewMessage string
	VerseRef       string
}

// SaveVerseSelection persists the selection key by key. Preview and
// reference are only written when present.
func (s *Service) SaveVerseSelection(ctx context.Context, sel VerseSelection) error {
	pairs := []struct{ key, value string }{
		{KeyLastBook, sel.Book},
		{KeyLastChapter, strconv.Itoa(sel.Chapter)},
		{KeyLastStartVerse, strconv.Itoa(sel.StartVerse)},
		{KeyLastEndVerse, strconv.Itoa(sel.EndVerse)},
	}
	for _, p := range pairs {
		if err := s.Set(ctx, p.key, p.value); err != nil {
			return err
		}
	}
	if sel.PreviewMessage != "" {
		if err := s.Set(ctx, KeyPreviewMessage, sel.PreviewMessage); err != nil {
			return err
		}
	}
	if sel.VerseRef != "" {
		if err := s.Set(ctx, KeyVerseRef, sel.VerseRef); err != nil {
			return err
		}
	}
	return nil
}

// LoadVerseSelection restores the last selection, falling back to
// John 3:16-style defaults for the numeric fields when unset.
func (s *Service) LoadVerseSelection(ctx context.Context) (VerseSelection, error) {
	sel := VerseSelection{
		Chapter:    3,
		StartVerse: 16,
		EndVerse:   16,
	}

	get := func(key string) (string, error) {
		val, err := s.Get(ctx, key)
		if errors.Is(err, ErrNotFound) {
			return "", nil
		}
		return val, err
	}

	var err error
	if sel.Book, err = get(KeyLastBook); err != nil {
		return VerseSelection{}, err
	}
	if v, err := get(KeyLastChapter); err != nil {
		return VerseSelection{}, err
	} else if n, convErr := strconv.Atoi(v); convErr == nil {
		sel.Chapter = n
	}
	if v, err := get(KeyLastStartVerse); err != nil {
		return VerseSelection{}, err
	} else if n, convErr := strconv.Atoi(v); convErr == nil {
		sel.StartVerse = n
	}
	if v, err := get(KeyLastEndVerse); err != nil {
		return VerseSelection{}, err
	} else if n, convErr := strconv.Atoi(v); convErr == nil {
		sel.EndVerse = n
	}
	if sel.PreviewMessage, err = get(KeyPreviewMessage); err != nil {
		return VerseSelection{}, err
	}
	if sel.VerseRef, err = get(KeyVerseRef); err != nil {
		return VerseSelection{}, err
	}
	return sel, nil
}
