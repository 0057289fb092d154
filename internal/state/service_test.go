package state_test

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"

	"github.com/LeventeLantos/scripture-messaging/internal/model"
	"github.com/LeventeLantos/scripture-messaging/internal/state"
	"github.com/LeventeLantos/scripture-messaging/internal/store"
)

func newTestStore(t *testing.T) *store.Store {
	t.Helper()

	dir := t.TempDir()
	st, err := store.Open("sqlite:" + filepath.Join(dir, "state_test.db"))
	if err != nil {
		t.Fatalf("Open() error: %v", err)
	}
	t.Cleanup(func() { st.Close() })

	if err := st.Init(context.Background()); err != nil {
		t.Fatalf("Init() error: %v", err)
	}
	return st
}

func newTestCache(t *testing.T) (*state.RedisCache, *miniredis.Miniredis) {
	t.Helper()

	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { rdb.Close() })

	return state.NewRedisCache(rdb, time.Minute), mr
}

func TestService_SetGet_NoCache(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	svc := state.NewService(newTestStore(t), nil)

	if err := svc.Set(ctx, state.KeyLastBook, "John"); err != nil {
		t.Fatalf("Set() error: %v", err)
	}

	got, err := svc.Get(ctx, state.KeyLastBook)
	if err != nil {
		t.Fatalf("Get() error: %v", err)
	}
	if got != "John" {
		t.Fatalf("expected %q, got %q", "John", got)
	}
}

func TestService_Get_MissingKey(t *testing.T) {
	t.Parallel()

	svc := state.NewService(newTestStore(t), nil)

	if _, err := svc.Get(context.Background(), "nope"); !errors.Is(err, state.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestService_Set_WritesThroughToCache(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	cache, mr := newTestCache(t)
	svc := state.NewService(newTestStore(t), cache)

	if err := svc.Set(ctx, state.KeyRecipient, "+15551234567"); err != nil {
		t.Fatalf("Set() error: %v", err)
	}

	val, err := mr.Get("state:" + state.KeyRecipient)
	if err != nil {
		t.Fatalf("expected cached value: %v", err)
	}
	if val != "+15551234567" {
		t.Fatalf("unexpected cached value %q", val)
	}
}

func TestService_Get_PrefersCache(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	st := newTestStore(t)
	cache, mr := newTestCache(t)
	svc := state.NewService(st, cache)

	if err := st.SetState(ctx, state.KeyLastBook, "stale"); err != nil {
		t.Fatalf("SetState() error: %v", err)
	}
	mr.Set("state:"+state.KeyLastBook, "cached")

	got, err := svc.Get(ctx, state.KeyLastBook)
	if err != nil {
		t.Fatalf("Get() error: %v", err)
	}
	if got != "cached" {
		t.Fatalf("expected cache hit %q, got %q", "cached", got)
	}
}

func TestService_Get_BackfillsCache(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	st := newTestStore(t)
	cache, mr := newTestCache(t)
	svc := state.NewService(st, cache)

	if err := st.SetState(ctx, state.KeyVerseRef, "John 3:16"); err != nil {
		t.Fatalf("SetState() error: %v", err)
	}

	got, err := svc.Get(ctx, state.KeyVerseRef)
	if err != nil {
		t.Fatalf("Get() error: %v", err)
	}
	if got != "John 3:16" {
		t.Fatalf("unexpected value %q", got)
	}

	cached, err := mr.Get("state:" + state.KeyVerseRef)
	if err != nil {
		t.Fatalf("expected backfilled cache entry: %v", err)
	}
	if cached != "John 3:16" {
		t.Fatalf("unexpected backfilled value %q", cached)
	}
}

func TestService_Get_SurvivesCacheOutage(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	st := newTestStore(t)
	cache, mr := newTestCache(t)
	svc := state.NewService(st, cache)

	if err := st.SetState(ctx, state.KeyLastBook, "Psalms"); err != nil {
		t.Fatalf("SetState() error: %v", err)
	}
	mr.Close()

	got, err := svc.Get(ctx, state.KeyLastBook)
	if err != nil {
		t.Fatalf("Get() error with cache down: %v", err)
	}
	if got != "Psalms" {
		t.Fatalf("unexpected value %q", got)
	}
}

func TestService_All(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	svc := state.NewService(newTestStore(t), nil)

	if err := svc.Set(ctx, "b_key", "2"); err != nil {
		t.Fatalf("Set() error: %v", err)
	}
	if err := svc.Set(ctx, "a_key", "1"); err != nil {
		t.Fatalf("Set() error: %v", err)
	}

	entries, err := svc.All(ctx)
	if err != nil {
		t.Fatalf("All() error: %v", err)
	}
	want := []model.UserState{{Key: "a_key", Value: "1"}, {Key: "b_key", Value: "2"}}
	if len(entries) != len(want) {
		t.Fatalf("expected %d entries, got %d", len(want), len(entries))
	}
	for i := range want {
		if entries[i].Key != want[i].Key || entries[i].Value != want[i].Value {
			t.Fatalf("entry %d: expected %+v, got %+v", i, want[i], entries[i])
		}
	}
}

func TestVerseSelection_RoundTrip(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	svc := state.NewService(newTestStore(t), nil)

	sel := state.VerseSelection{
		Book:           "Psalms",
		Chapter:        23,
		StartVerse:     1,
		EndVerse:       3,
		PreviewMessage: "The Lord is my shepherd...",
		VerseRef:       "Psalms 23:1-3",
	}
	if err := svc.SaveVerseSelection(ctx, sel); err != nil {
		t.Fatalf("SaveVerseSelection() error: %v", err)
	}

	got, err := svc.LoadVerseSelection(ctx)
	if err != nil {
		t.Fatalf("LoadVerseSelection() error: %v", err)
	}
	if got != sel {
		t.Fatalf("expected %+v, got %+v", sel, got)
	}
}

func TestVerseSelection_Defaults(t *testing.T) {
	t.Parallel()

	svc := state.NewService(newTestStore(t), nil)

	got, err := svc.LoadVerseSelection(context.Background())
	if err != nil {
		t.Fatalf("LoadVerseSelection() error: %v", err)
	}
	if got.Chapter != 3 || got.StartVerse != 16 || got.EndVerse != 16 {
		t.Fatalf("expected John 3:16 numeric defaults, got %+v", got)
	}
	if got.Book != "" || got.PreviewMessage != "" || got.VerseRef != "" {
		t.Fatalf("expected empty text fields, got %+v", got)
	}
}
