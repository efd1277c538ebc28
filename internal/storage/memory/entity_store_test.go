package memory

import (
	"context"
	"errors"
	"testing"

	"github.com/JakeFAU/movie-frontier/internal/frontier"
)

var _ frontier.EntityStore = (*EntityStore)(nil)

func TestEntityStoreLifecycle(t *testing.T) {
	t.Parallel()

	store := NewEntityStore()
	ctx := context.Background()

	res, err := store.Create(ctx, frontier.KindMovie, 5)
	if err != nil || res != frontier.Inserted {
		t.Fatalf("Create() = %v, %v; want inserted", res, err)
	}
	res, err = store.Create(ctx, frontier.KindMovie, 5)
	if err != nil || res != frontier.AlreadyExists {
		t.Fatalf("second Create() = %v, %v; want already_exists", res, err)
	}

	if err := store.UpdateState(ctx, frontier.KindMovie, 5, frontier.Update{State: frontier.StateNeedsAuth}); err != nil {
		t.Fatalf("UpdateState(needs auth) error = %v", err)
	}
	if err := store.UpdateState(ctx, frontier.KindMovie, 5, frontier.Update{MarkCrawled: true}); err != nil {
		t.Fatalf("UpdateState(crawled) error = %v", err)
	}
	got, err := store.Get(ctx, frontier.KindMovie, 5)
	if err != nil {
		t.Fatalf("Get() error = %v", err)
	}
	want := frontier.Entity{Kind: frontier.KindMovie, ID: 5, State: frontier.StateNeedsAuth, Crawled: true}
	if got != want {
		t.Fatalf("Get() = %+v; want %+v", got, want)
	}
}

func TestEntityStoreMissingRow(t *testing.T) {
	t.Parallel()

	store := NewEntityStore()
	ctx := context.Background()
	if _, err := store.Get(ctx, frontier.KindActor, 1); !errors.Is(err, frontier.ErrNotFound) {
		t.Fatalf("Get() error = %v; want ErrNotFound", err)
	}
	err := store.UpdateState(ctx, frontier.KindActor, 1, frontier.Update{MarkCrawled: true})
	if !errors.Is(err, frontier.ErrNotFound) {
		t.Fatalf("UpdateState() error = %v; want ErrNotFound", err)
	}
	if store.Count(frontier.KindActor) != 0 {
		t.Fatal("expected update on missing row not to create it")
	}
}

func TestEntityStoreKindsAreSeparate(t *testing.T) {
	t.Parallel()

	store := NewEntityStore()
	ctx := context.Background()
	for _, kind := range frontier.Kinds() {
		if res, err := store.Create(ctx, kind, 1); err != nil || res != frontier.Inserted {
			t.Fatalf("Create(%s) = %v, %v", kind, res, err)
		}
	}
	if _, err := store.Create(ctx, frontier.Kind("studio"), 1); !errors.Is(err, frontier.ErrUnknownKind) {
		t.Fatalf("Create(studio) error = %v; want ErrUnknownKind", err)
	}
}
