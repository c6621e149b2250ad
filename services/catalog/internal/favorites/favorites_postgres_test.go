package favorites

import (
	"context"
	"os"
	"testing"

	"github.com/example/streambox/internal/platform/db"
	"github.com/example/streambox/services/catalog/internal/media"
)

func newPostgresStore(t *testing.T) *PostgresStore {
	t.Helper()
	dsn := os.Getenv("TEST_DATABASE_URL")
	if dsn == "" {
		t.Skip("TEST_DATABASE_URL not set")
	}
	pool, err := db.Open(context.Background(), dsn)
	if err != nil {
		t.Fatalf("open test database: %v", err)
	}
	t.Cleanup(pool.Close)
	s := NewPostgresStore(pool)
	if err := s.EnsureSchema(context.Background()); err != nil {
		t.Fatal(err)
	}
	if _, err := pool.Exec(context.Background(), `TRUNCATE favorites RESTART IDENTITY`); err != nil {
		t.Fatal(err)
	}
	return s
}

func TestPostgresStore_AddDedupAndOrder(t *testing.T) {
	s := newPostgresStore(t)
	ctx := context.Background()

	for _, m := range []media.Media{fav(1, media.KindMovie, "Action"), fav(2, media.KindTV, "Drama"), fav(1, media.KindTV)} {
		added, err := s.Add(ctx, "c1", m)
		if err != nil || !added {
			t.Fatalf("add %d/%s: added=%v err=%v", m.TMDBID, m.Type, added, err)
		}
	}
	added, err := s.Add(ctx, "c1", fav(1, media.KindMovie))
	if err != nil || added {
		t.Fatalf("duplicate add should be a no-op: added=%v err=%v", added, err)
	}

	list, err := s.List(ctx, "c1")
	if err != nil {
		t.Fatal(err)
	}
	if len(list) != 3 || list[0].TMDBID != 1 || list[1].TMDBID != 2 || list[2].Type != media.KindTV {
		t.Fatalf("unexpected list: %+v", list)
	}
	if len(list[0].Genres) != 1 || list[0].Genres[0] != "Action" {
		t.Fatalf("snapshot lost genres: %+v", list[0])
	}
}

func TestPostgresStore_RemoveContainsIsolation(t *testing.T) {
	s := newPostgresStore(t)
	ctx := context.Background()
	_, _ = s.Add(ctx, "c1", fav(7, media.KindMovie))

	if ok, err := s.Contains(ctx, "c1", 7, media.KindMovie); err != nil || !ok {
		t.Fatalf("expected favorite: ok=%v err=%v", ok, err)
	}
	if ok, _ := s.Contains(ctx, "c2", 7, media.KindMovie); ok {
		t.Fatal("c2 must not see c1 favorites")
	}
	if list, err := s.List(ctx, "c2"); err != nil || list == nil || len(list) != 0 {
		t.Fatalf("expected empty list for c2, got %#v err=%v", list, err)
	}

	if err := s.Remove(ctx, "c1", 7, media.KindMovie); err != nil {
		t.Fatal(err)
	}
	if err := s.Remove(ctx, "c1", 7, media.KindMovie); err != nil {
		t.Fatalf("removing an absent title must not fail: %v", err)
	}
	if ok, _ := s.Contains(ctx, "c1", 7, media.KindMovie); ok {
		t.Fatal("favorite should be gone")
	}
}
