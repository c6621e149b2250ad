// Package catalog fetches titles from the metadata provider, normalizes them
// and records every fetched item in the media store.
package catalog

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/example/streambox/services/catalog/internal/cache"
	"github.com/example/streambox/services/catalog/internal/media"
	"github.com/example/streambox/services/catalog/internal/normalize"
	"github.com/example/streambox/services/catalog/internal/store"
	"github.com/example/streambox/services/catalog/internal/tmdb"
)

var (
	ErrNotFound   = errors.New("media not found")
	ErrEmptyQuery = errors.New("search query required")
)

// Metadata is the upstream provider. *tmdb.Client satisfies it.
type Metadata interface {
	Trending(ctx context.Context, kind media.Kind) ([]tmdb.Item, error)
	Popular(ctx context.Context, kind media.Kind) ([]tmdb.Item, error)
	SearchMulti(ctx context.Context, query string) ([]tmdb.Item, error)
	Details(ctx context.Context, kind media.Kind, id int64) (tmdb.Item, error)
	Trailer(ctx context.Context, kind media.Kind, id int64) (string, error)
	Genres(ctx context.Context, kind media.Kind) ([]media.Genre, error)
	Similar(ctx context.Context, kind media.Kind, id int64) ([]tmdb.Item, error)
	Seasons(ctx context.Context, showID int64) ([]media.Season, error)
	DiscoverByGenre(ctx context.Context, kind media.Kind, genreID int64) (*tmdb.Page, error)
}

type Service struct {
	Meta  Metadata
	Store store.MediaStore
	// Cache holds genre lists and discover pages; nil disables caching.
	Cache cache.Cache
	Log   *zap.Logger
	// Concurrency bounds per-request fan-out of trailer lookups and inserts.
	Concurrency int

	now func() time.Time
}

func New(meta Metadata, st store.MediaStore, c cache.Cache, log *zap.Logger, concurrency int) *Service {
	if log == nil {
		log = zap.NewNop()
	}
	if concurrency <= 0 {
		concurrency = 8
	}
	return &Service{Meta: meta, Store: st, Cache: c, Log: log, Concurrency: concurrency, now: time.Now}
}

// Expand selects the optional parts of Details.
type Expand struct {
	Seasons bool
	Similar bool
}

// ParseExpand reads a comma-separated list such as "seasons,similar".
// Unknown names are ignored.
func ParseExpand(v string) Expand {
	var e Expand
	for _, part := range strings.Split(v, ",") {
		switch strings.ToLower(strings.TrimSpace(part)) {
		case "seasons":
			e.Seasons = true
		case "similar":
			e.Similar = true
		}
	}
	return e
}

// Details is a media record with its optional expansions.
type Details struct {
	Media   media.Media    `json:"media"`
	Seasons []media.Season `json:"seasons,omitempty"`
	Similar []media.Media  `json:"similar,omitempty"`
}

func (s *Service) Trending(ctx context.Context, kind media.Kind) ([]media.Media, error) {
	if !kind.Valid() {
		return nil, fmt.Errorf("trending: %w: %q", media.ErrInvalidKind, kind)
	}
	items, err := s.Meta.Trending(ctx, kind)
	if err != nil {
		return nil, fmt.Errorf("trending %s: %w", kind, err)
	}
	return s.cacheAll(ctx, items)
}

func (s *Service) Popular(ctx context.Context, kind media.Kind) ([]media.Media, error) {
	if !kind.Valid() {
		return nil, fmt.Errorf("popular: %w: %q", media.ErrInvalidKind, kind)
	}
	items, err := s.Meta.Popular(ctx, kind)
	if err != nil {
		return nil, fmt.Errorf("popular %s: %w", kind, err)
	}
	return s.cacheAll(ctx, items)
}

// Search returns movie and TV hits that carry both a poster and a backdrop.
func (s *Service) Search(ctx context.Context, query string) ([]media.Media, error) {
	query = strings.TrimSpace(query)
	if query == "" {
		return nil, ErrEmptyQuery
	}
	items, err := s.Meta.SearchMulti(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("search: %w", err)
	}
	kept := items[:0]
	for _, it := range items {
		if hasArtwork(it) {
			kept = append(kept, it)
		}
	}
	return s.cacheAll(ctx, kept)
}

// Get is a store lookup; it never calls upstream.
func (s *Service) Get(ctx context.Context, id int64) (media.Media, error) {
	m, err := s.Store.Get(ctx, id)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return media.Media{}, ErrNotFound
		}
		return media.Media{}, fmt.Errorf("get media %d: %w", id, err)
	}
	return m, nil
}

func (s *Service) Details(ctx context.Context, id int64, expand Expand) (Details, error) {
	m, err := s.Get(ctx, id)
	if err != nil {
		return Details{}, err
	}
	out := Details{Media: m}

	g, gctx := errgroup.WithContext(ctx)
	if expand.Seasons && m.Type == media.KindTV {
		g.Go(func() error {
			seasons, err := s.Meta.Seasons(gctx, m.TMDBID)
			if err != nil {
				return fmt.Errorf("seasons %d: %w", m.TMDBID, err)
			}
			out.Seasons = seasons
			return nil
		})
	}
	if expand.Similar {
		g.Go(func() error {
			similar, err := s.similarOf(gctx, m)
			if err != nil {
				return err
			}
			out.Similar = similar
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return Details{}, err
	}
	return out, nil
}

// Seasons lists seasons for a cached TV record. Movies have none.
func (s *Service) Seasons(ctx context.Context, id int64) ([]media.Season, error) {
	m, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if m.Type != media.KindTV {
		return []media.Season{}, nil
	}
	seasons, err := s.Meta.Seasons(ctx, m.TMDBID)
	if err != nil {
		return nil, fmt.Errorf("seasons %d: %w", m.TMDBID, err)
	}
	return seasons, nil
}

func (s *Service) Similar(ctx context.Context, id int64) ([]media.Media, error) {
	m, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	return s.similarOf(ctx, m)
}

// Resolve returns the stored record for an upstream title, fetching and
// storing it on first use.
func (s *Service) Resolve(ctx context.Context, kind media.Kind, tmdbID int64) (media.Media, error) {
	if !kind.Valid() {
		return media.Media{}, fmt.Errorf("resolve: %w: %q", media.ErrInvalidKind, kind)
	}
	m, err := s.Store.FindByExternal(ctx, tmdbID, kind)
	if err == nil {
		return m, nil
	}
	if !errors.Is(err, store.ErrNotFound) {
		return media.Media{}, fmt.Errorf("resolve lookup: %w", err)
	}

	item, err := s.Meta.Details(ctx, kind, tmdbID)
	if err != nil {
		if errors.Is(err, tmdb.ErrNotFound) {
			return media.Media{}, ErrNotFound
		}
		return media.Media{}, fmt.Errorf("resolve %s %d: %w", kind, tmdbID, err)
	}
	return s.cacheOne(ctx, item, s.genreNames(ctx, kind))
}

func (s *Service) Genres(ctx context.Context, kind media.Kind) ([]media.Genre, error) {
	if !kind.Valid() {
		return nil, fmt.Errorf("genres: %w: %q", media.ErrInvalidKind, kind)
	}
	return cache.GetOrLoad(s.Cache, "genres:"+string(kind), func() ([]media.Genre, error) {
		return s.Meta.Genres(ctx, kind)
	})
}

// ByGenre returns the upstream discover page untouched.
func (s *Service) ByGenre(ctx context.Context, kind media.Kind, genreID int64) (*tmdb.Page, error) {
	if !kind.Valid() {
		return nil, fmt.Errorf("by genre: %w: %q", media.ErrInvalidKind, kind)
	}
	key := "genre:" + string(kind) + ":" + strconv.FormatInt(genreID, 10)
	return cache.GetOrLoad(s.Cache, key, func() (*tmdb.Page, error) {
		return s.Meta.DiscoverByGenre(ctx, kind, genreID)
	})
}

func (s *Service) similarOf(ctx context.Context, m media.Media) ([]media.Media, error) {
	items, err := s.Meta.Similar(ctx, m.Type, m.TMDBID)
	if err != nil {
		if errors.Is(err, tmdb.ErrNotFound) {
			return []media.Media{}, nil
		}
		return nil, fmt.Errorf("similar %s %d: %w", m.Type, m.TMDBID, err)
	}
	return s.cacheAll(ctx, items)
}

// cacheAll normalizes and stores items concurrently. The result keeps the
// input order. Every call inserts new records, even for titles already stored.
func (s *Service) cacheAll(ctx context.Context, items []tmdb.Item) ([]media.Media, error) {
	out := make([]media.Media, len(items))
	if len(items) == 0 {
		return out, nil
	}

	names := make(map[media.Kind]normalize.GenreNames, 2)
	for _, it := range items {
		if _, ok := names[it.Kind()]; !ok {
			names[it.Kind()] = s.genreNames(ctx, it.Kind())
		}
	}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.Concurrency)
	for i, it := range items {
		g.Go(func() error {
			m, err := s.cacheOne(gctx, it, names[it.Kind()])
			if err != nil {
				return err
			}
			out[i] = m
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return out, nil
}

func (s *Service) cacheOne(ctx context.Context, it tmdb.Item, names normalize.GenreNames) (media.Media, error) {
	key, err := s.Meta.Trailer(ctx, it.Kind(), it.ExternalID())
	if err != nil {
		s.Log.Debug("trailer lookup failed", zap.String("type", string(it.Kind())), zap.Int64("tmdb_id", it.ExternalID()), zap.Error(err))
		key = ""
	}
	m, ok := normalize.Item(it, names, key, s.now())
	if !ok {
		return media.Media{}, fmt.Errorf("unsupported item %T", it)
	}
	stored, err := s.Store.Insert(ctx, m)
	if err != nil {
		return media.Media{}, fmt.Errorf("store media %s %d: %w", m.Type, m.TMDBID, err)
	}
	return stored, nil
}

// genreNames never fails; without a genre list labels fall back to numeric ids.
func (s *Service) genreNames(ctx context.Context, kind media.Kind) normalize.GenreNames {
	genres, err := s.Genres(ctx, kind)
	if err != nil {
		s.Log.Warn("genre list unavailable", zap.String("type", string(kind)), zap.Error(err))
		return nil
	}
	return normalize.NewGenreNames(genres)
}

func hasArtwork(it tmdb.Item) bool {
	switch v := it.(type) {
	case tmdb.Movie:
		return nonEmpty(v.PosterPath) && nonEmpty(v.BackdropPath)
	case tmdb.Show:
		return nonEmpty(v.PosterPath) && nonEmpty(v.BackdropPath)
	}
	return false
}

func nonEmpty(p *string) bool { return p != nil && *p != "" }
