package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/example/streambox/services/catalog/internal/media"
)

// EventMediaCreated is written to catalog_outbox for every inserted record.
const EventMediaCreated = "catalog.media.created"

const schema = `
CREATE TABLE IF NOT EXISTS media (
	id            BIGSERIAL PRIMARY KEY,
	tmdb_id       BIGINT NOT NULL,
	type          TEXT NOT NULL,
	title         TEXT NOT NULL,
	overview      TEXT NOT NULL DEFAULT '',
	poster_path   TEXT,
	backdrop_path TEXT,
	release_date  TEXT,
	vote_average  INTEGER,
	popularity    INTEGER,
	genres        JSONB NOT NULL DEFAULT '[]',
	trailer_key   TEXT,
	last_updated  TIMESTAMPTZ NOT NULL DEFAULT now()
);
CREATE INDEX IF NOT EXISTS media_tmdb_type_idx ON media (tmdb_id, type);

CREATE TABLE IF NOT EXISTS catalog_outbox (
	id           UUID PRIMARY KEY,
	event_type   TEXT NOT NULL,
	payload      JSONB NOT NULL,
	created_at   TIMESTAMPTZ NOT NULL DEFAULT now(),
	published_at TIMESTAMPTZ
);`

const mediaColumns = `id, tmdb_id, type, title, overview, poster_path, backdrop_path, release_date, vote_average, popularity, genres, trailer_key, last_updated`

// PostgresMediaStore is the production Postgres-backed implementation.
// Every insert also records an outbox event in the same transaction.
type PostgresMediaStore struct {
	db *pgxpool.Pool
}

func NewPostgresMediaStore(db *pgxpool.Pool) *PostgresMediaStore {
	return &PostgresMediaStore{db: db}
}

// EnsureSchema creates the tables if they do not exist.
func (s *PostgresMediaStore) EnsureSchema(ctx context.Context) error {
	if _, err := s.db.Exec(ctx, schema); err != nil {
		return fmt.Errorf("media schema: %w", err)
	}
	return nil
}

func (s *PostgresMediaStore) Insert(ctx context.Context, m media.Media) (media.Media, error) {
	genres := m.Genres
	if genres == nil {
		genres = []string{}
	}
	genresJSON, err := json.Marshal(genres)
	if err != nil {
		return media.Media{}, err
	}

	tx, err := s.db.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return media.Media{}, fmt.Errorf("db begin: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	err = tx.QueryRow(ctx, `
INSERT INTO media (tmdb_id, type, title, overview, poster_path, backdrop_path, release_date, vote_average, popularity, genres, trailer_key, last_updated)
VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,COALESCE($12, now()))
RETURNING id, last_updated`,
		m.TMDBID, string(m.Type), m.Title, m.Overview, m.PosterPath, m.BackdropPath, m.ReleaseDate,
		m.VoteAverage, m.Popularity, genresJSON, m.TrailerKey, nullTime(m),
	).Scan(&m.ID, &m.LastUpdated)
	if err != nil {
		return media.Media{}, fmt.Errorf("insert media: %w", err)
	}

	if err := insertOutboxEvent(ctx, tx, map[string]any{"id": m.ID, "tmdbId": m.TMDBID, "type": m.Type}); err != nil {
		return media.Media{}, fmt.Errorf("insert outbox: %w", err)
	}
	if err := tx.Commit(ctx); err != nil {
		return media.Media{}, fmt.Errorf("db commit: %w", err)
	}
	m.Genres = genres
	return m, nil
}

func (s *PostgresMediaStore) Get(ctx context.Context, id int64) (media.Media, error) {
	row := s.db.QueryRow(ctx, `SELECT `+mediaColumns+` FROM media WHERE id=$1`, id)
	return scanMedia(row)
}

func (s *PostgresMediaStore) FindByExternal(ctx context.Context, tmdbID int64, kind media.Kind) (media.Media, error) {
	row := s.db.QueryRow(ctx,
		`SELECT `+mediaColumns+` FROM media WHERE tmdb_id=$1 AND type=$2 ORDER BY id ASC LIMIT 1`,
		tmdbID, string(kind))
	return scanMedia(row)
}

// Ping is used by /readyz.
func (s *PostgresMediaStore) Ping(ctx context.Context) error {
	return s.db.Ping(ctx)
}

func scanMedia(row pgx.Row) (media.Media, error) {
	var m media.Media
	var kind string
	var genresJSON []byte
	err := row.Scan(&m.ID, &m.TMDBID, &kind, &m.Title, &m.Overview, &m.PosterPath, &m.BackdropPath,
		&m.ReleaseDate, &m.VoteAverage, &m.Popularity, &genresJSON, &m.TrailerKey, &m.LastUpdated)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return media.Media{}, ErrNotFound
		}
		return media.Media{}, fmt.Errorf("scan media: %w", err)
	}
	m.Type = media.Kind(kind)
	m.Genres = []string{}
	if len(genresJSON) > 0 {
		if err := json.Unmarshal(genresJSON, &m.Genres); err != nil {
			return media.Media{}, fmt.Errorf("decode genres: %w", err)
		}
	}
	m.LastUpdated = m.LastUpdated.UTC()
	return m, nil
}

func insertOutboxEvent(ctx context.Context, tx pgx.Tx, payload any) error {
	b, err := json.Marshal(payload)
	if err != nil {
		return err
	}
	_, err = tx.Exec(ctx,
		`INSERT INTO catalog_outbox (id, event_type, payload) VALUES ($1,$2,$3)`,
		uuid.New(), EventMediaCreated, b,
	)
	return err
}

func nullTime(m media.Media) any {
	if m.LastUpdated.IsZero() {
		return nil
	}
	return m.LastUpdated
}
