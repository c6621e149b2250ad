package favorites

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/example/streambox/services/catalog/internal/media"
)

const schema = `
CREATE TABLE IF NOT EXISTS favorites (
	seq       BIGSERIAL PRIMARY KEY,
	client_id TEXT NOT NULL,
	tmdb_id   BIGINT NOT NULL,
	type      TEXT NOT NULL,
	media     JSONB NOT NULL,
	added_at  TIMESTAMPTZ NOT NULL DEFAULT now(),
	UNIQUE (client_id, tmdb_id, type)
);`

// PostgresStore stores a snapshot of each favorite as JSONB.
type PostgresStore struct {
	db *pgxpool.Pool
}

func NewPostgresStore(db *pgxpool.Pool) *PostgresStore {
	return &PostgresStore{db: db}
}

func (s *PostgresStore) EnsureSchema(ctx context.Context) error {
	if _, err := s.db.Exec(ctx, schema); err != nil {
		return fmt.Errorf("favorites schema: %w", err)
	}
	return nil
}

func (s *PostgresStore) List(ctx context.Context, clientID string) ([]media.Media, error) {
	if clientID == "" {
		return nil, ErrClientRequired
	}
	rows, err := s.db.Query(ctx, `SELECT media FROM favorites WHERE client_id=$1 ORDER BY seq ASC`, clientID)
	if err != nil {
		return nil, fmt.Errorf("list favorites: %w", err)
	}
	defer rows.Close()

	out := []media.Media{}
	for rows.Next() {
		var raw []byte
		if err := rows.Scan(&raw); err != nil {
			return nil, fmt.Errorf("scan favorite: %w", err)
		}
		var m media.Media
		if err := json.Unmarshal(raw, &m); err != nil {
			return nil, fmt.Errorf("decode favorite: %w", err)
		}
		out = append(out, m)
	}
	return out, rows.Err()
}

func (s *PostgresStore) Add(ctx context.Context, clientID string, m media.Media) (bool, error) {
	if clientID == "" {
		return false, ErrClientRequired
	}
	b, err := json.Marshal(m)
	if err != nil {
		return false, err
	}
	tag, err := s.db.Exec(ctx, `
INSERT INTO favorites (client_id, tmdb_id, type, media)
VALUES ($1,$2,$3,$4)
ON CONFLICT (client_id, tmdb_id, type) DO NOTHING`,
		clientID, m.TMDBID, string(m.Type), b)
	if err != nil {
		return false, fmt.Errorf("add favorite: %w", err)
	}
	return tag.RowsAffected() == 1, nil
}

func (s *PostgresStore) Remove(ctx context.Context, clientID string, tmdbID int64, kind media.Kind) error {
	if clientID == "" {
		return ErrClientRequired
	}
	if _, err := s.db.Exec(ctx,
		`DELETE FROM favorites WHERE client_id=$1 AND tmdb_id=$2 AND type=$3`,
		clientID, tmdbID, string(kind)); err != nil {
		return fmt.Errorf("remove favorite: %w", err)
	}
	return nil
}

func (s *PostgresStore) Contains(ctx context.Context, clientID string, tmdbID int64, kind media.Kind) (bool, error) {
	if clientID == "" {
		return false, ErrClientRequired
	}
	var ok bool
	err := s.db.QueryRow(ctx,
		`SELECT EXISTS (SELECT 1 FROM favorites WHERE client_id=$1 AND tmdb_id=$2 AND type=$3)`,
		clientID, tmdbID, string(kind)).Scan(&ok)
	if err != nil {
		return false, fmt.Errorf("contains favorite: %w", err)
	}
	return ok, nil
}
