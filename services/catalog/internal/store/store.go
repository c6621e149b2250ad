package store

import (
	"context"
	"errors"

	"github.com/example/streambox/services/catalog/internal/media"
)

// ErrNotFound is returned when no record matches the lookup.
var ErrNotFound = errors.New("media not found")

// MediaStore defines persistence for normalized media records.
//
// Insert always allocates a fresh local id, even when a record for the same
// (TMDBID, Type) already exists. Callers that want get-or-create semantics use
// FindByExternal first.
type MediaStore interface {
	Insert(ctx context.Context, m media.Media) (media.Media, error)
	Get(ctx context.Context, id int64) (media.Media, error)
	// FindByExternal returns the earliest stored record for the upstream title.
	FindByExternal(ctx context.Context, tmdbID int64, kind media.Kind) (media.Media, error)
}
