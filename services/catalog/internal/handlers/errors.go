package handlers

import (
	"context"
	"errors"
	"net/http"

	"go.uber.org/zap"

	"github.com/example/streambox/internal/platform/api"
	"github.com/example/streambox/services/catalog/internal/catalog"
	"github.com/example/streambox/services/catalog/internal/media"
)

// writeCatalogError maps service errors onto the HTTP envelope. Anything
// unclassified is logged and answered with a 500 carrying fallback, never the cause.
func writeCatalogError(w http.ResponseWriter, log *zap.Logger, rid string, err error, fallback string) {
	switch {
	case errors.Is(err, media.ErrInvalidKind):
		api.BadRequest(w, "INVALID_TYPE", "Invalid media type", rid)
	case errors.Is(err, catalog.ErrEmptyQuery):
		api.BadRequest(w, "MISSING_QUERY", "Search query required", rid)
	case errors.Is(err, catalog.ErrNotFound):
		api.NotFound(w, "NOT_FOUND", "Media not found", rid)
	default:
		if errors.Is(err, context.Canceled) {
			log.Debug("request cancelled", zap.String("request_id", rid), zap.Error(err))
		} else {
			log.Warn(fallback, zap.String("request_id", rid), zap.Error(err))
		}
		api.Internal(w, fallback, rid)
	}
}
