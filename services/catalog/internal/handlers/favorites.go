package handlers

import (
	"net/http"

	"go.uber.org/zap"

	"github.com/example/streambox/internal/platform/analytics"
	"github.com/example/streambox/internal/platform/api"
	"github.com/example/streambox/internal/platform/httpserver"
	"github.com/example/streambox/services/catalog/internal/favorites"
	"github.com/example/streambox/services/catalog/internal/media"
)

// addFavoriteRequest is either a full media record or just a local id.
type addFavoriteRequest struct {
	media.Media
}

// ListFavorites handles GET /api/favorites
func ListFavorites(st favorites.Store, log *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		rid := httpserver.RequestIDFromContext(r.Context())
		cid, ok := requireClient(w, r, rid)
		if !ok {
			return
		}
		list, err := st.List(r.Context(), cid)
		if err != nil {
			log.Warn("list favorites", zap.String("request_id", rid), zap.Error(err))
			api.Internal(w, "Failed to fetch favorites", rid)
			return
		}
		api.WriteJSON(w, http.StatusOK, nonNil(list))
	}
}

// AddFavorite handles POST /api/favorites. A body carrying only "id" is
// resolved against the media store. Answers 201 when added and 200 when the
// title was already a favorite.
func AddFavorite(st favorites.Store, c Catalog, events *analytics.Publisher, log *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		rid := httpserver.RequestIDFromContext(r.Context())
		cid, ok := requireClient(w, r, rid)
		if !ok {
			return
		}
		var req addFavoriteRequest
		if !decodeJSON(w, r, rid, &req) {
			return
		}

		m := req.Media
		if m.TMDBID == 0 && m.ID > 0 {
			stored, err := c.Get(r.Context(), m.ID)
			if err != nil {
				writeCatalogError(w, log, rid, err, "Failed to add favorite")
				return
			}
			m = stored
		}
		if m.TMDBID <= 0 || !m.Type.Valid() {
			api.BadRequest(w, "INVALID_FAVORITE", "tmdbId and a valid type are required", rid)
			return
		}

		added, err := st.Add(r.Context(), cid, m)
		if err != nil {
			log.Warn("add favorite", zap.String("request_id", rid), zap.Error(err))
			api.Internal(w, "Failed to add favorite", rid)
			return
		}
		status := http.StatusOK
		if added {
			status = http.StatusCreated
			events.Publish(analytics.SubjectFavoriteAdded, "favorite_added", cid, map[string]any{
				"tmdb_id": m.TMDBID,
				"type":    m.Type,
			})
		}
		api.WriteJSON(w, status, m)
	}
}

// RemoveFavorite handles DELETE /api/favorites/{type}/{tmdbId}
func RemoveFavorite(st favorites.Store, log *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		rid := httpserver.RequestIDFromContext(r.Context())
		cid, kind, tmdbID, ok := favoriteKey(w, r, rid)
		if !ok {
			return
		}
		if err := st.Remove(r.Context(), cid, tmdbID, kind); err != nil {
			log.Warn("remove favorite", zap.String("request_id", rid), zap.Error(err))
			api.Internal(w, "Failed to remove favorite", rid)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	}
}

// CheckFavorite handles GET /api/favorites/{type}/{tmdbId}
func CheckFavorite(st favorites.Store, log *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		rid := httpserver.RequestIDFromContext(r.Context())
		cid, kind, tmdbID, ok := favoriteKey(w, r, rid)
		if !ok {
			return
		}
		found, err := st.Contains(r.Context(), cid, tmdbID, kind)
		if err != nil {
			log.Warn("check favorite", zap.String("request_id", rid), zap.Error(err))
			api.Internal(w, "Failed to check favorite", rid)
			return
		}
		api.WriteJSON(w, http.StatusOK, map[string]bool{"favorite": found})
	}
}

// FavoriteGenres handles GET /api/favorites/genres
func FavoriteGenres(st favorites.Store, log *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		rid := httpserver.RequestIDFromContext(r.Context())
		cid, ok := requireClient(w, r, rid)
		if !ok {
			return
		}
		list, err := st.List(r.Context(), cid)
		if err != nil {
			log.Warn("favorite genres", zap.String("request_id", rid), zap.Error(err))
			api.Internal(w, "Failed to fetch favorites", rid)
			return
		}
		api.WriteJSON(w, http.StatusOK, favorites.RecommendationGenres(list))
	}
}

func favoriteKey(w http.ResponseWriter, r *http.Request, rid string) (string, media.Kind, int64, bool) {
	cid, ok := requireClient(w, r, rid)
	if !ok {
		return "", "", 0, false
	}
	kind, ok := pathKind(w, r, rid)
	if !ok {
		return "", "", 0, false
	}
	tmdbID, ok := pathID(w, r, rid, "tmdbId", "Invalid TMDB ID")
	if !ok {
		return "", "", 0, false
	}
	return cid, kind, tmdbID, true
}
