package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"

	"go.uber.org/zap"

	"github.com/example/streambox/internal/platform/analytics"
	"github.com/example/streambox/internal/platform/api"
	"github.com/example/streambox/internal/platform/httpserver"
	"github.com/example/streambox/services/catalog/internal/catalog"
	"github.com/example/streambox/services/catalog/internal/media"
	"github.com/example/streambox/services/catalog/internal/tmdb"
)

// Catalog is the service surface used by the HTTP layer. *catalog.Service satisfies it.
type Catalog interface {
	Trending(ctx context.Context, kind media.Kind) ([]media.Media, error)
	Popular(ctx context.Context, kind media.Kind) ([]media.Media, error)
	Search(ctx context.Context, query string) ([]media.Media, error)
	Get(ctx context.Context, id int64) (media.Media, error)
	Details(ctx context.Context, id int64, expand catalog.Expand) (catalog.Details, error)
	Seasons(ctx context.Context, id int64) ([]media.Season, error)
	Similar(ctx context.Context, id int64) ([]media.Media, error)
	Resolve(ctx context.Context, kind media.Kind, tmdbID int64) (media.Media, error)
	Genres(ctx context.Context, kind media.Kind) ([]media.Genre, error)
	ByGenre(ctx context.Context, kind media.Kind, genreID int64) (*tmdb.Page, error)
}

// PlayerURLs builds embed URLs. *player.Builder satisfies it.
type PlayerURLs interface {
	EmbedURL(m media.Media, season, episode int) string
}

// GetTrending handles GET /api/trending/{type}
func GetTrending(c Catalog, log *zap.Logger) http.HandlerFunc {
	return listHandler(c.Trending, log, "Failed to fetch trending media")
}

// GetPopular handles GET /api/popular/{type}
func GetPopular(c Catalog, log *zap.Logger) http.HandlerFunc {
	return listHandler(c.Popular, log, "Failed to fetch popular media")
}

func listHandler(fetch func(context.Context, media.Kind) ([]media.Media, error), log *zap.Logger, failMsg string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		rid := httpserver.RequestIDFromContext(r.Context())
		kind, ok := pathKind(w, r, rid)
		if !ok {
			return
		}
		items, err := fetch(r.Context(), kind)
		if err != nil {
			writeCatalogError(w, log, rid, err, failMsg)
			return
		}
		api.WriteJSON(w, http.StatusOK, nonNil(items))
	}
}

// Search handles GET /api/search?q=
func Search(c Catalog, events *analytics.Publisher, log *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		rid := httpserver.RequestIDFromContext(r.Context())
		q := strings.TrimSpace(r.URL.Query().Get("q"))
		if q == "" {
			api.BadRequest(w, "MISSING_QUERY", "Search query required", rid)
			return
		}
		items, err := c.Search(r.Context(), q)
		if err != nil {
			writeCatalogError(w, log, rid, err, "Search failed")
			return
		}
		events.Publish(analytics.SubjectSearchPerformed, "search_performed", clientID(r), map[string]any{
			"query":   q,
			"results": len(items),
		})
		api.WriteJSON(w, http.StatusOK, nonNil(items))
	}
}

// GetMedia handles GET /api/media/{id}. With ?expand=seasons,similar the
// response wraps the record as {media, seasons, similar}.
func GetMedia(c Catalog, events *analytics.Publisher, log *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		rid := httpserver.RequestIDFromContext(r.Context())
		id, ok := pathID(w, r, rid, "id", "Invalid media ID")
		if !ok {
			return
		}

		var body any
		var m media.Media
		if expand := catalog.ParseExpand(r.URL.Query().Get("expand")); expand != (catalog.Expand{}) {
			d, err := c.Details(r.Context(), id, expand)
			if err != nil {
				writeCatalogError(w, log, rid, err, "Failed to fetch media details")
				return
			}
			body, m = d, d.Media
		} else {
			got, err := c.Get(r.Context(), id)
			if err != nil {
				writeCatalogError(w, log, rid, err, "Failed to fetch media details")
				return
			}
			body, m = got, got
		}

		events.Publish(analytics.SubjectMediaViewed, "media_viewed", clientID(r), map[string]any{
			"id":      m.ID,
			"tmdb_id": m.TMDBID,
			"type":    m.Type,
		})
		api.WriteJSON(w, http.StatusOK, body)
	}
}

// GetSeasons handles GET /api/media/{id}/seasons
func GetSeasons(c Catalog, log *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		rid := httpserver.RequestIDFromContext(r.Context())
		id, ok := pathID(w, r, rid, "id", "Invalid media ID")
		if !ok {
			return
		}
		seasons, err := c.Seasons(r.Context(), id)
		if err != nil {
			writeCatalogError(w, log, rid, err, "Failed to fetch seasons")
			return
		}
		api.WriteJSON(w, http.StatusOK, nonNil(seasons))
	}
}

// GetSimilar handles GET /api/media/{id}/similar
func GetSimilar(c Catalog, log *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		rid := httpserver.RequestIDFromContext(r.Context())
		id, ok := pathID(w, r, rid, "id", "Invalid media ID")
		if !ok {
			return
		}
		items, err := c.Similar(r.Context(), id)
		if err != nil {
			writeCatalogError(w, log, rid, err, "Failed to fetch similar media")
			return
		}
		api.WriteJSON(w, http.StatusOK, nonNil(items))
	}
}

// GetPlayer handles GET /api/media/{id}/player?season=&episode=
func GetPlayer(c Catalog, p PlayerURLs, events *analytics.Publisher, log *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		rid := httpserver.RequestIDFromContext(r.Context())
		id, ok := pathID(w, r, rid, "id", "Invalid media ID")
		if !ok {
			return
		}
		season, ok1 := queryInt(r, "season")
		episode, ok2 := queryInt(r, "episode")
		if !ok1 || !ok2 {
			api.BadRequest(w, "INVALID_EPISODE", "season and episode must be non-negative integers", rid)
			return
		}
		m, err := c.Get(r.Context(), id)
		if err != nil {
			writeCatalogError(w, log, rid, err, "Failed to build player URL")
			return
		}

		events.Publish(analytics.SubjectPlayerOpened, "player_opened", clientID(r), map[string]any{
			"id":      m.ID,
			"tmdb_id": m.TMDBID,
			"type":    m.Type,
			"season":  season,
			"episode": episode,
		})
		api.WriteJSON(w, http.StatusOK, map[string]string{"url": p.EmbedURL(m, season, episode)})
	}
}

// Resolve handles GET /api/resolve/{type}/{tmdbId}
func Resolve(c Catalog, log *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		rid := httpserver.RequestIDFromContext(r.Context())
		kind, ok := pathKind(w, r, rid)
		if !ok {
			return
		}
		tmdbID, ok := pathID(w, r, rid, "tmdbId", "Invalid TMDB ID")
		if !ok {
			return
		}
		m, err := c.Resolve(r.Context(), kind, tmdbID)
		if err != nil {
			writeCatalogError(w, log, rid, err, "Failed to resolve media")
			return
		}
		api.WriteJSON(w, http.StatusOK, m)
	}
}

// GetGenres handles GET /api/genres/{type}
func GetGenres(c Catalog, log *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		rid := httpserver.RequestIDFromContext(r.Context())
		kind, ok := pathKind(w, r, rid)
		if !ok {
			return
		}
		genres, err := c.Genres(r.Context(), kind)
		if err != nil {
			writeCatalogError(w, log, rid, err, "Failed to fetch genres")
			return
		}
		api.WriteJSON(w, http.StatusOK, nonNil(genres))
	}
}

// GetByGenre handles GET /api/genre/{type}/{genreId}. The upstream results
// are returned as a plain array; they are not normalized or stored.
func GetByGenre(c Catalog, log *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		rid := httpserver.RequestIDFromContext(r.Context())
		kind, ok := pathKind(w, r, rid)
		if !ok {
			return
		}
		genreID, ok := pathID(w, r, rid, "genreId", "Invalid genre ID")
		if !ok {
			return
		}
		page, err := c.ByGenre(r.Context(), kind, genreID)
		if err != nil {
			writeCatalogError(w, log, rid, err, "Failed to fetch media by genre")
			return
		}
		var results []json.RawMessage
		if page != nil {
			results = page.Results
		}
		api.WriteJSON(w, http.StatusOK, nonNil(results))
	}
}

func nonNil[T any](s []T) []T {
	if s == nil {
		return []T{}
	}
	return s
}
