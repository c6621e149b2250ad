package handlers

import (
	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/example/streambox/internal/platform/analytics"
	"github.com/example/streambox/services/catalog/internal/favorites"
)

// Deps are the collaborators of the /api routes.
type Deps struct {
	Catalog   Catalog
	Favorites favorites.Store
	Player    PlayerURLs
	Events    *analytics.Publisher
	Log       *zap.Logger
}

// Register mounts every /api route on r.
func Register(r chi.Router, d Deps) {
	log := d.Log
	if log == nil {
		log = zap.NewNop()
	}
	r.Route("/api", func(r chi.Router) {
		r.Get("/trending/{type}", GetTrending(d.Catalog, log))
		r.Get("/popular/{type}", GetPopular(d.Catalog, log))
		r.Get("/search", Search(d.Catalog, d.Events, log))

		r.Get("/media/{id}", GetMedia(d.Catalog, d.Events, log))
		r.Get("/media/{id}/seasons", GetSeasons(d.Catalog, log))
		r.Get("/media/{id}/similar", GetSimilar(d.Catalog, log))
		r.Get("/media/{id}/player", GetPlayer(d.Catalog, d.Player, d.Events, log))

		r.Get("/resolve/{type}/{tmdbId}", Resolve(d.Catalog, log))
		r.Get("/genres/{type}", GetGenres(d.Catalog, log))
		r.Get("/genre/{type}/{genreId}", GetByGenre(d.Catalog, log))

		r.Get("/favorites", ListFavorites(d.Favorites, log))
		r.Post("/favorites", AddFavorite(d.Favorites, d.Catalog, d.Events, log))
		r.Get("/favorites/genres", FavoriteGenres(d.Favorites, log))
		r.Get("/favorites/{type}/{tmdbId}", CheckFavorite(d.Favorites, log))
		r.Delete("/favorites/{type}/{tmdbId}", RemoveFavorite(d.Favorites, log))
	})
}
