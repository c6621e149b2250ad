package tmdb

import (
	"encoding/json"

	"github.com/example/streambox/services/catalog/internal/media"
)

// Item is a raw upstream record: either a Movie or a Show.
type Item interface {
	Kind() media.Kind
	ExternalID() int64
}

// Movie is the TMDB movie shape shared by list and detail endpoints.
// List endpoints fill GenreIDs, detail endpoints fill Genres.
type Movie struct {
	ID           int64         `json:"id"`
	Title        string        `json:"title"`
	Overview     string        `json:"overview"`
	PosterPath   *string       `json:"poster_path"`
	BackdropPath *string       `json:"backdrop_path"`
	ReleaseDate  string        `json:"release_date"`
	VoteAverage  *float64      `json:"vote_average"`
	Popularity   *float64      `json:"popularity"`
	GenreIDs     []int64       `json:"genre_ids"`
	Genres       []media.Genre `json:"genres"`
}

func (Movie) Kind() media.Kind    { return media.KindMovie }
func (m Movie) ExternalID() int64 { return m.ID }

// Show is the TMDB TV shape. It differs from Movie in Name and FirstAirDate.
type Show struct {
	ID           int64         `json:"id"`
	Name         string        `json:"name"`
	Overview     string        `json:"overview"`
	PosterPath   *string       `json:"poster_path"`
	BackdropPath *string       `json:"backdrop_path"`
	FirstAirDate string        `json:"first_air_date"`
	VoteAverage  *float64      `json:"vote_average"`
	Popularity   *float64      `json:"popularity"`
	GenreIDs     []int64       `json:"genre_ids"`
	Genres       []media.Genre `json:"genres"`
}

func (Show) Kind() media.Kind    { return media.KindTV }
func (s Show) ExternalID() int64 { return s.ID }

// Page is an upstream list returned untouched to the caller.
type Page struct {
	Page         int               `json:"page"`
	Results      []json.RawMessage `json:"results"`
	TotalPages   int               `json:"total_pages"`
	TotalResults int               `json:"total_results"`
}

type listResponse[T any] struct {
	Page    int `json:"page"`
	Results []T `json:"results"`
}

// multiResult is one hit of /search/multi; media_type selects the variant.
type multiResult struct {
	MediaType    string   `json:"media_type"`
	ID           int64    `json:"id"`
	Title        string   `json:"title"`
	Name         string   `json:"name"`
	Overview     string   `json:"overview"`
	PosterPath   *string  `json:"poster_path"`
	BackdropPath *string  `json:"backdrop_path"`
	ReleaseDate  string   `json:"release_date"`
	FirstAirDate string   `json:"first_air_date"`
	VoteAverage  *float64 `json:"vote_average"`
	Popularity   *float64 `json:"popularity"`
	GenreIDs     []int64  `json:"genre_ids"`
}

// item converts the hit into its variant; people and collections are dropped.
func (r multiResult) item() (Item, bool) {
	switch media.Kind(r.MediaType) {
	case media.KindMovie:
		return Movie{
			ID: r.ID, Title: r.Title, Overview: r.Overview,
			PosterPath: r.PosterPath, BackdropPath: r.BackdropPath,
			ReleaseDate: r.ReleaseDate, VoteAverage: r.VoteAverage,
			Popularity: r.Popularity, GenreIDs: r.GenreIDs,
		}, true
	case media.KindTV:
		return Show{
			ID: r.ID, Name: r.Name, Overview: r.Overview,
			PosterPath: r.PosterPath, BackdropPath: r.BackdropPath,
			FirstAirDate: r.FirstAirDate, VoteAverage: r.VoteAverage,
			Popularity: r.Popularity, GenreIDs: r.GenreIDs,
		}, true
	}
	return nil, false
}

type video struct {
	Key  string `json:"key"`
	Site string `json:"site"`
	Type string `json:"type"`
}

type showSeasons struct {
	Seasons []struct {
		SeasonNumber int    `json:"season_number"`
		Name         string `json:"name"`
	} `json:"seasons"`
}

type seasonDetail struct {
	Episodes []struct {
		EpisodeNumber int     `json:"episode_number"`
		Name          string  `json:"name"`
		Overview      string  `json:"overview"`
		StillPath     *string `json:"still_path"`
	} `json:"episodes"`
}
