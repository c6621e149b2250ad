// Package normalize turns raw TMDB movies and shows into media.Media records.
//
// Missing optional fields become nil rather than zero values, so clients can
// tell "unknown" apart from "zero". A vote average or popularity of exactly 0
// is treated as missing, matching what TMDB returns for unrated titles.
package normalize

import (
	"math"
	"strconv"
	"strings"
	"time"

	"github.com/example/streambox/services/catalog/internal/media"
	"github.com/example/streambox/services/catalog/internal/tmdb"
)

// VoteScale maps TMDB's 0..10 vote average onto the 0..100 integer rating.
const VoteScale = 10

// GenreNames maps TMDB genre ids to labels for one kind.
type GenreNames map[int64]string

// NewGenreNames indexes a genre list by id.
func NewGenreNames(genres []media.Genre) GenreNames {
	out := make(GenreNames, len(genres))
	for _, g := range genres {
		out[g.ID] = g.Name
	}
	return out
}

// Label returns the genre name, or the numeric id when the name is unknown.
func (n GenreNames) Label(id int64) string {
	if name, ok := n[id]; ok && name != "" {
		return name
	}
	return strconv.FormatInt(id, 10)
}

// Movie converts a TMDB movie. trailerKey may be empty.
func Movie(m tmdb.Movie, names GenreNames, trailerKey string, now time.Time) media.Media {
	return media.Media{
		TMDBID:       m.ID,
		Type:         media.KindMovie,
		Title:        m.Title,
		Overview:     m.Overview,
		PosterPath:   nonEmpty(m.PosterPath),
		BackdropPath: nonEmpty(m.BackdropPath),
		ReleaseDate:  optString(m.ReleaseDate),
		VoteAverage:  Vote(m.VoteAverage),
		Popularity:   Popularity(m.Popularity),
		Genres:       genreLabels(m.GenreIDs, m.Genres, names),
		TrailerKey:   optString(trailerKey),
		LastUpdated:  now.UTC(),
	}
}

// Show converts a TMDB TV show. Name becomes Title, FirstAirDate becomes ReleaseDate.
func Show(s tmdb.Show, names GenreNames, trailerKey string, now time.Time) media.Media {
	return media.Media{
		TMDBID:       s.ID,
		Type:         media.KindTV,
		Title:        s.Name,
		Overview:     s.Overview,
		PosterPath:   nonEmpty(s.PosterPath),
		BackdropPath: nonEmpty(s.BackdropPath),
		ReleaseDate:  optString(s.FirstAirDate),
		VoteAverage:  Vote(s.VoteAverage),
		Popularity:   Popularity(s.Popularity),
		Genres:       genreLabels(s.GenreIDs, s.Genres, names),
		TrailerKey:   optString(trailerKey),
		LastUpdated:  now.UTC(),
	}
}

// Item dispatches on the concrete variant. ok is false for unknown types.
func Item(it tmdb.Item, names GenreNames, trailerKey string, now time.Time) (media.Media, bool) {
	switch v := it.(type) {
	case tmdb.Movie:
		return Movie(v, names, trailerKey, now), true
	case *tmdb.Movie:
		return Movie(*v, names, trailerKey, now), true
	case tmdb.Show:
		return Show(v, names, trailerKey, now), true
	case *tmdb.Show:
		return Show(*v, names, trailerKey, now), true
	}
	return media.Media{}, false
}

// Vote returns round(v*10), or nil when v is missing or zero.
func Vote(v *float64) *int {
	if v == nil || *v == 0 {
		return nil
	}
	r := int(math.Round(*v * VoteScale))
	return &r
}

// Popularity returns round(p), or nil when p is missing or zero.
func Popularity(p *float64) *int {
	if p == nil || *p == 0 {
		return nil
	}
	r := int(math.Round(*p))
	return &r
}

// genreLabels prefers the embedded detail genres, falling back to ids.
func genreLabels(ids []int64, detail []media.Genre, names GenreNames) []string {
	out := make([]string, 0, max(len(ids), len(detail)))
	if len(detail) > 0 {
		for _, g := range detail {
			if g.Name != "" {
				out = append(out, g.Name)
			} else {
				out = append(out, names.Label(g.ID))
			}
		}
		return out
	}
	for _, id := range ids {
		out = append(out, names.Label(id))
	}
	return out
}

func optString(s string) *string {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil
	}
	return &s
}

func nonEmpty(p *string) *string {
	if p == nil {
		return nil
	}
	return optString(*p)
}
