// Package media holds the unified catalog record shared by the metadata
// client, the normalizer, the stores and the HTTP layer.
package media

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

// Kind tags a record as a movie or a TV show. The values double as TMDB path segments.
type Kind string

const (
	KindMovie Kind = "movie"
	KindTV    Kind = "tv"
)

// ErrInvalidKind is returned by ParseKind for anything other than "movie" or "tv".
var ErrInvalidKind = errors.New("invalid media type")

func ParseKind(s string) (Kind, error) {
	switch Kind(strings.ToLower(strings.TrimSpace(s))) {
	case KindMovie:
		return KindMovie, nil
	case KindTV:
		return KindTV, nil
	}
	return "", fmt.Errorf("%w: %q", ErrInvalidKind, s)
}

func (k Kind) Valid() bool { return k == KindMovie || k == KindTV }

// Media is the unified representation of a movie or TV show.
//
// ID is assigned by the store on insert and is only meaningful to the store
// that issued it. TMDBID and Type identify the upstream title; the pair is not
// enforced unique, so one title can be cached under several IDs.
type Media struct {
	ID           int64     `json:"id"`
	TMDBID       int64     `json:"tmdbId"`
	Type         Kind      `json:"type"`
	Title        string    `json:"title"`
	Overview     string    `json:"overview"`
	PosterPath   *string   `json:"posterPath"`
	BackdropPath *string   `json:"backdropPath"`
	ReleaseDate  *string   `json:"releaseDate"`
	VoteAverage  *int      `json:"voteAverage"`
	Popularity   *int      `json:"popularity"`
	Genres       []string  `json:"genres"`
	TrailerKey   *string   `json:"trailerKey"`
	LastUpdated  time.Time `json:"lastUpdated"`
}

// SameTitle reports whether m and o point at the same upstream title.
func (m Media) SameTitle(o Media) bool {
	return m.TMDBID == o.TMDBID && m.Type == o.Type
}

// Clone returns a copy that shares no slices or pointers with m.
func (m Media) Clone() Media {
	out := m
	out.PosterPath = cloneString(m.PosterPath)
	out.BackdropPath = cloneString(m.BackdropPath)
	out.ReleaseDate = cloneString(m.ReleaseDate)
	out.TrailerKey = cloneString(m.TrailerKey)
	out.VoteAverage = cloneInt(m.VoteAverage)
	out.Popularity = cloneInt(m.Popularity)
	if m.Genres != nil {
		out.Genres = append([]string(nil), m.Genres...)
	}
	return out
}

// Genre is a TMDB genre as returned by /genre/{type}/list.
type Genre struct {
	ID   int64  `json:"id"`
	Name string `json:"name"`
}

// Episode is one entry of a season listing.
type Episode struct {
	Number    int     `json:"episode_number"`
	Name      string  `json:"name"`
	Overview  string  `json:"overview,omitempty"`
	StillPath *string `json:"still_path,omitempty"`
}

// Season is fetched per request and never cached.
type Season struct {
	Number   int       `json:"season_number"`
	Name     string    `json:"name"`
	Episodes []Episode `json:"episodes"`
}

func cloneString(p *string) *string {
	if p == nil {
		return nil
	}
	v := *p
	return &v
}

func cloneInt(p *int) *int {
	if p == nil {
		return nil
	}
	v := *p
	return &v
}
