// Package player builds third-party embed URLs for a media record.
package player

import (
	"fmt"
	"net/url"
	"strconv"
	"strings"

	"github.com/example/streambox/services/catalog/internal/media"
)

const DefaultBaseURL = "https://multiembed.mov/"

type Builder struct {
	base *url.URL
}

func New(baseURL string) (*Builder, error) {
	baseURL = strings.TrimSpace(baseURL)
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	u, err := url.Parse(baseURL)
	if err != nil {
		return nil, fmt.Errorf("player base url: %w", err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return nil, fmt.Errorf("player base url: unsupported scheme %q", u.Scheme)
	}
	return &Builder{base: u}, nil
}

// EmbedURL returns {base}?media_id=<tmdbId>&type=<kind>. For TV, season and
// episode are added when both are positive.
func (b *Builder) EmbedURL(m media.Media, season, episode int) string {
	u := *b.base
	q := url.Values{}
	q.Set("media_id", strconv.FormatInt(m.TMDBID, 10))
	q.Set("type", string(m.Type))
	if m.Type == media.KindTV && season > 0 && episode > 0 {
		q.Set("season", strconv.Itoa(season))
		q.Set("episode", strconv.Itoa(episode))
	}
	u.RawQuery = q.Encode()
	return u.String()
}
