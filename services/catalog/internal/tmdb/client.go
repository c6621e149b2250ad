package tmdb

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/sony/gobreaker"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/example/streambox/services/catalog/internal/media"
)

const DefaultBaseURL = "https://api.themoviedb.org/3"

// ErrNotFound matches any upstream 404 via errors.Is.
var ErrNotFound = errors.New("tmdb: not found")

// StatusError is returned for any non-200 upstream answer.
type StatusError struct {
	Status int
	Path   string
	Body   string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("tmdb: %s: status %d body=%q", e.Path, e.Status, e.Body)
}

func (e *StatusError) Is(target error) bool {
	return target == ErrNotFound && e.Status == http.StatusNotFound
}

// Client is a thin wrapper over the TMDB v3 REST API. It does not retry or cache.
type Client struct {
	BaseURL        string
	APIKey         string
	Language       string
	TrendingWindow string
	HTTPClient     *http.Client
	CB             *gobreaker.CircuitBreaker
	Log            *zap.Logger
	// SeasonConcurrency bounds parallel season fetches in Seasons.
	SeasonConcurrency int
}

// Option configures the Client.
type Option func(*Client)

func WithCircuitBreaker(cb *gobreaker.CircuitBreaker) Option {
	return func(c *Client) { c.CB = cb }
}

func WithLogger(log *zap.Logger) Option {
	return func(c *Client) { c.Log = log }
}

func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.HTTPClient = hc }
}

func WithTimeout(d time.Duration) Option {
	return func(c *Client) {
		if d > 0 {
			c.HTTPClient = &http.Client{Timeout: d}
		}
	}
}

func WithLanguage(lang string) Option {
	return func(c *Client) { c.Language = strings.TrimSpace(lang) }
}

func New(baseURL, apiKey string, opts ...Option) *Client {
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	c := &Client{
		BaseURL:           strings.TrimRight(baseURL, "/"),
		APIKey:            apiKey,
		TrendingWindow:    "week",
		HTTPClient:        &http.Client{Timeout: 10 * time.Second},
		Log:               zap.NewNop(),
		SeasonConcurrency: 4,
	}
	for _, o := range opts {
		o(c)
	}
	return c
}

// Trending returns /trending/{kind}/{window}.
func (c *Client) Trending(ctx context.Context, kind media.Kind) ([]Item, error) {
	window := c.TrendingWindow
	if window != "day" {
		window = "week"
	}
	return c.listItems(ctx, kind, "/trending/"+string(kind)+"/"+window, nil)
}

// Popular returns /{kind}/popular.
func (c *Client) Popular(ctx context.Context, kind media.Kind) ([]Item, error) {
	return c.listItems(ctx, kind, "/"+string(kind)+"/popular", nil)
}

// Similar returns /{kind}/{id}/similar.
func (c *Client) Similar(ctx context.Context, kind media.Kind, id int64) ([]Item, error) {
	return c.listItems(ctx, kind, "/"+string(kind)+"/"+strconv.FormatInt(id, 10)+"/similar", nil)
}

// Details returns a single Movie or Show.
func (c *Client) Details(ctx context.Context, kind media.Kind, id int64) (Item, error) {
	path := "/" + string(kind) + "/" + strconv.FormatInt(id, 10)
	switch kind {
	case media.KindMovie:
		m, err := getJSON[Movie](ctx, c, path, nil)
		if err != nil {
			return nil, err
		}
		return *m, nil
	case media.KindTV:
		s, err := getJSON[Show](ctx, c, path, nil)
		if err != nil {
			return nil, err
		}
		return *s, nil
	}
	return nil, fmt.Errorf("tmdb details: %w: %q", media.ErrInvalidKind, kind)
}

// Trailer returns the key of the first YouTube trailer, or "" when there is none.
func (c *Client) Trailer(ctx context.Context, kind media.Kind, id int64) (string, error) {
	if !kind.Valid() {
		return "", fmt.Errorf("tmdb trailer: %w: %q", media.ErrInvalidKind, kind)
	}
	out, err := getJSON[listResponse[video]](ctx, c, "/"+string(kind)+"/"+strconv.FormatInt(id, 10)+"/videos", nil)
	if err != nil {
		return "", err
	}
	for _, v := range out.Results {
		if v.Type == "Trailer" && v.Site == "YouTube" && v.Key != "" {
			return v.Key, nil
		}
	}
	return "", nil
}

// SearchMulti searches movies and shows in one call; other hit types are dropped.
func (c *Client) SearchMulti(ctx context.Context, query string) ([]Item, error) {
	q := url.Values{}
	q.Set("query", query)
	q.Set("include_adult", "false")
	out, err := getJSON[listResponse[multiResult]](ctx, c, "/search/multi", q)
	if err != nil {
		return nil, err
	}
	items := make([]Item, 0, len(out.Results))
	for _, r := range out.Results {
		if it, ok := r.item(); ok {
			items = append(items, it)
		}
	}
	return items, nil
}

// Genres returns /genre/{kind}/list.
func (c *Client) Genres(ctx context.Context, kind media.Kind) ([]media.Genre, error) {
	if !kind.Valid() {
		return nil, fmt.Errorf("tmdb genres: %w: %q", media.ErrInvalidKind, kind)
	}
	out, err := getJSON[struct {
		Genres []media.Genre `json:"genres"`
	}](ctx, c, "/genre/"+string(kind)+"/list", nil)
	if err != nil {
		return nil, err
	}
	if out.Genres == nil {
		return []media.Genre{}, nil
	}
	return out.Genres, nil
}

// DiscoverByGenre returns /discover/{kind}?with_genres=genreID untouched.
func (c *Client) DiscoverByGenre(ctx context.Context, kind media.Kind, genreID int64) (*Page, error) {
	if !kind.Valid() {
		return nil, fmt.Errorf("tmdb discover: %w: %q", media.ErrInvalidKind, kind)
	}
	q := url.Values{}
	q.Set("with_genres", strconv.FormatInt(genreID, 10))
	q.Set("include_adult", "false")
	page, err := getJSON[Page](ctx, c, "/discover/"+string(kind), q)
	if err != nil {
		return nil, err
	}
	if page.Results == nil {
		page.Results = []json.RawMessage{}
	}
	return page, nil
}

// Seasons lists every season of a show with its episodes. Seasons are fetched
// concurrently; the result keeps the upstream season order.
func (c *Client) Seasons(ctx context.Context, showID int64) ([]media.Season, error) {
	base := "/tv/" + strconv.FormatInt(showID, 10)
	show, err := getJSON[showSeasons](ctx, c, base, nil)
	if err != nil {
		return nil, err
	}

	out := make([]media.Season, len(show.Seasons))
	g, gctx := errgroup.WithContext(ctx)
	if c.SeasonConcurrency > 0 {
		g.SetLimit(c.SeasonConcurrency)
	}
	for i, s := range show.Seasons {
		g.Go(func() error {
			detail, err := getJSON[seasonDetail](gctx, c, base+"/season/"+strconv.Itoa(s.SeasonNumber), nil)
			if err != nil {
				return fmt.Errorf("season %d: %w", s.SeasonNumber, err)
			}
			episodes := make([]media.Episode, 0, len(detail.Episodes))
			for _, e := range detail.Episodes {
				episodes = append(episodes, media.Episode{
					Number:    e.EpisodeNumber,
					Name:      e.Name,
					Overview:  e.Overview,
					StillPath: e.StillPath,
				})
			}
			out[i] = media.Season{Number: s.SeasonNumber, Name: s.Name, Episodes: episodes}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *Client) listItems(ctx context.Context, kind media.Kind, path string, q url.Values) ([]Item, error) {
	switch kind {
	case media.KindMovie:
		out, err := getJSON[listResponse[Movie]](ctx, c, path, q)
		if err != nil {
			return nil, err
		}
		items := make([]Item, 0, len(out.Results))
		for _, m := range out.Results {
			items = append(items, m)
		}
		return items, nil
	case media.KindTV:
		out, err := getJSON[listResponse[Show]](ctx, c, path, q)
		if err != nil {
			return nil, err
		}
		items := make([]Item, 0, len(out.Results))
		for _, s := range out.Results {
			items = append(items, s)
		}
		return items, nil
	}
	return nil, fmt.Errorf("tmdb list: %w: %q", media.ErrInvalidKind, kind)
}

func getJSON[T any](ctx context.Context, c *Client, path string, q url.Values) (*T, error) {
	if c.CB == nil {
		return doJSON[T](ctx, c, path, q)
	}
	result, err := c.CB.Execute(func() (interface{}, error) {
		return doJSON[T](ctx, c, path, q)
	})
	if err != nil {
		return nil, err
	}
	return result.(*T), nil
}

func doJSON[T any](ctx context.Context, c *Client, path string, q url.Values) (*T, error) {
	if q == nil {
		q = url.Values{}
	}
	q.Set("api_key", c.APIKey)
	if c.Language != "" {
		q.Set("language", c.Language)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.BaseURL+path+"?"+q.Encode(), nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("User-Agent", "streambox-catalog/1.0")

	start := time.Now()
	resp, err := c.HTTPClient.Do(req)
	if err != nil {
		// *url.Error carries the full request URL, api_key included.
		var ue *url.Error
		if errors.As(err, &ue) {
			err = ue.Err
		}
		return nil, fmt.Errorf("tmdb: %s: %w", path, err)
	}
	defer resp.Body.Close()

	b, err := io.ReadAll(io.LimitReader(resp.Body, 4<<20))
	if err != nil {
		return nil, fmt.Errorf("tmdb: %s: read body: %w", path, err)
	}
	c.Log.Debug("tmdb request", zap.String("path", path), zap.Int("status", resp.StatusCode), zap.Duration("duration", time.Since(start)))

	if resp.StatusCode != http.StatusOK {
		return nil, &StatusError{Status: resp.StatusCode, Path: path, Body: string(b[:min(len(b), 200)])}
	}

	var out T
	if err := json.Unmarshal(b, &out); err != nil {
		return nil, fmt.Errorf("tmdb: %s: decode: %w", path, err)
	}
	return &out, nil
}
