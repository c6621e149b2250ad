package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/nats-io/nats.go"
	"go.uber.org/zap"

	"github.com/example/streambox/internal/platform/analytics"
	"github.com/example/streambox/internal/platform/api"
	"github.com/example/streambox/services/catalog/internal/catalog"
	"github.com/example/streambox/services/catalog/internal/favorites"
	"github.com/example/streambox/services/catalog/internal/media"
	"github.com/example/streambox/services/catalog/internal/player"
	"github.com/example/streambox/services/catalog/internal/tmdb"
)

type stubCatalog struct {
	list      []media.Media
	listErr   error
	records   map[int64]media.Media
	details   catalog.Details
	seasons   []media.Season
	genres    []media.Genre
	page      *tmdb.Page
	gotExpand catalog.Expand
	gotQuery  string
}

func (s *stubCatalog) Trending(_ context.Context, kind media.Kind) ([]media.Media, error) {
	return s.list, s.listErr
}

func (s *stubCatalog) Popular(_ context.Context, kind media.Kind) ([]media.Media, error) {
	return s.list, s.listErr
}

func (s *stubCatalog) Search(_ context.Context, q string) ([]media.Media, error) {
	s.gotQuery = q
	return s.list, s.listErr
}

func (s *stubCatalog) Get(_ context.Context, id int64) (media.Media, error) {
	m, ok := s.records[id]
	if !ok {
		return media.Media{}, catalog.ErrNotFound
	}
	return m, nil
}

func (s *stubCatalog) Details(ctx context.Context, id int64, e catalog.Expand) (catalog.Details, error) {
	s.gotExpand = e
	if _, err := s.Get(ctx, id); err != nil {
		return catalog.Details{}, err
	}
	return s.details, nil
}

func (s *stubCatalog) Seasons(ctx context.Context, id int64) ([]media.Season, error) {
	if _, err := s.Get(ctx, id); err != nil {
		return nil, err
	}
	return s.seasons, nil
}

func (s *stubCatalog) Similar(ctx context.Context, id int64) ([]media.Media, error) {
	if _, err := s.Get(ctx, id); err != nil {
		return nil, err
	}
	return s.list, nil
}

func (s *stubCatalog) Resolve(_ context.Context, kind media.Kind, tmdbID int64) (media.Media, error) {
	for _, m := range s.records {
		if m.TMDBID == tmdbID && m.Type == kind {
			return m, nil
		}
	}
	return media.Media{}, catalog.ErrNotFound
}

func (s *stubCatalog) Genres(context.Context, media.Kind) ([]media.Genre, error) {
	return s.genres, s.listErr
}

func (s *stubCatalog) ByGenre(context.Context, media.Kind, int64) (*tmdb.Page, error) {
	return s.page, s.listErr
}

type stubJetStream struct {
	nats.JetStreamContext

	mu       sync.Mutex
	subjects []string
}

func (s *stubJetStream) PublishAsync(subj string, _ []byte, _ ...nats.PubOpt) (nats.PubAckFuture, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.subjects = append(s.subjects, subj)
	return nil, nil
}

func chiReq(method, url string, body io.Reader, params map[string]string) *http.Request {
	req := httptest.NewRequest(method, url, body)
	rctx := chi.NewRouteContext()
	for k, v := range params {
		rctx.URLParams.Add(k, v)
	}
	return req.WithContext(context.WithValue(req.Context(), chi.RouteCtxKey, rctx))
}

func decodeError(t *testing.T, rr *httptest.ResponseRecorder) api.ErrorResponse {
	t.Helper()
	var e api.ErrorResponse
	if err := json.NewDecoder(rr.Body).Decode(&e); err != nil {
		t.Fatalf("decode error body: %v", err)
	}
	return e
}

func matrix() media.Media {
	return media.Media{ID: 1, TMDBID: 603, Type: media.KindMovie, Title: "The Matrix", Genres: []string{"Action"}}
}

func thrones() media.Media {
	return media.Media{ID: 2, TMDBID: 1399, Type: media.KindTV, Title: "Game of Thrones", Genres: []string{"Drama"}}
}

func TestTrending_ReturnsArray(t *testing.T) {
	for _, kind := range []string{"movie", "tv"} {
		stub := &stubCatalog{}
		rr := httptest.NewRecorder()
		GetTrending(stub, zap.NewNop()).ServeHTTP(rr, chiReq(http.MethodGet, "/api/trending/"+kind, nil, map[string]string{"type": kind}))

		if rr.Code != http.StatusOK {
			t.Fatalf("%s: expected 200, got %d", kind, rr.Code)
		}
		if body := strings.TrimSpace(rr.Body.String()); body != "[]" {
			t.Fatalf("%s: expected empty array, got %s", kind, body)
		}
	}
}

func TestTrending_InvalidType(t *testing.T) {
	rr := httptest.NewRecorder()
	GetTrending(&stubCatalog{}, zap.NewNop()).ServeHTTP(rr, chiReq(http.MethodGet, "/api/trending/anime", nil, map[string]string{"type": "anime"}))

	if rr.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", rr.Code)
	}
	if e := decodeError(t, rr); e.Code != "INVALID_TYPE" {
		t.Fatalf("unexpected error %+v", e)
	}
}

func TestPopular_UpstreamFailureIsGeneric(t *testing.T) {
	stub := &stubCatalog{listErr: errors.New("tmdb: /movie/popular: status 401 body=\"invalid api key\"")}
	rr := httptest.NewRecorder()
	GetPopular(stub, zap.NewNop()).ServeHTTP(rr, chiReq(http.MethodGet, "/api/popular/movie", nil, map[string]string{"type": "movie"}))

	if rr.Code != http.StatusInternalServerError {
		t.Fatalf("expected 500, got %d", rr.Code)
	}
	e := decodeError(t, rr)
	if e.Message != "Failed to fetch popular media" {
		t.Fatalf("unexpected message %q", e.Message)
	}
	if strings.Contains(rr.Body.String(), "api key") {
		t.Fatal("upstream cause leaked into the response")
	}
}

func TestGetMedia_InvalidID(t *testing.T) {
	for _, id := range []string{"abc", "1.5", "12x", ""} {
		rr := httptest.NewRecorder()
		GetMedia(&stubCatalog{}, nil, zap.NewNop()).ServeHTTP(rr, chiReq(http.MethodGet, "/api/media/"+id, nil, map[string]string{"id": id}))
		if rr.Code != http.StatusBadRequest {
			t.Fatalf("id %q: expected 400, got %d", id, rr.Code)
		}
		if e := decodeError(t, rr); e.Message != "Invalid media ID" {
			t.Fatalf("id %q: unexpected message %q", id, e.Message)
		}
	}
}

func TestGetMedia_NotFound(t *testing.T) {
	rr := httptest.NewRecorder()
	GetMedia(&stubCatalog{}, nil, zap.NewNop()).ServeHTTP(rr, chiReq(http.MethodGet, "/api/media/42", nil, map[string]string{"id": "42"}))

	if rr.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", rr.Code)
	}
	if e := decodeError(t, rr); e.Message != "Media not found" {
		t.Fatalf("unexpected message %q", e.Message)
	}
}

func TestGetMedia_NonPositiveIDIsNotFound(t *testing.T) {
	stub := &stubCatalog{records: map[int64]media.Media{1: matrix()}}
	for _, id := range []string{"0", "-3"} {
		rr := httptest.NewRecorder()
		GetMedia(stub, nil, zap.NewNop()).ServeHTTP(rr, chiReq(http.MethodGet, "/api/media/"+id, nil, map[string]string{"id": id}))
		if rr.Code != http.StatusNotFound {
			t.Fatalf("id %q: expected 404, got %d", id, rr.Code)
		}
		if e := decodeError(t, rr); e.Message != "Media not found" {
			t.Fatalf("id %q: unexpected message %q", id, e.Message)
		}
	}
}

func TestGetMedia_OKPublishesView(t *testing.T) {
	js := &stubJetStream{}
	stub := &stubCatalog{records: map[int64]media.Media{1: matrix()}}
	rr := httptest.NewRecorder()
	GetMedia(stub, analytics.New(js, nil), zap.NewNop()).ServeHTTP(rr, chiReq(http.MethodGet, "/api/media/1", nil, map[string]string{"id": "1"}))

	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rr.Code, rr.Body.String())
	}
	var m media.Media
	if err := json.NewDecoder(rr.Body).Decode(&m); err != nil {
		t.Fatal(err)
	}
	if m.ID != 1 || m.TMDBID != 603 || m.Title != "The Matrix" {
		t.Fatalf("unexpected media %+v", m)
	}
	if len(js.subjects) != 1 || js.subjects[0] != analytics.SubjectMediaViewed {
		t.Fatalf("expected a media_viewed event, got %v", js.subjects)
	}
}

func TestGetMedia_JSONFieldNames(t *testing.T) {
	stub := &stubCatalog{records: map[int64]media.Media{1: matrix()}}
	rr := httptest.NewRecorder()
	GetMedia(stub, nil, zap.NewNop()).ServeHTTP(rr, chiReq(http.MethodGet, "/api/media/1", nil, map[string]string{"id": "1"}))

	var raw map[string]any
	if err := json.NewDecoder(rr.Body).Decode(&raw); err != nil {
		t.Fatal(err)
	}
	for _, k := range []string{"id", "tmdbId", "type", "title", "posterPath", "backdropPath", "releaseDate", "voteAverage", "popularity", "genres", "trailerKey", "lastUpdated"} {
		if _, ok := raw[k]; !ok {
			t.Fatalf("missing field %q in %v", k, raw)
		}
	}
	if raw["posterPath"] != nil || raw["voteAverage"] != nil {
		t.Fatalf("missing optionals must serialize as null: %v", raw)
	}
}

func TestGetMedia_Expand(t *testing.T) {
	stub := &stubCatalog{
		records: map[int64]media.Media{2: thrones()},
		details: catalog.Details{Media: thrones(), Seasons: []media.Season{{Number: 1, Name: "Season 1"}}},
	}
	rr := httptest.NewRecorder()
	GetMedia(stub, nil, zap.NewNop()).ServeHTTP(rr, chiReq(http.MethodGet, "/api/media/2?expand=seasons", nil, map[string]string{"id": "2"}))

	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rr.Code)
	}
	if !stub.gotExpand.Seasons || stub.gotExpand.Similar {
		t.Fatalf("unexpected expand %+v", stub.gotExpand)
	}
	var d catalog.Details
	if err := json.NewDecoder(rr.Body).Decode(&d); err != nil {
		t.Fatal(err)
	}
	if d.Media.ID != 2 || len(d.Seasons) != 1 {
		t.Fatalf("unexpected details %+v", d)
	}
}

func TestGetMedia_UnknownExpandKeepsPlainShape(t *testing.T) {
	stub := &stubCatalog{records: map[int64]media.Media{1: matrix()}}
	rr := httptest.NewRecorder()
	GetMedia(stub, nil, zap.NewNop()).ServeHTTP(rr, chiReq(http.MethodGet, "/api/media/1?expand=foo", nil, map[string]string{"id": "1"}))

	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rr.Code)
	}
	var raw map[string]any
	if err := json.NewDecoder(rr.Body).Decode(&raw); err != nil {
		t.Fatal(err)
	}
	if _, wrapped := raw["media"]; wrapped {
		t.Fatalf("unknown expansion must not wrap the record: %v", raw)
	}
	if raw["title"] != "The Matrix" {
		t.Fatalf("unexpected body %v", raw)
	}
	if stub.gotExpand != (catalog.Expand{}) {
		t.Fatalf("details should not be requested, got %+v", stub.gotExpand)
	}
}

func TestGetSimilar(t *testing.T) {
	stub := &stubCatalog{
		records: map[int64]media.Media{1: matrix()},
		list:    []media.Media{{ID: 5, TMDBID: 604, Type: media.KindMovie, Title: "Reloaded"}},
	}
	rr := httptest.NewRecorder()
	GetSimilar(stub, zap.NewNop()).ServeHTTP(rr, chiReq(http.MethodGet, "/api/media/1/similar", nil, map[string]string{"id": "1"}))

	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rr.Code)
	}
	var out []media.Media
	if err := json.NewDecoder(rr.Body).Decode(&out); err != nil {
		t.Fatal(err)
	}
	if len(out) != 1 || out[0].TMDBID != 604 {
		t.Fatalf("unexpected similar list %+v", out)
	}
}

func TestGetSimilar_EmptyAndMissing(t *testing.T) {
	stub := &stubCatalog{records: map[int64]media.Media{1: matrix()}}

	rr := httptest.NewRecorder()
	GetSimilar(stub, zap.NewNop()).ServeHTTP(rr, chiReq(http.MethodGet, "/api/media/1/similar", nil, map[string]string{"id": "1"}))
	if rr.Code != http.StatusOK || strings.TrimSpace(rr.Body.String()) != "[]" {
		t.Fatalf("expected empty array, got %d %s", rr.Code, rr.Body.String())
	}

	rr = httptest.NewRecorder()
	GetSimilar(stub, zap.NewNop()).ServeHTTP(rr, chiReq(http.MethodGet, "/api/media/9/similar", nil, map[string]string{"id": "9"}))
	if rr.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", rr.Code)
	}
}

func TestSearch_MissingQuery(t *testing.T) {
	rr := httptest.NewRecorder()
	Search(&stubCatalog{}, nil, zap.NewNop()).ServeHTTP(rr, chiReq(http.MethodGet, "/api/search?q=%20", nil, nil))

	if rr.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", rr.Code)
	}
	if e := decodeError(t, rr); e.Message != "Search query required" {
		t.Fatalf("unexpected message %q", e.Message)
	}
}

func TestSearch_OK(t *testing.T) {
	stub := &stubCatalog{list: []media.Media{matrix()}}
	rr := httptest.NewRecorder()
	Search(stub, nil, zap.NewNop()).ServeHTTP(rr, chiReq(http.MethodGet, "/api/search?q=matrix", nil, nil))

	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rr.Code)
	}
	if stub.gotQuery != "matrix" {
		t.Fatalf("query not forwarded: %q", stub.gotQuery)
	}
	var out []media.Media
	if err := json.NewDecoder(rr.Body).Decode(&out); err != nil {
		t.Fatal(err)
	}
	if len(out) != 1 {
		t.Fatalf("expected 1 result, got %d", len(out))
	}
}

func TestGetSeasons_MovieEmpty(t *testing.T) {
	stub := &stubCatalog{records: map[int64]media.Media{1: matrix()}}
	rr := httptest.NewRecorder()
	GetSeasons(stub, zap.NewNop()).ServeHTTP(rr, chiReq(http.MethodGet, "/api/media/1/seasons", nil, map[string]string{"id": "1"}))

	if rr.Code != http.StatusOK || strings.TrimSpace(rr.Body.String()) != "[]" {
		t.Fatalf("expected empty array, got %d %s", rr.Code, rr.Body.String())
	}
}

func TestGetPlayer(t *testing.T) {
	b, _ := player.New("")
	stub := &stubCatalog{records: map[int64]media.Media{2: thrones()}}
	rr := httptest.NewRecorder()
	GetPlayer(stub, b, nil, zap.NewNop()).ServeHTTP(rr, chiReq(http.MethodGet, "/api/media/2/player?season=1&episode=3", nil, map[string]string{"id": "2"}))

	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rr.Code)
	}
	var out map[string]string
	_ = json.NewDecoder(rr.Body).Decode(&out)
	if out["url"] != "https://multiembed.mov/?episode=3&media_id=1399&season=1&type=tv" {
		t.Fatalf("unexpected url %q", out["url"])
	}
}

func TestGetPlayer_BadEpisode(t *testing.T) {
	b, _ := player.New("")
	rr := httptest.NewRecorder()
	GetPlayer(&stubCatalog{}, b, nil, zap.NewNop()).ServeHTTP(rr, chiReq(http.MethodGet, "/api/media/2/player?season=x", nil, map[string]string{"id": "2"}))
	if rr.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", rr.Code)
	}
}

func TestResolve_BadTMDBID(t *testing.T) {
	rr := httptest.NewRecorder()
	Resolve(&stubCatalog{}, zap.NewNop()).ServeHTTP(rr, chiReq(http.MethodGet, "/api/resolve/movie/x", nil, map[string]string{"type": "movie", "tmdbId": "x"}))
	if rr.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", rr.Code)
	}
}

func newRouter(stub *stubCatalog, fav favorites.Store) http.Handler {
	b, _ := player.New("")
	r := chi.NewRouter()
	Register(r, Deps{Catalog: stub, Favorites: fav, Player: b, Log: zap.NewNop()})
	return r
}

func doReq(h http.Handler, method, url, client, body string) *httptest.ResponseRecorder {
	var rdr io.Reader
	if body != "" {
		rdr = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, url, rdr)
	if client != "" {
		req.Header.Set(clientIDHeader, client)
	}
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, req)
	return rr
}

func TestFavorites_AddTwiceDoesNotDuplicate(t *testing.T) {
	h := newRouter(&stubCatalog{}, favorites.NewInMemoryStore())
	body := `{"tmdbId":603,"type":"movie","title":"The Matrix","genres":["Action"]}`

	if rr := doReq(h, http.MethodPost, "/api/favorites", "c1", body); rr.Code != http.StatusCreated {
		t.Fatalf("first add: expected 201, got %d %s", rr.Code, rr.Body.String())
	}
	if rr := doReq(h, http.MethodPost, "/api/favorites", "c1", body); rr.Code != http.StatusOK {
		t.Fatalf("second add: expected 200, got %d", rr.Code)
	}

	rr := doReq(h, http.MethodGet, "/api/favorites", "c1", "")
	var list []media.Media
	if err := json.NewDecoder(rr.Body).Decode(&list); err != nil {
		t.Fatal(err)
	}
	if len(list) != 1 {
		t.Fatalf("expected 1 favorite, got %d", len(list))
	}
}

func TestFavorites_AddByLocalID(t *testing.T) {
	stub := &stubCatalog{records: map[int64]media.Media{2: thrones()}}
	h := newRouter(stub, favorites.NewInMemoryStore())

	rr := doReq(h, http.MethodPost, "/api/favorites", "c1", `{"id":2}`)
	if rr.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d %s", rr.Code, rr.Body.String())
	}
	rr = doReq(h, http.MethodGet, "/api/favorites/tv/1399", "c1", "")
	if !strings.Contains(rr.Body.String(), `"favorite":true`) {
		t.Fatalf("expected favorite, got %s", rr.Body.String())
	}

	if rr := doReq(h, http.MethodPost, "/api/favorites", "c1", `{"id":99}`); rr.Code != http.StatusNotFound {
		t.Fatalf("unknown local id: expected 404, got %d", rr.Code)
	}
}

func TestFavorites_Validation(t *testing.T) {
	h := newRouter(&stubCatalog{}, favorites.NewInMemoryStore())

	if rr := doReq(h, http.MethodGet, "/api/favorites", "", ""); rr.Code != http.StatusBadRequest {
		t.Fatalf("missing client id: expected 400, got %d", rr.Code)
	}
	if rr := doReq(h, http.MethodPost, "/api/favorites", "c1", `{"tmdbId":1,"type":"anime"}`); rr.Code != http.StatusBadRequest {
		t.Fatalf("bad type: expected 400, got %d", rr.Code)
	}
	if rr := doReq(h, http.MethodPost, "/api/favorites", "c1", `{`); rr.Code != http.StatusBadRequest {
		t.Fatalf("bad json: expected 400, got %d", rr.Code)
	}
}

func TestFavorites_RemoveAndGenres(t *testing.T) {
	h := newRouter(&stubCatalog{}, favorites.NewInMemoryStore())
	doReq(h, http.MethodPost, "/api/favorites", "c1", `{"tmdbId":603,"type":"movie","genres":["Action","Sci-Fi"]}`)
	doReq(h, http.MethodPost, "/api/favorites", "c1", `{"tmdbId":604,"type":"movie","genres":["Action"]}`)

	rr := doReq(h, http.MethodGet, "/api/favorites/genres", "c1", "")
	var genres []string
	_ = json.NewDecoder(rr.Body).Decode(&genres)
	if len(genres) != 2 || genres[0] != "Action" || genres[1] != "Sci-Fi" {
		t.Fatalf("unexpected genres %v", genres)
	}

	if rr := doReq(h, http.MethodDelete, "/api/favorites/movie/603", "c1", ""); rr.Code != http.StatusNoContent {
		t.Fatalf("expected 204, got %d", rr.Code)
	}
	rr = doReq(h, http.MethodGet, "/api/favorites/movie/603", "c1", "")
	if !strings.Contains(rr.Body.String(), `"favorite":false`) {
		t.Fatalf("expected removed, got %s", rr.Body.String())
	}
}

func TestRouter_ByGenrePassThrough(t *testing.T) {
	stub := &stubCatalog{page: &tmdb.Page{Page: 1, Results: []json.RawMessage{json.RawMessage(`{"id":7,"x":1}`)}, TotalPages: 1, TotalResults: 1}}
	h := newRouter(stub, favorites.NewInMemoryStore())

	rr := doReq(h, http.MethodGet, "/api/genre/movie/28", "", "")
	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rr.Code)
	}
	var results []map[string]any
	if err := json.NewDecoder(rr.Body).Decode(&results); err != nil {
		t.Fatalf("expected a JSON array: %v", err)
	}
	if len(results) != 1 || results[0]["x"] != float64(1) {
		t.Fatalf("results not passed through: %v", results)
	}

	empty := newRouter(&stubCatalog{page: &tmdb.Page{Page: 1}}, favorites.NewInMemoryStore())
	if rr := doReq(empty, http.MethodGet, "/api/genre/tv/18", "", ""); strings.TrimSpace(rr.Body.String()) != "[]" {
		t.Fatalf("expected empty array, got %s", rr.Body.String())
	}
	if rr := doReq(h, http.MethodGet, "/api/genre/movie/abc", "", ""); rr.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", rr.Code)
	}
}
