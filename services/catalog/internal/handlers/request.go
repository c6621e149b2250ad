package handlers

import (
	"encoding/json"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/example/streambox/internal/platform/api"
	"github.com/example/streambox/services/catalog/internal/media"
)

const (
	maxRequestBodyBytes = 1 << 20 // 1 MiB
	clientIDHeader      = "X-Client-Id"
)

// decodeJSON reads up to maxRequestBodyBytes from r.Body and decodes JSON into dst.
// On failure it writes a 400 response and returns false.
func decodeJSON[T any](w http.ResponseWriter, r *http.Request, rid string, dst *T) bool {
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxRequestBodyBytes)).Decode(dst); err != nil {
		api.BadRequest(w, "INVALID_JSON", "Invalid JSON", rid)
		return false
	}
	return true
}

// pathID parses an integer route param. Only an unparseable value is a 400;
// a well-formed id that matches nothing is left to the lookup to answer 404.
func pathID(w http.ResponseWriter, r *http.Request, rid, param, message string) (int64, bool) {
	id, err := strconv.ParseInt(strings.TrimSpace(chi.URLParam(r, param)), 10, 64)
	if err != nil {
		api.BadRequest(w, "INVALID_ID", message, rid)
		return 0, false
	}
	return id, true
}

func pathKind(w http.ResponseWriter, r *http.Request, rid string) (media.Kind, bool) {
	kind, err := media.ParseKind(chi.URLParam(r, "type"))
	if err != nil {
		api.BadRequest(w, "INVALID_TYPE", "Invalid media type", rid)
		return "", false
	}
	return kind, true
}

// queryInt parses an optional non-negative integer query param; absent means 0.
func queryInt(r *http.Request, name string) (int, bool) {
	v := strings.TrimSpace(r.URL.Query().Get(name))
	if v == "" {
		return 0, true
	}
	n, err := strconv.Atoi(v)
	if err != nil || n < 0 {
		return 0, false
	}
	return n, true
}

func clientID(r *http.Request) string {
	return strings.TrimSpace(r.Header.Get(clientIDHeader))
}

// requireClient writes a 400 when the client id header is missing.
func requireClient(w http.ResponseWriter, r *http.Request, rid string) (string, bool) {
	id := clientID(r)
	if id == "" || len(id) > 128 {
		api.BadRequest(w, "MISSING_CLIENT_ID", clientIDHeader+" header required", rid)
		return "", false
	}
	return id, true
}
