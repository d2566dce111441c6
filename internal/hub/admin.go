// ABOUTME: JSON cache-administration API guarded by admin credentials:
// ABOUTME: list, add, update, remove, clear, and stats.

package hub

import (
	"context"
	"crypto/subtle"
	"encoding/json"
	"log/slog"
	"net/http"
	"strings"

	"github.com/socksthoughtshop/parlor/internal/cache"
)

// Answerer resolves a response for a query through the full pipeline.
// Implemented by *bot.Agent; used when an admin adds a cache entry without
// supplying the response text.
type Answerer interface {
	Answer(ctx context.Context, query string) (text, origin string)
}

// AdminAPI exposes cache management endpoints under /admin/cache.
type AdminAPI struct {
	cache        *cache.Cache
	answerer     Answerer
	username     string
	password     string
	snapshotPath string
	logger       *slog.Logger
}

// NewAdminAPI builds the admin surface. answerer may be nil; snapshotPath ""
// disables persistence after mutations.
func NewAdminAPI(c *cache.Cache, answerer Answerer, username, password, snapshotPath string) *AdminAPI {
	return &AdminAPI{
		cache:        c,
		answerer:     answerer,
		username:     username,
		password:     password,
		snapshotPath: snapshotPath,
		logger:       slog.Default().With("component", "admin"),
	}
}

// RegisterRoutes mounts the admin endpoints on the mux.
func (a *AdminAPI) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("/admin/cache", a.guard(a.handleCache))
	mux.HandleFunc("/admin/cache/stats", a.guard(a.handleStats))
	mux.HandleFunc("/admin/cache/clear", a.guard(a.handleClear))
}

// guard enforces basic auth with the configured admin credentials.
func (a *AdminAPI) guard(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		user, pass, ok := r.BasicAuth()
		if !ok ||
			subtle.ConstantTimeCompare([]byte(user), []byte(a.username)) != 1 ||
			subtle.ConstantTimeCompare([]byte(pass), []byte(a.password)) != 1 {
			w.Header().Set("WWW-Authenticate", `Basic realm="admin"`)
			http.Error(w, "unauthorized", http.StatusUnauthorized)
			return
		}
		next(w, r)
	}
}

type cacheEntryRequest struct {
	Question string `json:"question"`
	Response string `json:"response"`
}

func (a *AdminAPI) handleCache(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		writeJSON(w, map[string]any{"entries": a.cache.Entries()})

	case http.MethodPost:
		a.handleAdd(w, r)

	case http.MethodPut:
		a.handleUpdate(w, r)

	case http.MethodDelete:
		q := r.URL.Query().Get("q")
		if !a.cache.Remove(q) {
			http.Error(w, "no such entry", http.StatusNotFound)
			return
		}
		a.persist()
		writeJSON(w, map[string]string{"removed": q})

	default:
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
	}
}

// handleAdd inserts an entry, generating the response through the pipeline
// when the request leaves it blank.
func (a *AdminAPI) handleAdd(w http.ResponseWriter, r *http.Request) {
	req, ok := decodeEntry(w, r)
	if !ok {
		return
	}

	response := req.Response
	origin := "admin"
	if response == "" {
		if a.answerer == nil {
			http.Error(w, "response required", http.StatusBadRequest)
			return
		}
		response, origin = a.answerer.Answer(r.Context(), req.Question)
	}

	a.cache.Put(req.Question, response, origin)
	a.persist()
	a.logger.Info("cache entry added", "question", req.Question, "origin", origin)
	writeJSON(w, map[string]string{"question": req.Question, "response": response})
}

// handleUpdate overwrites an entry's response text, preserving its hit count.
func (a *AdminAPI) handleUpdate(w http.ResponseWriter, r *http.Request) {
	req, ok := decodeEntry(w, r)
	if !ok {
		return
	}
	if req.Response == "" {
		http.Error(w, "response required", http.StatusBadRequest)
		return
	}

	if !a.cache.Update(req.Question, req.Response) {
		http.Error(w, "no such entry", http.StatusNotFound)
		return
	}
	a.persist()
	writeJSON(w, map[string]string{"question": req.Question, "response": req.Response})
}

func (a *AdminAPI) handleStats(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	entries, hits := a.cache.Stats()
	writeJSON(w, map[string]int{"entries": entries, "hits": hits})
}

func (a *AdminAPI) handleClear(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	a.cache.Clear()
	a.persist()
	writeJSON(w, map[string]string{"status": "cleared"})
}

// persist writes the cache snapshot after a mutation, best effort.
func (a *AdminAPI) persist() {
	if a.snapshotPath == "" {
		return
	}
	if err := a.cache.Save(a.snapshotPath); err != nil {
		a.logger.Warn("saving cache snapshot", "path", a.snapshotPath, "error", err)
	}
}

func decodeEntry(w http.ResponseWriter, r *http.Request) (cacheEntryRequest, bool) {
	var req cacheEntryRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid request body", http.StatusBadRequest)
		return req, false
	}
	req.Question = strings.TrimSpace(req.Question)
	if req.Question == "" {
		http.Error(w, "question required", http.StatusBadRequest)
		return req, false
	}
	return req, true
}

func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(v)
}
