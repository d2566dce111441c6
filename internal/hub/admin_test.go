// ABOUTME: Tests for the cache admin API: credential guard and the
// ABOUTME: list/add/update/remove/clear/stats operations.

package hub

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/socksthoughtshop/parlor/internal/cache"
)

type fixedAnswerer struct {
	text   string
	origin string
}

func (a fixedAnswerer) Answer(ctx context.Context, query string) (string, string) {
	return a.text, a.origin
}

func newAdminServer(t *testing.T, c *cache.Cache, answerer Answerer) *httptest.Server {
	t.Helper()
	api := NewAdminAPI(c, answerer, "admin", "secret", "")
	mux := http.NewServeMux()
	api.RegisterRoutes(mux)
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv
}

func adminDo(t *testing.T, method, url string, body any) *http.Response {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req, err := http.NewRequest(method, url, &buf)
	require.NoError(t, err)
	req.SetBasicAuth("admin", "secret")
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	t.Cleanup(func() { resp.Body.Close() })
	return resp
}

func TestAdminAPI_RequiresCredentials(t *testing.T) {
	srv := newAdminServer(t, cache.New(), nil)

	resp, err := http.Get(srv.URL + "/admin/cache")
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)

	req, err := http.NewRequest(http.MethodGet, srv.URL+"/admin/cache", nil)
	require.NoError(t, err)
	req.SetBasicAuth("admin", "wrong")
	resp2, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp2.Body.Close()
	assert.Equal(t, http.StatusUnauthorized, resp2.StatusCode)
}

func TestAdminAPI_AddListAndStats(t *testing.T) {
	c := cache.New()
	srv := newAdminServer(t, c, nil)

	resp := adminDo(t, http.MethodPost, srv.URL+"/admin/cache", map[string]string{
		"question": "What is the hub?",
		"response": "A realtime chat server.",
	})
	require.Equal(t, http.StatusOK, resp.StatusCode)

	resp = adminDo(t, http.MethodGet, srv.URL+"/admin/cache", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var list struct {
		Entries []cache.Entry `json:"entries"`
	}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&list))
	require.Len(t, list.Entries, 1)
	assert.Equal(t, "What is the hub?", list.Entries[0].Question)

	resp = adminDo(t, http.MethodGet, srv.URL+"/admin/cache/stats", nil)
	var stats map[string]int
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&stats))
	assert.Equal(t, 1, stats["entries"])
}

func TestAdminAPI_AddGeneratesMissingResponse(t *testing.T) {
	c := cache.New()
	srv := newAdminServer(t, c, fixedAnswerer{text: "Generated answer.", origin: "generated"})

	resp := adminDo(t, http.MethodPost, srv.URL+"/admin/cache", map[string]string{
		"question": "What do you build?",
	})
	require.Equal(t, http.StatusOK, resp.StatusCode)

	entry, ok := c.Lookup("What do you build?")
	require.True(t, ok)
	assert.Equal(t, "Generated answer.", entry.Response)
}

func TestAdminAPI_UpdatePreservesHits(t *testing.T) {
	c := cache.New()
	c.Put("q1", "old answer", "generated")
	_, ok := c.Lookup("q1")
	require.True(t, ok)

	srv := newAdminServer(t, c, nil)
	resp := adminDo(t, http.MethodPut, srv.URL+"/admin/cache", map[string]string{
		"question": "q1",
		"response": "new answer",
	})
	require.Equal(t, http.StatusOK, resp.StatusCode)

	entry, ok := c.Lookup("q1")
	require.True(t, ok)
	assert.Equal(t, "new answer", entry.Response)
	// One hit from the pre-update lookup, one from this lookup.
	assert.Equal(t, 2, entry.HitCount)
}

func TestAdminAPI_UpdateUnknownEntry(t *testing.T) {
	srv := newAdminServer(t, cache.New(), nil)
	resp := adminDo(t, http.MethodPut, srv.URL+"/admin/cache", map[string]string{
		"question": "nope",
		"response": "text",
	})
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestAdminAPI_RemoveAndClear(t *testing.T) {
	c := cache.New()
	c.Put("q1", "a1", "generated")
	c.Put("q2", "a2", "generated")
	srv := newAdminServer(t, c, nil)

	resp := adminDo(t, http.MethodDelete, srv.URL+"/admin/cache?q=q1", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	entries, _ := c.Stats()
	assert.Equal(t, 1, entries)

	resp = adminDo(t, http.MethodPost, srv.URL+"/admin/cache/clear", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	entries, _ = c.Stats()
	assert.Equal(t, 0, entries)
}
