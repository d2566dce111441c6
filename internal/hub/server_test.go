// ABOUTME: Tests for the health endpoint and the store-to-auth user
// ABOUTME: directory adapter.

package hub

import (
	"encoding/json"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/socksthoughtshop/parlor/internal/auth"
	"github.com/socksthoughtshop/parlor/internal/store"
)

func TestHandleHealth(t *testing.T) {
	rec := httptest.NewRecorder()
	handleHealth(rec, httptest.NewRequest("GET", "/health", nil))

	var body map[string]string
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "ok", body["status"])
}

func TestUserDirectory_MapsSentinels(t *testing.T) {
	s, err := store.NewSQLiteStore(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })

	dir := NewUserDirectory(s)

	require.NoError(t, dir.CreateUser("alice", "hash-1"))
	assert.ErrorIs(t, dir.CreateUser("alice", "hash-2"), auth.ErrUserExists)

	hash, err := dir.PasswordHash("alice")
	require.NoError(t, err)
	assert.Equal(t, "hash-1", hash)

	_, err = dir.PasswordHash("ghost")
	assert.ErrorIs(t, err, auth.ErrUserNotFound)
}
