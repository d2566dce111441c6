// ABOUTME: Tests for token issue/verify, bcrypt hashing, and the HTTP
// ABOUTME: register/login endpoints with an in-memory user store.

package auth

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestJWTVerifier_RoundTrip(t *testing.T) {
	v, err := NewJWTVerifier([]byte("test-secret"))
	require.NoError(t, err)

	token, err := v.Generate("alice", time.Hour)
	require.NoError(t, err)

	identity, err := v.Verify(token)
	require.NoError(t, err)
	assert.Equal(t, "alice", identity)
}

func TestJWTVerifier_Expired(t *testing.T) {
	v, err := NewJWTVerifier([]byte("test-secret"))
	require.NoError(t, err)

	token, err := v.Generate("alice", -time.Minute)
	require.NoError(t, err)

	_, err = v.Verify(token)
	assert.ErrorIs(t, err, ErrExpiredToken)
}

func TestJWTVerifier_WrongSecret(t *testing.T) {
	v1, err := NewJWTVerifier([]byte("secret-one"))
	require.NoError(t, err)
	v2, err := NewJWTVerifier([]byte("secret-two"))
	require.NoError(t, err)

	token, err := v1.Generate("alice", time.Hour)
	require.NoError(t, err)

	_, err = v2.Verify(token)
	assert.ErrorIs(t, err, ErrInvalidToken)
}

func TestJWTVerifier_EmptySecret(t *testing.T) {
	_, err := NewJWTVerifier(nil)
	assert.Error(t, err)
}

func TestPassword_RoundTrip(t *testing.T) {
	hash, err := HashPassword("hunter2")
	require.NoError(t, err)
	assert.NotEqual(t, "hunter2", hash)

	assert.NoError(t, CheckPassword("hunter2", hash))
	assert.ErrorIs(t, CheckPassword("wrong", hash), ErrBadCredentials)
}

// memUsers is an in-memory UserStore for handler tests.
type memUsers struct {
	hashes map[string]string
}

func newMemUsers() *memUsers {
	return &memUsers{hashes: make(map[string]string)}
}

func (m *memUsers) CreateUser(username, passwordHash string) error {
	if _, ok := m.hashes[username]; ok {
		return ErrUserExists
	}
	m.hashes[username] = passwordHash
	return nil
}

func (m *memUsers) PasswordHash(username string) (string, error) {
	hash, ok := m.hashes[username]
	if !ok {
		return "", ErrUserNotFound
	}
	return hash, nil
}

func newTestService(t *testing.T) (*Service, *memUsers) {
	t.Helper()
	v, err := NewJWTVerifier([]byte("test-secret"))
	require.NoError(t, err)
	users := newMemUsers()
	return NewService(users, v, time.Hour, nil), users
}

func postJSON(t *testing.T, handler http.HandlerFunc, body any) *httptest.ResponseRecorder {
	t.Helper()
	raw, err := json.Marshal(body)
	require.NoError(t, err)
	req := httptest.NewRequest(http.MethodPost, "/", bytes.NewReader(raw))
	rec := httptest.NewRecorder()
	handler(rec, req)
	return rec
}

func TestService_RegisterThenLogin(t *testing.T) {
	svc, _ := newTestService(t)

	rec := postJSON(t, svc.handleRegister, credentialsRequest{Username: "alice", Password: "hunter2"})
	require.Equal(t, http.StatusOK, rec.Code)

	var resp tokenResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "alice", resp.Username)
	assert.NotEmpty(t, resp.Token)

	rec = postJSON(t, svc.handleLogin, credentialsRequest{Username: "alice", Password: "hunter2"})
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestService_RegisterDuplicate(t *testing.T) {
	svc, _ := newTestService(t)

	rec := postJSON(t, svc.handleRegister, credentialsRequest{Username: "alice", Password: "pw"})
	require.Equal(t, http.StatusOK, rec.Code)

	rec = postJSON(t, svc.handleRegister, credentialsRequest{Username: "alice", Password: "pw"})
	assert.Equal(t, http.StatusConflict, rec.Code)
}

func TestService_LoginBadPassword(t *testing.T) {
	svc, _ := newTestService(t)

	postJSON(t, svc.handleRegister, credentialsRequest{Username: "alice", Password: "right"})
	rec := postJSON(t, svc.handleLogin, credentialsRequest{Username: "alice", Password: "wrong"})
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestService_LoginUnknownUser(t *testing.T) {
	svc, _ := newTestService(t)

	rec := postJSON(t, svc.handleLogin, credentialsRequest{Username: "ghost", Password: "pw"})
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestService_MissingFields(t *testing.T) {
	svc, _ := newTestService(t)

	rec := postJSON(t, svc.handleRegister, credentialsRequest{Username: "  ", Password: "pw"})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}
