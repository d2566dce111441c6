// ABOUTME: HTTP handlers for participant registration and login.
// ABOUTME: Issues JWT session tokens consumed by the websocket endpoint.

package auth

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strings"
	"time"
)

// ErrUserExists indicates a registration attempt for a taken username.
var ErrUserExists = errors.New("username already exists")

// ErrUserNotFound indicates an unknown username.
var ErrUserNotFound = errors.New("user not found")

// UserStore persists participant credentials.
type UserStore interface {
	CreateUser(username, passwordHash string) error
	PasswordHash(username string) (string, error)
}

// Service handles registration and login, issuing session tokens.
type Service struct {
	users    UserStore
	verifier *JWTVerifier
	tokenTTL time.Duration
	logger   *slog.Logger
}

// NewService creates the auth service.
func NewService(users UserStore, verifier *JWTVerifier, tokenTTL time.Duration, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{
		users:    users,
		verifier: verifier,
		tokenTTL: tokenTTL,
		logger:   logger.With("component", "auth"),
	}
}

// RegisterRoutes mounts the auth endpoints on the mux.
func (s *Service) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("/auth/register", s.handleRegister)
	mux.HandleFunc("/auth/login", s.handleLogin)
}

type credentialsRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

type tokenResponse struct {
	Token    string `json:"token"`
	Username string `json:"username"`
}

func (s *Service) handleRegister(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	req, ok := decodeCredentials(w, r)
	if !ok {
		return
	}

	hash, err := HashPassword(req.Password)
	if err != nil {
		s.logger.Error("hashing password", "error", err)
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}

	if err := s.users.CreateUser(req.Username, hash); err != nil {
		if errors.Is(err, ErrUserExists) {
			http.Error(w, "username already taken", http.StatusConflict)
			return
		}
		s.logger.Error("creating user", "username", req.Username, "error", err)
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}

	s.logger.Info("user registered", "username", req.Username)
	s.issueToken(w, req.Username)
}

func (s *Service) handleLogin(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	req, ok := decodeCredentials(w, r)
	if !ok {
		return
	}

	hash, err := s.users.PasswordHash(req.Username)
	if err != nil {
		if errors.Is(err, ErrUserNotFound) {
			http.Error(w, "invalid username or password", http.StatusUnauthorized)
			return
		}
		s.logger.Error("looking up user", "username", req.Username, "error", err)
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}

	if err := CheckPassword(req.Password, hash); err != nil {
		http.Error(w, "invalid username or password", http.StatusUnauthorized)
		return
	}

	s.issueToken(w, req.Username)
}

func (s *Service) issueToken(w http.ResponseWriter, username string) {
	token, err := s.verifier.Generate(username, s.tokenTTL)
	if err != nil {
		s.logger.Error("generating token", "username", username, "error", err)
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(tokenResponse{Token: token, Username: username})
}

func decodeCredentials(w http.ResponseWriter, r *http.Request) (credentialsRequest, bool) {
	var req credentialsRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid request body", http.StatusBadRequest)
		return req, false
	}

	req.Username = strings.TrimSpace(req.Username)
	if req.Username == "" || req.Password == "" {
		http.Error(w, "username and password are required", http.StatusBadRequest)
		return req, false
	}
	return req, true
}
