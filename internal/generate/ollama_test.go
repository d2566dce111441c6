// ABOUTME: Tests for the Ollama streaming client against an httptest server.

package generate

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestOllamaClient_Generate_Stream(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/generate", r.URL.Path)
		w.Write([]byte(`{"response":"Hello","done":false}` + "\n"))
		w.Write([]byte(`{"response":" world.","done":false}` + "\n"))
		w.Write([]byte(`{"response":"","done":true}` + "\n"))
	}))
	defer srv.Close()

	client := NewOllamaClient(srv.URL, "mistral", 5*time.Second, nil)
	chunks, err := client.Generate(context.Background(), "say hello")
	require.NoError(t, err)

	var text string
	var done bool
	for c := range chunks {
		require.NoError(t, c.Err)
		text += c.Text
		done = c.Done
	}
	assert.Equal(t, "Hello world.", text)
	assert.True(t, done)
}

func TestOllamaClient_Generate_ServerError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	client := NewOllamaClient(srv.URL, "mistral", 5*time.Second, nil)
	_, err := client.Generate(context.Background(), "say hello")
	assert.Error(t, err)
}

func TestOllamaClient_Generate_Unreachable(t *testing.T) {
	client := NewOllamaClient("http://127.0.0.1:1", "mistral", 100*time.Millisecond, nil)
	_, err := client.Generate(context.Background(), "say hello")
	assert.Error(t, err)
}
