// ABOUTME: Ollama HTTP client implementing the Generator interface.
// ABOUTME: Streams NDJSON fragments from /api/generate until the done flag.

package generate

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"time"
)

// OllamaClient streams completions from a local Ollama server.
type OllamaClient struct {
	baseURL string
	model   string
	client  *http.Client
	logger  *slog.Logger
}

// NewOllamaClient creates a client for the given base URL (for example
// "http://localhost:11434") and model name.
func NewOllamaClient(baseURL, model string, timeout time.Duration, logger *slog.Logger) *OllamaClient {
	if logger == nil {
		logger = slog.Default()
	}
	return &OllamaClient{
		baseURL: baseURL,
		model:   model,
		client:  &http.Client{Timeout: timeout},
		logger:  logger.With("component", "generator"),
	}
}

type generateRequest struct {
	Model  string `json:"model"`
	Prompt string `json:"prompt"`
	Stream bool   `json:"stream"`
}

type generateResponse struct {
	Response string `json:"response"`
	Done     bool   `json:"done"`
}

// Generate starts a streaming completion. The returned channel yields text
// fragments and is closed after the terminal chunk. Transport errors surface
// on the channel as an error chunk so callers can substitute a fallback.
func (o *OllamaClient) Generate(ctx context.Context, prompt string) (<-chan Chunk, error) {
	body, err := json.Marshal(generateRequest{Model: o.model, Prompt: prompt, Stream: true})
	if err != nil {
		return nil, fmt.Errorf("encoding generate request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, o.baseURL+"/api/generate", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("creating generate request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := o.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("calling generator: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		resp.Body.Close()
		return nil, fmt.Errorf("generator returned status %d", resp.StatusCode)
	}

	out := make(chan Chunk, 16)
	go o.stream(resp, out)
	return out, nil
}

// stream reads NDJSON lines from the response body onto the chunk channel.
func (o *OllamaClient) stream(resp *http.Response, out chan<- Chunk) {
	defer close(out)
	defer resp.Body.Close()

	scanner := bufio.NewScanner(resp.Body)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)

	for scanner.Scan() {
		line := scanner.Bytes()
		if len(line) == 0 {
			continue
		}

		var gr generateResponse
		if err := json.Unmarshal(line, &gr); err != nil {
			o.logger.Warn("skipping malformed generator line", "error", err)
			continue
		}

		if gr.Response != "" {
			out <- Chunk{Text: gr.Response}
		}
		if gr.Done {
			out <- Chunk{Done: true}
			return
		}
	}

	if err := scanner.Err(); err != nil {
		out <- Chunk{Err: fmt.Errorf("reading generator stream: %w", err)}
		return
	}
	// Stream ended without a done flag; treat as complete.
	out <- Chunk{Done: true}
}
