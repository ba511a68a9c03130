// Package generative provides the streaming client for the generative text
// backend. Generation length is unbounded, so the client carries no request
// timeout: the caller's context is the only cancellation mechanism.
package generative

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/rs/zerolog"
)

// Client for the generative backend HTTP API.
type Client struct {
	baseURL string
	model   string
	client  *http.Client
	log     zerolog.Logger
}

// NewClient creates a new generative backend client.
func NewClient(baseURL, model string, log zerolog.Logger) *Client {
	return &Client{
		baseURL: baseURL,
		model:   model,
		// No Timeout: a single generation can legitimately run for minutes.
		// Cancellation comes from the request context.
		client: &http.Client{},
		log:    log.With().Str("client", "generative").Logger(),
	}
}

// generateRequest is the wire format of a generation request.
type generateRequest struct {
	Model  string `json:"model"`
	Prompt string `json:"prompt"`
	Stream bool   `json:"stream"`
}

// chunk is one line of the streamed response.
type chunk struct {
	Text string `json:"text"`
	Done bool   `json:"done"`
}

// Generate sends the prompt and consumes the chunk stream until the backend
// signals completion, returning the accumulated text.
func (c *Client) Generate(ctx context.Context, prompt string) (string, error) {
	var sb strings.Builder
	err := c.GenerateStream(ctx, prompt, func(text string) {
		sb.WriteString(text)
	})
	if err != nil {
		return "", err
	}
	return sb.String(), nil
}

// GenerateStream sends the prompt and invokes onChunk for every text chunk
// until the backend signals completion or the stream ends.
func (c *Client) GenerateStream(ctx context.Context, prompt string, onChunk func(text string)) error {
	body, err := json.Marshal(generateRequest{
		Model:  c.model,
		Prompt: prompt,
		Stream: true,
	})
	if err != nil {
		return fmt.Errorf("failed to marshal request: %w", err)
	}

	reqURL := c.baseURL + "/api/generate"
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, reqURL, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("failed to build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	started := time.Now()
	c.log.Debug().Str("model", c.model).Int("prompt_len", len(prompt)).Msg("Starting generation")

	resp, err := c.client.Do(req)
	if err != nil {
		return fmt.Errorf("backend request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("backend returned status %d", resp.StatusCode)
	}

	scanner := bufio.NewScanner(resp.Body)
	// Individual chunks are small, but allow for the occasional large one.
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)

	var chunks int
	for scanner.Scan() {
		line := bytes.TrimSpace(scanner.Bytes())
		if len(line) == 0 {
			continue
		}

		var ch chunk
		if err := json.Unmarshal(line, &ch); err != nil {
			return fmt.Errorf("malformed stream chunk: %w", err)
		}

		if ch.Text != "" {
			onChunk(ch.Text)
			chunks++
		}
		if ch.Done {
			c.log.Debug().
				Int("chunks", chunks).
				Dur("elapsed", time.Since(started)).
				Msg("Generation completed")
			return nil
		}
	}

	if err := scanner.Err(); err != nil {
		// Context cancellation shows up as a read error on the body.
		if ctx.Err() != nil {
			return ctx.Err()
		}
		return fmt.Errorf("stream read failed: %w", err)
	}

	// EOF without a done marker means the backend died mid-generation.
	return fmt.Errorf("stream ended without completion marker after %d chunks", chunks)
}
