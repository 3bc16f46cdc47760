// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package provider

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"time"

	"github.com/arcum42/sagechat/internal/stream"
)

// =============================================================================
// OLLAMA CLIENT
// =============================================================================

// OllamaClient talks to an Ollama server over its native /api surface.
// Thread-safe for concurrent use.
type OllamaClient struct {
	baseURL    string
	timeout    time.Duration
	httpClient *http.Client
}

// NewOllamaClient creates a client for the given base URL.
// An empty URL falls back to the local default.
func NewOllamaClient(baseURL string) *OllamaClient {
	if baseURL == "" {
		// Explicit IPv4 avoids IPv6 resolution issues with localhost on
		// some platforms.
		baseURL = "http://127.0.0.1:11434"
	}
	timeout := 30 * time.Second
	return &OllamaClient{
		baseURL: baseURL,
		timeout: timeout,
		httpClient: &http.Client{
			Timeout: timeout,
		},
	}
}

// Provider returns the backend identity.
func (c *OllamaClient) Provider() Provider {
	return Ollama
}

// =============================================================================
// HEALTH CHECK
// =============================================================================

// CheckRunning verifies that Ollama is reachable and running.
func (c *OllamaClient) CheckRunning(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL, nil)
	if err != nil {
		return &ClientError{Type: ErrTypeConnection, Message: "failed to create request", Cause: err}
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			return ErrTimeout
		}
		return ErrNotRunning
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return &ClientError{
			Type:    ErrTypeConnection,
			Message: "unexpected status from Ollama: " + resp.Status,
		}
	}

	return nil
}

// =============================================================================
// MODEL OPERATIONS
// =============================================================================

// ollamaTagsResponse is the /api/tags payload.
type ollamaTagsResponse struct {
	Models []struct {
		Name       string `json:"name"`
		ModifiedAt string `json:"modified_at"`
		Size       int64  `json:"size"`
	} `json:"models"`
}

// ollamaShowResponse is the subset of /api/show needed for capability checks.
type ollamaShowResponse struct {
	Capabilities []string `json:"capabilities"`
	Details      struct {
		Families []string `json:"families"`
	} `json:"details"`
}

// ollamaError is the error payload Ollama returns on failures.
type ollamaError struct {
	Error string `json:"error"`
}

// ListModels retrieves all available model names from Ollama.
func (c *OllamaClient) ListModels(ctx context.Context) ([]string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/api/tags", nil)
	if err != nil {
		return nil, &ClientError{Type: ErrTypeConnection, Message: "failed to create request", Cause: err}
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			return nil, ErrTimeout
		}
		return nil, ErrNotRunning
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, &ClientError{
			Type:    ErrTypeInvalidResponse,
			Message: "list models failed: " + resp.Status,
		}
	}

	var tags ollamaTagsResponse
	if err := json.NewDecoder(resp.Body).Decode(&tags); err != nil {
		return nil, &ClientError{Type: ErrTypeInvalidResponse, Message: "failed to decode response", Cause: err}
	}

	names := make([]string, 0, len(tags.Models))
	for _, m := range tags.Models {
		names = append(names, m.Name)
	}
	return names, nil
}

// ListVisionModels returns the names of models that accept image inputs,
// determined per model via /api/show capabilities (with a family fallback
// for older servers).
func (c *OllamaClient) ListVisionModels(ctx context.Context) ([]string, error) {
	models, err := c.ListModels(ctx)
	if err != nil {
		return nil, err
	}

	var vision []string
	for _, name := range models {
		ok, err := c.modelSupportsVision(ctx, name)
		if err != nil {
			// One broken model must not hide the rest.
			continue
		}
		if ok {
			vision = append(vision, name)
		}
	}
	return vision, nil
}

func (c *OllamaClient) modelSupportsVision(ctx context.Context, model string) (bool, error) {
	body, err := json.Marshal(map[string]string{"model": model})
	if err != nil {
		return false, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/api/show", bytes.NewReader(body))
	if err != nil {
		return false, err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return false, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return false, &ClientError{
			Type:    ErrTypeInvalidResponse,
			Message: "show model failed: " + resp.Status,
		}
	}

	var show ollamaShowResponse
	if err := json.NewDecoder(resp.Body).Decode(&show); err != nil {
		return false, err
	}

	for _, cap := range show.Capabilities {
		if cap == "vision" {
			return true, nil
		}
	}
	// Older servers report projector families instead of capabilities.
	for _, family := range show.Details.Families {
		if family == "clip" || family == "mllama" {
			return true, nil
		}
	}
	return false, nil
}

// =============================================================================
// STREAMING GENERATION
// =============================================================================

// ollamaGenerateRequest is the /api/generate request body.
type ollamaGenerateRequest struct {
	Model     string                 `json:"model"`
	Prompt    string                 `json:"prompt"`
	System    string                 `json:"system,omitempty"`
	Images    []string               `json:"images,omitempty"`
	Stream    bool                   `json:"stream"`
	KeepAlive string                 `json:"keep_alive,omitempty"`
	Options   map[string]interface{} `json:"options,omitempty"`
}

// ollamaGenerateChunk is one NDJSON line of the /api/generate stream.
type ollamaGenerateChunk struct {
	Response        string `json:"response"`
	Done            bool   `json:"done"`
	PromptEvalCount int    `json:"prompt_eval_count,omitempty"`
	EvalCount       int    `json:"eval_count,omitempty"`
	Error           string `json:"error,omitempty"`
}

// ollamaOptions maps the Ollama subset of Options onto the wire names.
func ollamaOptions(o Options) map[string]interface{} {
	opts := map[string]interface{}{
		"temperature": o.Temperature,
	}
	if o.Seed != 0 {
		opts["seed"] = o.Seed
	}
	if o.MaxTokens != 0 {
		opts["num_predict"] = o.MaxTokens
	}
	if o.TopK != 0 {
		opts["top_k"] = o.TopK
	}
	if o.TopP != 0 {
		opts["top_p"] = o.TopP
	}
	if o.RepeatPenalty != 0 {
		opts["repeat_penalty"] = o.RepeatPenalty
	}
	return opts
}

// Generate starts a streaming generation via /api/generate. Images, when
// present, ride the same endpoint as base64 payloads.
func (c *OllamaClient) Generate(ctx context.Context, genReq GenerateRequest) (*stream.Session, error) {
	if genReq.Model == "" {
		return nil, ErrModelNotFound
	}

	reqBody := ollamaGenerateRequest{
		Model:     genReq.Model,
		Prompt:    genReq.Prompt,
		System:    genReq.SystemPrompt,
		Images:    genReq.Images,
		Stream:    true,
		KeepAlive: genReq.Options.KeepAlive,
		Options:   ollamaOptions(genReq.Options),
	}

	body, err := json.Marshal(reqBody)
	if err != nil {
		return nil, &ClientError{Type: ErrTypeInvalidResponse, Message: "failed to marshal request", Cause: err}
	}

	sess := stream.NewSession(ctx)

	req, err := http.NewRequestWithContext(sess.Context(), http.MethodPost, c.baseURL+"/api/generate", bytes.NewReader(body))
	if err != nil {
		sess.Stop()
		return nil, &ClientError{Type: ErrTypeConnection, Message: "failed to create request", Cause: err}
	}
	req.Header.Set("Content-Type", "application/json")

	// No client timeout on the streaming connection; lifetime is governed
	// by the session context.
	streamClient := &http.Client{}

	resp, err := streamClient.Do(req)
	if err != nil {
		sess.Stop()
		if errors.Is(err, context.DeadlineExceeded) {
			return nil, ErrTimeout
		}
		return nil, ErrNotRunning
	}

	if resp.StatusCode == http.StatusNotFound {
		resp.Body.Close()
		sess.Stop()
		return nil, ErrModelNotFound
	}
	if resp.StatusCode != http.StatusOK {
		defer resp.Body.Close()
		sess.Stop()
		var apiErr ollamaError
		if err := json.NewDecoder(resp.Body).Decode(&apiErr); err == nil && apiErr.Error != "" {
			return nil, &ClientError{Type: ErrTypeInvalidResponse, Message: apiErr.Error}
		}
		return nil, &ClientError{
			Type:    ErrTypeInvalidResponse,
			Message: "generate request failed: " + resp.Status,
		}
	}

	go c.readStream(sess, resp.Body)
	return sess, nil
}

// readStream is the session's single producer: it parses NDJSON lines,
// forwards chunks, and delivers the terminal event.
func (c *OllamaClient) readStream(sess *stream.Session, body io.ReadCloser) {
	defer body.Close()

	reader := bufio.NewReader(body)
	for {
		line, err := reader.ReadBytes('\n')
		if len(line) > 0 {
			var chunk ollamaGenerateChunk
			if jsonErr := json.Unmarshal(bytes.TrimSpace(line), &chunk); jsonErr == nil {
				if chunk.Error != "" {
					sess.Fail(&ClientError{Type: ErrTypeInvalidResponse, Message: chunk.Error})
					return
				}
				if chunk.Response != "" {
					if !sess.Send(chunk.Response) {
						sess.Done()
						return
					}
				}
				if chunk.Done {
					sess.SetUsage(chunk.PromptEvalCount, chunk.EvalCount)
					sess.Done()
					return
				}
			}
			// Malformed lines are skipped, matching how the backend
			// occasionally interleaves keep-alive noise.
		}

		if err != nil {
			if err == io.EOF {
				// Stream ended without a done marker; treat what arrived
				// as complete.
				sess.Done()
				return
			}
			sess.Fail(&ClientError{Type: ErrTypeConnection, Message: "stream read failed", Cause: err})
			return
		}
	}
}
