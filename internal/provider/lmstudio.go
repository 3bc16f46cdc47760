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
// LM STUDIO CLIENT
// =============================================================================

// LMStudioClient talks to an LM Studio server: model metadata via the native
// /api/v0 surface, generation via the OpenAI-compatible /v1 surface with SSE
// streaming. Thread-safe for concurrent use.
type LMStudioClient struct {
	baseURL    string
	timeout    time.Duration
	httpClient *http.Client
}

// NewLMStudioClient creates a client for the given base URL.
// An empty URL falls back to the local default.
func NewLMStudioClient(baseURL string) *LMStudioClient {
	if baseURL == "" {
		baseURL = "http://127.0.0.1:1234"
	}
	timeout := 30 * time.Second
	return &LMStudioClient{
		baseURL: baseURL,
		timeout: timeout,
		httpClient: &http.Client{
			Timeout: timeout,
		},
	}
}

// Provider returns the backend identity.
func (c *LMStudioClient) Provider() Provider {
	return LMStudio
}

// =============================================================================
// HEALTH CHECK
// =============================================================================

// CheckRunning verifies that LM Studio is reachable and running.
func (c *LMStudioClient) CheckRunning(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/api/v0/models", nil)
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
			Message: "unexpected status from LM Studio: " + resp.Status,
		}
	}

	return nil
}

// =============================================================================
// MODEL OPERATIONS
// =============================================================================

// lmStudioModelsResponse is the /api/v0/models payload.
// Type distinguishes "llm", "vlm" (vision) and "embeddings" entries.
type lmStudioModelsResponse struct {
	Data []struct {
		ID    string `json:"id"`
		Type  string `json:"type"`
		State string `json:"state"`
	} `json:"data"`
}

func (c *LMStudioClient) fetchModels(ctx context.Context) (*lmStudioModelsResponse, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/api/v0/models", nil)
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

	var models lmStudioModelsResponse
	if err := json.NewDecoder(resp.Body).Decode(&models); err != nil {
		return nil, &ClientError{Type: ErrTypeInvalidResponse, Message: "failed to decode response", Cause: err}
	}
	return &models, nil
}

// ListModels returns all generation-capable model ids (llm and vlm types;
// embedding models are filtered out).
func (c *LMStudioClient) ListModels(ctx context.Context) ([]string, error) {
	models, err := c.fetchModels(ctx)
	if err != nil {
		return nil, err
	}

	var ids []string
	for _, m := range models.Data {
		if m.Type == "llm" || m.Type == "vlm" {
			ids = append(ids, m.ID)
		}
	}
	return ids, nil
}

// ListVisionModels returns the ids of vlm-type models.
func (c *LMStudioClient) ListVisionModels(ctx context.Context) ([]string, error) {
	models, err := c.fetchModels(ctx)
	if err != nil {
		return nil, err
	}

	var ids []string
	for _, m := range models.Data {
		if m.Type == "vlm" {
			ids = append(ids, m.ID)
		}
	}
	return ids, nil
}

// =============================================================================
// STREAMING GENERATION
// =============================================================================

// Chat completion request/response shapes for the OpenAI-compatible surface.

type lmStudioContentPart struct {
	Type     string `json:"type"`
	Text     string `json:"text,omitempty"`
	ImageURL *struct {
		URL string `json:"url"`
	} `json:"image_url,omitempty"`
}

type lmStudioMessage struct {
	Role string `json:"role"`
	// Content is a plain string for text-only messages and a part list for
	// multimodal ones.
	Content interface{} `json:"content"`
}

type lmStudioChatRequest struct {
	Model         string            `json:"model"`
	Messages      []lmStudioMessage `json:"messages"`
	Stream        bool              `json:"stream"`
	StreamOptions *struct {
		IncludeUsage bool `json:"include_usage"`
	} `json:"stream_options,omitempty"`
	Temperature   float64 `json:"temperature,omitempty"`
	MaxTokens     int     `json:"max_tokens,omitempty"`
	Seed          int     `json:"seed,omitempty"`
	TopP          float64 `json:"top_p,omitempty"`
	TopK          int     `json:"top_k,omitempty"`
	RepeatPenalty float64 `json:"repeat_penalty,omitempty"`
	MinP          float64 `json:"min_p,omitempty"`
}

type lmStudioChatChunk struct {
	Choices []struct {
		Delta struct {
			Content string `json:"content"`
		} `json:"delta"`
		FinishReason *string `json:"finish_reason"`
	} `json:"choices"`
	Usage *struct {
		PromptTokens     int `json:"prompt_tokens"`
		CompletionTokens int `json:"completion_tokens"`
	} `json:"usage,omitempty"`
	Error *struct {
		Message string `json:"message"`
	} `json:"error,omitempty"`
}

// buildMessages assembles the chat message list: optional system turn, then
// the user turn with image parts as data URLs when attachments are present.
func buildMessages(req GenerateRequest) []lmStudioMessage {
	var messages []lmStudioMessage

	if req.SystemPrompt != "" {
		messages = append(messages, lmStudioMessage{Role: "system", Content: req.SystemPrompt})
	}

	if len(req.Images) == 0 {
		messages = append(messages, lmStudioMessage{Role: "user", Content: req.Prompt})
		return messages
	}

	parts := []lmStudioContentPart{{Type: "text", Text: req.Prompt}}
	for _, img := range req.Images {
		part := lmStudioContentPart{Type: "image_url"}
		part.ImageURL = &struct {
			URL string `json:"url"`
		}{URL: "data:image/jpeg;base64," + img}
		parts = append(parts, part)
	}
	messages = append(messages, lmStudioMessage{Role: "user", Content: parts})
	return messages
}

// Generate starts a streaming generation via /v1/chat/completions.
func (c *LMStudioClient) Generate(ctx context.Context, genReq GenerateRequest) (*stream.Session, error) {
	if genReq.Model == "" {
		return nil, ErrModelNotFound
	}

	reqBody := lmStudioChatRequest{
		Model:    genReq.Model,
		Messages: buildMessages(genReq),
		Stream:   true,
		StreamOptions: &struct {
			IncludeUsage bool `json:"include_usage"`
		}{IncludeUsage: true},
		Temperature:   genReq.Options.Temperature,
		MaxTokens:     genReq.Options.MaxTokens,
		Seed:          genReq.Options.Seed,
		TopP:          genReq.Options.TopP,
		TopK:          genReq.Options.TopK,
		RepeatPenalty: genReq.Options.RepeatPenalty,
		MinP:          genReq.Options.MinP,
	}

	body, err := json.Marshal(reqBody)
	if err != nil {
		return nil, &ClientError{Type: ErrTypeInvalidResponse, Message: "failed to marshal request", Cause: err}
	}

	sess := stream.NewSession(ctx)

	req, err := http.NewRequestWithContext(sess.Context(), http.MethodPost, c.baseURL+"/v1/chat/completions", bytes.NewReader(body))
	if err != nil {
		sess.Stop()
		return nil, &ClientError{Type: ErrTypeConnection, Message: "failed to create request", Cause: err}
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "text/event-stream")

	// Streaming lifetime is governed by the session context.
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
		var apiErr struct {
			Error struct {
				Message string `json:"message"`
			} `json:"error"`
		}
		if err := json.NewDecoder(resp.Body).Decode(&apiErr); err == nil && apiErr.Error.Message != "" {
			return nil, &ClientError{Type: ErrTypeInvalidResponse, Message: apiErr.Error.Message}
		}
		return nil, &ClientError{
			Type:    ErrTypeInvalidResponse,
			Message: "chat request failed: " + resp.Status,
		}
	}

	go c.readStream(sess, resp.Body)
	return sess, nil
}

// readStream parses SSE lines ("data: {json}", terminated by "data: [DONE]")
// and drives the session to its terminal event.
func (c *LMStudioClient) readStream(sess *stream.Session, body io.ReadCloser) {
	defer body.Close()

	scanner := bufio.NewScanner(body)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)

	for scanner.Scan() {
		line := bytes.TrimSpace(scanner.Bytes())
		if !bytes.HasPrefix(line, []byte("data:")) {
			continue
		}
		payload := bytes.TrimSpace(bytes.TrimPrefix(line, []byte("data:")))
		if len(payload) == 0 {
			continue
		}
		if bytes.Equal(payload, []byte("[DONE]")) {
			sess.Done()
			return
		}

		var chunk lmStudioChatChunk
		if err := json.Unmarshal(payload, &chunk); err != nil {
			// Skip malformed events.
			continue
		}
		if chunk.Error != nil && chunk.Error.Message != "" {
			sess.Fail(&ClientError{Type: ErrTypeInvalidResponse, Message: chunk.Error.Message})
			return
		}
		if chunk.Usage != nil {
			sess.SetUsage(chunk.Usage.PromptTokens, chunk.Usage.CompletionTokens)
		}
		if len(chunk.Choices) > 0 {
			if content := chunk.Choices[0].Delta.Content; content != "" {
				if !sess.Send(content) {
					sess.Done()
					return
				}
			}
		}
	}

	if err := scanner.Err(); err != nil {
		sess.Fail(&ClientError{Type: ErrTypeConnection, Message: "stream read failed", Cause: err})
		return
	}
	// EOF without [DONE]; treat what arrived as complete.
	sess.Done()
}
