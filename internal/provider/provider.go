// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package provider

import (
	"context"
	"fmt"
	"strings"

	"github.com/arcum42/sagechat/internal/stream"
)

// =============================================================================
// PROVIDER IDENTITY
// =============================================================================

// Provider identifies a text-generation backend.
type Provider string

const (
	// Ollama is the Ollama backend (native /api surface).
	Ollama Provider = "ollama"
	// LMStudio is the LM Studio backend (OpenAI-compatible /v1 surface).
	LMStudio Provider = "lmstudio"
)

// Parse normalizes a provider name.
func Parse(s string) (Provider, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "ollama":
		return Ollama, nil
	case "lmstudio", "lm-studio", "lm_studio":
		return LMStudio, nil
	default:
		return "", fmt.Errorf("unknown provider %q (want ollama or lmstudio)", s)
	}
}

// String returns the canonical provider name.
func (p Provider) String() string {
	return string(p)
}

// Valid reports whether p names a supported backend.
func (p Provider) Valid() bool {
	return p == Ollama || p == LMStudio
}

// =============================================================================
// ERROR TYPES
// =============================================================================

// ClientError represents an error from a provider client.
type ClientError struct {
	Type    ErrorType
	Message string
	Cause   error
}

func (e *ClientError) Error() string {
	if e.Cause != nil {
		return e.Message + ": " + e.Cause.Error()
	}
	return e.Message
}

func (e *ClientError) Unwrap() error {
	return e.Cause
}

// ErrorType categorizes client errors for handling.
type ErrorType int

const (
	ErrTypeUnknown ErrorType = iota
	ErrTypeNotRunning
	ErrTypeTimeout
	ErrTypeModelNotFound
	ErrTypeConnection
	ErrTypeInvalidResponse
)

// Sentinel errors for easy checking.
var (
	ErrNotRunning    = &ClientError{Type: ErrTypeNotRunning, Message: "provider is not running"}
	ErrTimeout       = &ClientError{Type: ErrTypeTimeout, Message: "request timed out"}
	ErrModelNotFound = &ClientError{Type: ErrTypeModelNotFound, Message: "model not found"}
)

// =============================================================================
// GENERATION REQUEST
// =============================================================================

// Options is the union of both backends' generation parameters. Each client
// maps only its own subset onto the wire and ignores the rest; fields are
// passed through without reinterpretation.
type Options struct {
	Temperature   float64
	Seed          int
	MaxTokens     int
	KeepAlive     string
	TopK          int
	TopP          float64
	RepeatPenalty float64
	MinP          float64
}

// GenerateRequest describes one streaming generation.
type GenerateRequest struct {
	Model        string
	Prompt       string
	SystemPrompt string
	// Images holds base64-encoded attachments; a non-empty slice selects the
	// backend's multimodal path.
	Images  []string
	Options Options
}

// =============================================================================
// CLIENT INTERFACE
// =============================================================================

// Client abstracts one text-generation backend.
//
// Generate returns a live stream session once the connection is established;
// setup failures (unreachable backend, non-2xx status) are returned directly,
// while mid-stream failures arrive as the session's Error terminal event.
type Client interface {
	Provider() Provider

	// CheckRunning verifies the backend is reachable.
	CheckRunning(ctx context.Context) error

	// ListModels returns the ids of all generation-capable models.
	ListModels(ctx context.Context) ([]string, error)

	// ListVisionModels returns the ids of models that accept image inputs.
	ListVisionModels(ctx context.Context) ([]string, error)

	// Generate starts a streaming generation, multimodal when req.Images is
	// non-empty.
	Generate(ctx context.Context, req GenerateRequest) (*stream.Session, error)
}
