// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package server

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log"
	"net/http"
	"time"

	"github.com/arcum42/sagechat/internal/config"
	"github.com/arcum42/sagechat/internal/preset"
	"github.com/arcum42/sagechat/internal/prompts"
	"github.com/arcum42/sagechat/internal/provider"
	"github.com/arcum42/sagechat/internal/stream"
	"github.com/arcum42/sagechat/internal/telemetry"
)

// ============================================================================
// CONSTANTS
// ============================================================================

const (
	// MaxRequestBodySize bounds request bodies. Large enough for ten
	// base64 images at the attachment size limit.
	MaxRequestBodySize = 160 * 1024 * 1024

	// Version is the API version reported by /health.
	Version = "1.0.0"
)

// ============================================================================
// SERVER
// ============================================================================

// Server exposes the chat backend over HTTP for sidebar-style front-ends:
// settings, model lists, streaming generation, the prompt catalog and
// preset CRUD.
type Server struct {
	cfg      *config.Config
	registry *provider.Registry
	settings *config.SettingsStore
	catalog  prompts.Catalog
	presets  *preset.Manager
	recorder *telemetry.Recorder

	startTime time.Time
	httpSrv   *http.Server
}

// New creates a server. recorder may be nil.
func New(cfg *config.Config, registry *provider.Registry, settings *config.SettingsStore,
	catalog prompts.Catalog, presets *preset.Manager, recorder *telemetry.Recorder) *Server {

	return &Server{
		cfg:       cfg,
		registry:  registry,
		settings:  settings,
		catalog:   catalog,
		presets:   presets,
		recorder:  recorder,
		startTime: time.Now(),
	}
}

// Handler builds the routed and middleware-wrapped handler.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("GET /health", s.handleHealth)
	mux.HandleFunc("GET /stats", s.handleStats)
	mux.HandleFunc("GET /settings", s.handleGetSettings)
	mux.HandleFunc("PUT /settings", s.handlePutSettings)
	mux.HandleFunc("GET /models", s.handleModels(false))
	mux.HandleFunc("GET /vision_models", s.handleModels(true))
	mux.HandleFunc("POST /generate", s.handleGenerate(false))
	mux.HandleFunc("POST /generate_vision", s.handleGenerate(true))
	mux.HandleFunc("GET /prompts", s.handlePrompts)
	mux.HandleFunc("GET /presets", s.handleListPresets)
	mux.HandleFunc("POST /presets/{id}", s.handleSavePreset)
	mux.HandleFunc("DELETE /presets/{id}", s.handleDeletePreset)

	chain := Chain(
		RecoveryMiddleware(),
		LoggingMiddleware(),
		RateLimitMiddleware(NewRateLimiter(s.cfg.Server.RateLimit, s.cfg.Server.RateBurst)),
	)
	return chain(mux)
}

// ListenAndServe serves until ctx is cancelled, then shuts down gracefully.
func (s *Server) ListenAndServe(ctx context.Context) error {
	s.httpSrv = &http.Server{
		Addr:    s.cfg.Server.ListenAddr,
		Handler: s.Handler(),
		// No write timeout: generation responses stream for as long as
		// the provider produces tokens.
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		log.Printf("server: listening on %s", s.cfg.Server.ListenAddr)
		errCh <- s.httpSrv.ListenAndServe()
	}()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return s.httpSrv.Shutdown(shutdownCtx)
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	}
}

// ============================================================================
// BASIC ENDPOINTS
// ============================================================================

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
	defer cancel()

	backends := make(map[string]string)
	for _, p := range []provider.Provider{provider.Ollama, provider.LMStudio} {
		if _, err := s.registry.Client(p); err != nil {
			continue
		}
		if err := s.registry.Ping(ctx, p); err != nil {
			backends[p.String()] = "unreachable"
		} else {
			backends[p.String()] = "ok"
		}
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"status":    "ok",
		"version":   Version,
		"uptime":    time.Since(s.startTime).Round(time.Second).String(),
		"providers": backends,
	})
}

func (s *Server) handleStats(w http.ResponseWriter, r *http.Request) {
	sum, err := s.recorder.Summarize(r.Context(), time.Time{})
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"uptime":            time.Since(s.startTime).Round(time.Second).String(),
		"generations":       sum.Generations,
		"prompt_tokens":     sum.PromptTokens,
		"completion_tokens": sum.CompletionTokens,
		"errors":            sum.Errors,
		"stops":             sum.Stops,
		"per_model":         perModelStats(sum),
	})
}

func perModelStats(sum telemetry.Summary) []map[string]any {
	out := make([]map[string]any, 0, len(sum.PerModel))
	for _, u := range sum.PerModel {
		out = append(out, map[string]any{
			"provider":          u.Provider,
			"model":             u.Model,
			"generations":       u.Generations,
			"prompt_tokens":     u.PromptTokens,
			"completion_tokens": u.CompletionTokens,
			"errors":            u.Errors,
			"stops":             u.Stops,
		})
	}
	return out
}

// ============================================================================
// SETTINGS
// ============================================================================

func (s *Server) handleGetSettings(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"default_provider": s.cfg.DefaultProvider,
		"settings":         s.settings.Current(),
	})
}

func (s *Server) handlePutSettings(w http.ResponseWriter, r *http.Request) {
	// Decoding over the current value keeps omitted keys unchanged.
	current := s.settings.Current()
	if err := decodeBody(r, &current); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	s.settings.Save(current)
	writeJSON(w, http.StatusOK, current)
}

// ============================================================================
// MODELS
// ============================================================================

func (s *Server) handleModels(vision bool) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		prov, err := s.providerParam(r)
		if err != nil {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}
		force := r.URL.Query().Get("force") == "true"

		var models []string
		if vision {
			models, err = s.registry.ListVisionModels(r.Context(), prov, force)
		} else {
			models, err = s.registry.ListModels(r.Context(), prov, force)
		}
		if err != nil {
			writeError(w, providerStatus(err), err.Error())
			return
		}
		if models == nil {
			models = []string{}
		}
		writeJSON(w, http.StatusOK, map[string]any{"models": models})
	}
}

func (s *Server) providerParam(r *http.Request) (provider.Provider, error) {
	raw := r.URL.Query().Get("provider")
	if raw == "" {
		raw = s.cfg.DefaultProvider
	}
	return provider.Parse(raw)
}

// providerStatus maps a client error onto an HTTP status.
func providerStatus(err error) int {
	var ce *provider.ClientError
	if errors.As(err, &ce) {
		switch ce.Type {
		case provider.ErrTypeNotRunning, provider.ErrTypeConnection:
			return http.StatusBadGateway
		case provider.ErrTypeModelNotFound:
			return http.StatusNotFound
		case provider.ErrTypeTimeout:
			return http.StatusGatewayTimeout
		}
	}
	return http.StatusInternalServerError
}

// ============================================================================
// GENERATION
// ============================================================================

// generateRequest is the wire shape of /generate and /generate_vision.
// Omitted option fields fall back to the stored settings for the chosen
// provider.
type generateRequest struct {
	Provider     string           `json:"provider"`
	Model        string           `json:"model"`
	Prompt       string           `json:"prompt"`
	SystemPrompt string           `json:"system_prompt,omitempty"`
	Images       []string         `json:"images,omitempty"`
	Options      *generateOptions `json:"options,omitempty"`
}

type generateOptions struct {
	Temperature   *float64 `json:"temperature,omitempty"`
	Seed          *int     `json:"seed,omitempty"`
	MaxTokens     *int     `json:"max_tokens,omitempty"`
	KeepAlive     *string  `json:"keep_alive,omitempty"`
	TopK          *int     `json:"top_k,omitempty"`
	TopP          *float64 `json:"top_p,omitempty"`
	RepeatPenalty *float64 `json:"repeat_penalty,omitempty"`
	MinP          *float64 `json:"min_p,omitempty"`
}

func (o *generateOptions) overlay(base provider.Options) provider.Options {
	if o == nil {
		return base
	}
	if o.Temperature != nil {
		base.Temperature = *o.Temperature
	}
	if o.Seed != nil {
		base.Seed = *o.Seed
	}
	if o.MaxTokens != nil {
		base.MaxTokens = *o.MaxTokens
	}
	if o.KeepAlive != nil {
		base.KeepAlive = *o.KeepAlive
	}
	if o.TopK != nil {
		base.TopK = *o.TopK
	}
	if o.TopP != nil {
		base.TopP = *o.TopP
	}
	if o.RepeatPenalty != nil {
		base.RepeatPenalty = *o.RepeatPenalty
	}
	if o.MinP != nil {
		base.MinP = *o.MinP
	}
	return base
}

func (s *Server) handleGenerate(vision bool) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req generateRequest
		if err := decodeBody(r, &req); err != nil {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}
		if req.Prompt == "" {
			writeError(w, http.StatusBadRequest, "prompt is required")
			return
		}
		if vision && len(req.Images) == 0 {
			writeError(w, http.StatusBadRequest, "images are required")
			return
		}

		raw := req.Provider
		if raw == "" {
			raw = s.cfg.DefaultProvider
		}
		prov, err := provider.Parse(raw)
		if err != nil {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}

		genReq := provider.GenerateRequest{
			Model:        req.Model,
			Prompt:       req.Prompt,
			SystemPrompt: req.SystemPrompt,
			Options:      req.Options.overlay(provider.OptionsFromSettings(prov, s.settings.Current())),
		}
		if vision {
			genReq.Images = req.Images
		}

		sess, err := s.registry.Generate(r.Context(), prov, genReq)
		if err != nil {
			writeError(w, providerStatus(err), err.Error())
			return
		}

		// Chunked plain text. The client aborting the request cancels
		// r.Context(), which tears down the provider stream.
		w.Header().Set("Content-Type", "text/plain; charset=utf-8")
		w.Header().Set("X-Content-Type-Options", "nosniff")
		w.WriteHeader(http.StatusOK)
		flusher, _ := w.(http.Flusher)

		s.streamResponse(w, flusher, sess, prov, req.Model)
	}
}

func (s *Server) streamResponse(w io.Writer, flusher http.Flusher, sess *stream.Session,
	prov provider.Provider, model string) {

	for ev := range sess.Events() {
		switch ev.Kind {
		case stream.EventChunk:
			if _, err := io.WriteString(w, ev.Text); err != nil {
				sess.Stop()
				continue
			}
			if flusher != nil {
				flusher.Flush()
			}
		case stream.EventDone:
			s.record(prov, model, sess.Stats(), false, nil)
		case stream.EventError:
			// Headers are already on the wire; all that is left is to log
			// and truncate the body.
			log.Printf("server: generation failed mid-stream: %v", ev.Err)
			s.record(prov, model, sess.Stats(), false, ev.Err)
		case stream.EventStopped:
			s.record(prov, model, sess.Stats(), true, nil)
		}
	}
}

func (s *Server) record(prov provider.Provider, model string, stats stream.Stats, stopped bool, genErr error) {
	g := telemetry.Generation{
		StartedAt:        stats.StartTime,
		Provider:         string(prov),
		Model:            model,
		PromptTokens:     stats.PromptTokens,
		CompletionTokens: stats.CompletionTokens,
		Duration:         stats.Duration,
		TTFT:             stats.TTFT,
		Stopped:          stopped,
	}
	if genErr != nil {
		g.Error = genErr.Error()
	}
	if err := s.recorder.Record(context.Background(), g); err != nil {
		log.Printf("server: telemetry record failed: %v", err)
	}
}

// ============================================================================
// PROMPTS + PRESETS
// ============================================================================

func (s *Server) handlePrompts(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.catalog)
}

func (s *Server) handleListPresets(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.presets.List())
}

func (s *Server) handleSavePreset(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	var p preset.Preset
	if err := decodeBody(r, &p); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	s.presets.Save(id, p)
	saved, err := s.presets.Get(id)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, saved)
}

func (s *Server) handleDeletePreset(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	switch err := s.presets.Delete(id); {
	case err == nil:
		w.WriteHeader(http.StatusNoContent)
	case errors.Is(err, preset.ErrPresetNotFound):
		writeError(w, http.StatusNotFound, err.Error())
	case errors.Is(err, preset.ErrBuiltinPreset):
		writeError(w, http.StatusForbidden, err.Error())
	default:
		writeError(w, http.StatusInternalServerError, err.Error())
	}
}

// ============================================================================
// HELPERS
// ============================================================================

func decodeBody(r *http.Request, v any) error {
	body := http.MaxBytesReader(nil, r.Body, MaxRequestBodySize)
	defer body.Close()
	dec := json.NewDecoder(body)
	if err := dec.Decode(v); err != nil {
		return errors.New("invalid request body: " + err.Error())
	}
	return nil
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Printf("server: encoding response failed: %v", err)
	}
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}
