// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package provider abstracts the two supported text-generation backends
// behind one Client interface.
//
// Ollama is reached over its native /api surface (NDJSON streaming);
// LM Studio over /api/v0 for model metadata and the OpenAI-compatible
// /v1/chat/completions surface (SSE streaming) for generation. Both clients
// produce a stream.Session, so consumers never see transport differences.
//
// Options carries the union of both backends' generation parameters; each
// client maps only its own subset onto the wire and passes the values
// through without reinterpretation.
//
// Registry bundles the configured clients with a TTL model-list cache whose
// forceRefresh flag bypasses staleness, and a Ping health check per backend.
//
// Errors follow one taxonomy: ClientError with an ErrorType category, plus
// the sentinels ErrNotRunning, ErrTimeout and ErrModelNotFound for
// errors.Is checks.
package provider
