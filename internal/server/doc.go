// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package server exposes the chat backend over HTTP for sidebar-style
// front-ends.
//
// Endpoints:
//   - GET  /health           - liveness and version
//   - GET  /stats            - usage totals from telemetry
//   - GET  /settings         - default provider + generation settings
//   - PUT  /settings         - partial settings update
//   - GET  /models           - model list (?provider=&force=)
//   - GET  /vision_models    - vision-capable models (?provider=&force=)
//   - POST /generate         - streaming generation, chunked plain text
//   - POST /generate_vision  - same, with base64 images in the body
//   - GET  /prompts          - prompt template catalog
//   - GET  /presets          - merged preset table
//   - POST /presets/{id}     - save preset / built-in override
//   - DELETE /presets/{id}   - delete preset or revert override
//
// Requests pass through panic recovery, request logging and a per-IP token
// bucket rate limiter.
package server
