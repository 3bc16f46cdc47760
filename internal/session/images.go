// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package session

import (
	"encoding/base64"
	"fmt"
	"net/http"
	"strings"
)

// =============================================================================
// IMAGE ATTACHMENTS
// =============================================================================

const (
	// MaxImages caps staged attachments per send.
	MaxImages = 10

	// MaxImageBytes is the per-file size limit.
	MaxImageBytes = 10 << 20
)

// ImageFile is one incoming attachment candidate.
type ImageFile struct {
	Name string
	Data []byte
}

// stagedImage holds an accepted attachment until the next send consumes it.
type stagedImage struct {
	name    string
	encoded string // base64, wire-ready
}

var allowedImageTypes = map[string]bool{
	"image/jpeg": true,
	"image/png":  true,
	"image/webp": true,
	"image/gif":  true,
}

// validateImage returns a human-readable rejection reason, or "" when the
// file is acceptable. The MIME type comes from content sniffing, not the
// filename.
func validateImage(f ImageFile) string {
	if len(f.Data) == 0 {
		return "empty file"
	}
	if len(f.Data) > MaxImageBytes {
		return fmt.Sprintf("exceeds %d MB limit", MaxImageBytes>>20)
	}
	mime := http.DetectContentType(f.Data)
	if !allowedImageTypes[mime] {
		return fmt.Sprintf("unsupported type %s (allowed: jpeg, png, webp, gif)", mime)
	}
	return ""
}

// AttachImages validates and stages attachments for the next send. Files
// beyond the remaining capacity are dropped with a warning naming the cap;
// per-file rejections are batched into a single warning. Returns the number
// of files accepted.
func (o *Orchestrator) AttachImages(files []ImageFile) int {
	o.mu.Lock()

	capacity := MaxImages - len(o.images)
	if capacity < 0 {
		capacity = 0
	}

	var rejected []string
	truncated := 0
	accepted := 0

	for _, f := range files {
		if reason := validateImage(f); reason != "" {
			rejected = append(rejected, fmt.Sprintf("%s: %s", f.Name, reason))
			continue
		}
		if accepted >= capacity {
			truncated++
			continue
		}
		o.images = append(o.images, stagedImage{
			name:    f.Name,
			encoded: base64.StdEncoding.EncodeToString(f.Data),
		})
		accepted++
	}
	o.mu.Unlock()

	if truncated > 0 {
		o.notifier.Warning(fmt.Sprintf("image limit is %d per message; dropped %d file(s)", MaxImages, truncated))
	}
	if len(rejected) > 0 {
		o.notifier.Warning("rejected attachments:\n" + strings.Join(rejected, "\n"))
	}
	return accepted
}

// StagedImages returns the names of currently staged attachments.
func (o *Orchestrator) StagedImages() []string {
	o.mu.Lock()
	defer o.mu.Unlock()

	names := make([]string, len(o.images))
	for i, img := range o.images {
		names[i] = img.name
	}
	return names
}

// ClearImages discards all staged attachments.
func (o *Orchestrator) ClearImages() {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.images = nil
}
