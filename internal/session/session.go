// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package session

import (
	"context"
	"errors"
	"log"
	"sort"
	"strings"
	"sync"

	"github.com/arcum42/sagechat/internal/config"
	"github.com/arcum42/sagechat/internal/history"
	"github.com/arcum42/sagechat/internal/prompts"
	"github.com/arcum42/sagechat/internal/provider"
	"github.com/arcum42/sagechat/internal/stream"
	"github.com/arcum42/sagechat/internal/telemetry"
)

// =============================================================================
// ERRORS
// =============================================================================

var (
	ErrEmptyPrompt = errors.New("prompt is empty")
	ErrNoModel     = errors.New("no model selected")
	ErrBusy        = errors.New("a generation is already running")
)

// =============================================================================
// STATE
// =============================================================================

// State is the orchestrator's lifecycle state.
type State int

const (
	StateIdle State = iota
	StateGenerating
)

func (s State) String() string {
	if s == StateGenerating {
		return "generating"
	}
	return "idle"
}

// =============================================================================
// ORCHESTRATOR
// =============================================================================

// Orchestrator owns the live chat session: active provider/model, current
// conversation, staged images and modifier toggles. It runs at most one
// generation at a time; Send while generating is a no-op.
//
// All session state lives on this one struct. Thread-safe.
type Orchestrator struct {
	registry *provider.Registry
	settings *config.SettingsStore
	history  *history.Store
	catalog  prompts.Catalog
	recorder *telemetry.Recorder
	notifier Notifier

	mu             sync.Mutex
	state          State
	prov           provider.Provider
	model          string
	conversationID string
	images         []stagedImage
	modifiers      map[string]bool
	live           *stream.Session
}

// New builds an orchestrator. The initial provider and model come from cfg;
// recorder may be nil to disable telemetry.
func New(cfg *config.Config, registry *provider.Registry, settings *config.SettingsStore,
	hist *history.Store, catalog prompts.Catalog, recorder *telemetry.Recorder, notifier Notifier) *Orchestrator {

	if notifier == nil {
		notifier = NopNotifier{}
	}

	prov, err := provider.Parse(cfg.DefaultProvider)
	if err != nil {
		prov = provider.Ollama
	}

	modifiers := make(map[string]bool)
	for _, key := range catalog.ModifierKeys() {
		if mod, ok := catalog.Modifier(key); ok && mod.Default {
			modifiers[key] = true
		}
	}

	return &Orchestrator{
		registry:  registry,
		settings:  settings,
		history:   hist,
		catalog:   catalog,
		recorder:  recorder,
		notifier:  notifier,
		prov:      prov,
		model:     cfg.DefaultModel,
		modifiers: modifiers,
	}
}

// SetNotifier replaces the notifier. Must be called before the first Send;
// front-ends that construct their view around an existing orchestrator use
// this to close the loop.
func (o *Orchestrator) SetNotifier(n Notifier) {
	if n == nil {
		n = NopNotifier{}
	}
	o.mu.Lock()
	defer o.mu.Unlock()
	o.notifier = n
}

// State returns the current lifecycle state.
func (o *Orchestrator) State() State {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.state
}

// Generating reports whether a generation is in flight.
func (o *Orchestrator) Generating() bool {
	return o.State() == StateGenerating
}

// =============================================================================
// PROVIDER / MODEL SELECTION
// =============================================================================

// CurrentProvider returns the active provider.
func (o *Orchestrator) CurrentProvider() provider.Provider {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.prov
}

// CurrentModel returns the selected model id, possibly empty.
func (o *Orchestrator) CurrentModel() string {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.model
}

// SetModel selects the active model.
func (o *Orchestrator) SetModel(model string) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.model = model
}

// SwitchProvider changes the active provider and reloads its model list
// before returning, so a caller can validate a model id against fresh data
// immediately after. The previously selected model is kept only if the new
// provider also serves it.
func (o *Orchestrator) SwitchProvider(ctx context.Context, p provider.Provider) error {
	if !p.Valid() {
		return &provider.ClientError{Type: provider.ErrTypeUnknown, Message: "unknown provider: " + string(p)}
	}

	o.mu.Lock()
	o.prov = p
	model := o.model
	o.mu.Unlock()

	o.registry.Invalidate(p)
	models, err := o.registry.ListModels(ctx, p, true)
	if err != nil {
		o.mu.Lock()
		o.model = ""
		o.mu.Unlock()
		return err
	}

	keep := ""
	for _, m := range models {
		if m == model {
			keep = model
			break
		}
	}
	o.mu.Lock()
	o.model = keep
	o.mu.Unlock()
	return nil
}

// Models returns the active provider's model list.
func (o *Orchestrator) Models(ctx context.Context) ([]string, error) {
	return o.registry.ListModels(ctx, o.CurrentProvider(), false)
}

// VisionModels returns the active provider's vision-capable models.
func (o *Orchestrator) VisionModels(ctx context.Context) ([]string, error) {
	return o.registry.ListVisionModels(ctx, o.CurrentProvider(), false)
}

// UpdateSettings applies fn to the live settings and persists the result.
func (o *Orchestrator) UpdateSettings(fn func(*config.Settings)) {
	s := o.settings.Current()
	fn(&s)
	o.settings.Save(s)
}

// =============================================================================
// MODIFIER TOGGLES
// =============================================================================

// SetModifier enables or disables a prompt modifier by catalog key.
func (o *Orchestrator) SetModifier(key string, enabled bool) {
	o.mu.Lock()
	defer o.mu.Unlock()
	if enabled {
		o.modifiers[key] = true
	} else {
		delete(o.modifiers, key)
	}
}

// EnabledModifiers returns the enabled modifier keys, sorted.
func (o *Orchestrator) EnabledModifiers() []string {
	o.mu.Lock()
	defer o.mu.Unlock()

	keys := make([]string, 0, len(o.modifiers))
	for key := range o.modifiers {
		keys = append(keys, key)
	}
	sort.Strings(keys)
	return keys
}

// =============================================================================
// CONVERSATION SELECTION
// =============================================================================

// CurrentConversation returns the active conversation id, empty when the
// next send starts a fresh one.
func (o *Orchestrator) CurrentConversation() string {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.conversationID
}

// SelectConversation makes an existing conversation the active one.
func (o *Orchestrator) SelectConversation(id string) error {
	if _, err := o.history.Get(id); err != nil {
		return err
	}
	o.mu.Lock()
	defer o.mu.Unlock()
	o.conversationID = id
	return nil
}

// NewConversation detaches from the active conversation; the next send
// creates a fresh one.
func (o *Orchestrator) NewConversation() {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.conversationID = ""
}

// DeleteConversation removes a conversation. Deleting the active one resets
// the session to no conversation.
func (o *Orchestrator) DeleteConversation(id string) error {
	if err := o.history.Delete(id); err != nil {
		return err
	}
	o.mu.Lock()
	if o.conversationID == id {
		o.conversationID = ""
	}
	o.mu.Unlock()
	o.notifier.HistoryChanged()
	return nil
}

// =============================================================================
// SEND
// =============================================================================

// Send runs one full generation: validates input, assembles the prompt,
// records the user turn, streams the response and commits the assistant
// turn. It blocks until the stream reaches a terminal event and returns nil
// for a completed or user-stopped generation.
//
// Only the raw user text is written to history; template, modifiers and the
// injected history window exist solely on the wire.
func (o *Orchestrator) Send(ctx context.Context, raw string) error {
	trimmed := strings.TrimSpace(raw)
	if trimmed == "" {
		o.notifier.Status("enter a prompt")
		return ErrEmptyPrompt
	}

	o.mu.Lock()
	if o.state == StateGenerating {
		o.mu.Unlock()
		o.notifier.Status("please wait for the current response to finish")
		return ErrBusy
	}
	if o.model == "" {
		o.mu.Unlock()
		o.notifier.Status("select a model first")
		return ErrNoModel
	}
	o.state = StateGenerating
	prov := o.prov
	model := o.model
	convID := o.conversationID
	images := o.images
	o.images = nil
	var enabled []string
	for key := range o.modifiers {
		enabled = append(enabled, key)
	}
	o.mu.Unlock()
	sort.Strings(enabled)

	settings := o.settings.Current()

	err := o.generate(ctx, prov, model, convID, trimmed, enabled, images, settings)

	o.mu.Lock()
	o.state = StateIdle
	o.live = nil
	o.mu.Unlock()
	return err
}

func (o *Orchestrator) generate(ctx context.Context, prov provider.Provider, model, convID,
	trimmed string, enabled []string, images []stagedImage, settings config.Settings) error {

	// Prior messages are captured before the user turn is appended so the
	// injected window never contains the message being sent.
	var prior []history.Message
	if convID != "" {
		if conv, err := o.history.Get(convID); err == nil {
			prior = conv.Messages
		} else {
			// The active conversation was deleted underneath us; start fresh.
			convID = ""
		}
	}

	rendered := o.catalog.Render(settings.PromptTemplate, trimmed)
	var snippets []string
	for _, key := range enabled {
		if mod, ok := o.catalog.Modifier(key); ok {
			snippets = append(snippets, mod.Prompt)
		}
	}
	maxHistory := 0
	if settings.IncludeHistory {
		maxHistory = settings.MaxHistoryMessages
	}
	prompt := assemblePrompt(rendered, snippets, prior, maxHistory)

	// The user turn is committed before dispatch and survives any failure
	// below, so a failed generation never erases the prompt from history.
	conv, err := o.history.Append(convID, history.RoleUser, trimmed, history.Metadata{
		Provider: string(prov),
		Model:    model,
	})
	if err != nil {
		o.notifier.Failed(err)
		return err
	}
	o.mu.Lock()
	o.conversationID = conv.ID
	o.mu.Unlock()
	o.notifier.HistoryChanged()

	req := provider.GenerateRequest{
		Model:        model,
		Prompt:       prompt,
		SystemPrompt: settings.SystemPrompt,
		Options:      provider.OptionsFromSettings(prov, settings),
	}
	for _, img := range images {
		req.Images = append(req.Images, img.encoded)
	}

	sess, err := o.registry.Generate(ctx, prov, req)
	if err != nil {
		o.recordOutcome(prov, model, stream.Stats{}, false, err)
		o.notifier.Failed(err)
		return err
	}

	o.mu.Lock()
	o.live = sess
	o.mu.Unlock()

	return o.consume(sess, prov, model)
}

// consume drains the stream's event channel until the terminal event.
func (o *Orchestrator) consume(sess *stream.Session, prov provider.Provider, model string) error {
	for ev := range sess.Events() {
		switch ev.Kind {
		case stream.EventChunk:
			// Chunks buffered before a stop was requested still drain
			// here; a stopped session renders nothing further.
			if sess.Stopped() {
				continue
			}
			o.notifier.Chunk(ev.Text, sess.Text())

		case stream.EventDone:
			full := ev.Full
			o.mu.Lock()
			convID := o.conversationID
			o.mu.Unlock()
			if _, err := o.history.Append(convID, history.RoleAssistant, full, history.Metadata{
				Provider: string(prov),
				Model:    model,
			}); err != nil {
				log.Printf("session: recording assistant turn failed: %v", err)
			}
			o.recordOutcome(prov, model, sess.Stats(), false, nil)
			o.notifier.HistoryChanged()
			o.notifier.Done(full, sess.Stats())
			return nil

		case stream.EventError:
			o.recordOutcome(prov, model, sess.Stats(), false, ev.Err)
			o.notifier.Failed(ev.Err)
			return ev.Err

		case stream.EventStopped:
			// Partial output is discarded, not recorded.
			o.recordOutcome(prov, model, sess.Stats(), true, nil)
			o.notifier.Stopped()
			return nil
		}
	}
	return nil
}

// Stop cancels the in-flight generation, if any. A no-op when idle.
func (o *Orchestrator) Stop() {
	o.mu.Lock()
	live := o.live
	o.mu.Unlock()
	if live != nil {
		live.Stop()
	}
}

func (o *Orchestrator) recordOutcome(prov provider.Provider, model string, stats stream.Stats, stopped bool, genErr error) {
	if o.recorder == nil {
		return
	}
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
	if err := o.recorder.Record(context.Background(), g); err != nil {
		log.Printf("session: telemetry record failed: %v", err)
	}
}
