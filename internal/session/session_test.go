// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package session

import (
	"context"
	"errors"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/arcum42/sagechat/internal/config"
	"github.com/arcum42/sagechat/internal/history"
	"github.com/arcum42/sagechat/internal/prompts"
	"github.com/arcum42/sagechat/internal/provider"
	"github.com/arcum42/sagechat/internal/stream"
)

// =============================================================================
// FAKES
// =============================================================================

// scriptedClient is a provider.Client whose Generate runs a caller-supplied
// script against the stream session.
type scriptedClient struct {
	prov   provider.Provider
	models []string
	genErr error
	script func(sess *stream.Session, req provider.GenerateRequest)

	mu       sync.Mutex
	requests []provider.GenerateRequest
}

func (c *scriptedClient) Provider() provider.Provider        { return c.prov }
func (c *scriptedClient) CheckRunning(context.Context) error { return nil }

func (c *scriptedClient) ListModels(context.Context) ([]string, error) {
	return c.models, nil
}

func (c *scriptedClient) ListVisionModels(context.Context) ([]string, error) {
	return c.models, nil
}

func (c *scriptedClient) Generate(ctx context.Context, req provider.GenerateRequest) (*stream.Session, error) {
	c.mu.Lock()
	c.requests = append(c.requests, req)
	c.mu.Unlock()
	if c.genErr != nil {
		return nil, c.genErr
	}
	sess := stream.NewSession(ctx)
	go c.script(sess, req)
	return sess, nil
}

func (c *scriptedClient) lastRequest(t *testing.T) provider.GenerateRequest {
	t.Helper()
	c.mu.Lock()
	defer c.mu.Unlock()
	if len(c.requests) == 0 {
		t.Fatal("no generate request captured")
	}
	return c.requests[len(c.requests)-1]
}

// recordingNotifier captures notifications for assertions.
type recordingNotifier struct {
	NopNotifier
	mu       sync.Mutex
	chunks   []string
	done     []string
	failed   []error
	stopped  int
	statuses []string
	warnings []string
}

func (n *recordingNotifier) Chunk(delta, accumulated string) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.chunks = append(n.chunks, delta)
}

func (n *recordingNotifier) Done(full string, _ stream.Stats) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.done = append(n.done, full)
}

func (n *recordingNotifier) Failed(err error) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.failed = append(n.failed, err)
}

func (n *recordingNotifier) Stopped() {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.stopped++
}

func (n *recordingNotifier) Status(msg string) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.statuses = append(n.statuses, msg)
}

func (n *recordingNotifier) Warning(msg string) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.warnings = append(n.warnings, msg)
}

func newTestOrchestrator(t *testing.T, client *scriptedClient, notifier Notifier) *Orchestrator {
	t.Helper()
	cfg := config.Default()
	cfg.DefaultProvider = string(client.prov)
	cfg.DefaultModel = "llama3:8b"

	registry := provider.NewRegistryWithClients(0, client)
	settings := config.NewSettingsStore(filepath.Join(t.TempDir(), "settings.json"))
	hist := history.NewStore(t.TempDir())
	return New(cfg, registry, settings, hist, prompts.Builtin(), nil, notifier)
}

func echoScript(reply ...string) func(*stream.Session, provider.GenerateRequest) {
	return func(sess *stream.Session, _ provider.GenerateRequest) {
		for _, chunk := range reply {
			if !sess.Send(chunk) {
				break
			}
		}
		sess.Done()
	}
}

// =============================================================================
// SEND TESTS
// =============================================================================

func TestSendHappyPath(t *testing.T) {
	client := &scriptedClient{prov: provider.Ollama, script: echoScript("Hel", "lo!")}
	notifier := &recordingNotifier{}
	o := newTestOrchestrator(t, client, notifier)

	if err := o.Send(context.Background(), "  hi there  "); err != nil {
		t.Fatalf("Send failed: %v", err)
	}
	if o.State() != StateIdle {
		t.Errorf("state = %v, want idle", o.State())
	}

	conv, err := o.historyConversation()
	if err != nil {
		t.Fatalf("no conversation: %v", err)
	}
	if len(conv.Messages) != 2 {
		t.Fatalf("message count = %d, want user + assistant", len(conv.Messages))
	}
	if conv.Messages[0].Role != history.RoleUser || conv.Messages[0].Content != "hi there" {
		t.Errorf("user turn = %+v, want trimmed raw text", conv.Messages[0])
	}
	if conv.Messages[1].Role != history.RoleAssistant || conv.Messages[1].Content != "Hello!" {
		t.Errorf("assistant turn = %+v", conv.Messages[1])
	}
	if len(notifier.done) != 1 || notifier.done[0] != "Hello!" {
		t.Errorf("done notifications = %v", notifier.done)
	}
}

// historyConversation returns the active conversation.
func (o *Orchestrator) historyConversation() (history.Conversation, error) {
	return o.history.Get(o.CurrentConversation())
}

func TestSendRejectsEmptyPrompt(t *testing.T) {
	client := &scriptedClient{prov: provider.Ollama, script: echoScript("x")}
	notifier := &recordingNotifier{}
	o := newTestOrchestrator(t, client, notifier)

	if err := o.Send(context.Background(), "   \n  "); !errors.Is(err, ErrEmptyPrompt) {
		t.Errorf("err = %v, want ErrEmptyPrompt", err)
	}
	if o.CurrentConversation() != "" {
		t.Error("empty send created a conversation")
	}
	if len(notifier.statuses) == 0 {
		t.Error("no status message for empty prompt")
	}
}

func TestSendRejectsWithoutModel(t *testing.T) {
	client := &scriptedClient{prov: provider.Ollama, script: echoScript("x")}
	o := newTestOrchestrator(t, client, &recordingNotifier{})
	o.SetModel("")

	if err := o.Send(context.Background(), "hello"); !errors.Is(err, ErrNoModel) {
		t.Errorf("err = %v, want ErrNoModel", err)
	}
}

func TestSingleFlight(t *testing.T) {
	release := make(chan struct{})
	started := make(chan struct{})
	client := &scriptedClient{prov: provider.Ollama,
		script: func(sess *stream.Session, _ provider.GenerateRequest) {
			sess.Send("partial")
			close(started)
			<-release
			sess.Done()
		}}
	o := newTestOrchestrator(t, client, &recordingNotifier{})

	firstDone := make(chan error, 1)
	go func() { firstDone <- o.Send(context.Background(), "first") }()
	<-started

	if err := o.Send(context.Background(), "second"); !errors.Is(err, ErrBusy) {
		t.Errorf("second send err = %v, want ErrBusy", err)
	}

	close(release)
	if err := <-firstDone; err != nil {
		t.Fatalf("first send failed: %v", err)
	}

	client.mu.Lock()
	requests := len(client.requests)
	client.mu.Unlock()
	if requests != 1 {
		t.Errorf("generate requests = %d, want 1", requests)
	}
	conv, err := o.historyConversation()
	if err != nil {
		t.Fatal(err)
	}
	userTurns := 0
	for _, m := range conv.Messages {
		if m.Role == history.RoleUser {
			userTurns++
		}
	}
	if userTurns != 1 {
		t.Errorf("user turns = %d, want 1", userTurns)
	}
}

func TestStopDiscardsPartialOutput(t *testing.T) {
	chunkSent := make(chan struct{})
	client := &scriptedClient{prov: provider.Ollama,
		script: func(sess *stream.Session, _ provider.GenerateRequest) {
			sess.Send("partial ")
			close(chunkSent)
			for sess.Send("more ") {
				time.Sleep(time.Millisecond)
			}
			sess.Done()
		}}
	notifier := &recordingNotifier{}
	o := newTestOrchestrator(t, client, notifier)

	done := make(chan error, 1)
	go func() { done <- o.Send(context.Background(), "tell me a story") }()
	<-chunkSent
	o.Stop()

	if err := <-done; err != nil {
		t.Fatalf("stopped send returned error: %v", err)
	}
	if o.State() != StateIdle {
		t.Errorf("state = %v, want idle", o.State())
	}

	notifier.mu.Lock()
	stopped := notifier.stopped
	failed := len(notifier.failed)
	notifier.mu.Unlock()
	if stopped != 1 {
		t.Errorf("stopped notifications = %d, want 1", stopped)
	}
	if failed != 0 {
		t.Errorf("failure notifications = %d, want 0", failed)
	}

	conv, err := o.historyConversation()
	if err != nil {
		t.Fatal(err)
	}
	for _, m := range conv.Messages {
		if m.Role == history.RoleAssistant {
			t.Errorf("assistant turn recorded after stop: %q", m.Content)
		}
	}
}

func TestTransportErrorPreservesUserTurn(t *testing.T) {
	client := &scriptedClient{prov: provider.Ollama,
		script: func(sess *stream.Session, _ provider.GenerateRequest) {
			sess.Fail(&provider.ClientError{Type: provider.ErrTypeConnection, Message: "connection refused"})
		}}
	notifier := &recordingNotifier{}
	o := newTestOrchestrator(t, client, notifier)

	err := o.Send(context.Background(), "hello")
	if err == nil {
		t.Fatal("Send succeeded, want transport error")
	}
	if o.State() != StateIdle {
		t.Errorf("state = %v, want idle", o.State())
	}

	conv, convErr := o.historyConversation()
	if convErr != nil {
		t.Fatalf("conversation missing after failure: %v", convErr)
	}
	users, assistants := 0, 0
	for _, m := range conv.Messages {
		switch m.Role {
		case history.RoleUser:
			users++
		case history.RoleAssistant:
			assistants++
		}
	}
	if users != 1 || assistants != 0 {
		t.Errorf("turns = %d user / %d assistant, want 1/0", users, assistants)
	}
	if len(notifier.failed) != 1 {
		t.Errorf("failure notifications = %d, want 1", len(notifier.failed))
	}
}

func TestGenerateSetupErrorPreservesUserTurn(t *testing.T) {
	client := &scriptedClient{prov: provider.Ollama, genErr: provider.ErrNotRunning}
	o := newTestOrchestrator(t, client, &recordingNotifier{})

	if err := o.Send(context.Background(), "hello"); !errors.Is(err, provider.ErrNotRunning) {
		t.Fatalf("err = %v, want ErrNotRunning", err)
	}
	conv, err := o.historyConversation()
	if err != nil {
		t.Fatalf("conversation missing: %v", err)
	}
	if len(conv.Messages) != 1 || conv.Messages[0].Role != history.RoleUser {
		t.Errorf("messages = %+v, want single user turn", conv.Messages)
	}
}

func TestHistoryWindowInjection(t *testing.T) {
	client := &scriptedClient{prov: provider.Ollama, script: echoScript("ok")}
	o := newTestOrchestrator(t, client, &recordingNotifier{})
	o.UpdateSettings(func(s *config.Settings) {
		s.IncludeHistory = true
		s.MaxHistoryMessages = 2
	})

	// Build up four prior turns.
	for _, text := range []string{"one", "two"} {
		if err := o.Send(context.Background(), text); err != nil {
			t.Fatalf("Send(%q) failed: %v", text, err)
		}
	}

	if err := o.Send(context.Background(), "three"); err != nil {
		t.Fatal(err)
	}
	prompt := client.lastRequest(t).Prompt

	if strings.Count(prompt, historyOpenMarker) != 1 || strings.Count(prompt, historyCloseMarker) != 1 {
		t.Fatalf("markers not present exactly once in:\n%s", prompt)
	}
	// Four prior messages exist; the window carries only the newest two,
	// oldest first.
	wantBlock := historyOpenMarker + "\nUser: two\nAssistant: ok\n" + historyCloseMarker
	if !strings.Contains(prompt, wantBlock) {
		t.Errorf("prompt window wrong:\n%s", prompt)
	}
	if !strings.Contains(prompt, currentMarker+"\nthree") {
		t.Errorf("current message block missing:\n%s", prompt)
	}

	// The stored user message is the raw text, not the assembly.
	conv, err := o.historyConversation()
	if err != nil {
		t.Fatal(err)
	}
	last := conv.Messages[len(conv.Messages)-2]
	if last.Content != "three" {
		t.Errorf("stored user text = %q, want %q", last.Content, "three")
	}
}

func TestHistoryDisabledOmitsMarkers(t *testing.T) {
	client := &scriptedClient{prov: provider.Ollama, script: echoScript("ok")}
	o := newTestOrchestrator(t, client, &recordingNotifier{})
	o.UpdateSettings(func(s *config.Settings) { s.IncludeHistory = false })

	if err := o.Send(context.Background(), "one"); err != nil {
		t.Fatal(err)
	}
	if err := o.Send(context.Background(), "two"); err != nil {
		t.Fatal(err)
	}
	if prompt := client.lastRequest(t).Prompt; strings.Contains(prompt, historyOpenMarker) {
		t.Errorf("history injected while disabled:\n%s", prompt)
	}
}

func TestTemplateAndModifierAssembly(t *testing.T) {
	client := &scriptedClient{prov: provider.Ollama, script: echoScript("ok")}
	o := newTestOrchestrator(t, client, &recordingNotifier{})
	o.UpdateSettings(func(s *config.Settings) {
		s.IncludeHistory = false
		s.PromptTemplate = "describe"
	})
	o.SetModifier("concise", true)

	if err := o.Send(context.Background(), "a mountain lake"); err != nil {
		t.Fatal(err)
	}
	req := client.lastRequest(t)

	if !strings.Contains(req.Prompt, "a mountain lake") {
		t.Errorf("raw text missing from prompt: %q", req.Prompt)
	}
	if req.Prompt == "a mountain lake" {
		t.Error("template not applied")
	}
	concise, _ := prompts.Builtin().Modifier("concise")
	if !strings.Contains(req.Prompt, concise.Prompt) {
		t.Errorf("modifier snippet missing from prompt: %q", req.Prompt)
	}
	// The stored message carries none of it.
	conv, err := o.historyConversation()
	if err != nil {
		t.Fatal(err)
	}
	if conv.Messages[0].Content != "a mountain lake" {
		t.Errorf("stored text = %q", conv.Messages[0].Content)
	}
}

func TestVisionDispatchConsumesStagedImages(t *testing.T) {
	client := &scriptedClient{prov: provider.Ollama, script: echoScript("a cat")}
	o := newTestOrchestrator(t, client, &recordingNotifier{})

	if n := o.AttachImages([]ImageFile{{Name: "cat.png", Data: pngBytes()}}); n != 1 {
		t.Fatalf("accepted = %d, want 1", n)
	}
	if err := o.Send(context.Background(), "what is this"); err != nil {
		t.Fatal(err)
	}

	req := client.lastRequest(t)
	if len(req.Images) != 1 {
		t.Fatalf("request images = %d, want 1", len(req.Images))
	}
	if len(o.StagedImages()) != 0 {
		t.Error("staged images not consumed by send")
	}

	// The next send goes back to the text-only path.
	if err := o.Send(context.Background(), "and now"); err != nil {
		t.Fatal(err)
	}
	if req := client.lastRequest(t); len(req.Images) != 0 {
		t.Errorf("second request carried %d images, want 0", len(req.Images))
	}
}

func TestDeleteActiveConversationResetsCurrent(t *testing.T) {
	client := &scriptedClient{prov: provider.Ollama, script: echoScript("ok")}
	o := newTestOrchestrator(t, client, &recordingNotifier{})

	if err := o.Send(context.Background(), "hello"); err != nil {
		t.Fatal(err)
	}
	id := o.CurrentConversation()
	if id == "" {
		t.Fatal("no active conversation")
	}
	if err := o.DeleteConversation(id); err != nil {
		t.Fatal(err)
	}
	if o.CurrentConversation() != "" {
		t.Error("active conversation not reset after delete")
	}

	// The next send starts a fresh conversation.
	if err := o.Send(context.Background(), "again"); err != nil {
		t.Fatal(err)
	}
	if o.CurrentConversation() == id {
		t.Error("deleted conversation id reused")
	}
}

func TestSwitchProviderReloadsModels(t *testing.T) {
	ollama := &scriptedClient{prov: provider.Ollama, models: []string{"llama3:8b"}, script: echoScript("ok")}
	lmstudio := &scriptedClient{prov: provider.LMStudio, models: []string{"qwen2:7b"}, script: echoScript("ok")}

	cfg := config.Default()
	cfg.DefaultModel = "llama3:8b"
	registry := provider.NewRegistryWithClients(0, ollama, lmstudio)
	settings := config.NewSettingsStore(filepath.Join(t.TempDir(), "settings.json"))
	hist := history.NewStore(t.TempDir())
	o := New(cfg, registry, settings, hist, prompts.Builtin(), nil, NopNotifier{})

	if err := o.SwitchProvider(context.Background(), provider.LMStudio); err != nil {
		t.Fatalf("SwitchProvider failed: %v", err)
	}
	if o.CurrentProvider() != provider.LMStudio {
		t.Errorf("provider = %v, want lmstudio", o.CurrentProvider())
	}
	// llama3:8b does not exist on the new provider, so the selection clears.
	if o.CurrentModel() != "" {
		t.Errorf("model = %q, want cleared", o.CurrentModel())
	}

	models, err := o.Models(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if len(models) != 1 || models[0] != "qwen2:7b" {
		t.Errorf("models = %v", models)
	}
}
