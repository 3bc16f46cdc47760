// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package provider

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/arcum42/sagechat/internal/stream"
)

// fakeClient counts list calls so cache behavior is observable.
type fakeClient struct {
	provider  Provider
	models    []string
	vision    []string
	listCalls int
	listErr   error
}

func (f *fakeClient) Provider() Provider                        { return f.provider }
func (f *fakeClient) CheckRunning(ctx context.Context) error    { return nil }
func (f *fakeClient) ListModels(ctx context.Context) ([]string, error) {
	f.listCalls++
	if f.listErr != nil {
		return nil, f.listErr
	}
	return f.models, nil
}
func (f *fakeClient) ListVisionModels(ctx context.Context) ([]string, error) {
	return f.vision, nil
}
func (f *fakeClient) Generate(ctx context.Context, req GenerateRequest) (*stream.Session, error) {
	sess := stream.NewSession(ctx)
	go func() {
		sess.Send("ok")
		sess.Done()
	}()
	return sess, nil
}

func TestRegistryCachesModelLists(t *testing.T) {
	fake := &fakeClient{provider: Ollama, models: []string{"a", "b"}}
	reg := NewRegistryWithClients(time.Hour, fake)
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		models, err := reg.ListModels(ctx, Ollama, false)
		if err != nil {
			t.Fatalf("ListModels failed: %v", err)
		}
		if len(models) != 2 {
			t.Fatalf("models = %v", models)
		}
	}
	if fake.listCalls != 1 {
		t.Errorf("backend hit %d times, want 1 (cache)", fake.listCalls)
	}
}

func TestRegistryForceRefreshBypassesCache(t *testing.T) {
	fake := &fakeClient{provider: Ollama, models: []string{"a"}}
	reg := NewRegistryWithClients(time.Hour, fake)
	ctx := context.Background()

	reg.ListModels(ctx, Ollama, false)
	reg.ListModels(ctx, Ollama, true)
	reg.ListModels(ctx, Ollama, true)

	if fake.listCalls != 3 {
		t.Errorf("backend hit %d times, want 3 (force)", fake.listCalls)
	}
}

func TestRegistryServesStaleOnBackendError(t *testing.T) {
	fake := &fakeClient{provider: LMStudio, models: []string{"x"}}
	reg := NewRegistryWithClients(time.Hour, fake)
	ctx := context.Background()

	if _, err := reg.ListModels(ctx, LMStudio, false); err != nil {
		t.Fatal(err)
	}

	fake.listErr = ErrNotRunning
	models, err := reg.ListModels(ctx, LMStudio, true)
	if err != nil {
		t.Fatalf("expected stale list, got error: %v", err)
	}
	if len(models) != 1 || models[0] != "x" {
		t.Errorf("stale models = %v", models)
	}
}

func TestRegistryErrorWithoutCache(t *testing.T) {
	fake := &fakeClient{provider: Ollama, listErr: ErrNotRunning}
	reg := NewRegistryWithClients(time.Hour, fake)

	_, err := reg.ListModels(context.Background(), Ollama, false)
	if !errors.Is(err, ErrNotRunning) {
		t.Errorf("err = %v, want ErrNotRunning", err)
	}
}

func TestRegistryUnknownProvider(t *testing.T) {
	reg := NewRegistryWithClients(time.Hour)
	if _, err := reg.Client(Ollama); err == nil {
		t.Error("expected error for unconfigured provider")
	}
}

func TestRegistryInvalidate(t *testing.T) {
	fake := &fakeClient{provider: Ollama, models: []string{"a"}}
	reg := NewRegistryWithClients(time.Hour, fake)
	ctx := context.Background()

	reg.ListModels(ctx, Ollama, false)
	reg.Invalidate(Ollama)
	reg.ListModels(ctx, Ollama, false)

	if fake.listCalls != 2 {
		t.Errorf("backend hit %d times, want 2 after Invalidate", fake.listCalls)
	}
}

func TestParseProvider(t *testing.T) {
	tests := []struct {
		in      string
		want    Provider
		wantErr bool
	}{
		{"ollama", Ollama, false},
		{"Ollama", Ollama, false},
		{"lmstudio", LMStudio, false},
		{"LM-Studio", LMStudio, false},
		{"lm_studio", LMStudio, false},
		{" ollama ", Ollama, false},
		{"openai", "", true},
		{"", "", true},
	}

	for _, tc := range tests {
		t.Run(tc.in, func(t *testing.T) {
			got, err := Parse(tc.in)
			if tc.wantErr {
				if err == nil {
					t.Errorf("Parse(%q) expected error", tc.in)
				}
				return
			}
			if err != nil {
				t.Fatalf("Parse(%q) failed: %v", tc.in, err)
			}
			if got != tc.want {
				t.Errorf("Parse(%q) = %v, want %v", tc.in, got, tc.want)
			}
		})
	}
}
