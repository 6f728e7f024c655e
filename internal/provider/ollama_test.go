package provider

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/normanking/infill/internal/config"
)

func newOllamaServer(t *testing.T, tags []OllamaModel, response string) (*httptest.Server, *ollamaGenerateRequest) {
	t.Helper()
	var got ollamaGenerateRequest
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/api/tags":
			json.NewEncoder(w).Encode(ollamaTagsResponse{Models: tags})
		case "/api/generate":
			require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
			json.NewEncoder(w).Encode(ollamaGenerateResponse{
				Response:     response,
				EvalCount:    7,
				EvalDuration: 21_000_000,
			})
		default:
			t.Errorf("unexpected path %s", r.URL.Path)
			http.NotFound(w, r)
		}
	}))
	return server, &got
}

func TestOllamaInvokeRequestShape(t *testing.T) {
	server, got := newOllamaServer(t, nil, "body := x")
	defer server.Close()

	p := NewOllama(config.ModelConfig{BaseURL: server.URL, Model: "qwen2.5-coder:7b"}, newTestCache())
	out, err := p.Invoke(context.Background(), &Request{
		Prefix:    "func f() {\n",
		Suffix:    "\n}",
		MaxTokens: 48,
	})
	require.NoError(t, err)
	assert.Equal(t, "body := x", out)

	assert.Equal(t, "qwen2.5-coder:7b", got.Model)
	assert.Equal(t, "func f() {\n", got.Prompt)
	assert.Equal(t, "\n}", got.Suffix)
	assert.Equal(t, 48, got.Options.NumPredict)
	assert.False(t, got.Stream)
}

func TestOllamaInvokeOmitsEmptySuffix(t *testing.T) {
	var raw map[string]json.RawMessage
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, json.NewDecoder(r.Body).Decode(&raw))
		w.Write([]byte(`{"response":"x"}`))
	}))
	defer server.Close()

	p := NewOllama(config.ModelConfig{BaseURL: server.URL, Model: "codellama"}, newTestCache())
	_, err := p.Invoke(context.Background(), &Request{Prefix: "x", MaxTokens: 8})
	require.NoError(t, err)

	_, present := raw["suffix"]
	assert.False(t, present, "an absent suffix must not be sent as an empty string")
}

func TestOllamaInvokeEmptyCompletion(t *testing.T) {
	server, _ := newOllamaServer(t, nil, "")
	defer server.Close()

	p := NewOllama(config.ModelConfig{BaseURL: server.URL, Model: "codellama"}, newTestCache())
	out, err := p.Invoke(context.Background(), &Request{Prefix: "x", MaxTokens: 8})
	require.NoError(t, err)
	assert.Equal(t, "", out)
}

func TestOllamaInvokeBackendError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, `{"error":"model not found"}`, http.StatusNotFound)
	}))
	defer server.Close()

	p := NewOllama(config.ModelConfig{BaseURL: server.URL, Model: "missing"}, newTestCache())
	_, err := p.Invoke(context.Background(), &Request{Prefix: "x", MaxTokens: 8})

	var be *BackendError
	require.ErrorAs(t, err, &be)
	assert.Equal(t, http.StatusNotFound, be.Status)
}

func TestOllamaCancelledBeforeSend(t *testing.T) {
	var hits atomic.Int64
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
	}))
	defer server.Close()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	p := NewOllama(config.ModelConfig{BaseURL: server.URL, Model: "codellama"}, newTestCache())
	_, err := p.Invoke(ctx, &Request{Prefix: "x", MaxTokens: 8})
	assert.True(t, IsCancellation(err))
	assert.Equal(t, int64(0), hits.Load())
}

func TestOllamaEncodeDecodeAreLocal(t *testing.T) {
	p := NewOllama(config.ModelConfig{Model: "codellama"}, newTestCache())
	ctx := context.Background()
	require.NoError(t, p.Initialize(ctx))

	tokens, err := p.Encode(ctx, "ok")
	require.NoError(t, err)

	text, err := p.Decode(ctx, tokens)
	require.NoError(t, err)
	assert.Equal(t, "ok", text)
}

func TestFetchOllamaModels(t *testing.T) {
	tags := []OllamaModel{
		{Name: "qwen2.5-coder:7b", Size: 4_500_000_000},
		{Name: "llama3:8b", Size: 4_700_000_000},
	}
	server, _ := newOllamaServer(t, tags, "")
	defer server.Close()

	models, err := FetchOllamaModels(context.Background(), server.URL)
	require.NoError(t, err)
	require.Len(t, models, 2)
	assert.Equal(t, "qwen2.5-coder:7b", models[0].Name)
}

func TestFetchOllamaModelsServerError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "busy", http.StatusInternalServerError)
	}))
	defer server.Close()

	_, err := FetchOllamaModels(context.Background(), server.URL)
	var be *BackendError
	require.ErrorAs(t, err, &be)
	assert.Equal(t, http.StatusInternalServerError, be.Status)
}

func TestConfigureOllamaPersists(t *testing.T) {
	tags := []OllamaModel{
		{Name: "qwen2.5-coder:7b"},
		{Name: "llama3:8b"}, // chat model, not offered
		{Name: "codellama:13b"},
	}
	server, _ := newOllamaServer(t, tags, "pong")
	defer server.Close()

	deps := newTestDeps(t)
	prompter := &stubPrompter{
		inputs: []string{server.URL},
		picks:  []string{"codellama:13b"},
	}

	require.NoError(t, ConfigureOllama(context.Background(), "ol", prompter, deps))

	cfg, err := deps.Store.Get("ol")
	require.NoError(t, err)
	assert.Equal(t, ProviderOllama, cfg.Provider)
	assert.Equal(t, "codellama:13b", cfg.Model)
	assert.Equal(t, server.URL, cfg.BaseURL)
	assert.Equal(t, 16384, cfg.ContextWindow)
}

func TestConfigureOllamaTrimsBaseURL(t *testing.T) {
	tags := []OllamaModel{{Name: "codellama:13b"}}
	server, _ := newOllamaServer(t, tags, "pong")
	defer server.Close()

	deps := newTestDeps(t)
	prompter := &stubPrompter{
		inputs: []string{"  " + server.URL + "/  "},
		picks:  []string{"codellama:13b"},
	}

	require.NoError(t, ConfigureOllama(context.Background(), "ol", prompter, deps))

	cfg, err := deps.Store.Get("ol")
	require.NoError(t, err)
	assert.Equal(t, server.URL, cfg.BaseURL, "stored URL must not keep a trailing slash")
}

func TestConfigureOllamaNoCompletionModels(t *testing.T) {
	tags := []OllamaModel{
		{Name: "llama3:8b"},
		{Name: "mistral:7b"},
	}
	server, _ := newOllamaServer(t, tags, "")
	defer server.Close()

	deps := newTestDeps(t)
	prompter := &stubPrompter{inputs: []string{server.URL}}

	err := ConfigureOllama(context.Background(), "ol", prompter, deps)
	assert.ErrorIs(t, err, ErrNoModels)

	_, err = deps.Store.Get("ol")
	assert.ErrorIs(t, err, config.ErrNotFound, "no record may be written when no model qualifies")
}

func TestConfigureOllamaServerUnreachable(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "down", http.StatusBadGateway)
	}))
	defer server.Close()

	deps := newTestDeps(t)
	prompter := &stubPrompter{inputs: []string{server.URL}}

	err := ConfigureOllama(context.Background(), "ol", prompter, deps)
	require.Error(t, err)

	_, err = deps.Store.Get("ol")
	assert.ErrorIs(t, err, config.ErrNotFound)
}

func TestConfigureOllamaPickCancelled(t *testing.T) {
	tags := []OllamaModel{{Name: "codellama:13b"}}
	server, _ := newOllamaServer(t, tags, "")
	defer server.Close()

	deps := newTestDeps(t)
	prompter := &stubPrompter{inputs: []string{server.URL}, pickErr: ErrUserCancelled}

	err := ConfigureOllama(context.Background(), "ol", prompter, deps)
	assert.ErrorIs(t, err, ErrUserCancelled)

	_, err = deps.Store.Get("ol")
	assert.ErrorIs(t, err, config.ErrNotFound)
}
