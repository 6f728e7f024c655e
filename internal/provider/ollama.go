package provider

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/normanking/infill/internal/catalog"
	"github.com/normanking/infill/internal/config"
	"github.com/normanking/infill/internal/logging"
	"github.com/normanking/infill/internal/tokenizer"
)

const (
	// DefaultOllamaBaseURL is where a local Ollama server listens.
	DefaultOllamaBaseURL = "http://localhost:11434"

	// ollamaFallbackContextWindow is used when the catalog has no entry for
	// the selected model at configuration time.
	ollamaFallbackContextWindow = 4096
)

// Ollama talks to a local Ollama server, which can host several models
// concurrently. Encode and Decode run on a local tokenizer handle keyed by
// the selected model.
type Ollama struct {
	cfg        config.ModelConfig
	client     *http.Client
	tokenizers *tokenizer.Cache
	codec      tokenizer.Codec
	log        *logging.Logger
}

// NewOllama creates the adapter from a stored config. No network I/O.
func NewOllama(cfg config.ModelConfig, tokenizers *tokenizer.Cache) *Ollama {
	if cfg.BaseURL == "" {
		cfg.BaseURL = DefaultOllamaBaseURL
	}
	return &Ollama{
		cfg:        cfg,
		client:     newHTTPClient(),
		tokenizers: tokenizers,
		log:        logging.Global().WithComponent("ollama"),
	}
}

// Name returns the provider identifier.
func (p *Ollama) Name() string {
	return ProviderOllama
}

// Initialize acquires the shared tokenizer handle for the configured model.
func (p *Ollama) Initialize(ctx context.Context) error {
	codec, err := p.tokenizers.Acquire(ctx, p.cfg.Model)
	if err != nil {
		return err
	}
	p.codec = codec
	return nil
}

// Encode tokenizes locally; no network call.
func (p *Ollama) Encode(ctx context.Context, text string) ([]int, error) {
	if p.codec == nil {
		return nil, fmt.Errorf("ollama provider not initialized")
	}
	return p.codec.Encode(text), nil
}

// Decode detokenizes locally; no network call.
func (p *Ollama) Decode(ctx context.Context, tokens []int) (string, error) {
	if p.codec == nil {
		return "", fmt.Errorf("ollama provider not initialized")
	}
	return p.codec.Decode(tokens), nil
}

type ollamaOptions struct {
	NumPredict int `json:"num_predict"`
}

type ollamaGenerateRequest struct {
	Model   string        `json:"model"`
	Prompt  string        `json:"prompt"`
	Suffix  string        `json:"suffix,omitempty"`
	Options ollamaOptions `json:"options"`
	Stream  bool          `json:"stream"`
}

type ollamaGenerateResponse struct {
	Response     string `json:"response"`
	EvalCount    int    `json:"eval_count"`
	EvalDuration int64  `json:"eval_duration"` // nanoseconds
}

// Invoke performs one completion via /api/generate. eval_count and
// eval_duration are diagnostic only and never affect control flow.
func (p *Ollama) Invoke(ctx context.Context, req *Request) (string, error) {
	generateReq := ollamaGenerateRequest{
		Model:   p.cfg.Model,
		Prompt:  req.Prefix,
		Suffix:  req.Suffix,
		Options: ollamaOptions{NumPredict: req.MaxTokens},
		Stream:  false,
	}

	var resp ollamaGenerateResponse
	if err := postJSON(ctx, p.client, p.Name(), p.cfg.BaseURL+"/api/generate", "", generateReq, &resp); err != nil {
		return "", err
	}

	p.log.Debug("generated %d tokens in %dms", resp.EvalCount, resp.EvalDuration/int64(time.Millisecond))

	return resp.Response, nil
}

// OllamaModel is one entry of the /api/tags listing.
type OllamaModel struct {
	Name       string `json:"name"`
	Model      string `json:"model"`
	ModifiedAt string `json:"modified_at"`
	Size       int64  `json:"size"`
}

type ollamaTagsResponse struct {
	Models []OllamaModel `json:"models"`
}

// FetchOllamaModels lists the models installed on an Ollama server.
func FetchOllamaModels(ctx context.Context, baseURL string) ([]OllamaModel, error) {
	if baseURL == "" {
		baseURL = DefaultOllamaBaseURL
	}

	reqCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	httpReq, err := http.NewRequestWithContext(reqCtx, http.MethodGet, baseURL+"/api/tags", nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}

	client := &http.Client{Timeout: 10 * time.Second}
	resp, err := client.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("cannot connect to Ollama at %s: %w", baseURL, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		bodyBytes, _ := readLimitedBody(resp.Body, MaxErrorBodySize)
		return nil, &BackendError{Provider: ProviderOllama, Status: resp.StatusCode, Message: string(bodyBytes)}
	}

	var tagsResp ollamaTagsResponse
	if err := json.NewDecoder(resp.Body).Decode(&tagsResp); err != nil {
		return nil, fmt.Errorf("decode response: %w", err)
	}

	return tagsResp.Models, nil
}

// ConfigureOllama interactively sets up an Ollama model record: base URL
// prompt, model enumeration filtered to catalog-known families, model pick,
// tokenizer prefetch, 3-token probe, context-window resolution, then
// persistence. Any failure leaves the store untouched.
func ConfigureOllama(ctx context.Context, nickname string, prompter Prompter, deps Deps) error {
	baseURL, err := prompter.Input(ctx, "Ollama server base URL", DefaultOllamaBaseURL)
	if err != nil {
		return err
	}
	baseURL = strings.TrimRight(strings.TrimSpace(baseURL), "/")
	if baseURL == "" {
		baseURL = DefaultOllamaBaseURL
	}

	installed, err := FetchOllamaModels(ctx, baseURL)
	if err != nil {
		return fmt.Errorf("list models: %w", err)
	}

	var known []string
	for _, m := range installed {
		if _, ok := catalog.Lookup(m.Name); ok {
			known = append(known, m.Name)
		}
	}
	if len(known) == 0 {
		return fmt.Errorf("%w at %s", ErrNoModels, baseURL)
	}

	model, err := prompter.Pick(ctx, "Select a model", known)
	if err != nil {
		return err
	}

	if err := deps.Tokenizers.Download(ctx, model); err != nil {
		return fmt.Errorf("download tokenizer: %w", err)
	}

	contextWindow := ollamaFallbackContextWindow
	if info, ok := catalog.Lookup(model); ok {
		contextWindow = info.ContextWindow
	}

	cfg := config.ModelConfig{
		Nickname:      nickname,
		Provider:      ProviderOllama,
		Model:         model,
		BaseURL:       baseURL,
		ContextWindow: contextWindow,
	}

	if err := probe(ctx, NewOllama(cfg, deps.Tokenizers)); err != nil {
		return err
	}

	if err := deps.Store.Set(cfg); err != nil {
		return fmt.Errorf("persist config: %w", err)
	}

	logging.Info("configured Ollama model %q using %s (context window %d)", nickname, model, contextWindow)
	return nil
}
