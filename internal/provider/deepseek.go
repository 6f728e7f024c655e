package provider

import (
	"context"
	"fmt"
	"net/http"
	"strings"

	"github.com/normanking/infill/internal/catalog"
	"github.com/normanking/infill/internal/config"
	"github.com/normanking/infill/internal/logging"
	"github.com/normanking/infill/internal/tokenizer"
)

const (
	// DefaultDeepSeekBaseURL is the beta endpoint that exposes the
	// completions API with suffix support.
	DefaultDeepSeekBaseURL = "https://api.deepseek.com/beta"

	// DeepSeekModel is the only model the adapter targets; configuration
	// forces it.
	DeepSeekModel = "deepseek-chat"
)

// DeepSeek talks to DeepSeek's OpenAI-compatible completions API with bearer
// auth. Encode and Decode run on a local tokenizer handle, never the network.
type DeepSeek struct {
	cfg        config.ModelConfig
	client     *http.Client
	tokenizers *tokenizer.Cache
	codec      tokenizer.Codec
	log        *logging.Logger
}

// NewDeepSeek creates the adapter from a stored config. No network I/O.
func NewDeepSeek(cfg config.ModelConfig, tokenizers *tokenizer.Cache) *DeepSeek {
	if cfg.BaseURL == "" {
		cfg.BaseURL = DefaultDeepSeekBaseURL
	}
	if cfg.Model == "" {
		cfg.Model = DeepSeekModel
	}
	return &DeepSeek{
		cfg:        cfg,
		client:     newHTTPClient(),
		tokenizers: tokenizers,
		log:        logging.Global().WithComponent("deepseek"),
	}
}

// Name returns the provider identifier.
func (p *DeepSeek) Name() string {
	return ProviderDeepSeek
}

// Initialize acquires the shared tokenizer handle for the model.
func (p *DeepSeek) Initialize(ctx context.Context) error {
	codec, err := p.tokenizers.Acquire(ctx, p.cfg.Model)
	if err != nil {
		return err
	}
	p.codec = codec
	return nil
}

// Encode tokenizes locally; no network call.
func (p *DeepSeek) Encode(ctx context.Context, text string) ([]int, error) {
	if p.codec == nil {
		return nil, fmt.Errorf("deepseek provider not initialized")
	}
	return p.codec.Encode(text), nil
}

// Decode detokenizes locally; no network call.
func (p *DeepSeek) Decode(ctx context.Context, tokens []int) (string, error) {
	if p.codec == nil {
		return "", fmt.Errorf("deepseek provider not initialized")
	}
	return p.codec.Decode(tokens), nil
}

type deepSeekCompletionRequest struct {
	Model       string   `json:"model"`
	Prompt      string   `json:"prompt"`
	Suffix      string   `json:"suffix"`
	MaxTokens   int      `json:"max_tokens"`
	Stop        []string `json:"stop"`
	Temperature float64  `json:"temperature,omitempty"`
}

type deepSeekCompletionResponse struct {
	Choices []struct {
		Text string `json:"text"`
	} `json:"choices"`
}

// Invoke performs one completion. The prefix goes into the prompt field, the
// suffix into the OpenAI-compatible suffix field. No choices means an empty
// completion, which is a valid result.
func (p *DeepSeek) Invoke(ctx context.Context, req *Request) (string, error) {
	stop := req.Stop
	if stop == nil {
		stop = []string{}
	}

	completionReq := deepSeekCompletionRequest{
		Model:       p.cfg.Model,
		Prompt:      req.Prefix,
		Suffix:      req.Suffix,
		MaxTokens:   req.MaxTokens,
		Stop:        stop,
		Temperature: req.Temperature,
	}

	var resp deepSeekCompletionResponse
	if err := postJSON(ctx, p.client, p.Name(), p.cfg.BaseURL+"/completions", p.cfg.APIKey, completionReq, &resp); err != nil {
		return "", err
	}

	if len(resp.Choices) == 0 {
		p.log.Debug("completion returned no choices")
		return "", nil
	}

	p.log.Debug("completion returned %d chars", len(resp.Choices[0].Text))
	return resp.Choices[0].Text, nil
}

// ConfigureDeepSeek interactively sets up a DeepSeek model record: API key
// and base URL prompts, tokenizer prefetch, 3-token probe, catalog lookup,
// then persistence. Any failure leaves the store untouched.
func ConfigureDeepSeek(ctx context.Context, nickname string, prompter Prompter, deps Deps) error {
	apiKey, err := prompter.Secret(ctx, "DeepSeek API key")
	if err != nil {
		return err
	}
	if strings.TrimSpace(apiKey) == "" {
		// One more chance before giving up; a keyless config is useless.
		apiKey, err = prompter.Secret(ctx, "API key cannot be empty. DeepSeek API key")
		if err != nil {
			return err
		}
		if strings.TrimSpace(apiKey) == "" {
			return fmt.Errorf("%w: empty API key", ErrUserCancelled)
		}
	}

	baseURL, err := prompter.Input(ctx, "DeepSeek base URL", DefaultDeepSeekBaseURL)
	if err != nil {
		return err
	}
	baseURL = strings.TrimRight(strings.TrimSpace(baseURL), "/")
	if baseURL == "" {
		baseURL = DefaultDeepSeekBaseURL
	}

	if err := deps.Tokenizers.Download(ctx, DeepSeekModel); err != nil {
		return fmt.Errorf("download tokenizer: %w", err)
	}

	cfg := config.ModelConfig{
		Nickname: nickname,
		Provider: ProviderDeepSeek,
		Model:    DeepSeekModel,
		BaseURL:  baseURL,
		APIKey:   strings.TrimSpace(apiKey),
	}

	if err := probe(ctx, NewDeepSeek(cfg, deps.Tokenizers)); err != nil {
		return err
	}

	info, ok := catalog.Lookup(DeepSeekModel)
	if !ok {
		return fmt.Errorf("%w: %s", ErrMetadataNotFound, DeepSeekModel)
	}
	cfg.ContextWindow = info.ContextWindow

	if err := deps.Store.Set(cfg); err != nil {
		return fmt.Errorf("persist config: %w", err)
	}

	logging.Info("configured DeepSeek model %q (context window %d)", nickname, cfg.ContextWindow)
	return nil
}
