package provider

import (
	"context"
	"fmt"
	"net/http"
	"strings"

	"github.com/normanking/infill/internal/config"
	"github.com/normanking/infill/internal/logging"
)

const (
	// DefaultLlamaCppBaseURL is where llama-server listens by default.
	DefaultLlamaCppBaseURL = "http://localhost:8012"

	// llamaCppContextWindow is persisted at configuration time. The server is
	// already bound to one model, so model identity stays empty.
	llamaCppContextWindow = 32768
)

// LlamaCpp talks to a local llama.cpp server. The server owns the tokenizer,
// so every encode/decode is a network call to /tokenize and /detokenize.
type LlamaCpp struct {
	cfg    config.ModelConfig
	client *http.Client
	log    *logging.Logger
}

// NewLlamaCpp creates the adapter from a stored config. No network I/O.
func NewLlamaCpp(cfg config.ModelConfig) *LlamaCpp {
	if cfg.BaseURL == "" {
		cfg.BaseURL = DefaultLlamaCppBaseURL
	}
	return &LlamaCpp{
		cfg:    cfg,
		client: newHTTPClient(),
		log:    logging.Global().WithComponent("llamacpp"),
	}
}

// Name returns the provider identifier.
func (p *LlamaCpp) Name() string {
	return ProviderLlamaCpp
}

// Initialize is a no-op: the server holds the only tokenizer state.
func (p *LlamaCpp) Initialize(ctx context.Context) error {
	return nil
}

type llamaTokenizeRequest struct {
	Content    string `json:"content"`
	AddSpecial bool   `json:"add_special"`
}

type llamaTokenizeResponse struct {
	Tokens []int `json:"tokens"`
}

type llamaDetokenizeRequest struct {
	Tokens []int `json:"tokens"`
}

type llamaDetokenizeResponse struct {
	Content string `json:"content"`
}

type llamaInfillRequest struct {
	InputPrefix string   `json:"input_prefix"`
	InputSuffix string   `json:"input_suffix"`
	NPredict    int      `json:"n_predict"`
	Stop        []string `json:"stop"`
	Stream      bool     `json:"stream"`
}

type llamaInfillResponse struct {
	Content   string `json:"content"`
	Truncated bool   `json:"truncated"`
	Timings   struct {
		PromptMS           float64 `json:"prompt_ms"`
		PredictedMS        float64 `json:"predicted_ms"`
		PredictedPerSecond float64 `json:"predicted_per_second"`
	} `json:"timings"`
}

// Encode tokenizes text via the server. add_special stays false so the
// round-trip law decode(encode(text)) == text holds.
func (p *LlamaCpp) Encode(ctx context.Context, text string) ([]int, error) {
	var resp llamaTokenizeResponse
	req := llamaTokenizeRequest{Content: text, AddSpecial: false}
	if err := postJSON(ctx, p.client, p.Name(), p.cfg.BaseURL+"/tokenize", "", req, &resp); err != nil {
		return nil, err
	}
	return resp.Tokens, nil
}

// Decode detokenizes via the server.
func (p *LlamaCpp) Decode(ctx context.Context, tokens []int) (string, error) {
	var resp llamaDetokenizeResponse
	req := llamaDetokenizeRequest{Tokens: tokens}
	if err := postJSON(ctx, p.client, p.Name(), p.cfg.BaseURL+"/detokenize", "", req, &resp); err != nil {
		return "", err
	}
	return resp.Content, nil
}

// Invoke performs one fill-in-middle completion via /infill. A truncated
// response is a warning, not a failure; timings are informational only.
func (p *LlamaCpp) Invoke(ctx context.Context, req *Request) (string, error) {
	stop := req.Stop
	if stop == nil {
		stop = []string{}
	}

	infillReq := llamaInfillRequest{
		InputPrefix: req.Prefix,
		InputSuffix: req.Suffix,
		NPredict:    req.MaxTokens,
		Stop:        stop,
		Stream:      false,
	}

	var resp llamaInfillResponse
	if err := postJSON(ctx, p.client, p.Name(), p.cfg.BaseURL+"/infill", "", infillReq, &resp); err != nil {
		return "", err
	}

	if resp.Truncated {
		p.log.Warn("context length exceeded, completion may be incomplete")
	}
	p.log.Debug("infill timings: prompt %.1fms, predict %.1fms (%.1f tok/s)",
		resp.Timings.PromptMS, resp.Timings.PredictedMS, resp.Timings.PredictedPerSecond)

	return resp.Content, nil
}

// ConfigureLlamaCpp interactively sets up a llama.cpp model record: base URL
// prompt, 3-token connectivity probe, then persistence. Any failure leaves
// the store untouched.
func ConfigureLlamaCpp(ctx context.Context, nickname string, prompter Prompter, store *config.Store) error {
	baseURL, err := prompter.Input(ctx, "llama.cpp server base URL", DefaultLlamaCppBaseURL)
	if err != nil {
		return err
	}
	baseURL = strings.TrimRight(strings.TrimSpace(baseURL), "/")
	if baseURL == "" {
		baseURL = DefaultLlamaCppBaseURL
	}

	cfg := config.ModelConfig{
		Nickname:      nickname,
		Provider:      ProviderLlamaCpp,
		BaseURL:       baseURL,
		Model:         "",
		ContextWindow: llamaCppContextWindow,
	}

	if err := probe(ctx, NewLlamaCpp(cfg)); err != nil {
		return err
	}

	if err := store.Set(cfg); err != nil {
		return fmt.Errorf("persist config: %w", err)
	}

	logging.Info("configured llama.cpp model %q at %s", nickname, baseURL)
	return nil
}
