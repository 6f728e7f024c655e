// Package provider normalizes fill-in-middle completion backends behind one
// contract. A provider is constructed from a stored model configuration,
// initialized once, then used for encode/decode/invoke calls; the three
// adapters (llama.cpp, DeepSeek, Ollama) translate the uniform request into
// their backend's wire format.
package provider

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

// MaxErrorBodySize limits how much error response body we read (1MB).
// This prevents memory exhaustion from malformed error responses.
const MaxErrorBodySize = 1 * 1024 * 1024

// defaultRequestTimeout bounds a single backend round trip when the caller's
// context carries no tighter deadline.
const defaultRequestTimeout = 2 * time.Minute

// Request is the uniform invocation request. It is built per call and never
// persisted. Cancellation travels in the context passed to Invoke.
type Request struct {
	Prefix      string
	Suffix      string
	MaxTokens   int
	Stop        []string
	Temperature float64
}

// Provider is the capability set every backend adapter implements.
//
// Construction is side-effect-free beyond the config lookup. Initialize is
// called once before first use and prepares any resource invocation needs
// (for tokenizer-backed adapters, acquiring the codec). Encode and Decode
// are round-trip codec operations; adapters without a local tokenizer issue
// a network call instead. Invoke performs one completion; an empty string is
// a valid, non-error result.
type Provider interface {
	Name() string
	Initialize(ctx context.Context) error
	Encode(ctx context.Context, text string) ([]int, error)
	Decode(ctx context.Context, tokens []int) (string, error)
	Invoke(ctx context.Context, req *Request) (string, error)
}

// Prompter is the interactive input port used by configuration flows. An
// abandoned prompt returns ErrUserCancelled.
type Prompter interface {
	// Input asks for a single line of text, pre-filled with defaultValue.
	Input(ctx context.Context, label, defaultValue string) (string, error)

	// Secret asks for a single line with echo disabled.
	Secret(ctx context.Context, label string) (string, error)

	// Pick asks the user to choose one of options.
	Pick(ctx context.Context, title string, options []string) (string, error)
}

// readLimitedBody reads up to maxBytes from r, returning the bytes read.
func readLimitedBody(r io.Reader, maxBytes int64) ([]byte, error) {
	return io.ReadAll(io.LimitReader(r, maxBytes))
}

func newHTTPClient() *http.Client {
	return &http.Client{Timeout: defaultRequestTimeout}
}

// postJSON sends one JSON request and decodes the JSON response into out.
// Non-2xx responses become a *BackendError; a fired cancellation signal is
// surfaced as the context's error so callers can distinguish the two. The
// context is checked before the request is sent, so an already-cancelled
// signal never reaches the backend.
func postJSON(ctx context.Context, client *http.Client, providerName, url, apiKey string, in, out interface{}) error {
	if err := ctx.Err(); err != nil {
		return fmt.Errorf("%s request: %w", providerName, err)
	}

	body, err := json.Marshal(in)
	if err != nil {
		return fmt.Errorf("marshal request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	if apiKey != "" {
		httpReq.Header.Set("Authorization", "Bearer "+apiKey)
	}

	resp, err := client.Do(httpReq)
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return fmt.Errorf("execute request: %w", ctxErr)
		}
		return fmt.Errorf("execute request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < http.StatusOK || resp.StatusCode >= http.StatusMultipleChoices {
		bodyBytes, _ := readLimitedBody(resp.Body, MaxErrorBodySize)
		return &BackendError{
			Provider: providerName,
			Status:   resp.StatusCode,
			Message:  strings.TrimSpace(string(bodyBytes)),
		}
	}

	if out != nil {
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			return fmt.Errorf("decode response: %w", err)
		}
	}
	return nil
}

// probe sends a 3-token completion through the adapter's own Invoke path so
// the probe exercises exactly the code path later used for completions.
func probe(ctx context.Context, p Provider) error {
	probeCtx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()

	_, err := p.Invoke(probeCtx, &Request{Prefix: "// ping", MaxTokens: 3, Stop: []string{}})
	if err != nil {
		// The caller backing out is not a connectivity failure. Only the
		// caller's context counts here; the probe's own deadline firing
		// still means the backend is unreachable.
		if ctx.Err() != nil {
			return fmt.Errorf("connectivity test interrupted: %w", ctx.Err())
		}
		return fmt.Errorf("%w: %v", ErrConnectivityTest, err)
	}
	return nil
}
