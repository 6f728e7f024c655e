// Package tokenizer provides a process-wide cache of text↔token codecs
// keyed by model identifier. Codec data is fetched on first use and the
// resulting handle is shared for the remainder of the process lifetime;
// there is no eviction.
package tokenizer

import (
	"context"
	"fmt"
	"sync"

	"github.com/pkoukk/tiktoken-go"
)

// Codec converts between text and a sequence of integer token ids for one
// specific model. Implementations are immutable once created and safe for
// concurrent use.
type Codec interface {
	Encode(text string) []int
	Decode(tokens []int) string
}

// LoaderFunc builds a Codec for a model identifier. The default loader uses
// tiktoken encodings; tests substitute a stub.
type LoaderFunc func(modelID string) (Codec, error)

// Option configures a Cache.
type Option func(*Cache)

// WithLoader overrides the codec loader.
func WithLoader(loader LoaderFunc) Option {
	return func(c *Cache) {
		c.loader = loader
	}
}

// Cache memoizes one Codec per model identifier.
type Cache struct {
	mu     sync.Mutex
	loader LoaderFunc
	codecs map[string]Codec
}

// NewCache creates a codec cache backed by tiktoken encodings.
func NewCache(opts ...Option) *Cache {
	c := &Cache{
		loader: loadTiktoken,
		codecs: make(map[string]Codec),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Acquire returns the codec for modelID, loading it on first use. Subsequent
// calls for the same identifier return the shared handle.
func (c *Cache) Acquire(ctx context.Context, modelID string) (Codec, error) {
	if modelID == "" {
		return nil, fmt.Errorf("acquire tokenizer: empty model id")
	}
	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("acquire tokenizer for %q: %w", modelID, err)
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if codec, ok := c.codecs[modelID]; ok {
		return codec, nil
	}

	codec, err := c.loader(modelID)
	if err != nil {
		return nil, fmt.Errorf("load tokenizer for %q: %w", modelID, err)
	}

	c.codecs[modelID] = codec
	return codec, nil
}

// Download pre-fetches the codec for modelID. Used by configuration flows so
// the first completion does not pay the download cost.
func (c *Cache) Download(ctx context.Context, modelID string) error {
	_, err := c.Acquire(ctx, modelID)
	return err
}

// loadTiktoken resolves a model identifier to a tiktoken encoding, falling
// back to cl100k_base for models tiktoken does not know by name. The BPE
// vocabulary is downloaded and cached by the library on first use.
func loadTiktoken(modelID string) (Codec, error) {
	enc, err := tiktoken.EncodingForModel(modelID)
	if err != nil {
		enc, err = tiktoken.GetEncoding("cl100k_base")
		if err != nil {
			return nil, err
		}
	}
	return &tiktokenCodec{enc: enc}, nil
}

type tiktokenCodec struct {
	enc *tiktoken.Tiktoken
}

func (c *tiktokenCodec) Encode(text string) []int {
	return c.enc.Encode(text, nil, nil)
}

func (c *tiktokenCodec) Decode(tokens []int) string {
	return c.enc.Decode(tokens)
}
