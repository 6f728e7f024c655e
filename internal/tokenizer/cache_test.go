package tokenizer

import (
	"context"
	"errors"
	"strings"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// stubCodec splits on spaces and maps words to their index. Good enough to
// verify cache behavior without touching the network.
type stubCodec struct {
	words []string
}

func (s *stubCodec) Encode(text string) []int {
	if text == "" {
		return nil
	}
	parts := strings.Split(text, " ")
	out := make([]int, len(parts))
	for i, p := range parts {
		s.words = append(s.words, p)
		out[i] = len(s.words) - 1
	}
	return out
}

func (s *stubCodec) Decode(tokens []int) string {
	parts := make([]string, len(tokens))
	for i, tok := range tokens {
		parts[i] = s.words[tok]
	}
	return strings.Join(parts, " ")
}

func countingLoader(calls *atomic.Int64) LoaderFunc {
	return func(modelID string) (Codec, error) {
		calls.Add(1)
		return &stubCodec{}, nil
	}
}

func TestAcquireMemoizesPerModel(t *testing.T) {
	var calls atomic.Int64
	cache := NewCache(WithLoader(countingLoader(&calls)))
	ctx := context.Background()

	first, err := cache.Acquire(ctx, "deepseek-chat")
	require.NoError(t, err)

	second, err := cache.Acquire(ctx, "deepseek-chat")
	require.NoError(t, err)

	assert.Same(t, first.(*stubCodec), second.(*stubCodec), "same handle shared across acquires")
	assert.Equal(t, int64(1), calls.Load())

	_, err = cache.Acquire(ctx, "qwen2.5-coder:7b")
	require.NoError(t, err)
	assert.Equal(t, int64(2), calls.Load(), "distinct model ids load separately")
}

func TestAcquireEmptyModelID(t *testing.T) {
	cache := NewCache(WithLoader(func(string) (Codec, error) {
		t.Fatal("loader should not run")
		return nil, nil
	}))

	_, err := cache.Acquire(context.Background(), "")
	assert.Error(t, err)
}

func TestAcquireHonorsCancelledContext(t *testing.T) {
	cache := NewCache(WithLoader(func(string) (Codec, error) {
		t.Fatal("loader should not run for cancelled context")
		return nil, nil
	}))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := cache.Acquire(ctx, "deepseek-chat")
	assert.ErrorIs(t, err, context.Canceled)
}

func TestDownloadSurfacesLoaderError(t *testing.T) {
	boom := errors.New("registry unreachable")
	cache := NewCache(WithLoader(func(string) (Codec, error) {
		return nil, boom
	}))

	err := cache.Download(context.Background(), "deepseek-chat")
	assert.ErrorIs(t, err, boom)
}

func TestDownloadThenAcquireReusesHandle(t *testing.T) {
	var calls atomic.Int64
	cache := NewCache(WithLoader(countingLoader(&calls)))
	ctx := context.Background()

	require.NoError(t, cache.Download(ctx, "codestral"))
	_, err := cache.Acquire(ctx, "codestral")
	require.NoError(t, err)

	assert.Equal(t, int64(1), calls.Load())
}

func TestAcquireConcurrent(t *testing.T) {
	var calls atomic.Int64
	cache := NewCache(WithLoader(countingLoader(&calls)))

	var wg sync.WaitGroup
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := cache.Acquire(context.Background(), "starcoder2")
			assert.NoError(t, err)
		}()
	}
	wg.Wait()

	assert.Equal(t, int64(1), calls.Load(), "concurrent acquires share one load")
}

func TestStubCodecRoundTrip(t *testing.T) {
	codec := &stubCodec{}
	text := "def add ( a , b ):"
	assert.Equal(t, text, codec.Decode(codec.Encode(text)))
}
