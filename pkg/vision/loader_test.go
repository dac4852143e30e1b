package vision

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/injury-assessment-server/internal/domain"
)

type constExtractor struct{ value int }

func (c constExtractor) Extract(ctx context.Context, data []byte) domain.ImageSignal {
	return domain.ImageSignal{Method: domain.SignalBrightness, Value: c.value}
}

func TestLoader_LoadsOnce(t *testing.T) {
	logger, _ := newTestLogger()
	calls := 0
	loader := NewLoader(func(ctx context.Context) (domain.SignalExtractor, error) {
		calls++
		return constExtractor{value: 42}, nil
	}, time.Second, logger)

	assert.Equal(t, StateNotLoaded, loader.State())

	loader.Start()
	loader.Start()

	ext, err := loader.Wait(context.Background())
	require.NoError(t, err)
	assert.Equal(t, StateLoaded, loader.State())
	assert.Equal(t, 42, ext.Extract(context.Background(), nil).Value)

	_, err = loader.Wait(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, calls)
}

func TestLoader_WaitStartsLoading(t *testing.T) {
	logger, _ := newTestLogger()
	loader := NewExtractorLoader(Config{Method: domain.SignalContour}, time.Second, logger)

	select {
	case <-loader.Ready():
	case <-time.After(2 * time.Second):
		t.Fatal("loader never became ready")
	}

	ext, err := loader.Wait(context.Background())
	require.NoError(t, err)
	require.IsType(t, &Extractor{}, ext)
	assert.Equal(t, domain.SignalContour, ext.(*Extractor).Method())
}

func TestLoader_Failure(t *testing.T) {
	logger, hook := newTestLogger()
	loader := NewLoader(func(ctx context.Context) (domain.SignalExtractor, error) {
		return nil, errors.New("runtime missing")
	}, time.Second, logger)

	_, err := loader.Wait(context.Background())
	require.Error(t, err)
	assert.True(t, errors.Is(err, domain.ErrCapabilityUnavailable))
	assert.Equal(t, StateFailed, loader.State())
	assert.Equal(t, "failed", loader.State().String())

	signal := loader.Extract(context.Background(), domain.SignalBrightness, []byte("img"))
	assert.Equal(t, 0, signal.Value)
	assert.True(t, signal.Fallback)
	assert.NotEmpty(t, hook.Entries)
}

func TestLoader_Timeout(t *testing.T) {
	logger, _ := newTestLogger()
	loader := NewLoader(func(ctx context.Context) (domain.SignalExtractor, error) {
		<-ctx.Done()
		return nil, ctx.Err()
	}, 20*time.Millisecond, logger)

	_, err := loader.Wait(context.Background())
	require.Error(t, err)
	assert.True(t, errors.Is(err, domain.ErrCapabilityUnavailable))
	assert.Equal(t, StateFailed, loader.State())
}

func TestLoader_WaitRespectsCallerContext(t *testing.T) {
	logger, _ := newTestLogger()
	release := make(chan struct{})
	loader := NewLoader(func(ctx context.Context) (domain.SignalExtractor, error) {
		<-release
		return constExtractor{}, nil
	}, time.Minute, logger)
	defer close(release)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()

	_, err := loader.Wait(ctx)
	require.Error(t, err)
	assert.True(t, errors.Is(err, domain.ErrCapabilityUnavailable))
	assert.Equal(t, StateLoading, loader.State())
}

func TestLoader_ExtractDelegates(t *testing.T) {
	logger, _ := newTestLogger()
	loader := NewExtractorLoader(Config{Method: domain.SignalBrightness}, time.Second, logger)

	data := encodePNG(t, squareImage(40, 10, 255))
	signal := loader.Extract(context.Background(), domain.SignalBrightness, data)
	assert.Equal(t, 100, signal.Value)
	assert.False(t, signal.Fallback)
}
