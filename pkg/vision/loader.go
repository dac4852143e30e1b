package vision

import (
	"context"
	"fmt"
	"image"
	"image/color"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/injury-assessment-server/internal/domain"
)

// State is the lifecycle of the analysis capability.
type State int32

const (
	StateNotLoaded State = iota
	StateLoading
	StateLoaded
	StateFailed
)

// String returns the state name.
func (s State) String() string {
	switch s {
	case StateNotLoaded:
		return "not-loaded"
	case StateLoading:
		return "loading"
	case StateLoaded:
		return "loaded"
	case StateFailed:
		return "failed"
	default:
		return "unknown"
	}
}

// InitFunc builds the capability. It runs once.
type InitFunc func(ctx context.Context) (domain.SignalExtractor, error)

// Loader initializes the analysis capability once in the background and
// lets callers block on its readiness instead of polling.
type Loader struct {
	init    InitFunc
	timeout time.Duration
	logger  *logrus.Logger

	once  sync.Once
	ready chan struct{}

	mu        sync.RWMutex
	state     State
	extractor domain.SignalExtractor
	err       error
}

// NewLoader creates a loader. The capability is not initialized until Start
// or the first Wait.
func NewLoader(init InitFunc, timeout time.Duration, logger *logrus.Logger) *Loader {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &Loader{
		init:    init,
		timeout: timeout,
		logger:  logger,
		ready:   make(chan struct{}),
	}
}

// NewExtractorLoader wraps an Extractor whose initialization is a self-check
// over a small synthetic image.
func NewExtractorLoader(cfg Config, timeout time.Duration, logger *logrus.Logger) *Loader {
	return NewLoader(func(ctx context.Context) (domain.SignalExtractor, error) {
		ext := NewExtractor(cfg, logger)
		if err := selfCheck(); err != nil {
			return nil, err
		}
		return ext, nil
	}, timeout, logger)
}

// Start begins initialization in the background. Calling it again is a no-op.
func (l *Loader) Start() {
	l.once.Do(func() {
		l.setState(StateLoading, nil, nil)
		go l.run()
	})
}

func (l *Loader) run() {
	defer close(l.ready)

	ctx, cancel := context.WithTimeout(context.Background(), l.timeout)
	defer cancel()

	type result struct {
		ext domain.SignalExtractor
		err error
	}
	done := make(chan result, 1)
	go func() {
		ext, err := l.init(ctx)
		done <- result{ext, err}
	}()

	start := time.Now()
	select {
	case r := <-done:
		if r.err != nil {
			l.setState(StateFailed, nil, fmt.Errorf("%w: %v", domain.ErrCapabilityUnavailable, r.err))
			l.logger.WithError(r.err).Warn("Image analysis capability failed to load")
			return
		}
		l.setState(StateLoaded, r.ext, nil)
		l.logger.WithField("load_time", time.Since(start)).Info("Image analysis capability loaded")
	case <-ctx.Done():
		l.setState(StateFailed, nil, fmt.Errorf("%w: load timed out after %s", domain.ErrCapabilityUnavailable, l.timeout))
		l.logger.WithField("timeout", l.timeout).Warn("Image analysis capability load timed out")
	}
}

func (l *Loader) setState(s State, ext domain.SignalExtractor, err error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.state = s
	l.extractor = ext
	l.err = err
}

// State returns the current lifecycle state.
func (l *Loader) State() State {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.state
}

// Ready returns a channel closed once loading finished, successfully or not.
func (l *Loader) Ready() <-chan struct{} {
	l.Start()
	return l.ready
}

// Wait blocks until loading finishes or ctx ends. It returns
// ErrCapabilityUnavailable when the capability failed to load.
func (l *Loader) Wait(ctx context.Context) (domain.SignalExtractor, error) {
	select {
	case <-l.Ready():
	case <-ctx.Done():
		return nil, fmt.Errorf("%w: %v", domain.ErrCapabilityUnavailable, ctx.Err())
	}

	l.mu.RLock()
	defer l.mu.RUnlock()
	if l.err != nil {
		return nil, l.err
	}
	return l.extractor, nil
}

// Extract waits for the capability and extracts a signal, falling back to
// the neutral zero signal when the capability is unavailable.
func (l *Loader) Extract(ctx context.Context, method domain.SignalMethod, data []byte) domain.ImageSignal {
	ext, err := l.Wait(ctx)
	if err != nil {
		l.logger.WithError(err).Warn("Image analysis unavailable, using neutral signal")
		return domain.ImageSignal{Method: method, Value: 0, Fallback: true}
	}
	if e, ok := ext.(*Extractor); ok {
		return e.ExtractWith(ctx, method, data)
	}
	return ext.Extract(ctx, data)
}

// selfCheck runs both heuristics over a tiny known image.
func selfCheck() error {
	img := image.NewGray(image.Rect(0, 0, 16, 16))
	for y := 4; y < 12; y++ {
		for x := 4; x < 12; x++ {
			img.SetGray(x, y, color.Gray{Y: 255})
		}
	}
	if got := BrightnessSignal(img); got != 64 {
		return fmt.Errorf("brightness self-check returned %d, want 64", got)
	}
	if got := ContourSignal(img); got < 0 {
		return fmt.Errorf("contour self-check returned %d", got)
	}
	return nil
}
