// Package vision derives a scalar severity signal from injury photos.
//
// Two heuristics are available. Brightness counts pixels whose grayscale
// intensity falls in the top bins [200,255] of a 256-bin histogram.
// Contour detects edges (blur, Sobel gradient, double threshold with
// hysteresis) and sums the area enclosed by closed edge outlines.
// Neither is a medical measurement.
package vision

import (
	"bytes"
	"context"
	"fmt"
	"image"
	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"

	"github.com/disintegration/imaging"
	"github.com/sirupsen/logrus"
	_ "golang.org/x/image/bmp"
	_ "golang.org/x/image/tiff"
	_ "golang.org/x/image/webp"

	"github.com/injury-assessment-server/internal/domain"
)

const (
	histogramBins     = 256
	brightBinStart    = 200
	blurSigma         = 1.1
	edgeLowThreshold  = 50
	edgeHighThreshold = 100
)

// Config tunes an Extractor.
type Config struct {
	Method    domain.SignalMethod
	MaxPixels int
	Workers   int
}

// Extractor implements domain.SignalExtractor.
type Extractor struct {
	method    domain.SignalMethod
	maxPixels int
	sem       chan struct{}
	logger    *logrus.Logger
}

// NewExtractor creates an extractor. Workers bounds concurrent decodes.
func NewExtractor(cfg Config, logger *logrus.Logger) *Extractor {
	if !cfg.Method.IsValid() {
		cfg.Method = domain.SignalBrightness
	}
	if cfg.MaxPixels <= 0 {
		cfg.MaxPixels = 40_000_000
	}
	if cfg.Workers <= 0 {
		cfg.Workers = 1
	}
	return &Extractor{
		method:    cfg.Method,
		maxPixels: cfg.MaxPixels,
		sem:       make(chan struct{}, cfg.Workers),
		logger:    logger,
	}
}

// Method returns the configured signal method.
func (e *Extractor) Method() domain.SignalMethod {
	return e.method
}

// Extract computes the configured signal. Failures yield a zero signal with
// Fallback set and a warning log; no error reaches the caller.
func (e *Extractor) Extract(ctx context.Context, data []byte) domain.ImageSignal {
	return e.ExtractWith(ctx, e.method, data)
}

// ExtractWith computes the signal using an explicit method.
func (e *Extractor) ExtractWith(ctx context.Context, method domain.SignalMethod, data []byte) domain.ImageSignal {
	fallback := domain.ImageSignal{Method: method, Value: 0, Fallback: true}

	select {
	case e.sem <- struct{}{}:
		defer func() { <-e.sem }()
	case <-ctx.Done():
		e.logger.WithError(ctx.Err()).Warn("Image analysis cancelled before start, using neutral signal")
		return fallback
	}

	gray, err := e.decodeGray(data)
	if err != nil {
		e.logger.WithError(err).WithField("method", method).Warn("Image decode failed, using neutral signal")
		return fallback
	}

	var value int
	switch method {
	case domain.SignalContour:
		value = ContourSignal(gray)
	case domain.SignalBrightness:
		value = BrightnessSignal(gray)
	default:
		e.logger.WithField("method", method).Warn("Unknown signal method, using neutral signal")
		return fallback
	}

	e.logger.WithFields(logrus.Fields{
		"method": method,
		"signal": value,
		"width":  gray.Bounds().Dx(),
		"height": gray.Bounds().Dy(),
	}).Debug("Image signal extracted")

	return domain.ImageSignal{Method: method, Value: value}
}

func (e *Extractor) decodeGray(data []byte) (*image.Gray, error) {
	if len(data) == 0 {
		return nil, fmt.Errorf("empty image")
	}

	cfg, format, err := image.DecodeConfig(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("reading image header: %w", err)
	}
	if cfg.Width <= 0 || cfg.Height <= 0 {
		return nil, fmt.Errorf("invalid %s dimensions %dx%d", format, cfg.Width, cfg.Height)
	}
	if cfg.Width*cfg.Height > e.maxPixels {
		return nil, fmt.Errorf("%w: %dx%d exceeds %d pixels", domain.ErrImageTooLarge, cfg.Width, cfg.Height, e.maxPixels)
	}

	img, _, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("decoding %s image: %w", format, err)
	}
	return ToGray(img), nil
}

// ToGray converts any image to 8-bit luminance.
func ToGray(img image.Image) *image.Gray {
	return nrgbaToGray(imaging.Grayscale(img))
}

// nrgbaToGray reads the red channel of an already-desaturated image.
func nrgbaToGray(src *image.NRGBA) *image.Gray {
	b := src.Bounds()
	dst := image.NewGray(image.Rect(0, 0, b.Dx(), b.Dy()))
	for y := 0; y < b.Dy(); y++ {
		srcRow := src.Pix[y*src.Stride:]
		dstRow := dst.Pix[y*dst.Stride:]
		for x := 0; x < b.Dx(); x++ {
			dstRow[x] = srcRow[x*4]
		}
	}
	return dst
}

// Histogram returns the 256-bin intensity histogram of a grayscale image.
func Histogram(gray *image.Gray) [histogramBins]int {
	var hist [histogramBins]int
	b := gray.Bounds()
	for y := b.Min.Y; y < b.Max.Y; y++ {
		row := gray.Pix[(y-b.Min.Y)*gray.Stride:]
		for x := 0; x < b.Dx(); x++ {
			hist[row[x]]++
		}
	}
	return hist
}

// BrightnessSignal sums histogram bins 200 through 255.
func BrightnessSignal(gray *image.Gray) int {
	hist := Histogram(gray)
	total := 0
	for i := brightBinStart; i < histogramBins; i++ {
		total += hist[i]
	}
	return total
}

// ContourSignal returns the pixel area enclosed by closed edge outlines.
func ContourSignal(gray *image.Gray) int {
	edges := DetectEdges(gray)
	return EnclosedArea(edges, gray.Bounds().Dx(), gray.Bounds().Dy())
}

// DetectEdges returns a row-major edge mask: blur, Sobel magnitude
// (|gx|+|gy|), then a 50/100 double threshold joined by hysteresis.
func DetectEdges(gray *image.Gray) []bool {
	blurred := imaging.Blur(gray, blurSigma)

	opts := &imaging.ConvolveOptions{Abs: true}
	gx := imaging.Convolve3x3(blurred, [9]float64{-1, 0, 1, -2, 0, 2, -1, 0, 1}, opts)
	gy := imaging.Convolve3x3(blurred, [9]float64{-1, -2, -1, 0, 0, 0, 1, 2, 1}, opts)

	w, h := blurred.Bounds().Dx(), blurred.Bounds().Dy()
	magnitude := make([]int, w*h)
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			i := y*gx.Stride + x*4
			magnitude[y*w+x] = int(gx.Pix[i]) + int(gy.Pix[i])
		}
	}

	return hysteresis(magnitude, w, h, edgeLowThreshold, edgeHighThreshold)
}

// hysteresis keeps strong pixels (>= high) and weak pixels (>= low) that are
// 8-connected to a strong one.
func hysteresis(magnitude []int, w, h, low, high int) []bool {
	edges := make([]bool, w*h)
	stack := make([]int, 0, 64)

	for i, m := range magnitude {
		if m >= high && !edges[i] {
			edges[i] = true
			stack = append(stack, i)
		}
		for len(stack) > 0 {
			p := stack[len(stack)-1]
			stack = stack[:len(stack)-1]
			px, py := p%w, p/w
			for dy := -1; dy <= 1; dy++ {
				for dx := -1; dx <= 1; dx++ {
					nx, ny := px+dx, py+dy
					if nx < 0 || ny < 0 || nx >= w || ny >= h {
						continue
					}
					n := ny*w + nx
					if !edges[n] && magnitude[n] >= low {
						edges[n] = true
						stack = append(stack, n)
					}
				}
			}
		}
	}
	return edges
}

// EnclosedArea counts non-edge pixels that cannot reach the image border
// through 4-connected non-edge pixels.
func EnclosedArea(edges []bool, w, h int) int {
	if w == 0 || h == 0 {
		return 0
	}
	outside := make([]bool, w*h)
	stack := make([]int, 0, 2*(w+h))

	push := func(x, y int) {
		i := y*w + x
		if !edges[i] && !outside[i] {
			outside[i] = true
			stack = append(stack, i)
		}
	}
	for x := 0; x < w; x++ {
		push(x, 0)
		push(x, h-1)
	}
	for y := 0; y < h; y++ {
		push(0, y)
		push(w-1, y)
	}

	for len(stack) > 0 {
		p := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		x, y := p%w, p/w
		if x > 0 {
			push(x-1, y)
		}
		if x < w-1 {
			push(x+1, y)
		}
		if y > 0 {
			push(x, y-1)
		}
		if y < h-1 {
			push(x, y+1)
		}
	}

	area := 0
	for i := range edges {
		if !edges[i] && !outside[i] {
			area++
		}
	}
	return area
}
