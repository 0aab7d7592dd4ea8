package colors

import (
	"context"
	"fmt"
	"image"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"photon/internal/config"
	"photon/internal/logging"
	"photon/internal/manifest"
	"photon/internal/variants"
)

const (
	dominantSize       = 100
	paletteSize        = 150
	defaultPaletteSize = 5
	maxRemoteBytes     = 64 << 20
)

// Fallback is the cool blue-grey used when extraction fails.
var Fallback = Color{R: 58, G: 68, B: 71, Hex: "#3A4447"}

// Option customises an Extractor.
type Option func(*Extractor)

// WithHTTPClient overrides the client used for remote sources.
func WithHTTPClient(client *http.Client) Option {
	return func(e *Extractor) {
		if client != nil {
			e.client = client
		}
	}
}

// Extractor resolves image sources and derives colours from them.
type Extractor struct {
	layout   manifest.Layout
	client   *http.Client
	timeout  time.Duration
	fallback Color
	logger   *slog.Logger
}

// NewExtractor builds an Extractor from config. An unparsable fallback hex
// falls back to Fallback.
func NewExtractor(cfg *config.Config, logger *slog.Logger, opts ...Option) *Extractor {
	e := &Extractor{
		client:   &http.Client{},
		timeout:  15 * time.Second,
		fallback: Fallback,
		logger:   logging.NewComponentLogger(logger, "colors"),
	}
	if cfg != nil {
		e.layout = manifest.Layout{PublicRoot: cfg.Paths.PublicRoot}
		if cfg.Colors.FetchTimeoutSeconds > 0 {
			e.timeout = time.Duration(cfg.Colors.FetchTimeoutSeconds) * time.Second
		}
		if c, err := ParseHex(cfg.Colors.FallbackHex); err == nil {
			e.fallback = c
		}
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Dominant returns the normalised average colour of src.
func (e *Extractor) Dominant(ctx context.Context, src string) Color {
	img, err := e.load(ctx, src)
	if err != nil {
		e.warn(src, err)
		return e.fallback
	}
	return NormalizeGlow(Average(Cover(img, dominantSize, dominantSize)))
}

// Palette returns up to n of the most common colours in src, most common
// first. n <= 0 means 5.
func (e *Extractor) Palette(ctx context.Context, src string, n int) []Color {
	if n <= 0 {
		n = defaultPaletteSize
	}
	img, err := e.load(ctx, src)
	if err != nil {
		e.warn(src, err)
		return []Color{e.fallback}
	}
	return Quantize(Cover(img, paletteSize, paletteSize), n)
}

func (e *Extractor) warn(src string, err error) {
	logging.WarnWithContext(e.logger, "colour extraction failed; using fallback", "color_extract_failed",
		logging.String(logging.FieldImage, src),
		logging.Error(err),
		logging.String("fallback", e.fallback.Hex),
		logging.String(logging.FieldErrorHint, "check the image path or URL"),
		logging.String(logging.FieldImpact, "post uses the fallback glow colour"))
}

func (e *Extractor) load(ctx context.Context, src string) (image.Image, error) {
	src = strings.TrimSpace(src)
	if src == "" {
		return nil, fmt.Errorf("empty image source")
	}
	if isRemote(src) {
		return e.fetch(ctx, src)
	}
	img, _, err := variants.Decode(e.layout.DiskPath(src))
	return img, err
}

func isRemote(src string) bool {
	lower := strings.ToLower(src)
	return strings.HasPrefix(lower, "http://") || strings.HasPrefix(lower, "https://")
}

func (e *Extractor) fetch(ctx context.Context, url string) (image.Image, error) {
	ctx, cancel := context.WithTimeout(ctx, e.timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	resp, err := e.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetch image: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("fetch image: unexpected status %s", resp.Status)
	}
	img, _, err := image.Decode(io.LimitReader(resp.Body, maxRemoteBytes))
	if err != nil {
		return nil, fmt.Errorf("decode remote image: %w", err)
	}
	return img, nil
}
