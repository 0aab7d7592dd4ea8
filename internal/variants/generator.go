package variants

import (
	"context"
	"fmt"
	"image"
	"io"
	"log/slog"
	"path/filepath"

	"photon/internal/fileutil"
	"photon/internal/logging"
	"photon/internal/manifest"
)

// Options configures a Generator.
type Options struct {
	// OutputDir receives every variant file.
	OutputDir string
	Layout    manifest.Layout
	// Widths are the target widths in ascending order.
	Widths   []int
	Encoders []Encoder
	// DefaultWidth is the assumed intrinsic width when the header cannot be
	// read, so no configured width is skipped.
	DefaultWidth int
}

// Result is the outcome of processing one source image.
type Result struct {
	Width    int
	Height   int
	Variants []manifest.Variant
}

// Generator renders variants for individual source images. It holds no
// per-image state and is safe for concurrent use.
type Generator struct {
	opts   Options
	logger *slog.Logger
}

// NewGenerator validates opts and returns a Generator.
func NewGenerator(opts Options, logger *slog.Logger) (*Generator, error) {
	if opts.OutputDir == "" {
		return nil, fmt.Errorf("variants: output directory is required")
	}
	if len(opts.Widths) == 0 {
		return nil, fmt.Errorf("variants: at least one width is required")
	}
	if len(opts.Encoders) == 0 {
		return nil, fmt.Errorf("variants: at least one encoder is required")
	}
	if opts.DefaultWidth <= 0 {
		opts.DefaultWidth = 2400
	}
	return &Generator{opts: opts, logger: logging.NewComponentLogger(logger, "variants")}, nil
}

// Generate renders every applicable width and format for source. Variants
// are returned width-major, format-minor. Any failure aborts the image and
// is returned to the caller; files already written for it stay on disk and
// are overwritten by the next attempt.
func (g *Generator) Generate(ctx context.Context, source string) (Result, error) {
	logger := logging.WithContext(ctx, g.logger)

	width, height, err := Dimensions(source)
	ceiling := width
	if err != nil {
		logger.Debug("image dimensions unavailable; assuming default ceiling",
			logging.Int("default_width", g.opts.DefaultWidth),
			logging.Error(err))
		width, height = 0, 0
		ceiling = g.opts.DefaultWidth
	}

	targets := make([]int, 0, len(g.opts.Widths))
	for _, w := range g.opts.Widths {
		if w <= ceiling {
			targets = append(targets, w)
		}
	}
	result := Result{Width: width, Height: height, Variants: []manifest.Variant{}}
	if len(targets) == 0 {
		logger.Debug("source narrower than every configured width; no variants generated",
			logging.Int("width", width))
		return result, nil
	}

	img, _, err := Decode(source)
	if err != nil {
		return Result{}, err
	}

	for _, w := range targets {
		if err := ctx.Err(); err != nil {
			return Result{}, err
		}
		scaled := Resize(img, w)
		for _, enc := range g.opts.Encoders {
			if err := ctx.Err(); err != nil {
				return Result{}, err
			}
			v, err := g.write(source, w, enc, scaled)
			if err != nil {
				return Result{}, err
			}
			logger.Debug("variant written",
				logging.Int("width", w),
				logging.String("format", v.Format),
				logging.Int64("size_bytes", v.Size))
			result.Variants = append(result.Variants, v)
		}
	}
	return result, nil
}

func (g *Generator) write(source string, width int, enc Encoder, img image.Image) (manifest.Variant, error) {
	target := filepath.Join(g.opts.OutputDir, OutputName(source, width, enc.Format()))
	size, err := fileutil.WriteAtomic(target, 0o644, func(w io.Writer) error {
		return enc.Encode(w, img)
	})
	if err != nil {
		return manifest.Variant{}, fmt.Errorf("encode %s at %dpx: %w", enc.Format(), width, err)
	}
	sitePath, err := g.opts.Layout.SitePath(target)
	if err != nil {
		return manifest.Variant{}, err
	}
	return manifest.Variant{Width: width, Format: enc.Format(), Path: sitePath, Size: size}, nil
}
