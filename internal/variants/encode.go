package variants

import (
	"errors"
	"fmt"
	"image"
	"image/jpeg"
	"image/png"
	"io"
	"strings"

	"github.com/gen2brain/avif"
	"github.com/gen2brain/webp"

	"photon/internal/config"
)

// ErrUnknownFormat is returned for format names without an encoder.
var ErrUnknownFormat = errors.New("unsupported output format")

// Encoder writes an image in one output format.
type Encoder interface {
	// Format is the manifest format name and the output file extension.
	Format() string
	Encode(w io.Writer, img image.Image) error
}

// NewEncoder builds the encoder for a configured output format.
func NewEncoder(f config.Format) (Encoder, error) {
	name := strings.ToLower(strings.TrimSpace(f.Name))
	switch name {
	case "jpg", "jpeg":
		return jpegEncoder{name: name, quality: clamp(f.Quality, 1, 100)}, nil
	case "png":
		return pngEncoder{level: pngLevel(f.Effort)}, nil
	case "webp":
		return webpEncoder{quality: clamp(f.Quality, 1, 100), method: clamp(f.Effort, 0, 6)}, nil
	case "avif":
		return avifEncoder{quality: clamp(f.Quality, 1, 100), speed: clamp(10-f.Effort, 0, 10)}, nil
	default:
		return nil, fmt.Errorf("%w %q", ErrUnknownFormat, f.Name)
	}
}

// NewEncoders builds encoders for every configured format, in order.
func NewEncoders(formats []config.Format) ([]Encoder, error) {
	encoders := make([]Encoder, 0, len(formats))
	for _, f := range formats {
		enc, err := NewEncoder(f)
		if err != nil {
			return nil, err
		}
		encoders = append(encoders, enc)
	}
	return encoders, nil
}

type jpegEncoder struct {
	name    string
	quality int
}

func (e jpegEncoder) Format() string { return e.name }

func (e jpegEncoder) Encode(w io.Writer, img image.Image) error {
	return jpeg.Encode(w, img, &jpeg.Options{Quality: e.quality})
}

type pngEncoder struct {
	level png.CompressionLevel
}

func (pngEncoder) Format() string { return "png" }

func (e pngEncoder) Encode(w io.Writer, img image.Image) error {
	enc := png.Encoder{CompressionLevel: e.level}
	return enc.Encode(w, img)
}

// pngLevel maps the 0-9 effort scale onto zlib levels.
func pngLevel(effort int) png.CompressionLevel {
	switch {
	case effort <= 2:
		return png.BestSpeed
	case effort >= 7:
		return png.BestCompression
	default:
		return png.DefaultCompression
	}
}

type webpEncoder struct {
	quality int
	method  int
}

func (webpEncoder) Format() string { return "webp" }

func (e webpEncoder) Encode(w io.Writer, img image.Image) error {
	return webp.Encode(w, img, webp.Options{Quality: e.quality, Method: e.method})
}

type avifEncoder struct {
	quality int
	speed   int
}

func (avifEncoder) Format() string { return "avif" }

func (e avifEncoder) Encode(w io.Writer, img image.Image) error {
	return avif.Encode(w, img, avif.Options{Quality: e.quality, QualityAlpha: e.quality, Speed: e.speed})
}

func clamp(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
