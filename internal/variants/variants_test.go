package variants_test

import (
	"bytes"
	"context"
	"errors"
	"image"
	"image/color"
	"image/png"
	"os"
	"path/filepath"
	"testing"

	"github.com/google/go-cmp/cmp"

	"photon/internal/config"
	"photon/internal/logging"
	"photon/internal/manifest"
	"photon/internal/variants"
)

func gradient(w, h int) *image.NRGBA {
	img := image.NewNRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img.Set(x, y, color.NRGBA{R: uint8(x * 255 / w), G: uint8(y * 255 / h), B: 128, A: 255})
		}
	}
	return img
}

func writePNG(t *testing.T, path string, w, h int) {
	t.Helper()
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatal(err)
	}
	var buf bytes.Buffer
	if err := png.Encode(&buf, gradient(w, h)); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(path, buf.Bytes(), 0o644); err != nil {
		t.Fatal(err)
	}
}

func newGenerator(t *testing.T, root string, widths []int, formats ...config.Format) *variants.Generator {
	t.Helper()
	encoders, err := variants.NewEncoders(formats)
	if err != nil {
		t.Fatalf("NewEncoders: %v", err)
	}
	gen, err := variants.NewGenerator(variants.Options{
		OutputDir: filepath.Join(root, "images", "optimized"),
		Layout:    manifest.Layout{PublicRoot: root},
		Widths:    widths,
		Encoders:  encoders,
	}, logging.NewNop())
	if err != nil {
		t.Fatalf("NewGenerator: %v", err)
	}
	return gen
}

func TestGenerateSkipsWidthsAboveIntrinsic(t *testing.T) {
	root := t.TempDir()
	source := filepath.Join(root, "images", "uploads", "sunset.png")
	writePNG(t, source, 1000, 500)

	gen := newGenerator(t, root, []int{400, 800, 1200},
		config.Format{Name: "jpg", Quality: 80},
		config.Format{Name: "png", Effort: 1},
	)
	res, err := gen.Generate(context.Background(), source)
	if err != nil {
		t.Fatalf("Generate: %v", err)
	}
	if res.Width != 1000 || res.Height != 500 {
		t.Fatalf("unexpected intrinsic size %dx%d", res.Width, res.Height)
	}

	type key struct {
		Width  int
		Format string
		Path   string
	}
	var got []key
	for _, v := range res.Variants {
		got = append(got, key{v.Width, v.Format, v.Path})
		if v.Size <= 0 {
			t.Fatalf("variant %s has no size", v.Path)
		}
		info, err := os.Stat(filepath.Join(root, filepath.FromSlash(v.Path)))
		if err != nil {
			t.Fatalf("variant missing on disk: %v", err)
		}
		if info.Size() != v.Size {
			t.Fatalf("recorded size %d, on disk %d", v.Size, info.Size())
		}
	}
	want := []key{
		{400, "jpg", "/images/optimized/sunset-400.jpg"},
		{400, "png", "/images/optimized/sunset-400.png"},
		{800, "jpg", "/images/optimized/sunset-800.jpg"},
		{800, "png", "/images/optimized/sunset-800.png"},
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Fatalf("variants mismatch (-want +got):\n%s", diff)
	}

	w, h, err := variants.Dimensions(filepath.Join(root, "images", "optimized", "sunset-400.png"))
	if err != nil {
		t.Fatal(err)
	}
	if w != 400 || h != 200 {
		t.Fatalf("resized dimensions %dx%d, want 400x200", w, h)
	}
	if _, err := os.Stat(filepath.Join(root, "images", "optimized", "sunset-1200.jpg")); !os.IsNotExist(err) {
		t.Fatalf("upscaled variant should not exist, stat err=%v", err)
	}
}

func TestGenerateTinySourceProducesNoVariants(t *testing.T) {
	root := t.TempDir()
	source := filepath.Join(root, "images", "uploads", "icon.png")
	writePNG(t, source, 64, 64)

	gen := newGenerator(t, root, []int{400}, config.Format{Name: "jpg", Quality: 80})
	res, err := gen.Generate(context.Background(), source)
	if err != nil {
		t.Fatalf("Generate: %v", err)
	}
	if len(res.Variants) != 0 {
		t.Fatalf("expected no variants, got %v", res.Variants)
	}
}

func TestGenerateCorruptSourceFails(t *testing.T) {
	root := t.TempDir()
	source := filepath.Join(root, "images", "uploads", "broken.jpg")
	if err := os.MkdirAll(filepath.Dir(source), 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(source, []byte("definitely not a jpeg"), 0o644); err != nil {
		t.Fatal(err)
	}
	gen := newGenerator(t, root, []int{400}, config.Format{Name: "jpg", Quality: 80})
	if _, err := gen.Generate(context.Background(), source); err == nil {
		t.Fatal("expected decode error")
	}
}

func TestGenerateHonoursCancellation(t *testing.T) {
	root := t.TempDir()
	source := filepath.Join(root, "images", "uploads", "a.png")
	writePNG(t, source, 500, 500)
	gen := newGenerator(t, root, []int{400}, config.Format{Name: "jpg", Quality: 80})

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := gen.Generate(ctx, source); !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
}

func TestGenerateModernFormats(t *testing.T) {
	if testing.Short() {
		t.Skip("webp/avif encoding is slow")
	}
	root := t.TempDir()
	source := filepath.Join(root, "images", "uploads", "hero.png")
	writePNG(t, source, 420, 300)

	gen := newGenerator(t, root, []int{400},
		config.Format{Name: "webp", Quality: 80, Effort: 4},
		config.Format{Name: "avif", Quality: 60, Effort: 9},
	)
	res, err := gen.Generate(context.Background(), source)
	if err != nil {
		t.Fatalf("Generate: %v", err)
	}
	if len(res.Variants) != 2 {
		t.Fatalf("expected 2 variants, got %v", res.Variants)
	}
	for _, v := range res.Variants {
		w, _, err := variants.Dimensions(filepath.Join(root, filepath.FromSlash(v.Path)))
		if err != nil {
			t.Fatalf("decode %s: %v", v.Path, err)
		}
		if w != 400 {
			t.Fatalf("%s width = %d, want 400", v.Path, w)
		}
	}
}

func TestOutputNameNormalisesUnicode(t *testing.T) {
	decomposed := "/in/e\u0301te\u0301.jpg"
	if got, want := variants.OutputName(decomposed, 800, "webp"), "\u00e9t\u00e9-800.webp"; got != want {
		t.Fatalf("OutputName = %q, want %q", got, want)
	}
	if got := variants.Basename("/in/photo.final.JPG"); got != "photo.final" {
		t.Fatalf("Basename = %q", got)
	}
}

func TestResizePreservesAspectRatio(t *testing.T) {
	img := gradient(300, 200)
	out := variants.Resize(img, 150)
	if b := out.Bounds(); b.Dx() != 150 || b.Dy() != 100 {
		t.Fatalf("resized to %dx%d, want 150x100", b.Dx(), b.Dy())
	}
	if same := variants.Resize(img, 300); same != image.Image(img) {
		t.Fatal("resize to intrinsic width should return the source")
	}
}

func TestNewEncoder(t *testing.T) {
	for _, name := range []string{"jpg", "jpeg", "png", "webp", "avif"} {
		enc, err := variants.NewEncoder(config.Format{Name: name, Quality: 80})
		if err != nil {
			t.Fatalf("NewEncoder(%s): %v", name, err)
		}
		if enc.Format() != name {
			t.Fatalf("encoder format %q, want %q", enc.Format(), name)
		}
	}
	if _, err := variants.NewEncoder(config.Format{Name: "gif"}); !errors.Is(err, variants.ErrUnknownFormat) {
		t.Fatalf("expected ErrUnknownFormat, got %v", err)
	}
}
