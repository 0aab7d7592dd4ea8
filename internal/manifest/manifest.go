package manifest

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"math"
	"os"
	"sort"

	"photon/internal/fileutil"
)

// Variant describes one generated rendition of a source image.
type Variant struct {
	Width  int    `json:"width"`
	Format string `json:"format"`
	Path   string `json:"path"`
	Size   int64  `json:"size"`
}

// Entry records everything the site needs to render one source image.
type Entry struct {
	Original    string            `json:"original"`
	Width       int               `json:"width"`
	Height      int               `json:"height"`
	AspectRatio float64           `json:"aspectRatio"`
	Variants    []Variant         `json:"variants"`
	Srcset      map[string]string `json:"srcset"`
	MTime       int64             `json:"mtime"`
}

// UnmarshalJSON accepts a fractional mtime, as written by older tooling that
// stored sub-millisecond precision, truncating it to whole milliseconds.
func (e *Entry) UnmarshalJSON(data []byte) error {
	type plain Entry
	aux := struct {
		*plain
		MTime json.Number `json:"mtime"`
	}{plain: (*plain)(e)}
	if err := json.Unmarshal(data, &aux); err != nil {
		return err
	}
	e.MTime = 0
	if aux.MTime == "" {
		return nil
	}
	if ms, err := aux.MTime.Int64(); err == nil {
		e.MTime = ms
		return nil
	}
	ms, err := aux.MTime.Float64()
	if err != nil {
		return fmt.Errorf("mtime %q: %w", aux.MTime, err)
	}
	e.MTime = int64(math.Trunc(ms))
	return nil
}

// Manifest is keyed by the source image's site path.
type Manifest map[string]Entry

// AspectRatio returns width/height rounded to two decimals, or 1 when either
// dimension is unknown.
func AspectRatio(width, height int) float64 {
	if width <= 0 || height <= 0 {
		return 1
	}
	return math.Round(float64(width)/float64(height)*100) / 100
}

// NewEntry assembles an entry for original from its generated variants.
// formats lists the configured output formats so the srcset always carries
// a key for each of them.
func NewEntry(original string, width, height int, variants []Variant, mtime int64, formats ...string) Entry {
	if variants == nil {
		variants = []Variant{}
	}
	return Entry{
		Original:    original,
		Width:       width,
		Height:      height,
		AspectRatio: AspectRatio(width, height),
		Variants:    variants,
		Srcset:      ComposeSrcset(variants, formats...),
		MTime:       mtime,
	}
}

// Load reads the manifest at path. A missing file yields an empty manifest
// and no error. An unreadable or corrupt file yields an empty manifest plus
// the error so callers can warn and continue with a full regeneration.
func Load(path string) (Manifest, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return Manifest{}, nil
		}
		return Manifest{}, fmt.Errorf("read manifest: %w", err)
	}
	if len(data) == 0 {
		return Manifest{}, nil
	}
	var m Manifest
	if err := json.Unmarshal(data, &m); err != nil {
		return Manifest{}, fmt.Errorf("decode manifest %s: %w", path, err)
	}
	if m == nil {
		m = Manifest{}
	}
	return m, nil
}

// Save writes the manifest as indented JSON, replacing path atomically.
// Map keys are emitted sorted so identical content produces identical bytes.
func Save(path string, m Manifest) error {
	if m == nil {
		m = Manifest{}
	}
	data, err := json.MarshalIndent(m, "", "  ")
	if err != nil {
		return fmt.Errorf("encode manifest: %w", err)
	}
	data = append(data, '\n')
	if err := fileutil.WriteFileAtomic(path, data, 0o644); err != nil {
		return fmt.Errorf("write manifest: %w", err)
	}
	return nil
}

// Keys returns the manifest keys in ascending order.
func (m Manifest) Keys() []string {
	keys := make([]string, 0, len(m))
	for key := range m {
		keys = append(keys, key)
	}
	sort.Strings(keys)
	return keys
}

// Prune removes entries whose source file no longer exists and returns the
// removed keys sorted.
func (m Manifest) Prune(layout Layout) []string {
	var removed []string
	for key := range m {
		if _, err := os.Stat(layout.DiskPath(key)); errors.Is(err, fs.ErrNotExist) {
			removed = append(removed, key)
		}
	}
	sort.Strings(removed)
	for _, key := range removed {
		delete(m, key)
	}
	return removed
}

// FormatStats aggregates variants of one format.
type FormatStats struct {
	Format   string
	Variants int
	Bytes    int64
}

// Stats summarises a manifest for reporting.
type Stats struct {
	Entries  int
	Variants int
	Bytes    int64
	Formats  []FormatStats
}

// Stats computes totals across all entries, with per-format rows sorted by
// format name.
func (m Manifest) Stats() Stats {
	stats := Stats{Entries: len(m)}
	byFormat := map[string]*FormatStats{}
	for _, entry := range m {
		for _, v := range entry.Variants {
			stats.Variants++
			stats.Bytes += v.Size
			row, ok := byFormat[v.Format]
			if !ok {
				row = &FormatStats{Format: v.Format}
				byFormat[v.Format] = row
			}
			row.Variants++
			row.Bytes += v.Size
		}
	}
	for _, row := range byFormat {
		stats.Formats = append(stats.Formats, *row)
	}
	sort.Slice(stats.Formats, func(i, j int) bool {
		return stats.Formats[i].Format < stats.Formats[j].Format
	})
	return stats
}
