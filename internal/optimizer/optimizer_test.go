package optimizer_test

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/gofrs/flock"
	"github.com/google/go-cmp/cmp"

	"photon/internal/config"
	"photon/internal/history"
	"photon/internal/logging"
	"photon/internal/manifest"
	"photon/internal/optimizer"
	"photon/internal/testsupport"
	"photon/internal/variants"
)

func newOptimizer(t *testing.T, cfg *config.Config, opts ...optimizer.Option) *optimizer.Optimizer {
	t.Helper()
	o, err := optimizer.New(cfg, logging.NewNop(), opts...)
	if err != nil {
		t.Fatalf("optimizer.New: %v", err)
	}
	return o
}

func run(t *testing.T, o *optimizer.Optimizer) optimizer.Report {
	t.Helper()
	report, err := o.Run(context.Background())
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	return report
}

func loadManifest(t *testing.T, cfg *config.Config) manifest.Manifest {
	t.Helper()
	m, err := manifest.Load(cfg.Paths.ManifestPath)
	if err != nil {
		t.Fatalf("load manifest: %v", err)
	}
	return m
}

func TestRunIsIdempotent(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	testsupport.WritePNG(t, filepath.Join(cfg.Paths.InputDir, "a.png"), 300, 200)
	testsupport.WritePNG(t, filepath.Join(cfg.Paths.InputDir, "trips", "b.png"), 250, 250)
	o := newOptimizer(t, cfg)

	first := run(t, o)
	if first.Total != 2 || first.Processed != 2 || first.Skipped != 0 {
		t.Fatalf("unexpected first report %+v", first)
	}
	if first.RunID == "" {
		t.Fatal("expected run id")
	}
	before, err := os.ReadFile(cfg.Paths.ManifestPath)
	if err != nil {
		t.Fatal(err)
	}

	second := run(t, o)
	if second.Processed != 0 || second.Skipped != 2 {
		t.Fatalf("expected every image skipped on second run, got %+v", second)
	}
	if first.RunID == second.RunID {
		t.Fatal("run ids must be unique")
	}
	after, err := os.ReadFile(cfg.Paths.ManifestPath)
	if err != nil {
		t.Fatal(err)
	}
	if diff := cmp.Diff(string(before), string(after)); diff != "" {
		t.Fatalf("manifest changed on idempotent run (-first +second):\n%s", diff)
	}
}

func TestRunEntryShape(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	source := filepath.Join(cfg.Paths.InputDir, "a.png")
	testsupport.WritePNG(t, source, 300, 200)
	run(t, newOptimizer(t, cfg))

	entry, ok := loadManifest(t, cfg)["/images/uploads/a.png"]
	if !ok {
		t.Fatal("expected manifest entry keyed by site path")
	}
	if entry.Original != "/images/uploads/a.png" || entry.Width != 300 || entry.Height != 200 || entry.AspectRatio != 1.5 {
		t.Fatalf("unexpected entry header %+v", entry)
	}
	info, err := os.Stat(source)
	if err != nil {
		t.Fatal(err)
	}
	if entry.MTime != info.ModTime().UnixMilli() {
		t.Fatalf("mtime = %d, want %d", entry.MTime, info.ModTime().UnixMilli())
	}
	var order []string
	for _, v := range entry.Variants {
		order = append(order, v.Path)
	}
	want := []string{
		"/images/optimized/a-100.jpg",
		"/images/optimized/a-100.png",
		"/images/optimized/a-200.jpg",
		"/images/optimized/a-200.png",
	}
	if diff := cmp.Diff(want, order); diff != "" {
		t.Fatalf("variant order mismatch (-want +got):\n%s", diff)
	}
	if got, want := entry.Srcset["jpg"], "/images/optimized/a-100.jpg 100w, /images/optimized/a-200.jpg 200w"; got != want {
		t.Fatalf("srcset = %q, want %q", got, want)
	}
}

func TestTouchedSourceIsRegenerated(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	a := filepath.Join(cfg.Paths.InputDir, "a.png")
	testsupport.WritePNG(t, a, 300, 200)
	testsupport.WritePNG(t, filepath.Join(cfg.Paths.InputDir, "b.png"), 300, 200)
	o := newOptimizer(t, cfg)
	run(t, o)

	later := time.Now().Add(10 * time.Second)
	if err := os.Chtimes(a, later, later); err != nil {
		t.Fatal(err)
	}
	report := run(t, o)
	if report.Processed != 1 || report.Skipped != 1 {
		t.Fatalf("expected only touched image reprocessed, got %+v", report)
	}
	if got := loadManifest(t, cfg)["/images/uploads/a.png"].MTime; got != later.UnixMilli() {
		t.Fatalf("mtime not refreshed: %d", got)
	}
}

func TestMissingVariantIsRecovered(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	testsupport.WritePNG(t, filepath.Join(cfg.Paths.InputDir, "a.png"), 300, 200)
	o := newOptimizer(t, cfg)
	run(t, o)

	variant := filepath.Join(cfg.Paths.OutputDir, "a-200.png")
	if err := os.Remove(variant); err != nil {
		t.Fatal(err)
	}
	report := run(t, o)
	if report.Processed != 1 {
		t.Fatalf("expected regeneration, got %+v", report)
	}
	if _, err := os.Stat(variant); err != nil {
		t.Fatalf("variant not recreated: %v", err)
	}
}

func TestNarrowSourceIsNotUpscaled(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	testsupport.WritePNG(t, filepath.Join(cfg.Paths.InputDir, "narrow.png"), 150, 150)
	run(t, newOptimizer(t, cfg))

	entry := loadManifest(t, cfg)["/images/uploads/narrow.png"]
	for _, v := range entry.Variants {
		if v.Width > 150 {
			t.Fatalf("variant %s exceeds intrinsic width", v.Path)
		}
	}
	if len(entry.Variants) != 2 {
		t.Fatalf("expected 100px variants only, got %+v", entry.Variants)
	}
	if _, err := os.Stat(filepath.Join(cfg.Paths.OutputDir, "narrow-200.jpg")); !os.IsNotExist(err) {
		t.Fatalf("unexpected upscaled file, stat err=%v", err)
	}
}

func TestSourceBelowSmallestWidthKeepsSrcsetKeys(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	testsupport.WritePNG(t, filepath.Join(cfg.Paths.InputDir, "tiny.png"), 60, 40)
	report := run(t, newOptimizer(t, cfg))
	if report.Processed != 1 {
		t.Fatalf("unexpected report %+v", report)
	}

	entry := loadManifest(t, cfg)["/images/uploads/tiny.png"]
	if len(entry.Variants) != 0 {
		t.Fatalf("expected no variants, got %+v", entry.Variants)
	}
	if diff := cmp.Diff(map[string]string{"jpg": "", "png": ""}, entry.Srcset); diff != "" {
		t.Fatalf("srcset mismatch (-want +got):\n%s", diff)
	}
}

func TestDeletedSourceIsPruned(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	gone := filepath.Join(cfg.Paths.InputDir, "gone.png")
	testsupport.WritePNG(t, gone, 120, 120)
	testsupport.WritePNG(t, filepath.Join(cfg.Paths.InputDir, "stay.png"), 120, 120)
	o := newOptimizer(t, cfg)
	run(t, o)

	if err := os.Remove(gone); err != nil {
		t.Fatal(err)
	}
	report := run(t, o)
	if diff := cmp.Diff([]string{"/images/uploads/gone.png"}, report.Removed); diff != "" {
		t.Fatalf("removed mismatch (-want +got):\n%s", diff)
	}
	if diff := cmp.Diff([]string{"/images/uploads/stay.png"}, loadManifest(t, cfg).Keys()); diff != "" {
		t.Fatalf("manifest keys mismatch (-want +got):\n%s", diff)
	}
}

func TestFailedImageDoesNotAbortBatch(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	testsupport.WritePNG(t, filepath.Join(cfg.Paths.InputDir, "good.png"), 200, 100)
	if err := os.WriteFile(filepath.Join(cfg.Paths.InputDir, "broken.jpg"), []byte("not an image"), 0o644); err != nil {
		t.Fatal(err)
	}

	report := run(t, newOptimizer(t, cfg))
	if report.Processed != 1 || len(report.Failed) != 1 {
		t.Fatalf("expected one success and one failure, got %+v", report)
	}
	if report.Failed[0].Image != "/images/uploads/broken.jpg" || report.Failed[0].Error == "" {
		t.Fatalf("unexpected failure record %+v", report.Failed[0])
	}
	m := loadManifest(t, cfg)
	if _, ok := m["/images/uploads/good.png"]; !ok {
		t.Fatal("good image missing from manifest")
	}
	if _, ok := m["/images/uploads/broken.jpg"]; ok {
		t.Fatal("failed image must not get an entry")
	}
}

func TestParallelWorkersMatchSequential(t *testing.T) {
	seq := testsupport.NewConfig(t)
	par := testsupport.NewConfig(t, testsupport.WithWorkers(4))
	for _, cfg := range []*config.Config{seq, par} {
		for _, name := range []string{"a.png", "b.png", "c.png", "d.png", "e.png"} {
			testsupport.WritePNG(t, filepath.Join(cfg.Paths.InputDir, name), 220, 110)
		}
	}
	seqReport := run(t, newOptimizer(t, seq))
	parReport := run(t, newOptimizer(t, par))
	if seqReport.Processed != 5 || parReport.Processed != 5 {
		t.Fatalf("expected 5 processed in both, got %d and %d", seqReport.Processed, parReport.Processed)
	}

	strip := func(m manifest.Manifest) map[string][]string {
		out := map[string][]string{}
		for key, entry := range m {
			for _, v := range entry.Variants {
				out[key] = append(out[key], v.Path)
			}
		}
		return out
	}
	if diff := cmp.Diff(strip(loadManifest(t, seq)), strip(loadManifest(t, par))); diff != "" {
		t.Fatalf("parallel manifest differs (-seq +par):\n%s", diff)
	}
}

func TestRunFailsWhenLockHeld(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	if err := cfg.EnsureDirectories(); err != nil {
		t.Fatal(err)
	}
	held := flock.New(cfg.LockPath())
	ok, err := held.TryLock()
	if err != nil || !ok {
		t.Fatalf("take lock: ok=%v err=%v", ok, err)
	}
	defer held.Unlock()

	_, err = newOptimizer(t, cfg).Run(context.Background())
	if !errors.Is(err, optimizer.ErrLocked) {
		t.Fatalf("expected ErrLocked, got %v", err)
	}
}

func TestCorruptManifestFailsOpen(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	testsupport.WritePNG(t, filepath.Join(cfg.Paths.InputDir, "a.png"), 150, 100)
	if err := os.MkdirAll(filepath.Dir(cfg.Paths.ManifestPath), 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(cfg.Paths.ManifestPath, []byte("{\"truncated\":"), 0o644); err != nil {
		t.Fatal(err)
	}

	report := run(t, newOptimizer(t, cfg))
	if report.Processed != 1 {
		t.Fatalf("expected full regeneration, got %+v", report)
	}
	if _, ok := loadManifest(t, cfg)["/images/uploads/a.png"]; !ok {
		t.Fatal("manifest not rebuilt")
	}
}

func TestCancelledRunLeavesManifestUntouched(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	testsupport.WritePNG(t, filepath.Join(cfg.Paths.InputDir, "a.png"), 150, 100)
	if err := os.MkdirAll(filepath.Dir(cfg.Paths.ManifestPath), 0o755); err != nil {
		t.Fatal(err)
	}
	if err := manifest.Save(cfg.Paths.ManifestPath, manifest.Manifest{}); err != nil {
		t.Fatal(err)
	}
	before, err := os.ReadFile(cfg.Paths.ManifestPath)
	if err != nil {
		t.Fatal(err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := newOptimizer(t, cfg).Run(ctx); !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
	after, err := os.ReadFile(cfg.Paths.ManifestPath)
	if err != nil {
		t.Fatal(err)
	}
	if string(before) != string(after) {
		t.Fatalf("manifest modified by cancelled run: %s", after)
	}
}

type stubGenerator struct {
	mu    sync.Mutex
	calls []string
	sizes map[int]int64
}

func (g *stubGenerator) Generate(_ context.Context, source string) (variants.Result, error) {
	g.mu.Lock()
	g.calls = append(g.calls, source)
	g.mu.Unlock()
	var out []manifest.Variant
	for _, w := range []int{100, 200} {
		out = append(out, manifest.Variant{Width: w, Format: "jpg", Path: "/images/optimized/x-" + string(rune('0'+w/100)) + ".jpg", Size: g.sizes[w]})
	}
	return variants.Result{Width: 10, Height: 10, Variants: out}, nil
}

type recorder struct {
	runs []history.Run
	err  error
}

func (r *recorder) Record(_ context.Context, run history.Run) error {
	r.runs = append(r.runs, run)
	return r.err
}

func TestBytesSavedUsesReferenceVariant(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	source := filepath.Join(cfg.Paths.InputDir, "a.png")
	testsupport.WritePNG(t, source, 50, 50)
	info, err := os.Stat(source)
	if err != nil {
		t.Fatal(err)
	}

	gen := &stubGenerator{sizes: map[int]int64{100: 40, 200: 90}}
	rec := &recorder{}
	report := run(t, newOptimizer(t, cfg, optimizer.WithGenerator(gen), optimizer.WithRecorder(rec)))
	if want := info.Size() - 40; report.BytesSaved != want {
		t.Fatalf("bytes saved = %d, want %d", report.BytesSaved, want)
	}
	if len(rec.runs) != 1 || rec.runs[0].ID != report.RunID || rec.runs[0].Processed != 1 {
		t.Fatalf("run not recorded: %+v", rec.runs)
	}

	cfg.Variants.ReferenceFormat = "avif"
	if err := os.Remove(cfg.Paths.ManifestPath); err != nil {
		t.Fatal(err)
	}
	report = run(t, newOptimizer(t, cfg, optimizer.WithGenerator(gen)))
	if report.BytesSaved != info.Size() {
		t.Fatalf("missing reference should subtract nothing: got %d want %d", report.BytesSaved, info.Size())
	}
}

func TestRecorderFailureIsNotFatal(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	testsupport.WritePNG(t, filepath.Join(cfg.Paths.InputDir, "a.png"), 50, 50)
	rec := &recorder{err: errors.New("disk full")}
	report, err := newOptimizer(t, cfg, optimizer.WithGenerator(&stubGenerator{}), optimizer.WithRecorder(rec)).Run(context.Background())
	if err != nil {
		t.Fatalf("history failure must not fail the run: %v", err)
	}
	if report.Processed != 1 {
		t.Fatalf("unexpected report %+v", report)
	}
}

func TestRunIsRecordedInHistory(t *testing.T) {
	cfg := testsupport.NewConfig(t, testsupport.WithHistory())
	testsupport.WritePNG(t, filepath.Join(cfg.Paths.InputDir, "a.png"), 150, 100)
	testsupport.WriteFile(t, filepath.Join(cfg.Paths.InputDir, "bad.jpg"), 32)
	store := testsupport.MustOpenHistory(t, cfg)

	report, err := newOptimizer(t, cfg, optimizer.WithRecorder(store)).Run(context.Background())
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	runs, err := store.Recent(context.Background(), 5)
	if err != nil {
		t.Fatalf("Recent: %v", err)
	}
	if len(runs) != 1 {
		t.Fatalf("expected one recorded run, got %d", len(runs))
	}
	got := runs[0]
	if got.ID != report.RunID || got.Total != 2 || got.Processed != 1 || got.Failed != 1 {
		t.Fatalf("unexpected recorded run %+v", got)
	}
	if len(got.Failures) != 1 || got.Failures[0].Image != "/images/uploads/bad.jpg" {
		t.Fatalf("unexpected failures %+v", got.Failures)
	}
}

func TestReportHistoryRun(t *testing.T) {
	start := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)
	report := optimizer.Report{
		RunID:      "r1",
		StartedAt:  start,
		FinishedAt: start.Add(time.Second),
		Total:      3,
		Processed:  1,
		Skipped:    1,
		Removed:    []string{"/x.jpg"},
		Failed:     []optimizer.Failure{{Image: "/y.jpg", Error: "boom"}},
		BytesSaved: 10,
	}
	want := history.Run{
		ID: "r1", StartedAt: start, FinishedAt: start.Add(time.Second),
		Total: 3, Processed: 1, Skipped: 1, Removed: 1, Failed: 1, BytesSaved: 10,
		Failures: []history.Failure{{Image: "/y.jpg", Error: "boom"}},
	}
	if diff := cmp.Diff(want, report.HistoryRun()); diff != "" {
		t.Fatalf("history run mismatch (-want +got):\n%s", diff)
	}
}
