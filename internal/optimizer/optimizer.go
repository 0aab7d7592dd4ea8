package optimizer

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"sync"
	"time"

	"github.com/gofrs/flock"
	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"photon/internal/config"
	"photon/internal/history"
	"photon/internal/logging"
	"photon/internal/manifest"
	"photon/internal/variants"
)

// ErrLocked is returned when another run holds the manifest lock.
var ErrLocked = errors.New("another photon run holds the manifest lock")

// Recorder persists finished runs. *history.Store satisfies it.
type Recorder interface {
	Record(ctx context.Context, run history.Run) error
}

// Generator renders the variants of one source image.
type Generator interface {
	Generate(ctx context.Context, source string) (variants.Result, error)
}

// Option customises an Optimizer.
type Option func(*Optimizer)

// WithRecorder records every completed run.
func WithRecorder(r Recorder) Option {
	return func(o *Optimizer) { o.recorder = r }
}

// WithGenerator replaces the variant generator built from config.
func WithGenerator(g Generator) Option {
	return func(o *Optimizer) { o.generator = g }
}

// Optimizer runs batches against one configuration.
type Optimizer struct {
	cfg       *config.Config
	layout    manifest.Layout
	generator Generator
	recorder  Recorder
	logger    *slog.Logger
	now       func() time.Time
}

// New builds an Optimizer, constructing encoders for every configured format.
func New(cfg *config.Config, logger *slog.Logger, opts ...Option) (*Optimizer, error) {
	if cfg == nil {
		return nil, errors.New("optimizer: config is required")
	}
	o := &Optimizer{
		cfg:    cfg,
		layout: manifest.Layout{PublicRoot: cfg.Paths.PublicRoot},
		logger: logging.NewComponentLogger(logger, "optimizer"),
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(o)
	}
	if o.generator == nil {
		encoders, err := variants.NewEncoders(cfg.Variants.Formats)
		if err != nil {
			return nil, err
		}
		gen, err := variants.NewGenerator(variants.Options{
			OutputDir:    cfg.Paths.OutputDir,
			Layout:       o.layout,
			Widths:       cfg.Variants.Widths,
			Encoders:     encoders,
			DefaultWidth: cfg.Variants.DefaultWidth,
		}, logger)
		if err != nil {
			return nil, err
		}
		o.generator = gen
	}
	return o, nil
}

type job struct {
	key    string
	path   string
	reason manifest.Reason
}

type outcome struct {
	entry manifest.Entry
	saved int64
	err   error
}

// Run executes one batch. Per-image failures are reported, not returned;
// the error result is reserved for run-level failures (lock, scan, save,
// cancellation). A cancelled run leaves the previous manifest untouched.
func (o *Optimizer) Run(ctx context.Context) (Report, error) {
	report := Report{RunID: uuid.NewString(), StartedAt: o.now(), Removed: []string{}, Failed: []Failure{}}
	ctx = logging.WithRunID(ctx, report.RunID)
	logger := logging.WithContext(ctx, o.logger)

	lock := flock.New(o.cfg.LockPath())
	if err := o.cfg.EnsureDirectories(); err != nil {
		return report, fmt.Errorf("ensure directories: %w", err)
	}
	locked, err := lock.TryLock()
	if err != nil {
		return report, fmt.Errorf("acquire lock: %w", err)
	}
	if !locked {
		return report, ErrLocked
	}
	defer func() {
		_ = lock.Unlock()
	}()

	m, err := manifest.Load(o.cfg.Paths.ManifestPath)
	if err != nil {
		logging.WarnWithContext(logger, "manifest unreadable; starting empty", "manifest_load_failed",
			logging.Error(err),
			logging.String("manifest_path", o.cfg.Paths.ManifestPath),
			logging.String(logging.FieldErrorHint, "inspect or delete the manifest file"),
			logging.String(logging.FieldImpact, "every image will be regenerated"))
	}

	sources, err := Scan(o.cfg.Paths.InputDir)
	if err != nil {
		return report, err
	}
	report.Total = len(sources)
	o.warnCollisions(logger, sources)

	jobs := make([]job, 0, len(sources))
	for _, path := range sources {
		key, err := o.layout.SitePath(path)
		if err != nil {
			return report, err
		}
		decision := manifest.Decide(o.layout, key, m)
		if !decision.Regenerate {
			report.Skipped++
			continue
		}
		logger.Debug("image needs regeneration",
			logging.Args(append(logging.DecisionAttrs("staleness", "regenerate", string(decision.Reason)),
				logging.String(logging.FieldImage, key))...)...)
		jobs = append(jobs, job{key: key, path: path, reason: decision.Reason})
	}
	logger.Info("scan complete",
		logging.Int("total", report.Total),
		logging.Int("stale", len(jobs)),
		logging.Int("skipped", report.Skipped))

	outcomes := o.process(ctx, logger, jobs)
	if err := ctx.Err(); err != nil {
		return report, err
	}

	for i, j := range jobs {
		out := outcomes[i]
		if out.err != nil {
			logging.ErrorWithContext(logger, "image processing failed", "image_failed",
				logging.String(logging.FieldImage, j.key),
				logging.Error(out.err),
				logging.String(logging.FieldErrorHint, "check the source file; it will be retried next run"))
			report.Failed = append(report.Failed, Failure{Image: j.key, Error: out.err.Error()})
			continue
		}
		m[j.key] = out.entry
		report.Processed++
		report.BytesSaved += out.saved
	}

	report.Removed = m.Prune(o.layout)
	for _, key := range report.Removed {
		logger.Info("removed manifest entry for deleted source", logging.String(logging.FieldImage, key))
	}

	if err := ctx.Err(); err != nil {
		return report, err
	}
	if err := manifest.Save(o.cfg.Paths.ManifestPath, m); err != nil {
		return report, err
	}

	report.FinishedAt = o.now()
	report.Duration = report.FinishedAt.Sub(report.StartedAt)
	logger.Info("optimize run complete",
		logging.Int("total", report.Total),
		logging.Int("processed", report.Processed),
		logging.Int("skipped", report.Skipped),
		logging.Int("removed", len(report.Removed)),
		logging.Int("failed", len(report.Failed)),
		logging.Int64("bytes_saved", report.BytesSaved),
		logging.Duration("duration", report.Duration))

	if o.recorder != nil {
		if err := o.recorder.Record(ctx, report.HistoryRun()); err != nil {
			logging.WarnWithContext(logger, "failed to record run history", "history_record_failed",
				logging.Error(err),
				logging.String(logging.FieldErrorHint, "check history.path permissions"),
				logging.String(logging.FieldImpact, "this run is missing from photon history"))
		}
	}
	return report, nil
}

// process generates jobs with at most cfg.Variants.Workers in flight. The
// returned slice is index-aligned with jobs.
func (o *Optimizer) process(ctx context.Context, logger *slog.Logger, jobs []job) []outcome {
	outcomes := make([]outcome, len(jobs))
	if len(jobs) == 0 {
		return outcomes
	}

	var (
		mu      sync.Mutex
		done    int
		sampler = logging.NewProgressSampler(10)
	)
	var g errgroup.Group
	g.SetLimit(max(o.cfg.Variants.Workers, 1))
	for i, j := range jobs {
		if ctx.Err() != nil {
			break
		}
		g.Go(func() error {
			outcomes[i] = o.processOne(ctx, j)

			mu.Lock()
			done++
			if sampler.ShouldLog(done, len(jobs)) {
				logger.Info("batch progress",
					logging.Int("done", done),
					logging.Int("stale", len(jobs)),
					logging.Float64("percent", logging.Percent(done, len(jobs))))
			}
			mu.Unlock()
			return nil
		})
	}
	_ = g.Wait()
	return outcomes
}

func (o *Optimizer) processOne(ctx context.Context, j job) outcome {
	ctx = logging.WithImage(ctx, j.key)
	info, err := os.Stat(j.path)
	if err != nil {
		return outcome{err: fmt.Errorf("stat source: %w", err)}
	}
	result, err := o.generator.Generate(ctx, j.path)
	if err != nil {
		return outcome{err: err}
	}
	entry := manifest.NewEntry(j.key, result.Width, result.Height, result.Variants, info.ModTime().UnixMilli(), o.cfg.FormatNames()...)
	saved := info.Size() - referenceSize(result.Variants, o.cfg.Variants.ReferenceFormat, o.cfg.Variants.ReferenceWidth)
	return outcome{entry: entry, saved: saved}
}

// warnCollisions flags sources whose variants would share output names,
// since every variant lands in one flat output directory.
func (o *Optimizer) warnCollisions(logger *slog.Logger, sources []string) {
	seen := make(map[string]string, len(sources))
	for _, path := range sources {
		base := variants.Basename(path)
		if first, ok := seen[base]; ok {
			logging.WarnWithContext(logger, "sources share an output basename", "output_collision",
				logging.String("first", first),
				logging.String("second", path),
				logging.String(logging.FieldErrorHint, "rename one of the uploads"),
				logging.String(logging.FieldImpact, "the later image overwrites the earlier image's variants"))
			continue
		}
		seen[base] = path
	}
}
