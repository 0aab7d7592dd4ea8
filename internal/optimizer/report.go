package optimizer

import (
	"time"

	"photon/internal/history"
	"photon/internal/manifest"
)

// Failure describes an image that could not be processed.
type Failure struct {
	Image string `json:"image"`
	Error string `json:"error"`
}

// Report summarises one optimize run.
type Report struct {
	RunID      string        `json:"run_id"`
	StartedAt  time.Time     `json:"started_at"`
	FinishedAt time.Time     `json:"finished_at"`
	Total      int           `json:"total"`
	Processed  int           `json:"processed"`
	Skipped    int           `json:"skipped"`
	Removed    []string      `json:"removed"`
	Failed     []Failure     `json:"failed"`
	BytesSaved int64         `json:"bytes_saved"`
	Duration   time.Duration `json:"duration_ns"`
}

// HistoryRun converts the report into a ledger row.
func (r Report) HistoryRun() history.Run {
	run := history.Run{
		ID:         r.RunID,
		StartedAt:  r.StartedAt,
		FinishedAt: r.FinishedAt,
		Total:      r.Total,
		Processed:  r.Processed,
		Skipped:    r.Skipped,
		Removed:    len(r.Removed),
		Failed:     len(r.Failed),
		BytesSaved: r.BytesSaved,
	}
	for _, f := range r.Failed {
		run.Failures = append(run.Failures, history.Failure(f))
	}
	return run
}

// referenceSize returns the size of the variant matching format and width,
// or 0 when the image has no such variant.
func referenceSize(variants []manifest.Variant, format string, width int) int64 {
	for _, v := range variants {
		if v.Format == format && v.Width == width {
			return v.Size
		}
	}
	return 0
}
