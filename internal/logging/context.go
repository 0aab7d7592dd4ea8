package logging

import (
	"context"
	"log/slog"
	"strings"
)

const (
	// FieldComponent is the standardized structured logging key for component names.
	FieldComponent = "component"
	// FieldRunID is the standardized structured logging key for optimize run identifiers.
	FieldRunID = "run_id"
	// FieldImage is the standardized structured logging key for the site path of a source image.
	FieldImage = "image"
	// FieldEventType classifies warnings and errors for filtering.
	FieldEventType = "event_type"
	// FieldErrorHint suggests the next step an operator should take.
	FieldErrorHint = "error_hint"
	// FieldDecisionType names the decision being logged (e.g. staleness).
	FieldDecisionType = "decision_type"
)

type contextKey int

const (
	runIDKey contextKey = iota
	imageKey
)

// WithRunID tags ctx with an optimize run identifier.
func WithRunID(ctx context.Context, runID string) context.Context {
	return context.WithValue(ctx, runIDKey, strings.TrimSpace(runID))
}

// WithImage tags ctx with the image currently being processed.
func WithImage(ctx context.Context, image string) context.Context {
	return context.WithValue(ctx, imageKey, strings.TrimSpace(image))
}

// RunIDFromContext returns the run identifier stored by WithRunID.
func RunIDFromContext(ctx context.Context) (string, bool) {
	if ctx == nil {
		return "", false
	}
	v, ok := ctx.Value(runIDKey).(string)
	return v, ok && v != ""
}

// ImageFromContext returns the image stored by WithImage.
func ImageFromContext(ctx context.Context) (string, bool) {
	if ctx == nil {
		return "", false
	}
	v, ok := ctx.Value(imageKey).(string)
	return v, ok && v != ""
}

// ContextFields extracts standardized slog attributes from the provided context.
func ContextFields(ctx context.Context) []slog.Attr {
	if ctx == nil {
		return nil
	}
	fields := make([]slog.Attr, 0, 2)
	if id, ok := RunIDFromContext(ctx); ok {
		fields = append(fields, slog.String(FieldRunID, id))
	}
	if image, ok := ImageFromContext(ctx); ok {
		fields = append(fields, slog.String(FieldImage, image))
	}
	return fields
}

// WithContext returns a logger augmented with structured fields derived from the supplied context.
func WithContext(ctx context.Context, logger *slog.Logger) *slog.Logger {
	if logger == nil {
		logger = NewNop()
	}
	fields := ContextFields(ctx)
	if len(fields) == 0 {
		return logger
	}
	return logger.With(attrsToArgs(fields)...)
}

// FormatSubject builds the component/image subject string used in console output.
func FormatSubject(component, image string) string {
	component = strings.TrimSpace(component)
	image = strings.TrimSpace(image)
	switch {
	case component != "" && image != "":
		return component + " (" + image + ")"
	case component != "":
		return component
	default:
		return image
	}
}
