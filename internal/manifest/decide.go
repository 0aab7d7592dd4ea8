package manifest

import (
	"os"

	"photon/internal/fileutil"
)

// Reason explains a staleness decision.
type Reason string

const (
	ReasonNew              Reason = "new"
	ReasonMissingMTime     Reason = "missing_mtime"
	ReasonSourceModified   Reason = "source_modified"
	ReasonVariantMissing   Reason = "variant_missing"
	ReasonSourceUnreadable Reason = "source_unreadable"
	ReasonUpToDate         Reason = "up_to_date"
)

// Decision reports whether an image needs its variants regenerated.
type Decision struct {
	Regenerate bool
	Reason     Reason
	// Detail names the offending variant path for ReasonVariantMissing.
	Detail string
}

// Decide inspects the recorded entry for key against the filesystem. It only
// stats files and never mutates the manifest.
func Decide(layout Layout, key string, m Manifest) Decision {
	entry, ok := m[key]
	if !ok {
		return Decision{Regenerate: true, Reason: ReasonNew}
	}
	if entry.MTime == 0 {
		return Decision{Regenerate: true, Reason: ReasonMissingMTime}
	}
	info, err := os.Stat(layout.DiskPath(key))
	if err != nil {
		return Decision{Regenerate: true, Reason: ReasonSourceUnreadable, Detail: err.Error()}
	}
	if info.ModTime().UnixMilli() > entry.MTime {
		return Decision{Regenerate: true, Reason: ReasonSourceModified}
	}
	for _, v := range entry.Variants {
		if !fileutil.Exists(layout.DiskPath(v.Path)) {
			return Decision{Regenerate: true, Reason: ReasonVariantMissing, Detail: v.Path}
		}
	}
	return Decision{Regenerate: false, Reason: ReasonUpToDate}
}
