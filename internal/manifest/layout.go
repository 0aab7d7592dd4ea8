package manifest

import (
	"fmt"
	"path"
	"path/filepath"
	"strings"
)

// Layout maps between disk paths and site paths rooted at the public
// directory served by the site.
type Layout struct {
	PublicRoot string
}

// SitePath converts a disk path below PublicRoot into a site path with a
// leading slash and forward separators.
func (l Layout) SitePath(diskPath string) (string, error) {
	rel, err := filepath.Rel(l.PublicRoot, diskPath)
	if err != nil {
		return "", fmt.Errorf("site path for %s: %w", diskPath, err)
	}
	if rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		return "", fmt.Errorf("site path for %s: outside public root %s", diskPath, l.PublicRoot)
	}
	return path.Clean("/" + filepath.ToSlash(rel)), nil
}

// DiskPath converts a site path back to its location under PublicRoot.
func (l Layout) DiskPath(sitePath string) string {
	return filepath.Join(l.PublicRoot, filepath.FromSlash(strings.TrimPrefix(sitePath, "/")))
}
