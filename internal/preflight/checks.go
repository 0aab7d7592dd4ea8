package preflight

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/gofrs/flock"
	"golang.org/x/sys/unix"

	"photon/internal/config"
	"photon/internal/manifest"
	"photon/internal/variants"
)

// Mode selects the permissions CheckDirectoryAccess requires.
type Mode uint32

const (
	Read      Mode = unix.R_OK | unix.X_OK
	ReadWrite Mode = unix.R_OK | unix.W_OK | unix.X_OK
)

func (m Mode) label() string {
	if m&unix.W_OK != 0 {
		return "read/write ok"
	}
	return "read ok"
}

// CheckDirectoryAccess verifies that the directory exists and grants mode.
func CheckDirectoryAccess(name, path string, mode Mode) Result {
	info, err := os.Stat(path)
	if err != nil {
		if os.IsNotExist(err) {
			return Result{Name: name, Detail: fmt.Sprintf("%s (error: does not exist)", path)}
		}
		return Result{Name: name, Detail: fmt.Sprintf("%s (error: stat: %v)", path, err)}
	}
	if !info.IsDir() {
		return Result{Name: name, Detail: fmt.Sprintf("%s (error: is not a directory)", path)}
	}
	if err := unix.Access(path, uint32(mode)); err != nil {
		return Result{Name: name, Detail: fmt.Sprintf("%s (error: insufficient permissions: %v)", path, err)}
	}
	return Result{Name: name, Passed: true, Detail: fmt.Sprintf("%s (%s)", path, mode.label())}
}

// CheckWritableOrCreatable passes when path is a writable directory, or when
// it is missing and its nearest existing ancestor is writable.
func CheckWritableOrCreatable(name, path string) Result {
	if _, err := os.Stat(path); err == nil || !errors.Is(err, fs.ErrNotExist) {
		return CheckDirectoryAccess(name, path, ReadWrite)
	}
	ancestor := filepath.Dir(path)
	for {
		if _, err := os.Stat(ancestor); err == nil {
			break
		}
		next := filepath.Dir(ancestor)
		if next == ancestor {
			break
		}
		ancestor = next
	}
	if err := unix.Access(ancestor, unix.W_OK|unix.X_OK); err != nil {
		return Result{Name: name, Detail: fmt.Sprintf("%s (error: cannot create under %s: %v)", path, ancestor, err)}
	}
	return Result{Name: name, Passed: true, Detail: fmt.Sprintf("%s (will be created)", path)}
}

// CheckManifest verifies the manifest decodes. A missing manifest passes.
func CheckManifest(path string) Result {
	const name = "Manifest"
	if _, err := os.Stat(path); errors.Is(err, fs.ErrNotExist) {
		return Result{Name: name, Passed: true, Detail: fmt.Sprintf("%s (not yet created)", path)}
	}
	m, err := manifest.Load(path)
	if err != nil {
		return Result{Name: name, Detail: fmt.Sprintf("%s (error: %v; next run regenerates everything)", path, err)}
	}
	return Result{Name: name, Passed: true, Detail: fmt.Sprintf("%s (%d entries)", path, len(m))}
}

// CheckLock reports whether another run currently holds the manifest lock.
func CheckLock(path string) Result {
	const name = "Run lock"
	if _, err := os.Stat(path); err != nil {
		return Result{Name: name, Passed: true, Detail: "free"}
	}
	lock := flock.New(path)
	ok, err := lock.TryLock()
	if err != nil {
		return Result{Name: name, Detail: fmt.Sprintf("error: %v", err)}
	}
	if !ok {
		return Result{Name: name, Detail: "held by another photon run"}
	}
	_ = lock.Unlock()
	return Result{Name: name, Passed: true, Detail: "free"}
}

// CheckEncoders verifies each configured format has an encoder.
func CheckEncoders(formats []config.Format) []Result {
	results := make([]Result, 0, len(formats))
	for _, f := range formats {
		name := "Encoder " + f.Name
		if _, err := variants.NewEncoder(f); err != nil {
			results = append(results, Result{Name: name, Detail: err.Error()})
			continue
		}
		results = append(results, Result{Name: name, Passed: true, Detail: fmt.Sprintf("quality %d effort %d", f.Quality, f.Effort)})
	}
	return results
}

func parentDir(path string) string {
	return filepath.Dir(path)
}
