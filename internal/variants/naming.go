package variants

import (
	"path/filepath"
	"strconv"
	"strings"

	"golang.org/x/text/unicode/norm"
)

// Basename strips the directory and extension from source and normalises
// the result to NFC so decomposed accents map to one output name.
func Basename(source string) string {
	base := filepath.Base(source)
	base = strings.TrimSuffix(base, filepath.Ext(base))
	return norm.NFC.String(base)
}

// OutputName returns "<basename>-<width>.<format>".
func OutputName(source string, width int, format string) string {
	return Basename(source) + "-" + strconv.Itoa(width) + "." + format
}
