package manifest

import (
	"sort"
	"strconv"
	"strings"
)

// ComposeSrcset groups variants by format and joins each group, ordered by
// ascending width, into an HTML srcset descriptor ("<path> <width>w, ...").
// Every name in formats gets a key, empty when it has no variants.
func ComposeSrcset(variants []Variant, formats ...string) map[string]string {
	groups := make(map[string][]Variant)
	for _, v := range variants {
		groups[v.Format] = append(groups[v.Format], v)
	}
	out := make(map[string]string, len(groups)+len(formats))
	for _, format := range formats {
		out[format] = ""
	}
	for format, group := range groups {
		sort.SliceStable(group, func(i, j int) bool { return group[i].Width < group[j].Width })
		parts := make([]string, 0, len(group))
		for _, v := range group {
			parts = append(parts, v.Path+" "+strconv.Itoa(v.Width)+"w")
		}
		out[format] = strings.Join(parts, ", ")
	}
	return out
}
