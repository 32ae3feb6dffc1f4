package core

import (
	"sort"
	"strings"
)

// SplitFieldPath splits a dot-separated field path into its segments.
func SplitFieldPath(path string) []string {
	return strings.Split(path, ".")
}

// LookupField resolves a dot-separated field path against doc.
func LookupField(doc Document, path string) (any, bool) {
	var current any = map[string]any(doc)
	for _, part := range SplitFieldPath(path) {
		m, ok := asMap(current)
		if !ok {
			return nil, false
		}
		current, ok = m[part]
		if !ok {
			return nil, false
		}
	}
	return current, true
}

// MergeFields applies patch to dst. Every key in patch is a field path; the
// value at that path is replaced wholesale and missing intermediate maps are
// created. Fields of dst not named by patch are left untouched. Paths are
// applied in sorted order, so a patch naming both a and a.b always ends with
// a.b set inside the new value of a.
func MergeFields(dst Document, patch map[string]any) Document {
	if dst == nil {
		dst = Document{}
	}
	for _, path := range sortedPaths(patch) {
		value := patch[path]
		parts := SplitFieldPath(path)
		current := map[string]any(dst)
		for _, part := range parts[:len(parts)-1] {
			next, ok := asMap(current[part])
			if !ok {
				next = map[string]any{}
				current[part] = next
			}
			current = next
		}
		current[parts[len(parts)-1]] = value
	}
	return dst
}

// OverlappingFieldPaths reports the first pair of paths in patch where one is
// a prefix of the other, such as a and a.b.
func OverlappingFieldPaths(patch map[string]any) (string, string, bool) {
	for _, path := range sortedPaths(patch) {
		parts := SplitFieldPath(path)
		for i := 1; i < len(parts); i++ {
			prefix := strings.Join(parts[:i], ".")
			if _, ok := patch[prefix]; ok {
				return prefix, path, true
			}
		}
	}
	return "", "", false
}

func sortedPaths(patch map[string]any) []string {
	paths := make([]string, 0, len(patch))
	for p := range patch {
		paths = append(paths, p)
	}
	sort.Strings(paths)
	return paths
}

func asMap(v any) (map[string]any, bool) {
	switch m := v.(type) {
	case map[string]any:
		return m, true
	case Document:
		return m, true
	}
	return nil, false
}
