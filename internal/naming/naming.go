// Package naming implements the "[origin] clean-name" entry grammar.
//
// An entry name optionally starts with a bracketed origin tag followed by
// whitespace. Everything after it is the clean name, which never changes when
// the origin does and is therefore the stable identity of an entry.
package naming

import (
	"regexp"
	"sort"
	"strings"
)

var (
	reTagPrefix = regexp.MustCompile(`^\[.*?\]\s*`)
	reTag       = regexp.MustCompile(`^\[(.*?)\]`)
)

// Clean strips a leading "[tag]" and the whitespace after it.
func Clean(name string) string {
	return reTagPrefix.ReplaceAllString(name, "")
}

// Tag returns the bracketed origin of name, if any.
func Tag(name string) (string, bool) {
	m := reTag.FindStringSubmatch(name)
	if m == nil {
		return "", false
	}
	return m[1], true
}

// Origin returns the tag of name or unknown when it has none.
func Origin(name, unknown string) string {
	if tag, ok := Tag(name); ok {
		return tag
	}
	return unknown
}

// Apply returns "[tag] " + Clean(name).
func Apply(tag, name string) string {
	return "[" + tag + "] " + Clean(name)
}

// SameEntry reports whether a and b share a clean name.
func SameEntry(a, b string) bool {
	return Clean(a) == Clean(b)
}

// Less orders by lower-cased clean name, then lower-cased full name.
func Less(a, b string) bool {
	ca, cb := strings.ToLower(Clean(a)), strings.ToLower(Clean(b))
	if ca != cb {
		return ca < cb
	}
	return strings.ToLower(a) < strings.ToLower(b)
}

// Sort orders names in place with Less.
func Sort(names []string) {
	sort.SliceStable(names, func(i, j int) bool { return Less(names[i], names[j]) })
}

// TrimExt drops the last extension from name.
func TrimExt(name string) string {
	if i := strings.LastIndex(name, "."); i > 0 {
		return name[:i]
	}
	return name
}

// SafeSegment reports whether s can be used as a single path segment.
func SafeSegment(s string) bool {
	if s == "" || s == "." || s == ".." {
		return false
	}
	return !strings.ContainsAny(s, `/\`) && !strings.ContainsRune(s, 0)
}
