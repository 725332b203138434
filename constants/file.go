package constants

import (
	"path/filepath"
	"strings"
)

// Entry extensions understood by the record store.
const (
	ExtDocument   = "pdf"
	ExtStructured = "json"
)

// AllowedExtensions holds the extensions listed and aggregated by the store.
var AllowedExtensions = map[string]struct{}{
	ExtDocument:   {},
	ExtStructured: {},
}

// NormalizeExt lowercases and trims the dot from a file extension.
func NormalizeExt(ext string) string {
	return strings.ToLower(strings.TrimPrefix(ext, "."))
}

// ExtOf returns the normalized extension of name.
func ExtOf(name string) string {
	return NormalizeExt(filepath.Ext(name))
}

// IsDocument reports whether name is a document-backed entry.
func IsDocument(name string) bool { return ExtOf(name) == ExtDocument }

// IsStructured reports whether name is a structured entry.
func IsStructured(name string) bool { return ExtOf(name) == ExtStructured }

// IsEntry reports whether name has an extension the store understands.
func IsEntry(name string) bool {
	_, ok := AllowedExtensions[ExtOf(name)]
	return ok
}
