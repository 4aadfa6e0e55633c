package util

import (
	"errors"
	"path"
	"strings"
	"unicode/utf8"
)

var errInvalidName = errors.New("invalid file name")

// SanitizeFileName removes path separators and rejects traversal patterns.
func SanitizeFileName(name string) (string, error) {
	if strings.Contains(name, "..") {
		return "", errInvalidName
	}
	s := strings.TrimSpace(name)
	s = strings.ReplaceAll(s, "/", "_")
	s = strings.ReplaceAll(s, "\\", "_")
	if s == "" {
		return "", errInvalidName
	}
	return s, nil
}

// CleanObjectKey normalizes a slash-separated object key, sanitizing each
// segment. Absolute keys and traversal are rejected.
func CleanObjectKey(key string) (string, error) {
	key = strings.TrimSpace(key)
	if key == "" || strings.HasPrefix(key, "/") {
		return "", errors.New("invalid object key")
	}
	parts := strings.Split(key, "/")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p == "" {
			continue
		}
		clean, err := SanitizeFileName(p)
		if err != nil {
			return "", errors.New("invalid object key")
		}
		out = append(out, clean)
	}
	if len(out) == 0 {
		return "", errors.New("invalid object key")
	}
	return path.Join(out...), nil
}

// SingleLine collapses whitespace runs into single spaces and truncates the
// result to max bytes without splitting a rune.
func SingleLine(s string, max int) string {
	s = strings.Join(strings.Fields(s), " ")
	if max <= 0 || len(s) <= max {
		return s
	}
	cut := max
	for cut > 0 && !utf8.RuneStart(s[cut]) {
		cut--
	}
	return s[:cut]
}
