// Package filename implements the upload filename policy: sanitization,
// validation and the timestamp suffix used for collision disambiguation.
package filename

import (
	"errors"
	"strings"
	"time"
	"unicode/utf8"
)

// MaxLength is the maximum candidate length, in characters, before sanitization.
const MaxLength = 255

// TimestampLayout is appended to the stem of a colliding filename.
const TimestampLayout = "2006-01-02_15-04-05"

// ErrInvalid is returned for empty, over-long or unusable candidates.
var ErrInvalid = errors.New("invalid filename")

// Sanitize strips any directory prefix and replaces characters that are
// unsafe in a path component with '_'.
func Sanitize(name string) string {
	if i := strings.LastIndexByte(name, '/'); i >= 0 {
		name = name[i+1:]
	}

	var sb strings.Builder
	sb.Grow(len(name))
	for i := 0; i < len(name); i++ {
		c := name[i]
		if isUnsafe(c) {
			sb.WriteByte('_')
			continue
		}
		sb.WriteByte(c)
	}
	return sb.String()
}

func isUnsafe(c byte) bool {
	if c < 0x20 {
		return true
	}
	switch c {
	case '<', '>', ':', '"', '/', '\\', '|', '?', '*':
		return true
	}
	return false
}

// Validate checks a candidate and returns its sanitized form.
// The length limit applies to the raw candidate.
func Validate(candidate string) (string, error) {
	if candidate == "" || utf8.RuneCountInString(candidate) > MaxLength {
		return "", ErrInvalid
	}

	safe := Sanitize(candidate)
	switch safe {
	case "", ".", "..":
		return "", ErrInvalid
	}
	return safe, nil
}

// SplitExt splits name into stem and extension. Leading dots belong to the
// stem, so ".profile" has no extension.
func SplitExt(name string) (stem, ext string) {
	i := strings.LastIndexByte(name, '.')
	if i <= 0 || strings.Trim(name[:i], ".") == "" {
		return name, ""
	}
	return name[:i], name[i:]
}

// WithTimestamp inserts "_YYYY-MM-DD_HH-MM-SS" between stem and extension.
func WithTimestamp(name string, t time.Time) string {
	stem, ext := SplitExt(name)
	return stem + "_" + t.Format(TimestampLayout) + ext
}
