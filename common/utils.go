package common

import (
	"log"
	"unsafe"

	"github.com/dustin/go-humanize"
)

// B2s converts a byte slice to string without memory allocation
// WARNING: The returned string shares the same underlying memory as the byte slice
func B2s(b []byte) string {
	return unsafe.String(unsafe.SliceData(b), len(b))
}

// Content-Type values used by responses
const (
	ContentTypeTextPlain     = "text/plain"
	ContentTypeTextPlainUTF8 = "text/plain; charset=utf-8"
	ContentTypeJSON          = "application/json"
)

// Logf logs with a bracketed tag unless Quiet is set
func Logf(tag, format string, args ...interface{}) {
	if Quiet {
		return
	}
	log.Printf("["+tag+"] "+format, args...)
}

// Truncate shortens s to at most n bytes for log output
func Truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}

// Size formats a byte count for humans (e.g. "10 MiB")
func Size(n int64) string {
	if n < 0 {
		n = 0
	}
	return humanize.IBytes(uint64(n))
}
