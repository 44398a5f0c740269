// Package body acquires the raw request body, either by reading exactly
// CONTENT_LENGTH bytes or by decoding a chunked stream.
package body

import (
	"errors"
	"fmt"
	"io"
	"math"

	"cgi_upload_server/chunked"
	"cgi_upload_server/request"

	"github.com/valyala/fasthttp"
)

// DefaultMaxSize is the default body limit for both transfer modes.
const DefaultMaxSize = 10 * 1024 * 1024

var (
	// ErrEmpty is returned when there is no content to upload.
	ErrEmpty = errors.New("no content to upload")
	// ErrTooLarge is returned when the declared or decoded body exceeds the limit.
	ErrTooLarge = errors.New("body too large")
	// ErrMalformed is returned for an undecodable chunked body.
	ErrMalformed = errors.New("malformed chunked body")
	// ErrIncomplete is returned when fewer than CONTENT_LENGTH bytes arrive.
	ErrIncomplete = errors.New("incomplete request body")
)

// TooLargeError reports the limit a body exceeded. It matches ErrTooLarge.
type TooLargeError struct {
	Limit  int64
	Detail string
}

func (e *TooLargeError) Error() string {
	return fmt.Sprintf("%v: %s (limit %d)", ErrTooLarge, e.Detail, e.Limit)
}

func (e *TooLargeError) Is(target error) bool {
	return target == ErrTooLarge
}

// Limits bounds the body size per transfer mode.
type Limits struct {
	MaxBody    int64
	MaxChunked int64
}

// DefaultLimits returns 10 MiB for both modes.
func DefaultLimits() Limits {
	return Limits{MaxBody: DefaultMaxSize, MaxChunked: DefaultMaxSize}
}

// ContentLength parses a CONTENT_LENGTH value. Absent, negative or
// non-numeric values count as zero. An all-digit value too large to
// represent yields math.MaxInt64 so it still fails the size limit.
func ContentLength(s string) int64 {
	if s == "" {
		return 0
	}
	n, err := fasthttp.ParseUint([]byte(s))
	if err != nil {
		if allDigits(s) {
			return math.MaxInt64
		}
		return 0
	}
	if n < 0 {
		return 0
	}
	return int64(n)
}

func allDigits(s string) bool {
	for i := 0; i < len(s); i++ {
		if s[i] < '0' || s[i] > '9' {
			return false
		}
	}
	return s != ""
}

// Acquire reads the whole body of req. With allowEmpty set, a zero-length
// body is returned as-is instead of failing with ErrEmpty.
func Acquire(req *request.Request, limits Limits, allowEmpty bool) ([]byte, error) {
	var (
		data []byte
		err  error
	)
	if req.Chunked() {
		data, err = acquireChunked(req.Body, limits)
	} else {
		data, err = acquireLength(req.Body, ContentLength(req.ContentLength), limits.MaxBody)
	}
	if err != nil {
		return nil, err
	}

	if len(data) == 0 && !allowEmpty {
		return nil, ErrEmpty
	}
	return data, nil
}

func acquireChunked(r io.Reader, limits Limits) ([]byte, error) {
	if r == nil {
		return nil, fmt.Errorf("%w: no input", ErrMalformed)
	}
	data, err := chunked.Decode(r, limits.MaxChunked)
	switch {
	case errors.Is(err, chunked.ErrTooLarge):
		return nil, &TooLargeError{Limit: limits.MaxChunked, Detail: err.Error()}
	case err != nil:
		return nil, fmt.Errorf("%w: %v", ErrMalformed, err)
	}
	if int64(len(data)) > limits.MaxBody {
		return nil, &TooLargeError{Limit: limits.MaxBody, Detail: fmt.Sprintf("%d bytes", len(data))}
	}
	return data, nil
}

func acquireLength(r io.Reader, n, limit int64) ([]byte, error) {
	if n > limit {
		return nil, &TooLargeError{Limit: limit, Detail: fmt.Sprintf("%d bytes declared", n)}
	}
	if n == 0 {
		return []byte{}, nil
	}
	if r == nil {
		return nil, fmt.Errorf("%w: no input", ErrIncomplete)
	}

	data := make([]byte, n)
	read, err := io.ReadFull(r, data)
	if err != nil {
		return nil, fmt.Errorf("%w: got %d of %d bytes", ErrIncomplete, read, n)
	}
	return data, nil
}
