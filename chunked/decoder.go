package chunked

import (
	"bufio"
	"bytes"
	"errors"
	"fmt"
	"io"
	"strconv"

	"github.com/valyala/bytebufferpool"
)

// maxLineLength bounds a chunk size line, extensions included.
const maxLineLength = 4096

var (
	// ErrMalformed is returned for any framing violation: bad size line,
	// missing CRLF after chunk data, or premature end of stream.
	ErrMalformed = errors.New("malformed chunked encoding")
	// ErrTooLarge is returned when the reassembled body would exceed the limit.
	ErrTooLarge = errors.New("chunked body exceeds size limit")
)

var crlf = []byte("\r\n")

// Decode reads a chunked transfer-encoded body from r and returns the
// reassembled payload. The stream must end with a zero-size chunk followed
// by a bare CRLF; trailers are not supported. No partial payload is
// returned on failure.
//
// A well-formed empty body ("0\r\n\r\n") yields an empty non-nil slice and
// a nil error, so callers can tell it apart from a decode failure.
func Decode(r io.Reader, limit int64) ([]byte, error) {
	br, ok := r.(*bufio.Reader)
	if !ok {
		br = bufio.NewReaderSize(r, maxLineLength)
	}

	buf := bytebufferpool.Get()
	defer bytebufferpool.Put(buf)

	var total int64
	for {
		size, err := readChunkSize(br)
		if err != nil {
			return nil, err
		}

		if size > limit-total {
			return nil, fmt.Errorf("%w: %d bytes over %d", ErrTooLarge, total+size, limit)
		}

		if size == 0 {
			if err := expectCRLF(br); err != nil {
				return nil, err
			}
			return append([]byte{}, buf.B...), nil
		}

		start := len(buf.B)
		buf.B = append(buf.B, make([]byte, size)...)
		if _, err := io.ReadFull(br, buf.B[start:]); err != nil {
			return nil, fmt.Errorf("%w: chunk data: %v", ErrMalformed, err)
		}
		if err := expectCRLF(br); err != nil {
			return nil, err
		}
		total += size
	}
}

// readChunkSize reads "<hex>[;ext]\r\n" and returns the decoded size.
func readChunkSize(br *bufio.Reader) (int64, error) {
	line, err := br.ReadSlice('\n')
	if err != nil {
		if err == bufio.ErrBufferFull {
			return 0, fmt.Errorf("%w: size line too long", ErrMalformed)
		}
		return 0, fmt.Errorf("%w: size line: %v", ErrMalformed, io.ErrUnexpectedEOF)
	}
	if len(line) >= maxLineLength {
		return 0, fmt.Errorf("%w: size line too long", ErrMalformed)
	}
	if !bytes.HasSuffix(line, crlf) {
		return 0, fmt.Errorf("%w: size line not terminated by CRLF", ErrMalformed)
	}
	line = line[:len(line)-2]

	// Extensions are ignored.
	if i := bytes.IndexByte(line, ';'); i >= 0 {
		line = line[:i]
	}
	line = bytes.TrimRight(line, " \t")
	if len(line) == 0 {
		return 0, fmt.Errorf("%w: empty chunk size", ErrMalformed)
	}

	for _, c := range line {
		if !isHex(c) {
			return 0, fmt.Errorf("%w: invalid chunk size %q", ErrMalformed, line)
		}
	}
	size, err := strconv.ParseInt(string(line), 16, 64)
	if errors.Is(err, strconv.ErrRange) {
		return 0, fmt.Errorf("%w: chunk size %q overflows", ErrTooLarge, line)
	}
	if err != nil {
		return 0, fmt.Errorf("%w: invalid chunk size %q", ErrMalformed, line)
	}
	return size, nil
}

func expectCRLF(br *bufio.Reader) error {
	var b [2]byte
	if _, err := io.ReadFull(br, b[:]); err != nil {
		return fmt.Errorf("%w: missing CRLF: %v", ErrMalformed, io.ErrUnexpectedEOF)
	}
	if b[0] != '\r' || b[1] != '\n' {
		return fmt.Errorf("%w: expected CRLF, got %q", ErrMalformed, b[:])
	}
	return nil
}

func isHex(c byte) bool {
	return '0' <= c && c <= '9' || 'a' <= c && c <= 'f' || 'A' <= c && c <= 'F'
}
