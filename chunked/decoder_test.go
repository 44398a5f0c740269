package chunked

import (
	"bufio"
	"bytes"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const alphabet = "abcdefghijklmnopqrstuvwxyz"

func TestDecode(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		limit    int64
		expected string
		wantErr  error
	}{
		{"single 26 byte chunk", "1a\r\n" + alphabet + "\r\n0\r\n\r\n", 1024, alphabet, nil},
		{"uppercase hex", "1A\r\n" + alphabet + "\r\n0\r\n\r\n", 1024, alphabet, nil},
		{"multiple chunks", "5\r\nhello\r\n1\r\n \r\n5\r\nworld\r\n0\r\n\r\n", 1024, "hello world", nil},
		{"extension ignored", "5;name=value\r\nhello\r\n0;last\r\n\r\n", 1024, "hello", nil},
		{"empty body", "0\r\n\r\n", 1024, "", nil},
		{"exactly at limit", "5\r\nhello\r\n0\r\n\r\n", 5, "hello", nil},
		{"chunk data may contain CRLF", "4\r\na\r\nb\r\n0\r\n\r\n", 1024, "a\r\nb", nil},

		{"missing CRLF after data", "1a\r\n" + alphabet + "0\r\n\r\n", 1024, "", ErrMalformed},
		{"wrong terminator after data", "5\r\nhelloXY0\r\n\r\n", 1024, "", ErrMalformed},
		{"non hex size", "zz\r\nhello\r\n0\r\n\r\n", 1024, "", ErrMalformed},
		{"signed size", "+5\r\nhello\r\n0\r\n\r\n", 1024, "", ErrMalformed},
		{"empty size line", "\r\nhello\r\n0\r\n\r\n", 1024, "", ErrMalformed},
		{"bare LF size line", "5\nhello\r\n0\r\n\r\n", 1024, "", ErrMalformed},
		{"truncated data", "a\r\nhello", 1024, "", ErrMalformed},
		{"missing final CRLF", "5\r\nhello\r\n0\r\n", 1024, "", ErrMalformed},
		{"trailer not supported", "5\r\nhello\r\n0\r\nX-Sum: 1\r\n\r\n", 1024, "", ErrMalformed},
		{"no terminating chunk", "5\r\nhello\r\n", 1024, "", ErrMalformed},
		{"empty stream", "", 1024, "", ErrMalformed},
		{"over limit single", "6\r\nhello!\r\n0\r\n\r\n", 5, "", ErrTooLarge},
		{"over limit cumulative", "3\r\nabc\r\n3\r\ndef\r\n0\r\n\r\n", 5, "", ErrTooLarge},
		{"huge declared size", "7fffffffffffffff\r\n", 1024, "", ErrTooLarge},
		{"size overflows int64", "8000000000000000\r\n", 1024, "", ErrTooLarge},
		{"size overflows 64 bits", "ffffffffffffffffff\r\n", 1024, "", ErrTooLarge},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := Decode(strings.NewReader(tt.input), tt.limit)
			if tt.wantErr != nil {
				require.Error(t, err)
				assert.True(t, errors.Is(err, tt.wantErr), "Decode(%q) error = %v, want %v", tt.input, err, tt.wantErr)
				assert.Nil(t, got)
				return
			}
			require.NoError(t, err)
			require.NotNil(t, got)
			assert.Equal(t, tt.expected, string(got))
		})
	}
}

func TestDecodeLongSizeLine(t *testing.T) {
	input := "5;" + strings.Repeat("x", 2*maxLineLength) + "\r\nhello\r\n0\r\n\r\n"

	_, err := Decode(strings.NewReader(input), 1024)
	require.ErrorIs(t, err, ErrMalformed)
}

func TestDecodeBinaryPayload(t *testing.T) {
	payload := make([]byte, 256)
	for i := range payload {
		payload[i] = byte(i)
	}

	var stream bytes.Buffer
	stream.WriteString("80\r\n")
	stream.Write(payload[:128])
	stream.WriteString("\r\n80\r\n")
	stream.Write(payload[128:])
	stream.WriteString("\r\n0\r\n\r\n")

	got, err := Decode(bufio.NewReader(&stream), 1<<20)
	require.NoError(t, err)
	assert.Equal(t, payload, got)
}

func TestDecodeLeavesRemainingInput(t *testing.T) {
	br := bufio.NewReader(strings.NewReader("2\r\nok\r\n0\r\n\r\nrest"))

	got, err := Decode(br, 1024)
	require.NoError(t, err)
	assert.Equal(t, "ok", string(got))

	rest, _ := br.ReadString(0)
	assert.Equal(t, "rest", rest)
}
