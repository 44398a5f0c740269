package cgi

import (
	"bytes"
	"crypto/rand"
	"strconv"
	"strings"
	"testing"

	"cgi_upload_server/config"
	"cgi_upload_server/outcome"

	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func envFunc(env map[string]string) func(string) string {
	return func(k string) string { return env[k] }
}

func testConfig(dir string) *config.Config {
	return &config.Config{
		UploadDir:      dir,
		MaxBodySize:    10 << 20,
		MaxChunkedSize: 10 << 20,
		LocationPrefix: "/uploads/",
	}
}

// splitResponse returns the header block and body of a CGI response.
func splitResponse(t *testing.T, out string) (string, string) {
	t.Helper()
	i := strings.Index(out, "\r\n\r\n")
	require.GreaterOrEqual(t, i, 0, "no header terminator in %q", out)
	return out[:i], out[i+4:]
}

func TestWrite(t *testing.T) {
	var buf bytes.Buffer
	err := Write(&buf, outcome.Created("File uploaded: a.txt", "/uploads/a.txt", "a.txt"), false)
	require.NoError(t, err)

	expected := "Status: 201 Created\r\n" +
		"Content-Type: text/plain\r\n" +
		"Location: /uploads/a.txt\r\n" +
		"Content-Length: 21\r\n" +
		"\r\n" +
		"File uploaded: a.txt\n"
	assert.Equal(t, expected, buf.String())
}

func TestRunPostEndToEnd(t *testing.T) {
	dir := t.TempDir()
	data := make([]byte, 30)
	_, err := rand.Read(data)
	require.NoError(t, err)

	env := map[string]string{
		"REQUEST_METHOD": "POST",
		"CONTENT_LENGTH": strconv.Itoa(len(data)),
		"CONTENT_TYPE":   "application/octet-stream",
		"QUERY_STRING":   "filename=test.txt",
	}
	fs := afero.NewOsFs()

	var stdout bytes.Buffer
	require.NoError(t, Run(testConfig(dir), fs, envFunc(env), bytes.NewReader(data), &stdout))

	headers, _ := splitResponse(t, stdout.String())
	assert.Contains(t, headers, "Status: 201")
	assert.Contains(t, headers, "Location: /uploads/test.txt")

	stored, err := afero.ReadFile(fs, dir+"/test.txt")
	require.NoError(t, err)
	assert.Equal(t, data, stored)
}

func TestRunScenarios(t *testing.T) {
	tests := []struct {
		name     string
		env      map[string]string
		dir      string
		readOnly bool
		expected string
		body     string
	}{
		{
			name:     "get",
			env:      map[string]string{"REQUEST_METHOD": "GET"},
			dir:      "/up",
			expected: "Status: 200 OK",
		},
		{
			name:     "no upload dir",
			env:      map[string]string{"REQUEST_METHOD": "POST", "CONTENT_LENGTH": "4"},
			dir:      "",
			expected: "Status: 500 Internal Server Error",
			body:     "Internal Server Error\n",
		},
		{
			name:     "read only upload dir",
			env:      map[string]string{"REQUEST_METHOD": "POST", "CONTENT_LENGTH": "4"},
			dir:      "/up",
			readOnly: true,
			expected: "Status: 403 Forbidden",
			body:     "Forbidden\n",
		},
		{
			name:     "put",
			env:      map[string]string{"REQUEST_METHOD": "PUT"},
			dir:      "/up",
			expected: "Status: 501 Not Implemented",
			body:     "Not Implemented\n",
		},
		{
			name:     "chunked",
			env:      map[string]string{"REQUEST_METHOD": "POST", "HTTP_TRANSFER_ENCODING": "chunked", "QUERY_STRING": "filename=c.txt"},
			dir:      "/up",
			expected: "Status: 201 Created",
			body:     "File uploaded: c.txt\n",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var fs afero.Fs = afero.NewMemMapFs()
			require.NoError(t, fs.MkdirAll("/up", 0o755))
			if tt.readOnly {
				fs = afero.NewReadOnlyFs(fs)
			}

			stdin := strings.NewReader("4\r\ndata\r\n0\r\n\r\n")
			var stdout bytes.Buffer
			require.NoError(t, Run(testConfig(tt.dir), fs, envFunc(tt.env), stdin, &stdout))

			headers, body := splitResponse(t, stdout.String())
			assert.True(t, strings.HasPrefix(headers, tt.expected), "got headers %q", headers)
			if tt.body != "" {
				assert.Equal(t, tt.body, body)
			}
		})
	}
}

func TestRunJSON(t *testing.T) {
	env := map[string]string{"REQUEST_METHOD": "DELETE", "HTTP_ACCEPT": "application/json"}

	var stdout bytes.Buffer
	require.NoError(t, Run(testConfig("/up"), afero.NewMemMapFs(), envFunc(env), strings.NewReader(""), &stdout))

	headers, body := splitResponse(t, stdout.String())
	assert.Contains(t, headers, "Content-Type: application/json")
	assert.JSONEq(t, `{"status":501,"message":"Not Implemented"}`, body)
}
