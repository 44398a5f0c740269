// Package request holds the per-request context consumed by the upload
// pipeline. Components read from a Request value and never from the
// process environment.
package request

import (
	"bytes"
	"io"
	"strconv"
	"strings"

	"cgi_upload_server/common"

	"github.com/google/uuid"
	"github.com/valyala/fasthttp"
)

// Request describes one inbound upload request.
type Request struct {
	ID               string
	Method           string
	ContentLength    string // raw header value, may be empty or non-numeric
	ContentType      string
	TransferEncoding string
	Query            string
	Accept           string
	RemoteAddr       string
	Body             io.Reader
}

// FromEnv builds a Request from CGI/1.1 meta-variables.
func FromEnv(getenv func(string) string, body io.Reader) *Request {
	return &Request{
		ID:               uuid.NewString(),
		Method:           getenv("REQUEST_METHOD"),
		ContentLength:    getenv("CONTENT_LENGTH"),
		ContentType:      getenv("CONTENT_TYPE"),
		TransferEncoding: getenv("HTTP_TRANSFER_ENCODING"),
		Query:            getenv("QUERY_STRING"),
		Accept:           getenv("HTTP_ACCEPT"),
		RemoteAddr:       getenv("REMOTE_ADDR"),
		Body:             body,
	}
}

// FromFastHTTP builds a Request from a fasthttp request context.
// fasthttp has already removed any chunked framing, so the buffered body
// is presented with its exact length.
func FromFastHTTP(ctx *fasthttp.RequestCtx) *Request {
	req := &ctx.Request
	body := req.Body()
	return &Request{
		ID:            uuid.NewString(),
		Method:        string(req.Header.Method()),
		ContentLength: strconv.Itoa(len(body)),
		ContentType:   string(req.Header.ContentType()),
		Query:         string(req.URI().QueryString()),
		Accept:        string(req.Header.Peek(fasthttp.HeaderAccept)),
		RemoteAddr:    ctx.RemoteAddr().String(),
		Body:          bytes.NewReader(body),
	}
}

// Chunked reports whether the body uses chunked transfer-encoding.
func (r *Request) Chunked() bool {
	return strings.EqualFold(strings.TrimSpace(r.TransferEncoding), "chunked")
}

// Multipart reports whether the body is multipart/form-data.
func (r *Request) Multipart() bool {
	return strings.Contains(strings.ToLower(r.ContentType), "multipart/form-data")
}

// WantsJSON reports whether the client asked for a JSON response.
func (r *Request) WantsJSON() bool {
	return strings.Contains(strings.ToLower(r.Accept), "application/json")
}

// QueryParam returns the first URL-decoded value of name in the query string.
func (r *Request) QueryParam(name string) (string, bool) {
	var args fasthttp.Args
	args.Parse(r.Query)
	if !args.Has(name) {
		return "", false
	}
	return string(args.Peek(name)), true
}

// String formats request details for logging. The body is excluded.
func (r *Request) String() string {
	var sb strings.Builder
	sb.Grow(128)

	sb.WriteString("id=")
	sb.WriteString(r.ID)
	sb.WriteString(" method=")
	sb.WriteString(r.Method)
	if r.Query != "" {
		sb.WriteString(" query=")
		sb.WriteString(r.Query)
	}
	if r.ContentLength != "" {
		sb.WriteString(" content_length=")
		sb.WriteString(r.ContentLength)
	}
	if r.Chunked() {
		sb.WriteString(" chunked=true")
	}
	if r.RemoteAddr != "" {
		sb.WriteString(" src=")
		sb.WriteString(r.RemoteAddr)
	}
	return common.Truncate(sb.String(), 512)
}
