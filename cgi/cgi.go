// Package cgi adapts the upload pipeline to the CGI/1.1 process model:
// one request read from the environment and stdin, one response written
// to stdout.
package cgi

import (
	"bufio"
	"io"
	"strconv"

	"cgi_upload_server/common"
	"cgi_upload_server/config"
	"cgi_upload_server/outcome"
	"cgi_upload_server/request"
	"cgi_upload_server/upload"

	"github.com/spf13/afero"
)

// Write emits o as a CGI response: Status line, headers, blank line, body.
func Write(w io.Writer, o outcome.Outcome, wantJSON bool) error {
	ct, body := outcome.Render(o, wantJSON)

	bw := bufio.NewWriter(w)
	bw.WriteString("Status: ")
	bw.WriteString(strconv.Itoa(o.Status))
	bw.WriteString(" ")
	bw.WriteString(o.Reason())
	bw.WriteString("\r\n")

	bw.WriteString("Content-Type: ")
	bw.WriteString(ct)
	bw.WriteString("\r\n")

	if o.Location != "" {
		bw.WriteString("Location: ")
		bw.WriteString(o.Location)
		bw.WriteString("\r\n")
	}

	bw.WriteString("Content-Length: ")
	bw.WriteString(strconv.Itoa(len(body)))
	bw.WriteString("\r\n\r\n")
	bw.Write(body)
	return bw.Flush()
}

// Run handles exactly one CGI request.
func Run(cfg *config.Config, fs afero.Fs, getenv func(string) string, stdin io.Reader, stdout io.Writer) error {
	req := request.FromEnv(getenv, bufio.NewReader(stdin))

	h := upload.NewHandler(cfg)
	h.Fs = fs

	out := h.Serve(req)
	if err := Write(stdout, out, req.WantsJSON()); err != nil {
		common.Logf("CGI", "write error %s: %v", req, err)
		return err
	}
	return nil
}
