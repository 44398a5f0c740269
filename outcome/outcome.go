// Package outcome models the single terminal result of a request and its
// rendering into a response body.
package outcome

import (
	"cgi_upload_server/common"

	json "github.com/bytedance/sonic"
	"github.com/valyala/fasthttp"
)

// Outcome is the terminal result of handling one request.
type Outcome struct {
	Status      int
	Message     string
	Files       []string
	Location    string
	ContentType string
}

// OK returns a 200 outcome with a UTF-8 plain text body.
func OK(msg string) Outcome {
	return Outcome{Status: fasthttp.StatusOK, Message: msg, ContentType: common.ContentTypeTextPlainUTF8}
}

// Created returns a 201 outcome for the stored files.
func Created(msg, location string, files ...string) Outcome {
	return Outcome{Status: fasthttp.StatusCreated, Message: msg, Location: location, Files: files}
}

// ClientError returns a 4xx outcome.
func ClientError(status int, msg string) Outcome {
	return Outcome{Status: status, Message: msg}
}

// ServerError returns a 500 outcome.
func ServerError(msg string) Outcome {
	return Outcome{Status: fasthttp.StatusInternalServerError, Message: msg}
}

// NotImplemented returns a 501 outcome.
func NotImplemented() Outcome {
	return Outcome{Status: fasthttp.StatusNotImplemented, Message: "Not Implemented"}
}

// Reason returns the status line reason phrase, e.g. "Created".
func (o Outcome) Reason() string {
	return fasthttp.StatusMessage(o.Status)
}

type jsonBody struct {
	Status   int      `json:"status"`
	Message  string   `json:"message"`
	Files    []string `json:"files,omitempty"`
	Location string   `json:"location,omitempty"`
}

// Render returns the Content-Type and body bytes for o.
func Render(o Outcome, wantJSON bool) (string, []byte) {
	if wantJSON {
		data, err := json.Marshal(&jsonBody{
			Status:   o.Status,
			Message:  o.Message,
			Files:    o.Files,
			Location: o.Location,
		})
		if err == nil {
			return common.ContentTypeJSON, data
		}
		common.Logf("UPLOAD", "json render error: %v", err)
	}

	ct := o.ContentType
	if ct == "" {
		ct = common.ContentTypeTextPlain
	}
	if o.Message == "" {
		return ct, nil
	}
	return ct, []byte(o.Message + "\n")
}
