package upload

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"mime"
	"mime/multipart"
	"strings"

	"cgi_upload_server/body"
	"cgi_upload_server/common"
	"cgi_upload_server/filename"
	"cgi_upload_server/outcome"
	"cgi_upload_server/request"
	"cgi_upload_server/storage"

	"github.com/hashicorp/go-multierror"
	"github.com/valyala/fasthttp"
)

var errNoBoundary = errors.New("multipart: boundary not found in content type")

// filePart is one multipart part that carried a filename.
type filePart struct {
	candidate string
	safe      string
	data      []byte
}

// serveMultipart stores every file part of a multipart/form-data body.
// All filenames are validated before the first write; if a write fails,
// files already written by this request are removed.
func (h *Handler) serveMultipart(req *request.Request, store *storage.Store) outcome.Outcome {
	data, err := body.Acquire(req, h.Config.Limits(), true)
	if err != nil {
		common.Logf("UPLOAD", "body error %s: %v", req, err)
		return h.bodyError(err)
	}
	if len(data) == 0 {
		return outcome.ClientError(fasthttp.StatusBadRequest, "No files uploaded")
	}

	parts, err := parseFileParts(req.ContentType, data)
	if err != nil {
		common.Logf("UPLOAD", "multipart error %s: %v", req, err)
		return outcome.ServerError("Error: " + err.Error())
	}
	if len(parts) == 0 {
		return outcome.ClientError(fasthttp.StatusBadRequest, "No files uploaded")
	}

	for i := range parts {
		safe, err := filename.Validate(parts[i].candidate)
		if err != nil {
			return outcome.ClientError(fasthttp.StatusBadRequest, "Invalid filename: "+parts[i].candidate)
		}
		parts[i].safe = safe
	}

	written := make([]string, 0, len(parts))
	for _, p := range parts {
		name, err := store.Create(p.safe, p.data)
		if err != nil {
			common.Logf("UPLOAD", "store error %s: %v", req, err)
			if rbErr := rollback(store, written); rbErr != nil {
				common.Logf("UPLOAD", "rollback error %s: %v", req, rbErr)
			}
			return outcome.ServerError("Error: " + err.Error())
		}
		written = append(written, name)
	}

	common.Logf("UPLOAD", "stored %s (%s) %s", strings.Join(written, ","), common.Size(int64(len(data))), req)
	return outcome.Created("Files uploaded: "+strings.Join(written, ", "), "", written...)
}

// parseFileParts returns the parts that carry a non-empty filename, in
// body order. Parts without a filename are ordinary form fields and are skipped.
func parseFileParts(contentType string, data []byte) ([]filePart, error) {
	_, params, err := mime.ParseMediaType(contentType)
	if err != nil {
		return nil, fmt.Errorf("multipart: %w", err)
	}
	boundary := params["boundary"]
	if boundary == "" {
		return nil, errNoBoundary
	}

	var parts []filePart
	mr := multipart.NewReader(bytes.NewReader(data), boundary)
	for {
		part, err := mr.NextPart()
		if err == io.EOF {
			return parts, nil
		}
		if err != nil {
			return nil, err
		}

		candidate := rawFilename(part)
		if candidate == "" {
			continue
		}
		content, err := io.ReadAll(part)
		if err != nil {
			return nil, fmt.Errorf("multipart: reading %q: %w", candidate, err)
		}
		parts = append(parts, filePart{candidate: candidate, data: content})
	}
}

// rawFilename returns the filename disposition parameter as sent, before
// any path stripping, so the length limit applies to the client's value.
func rawFilename(part *multipart.Part) string {
	_, params, err := mime.ParseMediaType(part.Header.Get("Content-Disposition"))
	if err != nil {
		return ""
	}
	return params["filename"]
}

func rollback(store *storage.Store, names []string) error {
	var result *multierror.Error
	for _, name := range names {
		if err := store.Remove(name); err != nil {
			result = multierror.Append(result, err)
		}
	}
	return result.ErrorOrNil()
}
