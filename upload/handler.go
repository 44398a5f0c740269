package upload

import (
	"errors"
	"fmt"
	"time"

	"cgi_upload_server/body"
	"cgi_upload_server/common"
	"cgi_upload_server/config"
	"cgi_upload_server/outcome"
	"cgi_upload_server/request"
	"cgi_upload_server/storage"

	"github.com/spf13/afero"
	"github.com/valyala/fasthttp"
)

// DateLayout is the GET response body format.
const DateLayout = "2006年01月02日 15時04分05秒"

// Handler runs the upload pipeline for one request at a time. It holds no
// per-request state and may be shared between goroutines.
type Handler struct {
	Config *config.Config
	Fs     afero.Fs
	Now    func() time.Time
}

// NewHandler returns a Handler on the OS filesystem.
func NewHandler(cfg *config.Config) *Handler {
	return &Handler{Config: cfg, Fs: afero.NewOsFs(), Now: time.Now}
}

// Description returns the endpoint description for startup logging
func Description() string {
	return "  - /upload     -> GET current time, POST raw (?filename=) or multipart/form-data upload"
}

// Serve handles req and always returns exactly one outcome.
func (h *Handler) Serve(req *request.Request) (out outcome.Outcome) {
	defer func() {
		if r := recover(); r != nil {
			common.Logf("UPLOAD", "panic %s: %v", req, r)
			out = outcome.ServerError(fmt.Sprintf("Error: %v", r))
		}
	}()

	switch req.Method {
	case fasthttp.MethodGet:
		out = outcome.OK(h.now().Format(DateLayout))
	case fasthttp.MethodPost:
		out = h.post(req)
	default:
		out = outcome.NotImplemented()
	}

	common.Logf("UPLOAD", "%d %s", out.Status, req)
	return out
}

func (h *Handler) now() time.Time {
	if h.Now != nil {
		return h.Now()
	}
	return time.Now()
}

func (h *Handler) post(req *request.Request) outcome.Outcome {
	switch storage.CheckDir(h.Fs, h.Config.UploadDir) {
	case storage.DirNotConfigured:
		return outcome.ServerError("Internal Server Error")
	case storage.DirUnavailable:
		return outcome.ClientError(fasthttp.StatusForbidden, "Forbidden")
	}

	store := storage.NewStore(h.Fs, h.Config.UploadDir)
	store.Now = h.now

	if req.Multipart() {
		return h.serveMultipart(req, store)
	}
	return h.serveRaw(req, store)
}

// bodyError maps a body acquisition failure to its outcome.
func (h *Handler) bodyError(err error) outcome.Outcome {
	var tooLarge *body.TooLargeError
	switch {
	case errors.As(err, &tooLarge):
		return outcome.ClientError(fasthttp.StatusRequestEntityTooLarge,
			"File too large (limit "+common.Size(tooLarge.Limit)+")")
	case errors.Is(err, body.ErrTooLarge):
		return outcome.ClientError(fasthttp.StatusRequestEntityTooLarge, "File too large")
	case errors.Is(err, body.ErrEmpty):
		return outcome.ClientError(fasthttp.StatusBadRequest, "No content to upload")
	case errors.Is(err, body.ErrMalformed):
		return outcome.ClientError(fasthttp.StatusBadRequest, "Malformed chunked body")
	case errors.Is(err, body.ErrIncomplete):
		return outcome.ClientError(fasthttp.StatusBadRequest, "Incomplete request body")
	}
	return outcome.ServerError("Error: " + err.Error())
}
