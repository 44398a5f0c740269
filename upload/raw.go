package upload

import (
	"cgi_upload_server/body"
	"cgi_upload_server/common"
	"cgi_upload_server/filename"
	"cgi_upload_server/outcome"
	"cgi_upload_server/request"
	"cgi_upload_server/storage"

	"github.com/valyala/fasthttp"
)

// DefaultFilename is used when the query string has no filename.
const DefaultFilename = "uploaded_file"

// serveRaw writes the whole body to a single file named by ?filename=.
func (h *Handler) serveRaw(req *request.Request, store *storage.Store) outcome.Outcome {
	data, err := body.Acquire(req, h.Config.Limits(), false)
	if err != nil {
		common.Logf("UPLOAD", "body error %s: %v", req, err)
		return h.bodyError(err)
	}

	candidate, ok := req.QueryParam("filename")
	if !ok || candidate == "" {
		candidate = DefaultFilename
	}

	safe, err := filename.Validate(candidate)
	if err != nil {
		return outcome.ClientError(fasthttp.StatusBadRequest, "Invalid filename")
	}

	name, err := store.Create(safe, data)
	if err != nil {
		common.Logf("UPLOAD", "store error %s: %v", req, err)
		return outcome.ServerError("Error: " + err.Error())
	}

	common.Logf("UPLOAD", "stored %s (%s) %s", name, common.Size(int64(len(data))), req)
	return outcome.Created("File uploaded: "+name, h.Config.LocationPrefix+name, name)
}
