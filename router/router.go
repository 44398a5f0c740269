package router

import (
	"bytes"
	"strconv"

	"cgi_upload_server/common"
	"cgi_upload_server/grpc"
	"cgi_upload_server/metrics"
	"cgi_upload_server/outcome"
	"cgi_upload_server/request"
	"cgi_upload_server/storage"
	"cgi_upload_server/upload"

	json "github.com/bytedance/sonic"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/valyala/fasthttp"
	"github.com/valyala/fasthttp/fasthttpadaptor"
)

// Path constants as byte slices to avoid runtime conversions
var (
	pathUpload    = []byte("/upload")
	pathCGIUpload = []byte("/cgi-bin/upload")
	pathHealth    = []byte("/health")
	pathHelp      = []byte("/help")
	pathMetrics   = []byte("/metrics")
)

// healthResponse is the /health body
type healthResponse struct {
	Status    string `json:"status"`
	UploadDir string `json:"upload_dir"`
}

// Router dispatches daemon-mode requests
type Router struct {
	upload         *upload.Handler
	metrics        *metrics.Metrics
	metricsHandler fasthttp.RequestHandler
	helpResponse   []byte
}

// NewRouter creates a router serving h. m may be nil to disable /metrics
func NewRouter(h *upload.Handler, m *metrics.Metrics) *Router {
	r := &Router{upload: h, metrics: m}
	if m != nil {
		r.metricsHandler = fasthttpadaptor.NewFastHTTPHandler(
			promhttp.HandlerFor(m.Registry, promhttp.HandlerOpts{}))
	}
	r.buildHelpResponse()
	return r
}

// buildHelpResponse constructs help text from handler descriptions
func (r *Router) buildHelpResponse() {
	r.helpResponse = []byte("Available endpoints:\n" +
		upload.Description() + "\n" +
		"  - /cgi-bin/upload -> Alias of /upload\n" +
		"  - /health     -> Upload directory status as JSON\n" +
		"  - /metrics    -> Prometheus metrics\n" +
		"  - /help       -> This help message\n" +
		grpc.Description())
}

// Handler is the main request handler
func (r *Router) Handler(ctx *fasthttp.RequestCtx) {
	path := ctx.Path()

	switch {
	case bytes.Equal(path, pathUpload), bytes.Equal(path, pathCGIUpload):
		r.serveUpload(ctx)
	case bytes.Equal(path, pathHealth):
		r.serveHealth(ctx)
	case bytes.Equal(path, pathHelp):
		ctx.SetStatusCode(fasthttp.StatusOK)
		ctx.Response.Header.SetContentType(common.ContentTypeTextPlainUTF8)
		ctx.SetBody(r.helpResponse)
	case bytes.Equal(path, pathMetrics) && r.metricsHandler != nil:
		r.metricsHandler(ctx)
	default:
		writeOutcome(ctx, outcome.ClientError(fasthttp.StatusNotFound, "Not Found"), false)
	}
}

func (r *Router) serveUpload(ctx *fasthttp.RequestCtx) {
	req := request.FromFastHTTP(ctx)
	out := r.upload.Serve(req)

	if r.metrics != nil {
		r.metrics.Observe(req.Method, out.Status, len(out.Files), int64(len(ctx.Request.Body())))
	}
	writeOutcome(ctx, out, req.WantsJSON())
}

func (r *Router) serveHealth(ctx *fasthttp.RequestCtx) {
	st := storage.CheckDir(r.upload.Fs, r.upload.Config.UploadDir)

	code := fasthttp.StatusOK
	if st != storage.DirOK || common.Draining.Load() {
		code = fasthttp.StatusServiceUnavailable
	}
	data, err := json.Marshal(&healthResponse{Status: statusText(code), UploadDir: st.String()})
	if err != nil {
		writeOutcome(ctx, outcome.ServerError("failed to marshal response"), false)
		return
	}

	ctx.SetStatusCode(code)
	ctx.Response.Header.SetContentType(common.ContentTypeJSON)
	ctx.SetBody(data)
}

func statusText(code int) string {
	if code == fasthttp.StatusOK {
		return "ok"
	}
	return "unavailable"
}

// writeOutcome renders o onto the fasthttp response
func writeOutcome(ctx *fasthttp.RequestCtx, o outcome.Outcome, wantJSON bool) {
	ct, body := outcome.Render(o, wantJSON)

	ctx.SetStatusCode(o.Status)
	ctx.Response.Header.SetContentType(ct)
	if o.Location != "" {
		ctx.Response.Header.Set(fasthttp.HeaderLocation, o.Location)
	}
	setConnectionHeader(ctx)
	ctx.SetBody(body)

	common.Logf("HTTP", "%d %s %s body_size=%s src=%s", o.Status,
		common.B2s(ctx.Method()), common.B2s(ctx.RequestURI()),
		strconv.Itoa(len(ctx.Request.Body())), ctx.RemoteAddr())
}

// setConnectionHeader asks clients to close connections while draining
func setConnectionHeader(ctx *fasthttp.RequestCtx) {
	if common.Draining.Load() {
		ctx.Response.Header.Set(fasthttp.HeaderConnection, "close")
	}
}
