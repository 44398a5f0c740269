package main

import (
	"context"
	"flag"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"cgi_upload_server/cgi"
	"cgi_upload_server/common"
	"cgi_upload_server/config"
	"cgi_upload_server/grpc"
	"cgi_upload_server/metrics"
	"cgi_upload_server/router"
	"cgi_upload_server/storage"
	"cgi_upload_server/upload"

	"github.com/spf13/afero"
	"github.com/valyala/fasthttp"
	"github.com/valyala/fasthttp/reuseport"
	_ "go.uber.org/automaxprocs"
)

// multipartOverhead leaves room for multipart framing above the body limit
const multipartOverhead = 1024 * 1024

func main() {
	addr := flag.String("addr", "0.0.0.0:8080", "daemon listen address")
	grpcAddr := flag.String("grpc-addr", "", "gRPC health listen address (disabled when empty)")
	configPath := flag.String("config", os.Getenv("UPLOAD_CONFIG"), "optional config file")
	quiet := flag.Bool("quiet", false, "suppress request logging")
	cgiMode := flag.Bool("cgi", os.Getenv("GATEWAY_INTERFACE") != "", "handle a single CGI request from the environment")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		if *cgiMode {
			// A CGI process must still answer; report a configuration error.
			log.Printf("[CGI] config error: %v", err)
			cfg = &config.Config{}
		} else {
			log.Fatalf("error loading config: %v", err)
		}
	}
	common.Quiet = *quiet || cfg.Quiet

	if *cgiMode {
		if err := cgi.Run(cfg, afero.NewOsFs(), os.Getenv, os.Stdin, os.Stdout); err != nil {
			os.Exit(1)
		}
		return
	}

	runDaemon(cfg, *addr, *grpcAddr)
}

// NewServer builds the fasthttp server for daemon mode
func NewServer(r *router.Router, maxBodySize int64) *fasthttp.Server {
	return &fasthttp.Server{
		Name:               "cgi_upload_server",
		Handler:            r.Handler,
		TCPKeepalive:       true,
		LogAllErrors:       !common.Quiet,
		ReadTimeout:        90 * time.Second,
		WriteTimeout:       30 * time.Second,
		MaxRequestBodySize: int(maxBodySize) + multipartOverhead,
	}
}

func runDaemon(cfg *config.Config, addr, grpcAddr string) {
	h := upload.NewHandler(cfg)
	if st := storage.CheckDir(h.Fs, cfg.UploadDir); st != storage.DirOK {
		log.Printf("[HTTP] warning: upload directory %q is %s", cfg.UploadDir, st)
	}

	// Create a new listener on the given address using port reuse
	ln, err := reuseport.Listen("tcp4", addr)
	if err != nil {
		log.Fatalf("error creating listener: %v", err)
	}
	defer ln.Close()

	server := NewServer(router.NewRouter(h, metrics.New()), cfg.MaxBodySize)

	go func() {
		log.Printf("starting server on %s (upload dir %q, limit %s)", addr, cfg.UploadDir, common.Size(cfg.MaxBodySize))
		if err := server.Serve(ln); err != nil {
			log.Fatalf("error starting server: %v", err)
		}
	}()

	var healthSrv *grpc.Server
	if grpcAddr != "" {
		healthSrv = grpc.NewServer(grpcAddr, 10*time.Second, func() bool {
			return storage.CheckDir(h.Fs, cfg.UploadDir) == storage.DirOK
		})
		if err := healthSrv.Start(); err != nil {
			log.Fatalf("error starting gRPC health server: %v", err)
		}
	}

	// Wait for a signal to stop the server
	sig := make(chan os.Signal, 1)
	signal.Notify(sig, os.Interrupt, syscall.SIGTERM)
	<-sig
	common.Draining.Store(true)

	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()

	if healthSrv != nil {
		if err := healthSrv.Shutdown(ctx); err != nil {
			log.Printf("error stopping gRPC health server: %v", err)
		}
	}
	if err := server.ShutdownWithContext(ctx); err != nil {
		log.Fatalf("error stopping server: %v", err)
	}
}
