package grpc

import (
	"context"
	"io"
	"net"
	"time"

	"cgi_upload_server/common"

	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/status"
)

// ServiceName is the health service name reported for the upload pipeline.
const ServiceName = "upload"

// logUnaryInterceptor handles logging and draining for unary RPCs
func logUnaryInterceptor(ctx context.Context, req interface{}, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (interface{}, error) {
	if common.Draining.Load() {
		return nil, status.Error(codes.Unavailable, "server is shutting down")
	}

	resp, err := handler(ctx, req)

	if err != nil {
		common.Logf("gRPC", "%s error: %v", info.FullMethod, err)
	} else {
		common.Logf("gRPC", "%s OK", info.FullMethod)
	}
	return resp, err
}

// logStreamInterceptor handles logging and draining for streaming RPCs (Health/Watch)
func logStreamInterceptor(srv interface{}, ss grpc.ServerStream, info *grpc.StreamServerInfo, handler grpc.StreamHandler) error {
	if common.Draining.Load() {
		return status.Error(codes.Unavailable, "server is shutting down")
	}

	common.Logf("gRPC", "%s stream started", info.FullMethod)
	err := handler(srv, ss)
	if err != nil && err != io.EOF {
		common.Logf("gRPC", "%s stream error: %v", info.FullMethod, err)
	} else {
		common.Logf("gRPC", "%s stream ended", info.FullMethod)
	}
	return err
}

// Description returns the endpoint description for startup logging
func Description() string {
	return "  - grpc.health.v1.Health/Check, Watch -> SERVING while the upload directory is writable"
}

// Server is a standalone gRPC health server for the upload daemon
type Server struct {
	addr         string
	interval     time.Duration
	ready        func() bool
	grpcServer   *grpc.Server
	listener     net.Listener
	healthServer *health.Server
	done         chan struct{}
}

// NewServer creates a health server that polls ready every interval
func NewServer(addr string, interval time.Duration, ready func() bool) *Server {
	return &Server{
		addr:     addr,
		interval: interval,
		ready:    ready,
		done:     make(chan struct{}),
	}
}

// Start listens on addr and serves in the background
func (s *Server) Start() error {
	ln, err := net.Listen("tcp", s.addr)
	if err != nil {
		return err
	}
	return s.Serve(ln)
}

// Serve serves on an existing listener in the background
func (s *Server) Serve(ln net.Listener) error {
	s.listener = ln

	s.grpcServer = grpc.NewServer(
		grpc.UnaryInterceptor(logUnaryInterceptor),
		grpc.StreamInterceptor(logStreamInterceptor),
	)

	s.healthServer = health.NewServer()
	healthpb.RegisterHealthServer(s.grpcServer, s.healthServer)
	s.refresh()

	go s.watch()
	go func() {
		common.Logf("gRPC", "starting on %s", ln.Addr())
		if err := s.grpcServer.Serve(ln); err != nil {
			common.Logf("gRPC", "stopped: %v", err)
		}
	}()

	return nil
}

// refresh publishes the current readiness for both the overall server
// ("") and the upload service
func (s *Server) refresh() {
	st := healthpb.HealthCheckResponse_NOT_SERVING
	if !common.Draining.Load() && s.ready() {
		st = healthpb.HealthCheckResponse_SERVING
	}
	s.healthServer.SetServingStatus("", st)
	s.healthServer.SetServingStatus(ServiceName, st)
}

func (s *Server) watch() {
	if s.interval <= 0 {
		return
	}
	t := time.NewTicker(s.interval)
	defer t.Stop()
	for {
		select {
		case <-t.C:
			s.refresh()
		case <-s.done:
			return
		}
	}
}

// Shutdown gracefully shuts down the server
func (s *Server) Shutdown(ctx context.Context) error {
	if s.grpcServer == nil {
		return nil
	}
	close(s.done)

	// Mark as not serving before shutdown
	s.healthServer.Shutdown()

	stopped := make(chan struct{})
	go func() {
		s.grpcServer.GracefulStop()
		close(stopped)
	}()

	select {
	case <-stopped:
		common.Logf("gRPC", "shutdown complete")
		return nil
	case <-ctx.Done():
		common.Logf("gRPC", "shutdown timeout, forcing")
		s.grpcServer.Stop()
		return ctx.Err()
	}
}
