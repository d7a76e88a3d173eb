package grpc

import (
	"fmt"
	"net"
	"strings"
	"sync"
	"time"

	"go.opentelemetry.io/contrib/instrumentation/google.golang.org/grpc/otelgrpc"
	gogrpc "google.golang.org/grpc"
	"google.golang.org/grpc/health"
	grpc_health_v1 "google.golang.org/grpc/health/grpc_health_v1"

	"github.com/iuprojects/lcnotes/internal/platform/timeouts"
)

// HealthServer is a traced gRPC server that only exposes the standard health
// service. Long-running lcnotes modes use it so orchestrators can health-check them.
type HealthServer struct {
	listener net.Listener
	server   *gogrpc.Server
	health   *health.Server
	serveErr chan error
	stopOnce sync.Once
}

// StartHealthServer listens on addr and marks the overall server plus each
// named service as SERVING.
func StartHealthServer(addr string, services ...string) (*HealthServer, error) {
	addr = strings.TrimSpace(addr)
	if addr == "" {
		return nil, fmt.Errorf("health server address is required")
	}
	listener, err := net.Listen("tcp", addr)
	if err != nil {
		return nil, fmt.Errorf("listen on %s: %w", addr, err)
	}

	server := gogrpc.NewServer(gogrpc.StatsHandler(otelgrpc.NewServerHandler()))
	healthServer := health.NewServer()
	grpc_health_v1.RegisterHealthServer(server, healthServer)
	healthServer.SetServingStatus("", grpc_health_v1.HealthCheckResponse_SERVING)
	for _, service := range services {
		if service = strings.TrimSpace(service); service != "" {
			healthServer.SetServingStatus(service, grpc_health_v1.HealthCheckResponse_SERVING)
		}
	}

	hs := &HealthServer{
		listener: listener,
		server:   server,
		health:   healthServer,
		serveErr: make(chan error, 1),
	}
	go func() {
		hs.serveErr <- server.Serve(listener)
	}()
	return hs, nil
}

// Addr returns the bound listener address.
func (s *HealthServer) Addr() string {
	if s == nil || s.listener == nil {
		return ""
	}
	return s.listener.Addr().String()
}

// SetServing flips one service back to SERVING.
func (s *HealthServer) SetServing(service string) {
	if s == nil || s.health == nil {
		return
	}
	s.health.SetServingStatus(strings.TrimSpace(service), grpc_health_v1.HealthCheckResponse_SERVING)
}

// SetNotServing flips one service to NOT_SERVING, e.g. while draining.
func (s *HealthServer) SetNotServing(service string) {
	if s == nil || s.health == nil {
		return
	}
	s.health.SetServingStatus(strings.TrimSpace(service), grpc_health_v1.HealthCheckResponse_NOT_SERVING)
}

// Stop reports NOT_SERVING to watchers and drains in-flight calls. Calls still
// open after timeouts.Shutdown are cut off.
func (s *HealthServer) Stop() {
	if s == nil || s.server == nil {
		return
	}
	s.stopOnce.Do(func() {
		s.health.Shutdown()
		drained := make(chan struct{})
		go func() {
			s.server.GracefulStop()
			close(drained)
		}()
		select {
		case <-drained:
		case <-time.After(timeouts.Shutdown):
			s.server.Stop()
		}
		<-s.serveErr
	})
}
