package grpc

import (
	"context"
	"testing"
	"time"

	gogrpc "google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
	grpc_health_v1 "google.golang.org/grpc/health/grpc_health_v1"
)

func TestStartHealthServerRequiresAddress(t *testing.T) {
	if _, err := StartHealthServer(" "); err == nil {
		t.Fatal("expected address error")
	}
}

func TestStartHealthServerReportsNamedService(t *testing.T) {
	server, err := StartHealthServer("127.0.0.1:0", "mailer.scheduler")
	if err != nil {
		t.Fatalf("start health server: %v", err)
	}
	defer server.Stop()

	conn, err := gogrpc.NewClient(server.Addr(), gogrpc.WithTransportCredentials(insecure.NewCredentials()))
	if err != nil {
		t.Fatalf("dial health server: %v", err)
	}
	defer conn.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if err := WaitForHealth(ctx, conn, "mailer.scheduler", nil); err != nil {
		t.Fatalf("wait for health: %v", err)
	}

	server.SetNotServing("mailer.scheduler")
	resp, err := grpc_health_v1.NewHealthClient(conn).Check(ctx, &grpc_health_v1.HealthCheckRequest{Service: "mailer.scheduler"})
	if err != nil {
		t.Fatalf("health check: %v", err)
	}
	if resp.GetStatus() != grpc_health_v1.HealthCheckResponse_NOT_SERVING {
		t.Fatalf("status = %v, want NOT_SERVING", resp.GetStatus())
	}
}

func TestHealthServerStopNilSafe(t *testing.T) {
	var server *HealthServer
	server.Stop()
	if server.Addr() != "" {
		t.Fatal("expected empty addr for nil server")
	}
}

func TestHealthServerStopIsIdempotent(t *testing.T) {
	server, err := StartHealthServer("127.0.0.1:0")
	if err != nil {
		t.Fatalf("start health server: %v", err)
	}
	server.Stop()
	server.Stop()
}
