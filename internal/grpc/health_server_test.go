package grpc

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"github.com/pifses/mlpipeline/internal/logging"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
)

func startHealthServer(t *testing.T, ready ReadinessFunc) (*HealthServer, healthpb.HealthClient, context.CancelFunc) {
	t.Helper()
	srv := NewHealthServer("127.0.0.1:0", ready, logging.NewNop())
	srv.interval = 20 * time.Millisecond
	if err := srv.Listen(); err != nil {
		t.Fatalf("Listen failed: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		defer close(done)
		_ = srv.Start(ctx)
	}()
	t.Cleanup(func() {
		cancel()
		<-done
	})

	conn, err := grpc.NewClient(srv.Addr().String(), grpc.WithTransportCredentials(insecure.NewCredentials()))
	if err != nil {
		t.Fatalf("failed to create client: %v", err)
	}
	t.Cleanup(func() { _ = conn.Close() })

	return srv, healthpb.NewHealthClient(conn), cancel
}

func waitForStatus(t *testing.T, client healthpb.HealthClient, service string, want healthpb.HealthCheckResponse_ServingStatus) {
	t.Helper()
	deadline := time.Now().Add(3 * time.Second)
	var last healthpb.HealthCheckResponse_ServingStatus
	for time.Now().Before(deadline) {
		ctx, cancel := context.WithTimeout(context.Background(), time.Second)
		resp, err := client.Check(ctx, &healthpb.HealthCheckRequest{Service: service})
		cancel()
		if err == nil {
			last = resp.GetStatus()
			if last == want {
				return
			}
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatalf("service %q: status %v, want %v", service, last, want)
}

func TestHealthServer_FollowsReadiness(t *testing.T) {
	var ready atomic.Bool
	ready.Store(true)

	_, client, _ := startHealthServer(t, ready.Load)

	waitForStatus(t, client, "", healthpb.HealthCheckResponse_SERVING)
	waitForStatus(t, client, ForecasterService, healthpb.HealthCheckResponse_SERVING)

	ready.Store(false)
	waitForStatus(t, client, ForecasterService, healthpb.HealthCheckResponse_NOT_SERVING)

	ready.Store(true)
	waitForStatus(t, client, ForecasterService, healthpb.HealthCheckResponse_SERVING)
}

func TestHealthServer_StopIsIdempotent(t *testing.T) {
	srv := NewHealthServer("127.0.0.1:0", nil, logging.NewNop())
	if err := srv.Listen(); err != nil {
		t.Fatalf("Listen failed: %v", err)
	}
	if srv.Addr() == nil {
		t.Fatal("expected a bound address")
	}
	srv.Stop()
	srv.Stop()
}

func TestHealthServer_ListenError(t *testing.T) {
	srv := NewHealthServer("256.0.0.1:bad", nil, logging.NewNop())
	if err := srv.Start(context.Background()); err == nil {
		t.Fatal("expected listen error")
	}
}
