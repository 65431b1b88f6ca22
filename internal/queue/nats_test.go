package queue

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"github.com/nats-io/nats-server/v2/server"
)

// setupTestNATS starts an embedded JetStream server on a random port
func setupTestNATS(t *testing.T) string {
	t.Helper()
	opts := &server.Options{
		Host:      "127.0.0.1",
		Port:      -1,
		JetStream: true,
		StoreDir:  t.TempDir(),
	}

	ns, err := server.NewServer(opts)
	if err != nil {
		t.Fatalf("Failed to create NATS server: %v", err)
	}
	go ns.Start()

	if !ns.ReadyForConnections(5 * time.Second) {
		t.Fatal("NATS server not ready")
	}

	t.Cleanup(func() {
		ns.Shutdown()
		ns.WaitForShutdown()
	})
	return ns.ClientURL()
}

func TestNATSQueue_PublishBeforeSubscribe(t *testing.T) {
	url := setupTestNATS(t)

	q, err := newNATSQueue(url)
	if err != nil {
		t.Fatalf("Failed to create NATS queue: %v", err)
	}
	defer func() { _ = q.Close() }()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	// The stream is created on publish, so nothing is lost before a worker starts
	if err := q.Publish(ctx, "mlpipeline.training", []byte("job-1")); err != nil {
		t.Fatalf("Publish failed: %v", err)
	}

	received := make(chan string, 1)
	if err := q.Subscribe("mlpipeline.training", func(data []byte) error {
		received <- string(data)
		return nil
	}); err != nil {
		t.Fatalf("Subscribe failed: %v", err)
	}

	select {
	case got := <-received:
		if got != "job-1" {
			t.Errorf("got %q, want job-1", got)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("timed out waiting for message")
	}
}

func TestNATSQueue_NakRedelivers(t *testing.T) {
	url := setupTestNATS(t)

	q, err := newNATSQueue(url)
	if err != nil {
		t.Fatalf("Failed to create NATS queue: %v", err)
	}
	defer func() { _ = q.Close() }()

	var attempts atomic.Int32
	done := make(chan struct{})
	err = q.Subscribe("mlpipeline.retry", func([]byte) error {
		if attempts.Add(1) == 1 {
			return context.DeadlineExceeded
		}
		close(done)
		return nil
	})
	if err != nil {
		t.Fatalf("Subscribe failed: %v", err)
	}

	if err := q.Publish(context.Background(), "mlpipeline.retry", []byte("x")); err != nil {
		t.Fatalf("Publish failed: %v", err)
	}

	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatalf("message not redelivered, attempts=%d", attempts.Load())
	}
	if attempts.Load() != 2 {
		t.Errorf("attempts = %d, want 2", attempts.Load())
	}
}

func TestNATSQueue_SubscriptionBookkeeping(t *testing.T) {
	url := setupTestNATS(t)

	q, err := newNATSQueue(url)
	if err != nil {
		t.Fatalf("Failed to create NATS queue: %v", err)
	}
	defer func() { _ = q.Close() }()

	noop := func([]byte) error { return nil }
	if err := q.Subscribe("mlpipeline.a", noop); err != nil {
		t.Fatalf("Subscribe failed: %v", err)
	}
	if err := q.Subscribe("mlpipeline.a", noop); err == nil {
		t.Error("expected error on duplicate subscription")
	}
	if err := q.Unsubscribe("mlpipeline.a"); err != nil {
		t.Errorf("Unsubscribe failed: %v", err)
	}
	if err := q.Unsubscribe("mlpipeline.a"); err == nil {
		t.Error("expected error when not subscribed")
	}
}

func TestNewNATSQueue_Unreachable(t *testing.T) {
	q, err := newNATSQueue("nats://127.0.0.1:1")
	if err == nil {
		_ = q.Close()
		t.Fatal("expected connection error")
	}
}

func TestSanitizeName(t *testing.T) {
	tests := map[string]string{
		"mlpipeline.training": "mlpipeline_training",
		"jobs.*":              "jobs__",
		"plain-name_1":        "plain-name_1",
		"":                    "",
	}
	for in, want := range tests {
		if got := sanitizeName(in); got != want {
			t.Errorf("sanitizeName(%q) = %q, want %q", in, got, want)
		}
	}
}
