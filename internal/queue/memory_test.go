package queue

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"
)

func waitFor(t *testing.T, timeout time.Duration, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatalf("condition not met within %v", timeout)
}

func TestMemoryQueue_PublishSubscribe(t *testing.T) {
	q := newMemoryQueue()
	defer func() { _ = q.Close() }()

	received := make(chan []byte, 3)
	if err := q.Subscribe("jobs", func(data []byte) error {
		received <- data
		return nil
	}); err != nil {
		t.Fatalf("Subscribe failed: %v", err)
	}

	for _, msg := range []string{"a", "b", "c"} {
		if err := q.Publish(context.Background(), "jobs", []byte(msg)); err != nil {
			t.Fatalf("Publish failed: %v", err)
		}
	}

	for _, want := range []string{"a", "b", "c"} {
		select {
		case got := <-received:
			if string(got) != want {
				t.Errorf("got %q, want %q", got, want)
			}
		case <-time.After(2 * time.Second):
			t.Fatalf("timed out waiting for %q", want)
		}
	}
}

func TestMemoryQueue_PublishCopiesData(t *testing.T) {
	q := newMemoryQueue()
	defer func() { _ = q.Close() }()

	data := []byte("train")
	if err := q.Publish(context.Background(), "jobs", data); err != nil {
		t.Fatalf("Publish failed: %v", err)
	}
	data[0] = 'X'

	got := make(chan string, 1)
	_ = q.Subscribe("jobs", func(d []byte) error {
		got <- string(d)
		return nil
	})

	select {
	case s := <-got:
		if s != "train" {
			t.Errorf("queued message was mutated: %q", s)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("timed out")
	}
}

func TestMemoryQueue_Full(t *testing.T) {
	q := newMemoryQueue()
	defer func() { _ = q.Close() }()

	for i := 0; i < memoryQueueCapacity; i++ {
		if err := q.Publish(context.Background(), "jobs", []byte("x")); err != nil {
			t.Fatalf("Publish %d failed: %v", i, err)
		}
	}
	if q.Pending("jobs") != memoryQueueCapacity {
		t.Errorf("Pending = %d, want %d", q.Pending("jobs"), memoryQueueCapacity)
	}
	if err := q.Publish(context.Background(), "jobs", []byte("x")); err == nil {
		t.Error("expected error when buffer is full")
	}
}

func TestMemoryQueue_HandlerErrorDoesNotStopConsumer(t *testing.T) {
	q := newMemoryQueue()
	defer func() { _ = q.Close() }()

	var calls atomic.Int32
	_ = q.Subscribe("jobs", func([]byte) error {
		calls.Add(1)
		return errors.New("boom")
	})

	_ = q.Publish(context.Background(), "jobs", []byte("1"))
	_ = q.Publish(context.Background(), "jobs", []byte("2"))

	waitFor(t, 2*time.Second, func() bool { return calls.Load() == 2 })
}

func TestMemoryQueue_SubscribeTwice(t *testing.T) {
	q := newMemoryQueue()
	defer func() { _ = q.Close() }()

	noop := func([]byte) error { return nil }
	if err := q.Subscribe("jobs", noop); err != nil {
		t.Fatalf("first Subscribe failed: %v", err)
	}
	if err := q.Subscribe("jobs", noop); err == nil {
		t.Error("expected error on duplicate subscription")
	}
}

func TestMemoryQueue_UnsubscribeKeepsBacklog(t *testing.T) {
	q := newMemoryQueue()
	defer func() { _ = q.Close() }()

	if err := q.Unsubscribe("jobs"); err == nil {
		t.Error("expected error when not subscribed")
	}

	_ = q.Subscribe("jobs", func([]byte) error { return nil })
	if err := q.Unsubscribe("jobs"); err != nil {
		t.Fatalf("Unsubscribe failed: %v", err)
	}

	// Give the old consumer goroutine time to observe cancellation
	time.Sleep(50 * time.Millisecond)
	_ = q.Publish(context.Background(), "jobs", []byte("later"))
	if q.Pending("jobs") != 1 {
		t.Errorf("Pending = %d, want 1", q.Pending("jobs"))
	}
}

func TestMemoryQueue_Close(t *testing.T) {
	q := newMemoryQueue()
	_ = q.Subscribe("jobs", func([]byte) error { return nil })

	if err := q.Close(); err != nil {
		t.Fatalf("Close failed: %v", err)
	}
	if err := q.Close(); err != nil {
		t.Errorf("second Close failed: %v", err)
	}
	if err := q.Publish(context.Background(), "jobs", []byte("x")); err == nil {
		t.Error("expected error publishing to closed queue")
	}
}
