package queue

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/pifses/mlpipeline/internal/logging"
	"github.com/segmentio/kafka-go"
)

// KafkaConfig configures the Kafka queue
type KafkaConfig struct {
	Brokers      []string
	GroupID      string        // default "mlpipeline-trainers"
	MaxAttempts  int           // handler attempts per message before it is skipped (default 3)
	RetryBackoff time.Duration // pause between handler attempts (default 1s)
}

// KafkaQueue implements Queue on Kafka. Topics are the subjects
// themselves. Kafka cannot nack a single message, so a failing handler is
// retried in place and the offset is committed after MaxAttempts.
type KafkaQueue struct {
	config        KafkaConfig
	writer        *kafka.Writer
	readers       map[string]*kafka.Reader
	subscriptions map[string]context.CancelFunc
	wg            sync.WaitGroup
	mu            sync.Mutex
}

func newKafkaQueue(cfg KafkaConfig) (*KafkaQueue, error) {
	if len(cfg.Brokers) == 0 {
		return nil, fmt.Errorf("kafka brokers not configured")
	}

	if cfg.GroupID == "" {
		cfg.GroupID = "mlpipeline-trainers"
	}
	if cfg.MaxAttempts <= 0 {
		cfg.MaxAttempts = 3
	}
	if cfg.RetryBackoff <= 0 {
		cfg.RetryBackoff = time.Second
	}

	return &KafkaQueue{
		config: cfg,
		writer: &kafka.Writer{
			Addr:                   kafka.TCP(cfg.Brokers...),
			Balancer:               &kafka.Hash{},
			RequiredAcks:           kafka.RequireAll,
			AllowAutoTopicCreation: true,
		},
		readers:       make(map[string]*kafka.Reader),
		subscriptions: make(map[string]context.CancelFunc),
	}, nil
}

// Publish writes data to the topic named by subject
func (q *KafkaQueue) Publish(ctx context.Context, subject string, data []byte) error {
	err := q.writer.WriteMessages(ctx, kafka.Message{
		Topic: subject,
		Value: data,
		Time:  time.Now(),
	})
	if err != nil {
		return fmt.Errorf("failed to publish to kafka topic %s: %w", subject, err)
	}
	return nil
}

// Subscribe starts a consumer group reader on subject
func (q *KafkaQueue) Subscribe(subject string, handler MessageHandler) error {
	q.mu.Lock()
	defer q.mu.Unlock()

	if _, exists := q.subscriptions[subject]; exists {
		return fmt.Errorf("already subscribed to topic: %s", subject)
	}

	reader := kafka.NewReader(kafka.ReaderConfig{
		Brokers:  q.config.Brokers,
		GroupID:  q.config.GroupID,
		Topic:    subject,
		MinBytes: 1,
		MaxBytes: 1e6,
		MaxWait:  time.Second,
	})
	ctx, cancel := context.WithCancel(context.Background())

	q.readers[subject] = reader
	q.subscriptions[subject] = cancel
	q.wg.Add(1)
	go func() {
		defer q.wg.Done()
		q.consume(ctx, reader, handler)
	}()
	return nil
}

func (q *KafkaQueue) consume(ctx context.Context, reader *kafka.Reader, handler MessageHandler) {
	for {
		msg, err := reader.FetchMessage(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			logging.Warn("Kafka fetch failed", "topic", reader.Config().Topic, "error", err)
			continue
		}

		if !q.deliver(ctx, msg, handler) && ctx.Err() != nil {
			return
		}

		if err := reader.CommitMessages(ctx, msg); err != nil && ctx.Err() == nil {
			logging.Warn("Kafka commit failed", "topic", msg.Topic, "offset", msg.Offset, "error", err)
		}
	}
}

// deliver runs handler up to MaxAttempts times and reports success
func (q *KafkaQueue) deliver(ctx context.Context, msg kafka.Message, handler MessageHandler) bool {
	var err error
	for attempt := 1; attempt <= q.config.MaxAttempts; attempt++ {
		if err = handler(msg.Value); err == nil {
			return true
		}
		if attempt == q.config.MaxAttempts {
			break
		}
		select {
		case <-ctx.Done():
			return false
		case <-time.After(q.config.RetryBackoff):
		}
	}
	logging.Error("Kafka handler gave up on message",
		"topic", msg.Topic, "offset", msg.Offset, "attempts", q.config.MaxAttempts, "error", err)
	return false
}

// Unsubscribe stops and closes the reader for subject
func (q *KafkaQueue) Unsubscribe(subject string) error {
	q.mu.Lock()
	cancel, exists := q.subscriptions[subject]
	if !exists {
		q.mu.Unlock()
		return fmt.Errorf("not subscribed to topic: %s", subject)
	}
	reader := q.readers[subject]
	delete(q.subscriptions, subject)
	delete(q.readers, subject)
	q.mu.Unlock()

	cancel()
	return reader.Close()
}

// Close stops all readers and flushes the writer
func (q *KafkaQueue) Close() error {
	q.mu.Lock()
	var lastErr error
	for subject, cancel := range q.subscriptions {
		cancel()
		if err := q.readers[subject].Close(); err != nil {
			lastErr = err
		}
		delete(q.subscriptions, subject)
		delete(q.readers, subject)
	}
	q.mu.Unlock()

	q.wg.Wait()
	if err := q.writer.Close(); err != nil {
		lastErr = err
	}
	return lastErr
}
