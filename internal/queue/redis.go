package queue

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/pifses/mlpipeline/internal/logging"
	"github.com/redis/go-redis/v9"
)

const (
	redisStreamPrefix = "mlpipeline"
	redisReadBlock    = 2 * time.Second
	redisReadCount    = 10
	redisErrorBackoff = time.Second
)

// RedisConfig configures the Redis Streams queue
type RedisConfig struct {
	URL      string // redis://host:port or bare host:port
	Password string
	DB       int
	Group    string // consumer group, shared by all workers
	Consumer string // defaults to the hostname
}

// RedisQueue implements Queue on Redis Streams with one consumer group
// per stream. Unacked entries stay in the group's pending list and are
// replayed when the same consumer subscribes again.
type RedisQueue struct {
	client        *redis.Client
	config        RedisConfig
	subscriptions map[string]context.CancelFunc
	wg            sync.WaitGroup
	mu            sync.Mutex
}

func newRedisQueue(cfg RedisConfig) (*RedisQueue, error) {
	opts, err := redis.ParseURL(cfg.URL)
	if err != nil {
		opts = &redis.Options{
			Addr:     cfg.URL,
			Password: cfg.Password,
			DB:       cfg.DB,
		}
	}
	client := redis.NewClient(opts)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}

	return newRedisQueueWithClient(client, cfg), nil
}

func newRedisQueueWithClient(client *redis.Client, cfg RedisConfig) *RedisQueue {
	if cfg.Group == "" {
		cfg.Group = "mlpipeline-trainers"
	}
	if cfg.Consumer == "" {
		hostname, _ := os.Hostname()
		if hostname == "" {
			hostname = "worker-1"
		}
		cfg.Consumer = hostname
	}

	return &RedisQueue{
		client:        client,
		config:        cfg,
		subscriptions: make(map[string]context.CancelFunc),
	}
}

func streamKey(subject string) string {
	return redisStreamPrefix + ":" + subject
}

// Publish appends data to the subject's stream
func (q *RedisQueue) Publish(ctx context.Context, subject string, data []byte) error {
	stream := streamKey(subject)
	err := q.client.XAdd(ctx, &redis.XAddArgs{
		Stream: stream,
		ID:     "*",
		Values: map[string]interface{}{"data": data},
	}).Err()
	if err != nil {
		return fmt.Errorf("failed to publish to Redis stream %s: %w", stream, err)
	}
	return nil
}

// Subscribe joins the consumer group, creating the stream if needed
func (q *RedisQueue) Subscribe(subject string, handler MessageHandler) error {
	q.mu.Lock()
	defer q.mu.Unlock()

	if _, exists := q.subscriptions[subject]; exists {
		return fmt.Errorf("already subscribed to subject: %s", subject)
	}

	stream := streamKey(subject)
	ctx, cancel := context.WithCancel(context.Background())

	err := q.client.XGroupCreateMkStream(ctx, stream, q.config.Group, "0").Err()
	if err != nil && !strings.HasPrefix(err.Error(), "BUSYGROUP") {
		cancel()
		return fmt.Errorf("failed to create consumer group: %w", err)
	}

	q.subscriptions[subject] = cancel
	q.wg.Add(1)
	go func() {
		defer q.wg.Done()
		q.consume(ctx, stream, handler)
	}()
	return nil
}

// consume walks this consumer's pending entries once, then reads new ones
func (q *RedisQueue) consume(ctx context.Context, stream string, handler MessageHandler) {
	cursor := "0"
	for ctx.Err() == nil {
		streams, err := q.client.XReadGroup(ctx, &redis.XReadGroupArgs{
			Group:    q.config.Group,
			Consumer: q.config.Consumer,
			Streams:  []string{stream, cursor},
			Count:    redisReadCount,
			Block:    redisReadBlock,
		}).Result()
		if err != nil {
			if errors.Is(err, redis.Nil) {
				cursor = ">"
				continue
			}
			if ctx.Err() != nil {
				continue
			}
			logging.Warn("Redis stream read failed", "stream", stream, "error", err)
			select {
			case <-ctx.Done():
			case <-time.After(redisErrorBackoff):
			}
			continue
		}

		delivered := 0
		for _, s := range streams {
			for _, msg := range s.Messages {
				delivered++
				q.handle(ctx, stream, msg, handler)
				if cursor != ">" {
					cursor = msg.ID
				}
			}
		}
		if cursor != ">" && delivered == 0 {
			cursor = ">"
		}
	}
}

func (q *RedisQueue) handle(ctx context.Context, stream string, msg redis.XMessage, handler MessageHandler) {
	data, ok := msg.Values["data"].(string)
	if !ok {
		logging.Warn("Dropping malformed stream entry", "stream", stream, "id", msg.ID)
		q.client.XAck(ctx, stream, q.config.Group, msg.ID)
		return
	}

	if err := handler([]byte(data)); err != nil {
		logging.Warn("Redis handler failed, entry left pending",
			"stream", stream, "id", msg.ID, "error", err)
		return
	}
	q.client.XAck(ctx, stream, q.config.Group, msg.ID)
}

// Unsubscribe stops the reader for subject
func (q *RedisQueue) Unsubscribe(subject string) error {
	q.mu.Lock()
	cancel, exists := q.subscriptions[subject]
	if !exists {
		q.mu.Unlock()
		return fmt.Errorf("not subscribed to subject: %s", subject)
	}
	delete(q.subscriptions, subject)
	q.mu.Unlock()

	cancel()
	return nil
}

// Close stops all readers and closes the client
func (q *RedisQueue) Close() error {
	q.mu.Lock()
	for subject, cancel := range q.subscriptions {
		cancel()
		delete(q.subscriptions, subject)
	}
	q.mu.Unlock()

	q.wg.Wait()
	return q.client.Close()
}
