package queue

import (
	"fmt"
	"strings"

	"github.com/nats-io/nats.go"
	"github.com/pifses/mlpipeline/internal/config"
	"github.com/pifses/mlpipeline/internal/utils"
)

// NewQueue creates a Queue for cfg.Type. An empty type selects the
// in-process queue.
func NewQueue(cfg config.QueueConfig) (Queue, error) {
	queueType := utils.QueueType(strings.ToLower(cfg.Type))

	switch queueType {
	case utils.QueueTypeMemory, "":
		return newMemoryQueue(), nil

	case utils.QueueTypeNATS:
		var opts []nats.Option
		if cfg.Username != "" {
			opts = append(opts, nats.UserInfo(cfg.Username, cfg.Password))
		}
		return newNATSQueue(cfg.URL, opts...)

	case utils.QueueTypeRedis:
		return newRedisQueue(RedisConfig{
			URL:      cfg.URL,
			Password: cfg.Password,
			DB:       cfg.RedisDB,
			Group:    cfg.RedisGroup,
			Consumer: cfg.RedisConsumer,
		})

	case utils.QueueTypeKafka:
		return newKafkaQueue(KafkaConfig{
			Brokers: cfg.KafkaBrokers,
			GroupID: cfg.KafkaGroupID,
		})

	default:
		return nil, fmt.Errorf("unsupported queue type: %s (supported: memory, nats, redis, kafka)", queueType)
	}
}
