package utils

import "time"

// =============================================================================
// Service Identity
// =============================================================================

const (
	// ServiceName is reported by /health and used as the default trace service name
	ServiceName = "ml-pipeline"

	// ServiceVersion is reported by /health
	ServiceVersion = "1.0.0"
)

// =============================================================================
// Timeout Constants
// =============================================================================

const (
	// DefaultRequestTimeout bounds a single forecast or anomaly request
	DefaultRequestTimeout = 30 * time.Second

	// HealthProbeTimeout bounds each dependency probe behind /health and gRPC health
	HealthProbeTimeout = 500 * time.Millisecond

	// MetadataTimeout bounds a single metadata store read or write
	MetadataTimeout = 5 * time.Second
)

// =============================================================================
// gRPC Constants
// =============================================================================

const (
	// GRPCHealthCheckInterval is how often the gRPC health status is refreshed
	GRPCHealthCheckInterval = 10 * time.Second
)

// =============================================================================
// Training Job Constants
// =============================================================================

const (
	// MessageTypeTrainingRequested tags queue envelopes carrying a training job
	MessageTypeTrainingRequested = "training.requested"

	// JobKeyPrefix is the metadata key prefix for training jobs
	JobKeyPrefix = "jobs"

	// ModelKeyPrefix is the metadata key prefix for per-model status records
	ModelKeyPrefix = "models"

	// TrainingJobTimeout bounds a single Trainer run
	TrainingJobTimeout = 15 * time.Minute

	// StubTrainingDelay is the simulated run time of the stub trainer
	StubTrainingDelay = 2 * time.Second
)

// =============================================================================
// Queue Type Constants
// =============================================================================
// QueueType represents the type of message queue
type QueueType string

const (
	// QueueTypeNATS represents NATS JetStream queue
	QueueTypeNATS QueueType = "nats"

	// QueueTypeRedis represents Redis Streams queue
	QueueTypeRedis QueueType = "redis"

	// QueueTypeKafka represents Apache Kafka queue
	QueueTypeKafka QueueType = "kafka"

	// QueueTypeMemory represents in-memory queue (default)
	QueueTypeMemory QueueType = "memory"
)
