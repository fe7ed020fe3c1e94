package artifact

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/spherical/doc-converter/internal/config"
	"github.com/spherical/doc-converter/internal/observability"
)

// Event types.
const (
	EventRegistered = "registered"
	EventEvicted    = "evicted"
)

// Eviction reasons.
const (
	ReasonSweep  = "sweep"
	ReasonLookup = "lookup"
	ReasonManual = "manual"
)

// Event describes one artifact lifecycle change. Handle is a short
// fingerprint, never the full download handle.
type Event struct {
	Type   string    `json:"type"`
	Handle string    `json:"handle"`
	Reason string    `json:"reason,omitempty"`
	Active int       `json:"active"`
	At     time.Time `json:"at"`
}

// Observer receives lifecycle events. Notify is called outside the store lock.
type Observer interface {
	Notify(Event)
}

// ObserverFunc adapts a function to Observer.
type ObserverFunc func(Event)

func (f ObserverFunc) Notify(ev Event) { f(ev) }

// MetricsObserver keeps artifact gauges and counters current.
type MetricsObserver struct {
	metrics observability.ArtifactMetrics
}

func NewMetricsObserver(m observability.ArtifactMetrics) *MetricsObserver {
	return &MetricsObserver{metrics: m}
}

func (o *MetricsObserver) Notify(ev Event) {
	switch ev.Type {
	case EventRegistered:
		o.metrics.IncArtifactsRegistered()
	case EventEvicted:
		o.metrics.IncArtifactsEvicted(ev.Reason)
	}
	o.metrics.SetArtifactsActive(ev.Active)
}

// RedisPublisher publishes lifecycle events as JSON on a Redis channel.
type RedisPublisher struct {
	client  *redis.Client
	channel string
	timeout time.Duration
	logger  *observability.Logger
}

// NewRedisPublisher connects to Redis and verifies the connection.
func NewRedisPublisher(cfg config.RedisConfig, channel string, logger *observability.Logger) (*RedisPublisher, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
		PoolSize: cfg.PoolSize,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("redis ping failed: %w", err)
	}

	if logger == nil {
		logger = observability.NopLogger()
	}
	return &RedisPublisher{
		client:  client,
		channel: channel,
		timeout: 2 * time.Second,
		logger:  logger.WithOperation("artifact-events"),
	}, nil
}

// Notify publishes ev. Failures are logged and never reach the store.
func (p *RedisPublisher) Notify(ev Event) {
	if err := p.Publish(context.Background(), ev); err != nil {
		p.logger.Warn().Err(err).Str("type", ev.Type).Msg("Failed to publish artifact event")
	}
}

// Publish sends one event with a bounded timeout.
func (p *RedisPublisher) Publish(ctx context.Context, ev Event) error {
	data, err := json.Marshal(ev)
	if err != nil {
		return fmt.Errorf("marshal event: %w", err)
	}

	ctx, cancel := context.WithTimeout(ctx, p.timeout)
	defer cancel()

	if err := p.client.Publish(ctx, p.channel, data).Err(); err != nil {
		return fmt.Errorf("redis publish: %w", err)
	}
	return nil
}

// Close closes the Redis connection.
func (p *RedisPublisher) Close() error {
	return p.client.Close()
}
