// Package publish carries collector output to external subscribers. Publishes
// are fire-and-forget: a failing sink is logged and never surfaces to the
// ingestion path.
package publish

import (
	"context"
	"log/slog"
	"time"

	redis "github.com/redis/go-redis/v9"

	"github.com/crazybass81/DOT-sub003/internal/ws"
)

// Logical topics for outward publishes.
const (
	TopicUpdates = "telemetry.updates"
	TopicAlerts  = "telemetry.alerts"
)

// Publisher delivers a payload to every subscriber of a topic.
type Publisher interface {
	Publish(topic string, payload []byte)
}

// HubPublisher fans payloads out to hub subscribers (websocket and SSE).
type HubPublisher struct {
	hub *ws.Hub
}

// NewHubPublisher wraps a hub as a Publisher.
func NewHubPublisher(hub *ws.Hub) *HubPublisher {
	return &HubPublisher{hub: hub}
}

// Publish broadcasts to the hub topic.
func (p *HubPublisher) Publish(topic string, payload []byte) {
	if p == nil || p.hub == nil {
		return
	}
	p.hub.Broadcast(topic, payload)
}

// RedisPublisher ships payloads over Redis pub/sub so out-of-process
// consumers can subscribe to the same topics.
type RedisPublisher struct {
	client  *redis.Client
	logger  *slog.Logger
	prefix  string
	timeout time.Duration
}

// NewRedisPublisher connects to Redis and verifies the connection.
func NewRedisPublisher(addr, password string, db int, logger *slog.Logger) (*RedisPublisher, error) {
	opts := &redis.Options{Addr: addr, Password: password, DB: db}
	client := redis.NewClient(opts)
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, err
	}
	return &RedisPublisher{
		client:  client,
		logger:  logger,
		prefix:  "dot:telemetry:",
		timeout: 250 * time.Millisecond,
	}, nil
}

// Publish sends the payload to the prefixed Redis channel.
func (p *RedisPublisher) Publish(topic string, payload []byte) {
	if p == nil || p.client == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), p.timeout)
	defer cancel()
	if err := p.client.Publish(ctx, p.prefix+topic, payload).Err(); err != nil {
		if p.logger != nil {
			p.logger.Warn("redis publish failed", "topic", topic, "error", err)
		}
	}
}

// Close releases the Redis connection.
func (p *RedisPublisher) Close() {
	if p != nil && p.client != nil {
		_ = p.client.Close()
	}
}

// Fanout publishes to every wrapped publisher in order.
type Fanout []Publisher

// Publish delivers the payload to each sink.
func (f Fanout) Publish(topic string, payload []byte) {
	for _, p := range f {
		if p != nil {
			p.Publish(topic, payload)
		}
	}
}
