package services

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/aws/aws-xray-sdk-go/xray"
	"github.com/redis/go-redis/v9"
)

// EventPublisher broadcasts execution outcomes to interested listeners
// (the dashboard UI subscribes for push updates). Fire and forget.
type EventPublisher interface {
	Publish(ctx context.Context, event string, payload interface{}) error
}

// RedisService publishes events on a Redis channel
type RedisService struct {
	client  *redis.Client
	channel string
}

func NewRedisService(host string, port int, channel string) *RedisService {
	client := redis.NewClient(&redis.Options{
		Addr: fmt.Sprintf("%s:%d", host, port),
	})
	return &RedisService{client: client, channel: channel}
}

// eventEnvelope is the wire format on the events channel
type eventEnvelope struct {
	Event     string      `json:"event"`
	Data      interface{} `json:"data"`
	Timestamp time.Time   `json:"timestamp"`
}

// Publish broadcasts an event on the configured channel
func (r *RedisService) Publish(ctx context.Context, event string, payload interface{}) error {
	var err error
	xray.Capture(ctx, "Redis.Publish", func(ctx1 context.Context) error {
		jsonData, marshalErr := json.Marshal(eventEnvelope{
			Event:     event,
			Data:      payload,
			Timestamp: time.Now().UTC(),
		})
		if marshalErr != nil {
			err = marshalErr
			return marshalErr
		}
		err = r.client.Publish(ctx, r.channel, string(jsonData)).Err()

		if seg := xray.GetSegment(ctx1); seg != nil {
			seg.AddMetadata("redis.channel", r.channel)
			seg.AddMetadata("redis.event", event)
			seg.AddMetadata("redis.operation", "PUBLISH")
		}

		return err
	})
	return err
}

// Ping checks Redis connection
func (r *RedisService) Ping(ctx context.Context) error {
	var err error
	xray.Capture(ctx, "Redis.Ping", func(ctx1 context.Context) error {
		err = r.client.Ping(ctx).Err()

		if seg := xray.GetSegment(ctx1); seg != nil {
			seg.AddMetadata("redis.operation", "PING")
		}

		return err
	})
	return err
}
