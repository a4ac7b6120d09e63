// Package queue is the Redis-backed handoff between the webhook intake and
// the processing workers. The intake enqueues and answers immediately; the
// workers pop with at-least-once delivery and dedupe on the alert resource
// id, so redelivered or duplicate notifications are processed once.
package queue

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	redis "github.com/redis/go-redis/v9"

	"idpmon/pkg/models"
)

const processedKeyPrefix = "idpmon:processed:"

// Config configures the queue.
type Config struct {
	Addr         string
	Password     string
	DB           int
	Key          string
	BlockTimeout time.Duration
	ProcessedTTL time.Duration
}

// Queue wraps a Redis list plus a processed-id marker set.
type Queue struct {
	client       *redis.Client
	key          string
	blockTimeout time.Duration
	processedTTL time.Duration
}

// New creates a queue and verifies Redis connectivity.
func New(cfg Config) (*Queue, error) {
	if strings.TrimSpace(cfg.Addr) == "" {
		cfg.Addr = "127.0.0.1:6379"
	}
	if cfg.Key == "" {
		cfg.Key = "idpmon:notifications"
	}
	if cfg.BlockTimeout <= 0 {
		cfg.BlockTimeout = 5 * time.Second
	}
	if cfg.ProcessedTTL <= 0 {
		cfg.ProcessedTTL = 24 * time.Hour
	}

	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("ping redis queue: %w", err)
	}

	return &Queue{
		client:       client,
		key:          cfg.Key,
		blockTimeout: cfg.BlockTimeout,
		processedTTL: cfg.ProcessedTTL,
	}, nil
}

// Enqueue pushes one notification onto the queue.
func (q *Queue) Enqueue(ctx context.Context, notification models.ChangeNotification) error {
	payload, err := json.Marshal(notification)
	if err != nil {
		return fmt.Errorf("failed to marshal notification: %w", err)
	}
	if err := q.client.LPush(ctx, q.key, payload).Err(); err != nil {
		return fmt.Errorf("failed to enqueue notification: %w", err)
	}
	return nil
}

// Dequeue pops one notification, blocking up to the configured timeout.
// Returns nil without error when the queue is empty.
func (q *Queue) Dequeue(ctx context.Context) (*models.ChangeNotification, error) {
	res, err := q.client.BRPop(ctx, q.blockTimeout, q.key).Result()
	if err == redis.Nil {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	if len(res) < 2 {
		return nil, nil
	}

	var notification models.ChangeNotification
	if err := json.Unmarshal([]byte(res[1]), &notification); err != nil {
		return nil, fmt.Errorf("failed to decode notification: %w", err)
	}
	return &notification, nil
}

// MarkProcessed records the resource id and reports whether this was its
// first processing. The marker expires after the configured TTL.
func (q *Queue) MarkProcessed(ctx context.Context, resourceID string) (bool, error) {
	first, err := q.client.SetNX(ctx, processedKeyPrefix+resourceID, time.Now().Unix(), q.processedTTL).Result()
	if err != nil {
		return false, fmt.Errorf("failed to mark notification processed: %w", err)
	}
	return first, nil
}

// Close closes the Redis connection.
func (q *Queue) Close() error {
	return q.client.Close()
}
