package events

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/sirupsen/logrus"

	"building-access-service/internal/types"
)

// RedisConfig holds Redis bus connection settings
type RedisConfig struct {
	Addr       string
	Password   string
	Database   int
	PoolSize   int
	QueueName  string
	MaxRetries int
}

// DefaultRedisConfig returns default bus settings
func DefaultRedisConfig() RedisConfig {
	return RedisConfig{
		Addr:       "localhost:6379",
		PoolSize:   10,
		QueueName:  "access-events",
		MaxRetries: 3,
	}
}

// RedisPublisher publishes messages onto a Redis list queue. Failed
// publishes land in a bounded retry buffer flushed by a background loop;
// messages that exhaust their retries move to the dead letter queue.
type RedisPublisher struct {
	client *redis.Client
	cfg    RedisConfig
	logger *logrus.Logger

	mu      sync.Mutex
	pending []*Message

	stop chan struct{}
	done chan struct{}
}

const maxPendingBuffer = 1000

// NewRedisPublisher connects to Redis and starts the retry loop
func NewRedisPublisher(cfg RedisConfig, logger *logrus.Logger) (*RedisPublisher, error) {
	if cfg.MaxRetries <= 0 {
		cfg.MaxRetries = DefaultRedisConfig().MaxRetries
	}

	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.Database,
		PoolSize: cfg.PoolSize,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}

	p := &RedisPublisher{
		client: client,
		cfg:    cfg,
		logger: logger,
		stop:   make(chan struct{}),
		done:   make(chan struct{}),
	}
	go p.retryLoop()

	return p, nil
}

// Publish pushes a message onto the events queue. On failure the message is
// buffered for retry and the error is returned for logging only; callers
// must not fail their own operation because of it.
func (p *RedisPublisher) Publish(ctx context.Context, eventType types.EventType, payload interface{}) error {
	msg, err := NewMessage(eventType, payload)
	if err != nil {
		return err
	}

	if err := p.push(ctx, p.cfg.QueueName, msg); err != nil {
		p.buffer(msg)
		return fmt.Errorf("failed to publish %s event, buffered for retry: %w", eventType, err)
	}
	return nil
}

// Close stops the retry loop and closes the connection
func (p *RedisPublisher) Close() error {
	close(p.stop)
	<-p.done
	return p.client.Close()
}

// Health checks the Redis connection
func (p *RedisPublisher) Health(ctx context.Context) error {
	return p.client.Ping(ctx).Err()
}

// QueueLength returns the current depth of the events queue
func (p *RedisPublisher) QueueLength(ctx context.Context) (int64, error) {
	return p.client.LLen(ctx, p.cfg.QueueName).Result()
}

func (p *RedisPublisher) push(ctx context.Context, queue string, msg *Message) error {
	data, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("failed to marshal message: %w", err)
	}
	return p.client.LPush(ctx, queue, data).Err()
}

func (p *RedisPublisher) buffer(msg *Message) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if len(p.pending) >= maxPendingBuffer {
		// Drop the oldest buffered message to bound memory
		dropped := p.pending[0]
		p.pending = p.pending[1:]
		p.logger.WithFields(logrus.Fields{
			"message_id": dropped.ID,
			"type":       dropped.Type,
		}).Warn("Retry buffer full, dropping oldest event")
	}
	p.pending = append(p.pending, msg)
}

// retryLoop periodically re-attempts buffered messages
func (p *RedisPublisher) retryLoop() {
	defer close(p.done)

	ticker := time.NewTicker(5 * time.Second)
	defer ticker.Stop()

	for {
		select {
		case <-p.stop:
			p.flush()
			return
		case <-ticker.C:
			p.flush()
		}
	}
}

func (p *RedisPublisher) flush() {
	p.mu.Lock()
	pending := p.pending
	p.pending = nil
	p.mu.Unlock()

	if len(pending) == 0 {
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	for _, msg := range pending {
		if err := p.push(ctx, p.cfg.QueueName, msg); err == nil {
			continue
		}

		msg.Retries++
		if msg.Retries >= p.cfg.MaxRetries {
			if dlqErr := p.push(ctx, p.cfg.QueueName+":dlq", msg); dlqErr != nil {
				p.logger.WithError(dlqErr).WithField("message_id", msg.ID).
					Error("Failed to move event to dead letter queue")
				p.buffer(msg)
			} else {
				p.logger.WithFields(logrus.Fields{
					"message_id": msg.ID,
					"type":       msg.Type,
					"retries":    msg.Retries,
				}).Warn("Event moved to dead letter queue")
			}
			continue
		}
		p.buffer(msg)
	}
}

// Subscribe consumes messages from a queue, invoking handler per message.
// Handler failures re-queue the message up to MaxRetries, then move it to
// the dead letter queue. Intended for downstream services embedding this
// package; the access service itself only publishes.
func (p *RedisPublisher) Subscribe(ctx context.Context, queue string, handler func(*Message) error) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		result, err := p.client.BRPop(ctx, 5*time.Second, queue).Result()
		if err == redis.Nil {
			continue
		}
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			return fmt.Errorf("failed to receive message: %w", err)
		}
		if len(result) < 2 {
			continue
		}

		var msg Message
		if err := json.Unmarshal([]byte(result[1]), &msg); err != nil {
			p.logger.WithError(err).Warn("Failed to unmarshal bus message, skipping")
			continue
		}

		if err := handler(&msg); err != nil {
			msg.Retries++
			target := queue
			if msg.Retries >= p.cfg.MaxRetries {
				target = queue + ":dlq"
			}
			if pushErr := p.push(ctx, target, &msg); pushErr != nil {
				p.logger.WithError(pushErr).WithField("message_id", msg.ID).
					Error("Failed to re-queue message")
			}
		}
	}
}
