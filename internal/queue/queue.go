package queue

import (
	"context"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"

	"classportal/internal/logger"
)

// TypeStorageRelease asks the janitor to delete the blob behind a durable URL (Body).
const TypeStorageRelease = "storage.release"

// DefaultKey is the redis list used by the api and the worker.
const DefaultKey = "portal:jobs"

// Message represents work to be processed.
type Message struct {
	Type string
	Body []byte
}

// Queue is the abstraction over different backends.
type Queue interface {
	Publish(ctx context.Context, msg Message) error
	Consume(ctx context.Context) (<-chan Message, error)
}

// HandlerFunc processes one message.
type HandlerFunc func(ctx context.Context, msg Message) error

// Run consumes q until ctx is done, dispatching by message type.
// Unknown types are skipped and handler errors are logged, never retried.
func Run(ctx context.Context, q Queue, handlers map[string]HandlerFunc) error {
	messages, err := q.Consume(ctx)
	if err != nil {
		return err
	}
	for msg := range messages {
		h, ok := handlers[msg.Type]
		if !ok {
			logger.Warn().Str("type", msg.Type).Msg("queue: no handler")
			continue
		}
		if err := h(ctx, msg); err != nil {
			logger.Error().Err(err).Str("type", msg.Type).Str("body", string(msg.Body)).Msg("queue: handler failed")
		}
	}
	return nil
}

// InMemory is a minimal channel-backed queue for dev/testing.
type InMemory struct {
	ch chan Message
}

// NewInMemory creates a bounded in-memory queue.
func NewInMemory(size int) *InMemory {
	return &InMemory{ch: make(chan Message, size)}
}

// Publish enqueues a message.
func (q *InMemory) Publish(ctx context.Context, msg Message) error {
	select {
	case q.ch <- msg:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Consume returns a channel for workers.
func (q *InMemory) Consume(ctx context.Context) (<-chan Message, error) {
	out := make(chan Message)
	go func() {
		defer close(out)
		for {
			select {
			case msg := <-q.ch:
				select {
				case out <- msg:
				case <-ctx.Done():
					return
				}
			case <-ctx.Done():
				return
			}
		}
	}()
	return out, nil
}

// Len reports the number of queued messages.
func (q *InMemory) Len() int { return len(q.ch) }

// RedisQueue implements a simple Redis list-backed queue.
type RedisQueue struct {
	client *redis.Client
	key    string
}

// NewRedisQueue builds a queue using LPUSH/BRPOP semantics.
func NewRedisQueue(client *redis.Client, key string) *RedisQueue {
	if key == "" {
		key = DefaultKey
	}
	return &RedisQueue{client: client, key: key}
}

// Publish enqueues a message.
func (q *RedisQueue) Publish(ctx context.Context, msg Message) error {
	return q.client.LPush(ctx, q.key, serialize(msg)).Err()
}

// Consume streams messages using BRPOP.
func (q *RedisQueue) Consume(ctx context.Context) (<-chan Message, error) {
	out := make(chan Message)
	go func() {
		defer close(out)
		for {
			res, err := q.client.BRPop(ctx, 5*time.Second, q.key).Result()
			if err != nil {
				if ctx.Err() != nil {
					return
				}
				if err != redis.Nil {
					logger.Warn().Err(err).Str("key", q.key).Msg("queue: brpop failed")
					time.Sleep(time.Second)
				}
				continue
			}
			if len(res) != 2 {
				continue
			}
			select {
			case out <- deserialize(res[1]):
			case <-ctx.Done():
				return
			}
		}
	}()
	return out, nil
}

// serialize stores messages as Type|Body.
func serialize(msg Message) string {
	return msg.Type + "|" + string(msg.Body)
}

func deserialize(s string) Message {
	typ, body, ok := strings.Cut(s, "|")
	if !ok {
		return Message{Body: []byte(s)}
	}
	return Message{Type: typ, Body: []byte(body)}
}
