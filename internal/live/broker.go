// Package live pushes re-rendered views to websocket clients whenever the
// underlying collection changes.
package live

import (
	"context"
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/redis/go-redis/v9"

	"classportal/internal/logger"
)

var subscribers = promauto.NewGauge(prometheus.GaugeOpts{
	Namespace: "classportal",
	Subsystem: "live",
	Name:      "subscribers",
	Help:      "Open live subscriptions.",
})

// Broker fans change notifications out to subscribers of a topic.
// Notifications carry no payload and coalesce: a slow subscriber sees at most one pending.
type Broker interface {
	Publish(ctx context.Context, topic string) error
	Subscribe(ctx context.Context, topic string) (<-chan struct{}, func())
}

// ChatTopic is the topic of one conversation's messages.
func ChatTopic(chatID string) string { return "chat:" + chatID }

// SubscribeAll merges the notifications of topics into one coalescing channel.
func SubscribeAll(ctx context.Context, b Broker, topics ...string) (<-chan struct{}, func()) {
	ctx, cancel := context.WithCancel(ctx)
	out := make(chan struct{}, 1)
	var wg sync.WaitGroup
	stops := make([]func(), 0, len(topics))
	for _, topic := range topics {
		ch, stop := b.Subscribe(ctx, topic)
		stops = append(stops, stop)
		wg.Add(1)
		go func() {
			defer wg.Done()
			for {
				select {
				case <-ctx.Done():
					return
				case _, ok := <-ch:
					if !ok {
						return
					}
					notify(out)
				}
			}
		}()
	}
	return out, func() {
		cancel()
		for _, stop := range stops {
			stop()
		}
		wg.Wait()
	}
}

// Memory is an in-process broker.
type Memory struct {
	mu   sync.Mutex
	subs map[string]map[chan struct{}]struct{}
}

// NewMemory returns an empty broker.
func NewMemory() *Memory {
	return &Memory{subs: make(map[string]map[chan struct{}]struct{})}
}

func (m *Memory) Publish(_ context.Context, topic string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for ch := range m.subs[topic] {
		notify(ch)
	}
	return nil
}

func (m *Memory) Subscribe(_ context.Context, topic string) (<-chan struct{}, func()) {
	ch := make(chan struct{}, 1)
	m.mu.Lock()
	if m.subs[topic] == nil {
		m.subs[topic] = make(map[chan struct{}]struct{})
	}
	m.subs[topic][ch] = struct{}{}
	m.mu.Unlock()
	subscribers.Inc()

	var once sync.Once
	return ch, func() {
		once.Do(func() {
			m.mu.Lock()
			delete(m.subs[topic], ch)
			if len(m.subs[topic]) == 0 {
				delete(m.subs, topic)
			}
			m.mu.Unlock()
			subscribers.Dec()
		})
	}
}

// Redis relays notifications through redis pub/sub so every api instance sees them.
type Redis struct {
	client *redis.Client
	prefix string
}

// NewRedis builds a broker on client.
func NewRedis(client *redis.Client) *Redis {
	return &Redis{client: client, prefix: "portal:live:"}
}

func (r *Redis) Publish(ctx context.Context, topic string) error {
	return r.client.Publish(ctx, r.prefix+topic, "changed").Err()
}

func (r *Redis) Subscribe(ctx context.Context, topic string) (<-chan struct{}, func()) {
	ch := make(chan struct{}, 1)
	ps := r.client.Subscribe(ctx, r.prefix+topic)
	subscribers.Inc()

	done := make(chan struct{})
	msgs := ps.Channel()
	go func() {
		for {
			select {
			case <-done:
				return
			case _, ok := <-msgs:
				if !ok {
					return
				}
				notify(ch)
			}
		}
	}()

	var once sync.Once
	return ch, func() {
		once.Do(func() {
			close(done)
			if err := ps.Close(); err != nil {
				logger.Debug().Err(err).Str("topic", topic).Msg("live: close pubsub")
			}
			subscribers.Dec()
		})
	}
}

func notify(ch chan struct{}) {
	select {
	case ch <- struct{}{}:
	default:
	}
}
