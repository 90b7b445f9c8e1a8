// Package notify fans alerts out to external subscribers.
package notify

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"fraudwatch/core"
	"fraudwatch/metrics"
	"fraudwatch/util/goroutine"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

const (
	// DefaultQueueSize is the number of alerts buffered before publishing drops
	DefaultQueueSize = 1024

	publishTimeout = 2 * time.Second
)

// RedisOptions configures a RedisPublisher
type RedisOptions struct {
	Addr      string
	Password  string
	DB        int
	Channel   string
	QueueSize int
	// BreakerFailures consecutive publish failures pause delivery for
	// BreakerCooldown; queued alerts are dropped while paused
	BreakerFailures int
	BreakerCooldown time.Duration
}

// RedisPublisher publishes alerts as JSON on a Redis pub/sub channel.
// Publish never blocks: alerts are queued and drained by one goroutine,
// and a full queue drops the alert.
type RedisPublisher struct {
	client  *redis.Client
	channel string
	queue   chan core.Alert
	breaker *Breaker
	logger  *zap.SugaredLogger

	mu      sync.RWMutex
	closed  bool
	started bool
	wg      sync.WaitGroup
}

// NewRedisPublisher creates a publisher. Call Start to begin delivery.
func NewRedisPublisher(opts RedisOptions, logger *zap.SugaredLogger) *RedisPublisher {
	if logger == nil {
		logger = zap.NewNop().Sugar()
	}
	if opts.QueueSize <= 0 {
		opts.QueueSize = DefaultQueueSize
	}

	client := redis.NewClient(&redis.Options{
		Addr:     opts.Addr,
		Password: opts.Password,
		DB:       opts.DB,
	})

	return &RedisPublisher{
		client:  client,
		channel: opts.Channel,
		queue:   make(chan core.Alert, opts.QueueSize),
		breaker: NewBreaker(opts.BreakerFailures, opts.BreakerCooldown),
		logger:  logger,
	}
}

// Ping tests the Redis connection
func (p *RedisPublisher) Ping(ctx context.Context) error {
	if err := p.client.Ping(ctx).Err(); err != nil {
		return fmt.Errorf("redis ping failed: %w", err)
	}
	return nil
}

// Start launches the delivery goroutine. Calling it twice has no effect.
func (p *RedisPublisher) Start() {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.started || p.closed {
		return
	}
	p.started = true
	goroutine.Go(&p.wg, "redis-publisher", p.logger, p.run)
}

// Publish queues an alert for delivery. It returns false when the alert was
// dropped because the queue is full or the publisher is closed.
func (p *RedisPublisher) Publish(alert core.Alert) bool {
	p.mu.RLock()
	defer p.mu.RUnlock()

	if p.closed {
		metrics.NotifierDropped.WithLabelValues("closed").Inc()
		return false
	}

	select {
	case p.queue <- alert:
		return true
	default:
		metrics.NotifierDropped.WithLabelValues("queue_full").Inc()
		p.logger.Debugw("Alert dropped, publish queue full", "id", alert.ID)
		return false
	}
}

// BreakerState returns the delivery circuit breaker state
func (p *RedisPublisher) BreakerState() BreakerState {
	return p.breaker.State()
}

// Pending returns the number of queued alerts
func (p *RedisPublisher) Pending() int {
	return len(p.queue)
}

func (p *RedisPublisher) run() {
	for alert := range p.queue {
		if err := p.breaker.Allow(); err != nil {
			metrics.NotifierDropped.WithLabelValues("circuit_open").Inc()
			continue
		}
		if err := p.send(alert); err != nil {
			metrics.NotifierDropped.WithLabelValues("error").Inc()
			from, to := p.breaker.RecordFailure()
			p.logger.Warnw("Failed to publish alert", "id", alert.ID, "channel", p.channel, "error", err)
			if from != BreakerOpen && to == BreakerOpen {
				p.logger.Errorw("Redis publishing paused after repeated failures", "channel", p.channel)
			}
			continue
		}
		if from := p.breaker.RecordSuccess(); from != BreakerClosed {
			p.logger.Infow("Redis publishing resumed", "channel", p.channel)
		}
		metrics.NotifierPublished.Inc()
	}
}

func (p *RedisPublisher) send(alert core.Alert) error {
	data, err := json.Marshal(alert)
	if err != nil {
		return fmt.Errorf("failed to marshal alert: %w", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), publishTimeout)
	defer cancel()
	return p.client.Publish(ctx, p.channel, data).Err()
}

// Close stops accepting alerts, delivers what is already queued and closes
// the Redis connection
func (p *RedisPublisher) Close() error {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return nil
	}
	p.closed = true
	close(p.queue)
	p.mu.Unlock()

	p.wg.Wait()
	return p.client.Close()
}
