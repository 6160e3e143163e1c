package events

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/edgecomet/telemetry/internal/common/configtypes"
	"github.com/edgecomet/telemetry/internal/common/redis"
	"github.com/edgecomet/telemetry/pkg/types"
)

const (
	BackendRedis = "redis"

	defaultRedisBufferSize   = 1024
	defaultRedisPushTimeout  = 2 * time.Second
	defaultRedisDrainTimeout = 5 * time.Second
)

// PingResolver returns the pings an event id is sent in
type PingResolver func(id types.EventID) []string

// EventPusher is the part of the Redis client the emitter needs
type EventPusher interface {
	PushEvent(ctx context.Context, key string, payload []byte, maxLen int64, ttl time.Duration) error
}

// RedisEmitter appends events as JSON to one Redis list per ping.
// Emit only enqueues; a background goroutine performs the pushes.
// Events are dropped when the queue is full.
type RedisEmitter struct {
	client     EventPusher
	keys       *redis.KeyGenerator
	recorderID string
	sessionID  string
	maxLen     int64
	ttl        time.Duration
	pings      PingResolver
	onFailure  FailureFunc
	logger     *zap.Logger

	mu     sync.RWMutex
	closed bool
	queue  chan types.RecordedEvent
	done   chan struct{}
}

// NewRedisEmitter starts the push goroutine. A nil resolver sends everything to the default ping.
func NewRedisEmitter(client EventPusher, config configtypes.EventRedisConfig, recorderID, sessionID string,
	pings PingResolver, logger *zap.Logger) *RedisEmitter {
	r := &RedisEmitter{
		client:     client,
		keys:       redis.NewKeyGenerator(config.KeyPrefix),
		recorderID: recorderID,
		sessionID:  sessionID,
		maxLen:     config.MaxLen,
		ttl:        config.TTL.ToDuration(),
		pings:      pings,
		logger:     logger,
		queue:      make(chan types.RecordedEvent, defaultRedisBufferSize),
		done:       make(chan struct{}),
	}
	go r.drain()
	return r
}

// OnFailure registers fn to be called for every dropped or failed push.
// Must be called before the first Emit.
func (r *RedisEmitter) OnFailure(fn FailureFunc) {
	r.onFailure = fn
}

// Emit enqueues a copy of the event
func (r *RedisEmitter) Emit(event *types.RecordedEvent) {
	ev := *event
	ev.Extra = event.Extra.Clone()
	ev.SessionID = r.sessionID

	r.mu.RLock()
	defer r.mu.RUnlock()
	if r.closed {
		return
	}

	select {
	case r.queue <- ev:
	default:
		r.logger.Warn("Redis event queue full, dropping event",
			zap.String("metric", ev.FullName()))
		r.failed()
	}
}

// Close stops accepting events and waits for queued pushes to finish
func (r *RedisEmitter) Close() error {
	r.mu.Lock()
	if r.closed {
		r.mu.Unlock()
		return nil
	}
	r.closed = true
	close(r.queue)
	r.mu.Unlock()

	select {
	case <-r.done:
	case <-time.After(defaultRedisDrainTimeout):
		r.logger.Warn("Redis event queue drain timed out")
	}
	return nil
}

func (r *RedisEmitter) drain() {
	defer close(r.done)
	for ev := range r.queue {
		r.push(ev)
	}
}

func (r *RedisEmitter) push(ev types.RecordedEvent) {
	payload, err := json.Marshal(ev)
	if err != nil {
		r.logger.Warn("Failed to encode event", zap.Error(err), zap.String("metric", ev.FullName()))
		r.failed()
		return
	}

	for _, ping := range r.resolvePings(ev.ID) {
		ctx, cancel := context.WithTimeout(context.Background(), defaultRedisPushTimeout)
		err := r.client.PushEvent(ctx, r.keys.EventListKey(r.recorderID, ping), payload, r.maxLen, r.ttl)
		cancel()
		if err != nil {
			r.logger.Warn("Failed to push event to Redis",
				zap.Error(err),
				zap.String("metric", ev.FullName()),
				zap.String("ping", ping))
			r.failed()
		}
	}
}

func (r *RedisEmitter) resolvePings(id types.EventID) []string {
	if r.pings != nil {
		if pings := r.pings(id); len(pings) > 0 {
			return pings
		}
	}
	return []string{types.DefaultPing}
}

func (r *RedisEmitter) failed() {
	if r.onFailure != nil {
		r.onFailure(BackendRedis)
	}
}
