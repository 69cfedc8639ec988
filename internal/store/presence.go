package store

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/Tyrowin/gochat/internal/gateway"
)

const (
	presenceKeyPrefix = "presence:"
	presenceQueueSize = 1024
)

// PresenceRecorder mirrors online state and last-seen times into Redis so
// other services can read them. It is registered as a presence observer.
// Writes happen on a background goroutine in the order changes arrive, so a
// slow Redis never holds up the registry.
type PresenceRecorder struct {
	client  *redis.Client
	timeout time.Duration
	logger  *slog.Logger
	record  func(ctx context.Context, change gateway.PresenceChange) error

	mu     sync.Mutex
	closed bool
	queue  chan gateway.PresenceChange
	done   chan struct{}
}

// NewPresenceRecorder creates a recorder on top of an existing client and
// starts its writer.
func NewPresenceRecorder(client *redis.Client, logger *slog.Logger) *PresenceRecorder {
	if logger == nil {
		logger = slog.Default()
	}
	p := &PresenceRecorder{
		client:  client,
		timeout: time.Second,
		logger:  logger,
		queue:   make(chan gateway.PresenceChange, presenceQueueSize),
		done:    make(chan struct{}),
	}
	p.record = p.Record
	go p.run()
	return p
}

// DialPresenceRecorder connects to Redis at addr and pings it.
func DialPresenceRecorder(ctx context.Context, addr string, logger *slog.Logger) (*PresenceRecorder, error) {
	client := redis.NewClient(&redis.Options{Addr: addr})
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("failed to ping redis: %w", err)
	}
	return NewPresenceRecorder(client, logger), nil
}

// OnPresenceChange queues the flip for the writer and returns immediately.
// Changes are dropped with a warning when the queue is full or the recorder
// has been closed.
func (p *PresenceRecorder) OnPresenceChange(change gateway.PresenceChange) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.closed {
		p.logger.Warn("presence recorder closed, dropping change", "userId", change.Identity.UserID)
		return
	}
	select {
	case p.queue <- change:
	default:
		p.logger.Warn("presence queue full, dropping change",
			"userId", change.Identity.UserID,
			"online", change.Online)
	}
}

func (p *PresenceRecorder) run() {
	defer close(p.done)
	for change := range p.queue {
		p.write(change)
	}
}

func (p *PresenceRecorder) write(change gateway.PresenceChange) {
	ctx, cancel := context.WithTimeout(context.Background(), p.timeout)
	defer cancel()

	if err := p.record(ctx, change); err != nil {
		p.logger.Warn("failed to record presence",
			"userId", change.Identity.UserID,
			"online", change.Online,
			"error", err)
	}
}

// Record stores change under presence:<userId>.
func (p *PresenceRecorder) Record(ctx context.Context, change gateway.PresenceChange) error {
	key := presenceKeyPrefix + change.Identity.UserID
	fields := map[string]any{
		"username": change.Identity.Username,
		"online":   strconv.FormatBool(change.Online),
	}
	if !change.Online {
		fields["lastSeen"] = change.At.UTC().Format(time.RFC3339Nano)
	}
	return p.client.HSet(ctx, key, fields).Err()
}

// Online reports the recorded online flag for userID.
func (p *PresenceRecorder) Online(ctx context.Context, userID string) (bool, error) {
	v, err := p.client.HGet(ctx, presenceKeyPrefix+userID, "online").Result()
	if errors.Is(err, redis.Nil) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return strconv.ParseBool(v)
}

// LastSeen returns the recorded last-seen time for userID. The boolean is
// false when the user has never gone offline.
func (p *PresenceRecorder) LastSeen(ctx context.Context, userID string) (time.Time, bool, error) {
	v, err := p.client.HGet(ctx, presenceKeyPrefix+userID, "lastSeen").Result()
	if errors.Is(err, redis.Nil) {
		return time.Time{}, false, nil
	}
	if err != nil {
		return time.Time{}, false, err
	}
	at, err := time.Parse(time.RFC3339Nano, v)
	if err != nil {
		return time.Time{}, false, fmt.Errorf("invalid lastSeen for %s: %w", userID, err)
	}
	return at, true, nil
}

// Close stops accepting changes, waits for queued ones to be written and
// closes the Redis client.
func (p *PresenceRecorder) Close() error {
	p.mu.Lock()
	if !p.closed {
		p.closed = true
		close(p.queue)
	}
	p.mu.Unlock()

	<-p.done
	return p.client.Close()
}
