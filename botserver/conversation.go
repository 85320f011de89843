package botserver

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/go-redis/redis/v8"
)

const DefaultConversationWindow = 30 * time.Minute

// ConversationTracker decides which conversation a new message belongs to. A
// conversation stays open while it keeps seeing messages within the window.
type ConversationTracker interface {
	Resolve(ctx context.Context, clientID int64) (*Conversation, error)
	// Touch marks conv as active now.
	Touch(ctx context.Context, conv *Conversation) error
}

// StoreTracker derives activity from stored message timestamps.
type StoreTracker struct {
	store  Store
	window time.Duration
	now    func() time.Time
}

func NewStoreTracker(store Store, window time.Duration) *StoreTracker {
	if window <= 0 {
		window = DefaultConversationWindow
	}
	return &StoreTracker{store: store, window: window, now: time.Now}
}

func (t *StoreTracker) Resolve(ctx context.Context, clientID int64) (*Conversation, error) {
	conv, err := t.store.LatestConversation(ctx, clientID)
	switch {
	case errors.Is(err, ErrNotFound):
	case err != nil:
		return nil, err
	default:
		active, err := t.store.HasMessageSince(ctx, conv.ID, t.now().Add(-t.window))
		if err != nil {
			return nil, err
		}
		if active {
			return conv, nil
		}
	}
	return t.store.CreateConversation(ctx, clientID)
}

func (t *StoreTracker) Touch(ctx context.Context, conv *Conversation) error {
	return nil
}

// RedisTracker keeps the open conversation id of each client under a key
// whose TTL is the window, refreshed on every message.
type RedisTracker struct {
	client *redis.Client
	store  Store
	window time.Duration
}

func NewRedisTracker(ctx context.Context, client *redis.Client, store Store, window time.Duration) (*RedisTracker, error) {
	if window <= 0 {
		window = DefaultConversationWindow
	}
	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}
	return &RedisTracker{client: client, store: store, window: window}, nil
}

func conversationKey(clientID int64) string {
	return fmt.Sprintf("chat:conversation:%d", clientID)
}

func (t *RedisTracker) Resolve(ctx context.Context, clientID int64) (*Conversation, error) {
	val, err := t.client.Get(ctx, conversationKey(clientID)).Result()
	switch {
	case errors.Is(err, redis.Nil):
	case err != nil:
		return nil, fmt.Errorf("failed to read conversation from Redis: %w", err)
	default:
		if id, perr := strconv.ParseInt(val, 10, 64); perr == nil {
			return &Conversation{ID: id, ClientID: clientID}, nil
		}
	}

	conv, err := t.store.CreateConversation(ctx, clientID)
	if err != nil {
		return nil, err
	}
	if err := t.Touch(ctx, conv); err != nil {
		return nil, err
	}
	return conv, nil
}

func (t *RedisTracker) Touch(ctx context.Context, conv *Conversation) error {
	return t.client.Set(ctx, conversationKey(conv.ClientID), strconv.FormatInt(conv.ID, 10), t.window).Err()
}

func (t *RedisTracker) Close() error {
	return t.client.Close()
}
