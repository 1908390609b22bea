package sse

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"

	redisclient "github.com/zoomi/household-auth/internal/redis"
)

const (
	HeartbeatInterval = 30 * time.Second

	EventConnected      = "connected"
	EventSessionRevoked = "session_revoked"
)

type Event struct {
	Type string          `json:"type"`
	Data json.RawMessage `json:"data"`
}

// RevokedData is the payload of a session_revoked event. An empty TokenHash
// revokes every session of the user.
type RevokedData struct {
	UserID    string `json:"userId"`
	TokenHash string `json:"tokenHash,omitempty"`
}

type Client struct {
	UserID    string
	TokenHash string
	Events    chan Event
	Done      chan struct{}
}

// userSubscription is the Redis subscription shared by one user's clients.
type userSubscription struct {
	clients map[*Client]bool
	cancel  context.CancelFunc
}

// Broker fans session events out to connected devices. Events travel through
// Redis pub/sub so every server instance sees them.
type Broker struct {
	redis  redis.UniversalClient
	users  map[string]*userSubscription
	mu     sync.RWMutex
	ctx    context.Context
	cancel context.CancelFunc
}

func NewBroker(redisClient redis.UniversalClient) *Broker {
	ctx, cancel := context.WithCancel(context.Background())
	return &Broker{
		redis:  redisClient,
		users:  make(map[string]*userSubscription),
		ctx:    ctx,
		cancel: cancel,
	}
}

func (b *Broker) Subscribe(userID, tokenHash string) *Client {
	client := &Client{
		UserID:    userID,
		TokenHash: tokenHash,
		Events:    make(chan Event, 16),
		Done:      make(chan struct{}),
	}

	b.mu.Lock()
	sub := b.users[userID]
	if sub == nil {
		ctx, cancel := context.WithCancel(b.ctx)
		sub = &userSubscription{clients: make(map[*Client]bool), cancel: cancel}
		b.users[userID] = sub
		go b.subscribeToRedis(ctx, userID)
	}
	sub.clients[client] = true
	clientCount := len(sub.clients)
	b.mu.Unlock()

	log.Info().
		Str("userId", userID).
		Int("clientCount", clientCount).
		Msg("sse client subscribed")

	return client
}

func (b *Broker) Unsubscribe(client *Client) {
	b.mu.Lock()
	defer b.mu.Unlock()

	sub, ok := b.users[client.UserID]
	if !ok || !sub.clients[client] {
		return
	}
	delete(sub.clients, client)
	close(client.Done)

	if len(sub.clients) == 0 {
		sub.cancel()
		delete(b.users, client.UserID)
	}

	log.Info().
		Str("userId", client.UserID).
		Int("clientCount", len(sub.clients)).
		Msg("sse client unsubscribed")
}

func (b *Broker) Publish(ctx context.Context, userID string, event Event) error {
	data, err := json.Marshal(event)
	if err != nil {
		return err
	}

	return b.redis.Publish(ctx, redisclient.SessionChannel(userID), data).Err()
}

// PublishSessionRevoked tells the user's devices that a session ended. An
// empty tokenHash means all of them.
func (b *Broker) PublishSessionRevoked(ctx context.Context, userID, tokenHash string) error {
	data, err := json.Marshal(RevokedData{UserID: userID, TokenHash: tokenHash})
	if err != nil {
		return err
	}
	return b.Publish(ctx, userID, Event{Type: EventSessionRevoked, Data: data})
}

func (b *Broker) subscribeToRedis(ctx context.Context, userID string) {
	channel := redisclient.SessionChannel(userID)
	pubsub := b.redis.Subscribe(ctx, channel)
	defer pubsub.Close()

	log.Debug().
		Str("userId", userID).
		Str("channel", channel).
		Msg("redis pubsub subscribed")

	ch := pubsub.Channel()

	for {
		select {
		case <-ctx.Done():
			return

		case msg, ok := <-ch:
			if !ok {
				return
			}

			var event Event
			if err := json.Unmarshal([]byte(msg.Payload), &event); err != nil {
				log.Error().Err(err).Msg("failed to unmarshal event")
				continue
			}

			b.broadcast(userID, event)
		}
	}
}

func (b *Broker) broadcast(userID string, event Event) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	sub, ok := b.users[userID]
	if !ok {
		return
	}

	for client := range sub.clients {
		if !Concerns(client, event) {
			continue
		}
		select {
		case client.Events <- event:
		default:
			log.Warn().
				Str("userId", userID).
				Msg("client event buffer full, dropping event")
		}
	}
}

// Concerns reports whether event is meant for client. Revocations of another
// session of the same user are not.
func Concerns(client *Client, event Event) bool {
	if event.Type != EventSessionRevoked {
		return true
	}
	var data RevokedData
	if err := json.Unmarshal(event.Data, &data); err != nil {
		return false
	}
	return data.TokenHash == "" || data.TokenHash == client.TokenHash
}

func (b *Broker) Close() {
	b.cancel()

	b.mu.Lock()
	defer b.mu.Unlock()

	for _, sub := range b.users {
		for client := range sub.clients {
			close(client.Done)
		}
	}
	b.users = make(map[string]*userSubscription)
}

func (b *Broker) ClientCount(userID string) int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	if sub, ok := b.users[userID]; ok {
		return len(sub.clients)
	}
	return 0
}
