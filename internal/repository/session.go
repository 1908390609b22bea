package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/zoomi/household-auth/internal/model"
	redisclient "github.com/zoomi/household-auth/internal/redis"
)

// SessionRepository keeps sessions in Redis keyed by the token hash. The raw
// token never reaches storage.
type SessionRepository interface {
	Create(ctx context.Context, tokenHash string, record model.SessionRecord) error
	FindByTokenHash(ctx context.Context, tokenHash string) (*model.SessionRecord, error)
	Delete(ctx context.Context, tokenHash string, userID string) error
	// DeleteAllForUser removes every session of userID and returns their hashes.
	DeleteAllForUser(ctx context.Context, userID string) ([]string, error)
	// PruneStale drops hashes of sessions that expired on their own from the
	// per-user sets.
	PruneStale(ctx context.Context) (int64, error)
}

type sessionRepo struct {
	client redis.Cmdable
}

func NewSessionRepository(client redis.Cmdable) SessionRepository {
	return &sessionRepo{client: client}
}

func (r *sessionRepo) Create(ctx context.Context, tokenHash string, record model.SessionRecord) error {
	data, err := json.Marshal(record)
	if err != nil {
		return fmt.Errorf("marshal session: %w", err)
	}

	ttl := time.Until(record.ExpiresAt)
	if ttl <= 0 {
		return fmt.Errorf("session already expired")
	}

	userKey := redisclient.UserSessionsKey(record.UserID)
	_, err = r.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Set(ctx, redisclient.SessionKey(tokenHash), data, ttl)
		pipe.SAdd(ctx, userKey, tokenHash)
		pipe.Expire(ctx, userKey, ttl)
		return nil
	})
	return err
}

func (r *sessionRepo) FindByTokenHash(ctx context.Context, tokenHash string) (*model.SessionRecord, error) {
	data, err := r.client.Get(ctx, redisclient.SessionKey(tokenHash)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	var record model.SessionRecord
	if err := json.Unmarshal(data, &record); err != nil {
		return nil, fmt.Errorf("unmarshal session: %w", err)
	}
	return &record, nil
}

func (r *sessionRepo) Delete(ctx context.Context, tokenHash string, userID string) error {
	_, err := r.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Del(ctx, redisclient.SessionKey(tokenHash))
		pipe.SRem(ctx, redisclient.UserSessionsKey(userID), tokenHash)
		return nil
	})
	return err
}

func (r *sessionRepo) DeleteAllForUser(ctx context.Context, userID string) ([]string, error) {
	userKey := redisclient.UserSessionsKey(userID)
	hashes, err := r.client.SMembers(ctx, userKey).Result()
	if err != nil {
		return nil, err
	}

	_, err = r.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		for _, hash := range hashes {
			pipe.Del(ctx, redisclient.SessionKey(hash))
		}
		pipe.Del(ctx, userKey)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return hashes, nil
}

func (r *sessionRepo) PruneStale(ctx context.Context) (int64, error) {
	var pruned int64

	iter := r.client.Scan(ctx, 0, redisclient.UserSessionsKey("*"), 100).Iterator()
	for iter.Next(ctx) {
		userKey := iter.Val()

		hashes, err := r.client.SMembers(ctx, userKey).Result()
		if err != nil {
			return pruned, err
		}
		if len(hashes) == 0 {
			continue
		}

		exists := make([]*redis.IntCmd, len(hashes))
		_, err = r.client.Pipelined(ctx, func(pipe redis.Pipeliner) error {
			for i, hash := range hashes {
				exists[i] = pipe.Exists(ctx, redisclient.SessionKey(hash))
			}
			return nil
		})
		if err != nil {
			return pruned, err
		}

		var stale []any
		for i, cmd := range exists {
			if cmd.Val() == 0 {
				stale = append(stale, hashes[i])
			}
		}
		if len(stale) == 0 {
			continue
		}

		n, err := r.client.SRem(ctx, userKey, stale...).Result()
		if err != nil {
			return pruned, err
		}
		pruned += n
	}
	if err := iter.Err(); err != nil {
		return pruned, err
	}
	return pruned, nil
}
