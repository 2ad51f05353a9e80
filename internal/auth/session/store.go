// Package session keeps SSO session records in Redis so every subdomain and
// instance sees the same logged-in devices.
package session

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/Renagang21/o4o-auth-service/internal/auth/domain"
	autherror "github.com/Renagang21/o4o-auth-service/internal/errors"
)

const (
	sessionKeyPrefix = "sso:session:"
	userKeyPrefix    = "sso:user:"
)

// RedisStore implements domain.SessionStore. Sessions live under
// sso:session:{id} with the session TTL; a per-user sorted set scored by
// creation time under sso:user:{id} supports counting and oldest-first
// eviction.
type RedisStore struct {
	client *redis.Client
	ttl    time.Duration
	cap    int
}

func NewRedisStore(client *redis.Client, ttl time.Duration, maxPerUser int) *RedisStore {
	return &RedisStore{client: client, ttl: ttl, cap: maxPerUser}
}

func sessionKey(id string) string  { return sessionKeyPrefix + id }
func userKey(userID string) string { return userKeyPrefix + userID }

func (s *RedisStore) Create(ctx context.Context, sess *domain.Session) error {
	payload, err := json.Marshal(sess)
	if err != nil {
		return fmt.Errorf("encode session: %w", err)
	}

	pipe := s.client.TxPipeline()
	pipe.Set(ctx, sessionKey(sess.ID), payload, s.ttl)
	pipe.ZAdd(ctx, userKey(sess.UserID), redis.Z{
		Score:  float64(sess.CreatedAt.UnixMilli()),
		Member: sess.ID,
	})
	pipe.Expire(ctx, userKey(sess.UserID), s.ttl)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("store session: %w", err)
	}

	return nil
}

func (s *RedisStore) Get(ctx context.Context, sessionID string) (*domain.Session, error) {
	data, err := s.client.Get(ctx, sessionKey(sessionID)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, autherror.ErrSessionNotFound
		}
		return nil, fmt.Errorf("load session: %w", err)
	}

	var sess domain.Session
	if err := json.Unmarshal(data, &sess); err != nil {
		return nil, fmt.Errorf("decode session: %w", err)
	}

	return &sess, nil
}

func (s *RedisStore) CountByUser(ctx context.Context, userID string) (int, error) {
	ids, err := s.liveSessionIDs(ctx, userID)
	if err != nil {
		return 0, err
	}

	return len(ids), nil
}

func (s *RedisStore) ListByUser(ctx context.Context, userID string) ([]domain.Session, error) {
	ids, err := s.liveSessionIDs(ctx, userID)
	if err != nil {
		return nil, err
	}

	sessions := make([]domain.Session, 0, len(ids))
	for _, id := range ids {
		sess, err := s.Get(ctx, id)
		if err != nil {
			if errors.Is(err, autherror.ErrSessionNotFound) {
				continue
			}
			return nil, err
		}
		sessions = append(sessions, *sess)
	}

	return sessions, nil
}

// EnforceLimit runs before session creation so a new login always succeeds:
// it evicts oldest-first until one slot is free under the cap.
func (s *RedisStore) EnforceLimit(ctx context.Context, userID string) (int, error) {
	ids, err := s.liveSessionIDs(ctx, userID)
	if err != nil {
		return 0, err
	}
	if len(ids) < s.cap {
		return 0, nil
	}

	// The index is ordered by creation time, oldest first.
	toEvict := ids[:len(ids)-s.cap+1]
	for _, id := range toEvict {
		if err := s.Remove(ctx, id, userID); err != nil {
			return 0, err
		}
	}

	return len(toEvict), nil
}

func (s *RedisStore) Remove(ctx context.Context, sessionID, userID string) error {
	pipe := s.client.TxPipeline()
	pipe.Del(ctx, sessionKey(sessionID))
	pipe.ZRem(ctx, userKey(userID), sessionID)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("remove session: %w", err)
	}

	return nil
}

func (s *RedisStore) RemoveAll(ctx context.Context, userID string) (int, error) {
	ids, err := s.client.ZRange(ctx, userKey(userID), 0, -1).Result()
	if err != nil {
		return 0, fmt.Errorf("list user sessions: %w", err)
	}

	pipe := s.client.TxPipeline()
	for _, id := range ids {
		pipe.Del(ctx, sessionKey(id))
	}
	pipe.Del(ctx, userKey(userID))
	if _, err := pipe.Exec(ctx); err != nil {
		return 0, fmt.Errorf("remove user sessions: %w", err)
	}

	return len(ids), nil
}

// liveSessionIDs returns the user's session ids oldest-first, dropping index
// entries whose session key has already expired.
func (s *RedisStore) liveSessionIDs(ctx context.Context, userID string) ([]string, error) {
	ids, err := s.client.ZRange(ctx, userKey(userID), 0, -1).Result()
	if err != nil {
		return nil, fmt.Errorf("list user sessions: %w", err)
	}

	live := ids[:0]
	for _, id := range ids {
		exists, err := s.client.Exists(ctx, sessionKey(id)).Result()
		if err != nil {
			return nil, fmt.Errorf("check session liveness: %w", err)
		}
		if exists == 0 {
			s.client.ZRem(ctx, userKey(userID), id)
			continue
		}
		live = append(live, id)
	}

	return live, nil
}
