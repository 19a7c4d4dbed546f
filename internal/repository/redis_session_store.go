package repository

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/hitoshi/takibi/internal/model"
)

// sessionKeyPrefix はRedis上のセッションキーのプレフィックス。
const sessionKeyPrefix = "session:"

// RedisSessionStore はRedisを使用したセッションストア。
// セッションはJSONでシリアライズし、TTL付きで保存する。
// Findのたびに有効期限を延長するスライディング方式。
type RedisSessionStore struct {
	client *redis.Client
	ttl    time.Duration
}

// NewRedisSessionStore はRedisSessionStoreを生成する。
// maxAgeSecはセッションの有効期間（秒）。
func NewRedisSessionStore(client *redis.Client, maxAgeSec int) *RedisSessionStore {
	return &RedisSessionStore{
		client: client,
		ttl:    time.Duration(maxAgeSec) * time.Second,
	}
}

// Create はセッションをTTL付きで保存する。
func (s *RedisSessionStore) Create(ctx context.Context, session *model.Session) error {
	data, err := json.Marshal(session)
	if err != nil {
		return fmt.Errorf("failed to marshal session: %w", err)
	}

	if err := s.client.Set(ctx, sessionKeyPrefix+session.ID, data, s.ttl).Err(); err != nil {
		return fmt.Errorf("failed to create session: %w", err)
	}
	return nil
}

// Find は指定IDのセッションを取得し、TTLを更新する。
// 見つからない（期限切れ含む）場合はnilを返す。
func (s *RedisSessionStore) Find(ctx context.Context, id string) (*model.Session, error) {
	key := sessionKeyPrefix + id

	data, err := s.client.Get(ctx, key).Bytes()
	if err == redis.Nil {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to find session: %w", err)
	}

	session := &model.Session{}
	if err := json.Unmarshal(data, session); err != nil {
		return nil, fmt.Errorf("failed to unmarshal session: %w", err)
	}
	session.ID = id

	// スライディング有効期限: アクセスのたびにTTLを延長する
	if err := s.client.Expire(ctx, key, s.ttl).Err(); err != nil {
		return nil, fmt.Errorf("failed to refresh session TTL: %w", err)
	}

	return session, nil
}

// Save はセッションの内容を上書き保存し、TTLを再設定する。
func (s *RedisSessionStore) Save(ctx context.Context, session *model.Session) error {
	data, err := json.Marshal(session)
	if err != nil {
		return fmt.Errorf("failed to marshal session: %w", err)
	}

	if err := s.client.Set(ctx, sessionKeyPrefix+session.ID, data, s.ttl).Err(); err != nil {
		return fmt.Errorf("failed to save session: %w", err)
	}
	return nil
}

// Delete は指定IDのセッションを破棄する。
func (s *RedisSessionStore) Delete(ctx context.Context, id string) error {
	if err := s.client.Del(ctx, sessionKeyPrefix+id).Err(); err != nil {
		return fmt.Errorf("failed to delete session: %w", err)
	}
	return nil
}

// compile-time interface check
var _ SessionStore = (*RedisSessionStore)(nil)
