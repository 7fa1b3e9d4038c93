package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"taskify/internal/models"

	"github.com/redis/go-redis/v9"
)

var ErrInvalidRefreshToken = errors.New("invalid or expired refresh token")

const refreshTokenPrefix = "refresh_token:"

// RefreshTokenStore keeps the server side of opaque refresh tokens.
// Consume is single-use: a token can be exchanged at most once.
type RefreshTokenStore interface {
	Save(ctx context.Context, token models.RefreshToken) error
	Consume(ctx context.Context, token string) (models.RefreshToken, error)
	Revoke(ctx context.Context, token string) error
}

type RedisRefreshTokenStore struct {
	client *redis.Client
}

func NewRedisRefreshTokenStore(client *redis.Client) *RedisRefreshTokenStore {
	return &RedisRefreshTokenStore{client: client}
}

func (s *RedisRefreshTokenStore) Save(ctx context.Context, token models.RefreshToken) error {
	ttl := time.Until(token.ExpiresAt)
	if ttl <= 0 {
		return ErrInvalidRefreshToken
	}

	data, err := json.Marshal(token)
	if err != nil {
		return fmt.Errorf("failed to marshal refresh token: %w", err)
	}
	if err := s.client.Set(ctx, refreshTokenPrefix+token.Token, data, ttl).Err(); err != nil {
		return fmt.Errorf("failed to store refresh token: %w", err)
	}
	return nil
}

func (s *RedisRefreshTokenStore) Consume(ctx context.Context, token string) (models.RefreshToken, error) {
	data, err := s.client.GetDel(ctx, refreshTokenPrefix+token).Bytes()
	if errors.Is(err, redis.Nil) {
		return models.RefreshToken{}, ErrInvalidRefreshToken
	}
	if err != nil {
		return models.RefreshToken{}, fmt.Errorf("failed to read refresh token: %w", err)
	}

	var record models.RefreshToken
	if err := json.Unmarshal(data, &record); err != nil {
		return models.RefreshToken{}, fmt.Errorf("failed to decode refresh token: %w", err)
	}
	if record.IsExpired() {
		return models.RefreshToken{}, ErrInvalidRefreshToken
	}
	return record, nil
}

func (s *RedisRefreshTokenStore) Revoke(ctx context.Context, token string) error {
	if err := s.client.Del(ctx, refreshTokenPrefix+token).Err(); err != nil {
		return fmt.Errorf("failed to revoke refresh token: %w", err)
	}
	return nil
}

// MemoryRefreshTokenStore is used when Redis is disabled. Tokens do not
// survive a restart and are not shared between replicas.
type MemoryRefreshTokenStore struct {
	mu     sync.Mutex
	tokens map[string]models.RefreshToken
}

func NewMemoryRefreshTokenStore() *MemoryRefreshTokenStore {
	return &MemoryRefreshTokenStore{tokens: make(map[string]models.RefreshToken)}
}

func (s *MemoryRefreshTokenStore) Save(_ context.Context, token models.RefreshToken) error {
	if token.IsExpired() {
		return ErrInvalidRefreshToken
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	for key, existing := range s.tokens {
		if existing.IsExpired() {
			delete(s.tokens, key)
		}
	}
	s.tokens[token.Token] = token
	return nil
}

func (s *MemoryRefreshTokenStore) Consume(_ context.Context, token string) (models.RefreshToken, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	record, ok := s.tokens[token]
	if !ok {
		return models.RefreshToken{}, ErrInvalidRefreshToken
	}
	delete(s.tokens, token)
	if record.IsExpired() {
		return models.RefreshToken{}, ErrInvalidRefreshToken
	}
	return record, nil
}

func (s *MemoryRefreshTokenStore) Revoke(_ context.Context, token string) error {
	s.mu.Lock()
	delete(s.tokens, token)
	s.mu.Unlock()
	return nil
}
