package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/noah-isme/role-approval-api/internal/models"
)

const authCodeKeyPrefix = "oauth:code:"

// ErrAuthCodeNotFound is returned when a code is unknown, expired or already used.
var ErrAuthCodeNotFound = errors.New("authorization code not found")

// AuthCodeRepository stores single-use OAuth authorization codes in Redis.
type AuthCodeRepository struct {
	client *redis.Client
}

// NewAuthCodeRepository constructs the repository.
func NewAuthCodeRepository(client *redis.Client) *AuthCodeRepository {
	return &AuthCodeRepository{client: client}
}

// Save stores the grant under code until ttl elapses. An existing code is never overwritten.
func (r *AuthCodeRepository) Save(ctx context.Context, code string, grant models.AuthCode, ttl time.Duration) error {
	if r.client == nil {
		return errors.New("redis client not configured")
	}
	payload, err := json.Marshal(grant)
	if err != nil {
		return fmt.Errorf("marshal auth code: %w", err)
	}
	ok, err := r.client.SetNX(ctx, authCodeKeyPrefix+code, payload, ttl).Result()
	if err != nil {
		return fmt.Errorf("redis setnx auth code: %w", err)
	}
	if !ok {
		return fmt.Errorf("auth code collision")
	}
	return nil
}

// Consume atomically reads and deletes the grant so each code is usable once.
func (r *AuthCodeRepository) Consume(ctx context.Context, code string) (*models.AuthCode, error) {
	if r.client == nil {
		return nil, ErrAuthCodeNotFound
	}
	raw, err := r.client.GetDel(ctx, authCodeKeyPrefix+code).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, ErrAuthCodeNotFound
		}
		return nil, fmt.Errorf("redis getdel auth code: %w", err)
	}
	var grant models.AuthCode
	if err := json.Unmarshal(raw, &grant); err != nil {
		return nil, fmt.Errorf("unmarshal auth code: %w", err)
	}
	return &grant, nil
}
