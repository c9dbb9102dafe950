package printing

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"github.com/buysell-kh/backoffice/internal/shared"
)

// DefaultTTL is how long a rendered receipt stays downloadable.
const DefaultTTL = 15 * time.Minute

// Store keeps rendered receipts in Redis under random tokens.
type Store struct {
	client *redis.Client
	ttl    time.Duration
}

// NewStore constructs a Store.
func NewStore(client *redis.Client, ttl time.Duration) *Store {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &Store{client: client, ttl: ttl}
}

// Save stores pdf and returns its download token.
func (s *Store) Save(ctx context.Context, pdf []byte) (string, error) {
	token := uuid.NewString()
	if err := s.client.Set(ctx, receiptKey(token), pdf, s.ttl).Err(); err != nil {
		return "", fmt.Errorf("printing: store receipt: %w", err)
	}
	return token, nil
}

// Fetch returns the receipt stored under token, or shared.ErrNotFound once it
// expired or when the token is malformed.
func (s *Store) Fetch(ctx context.Context, token string) ([]byte, error) {
	if _, err := uuid.Parse(token); err != nil {
		return nil, shared.ErrNotFound
	}
	pdf, err := s.client.Get(ctx, receiptKey(token)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, shared.ErrNotFound
		}
		return nil, fmt.Errorf("printing: fetch receipt: %w", err)
	}
	return pdf, nil
}

func receiptKey(token string) string {
	return "backoffice:receipt:" + token
}
