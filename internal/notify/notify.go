// Package notify carries notices produced outside a request, such as a
// finished receipt, to the next page render of the browser session.
package notify

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/buysell-kh/backoffice/internal/shared"
)

const defaultTTL = time.Hour

// Store is a Redis list of notices per session.
type Store struct {
	client *redis.Client
	ttl    time.Duration
	logger *slog.Logger
}

// NewStore constructs a Store. Lists expire after ttl without activity.
func NewStore(client *redis.Client, ttl time.Duration, logger *slog.Logger) *Store {
	if ttl <= 0 {
		ttl = defaultTTL
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Store{client: client, ttl: ttl, logger: logger}
}

// Push appends a notice for the session.
func (s *Store) Push(ctx context.Context, sessionID string, msg shared.FlashMessage) error {
	if sessionID == "" || msg.Message == "" {
		return nil
	}
	raw, err := json.Marshal(msg)
	if err != nil {
		return err
	}
	key := listKey(sessionID)
	pipe := s.client.TxPipeline()
	pipe.RPush(ctx, key, raw)
	pipe.Expire(ctx, key, s.ttl)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("notify: push: %w", err)
	}
	return nil
}

// Drain removes and returns every queued notice for the session, oldest first.
func (s *Store) Drain(ctx context.Context, sessionID string) ([]shared.FlashMessage, error) {
	if sessionID == "" {
		return nil, nil
	}
	key := listKey(sessionID)
	pipe := s.client.TxPipeline()
	items := pipe.LRange(ctx, key, 0, -1)
	pipe.Del(ctx, key)
	if _, err := pipe.Exec(ctx); err != nil {
		return nil, fmt.Errorf("notify: drain: %w", err)
	}
	out := make([]shared.FlashMessage, 0, len(items.Val()))
	for _, item := range items.Val() {
		var msg shared.FlashMessage
		if err := json.Unmarshal([]byte(item), &msg); err != nil {
			s.logger.Warn("notify: dropping unreadable notice", slog.Any("error", err))
			continue
		}
		out = append(out, msg)
	}
	return out, nil
}

func listKey(sessionID string) string {
	return "backoffice:notify:" + sessionID
}
