package redis

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/aretw0/rewind/pkg/domain"
	backend "github.com/redis/go-redis/v9"
)

// Store implements ports.Journal using Redis.
// Each transcript is a list (RPUSH/RPOP); a sorted set indexes live sessions
// by expiry so Sessions can lazily drop expired ones.
type Store struct {
	client *backend.Client
	prefix string
	ttl    time.Duration
}

type Option func(*Store)

// WithTTL sets the expiration for transcripts.
func WithTTL(ttl time.Duration) Option {
	return func(s *Store) {
		s.ttl = ttl
	}
}

// WithPrefix sets the key prefix for transcripts.
func WithPrefix(prefix string) Option {
	return func(s *Store) {
		s.prefix = prefix
	}
}

// New creates a new Redis journal with options.
func New(address, password string, db int, opts ...Option) *Store {
	rdb := backend.NewClient(&backend.Options{
		Addr:     address,
		Password: password,
		DB:       db,
	})
	return NewFromClient(rdb, opts...)
}

// NewFromClient creates a new Redis journal from an existing client.
func NewFromClient(client *backend.Client, opts ...Option) *Store {
	store := &Store{
		client: client,
		prefix: "rewind:journal:",
	}

	for _, opt := range opts {
		opt(store)
	}

	return store
}

func (s *Store) key(sessionID string) string {
	return s.prefix + sessionID
}

func (s *Store) indexKey() string {
	return s.prefix + "index"
}

// Append pushes the entry and refreshes the session's index score.
func (s *Store) Append(ctx context.Context, sessionID string, entry domain.Entry) error {
	data, err := json.Marshal(entry)
	if err != nil {
		return fmt.Errorf("failed to marshal entry: %w", err)
	}

	pipe := s.client.TxPipeline()
	pipe.RPush(ctx, s.key(sessionID), data)
	if s.ttl > 0 {
		pipe.Expire(ctx, s.key(sessionID), s.ttl)
	}

	// Score = Now + TTL. If TTL = 0, Score = far future.
	score := float64(time.Now().Add(s.ttl).Unix())
	if s.ttl == 0 {
		score = 4102444800 // 2100-01-01
	}
	pipe.ZAdd(ctx, s.indexKey(), backend.Z{
		Score:  score,
		Member: sessionID,
	})

	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("failed to append to redis: %w", err)
	}
	return nil
}

// Pop removes and returns the most recent entry. Redis deletes a list once it
// is empty, so the index entry is dropped along with it.
func (s *Store) Pop(ctx context.Context, sessionID string) (domain.Entry, error) {
	return s.take(ctx, sessionID, s.client.RPop)
}

// Shift removes and returns the oldest entry.
func (s *Store) Shift(ctx context.Context, sessionID string) (domain.Entry, error) {
	return s.take(ctx, sessionID, s.client.LPop)
}

func (s *Store) take(ctx context.Context, sessionID string, pop func(context.Context, string) *backend.StringCmd) (domain.Entry, error) {
	val, err := pop(ctx, s.key(sessionID)).Result()
	if err != nil {
		if err == backend.Nil {
			return domain.Entry{}, domain.ErrEmptyHistory
		}
		return domain.Entry{}, fmt.Errorf("failed to pop from redis: %w", err)
	}

	n, err := s.client.Exists(ctx, s.key(sessionID)).Result()
	if err == nil && n == 0 {
		_ = s.client.ZRem(ctx, s.indexKey(), sessionID).Err()
	}

	var entry domain.Entry
	if err := json.Unmarshal([]byte(val), &entry); err != nil {
		return domain.Entry{}, fmt.Errorf("failed to unmarshal entry: %w", err)
	}
	return entry, nil
}

// List returns the transcript, oldest first.
func (s *Store) List(ctx context.Context, sessionID string) ([]domain.Entry, error) {
	vals, err := s.client.LRange(ctx, s.key(sessionID), 0, -1).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to read from redis: %w", err)
	}
	if len(vals) == 0 {
		return nil, domain.ErrSessionNotFound
	}

	entries := make([]domain.Entry, 0, len(vals))
	for _, val := range vals {
		var entry domain.Entry
		if err := json.Unmarshal([]byte(val), &entry); err != nil {
			return nil, fmt.Errorf("failed to unmarshal entry: %w", err)
		}
		entries = append(entries, entry)
	}
	return entries, nil
}

// Delete removes the transcript and its index entry.
func (s *Store) Delete(ctx context.Context, sessionID string) error {
	pipe := s.client.Pipeline()
	pipe.Del(ctx, s.key(sessionID))
	pipe.ZRem(ctx, s.indexKey(), sessionID)

	_, err := pipe.Exec(ctx)
	return err
}

// Sessions returns live sessions, pruning expired ones from the index first.
func (s *Store) Sessions(ctx context.Context) ([]string, error) {
	now := float64(time.Now().Unix())
	err := s.client.ZRemRangeByScore(ctx, s.indexKey(), "-inf", fmt.Sprintf("%f", now)).Err()
	if err != nil {
		return nil, fmt.Errorf("failed to prune expired sessions: %w", err)
	}

	sessions, err := s.client.ZRange(ctx, s.indexKey(), 0, -1).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to list sessions: %w", err)
	}
	return sessions, nil
}

// Close closes the redis client.
func (s *Store) Close() error {
	return s.client.Close()
}

// Ping checks that the server is reachable.
func (s *Store) Ping(ctx context.Context) error {
	return s.client.Ping(ctx).Err()
}
