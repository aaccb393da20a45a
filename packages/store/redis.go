package store

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"strings"
	"time"

	backend "github.com/redis/go-redis/v9"

	"github.com/vogtb/go-spreadsheet/packages/spreadsheet"
)

// Redis keeps snapshots as string keys plus a sorted set index scored by
// expiry time, so List can skip snapshots whose key already expired
type Redis struct {
	client *backend.Client
	prefix string
	ttl    time.Duration
}

var _ Store = (*Redis)(nil)

// RedisOption configures a Redis store
type RedisOption func(*Redis)

// WithTTL expires snapshots after ttl, 0 keeps them forever
func WithTTL(ttl time.Duration) RedisOption {
	return func(s *Redis) {
		s.ttl = ttl
	}
}

// WithPrefix namespaces every key
func WithPrefix(prefix string) RedisOption {
	return func(s *Redis) {
		s.prefix = prefix
	}
}

// NewRedis connects to the server at address
func NewRedis(address, password string, db int, opts ...RedisOption) *Redis {
	client := backend.NewClient(&backend.Options{
		Addr:     address,
		Password: password,
		DB:       db,
	})
	return NewRedisFromClient(client, opts...)
}

// NewRedisFromClient wraps an existing client
func NewRedisFromClient(client *backend.Client, opts ...RedisOption) *Redis {
	s := &Redis{
		client: client,
		prefix: "sheetctl:workbook:",
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *Redis) key(id string) string {
	return s.prefix + id
}

func (s *Redis) indexKey() string {
	return strings.TrimSuffix(s.prefix, ":") + ":index"
}

// far future for entries without ttl, 2100-01-01
const neverExpires = 4102444800

func (s *Redis) Save(ctx context.Context, id string, data *spreadsheet.WorkbookData) error {
	raw, err := encode(id, data)
	if err != nil {
		return err
	}
	score := float64(neverExpires)
	if s.ttl > 0 {
		score = float64(time.Now().Add(s.ttl).Unix())
	}
	pipe := s.client.Pipeline()
	pipe.Set(ctx, s.key(id), raw, s.ttl)
	pipe.ZAdd(ctx, s.indexKey(), backend.Z{Score: score, Member: id})
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("failed to save workbook %s: %w", id, err)
	}
	return nil
}

func (s *Redis) Load(ctx context.Context, id string) (*spreadsheet.WorkbookData, error) {
	raw, err := s.client.Get(ctx, s.key(id)).Bytes()
	if err != nil {
		if errors.Is(err, backend.Nil) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to load workbook %s: %w", id, err)
	}
	return decode(id, raw)
}

func (s *Redis) Delete(ctx context.Context, id string) error {
	pipe := s.client.Pipeline()
	pipe.Del(ctx, s.key(id))
	pipe.ZRem(ctx, s.indexKey(), id)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("failed to delete workbook %s: %w", id, err)
	}
	return nil
}

func (s *Redis) List(ctx context.Context) ([]string, error) {
	now := fmt.Sprintf("%d", time.Now().Unix())
	if err := s.client.ZRemRangeByScore(ctx, s.indexKey(), "-inf", now).Err(); err != nil {
		return nil, fmt.Errorf("failed to prune index: %w", err)
	}
	// the index is ordered by expiry
	ids, err := s.client.ZRange(ctx, s.indexKey(), 0, -1).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to list workbooks: %w", err)
	}
	slices.Sort(ids)
	return ids, nil
}

func (s *Redis) Close() error {
	return s.client.Close()
}
