package setstore

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
)

var (
	ErrAddrMissing = fmt.Errorf("redis addresses must be specified")
)

type option func(s *RedisStore)

// RedisStore is a SetStore backed by a Redis single node or cluster.
type RedisStore struct {
	db             int
	addrs          []string
	userCredential string
	passCredential string
	client         redis.UniversalClient
}

var _ SetStore = (*RedisStore)(nil)

func WithAddr(addrs string) option {
	return func(s *RedisStore) {
		s.addrs = strings.Split(addrs, ",")
	}
}

func WithUserCredential(credential string) option {
	return func(s *RedisStore) {
		s.userCredential = credential
	}
}

func WithPassCredential(credential string) option {
	return func(s *RedisStore) {
		s.passCredential = credential
	}
}

func WithDatabase(db int) option {
	return func(s *RedisStore) {
		s.db = db
	}
}

// NewRedisStore creates a SetStore over a redis UniversalClient.
func NewRedisStore(opts ...option) (*RedisStore, error) {
	s := &RedisStore{}

	for _, opt := range opts {
		opt(s)
	}

	if s.addrs == nil {
		return nil, ErrAddrMissing
	}

	s.client = redis.NewUniversalClient(&redis.UniversalOptions{
		Addrs:    s.addrs,
		Username: s.userCredential,
		Password: s.passCredential,
		DB:       s.db,
	})

	return s, nil
}

// Ping returns the Redis server liveliness response.
func (s *RedisStore) Ping(ctx context.Context) error {
	return s.client.Ping(ctx).Err()
}

// Close closes the server connection.
func (s *RedisStore) Close() error {
	return s.client.Close()
}

func (s *RedisStore) Exists(ctx context.Context, key string) (bool, error) {
	n, err := s.client.Exists(ctx, key).Result()
	return n != 0, err
}

func (s *RedisStore) Members(ctx context.Context, key string) ([]string, error) {
	members, err := s.client.SMembers(ctx, key).Result()
	if errors.Is(err, redis.Nil) {
		return nil, nil
	}
	return members, err
}

func (s *RedisStore) Union(ctx context.Context, keys ...string) ([]string, error) {
	return s.client.SUnion(ctx, keys...).Result()
}

func (s *RedisStore) Add(ctx context.Context, key string, values ...string) (int64, error) {
	args := make([]interface{}, 0, len(values))
	for _, v := range values {
		args = append(args, v)
	}
	if _, err := s.client.SAdd(ctx, key, args...).Result(); err != nil {
		return 0, err
	}
	return s.client.SCard(ctx, key).Result()
}

func (s *RedisStore) InterStore(ctx context.Context, dest, key1, key2 string) (int64, error) {
	return s.client.SInterStore(ctx, dest, key1, key2).Result()
}

func (s *RedisStore) UnionStore(ctx context.Context, dest, key1, key2 string) (int64, error) {
	return s.client.SUnionStore(ctx, dest, key1, key2).Result()
}

func (s *RedisStore) DiffStore(ctx context.Context, dest, key1, key2 string) (int64, error) {
	return s.client.SDiffStore(ctx, dest, key1, key2).Result()
}

func (s *RedisStore) Expire(ctx context.Context, key string, ttl time.Duration) (bool, error) {
	return s.client.Expire(ctx, key, ttl).Result()
}
