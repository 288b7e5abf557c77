package store

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
)

// RedisStore implements Store on Redis. Each record is one hash holding the
// payload and its update time, written with a single HSET.
type RedisStore struct {
	client *redis.Client
	prefix string
}

// NewRedisStore connects to Redis and verifies the connection.
func NewRedisStore(redisURL string) (*RedisStore, error) {
	opts, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("parse redis url: %w", err)
	}

	client := redis.NewClient(opts)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("connect to redis: %w", err)
	}

	return NewRedisStoreWithClient(client), nil
}

// NewRedisStoreWithClient creates a store from an existing Redis client.
func NewRedisStoreWithClient(client *redis.Client) *RedisStore {
	return &RedisStore{
		client: client,
		prefix: "milestone:",
	}
}

func (s *RedisStore) key(profile string, rec Record) string {
	return s.prefix + profile + ":" + string(rec)
}

func (s *RedisStore) Load(ctx context.Context, profile string, rec Record) ([]byte, error) {
	if err := validate(profile, rec); err != nil {
		return nil, err
	}
	payload, err := s.client.HGet(ctx, s.key(profile, rec), "payload").Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("load %s/%s: %w", profile, rec, err)
	}
	return payload, nil
}

func (s *RedisStore) Save(ctx context.Context, profile string, rec Record, payload []byte) error {
	if err := validate(profile, rec); err != nil {
		return err
	}
	now := time.Now().UTC().Format(time.RFC3339Nano)
	if err := s.client.HSet(ctx, s.key(profile, rec), "payload", payload, "updated_at", now).Err(); err != nil {
		return fmt.Errorf("save %s/%s: %w", profile, rec, err)
	}
	return nil
}

func (s *RedisStore) Delete(ctx context.Context, profile string, recs ...Record) error {
	if len(recs) == 0 {
		return nil
	}
	keys := make([]string, 0, len(recs))
	for _, rec := range recs {
		if err := validate(profile, rec); err != nil {
			return err
		}
		keys = append(keys, s.key(profile, rec))
	}
	if err := s.client.Del(ctx, keys...).Err(); err != nil {
		return fmt.Errorf("delete %s: %w", profile, err)
	}
	return nil
}

func (s *RedisStore) Entries(ctx context.Context, profile string) ([]Entry, error) {
	pattern := s.prefix + "*"
	if profile != "" {
		pattern = s.prefix + profile + ":*"
	}

	var entries []Entry
	iter := s.client.Scan(ctx, 0, pattern, 100).Iterator()
	for iter.Next(ctx) {
		key := iter.Val()
		p, name, ok := strings.Cut(strings.TrimPrefix(key, s.prefix), ":")
		if !ok || !ValidRecords[Record(name)] {
			continue
		}
		fields, err := s.client.HGetAll(ctx, key).Result()
		if err != nil {
			return nil, err
		}
		e := Entry{Profile: p, Record: Record(name), Payload: []byte(fields["payload"])}
		e.UpdatedAt, _ = time.Parse(time.RFC3339Nano, fields["updated_at"])
		entries = append(entries, e)
	}
	if err := iter.Err(); err != nil {
		return nil, err
	}

	sort.Slice(entries, func(i, j int) bool {
		if entries[i].Profile != entries[j].Profile {
			return entries[i].Profile < entries[j].Profile
		}
		return entries[i].Record < entries[j].Record
	})
	return entries, nil
}

// Ping checks if Redis is reachable.
func (s *RedisStore) Ping(ctx context.Context) error {
	return s.client.Ping(ctx).Err()
}

func (s *RedisStore) Close() error {
	return s.client.Close()
}
