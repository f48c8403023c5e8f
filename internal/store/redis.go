package store

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/redis/go-redis/v9"
)

const (
	hashPrefix    = "rtdb:"
	channelPrefix = "rtdb:changes:"
	opTimeout     = 3 * time.Second
	maxTxRetries  = 5
)

type RedisConfig struct {
	Addr         string
	Password     string
	DB           int
	PoolSize     int
	MinIdleConns int
	MaxRetries   int
	DialTimeout  time.Duration
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
}

func DefaultRedisConfig() *RedisConfig {
	return &RedisConfig{
		Addr:         "localhost:6379",
		PoolSize:     10,
		MinIdleConns: 5,
		MaxRetries:   3,
		DialTimeout:  5 * time.Second,
		ReadTimeout:  3 * time.Second,
		WriteTimeout: 3 * time.Second,
	}
}

func NewRedisClient(config *RedisConfig) *redis.Client {
	if config == nil {
		config = DefaultRedisConfig()
	}

	return redis.NewClient(&redis.Options{
		Addr:         config.Addr,
		Password:     config.Password,
		DB:           config.DB,
		PoolSize:     config.PoolSize,
		MinIdleConns: config.MinIdleConns,
		MaxRetries:   config.MaxRetries,
		DialTimeout:  config.DialTimeout,
		ReadTimeout:  config.ReadTimeout,
		WriteTimeout: config.WriteTimeout,
	})
}

// RedisStore keeps each collection in one hash and announces changes on
// a per-collection pub/sub channel, so several server processes can
// share one Redis and still see each other's writes.
type RedisStore struct {
	client *redis.Client
	pubsub *redis.PubSub
	hub    *hub
	log    *slog.Logger
	closed atomic.Bool
	wg     sync.WaitGroup
}

func NewRedisStore(ctx context.Context, client *redis.Client, log *slog.Logger) (*RedisStore, error) {
	pubsub := client.PSubscribe(ctx, channelPrefix+"*")
	if _, err := pubsub.Receive(ctx); err != nil {
		pubsub.Close()
		return nil, fmt.Errorf("failed to subscribe to change channel: %w", err)
	}

	s := &RedisStore{client: client, pubsub: pubsub, hub: newHub(), log: log}
	s.wg.Add(1)
	go s.listen()
	return s, nil
}

func (s *RedisStore) listen() {
	defer s.wg.Done()
	for msg := range s.pubsub.Channel() {
		s.hub.publish(strings.TrimPrefix(msg.Channel, channelPrefix))
	}
}

func hashKey(collection string) string { return hashPrefix + collection }

func (s *RedisStore) announce(ctx context.Context, collection string) {
	if err := s.client.Publish(ctx, channelPrefix+collection, "changed").Err(); err != nil {
		s.log.Warn("failed to publish change", "collection", collection, "error", err)
	}
	s.hub.publish(collection)
}

func (s *RedisStore) Subscribe(ctx context.Context, path string, fn func(Snapshot)) (Subscription, error) {
	if s.closed.Load() {
		return nil, ErrClosed
	}
	p, err := ParsePath(path)
	if err != nil {
		return nil, err
	}
	sub := startSubscription(ctx, p, func(ctx context.Context) (Snapshot, error) {
		return s.read(ctx, p)
	}, fn, s.hub.remove, s.log)
	s.hub.add(sub)
	return sub, nil
}

func (s *RedisStore) Read(ctx context.Context, path string) (Snapshot, error) {
	p, err := ParsePath(path)
	if err != nil {
		return Snapshot{}, err
	}
	return s.read(ctx, p)
}

func (s *RedisStore) read(ctx context.Context, p Path) (Snapshot, error) {
	ctx, cancel := context.WithTimeout(ctx, opTimeout)
	defer cancel()

	snap := Snapshot{Path: p.String()}

	if !p.IsCollection() {
		data, err := s.client.HGet(ctx, hashKey(p.Collection), p.Key).Bytes()
		if errors.Is(err, redis.Nil) {
			return snap, nil
		}
		if err != nil {
			return snap, fmt.Errorf("failed to read %s: %w", p, err)
		}
		snap.Exists = true
		snap.Value = data
		return snap, nil
	}

	entries, err := s.client.HGetAll(ctx, hashKey(p.Collection)).Result()
	if err != nil {
		return snap, fmt.Errorf("failed to read %s: %w", p, err)
	}
	keys := make([]string, 0, len(entries))
	for key := range entries {
		keys = append(keys, key)
	}
	sort.Strings(keys)

	snap.Exists = len(keys) > 0
	snap.Children = make([]Child, 0, len(keys))
	for _, key := range keys {
		snap.Children = append(snap.Children, Child{Key: key, Value: []byte(entries[key])})
	}
	return snap, nil
}

func (s *RedisStore) Write(ctx context.Context, path string, value interface{}) error {
	p, err := parseRecordPath(path)
	if err != nil {
		return err
	}
	data, err := marshalValue(value)
	if err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(ctx, opTimeout)
	defer cancel()

	if err := s.client.HSet(ctx, hashKey(p.Collection), p.Key, data).Err(); err != nil {
		return fmt.Errorf("failed to write %s: %w", p, err)
	}

	s.announce(ctx, p.Collection)
	return nil
}

func (s *RedisStore) Update(ctx context.Context, path string, fields map[string]interface{}) error {
	p, err := parseRecordPath(path)
	if err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(ctx, opTimeout)
	defer cancel()

	key := hashKey(p.Collection)
	txf := func(tx *redis.Tx) error {
		current, err := tx.HGet(ctx, key, p.Key).Bytes()
		if err != nil && !errors.Is(err, redis.Nil) {
			return err
		}
		merged, err := mergeFields(current, fields)
		if err != nil {
			return err
		}
		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.HSet(ctx, key, p.Key, merged)
			return nil
		})
		return err
	}

	for i := 0; i < maxTxRetries; i++ {
		err = s.client.Watch(ctx, txf, key)
		if !errors.Is(err, redis.TxFailedErr) {
			break
		}
	}
	if err != nil {
		return fmt.Errorf("failed to update %s: %w", p, err)
	}

	s.announce(ctx, p.Collection)
	return nil
}

func (s *RedisStore) Append(ctx context.Context, path string) (string, error) {
	p, err := parseCollectionPath(path)
	if err != nil {
		return "", err
	}
	return p.Child(NewKey()).String(), nil
}

func (s *RedisStore) Delete(ctx context.Context, path string) error {
	p, err := ParsePath(path)
	if err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(ctx, opTimeout)
	defer cancel()

	if p.IsCollection() {
		err = s.client.Del(ctx, hashKey(p.Collection)).Err()
	} else {
		err = s.client.HDel(ctx, hashKey(p.Collection), p.Key).Err()
	}
	if err != nil {
		return fmt.Errorf("failed to delete %s: %w", p, err)
	}

	s.announce(ctx, p.Collection)
	return nil
}

func (s *RedisStore) Health(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, opTimeout)
	defer cancel()
	return s.client.Ping(ctx).Err()
}

// Close stops every subscription and the change listener. The Redis
// client is owned by the caller.
func (s *RedisStore) Close() error {
	if s.closed.Swap(true) {
		return nil
	}
	s.hub.stopAll()
	err := s.pubsub.Close()
	s.wg.Wait()
	return err
}
