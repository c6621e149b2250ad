package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/example/streambox/services/catalog/internal/media"
)

const defaultRedisPrefix = "streambox:media"

// RedisMediaStore keeps records as JSON strings keyed by local id.
// Ids come from INCR on a sequence key, so they survive restarts.
type RedisMediaStore struct {
	Client *redis.Client
	Prefix string
	now    func() time.Time
}

func NewRedisMediaStore(url string) (*RedisMediaStore, error) {
	opt, err := redis.ParseURL(url)
	if err != nil {
		return nil, err
	}
	return NewRedisMediaStoreWithClient(redis.NewClient(opt)), nil
}

func NewRedisMediaStoreWithClient(client *redis.Client) *RedisMediaStore {
	return &RedisMediaStore{Client: client, Prefix: defaultRedisPrefix, now: time.Now}
}

func (s *RedisMediaStore) seqKey() string { return s.Prefix + ":seq" }

func (s *RedisMediaStore) idKey(id int64) string {
	return s.Prefix + ":" + strconv.FormatInt(id, 10)
}

func (s *RedisMediaStore) extKey(tmdbID int64, kind media.Kind) string {
	return s.Prefix + ":ext:" + string(kind) + ":" + strconv.FormatInt(tmdbID, 10)
}

func (s *RedisMediaStore) Insert(ctx context.Context, m media.Media) (media.Media, error) {
	id, err := s.Client.Incr(ctx, s.seqKey()).Result()
	if err != nil {
		return media.Media{}, fmt.Errorf("redis incr: %w", err)
	}
	m = m.Clone()
	m.ID = id
	if m.LastUpdated.IsZero() {
		m.LastUpdated = s.now().UTC()
	}
	if m.Genres == nil {
		m.Genres = []string{}
	}
	b, err := json.Marshal(m)
	if err != nil {
		return media.Media{}, err
	}

	_, err = s.Client.TxPipelined(ctx, func(p redis.Pipeliner) error {
		p.Set(ctx, s.idKey(id), b, 0)
		// first insert wins the external lookup
		p.SetNX(ctx, s.extKey(m.TMDBID, m.Type), id, 0)
		return nil
	})
	if err != nil {
		return media.Media{}, fmt.Errorf("redis insert: %w", err)
	}
	return m, nil
}

func (s *RedisMediaStore) Get(ctx context.Context, id int64) (media.Media, error) {
	val, err := s.Client.Get(ctx, s.idKey(id)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return media.Media{}, ErrNotFound
		}
		return media.Media{}, fmt.Errorf("redis get: %w", err)
	}
	var m media.Media
	if err := json.Unmarshal(val, &m); err != nil {
		return media.Media{}, fmt.Errorf("decode media %d: %w", id, err)
	}
	return m, nil
}

func (s *RedisMediaStore) FindByExternal(ctx context.Context, tmdbID int64, kind media.Kind) (media.Media, error) {
	id, err := s.Client.Get(ctx, s.extKey(tmdbID, kind)).Int64()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return media.Media{}, ErrNotFound
		}
		return media.Media{}, fmt.Errorf("redis get: %w", err)
	}
	return s.Get(ctx, id)
}

// Ping is used by /readyz.
func (s *RedisMediaStore) Ping(ctx context.Context) error {
	return s.Client.Ping(ctx).Err()
}

func (s *RedisMediaStore) Close() error {
	return s.Client.Close()
}
