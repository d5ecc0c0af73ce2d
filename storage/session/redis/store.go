package redissession

import (
	"context"
	"encoding/json"
	"time"

	"github.com/pkg/errors"
	"github.com/redis/go-redis/v9"

	"github.com/trezcool/campus/core"
	"github.com/trezcool/campus/core/enrollment"
)

const keyPrefix = "enrollment:session:"

var errSessionExists = errors.New("enrollment session already exists")

// redisAPI is the subset of *redis.Client in use.
type redisAPI interface {
	Get(ctx context.Context, key string) *redis.StringCmd
	SetNX(ctx context.Context, key string, value interface{}, expiration time.Duration) *redis.BoolCmd
	SetXX(ctx context.Context, key string, value interface{}, expiration time.Duration) *redis.BoolCmd
	Del(ctx context.Context, keys ...string) *redis.IntCmd
}

// NewClient connects to the configured Redis server.
func NewClient(ctx context.Context, conf core.RedisConfig) (*redis.Client, error) {
	opts, err := redis.ParseURL(conf.URL)
	if err != nil {
		return nil, errors.Wrap(err, "parsing redis URL")
	}
	client := redis.NewClient(opts)
	if err = client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, errors.Wrap(err, "pinging redis")
	}
	return client, nil
}

// Store keeps the wizard sessions in Redis, as JSON documents expiring `ttl` after their last save.
type Store struct {
	client redisAPI
	ttl    time.Duration
}

var _ enrollment.Store = (*Store)(nil)

func NewStore(client redisAPI, ttl time.Duration) *Store {
	if ttl <= 0 {
		ttl = enrollment.DefaultSessionTTL
	}
	return &Store{client: client, ttl: ttl}
}

func (s *Store) Create(ctx context.Context, st enrollment.State) error {
	data, err := json.Marshal(st)
	if err != nil {
		return errors.Wrap(err, "encoding session")
	}
	ok, err := s.client.SetNX(ctx, keyPrefix+st.ID, data, s.ttl).Result()
	if err != nil {
		return errors.Wrap(err, "storing session")
	}
	if !ok {
		return errSessionExists
	}
	return nil
}

func (s *Store) Get(ctx context.Context, id string) (enrollment.State, error) {
	data, err := s.client.Get(ctx, keyPrefix+id).Bytes()
	if errors.Is(err, redis.Nil) {
		return enrollment.State{}, enrollment.ErrSessionNotFound
	}
	if err != nil {
		return enrollment.State{}, errors.Wrap(err, "loading session")
	}

	var st enrollment.State
	if err = json.Unmarshal(data, &st); err != nil {
		return enrollment.State{}, errors.Wrap(err, "decoding session")
	}
	return st, nil
}

// Save overwrites an existing session and renews its TTL.
func (s *Store) Save(ctx context.Context, st enrollment.State) error {
	data, err := json.Marshal(st)
	if err != nil {
		return errors.Wrap(err, "encoding session")
	}
	ok, err := s.client.SetXX(ctx, keyPrefix+st.ID, data, s.ttl).Result()
	if err != nil {
		return errors.Wrap(err, "storing session")
	}
	if !ok {
		return enrollment.ErrSessionNotFound
	}
	return nil
}

func (s *Store) Delete(ctx context.Context, id string) error {
	return errors.Wrap(s.client.Del(ctx, keyPrefix+id).Err(), "deleting session")
}
