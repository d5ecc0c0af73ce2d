package redissession

import (
	"context"
	"testing"
	"time"

	"github.com/pkg/errors"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/trezcool/campus/core/enrollment"
)

// fakeRedis is a map backed redisAPI recording the expirations.
type fakeRedis struct {
	data map[string]string
	ttls map[string]time.Duration
	err  error
}

func newFakeRedis() *fakeRedis {
	return &fakeRedis{data: make(map[string]string), ttls: make(map[string]time.Duration)}
}

func (f *fakeRedis) Get(_ context.Context, key string) *redis.StringCmd {
	if f.err != nil {
		return redis.NewStringResult("", f.err)
	}
	v, ok := f.data[key]
	if !ok {
		return redis.NewStringResult("", redis.Nil)
	}
	return redis.NewStringResult(v, nil)
}

func (f *fakeRedis) set(key string, value interface{}, exp time.Duration) {
	f.data[key] = string(value.([]byte))
	f.ttls[key] = exp
}

func (f *fakeRedis) SetNX(_ context.Context, key string, value interface{}, exp time.Duration) *redis.BoolCmd {
	if f.err != nil {
		return redis.NewBoolResult(false, f.err)
	}
	if _, ok := f.data[key]; ok {
		return redis.NewBoolResult(false, nil)
	}
	f.set(key, value, exp)
	return redis.NewBoolResult(true, nil)
}

func (f *fakeRedis) SetXX(_ context.Context, key string, value interface{}, exp time.Duration) *redis.BoolCmd {
	if f.err != nil {
		return redis.NewBoolResult(false, f.err)
	}
	if _, ok := f.data[key]; !ok {
		return redis.NewBoolResult(false, nil)
	}
	f.set(key, value, exp)
	return redis.NewBoolResult(true, nil)
}

func (f *fakeRedis) Del(_ context.Context, keys ...string) *redis.IntCmd {
	if f.err != nil {
		return redis.NewIntResult(0, f.err)
	}
	var n int64
	for _, k := range keys {
		if _, ok := f.data[k]; ok {
			delete(f.data, k)
			n++
		}
	}
	return redis.NewIntResult(n, nil)
}

func TestStore(t *testing.T) {
	ctx := context.Background()
	client := newFakeRedis()
	store := NewStore(client, time.Hour)

	now := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
	st := enrollment.NewState("s1", now)
	st.Draft.FirstName = "Ana"
	st.Draft.Files.Identity = &enrollment.File{Name: "dni.png", Size: 10, Key: "enrollments/s1/dni"}

	require.NoError(t, store.Create(ctx, st))
	assert.Equal(t, time.Hour, client.ttls[keyPrefix+"s1"])
	assert.Equal(t, errSessionExists, store.Create(ctx, st))

	got, err := store.Get(ctx, "s1")
	require.NoError(t, err)
	assert.Equal(t, st, got)

	got.Draft.LastName = "Pérez"
	require.NoError(t, store.Save(ctx, got))
	got2, err := store.Get(ctx, "s1")
	require.NoError(t, err)
	assert.Equal(t, "Pérez", got2.Draft.LastName)

	require.NoError(t, store.Delete(ctx, "s1"))
	_, err = store.Get(ctx, "s1")
	assert.Equal(t, enrollment.ErrSessionNotFound, err)
	assert.Equal(t, enrollment.ErrSessionNotFound, store.Save(ctx, got))
}

func TestStore_Errors(t *testing.T) {
	ctx := context.Background()
	client := newFakeRedis()
	client.err = errors.New("connection refused")
	store := NewStore(client, 0)
	assert.Equal(t, enrollment.DefaultSessionTTL, store.ttl)

	st := enrollment.NewState("s1", time.Now().UTC())
	assert.Error(t, store.Create(ctx, st))
	assert.Error(t, store.Save(ctx, st))
	assert.Error(t, store.Delete(ctx, "s1"))
	_, err := store.Get(ctx, "s1")
	assert.Error(t, err)
	assert.NotEqual(t, enrollment.ErrSessionNotFound, err)

	client.err = nil
	client.data[keyPrefix+"bad"] = "{not json"
	_, err = store.Get(ctx, "bad")
	assert.Error(t, err)
}
