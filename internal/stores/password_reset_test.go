package stores

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newResetStoreTest(t *testing.T) (*PasswordResetStore, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })
	return NewPasswordResetStore(rdb, ""), mr
}

func record(userID int64, ttl time.Duration) *PasswordResetRecord {
	return &PasswordResetRecord{UserID: userID, ExpiresAt: time.Now().Add(ttl).Unix()}
}

func TestSaveGetConsume(t *testing.T) {
	store, mr := newResetStoreTest(t)
	ctx := context.Background()

	require.NoError(t, store.Save(ctx, "tok", record(42, time.Hour), time.Hour))
	assert.True(t, mr.Exists("forget-password:tok"))
	assert.Equal(t, time.Hour, mr.TTL("forget-password:tok"))

	got, err := store.Get(ctx, "tok")
	require.NoError(t, err)
	assert.Equal(t, int64(42), got.UserID)

	got, err = store.Consume(ctx, "tok")
	require.NoError(t, err)
	assert.Equal(t, int64(42), got.UserID)
	assert.False(t, mr.Exists("forget-password:tok"))

	_, err = store.Consume(ctx, "tok")
	assert.ErrorIs(t, err, ErrResetNotFound)
	_, err = store.Get(ctx, "tok")
	assert.ErrorIs(t, err, ErrResetNotFound)
}

func TestSaveRefusesCollision(t *testing.T) {
	store, _ := newResetStoreTest(t)
	ctx := context.Background()

	require.NoError(t, store.Save(ctx, "tok", record(1, time.Hour), time.Hour))
	err := store.Save(ctx, "tok", record(2, time.Hour), time.Hour)
	assert.ErrorIs(t, err, ErrResetCorrupt)

	got, err := store.Get(ctx, "tok")
	require.NoError(t, err)
	assert.Equal(t, int64(1), got.UserID)
}

func TestExpiredByTTL(t *testing.T) {
	store, mr := newResetStoreTest(t)
	ctx := context.Background()

	require.NoError(t, store.Save(ctx, "tok", record(1, 72*time.Hour), 72*time.Hour))
	mr.FastForward(72*time.Hour + time.Second)

	_, err := store.Consume(ctx, "tok")
	assert.ErrorIs(t, err, ErrResetNotFound)
}

func TestConsumeCorruptDeletes(t *testing.T) {
	store, mr := newResetStoreTest(t)
	require.NoError(t, mr.Set("forget-password:bad", "xx"))

	_, err := store.Consume(context.Background(), "bad")
	assert.ErrorIs(t, err, ErrResetCorrupt)
	assert.False(t, mr.Exists("forget-password:bad"))
}

func TestConsumeIsSingleUseUnderConcurrency(t *testing.T) {
	store, _ := newResetStoreTest(t)
	ctx := context.Background()
	require.NoError(t, store.Save(ctx, "race", record(5, time.Hour), time.Hour))

	var wins atomic.Int32
	var wg sync.WaitGroup
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := store.Consume(ctx, "race"); err == nil {
				wins.Add(1)
			}
		}()
	}
	wg.Wait()
	assert.Equal(t, int32(1), wins.Load())
}

func TestRestoreKeepsRemainingLifetime(t *testing.T) {
	store, mr := newResetStoreTest(t)
	ctx := context.Background()

	rec := record(8, 30*time.Minute)
	require.NoError(t, store.Save(ctx, "tok", rec, 30*time.Minute))
	consumed, err := store.Consume(ctx, "tok")
	require.NoError(t, err)

	require.NoError(t, store.Restore(ctx, "tok", consumed))
	ttl := mr.TTL("forget-password:tok")
	assert.Greater(t, ttl, 28*time.Minute)
	assert.LessOrEqual(t, ttl, 30*time.Minute)

	expired := &PasswordResetRecord{UserID: 8, ExpiresAt: time.Now().Add(-time.Second).Unix()}
	require.NoError(t, store.Restore(ctx, "old", expired))
	assert.False(t, mr.Exists("forget-password:old"))

	require.NoError(t, store.Delete(ctx, "tok"))
	require.NoError(t, store.Delete(ctx, "tok"))
}

// touchBeforeExec rewrites key in place right before every MULTI/EXEC, so
// each WATCH transaction aborts.
type touchBeforeExec struct {
	mr  *miniredis.Miniredis
	key string
}

func (h touchBeforeExec) DialHook(next redis.DialHook) redis.DialHook { return next }

func (h touchBeforeExec) ProcessHook(next redis.ProcessHook) redis.ProcessHook { return next }

func (h touchBeforeExec) ProcessPipelineHook(next redis.ProcessPipelineHook) redis.ProcessPipelineHook {
	return func(ctx context.Context, cmds []redis.Cmder) error {
		if len(cmds) > 0 && cmds[0].Name() == "multi" {
			if v, err := h.mr.Get(h.key); err == nil {
				_ = h.mr.Set(h.key, v)
			}
		}
		return next(ctx, cmds)
	}
}

func TestConsumeContentionIsTransient(t *testing.T) {
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })
	store := NewPasswordResetStore(rdb, "")
	ctx := context.Background()

	require.NoError(t, store.Save(ctx, "busy", record(3, time.Hour), time.Hour))
	rdb.AddHook(touchBeforeExec{mr: mr, key: "forget-password:busy"})

	_, err := store.Consume(ctx, "busy")
	require.ErrorIs(t, err, ErrResetRedisUnavailable)
	assert.ErrorIs(t, err, redis.TxFailedErr)
	assert.NotErrorIs(t, err, ErrResetNotFound)
	assert.True(t, mr.Exists("forget-password:busy"))
}
