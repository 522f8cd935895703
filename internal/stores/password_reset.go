package stores

import (
	"context"
	"encoding/binary"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

const resetRecordVersionV1 = 1

// DefaultResetPrefix is the key namespace of reset tokens.
const DefaultResetPrefix = "forget-password:"

var (
	ErrResetNotFound         = errors.New("reset record not found")
	ErrResetCorrupt          = errors.New("reset record corrupt")
	ErrResetRedisUnavailable = errors.New("reset redis unavailable")
)

// PasswordResetRecord is the value stored under a reset token.
type PasswordResetRecord struct {
	UserID    int64
	ExpiresAt int64
}

// Remaining returns the time left before the record expires.
func (r *PasswordResetRecord) Remaining(now time.Time) time.Duration {
	return time.Unix(r.ExpiresAt, 0).Sub(now)
}

// PasswordResetStore maps reset tokens to user IDs.
type PasswordResetStore struct {
	redis  redis.UniversalClient
	prefix string
}

// NewPasswordResetStore uses DefaultResetPrefix when prefix is empty.
func NewPasswordResetStore(redisClient redis.UniversalClient, prefix string) *PasswordResetStore {
	if prefix == "" {
		prefix = DefaultResetPrefix
	}
	return &PasswordResetStore{
		redis:  redisClient,
		prefix: prefix,
	}
}

func (s *PasswordResetStore) key(token string) string {
	return s.prefix + token
}

// Save stores token -> record for ttl. An existing token is never
// overwritten; ErrResetCorrupt is returned on collision.
func (s *PasswordResetStore) Save(ctx context.Context, token string, record *PasswordResetRecord, ttl time.Duration) error {
	if ttl <= 0 {
		return errors.New("reset ttl must be positive")
	}
	ok, err := s.redis.SetNX(ctx, s.key(token), encodePasswordResetRecord(record), ttl).Result()
	if err != nil {
		return fmt.Errorf("%w: %v", ErrResetRedisUnavailable, err)
	}
	if !ok {
		return fmt.Errorf("%w: token collision", ErrResetCorrupt)
	}
	return nil
}

// Get returns the record without consuming it.
func (s *PasswordResetStore) Get(ctx context.Context, token string) (*PasswordResetRecord, error) {
	data, err := s.redis.Get(ctx, s.key(token)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, ErrResetNotFound
		}
		return nil, fmt.Errorf("%w: %v", ErrResetRedisUnavailable, err)
	}

	record, err := decodePasswordResetRecord(data)
	if err != nil {
		return nil, err
	}
	if time.Now().Unix() >= record.ExpiresAt {
		return nil, ErrResetNotFound
	}
	return record, nil
}

// Consume atomically reads and deletes the record. Of several concurrent
// callers at most one receives the record; the others get ErrResetNotFound.
// A key that keeps changing under WATCH yields ErrResetRedisUnavailable.
func (s *PasswordResetStore) Consume(ctx context.Context, token string) (*PasswordResetRecord, error) {
	const maxRetries = 4
	key := s.key(token)

	for i := 0; i < maxRetries; i++ {
		var matched *PasswordResetRecord

		err := s.redis.Watch(ctx, func(tx *redis.Tx) error {
			data, err := tx.Get(ctx, key).Bytes()
			if err != nil {
				return err
			}

			record, decErr := decodePasswordResetRecord(data)

			_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
				pipe.Del(ctx, key)
				return nil
			})
			if err != nil {
				return err
			}
			if decErr != nil {
				return decErr
			}
			if time.Now().Unix() >= record.ExpiresAt {
				return ErrResetNotFound
			}

			matched = record
			return nil
		}, key)

		if errors.Is(err, redis.TxFailedErr) {
			continue
		}
		if err != nil {
			switch {
			case errors.Is(err, redis.Nil):
				return nil, ErrResetNotFound
			case errors.Is(err, ErrResetNotFound), errors.Is(err, ErrResetCorrupt):
				return nil, err
			default:
				return nil, fmt.Errorf("%w: %v", ErrResetRedisUnavailable, err)
			}
		}

		return matched, nil
	}

	return nil, fmt.Errorf("%w: %w", ErrResetRedisUnavailable, redis.TxFailedErr)
}

// Restore puts a consumed record back for the rest of its lifetime. It is
// a no-op when the record has already expired.
func (s *PasswordResetStore) Restore(ctx context.Context, token string, record *PasswordResetRecord) error {
	ttl := record.Remaining(time.Now())
	if ttl <= 0 {
		return nil
	}
	if err := s.redis.SetNX(ctx, s.key(token), encodePasswordResetRecord(record), ttl).Err(); err != nil {
		return fmt.Errorf("%w: %v", ErrResetRedisUnavailable, err)
	}
	return nil
}

// Delete removes the token. Deleting a missing token is not an error.
func (s *PasswordResetStore) Delete(ctx context.Context, token string) error {
	if err := s.redis.Del(ctx, s.key(token)).Err(); err != nil {
		return fmt.Errorf("%w: %v", ErrResetRedisUnavailable, err)
	}
	return nil
}

const resetRecordSize = 1 + 8 + 8

func encodePasswordResetRecord(record *PasswordResetRecord) []byte {
	buf := make([]byte, resetRecordSize)
	buf[0] = resetRecordVersionV1
	binary.BigEndian.PutUint64(buf[1:9], uint64(record.UserID))
	binary.BigEndian.PutUint64(buf[9:17], uint64(record.ExpiresAt))
	return buf
}

func decodePasswordResetRecord(data []byte) (*PasswordResetRecord, error) {
	if len(data) != resetRecordSize || data[0] != resetRecordVersionV1 {
		return nil, ErrResetCorrupt
	}
	return &PasswordResetRecord{
		UserID:    int64(binary.BigEndian.Uint64(data[1:9])),
		ExpiresAt: int64(binary.BigEndian.Uint64(data[9:17])),
	}, nil
}
