package codestore

import (
	"bytes"
	"context"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/MrEthical07/authcore/identity"
	"github.com/redis/go-redis/v9"
)

const challengeRecordVersion1 = 1

// RedisStore keeps one key per email holding the pending challenge, with a
// Redis TTL matching the challenge expiry.
type RedisStore struct {
	redis  redis.UniversalClient
	prefix string
	opts   Options
}

// NewRedisStore returns a RedisStore. An empty prefix defaults to "otc".
func NewRedisStore(redisClient redis.UniversalClient, prefix string, opts Options) *RedisStore {
	if prefix == "" {
		prefix = "otc"
	}
	return &RedisStore{
		redis:  redisClient,
		prefix: prefix,
		opts:   opts.withDefaults(),
	}
}

func (s *RedisStore) key(email identity.Email) string {
	return s.prefix + ":" + email.String()
}

// Issue implements Store. SET replaces any pending challenge atomically.
func (s *RedisStore) Issue(ctx context.Context, email identity.Email, id identity.ChallengeID, code identity.OneTimeCode) error {
	c := newChallenge(s.opts, email, id, code)
	encoded, err := encodeChallenge(c)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrUnexpected, err)
	}
	if err := s.redis.Set(ctx, s.key(email), encoded, s.opts.TTL).Err(); err != nil {
		return fmt.Errorf("%w: %v", ErrUnexpected, err)
	}
	return nil
}

// Get implements Store.
func (s *RedisStore) Get(ctx context.Context, email identity.Email) (Challenge, error) {
	data, err := s.redis.Get(ctx, s.key(email)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return Challenge{}, ErrNotFound
		}
		return Challenge{}, fmt.Errorf("%w: %v", ErrUnexpected, err)
	}
	c, err := s.decodeFor(email, data)
	if err != nil {
		return Challenge{}, err
	}
	if c.Expired(s.opts.Now()) {
		return Challenge{}, ErrNotFound
	}
	return c, nil
}

// Consume implements Store. The read, id comparison and delete run under
// WATCH so a challenge issued between them is left in place.
func (s *RedisStore) Consume(ctx context.Context, email identity.Email, id identity.ChallengeID) error {
	const maxRetries = 4
	key := s.key(email)

	for i := 0; i < maxRetries; i++ {
		err := s.redis.Watch(ctx, func(tx *redis.Tx) error {
			data, err := tx.Get(ctx, key).Bytes()
			if err != nil {
				return err
			}
			c, err := s.decodeFor(email, data)
			if err != nil {
				return err
			}
			expired := c.Expired(s.opts.Now())
			if !expired && !c.ChallengeID.Equal(id) {
				return ErrNotFound
			}
			_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
				pipe.Del(ctx, key)
				return nil
			})
			if err != nil {
				return err
			}
			if expired {
				return ErrNotFound
			}
			return nil
		}, key)

		if err == redis.TxFailedErr {
			continue
		}
		if err != nil {
			if errors.Is(err, redis.Nil) || errors.Is(err, ErrNotFound) {
				return ErrNotFound
			}
			if errors.Is(err, ErrUnexpected) {
				return err
			}
			return fmt.Errorf("%w: %v", ErrUnexpected, err)
		}
		return nil
	}

	return fmt.Errorf("%w: consume contention", ErrUnexpected)
}

func (s *RedisStore) decodeFor(email identity.Email, data []byte) (Challenge, error) {
	c, err := decodeChallenge(data)
	if err != nil {
		return Challenge{}, fmt.Errorf("%w: %v", ErrUnexpected, err)
	}
	if c.Email != email {
		return Challenge{}, fmt.Errorf("%w: record email does not match key", ErrUnexpected)
	}
	return c, nil
}

func encodeChallenge(c Challenge) ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte(challengeRecordVersion1)

	if err := binary.Write(&buf, binary.BigEndian, c.IssuedAt.UnixMilli()); err != nil {
		return nil, err
	}
	if err := binary.Write(&buf, binary.BigEndian, c.ExpiresAt.UnixMilli()); err != nil {
		return nil, err
	}
	for _, field := range []string{c.Email.String(), c.ChallengeID.String(), c.Code.Expose()} {
		if len(field) > 65535 {
			return nil, errors.New("challenge field length exceeded")
		}
		if err := binary.Write(&buf, binary.BigEndian, uint16(len(field))); err != nil {
			return nil, err
		}
		buf.WriteString(field)
	}
	return buf.Bytes(), nil
}

func decodeChallenge(data []byte) (Challenge, error) {
	reader := bytes.NewReader(data)

	version, err := reader.ReadByte()
	if err != nil {
		return Challenge{}, err
	}
	if version != challengeRecordVersion1 {
		return Challenge{}, errors.New("invalid challenge record version")
	}

	var issuedAt, expiresAt int64
	if err := binary.Read(reader, binary.BigEndian, &issuedAt); err != nil {
		return Challenge{}, err
	}
	if err := binary.Read(reader, binary.BigEndian, &expiresAt); err != nil {
		return Challenge{}, err
	}

	fields := make([]string, 3)
	for i := range fields {
		var n uint16
		if err := binary.Read(reader, binary.BigEndian, &n); err != nil {
			return Challenge{}, err
		}
		b := make([]byte, n)
		if _, err := io.ReadFull(reader, b); err != nil {
			return Challenge{}, err
		}
		fields[i] = string(b)
	}
	if reader.Len() != 0 {
		return Challenge{}, errors.New("trailing bytes in challenge record")
	}

	return buildChallenge(fields[0], fields[1], fields[2], issuedAt, expiresAt)
}

// buildChallenge revalidates stored fields so a corrupted record can never
// surface as a usable challenge.
func buildChallenge(rawEmail, rawID, rawCode string, issuedAtMs, expiresAtMs int64) (Challenge, error) {
	email, err := identity.ParseEmail(rawEmail)
	if err != nil {
		return Challenge{}, err
	}
	id, err := identity.ParseChallengeID(rawID)
	if err != nil {
		return Challenge{}, err
	}
	code, err := identity.ParseOneTimeCode(rawCode)
	if err != nil {
		return Challenge{}, err
	}
	return Challenge{
		Email:       email,
		ChallengeID: id,
		Code:        code,
		IssuedAt:    time.UnixMilli(issuedAtMs),
		ExpiresAt:   time.UnixMilli(expiresAtMs),
	}, nil
}
