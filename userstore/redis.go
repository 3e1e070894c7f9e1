package userstore

import (
	"bytes"
	"context"
	"encoding/binary"
	"errors"
	"fmt"
	"io"

	"github.com/MrEthical07/authcore/identity"
	"github.com/redis/go-redis/v9"
)

const (
	accountRecordVersion1 = 1

	flagRequires2FA = 1 << 0
)

// RedisStore keeps one key per account, written with SETNX so registration
// is atomic across processes.
type RedisStore struct {
	redis    redis.UniversalClient
	prefix   string
	verifier Verifier
}

// NewRedisStore returns a RedisStore. An empty prefix defaults to "usr".
func NewRedisStore(redisClient redis.UniversalClient, prefix string, verifier Verifier) *RedisStore {
	if prefix == "" {
		prefix = "usr"
	}
	return &RedisStore{
		redis:    redisClient,
		prefix:   prefix,
		verifier: verifier,
	}
}

func (s *RedisStore) key(email identity.Email) string {
	return s.prefix + ":" + email.String()
}

// Add implements Store.
func (s *RedisStore) Add(ctx context.Context, acct Account) error {
	if err := checkAccount(acct); err != nil {
		return err
	}
	encoded, err := encodeAccount(acct)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrUnexpected, err)
	}
	created, err := s.redis.SetNX(ctx, s.key(acct.Email), encoded, 0).Result()
	if err != nil {
		return fmt.Errorf("%w: %v", ErrUnexpected, err)
	}
	if !created {
		return ErrAlreadyExists
	}
	return nil
}

// Get implements Store.
func (s *RedisStore) Get(ctx context.Context, email identity.Email) (Account, error) {
	data, err := s.redis.Get(ctx, s.key(email)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return Account{}, ErrNotFound
		}
		return Account{}, fmt.Errorf("%w: %v", ErrUnexpected, err)
	}

	acct, err := decodeAccount(data)
	if err != nil {
		return Account{}, fmt.Errorf("%w: %v", ErrUnexpected, err)
	}
	if acct.Email != email {
		return Account{}, fmt.Errorf("%w: record email does not match key", ErrUnexpected)
	}
	return acct, nil
}

// Validate implements Store.
func (s *RedisStore) Validate(ctx context.Context, email identity.Email, pw identity.Password) error {
	acct, err := s.Get(ctx, email)
	if err != nil {
		return err
	}
	return verifyAccount(ctx, s.verifier, acct, pw)
}

func encodeAccount(acct Account) ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte(accountRecordVersion1)

	var flags byte
	if acct.Requires2FA {
		flags |= flagRequires2FA
	}
	buf.WriteByte(flags)

	email := acct.Email.String()
	if len(email) > 65535 || len(acct.PasswordHash) > 65535 {
		return nil, errors.New("account field length exceeded")
	}
	if err := binary.Write(&buf, binary.BigEndian, uint16(len(email))); err != nil {
		return nil, err
	}
	buf.WriteString(email)
	if err := binary.Write(&buf, binary.BigEndian, uint16(len(acct.PasswordHash))); err != nil {
		return nil, err
	}
	buf.WriteString(acct.PasswordHash)

	return buf.Bytes(), nil
}

func decodeAccount(data []byte) (Account, error) {
	reader := bytes.NewReader(data)

	version, err := reader.ReadByte()
	if err != nil {
		return Account{}, err
	}
	if version != accountRecordVersion1 {
		return Account{}, errors.New("invalid account record version")
	}

	flags, err := reader.ReadByte()
	if err != nil {
		return Account{}, err
	}

	rawEmail, err := readString(reader)
	if err != nil {
		return Account{}, err
	}
	hash, err := readString(reader)
	if err != nil {
		return Account{}, err
	}
	if reader.Len() != 0 {
		return Account{}, errors.New("trailing bytes in account record")
	}

	email, err := identity.ParseEmail(rawEmail)
	if err != nil {
		return Account{}, err
	}
	return Account{
		Email:        email,
		PasswordHash: hash,
		Requires2FA:  flags&flagRequires2FA != 0,
	}, nil
}

func readString(reader *bytes.Reader) (string, error) {
	var n uint16
	if err := binary.Read(reader, binary.BigEndian, &n); err != nil {
		return "", err
	}
	b := make([]byte, n)
	if _, err := io.ReadFull(reader, b); err != nil {
		return "", err
	}
	return string(b), nil
}
