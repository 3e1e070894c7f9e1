package codestore

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/MrEthical07/authcore/identity"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type challengeRow struct {
	Email       string `gorm:"primaryKey;type:varbinary(320)"`
	ChallengeID string `gorm:"size:36;not null"`
	Code        string `gorm:"size:6;not null"`
	IssuedAt    int64  `gorm:"not null"`
	ExpiresAt   int64  `gorm:"not null;index"`
}

func (challengeRow) TableName() string {
	return "one_time_challenges"
}

// GormStore keeps pending challenges in the "one_time_challenges" table, one
// row per email. Timestamps are stored as unix milliseconds.
type GormStore struct {
	db   *gorm.DB
	opts Options
}

// NewGormStore migrates the challenge table and returns a GormStore.
func NewGormStore(db *gorm.DB, opts Options) (*GormStore, error) {
	if err := db.AutoMigrate(&challengeRow{}); err != nil {
		return nil, fmt.Errorf("%w: migrate one_time_challenges: %v", ErrUnexpected, err)
	}
	return &GormStore{db: db, opts: opts.withDefaults()}, nil
}

// Issue implements Store with an upsert keyed on email.
func (s *GormStore) Issue(ctx context.Context, email identity.Email, id identity.ChallengeID, code identity.OneTimeCode) error {
	c := newChallenge(s.opts, email, id, code)
	row := challengeRow{
		Email:       email.String(),
		ChallengeID: id.String(),
		Code:        code.Expose(),
		IssuedAt:    c.IssuedAt.UnixMilli(),
		ExpiresAt:   c.ExpiresAt.UnixMilli(),
	}
	err := s.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "email"}},
		DoUpdates: clause.AssignmentColumns([]string{"challenge_id", "code", "issued_at", "expires_at"}),
	}).Create(&row).Error
	if err != nil {
		return fmt.Errorf("%w: %v", ErrUnexpected, err)
	}
	return nil
}

// Get implements Store.
func (s *GormStore) Get(ctx context.Context, email identity.Email) (Challenge, error) {
	var row challengeRow
	err := s.db.WithContext(ctx).
		Where("email = ? AND expires_at > ?", email.String(), s.opts.Now().UnixMilli()).
		Take(&row).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return Challenge{}, ErrNotFound
		}
		return Challenge{}, fmt.Errorf("%w: %v", ErrUnexpected, err)
	}
	c, err := buildChallenge(row.Email, row.ChallengeID, row.Code, row.IssuedAt, row.ExpiresAt)
	if err != nil {
		return Challenge{}, fmt.Errorf("%w: %v", ErrUnexpected, err)
	}
	if c.Email != email {
		return Challenge{}, fmt.Errorf("%w: row email does not match key", ErrUnexpected)
	}
	return c, nil
}

// Consume implements Store with a single conditional DELETE.
func (s *GormStore) Consume(ctx context.Context, email identity.Email, id identity.ChallengeID) error {
	res := s.db.WithContext(ctx).
		Where("email = ? AND challenge_id = ? AND expires_at > ?", email.String(), id.String(), s.opts.Now().UnixMilli()).
		Delete(&challengeRow{})
	if res.Error != nil {
		return fmt.Errorf("%w: %v", ErrUnexpected, res.Error)
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

// Prune deletes challenges that expired at or before now.
func (s *GormStore) Prune(ctx context.Context, now time.Time) (int64, error) {
	res := s.db.WithContext(ctx).Where("expires_at <= ?", now.UnixMilli()).Delete(&challengeRow{})
	if res.Error != nil {
		return 0, fmt.Errorf("%w: %v", ErrUnexpected, res.Error)
	}
	return res.RowsAffected, nil
}
