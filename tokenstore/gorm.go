package tokenstore

import (
	"context"
	"errors"
	"fmt"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// revokedRow stores a token digest and its retention deadline in unix
// milliseconds. Zero retains forever.
type revokedRow struct {
	Digest      string `gorm:"primaryKey;size:64"`
	RetainUntil int64  `gorm:"not null;index"`
	CreatedAt   time.Time
}

func (revokedRow) TableName() string {
	return "revoked_tokens"
}

// GormStore keeps revoked token digests in the "revoked_tokens" table.
type GormStore struct {
	db   *gorm.DB
	opts Options
}

// NewGormStore migrates the revoked_tokens table and returns a GormStore.
func NewGormStore(db *gorm.DB, opts Options) (*GormStore, error) {
	if err := db.AutoMigrate(&revokedRow{}); err != nil {
		return nil, fmt.Errorf("%w: migrate revoked_tokens: %v", ErrUnexpected, err)
	}
	return &GormStore{db: db, opts: opts.withDefaults()}, nil
}

// Revoke implements Store. A repeated revoke only ever extends retention.
func (s *GormStore) Revoke(ctx context.Context, token string, expiresAt time.Time) error {
	var until int64
	if t := s.opts.retainUntil(expiresAt); !t.IsZero() {
		until = t.UnixMilli()
	}
	row := revokedRow{Digest: digest(token), RetainUntil: until}

	db := s.db.WithContext(ctx)
	res := db.Clauses(clause.OnConflict{DoNothing: true}).Create(&row)
	if res.Error != nil {
		return fmt.Errorf("%w: %v", ErrUnexpected, res.Error)
	}
	if res.RowsAffected > 0 {
		return nil
	}

	q := db.Model(&revokedRow{}).Where("digest = ? AND retain_until <> 0", row.Digest)
	if until != 0 {
		q = q.Where("retain_until < ?", until)
	}
	if err := q.Update("retain_until", until).Error; err != nil {
		return fmt.Errorf("%w: %v", ErrUnexpected, err)
	}
	return nil
}

// IsRevoked implements Store.
func (s *GormStore) IsRevoked(ctx context.Context, token string) (bool, error) {
	var row revokedRow
	err := s.db.WithContext(ctx).Select("digest").Where("digest = ?", digest(token)).Take(&row).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return false, nil
		}
		return false, fmt.Errorf("%w: %v", ErrUnexpected, err)
	}
	return true, nil
}

// Prune deletes entries whose retention ended before now.
func (s *GormStore) Prune(ctx context.Context, now time.Time) (int64, error) {
	res := s.db.WithContext(ctx).
		Where("retain_until <> 0 AND retain_until < ?", now.UnixMilli()).
		Delete(&revokedRow{})
	if res.Error != nil {
		return 0, fmt.Errorf("%w: %v", ErrUnexpected, res.Error)
	}
	return res.RowsAffected, nil
}
