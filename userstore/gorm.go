package userstore

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/MrEthical07/authcore/identity"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// accountRow is the relational shape of an Account. The email column is
// binary so lookups compare bytes regardless of the server collation.
type accountRow struct {
	Email        string `gorm:"primaryKey;type:varbinary(320)"`
	PasswordHash string `gorm:"size:255;not null"`
	Requires2FA  bool   `gorm:"column:requires_2fa;not null;default:false"`
	CreatedAt    time.Time
}

func (accountRow) TableName() string {
	return "accounts"
}

// GormStore keeps accounts in the "accounts" table. Uniqueness is enforced by
// the primary key, so concurrent inserts for one email cannot both succeed.
type GormStore struct {
	db       *gorm.DB
	verifier Verifier
}

// NewGormStore migrates the accounts table and returns a GormStore.
func NewGormStore(db *gorm.DB, verifier Verifier) (*GormStore, error) {
	if err := db.AutoMigrate(&accountRow{}); err != nil {
		return nil, fmt.Errorf("%w: migrate accounts: %v", ErrUnexpected, err)
	}
	return &GormStore{db: db, verifier: verifier}, nil
}

// Add implements Store.
func (s *GormStore) Add(ctx context.Context, acct Account) error {
	if err := checkAccount(acct); err != nil {
		return err
	}
	row := accountRow{
		Email:        acct.Email.String(),
		PasswordHash: acct.PasswordHash,
		Requires2FA:  acct.Requires2FA,
	}
	res := s.db.WithContext(ctx).Clauses(clause.OnConflict{DoNothing: true}).Create(&row)
	if res.Error != nil {
		return fmt.Errorf("%w: %v", ErrUnexpected, res.Error)
	}
	if res.RowsAffected == 0 {
		return ErrAlreadyExists
	}
	return nil
}

// Get implements Store.
func (s *GormStore) Get(ctx context.Context, email identity.Email) (Account, error) {
	var row accountRow
	err := s.db.WithContext(ctx).Where("email = ?", email.String()).Take(&row).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return Account{}, ErrNotFound
		}
		return Account{}, fmt.Errorf("%w: %v", ErrUnexpected, err)
	}
	if row.Email != email.String() {
		return Account{}, fmt.Errorf("%w: row email does not match key", ErrUnexpected)
	}
	return Account{
		Email:        email,
		PasswordHash: row.PasswordHash,
		Requires2FA:  row.Requires2FA,
	}, nil
}

// Validate implements Store.
func (s *GormStore) Validate(ctx context.Context, email identity.Email, pw identity.Password) error {
	acct, err := s.Get(ctx, email)
	if err != nil {
		return err
	}
	return verifyAccount(ctx, s.verifier, acct, pw)
}
