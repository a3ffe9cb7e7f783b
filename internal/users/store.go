package users

import (
	"context"
	"errors"
	"fmt"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/nnh1125/jumboboxd/internal/auth"
)

var ErrUserNotFound = errors.New("user not found")

type Store struct {
	db *gorm.DB
}

func NewStore(db *gorm.DB) *Store {
	return &Store{db: db}
}

// FindByExternalID returns ErrUserNotFound when no row exists.
func (s *Store) FindByExternalID(ctx context.Context, externalID string) (*User, error) {
	var u User
	err := s.db.WithContext(ctx).Where("external_id = ?", externalID).First(&u).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrUserNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("find user: %w", err)
	}
	return &u, nil
}

// Upsert inserts p or refreshes email and names of the existing row with the
// same external id, and returns the stored row.
func (s *Store) Upsert(ctx context.Context, p auth.Profile) (*User, error) {
	u := User{
		ExternalID:  p.ExternalID,
		Email:       p.Email,
		Username:    p.Username,
		DisplayName: p.DisplayName,
	}
	err := s.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "external_id"}},
		DoUpdates: clause.AssignmentColumns([]string{"email", "username", "display_name", "updated_at"}),
	}).Create(&u).Error
	if err != nil {
		return nil, fmt.Errorf("upsert user: %w", err)
	}
	return s.FindByExternalID(ctx, p.ExternalID)
}
