package users

import (
	"context"
	"errors"
	"strings"

	"github.com/charmbracelet/log"

	"github.com/nnh1125/jumboboxd/internal/apperr"
	"github.com/nnh1125/jumboboxd/internal/auth"
)

// Directory resolves external identities through the identity provider.
type Directory interface {
	LookupUser(ctx context.Context, externalID string) (*auth.Profile, error)
}

type Service struct {
	store     *Store
	directory Directory
	log       *log.Logger
}

func NewService(store *Store, directory Directory, logger *log.Logger) *Service {
	return &Service{store: store, directory: directory, log: logger}
}

// Sync pulls the identity from the provider and creates or refreshes the
// local user row.
func (s *Service) Sync(ctx context.Context, externalID string) (*User, error) {
	externalID = strings.TrimSpace(externalID)
	if externalID == "" {
		return nil, apperr.Validation("userId is required")
	}

	if s.directory == nil {
		return nil, apperr.Upstream("Failed to sync user", errors.New("no identity directory configured"))
	}

	profile, err := s.directory.LookupUser(ctx, externalID)
	if err != nil {
		if errors.Is(err, auth.ErrIdentityNotFound) {
			return nil, apperr.NotFound("User not found in identity provider")
		}
		return nil, apperr.Upstream("Failed to sync user", err)
	}
	profile.ExternalID = externalID

	user, err := s.store.Upsert(ctx, *profile)
	if err != nil {
		return nil, err
	}
	s.log.Info("user synced", "external_id", externalID, "id", user.ID)
	return user, nil
}

// Get returns the local user for an external id.
func (s *Service) Get(ctx context.Context, externalID string) (*User, error) {
	user, err := s.store.FindByExternalID(ctx, externalID)
	if errors.Is(err, ErrUserNotFound) {
		return nil, apperr.NotFound("User not found")
	}
	return user, err
}
