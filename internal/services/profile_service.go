// Package services holds the domain read models over the backend:
// the account profile, the family roster, and restaurant lookups. Each
// service caches its last refresh and answers derived questions with
// plain filters; safety scoring itself is always the backend's job.
package services

import (
	"context"
	"sync"

	"github.com/steven-d-pennington/restricted-diet-app-sub003/internal/backend"
	"github.com/steven-d-pennington/restricted-diet-app-sub003/internal/errors"
	"github.com/steven-d-pennington/restricted-diet-app-sub003/internal/logging"
	"github.com/steven-d-pennington/restricted-diet-app-sub003/internal/models"
)

// ProfileService caches the signed-in account's profile and dietary
// restrictions.
type ProfileService struct {
	client *backend.Client
	logger *logging.Logger

	mu           sync.RWMutex
	userID       string
	profile      *backend.Profile
	restrictions []backend.DietaryRestriction
}

// NewProfileService creates the service. State is empty until Refresh.
func NewProfileService(client *backend.Client) *ProfileService {
	return &ProfileService{
		client: client,
		logger: logging.Get().WithComponent("services"),
	}
}

// Refresh loads the profile and restriction rows for a user. A missing
// profile row is not an error; accounts created before completing
// onboarding have restrictions but no profile.
func (s *ProfileService) Refresh(ctx context.Context, userID string) error {
	if userID == "" {
		return errors.New(errors.ErrInvalid, "user id is required")
	}

	profile, err := s.client.GetProfile(ctx, userID)
	if err != nil && !errors.Is(err, errors.ErrNotFound) {
		return err
	}

	restrictions, err := s.client.DietaryRestrictions(ctx, userID)
	if err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.userID = userID
	s.profile = profile
	s.restrictions = restrictions
	return nil
}

// Clear drops all cached state, for sign-out.
func (s *ProfileService) Clear() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.userID = ""
	s.profile = nil
	s.restrictions = nil
}

// Profile returns a copy of the cached profile row, if present.
func (s *ProfileService) Profile() (backend.Profile, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.profile == nil {
		return backend.Profile{}, false
	}
	return *s.profile, true
}

// Restrictions returns a copy of the cached restriction rows.
func (s *ProfileService) Restrictions() []backend.DietaryRestriction {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]backend.DietaryRestriction, len(s.restrictions))
	copy(out, s.restrictions)
	return out
}

// CriticalRestrictions returns the restrictions requiring strict
// avoidance (severe or life-threatening).
func (s *ProfileService) CriticalRestrictions() []backend.DietaryRestriction {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := []backend.DietaryRestriction{}
	for _, r := range s.restrictions {
		if r.Severity.Critical() {
			out = append(out, r)
		}
	}
	return out
}

// HasLifeThreateningRestrictions reports whether any restriction is
// life-threatening. Shells use this to pick the strict warning UI.
func (s *ProfileService) HasLifeThreateningRestrictions() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, r := range s.restrictions {
		if r.Severity == models.SeverityLifeThreatening {
			return true
		}
	}
	return false
}

// RestrictionNames returns the restriction names in severity order as
// refreshed.
func (s *ProfileService) RestrictionNames() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	names := make([]string, len(s.restrictions))
	for i, r := range s.restrictions {
		names[i] = r.Name
	}
	return names
}
