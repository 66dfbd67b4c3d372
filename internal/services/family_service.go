package services

import (
	"context"
	"sort"
	"sync"

	"github.com/steven-d-pennington/restricted-diet-app-sub003/internal/backend"
	"github.com/steven-d-pennington/restricted-diet-app-sub003/internal/errors"
	"github.com/steven-d-pennington/restricted-diet-app-sub003/internal/logging"
)

// FamilyService caches the account's family members and their
// restrictions.
type FamilyService struct {
	client *backend.Client
	logger *logging.Logger

	mu      sync.RWMutex
	userID  string
	members []backend.FamilyMember
}

// NewFamilyService creates the service. State is empty until Refresh.
func NewFamilyService(client *backend.Client) *FamilyService {
	return &FamilyService{
		client: client,
		logger: logging.Get().WithComponent("services"),
	}
}

// Refresh loads the member roster with embedded restrictions.
func (s *FamilyService) Refresh(ctx context.Context, userID string) error {
	if userID == "" {
		return errors.New(errors.ErrInvalid, "user id is required")
	}

	members, err := s.client.FamilyMembers(ctx, userID)
	if err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.userID = userID
	s.members = members
	return nil
}

// Clear drops all cached state, for sign-out.
func (s *FamilyService) Clear() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.userID = ""
	s.members = nil
}

// Members returns a copy of the cached roster.
func (s *FamilyService) Members() []backend.FamilyMember {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]backend.FamilyMember, len(s.members))
	copy(out, s.members)
	return out
}

// Member returns the cached row for a member id.
func (s *FamilyService) Member(memberID string) (backend.FamilyMember, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, m := range s.members {
		if m.ID == memberID {
			return m, true
		}
	}
	return backend.FamilyMember{}, false
}

// MembersWithCriticalRestrictions returns members having at least one
// severe or life-threatening restriction.
func (s *FamilyService) MembersWithCriticalRestrictions() []backend.FamilyMember {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := []backend.FamilyMember{}
	for _, m := range s.members {
		for _, r := range m.Restrictions {
			if r.Severity.Critical() {
				out = append(out, m)
				break
			}
		}
	}
	return out
}

// AnyCriticalRestrictions reports whether any member needs strict
// avoidance handling.
func (s *FamilyService) AnyCriticalRestrictions() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, m := range s.members {
		for _, r := range m.Restrictions {
			if r.Severity.Critical() {
				return true
			}
		}
	}
	return false
}

// HouseholdRestrictionNames returns the distinct restriction names
// across all members, sorted. Shells show it as the combined avoid
// list when shopping for the household.
func (s *FamilyService) HouseholdRestrictionNames() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()

	seen := make(map[string]bool)
	names := []string{}
	for _, m := range s.members {
		for _, r := range m.Restrictions {
			if r.Name == "" || seen[r.Name] {
				continue
			}
			seen[r.Name] = true
			names = append(names, r.Name)
		}
	}
	sort.Strings(names)
	return names
}
