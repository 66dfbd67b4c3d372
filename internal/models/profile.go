// Package models provides data model definitions for the scanner core.
package models

import "time"

// UserProfile is the signed-in user's account record.
type UserProfile struct {
	ID        UUID   `json:"id"`
	Email     string `json:"email"`
	FullName  string `json:"full_name,omitempty"`
	AvatarURL string `json:"avatar_url,omitempty"`
	CreatedAt int64  `json:"created_at"`
	UpdatedAt int64  `json:"updated_at"`
}

// Touch updates the UpdatedAt timestamp.
func (p *UserProfile) Touch() {
	p.UpdatedAt = time.Now().Unix()
}

// FamilyMember is a dependent whose restrictions the account manages.
type FamilyMember struct {
	ID           UUID   `json:"id"`
	ProfileID    UUID   `json:"profile_id"`
	Name         string `json:"name"`
	Relationship string `json:"relationship,omitempty"`
	BirthYear    int    `json:"birth_year,omitempty"`
	CreatedAt    int64  `json:"created_at"`
}

// DietaryRestriction is one allergy or diet rule attached to a profile
// or family member.
type DietaryRestriction struct {
	ID          UUID     `json:"id"`
	MemberID    UUID     `json:"member_id,omitempty"` // Empty for the account holder's own rows
	Name        string   `json:"name"`
	Severity    Severity `json:"severity"`
	Description string   `json:"description,omitempty"`
	IsVerified  bool     `json:"is_verified"` // Confirmed by a medical provider
	CreatedAt   int64    `json:"created_at"`
}

// CriticalRestrictions filters the rows whose severity requires strict
// avoidance (severe or life-threatening).
func CriticalRestrictions(restrictions []DietaryRestriction) []DietaryRestriction {
	var out []DietaryRestriction
	for _, r := range restrictions {
		if r.Severity.Critical() {
			out = append(out, r)
		}
	}
	return out
}
