// Package models provides data model definitions for the scanner core.
package models

// SafetyLevel describes how compatible a product is with the active
// dietary restrictions. Values arrive from the backend assessment
// service; the core never computes them.
type SafetyLevel string

const (
	SafetySafe    SafetyLevel = "safe"
	SafetyCaution SafetyLevel = "caution"
	SafetyWarning SafetyLevel = "warning"
	SafetyDanger  SafetyLevel = "danger"
	SafetyUnknown SafetyLevel = "unknown"
)

// Valid reports whether the level is one of the known enumeration values.
func (l SafetyLevel) Valid() bool {
	switch l {
	case SafetySafe, SafetyCaution, SafetyWarning, SafetyDanger, SafetyUnknown:
		return true
	}
	return false
}

// Dangerous reports whether the level counts toward the dangerous bucket
// in history statistics (danger or warning).
func (l SafetyLevel) Dangerous() bool {
	return l == SafetyDanger || l == SafetyWarning
}

// Severity describes the medical seriousness of a dietary restriction.
type Severity string

const (
	SeverityMild            Severity = "mild"
	SeverityModerate        Severity = "moderate"
	SeveritySevere          Severity = "severe"
	SeverityLifeThreatening Severity = "life_threatening"
)

// Valid reports whether the severity is a known enumeration value.
func (s Severity) Valid() bool {
	switch s {
	case SeverityMild, SeverityModerate, SeveritySevere, SeverityLifeThreatening:
		return true
	}
	return false
}

// Critical reports whether the severity requires strict avoidance.
func (s Severity) Critical() bool {
	return s == SeveritySevere || s == SeverityLifeThreatening
}

// SafetyAssessment is the backend's verdict for a product against the
// active profile. Only OverallSafety is required; the remaining fields
// pass through opaquely.
type SafetyAssessment struct {
	OverallSafety    SafetyLevel `json:"overall_safety"`
	FlaggedAllergens []string    `json:"flagged_allergens,omitempty"`
	Notes            string      `json:"notes,omitempty"`
	AssessedAt       int64       `json:"assessed_at,omitempty"`
}

// Level returns the overall safety level, or unknown for a nil assessment.
func (a *SafetyAssessment) Level() SafetyLevel {
	if a == nil || a.OverallSafety == "" {
		return SafetyUnknown
	}
	return a.OverallSafety
}
