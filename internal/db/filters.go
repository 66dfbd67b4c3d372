// Package db provides search filter building functionality.
package db

import (
	"fmt"
	"strings"
	"time"

	"github.com/steven-d-pennington/restricted-diet-app-sub003/internal/models"
)

// Filter represents a single search filter condition.
type Filter interface {
	// SQL returns the SQL fragment for this filter
	SQL() string

	// Args returns the arguments for this filter
	Args() []interface{}

	// Valid checks if the filter is valid
	Valid() bool
}

// SafetyLevelFilter narrows results to one or more safety levels.
type SafetyLevelFilter struct {
	Levels []string
}

// Valid checks that every level is a recognized safety level.
func (f *SafetyLevelFilter) Valid() bool {
	if len(f.Levels) == 0 {
		return false
	}
	for _, level := range f.Levels {
		if !models.SafetyLevel(level).Valid() {
			return false
		}
	}
	return true
}

// SQL returns the SQL fragment for safety level filtering.
func (f *SafetyLevelFilter) SQL() string {
	placeholders := make([]string, len(f.Levels))
	for i := range f.Levels {
		placeholders[i] = "?"
	}
	return "cp.safety_level IN (" + strings.Join(placeholders, ", ") + ")"
}

// Args returns the arguments for safety level filtering.
func (f *SafetyLevelFilter) Args() []interface{} {
	args := make([]interface{}, len(f.Levels))
	for i, level := range f.Levels {
		args[i] = level
	}
	return args
}

// CategoryFilter narrows results to a product category.
type CategoryFilter struct {
	Category string
}

// Valid checks if the category is usable.
func (f *CategoryFilter) Valid() bool {
	return strings.TrimSpace(f.Category) != ""
}

// SQL returns the SQL fragment for category filtering.
func (f *CategoryFilter) SQL() string {
	return "cp.category = ?"
}

// Args returns the arguments for category filtering.
func (f *CategoryFilter) Args() []interface{} {
	return []interface{}{f.Category}
}

// DateRangeFilter filters by cache recency.
type DateRangeFilter struct {
	From int64 // Unix timestamp
	To   int64 // Unix timestamp
}

// Valid checks if the date range is valid.
func (f *DateRangeFilter) Valid() bool {
	// At least one boundary should be set
	if f.From == 0 && f.To == 0 {
		return false
	}
	// From should be before To (if both are set)
	if f.From > 0 && f.To > 0 && f.From > f.To {
		return false
	}
	// To should not be in the future
	if f.To > 0 && f.To > time.Now().Unix()+86400 {
		return false // Allow 1 day of clock skew
	}
	return true
}

// SQL returns the SQL fragment for date range filtering.
func (f *DateRangeFilter) SQL() string {
	var parts []string
	if f.From > 0 {
		parts = append(parts, "cp.cached_at >= ?")
	}
	if f.To > 0 {
		parts = append(parts, "cp.cached_at <= ?")
	}
	return strings.Join(parts, " AND ")
}

// Args returns the arguments for date range filtering.
func (f *DateRangeFilter) Args() []interface{} {
	var args []interface{}
	if f.From > 0 {
		args = append(args, f.From)
	}
	if f.To > 0 {
		args = append(args, f.To)
	}
	return args
}

// FilterBuilder builds SQL filter conditions from multiple filters.
type FilterBuilder struct {
	filters []Filter
}

// NewFilterBuilder creates a new FilterBuilder.
func NewFilterBuilder() *FilterBuilder {
	return &FilterBuilder{
		filters: make([]Filter, 0),
	}
}

// SafetyLevels adds a safety level filter.
func (fb *FilterBuilder) SafetyLevels(levels ...string) *FilterBuilder {
	filter := &SafetyLevelFilter{Levels: levels}
	if filter.Valid() {
		fb.filters = append(fb.filters, filter)
	}
	return fb
}

// Category adds a category filter.
func (fb *FilterBuilder) Category(category string) *FilterBuilder {
	filter := &CategoryFilter{Category: category}
	if filter.Valid() {
		fb.filters = append(fb.filters, filter)
	}
	return fb
}

// DateRange adds a date range filter.
func (fb *FilterBuilder) DateRange(from, to int64) *FilterBuilder {
	filter := &DateRangeFilter{From: from, To: to}
	if filter.Valid() {
		fb.filters = append(fb.filters, filter)
	}
	return fb
}

// DateFrom adds a "from date" filter.
func (fb *FilterBuilder) DateFrom(from int64) *FilterBuilder {
	return fb.DateRange(from, 0)
}

// DateTo adds a "to date" filter.
func (fb *FilterBuilder) DateTo(to int64) *FilterBuilder {
	return fb.DateRange(0, to)
}

// HasFilters returns true if any filters have been added.
func (fb *FilterBuilder) HasFilters() bool {
	return len(fb.filters) > 0
}

// Count returns the number of filters.
func (fb *FilterBuilder) Count() int {
	return len(fb.filters)
}

// Build builds the SQL WHERE fragment and returns the arguments.
func (fb *FilterBuilder) Build() (string, []interface{}) {
	if !fb.HasFilters() {
		return "", nil
	}

	var sqlParts []string
	var args []interface{}

	for _, filter := range fb.filters {
		sqlParts = append(sqlParts, filter.SQL())
		args = append(args, filter.Args()...)
	}

	return strings.Join(sqlParts, " AND "), args
}

// Reset clears all filters.
func (fb *FilterBuilder) Reset() *FilterBuilder {
	fb.filters = make([]Filter, 0)
	return fb
}

// Clone creates a copy of the FilterBuilder.
func (fb *FilterBuilder) Clone() *FilterBuilder {
	clone := NewFilterBuilder()
	clone.filters = append(clone.filters, fb.filters...)
	return clone
}

// String returns a string representation of the filters (for debugging).
func (fb *FilterBuilder) String() string {
	if !fb.HasFilters() {
		return "(no filters)"
	}

	var parts []string
	for _, filter := range fb.filters {
		parts = append(parts, fmt.Sprintf("%T", filter))
	}
	return strings.Join(parts, ", ")
}

// filtersFromSearchOptions converts SearchOptions into a FilterBuilder.
func filtersFromSearchOptions(opts *SearchOptions) *FilterBuilder {
	fb := NewFilterBuilder()

	if len(opts.SafetyLevels) > 0 {
		fb.SafetyLevels(opts.SafetyLevels...)
	}
	if opts.Category != "" {
		fb.Category(opts.Category)
	}
	if opts.CachedFrom > 0 || opts.CachedTo > 0 {
		fb.DateRange(opts.CachedFrom, opts.CachedTo)
	}

	return fb
}

// ValidateDateRange validates a date range.
func ValidateDateRange(from, to int64) error {
	filter := &DateRangeFilter{From: from, To: to}
	if !filter.Valid() {
		return fmt.Errorf("invalid date range: from=%d, to=%d", from, to)
	}
	return nil
}

// SafetyLevelsFromCommaString parses safety levels from a
// comma-separated string, dropping empty entries.
func SafetyLevelsFromCommaString(s string) []string {
	parts := strings.Split(s, ",")
	result := make([]string, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p != "" {
			result = append(result, p)
		}
	}
	return result
}
