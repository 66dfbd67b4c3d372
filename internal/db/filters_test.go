// Package db tests for search filter building.
package db

import (
	"strings"
	"testing"
	"time"
)

// =====================================================
// SafetyLevelFilter Tests
// =====================================================

func TestSafetyLevelFilter_Valid(t *testing.T) {
	tests := []struct {
		name   string
		levels []string
		want   bool
	}{
		{"single level", []string{"safe"}, true},
		{"multiple levels", []string{"danger", "warning"}, true},
		{"all levels", []string{"safe", "caution", "warning", "danger", "unknown"}, true},
		{"empty", nil, false},
		{"unknown level name", []string{"hazardous"}, false},
		{"mixed valid and invalid", []string{"safe", "bogus"}, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := &SafetyLevelFilter{Levels: tt.levels}
			if got := f.Valid(); got != tt.want {
				t.Errorf("Valid() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestSafetyLevelFilter_SQL(t *testing.T) {
	f := &SafetyLevelFilter{Levels: []string{"danger", "warning"}}

	if got := f.SQL(); got != "cp.safety_level IN (?, ?)" {
		t.Errorf("SQL() = %q", got)
	}
	args := f.Args()
	if len(args) != 2 || args[0] != "danger" || args[1] != "warning" {
		t.Errorf("Args() = %v", args)
	}
}

// =====================================================
// CategoryFilter Tests
// =====================================================

func TestCategoryFilter(t *testing.T) {
	f := &CategoryFilter{Category: "snacks"}
	if !f.Valid() {
		t.Error("Valid() should be true for a non-empty category")
	}
	if got := f.SQL(); got != "cp.category = ?" {
		t.Errorf("SQL() = %q", got)
	}
	if args := f.Args(); len(args) != 1 || args[0] != "snacks" {
		t.Errorf("Args() = %v", args)
	}

	empty := &CategoryFilter{Category: "   "}
	if empty.Valid() {
		t.Error("Valid() should be false for blank category")
	}
}

// =====================================================
// DateRangeFilter Tests
// =====================================================

func TestDateRangeFilter_Valid(t *testing.T) {
	now := time.Now().Unix()

	tests := []struct {
		name string
		from int64
		to   int64
		want bool
	}{
		{"both set", now - 3600, now, true},
		{"from only", now - 3600, 0, true},
		{"to only", 0, now, true},
		{"neither", 0, 0, false},
		{"inverted", now, now - 3600, false},
		{"far future to", 0, now + 172800, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := &DateRangeFilter{From: tt.from, To: tt.to}
			if got := f.Valid(); got != tt.want {
				t.Errorf("Valid() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestDateRangeFilter_SQL(t *testing.T) {
	both := &DateRangeFilter{From: 100, To: 200}
	if got := both.SQL(); got != "cp.cached_at >= ? AND cp.cached_at <= ?" {
		t.Errorf("SQL() = %q", got)
	}
	if args := both.Args(); len(args) != 2 {
		t.Errorf("Args() = %v", args)
	}

	fromOnly := &DateRangeFilter{From: 100}
	if got := fromOnly.SQL(); got != "cp.cached_at >= ?" {
		t.Errorf("SQL() = %q", got)
	}
}

// =====================================================
// FilterBuilder Tests
// =====================================================

func TestFilterBuilder_Build(t *testing.T) {
	fb := NewFilterBuilder().
		SafetyLevels("danger").
		Category("snacks").
		DateFrom(1000)

	if fb.Count() != 3 {
		t.Fatalf("Count() = %d, want 3", fb.Count())
	}

	sql, args := fb.Build()
	if !strings.Contains(sql, "cp.safety_level IN (?)") {
		t.Errorf("Build() sql missing safety clause: %q", sql)
	}
	if !strings.Contains(sql, "cp.category = ?") {
		t.Errorf("Build() sql missing category clause: %q", sql)
	}
	if !strings.Contains(sql, "cp.cached_at >= ?") {
		t.Errorf("Build() sql missing date clause: %q", sql)
	}
	if strings.Count(sql, " AND ") != 2 {
		t.Errorf("Build() sql joins = %q", sql)
	}
	if len(args) != 3 {
		t.Errorf("Build() args = %v", args)
	}
}

func TestFilterBuilder_skipsInvalidFilters(t *testing.T) {
	fb := NewFilterBuilder().
		SafetyLevels("bogus").
		Category("  ").
		DateRange(0, 0)

	if fb.HasFilters() {
		t.Error("invalid filters should not be added")
	}

	sql, args := fb.Build()
	if sql != "" || args != nil {
		t.Errorf("Build() = %q, %v, want empty", sql, args)
	}
}

func TestFilterBuilder_Reset(t *testing.T) {
	fb := NewFilterBuilder().Category("snacks")
	if !fb.HasFilters() {
		t.Fatal("expected a filter before Reset")
	}

	fb.Reset()
	if fb.HasFilters() {
		t.Error("Reset() should clear filters")
	}
}

func TestFilterBuilder_Clone(t *testing.T) {
	original := NewFilterBuilder().Category("snacks")
	clone := original.Clone()

	clone.SafetyLevels("danger")

	if original.Count() != 1 {
		t.Errorf("original Count() = %d, want 1", original.Count())
	}
	if clone.Count() != 2 {
		t.Errorf("clone Count() = %d, want 2", clone.Count())
	}
}

func TestFilterBuilder_String(t *testing.T) {
	empty := NewFilterBuilder()
	if got := empty.String(); got != "(no filters)" {
		t.Errorf("String() = %q", got)
	}

	fb := NewFilterBuilder().Category("snacks")
	if got := fb.String(); !strings.Contains(got, "CategoryFilter") {
		t.Errorf("String() = %q", got)
	}
}

func TestFiltersFromSearchOptions(t *testing.T) {
	opts := &SearchOptions{
		Query:        "almond",
		SafetyLevels: []string{"danger"},
		Category:     "snacks",
		CachedFrom:   1000,
	}

	fb := filtersFromSearchOptions(opts)
	if fb.Count() != 3 {
		t.Errorf("Count() = %d, want 3", fb.Count())
	}

	bare := filtersFromSearchOptions(&SearchOptions{Query: "almond"})
	if bare.HasFilters() {
		t.Error("options without filters should build an empty FilterBuilder")
	}
}

func TestValidateDateRange(t *testing.T) {
	if err := ValidateDateRange(100, 200); err != nil {
		t.Errorf("ValidateDateRange(100, 200) error = %v", err)
	}
	if err := ValidateDateRange(200, 100); err == nil {
		t.Error("ValidateDateRange(200, 100) should fail")
	}
	if err := ValidateDateRange(0, 0); err == nil {
		t.Error("ValidateDateRange(0, 0) should fail")
	}
}

func TestSafetyLevelsFromCommaString(t *testing.T) {
	got := SafetyLevelsFromCommaString(" danger, warning ,,caution ")
	if len(got) != 3 {
		t.Fatalf("len = %d, want 3", len(got))
	}
	if got[0] != "danger" || got[1] != "warning" || got[2] != "caution" {
		t.Errorf("got %v", got)
	}

	if got := SafetyLevelsFromCommaString(""); len(got) != 0 {
		t.Errorf("empty input should parse to no levels, got %v", got)
	}
}
