// Package db provides search result highlighting functionality.
package db

import (
	"database/sql"
	"fmt"
	"html"
	"regexp"
	"strings"
)

// HighlightOptions controls how search terms are highlighted.
type HighlightOptions struct {
	// MaxChars is the maximum length of each snippet in characters
	MaxChars int

	// TagOpen is the HTML tag to use for opening highlight (default: <mark>)
	TagOpen string

	// TagClose is the HTML tag to use for closing highlight (default: </mark>)
	TagClose string
}

// DefaultHighlightOptions returns sensible defaults for highlighting.
func DefaultHighlightOptions() *HighlightOptions {
	return &HighlightOptions{
		MaxChars: 150,
		TagOpen:  "<mark>",
		TagClose: "</mark>",
	}
}

// HighlightedText contains a text snippet with highlighted search terms.
type HighlightedText struct {
	Text    string
	Snippet string
}

// HighlightResult contains highlighted versions of product fields.
type HighlightResult struct {
	Name     *HighlightedText
	Brand    *HighlightedText
	Category *HighlightedText
}

// Highlight extracts matched terms from FTS5 results for one cached
// product and wraps them in highlight tags.
func (r *Repository) Highlight(productID string, query string, opts *HighlightOptions) (*HighlightResult, error) {
	if opts == nil {
		opts = DefaultHighlightOptions()
	}

	// Remove FTS5 operators that interfere with snippet()
	cleanQuery := sanitizeQueryForHighlight(query)

	// The snippet() function extracts context around matches and marks
	// them with <b> tags; column order follows the FTS table definition.
	snippetQuery := `
		SELECT
			snippet(products_fts, 0, '<b>', '</b>', '...', ?) as name_snippet,
			snippet(products_fts, 1, '<b>', '</b>', '...', ?) as brand_snippet,
			snippet(products_fts, 2, '<b>', '</b>', '...', ?) as category_snippet
		FROM products_fts
		WHERE rowid = (SELECT rowid FROM cached_products WHERE id = ?)
			AND products_fts MATCH ?
		LIMIT 1
	`

	var nameSnippet, brandSnippet, categorySnippet sql.NullString
	err := r.db.QueryRow(snippetQuery,
		opts.MaxChars, opts.MaxChars, opts.MaxChars,
		productID, cleanQuery,
	).Scan(&nameSnippet, &brandSnippet, &categorySnippet)
	if err != nil {
		return nil, fmt.Errorf("failed to extract highlights: %w", err)
	}

	result := &HighlightResult{}
	result.Name = retagSnippet(nameSnippet, opts)
	result.Brand = retagSnippet(brandSnippet, opts)
	result.Category = retagSnippet(categorySnippet, opts)

	return result, nil
}

// retagSnippet swaps the FTS5 <b> markers for the configured tags.
func retagSnippet(value sql.NullString, opts *HighlightOptions) *HighlightedText {
	if !value.Valid || value.String == "" {
		return nil
	}
	snippet := strings.ReplaceAll(value.String, "<b>", opts.TagOpen)
	snippet = strings.ReplaceAll(snippet, "</b>", opts.TagClose)
	return &HighlightedText{
		Text:    snippet,
		Snippet: snippet,
	}
}

// HighlightInText highlights search terms in a given text without
// database access. Used for in-memory history search results.
func HighlightInText(text, query string, opts *HighlightOptions) (*HighlightedText, error) {
	if opts == nil {
		opts = DefaultHighlightOptions()
	}

	if text == "" || query == "" {
		return &HighlightedText{Text: text}, nil
	}

	terms := extractSearchTerms(query)

	pattern, err := buildHighlightPattern(terms)
	if err != nil {
		return nil, fmt.Errorf("failed to build highlight pattern: %w", err)
	}

	snippet := extractSnippet(text, pattern, opts.MaxChars)

	highlighted := pattern.ReplaceAllStringFunc(snippet, func(match string) string {
		return opts.TagOpen + match + opts.TagClose
	})

	// HTML-escape the text except for our highlight tags
	highlighted = escapeHTMLPreserveTags(highlighted, opts.TagOpen, opts.TagClose)

	return &HighlightedText{
		Text:    highlighted,
		Snippet: snippet,
	}, nil
}

// sanitizeQueryForHighlight removes FTS5 operators that interfere with snippet().
// Keeps the core search terms.
func sanitizeQueryForHighlight(query string) string {
	operators := []string{"AND", "OR", "NOT", "NEAR", "\"", "(", ")", "*", "^"}
	cleanQuery := query
	for _, op := range operators {
		cleanQuery = strings.ReplaceAll(cleanQuery, op, " ")
	}

	// Collapse multiple spaces
	cleanQuery = strings.Join(strings.Fields(cleanQuery), " ")
	return cleanQuery
}

// extractSearchTerms extracts individual search terms from a query string.
func extractSearchTerms(query string) []string {
	// Remove quotes and split on whitespace
	query = strings.ReplaceAll(query, "\"", "")
	parts := strings.Fields(query)

	var terms []string
	for _, part := range parts {
		// Skip FTS5 operators
		upper := strings.ToUpper(part)
		if upper == "AND" || upper == "OR" || upper == "NOT" {
			continue
		}
		// Remove trailing wildcards
		part = strings.TrimSuffix(part, "*")
		if len(part) > 0 {
			terms = append(terms, part)
		}
	}

	if len(terms) == 0 {
		return []string{query}
	}
	return terms
}

// buildHighlightPattern creates a regex pattern for matching search terms.
func buildHighlightPattern(terms []string) (*regexp.Regexp, error) {
	if len(terms) == 0 {
		return regexp.Compile(`(?i).`)
	}

	// Build pattern that matches any of the terms (case-insensitive)
	var patterns []string
	for _, term := range terms {
		patterns = append(patterns, regexp.QuoteMeta(term))
	}

	pattern := "(?i)(" + strings.Join(patterns, "|") + ")"
	return regexp.Compile(pattern)
}

// extractSnippet extracts a snippet of text containing the first match.
func extractSnippet(text string, pattern *regexp.Regexp, maxChars int) string {
	if len(text) <= maxChars {
		return text
	}

	loc := pattern.FindStringIndex(text)
	if loc == nil {
		// No match found, return beginning of text
		return text[:maxChars] + "..."
	}

	// Calculate snippet boundaries centered on the match
	matchStart := loc[0]
	matchEnd := loc[1]
	matchLength := matchEnd - matchStart

	// Allocate equal space before and after the match
	contextSize := (maxChars - matchLength) / 2
	start := matchStart - contextSize
	end := matchEnd + contextSize

	// Adjust boundaries
	if start < 0 {
		start = 0
		end = maxChars
	}
	if end > len(text) {
		end = len(text)
		start = end - maxChars
		if start < 0 {
			start = 0
		}
	}

	snippet := text[start:end]

	// Add ellipsis if truncated
	if start > 0 {
		snippet = "..." + snippet
	}
	if end < len(text) {
		snippet = snippet + "..."
	}

	return snippet
}

// escapeHTMLPreserveTags escapes HTML but preserves highlight tags.
func escapeHTMLPreserveTags(text, tagOpen, tagClose string) string {
	// Placeholders protect highlight tags during escaping
	placeholderOpen := "\x00HLIGHT_OPEN\x00"
	placeholderClose := "\x00HLIGHT_CLOSE\x00"

	text = strings.ReplaceAll(text, tagOpen, placeholderOpen)
	text = strings.ReplaceAll(text, tagClose, placeholderClose)

	text = html.EscapeString(text)

	text = strings.ReplaceAll(text, placeholderOpen, tagOpen)
	text = strings.ReplaceAll(text, placeholderClose, tagClose)

	return text
}

// ExtractMatchedTerms identifies which terms from the query matched in the text.
func ExtractMatchedTerms(text, query string) []string {
	terms := extractSearchTerms(query)
	pattern, err := buildHighlightPattern(terms)
	if err != nil {
		return nil
	}

	var matched []string
	seen := make(map[string]bool)

	matches := pattern.FindAllString(text, -1)
	for _, match := range matches {
		upperMatch := strings.ToUpper(match)
		if !seen[upperMatch] {
			matched = append(matched, match)
			seen[upperMatch] = true
		}
	}

	return matched
}

// TruncateWords intelligently truncates text at word boundaries.
func TruncateWords(text string, maxChars int) string {
	if len(text) <= maxChars {
		return text
	}

	// Find the last word boundary before maxChars
	truncated := text[:maxChars]
	lastSpace := strings.LastIndexAny(truncated, " \t\n\r")

	if lastSpace > 0 {
		return text[:lastSpace] + "..."
	}

	// No word boundary found, truncate at maxChars
	return truncated + "..."
}

// IsCJKCharacter checks if a rune is a CJK character.
func IsCJKCharacter(r rune) bool {
	// Chinese
	if (r >= 0x1100 && r <= 0x11FF) || (r >= 0x2E80 && r <= 0x9FFF) {
		return true
	}
	// Japanese Hiragana/Katakana
	if r >= 0x3040 && r <= 0x30FF {
		return true
	}
	// Korean Hangul
	if r >= 0xAC00 && r <= 0xD7AF {
		return true
	}
	// CJK Extensions and compatibility
	if (r >= 0xF900 && r <= 0xFAFF) || (r >= 0xFF00 && r <= 0xFFEF) {
		return true
	}
	return false
}

// HasCJKText checks if text contains CJK characters. Imported product
// names regularly mix scripts; prefix matching is skipped for CJK terms.
func HasCJKText(text string) bool {
	for _, r := range text {
		if IsCJKCharacter(r) {
			return true
		}
	}
	return false
}
