// Package db provides FTS5 search functionality for cached products.
package db

import (
	"fmt"
	"strings"
	"unicode"

	"github.com/steven-d-pennington/restricted-diet-app-sub003/internal/models"
)

// SearchOptions contains parameters for product search queries.
type SearchOptions struct {
	// Query is the FTS5 search query (required)
	Query string

	// Limit is the maximum number of results (default: 20, max: 100)
	Limit int

	// SafetyLevels narrows results to the given safety levels
	SafetyLevels []string

	// Category narrows results to a product category
	Category string

	// CachedFrom filters results cached after this Unix timestamp
	CachedFrom int64

	// CachedTo filters results cached before this Unix timestamp
	CachedTo int64

	// Highlight attaches highlighted field snippets to each result
	Highlight bool
}

// SearchResult represents a single product search result.
type SearchResult struct {
	Product      *models.CachedProduct
	MatchedTerms []string

	// Highlights is set when the search asked for highlighting.
	Highlights *HighlightResult `json:",omitempty"`
}

// SearchResponse contains search results and metadata.
type SearchResponse struct {
	Results []*SearchResult
	Total   int
	Query   string
}

// SearchProducts performs FTS5 full-text search over the product cache.
// Results are ordered by BM25 relevance.
func (r *Repository) SearchProducts(opts *SearchOptions) (*SearchResponse, error) {
	if opts == nil || opts.Query == "" {
		return nil, fmt.Errorf("search query is required")
	}

	// Apply defaults and limits
	if opts.Limit <= 0 {
		opts.Limit = 20
	}
	if opts.Limit > 100 {
		opts.Limit = 100
	}

	baseQuery := `
		SELECT cp.id, cp.barcode, cp.name, cp.brand, cp.category, cp.data_json,
			   cp.safety_level, cp.image_path, cp.cached_at, cp.updated_at
		FROM cached_products cp
		INNER JOIN products_fts fts ON cp.rowid = fts.rowid
		WHERE products_fts MATCH ?
	`

	fb := filtersFromSearchOptions(opts)
	filterSQL, filterArgs := fb.Build()

	args := []interface{}{opts.Query}
	if filterSQL != "" {
		baseQuery += " AND " + filterSQL
		args = append(args, filterArgs...)
	}

	baseQuery += " ORDER BY rank LIMIT ?"
	args = append(args, opts.Limit)

	rows, err := r.db.Query(baseQuery, args...)
	if err != nil {
		return nil, fmt.Errorf("search query failed: %w", err)
	}
	defer rows.Close()

	var results []*SearchResult
	for rows.Next() {
		p, err := scanCachedProduct(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan search result: %w", err)
		}
		results = append(results, &SearchResult{
			Product:      p,
			MatchedTerms: ExtractMatchedTerms(p.Name+" "+p.Brand+" "+p.Category, opts.Query),
		})
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating search results: %w", err)
	}

	if opts.Highlight {
		for _, result := range results {
			// A failed snippet leaves the result unhighlighted.
			hl, err := r.Highlight(result.Product.ID, opts.Query, nil)
			if err != nil {
				continue
			}
			result.Highlights = hl
		}
	}

	// Get total count (without limit)
	countQuery := `
		SELECT COUNT(*)
		FROM cached_products cp
		INNER JOIN products_fts fts ON cp.rowid = fts.rowid
		WHERE products_fts MATCH ?
	`
	countArgs := []interface{}{opts.Query}
	if filterSQL != "" {
		countQuery += " AND " + filterSQL
		countArgs = append(countArgs, filterArgs...)
	}

	var total int
	if err := r.db.QueryRow(countQuery, countArgs...).Scan(&total); err != nil {
		return nil, fmt.Errorf("failed to count search results: %w", err)
	}

	return &SearchResponse{
		Results: results,
		Total:   total,
		Query:   opts.Query,
	}, nil
}

// SearchProductsSimple performs a search with just the query string.
// Convenience method for basic search without filters.
func (r *Repository) SearchProductsSimple(query string, limit int) (*SearchResponse, error) {
	return r.SearchProducts(&SearchOptions{
		Query: query,
		Limit: limit,
	})
}

// BuildMatchQuery converts free-form user input into a safe FTS5 MATCH
// expression. Each term is quoted; non-CJK terms get prefix matching so
// partly typed product names still hit.
func BuildMatchQuery(input string) string {
	fields := strings.Fields(input)
	if len(fields) == 0 {
		return ""
	}

	terms := make([]string, 0, len(fields))
	for _, f := range fields {
		// Strip embedded quotes so user input cannot alter MATCH syntax
		f = strings.ReplaceAll(f, `"`, "")
		// Punctuation-only terms tokenize to nothing and upset MATCH
		if !hasSearchableRune(f) {
			continue
		}
		if HasCJKText(f) {
			terms = append(terms, `"`+f+`"`)
		} else {
			terms = append(terms, `"`+f+`"*`)
		}
	}
	return strings.Join(terms, " ")
}

// hasSearchableRune reports whether s contains at least one letter or digit.
func hasSearchableRune(s string) bool {
	for _, r := range s {
		if unicode.IsLetter(r) || unicode.IsDigit(r) {
			return true
		}
	}
	return false
}
