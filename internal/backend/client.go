// Package backend is the client for the hosted REST API. Every call
// takes a context, returns typed data or a coded error carrying the
// normalized *APIError, and never panics. Idempotent lookups go through
// a TTL cache; transient failures are retried with linear backoff.
package backend

import (
	"bytes"
	"context"
	"encoding/json"
	stderrors "errors"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/patrickmn/go-cache"

	"github.com/steven-d-pennington/restricted-diet-app-sub003/internal/errors"
	"github.com/steven-d-pennington/restricted-diet-app-sub003/internal/logging"
)

// maxResponseBytes caps how much of a response body is read.
const maxResponseBytes = 4 << 20

// Config holds the client's connection settings.
type Config struct {
	// BaseURL is the API root, without a trailing slash.
	BaseURL string

	// APIKey is the project key sent on every request. Authenticated
	// calls additionally carry the session's bearer token.
	APIKey string

	// Timeout bounds each individual HTTP attempt.
	Timeout time.Duration

	// CacheTTL controls how long idempotent lookups are served from
	// memory.
	CacheTTL time.Duration

	// MaxAttempts bounds the total tries per request, first included.
	MaxAttempts int

	// RetryDelay is the base backoff; attempt n waits n times this.
	RetryDelay time.Duration
}

// DefaultConfig returns the standard client settings. BaseURL and
// APIKey have no defaults.
func DefaultConfig() Config {
	return Config{
		Timeout:     15 * time.Second,
		CacheTTL:    15 * time.Minute,
		MaxAttempts: 3,
		RetryDelay:  500 * time.Millisecond,
	}
}

// Client talks to the hosted API.
type Client struct {
	config Config
	http   *http.Client
	cache  *cache.Cache
	logger *logging.Logger

	mu    sync.RWMutex
	token string
}

// NewClient creates a client. Zero config fields fall back to
// DefaultConfig values; BaseURL is required.
func NewClient(config Config) (*Client, error) {
	if config.BaseURL == "" {
		return nil, errors.New(errors.ErrInvalid, "backend base URL is required")
	}
	defaults := DefaultConfig()
	if config.Timeout == 0 {
		config.Timeout = defaults.Timeout
	}
	if config.CacheTTL == 0 {
		config.CacheTTL = defaults.CacheTTL
	}
	if config.MaxAttempts == 0 {
		config.MaxAttempts = defaults.MaxAttempts
	}
	if config.RetryDelay == 0 {
		config.RetryDelay = defaults.RetryDelay
	}
	config.BaseURL = strings.TrimRight(config.BaseURL, "/")

	return &Client{
		config: config,
		http:   &http.Client{Timeout: config.Timeout},
		cache:  cache.New(config.CacheTTL, 2*config.CacheTTL),
		logger: logging.Get().WithComponent("backend"),
	}, nil
}

// SetToken installs the bearer token used for authenticated calls. An
// empty token falls back to the project key.
func (c *Client) SetToken(token string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.token = token
}

func (c *Client) bearer() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.token != "" {
		return c.token
	}
	return c.config.APIKey
}

// ClearCache drops all cached lookup responses.
func (c *Client) ClearCache() {
	c.cache.Flush()
}

// AsAPIError extracts the normalized backend error from a coded error
// chain, if one is present.
func AsAPIError(err error) (*APIError, bool) {
	var apiErr *APIError
	if stderrors.As(err, &apiErr) {
		return apiErr, true
	}
	return nil, false
}

// =====================================================
// Authentication endpoints
// =====================================================

// SignIn exchanges credentials for a session via the password grant and
// installs the session token on the client.
func (c *Client) SignIn(ctx context.Context, email, password string) (*Session, error) {
	query := url.Values{}
	query.Set("grant_type", "password")

	payload := map[string]string{"email": email, "password": password}
	var session Session
	if err := c.do(ctx, http.MethodPost, "/auth/v1/token", query, payload, &session); err != nil {
		return nil, err
	}
	c.SetToken(session.AccessToken)
	return &session, nil
}

// SignUp registers a new account. Depending on project settings the
// returned session may lack tokens until the email is confirmed.
func (c *Client) SignUp(ctx context.Context, email, password, fullName string) (*Session, error) {
	payload := map[string]interface{}{"email": email, "password": password}
	if fullName != "" {
		payload["data"] = map[string]string{"full_name": fullName}
	}

	var session Session
	if err := c.do(ctx, http.MethodPost, "/auth/v1/signup", nil, payload, &session); err != nil {
		return nil, err
	}
	if session.AccessToken != "" {
		c.SetToken(session.AccessToken)
	}
	return &session, nil
}

// SignOut revokes the current session. The local token is dropped even
// when revocation fails, so the client never stays signed in locally.
func (c *Client) SignOut(ctx context.Context) error {
	err := c.do(ctx, http.MethodPost, "/auth/v1/logout", nil, nil, nil)
	c.SetToken("")
	return err
}

// RefreshSession exchanges a refresh token for a new session and
// installs its token.
func (c *Client) RefreshSession(ctx context.Context, refreshToken string) (*Session, error) {
	query := url.Values{}
	query.Set("grant_type", "refresh_token")

	payload := map[string]string{"refresh_token": refreshToken}
	var session Session
	if err := c.do(ctx, http.MethodPost, "/auth/v1/token", query, payload, &session); err != nil {
		return nil, err
	}
	c.SetToken(session.AccessToken)
	return &session, nil
}

// =====================================================
// Product lookups
// =====================================================

// ProductByBarcode fetches the product row for a normalized barcode.
// Hits are cached for the configured TTL.
func (c *Client) ProductByBarcode(ctx context.Context, barcode string) (*RemoteProduct, error) {
	cacheKey := "product:" + barcode
	if cached, found := c.cache.Get(cacheKey); found {
		if product, ok := cached.(*RemoteProduct); ok {
			return product, nil
		}
	}

	query := url.Values{}
	query.Set("barcode", "eq."+barcode)
	query.Set("limit", "1")

	var rows []RemoteProduct
	if err := c.do(ctx, http.MethodGet, "/rest/v1/products", query, nil, &rows); err != nil {
		return nil, err
	}
	if len(rows) == 0 {
		return nil, errors.New(errors.ErrNotFound, "no product for barcode "+barcode)
	}

	product := &rows[0]
	c.cache.Set(cacheKey, product, cache.DefaultExpiration)
	return product, nil
}

// =====================================================
// Restaurant and meal lookups
// =====================================================

// Restaurants lists venues matching the query, cached per filter set.
func (c *Client) Restaurants(ctx context.Context, q RestaurantQuery) ([]Restaurant, error) {
	query := url.Values{}
	if q.Search != "" {
		query.Set("name", "ilike.*"+q.Search+"*")
	}
	if q.Cuisine != "" {
		query.Set("cuisine", "eq."+q.Cuisine)
	}
	limit := q.Limit
	if limit <= 0 {
		limit = 25
	}
	query.Set("limit", strconv.Itoa(limit))
	query.Set("order", "name.asc")

	cacheKey := "restaurants:" + query.Encode()
	if cached, found := c.cache.Get(cacheKey); found {
		if rows, ok := cached.([]Restaurant); ok {
			return rows, nil
		}
	}

	var rows []Restaurant
	if err := c.do(ctx, http.MethodGet, "/rest/v1/restaurants", query, nil, &rows); err != nil {
		return nil, err
	}
	c.cache.Set(cacheKey, rows, cache.DefaultExpiration)
	return rows, nil
}

// MealsByRestaurant lists a venue's menu items, cached per venue.
func (c *Client) MealsByRestaurant(ctx context.Context, restaurantID string) ([]Meal, error) {
	cacheKey := "meals:" + restaurantID
	if cached, found := c.cache.Get(cacheKey); found {
		if rows, ok := cached.([]Meal); ok {
			return rows, nil
		}
	}

	query := url.Values{}
	query.Set("restaurant_id", "eq."+restaurantID)
	query.Set("order", "name.asc")

	var rows []Meal
	if err := c.do(ctx, http.MethodGet, "/rest/v1/meals", query, nil, &rows); err != nil {
		return nil, err
	}
	c.cache.Set(cacheKey, rows, cache.DefaultExpiration)
	return rows, nil
}

// =====================================================
// Profile, restrictions, family
// =====================================================

// GetProfile fetches the profile row for a user id.
func (c *Client) GetProfile(ctx context.Context, userID string) (*Profile, error) {
	query := url.Values{}
	query.Set("id", "eq."+userID)
	query.Set("limit", "1")

	var rows []Profile
	if err := c.do(ctx, http.MethodGet, "/rest/v1/profiles", query, nil, &rows); err != nil {
		return nil, err
	}
	if len(rows) == 0 {
		return nil, errors.New(errors.ErrNotFound, "no profile for user "+userID)
	}
	return &rows[0], nil
}

// UpsertProfile creates or updates the profile row and returns the
// stored representation.
func (c *Client) UpsertProfile(ctx context.Context, profile *Profile) (*Profile, error) {
	if profile == nil || profile.ID == "" {
		return nil, errors.New(errors.ErrInvalid, "profile id is required")
	}

	var rows []Profile
	err := c.do(ctx, http.MethodPost, "/rest/v1/profiles", nil, profile, &rows,
		"resolution=merge-duplicates", "return=representation")
	if err != nil {
		return nil, err
	}
	if len(rows) == 0 {
		return nil, errors.New(errors.ErrBackendRequest, "upsert returned no representation")
	}
	return &rows[0], nil
}

// DietaryRestrictions lists the account's own restriction rows.
func (c *Client) DietaryRestrictions(ctx context.Context, userID string) ([]DietaryRestriction, error) {
	query := url.Values{}
	query.Set("user_id", "eq."+userID)
	query.Set("order", "severity.desc")

	var rows []DietaryRestriction
	if err := c.do(ctx, http.MethodGet, "/rest/v1/dietary_restrictions", query, nil, &rows); err != nil {
		return nil, err
	}
	return rows, nil
}

// FamilyMembers lists managed dependents with their restrictions
// embedded.
func (c *Client) FamilyMembers(ctx context.Context, userID string) ([]FamilyMember, error) {
	query := url.Values{}
	query.Set("user_id", "eq."+userID)
	query.Set("select", "*,restrictions(*)")
	query.Set("order", "name.asc")

	var rows []FamilyMember
	if err := c.do(ctx, http.MethodGet, "/rest/v1/family_members", query, nil, &rows); err != nil {
		return nil, err
	}
	return rows, nil
}

// =====================================================
// Scan events and reports
// =====================================================

// UpsertScanEvents mirrors a batch of history mutations. Rows are keyed
// by id on the backend, so replays are harmless.
func (c *Client) UpsertScanEvents(ctx context.Context, events []ScanEvent) error {
	if len(events) == 0 {
		return nil
	}
	return c.do(ctx, http.MethodPost, "/rest/v1/scan_events", nil, events, nil,
		"resolution=merge-duplicates")
}

// ScanEvents lists a user's mirrored events, newest first. A non-zero
// since bounds the range.
func (c *Client) ScanEvents(ctx context.Context, userID string, since time.Time) ([]ScanEvent, error) {
	query := url.Values{}
	query.Set("user_id", "eq."+userID)
	query.Set("order", "scanned_at.desc")
	if !since.IsZero() {
		query.Set("scanned_at", "gte."+since.UTC().Format(time.RFC3339))
	}

	var rows []ScanEvent
	if err := c.do(ctx, http.MethodGet, "/rest/v1/scan_events", query, nil, &rows); err != nil {
		return nil, err
	}
	return rows, nil
}

// SubmitIncidentReport files a reaction report.
func (c *Client) SubmitIncidentReport(ctx context.Context, report *IncidentReport) error {
	if report == nil || report.UserID == "" || report.Description == "" {
		return errors.New(errors.ErrInvalid, "incident report needs a user id and description")
	}
	return c.do(ctx, http.MethodPost, "/rest/v1/incident_reports", nil, report, nil)
}

// =====================================================
// Transport
// =====================================================

// do runs one API call with bounded retries. The payload is marshaled
// once and replayed per attempt. Client errors are terminal except 429;
// network failures and 5xx responses retry with linear backoff.
func (c *Client) do(ctx context.Context, method, path string, query url.Values, payload, result interface{}, prefer ...string) error {
	endpoint := c.config.BaseURL + path
	if len(query) > 0 {
		endpoint += "?" + query.Encode()
	}

	var body []byte
	if payload != nil {
		data, err := json.Marshal(payload)
		if err != nil {
			return errors.Wrap(errors.ErrInvalid, "failed to encode request body", err)
		}
		body = data
	}

	var lastErr error
	for attempt := 1; attempt <= c.config.MaxAttempts; attempt++ {
		lastErr = c.send(ctx, method, endpoint, body, result, prefer)
		if lastErr == nil {
			return nil
		}
		if !retryableError(lastErr) || ctx.Err() != nil || attempt == c.config.MaxAttempts {
			return lastErr
		}

		delay := time.Duration(attempt) * c.config.RetryDelay
		c.logger.Warn("backend request failed, retrying", map[string]interface{}{
			"path":     path,
			"attempt":  attempt,
			"delay_ms": delay.Milliseconds(),
			"error":    lastErr.Error(),
		})
		select {
		case <-time.After(delay):
		case <-ctx.Done():
			return lastErr
		}
	}
	return lastErr
}

// send performs a single HTTP attempt.
func (c *Client) send(ctx context.Context, method, endpoint string, body []byte, result interface{}, prefer []string) error {
	var reader io.Reader
	if body != nil {
		reader = bytes.NewReader(body)
	}

	req, err := http.NewRequestWithContext(ctx, method, endpoint, reader)
	if err != nil {
		return errors.Wrap(errors.ErrInvalid, "failed to build request", err)
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("apikey", c.config.APIKey)
	req.Header.Set("Authorization", "Bearer "+c.bearer())
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if len(prefer) > 0 {
		req.Header.Set("Prefer", strings.Join(prefer, ","))
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return errors.Wrap(errors.ErrBackendUnavailable, "backend unreachable", err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return errors.Wrap(errors.ErrBackendUnavailable, "failed to read response", err)
	}

	if resp.StatusCode >= 400 {
		return statusError(resp.StatusCode, data)
	}
	if result != nil && len(data) > 0 {
		if err := json.Unmarshal(data, result); err != nil {
			return errors.Wrap(errors.ErrBackendRequest, "malformed response body", err)
		}
	}
	return nil
}

// statusError normalizes an error response into an *APIError wrapped in
// the matching coded error.
func statusError(status int, body []byte) error {
	var wire wireError
	_ = json.Unmarshal(body, &wire)
	apiErr := wire.normalize(status)

	switch {
	case status == http.StatusUnauthorized || status == http.StatusForbidden:
		return errors.Wrap(errors.ErrAuthFailed, apiErr.Message, apiErr)
	case status == http.StatusNotFound:
		return errors.Wrap(errors.ErrNotFound, apiErr.Message, apiErr)
	case status == http.StatusTooManyRequests:
		return errors.Wrap(errors.ErrBackendRateLimit, apiErr.Message, apiErr)
	case status >= 500:
		return errors.Wrap(errors.ErrBackendUnavailable, apiErr.Message, apiErr)
	default:
		return errors.Wrap(errors.ErrBackendRequest, apiErr.Message, apiErr)
	}
}

func retryableError(err error) bool {
	code := errors.CodeOf(err)
	return code == errors.ErrBackendUnavailable || code == errors.ErrBackendRateLimit
}
