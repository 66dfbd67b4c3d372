package backend

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/steven-d-pennington/restricted-diet-app-sub003/internal/models"
)

// APIError is the normalized form of every non-2xx backend response.
// The hosted API reports failures in several shapes; all of them reduce
// to a status, an optional machine code, and a message.
type APIError struct {
	Status  int    `json:"status"`
	Code    string `json:"code,omitempty"`
	Message string `json:"message"`
	Details string `json:"details,omitempty"`
}

func (e *APIError) Error() string {
	if e.Code != "" {
		return "backend: " + e.Code + ": " + e.Message
	}
	return "backend: " + e.Message
}

// wireError accepts the error body shapes the hosted API emits. Auth
// endpoints use error/error_description, the data API uses
// code/message/details, and some proxies send msg.
type wireError struct {
	Code      string `json:"code"`
	Message   string `json:"message"`
	Msg       string `json:"msg"`
	ErrorName string `json:"error"`
	ErrorDesc string `json:"error_description"`
	Details   string `json:"details"`
}

func (w *wireError) normalize(status int) *APIError {
	msg := w.Message
	if msg == "" {
		msg = w.Msg
	}
	if msg == "" {
		msg = w.ErrorDesc
	}
	if msg == "" {
		msg = w.ErrorName
	}
	if msg == "" {
		msg = http.StatusText(status)
	}
	code := w.Code
	if code == "" && w.ErrorDesc != "" {
		code = w.ErrorName
	}
	return &APIError{Status: status, Code: code, Message: msg, Details: w.Details}
}

// User identifies an authenticated account.
type User struct {
	ID    string `json:"id"`
	Email string `json:"email,omitempty"`
}

// Session is the token pair returned by the auth endpoints.
type Session struct {
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token"`
	TokenType    string `json:"token_type,omitempty"`
	ExpiresIn    int    `json:"expires_in,omitempty"`
	User         User   `json:"user"`
}

// Profile is the account's profile row.
type Profile struct {
	ID        string    `json:"id"`
	Email     string    `json:"email,omitempty"`
	FullName  string    `json:"full_name,omitempty"`
	AvatarURL string    `json:"avatar_url,omitempty"`
	UpdatedAt time.Time `json:"updated_at"`
}

// DietaryRestriction is one restriction row for an account or family
// member.
type DietaryRestriction struct {
	ID       string          `json:"id"`
	UserID   string          `json:"user_id,omitempty"`
	MemberID string          `json:"member_id,omitempty"`
	Name     string          `json:"name"`
	Severity models.Severity `json:"severity"`
	Notes    string          `json:"notes,omitempty"`
}

// FamilyMember is a managed dependent profile, with restrictions
// embedded by the list query.
type FamilyMember struct {
	ID           string               `json:"id"`
	UserID       string               `json:"user_id"`
	Name         string               `json:"name"`
	Relationship string               `json:"relationship,omitempty"`
	BirthYear    int                  `json:"birth_year,omitempty"`
	Restrictions []DietaryRestriction `json:"restrictions,omitempty"`
}

// RemoteProduct is the product row as the backend returns it. The
// safety fields are computed server side and passed through opaquely;
// nothing in this module interprets or recomputes them.
type RemoteProduct struct {
	models.Product
	SafetyScore    json.RawMessage `json:"safety_score,omitempty"`
	Recommendation json.RawMessage `json:"recommendation,omitempty"`
}

// Restaurant is a venue row.
type Restaurant struct {
	ID      string  `json:"id"`
	Name    string  `json:"name"`
	Cuisine string  `json:"cuisine,omitempty"`
	Address string  `json:"address,omitempty"`
	Phone   string  `json:"phone,omitempty"`
	Rating  float64 `json:"rating,omitempty"`
}

// RestaurantQuery filters the restaurant listing.
type RestaurantQuery struct {
	Search  string
	Cuisine string
	Limit   int
}

// Meal is a menu item row. SafetyScore is server-computed passthrough.
type Meal struct {
	ID           string          `json:"id"`
	RestaurantID string          `json:"restaurant_id"`
	Name         string          `json:"name"`
	Description  string          `json:"description,omitempty"`
	Ingredients  string          `json:"ingredients,omitempty"`
	Allergens    string          `json:"allergens,omitempty"`
	SafetyScore  json.RawMessage `json:"safety_score,omitempty"`
}

// ScanEvent mirrors one history/favorites mutation to the backend.
// ProductData carries the full product snapshot so an empty device can
// be reseeded from these rows alone.
type ScanEvent struct {
	ID          string          `json:"id"`
	UserID      string          `json:"user_id"`
	ProductID   string          `json:"product_id"`
	EventType   string          `json:"event_type"`
	SafetyLevel string          `json:"safety_level,omitempty"`
	IsFavorite  bool            `json:"is_favorite"`
	ProductData json.RawMessage `json:"product_data,omitempty"`
	ScannedAt   time.Time       `json:"scanned_at"`
}

// IncidentReport is a user-filed reaction report tied to a product.
type IncidentReport struct {
	ID          string          `json:"id,omitempty"`
	UserID      string          `json:"user_id"`
	ProductID   string          `json:"product_id,omitempty"`
	Barcode     string          `json:"barcode,omitempty"`
	Description string          `json:"description"`
	Severity    models.Severity `json:"severity"`
	OccurredAt  time.Time       `json:"occurred_at"`
}
