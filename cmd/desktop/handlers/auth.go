package handlers

import (
	"encoding/json"
	"net/http"

	"github.com/steven-d-pennington/restricted-diet-app-sub003/internal/auth"
	"github.com/steven-d-pennington/restricted-diet-app-sub003/internal/services"
)

// AuthHandler handles account sessions and profile data. All fields are
// nil when the app runs offline-only; every endpoint then answers 412.
type AuthHandler struct {
	manager  *auth.Manager
	profiles *services.ProfileService
	family   *services.FamilyService
}

// NewAuthHandler creates a new AuthHandler.
func NewAuthHandler(manager *auth.Manager, profiles *services.ProfileService, family *services.FamilyService) *AuthHandler {
	return &AuthHandler{manager: manager, profiles: profiles, family: family}
}

func (h *AuthHandler) ready(w http.ResponseWriter) bool {
	if h.manager == nil {
		http.Error(w, "Backend not configured", http.StatusPreconditionFailed)
		return false
	}
	return true
}

// SignIn handles POST /api/v1/auth/signin
func (h *AuthHandler) SignIn(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}
	if !h.ready(w) {
		return
	}

	var request struct {
		Email    string `json:"email"`
		Password string `json:"password"`
	}
	if err := json.NewDecoder(r.Body).Decode(&request); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}
	if request.Email == "" || request.Password == "" {
		http.Error(w, "email and password are required", http.StatusBadRequest)
		return
	}

	if err := h.manager.SignIn(r.Context(), request.Email, request.Password); err != nil {
		http.Error(w, err.Error(), statusFor(err))
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]interface{}{
		"signed_in": true,
		"user_id":   h.manager.CurrentUserID(),
	})
}

// SignUp handles POST /api/v1/auth/signup
func (h *AuthHandler) SignUp(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}
	if !h.ready(w) {
		return
	}

	var request struct {
		Email    string `json:"email"`
		Password string `json:"password"`
		FullName string `json:"full_name"`
	}
	if err := json.NewDecoder(r.Body).Decode(&request); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}
	if request.Email == "" || request.Password == "" {
		http.Error(w, "email and password are required", http.StatusBadRequest)
		return
	}

	if err := h.manager.SignUp(r.Context(), request.Email, request.Password, request.FullName); err != nil {
		http.Error(w, err.Error(), statusFor(err))
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusCreated)
	json.NewEncoder(w).Encode(map[string]interface{}{
		"signed_in": h.manager.SignedIn(),
		"user_id":   h.manager.CurrentUserID(),
	})
}

// SignOut handles POST /api/v1/auth/signout
func (h *AuthHandler) SignOut(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}
	if !h.ready(w) {
		return
	}

	if err := h.manager.SignOut(r.Context()); err != nil {
		http.Error(w, err.Error(), statusFor(err))
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// RefreshSession handles POST /api/v1/auth/refresh
func (h *AuthHandler) RefreshSession(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}
	if !h.ready(w) {
		return
	}

	if err := h.manager.RefreshSession(r.Context()); err != nil {
		http.Error(w, err.Error(), statusFor(err))
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]interface{}{
		"signed_in": true,
		"user_id":   h.manager.CurrentUserID(),
	})
}

// Session handles GET /api/v1/auth/session
func (h *AuthHandler) Session(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	response := map[string]interface{}{
		"configured": h.manager != nil,
		"signed_in":  false,
	}
	if h.manager != nil {
		response["signed_in"] = h.manager.SignedIn()
		response["user_id"] = h.manager.CurrentUserID()
		response["expired"] = h.manager.SessionExpired()
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(response)
}

// GetProfile handles GET /api/v1/profile
func (h *AuthHandler) GetProfile(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}
	if !h.ready(w) {
		return
	}
	if !h.manager.SignedIn() {
		http.Error(w, "Not signed in", http.StatusUnauthorized)
		return
	}

	// Serve from the cached snapshot unless a refresh is forced or
	// nothing has been fetched yet.
	_, cached := h.profiles.Profile()
	if !cached || r.URL.Query().Get("refresh") == "1" {
		if err := h.profiles.Refresh(r.Context(), h.manager.CurrentUserID()); err != nil {
			http.Error(w, err.Error(), statusFor(err))
			return
		}
	}

	profile, _ := h.profiles.Profile()
	response := map[string]interface{}{
		"profile":           profile,
		"restrictions":      h.profiles.Restrictions(),
		"restriction_names": h.profiles.RestrictionNames(),
		"life_threatening":  h.profiles.HasLifeThreateningRestrictions(),
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(response)
}

// UpdateProfile handles PUT /api/v1/profile
func (h *AuthHandler) UpdateProfile(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPut {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}
	if !h.ready(w) {
		return
	}
	if !h.manager.SignedIn() {
		http.Error(w, "Not signed in", http.StatusUnauthorized)
		return
	}

	var request struct {
		FullName  string `json:"full_name"`
		AvatarURL string `json:"avatar_url"`
	}
	if err := json.NewDecoder(r.Body).Decode(&request); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}

	if err := h.manager.UpdateProfile(r.Context(), request.FullName, request.AvatarURL); err != nil {
		http.Error(w, err.Error(), statusFor(err))
		return
	}

	profile, _ := h.manager.Profile()

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(profile)
}

// Family handles GET /api/v1/family
func (h *AuthHandler) Family(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}
	if !h.ready(w) {
		return
	}
	if !h.manager.SignedIn() {
		http.Error(w, "Not signed in", http.StatusUnauthorized)
		return
	}

	if len(h.family.Members()) == 0 || r.URL.Query().Get("refresh") == "1" {
		if err := h.family.Refresh(r.Context(), h.manager.CurrentUserID()); err != nil {
			http.Error(w, err.Error(), statusFor(err))
			return
		}
	}

	response := map[string]interface{}{
		"members":                h.family.Members(),
		"any_critical":           h.family.AnyCriticalRestrictions(),
		"household_restrictions": h.family.HouseholdRestrictionNames(),
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(response)
}
