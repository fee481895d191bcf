package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/google/uuid"

	"github.com/liveinsync/rentd/internal/identity"
)

// SessionTTL is the default session duration.
const SessionTTL = 24 * time.Hour

// AuthHandler handles authentication endpoints.
type AuthHandler struct {
	repo       identity.UserRepo
	sessions   identity.SessionRepo
	auth       *identity.UserAuth
	sessionTTL time.Duration
}

// NewAuthHandler creates a new authentication handler.
// A non-positive ttl falls back to SessionTTL.
func NewAuthHandler(repo identity.UserRepo, sessions identity.SessionRepo, auth *identity.UserAuth, ttl time.Duration) *AuthHandler {
	if ttl <= 0 {
		ttl = SessionTTL
	}
	return &AuthHandler{
		repo:       repo,
		sessions:   sessions,
		auth:       auth,
		sessionTTL: ttl,
	}
}

// UserInfo is the user payload embedded in auth responses.
type UserInfo struct {
	ID         string `json:"id"`
	Email      string `json:"email"`
	Name       string `json:"name"`
	Role       string `json:"role"`
	OwnerID    string `json:"owner_id,omitempty"`
	PropertyID string `json:"property_id,omitempty"`
}

func userInfo(u *identity.User) UserInfo {
	return UserInfo{
		ID:         u.ID,
		Email:      u.Email,
		Name:       u.Name,
		Role:       u.Role,
		OwnerID:    u.OwnerID,
		PropertyID: u.PropertyID,
	}
}

// RegisterRequest is the request body for registration.
type RegisterRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
	Name     string `json:"name"`
	Role     string `json:"role"`

	// Tenant-only fields: the owner the tenant rents from and the
	// property they occupy.
	OwnerID    string `json:"ownerId"`
	PropertyID string `json:"propertyId"`
}

// Register handles POST /api/auth/register.
func (h *AuthHandler) Register(w http.ResponseWriter, r *http.Request) {
	var req RegisterRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		WriteBadRequest(w, ReasonBadRequest, "invalid JSON body")
		return
	}

	if req.Email == "" || req.Password == "" || req.Name == "" {
		WriteBadRequest(w, ReasonMissingField, "email, password and name are required")
		return
	}
	if !identity.IsValidRole(req.Role) {
		WriteBadRequest(w, ReasonInvalidField, "role must be owner or tenant")
		return
	}
	if req.Role == identity.RoleTenant && (req.OwnerID == "" || req.PropertyID == "") {
		WriteBadRequest(w, ReasonMissingField, "ownerId and propertyId are required for tenants")
		return
	}

	hash, err := h.auth.HashPassword(req.Password)
	if err != nil {
		WriteInternalError(w, "failed to hash password")
		return
	}

	user := &identity.User{
		ID:           uuid.NewString(),
		Email:        req.Email,
		Name:         req.Name,
		PasswordHash: hash,
		Role:         req.Role,
		OwnerID:      req.OwnerID,
		PropertyID:   req.PropertyID,
		CreatedAt:    time.Now(),
	}

	if err := h.repo.Create(r.Context(), user); err != nil {
		if errors.Is(err, identity.ErrUserExists) {
			WriteError(w, http.StatusConflict, ReasonConflict, "email already registered")
			return
		}
		WriteInternalError(w, "failed to create user")
		return
	}

	WriteJSON(w, http.StatusCreated, userInfo(user))
}

// LoginRequest is the request body for login.
type LoginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// LoginResponse is the response for a successful login.
type LoginResponse struct {
	Token     string   `json:"token"`
	ExpiresAt string   `json:"expires_at"`
	User      UserInfo `json:"user"`
}

// Login handles POST /api/auth/login.
func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	var req LoginRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		WriteBadRequest(w, ReasonBadRequest, "invalid JSON body")
		return
	}

	if req.Email == "" || req.Password == "" {
		WriteBadRequest(w, ReasonMissingField, "email and password required")
		return
	}

	ctx := r.Context()

	user, err := h.auth.Authenticate(ctx, h.repo, req.Email, req.Password)
	if err != nil {
		WriteUnauthorized(w, ReasonInvalidCredentials, "invalid email or password")
		return
	}

	session, err := h.sessions.Create(ctx, user.ID, h.sessionTTL)
	if err != nil {
		WriteInternalError(w, "failed to create session")
		return
	}

	http.SetCookie(w, &http.Cookie{
		Name:     "session",
		Value:    session.Token,
		Path:     "/",
		Expires:  session.ExpiresAt,
		HttpOnly: true,
		Secure:   r.TLS != nil,
		SameSite: http.SameSiteLaxMode,
	})

	WriteJSON(w, http.StatusOK, LoginResponse{
		Token:     session.Token,
		ExpiresAt: session.ExpiresAt.Format(time.RFC3339),
		User:      userInfo(user),
	})
}

// Logout handles POST /api/auth/logout.
func (h *AuthHandler) Logout(w http.ResponseWriter, r *http.Request) {
	token := ExtractSessionToken(r)
	if token != "" {
		h.sessions.Delete(r.Context(), token)
	}

	// Clear the cookie regardless of whether a session existed
	http.SetCookie(w, &http.Cookie{
		Name:     "session",
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		HttpOnly: true,
	})

	w.WriteHeader(http.StatusNoContent)
}

// ExtractSessionToken reads the session token from the Authorization header
// (Bearer scheme) or the session cookie.
func ExtractSessionToken(r *http.Request) string {
	if auth := r.Header.Get("Authorization"); len(auth) > 7 && auth[:7] == "Bearer " {
		return auth[7:]
	}
	if c, err := r.Cookie("session"); err == nil {
		return c.Value
	}
	return ""
}
