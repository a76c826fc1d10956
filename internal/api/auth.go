package api

import (
	"net/http"
	"strings"

	"github.com/erazemk/rewear/internal/apperr"
	"github.com/erazemk/rewear/internal/auth"
	"github.com/erazemk/rewear/internal/db"
	"github.com/erazemk/rewear/internal/logger"
	"github.com/erazemk/rewear/internal/model"
	"github.com/erazemk/rewear/internal/store"
)

var (
	errInvalidCredentials = apperr.New(apperr.CodeUnauthorized, "invalid credentials")
	errEmailTaken         = apperr.New(apperr.CodeConflict, "An account with this email already exists")
	errWrongPassword      = apperr.New(apperr.CodeUnauthorized, "current password is incorrect")
)

// AuthHandler handles registration and session endpoints.
type AuthHandler struct {
	DB            *db.DB
	Issuer        *auth.Issuer
	Log           *logger.Logger
	InitialPoints int
}

type registerRequest struct {
	Email     string `json:"email" validate:"required,email,max=255"`
	Password  string `json:"password" validate:"required,min=8,max=72"`
	FirstName string `json:"firstName" validate:"required,max=100"`
	LastName  string `json:"lastName" validate:"required,max=100"`
}

func (r *registerRequest) normalize() {
	r.Email = model.NormalizeEmail(r.Email)
	r.FirstName = strings.TrimSpace(r.FirstName)
	r.LastName = strings.TrimSpace(r.LastName)
}

type loginRequest struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required"`
}

func (r *loginRequest) normalize() {
	r.Email = model.NormalizeEmail(r.Email)
}

type tokenResponse struct {
	Token string      `json:"token"`
	User  *model.User `json:"user"`
}

type changePasswordRequest struct {
	CurrentPassword string `json:"currentPassword" validate:"required"`
	NewPassword     string `json:"newPassword" validate:"required,min=8,max=72"`
}

// Register handles POST /api/auth/register.
func (h *AuthHandler) Register(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var req registerRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(ctx, h.Log, w, err)
		return
	}

	hash, err := auth.HashPassword(req.Password)
	if err != nil {
		writeError(ctx, h.Log, w, err)
		return
	}

	user, err := store.CreateUser(ctx, h.DB, store.NewUser{
		Email:        req.Email,
		PasswordHash: hash,
		FirstName:    req.FirstName,
		LastName:     req.LastName,
		Points:       h.InitialPoints,
	})
	if db.IsUniqueViolation(err) {
		writeError(ctx, h.Log, w, errEmailTaken)
		return
	}
	if err != nil {
		writeError(ctx, h.Log, w, err)
		return
	}

	token, err := h.Issuer.GenerateToken(user.ID, user.Email, user.IsAdmin)
	if err != nil {
		writeError(ctx, h.Log, w, err)
		return
	}

	h.Log.Info(h.Log.WithField(ctx, "user_id", user.ID), "user registered")
	jsonResponse(w, http.StatusCreated, tokenResponse{Token: token, User: user})
}

// Login handles POST /api/auth/login.
func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var req loginRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(ctx, h.Log, w, err)
		return
	}

	user, err := store.GetUserByEmail(ctx, h.DB, req.Email)
	if err != nil {
		writeError(ctx, h.Log, w, err)
		return
	}
	if user == nil || !auth.CheckPassword(user.PasswordHash, req.Password) {
		h.Log.Warn(h.Log.WithFields(ctx, map[string]any{"email": req.Email, "remote": r.RemoteAddr}), "login failed")
		writeError(ctx, h.Log, w, errInvalidCredentials)
		return
	}

	token, err := h.Issuer.GenerateToken(user.ID, user.Email, user.IsAdmin)
	if err != nil {
		writeError(ctx, h.Log, w, err)
		return
	}

	h.Log.Info(h.Log.WithField(ctx, "user_id", user.ID), "user logged in")
	jsonResponse(w, http.StatusOK, tokenResponse{Token: token, User: user})
}

// Me handles GET /api/auth/me.
func (h *AuthHandler) Me(w http.ResponseWriter, r *http.Request) {
	jsonResponse(w, http.StatusOK, CurrentUser(r.Context()))
}

// Logout handles POST /api/auth/logout by revoking the presented token.
func (h *AuthHandler) Logout(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	claims := GetClaims(ctx)
	if claims == nil {
		writeError(ctx, h.Log, w, errUnauthenticated)
		return
	}

	if err := store.RevokeToken(ctx, h.DB, claims.ID, claims.ExpiresAt.Time); err != nil {
		writeError(ctx, h.Log, w, err)
		return
	}

	h.Log.Info(ctx, "user logged out")
	jsonResponse(w, http.StatusOK, map[string]string{"message": "logged out"})
}

// ChangePassword handles PUT /api/auth/password.
func (h *AuthHandler) ChangePassword(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	user := CurrentUser(ctx)

	var req changePasswordRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(ctx, h.Log, w, err)
		return
	}

	if !auth.CheckPassword(user.PasswordHash, req.CurrentPassword) {
		writeError(ctx, h.Log, w, errWrongPassword)
		return
	}

	hash, err := auth.HashPassword(req.NewPassword)
	if err != nil {
		writeError(ctx, h.Log, w, err)
		return
	}

	if err := store.UpdateUserPassword(ctx, h.DB, user.ID, hash); err != nil {
		writeError(ctx, h.Log, w, err)
		return
	}

	h.Log.Info(ctx, "user changed own password")
	jsonResponse(w, http.StatusOK, map[string]string{"message": "password updated"})
}
