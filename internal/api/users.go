package api

import (
	"net/http"
	"strings"

	"github.com/erazemk/rewear/internal/db"
	"github.com/erazemk/rewear/internal/logger"
	"github.com/erazemk/rewear/internal/model"
	"github.com/erazemk/rewear/internal/store"
	"github.com/erazemk/rewear/internal/swap"
)

// UsersHandler serves the caller's own profile.
type UsersHandler struct {
	DB  *db.DB
	Log *logger.Logger
}

type updateProfileRequest struct {
	FirstName *string `json:"firstName" validate:"omitempty,min=1,max=100"`
	LastName  *string `json:"lastName" validate:"omitempty,min=1,max=100"`
}

func (r *updateProfileRequest) normalize() {
	for _, s := range []*string{r.FirstName, r.LastName} {
		if s != nil {
			*s = strings.TrimSpace(*s)
		}
	}
}

type profileResponse struct {
	User  *model.User      `json:"user"`
	Stats *store.UserStats `json:"stats"`
}

// Profile handles GET /api/users/profile.
func (h *UsersHandler) Profile(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	user := CurrentUser(ctx)

	stats, err := store.GetUserStats(ctx, h.DB, user.ID)
	if err != nil {
		writeError(ctx, h.Log, w, err)
		return
	}
	jsonResponse(w, http.StatusOK, profileResponse{User: user, Stats: stats})
}

// UpdateProfile handles PUT /api/users/profile. Omitted names are kept.
func (h *UsersHandler) UpdateProfile(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var req updateProfileRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(ctx, h.Log, w, err)
		return
	}

	user, err := store.UpdateUserProfile(ctx, h.DB, CurrentUser(ctx).ID, req.FirstName, req.LastName)
	if err != nil {
		writeError(ctx, h.Log, w, err)
		return
	}
	if user == nil {
		writeError(ctx, h.Log, w, swap.ErrUserNotFound)
		return
	}

	h.Log.Info(ctx, "profile updated")
	jsonResponse(w, http.StatusOK, user)
}

// Stats handles GET /api/users/stats.
func (h *UsersHandler) Stats(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	stats, err := store.GetUserStats(ctx, h.DB, CurrentUser(ctx).ID)
	if err != nil {
		writeError(ctx, h.Log, w, err)
		return
	}
	jsonResponse(w, http.StatusOK, stats)
}

// Points handles GET /api/users/points.
func (h *UsersHandler) Points(w http.ResponseWriter, r *http.Request) {
	jsonResponse(w, http.StatusOK, map[string]int{"points": CurrentUser(r.Context()).Points})
}
