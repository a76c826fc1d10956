package api

import (
	"context"
	"net/http"
	"strings"

	"github.com/erazemk/rewear/internal/apperr"
	"github.com/erazemk/rewear/internal/db"
	"github.com/erazemk/rewear/internal/logger"
	"github.com/erazemk/rewear/internal/model"
	"github.com/erazemk/rewear/internal/store"
	"github.com/erazemk/rewear/internal/swap"
)

var errNotParticipant = apperr.New(apperr.CodeForbidden, "You are not part of this swap")

// SwapsHandler exposes the swap workflow over HTTP.
type SwapsHandler struct {
	DB     *db.DB
	Engine *swap.Engine
	Log    *logger.Logger
}

type createSwapRequest struct {
	ItemID        int64  `json:"itemId" validate:"required,gt=0"`
	SwapType      string `json:"swapType" validate:"required,oneof=direct_swap points_redemption"`
	OfferedItemID *int64 `json:"offeredItemId" validate:"omitempty,gt=0"`
	PointsOffered int    `json:"pointsOffered" validate:"gte=0"`
	Message       string `json:"message" validate:"max=1000"`
}

func (r *createSwapRequest) normalize() {
	r.Message = strings.TrimSpace(r.Message)
}

// Create handles POST /api/swaps.
func (h *SwapsHandler) Create(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	user := CurrentUser(ctx)

	var req createSwapRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(ctx, h.Log, w, err)
		return
	}

	s, err := h.Engine.Create(ctx, swap.CreateParams{
		RequesterID:   user.ID,
		ItemID:        req.ItemID,
		Type:          model.SwapType(req.SwapType),
		OfferedItemID: req.OfferedItemID,
		PointsOffered: req.PointsOffered,
		Message:       req.Message,
	})
	if err != nil {
		writeError(ctx, h.Log, w, err)
		return
	}
	jsonResponse(w, http.StatusCreated, s)
}

type transitionFunc func(ctx context.Context, swapID, actingUserID int64) (*model.Swap, error)

func (h *SwapsHandler) transition(w http.ResponseWriter, r *http.Request, fn transitionFunc) {
	ctx := r.Context()
	id, err := pathID(r, "id")
	if err != nil {
		writeError(ctx, h.Log, w, err)
		return
	}

	s, err := fn(ctx, id, CurrentUser(ctx).ID)
	if err != nil {
		writeError(ctx, h.Log, w, err)
		return
	}
	jsonResponse(w, http.StatusOK, s)
}

// Accept handles PUT /api/swaps/{id}/accept.
func (h *SwapsHandler) Accept(w http.ResponseWriter, r *http.Request) {
	h.transition(w, r, h.Engine.Accept)
}

// Reject handles PUT /api/swaps/{id}/reject.
func (h *SwapsHandler) Reject(w http.ResponseWriter, r *http.Request) {
	h.transition(w, r, h.Engine.Reject)
}

// Complete handles PUT /api/swaps/{id}/complete.
func (h *SwapsHandler) Complete(w http.ResponseWriter, r *http.Request) {
	h.transition(w, r, h.Engine.Complete)
}

// Mine handles GET /api/swaps/mine?role=requester|owner.
func (h *SwapsHandler) Mine(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	role := r.URL.Query().Get("role")
	switch role {
	case store.SwapRoleAny, store.SwapRoleRequester, store.SwapRoleOwner:
	default:
		writeError(ctx, h.Log, w, apperr.New(apperr.CodeValidation, "role must be requester or owner"))
		return
	}

	swaps, err := store.ListUserSwaps(ctx, h.DB, CurrentUser(ctx).ID, role)
	if err != nil {
		writeError(ctx, h.Log, w, err)
		return
	}
	jsonResponse(w, http.StatusOK, swaps)
}

// Get handles GET /api/swaps/{id}. Only participants and admins may look.
func (h *SwapsHandler) Get(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	id, err := pathID(r, "id")
	if err != nil {
		writeError(ctx, h.Log, w, err)
		return
	}

	s, err := store.GetSwap(ctx, h.DB, id)
	if err != nil {
		writeError(ctx, h.Log, w, err)
		return
	}
	if s == nil {
		writeError(ctx, h.Log, w, swap.ErrSwapNotFound)
		return
	}

	user := CurrentUser(ctx)
	if !s.IsParticipant(user.ID) && !user.IsAdmin {
		writeError(ctx, h.Log, w, errNotParticipant)
		return
	}
	jsonResponse(w, http.StatusOK, s)
}

// Stats handles GET /api/swaps/stats: the caller's swaps by status.
func (h *SwapsHandler) Stats(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	counts, err := store.CountSwaps(ctx, h.DB, CurrentUser(ctx).ID)
	if err != nil {
		writeError(ctx, h.Log, w, err)
		return
	}
	jsonResponse(w, http.StatusOK, counts)
}
