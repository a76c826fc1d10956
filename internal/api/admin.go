package api

import (
	"net/http"
	"strings"

	"github.com/erazemk/rewear/internal/apperr"
	"github.com/erazemk/rewear/internal/db"
	"github.com/erazemk/rewear/internal/logger"
	"github.com/erazemk/rewear/internal/model"
	"github.com/erazemk/rewear/internal/store"
	"github.com/erazemk/rewear/internal/swap"
)

var (
	errSelfModify    = apperr.New(apperr.CodePrecondition, "cannot change your own admin status")
	errLastAdmin     = apperr.New(apperr.CodeConflict, "cannot demote the last admin")
	errInvalidStatus = apperr.New(apperr.CodeValidation, "unknown item status filter")
)

// AdminHandler handles moderation and user management. Every route sits
// behind Authenticator.Required and RequireAdmin.
type AdminHandler struct {
	DB  *db.DB
	Log *logger.Logger
}

type rejectItemRequest struct {
	Reason string `json:"reason" validate:"required,max=500"`
}

func (r *rejectItemRequest) normalize() {
	r.Reason = strings.TrimSpace(r.Reason)
}

type setAdminRequest struct {
	IsAdmin *bool `json:"isAdmin" validate:"required"`
}

type adjustPointsRequest struct {
	Points *int   `json:"points" validate:"required,gte=0"`
	Reason string `json:"reason" validate:"max=500"`
}

// ListItems handles GET /api/admin/items?status=...
func (h *AdminHandler) ListItems(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	q := r.URL.Query()
	status := q.Get("status")
	if !store.ValidItemStatus(status) {
		writeError(ctx, h.Log, w, errInvalidStatus.WithDetails(map[string]string{"status": status}))
		return
	}

	page := pageParams(r)
	items, total, err := store.ListItems(ctx, h.DB, store.ItemFilter{
		Status:   status,
		Category: q.Get("category"),
		Search:   q.Get("search"),
	}, page)
	if err != nil {
		writeError(ctx, h.Log, w, err)
		return
	}
	jsonResponse(w, http.StatusOK, pageResponse[model.Item]{
		Data: items, Total: total, Page: page.Number, Limit: page.Limit,
	})
}

// loadItem fetches the item named by the {id} path parameter.
func (h *AdminHandler) loadItem(r *http.Request) (*model.Item, error) {
	id, err := pathID(r, "id")
	if err != nil {
		return nil, err
	}
	item, err := store.GetItem(r.Context(), h.DB, id)
	if err != nil {
		return nil, err
	}
	if item == nil {
		return nil, errItemNotFound
	}
	return item, nil
}

// ApproveItem handles PUT /api/admin/items/{id}/approve.
func (h *AdminHandler) ApproveItem(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	item, err := h.loadItem(r)
	if err != nil {
		writeError(ctx, h.Log, w, err)
		return
	}

	ok, err := store.ApproveItem(ctx, h.DB, item.ID)
	if err != nil {
		writeError(ctx, h.Log, w, err)
		return
	}
	if !ok {
		writeError(ctx, h.Log, w, errItemNotFound)
		return
	}
	h.Log.Info(h.Log.WithField(ctx, "item_id", item.ID), "item approved")
	h.respondItem(w, r, item.ID)
}

// RejectItem handles PUT /api/admin/items/{id}/reject.
func (h *AdminHandler) RejectItem(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	item, err := h.loadItem(r)
	if err != nil {
		writeError(ctx, h.Log, w, err)
		return
	}

	var req rejectItemRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(ctx, h.Log, w, err)
		return
	}

	ok, err := store.RejectItem(ctx, h.DB, item.ID, req.Reason)
	if err != nil {
		writeError(ctx, h.Log, w, err)
		return
	}
	if !ok {
		writeError(ctx, h.Log, w, errItemNotFound)
		return
	}
	h.Log.Info(h.Log.WithFields(ctx, map[string]any{
		"item_id": item.ID,
		"reason":  req.Reason,
	}), "item rejected")
	h.respondItem(w, r, item.ID)
}

func (h *AdminHandler) respondItem(w http.ResponseWriter, r *http.Request, id int64) {
	item, err := store.GetItem(r.Context(), h.DB, id)
	if err != nil {
		writeError(r.Context(), h.Log, w, err)
		return
	}
	if item == nil {
		writeError(r.Context(), h.Log, w, errItemNotFound)
		return
	}
	jsonResponse(w, http.StatusOK, item)
}

// DeleteItem handles DELETE /api/admin/items/{id}. Swaps referencing the
// item go with it.
func (h *AdminHandler) DeleteItem(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	id, err := pathID(r, "id")
	if err != nil {
		writeError(ctx, h.Log, w, err)
		return
	}

	deleted, err := store.DeleteItem(ctx, h.DB, id)
	if err != nil {
		writeError(ctx, h.Log, w, err)
		return
	}
	if !deleted {
		writeError(ctx, h.Log, w, errItemNotFound)
		return
	}
	h.Log.Info(h.Log.WithField(ctx, "item_id", id), "item deleted by admin")
	jsonResponse(w, http.StatusOK, map[string]string{"message": "item deleted"})
}

// ListUsers handles GET /api/admin/users.
func (h *AdminHandler) ListUsers(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	page := pageParams(r)
	users, total, err := store.ListUsers(ctx, h.DB, page)
	if err != nil {
		writeError(ctx, h.Log, w, err)
		return
	}
	jsonResponse(w, http.StatusOK, pageResponse[model.User]{
		Data: users, Total: total, Page: page.Number, Limit: page.Limit,
	})
}

// loadUser fetches the user named by the {id} path parameter.
func (h *AdminHandler) loadUser(r *http.Request) (*model.User, error) {
	id, err := pathID(r, "id")
	if err != nil {
		return nil, err
	}
	user, err := store.GetUser(r.Context(), h.DB, id)
	if err != nil {
		return nil, err
	}
	if user == nil {
		return nil, swap.ErrUserNotFound
	}
	return user, nil
}

// SetAdmin handles PUT /api/admin/users/{id}/admin.
func (h *AdminHandler) SetAdmin(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	target, err := h.loadUser(r)
	if err != nil {
		writeError(ctx, h.Log, w, err)
		return
	}
	if target.ID == CurrentUser(ctx).ID {
		writeError(ctx, h.Log, w, errSelfModify)
		return
	}

	var req setAdminRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(ctx, h.Log, w, err)
		return
	}

	switch {
	case *req.IsAdmin && !target.IsAdmin:
		var ok bool
		ok, err = store.PromoteUser(ctx, h.DB, target.ID)
		if err == nil && !ok {
			err = swap.ErrUserNotFound
		}
	case !*req.IsAdmin && target.IsAdmin:
		err = h.DB.InTx(ctx, func(tx *db.Tx) error {
			ok, err := store.DemoteUser(ctx, tx, target.ID)
			if err != nil {
				return err
			}
			if !ok {
				return errLastAdmin
			}
			return nil
		})
	}
	if err != nil {
		writeError(ctx, h.Log, w, err)
		return
	}

	h.Log.Info(h.Log.WithFields(ctx, map[string]any{
		"target_user_id": target.ID,
		"is_admin":       *req.IsAdmin,
	}), "admin flag updated")
	h.respondUser(w, r, target.ID)
}

// AdjustPoints handles PUT /api/admin/users/{id}/points. The new balance
// replaces the old one; the change is logged with the given reason.
func (h *AdminHandler) AdjustPoints(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	target, err := h.loadUser(r)
	if err != nil {
		writeError(ctx, h.Log, w, err)
		return
	}

	var req adjustPointsRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(ctx, h.Log, w, err)
		return
	}

	if err := store.SetUserPoints(ctx, h.DB, target.ID, *req.Points); err != nil {
		writeError(ctx, h.Log, w, err)
		return
	}

	h.Log.Info(h.Log.WithFields(ctx, map[string]any{
		"target_user_id": target.ID,
		"old_points":     target.Points,
		"new_points":     *req.Points,
		"reason":         strings.TrimSpace(req.Reason),
	}), "points adjusted")
	h.respondUser(w, r, target.ID)
}

func (h *AdminHandler) respondUser(w http.ResponseWriter, r *http.Request, id int64) {
	user, err := store.GetUser(r.Context(), h.DB, id)
	if err != nil {
		writeError(r.Context(), h.Log, w, err)
		return
	}
	if user == nil {
		writeError(r.Context(), h.Log, w, swap.ErrUserNotFound)
		return
	}
	jsonResponse(w, http.StatusOK, user)
}

// Stats handles GET /api/admin/stats.
func (h *AdminHandler) Stats(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	stats, err := store.GetPlatformStats(ctx, h.DB)
	if err != nil {
		writeError(ctx, h.Log, w, err)
		return
	}
	jsonResponse(w, http.StatusOK, stats)
}

// Categories handles GET /api/admin/categories.
func (h *AdminHandler) Categories(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	stats, err := store.GetCategoryStats(ctx, h.DB)
	if err != nil {
		writeError(ctx, h.Log, w, err)
		return
	}
	jsonResponse(w, http.StatusOK, stats)
}
