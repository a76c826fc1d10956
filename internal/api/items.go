package api

import (
	"errors"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/erazemk/rewear/internal/apperr"
	"github.com/erazemk/rewear/internal/db"
	"github.com/erazemk/rewear/internal/imaging"
	"github.com/erazemk/rewear/internal/logger"
	"github.com/erazemk/rewear/internal/model"
	"github.com/erazemk/rewear/internal/store"
)

// FeaturedCount is how many listings GET /api/items/featured returns.
const FeaturedCount = 6

var (
	errItemNotFound  = apperr.New(apperr.CodeNotFound, "Item not found")
	errNotItemOwner  = apperr.New(apperr.CodeForbidden, "Only the owner can modify this item")
	errImageNotFound = apperr.New(apperr.CodeNotFound, "Image not found")
	errImageRequired = apperr.New(apperr.CodeValidation, "image file required")
	errTooManyImages = apperr.New(apperr.CodeValidation, "item already has the maximum number of images")
	errItemCommitted = apperr.New(apperr.CodePrecondition, "item is committed to a swap and cannot be relisted")
)

// ItemsHandler handles listing endpoints.
type ItemsHandler struct {
	DB          *db.DB
	Log         *logger.Logger
	Images      imaging.Processor
	MaxImages   int
	AutoApprove bool
}

type itemRequest struct {
	Title       string   `json:"title" validate:"required,max=255"`
	Description string   `json:"description" validate:"required,max=5000"`
	Category    string   `json:"category" validate:"required,max=64"`
	Type        string   `json:"type" validate:"required,max=64"`
	Size        string   `json:"size" validate:"max=32"`
	Condition   string   `json:"condition" validate:"required,max=32"`
	Tags        []string `json:"tags" validate:"max=20,dive,required,max=32"`
	PointsValue *int     `json:"pointsValue" validate:"omitempty,min=10,max=500"`
	IsAvailable *bool    `json:"isAvailable"`
}

func (r *itemRequest) normalize() {
	r.Title = strings.TrimSpace(r.Title)
	r.Description = strings.TrimSpace(r.Description)
	r.Category = strings.TrimSpace(r.Category)
	r.Type = strings.TrimSpace(r.Type)
	r.Size = strings.TrimSpace(r.Size)
	r.Condition = strings.TrimSpace(r.Condition)

	tags := make([]string, 0, len(r.Tags))
	seen := map[string]bool{}
	for _, t := range r.Tags {
		t = strings.ToLower(strings.TrimSpace(t))
		if t == "" || seen[t] {
			continue
		}
		seen[t] = true
		tags = append(tags, t)
	}
	r.Tags = tags
}

func (r *itemRequest) pointsValue() int {
	if r.PointsValue == nil {
		return model.DefaultPointsValue
	}
	return *r.PointsValue
}

// canView reports whether user may see an item that is not publicly listed.
func canView(user *model.User, item *model.Item) bool {
	if item.IsApproved {
		return true
	}
	return user != nil && (user.IsAdmin || user.ID == item.OwnerID)
}

// List handles GET /api/items: approved, available listings.
func (h *ItemsHandler) List(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	page := pageParams(r)

	items, total, err := store.ListItems(r.Context(), h.DB, store.ItemFilter{
		Category: q.Get("category"),
		Search:   q.Get("search"),
		Status:   store.ItemStatusListed,
	}, page)
	if err != nil {
		writeError(r.Context(), h.Log, w, err)
		return
	}
	jsonResponse(w, http.StatusOK, pageResponse[model.Item]{Data: items, Total: total, Page: page.Number, Limit: page.Limit})
}

// Featured handles GET /api/items/featured.
func (h *ItemsHandler) Featured(w http.ResponseWriter, r *http.Request) {
	items, _, err := store.ListItems(r.Context(), h.DB,
		store.ItemFilter{Status: store.ItemStatusListed}, store.Page{Number: 1, Limit: FeaturedCount})
	if err != nil {
		writeError(r.Context(), h.Log, w, err)
		return
	}
	jsonResponse(w, http.StatusOK, items)
}

// Mine handles GET /api/items/mine: every item the caller owns.
func (h *ItemsHandler) Mine(w http.ResponseWriter, r *http.Request) {
	user := CurrentUser(r.Context())
	page := pageParams(r)

	items, total, err := store.ListItems(r.Context(), h.DB, store.ItemFilter{OwnerID: user.ID}, page)
	if err != nil {
		writeError(r.Context(), h.Log, w, err)
		return
	}
	jsonResponse(w, http.StatusOK, pageResponse[model.Item]{Data: items, Total: total, Page: page.Number, Limit: page.Limit})
}

// Get handles GET /api/items/{id}. Unapproved items are visible to their
// owner and admins only.
func (h *ItemsHandler) Get(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		writeError(r.Context(), h.Log, w, err)
		return
	}

	item, err := store.GetItem(r.Context(), h.DB, id)
	if err != nil {
		writeError(r.Context(), h.Log, w, err)
		return
	}
	if item == nil || !canView(CurrentUser(r.Context()), item) {
		writeError(r.Context(), h.Log, w, errItemNotFound)
		return
	}
	jsonResponse(w, http.StatusOK, item)
}

// Create handles POST /api/items. New listings wait for moderation unless
// auto-approval is enabled.
func (h *ItemsHandler) Create(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	user := CurrentUser(ctx)

	var req itemRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(ctx, h.Log, w, err)
		return
	}

	item, err := store.CreateItem(ctx, h.DB, store.NewItem{
		OwnerID:     user.ID,
		Title:       req.Title,
		Description: req.Description,
		Category:    req.Category,
		Type:        req.Type,
		Size:        req.Size,
		Condition:   req.Condition,
		Tags:        req.Tags,
		PointsValue: req.pointsValue(),
		Approved:    h.AutoApprove,
	})
	if err != nil {
		writeError(ctx, h.Log, w, err)
		return
	}

	h.Log.Info(h.Log.WithFields(ctx, map[string]any{"item_id": item.ID, "approved": item.IsApproved}), "item created")
	jsonResponse(w, http.StatusCreated, item)
}

// loadOwned fetches an item and checks the caller owns it.
func (h *ItemsHandler) loadOwned(r *http.Request) (*model.Item, error) {
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
	if item.OwnerID != CurrentUser(r.Context()).ID {
		return nil, errNotItemOwner
	}
	return item, nil
}

// Update handles PUT /api/items/{id}. Content edits to an approved listing
// send it back to moderation unless auto-approval is enabled. Relisting is
// refused while the item is committed to a swap.
func (h *ItemsHandler) Update(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	item, err := h.loadOwned(r)
	if err != nil {
		writeError(ctx, h.Log, w, err)
		return
	}

	var req itemRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(ctx, h.Log, w, err)
		return
	}

	var updated *model.Item
	err = h.DB.InTx(ctx, func(tx *db.Tx) error {
		current, err := store.GetItemForUpdate(ctx, tx, item.ID)
		if err != nil {
			return err
		}
		if current == nil {
			return errItemNotFound
		}
		if current.OwnerID != CurrentUser(ctx).ID {
			return errNotItemOwner
		}

		u := store.ItemUpdate{
			Title:       req.Title,
			Description: req.Description,
			Category:    req.Category,
			Type:        req.Type,
			Size:        req.Size,
			Condition:   req.Condition,
			Tags:        req.Tags,
			PointsValue: current.PointsValue,
			IsAvailable: req.IsAvailable,
		}
		if req.PointsValue != nil {
			u.PointsValue = *req.PointsValue
		}
		u.Resubmit = !h.AutoApprove && current.IsApproved && u.ContentChanged(current)

		if req.IsAvailable != nil && *req.IsAvailable && !current.IsAvailable {
			committed, err := store.ItemCommitted(ctx, tx, current.ID)
			if err != nil {
				return err
			}
			if committed {
				return errItemCommitted
			}
		}

		updated, err = store.UpdateItem(ctx, tx, current.ID, u)
		return err
	})
	if err != nil {
		writeError(ctx, h.Log, w, err)
		return
	}

	h.Log.Info(h.Log.WithFields(ctx, map[string]any{
		"item_id":   item.ID,
		"status":    updated.Status(),
		"available": updated.IsAvailable,
	}), "item updated")
	jsonResponse(w, http.StatusOK, updated)
}

// Delete handles DELETE /api/items/{id}.
func (h *ItemsHandler) Delete(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	item, err := h.loadOwned(r)
	if err != nil {
		writeError(ctx, h.Log, w, err)
		return
	}

	if _, err := store.DeleteItem(ctx, h.DB, item.ID); err != nil {
		writeError(ctx, h.Log, w, err)
		return
	}

	h.Log.Info(h.Log.WithField(ctx, "item_id", item.ID), "item deleted")
	jsonResponse(w, http.StatusOK, map[string]string{"message": "item deleted"})
}

// UploadImage handles POST /api/items/{id}/images with a multipart "image" field.
func (h *ItemsHandler) UploadImage(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	item, err := h.loadOwned(r)
	if err != nil {
		writeError(ctx, h.Log, w, err)
		return
	}

	limit := h.Images.MaxBytes
	if limit <= 0 {
		limit = imaging.DefaultMaxBytes
	}
	r.Body = http.MaxBytesReader(w, r.Body, limit+(1<<16))
	if err := r.ParseMultipartForm(limit); err != nil {
		writeError(ctx, h.Log, w, apperr.Wrap(apperr.CodeValidation, err, "file too large or invalid multipart form"))
		return
	}

	file, _, err := r.FormFile("image")
	if err != nil {
		writeError(ctx, h.Log, w, errImageRequired)
		return
	}
	defer file.Close()

	processed, err := h.Images.Process(file)
	if err != nil {
		if errors.Is(err, imaging.ErrTooLarge) || errors.Is(err, imaging.ErrUnsupported) {
			writeError(ctx, h.Log, w, apperr.Wrap(apperr.CodeValidation, err, err.Error()))
			return
		}
		writeError(ctx, h.Log, w, apperr.Wrap(apperr.CodeValidation, err, "image could not be decoded"))
		return
	}

	var pos int
	err = h.DB.InTx(ctx, func(tx *db.Tx) error {
		n, err := store.CountItemImages(ctx, tx, item.ID)
		if err != nil {
			return err
		}
		if h.MaxImages > 0 && n >= h.MaxImages {
			return errTooManyImages
		}
		pos, err = store.AddItemImage(ctx, tx, item.ID, processed.Data, processed.MIME)
		return err
	})
	if err != nil {
		writeError(ctx, h.Log, w, err)
		return
	}

	h.Log.Info(h.Log.WithFields(ctx, map[string]any{"item_id": item.ID, "position": pos}), "item image uploaded")
	jsonResponse(w, http.StatusCreated, map[string]any{
		"position": pos,
		"uri":      model.ImageURI(item.ID, pos),
	})
}

// GetImage handles GET /api/items/{id}/images/{pos}.
func (h *ItemsHandler) GetImage(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		writeError(r.Context(), h.Log, w, err)
		return
	}
	pos, err := strconv.Atoi(chi.URLParam(r, "pos"))
	if err != nil || pos < 0 {
		writeError(r.Context(), h.Log, w, errImageNotFound)
		return
	}

	img, err := store.GetItemImage(r.Context(), h.DB, id, pos)
	if err != nil {
		writeError(r.Context(), h.Log, w, err)
		return
	}
	if img == nil {
		writeError(r.Context(), h.Log, w, errImageNotFound)
		return
	}

	w.Header().Set("Content-Type", img.MIME)
	w.Header().Set("Content-Length", strconv.Itoa(len(img.Data)))
	w.Header().Set("Cache-Control", "public, max-age=86400")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(img.Data)
}
