package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"slices"
	"strings"

	"github.com/erazemk/rewear/internal/db"
	"github.com/erazemk/rewear/internal/model"
)

const itemColumns = `i.id, i.user_id, i.title, i.description, i.category, i.type, i.size,
	i.condition, i.tags, i.points_value, i.is_available, i.is_approved, i.rejection_reason,
	i.created_at, i.updated_at`

const itemSelect = `SELECT ` + itemColumns + `, u.first_name, u.last_name,
	(SELECT COUNT(*) FROM item_images im WHERE im.item_id = i.id)
	FROM items i JOIN users u ON u.id = i.user_id`

// NewItem holds the fields of a new listing.
type NewItem struct {
	OwnerID     int64
	Title       string
	Description string
	Category    string
	Type        string
	Size        string
	Condition   string
	Tags        []string
	PointsValue int
	Approved    bool
}

// ItemUpdate holds owner-editable listing fields.
type ItemUpdate struct {
	Title       string
	Description string
	Category    string
	Type        string
	Size        string
	Condition   string
	Tags        []string
	PointsValue int

	// IsAvailable, when set, lists or delists the item.
	IsAvailable *bool
	// Resubmit sends an approved item back to moderation.
	Resubmit bool
}

// ContentChanged reports whether u edits any listing content of item.
// Price and availability changes are not content.
func (u ItemUpdate) ContentChanged(item *model.Item) bool {
	return u.Title != item.Title ||
		u.Description != item.Description ||
		u.Category != item.Category ||
		u.Type != item.Type ||
		u.Size != item.Size ||
		u.Condition != item.Condition ||
		!slices.Equal(u.Tags, item.Tags)
}

// ItemFilter narrows ListItems. Zero values match everything.
type ItemFilter struct {
	OwnerID  int64
	Category string
	Search   string
	// Status is one of pending, approved, rejected, available, unavailable
	// or listed (approved and available).
	Status string
}

// Item filter statuses beyond model.ModerationStatus.
const (
	ItemStatusListed      = "listed"
	ItemStatusAvailable   = "available"
	ItemStatusUnavailable = "unavailable"
)

// ValidItemStatus reports whether s is accepted by ItemFilter.Status.
func ValidItemStatus(s string) bool {
	switch s {
	case "", ItemStatusListed, ItemStatusAvailable, ItemStatusUnavailable,
		string(model.ModerationPending), string(model.ModerationApproved), string(model.ModerationRejected):
		return true
	}
	return false
}

func encodeTags(tags []string) (string, error) {
	if tags == nil {
		tags = []string{}
	}
	b, err := json.Marshal(tags)
	if err != nil {
		return "", fmt.Errorf("encoding tags: %w", err)
	}
	return string(b), nil
}

func decodeTags(raw string, item *model.Item) error {
	item.Tags = []string{}
	if raw == "" {
		return nil
	}
	if err := json.Unmarshal([]byte(raw), &item.Tags); err != nil {
		return fmt.Errorf("decoding tags of item %d: %w", item.ID, err)
	}
	return nil
}

// CreateItem inserts a listing.
func CreateItem(ctx context.Context, q db.Querier, ni NewItem) (*model.Item, error) {
	tags, err := encodeTags(ni.Tags)
	if err != nil {
		return nil, err
	}

	var id int64
	err = q.QueryRowContext(ctx,
		`INSERT INTO items (user_id, title, description, category, type, size, condition,
		                    tags, points_value, is_approved)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?) RETURNING id`,
		ni.OwnerID, ni.Title, ni.Description, ni.Category, ni.Type, ni.Size, ni.Condition,
		tags, ni.PointsValue, ni.Approved,
	).Scan(&id)
	if err != nil {
		return nil, fmt.Errorf("creating item: %w", err)
	}

	return GetItem(ctx, q, id)
}

func scanItem(row interface{ Scan(...any) error }) (*model.Item, error) {
	item := &model.Item{}
	var tags string
	var images int
	err := row.Scan(&item.ID, &item.OwnerID, &item.Title, &item.Description, &item.Category,
		&item.Type, &item.Size, &item.Condition, &tags, &item.PointsValue,
		&item.IsAvailable, &item.IsApproved, &item.RejectionReason,
		&item.CreatedAt, &item.UpdatedAt,
		&item.OwnerFirstName, &item.OwnerLastName, &images)
	if err != nil {
		return nil, err
	}
	if err := decodeTags(tags, item); err != nil {
		return nil, err
	}
	item.Images = model.ImageURIs(item.ID, images)
	return item, nil
}

// GetItem returns an item by ID, or nil if none exists.
func GetItem(ctx context.Context, q db.Querier, id int64) (*model.Item, error) {
	item, err := scanItem(q.QueryRowContext(ctx, itemSelect+` WHERE i.id = ?`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("getting item: %w", err)
	}
	return item, nil
}

// GetItemForUpdate reads an item with a row lock for use inside a
// transaction. Joined fields and images are not populated.
func GetItemForUpdate(ctx context.Context, q db.Querier, id int64) (*model.Item, error) {
	item := &model.Item{}
	var tags string
	err := q.QueryRowContext(ctx,
		`SELECT `+itemColumns+` FROM items i WHERE i.id = ?`+q.Dialect().ForUpdate(), id,
	).Scan(&item.ID, &item.OwnerID, &item.Title, &item.Description, &item.Category,
		&item.Type, &item.Size, &item.Condition, &tags, &item.PointsValue,
		&item.IsAvailable, &item.IsApproved, &item.RejectionReason,
		&item.CreatedAt, &item.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("locking item: %w", err)
	}
	if err := decodeTags(tags, item); err != nil {
		return nil, err
	}
	return item, nil
}

func itemWhere(f ItemFilter) (string, []any) {
	var conds []string
	var args []any

	if f.OwnerID > 0 {
		conds = append(conds, `i.user_id = ?`)
		args = append(args, f.OwnerID)
	}
	if f.Category != "" {
		conds = append(conds, `i.category = ?`)
		args = append(args, f.Category)
	}
	if s := strings.TrimSpace(f.Search); s != "" {
		like := "%" + strings.ToLower(s) + "%"
		conds = append(conds, `(LOWER(i.title) LIKE ? OR LOWER(i.description) LIKE ? OR LOWER(i.tags) LIKE ?)`)
		args = append(args, like, like, like)
	}

	switch f.Status {
	case ItemStatusListed:
		conds = append(conds, `i.is_approved = ? AND i.is_available = ?`)
		args = append(args, true, true)
	case string(model.ModerationApproved):
		conds = append(conds, `i.is_approved = ?`)
		args = append(args, true)
	case string(model.ModerationPending):
		conds = append(conds, `i.is_approved = ? AND i.rejection_reason IS NULL`)
		args = append(args, false)
	case string(model.ModerationRejected):
		conds = append(conds, `i.is_approved = ? AND i.rejection_reason IS NOT NULL`)
		args = append(args, false)
	case ItemStatusAvailable:
		conds = append(conds, `i.is_available = ?`)
		args = append(args, true)
	case ItemStatusUnavailable:
		conds = append(conds, `i.is_available = ?`)
		args = append(args, false)
	}

	if len(conds) == 0 {
		return "", nil
	}
	return ` WHERE ` + strings.Join(conds, ` AND `), args
}

// ListItems returns one page of items matching f, newest first, and the
// total number of matches.
func ListItems(ctx context.Context, q db.Querier, f ItemFilter, page Page) ([]model.Item, int, error) {
	page = page.Normalize()
	where, args := itemWhere(f)

	var total int
	if err := q.QueryRowContext(ctx, `SELECT COUNT(*) FROM items i`+where, args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("counting items: %w", err)
	}

	rows, err := q.QueryContext(ctx,
		itemSelect+where+` ORDER BY i.created_at DESC, i.id DESC LIMIT ? OFFSET ?`,
		append(args, page.Limit, page.Offset())...,
	)
	if err != nil {
		return nil, 0, fmt.Errorf("listing items: %w", err)
	}
	defer rows.Close()

	items := []model.Item{}
	for rows.Next() {
		item, err := scanItem(rows)
		if err != nil {
			return nil, 0, fmt.Errorf("scanning item: %w", err)
		}
		items = append(items, *item)
	}
	return items, total, rows.Err()
}

// UpdateItem replaces the editable fields of an item. A rejected item
// returns to pending moderation, as does an approved one when Resubmit is
// set.
func UpdateItem(ctx context.Context, q db.Querier, id int64, u ItemUpdate) (*model.Item, error) {
	tags, err := encodeTags(u.Tags)
	if err != nil {
		return nil, err
	}

	query := `UPDATE items SET title = ?, description = ?, category = ?, type = ?, size = ?,
	        condition = ?, tags = ?, points_value = ?, rejection_reason = NULL,
	        updated_at = CURRENT_TIMESTAMP`
	args := []any{u.Title, u.Description, u.Category, u.Type, u.Size, u.Condition, tags, u.PointsValue}
	if u.IsAvailable != nil {
		query += `, is_available = ?`
		args = append(args, *u.IsAvailable)
	}
	if u.Resubmit {
		query += `, is_approved = ?`
		args = append(args, false)
	}
	query += ` WHERE id = ?`
	args = append(args, id)

	res, err := q.ExecContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("updating item: %w", err)
	}
	if n, err := res.RowsAffected(); err != nil || n != 1 {
		return nil, fmt.Errorf("updating item: item %d not updated", id)
	}

	return GetItem(ctx, q, id)
}

// ItemCommitted reports whether an item may not be relisted: it is part of
// an accepted swap still in flight, or it was redeemed for points.
func ItemCommitted(ctx context.Context, q db.Querier, id int64) (bool, error) {
	var committed bool
	err := q.QueryRowContext(ctx,
		`SELECT EXISTS (
		   SELECT 1 FROM swaps
		   WHERE (status = ? AND (item_id = ? OR offered_item_id = ?))
		      OR (status = ? AND swap_type = ? AND item_id = ?))`,
		string(model.SwapStatusAccepted), id, id,
		string(model.SwapStatusCompleted), string(model.SwapTypePoints), id,
	).Scan(&committed)
	if err != nil {
		return false, fmt.Errorf("checking item swaps: %w", err)
	}
	return committed, nil
}

// DeleteItem removes an item together with its images. It reports whether a
// row was deleted.
func DeleteItem(ctx context.Context, q db.Querier, id int64) (bool, error) {
	res, err := q.ExecContext(ctx, `DELETE FROM items WHERE id = ?`, id)
	if err != nil {
		return false, fmt.Errorf("deleting item: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("deleting item: %w", err)
	}
	return n == 1, nil
}

// ApproveItem marks an item approved and clears any rejection. It reports
// false when no such item exists.
func ApproveItem(ctx context.Context, q db.Querier, id int64) (bool, error) {
	res, err := q.ExecContext(ctx,
		`UPDATE items SET is_approved = ?, rejection_reason = NULL, updated_at = CURRENT_TIMESTAMP
		 WHERE id = ?`,
		true, id,
	)
	if err != nil {
		return false, fmt.Errorf("approving item: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("approving item: %w", err)
	}
	return n == 1, nil
}

// RejectItem withdraws approval and records the moderator's reason. It
// reports false when no such item exists.
func RejectItem(ctx context.Context, q db.Querier, id int64, reason string) (bool, error) {
	res, err := q.ExecContext(ctx,
		`UPDATE items SET is_approved = ?, rejection_reason = ?, updated_at = CURRENT_TIMESTAMP
		 WHERE id = ?`,
		false, reason, id,
	)
	if err != nil {
		return false, fmt.Errorf("rejecting item: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("rejecting item: %w", err)
	}
	return n == 1, nil
}

// MarkItemUnavailable takes an item out of circulation.
func MarkItemUnavailable(ctx context.Context, q db.Querier, id int64) error {
	res, err := q.ExecContext(ctx,
		`UPDATE items SET is_available = ?, updated_at = CURRENT_TIMESTAMP WHERE id = ?`,
		false, id,
	)
	if err != nil {
		return fmt.Errorf("marking item unavailable: %w", err)
	}
	if n, err := res.RowsAffected(); err != nil || n != 1 {
		return fmt.Errorf("marking item unavailable: item %d not updated", id)
	}
	return nil
}

// TransferItem hands an item to a new owner and takes it out of circulation.
func TransferItem(ctx context.Context, q db.Querier, id, newOwnerID int64) error {
	res, err := q.ExecContext(ctx,
		`UPDATE items SET user_id = ?, is_available = ?, updated_at = CURRENT_TIMESTAMP WHERE id = ?`,
		newOwnerID, false, id,
	)
	if err != nil {
		return fmt.Errorf("transferring item: %w", err)
	}
	if n, err := res.RowsAffected(); err != nil || n != 1 {
		return fmt.Errorf("transferring item: item %d not updated", id)
	}
	return nil
}
