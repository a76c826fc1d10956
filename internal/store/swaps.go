package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/erazemk/rewear/internal/db"
	"github.com/erazemk/rewear/internal/model"
)

const swapColumns = `s.id, s.requester_id, s.owner_id, s.item_id, s.offered_item_id, s.swap_type,
	s.status, s.points_offered, s.message, s.created_at, s.updated_at`

const swapSelect = `SELECT ` + swapColumns + `,
	i.title, COALESCE(oi.title, ''), r.first_name, r.last_name
	FROM swaps s
	JOIN items i ON i.id = s.item_id
	JOIN users r ON r.id = s.requester_id
	LEFT JOIN items oi ON oi.id = s.offered_item_id`

// Swap list roles for ListUserSwaps.
const (
	SwapRoleAny       = ""
	SwapRoleRequester = "requester"
	SwapRoleOwner     = "owner"
)

// InsertSwap stores a new swap row and returns it with joined fields.
// A unique violation means the item already has a pending swap.
func InsertSwap(ctx context.Context, q db.Querier, s *model.Swap) (*model.Swap, error) {
	var id int64
	err := q.QueryRowContext(ctx,
		`INSERT INTO swaps (requester_id, owner_id, item_id, offered_item_id, swap_type,
		                    status, points_offered, message)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?) RETURNING id`,
		s.RequesterID, s.OwnerID, s.ItemID, s.OfferedItemID, string(s.Type),
		string(s.Status), s.PointsOffered, s.Message,
	).Scan(&id)
	if err != nil {
		return nil, fmt.Errorf("creating swap: %w", err)
	}

	return GetSwap(ctx, q, id)
}

func scanSwapCore(row interface{ Scan(...any) error }, extra ...any) (*model.Swap, error) {
	s := &model.Swap{}
	var swapType, status string
	dest := []any{&s.ID, &s.RequesterID, &s.OwnerID, &s.ItemID, &s.OfferedItemID, &swapType,
		&status, &s.PointsOffered, &s.Message, &s.CreatedAt, &s.UpdatedAt}
	if err := row.Scan(append(dest, extra...)...); err != nil {
		return nil, err
	}
	s.Type = model.SwapType(swapType)
	s.Status = model.SwapStatus(status)
	return s, nil
}

func scanSwap(row interface{ Scan(...any) error }) (*model.Swap, error) {
	var itemTitle, offeredTitle, firstName, lastName string
	s, err := scanSwapCore(row, &itemTitle, &offeredTitle, &firstName, &lastName)
	if err != nil {
		return nil, err
	}
	s.ItemTitle = itemTitle
	s.OfferedItemTitle = offeredTitle
	s.RequesterFirstName = firstName
	s.RequesterLastName = lastName
	return s, nil
}

// GetSwap returns a swap by ID, or nil if none exists.
func GetSwap(ctx context.Context, q db.Querier, id int64) (*model.Swap, error) {
	s, err := scanSwap(q.QueryRowContext(ctx, swapSelect+` WHERE s.id = ?`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("getting swap: %w", err)
	}
	return s, nil
}

// GetSwapForUpdate reads a swap with a row lock for use inside a
// transaction. Joined fields are not populated.
func GetSwapForUpdate(ctx context.Context, q db.Querier, id int64) (*model.Swap, error) {
	s, err := scanSwapCore(q.QueryRowContext(ctx,
		`SELECT `+swapColumns+` FROM swaps s WHERE s.id = ?`+q.Dialect().ForUpdate(), id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("locking swap: %w", err)
	}
	return s, nil
}

// HasPendingSwap reports whether any pending swap targets the item.
func HasPendingSwap(ctx context.Context, q db.Querier, itemID int64) (bool, error) {
	var n int
	err := q.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM swaps WHERE item_id = ? AND status = ?`,
		itemID, string(model.SwapStatusPending),
	).Scan(&n)
	if err != nil {
		return false, fmt.Errorf("checking pending swaps: %w", err)
	}
	return n > 0, nil
}

// TransitionSwap moves a swap from one status to another. It reports false
// when the swap was no longer in the from status.
func TransitionSwap(ctx context.Context, q db.Querier, id int64, from, to model.SwapStatus) (bool, error) {
	res, err := q.ExecContext(ctx,
		`UPDATE swaps SET status = ?, updated_at = CURRENT_TIMESTAMP WHERE id = ? AND status = ?`,
		string(to), id, string(from),
	)
	if err != nil {
		return false, fmt.Errorf("updating swap status: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("updating swap status: %w", err)
	}
	return n == 1, nil
}

// ListUserSwaps returns swaps the user requested, received, or both,
// newest first.
func ListUserSwaps(ctx context.Context, q db.Querier, userID int64, role string) ([]model.Swap, error) {
	query := swapSelect
	var args []any
	switch role {
	case SwapRoleRequester:
		query += ` WHERE s.requester_id = ?`
		args = append(args, userID)
	case SwapRoleOwner:
		query += ` WHERE s.owner_id = ?`
		args = append(args, userID)
	default:
		query += ` WHERE s.requester_id = ? OR s.owner_id = ?`
		args = append(args, userID, userID)
	}
	query += ` ORDER BY s.created_at DESC, s.id DESC`

	rows, err := q.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("listing swaps: %w", err)
	}
	defer rows.Close()

	swaps := []model.Swap{}
	for rows.Next() {
		s, err := scanSwap(rows)
		if err != nil {
			return nil, fmt.Errorf("scanning swap: %w", err)
		}
		swaps = append(swaps, *s)
	}
	return swaps, rows.Err()
}

// CountSwaps tallies swaps by status. A userID of zero counts every swap;
// otherwise only swaps the user takes part in.
func CountSwaps(ctx context.Context, q db.Querier, userID int64) (model.SwapCounts, error) {
	query := `SELECT status, COUNT(*) FROM swaps`
	var args []any
	if userID > 0 {
		query += ` WHERE requester_id = ? OR owner_id = ?`
		args = append(args, userID, userID)
	}
	query += ` GROUP BY status`

	var counts model.SwapCounts
	rows, err := q.QueryContext(ctx, query, args...)
	if err != nil {
		return counts, fmt.Errorf("counting swaps: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var status string
		var n int
		if err := rows.Scan(&status, &n); err != nil {
			return counts, fmt.Errorf("scanning swap count: %w", err)
		}
		switch model.SwapStatus(status) {
		case model.SwapStatusPending:
			counts.Pending = n
		case model.SwapStatusAccepted:
			counts.Accepted = n
		case model.SwapStatusRejected:
			counts.Rejected = n
		case model.SwapStatusCompleted:
			counts.Completed = n
		}
		counts.Total += n
	}
	return counts, rows.Err()
}
