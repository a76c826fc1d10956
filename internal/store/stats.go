package store

import (
	"context"
	"fmt"

	"github.com/erazemk/rewear/internal/db"
	"github.com/erazemk/rewear/internal/model"
)

// PlatformStats are marketplace-wide totals.
type PlatformStats struct {
	TotalUsers     int   `json:"totalUsers"`
	TotalItems     int   `json:"totalItems"`
	ListedItems    int   `json:"listedItems"`
	PendingItems   int   `json:"pendingItems"`
	PendingSwaps   int   `json:"pendingSwaps"`
	CompletedSwaps int   `json:"completedSwaps"`
	TotalSwaps     int   `json:"totalSwaps"`
	TotalPoints    int64 `json:"totalPoints"`
}

// GetPlatformStats gathers marketplace-wide totals.
func GetPlatformStats(ctx context.Context, q db.Querier) (*PlatformStats, error) {
	st := &PlatformStats{}
	err := q.QueryRowContext(ctx,
		`SELECT
		   (SELECT COUNT(*) FROM users),
		   (SELECT COALESCE(SUM(points), 0) FROM users),
		   (SELECT COUNT(*) FROM items),
		   (SELECT COUNT(*) FROM items WHERE is_approved = ? AND is_available = ?),
		   (SELECT COUNT(*) FROM items WHERE is_approved = ? AND rejection_reason IS NULL)`,
		true, true, false,
	).Scan(&st.TotalUsers, &st.TotalPoints, &st.TotalItems, &st.ListedItems, &st.PendingItems)
	if err != nil {
		return nil, fmt.Errorf("gathering stats: %w", err)
	}

	counts, err := CountSwaps(ctx, q, 0)
	if err != nil {
		return nil, err
	}
	st.PendingSwaps = counts.Pending
	st.CompletedSwaps = counts.Completed
	st.TotalSwaps = counts.Total
	return st, nil
}

// UserStats summarizes one user's listings and swaps.
type UserStats struct {
	TotalItems     int              `json:"totalItems"`
	AvailableItems int              `json:"availableItems"`
	PendingItems   int              `json:"pendingItems"`
	Swaps          model.SwapCounts `json:"swaps"`
}

// GetUserStats gathers listing and swap counts for a user.
func GetUserStats(ctx context.Context, q db.Querier, userID int64) (*UserStats, error) {
	st := &UserStats{}
	err := q.QueryRowContext(ctx,
		`SELECT
		   COUNT(*),
		   COALESCE(SUM(CASE WHEN is_available = ? THEN 1 ELSE 0 END), 0),
		   COALESCE(SUM(CASE WHEN is_approved = ? AND rejection_reason IS NULL THEN 1 ELSE 0 END), 0)
		 FROM items WHERE user_id = ?`,
		true, false, userID,
	).Scan(&st.TotalItems, &st.AvailableItems, &st.PendingItems)
	if err != nil {
		return nil, fmt.Errorf("gathering user stats: %w", err)
	}

	st.Swaps, err = CountSwaps(ctx, q, userID)
	if err != nil {
		return nil, err
	}
	return st, nil
}

// CategoryStats counts the items filed under one category.
type CategoryStats struct {
	Category       string `json:"category"`
	TotalItems     int    `json:"totalItems"`
	ApprovedItems  int    `json:"approvedItems"`
	AvailableItems int    `json:"availableItems"`
}

// GetCategoryStats returns per-category item counts, largest first.
func GetCategoryStats(ctx context.Context, q db.Querier) ([]CategoryStats, error) {
	rows, err := q.QueryContext(ctx,
		`SELECT category,
		        COUNT(*),
		        SUM(CASE WHEN is_approved = ? THEN 1 ELSE 0 END),
		        SUM(CASE WHEN is_available = ? THEN 1 ELSE 0 END)
		 FROM items
		 GROUP BY category
		 ORDER BY COUNT(*) DESC, category`,
		true, true,
	)
	if err != nil {
		return nil, fmt.Errorf("gathering category stats: %w", err)
	}
	defer rows.Close()

	stats := []CategoryStats{}
	for rows.Next() {
		var c CategoryStats
		if err := rows.Scan(&c.Category, &c.TotalItems, &c.ApprovedItems, &c.AvailableItems); err != nil {
			return nil, fmt.Errorf("scanning category stats: %w", err)
		}
		stats = append(stats, c)
	}
	return stats, rows.Err()
}
