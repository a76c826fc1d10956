package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/erazemk/rewear/internal/db"
)

// ItemImage is a stored, already processed photo.
type ItemImage struct {
	ItemID   int64
	Position int
	Data     []byte
	MIME     string
}

// CountItemImages returns how many images an item has.
func CountItemImages(ctx context.Context, q db.Querier, itemID int64) (int, error) {
	var n int
	err := q.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM item_images WHERE item_id = ?`, itemID,
	).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("counting item images: %w", err)
	}
	return n, nil
}

// AddItemImage appends an image after the item's last one and returns its
// position. Callers run it in a transaction together with CountItemImages.
func AddItemImage(ctx context.Context, q db.Querier, itemID int64, data []byte, mime string) (int, error) {
	var next int
	err := q.QueryRowContext(ctx,
		`SELECT COALESCE(MAX(position) + 1, 0) FROM item_images WHERE item_id = ?`, itemID,
	).Scan(&next)
	if err != nil {
		return 0, fmt.Errorf("finding image position: %w", err)
	}

	_, err = q.ExecContext(ctx,
		`INSERT INTO item_images (item_id, position, data, mime) VALUES (?, ?, ?, ?)`,
		itemID, next, data, mime,
	)
	if err != nil {
		return 0, fmt.Errorf("storing item image: %w", err)
	}

	_, err = q.ExecContext(ctx,
		`UPDATE items SET updated_at = CURRENT_TIMESTAMP WHERE id = ?`, itemID,
	)
	if err != nil {
		return 0, fmt.Errorf("touching item: %w", err)
	}
	return next, nil
}

// GetItemImage returns the image at pos, or nil if there is none.
func GetItemImage(ctx context.Context, q db.Querier, itemID int64, pos int) (*ItemImage, error) {
	img := &ItemImage{ItemID: itemID, Position: pos}
	err := q.QueryRowContext(ctx,
		`SELECT data, mime FROM item_images WHERE item_id = ? AND position = ?`, itemID, pos,
	).Scan(&img.Data, &img.MIME)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("getting item image: %w", err)
	}
	return img, nil
}
