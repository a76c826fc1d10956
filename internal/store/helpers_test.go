package store

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/erazemk/rewear/internal/db"
	"github.com/erazemk/rewear/internal/model"
)

func mustUser(t *testing.T, q db.Querier, email string, points int) *model.User {
	t.Helper()
	u, err := CreateUser(context.Background(), q, NewUser{
		Email:        email,
		PasswordHash: "hash",
		FirstName:    "Test",
		LastName:     "User",
		Points:       points,
	})
	require.NoError(t, err)
	return u
}

func mustItem(t *testing.T, q db.Querier, ownerID int64, title string, approved bool) *model.Item {
	t.Helper()
	item, err := CreateItem(context.Background(), q, NewItem{
		OwnerID:     ownerID,
		Title:       title,
		Description: "A well-loved garment",
		Category:    "tops",
		Type:        "shirt",
		Size:        "M",
		Condition:   "good",
		Tags:        []string{"cotton"},
		PointsValue: model.DefaultPointsValue,
		Approved:    approved,
	})
	require.NoError(t, err)
	return item
}

func promote(t *testing.T, q db.Querier, id int64) {
	t.Helper()
	ok, err := PromoteUser(context.Background(), q, id)
	require.NoError(t, err)
	require.True(t, ok)
}

func demote(ctx context.Context, database *db.DB, id int64) (bool, error) {
	var ok bool
	err := database.InTx(ctx, func(tx *db.Tx) error {
		var err error
		ok, err = DemoteUser(ctx, tx, id)
		return err
	})
	return ok, err
}

func reject(t *testing.T, q db.Querier, id int64, reason string) {
	t.Helper()
	ok, err := RejectItem(context.Background(), q, id, reason)
	require.NoError(t, err)
	require.True(t, ok)
}

func transition(t *testing.T, q db.Querier, id int64, from, to model.SwapStatus) {
	t.Helper()
	ok, err := TransitionSwap(context.Background(), q, id, from, to)
	require.NoError(t, err)
	require.True(t, ok)
}
