package swap

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/erazemk/rewear/internal/db"
	"github.com/erazemk/rewear/internal/logger"
	"github.com/erazemk/rewear/internal/metrics"
	"github.com/erazemk/rewear/internal/model"
	"github.com/erazemk/rewear/internal/store"
)

type fixture struct {
	t      *testing.T
	ctx    context.Context
	db     *db.DB
	engine *Engine
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	database := db.NewTestDB(t)
	return &fixture{
		t:   t,
		ctx: context.Background(),
		db:  database,
		engine: &Engine{
			DB:      database,
			Log:     logger.Nop(),
			Metrics: metrics.NewSwaps(prometheus.NewRegistry()),
		},
	}
}

func (f *fixture) user(email string, points int) *model.User {
	f.t.Helper()
	u, err := store.CreateUser(f.ctx, f.db, store.NewUser{
		Email: email, PasswordHash: "hash", FirstName: "U", LastName: email, Points: points,
	})
	require.NoError(f.t, err)
	return u
}

func (f *fixture) item(ownerID int64, title string, pointsValue int) *model.Item {
	f.t.Helper()
	item, err := store.CreateItem(f.ctx, f.db, store.NewItem{
		OwnerID: ownerID, Title: title, Description: "d", Category: "tops", Type: "shirt",
		Condition: "good", PointsValue: pointsValue, Approved: true,
	})
	require.NoError(f.t, err)
	return item
}

func (f *fixture) reloadUser(id int64) *model.User {
	f.t.Helper()
	u, err := store.GetUser(f.ctx, f.db, id)
	require.NoError(f.t, err)
	require.NotNil(f.t, u)
	return u
}

func (f *fixture) reloadItem(id int64) *model.Item {
	f.t.Helper()
	item, err := store.GetItem(f.ctx, f.db, id)
	require.NoError(f.t, err)
	require.NotNil(f.t, item)
	return item
}

func (f *fixture) reloadSwap(id int64) *model.Swap {
	f.t.Helper()
	s, err := store.GetSwap(f.ctx, f.db, id)
	require.NoError(f.t, err)
	require.NotNil(f.t, s)
	return s
}

func (f *fixture) totalPoints() int64 {
	f.t.Helper()
	total, err := store.TotalPoints(f.ctx, f.db)
	require.NoError(f.t, err)
	return total
}

func (f *fixture) redeem(requester *model.User, item *model.Item, points int) *model.Swap {
	f.t.Helper()
	s, err := f.engine.Create(f.ctx, CreateParams{
		RequesterID: requester.ID, ItemID: item.ID, Type: model.SwapTypePoints, PointsOffered: points,
	})
	require.NoError(f.t, err)
	return s
}

func (f *fixture) offer(requester *model.User, target, offered *model.Item) *model.Swap {
	f.t.Helper()
	s, err := f.engine.Create(f.ctx, CreateParams{
		RequesterID: requester.ID, ItemID: target.ID, Type: model.SwapTypeDirect, OfferedItemID: &offered.ID,
	})
	require.NoError(f.t, err)
	return s
}

func TestPointsRedemptionSettlesOnAccept(t *testing.T) {
	f := newFixture(t)
	u1 := f.user("u1@example.com", 100)
	u2 := f.user("u2@example.com", 100)
	itemA := f.item(u2.ID, "Item A", 50)
	before := f.totalPoints()

	s := f.redeem(u1, itemA, 60)
	assert.Equal(t, model.SwapStatusPending, s.Status)
	assert.Equal(t, u2.ID, s.OwnerID)
	assert.Equal(t, 100, f.reloadUser(u1.ID).Points, "request must not move points")

	accepted, err := f.engine.Accept(f.ctx, s.ID, u2.ID)
	require.NoError(t, err)
	assert.Equal(t, model.SwapStatusAccepted, accepted.Status)

	assert.Equal(t, 40, f.reloadUser(u1.ID).Points)
	assert.Equal(t, 160, f.reloadUser(u2.ID).Points)
	a := f.reloadItem(itemA.ID)
	assert.False(t, a.IsAvailable)
	assert.Equal(t, u2.ID, a.OwnerID, "redemption does not move ownership")
	assert.Equal(t, before, f.totalPoints())
}

func TestDirectSwapExchangesOwners(t *testing.T) {
	f := newFixture(t)
	u1 := f.user("u1@example.com", 100)
	u2 := f.user("u2@example.com", 100)
	itemA := f.item(u2.ID, "Item A", 50)
	itemB := f.item(u1.ID, "Item B", 50)
	bystander := f.item(u2.ID, "Item C", 50)

	s := f.offer(u1, itemA, itemB)
	assert.Equal(t, 0, s.PointsOffered)

	_, err := f.engine.Accept(f.ctx, s.ID, u2.ID)
	require.NoError(t, err)

	a := f.reloadItem(itemA.ID)
	b := f.reloadItem(itemB.ID)
	assert.Equal(t, u1.ID, a.OwnerID)
	assert.Equal(t, u2.ID, b.OwnerID)
	assert.False(t, a.IsAvailable)
	assert.False(t, b.IsAvailable)

	c := f.reloadItem(bystander.ID)
	assert.Equal(t, u2.ID, c.OwnerID)
	assert.True(t, c.IsAvailable)

	assert.Equal(t, 100, f.reloadUser(u1.ID).Points)
	assert.Equal(t, 100, f.reloadUser(u2.ID).Points)
}

func TestCreatePreconditions(t *testing.T) {
	f := newFixture(t)
	u1 := f.user("u1@example.com", 100)
	u2 := f.user("u2@example.com", 100)
	u3 := f.user("u3@example.com", 100)
	own := f.item(u1.ID, "Own", 50)
	target := f.item(u2.ID, "Target", 50)
	foreign := f.item(u3.ID, "Foreign", 50)
	pricey := f.item(u2.ID, "Pricey", 200)

	unapproved, err := store.CreateItem(f.ctx, f.db, store.NewItem{
		OwnerID: u2.ID, Title: "Pending", Category: "c", Type: "t", Condition: "good", PointsValue: 50,
	})
	require.NoError(t, err)
	unapprovedOwn, err := store.CreateItem(f.ctx, f.db, store.NewItem{
		OwnerID: u1.ID, Title: "Pending own", Category: "c", Type: "t", Condition: "good", PointsValue: 50,
	})
	require.NoError(t, err)

	missing := int64(9999)
	tests := []struct {
		name string
		p    CreateParams
		want error
	}{
		{"self swap", CreateParams{RequesterID: u1.ID, ItemID: own.ID, Type: model.SwapTypePoints, PointsOffered: 50}, ErrSelfSwap},
		{"missing item", CreateParams{RequesterID: u1.ID, ItemID: missing, Type: model.SwapTypePoints, PointsOffered: 50}, ErrItemUnavailable},
		{"unapproved item", CreateParams{RequesterID: u1.ID, ItemID: unapproved.ID, Type: model.SwapTypePoints, PointsOffered: 50}, ErrItemUnavailable},
		{"unknown type", CreateParams{RequesterID: u1.ID, ItemID: target.ID, Type: "gift"}, ErrInvalidSwapType},
		{"direct without offer", CreateParams{RequesterID: u1.ID, ItemID: target.ID, Type: model.SwapTypeDirect}, ErrInvalidOffer},
		{"direct with foreign item", CreateParams{RequesterID: u1.ID, ItemID: target.ID, Type: model.SwapTypeDirect, OfferedItemID: &foreign.ID}, ErrInvalidOffer},
		{"direct with unapproved item", CreateParams{RequesterID: u1.ID, ItemID: target.ID, Type: model.SwapTypeDirect, OfferedItemID: &unapprovedOwn.ID}, ErrInvalidOffer},
		{"direct with missing item", CreateParams{RequesterID: u1.ID, ItemID: target.ID, Type: model.SwapTypeDirect, OfferedItemID: &missing}, ErrInvalidOffer},
		{"offer below value", CreateParams{RequesterID: u1.ID, ItemID: target.ID, Type: model.SwapTypePoints, PointsOffered: 49}, ErrInsufficientOffer},
		{"offer beyond balance", CreateParams{RequesterID: u1.ID, ItemID: pricey.ID, Type: model.SwapTypePoints, PointsOffered: 200}, ErrInsufficientBalance},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := f.engine.Create(f.ctx, tt.p)
			assert.ErrorIs(t, err, tt.want)
		})
	}

	counts, err := store.CountSwaps(f.ctx, f.db, 0)
	require.NoError(t, err)
	assert.Zero(t, counts.Total, "refused requests must not insert rows")
}

func TestDuplicatePendingSwap(t *testing.T) {
	f := newFixture(t)
	u1 := f.user("u1@example.com", 100)
	u2 := f.user("u2@example.com", 100)
	u3 := f.user("u3@example.com", 100)
	item := f.item(u2.ID, "Coat", 50)

	first := f.redeem(u1, item, 50)

	_, err := f.engine.Create(f.ctx, CreateParams{
		RequesterID: u3.ID, ItemID: item.ID, Type: model.SwapTypePoints, PointsOffered: 70,
	})
	assert.ErrorIs(t, err, ErrDuplicatePendingSwap)

	_, err = f.engine.Reject(f.ctx, first.ID, u2.ID)
	require.NoError(t, err)

	second := f.redeem(u3, item, 70)
	assert.Equal(t, model.SwapStatusPending, second.Status)
}

func TestConcurrentCreateAllowsOnePending(t *testing.T) {
	f := newFixture(t)
	owner := f.user("owner@example.com", 100)
	item := f.item(owner.ID, "Coat", 50)

	const n = 6
	requesters := make([]*model.User, n)
	for i := range requesters {
		requesters[i] = f.user("req"+string(rune('a'+i))+"@example.com", 100)
	}

	var wg sync.WaitGroup
	errs := make([]error, n)
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, errs[i] = f.engine.Create(f.ctx, CreateParams{
				RequesterID: requesters[i].ID, ItemID: item.ID, Type: model.SwapTypePoints, PointsOffered: 50,
			})
		}(i)
	}
	wg.Wait()

	var ok, dup int
	for _, err := range errs {
		switch {
		case err == nil:
			ok++
		case errors.Is(err, ErrDuplicatePendingSwap):
			dup++
		default:
			t.Errorf("unexpected error: %v", err)
		}
	}
	assert.Equal(t, 1, ok)
	assert.Equal(t, n-1, dup)
}

func TestAcceptIsOneShot(t *testing.T) {
	f := newFixture(t)
	u1 := f.user("u1@example.com", 100)
	u2 := f.user("u2@example.com", 100)
	item := f.item(u2.ID, "Coat", 50)
	s := f.redeem(u1, item, 60)

	_, err := f.engine.Accept(f.ctx, s.ID, u2.ID)
	require.NoError(t, err)

	_, err = f.engine.Accept(f.ctx, s.ID, u2.ID)
	assert.ErrorIs(t, err, ErrInvalidStateTransition)
	_, err = f.engine.Reject(f.ctx, s.ID, u2.ID)
	assert.ErrorIs(t, err, ErrInvalidStateTransition)

	assert.Equal(t, 40, f.reloadUser(u1.ID).Points, "retry must not debit twice")
	assert.Equal(t, 160, f.reloadUser(u2.ID).Points)
}

func TestConcurrentAcceptSettlesOnce(t *testing.T) {
	f := newFixture(t)
	u1 := f.user("u1@example.com", 100)
	u2 := f.user("u2@example.com", 100)
	item := f.item(u2.ID, "Coat", 50)
	s := f.redeem(u1, item, 60)

	const n = 4
	var wg sync.WaitGroup
	errs := make([]error, n)
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, errs[i] = f.engine.Accept(f.ctx, s.ID, u2.ID)
		}(i)
	}
	wg.Wait()

	var ok int
	for _, err := range errs {
		if err == nil {
			ok++
		} else {
			assert.ErrorIs(t, err, ErrInvalidStateTransition)
		}
	}
	assert.Equal(t, 1, ok)
	assert.Equal(t, 40, f.reloadUser(u1.ID).Points)
	assert.Equal(t, 160, f.reloadUser(u2.ID).Points)
}

func TestRespondRequiresItemOwner(t *testing.T) {
	f := newFixture(t)
	u1 := f.user("u1@example.com", 100)
	u2 := f.user("u2@example.com", 100)
	u3 := f.user("u3@example.com", 100)
	item := f.item(u2.ID, "Coat", 50)
	s := f.redeem(u1, item, 50)

	_, err := f.engine.Accept(f.ctx, s.ID, u3.ID)
	assert.ErrorIs(t, err, ErrItemOwnerMismatch)
	_, err = f.engine.Accept(f.ctx, s.ID, u1.ID)
	assert.ErrorIs(t, err, ErrItemOwnerMismatch)
	_, err = f.engine.Reject(f.ctx, s.ID, u3.ID)
	assert.ErrorIs(t, err, ErrItemOwnerMismatch)

	assert.Equal(t, model.SwapStatusPending, f.reloadSwap(s.ID).Status)
}

func TestRejectLeavesBalancesAlone(t *testing.T) {
	f := newFixture(t)
	u1 := f.user("u1@example.com", 100)
	u2 := f.user("u2@example.com", 100)
	item := f.item(u2.ID, "Coat", 50)
	s := f.redeem(u1, item, 60)

	rejected, err := f.engine.Reject(f.ctx, s.ID, u2.ID)
	require.NoError(t, err)
	assert.Equal(t, model.SwapStatusRejected, rejected.Status)

	assert.Equal(t, 100, f.reloadUser(u1.ID).Points)
	assert.Equal(t, 100, f.reloadUser(u2.ID).Points)
	assert.True(t, f.reloadItem(item.ID).IsAvailable)

	_, err = f.engine.Complete(f.ctx, s.ID, u1.ID)
	assert.ErrorIs(t, err, ErrInvalidStateTransition)
	_, err = f.engine.Accept(f.ctx, s.ID, u2.ID)
	assert.ErrorIs(t, err, ErrInvalidStateTransition)
}

func TestComplete(t *testing.T) {
	f := newFixture(t)
	u1 := f.user("u1@example.com", 100)
	u2 := f.user("u2@example.com", 100)
	u3 := f.user("u3@example.com", 100)
	itemA := f.item(u2.ID, "Item A", 50)
	itemB := f.item(u1.ID, "Item B", 50)
	s := f.offer(u1, itemA, itemB)

	_, err := f.engine.Complete(f.ctx, s.ID, u1.ID)
	assert.ErrorIs(t, err, ErrInvalidStateTransition, "pending swaps cannot complete")

	_, err = f.engine.Accept(f.ctx, s.ID, u2.ID)
	require.NoError(t, err)

	_, err = f.engine.Complete(f.ctx, s.ID, u3.ID)
	assert.ErrorIs(t, err, ErrAccessDenied)

	// The original owner no longer owns item A but may still complete.
	completed, err := f.engine.Complete(f.ctx, s.ID, u2.ID)
	require.NoError(t, err)
	assert.Equal(t, model.SwapStatusCompleted, completed.Status)

	_, err = f.engine.Complete(f.ctx, s.ID, u1.ID)
	assert.ErrorIs(t, err, ErrInvalidStateTransition)
}

func TestAcceptOfferedItemDeleted(t *testing.T) {
	f := newFixture(t)
	u1 := f.user("u1@example.com", 100)
	u2 := f.user("u2@example.com", 100)
	itemA := f.item(u2.ID, "Item A", 50)
	itemB := f.item(u1.ID, "Item B", 50)
	s := f.offer(u1, itemA, itemB)

	ok, err := store.DeleteItem(f.ctx, f.db, itemB.ID)
	require.NoError(t, err)
	require.True(t, ok)

	_, err = f.engine.Accept(f.ctx, s.ID, u2.ID)
	assert.ErrorIs(t, err, ErrOfferedItemMissing)

	assert.Equal(t, model.SwapStatusPending, f.reloadSwap(s.ID).Status, "failed accept must roll back")
	a := f.reloadItem(itemA.ID)
	assert.Equal(t, u2.ID, a.OwnerID)
	assert.True(t, a.IsAvailable)
}

func TestAcceptOfferedItemAlreadyTraded(t *testing.T) {
	f := newFixture(t)
	u1 := f.user("u1@example.com", 100)
	u2 := f.user("u2@example.com", 100)
	u3 := f.user("u3@example.com", 100)
	itemA := f.item(u2.ID, "Item A", 50)
	itemB := f.item(u1.ID, "Item B", 50)
	itemC := f.item(u3.ID, "Item C", 50)

	toU2 := f.offer(u1, itemA, itemB)
	toU3 := f.offer(u1, itemC, itemB)

	_, err := f.engine.Accept(f.ctx, toU3.ID, u3.ID)
	require.NoError(t, err)

	_, err = f.engine.Accept(f.ctx, toU2.ID, u2.ID)
	assert.ErrorIs(t, err, ErrInvalidOffer)
	assert.Equal(t, u2.ID, f.reloadItem(itemA.ID).OwnerID)
}

func TestAcceptRechecksBalance(t *testing.T) {
	f := newFixture(t)
	u1 := f.user("u1@example.com", 100)
	u2 := f.user("u2@example.com", 100)
	first := f.item(u2.ID, "First", 50)
	second := f.item(u2.ID, "Second", 50)

	s1 := f.redeem(u1, first, 60)
	s2 := f.redeem(u1, second, 60)

	_, err := f.engine.Accept(f.ctx, s1.ID, u2.ID)
	require.NoError(t, err)

	_, err = f.engine.Accept(f.ctx, s2.ID, u2.ID)
	assert.ErrorIs(t, err, ErrInsufficientBalance)

	assert.Equal(t, 40, f.reloadUser(u1.ID).Points)
	assert.Equal(t, model.SwapStatusPending, f.reloadSwap(s2.ID).Status)
	assert.True(t, f.reloadItem(second.ID).IsAvailable)
}

func TestAcceptRejectedListing(t *testing.T) {
	f := newFixture(t)
	u1 := f.user("u1@example.com", 100)
	u2 := f.user("u2@example.com", 100)
	item := f.item(u2.ID, "Coat", 50)
	s := f.redeem(u1, item, 50)

	ok, err := store.RejectItem(f.ctx, f.db, item.ID, "counterfeit")
	require.NoError(t, err)
	require.True(t, ok)

	_, err = f.engine.Accept(f.ctx, s.ID, u2.ID)
	assert.ErrorIs(t, err, ErrItemUnavailable)
	assert.Equal(t, 100, f.reloadUser(u1.ID).Points)
}

func TestAcceptRechecksPrice(t *testing.T) {
	f := newFixture(t)
	u1 := f.user("u1@example.com", 100)
	u2 := f.user("u2@example.com", 100)
	item := f.item(u2.ID, "Coat", 50)
	s := f.redeem(u1, item, 50)

	_, err := store.UpdateItem(f.ctx, f.db, item.ID, store.ItemUpdate{
		Title: item.Title, Description: item.Description, Category: item.Category,
		Type: item.Type, Condition: item.Condition, PointsValue: 80,
	})
	require.NoError(t, err)

	_, err = f.engine.Accept(f.ctx, s.ID, u2.ID)
	assert.ErrorIs(t, err, ErrInsufficientOffer)
	assert.Equal(t, 100, f.reloadUser(u1.ID).Points)
	assert.Equal(t, 100, f.reloadUser(u2.ID).Points)
	assert.Equal(t, model.SwapStatusPending, f.reloadSwap(s.ID).Status)
	assert.True(t, f.reloadItem(item.ID).IsAvailable)
}

func TestSwapNotFound(t *testing.T) {
	f := newFixture(t)
	u := f.user("u@example.com", 100)

	_, err := f.engine.Accept(f.ctx, 404, u.ID)
	assert.ErrorIs(t, err, ErrSwapNotFound)
	_, err = f.engine.Reject(f.ctx, 404, u.ID)
	assert.ErrorIs(t, err, ErrSwapNotFound)
	_, err = f.engine.Complete(f.ctx, 404, u.ID)
	assert.ErrorIs(t, err, ErrSwapNotFound)
}

func TestPointsConservedAcrossManySwaps(t *testing.T) {
	f := newFixture(t)
	users := []*model.User{
		f.user("a@example.com", 100),
		f.user("b@example.com", 150),
		f.user("c@example.com", 80),
	}
	before := f.totalPoints()

	for i, owner := range users {
		requester := users[(i+1)%len(users)]
		item := f.item(owner.ID, "Item", 30)
		s := f.redeem(requester, item, 30+i*10)
		_, err := f.engine.Accept(f.ctx, s.ID, owner.ID)
		require.NoError(t, err)
	}

	assert.Equal(t, before, f.totalPoints())
	for _, u := range users {
		assert.GreaterOrEqual(t, f.reloadUser(u.ID).Points, 0)
	}
}

func TestEngineToleratesNilLoggerAndMetrics(t *testing.T) {
	database := db.NewTestDB(t)
	engine := &Engine{DB: database}
	_, err := engine.Accept(context.Background(), 1, 1)
	assert.ErrorIs(t, err, ErrSwapNotFound)
}

func TestReasonLabels(t *testing.T) {
	assert.Equal(t, "self_swap", reason(ErrSelfSwap))
	assert.Equal(t, "internal", reason(errors.New("boom")))
	assert.True(t, isIntegrityViolation(ErrOfferedItemMissing))
	assert.False(t, isIntegrityViolation(ErrSelfSwap))
}
