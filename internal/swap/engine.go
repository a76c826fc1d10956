// Package swap implements the swap workflow: creating swap requests and
// moving them through pending, accepted, rejected and completed while
// settling points and item ownership.
package swap

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/erazemk/rewear/internal/apperr"
	"github.com/erazemk/rewear/internal/db"
	"github.com/erazemk/rewear/internal/logger"
	"github.com/erazemk/rewear/internal/metrics"
	"github.com/erazemk/rewear/internal/model"
	"github.com/erazemk/rewear/internal/store"
)

// Operation names used in logs and metrics.
const (
	OpCreate   = "create"
	OpAccept   = "accept"
	OpReject   = "reject"
	OpComplete = "complete"
)

// Engine runs every swap operation in a single database transaction. On
// SQLite the transaction holds the write lock from BEGIN; on PostgreSQL the
// swap, item and user rows are locked with SELECT ... FOR UPDATE.
type Engine struct {
	DB      *db.DB
	Log     *logger.Logger
	Metrics *metrics.Swaps
}

// CreateParams describes a new swap request.
type CreateParams struct {
	RequesterID   int64
	ItemID        int64
	Type          model.SwapType
	OfferedItemID *int64
	PointsOffered int
	Message       string
}

func (e *Engine) logger() *logger.Logger {
	if e.Log == nil {
		return logger.Nop()
	}
	return e.Log
}

// Create records a pending swap request for another user's item. Balances
// and ownership are untouched until the owner accepts.
func (e *Engine) Create(ctx context.Context, p CreateParams) (*model.Swap, error) {
	start := time.Now()
	ctx = e.logger().WithFields(ctx, map[string]any{
		"item_id":      p.ItemID,
		"requester_id": p.RequesterID,
		"swap_type":    string(p.Type),
	})

	var created *model.Swap
	err := e.DB.InTx(ctx, func(tx *db.Tx) error {
		if !p.Type.IsValid() {
			return ErrInvalidSwapType
		}

		item, err := store.GetItemForUpdate(ctx, tx, p.ItemID)
		if err != nil {
			return err
		}
		if item == nil || !item.Swappable() {
			return ErrItemUnavailable
		}
		if item.OwnerID == p.RequesterID {
			return ErrSelfSwap
		}

		s := &model.Swap{
			RequesterID: p.RequesterID,
			OwnerID:     item.OwnerID,
			ItemID:      item.ID,
			Type:        p.Type,
			Status:      model.SwapStatusPending,
			Message:     p.Message,
		}

		switch p.Type {
		case model.SwapTypeDirect:
			if p.OfferedItemID == nil {
				return ErrInvalidOffer
			}
			offered, err := store.GetItemForUpdate(ctx, tx, *p.OfferedItemID)
			if err != nil {
				return err
			}
			if offered == nil || offered.OwnerID != p.RequesterID || !offered.Swappable() {
				return ErrInvalidOffer
			}
			s.OfferedItemID = &offered.ID

		case model.SwapTypePoints:
			if p.PointsOffered < item.PointsValue {
				return ErrInsufficientOffer
			}
			requester, err := store.GetUserForUpdate(ctx, tx, p.RequesterID)
			if err != nil {
				return err
			}
			if requester == nil {
				return ErrUserNotFound
			}
			if requester.Points < p.PointsOffered {
				return ErrInsufficientBalance
			}
			s.PointsOffered = p.PointsOffered
		}

		pending, err := store.HasPendingSwap(ctx, tx, item.ID)
		if err != nil {
			return err
		}
		if pending {
			return ErrDuplicatePendingSwap
		}

		created, err = store.InsertSwap(ctx, tx, s)
		if db.IsUniqueViolation(err) {
			return ErrDuplicatePendingSwap
		}
		return err
	})

	e.finish(ctx, OpCreate, string(p.Type), start, err)
	if err != nil {
		return nil, err
	}

	ctx = e.logger().WithField(ctx, "swap_id", created.ID)
	e.logger().Info(ctx, "swap requested")
	return created, nil
}

// Accept settles a pending swap. For a points redemption the offered points
// move from requester to owner and the item leaves circulation. For a direct
// swap the two items exchange owners and both leave circulation.
func (e *Engine) Accept(ctx context.Context, swapID, actingUserID int64) (*model.Swap, error) {
	return e.transition(ctx, OpAccept, swapID, actingUserID, model.SwapStatusAccepted,
		requireItemOwner, e.settle)
}

// Reject declines a pending swap. Nothing else changes.
func (e *Engine) Reject(ctx context.Context, swapID, actingUserID int64) (*model.Swap, error) {
	return e.transition(ctx, OpReject, swapID, actingUserID, model.SwapStatusRejected,
		requireItemOwner, nil)
}

// Complete marks an accepted swap as done. Either participant may complete
// it; points and ownership already moved at acceptance.
func (e *Engine) Complete(ctx context.Context, swapID, actingUserID int64) (*model.Swap, error) {
	return e.transition(ctx, OpComplete, swapID, actingUserID, model.SwapStatusCompleted,
		requireParticipant, nil)
}

type authorizeFunc func(s *model.Swap, item *model.Item, actingUserID int64) error

type applyFunc func(ctx context.Context, tx *db.Tx, s *model.Swap, item *model.Item) error

func requireItemOwner(_ *model.Swap, item *model.Item, actingUserID int64) error {
	if item.OwnerID != actingUserID {
		return ErrItemOwnerMismatch
	}
	return nil
}

func requireParticipant(s *model.Swap, item *model.Item, actingUserID int64) error {
	if s.IsParticipant(actingUserID) || item.OwnerID == actingUserID {
		return nil
	}
	return ErrAccessDenied
}

func (e *Engine) transition(ctx context.Context, op string, swapID, actingUserID int64,
	to model.SwapStatus, authorize authorizeFunc, apply applyFunc) (*model.Swap, error) {
	start := time.Now()
	ctx = e.logger().WithFields(ctx, map[string]any{
		"swap_id":   swapID,
		"acting_id": actingUserID,
		"to":        string(to),
	})

	var (
		result   *model.Swap
		swapType string
		from     model.SwapStatus
	)
	err := e.DB.InTx(ctx, func(tx *db.Tx) error {
		s, err := store.GetSwapForUpdate(ctx, tx, swapID)
		if err != nil {
			return err
		}
		if s == nil {
			return ErrSwapNotFound
		}
		swapType = string(s.Type)
		from = s.Status

		if !s.Status.CanTransitionTo(to) {
			return ErrInvalidStateTransition
		}

		item, err := store.GetItemForUpdate(ctx, tx, s.ItemID)
		if err != nil {
			return err
		}
		if item == nil {
			return ErrItemUnavailable
		}

		if err := authorize(s, item, actingUserID); err != nil {
			return err
		}

		ok, err := store.TransitionSwap(ctx, tx, s.ID, s.Status, to)
		if err != nil {
			return err
		}
		if !ok {
			return ErrInvalidStateTransition
		}

		if apply != nil {
			if err := apply(ctx, tx, s, item); err != nil {
				return err
			}
		}

		result, err = store.GetSwap(ctx, tx, s.ID)
		return err
	})

	ctx = e.logger().WithFields(ctx, map[string]any{"swap_type": swapType, "from": string(from)})
	e.finish(ctx, op, swapType, start, err)
	if err != nil {
		return nil, err
	}

	e.logger().Info(ctx, "swap "+string(to))
	if op == OpAccept && result.Type == model.SwapTypePoints {
		e.Metrics.AddPointsTransferred(result.PointsOffered)
	}
	return result, nil
}

// settle applies the side effects of acceptance. The item's availability,
// the offer against the current price, the requester's balance and the
// offered item are checked again under lock.
func (e *Engine) settle(ctx context.Context, tx *db.Tx, s *model.Swap, item *model.Item) error {
	if !item.Swappable() {
		return ErrItemUnavailable
	}

	switch s.Type {
	case model.SwapTypePoints:
		return settlePoints(ctx, tx, s, item)
	case model.SwapTypeDirect:
		return settleDirect(ctx, tx, s, item)
	}
	return ErrInvalidSwapType
}

func settlePoints(ctx context.Context, tx *db.Tx, s *model.Swap, item *model.Item) error {
	if s.PointsOffered < item.PointsValue {
		return ErrInsufficientOffer
	}
	users, err := lockUsers(ctx, tx, s.RequesterID, item.OwnerID)
	if err != nil {
		return err
	}
	if users[s.RequesterID].Points < s.PointsOffered {
		return ErrInsufficientBalance
	}

	ok, err := store.DebitPoints(ctx, tx, s.RequesterID, s.PointsOffered)
	if err != nil {
		return err
	}
	if !ok {
		return ErrInsufficientBalance
	}
	if err := store.CreditPoints(ctx, tx, item.OwnerID, s.PointsOffered); err != nil {
		return err
	}
	return store.MarkItemUnavailable(ctx, tx, item.ID)
}

func settleDirect(ctx context.Context, tx *db.Tx, s *model.Swap, item *model.Item) error {
	if s.OfferedItemID == nil {
		return ErrOfferedItemMissing
	}
	offered, err := store.GetItemForUpdate(ctx, tx, *s.OfferedItemID)
	if err != nil {
		return err
	}
	if offered == nil {
		return ErrOfferedItemMissing
	}
	if offered.OwnerID != s.RequesterID || !offered.Swappable() {
		return ErrInvalidOffer
	}

	owner := item.OwnerID
	if err := store.TransferItem(ctx, tx, item.ID, s.RequesterID); err != nil {
		return err
	}
	return store.TransferItem(ctx, tx, offered.ID, owner)
}

// lockUsers locks the given users in ascending ID order so concurrent
// settlements cannot deadlock on each other.
func lockUsers(ctx context.Context, tx *db.Tx, ids ...int64) (map[int64]*model.User, error) {
	sorted := append([]int64(nil), ids...)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i] < sorted[j] })

	users := make(map[int64]*model.User, len(sorted))
	for _, id := range sorted {
		if _, seen := users[id]; seen {
			continue
		}
		u, err := store.GetUserForUpdate(ctx, tx, id)
		if err != nil {
			return nil, err
		}
		if u == nil {
			return nil, ErrUserNotFound
		}
		users[id] = u
	}
	return users, nil
}

// finish records metrics and logs refusals. Precondition failures are
// expected traffic; integrity violations and store errors are not.
func (e *Engine) finish(ctx context.Context, op, swapType string, start time.Time, err error) {
	e.Metrics.ObserveDuration(op, time.Since(start))
	if err == nil {
		e.Metrics.IncTransition(op, swapType)
		return
	}

	e.Metrics.IncFailure(op, reason(err))
	ctx = e.logger().WithField(ctx, "reason", reason(err))
	switch {
	case isIntegrityViolation(err):
		e.logger().Warn(ctx, fmt.Sprintf("swap %s refused: %v", op, err))
	case apperr.As(err) != nil:
		e.logger().Debug(ctx, fmt.Sprintf("swap %s refused: %v", op, err))
	default:
		e.logger().Error(ctx, "swap "+op+" failed", err)
	}
}
