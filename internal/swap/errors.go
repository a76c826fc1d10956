package swap

import (
	"errors"

	"github.com/erazemk/rewear/internal/apperr"
)

// Errors returned by the Engine. Compare with errors.Is.
var (
	ErrItemUnavailable        = apperr.New(apperr.CodeNotFound, "Item not available for swap")
	ErrSelfSwap               = apperr.New(apperr.CodePrecondition, "You cannot swap your own item")
	ErrInvalidOffer           = apperr.New(apperr.CodePrecondition, "Offered item must be your own approved and available item")
	ErrInsufficientOffer      = apperr.New(apperr.CodePrecondition, "Points offered must be at least the item's points value")
	ErrInsufficientBalance    = apperr.New(apperr.CodePrecondition, "Insufficient points balance")
	ErrDuplicatePendingSwap   = apperr.New(apperr.CodePrecondition, "This item already has a pending swap request")
	ErrInvalidStateTransition = apperr.New(apperr.CodePrecondition, "Swap is not in a state that allows this action")
	ErrInvalidSwapType        = apperr.New(apperr.CodePrecondition, "Swap type must be direct_swap or points_redemption")
	ErrItemOwnerMismatch      = apperr.New(apperr.CodeForbidden, "Only the item owner can respond to this swap")
	ErrAccessDenied           = apperr.New(apperr.CodeForbidden, "Only swap participants can complete this swap")
	ErrSwapNotFound           = apperr.New(apperr.CodeNotFound, "Swap not found")
	ErrOfferedItemMissing     = apperr.New(apperr.CodeNotFound, "The offered item no longer exists")
	ErrUserNotFound           = apperr.New(apperr.CodeNotFound, "User not found")
)

var reasons = []struct {
	err    error
	reason string
}{
	{ErrItemUnavailable, "item_unavailable"},
	{ErrSelfSwap, "self_swap"},
	{ErrInvalidOffer, "invalid_offer"},
	{ErrInsufficientOffer, "insufficient_offer"},
	{ErrInsufficientBalance, "insufficient_balance"},
	{ErrDuplicatePendingSwap, "duplicate_pending"},
	{ErrInvalidStateTransition, "invalid_state"},
	{ErrInvalidSwapType, "invalid_type"},
	{ErrItemOwnerMismatch, "owner_mismatch"},
	{ErrAccessDenied, "access_denied"},
	{ErrSwapNotFound, "swap_not_found"},
	{ErrOfferedItemMissing, "offered_item_missing"},
	{ErrUserNotFound, "user_not_found"},
}

// reason returns a short metric label for err.
func reason(err error) string {
	for _, r := range reasons {
		if errors.Is(err, r.err) {
			return r.reason
		}
	}
	return "internal"
}

// isIntegrityViolation reports errors caused by state that changed between
// request and acceptance.
func isIntegrityViolation(err error) bool {
	return errors.Is(err, ErrOfferedItemMissing) || errors.Is(err, ErrUserNotFound)
}
