package model

import (
	"fmt"
	"time"
)

// SwapType selects how the requester pays for the target item.
type SwapType string

const (
	SwapTypeDirect SwapType = "direct_swap"
	SwapTypePoints SwapType = "points_redemption"
)

var validSwapTypes = []SwapType{
	SwapTypeDirect,
	SwapTypePoints,
}

// String implements fmt.Stringer.
func (t SwapType) String() string {
	return string(t)
}

// IsValid reports whether the value is a known SwapType.
func (t SwapType) IsValid() bool {
	for _, candidate := range validSwapTypes {
		if candidate == t {
			return true
		}
	}
	return false
}

// ParseSwapType converts raw input into a SwapType.
func ParseSwapType(value string) (SwapType, error) {
	for _, candidate := range validSwapTypes {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid swap type %q", value)
}

// SwapStatus is the lifecycle state of a swap request.
type SwapStatus string

const (
	SwapStatusPending   SwapStatus = "pending"
	SwapStatusAccepted  SwapStatus = "accepted"
	SwapStatusRejected  SwapStatus = "rejected"
	SwapStatusCompleted SwapStatus = "completed"
)

var validSwapStatuses = []SwapStatus{
	SwapStatusPending,
	SwapStatusAccepted,
	SwapStatusRejected,
	SwapStatusCompleted,
}

// swapTransitions lists the only edges of the state machine. Rejected and
// completed are terminal.
var swapTransitions = map[SwapStatus][]SwapStatus{
	SwapStatusPending:  {SwapStatusAccepted, SwapStatusRejected},
	SwapStatusAccepted: {SwapStatusCompleted},
}

// String implements fmt.Stringer.
func (s SwapStatus) String() string {
	return string(s)
}

// IsValid reports whether the value is a known SwapStatus.
func (s SwapStatus) IsValid() bool {
	for _, candidate := range validSwapStatuses {
		if candidate == s {
			return true
		}
	}
	return false
}

// IsTerminal reports whether no transition leaves s.
func (s SwapStatus) IsTerminal() bool {
	return s.IsValid() && len(swapTransitions[s]) == 0
}

// CanTransitionTo reports whether next is reachable from s in one step.
func (s SwapStatus) CanTransitionTo(next SwapStatus) bool {
	for _, candidate := range swapTransitions[s] {
		if candidate == next {
			return true
		}
	}
	return false
}

// ParseSwapStatus converts raw input into a SwapStatus.
func ParseSwapStatus(value string) (SwapStatus, error) {
	for _, candidate := range validSwapStatuses {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid swap status %q", value)
}

// Swap is one exchange proposal. OwnerID records who owned the target item
// when the request was made.
type Swap struct {
	ID            int64      `json:"id"`
	RequesterID   int64      `json:"requesterId"`
	OwnerID       int64      `json:"ownerId"`
	ItemID        int64      `json:"itemId"`
	OfferedItemID *int64     `json:"offeredItemId,omitempty"`
	Type          SwapType   `json:"swapType"`
	Status        SwapStatus `json:"status"`
	PointsOffered int        `json:"pointsOffered"`
	Message       string     `json:"message,omitempty"`
	CreatedAt     time.Time  `json:"createdAt"`
	UpdatedAt     time.Time  `json:"updatedAt"`

	// Joined fields (not always populated).
	ItemTitle          string `json:"itemTitle,omitempty"`
	OfferedItemTitle   string `json:"offeredItemTitle,omitempty"`
	RequesterFirstName string `json:"requesterFirstName,omitempty"`
	RequesterLastName  string `json:"requesterLastName,omitempty"`
}

// IsParticipant reports whether userID is the requester or the recorded owner.
func (s *Swap) IsParticipant(userID int64) bool {
	return s.RequesterID == userID || s.OwnerID == userID
}

// SwapCounts tallies swaps by status.
type SwapCounts struct {
	Pending   int `json:"pending"`
	Accepted  int `json:"accepted"`
	Rejected  int `json:"rejected"`
	Completed int `json:"completed"`
	Total     int `json:"total"`
}
