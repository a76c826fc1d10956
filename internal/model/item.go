package model

import (
	"fmt"
	"time"
)

// Points value bounds for a listing.
const (
	MinPointsValue     = 10
	MaxPointsValue     = 500
	DefaultPointsValue = 50
)

// ModerationStatus is derived from the approval flag and rejection reason.
type ModerationStatus string

const (
	ModerationPending  ModerationStatus = "pending"
	ModerationApproved ModerationStatus = "approved"
	ModerationRejected ModerationStatus = "rejected"
)

// Item is a listed garment. Ownership moves when a swap is accepted.
type Item struct {
	ID              int64     `json:"id"`
	OwnerID         int64     `json:"ownerId"`
	Title           string    `json:"title"`
	Description     string    `json:"description"`
	Category        string    `json:"category"`
	Type            string    `json:"type"`
	Size            string    `json:"size,omitempty"`
	Condition       string    `json:"condition"`
	Tags            []string  `json:"tags"`
	Images          []string  `json:"images"`
	PointsValue     int       `json:"pointsValue"`
	IsAvailable     bool      `json:"isAvailable"`
	IsApproved      bool      `json:"isApproved"`
	RejectionReason *string   `json:"rejectionReason,omitempty"`
	CreatedAt       time.Time `json:"createdAt"`
	UpdatedAt       time.Time `json:"updatedAt"`

	// Joined fields (not always populated).
	OwnerFirstName string `json:"ownerFirstName,omitempty"`
	OwnerLastName  string `json:"ownerLastName,omitempty"`
}

// Status reports the moderation state of the item.
func (i *Item) Status() ModerationStatus {
	switch {
	case i.IsApproved:
		return ModerationApproved
	case i.RejectionReason != nil:
		return ModerationRejected
	default:
		return ModerationPending
	}
}

// Swappable reports whether the item may be the subject of a new swap.
func (i *Item) Swappable() bool {
	return i.IsApproved && i.IsAvailable
}

// ValidPointsValue reports whether v lies within the listing bounds.
func ValidPointsValue(v int) bool {
	return v >= MinPointsValue && v <= MaxPointsValue
}

// ImageURI returns the API path serving the image at pos.
func ImageURI(itemID int64, pos int) string {
	return fmt.Sprintf("/api/items/%d/images/%d", itemID, pos)
}

// ImageURIs returns the ordered image paths for an item with n images.
func ImageURIs(itemID int64, n int) []string {
	uris := make([]string, 0, n)
	for pos := 0; pos < n; pos++ {
		uris = append(uris, ImageURI(itemID, pos))
	}
	return uris
}
