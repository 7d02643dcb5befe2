package notification

import (
	"github.com/rndhub/go-rnd-hub/internal/types"
)

// CreateRequest is the admin/create body. RelatedType and RelatedID are both
// optional but must be supplied together.
type CreateRequest struct {
	UserID      string `json:"user_id"`
	Title       string `json:"title"`
	Message     string `json:"message"`
	Type        string `json:"type"`
	RelatedType string `json:"related_type,omitempty"`
	RelatedID   string `json:"related_id,omitempty"`
}

// Page is one window of a user's notification feed, newest first.
type Page struct {
	Notifications []types.Notification `json:"notifications"`
	Total         int                  `json:"total"`
	Limit         int                  `json:"limit"`
	Offset        int                  `json:"offset"`
	TotalPages    int                  `json:"total_pages"`
}

// UnreadCount is the badge payload.
type UnreadCount struct {
	Count int `json:"count"`
}
