package types

import (
	"time"

	"github.com/google/uuid"
)

// RelatedKind tags which entity kind a notification's related id points
// into. Values outside the closed set resolve to "no related entity".
type RelatedKind string

const (
	RelatedNone     RelatedKind = ""
	RelatedProject  RelatedKind = "project"
	RelatedDocument RelatedKind = "document"
	RelatedUser     RelatedKind = "user"
)

// RelatedRef is the tagged reference a notification may carry. The link is
// advisory: the target may be deleted after the notification is created, so
// it is resolved lazily and never treated as a foreign key.
type RelatedRef struct {
	Kind RelatedKind `json:"kind,omitempty"`
	ID   uuid.UUID   `json:"id,omitempty"`
}

// None reports whether the reference carries no target.
func (r RelatedRef) None() bool {
	switch r.Kind {
	case RelatedProject, RelatedDocument, RelatedUser:
		return r.ID == uuid.Nil
	}
	return true
}

// Notification belongs to exactly one user for its entire lifetime.
type Notification struct {
	ID        uuid.UUID  `json:"id"`
	UserID    uuid.UUID  `json:"user_id"`
	Title     string     `json:"title"`
	Message   string     `json:"message"`
	Type      string     `json:"type"`
	Related   RelatedRef `json:"related"`
	IsRead    bool       `json:"is_read"`
	CreatedAt time.Time  `json:"created_at"`
}

// RelatedSummary is the projection the resolver returns for a related
// entity: title/snippet/status for projects and documents, name/email for
// users.
type RelatedSummary struct {
	Kind    RelatedKind `json:"kind"`
	ID      uuid.UUID   `json:"id"`
	Title   string      `json:"title"`
	Snippet string      `json:"snippet,omitempty"`
	Status  string      `json:"status,omitempty"`
}
