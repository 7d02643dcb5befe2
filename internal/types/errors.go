package types

import (
	"errors"
	"strings"
)

var ErrNotFound = errors.New("requested item not found")
var ErrConflict = errors.New("item already exists or conflict")
var ErrUnauthenticated = errors.New("authentication required or invalid credentials")
var ErrForbidden = errors.New("action forbidden")

// ValidationErrors is an ordered list of human-readable field-level
// messages. Callers render them verbatim; order is the order the checks
// ran in, not alphabetical.
type ValidationErrors []string

func (v ValidationErrors) Error() string {
	return strings.Join(v, "; ")
}

// Response is the generic success/error envelope.
type Response struct {
	Success bool     `json:"success"`
	Message string   `json:"message,omitempty"`
	Error   string   `json:"error,omitempty"`
	Errors  []string `json:"errors,omitempty"`
}
