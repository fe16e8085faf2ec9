package catalog

import (
	"errors"
	"fmt"
)

// ErrNotFound is returned when a single game lookup matches nothing.
var ErrNotFound = errors.New("catalog: game not found")

// codeNoRows is the backend's error code for a single-object request
// that matched zero rows.
const codeNoRows = "PGRST116"

// APIError is a non-2xx response from the backend.
type APIError struct {
	Status  int    `json:"-"`
	Code    string `json:"code"`
	Message string `json:"message"`
	Details string `json:"details"`
	Hint    string `json:"hint"`
}

func (e *APIError) Error() string {
	if e.Code != "" {
		return fmt.Sprintf("catalog: upstream %d: %s (%s)", e.Status, e.Message, e.Code)
	}
	return fmt.Sprintf("catalog: upstream %d: %s", e.Status, e.Message)
}

// Is lets errors.Is(err, ErrNotFound) match a no-rows response.
func (e *APIError) Is(target error) bool {
	return target == ErrNotFound && e.Code == codeNoRows
}
