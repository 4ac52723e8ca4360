package notion

import (
	"errors"
	"fmt"
)

// ErrDatabaseNotFound signals a 404 on the database query endpoint. It means
// the integration is misconfigured (wrong database ID, or the integration was
// never shared with the database), so callers report it and return an empty
// listing instead of treating it as a transient failure.
var ErrDatabaseNotFound = errors.New("database not found")

// APIError is a non-success, non-retryable response from the remote API.
type APIError struct {
	Status int
	Body   string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("api status %d: %s", e.Status, e.Body)
}

// IsStatus reports whether err is an APIError with the given status code.
func IsStatus(err error, status int) bool {
	var apiErr *APIError
	return errors.As(err, &apiErr) && apiErr.Status == status
}
