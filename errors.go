package slidemine

import "errors"

// ErrNotOpen is returned when a service method runs before Open.
var ErrNotOpen = errors.New("slidemine: database not open (call Open first)")

// ErrInvalidInput is returned when a request fails validation before
// touching any state.
var ErrInvalidInput = errors.New("slidemine: invalid input")
