package buffers

import "errors"

// ErrBadInput is returned when a push payload is missing its required
// identity fields. It never affects buffer state.
var ErrBadInput = errors.New("buffers: payload missing required fields")
