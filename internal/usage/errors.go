package usage

import "errors"

// ErrLimitReached indicates the user exceeded their daily allowance.
var ErrLimitReached = errors.New("limit reached")
