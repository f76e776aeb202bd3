package groups

import "errors"

// Sentinel errors for the groups service layer.
var (
	ErrNotFound = errors.New("member group not found")
)
