package interactive

import "errors"

var (
	// ErrTemplateMissing means no active template exists for the
	// requested type. This is a configuration precondition failure,
	// fatal to the flow that needed the template.
	ErrTemplateMissing = errors.New("interactive: no active template for type")

	// ErrTokenNotFound means no member or subscriber owns the token.
	// Consume treats it as an already-used link; Peek surfaces it.
	ErrTokenNotFound = errors.New("interactive: token not found")

	// ErrUnknownAction means the (type, action) pair has no effect
	// defined. A caller bug, not a replayed link.
	ErrUnknownAction = errors.New("interactive: unknown action for type")
)
