package bulksend

import "errors"

// ErrLocked means another run currently holds the message's lock.
// The caller skips the message; the next scheduled pass picks it up.
var ErrLocked = errors.New("bulksend: message locked by another run")
