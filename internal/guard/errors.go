package guard

import "errors"

// ErrCapExceeded marks a breach of a hard resource cap. The controller
// treats this as fatal to the whole session: the worker that sent it is
// not trusted enough to resynchronize afterward.
var ErrCapExceeded = errors.New("guard: resource cap exceeded")
