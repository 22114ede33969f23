package catalog

import "errors"

// ErrValidation indicates malformed or out-of-range input, detected
// before any mutation begins.
var ErrValidation = errors.New("catalog: validation")

// ErrForbidden indicates the acting user is not allowed to mutate the
// target entity (ownership or verification check failed).
var ErrForbidden = errors.New("catalog: forbidden")
