package domain

import "errors"

var (
	ErrNotFound           = errors.New("not found")
	ErrInvalidURL         = errors.New("invalid url")
	ErrBadRequest         = errors.New("bad request")
	ErrPreconditionFailed = errors.New("precondition failed")
	ErrSynthesisSchema    = errors.New("synthesis schema mismatch")
	ErrProviderFailure    = errors.New("provider failure")
	ErrDuplicateJob       = errors.New("duplicate job")
	ErrJobFinalized       = errors.New("job already finalized")
)
