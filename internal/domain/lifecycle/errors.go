package lifecycle

import "errors"

var (
	ErrNotFound          = errors.New("not found")
	ErrAlreadyFinalized  = errors.New("request already finalized")
	ErrDataIntegrity     = errors.New("data integrity error")
	ErrProviderFailure   = errors.New("validation provider failure")
	ErrInvalidInput      = errors.New("invalid input")
	ErrObservationClosed = errors.New("observation is not pending")
	ErrNotRetriable      = errors.New("observation is not retriable")
	ErrBusy              = errors.New("resource is busy")
)
