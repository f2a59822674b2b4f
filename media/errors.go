package media

import (
	"errors"
	"fmt"
)

var (
	ErrNoCookies = errors.New("no cookie files available")
	ErrTooLong   = errors.New("media exceeds duration limit")
	ErrResolve   = errors.New("could not resolve link")
	ErrNotFound  = errors.New("no results")
	ErrTooLarge  = errors.New("upload exceeds size limit")
	ErrInFlight  = errors.New("upload already in progress")
)

// AcquisitionError is a terminal failure to produce a playable artifact.
type AcquisitionError struct {
	ID  string
	Err error
}

func (e *AcquisitionError) Error() string {
	return fmt.Sprintf("acquire %s: %v", e.ID, e.Err)
}

func (e *AcquisitionError) Unwrap() error { return e.Err }

// TransientNetworkError is a single failed fetch attempt. It is retried and
// only surfaces wrapped in an AcquisitionError.
type TransientNetworkError struct {
	Attempt int
	Cookie  string
	Err     error
}

func (e *TransientNetworkError) Error() string {
	return fmt.Sprintf("attempt %d: %v", e.Attempt, e.Err)
}

func (e *TransientNetworkError) Unwrap() error { return e.Err }

// IsAcquisitionError reports whether err came out of the acquisition pipeline.
func IsAcquisitionError(err error) bool {
	var ae *AcquisitionError
	return errors.As(err, &ae)
}
