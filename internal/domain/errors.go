package domain

import "errors"

var (
	ErrNotFound = errors.New("resource not found")

	// Domain errors: the work itself is invalid and retrying cannot help.
	ErrVideoNotFound      = errors.New("video not found")
	ErrInvalidParameters  = errors.New("invalid job parameters")
	ErrNoEligibleVariants = errors.New("no eligible variants")

	// Cancellation is a distinct outcome, never a failure.
	ErrJobCancelled = errors.New("job cancelled")

	ErrJobTimeout   = errors.New("job processing timed out")
	ErrShuttingDown = errors.New("shutting down")
)

// IsDomainError reports whether err represents invalid work rather than a
// transient fault. Domain errors fail the job immediately without retry.
func IsDomainError(err error) bool {
	return errors.Is(err, ErrVideoNotFound) ||
		errors.Is(err, ErrInvalidParameters) ||
		errors.Is(err, ErrNoEligibleVariants) ||
		errors.Is(err, ErrNotFound)
}
