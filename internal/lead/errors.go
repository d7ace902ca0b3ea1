package lead

import "errors"

var (
	// ErrNotFound is returned when a lead or reference row does not exist.
	ErrNotFound = errors.New("lead: not found")

	// ErrInvalidInput flags a payload missing its mandatory fields.
	ErrInvalidInput = errors.New("lead: invalid input")

	// ErrIdentityMismatch is returned when the replayed (solution, visitor)
	// pair does not exactly match the pair stored at creation.
	ErrIdentityMismatch = errors.New("lead: identity mismatch")

	// ErrInvalidUrgency is returned on update for an unknown urgency name.
	// Creation falls back to the default instead.
	ErrInvalidUrgency = errors.New("lead: unknown urgency")

	// ErrInitialStatusNotConfigured means the seeded "nouveau" status row is
	// missing. Creation cannot proceed and no client input can fix it.
	ErrInitialStatusNotConfigured = errors.New("lead: initial status is not seeded")
)
