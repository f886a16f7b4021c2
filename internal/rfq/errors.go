package rfq

import "errors"

// Domain error taxonomy. Handlers map these onto HTTP statuses:
// ErrNotFound -> 404, ErrInvalidTransition and ErrValidation -> 400,
// ErrAuth -> 401. Transport failures are never surfaced as errors; they
// are captured on the attempt row.
var (
	ErrNotFound          = errors.New("not found")
	ErrInvalidTransition = errors.New("invalid transition")
	ErrValidation        = errors.New("validation failed")
	ErrAuth              = errors.New("unauthorized")

	// ErrDuplicateIdempotencyKey is returned by stores when the
	// (rfq_id, idempotency_key) unique constraint fires on insert.
	// Dispatch treats it as an idempotent hit, never as a failure.
	ErrDuplicateIdempotencyKey = errors.New("duplicate idempotency key")

	// ErrDuplicateProviderMessage is returned by stores when the
	// provider_message_id unique constraint fires on insert, meaning the
	// gateway replayed a message id it already handed out. Dispatch
	// resolves it to the attempt that owns the id.
	ErrDuplicateProviderMessage = errors.New("duplicate provider message id")

	// ErrStatusConflict is returned by stores when a guarded status
	// transition matches zero rows (lost an optimistic race).
	ErrStatusConflict = errors.New("rfq status changed concurrently")
)
