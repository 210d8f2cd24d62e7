package domain

import "errors"

var (
	// ErrNotFound means no active code matched a lookup. Deactivated codes
	// resolve to this too; callers must not reveal which case it was.
	ErrNotFound = errors.New("not found")

	// ErrInvalidOrExpiredCode is the resident-facing classification of a
	// failed code resolution.
	ErrInvalidOrExpiredCode = errors.New("invalid or expired code")

	// ErrAuthenticationFailed means the authentication service rejected
	// credentials derived from a known-active code.
	ErrAuthenticationFailed = errors.New("authentication failed")

	// ErrProvisioningFailed means first-use account creation failed after a
	// valid code was resolved. The attempt is retryable; no partial access is
	// granted.
	ErrProvisioningFailed = errors.New("account provisioning failed")

	// ErrActiveCodeExists is returned when issuing a code for a room that
	// already has one. Callers must rotate instead.
	ErrActiveCodeExists = errors.New("room already has an active code")

	// ErrNoActiveCode is returned when rotating a room that has no code yet.
	ErrNoActiveCode = errors.New("room has no active code")

	// ErrCodeCollision means a generated code string already exists in
	// history. Rare enough that a single regeneration handles it.
	ErrCodeCollision = errors.New("code already issued")

	// ErrDuplicateActiveCode means the one-active-per-room constraint fired
	// outside the rotate path. This is an invariant violation and is treated
	// as fatal for the request.
	ErrDuplicateActiveCode = errors.New("duplicate active code for room")
)
