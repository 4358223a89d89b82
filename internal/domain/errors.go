package domain

import "errors"

var (
	// ErrMalformedCredential marks a bearer credential rejected on structure
	// alone, before any cryptographic work.
	ErrMalformedCredential = errors.New("malformed credential")

	// ErrDecoderUnavailable means identity-provider metadata could not be
	// resolved; the cached failure is returned without further provider
	// contact.
	ErrDecoderUnavailable = errors.New("token decoder unavailable")

	// ErrDecodeFailure covers every invalid-token condition: signature,
	// expiry, issuer, audience, or an unparseable payload.
	ErrDecodeFailure = errors.New("token decode failure")

	ErrNotAuthenticated = errors.New("not authenticated")
	ErrForbidden        = errors.New("forbidden")
	ErrNotFound         = errors.New("not found")
	ErrConflict         = errors.New("conflict")
	ErrInvalidArgument  = errors.New("invalid argument")
)
