package domain

import "errors"

var (
	ErrInvalidRange         = errors.New("invalid_range")
	ErrInvalidPrice         = errors.New("invalid_price")
	ErrApartmentUnavailable = errors.New("apartment_unavailable")
	ErrDateConflict         = errors.New("date_conflict")
	ErrUnauthenticated      = errors.New("unauthenticated")
	ErrForbidden            = errors.New("forbidden")
	ErrNotFound             = errors.New("not_found")
	ErrStorageFailure       = errors.New("storage_failure")

	// ErrBusy is returned when an apartment's exclusivity could not be
	// acquired within the configured wait. Callers may retry later.
	ErrBusy = errors.New("busy")
)
