package shared

import "errors"

var (
	// ErrNotFound indicates the requested resource does not exist.
	ErrNotFound = errors.New("resource not found")
	// ErrCatalogUnavailable indicates the unit catalog partition cannot be
	// reached. Callers should treat this as retryable rather than bad input.
	ErrCatalogUnavailable = errors.New("unit catalog unavailable")
	// ErrValidation indicates rejected input.
	ErrValidation = errors.New("validation failed")
	// ErrCatalogQuery indicates a non-connectivity persistence failure while
	// checking the catalog. A 500-class condition, not bad user input.
	ErrCatalogQuery = errors.New("unit catalog query failed")
	// ErrInvalidID indicates a non-positive or missing identifier.
	ErrInvalidID = errors.New("invalid ID")
	// ErrDuplicate indicates a uniqueness violation.
	ErrDuplicate = errors.New("duplicate entry")
	// ErrUnitInvalid indicates a unit reference that is missing, inactive or
	// in the wrong category at write time.
	ErrUnitInvalid = errors.New("unit not found or inactive")
)
