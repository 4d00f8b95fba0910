package cli

import (
	"errors"

	"github.com/stuartshay/geostore/internal/calculator"
	"github.com/stuartshay/geostore/internal/geo"
)

// exitCode separates caller mistakes from storage and system failures
func exitCode(err error) int {
	switch {
	case errors.Is(err, geo.ErrStorageUnavailable), errors.Is(err, geo.ErrConstraintViolation):
		return exitSysError
	case errors.Is(err, geo.ErrInvalidArgument), errors.Is(err, geo.ErrNotFound),
		errors.Is(err, calculator.ErrUnrecognizedUnit), errors.Is(err, calculator.ErrInvalidAmount),
		errors.Is(err, calculator.ErrInvalidDistance):
		return exitUserError
	}
	return exitSysError
}
