package geo

import (
	"errors"
	"fmt"
)

// Error taxonomy shared by the store, the query engine and the API layers.
// Match with errors.Is.
var (
	ErrInvalidArgument     = errors.New("invalid argument")
	ErrNotFound            = errors.New("location not found")
	ErrStorageUnavailable  = errors.New("storage unavailable")
	ErrConstraintViolation = errors.New("constraint violation")

	ErrInvalidObjectType  = fmt.Errorf("%w: invalid object type", ErrInvalidArgument)
	ErrInvalidObjectID    = fmt.Errorf("%w: invalid object id", ErrInvalidArgument)
	ErrInvalidCoordinates = fmt.Errorf("%w: invalid coordinates", ErrInvalidArgument)
	ErrInvalidDistance    = fmt.Errorf("%w: invalid distance", ErrInvalidArgument)
	ErrInvalidStatus      = fmt.Errorf("%w: invalid status", ErrInvalidArgument)
)
