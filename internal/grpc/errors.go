package grpc

import (
	"context"
	"errors"

	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"github.com/stuartshay/geostore/internal/calculator"
	"github.com/stuartshay/geostore/internal/geo"
	"github.com/stuartshay/geostore/internal/queue"
)

// codeOf maps the error taxonomy to a gRPC status code
func codeOf(err error) codes.Code {
	switch {
	case errors.Is(err, geo.ErrInvalidArgument),
		errors.Is(err, calculator.ErrUnrecognizedUnit),
		errors.Is(err, calculator.ErrInvalidAmount),
		errors.Is(err, calculator.ErrInvalidDistance):
		return codes.InvalidArgument
	case errors.Is(err, geo.ErrNotFound), errors.Is(err, queue.ErrJobNotFound):
		return codes.NotFound
	case errors.Is(err, geo.ErrConstraintViolation):
		return codes.Aborted
	case errors.Is(err, geo.ErrStorageUnavailable),
		errors.Is(err, queue.ErrQueueFull),
		errors.Is(err, queue.ErrStopped):
		return codes.Unavailable
	case errors.Is(err, context.DeadlineExceeded):
		return codes.DeadlineExceeded
	case errors.Is(err, context.Canceled):
		return codes.Canceled
	}
	return codes.Internal
}

// toStatus converts err into a gRPC status error. Errors that already
// carry a status pass through.
func toStatus(err error) error {
	if _, ok := status.FromError(err); ok {
		return err
	}
	return status.Error(codeOf(err), err.Error())
}
