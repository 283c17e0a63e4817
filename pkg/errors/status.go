package errors

import (
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

// ToStatus maps a domain error to a gRPC status error. Errors that already
// carry a status are returned unchanged.
func ToStatus(err error) error {
	if err == nil {
		return nil
	}
	if _, ok := status.FromError(err); ok {
		return err
	}

	code := codes.Internal
	message := err.Error()

	var domainErr *DomainError
	if As(err, &domainErr) {
		message = domainErr.Message
		switch domainErr.Type {
		case ErrorTypeValidation:
			code = codes.InvalidArgument
		case ErrorTypeConflict:
			code = codes.AlreadyExists
		case ErrorTypeNotFound:
			code = codes.NotFound
		case ErrorTypeTimeout:
			code = codes.DeadlineExceeded
		case ErrorTypeCancelled:
			code = codes.Canceled
		case ErrorTypeIO, ErrorTypeProcess:
			code = codes.Unavailable
		}
	}

	return status.Error(code, message)
}

// IsAlreadyExists reports whether err is a gRPC AlreadyExists status
func IsAlreadyExists(err error) bool {
	return status.Code(err) == codes.AlreadyExists
}
