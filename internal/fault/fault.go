// Package fault defines the typed error taxonomy shared across the engine.
// Errors carry gRPC status codes so a future transport layer can surface
// them without translation.
package fault

import (
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

// #region constructors

// NotFound reports a missing identity state, snapshot version, or sync job.
func NotFound(format string, args ...any) error {
	return status.Errorf(codes.NotFound, format, args...)
}

// AlreadyExists reports a duplicate create.
func AlreadyExists(format string, args ...any) error {
	return status.Errorf(codes.AlreadyExists, format, args...)
}

// Invalid reports a validation failure (dimension mismatch, empty required text).
func Invalid(format string, args ...any) error {
	return status.Errorf(codes.InvalidArgument, format, args...)
}

// Service wraps a provider failure behind a generic service error.
func Service(op string, err error) error {
	return status.Errorf(codes.Unavailable, "%s: %v", op, err)
}

// Internal reports a persistence invariant violation.
func Internal(format string, args ...any) error {
	return status.Errorf(codes.Internal, format, args...)
}

// #endregion constructors

// #region predicates

// IsNotFound reports whether err carries codes.NotFound.
func IsNotFound(err error) bool {
	return status.Code(err) == codes.NotFound
}

// IsAlreadyExists reports whether err carries codes.AlreadyExists.
func IsAlreadyExists(err error) bool {
	return status.Code(err) == codes.AlreadyExists
}

// IsInvalid reports whether err carries codes.InvalidArgument.
func IsInvalid(err error) bool {
	return status.Code(err) == codes.InvalidArgument
}

// IsService reports whether err carries codes.Unavailable.
func IsService(err error) bool {
	return status.Code(err) == codes.Unavailable
}

// #endregion predicates
