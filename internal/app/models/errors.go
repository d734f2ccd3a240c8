package models

import "errors"

// Domain specific errors for the intake flow and its collaborators.
var (
	ErrNotFound           = errors.New("requested item not found")
	ErrConflict           = errors.New("item already exists or conflict")
	ErrUnauthenticated    = errors.New("authentication required or invalid credentials")
	ErrForbidden          = errors.New("action forbidden")
	ErrBadRequest         = errors.New("bad request")
	ErrValidation         = errors.New("validation failed")
	ErrInvalidTripRequest = errors.New("invalid trip request")
	ErrRateLimited        = errors.New("gateway rate limit exceeded")
	ErrQuotaExceeded      = errors.New("gateway quota or payment required")
	ErrGatewayUnavailable = errors.New("gateway unavailable")
	ErrBadGatewayReply    = errors.New("gateway returned a malformed reply")
	ErrGenerationInFlight = errors.New("a generation call is already in flight")
)
