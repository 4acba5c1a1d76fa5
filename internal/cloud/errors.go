package cloud

import "errors"

// Errors returned by the cloud client.
var (
	// ErrUnauthorized is returned for 401 and 403 responses. The access
	// token is missing, expired or revoked.
	ErrUnauthorized = errors.New("cloud: unauthorized")

	// ErrUnexpectedStatus is returned for any other non-2xx response.
	ErrUnexpectedStatus = errors.New("cloud: unexpected status")

	// ErrInvalidDeviceID is returned when an action has no device id.
	ErrInvalidDeviceID = errors.New("cloud: invalid device id")
)
