package appliance

import "errors"

// Errors returned when a device record enters the cache.
//
//	if errors.Is(err, appliance.ErrMissingIdentity) {
//	    // skip this record
//	}
var (
	// ErrMissingIdentity is returned when a record has no fabNumber.
	ErrMissingIdentity = errors.New("appliance: missing device identity")

	// ErrMalformedRecord is returned when a record is not valid JSON or a
	// field has the wrong type.
	ErrMalformedRecord = errors.New("appliance: malformed record")
)
