package domain

import (
	"errors"
	"fmt"
)

// Position acquisition failures. Locator implementations map every provider
// failure onto exactly one of these.
var (
	ErrLocationUnavailable = errors.New("location unavailable")
	ErrLocationDenied      = errors.New("location permission denied")
	ErrLocationTimeout     = errors.New("location request timed out")
)

// RemoteError is the normalized form of any directory request failure:
// transport errors, non-2xx responses, and malformed payloads all surface
// as a RemoteError. StatusCode is 0 when the failure happened before an
// HTTP status was received or while decoding a successful response.
type RemoteError struct {
	StatusCode int
	Message    string
}

func (e *RemoteError) Error() string {
	if e.StatusCode == 0 {
		return fmt.Sprintf("directory request failed: %s", e.Message)
	}
	return fmt.Sprintf("directory request failed: status %d: %s", e.StatusCode, e.Message)
}

// ErrorKind is a stable, client-facing code for a degraded discovery state.
// Session snapshots carry kinds rather than raw error strings; localizing
// and rendering them is the client's job.
type ErrorKind string

const (
	KindNone                 ErrorKind = ""
	KindLocationUnavailable  ErrorKind = "location_unavailable"
	KindLocationDenied       ErrorKind = "location_denied"
	KindLocationTimeout      ErrorKind = "location_timeout"
	KindDirectoryUnavailable ErrorKind = "directory_unavailable"
	KindNearbyUnavailable    ErrorKind = "nearby_unavailable"
)

// KindForLocationError maps a Locator error onto its snapshot code.
// Unrecognized errors are reported as unavailable.
func KindForLocationError(err error) ErrorKind {
	switch {
	case errors.Is(err, ErrLocationDenied):
		return KindLocationDenied
	case errors.Is(err, ErrLocationTimeout):
		return KindLocationTimeout
	default:
		return KindLocationUnavailable
	}
}
