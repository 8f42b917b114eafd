package domain

import "errors"

var (
	// ErrProbeTimeout and ErrProbeNetworkFailure classify probe outcomes.
	// They are recorded as failed CheckRecords, not surfaced as errors
	// from a cycle.
	ErrProbeTimeout        = errors.New("probe timed out")
	ErrProbeNetworkFailure = errors.New("probe network failure")

	// ErrStoreUnavailable wraps storage I/O failures; callers retry with
	// bounded backoff before giving up.
	ErrStoreUnavailable = errors.New("store unavailable")

	// ErrNoActiveIncident is returned by the false-positive operation when
	// the site is not currently in the detected state.
	ErrNoActiveIncident = errors.New("no active defacement incident")

	ErrSiteNotFound  = errors.New("site not found")
	ErrDuplicateSite = errors.New("site already registered")

	ErrInvalidConfiguration = errors.New("invalid configuration")
)
