package model

import "errors"

// Sentinel errors shared across packages. Check with errors.Is.
var (
	// ErrNoDateAxis means a trend series has neither "dates" nor "day".
	ErrNoDateAxis = errors.New("no date axis in trend series")
	// ErrUnknownGranularity means the requested granularity is not present
	// or not recognised.
	ErrUnknownGranularity = errors.New("unknown granularity")
	// ErrUnknownMetric means a metric name could not be parsed.
	ErrUnknownMetric = errors.New("unknown metric")
	// ErrNoSnapshot means nothing has been published yet.
	ErrNoSnapshot = errors.New("no snapshot available")
)
