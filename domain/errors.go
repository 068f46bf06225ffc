package domain

import "errors"

// Recoverable error classes. A classification failure degrades the event to
// the default classification; the procurement errors skip that single action
// and surface as a failed decision entry. Anything else inside a cycle is a
// cycle failure handled at the loop boundary.
var (
	ErrClassification    = errors.New("classification failed")
	ErrMissingCostData   = errors.New("missing cost data")
	ErrNoVendorsFound    = errors.New("no vendors found")
	ErrNoVendorAvailable = errors.New("no vendor available")
)

// Recoverable reports whether err can be absorbed as a single failed action
// without failing the cycle.
func Recoverable(err error) bool {
	return errors.Is(err, ErrMissingCostData) ||
		errors.Is(err, ErrNoVendorsFound) ||
		errors.Is(err, ErrNoVendorAvailable)
}
