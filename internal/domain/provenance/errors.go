package provenance

import "errors"

var (
	// ErrVerification is returned when a signed record does not check out.
	ErrVerification = errors.New("signature verification failed")
	// ErrAnchorNotConfigured is returned when no anchor contract is set.
	ErrAnchorNotConfigured = errors.New("anchor contract not configured")
)
