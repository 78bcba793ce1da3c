// Package constants provides shared constants used across the codebase.
package constants

// Upload constants
const (
	// MaxUploadSize is the maximum accepted multipart upload size in bytes.
	MaxUploadSize = 20 << 20 // 20 MB
)

// Listing constants
const (
	// DefaultAlertListLimit is the number of alerts returned when the
	// caller does not pass a limit.
	DefaultAlertListLimit = 50

	// MaxAlertListLimit caps caller-supplied alert list limits.
	MaxAlertListLimit = 500
)
