package shared

import "fmt"

var (
	ErrNotImplemented = fmt.Errorf("not implemented")

	// Configuration errors
	ErrMissingConfig = fmt.Errorf("configuration not found")
	ErrInvalidConfig = fmt.Errorf("invalid configuration")

	// Cache and storage errors
	ErrNotFound          = fmt.Errorf("not found")
	ErrIntegrityMismatch = fmt.Errorf("integrity mismatch")
	ErrStoreIO           = fmt.Errorf("store I/O failed")

	// API and service errors
	ErrFetchFailed        = fmt.Errorf("fetch failed")
	ErrServiceUnavailable = fmt.Errorf("service unavailable")
	ErrPlaylistNotFound   = fmt.Errorf("playlist not found")
	ErrTrackNotFound      = fmt.Errorf("track not found")

	// Playback errors
	ErrQueueEmpty   = fmt.Errorf("queue is empty")
	ErrPlayerFailed = fmt.Errorf("player rejected command")

	// Input validation errors
	ErrInvalidInput    = fmt.Errorf("invalid input")
	ErrMissingArgument = fmt.Errorf("missing required argument")
	ErrInvalidArgument = fmt.Errorf("invalid argument")
)
