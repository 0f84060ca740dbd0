package tasks

import (
	"fmt"

	"github.com/desertthunder/cloudplay/internal/models"
)

// ProgressUpdate represents a progress event during a long-running operation.
//
// Used to send real-time updates to the CLI or UI layer for display.
type ProgressUpdate struct {
	Phase   Phase  // Operation phase
	Step    int    // Current step number within phase
	Total   int    // Total steps in this phase
	Message string // Human-readable message for display
	Data    any    // Optional phase-specific data for advanced UIs
}

// Operation phase enumeration
type Phase int

const (
	PrefetchTracks Phase = iota
	FetchLogin
	FetchPlaylists
	FetchLiked
	FetchHistory
)

func (p Phase) String() string {
	switch p {
	case PrefetchTracks:
		return "prefetch_tracks"
	case FetchLogin:
		return "fetch_login"
	case FetchPlaylists:
		return "fetch_playlists"
	case FetchLiked:
		return "fetch_liked"
	case FetchHistory:
		return "fetch_history"
	default:
		return ""
	}
}

func operationUpdate(endpoint endpointOperation, step int, total int) ProgressUpdate {
	return ProgressUpdate{
		Phase:   endpoint.phase,
		Step:    step,
		Total:   total,
		Message: endpoint.message,
	}
}

func prefetchStartUpdate(pending, skipped int) ProgressUpdate {
	return ProgressUpdate{
		Phase:   PrefetchTracks,
		Step:    0,
		Total:   pending,
		Message: fmt.Sprintf("Prefetching %d tracks (%d already cached)...", pending, skipped),
	}
}

func prefetchDoneUpdate(step, total int, item models.QueueItem) ProgressUpdate {
	return ProgressUpdate{
		Phase:   PrefetchTracks,
		Step:    step,
		Total:   total,
		Message: fmt.Sprintf("[%d/%d] ✓ %s", step, total, item),
		Data:    item,
	}
}

func prefetchFailedUpdate(step, total int, item models.QueueItem, err error) ProgressUpdate {
	return ProgressUpdate{
		Phase:   PrefetchTracks,
		Step:    step,
		Total:   total,
		Message: fmt.Sprintf("[%d/%d] ✗ %s: %v", step, total, item, err),
		Data:    item,
	}
}
