package tasks

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strconv"
	"sync"

	"github.com/charmbracelet/log"
	"github.com/desertthunder/cloudplay/internal/metrics"
	"github.com/desertthunder/cloudplay/internal/models"
	"github.com/desertthunder/cloudplay/internal/queue"
	"github.com/desertthunder/cloudplay/internal/services"
	"github.com/desertthunder/cloudplay/internal/shared"
	"golang.org/x/time/rate"
)

// Fetcher makes sure an item's media is in the music cache.
type Fetcher interface {
	Ensure(ctx context.Context, item models.QueueItem) error
}

// Cached reports whether an item is already present. It lets prefetch skip work without a fetch.
type Cached interface {
	Contains(key string) bool
}

// APIClient defines the interface for making API requests to the proxy.
type APIClient interface {
	Get(ctx context.Context, path string) (*services.APIResponse, error)
}

// PrefetchOpts contains configuration for a prefetch run.
type PrefetchOpts struct {
	NumWorkers int     // Concurrent workers (default: 2, max 8)
	RateLimit  float64 // Downloads started per second (default: 2)
}

// PrefetchResult summarizes a prefetch run.
type PrefetchResult struct {
	Total   int
	Fetched int
	Skipped int
	Failed  int
	Errors  []ItemError
}

// ItemError is a failed prefetch of one item.
type ItemError struct {
	Item  models.QueueItem
	Error error
}

// EndpointResult represents the result of fetching data from a single API endpoint.
type EndpointResult struct {
	Endpoint string
	Data     any
	Error    error
}

// DumpResult contains all data fetched from the API proxy.
type DumpResult struct {
	LoginStatus any              // Account/session status
	Playlists   any              // User playlists
	LikedSongs  any              // Liked track IDs
	History     any              // Listening record
	Errors      []EndpointResult // Failed endpoint fetches
}

// DumpData is the serialized form of [DumpResult].
type DumpData struct {
	LoginStatus any   `json:"login_status"`
	Playlists   any   `json:"playlists,omitempty"`
	LikedSongs  any   `json:"liked_songs,omitempty"`
	History     any   `json:"history,omitempty"`
	Errors      []any `json:"errors,omitempty"`
}

type endpointOperation struct {
	name    string
	path    string
	target  *any
	phase   Phase
	message string
}

// Engine runs background tasks against the caches and the API proxy.
type Engine struct {
	fetcher Fetcher
	cached  Cached
	api     APIClient
	logger  *log.Logger
}

// NewEngine creates a new Engine. Any dependency may be nil; operations needing it fail with
// [shared.ErrServiceUnavailable].
func NewEngine(fetcher Fetcher, cached Cached, api APIClient, logger *log.Logger) *Engine {
	if logger == nil {
		logger = shared.NewLogger(nil)
	}
	return &Engine{
		fetcher: fetcher,
		cached:  cached,
		api:     api,
		logger:  shared.WithLogger(logger, "component", "tasks"),
	}
}

// sendProgress sends a progress update through the channel without blocking.
func (e *Engine) sendProgress(progress chan<- ProgressUpdate, update ProgressUpdate) {
	if progress == nil {
		return
	}
	select {
	case progress <- update:
	default:
	}
}

// PrefetchQueue prefetches up to n items following the head of q.
func (e *Engine) PrefetchQueue(ctx context.Context, prog chan<- ProgressUpdate, q *queue.Queue, n int, opts PrefetchOpts) (*PrefetchResult, error) {
	return e.Prefetch(ctx, prog, q.Peek(n), opts)
}

// Prefetch downloads items that are not cached yet using a rate-limited worker pool.
//
// Failures are counted per item and do not stop the run. A canceled context stops handing out
// new items and is returned along with the partial result.
func (e *Engine) Prefetch(ctx context.Context, prog chan<- ProgressUpdate, items []models.QueueItem, opts PrefetchOpts) (*PrefetchResult, error) {
	if e.fetcher == nil {
		return nil, fmt.Errorf("%w: prefetch fetcher not initialized", shared.ErrServiceUnavailable)
	}

	if opts.NumWorkers <= 0 {
		opts.NumWorkers = 2
	}
	if opts.NumWorkers > 8 {
		opts.NumWorkers = 8
	}
	if opts.RateLimit <= 0 {
		opts.RateLimit = 2
	}

	result := &PrefetchResult{Total: len(items)}

	var pending []models.QueueItem
	for _, item := range items {
		if e.cached != nil && e.cached.Contains(item.CacheKey) {
			result.Skipped++
			metrics.PrefetchedTotal.WithLabelValues("skipped").Inc()
			continue
		}
		pending = append(pending, item)
	}

	e.sendProgress(prog, prefetchStartUpdate(len(pending), result.Skipped))
	if len(pending) == 0 {
		return result, nil
	}

	limiter := rate.NewLimiter(rate.Limit(opts.RateLimit), 1)
	jobs := make(chan models.QueueItem, len(pending))
	results := make(chan ItemError, len(pending))

	var wg sync.WaitGroup
	for range min(opts.NumWorkers, len(pending)) {
		wg.Add(1)
		go e.prefetchWorker(ctx, &wg, jobs, results)
	}

	go func() {
		defer close(jobs)
		for _, item := range pending {
			if err := limiter.Wait(ctx); err != nil {
				return
			}
			jobs <- item
		}
	}()

	go func() {
		wg.Wait()
		close(results)
	}()

	completed := 0
	for res := range results {
		completed++
		if res.Error != nil {
			result.Failed++
			result.Errors = append(result.Errors, res)
			metrics.PrefetchedTotal.WithLabelValues("failed").Inc()
			e.logger.Warn("prefetch failed", "key", res.Item.CacheKey, "error", res.Error)
			e.sendProgress(prog, prefetchFailedUpdate(completed, len(pending), res.Item, res.Error))
			continue
		}
		result.Fetched++
		metrics.PrefetchedTotal.WithLabelValues("fetched").Inc()
		e.sendProgress(prog, prefetchDoneUpdate(completed, len(pending), res.Item))
	}

	if err := ctx.Err(); err != nil {
		return result, err
	}
	return result, nil
}

// prefetchWorker is a worker goroutine that fetches items from the jobs channel.
func (e *Engine) prefetchWorker(ctx context.Context, wg *sync.WaitGroup, jobs <-chan models.QueueItem, results chan<- ItemError) {
	defer wg.Done()

	for item := range jobs {
		select {
		case <-ctx.Done():
			results <- ItemError{Item: item, Error: ctx.Err()}
			continue
		default:
		}
		results <- ItemError{Item: item, Error: e.fetcher.Ensure(ctx, item)}
	}
}

// Dump fetches raw account data for uid from the API proxy.
func (e *Engine) Dump(ctx context.Context, uid int64, progress chan<- ProgressUpdate) (*DumpResult, error) {
	if e.api == nil {
		return nil, fmt.Errorf("%w: API client not initialized", shared.ErrServiceUnavailable)
	}

	result := &DumpResult{Errors: []EndpointResult{}}
	q := url.Values{"uid": {strconv.FormatInt(uid, 10)}}.Encode()

	endpoints := []endpointOperation{
		{name: "login_status", path: "/login/status", target: &result.LoginStatus, phase: FetchLogin, message: "Fetching login status..."},
		{name: "playlists", path: "/user/playlist?" + q, target: &result.Playlists, phase: FetchPlaylists, message: "Fetching playlists..."},
		{name: "liked_songs", path: "/likelist?" + q, target: &result.LikedSongs, phase: FetchLiked, message: "Fetching liked songs..."},
		{name: "history", path: "/user/record?type=1&" + q, target: &result.History, phase: FetchHistory, message: "Fetching listening history..."},
	}

	totalSteps := len(endpoints)
	for i, endpoint := range endpoints {
		if err := ctx.Err(); err != nil {
			return result, err
		}
		e.sendProgress(progress, operationUpdate(endpoint, i+1, totalSteps))

		resp, err := e.api.Get(ctx, endpoint.path)
		switch {
		case err != nil:
			result.Errors = append(result.Errors, EndpointResult{Endpoint: endpoint.path, Error: err})
		case resp.StatusCode < 200 || resp.StatusCode >= 300:
			result.Errors = append(result.Errors, EndpointResult{
				Endpoint: endpoint.path,
				Error:    fmt.Errorf("%w: status %d", shared.ErrFetchFailed, resp.StatusCode),
			})
		default:
			*endpoint.target = resp.JSONData
		}
	}

	if len(result.Errors) == totalSteps {
		return result, errors.Join(shared.ErrServiceUnavailable, result.Errors[0].Error)
	}
	return result, nil
}

// Data converts the result into its serialized form.
func (r *DumpResult) Data() DumpData {
	data := DumpData{
		LoginStatus: r.LoginStatus,
		Playlists:   r.Playlists,
		LikedSongs:  r.LikedSongs,
		History:     r.History,
	}
	for _, e := range r.Errors {
		data.Errors = append(data.Errors, map[string]string{"endpoint": e.Endpoint, "error": e.Error.Error()})
	}
	return data
}
