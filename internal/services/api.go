// API service for the cloud-music proxy
package services

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/charmbracelet/log"
	"github.com/desertthunder/cloudplay/internal/cache"
	"github.com/desertthunder/cloudplay/internal/metrics"
	"github.com/desertthunder/cloudplay/internal/models"
	"github.com/desertthunder/cloudplay/internal/shared"
	"golang.org/x/time/rate"
)

const defaultBaseURL string = "http://127.0.0.1:3000"

// APIService implements [Service] and [Downloader] against the cloud-music proxy.
type APIService struct {
	baseURL    string
	httpClient *http.Client
	limiter    *rate.Limiter
	memo       *cache.Memo[[]byte]
	ttl        time.Duration
	logger     *log.Logger
}

// APIOption configures an [APIService].
type APIOption func(*APIService)

// WithRateLimit caps requests per second. Zero or less disables the limit.
func WithRateLimit(perSecond float64) APIOption {
	return func(a *APIService) {
		if perSecond > 0 {
			a.limiter = rate.NewLimiter(rate.Limit(perSecond), 1)
		} else {
			a.limiter = rate.NewLimiter(rate.Inf, 0)
		}
	}
}

// WithMemo memoizes listing and lyric responses in memo for ttl.
func WithMemo(memo *cache.Memo[[]byte], ttl time.Duration) APIOption {
	return func(a *APIService) {
		a.memo = memo
		a.ttl = ttl
	}
}

// WithLogger sets the service logger.
func WithLogger(l *log.Logger) APIOption {
	return func(a *APIService) { a.logger = l }
}

// NewAPIService creates a new API service instance for the proxy at baseURL.
func NewAPIService(baseURL string, client *http.Client, opts ...APIOption) *APIService {
	if baseURL == "" {
		baseURL = defaultBaseURL
	}
	if client == nil {
		client = http.DefaultClient
	}

	a := &APIService{
		baseURL:    baseURL,
		httpClient: client,
		limiter:    rate.NewLimiter(rate.Inf, 0),
	}
	for _, opt := range opts {
		opt(a)
	}
	if a.logger == nil {
		a.logger = shared.NewLogger(nil)
	}
	return a
}

// Name returns the service name.
func (a *APIService) Name() string {
	return "cloudmusic"
}

// APIResponse represents a raw API response with status and body.
type APIResponse struct {
	StatusCode int
	Headers    http.Header
	Body       []byte
	IsJSON     bool
	JSONData   any
}

// Get performs a GET request to the specified path and returns the raw response without checking its status.
func (a *APIService) Get(ctx context.Context, path string) (*APIResponse, error) {
	return a.raw(ctx, http.MethodGet, path, nil)
}

// Post performs a POST request with the given JSON data and returns the raw response.
func (a *APIService) Post(ctx context.Context, path string, data []byte) (*APIResponse, error) {
	return a.raw(ctx, http.MethodPost, path, data)
}

func (a *APIService) raw(ctx context.Context, method, path string, data []byte) (*APIResponse, error) {
	var body io.Reader
	if data != nil {
		body = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, a.baseURL+path, body)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	if data != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	if err := a.limiter.Wait(ctx); err != nil {
		return nil, err
	}

	resp, err := a.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: request failed: %v", shared.ErrFetchFailed, err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("%w: failed to read response: %v", shared.ErrFetchFailed, err)
	}

	apiResp := &APIResponse{
		StatusCode: resp.StatusCode,
		Headers:    resp.Header,
		Body:       respBody,
	}

	var jsonData any
	if err := json.Unmarshal(respBody, &jsonData); err == nil {
		apiResp.IsJSON = true
		apiResp.JSONData = jsonData
	}

	return apiResp, nil
}

// UserPlaylists calls GET /user/playlist.
func (a *APIService) UserPlaylists(ctx context.Context, uid int64) ([]models.Playlist, error) {
	var resp struct {
		Playlist []models.Playlist `json:"playlist"`
	}
	q := url.Values{"uid": {strconv.FormatInt(uid, 10)}}
	if err := a.getJSON(ctx, "/user/playlist", q, true, &resp); err != nil {
		return nil, err
	}
	return resp.Playlist, nil
}

// PlaylistTracks calls GET /playlist/track/all.
func (a *APIService) PlaylistTracks(ctx context.Context, playlistID int64) ([]models.Track, error) {
	var resp struct {
		Songs []models.Track `json:"songs"`
	}
	q := url.Values{"id": {strconv.FormatInt(playlistID, 10)}}
	if err := a.getJSON(ctx, "/playlist/track/all", q, true, &resp); err != nil {
		return nil, err
	}
	return resp.Songs, nil
}

// AlbumTracks calls GET /album.
func (a *APIService) AlbumTracks(ctx context.Context, albumID int64) ([]models.Track, error) {
	var resp struct {
		Songs []models.Track `json:"songs"`
	}
	q := url.Values{"id": {strconv.FormatInt(albumID, 10)}}
	if err := a.getJSON(ctx, "/album", q, true, &resp); err != nil {
		return nil, err
	}
	return resp.Songs, nil
}

// SongURL calls GET /song/url. Results are never memoized.
func (a *APIService) SongURL(ctx context.Context, trackID int64, bitrate int) (models.SongDetail, error) {
	var resp struct {
		Data []models.SongDetail `json:"data"`
	}
	q := url.Values{"id": {strconv.FormatInt(trackID, 10)}}
	if bitrate > 0 {
		q.Set("br", strconv.Itoa(bitrate))
	}
	if err := a.getJSON(ctx, "/song/url", q, false, &resp); err != nil {
		return models.SongDetail{}, err
	}

	if len(resp.Data) == 0 {
		return models.SongDetail{}, fmt.Errorf("%w: no stream for %d", shared.ErrTrackNotFound, trackID)
	}
	detail := resp.Data[0]
	if err := detail.Validate(); err != nil {
		return models.SongDetail{}, fmt.Errorf("%w: %v", shared.ErrTrackNotFound, err)
	}
	return detail, nil
}

// Lyric calls GET /lyric.
func (a *APIService) Lyric(ctx context.Context, trackID int64) (string, error) {
	var resp struct {
		Lrc struct {
			Lyric string `json:"lyric"`
		} `json:"lrc"`
	}
	q := url.Values{"id": {strconv.FormatInt(trackID, 10)}}
	if err := a.getJSON(ctx, "/lyric", q, true, &resp); err != nil {
		return "", err
	}
	return resp.Lrc.Lyric, nil
}

// Download fetches the bytes behind a stream URL.
func (a *APIService) Download(ctx context.Context, mediaURL string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, mediaURL, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	start := time.Now()
	resp, err := a.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: download failed: %v", shared.ErrFetchFailed, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, fmt.Errorf("%w: download status %d", shared.ErrFetchFailed, resp.StatusCode)
	}

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("%w: failed to read media: %v", shared.ErrFetchFailed, err)
	}

	metrics.DownloadBytes.Add(float64(len(data)))
	a.logger.Debug("downloaded media", "bytes", len(data), "elapsed", time.Since(start))
	return data, nil
}

// getJSON fetches endpoint, checks the response code and decodes the body into result.
func (a *APIService) getJSON(ctx context.Context, endpoint string, query url.Values, memoize bool, result any) error {
	path := endpoint
	if len(query) > 0 {
		path += "?" + query.Encode()
	}

	fetch := func(ctx context.Context) ([]byte, error) { return a.fetch(ctx, endpoint, path) }

	var (
		body []byte
		err  error
	)
	if memoize && a.memo != nil {
		body, err = a.memo.GetOrLoad(ctx, path, a.ttl, fetch)
	} else {
		body, err = fetch(ctx)
	}
	if err != nil {
		return err
	}

	if err := json.Unmarshal(body, result); err != nil {
		return fmt.Errorf("%w: failed to decode %s: %v", shared.ErrFetchFailed, endpoint, err)
	}
	return nil
}

// fetch performs a rate-limited GET and returns the body of a successful response.
func (a *APIService) fetch(ctx context.Context, endpoint, path string) ([]byte, error) {
	start := time.Now()
	resp, err := a.Get(ctx, path)
	metrics.APIRequestDuration.WithLabelValues(endpoint).Observe(time.Since(start).Seconds())
	if err != nil {
		metrics.APIRequestsTotal.WithLabelValues(endpoint, "error").Inc()
		return nil, err
	}
	metrics.APIRequestsTotal.WithLabelValues(endpoint, strconv.Itoa(resp.StatusCode)).Inc()

	var envelope struct {
		Code    int    `json:"code"`
		Message string `json:"message"`
		Msg     string `json:"msg"`
	}
	json.Unmarshal(resp.Body, &envelope)

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, fmt.Errorf("%w: %s returned status %d%s", shared.ErrFetchFailed, endpoint, resp.StatusCode, detail(envelope.Message, envelope.Msg))
	}
	if envelope.Code != 0 && envelope.Code != http.StatusOK {
		return nil, fmt.Errorf("%w: %s returned code %d%s", shared.ErrFetchFailed, endpoint, envelope.Code, detail(envelope.Message, envelope.Msg))
	}

	a.logger.Debug("api request", "path", path, "status", resp.StatusCode, "elapsed", time.Since(start))
	return resp.Body, nil
}

func detail(candidates ...string) string {
	for _, c := range candidates {
		if c != "" {
			return ": " + c
		}
	}
	return ""
}
