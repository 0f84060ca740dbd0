package services

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/desertthunder/cloudplay/internal/cache"
	"github.com/desertthunder/cloudplay/internal/shared"
	tu "github.com/desertthunder/cloudplay/internal/testing"
)

func quietLogger() APIOption {
	return WithLogger(shared.NewLogger(&bytes.Buffer{}))
}

func TestAPIService(t *testing.T) {
	t.Run("New", func(t *testing.T) {
		t.Run("With Custom BaseURL and Client", func(t *testing.T) {
			customClient := &http.Client{}
			srv := NewAPIService("http://example.com", customClient)

			if srv.baseURL != "http://example.com" {
				t.Errorf("expected baseURL 'http://example.com', got %s", srv.baseURL)
			}
			if srv.httpClient != customClient {
				t.Error("expected custom client to be used")
			}
		})

		t.Run("With Empty BaseURL", func(t *testing.T) {
			srv := NewAPIService("", nil)

			if srv.baseURL != defaultBaseURL {
				t.Errorf("expected default baseURL %s, got %s", defaultBaseURL, srv.baseURL)
			}
			if srv.httpClient != http.DefaultClient {
				t.Error("expected http.DefaultClient to be used")
			}
		})
	})

	t.Run("Get", func(t *testing.T) {
		t.Run("Successful Request With JSON Response", func(t *testing.T) {
			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				if r.Method != http.MethodGet {
					t.Errorf("expected GET method, got %s", r.Method)
				}
				w.Header().Set("Content-Type", "application/json")
				json.NewEncoder(w).Encode(map[string]any{"code": 200})
			}))
			defer server.Close()

			srv := NewAPIService(server.URL, nil, quietLogger())
			resp, err := srv.Get(context.Background(), "/test")
			if err != nil {
				t.Fatalf("expected no error, got %v", err)
			}
			if resp.StatusCode != http.StatusOK || !resp.IsJSON {
				t.Errorf("expected JSON 200 response, got %d json=%v", resp.StatusCode, resp.IsJSON)
			}
			if resp.Headers.Get("Content-Type") != "application/json" {
				t.Error("expected headers to be preserved")
			}
		})

		t.Run("Non-JSON Response", func(t *testing.T) {
			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.Write([]byte("plain text"))
			}))
			defer server.Close()

			resp, err := NewAPIService(server.URL, nil, quietLogger()).Get(context.Background(), "/")
			if err != nil {
				t.Fatalf("expected no error, got %v", err)
			}
			if resp.IsJSON || string(resp.Body) != "plain text" {
				t.Errorf("expected raw body, got %q json=%v", resp.Body, resp.IsJSON)
			}
		})

		t.Run("Failed HTTP Request", func(t *testing.T) {
			client := &http.Client{
				Transport: tu.NewMockRoundTripper(nil, errors.New("connection failed")),
			}

			_, err := NewAPIService("http://example.com", client, quietLogger()).Get(context.Background(), "/test")
			if !errors.Is(err, shared.ErrFetchFailed) {
				t.Errorf("expected ErrFetchFailed, got %v", err)
			}
		})

		t.Run("Failed Response Body Read", func(t *testing.T) {
			client := &http.Client{
				Transport: tu.NewMockRoundTripper(&http.Response{
					StatusCode: http.StatusOK,
					Body:       &tu.FCloser{},
					Header:     make(http.Header),
				}, nil),
			}

			_, err := NewAPIService("http://example.com", client, quietLogger()).Get(context.Background(), "/test")
			if !errors.Is(err, shared.ErrFetchFailed) || !strings.Contains(err.Error(), "failed to read response") {
				t.Errorf("expected read failure, got %v", err)
			}
		})

		t.Run("With Canceled Context", func(t *testing.T) {
			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				time.Sleep(100 * time.Millisecond)
			}))
			defer server.Close()

			ctx, cancel := context.WithCancel(context.Background())
			cancel()

			if _, err := NewAPIService(server.URL, nil, quietLogger()).Get(ctx, "/test"); err == nil {
				t.Error("expected error for canceled context")
			}
		})
	})

	t.Run("Post", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if r.Method != http.MethodPost {
				t.Errorf("expected POST method, got %s", r.Method)
			}
			if r.Header.Get("Content-Type") != "application/json" {
				t.Errorf("expected JSON content type, got %s", r.Header.Get("Content-Type"))
			}
			body, _ := io.ReadAll(r.Body)
			w.Write(body)
		}))
		defer server.Close()

		resp, err := NewAPIService(server.URL, nil, quietLogger()).Post(context.Background(), "/echo", []byte(`{"a":1}`))
		if err != nil {
			t.Fatalf("expected no error, got %v", err)
		}
		if string(resp.Body) != `{"a":1}` {
			t.Errorf("expected echoed body, got %s", resp.Body)
		}
	})
}

func newMusicServer(t *testing.T, hits *atomic.Int32) *httptest.Server {
	t.Helper()
	mux := http.NewServeMux()

	mux.HandleFunc("/user/playlist", func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		if r.URL.Query().Get("uid") != "32" {
			t.Errorf("expected uid 32, got %s", r.URL.Query().Get("uid"))
		}
		w.Write([]byte(`{"code":200,"playlist":[{"id":1,"name":"Liked","trackCount":2,"userId":32}]}`))
	})
	mux.HandleFunc("/playlist/track/all", func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		w.Write([]byte(`{"code":200,"songs":[{"id":10,"name":"One","alia":["Uno"],"ar":[{"id":1,"name":"A"}],"al":{"id":5,"name":"Al"},"dt":180000},{"id":11,"name":"Two","ar":[],"al":{"id":5,"name":"Al"},"dt":1000}]}`))
	})
	mux.HandleFunc("/album", func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		w.Write([]byte(`{"code":200,"songs":[{"id":20,"name":"Album Song","ar":[{"id":2,"name":"B"}],"al":{"id":7,"name":"X"},"dt":1}]}`))
	})
	mux.HandleFunc("/song/url", func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		switch r.URL.Query().Get("id") {
		case "10":
			if r.URL.Query().Get("br") != "320000" {
				t.Errorf("expected br 320000, got %s", r.URL.Query().Get("br"))
			}
			w.Write([]byte(`{"code":200,"data":[{"id":10,"url":"http://media/10.mp3","md5":"abc","size":3}]}`))
		default:
			w.Write([]byte(`{"code":200,"data":[{"id":99,"url":null,"md5":null,"size":0}]}`))
		}
	})
	mux.HandleFunc("/lyric", func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		w.Write([]byte(`{"code":200,"lrc":{"lyric":"[00:01.00]hello"}}`))
	})
	mux.HandleFunc("/denied", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"code":301,"msg":"needs login"}`))
	})

	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv
}

func TestAPIServiceEndpoints(t *testing.T) {
	ctx := context.Background()

	t.Run("UserPlaylists", func(t *testing.T) {
		var hits atomic.Int32
		srv := NewAPIService(newMusicServer(t, &hits).URL, nil, quietLogger())

		playlists, err := srv.UserPlaylists(ctx, 32)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if len(playlists) != 1 || playlists[0].Name != "Liked" || playlists[0].TrackCount != 2 {
			t.Errorf("unexpected playlists %+v", playlists)
		}
	})

	t.Run("PlaylistTracks", func(t *testing.T) {
		var hits atomic.Int32
		srv := NewAPIService(newMusicServer(t, &hits).URL, nil, quietLogger())

		tracks, err := srv.PlaylistTracks(ctx, 1)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if len(tracks) != 2 || tracks[0].Alias[0] != "Uno" || tracks[0].Artists[0].Name != "A" {
			t.Errorf("unexpected tracks %+v", tracks)
		}
		if tracks[0].Duration() != 3*time.Minute {
			t.Errorf("expected 3m duration, got %s", tracks[0].Duration())
		}
	})

	t.Run("AlbumTracks", func(t *testing.T) {
		var hits atomic.Int32
		srv := NewAPIService(newMusicServer(t, &hits).URL, nil, quietLogger())

		tracks, err := srv.AlbumTracks(ctx, 7)
		if err != nil || len(tracks) != 1 || tracks[0].ID != 20 {
			t.Errorf("unexpected result %+v (%v)", tracks, err)
		}
	})

	t.Run("SongURL", func(t *testing.T) {
		var hits atomic.Int32
		srv := NewAPIService(newMusicServer(t, &hits).URL, nil, quietLogger())

		detail, err := srv.SongURL(ctx, 10, 320000)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if detail.URL != "http://media/10.mp3" || detail.MD5 != "abc" {
			t.Errorf("unexpected detail %+v", detail)
		}

		if _, err := srv.SongURL(ctx, 99, 0); !errors.Is(err, shared.ErrTrackNotFound) {
			t.Errorf("expected ErrTrackNotFound for an empty url, got %v", err)
		}
	})

	t.Run("Lyric", func(t *testing.T) {
		var hits atomic.Int32
		srv := NewAPIService(newMusicServer(t, &hits).URL, nil, quietLogger())

		lrc, err := srv.Lyric(ctx, 10)
		if err != nil || lrc != "[00:01.00]hello" {
			t.Errorf("unexpected lyric %q (%v)", lrc, err)
		}
	})

	t.Run("Error Code", func(t *testing.T) {
		var hits atomic.Int32
		srv := NewAPIService(newMusicServer(t, &hits).URL, nil, quietLogger())

		var out struct{}
		err := srv.getJSON(ctx, "/denied", nil, false, &out)
		if !errors.Is(err, shared.ErrFetchFailed) || !strings.Contains(err.Error(), "needs login") {
			t.Errorf("expected ErrFetchFailed with message, got %v", err)
		}
	})

	t.Run("Error Status", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusBadGateway)
		}))
		defer server.Close()

		_, err := NewAPIService(server.URL, nil, quietLogger()).PlaylistTracks(ctx, 1)
		if !errors.Is(err, shared.ErrFetchFailed) {
			t.Errorf("expected ErrFetchFailed, got %v", err)
		}
	})

	t.Run("Memoized", func(t *testing.T) {
		var hits atomic.Int32
		memo := cache.NewMemo[[]byte](nil)
		srv := NewAPIService(newMusicServer(t, &hits).URL, nil, quietLogger(), WithMemo(memo, time.Minute))

		for range 3 {
			if _, err := srv.PlaylistTracks(ctx, 1); err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
		}
		if hits.Load() != 1 {
			t.Errorf("expected one request for memoized listing, got %d", hits.Load())
		}

		for range 2 {
			srv.SongURL(ctx, 10, 320000)
		}
		if hits.Load() != 3 {
			t.Errorf("song urls should not be memoized, got %d requests", hits.Load())
		}
	})

	t.Run("Rate Limited", func(t *testing.T) {
		var hits atomic.Int32
		srv := NewAPIService(newMusicServer(t, &hits).URL, nil, quietLogger(), WithRateLimit(20))

		start := time.Now()
		for range 3 {
			srv.Lyric(ctx, 10)
		}
		if elapsed := time.Since(start); elapsed < 80*time.Millisecond {
			t.Errorf("expected limiter to space requests, took %s", elapsed)
		}
	})
}

func TestDownload(t *testing.T) {
	ctx := context.Background()

	t.Run("Success", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.Write([]byte("audio"))
		}))
		defer server.Close()

		data, err := NewAPIService("", nil, quietLogger()).Download(ctx, server.URL+"/a.mp3")
		if err != nil || string(data) != "audio" {
			t.Errorf("unexpected download %q (%v)", data, err)
		}
	})

	t.Run("Bad Status", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusNotFound)
		}))
		defer server.Close()

		if _, err := NewAPIService("", nil, quietLogger()).Download(ctx, server.URL); !errors.Is(err, shared.ErrFetchFailed) {
			t.Errorf("expected ErrFetchFailed, got %v", err)
		}
	})
}
