package formatter

import (
	"encoding/csv"
	"encoding/json"
	"errors"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/desertthunder/cloudplay/internal/cache"
	"github.com/desertthunder/cloudplay/internal/models"
	"github.com/desertthunder/cloudplay/internal/shared"
	th "github.com/desertthunder/cloudplay/internal/testing"
)

func sampleQueue() []models.QueueItem {
	return []models.QueueItem{
		{TrackID: 101, Title: "Song One (Intro)", Artists: []string{"Artist One"}, SourcePlaylistID: 9, CacheKey: "101"},
		{TrackID: 102, Title: "Song Two", Artists: []string{"Artist Two", "Guest"}, SourcePlaylistID: 9, CacheKey: "102"},
	}
}

func TestExporters(t *testing.T) {
	t.Run("QueueToCSV", func(t *testing.T) {
		data, err := QueueToCSV(sampleQueue())
		if err != nil {
			t.Fatalf("QueueToCSV failed: %v", err)
		}

		records, err := csv.NewReader(strings.NewReader(string(data))).ReadAll()
		if err != nil {
			t.Fatalf("failed to read CSV back: %v", err)
		}

		if len(records) != 3 {
			t.Fatalf("expected header plus 2 rows, got %d", len(records))
		}
		if strings.Join(records[0], ",") != "Position,TrackID,Title,Artists,SourcePlaylistID,CacheKey" {
			t.Errorf("CSV headers wrong, got: %v", records[0])
		}
		if records[2][3] != "Artist Two/Guest" {
			t.Errorf("expected joined artists, got %q", records[2][3])
		}
		if records[1][0] != "1" || records[1][1] != "101" {
			t.Errorf("unexpected first row: %v", records[1])
		}
	})

	t.Run("QueueToMarkdown", func(t *testing.T) {
		output := string(QueueToMarkdown("Queue", sampleQueue()))

		if !strings.Contains(output, "# Queue") {
			t.Errorf("Markdown missing title")
		}
		if !strings.Contains(output, "**Tracks**: 2") {
			t.Errorf("Markdown missing track count")
		}
		if !strings.Contains(output, "**Now playing**: Song One (Intro) - Artist One") {
			t.Errorf("Markdown missing now playing, got: %s", output)
		}
		if !strings.Contains(output, "2. Song Two - Artist Two/Guest") {
			t.Errorf("Markdown missing track2, got: %s", output)
		}
	})

	t.Run("QueueToMarkdown Empty", func(t *testing.T) {
		output := string(QueueToMarkdown("Queue", nil))
		if strings.Contains(output, "Now playing") {
			t.Errorf("empty queue should have no now playing line")
		}
	})

	t.Run("QueueToText", func(t *testing.T) {
		output := string(QueueToText(sampleQueue()))

		if !strings.Contains(output, "Queue: 2 tracks") {
			t.Errorf("Text missing track count")
		}
		if !strings.Contains(output, "1. Song One (Intro) - Artist One") {
			t.Errorf("Text missing track1")
		}
	})

	t.Run("QueueToJSON", func(t *testing.T) {
		data, err := QueueToJSON(nil)
		if err != nil {
			t.Fatalf("QueueToJSON failed: %v", err)
		}
		if string(data) != "[]" {
			t.Errorf("expected empty array, got %s", data)
		}

		data, err = QueueToJSON(sampleQueue())
		if err != nil {
			t.Fatalf("QueueToJSON failed: %v", err)
		}
		var decoded []models.QueueItem
		if err := json.Unmarshal(data, &decoded); err != nil {
			t.Fatalf("invalid JSON: %v", err)
		}
		if len(decoded) != 2 || decoded[1].CacheKey != "102" {
			t.Errorf("unexpected decoded queue: %+v", decoded)
		}
	})
}

func TestParseFormat(t *testing.T) {
	tests := []struct {
		in      string
		want    Format
		wantErr bool
	}{
		{in: "csv", want: FormatCSV},
		{in: ".MD", want: FormatMarkdown},
		{in: "markdown", want: FormatMarkdown},
		{in: "", want: FormatText},
		{in: ".json", want: FormatJSON},
		{in: "xml", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ParseFormat(tt.in)
			if tt.wantErr {
				if !errors.Is(err, shared.ErrInvalidArgument) {
					t.Errorf("expected invalid argument, got %v", err)
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if got != tt.want {
				t.Errorf("ParseFormat(%q) = %q, want %q", tt.in, got, tt.want)
			}
		})
	}
}

func TestWriteQueueExport(t *testing.T) {
	t.Run("Format From Extension", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "exports", "queue.csv")

		written, err := WriteQueueExport(sampleQueue(), "", path)
		if err != nil {
			t.Fatalf("WriteQueueExport failed: %v", err)
		}

		th.AssertFileExists(t, written)
		content := th.MustReadFile(t, written)
		if !strings.HasPrefix(content, "Position,TrackID") {
			t.Errorf("expected CSV content, got: %s", content)
		}
	})

	t.Run("Explicit Format Wins", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "queue.out")

		if _, err := WriteQueueExport(sampleQueue(), FormatMarkdown, path); err != nil {
			t.Fatalf("WriteQueueExport failed: %v", err)
		}
		if !strings.Contains(th.MustReadFile(t, path), "## Queue") {
			t.Error("expected Markdown content")
		}
	})

	t.Run("Missing Path", func(t *testing.T) {
		if _, err := WriteQueueExport(sampleQueue(), FormatText, ""); !errors.Is(err, shared.ErrMissingArgument) {
			t.Errorf("expected missing argument, got %v", err)
		}
	})

	t.Run("Unknown Extension", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "queue.xml")
		if _, err := WriteQueueExport(sampleQueue(), "", path); !errors.Is(err, shared.ErrInvalidArgument) {
			t.Errorf("expected invalid argument, got %v", err)
		}
	})
}

func TestTables(t *testing.T) {
	t.Run("PlaylistsTable", func(t *testing.T) {
		output := string(PlaylistsTable([]models.Playlist{
			{ID: 1, Name: "Liked", TrackCount: 120, PlayCount: 12345},
		}))

		if !strings.Contains(output, "ID") || !strings.Contains(output, "TRACKS") {
			t.Errorf("table missing headers: %s", output)
		}
		if !strings.Contains(output, "12,345") {
			t.Errorf("expected humanized play count, got: %s", output)
		}
	})

	t.Run("CacheStatsTable", func(t *testing.T) {
		output := string(CacheStatsTable([]cache.Stats{
			{Namespace: "music", Entries: 2, Bytes: 512 * 1024, Budget: 1024 * 1024, Hits: 3},
			{Namespace: "lyric", Entries: 1, Bytes: 100},
		}))

		if !strings.Contains(output, "512 KiB") {
			t.Errorf("expected humanized size, got: %s", output)
		}
		if !strings.Contains(output, "50.0%") {
			t.Errorf("expected usage percent, got: %s", output)
		}
		if !strings.Contains(output, "unbounded") {
			t.Errorf("expected unbounded budget for lyric cache, got: %s", output)
		}
	})

	t.Run("CacheEntriesTable", func(t *testing.T) {
		output := string(CacheEntriesTable([]models.CacheEntry{
			{Key: "101", SizeBytes: 2048, IntegrityHash: "abc", LastAccess: time.Now().Add(-time.Hour)},
			{Key: "102", SizeBytes: 10, IntegrityHash: "def"},
		}))

		if !strings.Contains(output, "2.0 KiB") {
			t.Errorf("expected humanized size, got: %s", output)
		}
		if !strings.Contains(output, "1 hour ago") {
			t.Errorf("expected relative access time, got: %s", output)
		}
	})
}
