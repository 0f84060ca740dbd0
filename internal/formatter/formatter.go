// package formatter renders queues, playlists and cache statistics as CSV, Markdown, JSON or plain text
package formatter

import (
	"bytes"
	"encoding/csv"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"text/tabwriter"

	"github.com/desertthunder/cloudplay/internal/cache"
	"github.com/desertthunder/cloudplay/internal/models"
	"github.com/desertthunder/cloudplay/internal/shared"
	"github.com/dustin/go-humanize"
)

// Format names an export encoding.
type Format string

const (
	FormatCSV      Format = "csv"
	FormatMarkdown Format = "md"
	FormatText     Format = "txt"
	FormatJSON     Format = "json"
)

// ParseFormat maps a flag value or file extension to a Format.
func ParseFormat(s string) (Format, error) {
	switch strings.ToLower(strings.TrimPrefix(s, ".")) {
	case "csv":
		return FormatCSV, nil
	case "md", "markdown":
		return FormatMarkdown, nil
	case "txt", "text", "":
		return FormatText, nil
	case "json":
		return FormatJSON, nil
	}
	return "", fmt.Errorf("%w: unknown format %q", shared.ErrInvalidArgument, s)
}

// QueueToCSV converts queue items to CSV with columns: Position, TrackID, Title, Artists, SourcePlaylistID, CacheKey
func QueueToCSV(items []models.QueueItem) ([]byte, error) {
	var buf bytes.Buffer
	writer := csv.NewWriter(&buf)

	headers := []string{"Position", "TrackID", "Title", "Artists", "SourcePlaylistID", "CacheKey"}
	if err := writer.Write(headers); err != nil {
		return nil, fmt.Errorf("failed to write CSV headers: %w", err)
	}

	for i, item := range items {
		record := []string{
			strconv.Itoa(i + 1),
			strconv.FormatInt(item.TrackID, 10),
			item.Title,
			item.Description(),
			strconv.FormatInt(item.SourcePlaylistID, 10),
			item.CacheKey,
		}
		if err := writer.Write(record); err != nil {
			return nil, fmt.Errorf("failed to write CSV record: %w", err)
		}
	}

	writer.Flush()
	if err := writer.Error(); err != nil {
		return nil, fmt.Errorf("CSV writer error: %w", err)
	}

	return buf.Bytes(), nil
}

// QueueToMarkdown renders the queue as a numbered list under a heading. The head is marked as now playing.
func QueueToMarkdown(title string, items []models.QueueItem) []byte {
	var buf bytes.Buffer

	fmt.Fprintf(&buf, "# %s\n\n", title)
	fmt.Fprintf(&buf, "**Tracks**: %d\n\n", len(items))

	if len(items) > 0 {
		fmt.Fprintf(&buf, "**Now playing**: %s\n\n", items[0])
	}

	buf.WriteString("## Queue\n\n")
	for i, item := range items {
		fmt.Fprintf(&buf, "%d. %s\n", i+1, item)
	}

	return buf.Bytes()
}

// QueueToText renders the queue as plain numbered lines.
func QueueToText(items []models.QueueItem) []byte {
	var buf bytes.Buffer

	fmt.Fprintf(&buf, "Queue: %d tracks\n\n", len(items))
	for i, item := range items {
		fmt.Fprintf(&buf, "%d. %s\n", i+1, item)
	}

	return buf.Bytes()
}

// QueueToJSON encodes the queue items.
func QueueToJSON(items []models.QueueItem) ([]byte, error) {
	if items == nil {
		items = []models.QueueItem{}
	}
	return json.MarshalIndent(items, "", "  ")
}

// RenderQueue encodes items in format.
func RenderQueue(items []models.QueueItem, format Format) ([]byte, error) {
	switch format {
	case FormatCSV:
		return QueueToCSV(items)
	case FormatMarkdown:
		return QueueToMarkdown("Queue", items), nil
	case FormatJSON:
		return QueueToJSON(items)
	case FormatText:
		return QueueToText(items), nil
	}
	return nil, fmt.Errorf("%w: unknown format %q", shared.ErrInvalidArgument, format)
}

// WriteQueueExport writes the queue to path. The format comes from the extension unless given.
//
// Parent directories are created as needed.
func WriteQueueExport(items []models.QueueItem, format Format, path string) (string, error) {
	if path == "" {
		return "", fmt.Errorf("%w: export path", shared.ErrMissingArgument)
	}

	if format == "" {
		f, err := ParseFormat(filepath.Ext(path))
		if err != nil {
			return "", err
		}
		format = f
	}

	data, err := RenderQueue(items, format)
	if err != nil {
		return "", fmt.Errorf("failed to render queue: %w", err)
	}

	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return "", fmt.Errorf("failed to create directory: %w", err)
		}
	}

	if err := os.WriteFile(path, data, 0644); err != nil {
		return "", fmt.Errorf("failed to write export file: %w", err)
	}

	return path, nil
}

// PlaylistsTable renders playlists as aligned columns.
func PlaylistsTable(playlists []models.Playlist) []byte {
	var buf bytes.Buffer
	w := tabwriter.NewWriter(&buf, 0, 0, 2, ' ', 0)

	fmt.Fprintln(w, "ID\tNAME\tTRACKS\tPLAYS")
	for _, pl := range playlists {
		fmt.Fprintf(w, "%d\t%s\t%d\t%s\n", pl.ID, pl.Name, pl.TrackCount, humanize.Comma(pl.PlayCount))
	}
	w.Flush()

	return buf.Bytes()
}

// CacheStatsTable renders per-namespace cache statistics with human-readable sizes.
func CacheStatsTable(stats []cache.Stats) []byte {
	var buf bytes.Buffer
	w := tabwriter.NewWriter(&buf, 0, 0, 2, ' ', 0)

	fmt.Fprintln(w, "NAMESPACE\tENTRIES\tSIZE\tBUDGET\tUSED\tHITS\tMISSES\tEVICTIONS")
	for _, s := range stats {
		budget, used := "unbounded", "-"
		if s.Budget > 0 {
			budget = humanize.IBytes(uint64(s.Budget))
			used = fmt.Sprintf("%.1f%%", 100*float64(s.Bytes)/float64(s.Budget))
		}
		fmt.Fprintf(w, "%s\t%d\t%s\t%s\t%s\t%d\t%d\t%d\n",
			s.Namespace, s.Entries, humanize.IBytes(uint64(s.Bytes)), budget, used, s.Hits, s.Misses, s.Evictions)
	}
	w.Flush()

	return buf.Bytes()
}

// CacheEntriesTable renders entries least recently used first.
func CacheEntriesTable(entries []models.CacheEntry) []byte {
	var buf bytes.Buffer
	w := tabwriter.NewWriter(&buf, 0, 0, 2, ' ', 0)

	fmt.Fprintln(w, "KEY\tSIZE\tHASH\tLAST ACCESS")
	for _, e := range entries {
		access := "-"
		if !e.LastAccess.IsZero() {
			access = humanize.Time(e.LastAccess)
		}
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\n", e.Key, humanize.IBytes(uint64(e.SizeBytes)), e.IntegrityHash, access)
	}
	w.Flush()

	return buf.Bytes()
}
