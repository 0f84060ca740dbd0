// package lyrics parses LRC lyric text into timed lines.
package lyrics

import (
	"bufio"
	"sort"
	"strconv"
	"strings"
	"time"
)

// LyricData holds parsed lines ordered by time. Time[i] belongs to Text[i].
type LyricData struct {
	Time []time.Duration
	Text []string
}

type line struct {
	at   time.Duration
	text string
	seq  int
}

// Parse reads LRC text.
//
// Lines may carry several timestamps ("[00:01.00][00:30.50]chorus"). An [offset:ms] tag
// shifts every line earlier by ms. Metadata tags and untimed lines are skipped.
func Parse(lrc string) LyricData {
	var (
		lines  []line
		offset time.Duration
	)

	scanner := bufio.NewScanner(strings.NewReader(lrc))
	for scanner.Scan() {
		raw := strings.TrimSpace(scanner.Text())

		var stamps []time.Duration
		for strings.HasPrefix(raw, "[") {
			end := strings.IndexByte(raw, ']')
			if end < 0 {
				break
			}
			tag := raw[1:end]
			if d, ok := parseStamp(tag); ok {
				stamps = append(stamps, d)
			} else if v, ok := strings.CutPrefix(tag, "offset:"); ok {
				if ms, err := strconv.Atoi(strings.TrimSpace(v)); err == nil {
					offset = time.Duration(ms) * time.Millisecond
				}
			}
			raw = raw[end+1:]
		}

		text := strings.TrimSpace(raw)
		for _, at := range stamps {
			lines = append(lines, line{at: at, text: text, seq: len(lines)})
		}
	}

	sort.SliceStable(lines, func(i, j int) bool { return lines[i].at < lines[j].at })

	data := LyricData{
		Time: make([]time.Duration, 0, len(lines)),
		Text: make([]string, 0, len(lines)),
	}
	for _, l := range lines {
		at := max(l.at-offset, 0)
		data.Time = append(data.Time, at)
		data.Text = append(data.Text, l.text)
	}
	return data
}

// parseStamp parses "mm:ss", "mm:ss.xx" or "mm:ss.xxx".
func parseStamp(tag string) (time.Duration, bool) {
	minStr, rest, ok := strings.Cut(tag, ":")
	if !ok {
		return 0, false
	}
	minutes, err := strconv.Atoi(minStr)
	if err != nil || minutes < 0 {
		return 0, false
	}

	secStr, fracStr, _ := strings.Cut(rest, ".")
	seconds, err := strconv.Atoi(secStr)
	if err != nil || seconds < 0 || seconds >= 60 {
		return 0, false
	}

	var frac time.Duration
	if fracStr != "" {
		n, err := strconv.Atoi(fracStr)
		if err != nil || n < 0 {
			return 0, false
		}
		switch len(fracStr) {
		case 1:
			frac = time.Duration(n) * 100 * time.Millisecond
		case 2:
			frac = time.Duration(n) * 10 * time.Millisecond
		case 3:
			frac = time.Duration(n) * time.Millisecond
		default:
			return 0, false
		}
	}

	return time.Duration(minutes)*time.Minute + time.Duration(seconds)*time.Second + frac, true
}

// Len returns the number of timed lines.
func (d LyricData) Len() int { return len(d.Time) }

// Index returns the line showing at position pos, or -1 before the first line.
func (d LyricData) Index(pos time.Duration) int {
	return sort.Search(len(d.Time), func(i int) bool { return d.Time[i] > pos }) - 1
}

// At returns the text showing at pos, empty before the first line.
func (d LyricData) At(pos time.Duration) string {
	if i := d.Index(pos); i >= 0 {
		return d.Text[i]
	}
	return ""
}
