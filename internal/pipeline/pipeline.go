// Package pipeline provides helpers for reading and writing chart point
// streams via stdin/stdout in JSONL format, the canonical pipe format:
//
//	tubestats series --format jsonl | tubestats chart plot --metric views
package pipeline

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"strings"

	json "github.com/goccy/go-json"
	"github.com/mattn/go-isatty"

	"github.com/derickschaefer/tubestats/internal/model"
)

// row mirrors model.ChartPoint with nullable values; null and missing
// both read as 0.
type row struct {
	Label       string   `json:"name"`
	Date        string   `json:"date"`
	Views       *float64 `json:"views"`
	Subscribers *float64 `json:"subscribers"`
	Revenue     *float64 `json:"revenue"`
	Likes       *float64 `json:"likes"`
	Dislikes    *float64 `json:"dislikes"`
	WatchTime   *float64 `json:"watchTime"`
}

func val(p *float64) float64 {
	if p == nil {
		return 0
	}
	return *p
}

// ReadPoints reads JSONL chart points from r (stdin).
// Each line must be a JSON object with a "name" (or "date") label.
func ReadPoints(r io.Reader) ([]model.ChartPoint, error) {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 1024*1024), 1024*1024)

	var points []model.ChartPoint
	lineNum := 0
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		lineNum++
		if line == "" || strings.HasPrefix(line, "//") {
			continue
		}
		var rec row
		if err := json.Unmarshal([]byte(line), &rec); err != nil {
			return nil, fmt.Errorf("line %d: invalid JSON: %w", lineNum, err)
		}
		label := rec.Label
		if label == "" {
			label = rec.Date
		}
		if label == "" {
			return nil, fmt.Errorf("line %d: missing \"name\" label", lineNum)
		}
		points = append(points, model.ChartPoint{
			Label:       label,
			Views:       val(rec.Views),
			Subscribers: val(rec.Subscribers),
			Revenue:     val(rec.Revenue),
			Likes:       val(rec.Likes),
			Dislikes:    val(rec.Dislikes),
			WatchTime:   val(rec.WatchTime),
		})
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("reading input: %w", err)
	}
	if len(points) == 0 {
		return nil, fmt.Errorf("no chart points read from input (is stdin empty?)")
	}
	return points, nil
}

// WriteJSONL writes chart points as JSONL to w, one point per line.
func WriteJSONL(w io.Writer, points []model.ChartPoint) error {
	enc := json.NewEncoder(w)
	for _, p := range points {
		if err := enc.Encode(p); err != nil {
			return err
		}
	}
	return nil
}

// IsTTY returns true if stdout is a terminal (not a pipe).
func IsTTY() bool {
	fd := os.Stdout.Fd()
	return isatty.IsTerminal(fd) || isatty.IsCygwinTerminal(fd)
}

// StdinIsPipe returns true if stdin is a pipe or redirected file. A
// character device such as /dev/null is not a pipe.
func StdinIsPipe() bool {
	fi, err := os.Stdin.Stat()
	if err != nil {
		return false
	}
	return (fi.Mode() & os.ModeCharDevice) == 0
}
