// Package render converts Result values into human-readable or machine-parseable
// output. Each format is a separate function; the top-level Render dispatcher
// selects based on the format string.
//
// Table, CSV, TSV and Markdown share one tabular view of the result data
// (see tabulate); JSON and JSONL encode the data as-is.
package render

import (
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"sort"
	"strings"
	"time"

	"github.com/fatih/color"
	json "github.com/goccy/go-json"
	"github.com/olekukonko/tablewriter"

	"github.com/derickschaefer/tubestats/internal/model"
	"github.com/derickschaefer/tubestats/internal/pipeline"
	"github.com/derickschaefer/tubestats/internal/store"
	"github.com/derickschaefer/tubestats/internal/util"
)

// Format constants matching --format flag values.
const (
	FormatTable = "table"
	FormatJSON  = "json"
	FormatJSONL = "jsonl"
	FormatCSV   = "csv"
	FormatTSV   = "tsv"
	FormatMD    = "md"
)

// Formats lists every accepted --format value.
var Formats = []string{FormatTable, FormatJSON, FormatJSONL, FormatCSV, FormatTSV, FormatMD}

// ValidFormat reports whether f is a known format.
func ValidFormat(f string) bool {
	for _, known := range Formats {
		if f == known {
			return true
		}
	}
	return false
}

// Render writes result to w in the specified format.
func Render(w io.Writer, result *model.Result, format string) error {
	switch format {
	case FormatJSON:
		return renderJSON(w, result)
	case FormatJSONL:
		return renderJSONL(w, result)
	case FormatCSV:
		return renderDelimited(w, result, ',')
	case FormatTSV:
		return renderDelimited(w, result, '\t')
	case FormatMD:
		return renderMarkdown(w, result)
	default:
		return renderTable(w, result)
	}
}

// RenderTo writes to stdout by default; if path is non-empty, writes to file.
func RenderTo(path string, result *model.Result, format string) error {
	if path == "" {
		return Render(os.Stdout, result, format)
	}
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("creating output file: %w", err)
	}
	defer f.Close()
	return Render(f, result, format)
}

// ─── JSON ─────────────────────────────────────────────────────────────────────

func renderJSON(w io.Writer, result *model.Result) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(result)
}

// ─── JSONL ────────────────────────────────────────────────────────────────────

// renderJSONL writes one record per line. Chart points use the pipeline
// format so the output can be piped into `chart plot`.
func renderJSONL(w io.Writer, result *model.Result) error {
	enc := json.NewEncoder(w)
	switch d := result.Data.(type) {
	case []model.ChartPoint:
		return pipeline.WriteJSONL(w, d)
	case []model.ForecastPoint:
		return encodeEach(enc, d)
	case []model.Video:
		return encodeEach(enc, d)
	case []model.Comment:
		return encodeEach(enc, d)
	case []store.Entry:
		return encodeEach(enc, d)
	case []store.BucketStats:
		return encodeEach(enc, d)
	default:
		return enc.Encode(result.Data)
	}
}

func encodeEach[T any](enc *json.Encoder, items []T) error {
	for _, it := range items {
		if err := enc.Encode(it); err != nil {
			return err
		}
	}
	return nil
}

// ─── Tabular view ─────────────────────────────────────────────────────────────

// grid is the shared tabular form of a result.
type grid struct {
	headers []string
	rows    [][]string
	// right lists right-aligned (numeric) column indexes.
	right map[int]bool
	// wrap marks free-text columns that are truncated in table and md output.
	wrap map[int]bool
}

func numeric(cols ...int) map[int]bool {
	m := make(map[int]bool, len(cols))
	for _, c := range cols {
		m[c] = true
	}
	return m
}

func num(v float64) string { return util.FormatValue(util.RoundTo(v, 4)) }

func optNum(p *float64) string {
	if p == nil {
		return ""
	}
	return num(*p)
}

// tabulate converts result.Data into a grid. ok is false for data types
// with no tabular form.
func tabulate(result *model.Result) (grid, bool) {
	switch d := result.Data.(type) {
	case model.DerivedStats:
		return statsGrid(d), true
	case *model.DerivedStats:
		return statsGrid(*d), true
	case []model.ChartPoint:
		g := grid{
			headers: []string{"PERIOD", "VIEWS", "SUBSCRIBERS", "REVENUE", "LIKES", "DISLIKES", "WATCH HOURS"},
			right:   numeric(1, 2, 3, 4, 5, 6),
		}
		for _, p := range d {
			g.rows = append(g.rows, []string{p.Label, num(p.Views), num(p.Subscribers), num(p.Revenue), num(p.Likes), num(p.Dislikes), num(p.WatchTime)})
		}
		return g, true
	case []model.ForecastPoint:
		g := grid{headers: []string{"PERIOD", "HISTORY", "FORECAST"}, right: numeric(1, 2)}
		for _, p := range d {
			g.rows = append(g.rows, []string{p.Label, optNum(p.History), optNum(p.Forecast)})
		}
		return g, true
	case *model.PredictionSet:
		return predictionGrid(d), true
	case []model.Video:
		g := grid{
			headers: []string{"ID", "TITLE", "VIEWS", "LIKES", "COMMENTS", "REVENUE", "WATCH MIN"},
			right:   numeric(2, 3, 4, 5, 6),
			wrap:    numeric(1),
		}
		for _, v := range d {
			g.rows = append(g.rows, []string{v.ID, v.Title, num(v.Views), num(v.Likes), num(v.Comments), num(v.Revenue), num(v.WatchMinutes)})
		}
		return g, true
	case []model.Comment:
		g := grid{
			headers: []string{"DATE", "AUTHOR", "LIKES", "VIDEO", "TEXT"},
			right:   numeric(2),
			wrap:    numeric(3, 4),
		}
		for _, c := range d {
			g.rows = append(g.rows, []string{c.Date, c.Author, num(c.Likes), c.VideoTitle, c.Text})
		}
		return g, true
	case *model.Insights:
		return insightsGrid(d), true
	case []store.Entry:
		g := grid{headers: []string{"KEY", "BUCKET", "FETCHED AT", "BYTES"}, right: numeric(3)}
		for _, e := range d {
			g.rows = append(g.rows, []string{e.Key, e.Bucket, e.FetchedAt.Format(time.RFC3339), fmt.Sprintf("%d", e.Bytes)})
		}
		return g, true
	case []store.BucketStats:
		g := grid{headers: []string{"BUCKET", "COUNT", "BYTES"}, right: numeric(1, 2)}
		for _, s := range d {
			g.rows = append(g.rows, []string{s.Name, fmt.Sprintf("%d", s.Count), fmt.Sprintf("%d", s.Bytes)})
		}
		return g, true
	case *model.Table:
		return tableGrid(*d), true
	case model.Table:
		return tableGrid(d), true
	}
	return grid{}, false
}

func statsGrid(s model.DerivedStats) grid {
	g := grid{headers: []string{"FIELD", "VALUE"}, right: numeric(1)}
	g.rows = [][]string{
		{"Subscribers", num(s.SubscriberCount)},
		{"Views", num(s.ViewCount)},
		{"Videos", fmt.Sprintf("%d", s.VideoCount)},
		{"Watch Time (h)", num(s.WatchTimeHours)},
		{"Engagement (%)", num(s.AvgEngagementRate)},
		{"Revenue", num(s.Revenue)},
		{"Likes (30d)", num(s.Likes)},
	}
	if s.LastUpdated != "" {
		g.rows = append(g.rows, []string{"Last Updated", s.LastUpdated})
	}
	return g
}

// predictionGrid has one row per forecast date and one column per
// model/metric pair.
func predictionGrid(ps *model.PredictionSet) grid {
	var cols []string
	for modelName, byMetric := range ps.Predictions {
		for metric := range byMetric {
			cols = append(cols, modelName+"/"+metric)
		}
	}
	sort.Strings(cols)

	g := grid{headers: append([]string{"DATE"}, cols...), right: map[int]bool{}}
	for i := range cols {
		g.right[i+1] = true
	}
	for i, date := range ps.Dates {
		row := []string{date}
		for _, c := range cols {
			parts := strings.SplitN(c, "/", 2)
			vals := ps.Predictions[parts[0]][parts[1]]
			if i < len(vals) {
				row = append(row, num(vals[i]))
			} else {
				row = append(row, "")
			}
		}
		g.rows = append(g.rows, row)
	}
	return g
}

func insightsGrid(in *model.Insights) grid {
	g := grid{headers: []string{"SECTION", "TITLE", "CONTENT"}, wrap: numeric(2)}
	if in == nil {
		return g
	}
	add := func(section string, it model.InsightItem) {
		if it.Title == "" && it.Content == "" {
			return
		}
		g.rows = append(g.rows, []string{section, it.Title, it.Content})
	}
	if ca := in.CurrentAnalysis; ca != nil {
		add("current", ca.Strengths)
		add("current", ca.Improvements)
		add("current", ca.ActionPlan)
	}
	if fs := in.FutureStrategy; fs != nil {
		add("future", fs.GrowthTrend)
		add("future", fs.RiskFactor)
		add("future", fs.ActionStrategy)
	}
	return g
}

func tableGrid(t model.Table) grid {
	g := grid{headers: t.Headers, right: map[int]bool{}}
	for _, r := range t.Rows {
		row := make([]string, len(r))
		for i, cell := range r {
			switch v := cell.(type) {
			case float64:
				row[i] = num(v)
				g.right[i] = true
			case nil:
				row[i] = ""
			default:
				row[i] = fmt.Sprint(v)
			}
		}
		g.rows = append(g.rows, row)
	}
	return g
}

// truncated shortens free-text cells for terminal and markdown output.
func (g grid) truncated(limit int) [][]string {
	if len(g.wrap) == 0 {
		return g.rows
	}
	out := make([][]string, len(g.rows))
	for i, r := range g.rows {
		row := make([]string, len(r))
		for j, cell := range r {
			cell = strings.ReplaceAll(cell, "\n", " ")
			if g.wrap[j] {
				if runes := []rune(cell); len(runes) > limit {
					cell = string(runes[:limit-1]) + "…"
				}
			}
			row[j] = cell
		}
		out[i] = row
	}
	return out
}

// ─── Table ────────────────────────────────────────────────────────────────────

func renderTable(w io.Writer, result *model.Result) error {
	g, ok := tabulate(result)
	if !ok {
		return renderJSON(w, result)
	}
	if len(g.rows) == 0 {
		fmt.Fprintln(w, "(no rows)")
		return nil
	}

	tw := tablewriter.NewWriter(w)
	tw.SetHeader(g.headers)
	tw.SetBorder(true)
	tw.SetRowLine(false)
	tw.SetHeaderAlignment(tablewriter.ALIGN_LEFT)
	tw.SetAlignment(tablewriter.ALIGN_LEFT)
	aligns := make([]int, len(g.headers))
	for i := range aligns {
		aligns[i] = tablewriter.ALIGN_LEFT
		if g.right[i] {
			aligns[i] = tablewriter.ALIGN_RIGHT
		}
	}
	tw.SetColumnAlignment(aligns)
	tw.SetAutoWrapText(false)

	for _, r := range g.truncated(50) {
		tw.Append(r)
	}
	tw.Render()
	return nil
}

// ─── CSV / TSV ────────────────────────────────────────────────────────────────

func renderDelimited(w io.Writer, result *model.Result, sep rune) error {
	cw := csv.NewWriter(w)
	cw.Comma = sep

	g, ok := tabulate(result)
	if !ok {
		// Fallback: serialize as JSON on a single line
		b, _ := json.Marshal(result.Data)
		_ = cw.Write([]string{string(b)})
	} else {
		header := make([]string, len(g.headers))
		for i, h := range g.headers {
			header[i] = strings.ToLower(strings.ReplaceAll(h, " ", "_"))
		}
		_ = cw.Write(header)
		for _, r := range g.rows {
			_ = cw.Write(r)
		}
	}

	cw.Flush()
	return cw.Error()
}

// ─── Markdown ─────────────────────────────────────────────────────────────────

func renderMarkdown(w io.Writer, result *model.Result) error {
	g, ok := tabulate(result)
	if !ok {
		return renderJSON(w, result)
	}
	fmt.Fprintf(w, "| %s |\n", strings.Join(g.headers, " | "))
	seps := make([]string, len(g.headers))
	for i := range seps {
		seps[i] = "---"
		if g.right[i] {
			seps[i] = "---:"
		}
	}
	fmt.Fprintf(w, "|%s|\n", strings.Join(seps, "|"))
	for _, r := range g.truncated(80) {
		cells := make([]string, len(r))
		for i, c := range r {
			cells[i] = mdEscape(c)
		}
		fmt.Fprintf(w, "| %s |\n", strings.Join(cells, " | "))
	}
	return nil
}

// ─── Warnings / Stats Footer ─────────────────────────────────────────────────

var warnColor = color.New(color.FgYellow)

// PrintFooter writes warnings and stats to w when verbose mode is on.
func PrintFooter(w io.Writer, result *model.Result, verbose bool) {
	for _, warn := range result.Warnings {
		warnColor.Fprintf(w, "⚠  %s\n", warn)
	}
	if verbose {
		src := result.Stats.Source
		if src == "" {
			src = "live"
		}
		fmt.Fprintf(w, "\n[%s • %d items • %dms • %s]\n",
			result.GeneratedAt.Format(time.RFC3339),
			result.Stats.Items,
			result.Stats.DurationMs,
			src,
		)
	}
}

// ─── Helpers ─────────────────────────────────────────────────────────────────

func mdEscape(s string) string {
	s = strings.ReplaceAll(s, "|", "\\|")
	s = strings.ReplaceAll(s, "\n", " ")
	return s
}
