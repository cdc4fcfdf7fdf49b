// Package chart provides ASCII terminal chart rendering for labeled series.
// Three renderers are available:
//
//   - Bar: horizontal bar chart, one bar per period. Best for weekly or
//     monthly series, or the last few days.
//   - Plot: multi-line ASCII chart with labeled axes.
//   - PlotForecast: history and forecast in one frame, the forecast drawn
//     with dots.
//
// NaN values are gaps, not zeros.
package chart

import (
	"fmt"
	"io"
	"math"
	"os"
	"strconv"
	"strings"

	"github.com/derickschaefer/tubestats/internal/model"
)

// Series is a named run of labeled values. Labels and Values are parallel.
type Series struct {
	Name   string
	Labels []string
	Values []float64
}

// FromPoints extracts metric m from chart points.
func FromPoints(name string, points []model.ChartPoint, m model.Metric) Series {
	s := Series{Name: name, Labels: make([]string, len(points)), Values: make([]float64, len(points))}
	for i, p := range points {
		s.Labels[i] = p.Label
		s.Values[i] = p.Get(m)
	}
	return s
}

func (s Series) label(i int) string {
	if i < len(s.Labels) {
		return s.Labels[i]
	}
	return strconv.Itoa(i + 1)
}

// ─── Bar ─────────────────────────────────────────────────────────────────────

// BarOptions controls horizontal bar chart rendering.
type BarOptions struct {
	// Width is the total character width available for the chart.
	// If 0, auto-detects from $COLUMNS, falls back to 80.
	Width int
	// MaxBars keeps only the last MaxBars periods. If 0, no limit is applied.
	MaxBars int
}

type bar struct {
	label string
	value float64
}

// Bar renders a horizontal bar chart of s to w, one bar per period.
//
// Output example:
//
//	views  2024-01-01 – 2024-01-03
//	2024-01-01  120  ████████████
//	2024-01-02  310  ███████████████████████████████
//	2024-01-03  150  ███████████████
func Bar(w io.Writer, s Series, opts BarOptions) error {
	totalWidth := opts.Width
	if totalWidth <= 0 {
		totalWidth = termWidth()
	}

	var valid []bar
	for i, v := range s.Values {
		if !math.IsNaN(v) {
			valid = append(valid, bar{label: s.label(i), value: v})
		}
	}
	if len(valid) < 1 {
		return fmt.Errorf("chart bar: no non-NaN values to render")
	}

	if opts.MaxBars > 0 && len(valid) > opts.MaxBars {
		valid = valid[len(valid)-opts.MaxBars:]
	}

	if len(valid) > 60 {
		fmt.Fprintf(w, "⚠  %d periods, consider --granularity weekly or --max-bars\n\n", len(valid))
	}

	minVal, maxVal := valid[0].value, valid[0].value
	labelWidth, valWidth := 0, 0
	for _, b := range valid {
		minVal = math.Min(minVal, b.value)
		maxVal = math.Max(maxVal, b.value)
		if l := len([]rune(b.label)); l > labelWidth {
			labelWidth = l
		}
		if l := len(formatFloat(b.value)); l > valWidth {
			valWidth = l
		}
	}

	// Bar area width = totalWidth - labelWidth - valWidth - separators (4 chars)
	barAreaWidth := totalWidth - labelWidth - valWidth - 4
	if barAreaWidth < 4 {
		barAreaWidth = 4
	}

	// Counts start from zero; only a negative minimum moves the baseline.
	base := math.Min(minVal, 0)
	valRange := maxVal - base
	if valRange == 0 {
		valRange = 1
	}

	hasNeg := minVal < 0
	var zeroPos int
	if hasNeg {
		zeroPos = int(math.Round((-minVal / valRange) * float64(barAreaWidth-1)))
	}

	fmt.Fprintf(w, "%s  %s – %s\n", s.Name, valid[0].label, valid[len(valid)-1].label)

	for _, b := range valid {
		var line string
		if hasNeg {
			line = buildBiBar(b.value, minVal, maxVal, barAreaWidth, zeroPos)
		} else {
			barLen := int(math.Round(b.value / valRange * float64(barAreaWidth)))
			if barLen < 1 {
				barLen = 1 // every bar stays visible
			}
			if barLen > barAreaWidth {
				barLen = barAreaWidth
			}
			line = strings.Repeat("█", barLen)
		}

		fmt.Fprintf(w, "%-*s  %*s  %s\n",
			labelWidth, b.label,
			valWidth, formatFloat(b.value),
			line,
		)
	}

	return nil
}

// buildBiBar renders a bar that may extend left (negative) or right (positive)
// from a zero baseline at zeroPos within a field of width barAreaWidth.
func buildBiBar(val, minVal, maxVal float64, barAreaWidth, zeroPos int) string {
	valRange := maxVal - minVal
	buf := []rune(strings.Repeat(" ", barAreaWidth))

	if zeroPos >= 0 && zeroPos < barAreaWidth {
		buf[zeroPos] = '│'
	}

	if val >= 0 {
		end := zeroPos + int(math.Round(val/valRange*float64(barAreaWidth-1)))
		if end > barAreaWidth {
			end = barAreaWidth
		}
		for i := zeroPos + 1; i <= end && i < barAreaWidth; i++ {
			buf[i] = '█'
		}
	} else {
		start := zeroPos - int(math.Round((-val)/valRange*float64(barAreaWidth-1)))
		if start < 0 {
			start = 0
		}
		for i := start; i < zeroPos && i < barAreaWidth; i++ {
			buf[i] = '█'
		}
	}

	return string(buf)
}

// ─── Plot ─────────────────────────────────────────────────────────────────────

// PlotOptions controls multi-line ASCII plot rendering.
type PlotOptions struct {
	// Width is the total character width of the chart (including Y-axis label).
	// If 0, auto-detects from $COLUMNS, falls back to 80.
	Width int
	// Height is the number of data rows in the chart body (not counting axis labels).
	// If 0, defaults to 12.
	Height int
	// Title overrides the default title (the series name). Empty = use the name.
	Title string
}

// frame holds the resolved geometry shared by Plot and PlotForecast.
type frame struct {
	height, plotWidth, yLabelWidth int
	minVal, maxVal                 float64
	ticks                          []float64
}

func newFrame(opts PlotOptions, vals ...[]float64) (frame, int) {
	f := frame{height: opts.Height}
	width := opts.Width
	if width <= 0 {
		width = termWidth()
	}
	if f.height <= 0 {
		f.height = 12
	}

	n := 0
	for _, vs := range vals {
		for _, v := range vs {
			if math.IsNaN(v) {
				continue
			}
			if n == 0 {
				f.minVal, f.maxVal = v, v
			}
			f.minVal = math.Min(f.minVal, v)
			f.maxVal = math.Max(f.maxVal, v)
			n++
		}
	}

	f.ticks = yTicks(f.minVal, f.maxVal, f.height)
	for _, t := range f.ticks {
		if l := len(formatFloat(t)); l > f.yLabelWidth {
			f.yLabelWidth = l
		}
	}
	f.plotWidth = width - (f.yLabelWidth + 2) // label + " ┤"
	if f.plotWidth < 10 {
		f.plotWidth = 10
	}
	return f, n
}

// write prints the grid rows, the bottom axis and the x labels.
func (f frame) write(w io.Writer, grid [][]rune, labels []string) {
	for row := 0; row < f.height; row++ {
		label := ""
		for _, t := range f.ticks {
			if math.Abs(rowForValue(t, f.minVal, f.maxVal, f.height)-float64(row)) < 0.5 {
				label = formatFloat(t)
				break
			}
		}
		axisCh := "┤"
		if label != "" && math.Abs(f.minVal) < 1e-9 && row == f.height-1 {
			axisCh = "┼"
		} else if label == "" {
			axisCh = " "
		}
		fmt.Fprintf(w, "%*s%s%s\n", f.yLabelWidth, label, axisCh, string(grid[row]))
	}

	fmt.Fprintf(w, "%s└%s\n", strings.Repeat(" ", f.yLabelWidth), strings.Repeat("─", f.plotWidth))
	fmt.Fprintf(w, "%s %s\n", strings.Repeat(" ", f.yLabelWidth), xAxisLabels(labels, f.plotWidth))
}

// Plot renders a multi-line ASCII chart of s to w.
func Plot(w io.Writer, s Series, opts PlotOptions) error {
	f, n := newFrame(opts, s.Values)
	if n < 2 {
		return fmt.Errorf("chart plot: need at least 2 non-NaN values (got %d)", n)
	}
	title := opts.Title
	if title == "" {
		title = s.Name
	}

	cols := sampleCols(s.Values, f.plotWidth)
	grid := buildGrid(cols, f.minVal, f.maxVal, f.height)

	labels := labelsOf(s)
	fmt.Fprintf(w, "%s  (%s to %s)\n", title, labels[0], labels[len(labels)-1])
	f.write(w, grid, labels)
	return nil
}

// PlotForecast renders history as a line and the forecast as dots in one
// frame. The bridge point, which carries both values, joins the two.
func PlotForecast(w io.Writer, title string, points []model.ForecastPoint, opts PlotOptions) error {
	hist := make([]float64, len(points))
	fc := make([]float64, len(points))
	labels := make([]string, len(points))
	hasForecast := false
	for i, p := range points {
		labels[i] = p.Label
		hist[i], fc[i] = math.NaN(), math.NaN()
		if p.History != nil {
			hist[i] = *p.History
		}
		if p.Forecast != nil {
			fc[i] = *p.Forecast
			hasForecast = true
		}
	}

	f, n := newFrame(opts, hist, fc)
	if n < 2 {
		return fmt.Errorf("chart plot: need at least 2 non-NaN values (got %d)", n)
	}

	grid := buildGrid(sampleCols(hist, f.plotWidth), f.minVal, f.maxVal, f.height)
	if hasForecast {
		for col, v := range sampleCols(fc, f.plotWidth) {
			if math.IsNaN(v) {
				continue
			}
			r := clampRow(v, f.minVal, f.maxVal, f.height)
			if grid[r][col] == ' ' {
				grid[r][col] = '•'
			}
		}
	}

	fmt.Fprintf(w, "%s  (%s to %s)\n", title, labels[0], labels[len(labels)-1])
	f.write(w, grid, labels)
	if hasForecast {
		fmt.Fprintf(w, "%s ── history  •• forecast\n", strings.Repeat(" ", f.yLabelWidth))
	}
	return nil
}

func labelsOf(s Series) []string {
	out := make([]string, len(s.Values))
	for i := range out {
		out[i] = s.label(i)
	}
	return out
}

// ─── Grid building ────────────────────────────────────────────────────────────

// sampleCols reduces vals to exactly n columns by sampling.
// Each column holds the average of its bucket, or NaN if all are NaN.
// Shorter inputs are stretched so every value covers at least one column.
func sampleCols(vals []float64, n int) []float64 {
	total := len(vals)
	cols := make([]float64, n)
	for col := 0; col < n; col++ {
		lo := col * total / n
		hi := (col+1)*total/n - 1
		if hi < lo {
			hi = lo
		}
		if hi >= total {
			hi = total - 1
		}
		sum, count := 0.0, 0
		for i := lo; i <= hi; i++ {
			if !math.IsNaN(vals[i]) {
				sum += vals[i]
				count++
			}
		}
		if count == 0 {
			cols[col] = math.NaN()
		} else {
			cols[col] = sum / float64(count)
		}
	}
	return cols
}

// rowForValue returns the float row index (0=top=max) for a given value.
func rowForValue(v, minVal, maxVal float64, height int) float64 {
	if maxVal == minVal {
		return float64(height) / 2
	}
	return (maxVal - v) / (maxVal - minVal) * float64(height-1)
}

func clampRow(v, minVal, maxVal float64, height int) int {
	r := int(math.Round(rowForValue(v, minVal, maxVal, height)))
	if r < 0 {
		r = 0
	}
	if r >= height {
		r = height - 1
	}
	return r
}

// buildGrid renders columns into a height×width rune grid using
// box-drawing characters to connect adjacent data points.
func buildGrid(cols []float64, minVal, maxVal float64, height int) [][]rune {
	grid := make([][]rune, height)
	for r := range grid {
		grid[r] = []rune(strings.Repeat(" ", len(cols)))
	}

	rowOf := make([]int, len(cols))
	for col, v := range cols {
		if math.IsNaN(v) {
			rowOf[col] = -1 // gap
		} else {
			rowOf[col] = clampRow(v, minVal, maxVal, height)
		}
	}

	for col := 0; col < len(cols); col++ {
		r := rowOf[col]
		if r < 0 {
			continue
		}

		prevRow := -2
		if col > 0 {
			prevRow = rowOf[col-1]
		}
		nextRow := -2
		if col < len(cols)-1 {
			nextRow = rowOf[col+1]
		}

		if prevRow < 0 && nextRow < 0 {
			grid[r][col] = '·'
			continue
		}

		if (prevRow < 0 || prevRow == r) && (nextRow < 0 || nextRow == r) {
			grid[r][col] = '─'
			continue
		}

		switch {
		case prevRow >= 0 && prevRow < r && nextRow >= 0 && nextRow < r:
			grid[r][col] = '─'
		case prevRow >= 0 && prevRow > r && nextRow >= 0 && nextRow > r:
			grid[r][col] = '─'
		case (prevRow < 0 || prevRow < r) && nextRow >= 0 && nextRow > r:
			grid[r][col] = '╭'
		case (prevRow < 0 || prevRow > r) && nextRow >= 0 && nextRow < r:
			grid[r][col] = '╰'
		case prevRow >= 0 && prevRow < r && (nextRow < 0 || nextRow > r):
			grid[r][col] = '╮'
		case prevRow >= 0 && prevRow > r && (nextRow < 0 || nextRow < r):
			grid[r][col] = '╯'
		default:
			grid[r][col] = '│'
		}

		// vertical connector to the previous column
		if prevRow >= 0 && prevRow != r {
			lo, hi := r, prevRow
			if lo > hi {
				lo, hi = hi, lo
			}
			for fill := lo + 1; fill < hi; fill++ {
				if grid[fill][col] == ' ' {
					grid[fill][col] = '│'
				}
			}
		}
	}

	return grid
}

// ─── Axis helpers ─────────────────────────────────────────────────────────────

// yTicks returns 3–4 evenly-spaced tick values for the Y axis.
func yTicks(minVal, maxVal float64, height int) []float64 {
	if maxVal == minVal {
		return []float64{minVal}
	}
	nTicks := 4
	if height <= 6 {
		nTicks = 3
	}
	ticks := make([]float64, nTicks)
	for i := 0; i < nTicks; i++ {
		ticks[i] = minVal + float64(i)*(maxVal-minVal)/float64(nTicks-1)
	}
	return ticks
}

// xAxisLabels builds a padded string with start, middle, and end labels.
func xAxisLabels(labels []string, plotWidth int) string {
	if len(labels) == 0 {
		return ""
	}
	startLabel := labels[0]
	endLabel := labels[len(labels)-1]
	midLabel := labels[len(labels)/2]

	midPos := plotWidth/2 - len([]rune(midLabel))/2
	endPos := plotWidth - len([]rune(endLabel))

	buf := []rune(strings.Repeat(" ", plotWidth))
	writeAt := func(pos int, s string) {
		for i, ch := range []rune(s) {
			if pos+i >= 0 && pos+i < len(buf) {
				buf[pos+i] = ch
			}
		}
	}

	writeAt(0, startLabel)
	if len(labels) > 2 {
		writeAt(midPos, midLabel)
	}
	writeAt(endPos, endLabel)

	return string(buf)
}

// ─── Utilities ────────────────────────────────────────────────────────────────

// formatFloat formats a float for axis labels: no unnecessary trailing zeros,
// compact notation for large numbers.
func formatFloat(v float64) string {
	if math.IsNaN(v) {
		return "."
	}
	abs := math.Abs(v)
	var s string
	switch {
	case abs == 0:
		return "0"
	case abs >= 1e6:
		return strconv.FormatFloat(v/1e6, 'f', 1, 64) + "M"
	case abs >= 1e3:
		return strconv.FormatFloat(v/1e3, 'f', 1, 64) + "K"
	case abs >= 100:
		s = strconv.FormatFloat(v, 'f', 1, 64)
	case abs >= 1:
		s = strconv.FormatFloat(v, 'f', 2, 64)
	default:
		s = strconv.FormatFloat(v, 'f', 4, 64)
	}
	if strings.Contains(s, ".") {
		s = strings.TrimRight(s, "0")
		s = strings.TrimSuffix(s, ".")
	}
	return s
}

// termWidth returns the terminal width from $COLUMNS, defaulting to 80.
func termWidth() int {
	if cols := os.Getenv("COLUMNS"); cols != "" {
		if n, err := strconv.Atoi(cols); err == nil && n > 20 {
			return n
		}
	}
	return 80
}
