package cmd

import (
	"bytes"
	"math"
	"os"
	"path/filepath"
	"testing"
)

func TestOutputWriterDefault(t *testing.T) {
	globalFlags.Out = ""
	w, closeFn, err := outputWriter(os.Stdout)
	if err != nil {
		t.Fatalf("outputWriter default: %v", err)
	}
	if w != os.Stdout {
		t.Fatalf("expected stdout writer passthrough")
	}
	if err := closeFn(); err != nil {
		t.Fatalf("default closer should be nil error, got: %v", err)
	}
}

func TestOutputWriterFile(t *testing.T) {
	p := filepath.Join(t.TempDir(), "out.txt")
	globalFlags.Out = p
	t.Cleanup(func() { globalFlags.Out = "" })

	w, closeFn, err := outputWriter(os.Stdout)
	if err != nil {
		t.Fatalf("outputWriter file: %v", err)
	}
	if w == os.Stdout {
		t.Fatalf("expected file writer, got stdout")
	}
	if err := closeFn(); err != nil {
		t.Fatalf("closing output writer: %v", err)
	}
	if _, err := os.Stat(p); err != nil {
		t.Fatalf("expected output file to exist: %v", err)
	}
}

func TestPipeFormatExplicitFormatWins(t *testing.T) {
	globalFlags.Format = "csv"
	t.Cleanup(func() { globalFlags.Format = "" })
	if got := pipeFormat("table"); got != "csv" {
		t.Fatalf("pipeFormat = %q, want csv", got)
	}
}

func TestPipeFormatOutFileUsesConfig(t *testing.T) {
	globalFlags.Out = filepath.Join(t.TempDir(), "series.md")
	t.Cleanup(func() { globalFlags.Out = "" })
	if got := pipeFormat("markdown"); got != "markdown" {
		t.Fatalf("pipeFormat = %q, want markdown", got)
	}
}

func TestResolveFormatDefault(t *testing.T) {
	globalFlags.Format = ""
	if got := resolveFormat(""); got != "table" {
		t.Fatalf("resolveFormat = %q, want table", got)
	}
	if got := resolveFormat("tsv"); got != "tsv" {
		t.Fatalf("resolveFormat = %q, want tsv", got)
	}
}

func TestHumanBytes(t *testing.T) {
	cases := map[int64]string{
		0:       "0 B",
		512:     "512 B",
		2048:    "2.0 KB",
		3 << 20: "3.0 MB",
	}
	for in, want := range cases {
		if got := humanBytes(in); got != want {
			t.Errorf("humanBytes(%d) = %q, want %q", in, got, want)
		}
	}
}

func TestKVTable(t *testing.T) {
	tbl := kvTable([][]string{{"metric", "views"}, {"count", "3"}})
	if len(tbl.Headers) != 2 || tbl.Headers[0] != "FIELD" {
		t.Fatalf("unexpected headers: %v", tbl.Headers)
	}
	if len(tbl.Rows) != 2 || tbl.Rows[1][1] != "3" {
		t.Fatalf("unexpected rows: %v", tbl.Rows)
	}
}

func TestFmtStatNaN(t *testing.T) {
	if got := fmtStat(math.NaN()); got != "." {
		t.Fatalf("fmtStat(NaN) = %q", got)
	}
	if got := fmtStatPct(12.345); got != "12.35%" {
		t.Fatalf("fmtStatPct = %q", got)
	}
}

func TestPrintKVTableAligns(t *testing.T) {
	var buf bytes.Buffer
	printKVTableTo(&buf, [][]string{{"a", "1"}, {"long_key", "2"}})
	want := "  a         1\n  long_key  2\n"
	if buf.String() != want {
		t.Fatalf("got %q, want %q", buf.String(), want)
	}
}
