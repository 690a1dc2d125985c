package agents

import (
	"context"
	"math"
	"os"
	"path/filepath"
	"testing"

	"github.com/ternarybob/arbor"
	"github.com/ternarybob/scriba/internal/interfaces"
)

func writeTestCSV(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "data.csv")
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatalf("Failed to write test CSV: %v", err)
	}
	return path
}

func TestSummarizeBasicStats(t *testing.T) {
	csv := "time_s,temp_c,label\n0,10,a\n1,20,b\n2,30,c\n3,40,d\n"
	summarizer := NewCSVSummarizer(arbor.NewLogger())

	summary, err := summarizer.Summarize(context.Background(), interfaces.StageInputs{
		JobID:       "job-1",
		CSVPath:     writeTestCSV(t, csv),
		PreviewRows: 5,
	})
	if err != nil {
		t.Fatalf("Summarize() error = %v", err)
	}

	if summary.NTotal != 4 {
		t.Errorf("NTotal = %d, want 4", summary.NTotal)
	}
	if len(summary.Columns) != 3 {
		t.Errorf("Columns = %v, want 3 entries", summary.Columns)
	}
	if len(summary.NumericColumns) != 2 {
		t.Errorf("NumericColumns = %v, want [time_s temp_c]", summary.NumericColumns)
	}

	stats, ok := summary.Stats["temp_c"]
	if !ok {
		t.Fatal("Expected stats for temp_c")
	}
	if stats.Mean == nil || *stats.Mean != 25 {
		t.Errorf("temp_c mean = %v, want 25", stats.Mean)
	}
	if stats.Min == nil || *stats.Min != 10 {
		t.Errorf("temp_c min = %v, want 10", stats.Min)
	}
	if stats.Max == nil || *stats.Max != 40 {
		t.Errorf("temp_c max = %v, want 40", stats.Max)
	}
	if stats.Stdev == nil || math.Abs(*stats.Stdev-12.909944) > 0.001 {
		t.Errorf("temp_c stdev = %v, want ~12.91 (sample)", stats.Stdev)
	}

	labelStats := summary.Stats["label"]
	if labelStats.Mean != nil {
		t.Error("Non-numeric column should have no mean")
	}
}

func TestSummarizeMissingness(t *testing.T) {
	csv := "time,value\n0,1\n1,\n2,3\n3,\n"
	summarizer := NewCSVSummarizer(arbor.NewLogger())

	summary, err := summarizer.Summarize(context.Background(), interfaces.StageInputs{
		CSVPath: writeTestCSV(t, csv), PreviewRows: 5,
	})
	if err != nil {
		t.Fatalf("Summarize() error = %v", err)
	}

	stats := summary.Stats["value"]
	if stats.MissingCount != 2 {
		t.Errorf("MissingCount = %d, want 2", stats.MissingCount)
	}
	if math.Abs(stats.MissingPct-50.0) > 0.001 {
		t.Errorf("MissingPct = %f, want 50", stats.MissingPct)
	}
	if stats.Count != 2 {
		t.Errorf("Count = %d, want 2", stats.Count)
	}
}

func TestSummarizeLinearTrend(t *testing.T) {
	// Perfect line: temp = 5*time + 2
	csv := "time_s,temp\n0,2\n1,7\n2,12\n3,17\n4,22\n"
	summarizer := NewCSVSummarizer(arbor.NewLogger())

	summary, err := summarizer.Summarize(context.Background(), interfaces.StageInputs{
		CSVPath: writeTestCSV(t, csv), PreviewRows: 5,
	})
	if err != nil {
		t.Fatalf("Summarize() error = %v", err)
	}

	if summary.TimeColumn != "time_s" {
		t.Fatalf("TimeColumn = %q, want time_s", summary.TimeColumn)
	}
	trend := summary.PrimaryTrend
	if trend == nil {
		t.Fatal("Expected a primary trend")
	}
	if trend.X != "time_s" || trend.Y != "temp" {
		t.Errorf("Trend axes = (%s, %s), want (time_s, temp)", trend.X, trend.Y)
	}
	if trend.Slope == nil || math.Abs(*trend.Slope-5) > 1e-9 {
		t.Errorf("Slope = %v, want 5", trend.Slope)
	}
	if trend.Intercept == nil || math.Abs(*trend.Intercept-2) > 1e-9 {
		t.Errorf("Intercept = %v, want 2", trend.Intercept)
	}
	if trend.R2 == nil || math.Abs(*trend.R2-1) > 1e-9 {
		t.Errorf("R2 = %v, want 1 for a perfect fit", trend.R2)
	}
	if trend.NUsed != 5 {
		t.Errorf("NUsed = %d, want 5", trend.NUsed)
	}
}

func TestSummarizePreviewCapped(t *testing.T) {
	csv := "a,b\n1,2\n3,4\n5,6\n7,8\n9,10\n11,12\n13,14\n"
	summarizer := NewCSVSummarizer(arbor.NewLogger())

	summary, err := summarizer.Summarize(context.Background(), interfaces.StageInputs{
		CSVPath: writeTestCSV(t, csv), PreviewRows: 5,
	})
	if err != nil {
		t.Fatalf("Summarize() error = %v", err)
	}
	if len(summary.PreviewHead) != 5 {
		t.Errorf("PreviewHead rows = %d, want 5", len(summary.PreviewHead))
	}
	if summary.PreviewHead[0]["a"] != "1" || summary.PreviewHead[0]["b"] != "2" {
		t.Errorf("PreviewHead[0] = %v", summary.PreviewHead[0])
	}
}

func TestSummarizeRejectsEmptyCSV(t *testing.T) {
	summarizer := NewCSVSummarizer(arbor.NewLogger())
	_, err := summarizer.Summarize(context.Background(), interfaces.StageInputs{
		CSVPath: writeTestCSV(t, "a,b\n"),
	})
	if err == nil {
		t.Fatal("Expected error for header-only CSV")
	}
}

func TestDetectTimeColumn(t *testing.T) {
	tests := []struct {
		name    string
		columns []string
		want    string
	}{
		{"exact candidate", []string{"temp", "time_s"}, "time_s"},
		{"case insensitive", []string{"Temp", "Timestamp"}, "Timestamp"},
		{"prefix fallback", []string{"temp", "time_elapsed_min"}, "time_elapsed_min"},
		{"no match", []string{"temp", "pressure"}, ""},
		{"candidate beats prefix", []string{"time_elapsed", "t"}, "t"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := detectTimeColumn(tt.columns); got != tt.want {
				t.Errorf("detectTimeColumn(%v) = %q, want %q", tt.columns, got, tt.want)
			}
		})
	}
}

func TestIQROutlierCount(t *testing.T) {
	vals := []float64{10, 11, 12, 11, 10, 12, 11, 100}
	if got := iqrOutlierCount(vals); got != 1 {
		t.Errorf("iqrOutlierCount = %d, want 1", got)
	}

	// Constant column has zero IQR, which counts nothing as an outlier.
	if got := iqrOutlierCount([]float64{5, 5, 5, 5}); got != 0 {
		t.Errorf("iqrOutlierCount on constant data = %d, want 0", got)
	}
}

func TestLinearTrendSkipsMissingPairs(t *testing.T) {
	csv := "time,y\n0,1\n1,\n2,5\n"
	summarizer := NewCSVSummarizer(arbor.NewLogger())

	summary, err := summarizer.Summarize(context.Background(), interfaces.StageInputs{
		CSVPath: writeTestCSV(t, csv), PreviewRows: 5,
	})
	if err != nil {
		t.Fatalf("Summarize() error = %v", err)
	}
	trend := summary.PrimaryTrend
	if trend == nil {
		t.Fatal("Expected a trend over the 2 complete pairs")
	}
	if trend.NUsed != 2 {
		t.Errorf("NUsed = %d, want 2", trend.NUsed)
	}
	if trend.Slope == nil || math.Abs(*trend.Slope-2) > 1e-9 {
		t.Errorf("Slope = %v, want 2", trend.Slope)
	}
}
