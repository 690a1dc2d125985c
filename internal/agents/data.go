// -----------------------------------------------------------------------
// Data agent - deterministic CSV summarization, no model calls
// -----------------------------------------------------------------------

package agents

import (
	"context"
	"encoding/csv"
	"fmt"
	"math"
	"os"
	"sort"
	"strconv"
	"strings"

	"github.com/ternarybob/arbor"
	"github.com/ternarybob/scriba/internal/interfaces"
	"github.com/ternarybob/scriba/internal/models"
)

// timeColumnCandidates are checked case-insensitively against column names
// before falling back to any column with a "time" prefix.
var timeColumnCandidates = []string{"time", "t", "time_s", "time_sec", "seconds", "timestamp"}

// CSVSummarizer computes column statistics, missingness, IQR outlier counts
// and a primary linear trend over the uploaded CSV. It is fully
// deterministic and never touches the LLM.
type CSVSummarizer struct {
	logger arbor.ILogger
}

var _ interfaces.DataSummarizer = (*CSVSummarizer)(nil)

func NewCSVSummarizer(logger arbor.ILogger) *CSVSummarizer {
	return &CSVSummarizer{logger: logger}
}

// column holds one parsed CSV column. values aligns with rows; a nil entry
// is a missing cell and numeric reports whether every present cell parsed.
type column struct {
	name    string
	values  []*float64
	raw     []string
	missing int
	numeric bool
	present int
}

// Summarize reads the CSV at inputs.CSVPath and produces the data summary
// used by the writer and diagram stages.
func (a *CSVSummarizer) Summarize(ctx context.Context, inputs interfaces.StageInputs) (*models.DataSummary, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	f, err := os.Open(inputs.CSVPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open CSV: %w", err)
	}
	defer f.Close()

	reader := csv.NewReader(f)
	reader.TrimLeadingSpace = true
	records, err := reader.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("failed to parse CSV: %w", err)
	}
	if len(records) < 2 {
		return nil, fmt.Errorf("CSV must contain a header row and at least one data row")
	}

	header := records[0]
	rows := records[1:]
	columns := buildColumns(header, rows)

	summary := &models.DataSummary{
		NTotal: len(rows),
		Stats:  make(map[string]models.ColumnStats, len(columns)),
	}
	for _, col := range columns {
		summary.Columns = append(summary.Columns, col.name)
		if col.numeric && col.present > 0 {
			summary.NumericColumns = append(summary.NumericColumns, col.name)
		}
		summary.Stats[col.name] = columnStats(col, len(rows))
	}

	summary.TimeColumn = detectTimeColumn(summary.Columns)
	if summary.TimeColumn != "" {
		for _, y := range summary.NumericColumns {
			if y == summary.TimeColumn {
				continue
			}
			summary.PrimaryTrend = linearTrend(columnByName(columns, summary.TimeColumn), columnByName(columns, y))
			break
		}
	}

	previewRows := inputs.PreviewRows
	if previewRows <= 0 {
		previewRows = 10
	}
	summary.PreviewHead = buildPreview(header, rows, previewRows)
	summary.Highlights = buildHighlights(summary)

	a.logger.Debug().
		Str("job_id", inputs.JobID).
		Int("rows", summary.NTotal).
		Int("columns", len(summary.Columns)).
		Int("numeric_columns", len(summary.NumericColumns)).
		Msg("CSV summarized")

	return summary, nil
}

func buildColumns(header []string, rows [][]string) []*column {
	columns := make([]*column, len(header))
	for i, name := range header {
		columns[i] = &column{name: strings.TrimSpace(name), numeric: true}
	}
	for _, row := range rows {
		for i, col := range columns {
			var cell string
			if i < len(row) {
				cell = strings.TrimSpace(row[i])
			}
			col.raw = append(col.raw, cell)
			if cell == "" {
				col.missing++
				col.values = append(col.values, nil)
				continue
			}
			col.present++
			if v, err := strconv.ParseFloat(cell, 64); err == nil {
				col.values = append(col.values, &v)
			} else {
				col.numeric = false
				col.values = append(col.values, nil)
			}
		}
	}
	return columns
}

func columnByName(columns []*column, name string) *column {
	for _, c := range columns {
		if c.name == name {
			return c
		}
	}
	return nil
}

func columnStats(col *column, nRows int) models.ColumnStats {
	stats := models.ColumnStats{
		Count:        col.present,
		MissingCount: col.missing,
	}
	if nRows > 0 {
		stats.MissingPct = float64(col.missing) / float64(nRows) * 100.0
	}
	if !col.numeric || col.present == 0 {
		return stats
	}

	var vals []float64
	for _, v := range col.values {
		if v != nil {
			vals = append(vals, *v)
		}
	}

	minV, maxV := vals[0], vals[0]
	sum := 0.0
	for _, v := range vals {
		if v < minV {
			minV = v
		}
		if v > maxV {
			maxV = v
		}
		sum += v
	}
	mean := sum / float64(len(vals))
	stats.Min = &minV
	stats.Max = &maxV
	stats.Mean = &mean

	if len(vals) > 1 {
		ss := 0.0
		for _, v := range vals {
			ss += (v - mean) * (v - mean)
		}
		stdev := math.Sqrt(ss / float64(len(vals)-1))
		stats.Stdev = &stdev
	}

	stats.OutlierCount = iqrOutlierCount(vals)
	return stats
}

// iqrOutlierCount counts points outside [Q1-1.5*IQR, Q3+1.5*IQR].
func iqrOutlierCount(vals []float64) int {
	if len(vals) == 0 {
		return 0
	}
	sorted := append([]float64(nil), vals...)
	sort.Float64s(sorted)
	q1 := quantile(sorted, 0.25)
	q3 := quantile(sorted, 0.75)
	iqr := q3 - q1
	if iqr == 0 {
		return 0
	}
	lo, hi := q1-1.5*iqr, q3+1.5*iqr
	count := 0
	for _, v := range vals {
		if v < lo || v > hi {
			count++
		}
	}
	return count
}

// quantile interpolates linearly over a sorted slice.
func quantile(sorted []float64, q float64) float64 {
	n := len(sorted)
	if n == 1 {
		return sorted[0]
	}
	pos := q * float64(n-1)
	lo := int(math.Floor(pos))
	hi := int(math.Ceil(pos))
	if lo == hi {
		return sorted[lo]
	}
	frac := pos - float64(lo)
	return sorted[lo]*(1-frac) + sorted[hi]*frac
}

func detectTimeColumn(columns []string) string {
	lower := make(map[string]string, len(columns))
	for _, c := range columns {
		lower[strings.ToLower(c)] = c
	}
	for _, cand := range timeColumnCandidates {
		if orig, ok := lower[cand]; ok {
			return orig
		}
	}
	for _, c := range columns {
		if strings.HasPrefix(strings.ToLower(c), "time") {
			return c
		}
	}
	return ""
}

// linearTrend fits y = slope*x + intercept by least squares over rows where
// both columns are present, and reports R-squared for the fit.
func linearTrend(xCol, yCol *column) *models.TrendStats {
	if xCol == nil || yCol == nil || !xCol.numeric || !yCol.numeric {
		return nil
	}

	var xs, ys []float64
	for i := range xCol.values {
		if i >= len(yCol.values) {
			break
		}
		if xCol.values[i] != nil && yCol.values[i] != nil {
			xs = append(xs, *xCol.values[i])
			ys = append(ys, *yCol.values[i])
		}
	}
	if len(xs) < 2 {
		return nil
	}

	xMean, yMean := meanOf(xs), meanOf(ys)
	denom := 0.0
	num := 0.0
	for i := range xs {
		dx := xs[i] - xMean
		denom += dx * dx
		num += dx * (ys[i] - yMean)
	}
	if denom == 0 {
		return nil
	}
	slope := num / denom
	intercept := yMean - slope*xMean

	ssTot, ssRes := 0.0, 0.0
	for i := range xs {
		pred := slope*xs[i] + intercept
		ssTot += (ys[i] - yMean) * (ys[i] - yMean)
		ssRes += (ys[i] - pred) * (ys[i] - pred)
	}

	trend := &models.TrendStats{
		X:         xCol.name,
		Y:         yCol.name,
		NUsed:     len(xs),
		Slope:     &slope,
		Intercept: &intercept,
	}
	if ssTot != 0 {
		r2 := 1.0 - ssRes/ssTot
		trend.R2 = &r2
	}
	return trend
}

func meanOf(vals []float64) float64 {
	sum := 0.0
	for _, v := range vals {
		sum += v
	}
	return sum / float64(len(vals))
}

func buildPreview(header []string, rows [][]string, previewRows int) []map[string]string {
	if previewRows > len(rows) {
		previewRows = len(rows)
	}
	preview := make([]map[string]string, 0, previewRows)
	for _, row := range rows[:previewRows] {
		rec := make(map[string]string, len(header))
		for i, name := range header {
			if i < len(row) {
				rec[strings.TrimSpace(name)] = strings.TrimSpace(row[i])
			} else {
				rec[strings.TrimSpace(name)] = ""
			}
		}
		preview = append(preview, rec)
	}
	return preview
}

// buildHighlights distills the summary into short findings the writer can
// quote directly.
func buildHighlights(summary *models.DataSummary) []string {
	var highlights []string

	highlights = append(highlights, fmt.Sprintf(
		"Dataset has %d rows across %d columns (%d numeric).",
		summary.NTotal, len(summary.Columns), len(summary.NumericColumns)))

	topCol, topPct := "", 0.0
	for name, stats := range summary.Stats {
		if stats.MissingCount > 0 && stats.MissingPct > topPct {
			topCol, topPct = name, stats.MissingPct
		}
	}
	if topCol != "" {
		highlights = append(highlights, fmt.Sprintf(
			"Highest missingness is in '%s' (%.1f%%).", topCol, topPct))
	}

	if t := summary.PrimaryTrend; t != nil && t.Slope != nil {
		highlights = append(highlights, fmt.Sprintf(
			"Primary linear trend suggests '%s' changes by %.4g per 1 unit of '%s'.", t.Y, *t.Slope, t.X))
		if t.R2 != nil {
			highlights = append(highlights, fmt.Sprintf(
				"Linear fit on (%s, %s): slope=%.6g, intercept=%.6g, R^2=%.4f",
				t.X, t.Y, *t.Slope, *t.Intercept, *t.R2))
		}
	}

	outlierCol, outlierCount := "", 0
	for name, stats := range summary.Stats {
		if stats.OutlierCount > outlierCount {
			outlierCol, outlierCount = name, stats.OutlierCount
		}
	}
	if outlierCol != "" {
		highlights = append(highlights, fmt.Sprintf(
			"Most IQR outliers occur in '%s' (%d points).", outlierCol, outlierCount))
	}

	return highlights
}
