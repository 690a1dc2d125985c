// -----------------------------------------------------------------------
// Stage payloads - typed outputs passed between pipeline stages
// -----------------------------------------------------------------------

package models

// ResearchNotes is the research stage output: a structured extract of the
// supplied manual/notes text.
type ResearchNotes struct {
	TheoryText string        `json:"theory_text"`
	Facts      ResearchFacts `json:"facts"`
}

// ResearchFacts are the parsed bullet lists from the theory extract
type ResearchFacts struct {
	KeyConcepts           []string `json:"key_concepts"`
	VariablesUnits        []string `json:"variables_units"`
	EquationsModels       []string `json:"equations_models"`
	ProcedureRequirements []string `json:"procedure_requirements"`
	Assumptions           []string `json:"assumptions"`
	MissingInfo           []string `json:"missing_info"`
}

// ColumnStats summarizes one numeric CSV column
type ColumnStats struct {
	Count        int      `json:"count"`
	Mean         *float64 `json:"mean,omitempty"`
	Min          *float64 `json:"min,omitempty"`
	Max          *float64 `json:"max,omitempty"`
	Stdev        *float64 `json:"stdev,omitempty"`
	MissingCount int      `json:"missing_count"`
	MissingPct   float64  `json:"missing_pct"`
	OutlierCount int      `json:"outlier_count"`
}

// TrendStats describes the primary linear trend found in the dataset
type TrendStats struct {
	X         string   `json:"x"`
	Y         string   `json:"y"`
	NUsed     int      `json:"n_used"`
	Slope     *float64 `json:"slope,omitempty"`
	Intercept *float64 `json:"intercept,omitempty"`
	R2        *float64 `json:"r2,omitempty"`
}

// DataSummary is the data stage output: statistics over the uploaded CSV
type DataSummary struct {
	NTotal         int                    `json:"n_total"`
	Columns        []string               `json:"columns"`
	NumericColumns []string               `json:"numeric_columns"`
	TimeColumn     string                 `json:"time_column,omitempty"`
	Stats          map[string]ColumnStats `json:"stats"`
	PrimaryTrend   *TrendStats            `json:"primary_trend,omitempty"`
	PreviewHead    []map[string]string    `json:"preview_head"`
	Highlights     []string               `json:"highlights"`
}

// WriterDraft is the writer stage output: the full report text plus its
// parse into ordered sections keyed by the template's required headers.
type WriterDraft struct {
	ReportText string    `json:"report_text"`
	Sections   []Section `json:"sections"`
}

// ReviewNotes is the optional reviewer stage output
type ReviewNotes struct {
	ReviewText string `json:"review_text"`
}

// FigureSuggestions is the optional diagram stage output
type FigureSuggestions struct {
	FiguresText string `json:"figures_text"`
}

// StageTiming records one stage's wall-clock duration
type StageTiming struct {
	Stage      string `json:"stage"`
	DurationMS int64  `json:"duration_ms"`
}

// DebugRecord is the per-job debug artifact persisted alongside the state
// record: per-stage timings, the final quality result and request metadata.
type DebugRecord struct {
	JobID              string         `json:"job_id"`
	Template           string         `json:"template"`
	TemplateDisplay    string         `json:"template_display_name"`
	HasCSV             bool           `json:"has_csv"`
	IncludeReview      bool           `json:"include_review"`
	RetryOf            string         `json:"retry_of,omitempty"`
	QueueMode          QueueMode      `json:"queue_mode,omitempty"`
	QueueJobID         string         `json:"queue_job_id,omitempty"`
	Timings            []StageTiming  `json:"timings"`
	Quality            *QualityResult `json:"quality,omitempty"`
	PipelineDurationMS int64          `json:"pipeline_duration_ms"`
	Error              string         `json:"error,omitempty"`
}
