// -----------------------------------------------------------------------
// Template rule sets - per-template output contracts
// -----------------------------------------------------------------------

package templates

import "fmt"

// QualityRules are the gate thresholds for one template
type QualityRules struct {
	MinWords               map[string]int      `yaml:"min_words"`
	RequiredTermsBySection map[string][]string `yaml:"required_terms_by_section"`
	RequiredGlobalTerms    []string            `yaml:"required_global_terms"`
}

// RuleSet defines a named output contract: required sections, quality
// thresholds and stage eligibility.
type RuleSet struct {
	Key             string       `yaml:"key"`
	DisplayName     string       `yaml:"display_name"`
	PDFTitleDefault string       `yaml:"pdf_title_default"`
	RequireCSV      bool         `yaml:"require_csv"`
	AllowCSV        bool         `yaml:"allow_csv"`
	AllowReview     bool         `yaml:"allow_review"`
	IncludeFigures  bool         `yaml:"include_figures"`
	GoalMinLen      int          `yaml:"goal_min_len"`
	WriterFormat    []string     `yaml:"writer_format"` // Ordered required headers
	WriterRules     []string     `yaml:"writer_rules"`
	Quality         QualityRules `yaml:"quality"`
}

// DefaultTemplate is used when a submission names no template
const DefaultTemplate = "lab_report"

var builtins = map[string]*RuleSet{
	"lab_report": {
		Key:             "lab_report",
		DisplayName:     "Lab / Technical Report",
		PDFTitleDefault: "Technical Lab Report",
		RequireCSV:      true,
		AllowCSV:        true,
		AllowReview:     true,
		IncludeFigures:  true,
		WriterFormat: []string{
			"Objective",
			"Introduction",
			"Theoretical Background",
			"Apparatus & Procedure",
			"Results",
			"Discussion",
			"Conclusion",
			"References",
		},
		WriterRules: []string{
			"Start the Introduction with: 'This lab is intended to...'",
			"Use the CSV as the source of truth for numbers.",
			"Clearly label full-dataset vs preview table.",
			"Include an explicit heating-rate style calculation if slope info is available.",
			"Do not invent equipment models/settings not provided.",
		},
		Quality: QualityRules{
			MinWords: map[string]int{
				"Results":    80,
				"Discussion": 100,
				"Conclusion": 50,
			},
			RequiredTermsBySection: map[string][]string{
				"Results":    {"mean", "min", "max"},
				"Discussion": {"assumption", "limitation", "error"},
			},
			RequiredGlobalTerms: []string{"dataset"},
		},
	},
	"data_insights": {
		Key:             "data_insights",
		DisplayName:     "Data Insights Report",
		PDFTitleDefault: "Data Insights Report",
		RequireCSV:      true,
		AllowCSV:        true,
		AllowReview:     false,
		IncludeFigures:  true,
		GoalMinLen:      10,
		WriterFormat: []string{
			"Objective",
			"Dataset Overview",
			"Key Insights",
			"Visualizations",
			"Recommendations",
			"Risks & Limitations",
			"Next Steps",
		},
		WriterRules: []string{
			"Write for a non-technical stakeholder.",
			"Summarize numeric columns and key trends clearly.",
			"Every recommendation must tie to an observed pattern in the CSV.",
			"Avoid lab-specific wording.",
		},
		Quality: QualityRules{
			MinWords: map[string]int{
				"Key Insights":    80,
				"Recommendations": 60,
			},
			RequiredTermsBySection: map[string][]string{
				"Recommendations":     {"recommend", "because", "data"},
				"Risks & Limitations": {"risk", "limitation"},
			},
			RequiredGlobalTerms: []string{"trend"},
		},
	},
	"study_guide": {
		Key:             "study_guide",
		DisplayName:     "Study Guide",
		PDFTitleDefault: "Study Guide",
		RequireCSV:      false,
		AllowCSV:        false,
		AllowReview:     false,
		IncludeFigures:  false,
		WriterFormat: []string{
			"Overview",
			"Key Concepts",
			"Definitions",
			"Common Mistakes",
			"Practice Questions",
			"Answer Key (brief)",
		},
		WriterRules: []string{
			"Use only the provided manual/notes text.",
			"Do not require a dataset.",
			"Keep it exam-prep focused with thorough topic coverage.",
			"Practice Questions should include at least 12 mixed-difficulty questions when source material is broad.",
		},
		Quality: QualityRules{
			MinWords: map[string]int{
				"Overview":           120,
				"Key Concepts":       300,
				"Definitions":        180,
				"Common Mistakes":    120,
				"Practice Questions": 220,
				"Answer Key (brief)": 180,
			},
			RequiredTermsBySection: map[string][]string{
				"Practice Questions": {"?"},
				"Answer Key (brief)": {"answer"},
			},
		},
	},
}

// Registry resolves template keys to rule sets. Built-ins can be overridden
// by YAML files loaded from a configured directory.
type Registry struct {
	rules map[string]*RuleSet
}

// NewRegistry returns a registry seeded with the built-in rule sets
func NewRegistry() *Registry {
	rules := make(map[string]*RuleSet, len(builtins))
	for k, v := range builtins {
		rules[k] = v
	}
	return &Registry{rules: rules}
}

// Get resolves a template key
func (r *Registry) Get(key string) (*RuleSet, error) {
	rs, ok := r.rules[key]
	if !ok {
		return nil, fmt.Errorf("unknown template: %s", key)
	}
	return rs, nil
}

// Keys returns all registered template keys
func (r *Registry) Keys() []string {
	keys := make([]string, 0, len(r.rules))
	for k := range r.rules {
		keys = append(keys, k)
	}
	return keys
}

// All returns every registered rule set keyed by template
func (r *Registry) All() map[string]*RuleSet {
	out := make(map[string]*RuleSet, len(r.rules))
	for k, v := range r.rules {
		out[k] = v
	}
	return out
}
