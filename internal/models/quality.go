package models

// ViolationKind classifies a single quality-gate finding
type ViolationKind string

const (
	ViolationMissingSection      ViolationKind = "missing_section"
	ViolationEmptySection        ViolationKind = "empty_section"
	ViolationTooShort            ViolationKind = "too_short"
	ViolationMissingRequiredTerm ViolationKind = "missing_required_term"
)

// Violation is one quality-gate finding. Section is "*" for document-global
// findings.
type Violation struct {
	Section string        `json:"section"`
	Kind    ViolationKind `json:"kind"`
	Detail  string        `json:"detail"`
}

// QualityResult is the output of a quality-gate pass. The gate runs at most
// twice per pipeline (pass 1, then pass 2 after the single repair).
type QualityResult struct {
	Passed     bool        `json:"passed"`
	Violations []Violation `json:"violations"`
	PassNumber int         `json:"pass_number"`
}
