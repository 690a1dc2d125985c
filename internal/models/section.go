package models

// SectionOrigin records how a section body came to be
type SectionOrigin string

const (
	OriginGenerated      SectionOrigin = "generated"
	OriginRepaired       SectionOrigin = "repaired"
	OriginManuallyEdited SectionOrigin = "manually-edited"
	OriginRegenerated    SectionOrigin = "regenerated"
)

// Section is one named block of the final document. The ordered sequence of
// section names in a rendered draft must equal the template's required-header
// sequence.
type Section struct {
	Name     string        `json:"name"`
	Required bool          `json:"required"`
	Body     string        `json:"body"`
	Origin   SectionOrigin `json:"origin"`
}
