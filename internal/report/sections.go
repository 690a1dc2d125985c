// Package report handles the plain-text section format shared by the writer
// output, the quality gate and the draft-editing surface. A section header is
// a line of the form "Header:" matching a template header verbatim.
package report

import (
	"regexp"
	"strings"

	"github.com/ternarybob/scriba/internal/models"
)

// SplitByHeaders parses report text into ordered sections keyed by the
// template's required headers. Headers absent from the text yield sections
// with empty bodies so the result always has one entry per required header,
// in template order.
func SplitByHeaders(reportText string, headers []string, origin models.SectionOrigin) []models.Section {
	headerSet := make(map[string]bool, len(headers))
	for _, h := range headers {
		headerSet[strings.TrimSpace(h)] = true
	}

	bodies := make(map[string][]string, len(headers))
	var current string

	for _, line := range strings.Split(reportText, "\n") {
		stripped := strings.TrimSpace(line)
		if strings.HasSuffix(stripped, ":") {
			name := strings.TrimSpace(strings.TrimSuffix(stripped, ":"))
			if headerSet[name] {
				current = name
				continue
			}
		}
		if current != "" {
			bodies[current] = append(bodies[current], line)
		}
	}

	sections := make([]models.Section, 0, len(headers))
	for _, h := range headers {
		sections = append(sections, models.Section{
			Name:     h,
			Required: true,
			Body:     strings.TrimSpace(strings.Join(bodies[h], "\n")),
			Origin:   origin,
		})
	}
	return sections
}

// JoinSections renders sections back into the plain-text report format,
// preserving template header order.
func JoinSections(sections []models.Section) string {
	var b strings.Builder
	for i, s := range sections {
		if i > 0 {
			b.WriteString("\n\n")
		}
		b.WriteString(s.Name)
		b.WriteString(":\n")
		b.WriteString(strings.TrimSpace(s.Body))
	}
	return strings.TrimSpace(b.String())
}

// FindMissingHeaders returns the required headers with no matching header
// line in the text. A header is present when a line reads "Header:" with
// optional surrounding whitespace, case-insensitively.
func FindMissingHeaders(reportText string, requiredHeaders []string) []string {
	var missing []string
	for _, h := range requiredHeaders {
		pattern := `(?im)^\s*` + regexp.QuoteMeta(h) + `\s*:\s*$`
		if !regexp.MustCompile(pattern).MatchString(reportText) {
			missing = append(missing, h)
		}
	}
	return missing
}

// SectionByName returns a pointer to the named section, or nil
func SectionByName(sections []models.Section, name string) *models.Section {
	for i := range sections {
		if sections[i].Name == name {
			return &sections[i]
		}
	}
	return nil
}

// WordCount counts whitespace-separated words
func WordCount(text string) int {
	return len(strings.Fields(text))
}
