package quality

import (
	"fmt"
	"strings"

	"github.com/ternarybob/scriba/internal/models"
	"github.com/ternarybob/scriba/internal/templates"
)

// maxPromptedViolations caps how many findings are echoed into the repair
// prompt so a badly broken draft does not blow out the context.
const maxPromptedViolations = 12

// BuildRepairInstructions renders the violation list into writer fix-pass
// instructions. Used by the pipeline's single repair pass and by the
// user-invoked quality fix.
func BuildRepairInstructions(violations []models.Violation, rules *templates.RuleSet) string {
	headers := make([]string, 0, len(rules.WriterFormat))
	for _, h := range rules.WriterFormat {
		headers = append(headers, h+":")
	}
	requiredList := "(template-defined headers)"
	if len(headers) > 0 {
		requiredList = strings.Join(headers, ", ")
	}

	var bullets []string
	for i, v := range violations {
		if i >= maxPromptedViolations {
			break
		}
		bullets = append(bullets, "- "+v.Detail)
	}

	return fmt.Sprintf(
		"IMPORTANT QUALITY FIX PASS:\n"+
			"- Revise and return the FULL document.\n"+
			"- Keep and preserve exact required headers: %s\n"+
			"- Do not add extra headers.\n"+
			"- Do not invent facts or measurements.\n"+
			"- Improve only the sections needed to resolve these quality issues:\n%s\n",
		requiredList, strings.Join(bullets, "\n"))
}
