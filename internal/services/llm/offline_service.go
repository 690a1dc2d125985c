package llm

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"regexp"
	"strings"

	"github.com/ternarybob/arbor"
	"github.com/ternarybob/scriba/internal/interfaces"
)

// OfflineService implements the LLMService interface with deterministic
// canned responses. It needs no credentials or network access, which makes
// it the provider of choice for local development and tests. Responses are
// keyed on a hash of the full prompt so repeated calls with the same inputs
// produce identical output.
type OfflineService struct {
	logger arbor.ILogger
}

var _ interfaces.LLMService = (*OfflineService)(nil)

// NewOfflineService creates a new offline LLM service instance.
func NewOfflineService(logger arbor.ILogger) *OfflineService {
	logger.Info().Msg("Offline LLM service initialized (deterministic responses)")
	return &OfflineService{logger: logger}
}

// headerLinePattern accepts simple header lines like "Objective:" or
// "Apparatus & Procedure:" but not instructional lines.
var headerLinePattern = regexp.MustCompile(`^[A-Za-z0-9 &/\-]{2,40}:$`)

// extractFormatHeaders pulls the required section headers out of a writer
// system prompt's STRICT FORMAT block, skipping instructional lines such as
// "Rules:" so the synthetic draft matches the requested structure.
func extractFormatHeaders(system string) []string {
	lines := strings.Split(system, "\n")
	for i := range lines {
		lines[i] = strings.TrimSpace(lines[i])
	}

	startIdx := -1
	for i, ln := range lines {
		if strings.HasPrefix(strings.ToUpper(ln), "STRICT FORMAT") {
			startIdx = i + 1
			break
		}
	}

	var candidates []string
	if startIdx >= 0 {
		for _, ln := range lines[startIdx:] {
			if ln == "" {
				continue
			}
			low := strings.ToLower(ln)
			if strings.HasPrefix(low, "rules:") || strings.HasPrefix(low, "general rules:") {
				break
			}
			candidates = append(candidates, ln)
		}
	} else {
		candidates = lines
	}

	var headers []string
	for _, ln := range candidates {
		if !headerLinePattern.MatchString(ln) {
			continue
		}
		low := strings.ToLower(ln)
		if strings.Contains(low, "strict format") || low == "rules:" || low == "general rules:" {
			continue
		}
		headers = append(headers, ln)
	}
	return headers
}

// Chat returns a deterministic response shaped by the system prompt. The
// dispatch keys on phrases each agent's system prompt is known to contain.
func (s *OfflineService) Chat(ctx context.Context, messages []interfaces.Message) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	if len(messages) == 0 {
		return "", fmt.Errorf("messages cannot be empty for chat completion")
	}

	var system, user string
	for _, msg := range messages {
		switch msg.Role {
		case "system":
			if system == "" {
				system = msg.Content
			}
		case "user":
			user = msg.Content
		}
	}

	sum := sha256.Sum256([]byte(system + "\n" + user))
	h := hex.EncodeToString(sum[:])[:8]
	sysLow := strings.ToLower(system)

	switch {
	case strings.Contains(sysLow, "extract and summarize theory") || strings.Contains(sysLow, "return format:"):
		return "Key Concepts:\n" +
			"- Offline concept (" + h + ")\n\n" +
			"Variables & Units:\n" +
			"- V (volts), I (amps)\n\n" +
			"Equations/Models:\n" +
			"- V = I R\n\n" +
			"Procedure Requirements:\n" +
			"- Follow the manual steps provided.\n\n" +
			"Assumptions (explicitly stated in manual):\n" +
			"- None stated.\n\n" +
			"Missing Info / Clarifications Needed:\n" +
			"- Apparatus details\n", nil

	case strings.Contains(sysLow, "suggest helpful figures/plots/diagrams"):
		return "Figure 1: Time-series plot (" + h + ")\n" +
			"Shows change over time.\n\n" +
			"Figure 2: Histogram\n" +
			"Shows distribution.\n\n" +
			"Figure 3: Box plot\n" +
			"Shows spread and outliers.\n", nil

	case strings.Contains(sysLow, "careful reviewer"):
		return strings.TrimSpace(strings.ReplaceAll(user, "REPORT TO REVIEW:", "REVISED REPORT:")) +
			"\n\n(Reviewed " + h + ")", nil

	case strings.Contains(sysLow, "revise exactly one report section"):
		return "Offline rewritten section body (" + h + ").", nil
	}

	// Writer and repair prompts fall through here. Echo the exact headers
	// the prompt demands so the draft splits cleanly into sections.
	headers := extractFormatHeaders(system)
	if len(headers) == 0 {
		headers = []string{"Introduction:", "Methods:", "Results:", "Conclusion:"}
	}

	var b strings.Builder
	for _, hd := range headers {
		b.WriteString(hd)
		b.WriteString("\n")
		b.WriteString("Offline content for " + strings.TrimSuffix(hd, ":") + " (" + h + ").")
		b.WriteString("\n\n")
	}
	return strings.TrimSpace(b.String()), nil
}

// Close is a no-op for the offline service.
func (s *OfflineService) Close() error {
	return nil
}
