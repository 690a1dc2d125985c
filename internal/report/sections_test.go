package report

import (
	"strings"
	"testing"

	"github.com/ternarybob/scriba/internal/models"
)

var testHeaders = []string{"Objective", "Results", "Conclusion"}

func TestSplitByHeaders(t *testing.T) {
	text := strings.Join([]string{
		"Objective:",
		"Measure the heating rate of the sample.",
		"",
		"Results:",
		"Mean temperature was 42.1 C.",
		"Max temperature was 97.3 C.",
		"",
		"Conclusion:",
		"The heating rate matched the expected value.",
	}, "\n")

	sections := SplitByHeaders(text, testHeaders, models.OriginGenerated)

	if len(sections) != 3 {
		t.Fatalf("Expected 3 sections, got %d", len(sections))
	}
	for i, h := range testHeaders {
		if sections[i].Name != h {
			t.Errorf("Section %d: expected name %q, got %q", i, h, sections[i].Name)
		}
		if sections[i].Origin != models.OriginGenerated {
			t.Errorf("Section %d: expected generated origin, got %q", i, sections[i].Origin)
		}
		if sections[i].Body == "" {
			t.Errorf("Section %d (%s): expected non-empty body", i, h)
		}
	}
	if !strings.Contains(sections[1].Body, "Max temperature") {
		t.Errorf("Results body lost a line: %q", sections[1].Body)
	}
}

func TestSplitByHeadersMissingHeader(t *testing.T) {
	text := "Objective:\nDo the thing.\n\nConclusion:\nDone."

	sections := SplitByHeaders(text, testHeaders, models.OriginGenerated)

	if len(sections) != 3 {
		t.Fatalf("Expected 3 sections, got %d", len(sections))
	}
	if sections[1].Name != "Results" || sections[1].Body != "" {
		t.Errorf("Expected empty Results section, got %q=%q", sections[1].Name, sections[1].Body)
	}
	if sections[2].Body != "Done." {
		t.Errorf("Conclusion body = %q, want %q", sections[2].Body, "Done.")
	}
}

func TestSplitByHeadersIgnoresUnknownHeaderLines(t *testing.T) {
	// A colon-terminated line that is not a template header belongs to the
	// current section body.
	text := "Results:\nNote:\nthe preview shows 5 rows."

	sections := SplitByHeaders(text, []string{"Results"}, models.OriginGenerated)
	if !strings.Contains(sections[0].Body, "Note:") {
		t.Errorf("Non-template header line should stay in body, got %q", sections[0].Body)
	}
}

func TestJoinSectionsRoundTrip(t *testing.T) {
	text := "Objective:\nMeasure things.\n\nResults:\nNumbers here.\n\nConclusion:\nIt worked."
	sections := SplitByHeaders(text, testHeaders, models.OriginGenerated)

	joined := JoinSections(sections)
	if joined != text {
		t.Errorf("JoinSections round trip mismatch:\ngot:  %q\nwant: %q", joined, text)
	}
}

func TestFindMissingHeaders(t *testing.T) {
	tests := []struct {
		name string
		text string
		want []string
	}{
		{
			name: "all present",
			text: "Objective:\nx\nResults:\ny\nConclusion:\nz",
			want: nil,
		},
		{
			name: "case insensitive",
			text: "objective:\nx\nRESULTS:\ny\nConclusion:\nz",
			want: nil,
		},
		{
			name: "inline mention does not count",
			text: "Objective:\nThe Results: were good.\nConclusion:\nz",
			want: []string{"Results"},
		},
		{
			name: "empty text",
			text: "",
			want: []string{"Objective", "Results", "Conclusion"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := FindMissingHeaders(tt.text, testHeaders)
			if len(got) != len(tt.want) {
				t.Fatalf("FindMissingHeaders() = %v, want %v", got, tt.want)
			}
			for i := range got {
				if got[i] != tt.want[i] {
					t.Errorf("FindMissingHeaders()[%d] = %q, want %q", i, got[i], tt.want[i])
				}
			}
		})
	}
}

func TestSectionByName(t *testing.T) {
	sections := []models.Section{
		{Name: "Results", Body: "old"},
		{Name: "Conclusion", Body: "end"},
	}

	s := SectionByName(sections, "Results")
	if s == nil {
		t.Fatal("Expected to find Results section")
	}
	s.Body = "new"
	if sections[0].Body != "new" {
		t.Error("SectionByName should return a pointer into the slice")
	}

	if SectionByName(sections, "Missing") != nil {
		t.Error("Expected nil for unknown section name")
	}
}

func TestWordCount(t *testing.T) {
	tests := []struct {
		text string
		want int
	}{
		{"", 0},
		{"   ", 0},
		{"one", 1},
		{"two  words\nand more", 4},
	}
	for _, tt := range tests {
		if got := WordCount(tt.text); got != tt.want {
			t.Errorf("WordCount(%q) = %d, want %d", tt.text, got, tt.want)
		}
	}
}
