// -----------------------------------------------------------------------
// PDF Extractor Service - Extract text content from PDF documents
// Uses pdfcpu for Go-native PDF processing
// -----------------------------------------------------------------------

package pdf

import (
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/pdfcpu/pdfcpu/pkg/api"
	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu/model"
	"github.com/ternarybob/arbor"
	"github.com/ternarybob/scriba/internal/interfaces"
)

// Extractor implements the PDFExtractor interface using pdfcpu
type Extractor struct {
	logger  arbor.ILogger
	tempDir string
}

// Compile-time interface assertion
var _ interfaces.PDFExtractor = (*Extractor)(nil)

// NewExtractor creates a new PDF extractor service
func NewExtractor(logger arbor.ILogger) *Extractor {
	tempDir := filepath.Join(os.TempDir(), "scriba-pdf")
	os.MkdirAll(tempDir, 0755)

	return &Extractor{
		logger:  logger,
		tempDir: tempDir,
	}
}

// ExtractText extracts text content from the PDF at path, limited to
// maxPages pages (0 means all). Used to turn an uploaded PDF manual into
// manual text for the pipeline.
func (e *Extractor) ExtractText(path string, maxPages int) (string, error) {
	conf := model.NewDefaultConfiguration()
	pdfCtx, err := api.ReadContextFile(path)
	if err != nil {
		return "", fmt.Errorf("failed to read PDF: %w", err)
	}

	pageCount := pdfCtx.PageCount
	if maxPages > 0 && maxPages < pageCount {
		pageCount = maxPages
	}

	outDir := filepath.Join(e.tempDir, fmt.Sprintf("pages_%d", os.Getpid()))
	if err := os.MkdirAll(outDir, 0755); err != nil {
		return "", fmt.Errorf("failed to create extraction directory: %w", err)
	}
	defer os.RemoveAll(outDir)

	if err := api.ExtractContentFile(path, outDir, nil, conf); err != nil {
		return "", fmt.Errorf("failed to extract PDF content: %w", err)
	}

	pageTexts := make(map[int]string)
	files, _ := os.ReadDir(outDir)
	for _, file := range files {
		if file.IsDir() {
			continue
		}
		content, err := os.ReadFile(filepath.Join(outDir, file.Name()))
		if err != nil {
			continue
		}
		var pageNum int
		if _, err := fmt.Sscanf(file.Name(), "Content_page_%d", &pageNum); err != nil {
			if _, err := fmt.Sscanf(file.Name(), "page_%d", &pageNum); err != nil {
				continue
			}
		}
		pageTexts[pageNum] = decodeContentText(string(content))
	}

	var fullText strings.Builder
	for pageNum := 1; pageNum <= pageCount; pageNum++ {
		text := strings.TrimSpace(pageTexts[pageNum])
		if text == "" {
			continue
		}
		if fullText.Len() > 0 {
			fullText.WriteString("\n\n")
		}
		fullText.WriteString(text)
	}

	e.logger.Debug().
		Str("path", path).
		Int("pages", pageCount).
		Int("text_length", fullText.Len()).
		Msg("PDF text extracted")

	return fullText.String(), nil
}

// textShowPattern matches literal strings fed to the Tj/TJ text-showing
// operators in a page content stream.
var textShowPattern = regexp.MustCompile(`\(((?:[^()\\]|\\.)*)\)\s*(?:Tj|TJ)`)

// escapeReplacer resolves the escape sequences PDF literal strings allow.
var escapeReplacer = strings.NewReplacer(
	`\(`, "(",
	`\)`, ")",
	`\\`, `\`,
	`\n`, "\n",
	`\r`, "",
	`\t`, " ",
)

// decodeContentText recovers the shown text from a raw content stream.
// pdfcpu extracts operator streams rather than decoded text, so the literal
// string arguments of the text-showing operators are what we keep.
func decodeContentText(stream string) string {
	matches := textShowPattern.FindAllStringSubmatch(stream, -1)
	if len(matches) == 0 {
		return ""
	}

	var b strings.Builder
	for _, m := range matches {
		if text := escapeReplacer.Replace(m[1]); text != "" {
			b.WriteString(text)
			b.WriteString("\n")
		}
	}
	return b.String()
}
