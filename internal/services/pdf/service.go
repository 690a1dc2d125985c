package pdf

import (
	"bytes"
	"fmt"
	"strings"

	"github.com/go-pdf/fpdf"
	"github.com/ternarybob/arbor"
	"github.com/ternarybob/scriba/internal/interfaces"
	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/ast"
	"github.com/yuin/goldmark/extension"
	extast "github.com/yuin/goldmark/extension/ast"
	"github.com/yuin/goldmark/text"
)

// maxPreviewColumns caps the data-preview table width so rows stay legible
// on an A4 page.
const maxPreviewColumns = 8

// Service implements interfaces.PDFService
type Service struct {
	logger arbor.ILogger
}

// Compile-time assertion
var _ interfaces.PDFService = (*Service)(nil)

// NewService creates a new PDF service
func NewService(logger arbor.ILogger) *Service {
	return &Service{
		logger: logger,
	}
}

// RenderDocument builds the submission PDF: title block, the draft sections
// in template order, then reviewer feedback, figure suggestions and the data
// preview as appendices when present.
func (s *Service) RenderDocument(input *interfaces.RenderInput) ([]byte, error) {
	if input == nil {
		return nil, fmt.Errorf("render input is required")
	}

	markdown := buildMarkdown(input)

	s.logger.Debug().
		Int("markdown_len", len(markdown)).
		Int("sections", len(input.Sections)).
		Msg("Rendering document PDF")

	return s.renderMarkdown(markdown)
}

// buildMarkdown lays the document out as markdown for the renderer walker.
// Section bodies are written as-is; they are plain text by construction.
func buildMarkdown(input *interfaces.RenderInput) string {
	var b strings.Builder

	title := strings.TrimSpace(input.Meta.Title)
	if title == "" {
		title = "Report"
	}
	b.WriteString("# " + title + "\n\n")

	metaLines := []struct{ label, value string }{
		{"Name", input.Meta.Name},
		{"Course", input.Meta.Course},
		{"Group", input.Meta.Group},
		{"Date", input.Meta.Date},
	}
	for _, m := range metaLines {
		if strings.TrimSpace(m.value) != "" {
			b.WriteString(fmt.Sprintf("**%s:** %s\n\n", m.label, m.value))
		}
	}

	for _, section := range input.Sections {
		b.WriteString("## " + section.Name + "\n\n")
		body := strings.TrimSpace(section.Body)
		if body == "" {
			body = "(not provided)"
		}
		b.WriteString(body + "\n\n")
	}

	if strings.TrimSpace(input.ReviewText) != "" {
		b.WriteString("---\n\n## Reviewer Feedback\n\n")
		b.WriteString(strings.TrimSpace(input.ReviewText) + "\n\n")
	}

	if strings.TrimSpace(input.FiguresText) != "" {
		b.WriteString("---\n\n## Suggested Figures\n\n")
		b.WriteString(strings.TrimSpace(input.FiguresText) + "\n\n")
	}

	if len(input.DataPreview) > 0 {
		b.WriteString("---\n\n## Data Preview\n\n")
		b.WriteString(buildPreviewTable(input.DataPreview))
	}

	return b.String()
}

// buildPreviewTable renders the CSV preview rows as a markdown table.
// Column order follows the first row's keys sorted for stability.
func buildPreviewTable(preview []map[string]string) string {
	if len(preview) == 0 {
		return ""
	}

	var columns []string
	for col := range preview[0] {
		columns = append(columns, col)
	}
	sortStrings(columns)
	if len(columns) > maxPreviewColumns {
		columns = columns[:maxPreviewColumns]
	}

	var b strings.Builder
	b.WriteString("| " + strings.Join(columns, " | ") + " |\n")
	b.WriteString("|" + strings.Repeat(" --- |", len(columns)) + "\n")
	for _, row := range preview {
		cells := make([]string, 0, len(columns))
		for _, col := range columns {
			cells = append(cells, strings.ReplaceAll(row[col], "|", "\\|"))
		}
		b.WriteString("| " + strings.Join(cells, " | ") + " |\n")
	}
	b.WriteString("\n")
	return b.String()
}

func sortStrings(s []string) {
	for i := 1; i < len(s); i++ {
		for j := i; j > 0 && s[j] < s[j-1]; j-- {
			s[j], s[j-1] = s[j-1], s[j]
		}
	}
}

// renderMarkdown converts markdown content to a PDF byte slice
func (s *Service) renderMarkdown(markdown string) ([]byte, error) {
	pdf := fpdf.New("P", "mm", "A4", "")
	pdf.SetMargins(10, 10, 10)
	pdf.SetAutoPageBreak(true, 10)
	pdf.AddPage()
	pdf.SetFont("Arial", "", 10)

	md := goldmark.New(
		goldmark.WithExtensions(extension.Table),
	)

	source := []byte(markdown)
	doc := md.Parser().Parse(text.NewReader(source))

	renderer := &pdfRenderer{
		pdf:    pdf,
		source: source,
		logger: s.logger,
		font:   "Arial",
		size:   10,
	}

	if err := renderer.render(doc); err != nil {
		s.logger.Error().Err(err).Msg("Failed to generate PDF")
		return nil, fmt.Errorf("failed to generate PDF: %w", err)
	}

	var buf bytes.Buffer
	if err := pdf.Output(&buf); err != nil {
		s.logger.Error().Err(err).Msg("Failed to generate PDF output")
		return nil, fmt.Errorf("failed to generate PDF output: %w", err)
	}

	s.logger.Debug().Int("pdf_size", buf.Len()).Msg("PDF generated successfully")
	return buf.Bytes(), nil
}

type pdfRenderer struct {
	pdf       *fpdf.Fpdf
	source    []byte
	logger    arbor.ILogger
	font      string
	size      float64
	bold      bool
	italic    bool
	inList    bool
	listLevel int
}

func (r *pdfRenderer) render(node ast.Node) error {
	return ast.Walk(node, r.walk)
}

func (r *pdfRenderer) updateFont() {
	style := ""
	if r.bold {
		style += "B"
	}
	if r.italic {
		style += "I"
	}
	r.pdf.SetFont(r.font, style, r.size)
}

func (r *pdfRenderer) walk(n ast.Node, entering bool) (ast.WalkStatus, error) {
	switch n.Kind() {
	case ast.KindHeading:
		return r.handleHeading(n.(*ast.Heading), entering)
	case ast.KindParagraph:
		return r.handleParagraph(entering)
	case ast.KindText:
		return r.handleText(n.(*ast.Text), entering)
	case ast.KindEmphasis:
		return r.handleEmphasis(n.(*ast.Emphasis), entering)
	case ast.KindList:
		return r.handleList(entering)
	case ast.KindListItem:
		return r.handleListItem(entering)
	case ast.KindThematicBreak:
		if entering {
			r.pdf.Ln(2)
			r.pdf.Line(15, r.pdf.GetY(), 195, r.pdf.GetY())
			r.pdf.Ln(2)
		}
	case extast.KindTable:
		return r.handleTable(n.(*extast.Table), entering)
	}
	return ast.WalkContinue, nil
}

func (r *pdfRenderer) handleHeading(n *ast.Heading, entering bool) (ast.WalkStatus, error) {
	if entering {
		r.pdf.Ln(6)
		size := 14.0
		switch n.Level {
		case 1:
			size = 16
		case 2:
			size = 13
		case 3:
			size = 11
		default:
			size = 10
		}
		r.pdf.SetFont("Arial", "B", size)
	} else {
		r.pdf.Ln(6)
		r.updateFont()
	}
	return ast.WalkContinue, nil
}

func (r *pdfRenderer) handleParagraph(entering bool) (ast.WalkStatus, error) {
	if !entering {
		r.pdf.Ln(7)
	}
	return ast.WalkContinue, nil
}

func (r *pdfRenderer) handleText(n *ast.Text, entering bool) (ast.WalkStatus, error) {
	if entering {
		r.pdf.Write(5, string(n.Text(r.source)))
		if n.SoftLineBreak() || n.HardLineBreak() {
			r.pdf.Ln(5)
		}
	}
	return ast.WalkContinue, nil
}

func (r *pdfRenderer) handleEmphasis(n *ast.Emphasis, entering bool) (ast.WalkStatus, error) {
	if n.Level == 2 {
		r.bold = entering
	} else {
		r.italic = entering
	}
	r.updateFont()
	return ast.WalkContinue, nil
}

func (r *pdfRenderer) handleList(entering bool) (ast.WalkStatus, error) {
	if entering {
		r.inList = true
		r.listLevel++
	} else {
		r.listLevel--
		if r.listLevel == 0 {
			r.inList = false
			r.pdf.Ln(2)
		}
	}
	return ast.WalkContinue, nil
}

func (r *pdfRenderer) handleListItem(entering bool) (ast.WalkStatus, error) {
	if entering {
		r.pdf.Ln(5)
		indent := float64(r.listLevel) * 5.0
		r.pdf.SetX(15 + indent)
		r.pdf.Write(5, "- ")
	}
	return ast.WalkContinue, nil
}

func (r *pdfRenderer) handleTable(n *extast.Table, entering bool) (ast.WalkStatus, error) {
	if !entering {
		return ast.WalkContinue, nil
	}

	var rows [][]string
	var findRows func(node ast.Node)
	findRows = func(node ast.Node) {
		for child := node.FirstChild(); child != nil; child = child.NextSibling() {
			if tr, ok := child.(*extast.TableRow); ok {
				rows = append(rows, r.extractRow(tr))
			} else if _, ok := child.(*extast.TableHeader); ok {
				findRows(child)
			}
		}
	}
	findRows(n)

	r.renderTable(rows)
	return ast.WalkSkipChildren, nil
}

func (r *pdfRenderer) extractRow(n *extast.TableRow) []string {
	var row []string
	for cell := n.FirstChild(); cell != nil; cell = cell.NextSibling() {
		if _, ok := cell.(*extast.TableCell); ok {
			row = append(row, string(cell.Text(r.source)))
		}
	}
	return row
}

func (r *pdfRenderer) renderTable(rows [][]string) {
	if len(rows) == 0 || len(rows[0]) == 0 {
		return
	}

	r.pdf.Ln(2)

	pageWidth := 180.0
	numCols := len(rows[0])
	fontSize := 8.0
	lineHeight := 5.0
	colWidth := pageWidth / float64(numCols)

	for i, row := range rows {
		if i == 0 {
			r.pdf.SetFont("Arial", "B", fontSize)
			r.pdf.SetFillColor(230, 230, 230)
		} else {
			r.pdf.SetFont("Arial", "", fontSize)
			r.pdf.SetFillColor(255, 255, 255)
		}

		rowHeight := lineHeight + 2
		startY := r.pdf.GetY()
		startX := r.pdf.GetX()

		// Page break if this row would overflow
		if startY+rowHeight > 282 {
			r.pdf.AddPage()
			startY = r.pdf.GetY()
		}

		for j, cell := range row {
			if j >= numCols {
				break
			}
			x := startX + float64(j)*colWidth
			if i == 0 {
				r.pdf.Rect(x, startY, colWidth, rowHeight, "FD")
			} else {
				r.pdf.Rect(x, startY, colWidth, rowHeight, "D")
			}
			r.pdf.SetXY(x+1, startY+1)
			r.pdf.CellFormat(colWidth-2, lineHeight, cell, "", 0, "L", false, 0, "")
		}

		r.pdf.SetXY(startX, startY+rowHeight)
	}

	r.pdf.Ln(3)
	r.updateFont()
}
