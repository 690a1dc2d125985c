package interfaces

import (
	"github.com/ternarybob/scriba/internal/models"
)

// RenderInput is everything the renderer needs to build the submission PDF
type RenderInput struct {
	Meta        models.DocMeta
	Sections    []models.Section
	TheoryText  string
	ReviewText  string
	FiguresText string
	DataPreview []map[string]string
}

// PDFService renders the final document
type PDFService interface {
	RenderDocument(input *RenderInput) ([]byte, error)
}

// PDFExtractor extracts plain text from an uploaded PDF manual
type PDFExtractor interface {
	ExtractText(path string, maxPages int) (string, error)
}
