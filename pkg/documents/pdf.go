// Package documents turns uploaded files into text and question lists, and
// renders approved answers back into a workbook.
package documents

import (
	"bytes"
	"errors"
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/ledongthuc/pdf"
	"go.uber.org/zap"

	"github.com/ekaya-inc/ekaya-questionnaire/pkg/apperrors"
)

// PageSeparator joins the text of consecutive pages.
const PageSeparator = "\n\n"

var errNullPage = errors.New("page object is missing")

// ExtractedText is the result of reading a policy document.
type ExtractedText struct {
	Text         string `json:"-"`
	PageCount    int    `json:"page_count"`
	PagesRead    int    `json:"pages_read"`
	SkippedPages []int  `json:"skipped_pages,omitempty"`
}

// Length returns the extracted text length in characters.
func (e *ExtractedText) Length() int {
	return utf8.RuneCountInString(e.Text)
}

// Preview returns at most n characters of the text, with "..." appended when cut.
func (e *ExtractedText) Preview(n int) string {
	if e.Length() <= n {
		return e.Text
	}
	return string([]rune(e.Text)[:n]) + "..."
}

// pageSource is a document whose pages can be read one at a time (1-based).
type pageSource interface {
	NumPage() int
	PageText(num int) (string, error)
}

type pdfDocument struct {
	reader *pdf.Reader
}

func (d *pdfDocument) NumPage() int {
	return d.reader.NumPage()
}

func (d *pdfDocument) PageText(num int) (string, error) {
	page := d.reader.Page(num)
	if page.V.IsNull() {
		return "", errNullPage
	}
	return page.GetPlainText(nil)
}

// openPDF parses the container. The parser panics on some malformed input,
// which is reported as an ordinary error.
func openPDF(content []byte) (doc pageSource, err error) {
	defer func() {
		if r := recover(); r != nil {
			doc, err = nil, fmt.Errorf("parser panic: %v", r)
		}
	}()

	reader, err := pdf.NewReader(bytes.NewReader(content), int64(len(content)))
	if err != nil {
		return nil, err
	}
	return &pdfDocument{reader: reader}, nil
}

// PDFExtractor pulls plain text out of PDF policy documents.
type PDFExtractor struct {
	open   func(content []byte) (pageSource, error)
	logger *zap.Logger
}

// NewPDFExtractor creates a PDFExtractor.
func NewPDFExtractor(logger *zap.Logger) *PDFExtractor {
	return &PDFExtractor{
		open:   openPDF,
		logger: logger.Named("pdf-extractor"),
	}
}

// ExtractText returns the text of every readable page in page order, pages
// joined by a blank line. A page that fails to parse is logged and skipped.
//
// Returns apperrors.ErrCorruptDocument if content is not a readable PDF and
// apperrors.ErrNoExtractableText if no page yields any text.
func (e *PDFExtractor) ExtractText(content []byte) (*ExtractedText, error) {
	if len(content) == 0 {
		return nil, fmt.Errorf("%w: empty file", apperrors.ErrCorruptDocument)
	}

	doc, err := e.open(content)
	if err != nil {
		e.logger.Warn("Failed to open PDF", zap.Error(err))
		return nil, fmt.Errorf("%w: %v", apperrors.ErrCorruptDocument, err)
	}

	return e.extractPages(doc)
}

func (e *PDFExtractor) extractPages(doc pageSource) (*ExtractedText, error) {
	result := &ExtractedText{PageCount: doc.NumPage()}
	if result.PageCount == 0 {
		return nil, fmt.Errorf("%w: document has no pages", apperrors.ErrNoExtractableText)
	}

	pages := make([]string, 0, result.PageCount)
	for num := 1; num <= result.PageCount; num++ {
		text, err := readPage(doc, num)
		if err != nil {
			e.logger.Warn("Skipping unreadable page",
				zap.Int("page", num),
				zap.Error(err))
			result.SkippedPages = append(result.SkippedPages, num)
			continue
		}

		text = strings.TrimSpace(text)
		if text == "" {
			continue
		}
		pages = append(pages, text)
	}

	if len(pages) == 0 {
		return nil, fmt.Errorf("%w: %d pages, none with text", apperrors.ErrNoExtractableText, result.PageCount)
	}

	result.Text = strings.Join(pages, PageSeparator)
	result.PagesRead = len(pages)

	e.logger.Debug("Extracted PDF text",
		zap.Int("pages", result.PageCount),
		zap.Int("pages_read", result.PagesRead),
		zap.Int("skipped", len(result.SkippedPages)),
		zap.Int("text_length", result.Length()))

	return result, nil
}

func readPage(doc pageSource, num int) (text string, err error) {
	defer func() {
		if r := recover(); r != nil {
			text, err = "", fmt.Errorf("panic reading page: %v", r)
		}
	}()
	return doc.PageText(num)
}
