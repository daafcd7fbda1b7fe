package documents

import (
	"bytes"
	"encoding/csv"
	"fmt"
	"io"
	"path/filepath"
	"strings"

	"github.com/xuri/excelize/v2"
	"go.uber.org/zap"

	"github.com/ekaya-inc/ekaya-questionnaire/pkg/apperrors"
	"github.com/ekaya-inc/ekaya-questionnaire/pkg/models"
)

// headerTerms are matched case-insensitively as substrings of the first cell of row 1.
var headerTerms = []string{
	"question",
	"questions",
	"query",
	"queries",
	"item",
	"items",
	"description",
	"text",
}

// IsHeaderText reports whether a first-row cell looks like a column heading.
func IsHeaderText(text string) bool {
	lower := strings.ToLower(strings.TrimSpace(text))
	if lower == "" {
		return false
	}
	for _, term := range headerTerms {
		if strings.Contains(lower, term) {
			return true
		}
	}
	return false
}

// QuestionExtractor reads questionnaire spreadsheets: column A holds the
// question, column B an optional pre-filled answer.
type QuestionExtractor struct {
	logger *zap.Logger
}

// NewQuestionExtractor creates a QuestionExtractor.
func NewQuestionExtractor(logger *zap.Logger) *QuestionExtractor {
	return &QuestionExtractor{logger: logger.Named("question-extractor")}
}

// ExtractQuestions parses content according to the extension of filename and
// returns the question rows in sheet order.
// Returns apperrors.ErrNoQuestionsFound when no row carries a question.
func (e *QuestionExtractor) ExtractQuestions(filename string, content []byte) ([]models.ExtractedQuestion, error) {
	var (
		rows [][]string
		err  error
	)

	switch ext := strings.ToLower(filepath.Ext(filename)); ext {
	case ".xlsx", ".xlsm":
		rows, err = readWorkbookRows(content)
	case ".csv":
		rows, err = readCSVRows(content)
	case ".xls":
		return nil, apperrors.NewValidationError("file", "legacy .xls workbooks are not supported, save the file as .xlsx")
	default:
		return nil, apperrors.NewValidationError("file", "unsupported questionnaire file type %q", ext)
	}
	if err != nil {
		return nil, apperrors.NewValidationError("file", "could not read %s: %v", filename, err)
	}

	questions, err := ParseQuestionRows(rows)
	if err != nil {
		return nil, err
	}

	e.logger.Debug("Extracted questions",
		zap.String("filename", filename),
		zap.Int("rows", len(rows)),
		zap.Int("questions", len(questions)))

	return questions, nil
}

// ParseQuestionRows applies the row rules to raw cell values. rows[i] is
// spreadsheet row i+1.
func ParseQuestionRows(rows [][]string) ([]models.ExtractedQuestion, error) {
	questions := make([]models.ExtractedQuestion, 0, len(rows))

	for i, row := range rows {
		rowNumber := i + 1
		if isEmptyRow(row) {
			continue
		}

		questionText := strings.TrimSpace(row[0])
		if questionText == "" {
			continue
		}

		if rowNumber == 1 && IsHeaderText(questionText) {
			continue
		}

		q := models.ExtractedQuestion{
			RowNumber:    rowNumber,
			QuestionText: questionText,
		}
		if len(row) > 1 {
			if answer := strings.TrimSpace(row[1]); answer != "" {
				q.Answer = &answer
			}
		}
		questions = append(questions, q)
	}

	if len(questions) == 0 {
		return nil, apperrors.ErrNoQuestionsFound
	}
	return questions, nil
}

func isEmptyRow(row []string) bool {
	for _, cell := range row {
		if strings.TrimSpace(cell) != "" {
			return false
		}
	}
	return true
}

// readWorkbookRows returns the cell values of the active sheet.
func readWorkbookRows(content []byte) ([][]string, error) {
	f, err := excelize.OpenReader(bytes.NewReader(content))
	if err != nil {
		return nil, err
	}
	defer f.Close()

	sheet := f.GetSheetName(f.GetActiveSheetIndex())
	if sheet == "" {
		return nil, fmt.Errorf("workbook has no sheets")
	}
	return f.GetRows(sheet)
}

var utf8BOM = []byte{0xEF, 0xBB, 0xBF}

func readCSVRows(content []byte) ([][]string, error) {
	r := csv.NewReader(bytes.NewReader(bytes.TrimPrefix(content, utf8BOM)))
	r.FieldsPerRecord = -1
	r.LazyQuotes = true

	var rows [][]string
	for {
		record, err := r.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, err
		}
		rows = append(rows, record)
	}
	return rows, nil
}
