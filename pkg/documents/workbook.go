package documents

import (
	"fmt"
	"unicode/utf8"

	"github.com/xuri/excelize/v2"

	"github.com/ekaya-inc/ekaya-questionnaire/pkg/models"
)

const (
	exportSheetName = "Answers"
	maxColumnWidth  = 100
)

var exportHeaders = []string{"Question", "Answer", "Status"}

// WriteAnswerWorkbook renders questions as an xlsx workbook with one row per
// question under a bold Question/Answer/Status header.
func WriteAnswerWorkbook(questions []*models.Question) ([]byte, error) {
	f := excelize.NewFile()
	defer f.Close()

	if err := f.SetSheetName(f.GetSheetName(0), exportSheetName); err != nil {
		return nil, fmt.Errorf("failed to name sheet: %w", err)
	}

	widths := make([]int, len(exportHeaders))
	setRow := func(rowNum int, values []string) error {
		for col, value := range values {
			cell, err := excelize.CoordinatesToCellName(col+1, rowNum)
			if err != nil {
				return err
			}
			if err := f.SetCellValue(exportSheetName, cell, value); err != nil {
				return err
			}
			if n := utf8.RuneCountInString(value); n > widths[col] {
				widths[col] = n
			}
		}
		return nil
	}

	if err := setRow(1, exportHeaders); err != nil {
		return nil, fmt.Errorf("failed to write header: %w", err)
	}
	for i, q := range questions {
		answer := ""
		if q.Answer != nil {
			answer = *q.Answer
		}
		if err := setRow(i+2, []string{q.QuestionText, answer, string(q.Status)}); err != nil {
			return nil, fmt.Errorf("failed to write row %d: %w", i+2, err)
		}
	}

	headerStyle, err := f.NewStyle(&excelize.Style{Font: &excelize.Font{Bold: true}})
	if err != nil {
		return nil, fmt.Errorf("failed to create header style: %w", err)
	}
	if err := f.SetCellStyle(exportSheetName, "A1", "C1", headerStyle); err != nil {
		return nil, fmt.Errorf("failed to style header: %w", err)
	}

	for col, w := range widths {
		name, err := excelize.ColumnNumberToName(col + 1)
		if err != nil {
			return nil, err
		}
		if err := f.SetColWidth(exportSheetName, name, name, float64(ColumnWidth(w))); err != nil {
			return nil, fmt.Errorf("failed to set column width: %w", err)
		}
	}

	buf, err := f.WriteToBuffer()
	if err != nil {
		return nil, fmt.Errorf("failed to write workbook: %w", err)
	}
	return buf.Bytes(), nil
}

// ColumnWidth pads the longest value by two characters, capped at 100.
func ColumnWidth(longest int) int {
	return min(longest+2, maxColumnWidth)
}
