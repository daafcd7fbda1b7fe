package services

import (
	"github.com/ekaya-inc/ekaya-questionnaire/pkg/documents"
	"github.com/ekaya-inc/ekaya-questionnaire/pkg/models"
)

// TextExtractor pulls the text out of an uploaded policy document.
type TextExtractor interface {
	ExtractText(content []byte) (*documents.ExtractedText, error)
}

// QuestionListExtractor parses an uploaded questionnaire into question rows.
type QuestionListExtractor interface {
	ExtractQuestions(filename string, content []byte) ([]models.ExtractedQuestion, error)
}

var (
	_ TextExtractor         = (*documents.PDFExtractor)(nil)
	_ QuestionListExtractor = (*documents.QuestionExtractor)(nil)
)
