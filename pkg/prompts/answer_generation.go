package prompts

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

const (
	defaultCorpusHeading   = "POLICY DOCUMENTS:"
	defaultQuestionHeading = "QUESTION TO ANSWER:"
)

// ErrEmptyInstructions is returned when the template has no instruction text.
var ErrEmptyInstructions = errors.New("prompt template has no instructions")

// Template is the on-disk form of the answer-generation prompt.
type Template struct {
	Instructions    string `yaml:"instructions"`
	CorpusHeading   string `yaml:"corpus_heading"`
	QuestionHeading string `yaml:"question_heading"`
	Cue             string `yaml:"cue"`
}

// Composer builds one generation request per question from a fixed template.
// It is immutable after construction and safe for concurrent use.
type Composer struct {
	tmpl Template
}

// LoadComposer reads the template at path. Any failure here is a startup
// error; there is no built-in fallback prompt.
func LoadComposer(path string) (*Composer, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read prompt template %s: %w", path, err)
	}
	c, err := NewComposer(data)
	if err != nil {
		return nil, fmt.Errorf("invalid prompt template %s: %w", path, err)
	}
	return c, nil
}

// NewComposer parses a YAML template.
func NewComposer(data []byte) (*Composer, error) {
	var tmpl Template

	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(&tmpl); err != nil {
		if errors.Is(err, io.EOF) {
			return nil, ErrEmptyInstructions
		}
		return nil, err
	}

	tmpl.Instructions = strings.TrimSpace(tmpl.Instructions)
	if tmpl.Instructions == "" {
		return nil, ErrEmptyInstructions
	}
	tmpl.Cue = strings.TrimSpace(tmpl.Cue)
	if tmpl.CorpusHeading = strings.TrimSpace(tmpl.CorpusHeading); tmpl.CorpusHeading == "" {
		tmpl.CorpusHeading = defaultCorpusHeading
	}
	if tmpl.QuestionHeading = strings.TrimSpace(tmpl.QuestionHeading); tmpl.QuestionHeading == "" {
		tmpl.QuestionHeading = defaultQuestionHeading
	}

	return &Composer{tmpl: tmpl}, nil
}

// Compose returns the request body for one question. Section order is fixed:
// instructions, policy corpus, question, cue.
func (c *Composer) Compose(question, corpus string) string {
	var prompt strings.Builder

	prompt.WriteString(c.tmpl.Instructions)
	prompt.WriteString("\n\n")

	prompt.WriteString(c.tmpl.CorpusHeading)
	prompt.WriteString("\n")
	prompt.WriteString(corpus)
	prompt.WriteString("\n\n")

	prompt.WriteString(c.tmpl.QuestionHeading)
	prompt.WriteString("\n")
	prompt.WriteString(strings.TrimSpace(question))

	if c.tmpl.Cue != "" {
		prompt.WriteString("\n\n")
		prompt.WriteString(c.tmpl.Cue)
	}

	return prompt.String()
}
