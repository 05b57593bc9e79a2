// Package feedback holds the validated AI feedback record attached to a resume.
package feedback

import (
	_ "embed"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/xeipuuv/gojsonschema"
)

//go:embed schema.json
var schemaJSON []byte

var (
	// ErrInvalid wraps every schema or field violation returned by Parse.
	ErrInvalid = errors.New("invalid feedback")

	schema   = mustLoadSchema()
	validate = validator.New(validator.WithRequiredStructEnabled())
)

// Feedback is the structured result of a resume analysis.
type Feedback struct {
	Summary      string   `json:"summary" validate:"required"`
	Score        int      `json:"score" validate:"gte=0,lte=100"`
	Strengths    []string `json:"strengths" validate:"required,min=1,dive,required"`
	Improvements []string `json:"improvements" validate:"required,min=1,dive,required"`
}

// Complete reports whether the analysis carries everything an interview session needs.
func (f *Feedback) Complete() bool {
	if f == nil {
		return false
	}
	return strings.TrimSpace(f.Summary) != "" &&
		f.Score >= 0 && f.Score <= 100 &&
		len(f.Strengths) > 0 &&
		len(f.Improvements) > 0
}

// Parse validates raw model output against the embedded JSON Schema and the
// struct constraints, then normalizes whitespace.
func Parse(raw []byte) (Feedback, error) {
	result, err := schema.Validate(gojsonschema.NewBytesLoader(raw))
	if err != nil {
		return Feedback{}, fmt.Errorf("%w: %v", ErrInvalid, err)
	}
	if !result.Valid() {
		msgs := make([]string, 0, len(result.Errors()))
		for _, e := range result.Errors() {
			msgs = append(msgs, e.String())
		}
		return Feedback{}, fmt.Errorf("%w: %s", ErrInvalid, strings.Join(msgs, "; "))
	}

	var fb Feedback
	if err := json.Unmarshal(raw, &fb); err != nil {
		return Feedback{}, fmt.Errorf("%w: %v", ErrInvalid, err)
	}
	fb.normalize()
	if err := Validate(fb); err != nil {
		return Feedback{}, err
	}
	return fb, nil
}

// Validate checks struct-level constraints on an already decoded record.
func Validate(fb Feedback) error {
	if err := validate.Struct(fb); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalid, err)
	}
	return nil
}

func (f *Feedback) normalize() {
	f.Summary = strings.TrimSpace(f.Summary)
	f.Strengths = trimAll(f.Strengths)
	f.Improvements = trimAll(f.Improvements)
}

func trimAll(items []string) []string {
	out := make([]string, 0, len(items))
	for _, item := range items {
		if s := strings.TrimSpace(item); s != "" {
			out = append(out, s)
		}
	}
	return out
}

func mustLoadSchema() *gojsonschema.Schema {
	s, err := gojsonschema.NewSchema(gojsonschema.NewBytesLoader(schemaJSON))
	if err != nil {
		panic(fmt.Sprintf("feedback schema: %v", err))
	}
	return s
}
