package models

import (
	dErrors "patrol/pkg/domain-errors"
	id "patrol/pkg/domain"
)

// QuestionType enumerates the supported question kinds. The evaluator matches
// on this exhaustively; adding a type means extending the rule union in
// internal/compliance as well.
type QuestionType string

const (
	QuestionShortText    QuestionType = "short_text"
	QuestionNumber       QuestionType = "number"
	QuestionYesNo        QuestionType = "yes_no"
	QuestionSingleSelect QuestionType = "single_select"
	QuestionMultiSelect  QuestionType = "multi_select"
	QuestionPhoto        QuestionType = "photo"
)

// ParseQuestionType validates a question type string.
func ParseQuestionType(s string) (QuestionType, error) {
	switch t := QuestionType(s); t {
	case QuestionShortText, QuestionNumber, QuestionYesNo,
		QuestionSingleSelect, QuestionMultiSelect, QuestionPhoto:
		return t, nil
	default:
		return "", dErrors.Newf(dErrors.CodeInvalidInput, "unknown question type %q", s)
	}
}

// Option is one selectable choice of a select-type question.
type Option struct {
	Value string `json:"value" bson:"value"`
	Label string `json:"label" bson:"label"`
}

// Config holds the per-question compliance rules. Which fields are meaningful
// depends on the question type; Validate rejects configs that set fields their
// type cannot use incorrectly (an Expected* for the wrong type is ignored, a
// malformed bound is rejected).
type Config struct {
	// Weight is the question's contribution factor to the visit score.
	// Non-negative; defaults to 1 when omitted.
	Weight float64 `json:"weight" bson:"weight"`
	// ExpectedBool is the compliant answer for yes_no questions.
	ExpectedBool *bool `json:"expected_bool,omitempty" bson:"expected_bool,omitempty"`
	// ExpectedOption is the compliant choice for single_select questions.
	ExpectedOption string `json:"expected_option,omitempty" bson:"expected_option,omitempty"`
	// ExpectedOptions is the compliant choice set for multi_select questions.
	ExpectedOptions []string `json:"expected_options,omitempty" bson:"expected_options,omitempty"`
	// Min/Max bound number answers inclusively; nil imposes no bound.
	Min *float64 `json:"min,omitempty" bson:"min,omitempty"`
	Max *float64 `json:"max,omitempty" bson:"max,omitempty"`
	// MinPhotos/MaxPhotos bound photo attachment counts inclusively.
	MinPhotos *int `json:"min_photos,omitempty" bson:"min_photos,omitempty"`
	MaxPhotos *int `json:"max_photos,omitempty" bson:"max_photos,omitempty"`
	// AllowPartial grants partial credit for close-but-not-exact answers on
	// yes_no and select questions.
	AllowPartial bool `json:"allow_partial,omitempty" bson:"allow_partial,omitempty"`
}

// Question is one entry of a template's ordered question set.
type Question struct {
	ID          id.QuestionID `json:"id" bson:"id"`
	Type        QuestionType  `json:"type" bson:"type"`
	Title       string        `json:"title" bson:"title"`
	Description string        `json:"description,omitempty" bson:"description,omitempty"`
	Required    bool          `json:"required" bson:"required"`
	// Order defines display and evaluation order; unique within a template.
	Order   int      `json:"order" bson:"order"`
	Options []Option `json:"options,omitempty" bson:"options,omitempty"`
	Config  Config   `json:"config" bson:"config"`
}

// IsSelect reports whether the question carries an option list.
func (t QuestionType) IsSelect() bool {
	return t == QuestionSingleSelect || t == QuestionMultiSelect
}

// Validate checks structural and config invariants of a single question.
func (q Question) Validate() error {
	if q.ID.IsNil() {
		return dErrors.New(dErrors.CodeValidation, "question id is required")
	}
	if _, err := ParseQuestionType(string(q.Type)); err != nil {
		return err
	}
	if q.Title == "" {
		return dErrors.New(dErrors.CodeValidation, "question title is required")
	}
	if q.Config.Weight < 0 {
		return dErrors.Newf(dErrors.CodeValidation, "question %s: weight must be non-negative", q.ID)
	}

	if q.Type.IsSelect() {
		if len(q.Options) == 0 {
			return dErrors.Newf(dErrors.CodeValidation, "question %s: select questions require options", q.ID)
		}
		seen := make(map[string]struct{}, len(q.Options))
		for _, opt := range q.Options {
			if opt.Value == "" {
				return dErrors.Newf(dErrors.CodeValidation, "question %s: option values must be non-empty", q.ID)
			}
			if _, dup := seen[opt.Value]; dup {
				return dErrors.Newf(dErrors.CodeValidation, "question %s: duplicate option value %q", q.ID, opt.Value)
			}
			seen[opt.Value] = struct{}{}
		}
		if q.Config.ExpectedOption != "" {
			if _, ok := seen[q.Config.ExpectedOption]; !ok {
				return dErrors.Newf(dErrors.CodeValidation, "question %s: expected option %q is not among the options", q.ID, q.Config.ExpectedOption)
			}
		}
		for _, exp := range q.Config.ExpectedOptions {
			if _, ok := seen[exp]; !ok {
				return dErrors.Newf(dErrors.CodeValidation, "question %s: expected option %q is not among the options", q.ID, exp)
			}
		}
	} else if len(q.Options) > 0 {
		return dErrors.Newf(dErrors.CodeValidation, "question %s: only select questions carry options", q.ID)
	}

	if q.Config.Min != nil && q.Config.Max != nil && *q.Config.Min > *q.Config.Max {
		return dErrors.Newf(dErrors.CodeValidation, "question %s: min exceeds max", q.ID)
	}
	if q.Config.MinPhotos != nil && *q.Config.MinPhotos < 0 {
		return dErrors.Newf(dErrors.CodeValidation, "question %s: min photos must be non-negative", q.ID)
	}
	if q.Config.MaxPhotos != nil && *q.Config.MaxPhotos < 0 {
		return dErrors.Newf(dErrors.CodeValidation, "question %s: max photos must be non-negative", q.ID)
	}
	if q.Config.MinPhotos != nil && q.Config.MaxPhotos != nil && *q.Config.MinPhotos > *q.Config.MaxPhotos {
		return dErrors.Newf(dErrors.CodeValidation, "question %s: min photos exceeds max photos", q.ID)
	}
	return nil
}

// OptionValues returns the set of option values for select questions.
func (q Question) OptionValues() map[string]struct{} {
	values := make(map[string]struct{}, len(q.Options))
	for _, opt := range q.Options {
		values[opt.Value] = struct{}{}
	}
	return values
}
