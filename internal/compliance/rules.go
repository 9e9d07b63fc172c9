package compliance

import (
	tmplmodels "patrol/internal/template/models"
)

// Rule is the sum type over per-question-type compliance rules. The evaluator
// switches over the concrete variants exhaustively, so adding a question type
// without teaching the evaluator about it fails at the RuleFor seam rather
// than silently.
type Rule interface {
	isRule()
}

// TextRule: presence is the only check for short_text answers.
type TextRule struct{}

// NumberRule: inclusive bounds; a nil bound imposes no constraint on its side.
type NumberRule struct {
	Min *float64
	Max *float64
}

// YesNoRule: compare against the expected boolean. A nil Expected means any
// answer is compliant.
type YesNoRule struct {
	Expected     *bool
	AllowPartial bool
}

// SingleSelectRule: string equality against the expected option value. An
// empty Expected means any selected option is compliant.
type SingleSelectRule struct {
	Expected     string
	AllowPartial bool
}

// MultiSelectRule: set comparison against the expected option values. An empty
// Expected set means any selection is compliant.
type MultiSelectRule struct {
	Expected     []string
	AllowPartial bool
}

// PhotoRule: inclusive bounds on the attachment count.
type PhotoRule struct {
	MinPhotos *int
	MaxPhotos *int
}

func (TextRule) isRule()         {}
func (NumberRule) isRule()       {}
func (YesNoRule) isRule()        {}
func (SingleSelectRule) isRule() {}
func (MultiSelectRule) isRule()  {}
func (PhotoRule) isRule()        {}

// RuleFor materializes a question's typed rule from its stored config.
// Question validation guarantees the type is one of the known variants, so
// the default branch is unreachable for persisted templates; it returns a
// TextRule (presence-only) to keep evaluation total regardless.
func RuleFor(q tmplmodels.Question) Rule {
	switch q.Type {
	case tmplmodels.QuestionShortText:
		return TextRule{}
	case tmplmodels.QuestionNumber:
		return NumberRule{Min: q.Config.Min, Max: q.Config.Max}
	case tmplmodels.QuestionYesNo:
		return YesNoRule{Expected: q.Config.ExpectedBool, AllowPartial: q.Config.AllowPartial}
	case tmplmodels.QuestionSingleSelect:
		return SingleSelectRule{Expected: q.Config.ExpectedOption, AllowPartial: q.Config.AllowPartial}
	case tmplmodels.QuestionMultiSelect:
		return MultiSelectRule{Expected: q.Config.ExpectedOptions, AllowPartial: q.Config.AllowPartial}
	case tmplmodels.QuestionPhoto:
		return PhotoRule{MinPhotos: q.Config.MinPhotos, MaxPhotos: q.Config.MaxPhotos}
	default:
		return TextRule{}
	}
}
