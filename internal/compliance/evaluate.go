package compliance

import (
	tmplmodels "patrol/internal/template/models"
)

// Status is the per-answer compliance verdict.
type Status string

const (
	StatusCompliant    Status = "compliant"
	StatusPartial      Status = "partial"
	StatusNonCompliant Status = "non_compliant"
)

// Evaluate maps (question, value, attachments) to a compliance status.
//
// Precedence: the optionality check runs before any type-specific rule. A
// skipped optional question is compliant no matter what bounds its config
// carries; a present value is always checked against the configured rule,
// required or not. Wrong-kind values (which upstream validation rejects)
// evaluate to non_compliant so the function stays total.
func Evaluate(q tmplmodels.Question, value Value, attachments []string) Status {
	// Photo questions ignore the value field; presence is the attachment list
	// and an explicit zero lower bound deliberately permits empty submissions.
	if q.Type == tmplmodels.QuestionPhoto {
		return evaluatePhotoQuestion(q, attachments)
	}

	if skipped(value) {
		if q.Required {
			return StatusNonCompliant
		}
		return StatusCompliant
	}

	switch rule := RuleFor(q).(type) {
	case TextRule:
		return evaluateText(value)
	case NumberRule:
		return evaluateNumber(rule, value)
	case YesNoRule:
		return evaluateYesNo(rule, value)
	case SingleSelectRule:
		return evaluateSingleSelect(rule, value)
	case MultiSelectRule:
		return evaluateMultiSelect(rule, value)
	case PhotoRule:
		return evaluatePhoto(rule, attachments)
	default:
		return StatusNonCompliant
	}
}

// skipped reports whether the answer counts as absent.
func skipped(value Value) bool {
	if value.IsNull() {
		return true
	}
	// An empty string carries no content; treat it like an absent answer.
	if s, ok := value.Str(); ok && s == "" {
		return true
	}
	if list, ok := value.List(); ok && len(list) == 0 {
		return true
	}
	return false
}

func evaluateText(value Value) Status {
	if _, ok := value.Str(); !ok {
		return StatusNonCompliant
	}
	// Presence was already established by the skip check; text answers have no
	// content-quality semantics.
	return StatusCompliant
}

func evaluateNumber(rule NumberRule, value Value) Status {
	n, ok := value.Num()
	if !ok {
		return StatusNonCompliant
	}
	if rule.Min != nil && n < *rule.Min {
		return StatusNonCompliant
	}
	if rule.Max != nil && n > *rule.Max {
		return StatusNonCompliant
	}
	return StatusCompliant
}

func evaluateYesNo(rule YesNoRule, value Value) Status {
	b, ok := value.Bool()
	if !ok {
		return StatusNonCompliant
	}
	if rule.Expected == nil || b == *rule.Expected {
		return StatusCompliant
	}
	if rule.AllowPartial {
		return StatusPartial
	}
	return StatusNonCompliant
}

func evaluateSingleSelect(rule SingleSelectRule, value Value) Status {
	s, ok := value.Str()
	if !ok {
		return StatusNonCompliant
	}
	if rule.Expected == "" || s == rule.Expected {
		return StatusCompliant
	}
	if rule.AllowPartial {
		return StatusPartial
	}
	return StatusNonCompliant
}

func evaluateMultiSelect(rule MultiSelectRule, value Value) Status {
	selected, ok := value.List()
	if !ok {
		return StatusNonCompliant
	}
	if len(rule.Expected) == 0 {
		return StatusCompliant
	}

	expected := make(map[string]struct{}, len(rule.Expected))
	for _, e := range rule.Expected {
		expected[e] = struct{}{}
	}
	selectedSet := make(map[string]struct{}, len(selected))
	for _, s := range selected {
		selectedSet[s] = struct{}{}
	}

	overlap := 0
	for s := range selectedSet {
		if _, ok := expected[s]; ok {
			overlap++
		}
	}

	if overlap == len(expected) && len(selectedSet) == len(expected) {
		return StatusCompliant
	}
	if overlap == 0 {
		return StatusNonCompliant
	}
	if rule.AllowPartial {
		return StatusPartial
	}
	return StatusNonCompliant
}

// evaluatePhotoQuestion applies the skip/required precedence for photo
// questions before the bound check:
//   - no attachments on a non-required question is a skip → compliant
//   - no attachments on a required question is non_compliant, unless the
//     config explicitly set min_photos to 0 (the bound is authoritative)
//   - any attachments are checked against the bounds
func evaluatePhotoQuestion(q tmplmodels.Question, attachments []string) Status {
	rule, ok := RuleFor(q).(PhotoRule)
	if !ok {
		return StatusNonCompliant
	}
	if len(attachments) == 0 {
		if !q.Required {
			return StatusCompliant
		}
		if rule.MinPhotos != nil && *rule.MinPhotos == 0 {
			return evaluatePhoto(rule, attachments)
		}
		return StatusNonCompliant
	}
	return evaluatePhoto(rule, attachments)
}

func evaluatePhoto(rule PhotoRule, attachments []string) Status {
	count := len(attachments)
	if rule.MinPhotos != nil && count < *rule.MinPhotos {
		return StatusNonCompliant
	}
	if rule.MaxPhotos != nil && count > *rule.MaxPhotos {
		return StatusNonCompliant
	}
	return StatusCompliant
}
