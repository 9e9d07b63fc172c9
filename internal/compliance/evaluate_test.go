package compliance

import (
	"testing"

	"github.com/stretchr/testify/assert"

	tmplmodels "patrol/internal/template/models"
	id "patrol/pkg/domain"
)

func floatPtr(f float64) *float64 { return &f }

func intPtr(i int) *int { return &i }

func boolPtr(b bool) *bool { return &b }

func question(qt tmplmodels.QuestionType, required bool, cfg tmplmodels.Config) tmplmodels.Question {
	return tmplmodels.Question{
		ID:       id.NewQuestionID(),
		Type:     qt,
		Title:    "q",
		Required: required,
		Config:   cfg,
	}
}

func TestEvaluateNumberBounds(t *testing.T) {
	q := question(tmplmodels.QuestionNumber, true, tmplmodels.Config{
		Min: floatPtr(10), Max: floatPtr(20),
	})

	tests := []struct {
		name  string
		value float64
		want  Status
	}{
		{"below lower bound", 5, StatusNonCompliant},
		{"inside range", 15, StatusCompliant},
		{"at inclusive upper bound", 20, StatusCompliant},
		{"at inclusive lower bound", 10, StatusCompliant},
		{"above upper bound", 21, StatusNonCompliant},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Evaluate(q, NumberValue(tt.value), nil))
		})
	}
}

func TestEvaluateNumberUnsetBoundsAreUnconstrained(t *testing.T) {
	noBounds := question(tmplmodels.QuestionNumber, true, tmplmodels.Config{})
	assert.Equal(t, StatusCompliant, Evaluate(noBounds, NumberValue(-1e9), nil))

	onlyMin := question(tmplmodels.QuestionNumber, true, tmplmodels.Config{Min: floatPtr(0)})
	assert.Equal(t, StatusCompliant, Evaluate(onlyMin, NumberValue(1e9), nil))
	assert.Equal(t, StatusNonCompliant, Evaluate(onlyMin, NumberValue(-1), nil))
}

func TestEvaluateZeroLowerBound(t *testing.T) {
	// An explicit min of 0 still applies to present values; a skipped optional
	// question short-circuits to compliant before the bound is consulted.
	q := question(tmplmodels.QuestionNumber, false, tmplmodels.Config{Min: floatPtr(0)})

	assert.Equal(t, StatusCompliant, Evaluate(q, NumberValue(0), nil))
	assert.Equal(t, StatusNonCompliant, Evaluate(q, NumberValue(-0.5), nil))
	assert.Equal(t, StatusCompliant, Evaluate(q, NullValue(), nil))
}

func TestEvaluateYesNo(t *testing.T) {
	strict := question(tmplmodels.QuestionYesNo, true, tmplmodels.Config{ExpectedBool: boolPtr(true)})
	lenient := question(tmplmodels.QuestionYesNo, true, tmplmodels.Config{ExpectedBool: boolPtr(true), AllowPartial: true})
	noExpectation := question(tmplmodels.QuestionYesNo, true, tmplmodels.Config{})

	assert.Equal(t, StatusCompliant, Evaluate(strict, BoolValue(true), nil))
	assert.Equal(t, StatusNonCompliant, Evaluate(strict, BoolValue(false), nil))
	assert.Equal(t, StatusPartial, Evaluate(lenient, BoolValue(false), nil))
	assert.Equal(t, StatusCompliant, Evaluate(noExpectation, BoolValue(false), nil))
}

func TestEvaluateSingleSelect(t *testing.T) {
	cfg := tmplmodels.Config{ExpectedOption: "good"}
	strict := question(tmplmodels.QuestionSingleSelect, true, cfg)
	cfg.AllowPartial = true
	lenient := question(tmplmodels.QuestionSingleSelect, true, cfg)

	assert.Equal(t, StatusCompliant, Evaluate(strict, StringValue("good"), nil))
	assert.Equal(t, StatusNonCompliant, Evaluate(strict, StringValue("bad"), nil))
	assert.Equal(t, StatusPartial, Evaluate(lenient, StringValue("bad"), nil))
}

func TestEvaluateMultiSelect(t *testing.T) {
	q := question(tmplmodels.QuestionMultiSelect, true, tmplmodels.Config{
		ExpectedOptions: []string{"a", "b"},
		AllowPartial:    true,
	})

	tests := []struct {
		name      string
		submitted []string
		want      Status
	}{
		{"exact set equality", []string{"a", "b"}, StatusCompliant},
		{"order does not matter", []string{"b", "a"}, StatusCompliant},
		{"partial overlap", []string{"a"}, StatusPartial},
		{"superset is not equality", []string{"a", "b", "c"}, StatusPartial},
		{"zero overlap", []string{"c"}, StatusNonCompliant},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Evaluate(q, ListValue(tt.submitted), nil))
		})
	}
}

func TestEvaluateMultiSelectEmptySubmissionIsSkip(t *testing.T) {
	required := question(tmplmodels.QuestionMultiSelect, true, tmplmodels.Config{
		ExpectedOptions: []string{"a", "b"},
	})
	optional := question(tmplmodels.QuestionMultiSelect, false, tmplmodels.Config{
		ExpectedOptions: []string{"a", "b"},
	})

	assert.Equal(t, StatusNonCompliant, Evaluate(required, ListValue(nil), nil))
	assert.Equal(t, StatusCompliant, Evaluate(optional, ListValue(nil), nil))
}

func TestEvaluateMultiSelectNoStrictPartial(t *testing.T) {
	q := question(tmplmodels.QuestionMultiSelect, true, tmplmodels.Config{
		ExpectedOptions: []string{"a", "b"},
	})
	assert.Equal(t, StatusNonCompliant, Evaluate(q, ListValue([]string{"a"}), nil))
}

func TestEvaluateShortText(t *testing.T) {
	required := question(tmplmodels.QuestionShortText, true, tmplmodels.Config{})
	optional := question(tmplmodels.QuestionShortText, false, tmplmodels.Config{})

	assert.Equal(t, StatusCompliant, Evaluate(required, StringValue("shelf restocked"), nil))
	assert.Equal(t, StatusNonCompliant, Evaluate(required, StringValue(""), nil))
	assert.Equal(t, StatusNonCompliant, Evaluate(required, NullValue(), nil))
	assert.Equal(t, StatusCompliant, Evaluate(optional, NullValue(), nil))
	assert.Equal(t, StatusCompliant, Evaluate(optional, StringValue(""), nil))
}

func TestEvaluatePhoto(t *testing.T) {
	q := question(tmplmodels.QuestionPhoto, true, tmplmodels.Config{
		MinPhotos: intPtr(2), MaxPhotos: intPtr(4),
	})

	assert.Equal(t, StatusNonCompliant, Evaluate(q, NullValue(), []string{"p1"}))
	assert.Equal(t, StatusCompliant, Evaluate(q, NullValue(), []string{"p1", "p2"}))
	assert.Equal(t, StatusCompliant, Evaluate(q, NullValue(), []string{"p1", "p2", "p3", "p4"}))
	assert.Equal(t, StatusNonCompliant, Evaluate(q, NullValue(), []string{"p1", "p2", "p3", "p4", "p5"}))
}

func TestEvaluatePhotoIgnoresValue(t *testing.T) {
	q := question(tmplmodels.QuestionPhoto, true, tmplmodels.Config{MinPhotos: intPtr(1)})
	assert.Equal(t, StatusCompliant, Evaluate(q, StringValue("ignored"), []string{"p1"}))
}

func TestEvaluatePhotoSkipPrecedence(t *testing.T) {
	optional := question(tmplmodels.QuestionPhoto, false, tmplmodels.Config{MinPhotos: intPtr(3)})
	assert.Equal(t, StatusCompliant, Evaluate(optional, NullValue(), nil),
		"skipping an optional photo question is compliant even with a positive lower bound")

	required := question(tmplmodels.QuestionPhoto, true, tmplmodels.Config{MinPhotos: intPtr(3)})
	assert.Equal(t, StatusNonCompliant, Evaluate(required, NullValue(), nil))

	// An explicit zero lower bound on a required question permits empty
	// submissions; the configured bound is authoritative.
	zeroBound := question(tmplmodels.QuestionPhoto, true, tmplmodels.Config{MinPhotos: intPtr(0)})
	assert.Equal(t, StatusCompliant, Evaluate(zeroBound, NullValue(), nil))
}

func TestEvaluateWrongKindIsNonCompliant(t *testing.T) {
	q := question(tmplmodels.QuestionNumber, true, tmplmodels.Config{})
	assert.Equal(t, StatusNonCompliant, Evaluate(q, StringValue("not a number"), nil))
}

func TestEvaluateIsDeterministic(t *testing.T) {
	q := question(tmplmodels.QuestionMultiSelect, true, tmplmodels.Config{
		ExpectedOptions: []string{"a", "b"},
		AllowPartial:    true,
	})
	value := ListValue([]string{"a"})

	first := Evaluate(q, value, nil)
	for i := 0; i < 10; i++ {
		assert.Equal(t, first, Evaluate(q, value, nil))
	}
}
