package models

import (
	"time"

	"patrol/internal/compliance"
	id "patrol/pkg/domain"
)

// AnswerInput is one submitted answer. The value's JSON shape is sniffed into
// the union; the compliance status is never accepted from the caller.
type AnswerInput struct {
	QuestionID  string           `json:"question_id"`
	Value       compliance.Value `json:"value"`
	Attachments []string         `json:"attachments"`
}

// RecordVisitRequest is the payload for recording a visit.
type RecordVisitRequest struct {
	StoreID    string        `json:"store_id"`
	TemplateID string        `json:"form_template_id"`
	RouteID    string        `json:"route_id,omitempty"`
	AssigneeID string        `json:"assignee_id,omitempty"`
	Status     string        `json:"status"`
	VisitDate  *time.Time    `json:"visit_date,omitempty"`
	Answers    []AnswerInput `json:"answers"`
}

// ParsedAnswer pairs a validated question id with its submitted value.
type ParsedAnswer struct {
	QuestionID  id.QuestionID
	Value       compliance.Value
	Attachments []string
}
