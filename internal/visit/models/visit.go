// Package models defines the visit log aggregate: the persisted record of a
// store visit with its evaluated answers and compliance score.
package models

import (
	"time"

	"patrol/internal/compliance"
	dErrors "patrol/pkg/domain-errors"
	id "patrol/pkg/domain"
)

// VisitStatus is the visit lifecycle state. A submitted log is immutable;
// re-submission creates a new log rather than updating history.
type VisitStatus string

const (
	VisitInProgress VisitStatus = "in_progress"
	VisitSubmitted  VisitStatus = "submitted"
)

// ParseVisitStatus validates a visit status value from a request.
func ParseVisitStatus(s string) (VisitStatus, error) {
	switch VisitStatus(s) {
	case VisitInProgress, VisitSubmitted:
		return VisitStatus(s), nil
	case "":
		return "", dErrors.New(dErrors.CodeValidation, "visit status is required")
	default:
		return "", dErrors.Newf(dErrors.CodeValidation, "unknown visit status %q", s)
	}
}

// Answer is one evaluated answer within a visit log. Status is computed by
// the evaluator, never supplied by the caller.
type Answer struct {
	QuestionID  id.QuestionID     `json:"question_id" bson:"question_id"`
	Value       compliance.Value  `json:"value" bson:"value"`
	Attachments []string          `json:"attachments,omitempty" bson:"attachments,omitempty"`
	Status      compliance.Status `json:"compliance_status" bson:"compliance_status"`
}

// VisitLog records one store visit against a specific template version.
type VisitLog struct {
	ID              id.VisitID         `json:"id" bson:"_id"`
	StoreID         id.StoreID         `json:"store_id" bson:"store_id"`
	TemplateID      id.TemplateID      `json:"form_template_id" bson:"form_template_id"`
	RouteID         *id.RouteID        `json:"route_id,omitempty" bson:"route_id,omitempty"`
	AssigneeID      *id.UserID         `json:"assignee_id,omitempty" bson:"assignee_id,omitempty"`
	Status          VisitStatus        `json:"status" bson:"status"`
	VisitDate       time.Time          `json:"visit_date" bson:"visit_date"`
	ComplianceScore float64            `json:"compliance_score" bson:"compliance_score"`
	Summary         compliance.Summary `json:"summary" bson:"summary"`
	Answers         []Answer           `json:"answers" bson:"answers"`
	CreatedAt       time.Time          `json:"created_at" bson:"created_at"`
	CreatedBy       string             `json:"created_by,omitempty" bson:"created_by,omitempty"`
}

// Clone returns a deep copy so the in-memory store never leaks shared slices.
func (v *VisitLog) Clone() *VisitLog {
	cp := *v
	if v.RouteID != nil {
		r := *v.RouteID
		cp.RouteID = &r
	}
	if v.AssigneeID != nil {
		a := *v.AssigneeID
		cp.AssigneeID = &a
	}
	cp.Answers = make([]Answer, len(v.Answers))
	for i, ans := range v.Answers {
		ac := ans
		ac.Attachments = append([]string(nil), ans.Attachments...)
		cp.Answers[i] = ac
	}
	return &cp
}
