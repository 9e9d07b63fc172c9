package models

import (
	"time"

	dErrors "patrol/pkg/domain-errors"
	id "patrol/pkg/domain"
)

// Status is the template lifecycle state.
type Status string

const (
	StatusDraft     Status = "draft"
	StatusPublished Status = "published"
	StatusArchived  Status = "archived"
)

// CanTransitionTo encodes the lifecycle state machine:
// draft → published → archived, nothing out of archived.
func (s Status) CanTransitionTo(target Status) bool {
	switch s {
	case StatusDraft:
		return target == StatusPublished
	case StatusPublished:
		return target == StatusArchived
	default:
		return false
	}
}

// FormTemplate is the aggregate root for one concrete version of a form
// template.
//
// Invariants:
//   - Version is positive and monotonically increasing within a lineage
//   - Question order values are unique within the template
//   - Scope satisfies Scope.Validate
//   - At most one version per lineage is published at a time (enforced by the
//     store's PublishExclusive, not by this struct)
//   - Questions and scope are immutable once the template leaves draft
type FormTemplate struct {
	ID          id.TemplateID `json:"id" bson:"_id"`
	LineageID   id.LineageID  `json:"lineage_id" bson:"lineage_id"`
	Name        string        `json:"name" bson:"name"`
	Description string        `json:"description,omitempty" bson:"description,omitempty"`
	Version     int           `json:"version" bson:"version"`
	Status      Status        `json:"status" bson:"status"`
	Scope       Scope         `json:"scope" bson:"scope"`
	Questions   []Question    `json:"questions" bson:"questions"`
	CreatedAt   time.Time     `json:"created_at" bson:"created_at"`
	UpdatedAt   time.Time     `json:"updated_at" bson:"updated_at"`
	CreatedBy   string        `json:"created_by,omitempty" bson:"created_by,omitempty"`
	UpdatedBy   string        `json:"updated_by,omitempty" bson:"updated_by,omitempty"`
}

// NewFormTemplate creates a draft. Version and lineage are assigned by the
// service (new lineage → version 1, existing lineage → next version).
func NewFormTemplate(templateID id.TemplateID, lineageID id.LineageID, version int, name, description string, scope Scope, questions []Question, now time.Time, createdBy string) (*FormTemplate, error) {
	if name == "" {
		return nil, dErrors.New(dErrors.CodeValidation, "template name is required")
	}
	if version < 1 {
		return nil, dErrors.New(dErrors.CodeInvariantViolation, "template version must be positive")
	}
	if err := scope.Validate(); err != nil {
		return nil, err
	}
	if err := ValidateQuestions(questions); err != nil {
		return nil, err
	}
	return &FormTemplate{
		ID:          templateID,
		LineageID:   lineageID,
		Name:        name,
		Description: description,
		Version:     version,
		Status:      StatusDraft,
		Scope:       scope,
		Questions:   questions,
		CreatedAt:   now,
		UpdatedAt:   now,
		CreatedBy:   createdBy,
		UpdatedBy:   createdBy,
	}, nil
}

// ValidateQuestions checks each question plus the cross-question invariants
// (unique ids, unique order values).
func ValidateQuestions(questions []Question) error {
	orders := make(map[int]struct{}, len(questions))
	ids := make(map[id.QuestionID]struct{}, len(questions))
	for _, q := range questions {
		if err := q.Validate(); err != nil {
			return err
		}
		if _, dup := orders[q.Order]; dup {
			return dErrors.Newf(dErrors.CodeValidation, "duplicate question order %d", q.Order)
		}
		orders[q.Order] = struct{}{}
		if _, dup := ids[q.ID]; dup {
			return dErrors.Newf(dErrors.CodeValidation, "duplicate question id %s", q.ID)
		}
		ids[q.ID] = struct{}{}
	}
	return nil
}

// CanUpdate checks that the template still accepts edits.
func (t *FormTemplate) CanUpdate() error {
	if t.Status != StatusDraft {
		return dErrors.Newf(dErrors.CodeImmutable, "template is %s; only drafts can be edited", t.Status)
	}
	return nil
}

// CanPublish checks the publish transition.
func (t *FormTemplate) CanPublish() error {
	if !t.Status.CanTransitionTo(StatusPublished) {
		return dErrors.Newf(dErrors.CodeInvalidState, "cannot publish a %s template", t.Status)
	}
	return nil
}

// ApplyPublish transitions the draft to published, optionally replacing its
// scope. Call CanPublish (and validate the scope) first.
func (t *FormTemplate) ApplyPublish(scope *Scope, now time.Time, actor string) {
	if scope != nil {
		t.Scope = *scope
	}
	t.Status = StatusPublished
	t.UpdatedAt = now
	if actor != "" {
		t.UpdatedBy = actor
	}
}

// CanArchive checks the archive transition.
func (t *FormTemplate) CanArchive() error {
	if !t.Status.CanTransitionTo(StatusArchived) {
		return dErrors.Newf(dErrors.CodeInvalidState, "cannot archive a %s template", t.Status)
	}
	return nil
}

// ApplyArchive transitions the template to archived.
func (t *FormTemplate) ApplyArchive(now time.Time, actor string) {
	t.Status = StatusArchived
	t.UpdatedAt = now
	if actor != "" {
		t.UpdatedBy = actor
	}
}

// QuestionByID looks up a question of this template.
func (t *FormTemplate) QuestionByID(questionID id.QuestionID) (Question, bool) {
	for _, q := range t.Questions {
		if q.ID == questionID {
			return q, true
		}
	}
	return Question{}, false
}

// Clone returns a deep copy so the in-memory store never leaks shared slices.
func (t *FormTemplate) Clone() *FormTemplate {
	cp := *t
	cp.Scope.Formats = append([]id.StoreFormat(nil), t.Scope.Formats...)
	cp.Scope.StoreIDs = append([]id.StoreID(nil), t.Scope.StoreIDs...)
	cp.Questions = make([]Question, len(t.Questions))
	for i, q := range t.Questions {
		qc := q
		qc.Options = append([]Option(nil), q.Options...)
		qc.Config.ExpectedOptions = append([]string(nil), q.Config.ExpectedOptions...)
		if q.Config.ExpectedBool != nil {
			v := *q.Config.ExpectedBool
			qc.Config.ExpectedBool = &v
		}
		if q.Config.Min != nil {
			v := *q.Config.Min
			qc.Config.Min = &v
		}
		if q.Config.Max != nil {
			v := *q.Config.Max
			qc.Config.Max = &v
		}
		if q.Config.MinPhotos != nil {
			v := *q.Config.MinPhotos
			qc.Config.MinPhotos = &v
		}
		if q.Config.MaxPhotos != nil {
			v := *q.Config.MaxPhotos
			qc.Config.MaxPhotos = &v
		}
		cp.Questions[i] = qc
	}
	return &cp
}
