package models

import (
	dErrors "patrol/pkg/domain-errors"
	id "patrol/pkg/domain"
)

// CreateTemplateRequest creates a new draft. Supplying a lineage id starts the
// next version of an existing lineage; omitting it starts a new lineage at
// version 1.
type CreateTemplateRequest struct {
	Name        string          `json:"name"`
	Description string          `json:"description,omitempty"`
	LineageID   string          `json:"lineage_id,omitempty"`
	Scope       *Scope          `json:"scope,omitempty"`
	Questions   []QuestionInput `json:"questions"`
}

// UpdateTemplateRequest edits a draft. Nil fields are left unchanged.
type UpdateTemplateRequest struct {
	Name        *string          `json:"name,omitempty"`
	Description *string          `json:"description,omitempty"`
	Scope       *Scope           `json:"scope,omitempty"`
	Questions   *[]QuestionInput `json:"questions,omitempty"`
}

// PublishTemplateRequest optionally overrides the draft's scope at publish
// time.
type PublishTemplateRequest struct {
	Scope *Scope `json:"scope,omitempty"`
}

// QuestionInput is the wire shape of a question definition.
type QuestionInput struct {
	Type        string      `json:"type"`
	Title       string      `json:"title"`
	Description string      `json:"description,omitempty"`
	Required    bool        `json:"required"`
	Order       int         `json:"order"`
	Options     []Option    `json:"options,omitempty"`
	Config      ConfigInput `json:"config"`
}

// ConfigInput is the wire shape of the compliance config. Weight is a pointer
// so an omitted weight defaults to 1 while an explicit 0 stays 0.
type ConfigInput struct {
	Weight          *float64 `json:"weight,omitempty"`
	ExpectedBool    *bool    `json:"expected_bool,omitempty"`
	ExpectedOption  string   `json:"expected_option,omitempty"`
	ExpectedOptions []string `json:"expected_options,omitempty"`
	Min             *float64 `json:"min,omitempty"`
	Max             *float64 `json:"max,omitempty"`
	MinPhotos       *int     `json:"min_photos,omitempty"`
	MaxPhotos       *int     `json:"max_photos,omitempty"`
	AllowPartial    bool     `json:"allow_partial,omitempty"`
}

// BuildQuestions converts question inputs into domain questions, assigning
// fresh ids and applying the default weight. Validation happens at the
// aggregate level afterwards.
func BuildQuestions(inputs []QuestionInput) ([]Question, error) {
	questions := make([]Question, len(inputs))
	for i, in := range inputs {
		qType, err := ParseQuestionType(in.Type)
		if err != nil {
			return nil, err
		}
		weight := 1.0
		if in.Config.Weight != nil {
			weight = *in.Config.Weight
		}
		questions[i] = Question{
			ID:          id.NewQuestionID(),
			Type:        qType,
			Title:       in.Title,
			Description: in.Description,
			Required:    in.Required,
			Order:       in.Order,
			Options:     in.Options,
			Config: Config{
				Weight:          weight,
				ExpectedBool:    in.Config.ExpectedBool,
				ExpectedOption:  in.Config.ExpectedOption,
				ExpectedOptions: in.Config.ExpectedOptions,
				Min:             in.Config.Min,
				Max:             in.Config.Max,
				MinPhotos:       in.Config.MinPhotos,
				MaxPhotos:       in.Config.MaxPhotos,
				AllowPartial:    in.Config.AllowPartial,
			},
		}
	}
	return questions, nil
}

// ParseOptionalLineageID parses the lineage field of a create request.
func ParseOptionalLineageID(s string) (*id.LineageID, error) {
	if s == "" {
		return nil, nil
	}
	lineageID, err := id.ParseLineageID(s)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInvalidInput, "invalid lineage id")
	}
	return &lineageID, nil
}
