// Package domain holds shared domain primitives: typed identifiers and the
// store format code. IDs are distinct UUID-backed types so the compiler rejects
// cross-entity mixups (a TemplateID can never be passed where a StoreID is due).
package domain

import (
	"github.com/google/uuid"

	dErrors "patrol/pkg/domain-errors"
)

type (
	// TemplateID identifies one concrete version of a form template.
	TemplateID uuid.UUID
	// LineageID identifies a form template across versions.
	LineageID uuid.UUID
	// QuestionID identifies a question within a template version.
	QuestionID uuid.UUID
	// StoreID identifies a store (master data owned by the surrounding system).
	StoreID uuid.UUID
	// VisitID identifies a recorded visit log.
	VisitID uuid.UUID
	// RouteID identifies a supervision route.
	RouteID uuid.UUID
	// UserID identifies a user for attribution fields.
	UserID uuid.UUID
)

// StoreFormat is a free-form store format code (e.g. "hypermarket",
// "convenience"). Formats are master data validated by the caller; the engine
// only compares them.
type StoreFormat string

func (f StoreFormat) IsZero() bool { return f == "" }

func parseUUID(s, what string) (uuid.UUID, error) {
	if s == "" {
		return uuid.Nil, dErrors.Newf(dErrors.CodeInvalidInput, "%s is required", what)
	}
	u, err := uuid.Parse(s)
	if err != nil {
		return uuid.Nil, dErrors.Newf(dErrors.CodeInvalidInput, "%s is not a valid UUID", what)
	}
	if u == uuid.Nil {
		return uuid.Nil, dErrors.Newf(dErrors.CodeInvalidInput, "%s must not be the nil UUID", what)
	}
	return u, nil
}

// ParseTemplateID validates and returns a TemplateID.
func ParseTemplateID(s string) (TemplateID, error) {
	u, err := parseUUID(s, "template id")
	return TemplateID(u), err
}

// ParseLineageID validates and returns a LineageID.
func ParseLineageID(s string) (LineageID, error) {
	u, err := parseUUID(s, "lineage id")
	return LineageID(u), err
}

// ParseQuestionID validates and returns a QuestionID.
func ParseQuestionID(s string) (QuestionID, error) {
	u, err := parseUUID(s, "question id")
	return QuestionID(u), err
}

// ParseStoreID validates and returns a StoreID.
func ParseStoreID(s string) (StoreID, error) {
	u, err := parseUUID(s, "store id")
	return StoreID(u), err
}

// ParseVisitID validates and returns a VisitID.
func ParseVisitID(s string) (VisitID, error) {
	u, err := parseUUID(s, "visit id")
	return VisitID(u), err
}

// ParseRouteID validates and returns a RouteID.
func ParseRouteID(s string) (RouteID, error) {
	u, err := parseUUID(s, "route id")
	return RouteID(u), err
}

// ParseUserID validates and returns a UserID.
func ParseUserID(s string) (UserID, error) {
	u, err := parseUUID(s, "user id")
	return UserID(u), err
}

func (id TemplateID) String() string { return uuid.UUID(id).String() }
func (id LineageID) String() string  { return uuid.UUID(id).String() }
func (id QuestionID) String() string { return uuid.UUID(id).String() }
func (id StoreID) String() string    { return uuid.UUID(id).String() }
func (id VisitID) String() string    { return uuid.UUID(id).String() }
func (id RouteID) String() string    { return uuid.UUID(id).String() }
func (id UserID) String() string     { return uuid.UUID(id).String() }

func (id TemplateID) IsNil() bool { return uuid.UUID(id) == uuid.Nil }
func (id LineageID) IsNil() bool  { return uuid.UUID(id) == uuid.Nil }
func (id QuestionID) IsNil() bool { return uuid.UUID(id) == uuid.Nil }
func (id StoreID) IsNil() bool    { return uuid.UUID(id) == uuid.Nil }
func (id VisitID) IsNil() bool    { return uuid.UUID(id) == uuid.Nil }
func (id RouteID) IsNil() bool    { return uuid.UUID(id) == uuid.Nil }
func (id UserID) IsNil() bool     { return uuid.UUID(id) == uuid.Nil }

// NewTemplateID returns a fresh random TemplateID.
func NewTemplateID() TemplateID { return TemplateID(uuid.New()) }

// NewLineageID returns a fresh random LineageID.
func NewLineageID() LineageID { return LineageID(uuid.New()) }

// NewQuestionID returns a fresh random QuestionID.
func NewQuestionID() QuestionID { return QuestionID(uuid.New()) }

// NewVisitID returns a fresh random VisitID.
func NewVisitID() VisitID { return VisitID(uuid.New()) }

// MarshalText implementations keep ids stable across JSON and BSON codecs.
func (id TemplateID) MarshalText() ([]byte, error) { return []byte(id.String()), nil }
func (id LineageID) MarshalText() ([]byte, error)  { return []byte(id.String()), nil }
func (id QuestionID) MarshalText() ([]byte, error) { return []byte(id.String()), nil }
func (id StoreID) MarshalText() ([]byte, error)    { return []byte(id.String()), nil }
func (id VisitID) MarshalText() ([]byte, error)    { return []byte(id.String()), nil }
func (id RouteID) MarshalText() ([]byte, error)    { return []byte(id.String()), nil }
func (id UserID) MarshalText() ([]byte, error)     { return []byte(id.String()), nil }

func (id *TemplateID) UnmarshalText(b []byte) error {
	parsed, err := ParseTemplateID(string(b))
	if err != nil {
		return err
	}
	*id = parsed
	return nil
}

func (id *LineageID) UnmarshalText(b []byte) error {
	parsed, err := ParseLineageID(string(b))
	if err != nil {
		return err
	}
	*id = parsed
	return nil
}

func (id *QuestionID) UnmarshalText(b []byte) error {
	parsed, err := ParseQuestionID(string(b))
	if err != nil {
		return err
	}
	*id = parsed
	return nil
}

func (id *StoreID) UnmarshalText(b []byte) error {
	parsed, err := ParseStoreID(string(b))
	if err != nil {
		return err
	}
	*id = parsed
	return nil
}

func (id *VisitID) UnmarshalText(b []byte) error {
	parsed, err := ParseVisitID(string(b))
	if err != nil {
		return err
	}
	*id = parsed
	return nil
}

func (id *RouteID) UnmarshalText(b []byte) error {
	parsed, err := ParseRouteID(string(b))
	if err != nil {
		return err
	}
	*id = parsed
	return nil
}

func (id *UserID) UnmarshalText(b []byte) error {
	parsed, err := ParseUserID(string(b))
	if err != nil {
		return err
	}
	*id = parsed
	return nil
}
