package audit

import "time"

// Event is emitted from domain logic to capture key actions. Keep it
// transport-agnostic so sinks can fan out (Kafka, memory, future stores).
type Event struct {
	Timestamp time.Time `json:"timestamp"`
	Action    Action    `json:"action"`
	// Subject is the primary entity the action acted on (template or visit id).
	Subject string `json:"subject"`
	// LineageID is set for template lifecycle events.
	LineageID string `json:"lineage_id,omitempty"`
	// StoreID is set for visit events.
	StoreID string `json:"store_id,omitempty"`
	// ActorID tracks who performed the action when the request carried a token.
	ActorID string `json:"actor_id,omitempty"`
	// RequestID is the correlation id from the HTTP request context.
	RequestID string `json:"request_id,omitempty"`
	// Detail carries one short qualifier (e.g. the archived sibling's id).
	Detail string `json:"detail,omitempty"`
}

// Action names an auditable domain action.
type Action string

const (
	ActionTemplateCreated   Action = "template_created"
	ActionTemplateUpdated   Action = "template_updated"
	ActionTemplatePublished Action = "template_published"
	ActionTemplateArchived  Action = "template_archived"
	ActionTemplateDeleted   Action = "template_deleted"
	ActionVisitRecorded     Action = "visit_recorded"
)

// Sink receives events from the publisher. Implementations must be safe for
// concurrent use.
type Sink interface {
	Append(event Event) error
	Close() error
}
