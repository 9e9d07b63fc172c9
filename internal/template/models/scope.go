package models

import (
	dErrors "patrol/pkg/domain-errors"
	id "patrol/pkg/domain"
)

// ScopeKind discriminates the scope union. Exactly one kind is active per scope.
type ScopeKind string

const (
	// ScopeAll applies the template to every store.
	ScopeAll ScopeKind = "all"
	// ScopeFormats applies the template to stores of the listed formats.
	ScopeFormats ScopeKind = "formats"
	// ScopeStores applies the template to the listed stores only.
	ScopeStores ScopeKind = "stores"
)

// Scope is the predicate deciding which stores a template applies to.
//
// Invariants:
//   - Kind is one of all, formats, stores
//   - formats/stores kinds carry a non-empty member set
//   - members of the inactive kind must be absent
type Scope struct {
	Kind     ScopeKind        `json:"kind" bson:"kind"`
	Formats  []id.StoreFormat `json:"formats,omitempty" bson:"formats,omitempty"`
	StoreIDs []id.StoreID     `json:"store_ids,omitempty" bson:"store_ids,omitempty"`
}

// AllStores is the default scope for new drafts.
func AllStores() Scope {
	return Scope{Kind: ScopeAll}
}

// Validate enforces the scope invariants.
func (s Scope) Validate() error {
	switch s.Kind {
	case ScopeAll:
		if len(s.Formats) > 0 || len(s.StoreIDs) > 0 {
			return dErrors.New(dErrors.CodeInvalidScope, "scope kind all must not carry members")
		}
	case ScopeFormats:
		if len(s.Formats) == 0 {
			return dErrors.New(dErrors.CodeInvalidScope, "scope kind formats requires at least one format")
		}
		if len(s.StoreIDs) > 0 {
			return dErrors.New(dErrors.CodeInvalidScope, "scope kind formats must not carry store ids")
		}
		for _, f := range s.Formats {
			if f.IsZero() {
				return dErrors.New(dErrors.CodeInvalidScope, "scope formats must not contain empty entries")
			}
		}
	case ScopeStores:
		if len(s.StoreIDs) == 0 {
			return dErrors.New(dErrors.CodeInvalidScope, "scope kind stores requires at least one store id")
		}
		if len(s.Formats) > 0 {
			return dErrors.New(dErrors.CodeInvalidScope, "scope kind stores must not carry formats")
		}
		for _, sid := range s.StoreIDs {
			if sid.IsNil() {
				return dErrors.New(dErrors.CodeInvalidScope, "scope store ids must not contain the nil id")
			}
		}
	default:
		return dErrors.Newf(dErrors.CodeInvalidScope, "unknown scope kind %q", s.Kind)
	}
	return nil
}

// Matches reports whether a store falls under this scope.
func (s Scope) Matches(storeID id.StoreID, format id.StoreFormat) bool {
	switch s.Kind {
	case ScopeAll:
		return true
	case ScopeFormats:
		for _, f := range s.Formats {
			if f == format {
				return true
			}
		}
		return false
	case ScopeStores:
		for _, sid := range s.StoreIDs {
			if sid == storeID {
				return true
			}
		}
		return false
	default:
		return false
	}
}

// Specificity orders scope kinds for resolution tie-breaks: stores beat
// formats beat all.
func (s Scope) Specificity() int {
	switch s.Kind {
	case ScopeStores:
		return 2
	case ScopeFormats:
		return 1
	default:
		return 0
	}
}
