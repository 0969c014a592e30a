package core

import (
	"fmt"
	"strings"

	"github.com/google/uuid"
)

// ID represents a domain identifier
type ID string

// NewID creates a new unique identifier using UUID v7 for time-ordered generation
func NewID() ID {
	// Use UUID v7 for time-ordered, sortable IDs
	// Falls back to v4 if v7 is not available (for compatibility)
	id, err := uuid.NewV7()
	if err != nil {
		// Fallback to v4 if v7 fails
		id = uuid.New()
	}
	return ID(id.String())
}

// String returns the string representation
func (id ID) String() string {
	return string(id)
}

// IsEmpty checks if the ID is empty
func (id ID) IsEmpty() bool {
	return id == ""
}

// Domain-specific ID types
type (
	SessionID   ID
	PartyID     ID
	AttemptID   ID
	GapResultID ID
	OfferID     ID
)

// String conversions for domain IDs
func (id SessionID) String() string   { return ID(id).String() }
func (id PartyID) String() string     { return ID(id).String() }
func (id AttemptID) String() string   { return ID(id).String() }
func (id GapResultID) String() string { return ID(id).String() }
func (id OfferID) String() string     { return ID(id).String() }

// ParseSessionID parses a string into SessionID
func ParseSessionID(s string) (SessionID, error) {
	if strings.TrimSpace(s) == "" {
		return "", fmt.Errorf("session ID cannot be empty")
	}
	return SessionID(s), nil
}

// ParsePartyID parses a string into PartyID
func ParsePartyID(s string) (PartyID, error) {
	if strings.TrimSpace(s) == "" {
		return "", fmt.Errorf("party ID cannot be empty")
	}
	return PartyID(s), nil
}

// ParseAttemptID parses a string into AttemptID
func ParseAttemptID(s string) (AttemptID, error) {
	if strings.TrimSpace(s) == "" {
		return "", fmt.Errorf("attempt ID cannot be empty")
	}
	return AttemptID(s), nil
}

// ParseOfferID parses a string into OfferID
func ParseOfferID(s string) (OfferID, error) {
	if strings.TrimSpace(s) == "" {
		return "", fmt.Errorf("offer ID cannot be empty")
	}
	return OfferID(s), nil
}
