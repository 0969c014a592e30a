package exchange

import (
	"strings"

	"attune/domain/core"
)

// AttemptStatus represents where a direction sits in the reconciliation machine
type AttemptStatus string

const (
	StatusHeld            AttemptStatus = "held"             // submitted, waiting on the subject's prerequisite step
	StatusAnalyzing       AttemptStatus = "analyzing"        // gap analysis in flight
	StatusAwaitingSharing AttemptStatus = "awaiting_sharing" // share offer open, waiting on the subject
	StatusRefining        AttemptStatus = "refining"         // guesser has new context, expected to resubmit
	StatusReady           AttemptStatus = "ready"            // eligible for mutual reveal
	StatusRevealed        AttemptStatus = "revealed"         // visible to the subject
	StatusValidated       AttemptStatus = "validated"        // subject recorded a verdict (terminal)
)

// DeliveryState tracks client-facing delivery of attempt content
type DeliveryState string

const (
	DeliverySending    DeliveryState = "sending"
	DeliveryPending    DeliveryState = "pending"
	DeliveryDelivered  DeliveryState = "delivered"
	DeliverySeen       DeliveryState = "seen"
	DeliverySuperseded DeliveryState = "superseded"
)

// Direction identifies one ordered (guesser, subject) pair within a session.
// Each session has exactly two directions.
type Direction struct {
	SessionID core.SessionID
	GuesserID core.PartyID
	SubjectID core.PartyID
}

// Reverse returns the opposite direction of the same session
func (d Direction) Reverse() Direction {
	return Direction{
		SessionID: d.SessionID,
		GuesserID: d.SubjectID,
		SubjectID: d.GuesserID,
	}
}

// Attempt is one party's guess about the other's feelings. One per direction;
// never deleted, only superseded on resubmission.
type Attempt struct {
	ID            core.AttemptID  `db:"id" json:"id"`
	SessionID     core.SessionID  `db:"session_id" json:"session_id"`
	GuesserID     core.PartyID    `db:"guesser_id" json:"guesser_id"`
	SubjectID     core.PartyID    `db:"subject_id" json:"subject_id"`
	Content       string          `db:"content" json:"content"`
	Status        AttemptStatus   `db:"status" json:"status"`
	RevisionCount int             `db:"revision_count" json:"revision_count"`
	DeliveryState DeliveryState   `db:"delivery_state" json:"delivery_state"`
	SequenceNo    int64           `db:"sequence_no" json:"sequence_no"`
	SharedAt      *core.Timestamp `db:"shared_at" json:"shared_at,omitempty"`
	RevealedAt    *core.Timestamp `db:"revealed_at" json:"revealed_at,omitempty"`
	CreatedAt     core.Timestamp  `db:"created_at" json:"created_at"`
	UpdatedAt     core.Timestamp  `db:"updated_at" json:"updated_at"`
}

// Direction returns the attempt's direction key
func (a *Attempt) Direction() Direction {
	return Direction{SessionID: a.SessionID, GuesserID: a.GuesserID, SubjectID: a.SubjectID}
}

// IsTerminal reports whether the attempt can no longer transition
func (a *Attempt) IsTerminal() bool {
	return a.Status == StatusValidated
}

// GapSeverity grades the mismatch between guess and actual content
type GapSeverity string

const (
	SeverityNone        GapSeverity = "none"
	SeverityMinor       GapSeverity = "minor"
	SeverityModerate    GapSeverity = "moderate"
	SeveritySignificant GapSeverity = "significant"
)

// RecommendedAction is the oracle's routing recommendation
type RecommendedAction string

const (
	ActionProceed       RecommendedAction = "proceed"
	ActionOfferOptional RecommendedAction = "offer_optional"
	ActionOfferSharing  RecommendedAction = "offer_sharing"
)

// GapAnalysisResult is one oracle verdict for a direction. At most one live
// result per direction; a prior result is superseded (never deleted) when the
// guesser resubmits.
type GapAnalysisResult struct {
	ID             core.GapResultID  `db:"id" json:"id"`
	AttemptID      core.AttemptID    `db:"attempt_id" json:"attempt_id"`
	AlignmentScore int               `db:"alignment_score" json:"alignment_score"` // 0-100
	GapSeverity    GapSeverity       `db:"gap_severity" json:"gap_severity"`
	Action         RecommendedAction `db:"recommended_action" json:"recommended_action"`
	ShareFocus     string            `db:"share_focus" json:"share_focus,omitempty"`
	Superseded     bool              `db:"superseded" json:"superseded"`
	CreatedAt      core.Timestamp    `db:"created_at" json:"created_at"`
}

// WantsSharing reports whether this result should open a share offer.
// offer_optional with no share focus is treated like proceed.
func (r *GapAnalysisResult) WantsSharing() bool {
	switch r.Action {
	case ActionOfferSharing:
		return true
	case ActionOfferOptional:
		return strings.TrimSpace(r.ShareFocus) != ""
	default:
		return false
	}
}

// GapFingerprint identifies "substantially the same gap" for the anti-loop
// guard: the normalized share focus hashed with the direction's attempt.
func (r *GapAnalysisResult) GapFingerprint() core.Hash {
	focus := strings.ToLower(strings.Join(strings.Fields(r.ShareFocus), " "))
	return core.NewHash([]byte(r.AttemptID.String() + "|" + focus))
}

// OfferStatus tracks the share offer lifecycle
type OfferStatus string

const (
	OfferPending  OfferStatus = "pending"
	OfferOffered  OfferStatus = "offered"
	OfferAccepted OfferStatus = "accepted"
	OfferDeclined OfferStatus = "declined"
	OfferExpired  OfferStatus = "expired"
)

// ShareOffer invites the subject to volunteer extra context. 1:1 with the gap
// result that spawned it. The historical fact of sharing outlives the parent
// result's supersession via ShareRecord.
type ShareOffer struct {
	ID                 core.OfferID     `db:"id" json:"id"`
	GapResultID        core.GapResultID `db:"gap_result_id" json:"gap_result_id"`
	AttemptID          core.AttemptID   `db:"attempt_id" json:"attempt_id"`
	Status             OfferStatus      `db:"status" json:"status"`
	SuggestedContent   string           `db:"suggested_content" json:"suggested_content,omitempty"`
	FinalSharedContent string           `db:"final_shared_content" json:"final_shared_content,omitempty"`
	CreatedAt          core.Timestamp   `db:"created_at" json:"created_at"`
	UpdatedAt          core.Timestamp   `db:"updated_at" json:"updated_at"`
}

// IsOpen reports whether the offer can still be answered
func (o *ShareOffer) IsOpen() bool {
	return o.Status == OfferPending || o.Status == OfferOffered
}

// OfferResponse is the subject's answer to a share offer
type OfferResponse string

const (
	ResponseAccept  OfferResponse = "accept"  // share the suggested content as-is
	ResponseRefine  OfferResponse = "refine"  // subject edited the suggestion before sharing
	ResponseDecline OfferResponse = "decline" // skip sharing, proceed as-is
)

// ShareRecord is the durable per-direction memory that context was shared.
// It survives gap-result supersession; the anti-loop gate reads it.
type ShareRecord struct {
	ID             core.ID        `db:"id" json:"id"`
	AttemptID      core.AttemptID `db:"attempt_id" json:"attempt_id"`
	GapFingerprint core.Hash      `db:"gap_fingerprint" json:"gap_fingerprint"`
	SharedContent  string         `db:"shared_content" json:"shared_content"`
	SharedAt       core.Timestamp `db:"shared_at" json:"shared_at"`
}

// Expression is a party's own statement of what they feel. Completing it is
// the prerequisite the reverse direction's analysis waits on, and it is the
// "actual" side of every oracle comparison.
type Expression struct {
	ID        core.ID        `db:"id" json:"id"`
	SessionID core.SessionID `db:"session_id" json:"session_id"`
	PartyID   core.PartyID   `db:"party_id" json:"party_id"`
	Content   string         `db:"content" json:"content"`
	CreatedAt core.Timestamp `db:"created_at" json:"created_at"`
	UpdatedAt core.Timestamp `db:"updated_at" json:"updated_at"`
}

// Validation is the subject's verdict on a revealed guess
type Validation struct {
	ID        core.ID        `db:"id" json:"id"`
	AttemptID core.AttemptID `db:"attempt_id" json:"attempt_id"`
	SubjectID core.PartyID   `db:"subject_id" json:"subject_id"`
	Accurate  bool           `db:"accurate" json:"accurate"`
	Feedback  string         `db:"feedback" json:"feedback,omitempty"`
	CreatedAt core.Timestamp `db:"created_at" json:"created_at"`
}
