package app

import (
	"context"
	"sort"
	"sync"
	"time"

	"attune/domain/core"
	"attune/domain/exchange"
	"attune/internal/sequence"
	"attune/ports"
)

// In-memory repository fakes mirroring the PostgreSQL adapters' contracts.

type fakeAttemptRepo struct {
	mu       sync.Mutex
	attempts map[core.AttemptID]*exchange.Attempt
}

func newFakeAttemptRepo() *fakeAttemptRepo {
	return &fakeAttemptRepo{attempts: make(map[core.AttemptID]*exchange.Attempt)}
}

func (r *fakeAttemptRepo) UpsertAttempt(_ context.Context, attempt *exchange.Attempt) (*exchange.Attempt, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, existing := range r.attempts {
		if existing.SessionID == attempt.SessionID &&
			existing.GuesserID == attempt.GuesserID &&
			existing.SubjectID == attempt.SubjectID {
			existing.Content = attempt.Content
			existing.RevisionCount++
			existing.UpdatedAt = core.Now()
			copied := *existing
			return &copied, nil
		}
	}
	stored := *attempt
	stored.CreatedAt = core.Now()
	stored.UpdatedAt = stored.CreatedAt
	r.attempts[stored.ID] = &stored
	copied := stored
	return &copied, nil
}

func (r *fakeAttemptRepo) GetAttempt(_ context.Context, id core.AttemptID) (*exchange.Attempt, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	attempt, ok := r.attempts[id]
	if !ok {
		return nil, core.ErrAttemptNotFound
	}
	copied := *attempt
	return &copied, nil
}

func (r *fakeAttemptRepo) GetByDirection(_ context.Context, dir exchange.Direction) (*exchange.Attempt, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, attempt := range r.attempts {
		if attempt.SessionID == dir.SessionID &&
			attempt.GuesserID == dir.GuesserID &&
			attempt.SubjectID == dir.SubjectID {
			copied := *attempt
			return &copied, nil
		}
	}
	return nil, core.ErrAttemptNotFound
}

func (r *fakeAttemptRepo) ListSessionAttempts(_ context.Context, sessionID core.SessionID) ([]*exchange.Attempt, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*exchange.Attempt
	for _, attempt := range r.attempts {
		if attempt.SessionID == sessionID {
			copied := *attempt
			out = append(out, &copied)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].SequenceNo < out[j].SequenceNo })
	return out, nil
}

func (r *fakeAttemptRepo) UpdateStatus(_ context.Context, id core.AttemptID, from, to exchange.AttemptStatus) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	attempt, ok := r.attempts[id]
	if !ok {
		return core.ErrAttemptNotFound
	}
	if attempt.Status != from {
		return core.NewInvalidTransitionError(string(attempt.Status), string(to))
	}
	attempt.Status = to
	attempt.UpdatedAt = core.Now()
	return nil
}

func (r *fakeAttemptRepo) UpdateStatusAtRevision(_ context.Context, id core.AttemptID, from, to exchange.AttemptStatus, revision int) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	attempt, ok := r.attempts[id]
	if !ok {
		return core.ErrAttemptNotFound
	}
	if attempt.Status != from || attempt.RevisionCount != revision {
		return core.NewInvalidTransitionError(string(attempt.Status), string(to))
	}
	attempt.Status = to
	attempt.UpdatedAt = core.Now()
	return nil
}

func (r *fakeAttemptRepo) SetDeliveryState(_ context.Context, id core.AttemptID, state exchange.DeliveryState) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	attempt, ok := r.attempts[id]
	if !ok {
		return core.ErrAttemptNotFound
	}
	attempt.DeliveryState = state
	return nil
}

func (r *fakeAttemptRepo) MarkShared(_ context.Context, id core.AttemptID) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	attempt, ok := r.attempts[id]
	if !ok {
		return core.ErrAttemptNotFound
	}
	now := core.Now()
	attempt.SharedAt = &now
	return nil
}

func (r *fakeAttemptRepo) RevealBoth(_ context.Context, a, b core.AttemptID) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	first, ok := r.attempts[a]
	if !ok {
		return false, core.ErrAttemptNotFound
	}
	second, ok := r.attempts[b]
	if !ok {
		return false, core.ErrAttemptNotFound
	}
	if first.Status != exchange.StatusReady || second.Status != exchange.StatusReady {
		return false, nil
	}
	now := core.Now()
	for _, attempt := range []*exchange.Attempt{first, second} {
		attempt.Status = exchange.StatusRevealed
		attempt.RevealedAt = &now
		attempt.DeliveryState = exchange.DeliveryDelivered
	}
	return true, nil
}

func (r *fakeAttemptRepo) MaxSequence(_ context.Context, sessionID core.SessionID) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var max int64
	for _, attempt := range r.attempts {
		if attempt.SessionID == sessionID && attempt.SequenceNo > max {
			max = attempt.SequenceNo
		}
	}
	return max, nil
}

type fakeGapRepo struct {
	mu      sync.Mutex
	results []*exchange.GapAnalysisResult
}

func (r *fakeGapRepo) SaveResult(_ context.Context, result *exchange.GapAnalysisResult) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if !result.Superseded {
		for _, existing := range r.results {
			if existing.AttemptID == result.AttemptID {
				existing.Superseded = true
			}
		}
	}
	stored := *result
	stored.CreatedAt = core.Now()
	r.results = append(r.results, &stored)
	return nil
}

func (r *fakeGapRepo) GetResult(_ context.Context, id core.GapResultID) (*exchange.GapAnalysisResult, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, result := range r.results {
		if result.ID == id {
			copied := *result
			return &copied, nil
		}
	}
	return nil, core.ErrGapResultNotFound
}

func (r *fakeGapRepo) GetLiveResult(_ context.Context, attemptID core.AttemptID) (*exchange.GapAnalysisResult, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, result := range r.results {
		if result.AttemptID == attemptID && !result.Superseded {
			copied := *result
			return &copied, nil
		}
	}
	return nil, core.ErrGapResultNotFound
}

func (r *fakeGapRepo) SupersedeResults(_ context.Context, attemptID core.AttemptID) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, result := range r.results {
		if result.AttemptID == attemptID {
			result.Superseded = true
		}
	}
	return nil
}

func (r *fakeGapRepo) ListResults(_ context.Context, attemptID core.AttemptID) ([]*exchange.GapAnalysisResult, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*exchange.GapAnalysisResult
	for i := len(r.results) - 1; i >= 0; i-- {
		if r.results[i].AttemptID == attemptID {
			copied := *r.results[i]
			out = append(out, &copied)
		}
	}
	return out, nil
}

type fakeShareRepo struct {
	mu      sync.Mutex
	records []*exchange.ShareRecord
}

func (r *fakeShareRepo) RecordShare(_ context.Context, record *exchange.ShareRecord) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	stored := *record
	stored.SharedAt = core.Now()
	r.records = append(r.records, &stored)
	return nil
}

func (r *fakeShareRepo) HasShared(_ context.Context, attemptID core.AttemptID) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, record := range r.records {
		if record.AttemptID == attemptID {
			return true, nil
		}
	}
	return false, nil
}

func (r *fakeShareRepo) ListShares(_ context.Context, attemptID core.AttemptID) ([]*exchange.ShareRecord, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*exchange.ShareRecord
	for _, record := range r.records {
		if record.AttemptID == attemptID {
			copied := *record
			out = append(out, &copied)
		}
	}
	return out, nil
}

type fakeOfferRepo struct {
	mu     sync.Mutex
	offers map[core.OfferID]*exchange.ShareOffer
}

func newFakeOfferRepo() *fakeOfferRepo {
	return &fakeOfferRepo{offers: make(map[core.OfferID]*exchange.ShareOffer)}
}

func (r *fakeOfferRepo) CreateOffer(_ context.Context, offer *exchange.ShareOffer) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	stored := *offer
	stored.CreatedAt = core.Now()
	stored.UpdatedAt = stored.CreatedAt
	r.offers[stored.ID] = &stored
	return nil
}

func (r *fakeOfferRepo) GetOffer(_ context.Context, id core.OfferID) (*exchange.ShareOffer, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	offer, ok := r.offers[id]
	if !ok {
		return nil, core.ErrOfferNotFound
	}
	copied := *offer
	return &copied, nil
}

func (r *fakeOfferRepo) GetOpenOffer(_ context.Context, attemptID core.AttemptID) (*exchange.ShareOffer, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, offer := range r.offers {
		if offer.AttemptID == attemptID && offer.IsOpen() {
			copied := *offer
			return &copied, nil
		}
	}
	return nil, core.ErrOfferNotFound
}

func (r *fakeOfferRepo) CloseOffer(_ context.Context, id core.OfferID, status exchange.OfferStatus, finalContent string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	offer, ok := r.offers[id]
	if !ok {
		return core.ErrOfferNotFound
	}
	if !offer.IsOpen() {
		return core.ErrOfferClosed
	}
	offer.Status = status
	offer.FinalSharedContent = finalContent
	offer.UpdatedAt = core.Now()
	return nil
}

func (r *fakeOfferRepo) MarkOffered(_ context.Context, id core.OfferID) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	offer, ok := r.offers[id]
	if !ok {
		return core.ErrOfferNotFound
	}
	if offer.Status == exchange.OfferPending {
		offer.Status = exchange.OfferOffered
	}
	return nil
}

func (r *fakeOfferRepo) ExpireStale(_ context.Context, olderThan time.Time) ([]*exchange.ShareOffer, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var expired []*exchange.ShareOffer
	for _, offer := range r.offers {
		if offer.IsOpen() && offer.CreatedAt.Time().Before(olderThan) {
			offer.Status = exchange.OfferExpired
			offer.UpdatedAt = core.Now()
			copied := *offer
			expired = append(expired, &copied)
		}
	}
	return expired, nil
}

// backdate rewrites an offer's creation time so expiry tests can age it
func (r *fakeOfferRepo) backdate(id core.OfferID, createdAt time.Time) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if offer, ok := r.offers[id]; ok {
		offer.CreatedAt = core.NewTimestamp(createdAt)
	}
}

type fakeValidationRepo struct {
	mu          sync.Mutex
	validations map[core.AttemptID]*exchange.Validation
	signaled    map[core.SessionID]bool
}

func newFakeValidationRepo() *fakeValidationRepo {
	return &fakeValidationRepo{
		validations: make(map[core.AttemptID]*exchange.Validation),
		signaled:    make(map[core.SessionID]bool),
	}
}

func (r *fakeValidationRepo) SaveValidation(_ context.Context, validation *exchange.Validation) (*exchange.Validation, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if existing, ok := r.validations[validation.AttemptID]; ok {
		existing.Accurate = validation.Accurate
		existing.Feedback = validation.Feedback
		copied := *existing
		return &copied, nil
	}
	stored := *validation
	stored.CreatedAt = core.Now()
	r.validations[stored.AttemptID] = &stored
	copied := stored
	return &copied, nil
}

func (r *fakeValidationRepo) GetByAttempt(_ context.Context, attemptID core.AttemptID) (*exchange.Validation, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	validation, ok := r.validations[attemptID]
	if !ok {
		return nil, core.ErrValidationNotFound
	}
	copied := *validation
	return &copied, nil
}

func (r *fakeValidationRepo) MarkStageSignaled(_ context.Context, sessionID core.SessionID) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.signaled[sessionID] {
		return false, nil
	}
	r.signaled[sessionID] = true
	return true, nil
}

type fakeExpressionRepo struct {
	mu          sync.Mutex
	expressions map[string]*exchange.Expression
}

func newFakeExpressionRepo() *fakeExpressionRepo {
	return &fakeExpressionRepo{expressions: make(map[string]*exchange.Expression)}
}

func expressionKey(sessionID core.SessionID, partyID core.PartyID) string {
	return sessionID.String() + "|" + partyID.String()
}

func (r *fakeExpressionRepo) UpsertExpression(_ context.Context, expr *exchange.Expression) (*exchange.Expression, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	key := expressionKey(expr.SessionID, expr.PartyID)
	if existing, ok := r.expressions[key]; ok {
		existing.Content = expr.Content
		existing.UpdatedAt = core.Now()
		copied := *existing
		return &copied, nil
	}
	stored := *expr
	stored.CreatedAt = core.Now()
	stored.UpdatedAt = stored.CreatedAt
	r.expressions[key] = &stored
	copied := stored
	return &copied, nil
}

func (r *fakeExpressionRepo) GetExpression(_ context.Context, sessionID core.SessionID, partyID core.PartyID) (*exchange.Expression, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	expr, ok := r.expressions[expressionKey(sessionID, partyID)]
	if !ok {
		return nil, core.NewNotFoundError("expression", partyID.String())
	}
	copied := *expr
	return &copied, nil
}

// fakeOracle scripts assessments per guesser so concurrent directions stay
// deterministic. An exhausted or unscripted guesser gets a clean proceed.
type fakeOracle struct {
	mu      sync.Mutex
	scripts map[core.PartyID][]oracleStep
	calls   int
}

type oracleStep struct {
	assessment *ports.GapAssessment
	err        error
}

func newFakeOracle() *fakeOracle {
	return &fakeOracle{scripts: make(map[core.PartyID][]oracleStep)}
}

func (o *fakeOracle) script(guesser core.PartyID, steps ...oracleStep) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.scripts[guesser] = append(o.scripts[guesser], steps...)
}

func (o *fakeOracle) Analyze(_ context.Context, req ports.GapAnalysisRequest) (*ports.GapAssessment, error) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.calls++
	steps := o.scripts[req.GuesserID]
	if len(steps) == 0 {
		return &ports.GapAssessment{
			AlignmentScore: 90,
			GapSeverity:    exchange.SeverityNone,
			Action:         exchange.ActionProceed,
		}, nil
	}
	step := steps[0]
	o.scripts[req.GuesserID] = steps[1:]
	if step.err != nil {
		return nil, step.err
	}
	return step.assessment, nil
}

func proceedStep(score int) oracleStep {
	return oracleStep{assessment: &ports.GapAssessment{
		AlignmentScore: score,
		GapSeverity:    exchange.SeverityMinor,
		Action:         exchange.ActionProceed,
	}}
}

func offerStep(score int, focus string) oracleStep {
	return oracleStep{assessment: &ports.GapAssessment{
		AlignmentScore: score,
		GapSeverity:    exchange.SeveritySignificant,
		Action:         exchange.ActionOfferSharing,
		ShareFocus:     focus,
	}}
}

type fakeDrafter struct {
	suggestion string
	err        error
}

func (d *fakeDrafter) Draft(_ context.Context, _ ports.DraftRequest) (string, error) {
	if d.err != nil {
		return "", d.err
	}
	return d.suggestion, nil
}

type fakeNotifier struct {
	mu     sync.Mutex
	events []string
}

func (n *fakeNotifier) Publish(_ context.Context, _ core.SessionID, eventType string, _ map[string]interface{}) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.events = append(n.events, eventType)
}

func (n *fakeNotifier) count(eventType string) int {
	n.mu.Lock()
	defer n.mu.Unlock()
	total := 0
	for _, event := range n.events {
		if event == eventType {
			total++
		}
	}
	return total
}

type fakeStageCompleter struct {
	mu    sync.Mutex
	calls int
}

func (c *fakeStageCompleter) Complete(_ context.Context, _ core.SessionID) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.calls++
	return nil
}

// engineHarness wires the full service graph over the in-memory fakes
type engineHarness struct {
	attempts    *fakeAttemptRepo
	expressions *fakeExpressionRepo
	gaps        *fakeGapRepo
	shares      *fakeShareRepo
	offerRepo   *fakeOfferRepo
	validations *fakeValidationRepo
	oracle      *fakeOracle
	notifier    *fakeNotifier
	stage       *fakeStageCompleter

	service   *ReconciliationService
	offers    *OfferManager
	reveals   *RevealCoordinator
	validator *ValidationTracker
	insights  *InsightsService
}

func newEngineHarness() *engineHarness {
	h := &engineHarness{
		attempts:    newFakeAttemptRepo(),
		expressions: newFakeExpressionRepo(),
		gaps:        &fakeGapRepo{},
		shares:      &fakeShareRepo{},
		offerRepo:   newFakeOfferRepo(),
		validations: newFakeValidationRepo(),
		oracle:      newFakeOracle(),
		notifier:    &fakeNotifier{},
		stage:       &fakeStageCompleter{},
	}
	h.reveals = NewRevealCoordinator(h.attempts, h.notifier)
	h.offers = NewOfferManager(h.offerRepo, h.shares, h.gaps, h.attempts,
		&fakeDrafter{suggestion: "I felt overlooked when the decision was made without me"},
		h.notifier, h.reveals, 24*time.Hour)
	h.service = NewReconciliationService(h.attempts, h.expressions, h.gaps,
		h.validations, h.oracle, h.notifier, h.offers, h.reveals,
		sequence.NewAllocator(), 3)
	h.validator = NewValidationTracker(h.attempts, h.validations, h.notifier, h.stage)
	h.insights = NewInsightsService(h.attempts, h.gaps, h.shares)
	return h
}
