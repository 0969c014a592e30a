package app

import (
	"context"
	"fmt"
	"log"
	"strings"

	"attune/domain/core"
	"attune/domain/exchange"
	"attune/internal/sequence"
	"attune/ports"

	"golang.org/x/sync/errgroup"
)

// ReconciliationService orchestrates the per-direction attempt lifecycle:
// intake, gap analysis dispatch, routing of assessments, and the handoff to
// sharing or reveal.
type ReconciliationService struct {
	attempts    ports.AttemptRepository
	expressions ports.ExpressionRepository
	gaps        ports.GapResultRepository
	validations ports.ValidationRepository
	oracle      ports.GapOracle
	notifier    ports.Notifier
	offers      *OfferManager
	reveals     *RevealCoordinator
	sequences   *sequence.Allocator

	maxRefinementCycles int
}

// NewReconciliationService creates the orchestrator
func NewReconciliationService(
	attempts ports.AttemptRepository,
	expressions ports.ExpressionRepository,
	gaps ports.GapResultRepository,
	validations ports.ValidationRepository,
	oracle ports.GapOracle,
	notifier ports.Notifier,
	offers *OfferManager,
	reveals *RevealCoordinator,
	sequences *sequence.Allocator,
	maxRefinementCycles int,
) *ReconciliationService {
	return &ReconciliationService{
		attempts:            attempts,
		expressions:         expressions,
		gaps:                gaps,
		validations:         validations,
		oracle:              oracle,
		notifier:            notifier,
		offers:              offers,
		reveals:             reveals,
		sequences:           sequences,
		maxRefinementCycles: maxRefinementCycles,
	}
}

// Submit records a guesser's attempt at articulating the other party's
// feelings. A first submission creates the attempt in held; a held attempt
// accepts content updates in place; a refining attempt re-enters analysis.
// Any other status rejects the write.
func (s *ReconciliationService) Submit(ctx context.Context, dir exchange.Direction, content string) (*exchange.Attempt, error) {
	content = strings.TrimSpace(content)
	if content == "" {
		return nil, fmt.Errorf("attempt content is empty")
	}
	if dir.GuesserID == dir.SubjectID {
		return nil, fmt.Errorf("guesser and subject must be distinct parties")
	}

	s.seedSequence(ctx, dir.SessionID)

	existing, err := s.attempts.GetByDirection(ctx, dir)
	if err != nil && !core.IsNotFoundError(err) {
		return nil, fmt.Errorf("failed to load attempt: %w", err)
	}

	switch {
	case existing == nil:
		attempt := &exchange.Attempt{
			ID:            core.AttemptID(core.NewID()),
			SessionID:     dir.SessionID,
			GuesserID:     dir.GuesserID,
			SubjectID:     dir.SubjectID,
			Content:       content,
			Status:        exchange.StatusHeld,
			DeliveryState: exchange.DeliveryPending,
			SequenceNo:    s.sequences.Next(dir.SessionID.String()),
		}
		saved, err := s.attempts.UpsertAttempt(ctx, attempt)
		if err != nil {
			return nil, fmt.Errorf("failed to store attempt: %w", err)
		}
		s.notifier.Publish(ctx, dir.SessionID, ports.EventAttemptSubmitted, map[string]interface{}{
			"attempt_id": saved.ID.String(),
			"guesser_id": saved.GuesserID.String(),
		})
		if err := s.maybeAnalyze(ctx, dir.SessionID); err != nil {
			return nil, err
		}
		return s.attempts.GetAttempt(ctx, saved.ID)

	case existing.Status == exchange.StatusHeld:
		// Content edit while waiting for the subject's side. No state change.
		existing.Content = content
		saved, err := s.attempts.UpsertAttempt(ctx, existing)
		if err != nil {
			return nil, fmt.Errorf("failed to update attempt: %w", err)
		}
		if err := s.maybeAnalyze(ctx, dir.SessionID); err != nil {
			return nil, err
		}
		return s.attempts.GetAttempt(ctx, saved.ID)

	case existing.Status == exchange.StatusRefining, existing.Status == exchange.StatusAnalyzing:
		return s.resubmit(ctx, existing, content)

	default:
		return nil, fmt.Errorf("attempt %s does not accept submissions: %w",
			existing.ID, core.NewInvalidTransitionError(string(existing.Status), string(exchange.StatusAnalyzing)))
	}
}

// resubmit handles a revised attempt after context was shared. A resubmission
// that lands while a prior analysis is still in flight supersedes that
// analysis's result so the stale assessment can never route the direction.
func (s *ReconciliationService) resubmit(ctx context.Context, attempt *exchange.Attempt, content string) (*exchange.Attempt, error) {
	if err := s.gaps.SupersedeResults(ctx, attempt.ID); err != nil {
		return nil, fmt.Errorf("failed to supersede prior results: %w", err)
	}

	attempt.Content = content
	// Any copy a client holds is stale now; delivery restarts at reveal
	attempt.DeliveryState = exchange.DeliverySuperseded
	saved, err := s.attempts.UpsertAttempt(ctx, attempt)
	if err != nil {
		return nil, fmt.Errorf("failed to store revised attempt: %w", err)
	}

	if attempt.Status == exchange.StatusRefining {
		if err := s.attempts.UpdateStatus(ctx, saved.ID, exchange.StatusRefining, exchange.StatusAnalyzing); err != nil {
			return nil, fmt.Errorf("failed to re-enter analysis: %w", err)
		}
	}

	expr, err := s.expressions.GetExpression(ctx, saved.SessionID, saved.SubjectID)
	if err != nil {
		return nil, fmt.Errorf("expression missing for resubmission: %w", err)
	}

	s.notifier.Publish(ctx, saved.SessionID, ports.EventAnalysisStarted, map[string]interface{}{
		"attempt_id": saved.ID.String(),
		"revision":   saved.RevisionCount,
	})

	saved, err = s.attempts.GetAttempt(ctx, saved.ID)
	if err != nil {
		return nil, err
	}
	if err := s.analyzeDirection(ctx, saved, expr.Content); err != nil {
		return nil, err
	}
	return s.attempts.GetAttempt(ctx, saved.ID)
}

// CompleteExpression records a party's own expression of their feelings. The
// expression is the prerequisite for analyzing the opposite direction's
// attempt, so recording one may unblock a held attempt.
func (s *ReconciliationService) CompleteExpression(ctx context.Context, sessionID core.SessionID, partyID core.PartyID, content string) (*exchange.Expression, error) {
	content = strings.TrimSpace(content)
	if content == "" {
		return nil, fmt.Errorf("expression content is empty")
	}

	s.seedSequence(ctx, sessionID)

	expr := &exchange.Expression{
		ID:        core.NewID(),
		SessionID: sessionID,
		PartyID:   partyID,
		Content:   content,
	}
	saved, err := s.expressions.UpsertExpression(ctx, expr)
	if err != nil {
		return nil, fmt.Errorf("failed to store expression: %w", err)
	}

	s.notifier.Publish(ctx, sessionID, ports.EventExpressionRecorded, map[string]interface{}{
		"party_id": partyID.String(),
	})

	if err := s.maybeAnalyze(ctx, sessionID); err != nil {
		return nil, err
	}
	return saved, nil
}

// maybeAnalyze dispatches analysis for every direction whose preconditions
// hold: an attempt in held and the subject's expression recorded. The two
// directions run concurrently so a slow oracle call on one cannot block the
// other.
func (s *ReconciliationService) maybeAnalyze(ctx context.Context, sessionID core.SessionID) error {
	attempts, err := s.attempts.ListSessionAttempts(ctx, sessionID)
	if err != nil {
		return fmt.Errorf("failed to list session attempts: %w", err)
	}

	// Analysis for a direction starts only once the reverse direction's
	// attempt exists too, so neither party learns anything from one-sided
	// progress.
	submitted := make(map[string]bool, len(attempts))
	for _, attempt := range attempts {
		submitted[directionKey(attempt.GuesserID, attempt.SubjectID)] = true
	}

	g, gctx := errgroup.WithContext(ctx)
	for _, attempt := range attempts {
		if attempt.Status != exchange.StatusHeld {
			continue
		}
		if !submitted[directionKey(attempt.SubjectID, attempt.GuesserID)] {
			continue
		}
		expr, err := s.expressions.GetExpression(ctx, sessionID, attempt.SubjectID)
		if err != nil {
			if core.IsNotFoundError(err) {
				continue // subject has not expressed yet, attempt stays held
			}
			return fmt.Errorf("failed to load expression: %w", err)
		}

		attempt := attempt
		actual := expr.Content
		g.Go(func() error {
			// CAS guards against a concurrent dispatcher claiming the
			// same direction.
			err := s.attempts.UpdateStatus(gctx, attempt.ID, exchange.StatusHeld, exchange.StatusAnalyzing)
			if err != nil {
				if core.IsTransitionError(err) {
					return nil
				}
				return err
			}
			s.notifier.Publish(gctx, sessionID, ports.EventAnalysisStarted, map[string]interface{}{
				"attempt_id": attempt.ID.String(),
				"revision":   attempt.RevisionCount,
			})
			return s.analyzeDirection(gctx, attempt, actual)
		})
	}
	return g.Wait()
}

// analyzeDirection runs the gap oracle for one direction and routes the
// outcome. Oracle exhaustion fails safe: the direction moves to ready rather
// than wedging the exchange.
func (s *ReconciliationService) analyzeDirection(ctx context.Context, attempt *exchange.Attempt, actualText string) error {
	assessment, err := s.oracle.Analyze(ctx, ports.GapAnalysisRequest{
		SessionID:  attempt.SessionID,
		GuesserID:  attempt.GuesserID,
		SubjectID:  attempt.SubjectID,
		GuessText:  attempt.Content,
		ActualText: actualText,
	})
	if err != nil {
		if core.IsOracleError(err) {
			log.Printf("[Reconciliation] Oracle unavailable for attempt %s, routing to ready: %v", attempt.ID, err)
			return s.routeReady(ctx, attempt, "analysis_unavailable")
		}
		return fmt.Errorf("gap analysis failed: %w", err)
	}

	result := &exchange.GapAnalysisResult{
		ID:             core.GapResultID(core.NewID()),
		AttemptID:      attempt.ID,
		AlignmentScore: assessment.AlignmentScore,
		GapSeverity:    assessment.GapSeverity,
		Action:         assessment.Action,
		ShareFocus:     assessment.ShareFocus,
	}

	// A resubmission may have landed while the oracle ran. Its supersede
	// already voided this analysis; record the assessment as history only
	// and let the fresh analysis route the direction.
	current, err := s.attempts.GetAttempt(ctx, attempt.ID)
	if err != nil {
		return err
	}
	if current.RevisionCount != attempt.RevisionCount {
		result.Superseded = true
		if err := s.gaps.SaveResult(ctx, result); err != nil {
			return fmt.Errorf("failed to store stale result: %w", err)
		}
		return nil
	}

	if err := s.gaps.SaveResult(ctx, result); err != nil {
		return fmt.Errorf("failed to store gap result: %w", err)
	}

	return s.routeAssessment(ctx, current, result, actualText)
}

// routeAssessment decides where a freshly analyzed direction goes: into the
// sharing flow or straight to ready. Every path into awaiting_sharing passes
// through the offer manager's share gate.
func (s *ReconciliationService) routeAssessment(ctx context.Context, attempt *exchange.Attempt, result *exchange.GapAnalysisResult, actualText string) error {
	// Every share accepted for this direction sent the guesser through one
	// refinement cycle, so the share history is the cycle count. Revision
	// count would overcount: held-stage content edits bump it too.
	records, err := s.offers.shares.ListShares(ctx, attempt.ID)
	if err != nil {
		return fmt.Errorf("failed to count refinement cycles: %w", err)
	}
	if len(records) >= s.maxRefinementCycles {
		log.Printf("[Reconciliation] Attempt %s exhausted its refinement cycles (%d), forcing ready",
			attempt.ID, s.maxRefinementCycles)
		return s.routeReady(ctx, attempt, "refinement_limit")
	}

	if result.WantsSharing() {
		allowed, reason, err := s.offers.ShareGate(ctx, attempt, result)
		if err != nil {
			return fmt.Errorf("share gate check failed: %w", err)
		}
		if allowed {
			if err := s.attempts.UpdateStatusAtRevision(ctx, attempt.ID, exchange.StatusAnalyzing, exchange.StatusAwaitingSharing, attempt.RevisionCount); err != nil {
				if core.IsTransitionError(err) {
					// A resubmission landed between the revision check
					// and this write; its own analysis routes the
					// direction.
					return nil
				}
				return fmt.Errorf("failed to enter sharing: %w", err)
			}
			if _, err := s.offers.OpenOffer(ctx, attempt, result, actualText); err != nil {
				return fmt.Errorf("failed to open share offer: %w", err)
			}
			return nil
		}
		log.Printf("[Reconciliation] Share gate denied for attempt %s: %s", attempt.ID, reason)
	}

	return s.routeReady(ctx, attempt, "gap_assessed")
}

// routeReady moves an analyzing direction to ready and checks whether the
// session can now reveal
func (s *ReconciliationService) routeReady(ctx context.Context, attempt *exchange.Attempt, reason string) error {
	if err := s.attempts.UpdateStatusAtRevision(ctx, attempt.ID, exchange.StatusAnalyzing, exchange.StatusReady, attempt.RevisionCount); err != nil {
		if core.IsTransitionError(err) {
			log.Printf("[Reconciliation] Skipping stale route for attempt %s at revision %d", attempt.ID, attempt.RevisionCount)
			return nil
		}
		return fmt.Errorf("failed to mark attempt ready: %w", err)
	}
	s.notifier.Publish(ctx, attempt.SessionID, ports.EventDirectionReady, map[string]interface{}{
		"attempt_id": attempt.ID.String(),
		"guesser_id": attempt.GuesserID.String(),
		"reason":     reason,
	})
	if _, err := s.reveals.TryReveal(ctx, attempt.SessionID); err != nil {
		return fmt.Errorf("reveal check failed: %w", err)
	}
	return nil
}

// MarkDelivery records a client's acknowledgement of revealed content.
// Clients only ever report forward progress; everything else is set by the
// engine itself.
func (s *ReconciliationService) MarkDelivery(ctx context.Context, attemptID core.AttemptID, state exchange.DeliveryState) (*exchange.Attempt, error) {
	if state != exchange.DeliveryDelivered && state != exchange.DeliverySeen {
		return nil, fmt.Errorf("delivery state %q is not client-reportable", state)
	}

	attempt, err := s.attempts.GetAttempt(ctx, attemptID)
	if err != nil {
		return nil, err
	}
	if attempt.Status != exchange.StatusRevealed && attempt.Status != exchange.StatusValidated {
		return nil, fmt.Errorf("content for attempt %s is not revealed: %w", attemptID, core.ErrNotRevealed)
	}

	if err := s.attempts.SetDeliveryState(ctx, attemptID, state); err != nil {
		return nil, fmt.Errorf("failed to update delivery state: %w", err)
	}
	return s.attempts.GetAttempt(ctx, attemptID)
}

// seedSequence floors the in-memory allocator with the session's persisted
// high-water mark, so restarts never reissue sequence numbers
func (s *ReconciliationService) seedSequence(ctx context.Context, sessionID core.SessionID) {
	max, err := s.attempts.MaxSequence(ctx, sessionID)
	if err != nil {
		log.Printf("[Reconciliation] Failed to read max sequence for session %s: %v", sessionID, err)
		return
	}
	s.sequences.Seed(sessionID.String(), max)
}

func directionKey(guesserID, subjectID core.PartyID) string {
	return guesserID.String() + ">" + subjectID.String()
}
