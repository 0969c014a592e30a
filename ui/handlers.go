package ui

import (
	"errors"
	"net/http"

	"attune/domain/core"
	"attune/domain/exchange"

	"github.com/gin-gonic/gin"
)

type submitAttemptRequest struct {
	GuesserID string `json:"guesser_id" binding:"required"`
	SubjectID string `json:"subject_id" binding:"required"`
	Content   string `json:"content" binding:"required"`
}

// handleSubmitAttempt records a guesser's articulation of the other party's
// feelings
func (s *Server) handleSubmitAttempt(c *gin.Context) {
	sessionID, err := core.ParseSessionID(c.Param("sessionID"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid session id"})
		return
	}

	var req submitAttemptRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	guesserID, err := core.ParsePartyID(req.GuesserID)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid guesser id"})
		return
	}
	subjectID, err := core.ParsePartyID(req.SubjectID)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid subject id"})
		return
	}

	dir := exchange.Direction{
		SessionID: sessionID,
		GuesserID: guesserID,
		SubjectID: subjectID,
	}
	attempt, err := s.container.Reconciliation.Submit(c.Request.Context(), dir, req.Content)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, attempt)
}

type expressionRequest struct {
	PartyID string `json:"party_id" binding:"required"`
	Content string `json:"content" binding:"required"`
}

// handleCompleteExpression records a party's own expressed feelings
func (s *Server) handleCompleteExpression(c *gin.Context) {
	sessionID, err := core.ParseSessionID(c.Param("sessionID"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid session id"})
		return
	}

	var req expressionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	partyID, err := core.ParsePartyID(req.PartyID)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid party id"})
		return
	}

	expr, err := s.container.Reconciliation.CompleteExpression(
		c.Request.Context(), sessionID, partyID, req.Content)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, expr)
}

type offerResponseRequest struct {
	Response      string `json:"response" binding:"required"`
	EditedContent string `json:"edited_content"`
}

// handleOfferResponse applies the subject's accept/refine/decline decision
func (s *Server) handleOfferResponse(c *gin.Context) {
	offerID, err := core.ParseOfferID(c.Param("offerID"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid offer id"})
		return
	}

	var req offerResponseRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	offer, err := s.container.Offers.Respond(c.Request.Context(), offerID,
		exchange.OfferResponse(req.Response), req.EditedContent)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, offer)
}

type validateRequest struct {
	SubjectID string `json:"subject_id" binding:"required"`
	Accurate  *bool  `json:"accurate" binding:"required"`
	Feedback  string `json:"feedback"`
}

// handleValidate records the subject's accuracy verdict on a revealed guess
func (s *Server) handleValidate(c *gin.Context) {
	attemptID, err := core.ParseAttemptID(c.Param("attemptID"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid attempt id"})
		return
	}

	var req validateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	subjectID, err := core.ParsePartyID(req.SubjectID)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid subject id"})
		return
	}

	validation, err := s.container.Validator.RecordVerdict(c.Request.Context(),
		attemptID, subjectID, *req.Accurate, req.Feedback)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, validation)
}

type deliveryAckRequest struct {
	State string `json:"state" binding:"required"`
}

// handleDeliveryAck records a client's delivered/seen acknowledgement for
// revealed content
func (s *Server) handleDeliveryAck(c *gin.Context) {
	attemptID, err := core.ParseAttemptID(c.Param("attemptID"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid attempt id"})
		return
	}

	var req deliveryAckRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	attempt, err := s.container.Reconciliation.MarkDelivery(c.Request.Context(),
		attemptID, exchange.DeliveryState(req.State))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, attempt)
}

// handleExchangeState returns the session's full state for one viewer
func (s *Server) handleExchangeState(c *gin.Context) {
	sessionID, err := core.ParseSessionID(c.Param("sessionID"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid session id"})
		return
	}
	viewer, err := core.ParsePartyID(c.Query("viewer"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "viewer parameter required"})
		return
	}

	state, err := s.container.Reconciliation.GetExchangeState(
		c.Request.Context(), sessionID, viewer)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, state)
}

// handleInsights returns alignment statistics for the session
func (s *Server) handleInsights(c *gin.Context) {
	sessionID, err := core.ParseSessionID(c.Param("sessionID"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid session id"})
		return
	}

	insights, err := s.container.Insights.SessionInsights(c.Request.Context(), sessionID)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, insights)
}

// respondError maps domain errors onto HTTP status codes
func respondError(c *gin.Context, err error) {
	switch {
	case core.IsNotFoundError(err):
		c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
	case core.IsTransitionError(err), errors.Is(err, core.ErrOfferClosed):
		c.JSON(http.StatusConflict, gin.H{"error": err.Error()})
	default:
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
	}
}
