package api

import (
	"errors"
	"strconv"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"

	"github.com/loopworkco/rewind/pkg/breaker"
	"github.com/loopworkco/rewind/pkg/record"
	"github.com/loopworkco/rewind/pkg/store"
)

// ErrorResponse is the JSON body returned for failed requests.
type ErrorResponse struct {
	Error string `json:"error"`
}

// StoreContextRequest is the body for POST /v1/contexts.
type StoreContextRequest struct {
	SessionID string            `json:"session_id"`
	Prompt    string            `json:"prompt"`
	Payload   string            `json:"payload"`
	Files     []string          `json:"files,omitempty"`
	Outcome   record.Outcome    `json:"outcome,omitempty"`
	Metadata  map[string]string `json:"metadata,omitempty"`
}

// StoreContextResponse is the body returned for a stored context.
type StoreContextResponse struct {
	ID          int64  `json:"id"`
	ContentHash string `json:"content_hash"`
}

// UpdateOutcomeRequest is the body for PATCH /v1/contexts/:id/outcome.
type UpdateOutcomeRequest struct {
	Outcome  record.Outcome    `json:"outcome"`
	Metadata map[string]string `json:"metadata,omitempty"`
}

// CleanupRequest is the body for POST /v1/cleanup.
type CleanupRequest struct {
	OlderThanDays int `json:"older_than_days"`
}

// CleanupResponse reports how many records a cleanup removed.
type CleanupResponse struct {
	Deleted int64 `json:"deleted"`
}

// AnalyzeRequest is the body for POST /v1/analyze.
type AnalyzeRequest struct {
	Prompt string `json:"prompt"`

	// Recall inlines matching records in the response when the
	// analysis clears the retrieval threshold.
	Recall bool `json:"recall,omitempty"`

	// Limit caps the number of inlined records. Only used with Recall.
	Limit int `json:"limit,omitempty"`
}

// AnalyzeResponse pairs the trigger analysis with optional inlined records.
type AnalyzeResponse struct {
	ShouldRetrieve bool                  `json:"should_retrieve"`
	Confidence     float64               `json:"confidence"`
	QueryTerms     []string              `json:"query_terms"`
	Files          []string              `json:"files"`
	Records        []record.ScoredRecord `json:"records,omitempty"`
}

// handlePing returns a simple health check response.
func (s *Server) handlePing(c *fiber.Ctx) error {
	return c.JSON("pong")
}

// handleStoreContext persists a new context record.
func (s *Server) handleStoreContext(c *fiber.Ctx) error {
	var req StoreContextRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(ErrorResponse{Error: "invalid request body"})
	}

	rec := &record.ContextRecord{
		SessionID: req.SessionID,
		Prompt:    req.Prompt,
		Payload:   req.Payload,
		Files:     req.Files,
		Outcome:   req.Outcome,
		Metadata:  req.Metadata,
	}

	id, err := s.engine.Store(c.Context(), rec)
	if err != nil {
		var verr record.ValidationError
		switch {
		case errors.As(err, &verr):
			return c.Status(fiber.StatusBadRequest).JSON(ErrorResponse{Error: verr.Error()})
		case errors.Is(err, breaker.ErrOpen):
			return c.Status(fiber.StatusServiceUnavailable).JSON(ErrorResponse{Error: "storage unavailable"})
		default:
			s.logger.Error("storing context failed", zap.Error(err))
			return c.Status(fiber.StatusInternalServerError).JSON(ErrorResponse{Error: "failed to store context"})
		}
	}

	return c.Status(fiber.StatusCreated).JSON(StoreContextResponse{
		ID:          id,
		ContentHash: rec.ContentHash,
	})
}

// handleUpdateOutcome records how previously stored work turned out.
func (s *Server) handleUpdateOutcome(c *fiber.Ctx) error {
	id, err := strconv.ParseInt(c.Params("id"), 10, 64)
	if err != nil || id <= 0 {
		return c.Status(fiber.StatusBadRequest).JSON(ErrorResponse{Error: "id must be a positive integer"})
	}

	var req UpdateOutcomeRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(ErrorResponse{Error: "invalid request body"})
	}

	updated, err := s.engine.UpdateOutcome(c.Context(), id, req.Outcome, req.Metadata)
	if err != nil {
		var verr record.ValidationError
		if errors.As(err, &verr) {
			return c.Status(fiber.StatusBadRequest).JSON(ErrorResponse{Error: verr.Error()})
		}
		s.logger.Error("updating outcome failed", zap.Int64("id", id), zap.Error(err))
		return c.Status(fiber.StatusInternalServerError).JSON(ErrorResponse{Error: "failed to update outcome"})
	}
	if !updated {
		return c.Status(fiber.StatusNotFound).JSON(ErrorResponse{Error: "context not found"})
	}

	return c.SendStatus(fiber.StatusNoContent)
}

// handleCleanup deletes records older than the requested age.
func (s *Server) handleCleanup(c *fiber.Ctx) error {
	var req CleanupRequest
	if len(c.Body()) > 0 {
		if err := c.BodyParser(&req); err != nil {
			return c.Status(fiber.StatusBadRequest).JSON(ErrorResponse{Error: "invalid request body"})
		}
	}
	if req.OlderThanDays < 0 {
		return c.Status(fiber.StatusBadRequest).JSON(ErrorResponse{Error: "older_than_days must not be negative"})
	}

	deleted, err := s.engine.CleanupOld(c.Context(), req.OlderThanDays)
	if err != nil {
		s.logger.Error("cleanup failed", zap.Error(err))
		return c.Status(fiber.StatusInternalServerError).JSON(ErrorResponse{Error: "failed to clean up old contexts"})
	}

	return c.JSON(CleanupResponse{Deleted: deleted})
}

// handleSessionSummary returns aggregate statistics for one session.
func (s *Server) handleSessionSummary(c *fiber.Ctx) error {
	sessionID := c.Params("id")
	if sessionID == "" {
		return c.Status(fiber.StatusBadRequest).JSON(ErrorResponse{Error: "session id required"})
	}

	summary, err := s.engine.SessionSummary(c.Context(), sessionID)
	if err != nil {
		if store.IsNotFound(err) {
			return c.Status(fiber.StatusNotFound).JSON(ErrorResponse{Error: "session not found"})
		}
		s.logger.Error("session summary failed", zap.String("session", sessionID), zap.Error(err))
		return c.Status(fiber.StatusInternalServerError).JSON(ErrorResponse{Error: "failed to summarize session"})
	}

	return c.JSON(summary)
}

// handleHealth reports storage and circuit health.
func (s *Server) handleHealth(c *fiber.Ctx) error {
	report, err := s.engine.Health(c.Context())
	if err != nil {
		s.logger.Error("health check failed", zap.Error(err))
		return c.Status(fiber.StatusServiceUnavailable).JSON(ErrorResponse{Error: "storage unreachable"})
	}

	return c.JSON(report)
}

// handleAnalyze runs the retrieval trigger heuristic over a prompt and,
// when asked, inlines the matching records.
func (s *Server) handleAnalyze(c *fiber.Ctx) error {
	var req AnalyzeRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(ErrorResponse{Error: "invalid request body"})
	}
	if req.Prompt == "" {
		return c.Status(fiber.StatusBadRequest).JSON(ErrorResponse{Error: "prompt is required"})
	}

	analysis := s.analyzer.Analyze(req.Prompt)

	resp := AnalyzeResponse{
		ShouldRetrieve: analysis.ShouldRetrieve,
		Confidence:     analysis.Confidence,
		QueryTerms:     analysis.QueryTerms,
		Files:          analysis.Files,
	}

	if req.Recall && analysis.ShouldRetrieve {
		resp.Records = s.engine.Retrieve(c.Context(), req.Prompt, analysis.Files, req.Limit)
	}

	return c.JSON(resp)
}
