package api

import (
	"strconv"
	"strings"

	"github.com/gofiber/fiber/v2"

	"github.com/loopworkco/rewind/pkg/record"
)

// RecallResponse is the body returned by GET /v1/recall.
type RecallResponse struct {
	Query   string                `json:"query"`
	Count   int                   `json:"count"`
	Records []record.ScoredRecord `json:"records"`
}

// handleRecall handles GET /v1/recall requests.
// Query parameters:
//   - query (required): the recall query text
//   - files (optional): comma-separated file paths used as hints
//   - limit (optional, default 5): number of records to return
func (s *Server) handleRecall(c *fiber.Ctx) error {
	query := c.Query("query")
	if query == "" {
		return c.Status(fiber.StatusBadRequest).JSON(ErrorResponse{
			Error: "query parameter is required",
		})
	}

	limit := 5
	if limitStr := c.Query("limit"); limitStr != "" {
		parsed, err := strconv.Atoi(limitStr)
		if err != nil || parsed <= 0 {
			return c.Status(fiber.StatusBadRequest).JSON(ErrorResponse{
				Error: "limit must be a positive integer",
			})
		}
		limit = parsed
	}

	var files []string
	if filesStr := c.Query("files"); filesStr != "" {
		for _, f := range strings.Split(filesStr, ",") {
			if f = strings.TrimSpace(f); f != "" {
				files = append(files, f)
			}
		}
	}

	records := s.engine.Retrieve(c.Context(), query, files, limit)

	return c.JSON(RecallResponse{
		Query:   query,
		Count:   len(records),
		Records: records,
	})
}
