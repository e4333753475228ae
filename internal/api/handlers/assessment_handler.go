package handlers

import (
	"bytes"
	"errors"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"

	"github.com/pydverify/backend/internal/assessment"
	"github.com/pydverify/backend/internal/storage/models"
	"github.com/pydverify/backend/pkg/logger"
)

// RunLister reads mirrored runs. It is nil when the SQLite mirror is off.
type RunLister interface {
	GetRecentRuns(limit int) ([]models.AssessmentRun, error)
}

type AssessmentHandler struct {
	aggregator *assessment.Aggregator
	runs       RunLister
}

func NewAssessmentHandler(aggregator *assessment.Aggregator, runs RunLister) *AssessmentHandler {
	return &AssessmentHandler{
		aggregator: aggregator,
		runs:       runs,
	}
}

// GetHistory returns the capped run history, newest first. ?limit bounds
// the result.
func (h *AssessmentHandler) GetHistory(c *fiber.Ctx) error {
	limit := c.QueryInt("limit", assessment.HistoryLimit)
	if limit <= 0 || limit > assessment.HistoryLimit {
		limit = assessment.HistoryLimit
	}

	history, err := h.aggregator.History()
	if err != nil {
		logger.Error("Failed to read assessment history", zap.Error(err))
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Failed to read assessment history",
		})
	}

	out := make([]assessment.HistoryRecord, 0, limit)
	for i := len(history) - 1; i >= 0 && len(out) < limit; i-- {
		out = append(out, history[i])
	}

	resp := fiber.Map{
		"history": out,
		"total":   len(history),
	}

	if h.runs != nil {
		runs, err := h.runs.GetRecentRuns(limit)
		if err != nil {
			logger.Warn("Failed to read mirrored runs", zap.Error(err))
		} else {
			resp["mirrored_runs"] = len(runs)
		}
	}

	return c.JSON(resp)
}

// RunBatch assesses a posted batch, or the sample batch when the body is
// empty, and writes the report.
func (h *AssessmentHandler) RunBatch(c *fiber.Ctx) error {
	batch := assessment.SampleBatch()

	if body := c.Body(); len(bytes.TrimSpace(body)) > 0 {
		b, err := assessment.LoadBatch(bytes.NewReader(body), c.Query("name", "api_batch"))
		if err != nil {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
				"error": "Invalid batch",
			})
		}
		batch = b
	}

	report, path, err := h.aggregator.GenerateReport(c.Context(), batch)
	if err != nil {
		logger.Error("Failed to generate report", zap.Error(err))
		status := fiber.StatusInternalServerError
		if errors.Is(err, assessment.ErrStorageUnwritable) {
			status = fiber.StatusServiceUnavailable
		}
		return c.Status(status).JSON(fiber.Map{
			"error": "Failed to generate report",
		})
	}

	return c.Status(fiber.StatusCreated).JSON(fiber.Map{
		"report":      report,
		"report_path": path,
	})
}
