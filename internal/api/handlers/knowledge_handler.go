package handlers

import (
	"context"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"

	"github.com/pydverify/backend/internal/knowledge"
	"github.com/pydverify/backend/internal/updater"
	"github.com/pydverify/backend/pkg/logger"
)

type KnowledgeUpdater interface {
	UpdateKnowledgeBase(ctx context.Context) (updater.UpdateResult, error)
	ComprehensiveUpdate(ctx context.Context) (updater.ComprehensiveResult, error)
	History() ([]knowledge.UpdateRecord, error)
}

type KnowledgeHandler struct {
	store   *knowledge.Store
	updater KnowledgeUpdater
}

func NewKnowledgeHandler(store *knowledge.Store, u KnowledgeUpdater) *KnowledgeHandler {
	return &KnowledgeHandler{
		store:   store,
		updater: u,
	}
}

func (h *KnowledgeHandler) GetStatus(c *fiber.Ctx) error {
	status := h.store.Status()

	history, err := h.updater.History()
	if err != nil {
		logger.Warn("Failed to read update history", zap.Error(err))
	}

	var lastUpdate *knowledge.UpdateRecord
	if len(history) > 0 {
		lastUpdate = &history[len(history)-1]
	}

	return c.JSON(fiber.Map{
		"status":       status,
		"version_info": h.store.LoadVersionInfo(),
		"last_update":  lastUpdate,
		"updates":      len(history),
	})
}

// Update runs a regular update, or a comprehensive one with
// ?comprehensive=true.
func (h *KnowledgeHandler) Update(c *fiber.Ctx) error {
	if c.QueryBool("comprehensive") {
		res, err := h.updater.ComprehensiveUpdate(c.Context())
		if err != nil {
			logger.Error("Comprehensive update failed", zap.Error(err))
			return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
				"error": "Knowledge base update failed",
			})
		}
		return c.JSON(res)
	}

	res, err := h.updater.UpdateKnowledgeBase(c.Context())
	if err != nil {
		logger.Error("Knowledge base update failed", zap.Error(err))
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Knowledge base update failed",
		})
	}

	return c.JSON(res)
}
