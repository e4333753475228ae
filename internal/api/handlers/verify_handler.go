package handlers

import (
	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"

	"github.com/pydverify/backend/internal/middleware/validation"
	"github.com/pydverify/backend/internal/pipeline"
	"github.com/pydverify/backend/pkg/logger"
)

type VerifyHandler struct {
	engine *pipeline.Engine
}

func NewVerifyHandler(engine *pipeline.Engine) *VerifyHandler {
	return &VerifyHandler{
		engine: engine,
	}
}

func (h *VerifyHandler) Verify(c *fiber.Ctx) error {
	req, ok, err := requestBody(c)
	if !ok {
		return err
	}

	result := h.engine.Verify(req.Response)

	return c.JSON(fiber.Map{
		"verification_result": result,
		"facts":               h.engine.Verifier().Facts(result),
	})
}

func (h *VerifyHandler) Assess(c *fiber.Ctx) error {
	req, ok, err := requestBody(c)
	if !ok {
		return err
	}

	assessment := h.engine.Assess(c.Context(), req)

	return c.JSON(fiber.Map{
		"assessment": assessment,
		"facts":      h.engine.Verifier().Facts(assessment.VerificationResult),
	})
}

// requestBody prefers the body checked by the validation middleware and
// parses it directly otherwise. When ok is false the error response has
// already been written.
func requestBody(c *fiber.Ctx) (pipeline.Request, bool, error) {
	if body, ok := c.Locals(validation.SanitizedBodyKey).(validation.Body); ok {
		return pipeline.Request{Query: body.Query, Response: body.Response}, true, nil
	}

	var req pipeline.Request
	if err := c.BodyParser(&req); err != nil {
		logger.Error("Failed to parse request body", zap.Error(err))
		return req, false, c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Invalid request body",
		})
	}

	if req.Response == "" {
		return req, false, c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Response is required",
		})
	}

	return req, true, nil
}
