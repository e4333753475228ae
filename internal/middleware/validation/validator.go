package validation

import (
	"strings"
	"unicode/utf8"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"
)

// SanitizedBodyKey is the fiber local holding the validated request body.
const SanitizedBodyKey = "sanitized_body"

type Body struct {
	Query    string `json:"query"`
	Response string `json:"response"`
}

type Config struct {
	MaxResponseLength   int
	MaxQueryLength      int
	AllowedContentTypes []string
	// Paths whose POST body must carry a response to verify.
	Paths  []string
	Logger *zap.Logger
}

func Middleware(cfg Config) fiber.Handler {
	if cfg.MaxResponseLength == 0 {
		cfg.MaxResponseLength = 100000
	}
	if cfg.MaxQueryLength == 0 {
		cfg.MaxQueryLength = 5000
	}
	if len(cfg.AllowedContentTypes) == 0 {
		cfg.AllowedContentTypes = []string{"application/json"}
	}
	if len(cfg.Paths) == 0 {
		cfg.Paths = []string{"/api/v1/verify", "/api/v1/assess"}
	}
	if cfg.Logger == nil {
		cfg.Logger = zap.NewNop()
	}

	return func(c *fiber.Ctx) error {
		if c.Method() != fiber.MethodPost && c.Method() != fiber.MethodPut {
			return c.Next()
		}

		contentType := c.Get("Content-Type")
		if contentType != "" {
			allowed := false
			for _, allowedType := range cfg.AllowedContentTypes {
				if strings.Contains(contentType, allowedType) {
					allowed = true
					break
				}
			}
			if !allowed {
				return c.Status(fiber.StatusUnsupportedMediaType).JSON(fiber.Map{
					"error": "Unsupported content type",
				})
			}
		}

		if !matchesPath(c.Path(), cfg.Paths) {
			return c.Next()
		}

		// the JSON decoder would silently swap invalid bytes for U+FFFD
		if !utf8.Valid(c.Body()) {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
				"error": "Request text must be valid UTF-8",
			})
		}

		var req Body
		if err := c.BodyParser(&req); err != nil {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
				"error": "Invalid JSON format",
			})
		}

		req.Response = sanitizeString(req.Response)
		req.Query = sanitizeString(req.Query)

		if req.Response == "" {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
				"error": "Response is required and must be a non-empty string",
			})
		}

		if len(req.Response) > cfg.MaxResponseLength {
			cfg.Logger.Warn("Response exceeds maximum length",
				zap.String("ip", c.IP()),
				zap.Int("length", len(req.Response)),
			)
			return c.Status(fiber.StatusRequestEntityTooLarge).JSON(fiber.Map{
				"error": "Response exceeds maximum length",
			})
		}

		if len(req.Query) > cfg.MaxQueryLength {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
				"error": "Query exceeds maximum length",
			})
		}

		c.Locals(SanitizedBodyKey, req)
		return c.Next()
	}
}

func matchesPath(path string, paths []string) bool {
	for _, p := range paths {
		if path == p {
			return true
		}
	}
	return false
}

func sanitizeString(input string) string {
	input = strings.ReplaceAll(input, "\x00", "")
	if strings.TrimSpace(input) == "" {
		return ""
	}
	return input
}
