package handlers

import (
	"github.com/gofiber/fiber/v2"

	"github.com/deepnsharma/crm-chat-connector/internal/crm"
)

// HealthHandler reports service liveness and CRM auth readiness.
type HealthHandler struct {
	tokens *crm.TokenCache
}

// NewHealthHandler creates a new health handler.
func NewHealthHandler(tokens *crm.TokenCache) *HealthHandler {
	return &HealthHandler{tokens: tokens}
}

// Check returns 200 when the service is up. crm_auth reflects whether a
// Dataverse token can currently be obtained; a failure there degrades the
// report but not the status code, so orchestrators don't restart the pod
// for an upstream outage.
func (h *HealthHandler) Check(c *fiber.Ctx) error {
	return c.JSON(fiber.Map{
		"status":   "healthy",
		"service":  "crm-chat-connector",
		"crm_auth": h.tokens.Valid(),
	})
}
