package handlers

import (
	"errors"

	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog/log"

	"github.com/deepnsharma/crm-chat-connector/internal/crm"
	"github.com/deepnsharma/crm-chat-connector/internal/models"
)

// CRMHandler exposes the CRM gateway over REST for workflow automation
// (n8n) and internal tooling.
type CRMHandler struct {
	crm *crm.Dataverse
}

// NewCRMHandler creates a new CRM handler.
func NewCRMHandler(gateway *crm.Dataverse) *CRMHandler {
	return &CRMHandler{crm: gateway}
}

// ListCustomers returns active customer accounts.
func (h *CRMHandler) ListCustomers(c *fiber.Ctx) error {
	customers, err := h.crm.AllCustomers(c.Context())
	if err != nil {
		log.Error().Err(err).Msg("failed to list customers")
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Failed to fetch customers",
		})
	}

	return c.JSON(fiber.Map{
		"success":   true,
		"customers": customers,
		"count":     len(customers),
	})
}

// GetCustomerByPhone looks up a customer by any of their phone numbers.
func (h *CRMHandler) GetCustomerByPhone(c *fiber.Ctx) error {
	phone := c.Params("phone")

	customer, err := h.crm.CustomerByPhone(c.Context(), phone)
	if err != nil {
		if errors.Is(err, crm.ErrNotFound) {
			return c.Status(fiber.StatusNotFound).JSON(fiber.Map{
				"error": "Customer not found",
			})
		}
		log.Error().Err(err).Str("phone", phone).Msg("customer lookup failed")
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Failed to fetch customer",
		})
	}

	return c.JSON(fiber.Map{
		"success":  true,
		"customer": customer,
	})
}

// CreateLead creates a lead record.
func (h *CRMHandler) CreateLead(c *fiber.Ctx) error {
	var lead models.Lead
	if err := c.BodyParser(&lead); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Invalid request body",
		})
	}

	leadID, err := h.crm.CreateLead(c.Context(), &lead)
	if err != nil {
		log.Error().Err(err).Msg("failed to create lead")
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Failed to create lead",
		})
	}

	return c.Status(fiber.StatusCreated).JSON(fiber.Map{
		"success": true,
		"lead_id": leadID,
	})
}

// CreateOpportunity creates an opportunity record.
func (h *CRMHandler) CreateOpportunity(c *fiber.Ctx) error {
	var opp models.Opportunity
	if err := c.BodyParser(&opp); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Invalid request body",
		})
	}

	oppID, err := h.crm.CreateOpportunity(c.Context(), &opp)
	if err != nil {
		log.Error().Err(err).Msg("failed to create opportunity")
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Failed to create opportunity",
		})
	}

	return c.Status(fiber.StatusCreated).JSON(fiber.Map{
		"success":        true,
		"opportunity_id": oppID,
	})
}

// GetQuote fetches one quote.
func (h *CRMHandler) GetQuote(c *fiber.Ctx) error {
	quoteID := c.Params("id")

	quote, err := h.crm.QuoteByID(c.Context(), quoteID)
	if err != nil {
		if errors.Is(err, crm.ErrNotFound) {
			return c.Status(fiber.StatusNotFound).JSON(fiber.Map{
				"error": "Quote not found",
			})
		}
		log.Error().Err(err).Str("quote_id", quoteID).Msg("quote lookup failed")
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Failed to fetch quote",
		})
	}

	return c.JSON(fiber.Map{
		"success": true,
		"quote":   quote,
	})
}

// UpdateQuoteStatus closes a quote as won or lost.
func (h *CRMHandler) UpdateQuoteStatus(c *fiber.Ctx) error {
	quoteID := c.Params("id")

	var req struct {
		Accepted bool   `json:"accepted"`
		Reason   string `json:"reason"`
	}
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Invalid request body",
		})
	}

	if err := h.crm.UpdateQuoteStatus(c.Context(), quoteID, req.Accepted, req.Reason); err != nil {
		log.Error().Err(err).Str("quote_id", quoteID).Msg("failed to update quote status")
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Failed to update quote status",
		})
	}

	return c.JSON(fiber.Map{
		"success":  true,
		"quote_id": quoteID,
		"accepted": req.Accepted,
	})
}

// CreateComplaint registers a service case.
func (h *CRMHandler) CreateComplaint(c *fiber.Ctx) error {
	var complaint models.Complaint
	if err := c.BodyParser(&complaint); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Invalid request body",
		})
	}

	complaintID, err := h.crm.CreateComplaint(c.Context(), &complaint)
	if err != nil {
		log.Error().Err(err).Msg("failed to create complaint")
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Failed to create complaint",
		})
	}

	return c.Status(fiber.StatusCreated).JSON(fiber.Map{
		"success":      true,
		"complaint_id": complaintID,
	})
}

// ListComplaintsByCustomer returns a customer's open cases.
func (h *CRMHandler) ListComplaintsByCustomer(c *fiber.Ctx) error {
	accountID := c.Params("accountId")

	complaints, err := h.crm.ComplaintsByCustomer(c.Context(), accountID)
	if err != nil {
		log.Error().Err(err).Str("account_id", accountID).Msg("failed to list complaints")
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Failed to fetch complaints",
		})
	}

	return c.JSON(fiber.Map{
		"success":    true,
		"complaints": complaints,
		"count":      len(complaints),
	})
}

// ListOrdersByCustomer returns a customer's active sales orders.
func (h *CRMHandler) ListOrdersByCustomer(c *fiber.Ctx) error {
	accountID := c.Params("accountId")

	orders, err := h.crm.SalesOrdersByCustomer(c.Context(), accountID)
	if err != nil {
		log.Error().Err(err).Str("account_id", accountID).Msg("failed to list sales orders")
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Failed to fetch orders",
		})
	}

	return c.JSON(fiber.Map{
		"success": true,
		"orders":  orders,
		"count":   len(orders),
	})
}

// CreateDeliveryOrder books a delivery against a sales order.
func (h *CRMHandler) CreateDeliveryOrder(c *fiber.Ctx) error {
	var do models.DeliveryOrder
	if err := c.BodyParser(&do); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Invalid request body",
		})
	}

	doID, err := h.crm.CreateDeliveryOrder(c.Context(), &do)
	if err != nil {
		log.Error().Err(err).Msg("failed to create delivery order")
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Failed to create delivery order",
		})
	}

	return c.Status(fiber.StatusCreated).JSON(fiber.Map{
		"success":           true,
		"delivery_order_id": doID,
	})
}
