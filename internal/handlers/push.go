package handlers

import (
	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog/log"

	"github.com/deepnsharma/crm-chat-connector/internal/services"
)

// PushHandler exposes outbound notification triggers, called by CRM-side
// workflow automation when business records change.
type PushHandler struct {
	push *services.Push
}

// NewPushHandler creates a new push handler.
func NewPushHandler(push *services.Push) *PushHandler {
	return &PushHandler{push: push}
}

// SendQuotation pushes a quotation with accept/decline buttons.
func (h *PushHandler) SendQuotation(c *fiber.Ctx) error {
	var req struct {
		PhoneNumber string `json:"phone_number"`
		QuoteID     string `json:"quote_id"`
		DocumentURL string `json:"document_url"`
	}
	if err := c.BodyParser(&req); err != nil || req.PhoneNumber == "" || req.QuoteID == "" {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "phone_number and quote_id are required",
		})
	}

	if err := h.push.SendQuotation(c.Context(), req.PhoneNumber, req.QuoteID, req.DocumentURL); err != nil {
		log.Error().Err(err).Str("quote_id", req.QuoteID).Msg("quotation push failed")
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Failed to send quotation notification",
		})
	}

	return c.JSON(fiber.Map{"success": true})
}

// SendCustomerOnboarded pushes the welcome message.
func (h *PushHandler) SendCustomerOnboarded(c *fiber.Ctx) error {
	var req struct {
		PhoneNumber  string `json:"phone_number"`
		CustomerName string `json:"customer_name"`
	}
	if err := c.BodyParser(&req); err != nil || req.PhoneNumber == "" {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "phone_number is required",
		})
	}

	if err := h.push.SendCustomerOnboarded(req.PhoneNumber, req.CustomerName); err != nil {
		log.Error().Err(err).Msg("onboarding push failed")
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Failed to send onboarding notification",
		})
	}

	return c.JSON(fiber.Map{"success": true})
}

// SendSalesOrderCreated pushes a sales order confirmation.
func (h *PushHandler) SendSalesOrderCreated(c *fiber.Ctx) error {
	var req struct {
		PhoneNumber string  `json:"phone_number"`
		OrderNumber string  `json:"order_number"`
		Amount      float64 `json:"amount"`
	}
	if err := c.BodyParser(&req); err != nil || req.PhoneNumber == "" || req.OrderNumber == "" {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "phone_number and order_number are required",
		})
	}

	if err := h.push.SendSalesOrderCreated(req.PhoneNumber, req.OrderNumber, req.Amount); err != nil {
		log.Error().Err(err).Msg("sales order push failed")
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Failed to send sales order notification",
		})
	}

	return c.JSON(fiber.Map{"success": true})
}

// SendDeliveryOrderCreated pushes a delivery booking confirmation.
func (h *PushHandler) SendDeliveryOrderCreated(c *fiber.Ctx) error {
	var req struct {
		PhoneNumber  string `json:"phone_number"`
		DONumber     string `json:"do_number"`
		DeliveryDate string `json:"delivery_date"`
	}
	if err := c.BodyParser(&req); err != nil || req.PhoneNumber == "" || req.DONumber == "" {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "phone_number and do_number are required",
		})
	}

	if err := h.push.SendDeliveryOrderCreated(req.PhoneNumber, req.DONumber, req.DeliveryDate); err != nil {
		log.Error().Err(err).Msg("delivery order push failed")
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Failed to send delivery order notification",
		})
	}

	return c.JSON(fiber.Map{"success": true})
}

// SendComplaintStatus pushes a complaint lifecycle update.
func (h *PushHandler) SendComplaintStatus(c *fiber.Ctx) error {
	var req struct {
		PhoneNumber string `json:"phone_number"`
		TicketRef   string `json:"ticket_ref"`
		Status      string `json:"status"`
	}
	if err := c.BodyParser(&req); err != nil || req.PhoneNumber == "" || req.TicketRef == "" {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "phone_number and ticket_ref are required",
		})
	}

	if err := h.push.SendComplaintStatus(req.PhoneNumber, req.TicketRef, req.Status); err != nil {
		log.Error().Err(err).Msg("complaint status push failed")
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Failed to send complaint status notification",
		})
	}

	return c.JSON(fiber.Map{"success": true})
}

// SendShipmentReminder pushes an upcoming delivery reminder.
func (h *PushHandler) SendShipmentReminder(c *fiber.Ctx) error {
	var req struct {
		PhoneNumber  string `json:"phone_number"`
		DONumber     string `json:"do_number"`
		DeliveryDate string `json:"delivery_date"`
	}
	if err := c.BodyParser(&req); err != nil || req.PhoneNumber == "" || req.DONumber == "" {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "phone_number and do_number are required",
		})
	}

	if err := h.push.SendShipmentReminder(req.PhoneNumber, req.DONumber, req.DeliveryDate); err != nil {
		log.Error().Err(err).Msg("shipment reminder push failed")
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Failed to send shipment reminder",
		})
	}

	return c.JSON(fiber.Map{"success": true})
}
