package routes

import (
	"github.com/gofiber/fiber/v2"

	"github.com/deepnsharma/crm-chat-connector/internal/handlers"
)

// SetupRoutes configures all API routes.
func SetupRoutes(app *fiber.App, webhook *handlers.WebhookHandler, crmAPI *handlers.CRMHandler, push *handlers.PushHandler, health *handlers.HealthHandler) {

	// Root endpoint
	app.Get("/", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{
			"message": "CRM Chat Connector",
			"version": "1.0.0",
			"endpoints": fiber.Map{
				"health":  "/health",
				"webhook": "/webhook/whatsapp",
				"crm":     "/api/crm",
				"push":    "/api/push",
			},
		})
	})

	app.Get("/health", health.Check)

	// ========== WEBHOOK ROUTES ==========
	app.Get("/webhook/whatsapp", webhook.Verify)
	app.Post("/webhook/whatsapp", webhook.Receive)

	// ========== CRM ROUTES (n8n + internal tooling) ==========
	api := app.Group("/api")

	crmGroup := api.Group("/crm")
	crmGroup.Get("/customers", crmAPI.ListCustomers)
	crmGroup.Get("/customers/by-phone/:phone", crmAPI.GetCustomerByPhone)
	crmGroup.Post("/leads", crmAPI.CreateLead)
	crmGroup.Post("/opportunities", crmAPI.CreateOpportunity)
	crmGroup.Get("/quotes/:id", crmAPI.GetQuote)
	crmGroup.Patch("/quotes/:id/status", crmAPI.UpdateQuoteStatus)
	crmGroup.Post("/complaints", crmAPI.CreateComplaint)
	crmGroup.Get("/complaints/customer/:accountId", crmAPI.ListComplaintsByCustomer)
	crmGroup.Get("/orders/customer/:accountId", crmAPI.ListOrdersByCustomer)
	crmGroup.Post("/delivery-orders", crmAPI.CreateDeliveryOrder)

	// ========== PUSH NOTIFICATION ROUTES ==========
	pushGroup := api.Group("/push")
	pushGroup.Post("/quotation", push.SendQuotation)
	pushGroup.Post("/customer-onboarded", push.SendCustomerOnboarded)
	pushGroup.Post("/sales-order", push.SendSalesOrderCreated)
	pushGroup.Post("/delivery-order", push.SendDeliveryOrderCreated)
	pushGroup.Post("/complaint-status", push.SendComplaintStatus)
	pushGroup.Post("/shipment-reminder", push.SendShipmentReminder)
}
