package main

import (
	"os"
	"os/signal"
	"syscall"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/rs/zerolog/log"

	"github.com/deepnsharma/crm-chat-connector/database"
	"github.com/deepnsharma/crm-chat-connector/internal/config"
	"github.com/deepnsharma/crm-chat-connector/internal/crm"
	"github.com/deepnsharma/crm-chat-connector/internal/handlers"
	"github.com/deepnsharma/crm-chat-connector/internal/logx"
	"github.com/deepnsharma/crm-chat-connector/internal/models"
	"github.com/deepnsharma/crm-chat-connector/internal/routes"
	"github.com/deepnsharma/crm-chat-connector/internal/services"
	"github.com/deepnsharma/crm-chat-connector/internal/storage"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("failed to load configuration")
	}

	logx.Init(cfg.Log)

	// Storage: in-memory for local runs, PostgreSQL otherwise
	var store storage.Store
	if cfg.UseMemoryStore {
		log.Warn().Msg("using in-memory session store (not for production)")
		store = storage.NewMemoryStore()
	} else {
		db, err := database.Connect(cfg.Database)
		if err != nil {
			log.Fatal().Err(err).Msg("failed to connect to database")
		}
		if err := db.AutoMigrate(&models.Session{}); err != nil {
			log.Fatal().Err(err).Msg("failed to migrate database")
		}
		store = storage.NewDatabaseStore(db)
		log.Info().Msg("using PostgreSQL session storage")
	}

	// CRM gateway
	tokens := crm.NewTokenCache(cfg.Dynamics)
	dataverse := crm.NewDataverse(cfg.Dynamics, tokens)

	// Outbound channel and workflow notifier
	whatsapp := services.NewWhatsAppClient(cfg.WhatsApp)
	notifier := services.NewN8nNotifier(cfg.N8n)

	// Engine and push notifications
	chatbot := services.NewChatbot(store, dataverse, whatsapp, notifier)
	push := services.NewPush(whatsapp, dataverse)

	app := fiber.New(fiber.Config{
		AppName: "CRM Chat Connector v1.0.0",
		ErrorHandler: func(c *fiber.Ctx, err error) error {
			code := fiber.StatusInternalServerError
			if e, ok := err.(*fiber.Error); ok {
				code = e.Code
			}
			return c.Status(code).JSON(fiber.Map{
				"error": err.Error(),
			})
		},
	})

	app.Use(logger.New(logger.Config{
		Format: "[${time}] ${status} - ${latency} ${method} ${path}\n",
	}))
	app.Use(recover.New())
	app.Use(cors.New(cors.Config{
		AllowOrigins: "*",
		AllowHeaders: "Origin, Content-Type, Accept, Authorization",
		AllowMethods: "GET, POST, PATCH, DELETE, OPTIONS",
	}))

	routes.SetupRoutes(app,
		handlers.NewWebhookHandler(chatbot, whatsapp, notifier, cfg.WhatsApp.VerifyToken),
		handlers.NewCRMHandler(dataverse),
		handlers.NewPushHandler(push),
		handlers.NewHealthHandler(tokens),
	)

	// Graceful shutdown on SIGINT/SIGTERM
	go func() {
		quit := make(chan os.Signal, 1)
		signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
		<-quit
		log.Info().Msg("shutting down")
		if err := app.Shutdown(); err != nil {
			log.Error().Err(err).Msg("shutdown error")
		}
	}()

	log.Info().Str("port", cfg.Port).Str("environment", cfg.Environment).Msg("starting server")
	if err := app.Listen(":" + cfg.Port); err != nil {
		log.Fatal().Err(err).Msg("server stopped")
	}
}
