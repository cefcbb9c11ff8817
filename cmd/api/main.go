package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gofiber/contrib/swagger"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/recover"

	"github.com/jhoicas/acumulus-sync/internal/application/billing"
	infraacu "github.com/jhoicas/acumulus-sync/internal/infrastructure/acumulus"
	"github.com/jhoicas/acumulus-sync/internal/infrastructure/mail"
	"github.com/jhoicas/acumulus-sync/internal/infrastructure/postgres"
	"github.com/jhoicas/acumulus-sync/internal/infrastructure/shop"
	httpRouter "github.com/jhoicas/acumulus-sync/internal/interfaces/http"
	"github.com/jhoicas/acumulus-sync/pkg/config"
	"github.com/jhoicas/acumulus-sync/pkg/logger"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		panic("cargar configuración: " + err.Error())
	}

	log := logger.New(logger.Config{
		Env:   cfg.App.Env,
		Level: "info",
	})
	log.Info().
		Str("env", cfg.App.Env).
		Str("app", cfg.App.Name).
		Bool("test_mode", cfg.Acumulus.TestMode).
		Msg("iniciando aplicación")

	ctx := context.Background()
	pool, err := postgres.NewPool(ctx, cfg.DB)
	if err != nil {
		log.Fatal().Err(err).Msg("conexión a PostgreSQL")
	}
	defer pool.Close()

	entryRepo := postgres.NewEntryRepository(pool)
	orderReader := postgres.NewOrderReader(pool)

	acuClient := infraacu.NewClient(infraacu.Config{
		BaseURL:      cfg.Acumulus.BaseURL,
		ContractCode: cfg.Acumulus.ContractCode,
		UserName:     cfg.Acumulus.UserName,
		Password:     cfg.Acumulus.Password,
	})

	invoiceBuilder := shop.NewInvoiceBuilder(orderReader, cfg.Acumulus.SendAsConcept)
	notifier := mail.NewNotifier(mail.Config{
		Host:     cfg.SMTP.Host,
		Port:     cfg.SMTP.Port,
		User:     cfg.SMTP.User,
		Password: cfg.SMTP.Password,
		From:     cfg.SMTP.From,
		To:       cfg.SMTP.To,
	})

	billingCfg := billing.Config{
		TestMode:               cfg.Acumulus.TestMode,
		SendEmptyInvoices:      cfg.Acumulus.SendEmpty,
		AlwaysNotify:           cfg.Acumulus.AlwaysNotify,
		LockTTL:                cfg.Acumulus.LockTTL,
		TriggerOrderStatuses:   cfg.Acumulus.TriggerOrderStatuses,
		TriggerOnInvoiceCreate: cfg.Acumulus.TriggerOnInvoiceCreate,
		TriggerOnInvoiceSend:   cfg.Acumulus.TriggerOnInvoiceSend,
		BatchSourceTimeout:     cfg.Acumulus.BatchSourceTimeout,
	}

	engine := billing.NewSendEngine(entryRepo, acuClient, invoiceBuilder, notifier, billingCfg, log)
	manager := billing.NewInvoiceManager(engine, billingCfg, log)
	reconciler := billing.NewStatusReconciler(entryRepo, acuClient, orderReader, log)

	app := fiber.New(fiber.Config{
		AppName:      cfg.App.Name,
		ReadTimeout:  time.Second * 10,
		WriteTimeout: time.Second * 10,
		IdleTimeout:  time.Second * 60,
	})
	app.Use(recover.New())

	// Swagger UI en local: http://localhost:<port>/docs
	app.Use(swagger.New(swagger.Config{
		BasePath: "/",
		FilePath: "./docs/swagger.json",
		Path:     "docs",
		Title:    "Acumulus Sync API",
	}))

	app.Get("/health", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{"status": "ok", "service": cfg.App.Name})
	})

	httpRouter.Router(app, httpRouter.RouterDeps{
		Manager:    manager,
		Reconciler: reconciler,
		Orders:     orderReader,
		JWTSecret:  cfg.JWT.Secret,
	})

	go func() {
		if err := app.Listen(cfg.HTTP.Addr()); err != nil {
			log.Error().Err(err).Msg("servidor HTTP finalizado")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info().Msg("señal de apagado recibida, cerrando servidor...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := app.ShutdownWithContext(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("apagado del servidor")
	}

	log.Info().Msg("aplicación detenida")
}
