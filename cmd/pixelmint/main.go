package main

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/monitor"
	"github.com/gofiber/fiber/v2/middleware/recover"

	apiv1 "github.com/pixelmint/pixelmint/internal/api/v1"
	"github.com/pixelmint/pixelmint/internal/pkg/cache"
	"github.com/pixelmint/pixelmint/internal/pkg/credits"
	"github.com/pixelmint/pixelmint/internal/pkg/database"
	"github.com/pixelmint/pixelmint/internal/pkg/env"
	"github.com/pixelmint/pixelmint/internal/pkg/imageprocessor"
	"github.com/pixelmint/pixelmint/internal/pkg/imageprocessor/removebg"
	"github.com/pixelmint/pixelmint/internal/pkg/payment"
	"github.com/pixelmint/pixelmint/internal/pkg/processing"
	"github.com/pixelmint/pixelmint/internal/pkg/storage"
	"github.com/pixelmint/pixelmint/internal/pkg/subscription"
)

func main() {
	app := NewApplication()
	err := app.Listen(fmt.Sprintf("%s:%s", env.GetEnv("APP_HOST", "localhost"), env.GetEnv("APP_PORT", "4000")))
	log.Fatal(err)
}

func NewApplication() *fiber.App {
	env.SetupEnvFile()
	database.SetupDatabase()
	cache.SetupCache()

	db := database.GetDB()

	storageCfg, err := storage.LoadConfig()
	if err != nil {
		log.Fatalf("storage config: %v", err)
	}
	store, err := storage.NewStore(storageCfg)
	if err != nil {
		log.Fatalf("storage setup: %v", err)
	}

	var remover imageprocessor.BackgroundRemover
	if endpoint := env.GetEnv("REMOVEBG_ENDPOINT", ""); endpoint != "" {
		remover = removebg.NewClient(endpoint, env.GetEnv("REMOVEBG_API_KEY", ""))
	}
	engine := imageprocessor.NewEngine(remover)

	creditSvc := credits.NewService(db)
	subSvc := subscription.NewService(db, creditSvc)
	paymentSvc := payment.NewService(db)
	orch := processing.NewOrchestrator(db, creditSvc, subSvc, engine, store)

	// Background sweep for elapsed subscription periods.
	sweeper := subscription.NewSweeper(1*time.Hour, subSvc)
	go sweeper.Run(context.Background())

	app := fiber.New(fiber.Config{
		BodyLimit: 256 * 1024 * 1024,
	})
	app.Use(recover.New(), logger.New())
	app.Get("/metrics", monitor.New())

	server := apiv1.NewServer(orch, creditSvc, subSvc, paymentSvc, env.GetEnv("WEBHOOK_SECRET", ""))
	apiv1.InstallRoutes(app, server)

	return app
}
