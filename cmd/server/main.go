package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/recover"

	"github.com/example/velora/internal/cache"
	"github.com/example/velora/internal/config"
	"github.com/example/velora/internal/database"
	"github.com/example/velora/internal/queue"
	"github.com/example/velora/internal/routes"
	"github.com/example/velora/internal/services"
)

func main() {
	cfg := config.Load()

	db, err := database.Connect(cfg.DatabaseURL)
	if err != nil {
		log.Fatalf("database connect: %v", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	store, err := cache.ConnectRedis(ctx, cfg.RedisURL)
	cancel()
	if err != nil {
		log.Fatalf("redis connect: %v", err)
	}

	var mailer services.MailEnqueuer = services.LogMailer{}
	mailQueue, err := queue.Connect(cfg.RabbitURL, cfg.MailQueue)
	if err != nil {
		// Mail delivery degrades to log output; everything else keeps working.
		log.Printf("[Mail] rabbitmq unavailable, falling back to log mailer: %v", err)
	} else {
		mailer = services.NewQueueMailer(mailQueue)
		defer mailQueue.Close()
	}

	app := fiber.New(fiber.Config{
		AppName:      "Velora Backend",
		ErrorHandler: errorHandler,
	})

	app.Use(recover.New())
	app.Use(logger.New())

	routes.Register(app, db, cfg, store, mailer)

	go func() {
		quit := make(chan os.Signal, 1)
		signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
		<-quit
		log.Println("Shutting down...")
		if err := app.ShutdownWithTimeout(10 * time.Second); err != nil {
			log.Printf("shutdown error: %v", err)
		}
	}()

	log.Printf("Starting server on :%s", cfg.AppPort)
	if err := app.Listen(":" + cfg.AppPort); err != nil {
		log.Fatalf("fiber.Listen error: %v", err)
	}

	if err := store.Close(); err != nil {
		log.Printf("redis close error: %v", err)
	}
	if err := database.Close(db); err != nil {
		log.Printf("database close error: %v", err)
	}
}

// errorHandler renders fiber errors as the API's JSON error shape.
func errorHandler(c *fiber.Ctx, err error) error {
	code := fiber.StatusInternalServerError
	message := "Internal server error"
	if e, ok := err.(*fiber.Error); ok {
		code = e.Code
		message = e.Message
	} else {
		log.Printf("[HTTP] %s %s: %v", c.Method(), c.Path(), err)
	}
	return c.Status(code).JSON(fiber.Map{"success": false, "error": message})
}
