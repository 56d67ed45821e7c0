package main

import (
	"database/sql"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/joho/godotenv"
	_ "github.com/lib/pq"
	config "github.com/maheshrc27/postqueue/configs"
	"github.com/maheshrc27/postqueue/internal/api/handlers"
	"github.com/maheshrc27/postqueue/internal/dispatch"
	job "github.com/maheshrc27/postqueue/internal/jobs"
	"github.com/maheshrc27/postqueue/internal/publisher"
	"github.com/maheshrc27/postqueue/internal/repository"
	"github.com/maheshrc27/postqueue/internal/scheduler"
	"github.com/maheshrc27/postqueue/internal/service"
	"github.com/robfig/cron"
)

func main() {
	if err := godotenv.Load(); err != nil {
		log.Println("Warning: Failed to load environment variables", err)
	}

	cfg := config.LoadConfig()

	var db *sql.DB
	var postRepo repository.PostRepository
	var historyRepo repository.DispatchHistoryRepository
	var mediaAssetRepo repository.MediaAssetRepository
	var postMediaRepo repository.PostMediaRepository

	if cfg.PostgresURI != "" {
		var err error
		db, err = sql.Open("postgres", cfg.PostgresURI)
		if err != nil {
			log.Fatalf("Failed to connect to database: %v", err)
		}
		defer closeDB(db)

		if err := db.Ping(); err != nil {
			log.Fatalf("Database is unreachable: %v", err)
		}

		postRepo = repository.NewPostRepository(db)
		historyRepo = repository.NewDispatchHistoryRepository(db)
		mediaAssetRepo = repository.NewMediaAssetRepository(db)
		postMediaRepo = repository.NewPostMediaRepository(db)
	} else {
		log.Println("POSTGRES_URI not set, using the in-memory store (posts will not survive restarts)")
		postRepo = repository.NewMemoryPostRepository()
	}

	var r2Service *service.R2Service
	if db != nil && cfg.R2.AccountID != "" {
		var err error
		r2Service, err = service.NewR2Service(*cfg)
		if err != nil {
			log.Fatalf("Failed to initialize media storage: %v", err)
		}
	}

	registry := publisher.NewRegistry()
	for platform, endpoint := range cfg.WebhookPlatforms {
		if cfg.OAuth.TokenURL != "" {
			registry.Register(platform, publisher.NewOAuthWebhookPublisher(platform, endpoint, cfg.OAuth.TokenURL, cfg.OAuth.ClientID, cfg.OAuth.ClientSecret))
		} else {
			registry.Register(platform, publisher.NewWebhookPublisher(platform, endpoint))
		}
	}
	log.Printf("Registered publishers: %v", registry.Platforms())

	postService := service.NewPostService(db, postRepo, mediaAssetRepo, postMediaRepo, historyRepo, r2Service)

	app := fiber.New(fiber.Config{
		BodyLimit: 100 * 1024 * 1024, // 100 MB
		ErrorHandler: func(c *fiber.Ctx, err error) error {
			log.Printf("Error: %v", err)
			return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": err.Error()})
		},
	})

	app.Use(logger.New())
	app.Use(cors.New(cors.Config{
		AllowMethods: "GET,POST,OPTIONS",
		AllowHeaders: "Origin, Content-Type, Accept",
		MaxAge:       3600,
	}))

	api := app.Group("/api")

	post := handlers.NewPostHandler(postService)
	api.Post("/posts/create", post.CreatePost)
	api.Get("/posts", post.ListPosts)
	api.Get("/posts/history", post.PostHistory)

	policy := dispatch.NewPolicy(cfg.MaxAttempts)
	sched := scheduler.New(postRepo, registry, policy,
		scheduler.WithPublishTimeout(cfg.PublishTimeout),
		scheduler.WithConcurrency(cfg.DispatchConcurrency),
		scheduler.WithHistory(historyRepo),
		scheduler.WithMedia(postMediaRepo, mediaAssetRepo),
	)

	// Posts left in dispatching by an interrupted process go back to
	// pending before the first tick can run.
	reconcileJob := job.NewReconcileJob(postRepo, cfg.StaleAfter)
	reconcileJob.Run()

	c := cron.New()
	c.AddFunc(fmt.Sprintf("@every %s", cfg.TickInterval), sched.Run)
	c.AddFunc(fmt.Sprintf("@every %s", cfg.StaleAfter), reconcileJob.Run)
	c.Start()
	defer c.Stop()

	go func() {
		if err := app.Listen(":" + cfg.Port); err != nil {
			log.Fatalf("Failed to start server: %v", err)
		}
	}()
	log.Printf("Server is running on http://localhost:%s", cfg.Port)

	gracefulShutdown(app)
}

func closeDB(db *sql.DB) {
	fmt.Fprint(os.Stdout, "Closing database connection... ")
	if err := db.Close(); err != nil {
		fmt.Fprintf(os.Stderr, "Failed to close database: %v", err)
		return
	}
	fmt.Fprintln(os.Stdout, "Done")
}

func gracefulShutdown(app *fiber.App) {
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt, syscall.SIGTERM)

	<-quit
	log.Println("Shutting down server...")

	if err := app.Shutdown(); err != nil {
		log.Fatalf("Failed to shut down server: %v", err)
	}

	log.Println("Server shutdown complete.")
}
