package main

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"runtime"
	"syscall"
	"time"

	"github.com/fadilmartias/jobmatch/internal/bootstrap"
	"github.com/fadilmartias/jobmatch/internal/config"
	"github.com/fadilmartias/jobmatch/internal/domain/fiber/handler"
	"github.com/fadilmartias/jobmatch/internal/logging"
	"github.com/fadilmartias/jobmatch/internal/middleware"
	"github.com/goccy/go-json"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/adaptor"
	"github.com/gofiber/fiber/v2/middleware/compress"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/healthcheck"
	"github.com/gofiber/fiber/v2/middleware/helmet"
	"github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/pprof"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

func main() {
	if err := godotenv.Load(); err != nil {
		logging.Warn().Msg("Could not load .env file")
	}

	appConfig := config.LoadAppConfig()
	logging.Init(logging.Config{Level: appConfig.LogLevel, Format: appConfig.LogFormat})

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	db, err := bootstrap.ConnectDB(config.LoadDBConfig(), appConfig)
	if err != nil {
		logging.Fatal().Err(err).Msg("Could not connect to database")
	}
	jm, err := bootstrap.New(ctx, db)
	if err != nil {
		logging.Fatal().Err(err).Msg("Could not wire application")
	}

	app := fiber.New(fiber.Config{
		AppName:     appConfig.Name,
		BodyLimit:   8 * 1024 * 1024,
		JSONEncoder: json.Marshal,
		JSONDecoder: json.Unmarshal,
		ErrorHandler: func(ctx *fiber.Ctx, err error) error {
			// Status code defaults to 500
			code := fiber.StatusInternalServerError

			var e *fiber.Error
			if errors.As(err, &e) {
				code = e.Code
			}

			message := err.Error()
			if message == "" {
				message = "Internal Server Error"
			}

			return ctx.Status(code).JSON(fiber.Map{"success": false, "message": message})
		},
	})
	app.Use(logger.New())
	app.Use(cors.New(cors.Config{
		AllowOrigins: "*",
	}))
	app.Use(recover.New(recover.Config{
		EnableStackTrace: appConfig.Env != "production",
	}))
	app.Use(compress.New(compress.Config{
		Level: compress.LevelBestSpeed,
	}))
	app.Use(pprof.New(pprof.Config{
		Next: func(c *fiber.Ctx) bool {
			return appConfig.Env == "production"
		},
	}))
	app.Use(healthcheck.New())
	app.Use(helmet.New(helmet.Config{
		CrossOriginResourcePolicy: "cross-origin",
	}))

	app.Get("/metrics", adaptor.HTTPHandler(promhttp.Handler()))
	app.Use(middleware.RateLimiter(appConfig.RateLimit, appConfig.RateWindow))

	handler.NewOfferHandler(jm.Pipeline, jm.Offers).RegisterRoutes(app)
	handler.NewSearchHandler(jm.Search).RegisterRoutes(app)
	handler.NewNLPHandler(jm.Pipeline, jm.Offers).RegisterRoutes(app)

	go func() {
		ticker := time.NewTicker(1 * time.Minute)
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				logging.Debug().Int("goroutines", runtime.NumGoroutine()).Msg("runtime stats")
			}
		}
	}()

	go func() {
		<-ctx.Done()
		logging.Info().Msg("Shutting down")
		if err := app.ShutdownWithTimeout(30 * time.Second); err != nil {
			logging.Err(err).Msg("server shutdown")
		}
	}()

	logging.Info().Str("port", appConfig.Port).Msg("Server running")
	if err := app.Listen(appConfig.Port); err != nil {
		logging.Fatal().Err(err).Msg("Server stopped")
	}
	if err := jm.Close(); err != nil {
		logging.Err(err).Msg("close application")
	}
}
