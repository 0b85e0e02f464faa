package main

import (
	"errors"
	"flag"
	"log"
	"runtime"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/logger"
	"go.uber.org/zap"

	"github.com/high-horse/fingerprint/config"
	"github.com/high-horse/fingerprint/logging"
	"github.com/high-horse/fingerprint/store"
)

func main() {
	configPath := flag.String("config", "", "path to a TOML config file")
	flag.Parse()

	cfg, err := loadConfig(*configPath)
	if err != nil {
		log.Fatal(err)
	}

	zlog, closer, err := logging.New(cfg.Log)
	if err != nil {
		log.Fatal(err)
	}
	defer closer.Close()
	defer zlog.Sync()

	db, err := store.NewDB(cfg.Server.DBPath)
	if err != nil {
		zlog.Fatal("failed to open database", zap.Error(err))
	}
	defer db.Close()

	app := newApp(newService(cfg, zlog, db))
	zlog.Info("server starting", zap.String("addr", cfg.Server.Addr), zap.Int("workers", cfg.Workers))
	if err := app.Listen(cfg.Server.Addr); err != nil {
		zlog.Error("server stopped", zap.Error(err))
	}
}

// loadConfig defaults workers to the CPU count unless the file sets them.
func loadConfig(path string) (*config.DefaultConfig, error) {
	cfg := config.LoadDefaultConfig()
	cfg.Workers = runtime.NumCPU()
	if path == "" {
		return cfg, nil
	}
	return config.DecodeFile(cfg, path)
}

func newApp(s *service) *fiber.App {
	app := fiber.New(fiber.Config{
		BodyLimit: s.cfg.Server.BodyLimit,
		ErrorHandler: func(c *fiber.Ctx, err error) error {
			code := fiber.StatusInternalServerError
			var e *fiber.Error
			if errors.As(err, &e) {
				code = e.Code
			}
			if code >= fiber.StatusInternalServerError {
				s.logger.Error("request failed", zap.String("path", c.Path()), zap.Error(err))
			}
			return c.Status(code).JSON(ErrorResponse{Error: err.Error()})
		},
	})

	app.Use(logger.New())
	app.Use(cors.New())

	app.Get("/health", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{
			"status": "ok",
			"time":   time.Now(),
		})
	})
	app.Post("/match", s.matchFingerprints)
	app.Post("/process", s.processFingerprint)
	app.Post("/enroll", s.enroll)
	app.Post("/identify", s.identify)
	app.Get("/users", s.users)
	app.Delete("/users/:fingerprint", s.deleteUser)
	return app
}
