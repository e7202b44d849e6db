package main

import (
	"context"
	"errors"
	"os/signal"
	"syscall"
	"time"

	"github.com/bsm/redislock"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/joho/godotenv"

	"github.com/Windi-Fikriyansyah/obra_be/internal/config"
	"github.com/Windi-Fikriyansyah/obra_be/internal/db"
	"github.com/Windi-Fikriyansyah/obra_be/internal/handlers"
	"github.com/Windi-Fikriyansyah/obra_be/internal/realtime"
	"github.com/Windi-Fikriyansyah/obra_be/internal/repository"
	"github.com/Windi-Fikriyansyah/obra_be/internal/services/assignments"
	"github.com/Windi-Fikriyansyah/obra_be/internal/services/notifications"
	"github.com/Windi-Fikriyansyah/obra_be/internal/services/ratings"
	"github.com/Windi-Fikriyansyah/obra_be/internal/services/requests"
)

func main() {
	_ = godotenv.Load()

	cfg := config.Load()
	logger := config.NewLogger(cfg.LogLevel)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	gdb, err := db.Connect(cfg.DBDSN, db.Options{
		MaxOpenConns: cfg.DBMaxOpenConns,
		MaxIdleConns: cfg.DBMaxIdleConns,
	})
	if err != nil {
		logger.WithError(err).Fatal("connect database")
	}
	if err := db.Migrate(gdb); err != nil {
		logger.WithError(err).Fatal("migrate database")
	}

	rdb := realtime.NewRedis(cfg.RedisAddr, cfg.RedisPassword)
	if err := rdb.Ping(ctx).Err(); err != nil {
		// inbox rows are still written; only realtime delivery is lost
		logger.WithError(err).Warn("redis not reachable")
	}

	hub := realtime.NewHub(logger)
	go hub.Run(ctx)
	go realtime.KeepRelaying(ctx, logger, realtime.DefaultRelayBackoff, func(ctx context.Context) error {
		return realtime.Relay(ctx, rdb, hub, logger)
	})

	tasks := notifications.NewAsyncTasks(logger, 15*time.Second)
	dispatcher := notifications.NewDispatcher(gdb, &realtime.RedisPusher{RDB: rdb}, logger,
		cfg.NotificationExpiry, cfg.NotificationImageURL)
	jobs := repository.NewJobs()

	requestSvc := requests.NewService(gdb, jobs, dispatcher, tasks, logger, cfg.RequestExpiry)
	requestSvc.Locker = redislock.New(rdb)
	assignmentSvc := assignments.NewService(gdb, jobs, dispatcher, tasks, logger)
	ratingSvc := ratings.NewService(gdb, jobs, dispatcher, tasks, logger)

	go requestSvc.RunExpirySweeper(ctx, cfg.ExpirySweepInterval)

	app := fiber.New(fiber.Config{ErrorHandler: handlers.ErrorHandler(logger)})
	app.Use(recover.New())
	app.Use(cors.New(cors.Config{
		AllowOrigins:     cfg.CORSOrigins,
		AllowMethods:     "GET,POST,PUT,PATCH,DELETE,OPTIONS",
		AllowHeaders:     "Origin, Content-Type, Accept, Authorization",
		ExposeHeaders:    "Content-Length",
		AllowCredentials: true,
	}))

	authH := &handlers.AuthHandler{
		DB:          gdb,
		JWTSecret:   cfg.JWTSecret,
		Expires:     cfg.JWTExpiresMin,
		PhoneRegion: cfg.PhoneRegion,
	}
	deps := handlers.Deps{
		Auth:        authH,
		Categories:  handlers.NewCategoryHandler(gdb),
		Requests:    handlers.NewRequestHandler(requestSvc),
		Assignments: handlers.NewAssignmentHandler(assignmentSvc),
		Ratings:     handlers.NewRatingHandler(ratingSvc),
		Notifications: &handlers.NotificationHandler{
			Dispatcher: dispatcher,
			Requests:   requestSvc,
			Hub:        hub,
			JWTSecret:  cfg.JWTSecret,
			Logger:     logger,
		},
		Jobs:      &handlers.JobHandler{DB: gdb, Jobs: jobs},
		Favorites: &handlers.FavoriteHandler{DB: gdb},
		Locations: &handlers.LocationHandler{DB: gdb, Now: func() time.Time { return time.Now().UTC() }},
		Profile: &handlers.ProfileHandler{
			DB:            gdb,
			UploadDir:     cfg.UploadDir,
			PublicBaseURL: cfg.PublicBaseURL,
			PhoneRegion:   cfg.PhoneRegion,
		},
	}
	if cfg.GoogleClientID != "" {
		deps.Google = &handlers.GoogleOAuthHandler{
			Auth:            authH,
			GoogleClientID:  cfg.GoogleClientID,
			GoogleSecret:    cfg.GoogleSecret,
			GoogleRedirect:  cfg.GoogleRedirect,
			FrontendBaseURL: cfg.FrontendBaseURL,
		}
	}
	handlers.Routes(app, deps)

	go func() {
		<-ctx.Done()
		logger.Info("shutting down")
		if err := app.ShutdownWithTimeout(10 * time.Second); err != nil {
			logger.WithError(err).Warn("http shutdown")
		}
	}()

	logger.WithField("port", cfg.AppPort).Info("listening")
	if err := app.Listen(":" + cfg.AppPort); err != nil && !errors.Is(err, context.Canceled) {
		logger.WithError(err).Error("http server stopped")
	}

	tasks.Wait()
	_ = rdb.Close()
	if sqlDB, err := gdb.DB(); err == nil {
		_ = sqlDB.Close()
	}
}
