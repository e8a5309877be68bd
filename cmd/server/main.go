package main

import (
	"os"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"realprice/server/config"
	"realprice/server/internal/api"
	"realprice/server/internal/database"
	"realprice/server/internal/dataset"
	"realprice/server/internal/market"
	"realprice/server/internal/monitor"
	"realprice/server/internal/scheduler"
)

// refreshHour is when the daily dataset refresh runs
const refreshHour = 3

func main() {
	logger := logrus.New()
	logger.SetFormatter(&logrus.JSONFormatter{})
	logger.SetOutput(os.Stdout)

	cfg, err := config.LoadConfig()
	if err != nil {
		logger.WithError(err).Fatal("Failed to load configuration")
	}

	db, err := database.NewDatabase(cfg.DatabasePath)
	if err != nil {
		logger.WithError(err).Fatal("Failed to initialize database")
	}
	defer db.Close()

	logger.Info("Running database migrations...")
	if err := db.RunMigrations(); err != nil {
		logger.WithError(err).Fatal("Failed to run database migrations")
	}

	datasets, err := dataset.NewManager(logger, cfg)
	if err != nil {
		logger.WithError(err).Fatal("Failed to initialize dataset manager")
	}

	service := market.NewService(logger, cfg, datasets, "taichung")
	monitorService := monitor.NewService(logger, db)

	sched := scheduler.NewScheduler(datasets, logger, refreshHour)
	sched.Start()
	defer sched.Stop()

	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(cors.Default())

	handler := api.NewHandler(service, db, monitorService, logger)
	api.SetupRoutes(router, handler)

	logger.Infof("Starting server on port %s", cfg.Port)
	if err := router.Run(":" + cfg.Port); err != nil {
		logger.WithError(err).Fatal("Server failed to start")
	}
}
