package main

import (
	"fmt"
	"net/http"
	"os"
	"time"

	"road-analyzer-go/internal/analysis"
	"road-analyzer-go/internal/client"
	"road-analyzer-go/internal/config"
	"road-analyzer-go/internal/geo"
	"road-analyzer-go/internal/handler"
	"road-analyzer-go/internal/service"
	"road-analyzer-go/internal/video"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
)

func main() {
	// Инициализируем логгер
	logger := logrus.New()
	logger.SetFormatter(&logrus.JSONFormatter{})

	logger.Info("Запуск Road Analyzer API Server")

	// Получаем конфигурацию из переменных окружения
	cfg := config.LoadConfig()

	if level, err := logrus.ParseLevel(cfg.Logging.Level); err == nil {
		logger.SetLevel(level)
	} else {
		logger.SetLevel(logrus.InfoLevel)
	}

	// Создаем папку для загруженных видео
	uploadDir := cfg.Pipeline.UploadDir
	if err := os.MkdirAll(uploadDir, 0755); err != nil {
		logger.Fatalf("Ошибка создания папки для загрузок: %v", err)
	}

	// Инициализируем клиенты внешних сервисов
	detectorClient := client.NewDetectorAPIClient(
		cfg.DetectorAPI.BaseURL,
		time.Duration(cfg.DetectorAPI.Timeout)*time.Second,
		logger,
	)

	geocoderTimeout := time.Duration(cfg.Geocoder.Timeout) * time.Second
	nominatimClient := client.NewNominatimClient(cfg.Geocoder.NominatimBaseURL, cfg.Geocoder.UserAgent, geocoderTimeout, logger)
	overpassClient := client.NewOverpassClient(cfg.Geocoder.OverpassBaseURL, geocoderTimeout, logger)

	// Инициализируем компоненты пайплайна
	resolver := geo.NewResolver(nominatimClient, overpassClient, logger)
	decoder := video.NewFFmpegDecoder(logger)
	classifier := analysis.NewClassifier()

	// Инициализируем менеджер заданий
	registry := service.NewJobRegistry()
	jobManager := service.NewJobManager(
		registry,
		resolver,
		detectorClient,
		decoder,
		classifier,
		cfg.Pipeline.MaxConcurrentJobs,
		uploadDir,
		logger,
	)

	// Инициализируем обработчики
	analyzerHandler := handler.NewAnalyzerHandler(jobManager, logger)

	// Настраиваем Gin router
	if cfg.Server.Environment == "production" {
		gin.SetMode(gin.ReleaseMode)
	}

	router := gin.New()

	// Добавляем middleware
	router.Use(gin.Logger())
	router.Use(gin.Recovery())
	router.Use(corsMiddleware())

	// Регистрируем маршруты
	analyzerHandler.RegisterRoutes(router)

	// Добавляем базовый маршрут для проверки
	router.GET("/", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"message": "Road Analyzer API Server",
			"version": "1.0.0",
			"status":  "running",
		})
	})

	// Запускаем сервер
	serverAddr := fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port)
	logger.Infof("Сервер запущен на %s", serverAddr)
	logger.Infof("API доступно по адресу: http://localhost:%d/api/v1", cfg.Server.Port)

	if err := router.Run(serverAddr); err != nil {
		logger.Fatalf("Ошибка запуска сервера: %v", err)
	}
}

// corsMiddleware добавляет заголовки CORS
func corsMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Header("Access-Control-Allow-Origin", "*")
		c.Header("Access-Control-Allow-Methods", "GET, POST, PUT, PATCH, DELETE, OPTIONS")
		c.Header("Access-Control-Allow-Headers", "Origin, Content-Type, Accept, Authorization, X-Requested-With")
		c.Header("Access-Control-Allow-Credentials", "true")

		if c.Request.Method == "OPTIONS" {
			c.AbortWithStatus(http.StatusNoContent)
			return
		}

		c.Next()
	}
}
