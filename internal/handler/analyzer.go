package handler

import (
	"errors"
	"net/http"

	"road-analyzer-go/internal/service"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
)

// AnalyzerHandler обрабатывает HTTP запросы пайплайна анализа дорог
type AnalyzerHandler struct {
	jobs   *service.JobManager
	logger *logrus.Logger
}

// NewAnalyzerHandler создает новый обработчик
func NewAnalyzerHandler(jobs *service.JobManager, logger *logrus.Logger) *AnalyzerHandler {
	return &AnalyzerHandler{
		jobs:   jobs,
		logger: logger,
	}
}

// RegisterRoutes регистрирует маршруты API
func (h *AnalyzerHandler) RegisterRoutes(router *gin.Engine) {
	api := router.Group("/api/v1")
	{
		api.POST("/analyze", h.SubmitAnalysis)
		api.GET("/jobs", h.ListJobs)
		api.GET("/jobs/:id/status", h.GetJobStatus)
		api.GET("/jobs/:id/result", h.GetJobResult)
		api.GET("/health", h.CheckHealth)
	}
}

// SubmitAnalysis принимает видео на анализ и создает фоновое задание
// @Summary Анализ состояния дороги
// @Description Принимает видео с регистратора и название дороги, запускает анализ в фоне
// @Tags analysis
// @Accept multipart/form-data
// @Produce json
// @Param video formData file true "Видео файл для анализа"
// @Param road_name formData string true "Название дороги"
// @Param road_location formData string true "Город или район дороги"
// @Success 202 {object} service.SubmitResponse
// @Failure 400 {object} gin.H
// @Failure 500 {object} gin.H
// @Router /analyze [post]
func (h *AnalyzerHandler) SubmitAnalysis(c *gin.Context) {
	h.logger.Info("Получен запрос на анализ состояния дороги")

	// Парсим multipart form
	if err := c.Request.ParseMultipartForm(32 << 20); err != nil { // 32 MB max
		h.logger.Errorf("Ошибка парсинга multipart form: %v", err)
		c.JSON(http.StatusBadRequest, gin.H{"error": "Ошибка парсинга формы"})
		return
	}

	// Получаем параметры (поддерживаем разные форматы ключей)
	roadName := getFormValue(c, []string{"road_name", "roadName"})
	roadLocation := getFormValue(c, []string{"road_location", "roadLocation", "location"})

	// Получаем видео файл
	file, header, err := c.Request.FormFile("video")
	if err != nil {
		h.logger.Errorf("Ошибка получения видео файла: %v", err)
		c.JSON(http.StatusBadRequest, gin.H{"error": "Видео файл обязателен"})
		return
	}
	defer file.Close()

	jobID, err := h.jobs.Submit(file, header.Filename, roadName, roadLocation)
	if err != nil {
		if errors.Is(err, service.ErrValidation) {
			h.logger.Errorf("Ошибка валидации запроса: %v", err)
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}

		h.logger.Errorf("Ошибка создания задания: %v", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Ошибка создания задания анализа"})
		return
	}

	h.logger.Infof("Задание %s принято в обработку", jobID)
	c.JSON(http.StatusAccepted, service.SubmitResponse{
		JobID:  jobID,
		Status: service.StatusQueued,
	})
}

// GetJobStatus возвращает статус задания по ID
// @Summary Статус задания анализа
// @Tags analysis
// @Produce json
// @Param id path string true "ID задания"
// @Success 200 {object} service.JobStatusInfo
// @Failure 404 {object} gin.H
// @Router /jobs/{id}/status [get]
func (h *AnalyzerHandler) GetJobStatus(c *gin.Context) {
	jobID := c.Param("id")

	status, err := h.jobs.Status(jobID)
	if err != nil {
		h.logger.Errorf("Ошибка получения статуса задания %s: %v", jobID, err)
		c.JSON(http.StatusNotFound, gin.H{"error": "Задание не найдено"})
		return
	}

	c.JSON(http.StatusOK, status)
}

// GetJobResult возвращает результат завершенного задания
// @Summary Результат анализа
// @Tags analysis
// @Produce json
// @Param id path string true "ID задания"
// @Success 200 {object} models.AnalysisResult
// @Failure 404 {object} gin.H
// @Failure 409 {object} gin.H
// @Router /jobs/{id}/result [get]
func (h *AnalyzerHandler) GetJobResult(c *gin.Context) {
	jobID := c.Param("id")

	result, err := h.jobs.Result(jobID)
	if err != nil {
		switch {
		case errors.Is(err, service.ErrJobNotReady):
			c.JSON(http.StatusConflict, gin.H{"error": "Анализ еще не завершен"})
		case errors.Is(err, service.ErrJobNotFound):
			c.JSON(http.StatusNotFound, gin.H{"error": "Задание не найдено"})
		default:
			h.logger.Errorf("Ошибка получения результата задания %s: %v", jobID, err)
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Ошибка получения результата"})
		}
		return
	}

	c.JSON(http.StatusOK, result)
}

// ListJobs возвращает список всех заданий
func (h *AnalyzerHandler) ListJobs(c *gin.Context) {
	jobs := h.jobs.ListJobs()

	c.JSON(http.StatusOK, service.ListJobsResponse{
		Jobs:  jobs,
		Total: len(jobs),
	})
}

// CheckHealth проверяет состояние сервиса и его зависимостей
func (h *AnalyzerHandler) CheckHealth(c *gin.Context) {
	if err := h.jobs.CheckHealth(c.Request.Context()); err != nil {
		h.logger.Errorf("Сервис детекции недоступен: %v", err)
		c.JSON(http.StatusServiceUnavailable, gin.H{
			"status": "unhealthy",
			"error":  "Сервис детекции недоступен",
		})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"status":  "healthy",
		"message": "Сервис работает нормально",
	})
}

// getFormValue получает значение из формы, пробуя разные варианты ключей
func getFormValue(c *gin.Context, keys []string) string {
	for _, key := range keys {
		if value := c.PostForm(key); value != "" {
			return value
		}
	}
	return ""
}
