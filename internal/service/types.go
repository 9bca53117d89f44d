package service

import (
	"errors"
	"fmt"
	"time"

	"road-analyzer-go/pkg/models"
)

// JobStatus статус задания анализа
type JobStatus string

const (
	StatusQueued     JobStatus = "queued"     // Задание ждет свободного воркера
	StatusProcessing JobStatus = "processing" // Задание выполняется
	StatusCompleted  JobStatus = "completed"  // Задание завершено, результат доступен
	StatusFailed     JobStatus = "failed"     // Задание завершилось ошибкой
)

// Ошибки операций чтения заданий
var (
	ErrJobNotFound = errors.New("job not found")
	ErrJobNotReady = errors.New("job result is not ready")
)

// ErrValidation базовая ошибка валидации входных данных задания
var ErrValidation = errors.New("validation failed")

// validationError помечает отсутствующее обязательное поле
func validationError(field string) error {
	return fmt.Errorf("%w: поле %s обязательно", ErrValidation, field)
}

// AnalysisJob задание анализа видео и его текущее состояние.
// Запись изменяется только собственным воркером задания;
// терминальные статусы (completed, failed) окончательны.
type AnalysisJob struct {
	ID           string                 `json:"id"`
	Status       JobStatus              `json:"status"`
	Progress     int                    `json:"progress"` // 0-100, не убывает
	VideoName    string                 `json:"video_name"`
	RoadName     string                 `json:"road_name"`
	RoadLocation string                 `json:"road_location"`
	Timestamp    time.Time              `json:"timestamp"`
	Error        string                 `json:"error,omitempty"`
	Result       *models.AnalysisResult `json:"result,omitempty"`

	videoPath string // Путь к сохраненному видеофайлу
}

// IsTerminal возвращает true, если задание в терминальном статусе
func (j *AnalysisJob) IsTerminal() bool {
	return j.Status == StatusCompleted || j.Status == StatusFailed
}

// JobStatusInfo снимок статуса задания для поллинга
type JobStatusInfo struct {
	JobID     string    `json:"job_id"`
	Status    JobStatus `json:"status"`
	Progress  int       `json:"progress"`
	Error     string    `json:"error,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}

// SubmitResponse ответ на создание задания
type SubmitResponse struct {
	JobID  string    `json:"job_id"`
	Status JobStatus `json:"status"`
}

// ListJobsResponse ответ со списком заданий
type ListJobsResponse struct {
	Jobs  []JobStatusInfo `json:"jobs"`
	Total int             `json:"total"`
}
