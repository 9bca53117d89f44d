package service

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"road-analyzer-go/internal/analysis"
	"road-analyzer-go/internal/client"
	"road-analyzer-go/internal/video"
	"road-analyzer-go/pkg/models"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
)

// PathResolver абстракция резолвера координат дороги
type PathResolver interface {
	Resolve(ctx context.Context, roadName, location string) []models.Coordinate
}

// JobManager управляет жизненным циклом заданий анализа: принимает видео,
// запускает пайплайн в фоне и отдает статус и результат по запросу
type JobManager struct {
	registry   JobRegistry
	resolver   PathResolver
	detector   client.Detector
	decoder    video.Decoder
	classifier *analysis.Classifier
	logger     *logrus.Logger
	uploadDir  string

	// Семафор ограничивает число одновременно выполняемых заданий
	slots chan struct{}
}

// NewJobManager создает новый менеджер заданий
func NewJobManager(
	registry JobRegistry,
	resolver PathResolver,
	detector client.Detector,
	decoder video.Decoder,
	classifier *analysis.Classifier,
	maxConcurrentJobs int,
	uploadDir string,
	logger *logrus.Logger,
) *JobManager {
	if maxConcurrentJobs < 1 {
		maxConcurrentJobs = 1
	}

	return &JobManager{
		registry:   registry,
		resolver:   resolver,
		detector:   detector,
		decoder:    decoder,
		classifier: classifier,
		logger:     logger,
		uploadDir:  uploadDir,
		slots:      make(chan struct{}, maxConcurrentJobs),
	}
}

// Submit принимает видео на анализ и возвращает ID созданного задания.
// Пайплайн выполняется асинхронно, вызов возвращается сразу.
func (m *JobManager) Submit(videoData io.Reader, videoName, roadName, roadLocation string) (string, error) {
	if strings.TrimSpace(roadName) == "" {
		return "", validationError("road_name")
	}
	if strings.TrimSpace(roadLocation) == "" {
		return "", validationError("road_location")
	}
	if videoData == nil || strings.TrimSpace(videoName) == "" {
		return "", validationError("video")
	}

	jobID := uuid.New().String()

	videoPath, err := m.saveVideoFile(jobID, videoName, videoData)
	if err != nil {
		m.logger.Errorf("Ошибка сохранения видео файла: %v", err)
		return "", fmt.Errorf("failed to save video file: %w", err)
	}

	job := &AnalysisJob{
		ID:           jobID,
		Status:       StatusQueued,
		Progress:     0,
		VideoName:    videoName,
		RoadName:     roadName,
		RoadLocation: roadLocation,
		Timestamp:    time.Now(),
		videoPath:    videoPath,
	}

	if err := m.registry.Create(job); err != nil {
		return "", fmt.Errorf("failed to register job: %w", err)
	}

	m.logger.Infof("Задание %s создано: видео %s, дорога %q (%s)", jobID, videoName, roadName, roadLocation)

	go m.run(jobID, videoPath, videoName, roadName, roadLocation)

	return jobID, nil
}

// Status возвращает снимок статуса задания
func (m *JobManager) Status(jobID string) (*JobStatusInfo, error) {
	job, err := m.registry.Get(jobID)
	if err != nil {
		return nil, err
	}

	return &JobStatusInfo{
		JobID:     job.ID,
		Status:    job.Status,
		Progress:  job.Progress,
		Error:     job.Error,
		Timestamp: job.Timestamp,
	}, nil
}

// Result возвращает результат завершенного задания
func (m *JobManager) Result(jobID string) (*models.AnalysisResult, error) {
	job, err := m.registry.Get(jobID)
	if err != nil {
		return nil, err
	}

	if job.Status != StatusCompleted {
		return nil, ErrJobNotReady
	}

	if job.Result == nil {
		return nil, ErrJobNotFound
	}

	return job.Result, nil
}

// ListJobs возвращает статусы всех заданий, новые первыми
func (m *JobManager) ListJobs() []JobStatusInfo {
	return m.registry.List()
}

// CheckHealth проверяет доступность сервиса детекции
func (m *JobManager) CheckHealth(ctx context.Context) error {
	return m.detector.CheckHealth(ctx)
}

// run выполняет пайплайн анализа одного задания.
// Ошибка любого задания фиксируется в его записи и не роняет процесс.
func (m *JobManager) run(jobID, videoPath, videoName, roadName, roadLocation string) {
	defer func() {
		if r := recover(); r != nil {
			m.logger.Errorf("Паника в воркере задания %s: %v", jobID, r)
			m.registry.Fail(jobID, fmt.Sprintf("internal error: %v", r))
		}
	}()

	// Ждем свободный слот, пока ждем — задание остается в статусе queued
	m.slots <- struct{}{}
	defer func() { <-m.slots }()

	m.registry.SetProcessing(jobID)
	m.logger.Infof("Задание %s взято в обработку", jobID)

	ctx := context.Background()

	// Резолвер не возвращает ошибок: худший случай — синтетический путь
	path := m.resolver.Resolve(ctx, roadName, roadLocation)
	m.logger.Infof("Задание %s: путь из %d точек", jobID, len(path))

	source, err := m.decoder.Open(videoPath)
	if err != nil {
		m.logger.Errorf("Задание %s: видео не открылось: %v", jobID, err)
		m.registry.Fail(jobID, fmt.Sprintf("failed to decode video: %v", err))
		return
	}
	defer source.Close()

	frameCount := source.FrameCount()
	sampleRate, indices := video.Plan(frameCount)
	m.logger.Infof("Задание %s: %d кадров, шаг выборки %d, выборок %d", jobID, frameCount, sampleRate, len(indices))

	verdicts := make([]analysis.Verdict, 0, len(indices))
	for _, idx := range indices {
		frame, err := source.Frame(idx)
		if err != nil {
			// Ошибка декодирования в середине видео обрезает выборку,
			// уже собранные вердикты сохраняются
			m.logger.Warnf("Задание %s: кадр %d не прочитан, обрезаем выборку: %v", jobID, idx, err)
			break
		}

		detections, err := m.detector.Detect(ctx, frame)
		if err != nil {
			m.logger.Errorf("Задание %s: детектор вернул ошибку: %v", jobID, err)
			m.registry.Fail(jobID, fmt.Sprintf("detector failed on frame %d: %v", idx, err))
			return
		}

		verdicts = append(verdicts, m.classifier.Classify(detections))

		progress := idx * 100 / frameCount
		if progress > 99 {
			progress = 99
		}
		m.registry.SetProgress(jobID, progress)
	}

	segments := analysis.BuildSegments(verdicts, path)

	result := &models.AnalysisResult{
		JobID:        jobID,
		Timestamp:    time.Now(),
		VideoName:    videoName,
		RoadName:     roadName,
		RoadLocation: roadLocation,
		Segments:     segments,
	}

	if err := m.registry.Complete(jobID, result); err != nil {
		m.logger.Errorf("Задание %s: ошибка записи результата: %v", jobID, err)
		return
	}

	m.logger.Infof("Задание %s завершено: %d сегментов из %d вердиктов", jobID, len(segments), len(verdicts))
}

// saveVideoFile сохраняет загруженное видео в папке задания
func (m *JobManager) saveVideoFile(jobID, originalFilename string, videoData io.Reader) (string, error) {
	jobDir := filepath.Join(m.uploadDir, "videos", jobID)
	if err := os.MkdirAll(jobDir, 0755); err != nil {
		return "", fmt.Errorf("failed to create job directory: %w", err)
	}

	ext := filepath.Ext(originalFilename)
	if ext == "" {
		ext = ".mp4" // По умолчанию
	}

	filePath := filepath.Join(jobDir, fmt.Sprintf("%s%s", jobID, ext))

	file, err := os.Create(filePath)
	if err != nil {
		return "", fmt.Errorf("failed to create video file: %w", err)
	}
	defer file.Close()

	bytesWritten, err := io.Copy(file, videoData)
	if err != nil {
		os.Remove(filePath)
		return "", fmt.Errorf("failed to write video data: %w", err)
	}

	m.logger.Infof("Видео сохранено: %s (записано %d байт)", filePath, bytesWritten)
	return filePath, nil
}
