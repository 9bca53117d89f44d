package service

import (
	"sort"
	"sync"

	"road-analyzer-go/pkg/models"
)

// JobRegistry интерфейс реестра заданий анализа.
// Реестр разделяется между обработчиками запросов и воркерами,
// поэтому все реализации обязаны быть потокобезопасными.
type JobRegistry interface {
	Create(job *AnalysisJob) error
	Get(id string) (*AnalysisJob, error)
	SetProcessing(id string) error
	SetProgress(id string, progress int) error
	Complete(id string, result *models.AnalysisResult) error
	Fail(id string, message string) error
	List() []JobStatusInfo
}

// memoryJobRegistry реализация JobRegistry в памяти процесса
type memoryJobRegistry struct {
	mu   sync.RWMutex
	jobs map[string]*AnalysisJob
}

// NewJobRegistry создает новый реестр заданий в памяти
func NewJobRegistry() JobRegistry {
	return &memoryJobRegistry{
		jobs: make(map[string]*AnalysisJob),
	}
}

// Create регистрирует новое задание
func (r *memoryJobRegistry) Create(job *AnalysisJob) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.jobs[job.ID] = job
	return nil
}

// Get возвращает копию записи задания.
// Читатели получают снимок и не видят последующих изменений воркера.
func (r *memoryJobRegistry) Get(id string) (*AnalysisJob, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	job, ok := r.jobs[id]
	if !ok {
		return nil, ErrJobNotFound
	}

	snapshot := *job
	return &snapshot, nil
}

// SetProcessing переводит задание из очереди в обработку
func (r *memoryJobRegistry) SetProcessing(id string) error {
	return r.update(id, func(job *AnalysisJob) {
		job.Status = StatusProcessing
	})
}

// SetProgress обновляет прогресс выполняющегося задания.
// Прогресс монотонный: попытки уменьшить значение игнорируются.
func (r *memoryJobRegistry) SetProgress(id string, progress int) error {
	return r.update(id, func(job *AnalysisJob) {
		if job.Status == StatusProcessing && progress > job.Progress {
			job.Progress = progress
		}
	})
}

// Complete записывает результат и переводит задание в completed
func (r *memoryJobRegistry) Complete(id string, result *models.AnalysisResult) error {
	return r.update(id, func(job *AnalysisJob) {
		job.Status = StatusCompleted
		job.Progress = 100
		job.Result = result
	})
}

// Fail переводит задание в failed с сообщением об ошибке
func (r *memoryJobRegistry) Fail(id string, message string) error {
	return r.update(id, func(job *AnalysisJob) {
		job.Status = StatusFailed
		job.Error = message
	})
}

// List возвращает снимки статусов всех заданий, новые первыми
func (r *memoryJobRegistry) List() []JobStatusInfo {
	r.mu.RLock()
	defer r.mu.RUnlock()

	infos := make([]JobStatusInfo, 0, len(r.jobs))
	for _, job := range r.jobs {
		infos = append(infos, JobStatusInfo{
			JobID:     job.ID,
			Status:    job.Status,
			Progress:  job.Progress,
			Error:     job.Error,
			Timestamp: job.Timestamp,
		})
	}

	sort.Slice(infos, func(i, j int) bool {
		return infos[i].Timestamp.After(infos[j].Timestamp)
	})

	return infos
}

// update применяет изменение к записи задания под блокировкой.
// Терминальные задания не изменяются: статусы completed и failed окончательны.
func (r *memoryJobRegistry) update(id string, fn func(*AnalysisJob)) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	job, ok := r.jobs[id]
	if !ok {
		return ErrJobNotFound
	}

	if job.IsTerminal() {
		return nil
	}

	fn(job)
	return nil
}
