package service

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"strings"
	"sync"
	"testing"
	"time"

	"road-analyzer-go/internal/analysis"
	"road-analyzer-go/internal/client"
	"road-analyzer-go/internal/geo"
	"road-analyzer-go/internal/video"
	"road-analyzer-go/pkg/models"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeDetector скриптуемый детектор для тестов
type fakeDetector struct {
	detections []models.Detection
	err        error
	healthErr  error

	mu    sync.Mutex
	calls int
}

func (f *fakeDetector) Detect(_ context.Context, _ []byte) ([]models.Detection, error) {
	f.mu.Lock()
	f.calls++
	f.mu.Unlock()

	if f.err != nil {
		return nil, f.err
	}
	return f.detections, nil
}

func (f *fakeDetector) CheckHealth(_ context.Context) error {
	return f.healthErr
}

func (f *fakeDetector) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}

// fakeFrameSource источник кадров с управляемыми сбоями
type fakeFrameSource struct {
	frameCount int
	failAt     int           // Индекс кадра, на котором чтение падает; -1 без сбоев
	blockCh    chan struct{} // Если задан, чтение кадра блокируется до закрытия канала
}

func (s *fakeFrameSource) FrameCount() int {
	return s.frameCount
}

func (s *fakeFrameSource) Frame(index int) ([]byte, error) {
	if s.blockCh != nil {
		<-s.blockCh
	}
	if s.failAt >= 0 && index >= s.failAt {
		return nil, fmt.Errorf("кадр %d не читается", index)
	}
	return []byte(fmt.Sprintf("frame-%d", index)), nil
}

func (s *fakeFrameSource) Close() error {
	return nil
}

// fakeDecoder декодер, отдающий заранее подготовленный источник
type fakeDecoder struct {
	source  video.FrameSource
	openErr error
}

func (d *fakeDecoder) Open(_ string) (video.FrameSource, error) {
	if d.openErr != nil {
		return nil, d.openErr
	}
	return d.source, nil
}

// stubResolver резолвер с фиксированным путем
type stubResolver struct {
	path []models.Coordinate
}

func (r *stubResolver) Resolve(_ context.Context, _, _ string) []models.Coordinate {
	return r.path
}

// failingPlaces и failingWays имитируют полный отказ геокодирования
type failingPlaces struct{}

func (failingPlaces) Search(_ context.Context, _ string) (*client.Place, error) {
	return nil, errors.New("сервис недоступен")
}

func (failingPlaces) SearchGeometry(_ context.Context, _ string) (*client.Place, error) {
	return nil, errors.New("сервис недоступен")
}

type failingWays struct{}

func (failingWays) FindWays(_ context.Context, _ models.Coordinate, _ int, _ string) ([]client.Way, error) {
	return nil, errors.New("сервис недоступен")
}

func testPath(n int) []models.Coordinate {
	path := make([]models.Coordinate, n)
	for i := range path {
		path[i] = models.Coordinate{Lat: 12.97 + float64(i)*0.0005, Lon: 77.59}
	}
	return path
}

func quietLogger() *logrus.Logger {
	logger := logrus.New()
	logger.SetLevel(logrus.PanicLevel)
	return logger
}

func newTestManager(t *testing.T, resolver PathResolver, detector client.Detector, decoder video.Decoder, maxJobs int) *JobManager {
	t.Helper()
	return NewJobManager(
		NewJobRegistry(),
		resolver,
		detector,
		decoder,
		analysis.NewClassifierWithSource(rand.NewSource(1), analysis.KeepVerdictOverride{}),
		maxJobs,
		t.TempDir(),
		quietLogger(),
	)
}

func waitForTerminal(t *testing.T, m *JobManager, jobID string) *JobStatusInfo {
	t.Helper()

	var status *JobStatusInfo
	require.Eventually(t, func() bool {
		var err error
		status, err = m.Status(jobID)
		if err != nil {
			return false
		}
		return status.Status == StatusCompleted || status.Status == StatusFailed
	}, 5*time.Second, 10*time.Millisecond)

	return status
}

func TestSubmit_ValidatesRequiredFields(t *testing.T) {
	m := newTestManager(t, &stubResolver{path: testPath(2)}, &fakeDetector{}, &fakeDecoder{}, 1)

	_, err := m.Submit(strings.NewReader("video"), "road.mp4", "", "Bangalore")
	assert.ErrorIs(t, err, ErrValidation)

	_, err = m.Submit(strings.NewReader("video"), "road.mp4", "MG Road", "  ")
	assert.ErrorIs(t, err, ErrValidation)

	_, err = m.Submit(nil, "road.mp4", "MG Road", "Bangalore")
	assert.ErrorIs(t, err, ErrValidation)

	_, err = m.Submit(strings.NewReader("video"), "", "MG Road", "Bangalore")
	assert.ErrorIs(t, err, ErrValidation)

	// Задания с невалидными запросами не создаются
	assert.Empty(t, m.ListJobs())
}

func TestPipeline_EndToEnd(t *testing.T) {
	// Видео 300 кадров: шаг выборки 10, не больше 30 выборок
	detector := &fakeDetector{detections: []models.Detection{
		{ClassID: models.ClassPothole, Confidence: 0.9},
	}}
	decoder := &fakeDecoder{source: &fakeFrameSource{frameCount: 300, failAt: -1}}
	path := testPath(31)

	m := newTestManager(t, &stubResolver{path: path}, detector, decoder, 2)

	jobID, err := m.Submit(strings.NewReader("video-data"), "dashcam.mp4", "MG Road", "Bangalore")
	require.NoError(t, err)
	require.NotEmpty(t, jobID)

	status := waitForTerminal(t, m, jobID)
	require.Equal(t, StatusCompleted, status.Status)
	assert.Equal(t, 100, status.Progress)
	assert.Empty(t, status.Error)

	assert.Equal(t, 30, detector.callCount())

	result, err := m.Result(jobID)
	require.NoError(t, err)
	assert.Equal(t, jobID, result.JobID)
	assert.Equal(t, "dashcam.mp4", result.VideoName)
	assert.Equal(t, "MG Road", result.RoadName)
	assert.Equal(t, "Bangalore", result.RoadLocation)

	// Сегментов ровно min(len(path)-1, выборок) = min(30, 30)
	require.Len(t, result.Segments, 30)

	// Каждый кадр с выбоиной: все сегменты плохие, путь связный
	for i, seg := range result.Segments {
		assert.Equal(t, models.ConditionBad, seg.Condition)
		if i > 0 {
			assert.Equal(t, result.Segments[i-1].EndCoordinates, seg.StartCoordinates)
		}
	}
}

func TestPipeline_TerminalStatusIsFinal(t *testing.T) {
	decoder := &fakeDecoder{source: &fakeFrameSource{frameCount: 100, failAt: -1}}
	m := newTestManager(t, &stubResolver{path: testPath(5)}, &fakeDetector{}, decoder, 1)

	jobID, err := m.Submit(strings.NewReader("video"), "v.mp4", "MG Road", "Bangalore")
	require.NoError(t, err)

	waitForTerminal(t, m, jobID)

	// Завершенное задание никогда не возвращается в processing
	for i := 0; i < 20; i++ {
		status, err := m.Status(jobID)
		require.NoError(t, err)
		assert.Equal(t, StatusCompleted, status.Status)
		time.Sleep(time.Millisecond)
	}
}

func TestPipeline_DetectorFailureFailsJob(t *testing.T) {
	detector := &fakeDetector{err: errors.New("модель упала")}
	decoder := &fakeDecoder{source: &fakeFrameSource{frameCount: 100, failAt: -1}}
	m := newTestManager(t, &stubResolver{path: testPath(5)}, detector, decoder, 1)

	jobID, err := m.Submit(strings.NewReader("video"), "v.mp4", "MG Road", "Bangalore")
	require.NoError(t, err)

	status := waitForTerminal(t, m, jobID)
	require.Equal(t, StatusFailed, status.Status)
	assert.Contains(t, status.Error, "detector failed")

	// Результата у упавшего задания нет
	_, err = m.Result(jobID)
	assert.ErrorIs(t, err, ErrJobNotReady)
}

func TestPipeline_DecodeFailureAtStartFailsJob(t *testing.T) {
	decoder := &fakeDecoder{openErr: errors.New("файл поврежден")}
	m := newTestManager(t, &stubResolver{path: testPath(5)}, &fakeDetector{}, decoder, 1)

	jobID, err := m.Submit(strings.NewReader("video"), "v.mp4", "MG Road", "Bangalore")
	require.NoError(t, err)

	status := waitForTerminal(t, m, jobID)
	require.Equal(t, StatusFailed, status.Status)
	assert.Contains(t, status.Error, "failed to decode video")
}

func TestPipeline_MidRunDecodeErrorTruncates(t *testing.T) {
	// Кадры с индекса 100 не читаются: выборка обрезается,
	// частичный результат сохраняется
	detector := &fakeDetector{}
	decoder := &fakeDecoder{source: &fakeFrameSource{frameCount: 300, failAt: 100}}
	m := newTestManager(t, &stubResolver{path: testPath(31)}, detector, decoder, 1)

	jobID, err := m.Submit(strings.NewReader("video"), "v.mp4", "MG Road", "Bangalore")
	require.NoError(t, err)

	status := waitForTerminal(t, m, jobID)
	require.Equal(t, StatusCompleted, status.Status)

	result, err := m.Result(jobID)
	require.NoError(t, err)

	// Прочитаны кадры 0..90 — 10 вердиктов, значит 10 сегментов
	assert.Len(t, result.Segments, 10)
	assert.Equal(t, 10, detector.callCount())
}

func TestPipeline_GeocoderOutageStillCompletes(t *testing.T) {
	// Полный отказ геокодирования: резолвер строит синтетический путь,
	// задание все равно завершается успешно
	resolver := geo.NewResolverWithSource(failingPlaces{}, failingWays{}, rand.NewSource(1), quietLogger())
	decoder := &fakeDecoder{source: &fakeFrameSource{frameCount: 300, failAt: -1}}
	m := newTestManager(t, resolver, &fakeDetector{}, decoder, 1)

	jobID, err := m.Submit(strings.NewReader("video"), "v.mp4", "Unknown Road", "Nowhere")
	require.NoError(t, err)

	status := waitForTerminal(t, m, jobID)
	require.Equal(t, StatusCompleted, status.Status)

	result, err := m.Result(jobID)
	require.NoError(t, err)

	// Синтетический путь из 20 точек дает min(19, 30) сегментов
	assert.Len(t, result.Segments, 19)
}

func TestResult_NotReadyWhileProcessing(t *testing.T) {
	blockCh := make(chan struct{})
	decoder := &fakeDecoder{source: &fakeFrameSource{frameCount: 100, failAt: -1, blockCh: blockCh}}
	m := newTestManager(t, &stubResolver{path: testPath(5)}, &fakeDetector{}, decoder, 1)

	jobID, err := m.Submit(strings.NewReader("video"), "v.mp4", "MG Road", "Bangalore")
	require.NoError(t, err)

	// Ждем, пока воркер возьмет задание
	require.Eventually(t, func() bool {
		status, err := m.Status(jobID)
		return err == nil && status.Status == StatusProcessing
	}, 5*time.Second, 10*time.Millisecond)

	_, err = m.Result(jobID)
	assert.ErrorIs(t, err, ErrJobNotReady)

	close(blockCh)
	status := waitForTerminal(t, m, jobID)
	assert.Equal(t, StatusCompleted, status.Status)
}

func TestStatusAndResult_UnknownJob(t *testing.T) {
	m := newTestManager(t, &stubResolver{path: testPath(2)}, &fakeDetector{}, &fakeDecoder{}, 1)

	_, err := m.Status("несуществующий-id")
	assert.ErrorIs(t, err, ErrJobNotFound)

	_, err = m.Result("несуществующий-id")
	assert.ErrorIs(t, err, ErrJobNotFound)
}

func TestJobManager_BoundedConcurrency(t *testing.T) {
	// Один слот: второе задание ждет в очереди, пока первое не освободит воркера
	blockCh := make(chan struct{})
	decoder := &fakeDecoder{source: &fakeFrameSource{frameCount: 50, failAt: -1, blockCh: blockCh}}
	m := newTestManager(t, &stubResolver{path: testPath(5)}, &fakeDetector{}, decoder, 1)

	first, err := m.Submit(strings.NewReader("video"), "a.mp4", "MG Road", "Bangalore")
	require.NoError(t, err)

	require.Eventually(t, func() bool {
		status, err := m.Status(first)
		return err == nil && status.Status == StatusProcessing
	}, 5*time.Second, 10*time.Millisecond)

	second, err := m.Submit(strings.NewReader("video"), "b.mp4", "MG Road", "Bangalore")
	require.NoError(t, err)

	// Пока первый воркер занят, второе задание стоит в очереди
	for i := 0; i < 10; i++ {
		status, err := m.Status(second)
		require.NoError(t, err)
		assert.Equal(t, StatusQueued, status.Status)
		time.Sleep(5 * time.Millisecond)
	}

	close(blockCh)

	assert.Equal(t, StatusCompleted, waitForTerminal(t, m, first).Status)
	assert.Equal(t, StatusCompleted, waitForTerminal(t, m, second).Status)
}

func TestListJobs_NewestFirst(t *testing.T) {
	decoder := &fakeDecoder{source: &fakeFrameSource{frameCount: 50, failAt: -1}}
	m := newTestManager(t, &stubResolver{path: testPath(5)}, &fakeDetector{}, decoder, 2)

	first, err := m.Submit(strings.NewReader("video"), "a.mp4", "MG Road", "Bangalore")
	require.NoError(t, err)
	time.Sleep(5 * time.Millisecond)
	second, err := m.Submit(strings.NewReader("video"), "b.mp4", "MG Road", "Bangalore")
	require.NoError(t, err)

	waitForTerminal(t, m, first)
	waitForTerminal(t, m, second)

	jobs := m.ListJobs()
	require.Len(t, jobs, 2)
	assert.Equal(t, second, jobs[0].JobID)
	assert.Equal(t, first, jobs[1].JobID)
}

func TestCheckHealth_ProxiesDetector(t *testing.T) {
	m := newTestManager(t, &stubResolver{path: testPath(2)}, &fakeDetector{}, &fakeDecoder{}, 1)
	assert.NoError(t, m.CheckHealth(context.Background()))

	m = newTestManager(t, &stubResolver{path: testPath(2)}, &fakeDetector{healthErr: errors.New("down")}, &fakeDecoder{}, 1)
	assert.Error(t, m.CheckHealth(context.Background()))
}
