package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"time"

	"road-analyzer-go/pkg/models"

	"github.com/sirupsen/logrus"
)

// Detector абстракция модели детекции дефектов дорожного покрытия.
// Пайплайн анализа работает только через этот интерфейс,
// в тестах подставляется фейковая реализация.
type Detector interface {
	Detect(ctx context.Context, frame []byte) ([]models.Detection, error)
	CheckHealth(ctx context.Context) error
}

// DetectorAPIClient клиент для взаимодействия с Python сервисом детекции
type DetectorAPIClient struct {
	baseURL    string
	httpClient *http.Client
	logger     *logrus.Logger
}

// NewDetectorAPIClient создает новый клиент для сервиса детекции
func NewDetectorAPIClient(baseURL string, timeout time.Duration, logger *logrus.Logger) *DetectorAPIClient {
	return &DetectorAPIClient{
		baseURL: baseURL,
		httpClient: &http.Client{
			Timeout: timeout,
		},
		logger: logger,
	}
}

// detectorDefect один дефект в ответе Python API
type detectorDefect struct {
	BBox       []float64 `json:"bbox"`       // [x, y, w, h]
	Confidence float64   `json:"confidence"` // Уверенность модели
	Type       string    `json:"type"`       // Код дефекта вида "D30-Pothole"
}

// detectorResponse структура ответа Python API
type detectorResponse struct {
	Success     bool             `json:"success"`
	Defects     []detectorDefect `json:"defects"`
	DefectCount int              `json:"defectCount"`
	Error       string           `json:"error"`
}

// Detect отправляет кадр на анализ в Python API и возвращает найденные дефекты
func (c *DetectorAPIClient) Detect(ctx context.Context, frame []byte) ([]models.Detection, error) {
	// Создаем multipart form-data с кадром
	var body bytes.Buffer
	writer := multipart.NewWriter(&body)

	frameWriter, err := writer.CreateFormFile("image", "frame.jpg")
	if err != nil {
		return nil, fmt.Errorf("ошибка создания form field для кадра: %w", err)
	}

	if _, err := frameWriter.Write(frame); err != nil {
		return nil, fmt.Errorf("ошибка записи данных кадра: %w", err)
	}

	if err := writer.Close(); err != nil {
		return nil, fmt.Errorf("ошибка закрытия multipart writer: %w", err)
	}

	url := fmt.Sprintf("%s/analyze", c.baseURL)
	req, err := http.NewRequestWithContext(ctx, "POST", url, &body)
	if err != nil {
		return nil, fmt.Errorf("ошибка создания HTTP запроса: %w", err)
	}

	req.Header.Set("Content-Type", writer.FormDataContentType())

	c.logger.Debugf("Отправка кадра на детекцию: %s", url)
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("ошибка отправки HTTP запроса: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("ошибка чтения ответа: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("сервис детекции вернул ошибку: статус %d, тело: %s", resp.StatusCode, string(respBody))
	}

	var apiResponse detectorResponse
	if err := json.Unmarshal(respBody, &apiResponse); err != nil {
		return nil, fmt.Errorf("ошибка парсинга JSON ответа: %w", err)
	}

	if !apiResponse.Success {
		return nil, fmt.Errorf("сервис детекции вернул ошибку: %s", apiResponse.Error)
	}

	detections := make([]models.Detection, 0, len(apiResponse.Defects))
	for _, defect := range apiResponse.Defects {
		detection := models.Detection{
			ClassID:    classIDFromType(defect.Type),
			Confidence: defect.Confidence,
		}
		copy(detection.BBox[:], defect.BBox)
		detections = append(detections, detection)
	}

	c.logger.Debugf("Детектор нашел %d дефектов на кадре", len(detections))
	return detections, nil
}

// classIDFromType извлекает класс дефекта из кода вида "D30-Pothole".
// Вторая цифра кода всегда ноль, класс закодирован первой цифрой.
func classIDFromType(defectType string) int {
	if len(defectType) < 2 || defectType[0] != 'D' {
		return -1
	}
	id := int(defectType[1] - '0')
	if id < 0 || id > 9 {
		return -1
	}
	return id
}

// CheckHealth проверяет доступность сервиса детекции
func (c *DetectorAPIClient) CheckHealth(ctx context.Context) error {
	url := fmt.Sprintf("%s/health", c.baseURL)
	req, err := http.NewRequestWithContext(ctx, "GET", url, nil)
	if err != nil {
		return fmt.Errorf("ошибка создания HTTP запроса: %w", err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("ошибка отправки HTTP запроса: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("сервис детекции вернул статус %d", resp.StatusCode)
	}

	return nil
}
