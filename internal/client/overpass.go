package client

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"regexp"
	"strings"
	"time"

	"road-analyzer-go/pkg/models"

	"github.com/sirupsen/logrus"
)

// Way геометрия одной дороги из ответа Overpass
type Way struct {
	ID       int64             `json:"id"`
	Tags     map[string]string `json:"tags"`
	Geometry []WayPoint        `json:"geometry"`
}

// WayPoint точка геометрии дороги
type WayPoint struct {
	Lat float64 `json:"lat"`
	Lon float64 `json:"lon"`
}

// overpassResponse структура ответа Overpass API
type overpassResponse struct {
	Elements []Way `json:"elements"`
}

// OverpassClient клиент сервиса поиска геометрии дорог (Overpass API)
type OverpassClient struct {
	baseURL    string
	httpClient *http.Client
	logger     *logrus.Logger
}

// NewOverpassClient создает новый клиент Overpass API
func NewOverpassClient(baseURL string, timeout time.Duration, logger *logrus.Logger) *OverpassClient {
	return &OverpassClient{
		baseURL: baseURL,
		httpClient: &http.Client{
			Timeout: timeout,
		},
		logger: logger,
	}
}

// FindWays ищет дороги с именем, похожим на name, в радиусе radiusM метров от center
func (c *OverpassClient) FindWays(ctx context.Context, center models.Coordinate, radiusM int, name string) ([]Way, error) {
	// Нечеткое совпадение имени: регистронезависимый поиск по подстроке
	namePattern := regexp.QuoteMeta(strings.TrimSpace(name))
	query := fmt.Sprintf(
		`[out:json][timeout:%d];way["highway"]["name"~"%s",i](around:%d,%.6f,%.6f);out geom;`,
		int(c.httpClient.Timeout.Seconds()), namePattern, radiusM, center.Lat, center.Lon,
	)

	form := url.Values{}
	form.Set("data", query)

	req, err := http.NewRequestWithContext(ctx, "POST", c.baseURL, strings.NewReader(form.Encode()))
	if err != nil {
		return nil, fmt.Errorf("ошибка создания HTTP запроса: %w", err)
	}

	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	c.logger.Debugf("Поиск геометрии дорог %q в радиусе %d м от (%.6f, %.6f)", name, radiusM, center.Lat, center.Lon)
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
		return nil, fmt.Errorf("Overpass API вернул статус %d, тело: %s", resp.StatusCode, string(respBody))
	}

	var apiResponse overpassResponse
	if err := json.Unmarshal(respBody, &apiResponse); err != nil {
		return nil, fmt.Errorf("ошибка парсинга JSON ответа: %w", err)
	}

	c.logger.Debugf("Overpass вернул %d дорог", len(apiResponse.Elements))
	return apiResponse.Elements, nil
}
