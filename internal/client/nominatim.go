package client

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/sirupsen/logrus"
)

// Place результат поиска места: центроид, рамка и (опционально) геометрия
type Place struct {
	Lat         float64
	Lon         float64
	BoundingBox *BoundingBox
	Geometry    *GeoJSONGeometry
}

// BoundingBox ограничивающая рамка места
type BoundingBox struct {
	MinLat float64
	MaxLat float64
	MinLon float64
	MaxLon float64
}

// GeoJSONGeometry геометрия места в формате GeoJSON.
// Координаты оставлены сырыми: форма массива зависит от типа геометрии.
type GeoJSONGeometry struct {
	Type        string          `json:"type"`
	Coordinates json.RawMessage `json:"coordinates"`
}

// nominatimResult один элемент ответа Nominatim
type nominatimResult struct {
	Lat         string           `json:"lat"`
	Lon         string           `json:"lon"`
	BoundingBox []string         `json:"boundingbox"` // [minlat, maxlat, minlon, maxlon]
	GeoJSON     *GeoJSONGeometry `json:"geojson,omitempty"`
}

// NominatimClient клиент сервиса поиска мест (Nominatim API)
type NominatimClient struct {
	baseURL    string
	userAgent  string
	httpClient *http.Client
	logger     *logrus.Logger
}

// NewNominatimClient создает новый клиент поиска мест
func NewNominatimClient(baseURL, userAgent string, timeout time.Duration, logger *logrus.Logger) *NominatimClient {
	return &NominatimClient{
		baseURL:   baseURL,
		userAgent: userAgent,
		httpClient: &http.Client{
			Timeout: timeout,
		},
		logger: logger,
	}
}

// Search ищет лучшее совпадение для текстового запроса и возвращает его центроид
func (c *NominatimClient) Search(ctx context.Context, query string) (*Place, error) {
	return c.search(ctx, query, false)
}

// SearchGeometry ищет лучшее совпадение вместе с геометрией (polygon_geojson)
func (c *NominatimClient) SearchGeometry(ctx context.Context, query string) (*Place, error) {
	return c.search(ctx, query, true)
}

func (c *NominatimClient) search(ctx context.Context, query string, withGeometry bool) (*Place, error) {
	params := url.Values{}
	params.Set("q", query)
	params.Set("format", "json")
	params.Set("limit", "1")
	if withGeometry {
		params.Set("polygon_geojson", "1")
	}

	searchURL := fmt.Sprintf("%s/search?%s", c.baseURL, params.Encode())
	req, err := http.NewRequestWithContext(ctx, "GET", searchURL, nil)
	if err != nil {
		return nil, fmt.Errorf("ошибка создания HTTP запроса: %w", err)
	}

	// Nominatim требует осмысленный User-Agent
	req.Header.Set("User-Agent", c.userAgent)

	c.logger.Debugf("Поиск места: %q", query)
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
		return nil, fmt.Errorf("сервис поиска мест вернул статус %d, тело: %s", resp.StatusCode, string(respBody))
	}

	var results []nominatimResult
	if err := json.Unmarshal(respBody, &results); err != nil {
		return nil, fmt.Errorf("ошибка парсинга JSON ответа: %w", err)
	}

	if len(results) == 0 {
		return nil, fmt.Errorf("место по запросу %q не найдено", query)
	}

	return parsePlace(results[0])
}

// parsePlace преобразует сырой результат Nominatim в Place
func parsePlace(raw nominatimResult) (*Place, error) {
	lat, err := strconv.ParseFloat(raw.Lat, 64)
	if err != nil {
		return nil, fmt.Errorf("неверный формат широты %q: %w", raw.Lat, err)
	}

	lon, err := strconv.ParseFloat(raw.Lon, 64)
	if err != nil {
		return nil, fmt.Errorf("неверный формат долготы %q: %w", raw.Lon, err)
	}

	place := &Place{
		Lat:      lat,
		Lon:      lon,
		Geometry: raw.GeoJSON,
	}

	// Рамка приходит строками в порядке [minlat, maxlat, minlon, maxlon]
	if len(raw.BoundingBox) == 4 {
		values := make([]float64, 4)
		ok := true
		for i, s := range raw.BoundingBox {
			if values[i], err = strconv.ParseFloat(s, 64); err != nil {
				ok = false
				break
			}
		}
		if ok {
			place.BoundingBox = &BoundingBox{
				MinLat: values[0],
				MaxLat: values[1],
				MinLon: values[2],
				MaxLon: values[3],
			}
		}
	}

	return place, nil
}
