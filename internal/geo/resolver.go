package geo

import (
	"context"
	"encoding/json"
	"fmt"
	"math"
	"math/rand"
	"sync"
	"time"

	"road-analyzer-go/internal/client"
	"road-analyzer-go/pkg/models"

	"github.com/sirupsen/logrus"
)

const (
	searchRadiusM = 2000 // Радиус поиска дорог вокруг центроида места

	maxPathPoints          = 50 // Максимальное число точек пути
	minPathPoints          = 10 // Минимальное число точек без интерполяции
	interpolatedPathPoints = 20 // Число точек после интерполяции короткой геометрии
	syntheticPathPoints    = 20 // Число точек синтетического пути

	pointStepDeg     = 0.0005 // Шаг между синтезированными точками, градусы (~55 м)
	headingJitterDeg = 5.0    // Максимальное отклонение направления на шаге

	// Опорная точка синтетического пути по умолчанию (центр Бангалора)
	defaultRefLat = 12.9716
	defaultRefLon = 77.5946
)

// PlaceSearcher абстракция сервиса поиска мест
type PlaceSearcher interface {
	Search(ctx context.Context, query string) (*client.Place, error)
	SearchGeometry(ctx context.Context, query string) (*client.Place, error)
}

// WayFinder абстракция сервиса поиска геометрии дорог
type WayFinder interface {
	FindWays(ctx context.Context, center models.Coordinate, radiusM int, name string) ([]client.Way, error)
}

// Resolver преобразует пару (название дороги, местоположение) в упорядоченный
// путь координат. Работает каскадом из трех уровней: поиск геометрии дороги,
// геометрия самого места, синтетический путь. Наружу никогда не возвращает
// ошибку — последний уровень всегда дает результат.
type Resolver struct {
	places PlaceSearcher
	ways   WayFinder
	calc   *Calculator
	logger *logrus.Logger

	mu  sync.Mutex
	rng *rand.Rand
}

// NewResolver создает новый резолвер координат
func NewResolver(places PlaceSearcher, ways WayFinder, logger *logrus.Logger) *Resolver {
	return NewResolverWithSource(places, ways, rand.NewSource(time.Now().UnixNano()), logger)
}

// NewResolverWithSource создает резолвер с заданным источником случайности.
// Используется в тестах для воспроизводимости синтетических путей.
func NewResolverWithSource(places PlaceSearcher, ways WayFinder, src rand.Source, logger *logrus.Logger) *Resolver {
	return &Resolver{
		places: places,
		ways:   ways,
		calc:   NewCalculator(),
		logger: logger,
		rng:    rand.New(src),
	}
}

// Resolve возвращает упорядоченный путь из 2..50 координат для дороги
func (r *Resolver) Resolve(ctx context.Context, roadName, location string) []models.Coordinate {
	query := fmt.Sprintf("%s, %s", roadName, location)

	// Уровень 1: геометрия дороги через поиск места + поиск дорог рядом
	points, err := r.resolveByWays(ctx, query, roadName)
	if err != nil {
		r.logger.Warnf("Поиск геометрии дороги %q не удался: %v", query, err)
	} else {
		r.logger.Infof("Дорога %q найдена, точек геометрии: %d", roadName, len(points))
		return r.normalizePath(points)
	}

	// Уровень 2: геометрия самого места
	points, err = r.resolveByPlaceGeometry(ctx, query)
	if err != nil {
		r.logger.Warnf("Поиск геометрии места %q не удался: %v", query, err)
	} else {
		return points
	}

	// Уровень 3: синтетический путь
	r.logger.Warnf("Геокодирование %q не удалось, строим синтетический путь", query)
	return r.syntheticPath()
}

// resolveByWays ищет центроид места и выбирает рядом с ним дорогу
// с самой детальной геометрией
func (r *Resolver) resolveByWays(ctx context.Context, query, roadName string) ([]models.Coordinate, error) {
	place, err := r.places.Search(ctx, query)
	if err != nil {
		return nil, err
	}

	center := models.Coordinate{Lat: place.Lat, Lon: place.Lon}
	ways, err := r.ways.FindWays(ctx, center, searchRadiusM, roadName)
	if err != nil {
		return nil, err
	}

	// Больше точек геометрии — длиннее и детальнее дорога
	var best *client.Way
	for i := range ways {
		if best == nil || len(ways[i].Geometry) > len(best.Geometry) {
			best = &ways[i]
		}
	}

	if best == nil || len(best.Geometry) == 0 {
		return nil, fmt.Errorf("дороги с именем %q рядом с (%.6f, %.6f) не найдены", roadName, center.Lat, center.Lon)
	}

	points := make([]models.Coordinate, 0, len(best.Geometry))
	for _, p := range best.Geometry {
		points = append(points, models.Coordinate{Lat: p.Lat, Lon: p.Lon})
	}

	return points, nil
}

// resolveByPlaceGeometry строит путь из геометрии места: линия, полигон,
// рамка или одиночная точка
func (r *Resolver) resolveByPlaceGeometry(ctx context.Context, query string) ([]models.Coordinate, error) {
	place, err := r.places.SearchGeometry(ctx, query)
	if err != nil {
		return nil, err
	}

	if place.Geometry != nil {
		points, err := geometryPoints(place.Geometry)
		if err != nil {
			// Некорректная геометрия не фатальна, пробуем рамку
			r.logger.Warnf("Некорректная геометрия места %q: %v", query, err)
		} else if len(points) > 0 {
			r.logger.Infof("Место %q дало геометрию %s из %d точек", query, place.Geometry.Type, len(points))
			return r.normalizePath(points), nil
		}
	}

	if bb := place.BoundingBox; bb != nil && (bb.MaxLat > bb.MinLat || bb.MaxLon > bb.MinLon) {
		r.logger.Infof("Место %q дало только рамку, строим линию вдоль длинной оси", query)
		return r.boundingBoxLine(*bb), nil
	}

	// Осталась только одиночная точка
	r.logger.Infof("Место %q дало одиночную точку, строим линию восток-запад", query)
	return r.eastWestLine(models.Coordinate{Lat: place.Lat, Lon: place.Lon}), nil
}

// geometryPoints извлекает точки из GeoJSON геометрии.
// GeoJSON хранит координаты в порядке (долгота, широта), меняем на широту-первой.
func geometryPoints(geometry *client.GeoJSONGeometry) ([]models.Coordinate, error) {
	switch geometry.Type {
	case "LineString":
		var line [][]float64
		if err := json.Unmarshal(geometry.Coordinates, &line); err != nil {
			return nil, fmt.Errorf("ошибка парсинга LineString: %w", err)
		}
		return lonLatPairs(line), nil

	case "MultiLineString":
		var lines [][][]float64
		if err := json.Unmarshal(geometry.Coordinates, &lines); err != nil {
			return nil, fmt.Errorf("ошибка парсинга MultiLineString: %w", err)
		}
		var points []models.Coordinate
		for _, line := range lines {
			points = append(points, lonLatPairs(line)...)
		}
		return points, nil

	case "Polygon":
		var rings [][][]float64
		if err := json.Unmarshal(geometry.Coordinates, &rings); err != nil {
			return nil, fmt.Errorf("ошибка парсинга Polygon: %w", err)
		}
		if len(rings) == 0 {
			return nil, fmt.Errorf("полигон без колец")
		}
		// Внешнее кольцо полигона
		return lonLatPairs(rings[0]), nil

	case "Point":
		var point []float64
		if err := json.Unmarshal(geometry.Coordinates, &point); err != nil {
			return nil, fmt.Errorf("ошибка парсинга Point: %w", err)
		}
		if len(point) < 2 {
			return nil, fmt.Errorf("точка без координат")
		}
		return []models.Coordinate{{Lat: point[1], Lon: point[0]}}, nil

	default:
		return nil, fmt.Errorf("неподдерживаемый тип геометрии %q", geometry.Type)
	}
}

// lonLatPairs преобразует пары (lon, lat) в координаты, пропуская некорректные
func lonLatPairs(pairs [][]float64) []models.Coordinate {
	points := make([]models.Coordinate, 0, len(pairs))
	for _, pair := range pairs {
		if len(pair) < 2 {
			continue
		}
		lat, lon := pair[1], pair[0]
		if math.IsNaN(lat) || math.IsNaN(lon) || lat < -90 || lat > 90 || lon < -180 || lon > 180 {
			continue
		}
		points = append(points, models.Coordinate{Lat: lat, Lon: lon})
	}
	return points
}

// normalizePath приводит число точек пути к диапазону [10, 50]:
// длинные пути прореживаются до 50 точек, короткие интерполируются до 20
func (r *Resolver) normalizePath(points []models.Coordinate) []models.Coordinate {
	switch n := len(points); {
	case n > maxPathPoints:
		return r.calc.ResampleByIndex(points, maxPathPoints)
	case n == 1:
		return r.eastWestLine(points[0])
	case n < minPathPoints:
		return r.calc.InterpolatePath(points, interpolatedPathPoints)
	default:
		return points
	}
}

// boundingBoxLine строит прямую из 20 точек вдоль длинной оси рамки
// через ее центроид
func (r *Resolver) boundingBoxLine(bb client.BoundingBox) []models.Coordinate {
	centerLat := (bb.MinLat + bb.MaxLat) / 2
	centerLon := (bb.MinLon + bb.MaxLon) / 2

	var start, end models.Coordinate
	if bb.MaxLon-bb.MinLon >= bb.MaxLat-bb.MinLat {
		start = models.Coordinate{Lat: centerLat, Lon: bb.MinLon}
		end = models.Coordinate{Lat: centerLat, Lon: bb.MaxLon}
	} else {
		start = models.Coordinate{Lat: bb.MinLat, Lon: centerLon}
		end = models.Coordinate{Lat: bb.MaxLat, Lon: centerLon}
	}

	return r.calc.InterpolateCoordinates(start, end, interpolatedPathPoints)
}

// eastWestLine строит линию восток-запад из 20 точек вокруг центра
// с шагом 0.0005 градуса
func (r *Resolver) eastWestLine(center models.Coordinate) []models.Coordinate {
	points := make([]models.Coordinate, syntheticPathPoints)
	for i := range points {
		points[i] = models.Coordinate{
			Lat: center.Lat,
			Lon: center.Lon + float64(i-syntheticPathPoints/2)*pointStepDeg,
		}
	}
	return points
}

// syntheticPath строит плавно изгибающийся путь из 20 точек от опорной точки:
// фиксированный шаг, направление на каждом шаге отклоняется на случайный угол
func (r *Resolver) syntheticPath() []models.Coordinate {
	points := make([]models.Coordinate, 0, syntheticPathPoints)
	current := models.Coordinate{Lat: defaultRefLat, Lon: defaultRefLon}
	points = append(points, current)

	heading := 90.0 // Начинаем на восток
	for i := 1; i < syntheticPathPoints; i++ {
		heading += r.randFloat()*2*headingJitterDeg - headingJitterDeg
		rad := heading * math.Pi / 180
		current = models.Coordinate{
			Lat: current.Lat + pointStepDeg*math.Cos(rad),
			Lon: current.Lon + pointStepDeg*math.Sin(rad),
		}
		points = append(points, current)
	}

	return points
}

// randFloat потокобезопасно возвращает случайное число из [0, 1)
func (r *Resolver) randFloat() float64 {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.rng.Float64()
}
