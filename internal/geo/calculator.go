package geo

import (
	"math"

	"road-analyzer-go/pkg/models"
)

// Calculator для географических вычислений
type Calculator struct{}

// NewCalculator создает новый калькулятор
func NewCalculator() *Calculator {
	return &Calculator{}
}

// DistanceMeters вычисляет расстояние между двумя точками в метрах
// Использует формулу гаверсинуса
func (c *Calculator) DistanceMeters(point1, point2 models.Coordinate) float64 {
	const earthRadiusKm = 6371.0

	// Преобразуем градусы в радианы
	lat1Rad := point1.Lat * math.Pi / 180
	lon1Rad := point1.Lon * math.Pi / 180
	lat2Rad := point2.Lat * math.Pi / 180
	lon2Rad := point2.Lon * math.Pi / 180

	// Разности координат
	deltaLat := lat2Rad - lat1Rad
	deltaLon := lon2Rad - lon1Rad

	// Формула гаверсинуса
	a := math.Sin(deltaLat/2)*math.Sin(deltaLat/2) +
		math.Cos(lat1Rad)*math.Cos(lat2Rad)*
			math.Sin(deltaLon/2)*math.Sin(deltaLon/2)

	chord := 2 * math.Atan2(math.Sqrt(a), math.Sqrt(1-a))

	// Расстояние в метрах
	return earthRadiusKm * chord * 1000
}

// ResampleByIndex равномерно выбирает numPoints точек из ломаной по индексам.
// Первая и последняя точки всегда сохраняются.
func (c *Calculator) ResampleByIndex(points []models.Coordinate, numPoints int) []models.Coordinate {
	if numPoints <= 0 || len(points) == 0 {
		return []models.Coordinate{}
	}

	if len(points) <= numPoints {
		result := make([]models.Coordinate, len(points))
		copy(result, points)
		return result
	}

	result := make([]models.Coordinate, numPoints)
	for i := 0; i < numPoints; i++ {
		idx := i * (len(points) - 1) / (numPoints - 1)
		result[i] = points[idx]
	}

	return result
}

// InterpolatePath строит numPoints точек вдоль ломаной линейной интерполяцией
// по нормализованному параметру [0, 1]
func (c *Calculator) InterpolatePath(points []models.Coordinate, numPoints int) []models.Coordinate {
	if numPoints <= 0 || len(points) == 0 {
		return []models.Coordinate{}
	}

	if len(points) == 1 || numPoints == 1 {
		result := make([]models.Coordinate, numPoints)
		for i := range result {
			result[i] = points[0]
		}
		return result
	}

	result := make([]models.Coordinate, numPoints)
	for i := 0; i < numPoints; i++ {
		// Параметр вдоль ломаной в единицах индексов исходных точек
		t := float64(i) / float64(numPoints-1) * float64(len(points)-1)
		idx := int(math.Floor(t))
		if idx >= len(points)-1 {
			result[i] = points[len(points)-1]
			continue
		}

		frac := t - float64(idx)
		result[i] = models.Coordinate{
			Lat: points[idx].Lat + (points[idx+1].Lat-points[idx].Lat)*frac,
			Lon: points[idx].Lon + (points[idx+1].Lon-points[idx].Lon)*frac,
		}
	}

	return result
}

// InterpolateCoordinates создает интерполированные координаты между двумя точками
func (c *Calculator) InterpolateCoordinates(start, end models.Coordinate, numPoints int) []models.Coordinate {
	if numPoints <= 0 {
		return []models.Coordinate{}
	}

	if numPoints == 1 {
		return []models.Coordinate{start}
	}

	coords := make([]models.Coordinate, numPoints)

	for i := 0; i < numPoints; i++ {
		// Линейная интерполяция
		ratio := float64(i) / float64(numPoints-1)

		coords[i] = models.Coordinate{
			Lat: start.Lat + (end.Lat-start.Lat)*ratio,
			Lon: start.Lon + (end.Lon-start.Lon)*ratio,
		}
	}

	return coords
}
