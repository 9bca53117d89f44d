package analysis

import "road-analyzer-go/pkg/models"

// BuildSegments собирает оцененные участки дороги из последовательности
// вердиктов и точек пути. i-й участок соединяет path[i] и path[i+1]
// и получает i-й вердикт. Лишние вердикты или точки отбрасываются.
func BuildSegments(verdicts []Verdict, path []models.Coordinate) []models.RoadSegment {
	count := len(path) - 1
	if len(verdicts) < count {
		count = len(verdicts)
	}
	if count < 0 {
		count = 0
	}

	segments := make([]models.RoadSegment, 0, count)
	for i := 0; i < count; i++ {
		segments = append(segments, models.RoadSegment{
			ID:               i + 1,
			StartCoordinates: path[i],
			EndCoordinates:   path[i+1],
			Condition:        verdicts[i].Condition,
			Confidence:       verdicts[i].Confidence,
		})
	}

	return segments
}
