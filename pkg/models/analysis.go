package models

import "time"

// RoadCondition дискретная оценка состояния участка дороги
type RoadCondition string

const (
	ConditionGood RoadCondition = "good" // Хорошее состояние
	ConditionFair RoadCondition = "fair" // Удовлетворительное состояние
	ConditionBad  RoadCondition = "bad"  // Плохое состояние
)

// Классы дефектов дорожного покрытия (совпадают с классами модели YOLOv8 RDD)
const (
	ClassLongitudinalCrack = 0 // Продольная трещина
	ClassTransverseCrack   = 1 // Поперечная трещина
	ClassAlligatorCrack    = 2 // Сетка трещин ("крокодиловая кожа")
	ClassPothole           = 3 // Выбоина
	ClassRutting           = 4 // Колейность
)

// classLabels таблица названий классов дефектов
var classLabels = [...]string{
	"Longitudinal crack",
	"Transverse crack",
	"Alligator cracking",
	"Pothole",
	"Rutting",
}

// ClassLabel возвращает название класса дефекта по его ID
func ClassLabel(classID int) string {
	if classID < 0 || classID >= len(classLabels) {
		return "Unknown"
	}
	return classLabels[classID]
}

// Coordinate представляет географическую точку
type Coordinate struct {
	Lat float64 `json:"latitude"`  // Широта, градусы [-90, 90]
	Lon float64 `json:"longitude"` // Долгота, градусы [-180, 180]
}

// Detection представляет один дефект, найденный детектором на кадре
type Detection struct {
	ClassID    int        `json:"class_id"`   // Класс дефекта (0..4)
	Confidence float64    `json:"confidence"` // Уверенность детектора [0, 1]
	BBox       [4]float64 `json:"bbox"`       // Ограничивающая рамка [x, y, w, h]
}

// RoadSegment представляет оцененный участок дороги между двумя соседними точками пути
type RoadSegment struct {
	ID               int           `json:"id"`
	StartCoordinates Coordinate    `json:"start_coordinates"`
	EndCoordinates   Coordinate    `json:"end_coordinates"`
	Condition        RoadCondition `json:"condition"`
	Confidence       float64       `json:"confidence"`
}

// AnalysisResult представляет итоговый результат анализа видео.
// После записи в реестр заданий результат не изменяется.
type AnalysisResult struct {
	JobID        string        `json:"job_id"`
	Timestamp    time.Time     `json:"timestamp"`
	VideoName    string        `json:"video_name"`
	RoadName     string        `json:"road_name"`
	RoadLocation string        `json:"road_location"`
	Segments     []RoadSegment `json:"segments"`
}
