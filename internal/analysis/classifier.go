package analysis

import (
	"math/rand"
	"sync"
	"time"

	"road-analyzer-go/pkg/models"
)

const (
	// minDetectionConfidence дефекты ниже этого порога не участвуют в оценке
	minDetectionConfidence = 0.1
	// minVerdictConfidence ниже этого порога срабатывает политика переоценки
	minVerdictConfidence = 0.6
)

// Verdict оценка состояния дороги по одному кадру
type Verdict struct {
	Condition  models.RoadCondition
	Confidence float64
}

// OverridePolicy политика переоценки вердикта с низкой уверенностью.
// Вынесена в интерфейс: эталонное поведение (случайная переоценка) подменяется
// в тестах детерминированной политикой.
type OverridePolicy interface {
	Redraw(rng *rand.Rand, verdict Verdict) Verdict
}

// WeightedRandomOverride эталонная политика переоценки: уверенность
// перерисовывается из [0.7, 1.0), состояние выбирается случайно
// с весами good 0.7, fair 0.2, bad 0.1
type WeightedRandomOverride struct{}

// Redraw возвращает случайный вердикт вместо неуверенного
func (WeightedRandomOverride) Redraw(rng *rand.Rand, _ Verdict) Verdict {
	verdict := Verdict{
		Condition:  models.ConditionGood,
		Confidence: 0.7 + rng.Float64()*0.3,
	}

	switch roll := rng.Float64(); {
	case roll < 0.7:
		verdict.Condition = models.ConditionGood
	case roll < 0.9:
		verdict.Condition = models.ConditionFair
	default:
		verdict.Condition = models.ConditionBad
	}

	return verdict
}

// KeepVerdictOverride детерминированная политика: оставляет вердикт как есть
type KeepVerdictOverride struct{}

// Redraw возвращает вердикт без изменений
func (KeepVerdictOverride) Redraw(_ *rand.Rand, verdict Verdict) Verdict {
	return verdict
}

// Classifier преобразует набор дефектов кадра в оценку состояния дороги
type Classifier struct {
	override OverridePolicy

	mu  sync.Mutex
	rng *rand.Rand
}

// NewClassifier создает классификатор с эталонной политикой переоценки
func NewClassifier() *Classifier {
	return NewClassifierWithSource(rand.NewSource(time.Now().UnixNano()), WeightedRandomOverride{})
}

// NewClassifierWithSource создает классификатор с заданным источником
// случайности и политикой переоценки. Используется в тестах.
func NewClassifierWithSource(src rand.Source, override OverridePolicy) *Classifier {
	return &Classifier{
		override: override,
		rng:      rand.New(src),
	}
}

// Classify возвращает оценку состояния дороги по дефектам одного кадра.
// Правила применяются по приоритету: выбоины и колейность дают "bad",
// сетка трещин — "fair", любые прочие дефекты — "fair", отсутствие дефектов — "good".
func (c *Classifier) Classify(detections []models.Detection) Verdict {
	c.mu.Lock()
	defer c.mu.Unlock()

	hasSevere := false   // Выбоины или колейность
	hasAlligator := false
	hasOther := false

	for _, d := range detections {
		// Шумовые детекции не участвуют в оценке
		if d.Confidence < minDetectionConfidence {
			continue
		}

		switch d.ClassID {
		case models.ClassPothole, models.ClassRutting:
			hasSevere = true
		case models.ClassAlligatorCrack:
			hasAlligator = true
		default:
			hasOther = true
		}
	}

	var verdict Verdict
	switch {
	case hasSevere:
		verdict = Verdict{Condition: models.ConditionBad, Confidence: c.randRange(0.8, 1.0)}
	case hasAlligator:
		verdict = Verdict{Condition: models.ConditionFair, Confidence: c.randRange(0.7, 0.9)}
	case hasOther:
		verdict = Verdict{Condition: models.ConditionFair, Confidence: c.randRange(0.6, 0.9)}
	default:
		verdict = Verdict{Condition: models.ConditionGood, Confidence: c.randRange(0.7, 1.0)}
	}

	// Неуверенный вердикт отдается политике переоценки
	if verdict.Confidence < minVerdictConfidence && c.override != nil {
		verdict = c.override.Redraw(c.rng, verdict)
	}

	return verdict
}

// randRange возвращает случайное число из [min, max)
func (c *Classifier) randRange(min, max float64) float64 {
	return min + c.rng.Float64()*(max-min)
}
