package video

// minSampleRate минимальный шаг выборки: не чаще каждого десятого кадра
const minSampleRate = 10

// targetSampleCount целевое число выборок на видео любой длины
const targetSampleCount = 100

// Plan вычисляет шаг выборки кадров и список индексов для анализа.
// Шаг равен max(10, frameCount/100), поэтому на видео приходится
// не более ~100 выборок. Индексы строго возрастают и всегда меньше frameCount.
func Plan(frameCount int) (int, []int) {
	sampleRate := frameCount / targetSampleCount
	if sampleRate < minSampleRate {
		sampleRate = minSampleRate
	}

	var indices []int
	for i := 0; i < frameCount; i += sampleRate {
		indices = append(indices, i)
	}

	return sampleRate, indices
}
