package config

import (
	"os"
	"strconv"
)

// Config структура конфигурации приложения
type Config struct {
	Server struct {
		Port        int
		Host        string
		Environment string
	}
	DetectorAPI struct {
		BaseURL string
		Timeout int // в секундах
	}
	Geocoder struct {
		NominatimBaseURL string
		OverpassBaseURL  string
		Timeout          int // в секундах
		UserAgent        string
	}
	Pipeline struct {
		MaxConcurrentJobs int
		UploadDir         string
	}
	Logging struct {
		Level string
	}
}

// LoadConfig загружает конфигурацию из переменных окружения
func LoadConfig() *Config {
	cfg := &Config{}

	// Конфигурация сервера
	cfg.Server.Port = getEnvInt("SERVER_PORT", 8080)
	cfg.Server.Host = getEnv("SERVER_HOST", "0.0.0.0")
	cfg.Server.Environment = getEnv("ENVIRONMENT", "development")

	// Конфигурация сервиса детекции (Python API)
	cfg.DetectorAPI.BaseURL = getEnv("DETECTOR_API_BASE_URL", "http://localhost:5000")
	cfg.DetectorAPI.Timeout = getEnvInt("DETECTOR_API_TIMEOUT_SECONDS", 60)

	// Конфигурация геокодирования
	cfg.Geocoder.NominatimBaseURL = getEnv("NOMINATIM_BASE_URL", "https://nominatim.openstreetmap.org")
	cfg.Geocoder.OverpassBaseURL = getEnv("OVERPASS_BASE_URL", "https://overpass-api.de/api/interpreter")
	cfg.Geocoder.Timeout = getEnvInt("GEOCODER_TIMEOUT_SECONDS", 15)
	cfg.Geocoder.UserAgent = getEnv("GEOCODER_USER_AGENT", "road-analyzer-go/1.0")

	// Конфигурация пайплайна анализа
	cfg.Pipeline.MaxConcurrentJobs = getEnvInt("MAX_CONCURRENT_JOBS", 4)
	cfg.Pipeline.UploadDir = getEnv("UPLOAD_DIR", "./static")

	// Конфигурация логирования
	cfg.Logging.Level = getEnv("LOG_LEVEL", "info")

	return cfg
}

// getEnv получает значение переменной окружения или возвращает значение по умолчанию
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// getEnvInt получает int значение переменной окружения или возвращает значение по умолчанию
func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
	}
	return defaultValue
}
