package main

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"os"
	"time"
)

func main() {
	// Проверяем health endpoint
	fmt.Println("Проверяем health endpoint...")
	resp, err := http.Get("http://localhost:8080/api/v1/health")
	if err != nil {
		fmt.Printf("Ошибка при обращении к health endpoint: %v\n", err)
		return
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		fmt.Printf("Ошибка чтения ответа: %v\n", err)
		return
	}

	fmt.Printf("Health check ответ (статус %d):\n%s\n\n", resp.StatusCode, string(body))

	// Если есть тестовое видео, отправляем его на анализ
	if len(os.Args) > 1 {
		videoPath := os.Args[1]
		fmt.Printf("Отправляем видео %s на анализ...\n", videoPath)

		if err := testAnalyze(videoPath); err != nil {
			fmt.Printf("Ошибка при тестировании анализа: %v\n", err)
		}
	} else {
		fmt.Println("Для тестирования анализа запустите: go run test_client.go <путь_к_видео>")
	}
}

func testAnalyze(videoPath string) error {
	// Читаем видео файл
	videoData, err := os.ReadFile(videoPath)
	if err != nil {
		return fmt.Errorf("ошибка чтения видео файла: %w", err)
	}

	// Создаем multipart form
	var body bytes.Buffer
	writer := multipart.NewWriter(&body)

	// Добавляем видео файл
	videoWriter, err := writer.CreateFormFile("video", "test_video.mp4")
	if err != nil {
		return fmt.Errorf("ошибка создания form field: %w", err)
	}

	if _, err := videoWriter.Write(videoData); err != nil {
		return fmt.Errorf("ошибка записи видео: %w", err)
	}

	// Добавляем название дороги (пример для Бангалора)
	writer.WriteField("road_name", "MG Road")
	writer.WriteField("road_location", "Bangalore")

	writer.Close()

	// Отправляем запрос
	client := &http.Client{Timeout: 5 * time.Minute}
	req, err := http.NewRequest("POST", "http://localhost:8080/api/v1/analyze", &body)
	if err != nil {
		return fmt.Errorf("ошибка создания запроса: %w", err)
	}

	req.Header.Set("Content-Type", writer.FormDataContentType())

	fmt.Println("Отправляем запрос на анализ...")
	resp, err := client.Do(req)
	if err != nil {
		return fmt.Errorf("ошибка отправки запроса: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("ошибка чтения ответа: %w", err)
	}

	fmt.Printf("Ответ на создание задания (статус %d):\n%s\n", resp.StatusCode, string(respBody))

	// Поллим статус задания до завершения
	var submitResp struct {
		JobID string `json:"job_id"`
	}
	if err := json.Unmarshal(respBody, &submitResp); err != nil || submitResp.JobID == "" {
		return fmt.Errorf("не удалось получить job_id из ответа")
	}

	for {
		time.Sleep(2 * time.Second)

		statusResp, err := http.Get(fmt.Sprintf("http://localhost:8080/api/v1/jobs/%s/status", submitResp.JobID))
		if err != nil {
			return fmt.Errorf("ошибка запроса статуса: %w", err)
		}

		statusBody, _ := io.ReadAll(statusResp.Body)
		statusResp.Body.Close()
		fmt.Printf("Статус: %s\n", string(statusBody))

		var status struct {
			Status string `json:"status"`
		}
		if err := json.Unmarshal(statusBody, &status); err != nil {
			return fmt.Errorf("ошибка парсинга статуса: %w", err)
		}

		if status.Status == "completed" || status.Status == "failed" {
			break
		}
	}

	// Получаем результат
	resultResp, err := http.Get(fmt.Sprintf("http://localhost:8080/api/v1/jobs/%s/result", submitResp.JobID))
	if err != nil {
		return fmt.Errorf("ошибка запроса результата: %w", err)
	}
	defer resultResp.Body.Close()

	resultBody, _ := io.ReadAll(resultResp.Body)
	fmt.Printf("Результат анализа (статус %d):\n%s\n", resultResp.StatusCode, string(resultBody))
	return nil
}
