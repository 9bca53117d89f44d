package video

import (
	"bytes"
	"fmt"
	"os/exec"
	"strconv"
	"strings"

	"github.com/sirupsen/logrus"
)

// FrameSource последовательный источник кадров одного видео
type FrameSource interface {
	// FrameCount возвращает общее число кадров видео
	FrameCount() int
	// Frame читает кадр с заданным индексом в формате JPEG
	Frame(index int) ([]byte, error)
	// Close освобождает ресурсы источника
	Close() error
}

// Decoder открывает видеофайл как источник кадров
type Decoder interface {
	Open(path string) (FrameSource, error)
}

// FFmpegDecoder декодер видео на основе ffmpeg/ffprobe
type FFmpegDecoder struct {
	ffmpegPath  string
	ffprobePath string
	logger      *logrus.Logger
}

// NewFFmpegDecoder создает новый декодер видео
func NewFFmpegDecoder(logger *logrus.Logger) *FFmpegDecoder {
	return &FFmpegDecoder{
		ffmpegPath:  "ffmpeg",
		ffprobePath: "ffprobe",
		logger:      logger,
	}
}

// Open проверяет видеофайл и считает количество кадров через ffprobe
func (d *FFmpegDecoder) Open(path string) (FrameSource, error) {
	cmd := exec.Command(d.ffprobePath,
		"-v", "error",
		"-select_streams", "v:0",
		"-count_packets",
		"-show_entries", "stream=nb_read_packets",
		"-of", "csv=p=0",
		path,
	)

	var stderr bytes.Buffer
	cmd.Stderr = &stderr

	out, err := cmd.Output()
	if err != nil {
		return nil, fmt.Errorf("ошибка открытия видео %s: %w (%s)", path, err, strings.TrimSpace(stderr.String()))
	}

	frameCount, err := strconv.Atoi(strings.TrimSpace(string(out)))
	if err != nil {
		return nil, fmt.Errorf("ffprobe вернул некорректное число кадров %q: %w", strings.TrimSpace(string(out)), err)
	}

	if frameCount <= 0 {
		return nil, fmt.Errorf("видео %s не содержит кадров", path)
	}

	d.logger.Infof("Видео %s открыто, кадров: %d", path, frameCount)

	return &ffmpegFrameSource{
		ffmpegPath: d.ffmpegPath,
		videoPath:  path,
		frameCount: frameCount,
		logger:     d.logger,
	}, nil
}

// ffmpegFrameSource извлекает отдельные кадры через ffmpeg
type ffmpegFrameSource struct {
	ffmpegPath string
	videoPath  string
	frameCount int
	logger     *logrus.Logger
}

// FrameCount возвращает число кадров видео
func (s *ffmpegFrameSource) FrameCount() int {
	return s.frameCount
}

// Frame извлекает кадр с заданным индексом как JPEG
func (s *ffmpegFrameSource) Frame(index int) ([]byte, error) {
	if index < 0 || index >= s.frameCount {
		return nil, fmt.Errorf("индекс кадра %d вне диапазона [0, %d)", index, s.frameCount)
	}

	cmd := exec.Command(s.ffmpegPath,
		"-v", "error",
		"-i", s.videoPath,
		"-vf", fmt.Sprintf("select=eq(n\\,%d)", index),
		"-frames:v", "1",
		"-f", "image2",
		"-c:v", "mjpeg",
		"pipe:1",
	)

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		return nil, fmt.Errorf("ошибка извлечения кадра %d: %w (%s)", index, err, strings.TrimSpace(stderr.String()))
	}

	if stdout.Len() == 0 {
		return nil, fmt.Errorf("кадр %d не был декодирован", index)
	}

	return stdout.Bytes(), nil
}

// Close освобождает ресурсы. Для ffmpeg-источника каждый кадр извлекается
// отдельным процессом, освобождать нечего.
func (s *ffmpegFrameSource) Close() error {
	return nil
}
