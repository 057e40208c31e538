package exporter

import (
	"bytes"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"

	"github.com/dustin/go-humanize"
	"github.com/gofrs/flock"

	"vkopt-message-parser/internal/domain"
	"vkopt-message-parser/internal/ports"
)

// Format - формат файла результата.
type Format string

const (
	// FormatText - тела сообщений через разделитель.
	FormatText Format = "text"
	// FormatRecords - собранные сообщения и участники в JSON.
	FormatRecords Format = "records"
	// FormatXLSX - книга Excel.
	FormatXLSX Format = "xlsx"
)

// ParseFormat проверяет название формата.
func ParseFormat(s string) (Format, error) {
	switch f := Format(s); f {
	case FormatText, FormatRecords, FormatXLSX:
		return f, nil
	default:
		return "", fmt.Errorf("unknown output format %q, expected one of: text, records, xlsx", s)
	}
}

// FileExporter реализует интерфейс Exporter для записи результата в файл.
// Запись идет под эксклюзивной блокировкой path.lock, чтобы параллельные запуски не смешивали вывод.
type FileExporter struct {
	path   string
	format Format
	logger *slog.Logger
}

// NewFileExporter создает новый экземпляр FileExporter.
func NewFileExporter(path string, format Format, logger *slog.Logger) ports.Exporter {
	if logger == nil {
		logger = slog.Default()
	}
	return &FileExporter{path: path, format: format, logger: logger}
}

// Export сериализует результат и записывает его в файл.
func (e *FileExporter) Export(result *domain.ConversionResult) error {
	var buf bytes.Buffer
	switch e.format {
	case FormatText:
		buf.WriteString(result.Text())
	case FormatRecords:
		enc := json.NewEncoder(&buf)
		enc.SetIndent("", "  ")
		enc.SetEscapeHTML(false)
		if err := enc.Encode(result); err != nil {
			return fmt.Errorf("failed to encode records: %w", err)
		}
	case FormatXLSX:
		if err := WriteWorkbook(&buf, result); err != nil {
			return err
		}
	default:
		return fmt.Errorf("unknown output format %q", e.format)
	}

	fileLock := flock.New(e.path + ".lock")
	if err := fileLock.Lock(); err != nil {
		return fmt.Errorf("failed to acquire lock: %w", err)
	}
	defer fileLock.Unlock()

	if err := os.WriteFile(e.path, buf.Bytes(), 0o644); err != nil {
		return fmt.Errorf("failed to write %s: %w", e.path, err)
	}

	e.logger.Info("Result written",
		"path", e.path,
		"format", string(e.format),
		"size", humanize.Bytes(uint64(buf.Len())),
		"messages", result.MessageCount(),
	)
	return nil
}
