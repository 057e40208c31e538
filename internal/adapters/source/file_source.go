package source

import (
	"errors"
	"fmt"
	"os"

	"github.com/dustin/go-humanize"

	"vkopt-message-parser/internal/ports"
)

// ErrTooLarge возвращается, если файл экспорта превышает допустимый размер.
var ErrTooLarge = errors.New("export file is too large")

// FileSource реализует интерфейс DataSource для чтения экспорта из файла,
// указанного в командной строке.
type FileSource struct {
	filePath string
	maxSize  uint64
}

// FileOption - функциональная опция для настройки FileSource.
type FileOption func(*FileSource)

// WithMaxSize ограничивает размер читаемого файла. 0 - без ограничений.
func WithMaxSize(bytes uint64) FileOption {
	return func(s *FileSource) {
		s.maxSize = bytes
	}
}

// NewFileSource создает новый экземпляр FileSource.
func NewFileSource(filePath string, opts ...FileOption) ports.DataSource {
	s := &FileSource{filePath: filePath}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Fetch читает файл по указанному пути и возвращает его содержимое.
func (s *FileSource) Fetch() ([]byte, error) {
	if s.filePath == "" {
		return nil, fmt.Errorf("file path is not set")
	}

	if s.maxSize > 0 {
		info, err := os.Stat(s.filePath)
		if err != nil {
			return nil, fmt.Errorf("failed to stat file %s: %w", s.filePath, err)
		}
		if uint64(info.Size()) > s.maxSize {
			return nil, fmt.Errorf("%w: %s is %s, limit is %s", ErrTooLarge, s.filePath,
				humanize.Bytes(uint64(info.Size())), humanize.Bytes(s.maxSize))
		}
	}

	data, err := os.ReadFile(s.filePath)
	if err != nil {
		return nil, fmt.Errorf("failed to read file %s: %w", s.filePath, err)
	}

	return data, nil
}

// Name возвращает путь к файлу.
func (s *FileSource) Name() string {
	return s.filePath
}
