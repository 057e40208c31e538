package source

import (
	"fmt"

	"vkopt-message-parser/internal/ports"
)

// MemorySource реализует интерфейс DataSource для данных, уже загруженных в память,
// например файлов, полученных через HTTP или от бота.
type MemorySource struct {
	name string
	data []byte
}

// NewMemorySource создает новый экземпляр MemorySource.
func NewMemorySource(name string, data []byte) ports.DataSource {
	return &MemorySource{name: name, data: data}
}

// Fetch возвращает данные из памяти.
func (s *MemorySource) Fetch() ([]byte, error) {
	if s.data == nil {
		return nil, fmt.Errorf("data not set for %s", s.name)
	}

	// Копия защищает исходный буфер от изменений
	dataCopy := make([]byte, len(s.data))
	copy(dataCopy, s.data)

	return dataCopy, nil
}

// Name возвращает имя, под которым данные были получены.
func (s *MemorySource) Name() string {
	return s.name
}
