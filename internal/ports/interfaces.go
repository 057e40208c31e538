package ports

import (
	"context"
	"io"

	"vkopt-message-parser/internal/domain"
)

// DataSource определяет интерфейс для получения исходных данных экспорта.
type DataSource interface {
	// Fetch загружает данные из источника и возвращает их в виде байтового среза.
	Fetch() ([]byte, error)
	// Name возвращает имя источника для логов и результатов (обычно путь к файлу).
	Name() string
}

// TokenSource определяет поток лексем разметки.
// Поток последовательный и не позволяет вернуться назад.
type TokenSource interface {
	// Next возвращает следующую лексему. В конце потока возвращается
	// лексема domain.TokenEOF и nil, ошибка означает сбой чтения или токенизации.
	Next() (domain.Token, error)
}

// Parser определяет интерфейс для разбора экспорта в собранные сообщения.
type Parser interface {
	// Parse читает разметку из r и собирает сообщения и текст с учетом фильтров.
	// Отмена ctx останавливает чтение.
	Parse(ctx context.Context, r io.Reader, opts domain.ParseOptions) (*domain.ParsedChat, error)
}

// ExtractionService определяет интерфейс для извлечения списка авторов из разобранных чатов.
type ExtractionService interface {
	ExtractParticipants(chats ...*domain.ParsedChat) ([]domain.Participant, error)
}

// Exporter определяет интерфейс для вывода результата.
type Exporter interface {
	// Export принимает итог обработки и выводит его.
	Export(result *domain.ConversionResult) error
}
