package exporter

import (
	"fmt"
	"io"
	"os"

	"vkopt-message-parser/internal/domain"
	"vkopt-message-parser/internal/ports"
)

// ConsoleExporter реализует интерфейс Exporter для вывода сводки в консоль.
type ConsoleExporter struct {
	out      io.Writer
	widths   Widths
	withText bool
}

// ConsoleOption - функциональная опция для настройки ConsoleExporter.
type ConsoleOption func(*ConsoleExporter)

// WithWriter направляет вывод в w вместо os.Stdout.
func WithWriter(w io.Writer) ConsoleOption {
	return func(e *ConsoleExporter) {
		e.out = w
	}
}

// WithWidths задает ширину колонок таблицы участников.
func WithWidths(w Widths) ConsoleOption {
	return func(e *ConsoleExporter) {
		e.widths = w
	}
}

// WithText добавляет в вывод собранный текст сообщений.
func WithText() ConsoleOption {
	return func(e *ConsoleExporter) {
		e.withText = true
	}
}

// NewConsoleExporter создает новый экземпляр ConsoleExporter.
func NewConsoleExporter(opts ...ConsoleOption) ports.Exporter {
	e := &ConsoleExporter{out: os.Stdout, widths: DefaultWidths}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Export выводит количество сообщений по файлам и таблицу участников.
func (e *ConsoleExporter) Export(result *domain.ConversionResult) error {
	if e.withText {
		if _, err := io.WriteString(e.out, result.Text()); err != nil {
			return fmt.Errorf("failed to write text: %w", err)
		}
	}

	fmt.Fprintln(e.out, "--- Files ---")
	for _, chat := range result.Chats {
		fmt.Fprintf(e.out, "%s: %d messages\n", chat.Source, len(chat.Messages))
	}

	fmt.Fprintln(e.out, "--- Chat Participants ---")
	if len(result.Participants) == 0 {
		fmt.Fprintln(e.out, "No participants found.")
		return nil
	}
	_, err := io.WriteString(e.out, ParticipantsTable(result.Participants, e.widths))
	return err
}
