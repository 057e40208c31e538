package exporter

import (
	"fmt"
	"io"
	"strings"

	"github.com/xuri/excelize/v2"

	"vkopt-message-parser/internal/domain"
)

const (
	messagesSheet     = "Сообщения"
	participantsSheet = "Участники"
)

// WriteWorkbook пишет книгу Excel с листами сообщений и участников.
// Пересланные сообщения идут сразу после родителя, глубина указана в колонке "Уровень".
func WriteWorkbook(w io.Writer, result *domain.ConversionResult) error {
	f := excelize.NewFile()
	defer f.Close()

	if err := f.SetSheetName("Sheet1", messagesSheet); err != nil {
		return fmt.Errorf("failed to rename sheet: %w", err)
	}
	if _, err := f.NewSheet(participantsSheet); err != nil {
		return fmt.Errorf("failed to create sheet: %w", err)
	}

	headers := []string{"Файл", "Уровень", "Дата", "Короткое имя", "Имя и фамилия", "Текст", "Вложения"}
	if err := writeHeader(f, messagesSheet, headers); err != nil {
		return err
	}

	row := 2
	for _, chat := range result.Chats {
		for _, msg := range flatten(chat.Messages) {
			values := []any{chat.Source, msg.Level, msg.Date, msg.ShortName, msg.FullName, msg.Body, attachmentsCell(msg.Attachments)}
			if err := writeRow(f, messagesSheet, row, values); err != nil {
				return err
			}
			row++
		}
	}

	if err := writeHeader(f, participantsSheet, []string{"Короткое имя", "Имя и фамилия", "Сообщений"}); err != nil {
		return err
	}
	for i, p := range result.Participants {
		if err := writeRow(f, participantsSheet, i+2, []any{p.ShortName, p.FullName, p.MessageCount}); err != nil {
			return err
		}
	}

	if err := f.Write(w); err != nil {
		return fmt.Errorf("failed to write workbook: %w", err)
	}
	return nil
}

func writeHeader(f *excelize.File, sheet string, headers []string) error {
	values := make([]any, len(headers))
	for i, h := range headers {
		values[i] = h
	}
	return writeRow(f, sheet, 1, values)
}

func writeRow(f *excelize.File, sheet string, row int, values []any) error {
	cell, err := excelize.CoordinatesToCellName(1, row)
	if err != nil {
		return fmt.Errorf("invalid row %d: %w", row, err)
	}
	if err := f.SetSheetRow(sheet, cell, &values); err != nil {
		return fmt.Errorf("failed to write row %d of %s: %w", row, sheet, err)
	}
	return nil
}

// flatten раскрывает пересланные сообщения в порядке документа.
func flatten(msgs []domain.Message) []domain.Message {
	var out []domain.Message
	for _, m := range msgs {
		out = append(out, m)
		out = append(out, flatten(m.Forwarded)...)
	}
	return out
}

func attachmentsCell(atts []domain.Attachment) string {
	parts := make([]string, 0, len(atts))
	for _, a := range atts {
		parts = append(parts, fmt.Sprintf("%s %s", a.Kind, a.URL))
	}
	return strings.Join(parts, "\n")
}
