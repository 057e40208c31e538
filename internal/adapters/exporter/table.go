package exporter

import (
	"fmt"
	"strings"
	"unicode"

	"github.com/mattn/go-runewidth"

	"vkopt-message-parser/internal/domain"
)

// Widths задает ширину колонок таблицы участников в символах.
type Widths struct {
	ShortName int
	FullName  int
	Count     int
}

// DefaultWidths подходит для терминала шириной 80 символов и для сообщения Telegram.
var DefaultWidths = Widths{ShortName: 16, FullName: 28, Count: 8}

// ParticipantsTable рисует таблицу участников с переносом длинных имен.
// Ширина считается по отображаемой ширине символов, а не по байтам.
func ParticipantsTable(participants []domain.Participant, w Widths) string {
	var sb strings.Builder

	header := []string{"Short name", "Full name", "Messages"}
	widths := []int{w.ShortName, w.FullName, w.Count}

	writeTableRow(&sb, header, widths)
	sb.WriteString("|")
	for _, width := range widths {
		sb.WriteString(strings.Repeat("-", width+2))
		sb.WriteString("|")
	}
	sb.WriteString("\n")

	for _, p := range participants {
		shortName := "@" + p.ShortName
		fullName := strings.ReplaceAll(strings.ToValidUTF8(p.FullName, ""), "\n", " ")

		cells := [][]string{
			wrapString(shortName, w.ShortName),
			wrapString(fullName, w.FullName),
			{fmt.Sprintf("%d", p.MessageCount)},
		}

		maxLines := 0
		for _, c := range cells {
			if len(c) > maxLines {
				maxLines = len(c)
			}
		}
		for i := 0; i < maxLines; i++ {
			row := make([]string, len(cells))
			for j, c := range cells {
				if i < len(c) {
					row[j] = c[i]
				}
			}
			writeTableRow(&sb, row, widths)
		}
	}
	return sb.String()
}

func writeTableRow(sb *strings.Builder, cells []string, widths []int) {
	for i, c := range cells {
		sb.WriteString("| ")
		sb.WriteString(c)
		sb.WriteString(generatePadding(c, widths[i]))
		sb.WriteString(" ")
	}
	sb.WriteString("|\n")
}

// generatePadding вычисляет отступ для строки с учетом поправки на CJK-символы.
func generatePadding(s string, colWidth int) string {
	paddingNeeded := colWidth - runewidth.StringWidth(s)

	// Некоторые клиенты рисуют CJK-символы шире, чем считает runewidth.
	hasCJK := false
	for _, r := range s {
		if unicode.Is(unicode.Han, r) || unicode.Is(unicode.Hangul, r) || unicode.Is(unicode.Hiragana, r) || unicode.Is(unicode.Katakana, r) {
			hasCJK = true
			break
		}
	}

	if hasCJK && paddingNeeded >= 0 {
		paddingNeeded++
	}

	if paddingNeeded > 0 {
		return strings.Repeat(" ", paddingNeeded)
	}
	return ""
}

// wrapString переносит строку по словам в пределах ширины.
// Слово длиннее ширины разрезается посередине.
func wrapString(s string, width int) []string {
	if width <= 0 || runewidth.StringWidth(s) <= width {
		return []string{s}
	}

	words := strings.Fields(s)
	if len(words) == 0 {
		return splitByWidth(s, width)
	}

	var lines []string
	var currentLine strings.Builder
	for _, word := range words {
		wordWidth := runewidth.StringWidth(word)

		if wordWidth > width {
			if currentLine.Len() > 0 {
				lines = append(lines, currentLine.String())
				currentLine.Reset()
			}
			lines = append(lines, splitByWidth(word, width)...)
			continue
		}

		lineLen := runewidth.StringWidth(currentLine.String())
		if lineLen > 0 && lineLen+1+wordWidth > width {
			lines = append(lines, currentLine.String())
			currentLine.Reset()
		}

		if currentLine.Len() > 0 {
			currentLine.WriteString(" ")
		}
		currentLine.WriteString(word)
	}

	if currentLine.Len() > 0 {
		lines = append(lines, currentLine.String())
	}
	return lines
}

func splitByWidth(s string, width int) []string {
	var lines []string
	runes := []rune(s)
	for len(runes) > 0 {
		i := 0
		currentWidth := 0
		for i < len(runes) {
			rw := runewidth.RuneWidth(runes[i])
			if currentWidth+rw > width {
				break
			}
			currentWidth += rw
			i++
		}
		if i == 0 {
			// Символ шире колонки целиком
			i = 1
		}
		lines = append(lines, string(runes[:i]))
		runes = runes[i:]
	}
	if len(lines) == 0 {
		return []string{""}
	}
	return lines
}
