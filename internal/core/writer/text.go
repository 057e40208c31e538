// Package writer собирает принятые события в итоговый текст.
package writer

import (
	"strings"

	"vkopt-message-parser/internal/domain"
)

// DefaultDelimiter разделяет тела сообщений, если разделитель не задан явно.
const DefaultDelimiter = domain.DefaultDelimiter

// TextAcc - аккумулятор текстового вывода одного входного файла.
type TextAcc struct {
	out *strings.Builder
	// hasBody отмечает, что у текущего сообщения уже есть непустое тело.
	hasBody bool
	// messages - количество сообщений с телом, попавших в вывод.
	messages int
}

// Messages возвращает количество сообщений, тело которых попало в вывод.
func (a TextAcc) Messages() int {
	return a.messages
}

// TextWriter пишет тела сообщений подряд, добавляя разделитель после каждого непустого тела.
type TextWriter struct {
	delimiter string
}

// NewText создает писатель с указанным разделителем.
func NewText(delimiter string) *TextWriter {
	return &TextWriter{delimiter: delimiter}
}

// Init возвращает пустой аккумулятор для нового входного файла.
func (w *TextWriter) Init() TextAcc {
	return TextAcc{out: &strings.Builder{}}
}

// Reduce реализует domain.Reducer[TextAcc].
func (w *TextWriter) Reduce(acc TextAcc, ev domain.MessageEvent) domain.EventResult[TextAcc] {
	switch ev.Kind {
	case domain.EventStart:
		acc = w.endMessage(acc)
	case domain.EventBodyPartExtracted:
		if ev.Text != "" {
			acc.out.WriteString(ev.Text)
			acc.hasBody = true
		}
	}
	return domain.Consumed(acc)
}

// Finish завершает последнее сообщение и возвращает текст.
func (w *TextWriter) Finish(acc TextAcc) string {
	acc = w.endMessage(acc)
	return acc.out.String()
}

func (w *TextWriter) endMessage(acc TextAcc) TextAcc {
	if acc.hasBody {
		acc.out.WriteString(w.delimiter)
		acc.hasBody = false
		acc.messages++
	}
	return acc
}
