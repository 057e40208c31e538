package writer

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"vkopt-message-parser/internal/domain"
)

func feed(w *TextWriter, events ...domain.MessageEvent) TextAcc {
	acc := w.Init()
	for _, ev := range events {
		acc = w.Reduce(acc, ev).Acc
	}
	return acc
}

func TestTextWriter(t *testing.T) {
	body := func(s string) domain.MessageEvent {
		return domain.TextEvent(domain.EventBodyPartExtracted, 0, s)
	}

	t.Run("разделитель после каждого тела", func(t *testing.T) {
		w := NewText(DefaultDelimiter)
		acc := feed(w,
			domain.StartEvent(0),
			domain.TextEvent(domain.EventFullNameExtracted, 0, "Ann"),
			body("Hi"), body("\n"), body("there"),
			domain.StartEvent(0),
			body("second"),
		)

		// Второе сообщение закрывается только в Finish.
		assert.Equal(t, 1, acc.Messages())
		assert.Equal(t, "Hi\nthere\nsecond\n", w.Finish(acc))
	})

	t.Run("сообщения без тела не дают разделителя", func(t *testing.T) {
		w := NewText("---\n")
		acc := feed(w,
			domain.StartEvent(0),
			domain.AttachmentEvent(0, domain.Attachment{Kind: domain.AttachmentPhoto}),
			domain.StartEvent(0),
			body(""),
			domain.StartEvent(0),
			body("only"),
		)

		assert.Equal(t, "only---\n", w.Finish(acc))
	})

	t.Run("пересланные сообщения разделяются так же", func(t *testing.T) {
		w := NewText("|")
		acc := feed(w,
			domain.StartEvent(0), body("parent"),
			domain.StartEvent(1), domain.TextEvent(domain.EventBodyPartExtracted, 1, "child"),
		)

		assert.Equal(t, "parent|child|", w.Finish(acc))
	})

	t.Run("пустой вход", func(t *testing.T) {
		w := NewText(DefaultDelimiter)
		assert.Equal(t, "", w.Finish(w.Init()))
	})
}
