// Package reader разбирает HTML-экспорт переписки VkOpt за один проход по потоку лексем.
//
// Дерево документа не строится: вложенность пересланных сообщений отслеживается
// счетчиком глубины и флагом закрытия первой из двух парных оберток.
// Редьюсер может попросить пропустить текущее сообщение вместе со всеми
// пересланными внутри него, ответив domain.SkipMessage.
package reader

import (
	"fmt"
	"strings"
	"unicode/utf8"

	"vkopt-message-parser/internal/domain"
	"vkopt-message-parser/internal/ports"
)

// machine хранит состояние одного прохода. Между вызовами Fold ничего не сохраняется.
type machine[A any] struct {
	state parseState

	level     uint32
	fwdClosed bool

	skipping  bool
	skipLevel uint32

	// Состояние блока вложений.
	nesting uint32
	att     *pendingAttachment

	acc    A
	reduce domain.Reducer[A]
}

type pendingAttachment struct {
	kind    domain.AttachmentKind
	url     string
	caption strings.Builder
}

// Fold сворачивает события сообщений документа в аккумулятор.
// Ошибка источника лексем возвращается обернутой, структурная ошибка - как *ParseError.
// События, переданные редьюсеру до ошибки, остаются в возвращаемом аккумуляторе.
func Fold[A any](src ports.TokenSource, init A, reduce domain.Reducer[A]) (A, error) {
	m := &machine[A]{state: statePrelude, acc: init, reduce: reduce}
	for {
		tok, err := src.Next()
		if err != nil {
			return m.acc, fmt.Errorf("failed to read token: %w", err)
		}
		if tok.Kind == domain.TokenEOF {
			return m.acc, m.finish()
		}
		if err := m.step(tok); err != nil {
			return m.acc, err
		}
	}
}

func (m *machine[A]) finish() error {
	switch m.state {
	case statePrelude, stateNoMessage:
		return nil
	default:
		return newParseError(m.state, "", fmt.Errorf("%w: unexpected end of input", ErrMalformed))
	}
}

// emit передает событие редьюсеру с учетом режима пропуска.
// Во время пропуска доходит только Start сообщения того же или меньшего уровня.
func (m *machine[A]) emit(ev domain.MessageEvent) {
	if m.skipping && (ev.Kind != domain.EventStart || ev.Level > m.skipLevel) {
		return
	}
	res := m.reduce(m.acc, ev)
	m.acc = res.Acc
	if res.Skip {
		m.skipping = true
		m.skipLevel = ev.Level
		return
	}
	m.skipping = false
}

// suppressed сообщает, что события полей текущего сообщения сейчас не доставляются.
// Сборка текста в этом случае не нужна.
func (m *machine[A]) suppressed() bool {
	return m.skipping
}

func (m *machine[A]) malformed(tok domain.Token, format string, args ...any) error {
	return newParseError(m.state, tok.Raw, fmt.Errorf("%w: "+format, append([]any{ErrMalformed}, args...)...))
}

func (m *machine[A]) step(tok domain.Token) error {
	switch m.state {
	case statePrelude:
		if tok.IsTag("hr") {
			m.state = stateNoMessage
		}
	case stateNoMessage:
		return m.noMessage(tok)
	case stateMessageStart:
		if tok.IsTag("b") {
			m.state = stateFullNameStart
		}
	case stateFullNameStart:
		if tok.Kind != domain.TokenText {
			return m.malformed(tok, "expected full name text")
		}
		m.emit(domain.TextEvent(domain.EventFullNameExtracted, m.level, tok.Text))
		m.state = stateFullNameExtracted
	case stateFullNameExtracted:
		if tok.IsTag("a") {
			m.state = stateShortNameStart
		}
	case stateShortNameStart:
		if tok.Kind != domain.TokenText || tok.Text == "" {
			return m.malformed(tok, "expected short name text")
		}
		_, size := utf8.DecodeRuneInString(tok.Text)
		m.emit(domain.TextEvent(domain.EventShortNameExtracted, m.level, tok.Text[size:]))
		m.state = stateShortNameExtracted
	case stateShortNameExtracted:
		if tok.IsEndTag("a") {
			m.state = stateDateStart
		}
	case stateDateStart:
		switch {
		case tok.Kind == domain.TokenText:
			// Между ссылкой и датой может встретиться пустой текстовый узел.
			if date := strings.TrimSpace(tok.Text); date != "" {
				m.emit(domain.TextEvent(domain.EventDateExtracted, m.level, date))
				m.state = stateDateExtracted
			}
		case tok.IsEndTag("div"):
			m.state = stateHeaderClosed
		}
	case stateDateExtracted:
		if tok.IsEndTag("div") {
			m.state = stateHeaderClosed
			return nil
		}
		return m.container(tok, true)
	case stateHeaderClosed:
		return m.container(tok, true)
	case stateMessageBodyStart:
		return m.body(tok)
	case stateMessageChatActionStart:
		if tok.IsEndTag("div") {
			m.state = stateMessageBodyExtracted
		}
	case stateMessageBodyExtracted, stateMessageAttachmentsExtracted:
		return m.container(tok, false)
	case stateMessageAttachments:
		return m.attachments(tok)
	case stateAttachmentLink, stateAttachmentPre:
		return m.attachmentCaption(tok)
	}
	return nil
}

func (m *machine[A]) noMessage(tok domain.Token) error {
	switch {
	case tok.IsTag("div") && tok.HasClass(classMessage):
		m.state = stateMessageStart
		m.emit(domain.StartEvent(m.level))
	case tok.IsEndTag("div") && m.level > 0:
		// Каждый уровень пересылки закрывается парой тегов: обертка fwd и родительское сообщение.
		if !m.fwdClosed {
			m.fwdClosed = true
			return nil
		}
		m.level--
		m.fwdClosed = false
	}
	return nil
}

// container обрабатывает блоки после заголовка: тело, служебное уведомление, вложения и пересланные сообщения.
// afterHeader разрешает тело и уведомление, которые могут идти только сразу после заголовка.
// Закрывающий div здесь завершает сообщение: заголовок без содержимого тоже допустим.
func (m *machine[A]) container(tok domain.Token, afterHeader bool) error {
	switch {
	case tok.IsTag("div"):
		switch {
		case afterHeader && tok.HasClass(classBody):
			m.state = stateMessageBodyStart
		case afterHeader && !tok.HasAttrs():
			m.state = stateMessageChatActionStart
		case tok.HasClass(classAttachments):
			m.state = stateMessageAttachments
			m.nesting = 0
		case tok.HasClass(classForwarded):
			m.level++
			m.fwdClosed = false
			m.state = stateNoMessage
		default:
			return m.malformed(tok, "unexpected message container")
		}
	case tok.IsEndTag("div"):
		m.state = stateNoMessage
	}
	return nil
}

func (m *machine[A]) body(tok domain.Token) error {
	switch {
	case tok.Kind == domain.TokenText:
		if tok.Text == "" || m.suppressed() {
			return nil
		}
		m.emit(domain.TextEvent(domain.EventBodyPartExtracted, m.level, RewriteMentions(tok.Text)))
	case tok.IsTag("br"):
		m.emit(domain.TextEvent(domain.EventBodyPartExtracted, m.level, "\n"))
	case tok.IsTag("img") && tok.HasClass(classEmoji):
		alt, ok := tok.Attr("alt")
		if !ok {
			return m.malformed(tok, "emoji without alt attribute")
		}
		m.emit(domain.TextEvent(domain.EventBodyPartExtracted, m.level, alt))
	case tok.IsEndTag("div"):
		m.state = stateMessageBodyExtracted
	}
	return nil
}

func (m *machine[A]) attachments(tok domain.Token) error {
	switch {
	case tok.IsTag("div"):
		m.nesting++
		class, _ := tok.Attr("class")
		if !strings.Contains(class, classAttIcon) {
			return nil
		}
		if m.att != nil {
			return m.malformed(tok, "attachment icon without link or caption block")
		}
		kind, err := ClassifyAttachment(class)
		if err != nil {
			return newParseError(m.state, tok.Raw, err)
		}
		m.att = &pendingAttachment{kind: kind}
	case tok.IsEndTag("div"):
		if m.nesting == 0 {
			if m.att != nil {
				return m.malformed(tok, "attachment icon without link or caption block")
			}
			m.state = stateMessageAttachmentsExtracted
			return nil
		}
		m.nesting--
	case tok.IsTag("a"):
		if m.att == nil {
			return m.malformed(tok, "attachment link without icon")
		}
		href, ok := tok.Attr("href")
		if !ok {
			return m.malformed(tok, "attachment link without href")
		}
		m.att.url = href
		m.state = stateAttachmentLink
	case tok.IsTag("pre"):
		if m.att == nil {
			return m.malformed(tok, "attachment block without icon")
		}
		m.state = stateAttachmentPre
	}
	return nil
}

func (m *machine[A]) attachmentCaption(tok domain.Token) error {
	closing := "a"
	if m.state == stateAttachmentPre {
		closing = "pre"
	}
	switch {
	case tok.Kind == domain.TokenText:
		if !m.suppressed() {
			m.att.caption.WriteString(tok.Text)
		}
	case tok.IsTag("br"):
		if !m.suppressed() {
			m.att.caption.WriteByte('\n')
		}
	case tok.IsEndTag(closing):
		att := domain.Attachment{Kind: m.att.kind, URL: m.att.url}
		att.VkObj, att.Description = SplitCaption(strings.TrimSpace(m.att.caption.String()))
		m.att = nil
		m.state = stateMessageAttachments
		m.emit(domain.AttachmentEvent(m.level, att))
	}
	return nil
}
