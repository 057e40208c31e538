package parser

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"strings"

	"vkopt-message-parser/internal/adapters/tokenizer"
	"vkopt-message-parser/internal/core/filter"
	"vkopt-message-parser/internal/core/reader"
	"vkopt-message-parser/internal/core/writer"
	"vkopt-message-parser/internal/domain"
	"vkopt-message-parser/internal/ports"
)

// HTMLParser реализует интерфейс Parser для экспорта VkOpt.
// За один проход собирает записи сообщений и текстовый вывод.
type HTMLParser struct {
	logger *slog.Logger
	maxBuf int
}

// Option - функциональная опция для настройки HTMLParser.
type Option func(*HTMLParser)

// WithLogger устанавливает логгер.
func WithLogger(logger *slog.Logger) Option {
	return func(p *HTMLParser) {
		p.logger = logger
	}
}

// WithMaxTokenSize ограничивает размер одной лексемы разметки.
func WithMaxTokenSize(n int) Option {
	return func(p *HTMLParser) {
		p.maxBuf = n
	}
}

// NewHTMLParser создает новый экземпляр HTMLParser.
func NewHTMLParser(opts ...Option) ports.Parser {
	p := &HTMLParser{logger: slog.Default()}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Parse разбирает экспорт и применяет фильтры.
func (p *HTMLParser) Parse(ctx context.Context, r io.Reader, opts domain.ParseOptions) (*domain.ParsedChat, error) {
	f, err := filter.New(opts.FilterOptions, filter.WithLogger(p.logger))
	if err != nil {
		return nil, fmt.Errorf("invalid filter options: %w", err)
	}

	text := writer.NewText(opts.EffectiveDelimiter())

	acc := &assembly{text: text.Init()}
	reduce := filter.ApplyNotify(f, func(a *assembly, ev domain.MessageEvent) domain.EventResult[*assembly] {
		a.text = text.Reduce(a.text, ev).Acc
		a.apply(ev)
		return domain.Consumed(a)
	}, func(a *assembly, ev domain.MessageEvent) *assembly {
		if ev.Kind != domain.EventStart {
			a.dropCurrent()
		}
		return a
	})

	src := tokenizer.NewWithContext(ctx, r, tokenizer.WithMaxBuf(p.maxBuf))
	acc, err = reader.Fold(src, acc, reduce)
	if err != nil {
		return nil, fmt.Errorf("failed to parse export: %w", err)
	}

	chat := &domain.ParsedChat{
		Messages: acc.messages(),
		Text:     text.Finish(acc.text),
	}
	p.logger.Debug("Export parsed", "messages", len(chat.Messages), "text_bytes", len(chat.Text))
	return chat, nil
}

// node - сообщение в процессе сборки. Пересланные сообщения хранятся указателями,
// чтобы дописывать поля после того, как узел добавлен к родителю.
type node struct {
	msg      domain.Message
	body     strings.Builder
	children []*node
}

// assembly собирает дерево сообщений из плоского потока событий.
// stack[i] - текущее сообщение на уровне i.
type assembly struct {
	roots []*node
	stack []*node
	text  writer.TextAcc
}

func (a *assembly) apply(ev domain.MessageEvent) {
	if ev.Kind == domain.EventStart {
		a.start(ev.Level)
		return
	}
	cur := a.current()
	if cur == nil {
		return
	}
	switch ev.Kind {
	case domain.EventFullNameExtracted:
		cur.msg.FullName = ev.Text
	case domain.EventShortNameExtracted:
		cur.msg.ShortName = ev.Text
	case domain.EventDateExtracted:
		cur.msg.Date = ev.Text
	case domain.EventBodyPartExtracted:
		cur.body.WriteString(ev.Text)
	case domain.EventAttachmentExtracted:
		cur.msg.Attachments = append(cur.msg.Attachments, ev.Attachment)
	}
}

func (a *assembly) start(level uint32) {
	n := &node{msg: domain.Message{Level: level}}
	depth := int(level)
	if depth > len(a.stack) {
		depth = len(a.stack)
	}
	a.stack = a.stack[:depth]
	if depth == 0 {
		a.roots = append(a.roots, n)
	} else {
		parent := a.stack[depth-1]
		parent.children = append(parent.children, n)
	}
	a.stack = append(a.stack, n)
}

func (a *assembly) current() *node {
	if len(a.stack) == 0 {
		return nil
	}
	return a.stack[len(a.stack)-1]
}

// dropCurrent удаляет последнее начатое сообщение: фильтр отклонил его после Start.
func (a *assembly) dropCurrent() {
	last := len(a.stack) - 1
	if last < 0 {
		return
	}
	a.stack = a.stack[:last]
	if last == 0 {
		a.roots = a.roots[:len(a.roots)-1]
		return
	}
	parent := a.stack[last-1]
	parent.children = parent.children[:len(parent.children)-1]
}

func (a *assembly) messages() []domain.Message {
	if msgs := build(a.roots); msgs != nil {
		return msgs
	}
	return []domain.Message{}
}

func build(nodes []*node) []domain.Message {
	if len(nodes) == 0 {
		return nil
	}
	out := make([]domain.Message, 0, len(nodes))
	for _, n := range nodes {
		m := n.msg
		m.Body = n.body.String()
		m.Forwarded = build(n.children)
		out = append(out, m)
	}
	return out
}
