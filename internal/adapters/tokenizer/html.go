// Package tokenizer предоставляет источник лексем разметки экспорта поверх golang.org/x/net/html.
package tokenizer

import (
	"context"
	"errors"
	"fmt"
	"io"

	"golang.org/x/net/html"

	"vkopt-message-parser/internal/domain"
	"vkopt-message-parser/internal/ports"
)

// Option - функциональная опция для настройки HTMLTokenSource.
type Option func(*HTMLTokenSource)

// WithMaxBuf ограничивает размер буфера одной лексемы. 0 - без ограничений.
func WithMaxBuf(n int) Option {
	return func(s *HTMLTokenSource) {
		if n > 0 {
			s.z.SetMaxBuf(n)
		}
	}
}

// HTMLTokenSource реализует ports.TokenSource.
// Комментарии и doctype пропускаются, остальные лексемы отдаются как есть.
type HTMLTokenSource struct {
	z    *html.Tokenizer
	done bool
}

var _ ports.TokenSource = (*HTMLTokenSource)(nil)

// New создает источник лексем, читающий разметку из r.
func New(r io.Reader, opts ...Option) *HTMLTokenSource {
	s := &HTMLTokenSource{z: html.NewTokenizer(r)}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// NewWithContext создает источник лексем, который перестает отдавать данные после отмены ctx.
func NewWithContext(ctx context.Context, r io.Reader, opts ...Option) *HTMLTokenSource {
	return New(&contextReader{ctx: ctx, r: r}, opts...)
}

// Next возвращает следующую лексему.
func (s *HTMLTokenSource) Next() (domain.Token, error) {
	if s.done {
		return domain.Token{Kind: domain.TokenEOF}, nil
	}
	for {
		tt := s.z.Next()
		switch tt {
		case html.ErrorToken:
			err := s.z.Err()
			if errors.Is(err, io.EOF) {
				s.done = true
				return domain.Token{Kind: domain.TokenEOF}, nil
			}
			return domain.Token{}, fmt.Errorf("failed to tokenize markup: %w", err)
		case html.TextToken:
			// Raw копируем до Text: Text раскодирует сущности прямо в буфере токенайзера.
			raw := string(s.z.Raw())
			return domain.Token{
				Kind: domain.TokenText,
				Raw:  raw,
				Text: string(s.z.Text()),
			}, nil
		case html.StartTagToken:
			return s.tag(domain.TokenStartTag), nil
		case html.SelfClosingTagToken:
			return s.tag(domain.TokenSelfClosingTag), nil
		case html.EndTagToken:
			raw := string(s.z.Raw())
			name, _ := s.z.TagName()
			return domain.Token{Kind: domain.TokenEndTag, Name: string(name), Raw: raw}, nil
		default:
			// Комментарии и doctype в экспорте не несут данных.
			continue
		}
	}
}

func (s *HTMLTokenSource) tag(kind domain.TokenKind) domain.Token {
	raw := string(s.z.Raw())
	name, more := s.z.TagName()
	tok := domain.Token{Kind: kind, Name: string(name), Raw: raw}
	for more {
		var key, val []byte
		key, val, more = s.z.TagAttr()
		tok.Attrs = append(tok.Attrs, domain.Attr{Key: string(key), Val: string(val)})
	}
	return tok
}

// contextReader прекращает чтение после отмены контекста.
type contextReader struct {
	ctx context.Context
	r   io.Reader
}

func (c *contextReader) Read(p []byte) (int, error) {
	if err := c.ctx.Err(); err != nil {
		return 0, err
	}
	return c.r.Read(p)
}
