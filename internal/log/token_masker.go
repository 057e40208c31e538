package log

import (
	"context"
	"log/slog"
	"regexp"
)

const mask = "***masked-token***"

// maskRule - шаблон секрета и замена для него.
type maskRule struct {
	re   *regexp.Regexp
	repl string
}

var defaultRules = []maskRule{
	// токен бота в URL Bot API: bot<id>:<secret>
	{regexp.MustCompile(`\bbot\d+:[A-Za-z0-9_-]{35,}`), "bot***:" + mask},
	// ссылки на документы и аудио в экспорте VK несут access_token в строке запроса
	{regexp.MustCompile(`\b(access_token=)[^&\s"']+`), "${1}" + mask},
}

func maskTokens(text string) string {
	for _, r := range defaultRules {
		text = r.re.ReplaceAllString(text, r.repl)
	}
	return text
}

// TokenMaskerHandler оборачивает slog.Handler и вырезает секреты из сообщения
// и всех строковых атрибутов, включая вложенные группы и ошибки.
type TokenMaskerHandler struct {
	next slog.Handler
}

func NewTokenMaskerHandler(next slog.Handler) *TokenMaskerHandler {
	return &TokenMaskerHandler{next: next}
}

// NewMaskedLogger - slog.Logger поверх handler с маскировкой секретов.
func NewMaskedLogger(handler slog.Handler) *slog.Logger {
	return slog.New(NewTokenMaskerHandler(handler))
}

func (h *TokenMaskerHandler) Enabled(ctx context.Context, level slog.Level) bool {
	return h.next.Enabled(ctx, level)
}

// Handle собирает новую запись: Clone сохранил бы исходные атрибуты.
func (h *TokenMaskerHandler) Handle(ctx context.Context, record slog.Record) error {
	masked := slog.NewRecord(record.Time, record.Level, maskTokens(record.Message), record.PC)
	record.Attrs(func(a slog.Attr) bool {
		masked.AddAttrs(maskAttr(a))
		return true
	})
	return h.next.Handle(ctx, masked)
}

func (h *TokenMaskerHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	return &TokenMaskerHandler{next: h.next.WithAttrs(maskAttrs(attrs))}
}

func (h *TokenMaskerHandler) WithGroup(name string) slog.Handler {
	return &TokenMaskerHandler{next: h.next.WithGroup(name)}
}

func maskAttrs(attrs []slog.Attr) []slog.Attr {
	out := make([]slog.Attr, len(attrs))
	for i, a := range attrs {
		out[i] = maskAttr(a)
	}
	return out
}

func maskAttr(a slog.Attr) slog.Attr {
	v := a.Value.Resolve()
	switch v.Kind() {
	case slog.KindString:
		v = slog.StringValue(maskTokens(v.String()))
	case slog.KindGroup:
		v = slog.GroupValue(maskAttrs(v.Group())...)
	case slog.KindAny:
		// ошибки HTTP-клиентов содержат URL целиком
		if err, ok := v.Any().(error); ok {
			v = slog.StringValue(maskTokens(err.Error()))
		}
	}
	return slog.Attr{Key: a.Key, Value: v}
}
