// Package filter отбрасывает сообщения по автору, дате и глубине пересылки.
package filter

import (
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"vkopt-message-parser/internal/domain"
)

// DateLayout - формат дат в экспорте и в параметре Since.
const DateLayout = "2006.01.02 15:04:05"

var (
	ErrConflictingNameLists = errors.New("only-include and exclude name lists are mutually exclusive")
	ErrInvalidDate          = errors.New("invalid date")
	ErrInvalidMaxDepth      = errors.New("max depth must not be negative")
)

// Filter - политика отбора сообщений.
type Filter struct {
	include  map[string]struct{}
	exclude  map[string]struct{}
	since    time.Time
	hasSince bool
	maxDepth *int
	logger   *slog.Logger
}

// Option - функциональная опция для настройки Filter.
type Option func(*Filter)

// WithLogger устанавливает логгер.
func WithLogger(logger *slog.Logger) Option {
	return func(f *Filter) {
		f.logger = logger
	}
}

// New проверяет параметры и создает фильтр.
func New(opts domain.FilterOptions, options ...Option) (*Filter, error) {
	f := &Filter{
		include:  toSet(opts.OnlyIncludeNames),
		exclude:  toSet(opts.ExcludeNames),
		maxDepth: opts.MaxDepth,
		logger:   slog.Default(),
	}
	for _, option := range options {
		option(f)
	}

	if f.include != nil && f.exclude != nil {
		return nil, ErrConflictingNameLists
	}
	if f.maxDepth != nil && *f.maxDepth < 0 {
		return nil, fmt.Errorf("%w: %d", ErrInvalidMaxDepth, *f.maxDepth)
	}
	if since := strings.TrimSpace(opts.Since); since != "" {
		t, err := time.Parse(DateLayout, since)
		if err != nil {
			return nil, fmt.Errorf("%w %q: expected format %s", ErrInvalidDate, since, DateLayout)
		}
		f.since = t
		f.hasSince = true
	}
	return f, nil
}

func toSet(names []string) map[string]struct{} {
	var set map[string]struct{}
	for _, n := range names {
		n = strings.TrimSpace(n)
		if n == "" {
			continue
		}
		if set == nil {
			set = make(map[string]struct{}, len(names))
		}
		set[n] = struct{}{}
	}
	return set
}

// AcceptShortName проверяет короткое имя по спискам разрешенных и исключенных.
func (f *Filter) AcceptShortName(name string) bool {
	if f.include != nil {
		_, ok := f.include[name]
		return ok
	}
	_, excluded := f.exclude[name]
	return !excluded
}

// AcceptDate проверяет, что сообщение не старше минимальной даты.
// Нераспознанная дата в документе считается не прошедшей проверку.
func (f *Filter) AcceptDate(date string) bool {
	if !f.hasSince {
		return true
	}
	t, err := time.Parse(DateLayout, date)
	if err != nil {
		f.logger.Warn("Unparsable message date, message skipped", "date", date, "error", err)
		return false
	}
	return !t.Before(f.since)
}

// AcceptLevel проверяет глубину пересылки.
func (f *Filter) AcceptLevel(level uint32) bool {
	return f.maxDepth == nil || int64(level) <= int64(*f.maxDepth)
}

// Accept применяет подходящую проверку к событию. Остальные события проходят без изменений.
func (f *Filter) Accept(ev domain.MessageEvent) bool {
	switch ev.Kind {
	case domain.EventStart:
		return f.AcceptLevel(ev.Level)
	case domain.EventShortNameExtracted:
		return f.AcceptShortName(ev.Text)
	case domain.EventDateExtracted:
		return f.AcceptDate(ev.Text)
	default:
		return true
	}
}

// Apply оборачивает редьюсер фильтром: отклоненное событие до next не доходит,
// а разборщик получает просьбу пропустить сообщение целиком.
func Apply[A any](f *Filter, next domain.Reducer[A]) domain.Reducer[A] {
	return ApplyNotify(f, next, nil)
}

// ApplyNotify работает как Apply и сообщает об отклоненном событии в rejected.
// Так редьюсер, собирающий записи, может отменить уже собранные поля сообщения.
func ApplyNotify[A any](f *Filter, next domain.Reducer[A], rejected func(A, domain.MessageEvent) A) domain.Reducer[A] {
	if f == nil {
		return next
	}
	return func(acc A, ev domain.MessageEvent) domain.EventResult[A] {
		if !f.Accept(ev) {
			if rejected != nil {
				acc = rejected(acc, ev)
			}
			return domain.SkipMessage(acc)
		}
		return next(acc, ev)
	}
}
