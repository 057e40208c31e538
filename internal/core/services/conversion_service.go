package services

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"vkopt-message-parser/internal/core/filter"
	"vkopt-message-parser/internal/domain"
	"vkopt-message-parser/internal/ports"
)

// ErrNoInputs возвращается, если не передан ни один файл экспорта.
var ErrNoInputs = errors.New("no input files")

// Config хранит конфигурацию для ConversionService.
type Config struct {
	// TotalTimeout - максимальная продолжительность обработки всего набора файлов.
	TotalTimeout time.Duration
	// PoolSize - количество одновременных воркеров.
	PoolSize int
}

// Option - функциональная опция для настройки ConversionService.
type Option func(*ConversionService)

// WithTotalTimeout устанавливает общий таймаут обработки.
func WithTotalTimeout(d time.Duration) Option {
	return func(s *ConversionService) {
		if d > 0 {
			s.config.TotalTimeout = d
		}
	}
}

// WithPoolSize устанавливает количество одновременных воркеров.
func WithPoolSize(n int) Option {
	return func(s *ConversionService) {
		if n > 0 {
			s.config.PoolSize = n
		}
	}
}

// WithLogger устанавливает логгер для сервиса.
func WithLogger(l *slog.Logger) Option {
	return func(s *ConversionService) {
		if l != nil {
			s.log = l
		}
	}
}

// ConversionService разбирает набор файлов экспорта параллельно
// и собирает результат в исходном порядке файлов.
// Сервис не хранит состояние и безопасен для одновременного использования.
type ConversionService struct {
	parser    ports.Parser
	extractor ports.ExtractionService
	config    Config
	log       *slog.Logger
}

// NewConversionService создает новый ConversionService с использованием функциональных опций.
func NewConversionService(p ports.Parser, e ports.ExtractionService, opts ...Option) *ConversionService {
	s := &ConversionService{
		parser:    p,
		extractor: e,
		config: Config{
			TotalTimeout: 5 * time.Minute,
			PoolSize:     4,
		},
		log: slog.Default(),
	}

	for _, opt := range opts {
		opt(s)
	}

	return s
}

type convertTask struct {
	idx int
	src ports.DataSource
}

type convertResult struct {
	idx  int
	chat *domain.ParsedChat
	err  error
}

// Convert разбирает все источники и возвращает чаты, тексты и участников.
// Ошибка любого файла делает результат недействительным, ошибки всех файлов объединяются.
func (s *ConversionService) Convert(ctx context.Context, sources []ports.DataSource, opts domain.ParseOptions) (*domain.ConversionResult, error) {
	if len(sources) == 0 {
		return nil, ErrNoInputs
	}
	// Параметры проверяются один раз, а не в каждом воркере.
	if _, err := filter.New(opts.FilterOptions); err != nil {
		return nil, fmt.Errorf("invalid filter options: %w", err)
	}

	cfg := s.config
	ctx, cancel := context.WithTimeout(ctx, cfg.TotalTimeout)
	defer cancel()

	workers := cfg.PoolSize
	if workers > len(sources) {
		workers = len(sources)
	}

	s.log.InfoContext(ctx, "Starting conversion",
		"files", len(sources),
		"pool_size", workers,
		"total_timeout", cfg.TotalTimeout,
	)

	tasks := make(chan convertTask, len(sources))
	results := make(chan convertResult, len(sources))
	var wg sync.WaitGroup

	for i := 0; i < workers; i++ {
		wg.Add(1)
		go s.worker(ctx, &wg, opts, tasks, results)
	}

	for i, src := range sources {
		tasks <- convertTask{idx: i, src: src}
	}
	close(tasks)

	chats := make([]*domain.ParsedChat, len(sources))
	var processingErrors []error
	for finished := 0; finished < len(sources); finished++ {
		select {
		case res := <-results:
			if res.err != nil {
				processingErrors = append(processingErrors, res.err)
				continue
			}
			chats[res.idx] = res.chat
		case <-ctx.Done():
			err := fmt.Errorf("conversion timed out: %w", ctx.Err())
			s.log.WarnContext(ctx, "Conversion timed out", "finished", finished, "files", len(sources), "error", err)
			return nil, err
		}
	}
	wg.Wait()

	if len(processingErrors) > 0 {
		return nil, errors.Join(processingErrors...)
	}

	participants, err := s.extractor.ExtractParticipants(chats...)
	if err != nil {
		return nil, fmt.Errorf("failed to extract participants: %w", err)
	}

	result := &domain.ConversionResult{
		Chats:        make([]domain.ParsedChat, 0, len(chats)),
		Participants: participants,
	}
	for _, c := range chats {
		result.Chats = append(result.Chats, *c)
	}

	s.log.InfoContext(ctx, "Conversion finished successfully",
		"files", len(sources),
		"messages", result.MessageCount(),
		"participants", len(participants),
	)
	return result, nil
}

func (s *ConversionService) worker(ctx context.Context, wg *sync.WaitGroup, opts domain.ParseOptions, tasks <-chan convertTask, results chan<- convertResult) {
	defer wg.Done()
	for {
		select {
		case <-ctx.Done():
			return
		case t, ok := <-tasks:
			if !ok {
				return
			}
			chat, err := s.convertOne(ctx, t.src, opts)
			results <- convertResult{idx: t.idx, chat: chat, err: err}
		}
	}
}

func (s *ConversionService) convertOne(ctx context.Context, src ports.DataSource, opts domain.ParseOptions) (*domain.ParsedChat, error) {
	s.log.DebugContext(ctx, "Converting file", "source", src.Name())

	data, err := src.Fetch()
	if err != nil {
		return nil, fmt.Errorf("failed to fetch %s: %w", src.Name(), err)
	}

	chat, err := s.parser.Parse(ctx, bytes.NewReader(data), opts)
	if err != nil {
		s.log.WarnContext(ctx, "Failed to convert file", "source", src.Name(), "error", err)
		return nil, fmt.Errorf("failed to convert %s: %w", src.Name(), err)
	}
	chat.Source = src.Name()

	s.log.DebugContext(ctx, "File converted", "source", src.Name(), "messages", len(chat.Messages))
	return chat, nil
}
