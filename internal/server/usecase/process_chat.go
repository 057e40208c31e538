package usecase

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"vkopt-message-parser/internal/adapters/source"
	"vkopt-message-parser/internal/cache"
	"vkopt-message-parser/internal/domain"
	"vkopt-message-parser/internal/ports"
)

// Converter разбирает набор источников в один результат.
type Converter interface {
	Convert(ctx context.Context, sources []ports.DataSource, opts domain.ParseOptions) (*domain.ConversionResult, error)
}

// Upload - файл экспорта, полученный по сети.
type Upload struct {
	Name string
	Data []byte
}

// Option - функциональная опция для ProcessChatUseCase.
type Option func(*ProcessChatUseCase)

// WithLogger устанавливает логгер.
func WithLogger(l *slog.Logger) Option {
	return func(uc *ProcessChatUseCase) {
		if l != nil {
			uc.log = l
		}
	}
}

// ProcessChatUseCase инкапсулирует бизнес-логику обработки набора файлов экспорта:
// поиск в кэше, конвертацию и сохранение результата.
type ProcessChatUseCase struct {
	converter  Converter
	cacheStore *cache.CacheStore
	cacheTTL   time.Duration
	log        *slog.Logger
}

// NewProcessChatUseCase создает новый экземпляр ProcessChatUseCase.
func NewProcessChatUseCase(converter Converter, cacheStore *cache.CacheStore, cacheTTL time.Duration, opts ...Option) *ProcessChatUseCase {
	uc := &ProcessChatUseCase{
		converter:  converter,
		cacheStore: cacheStore,
		cacheTTL:   cacheTTL,
		log:        slog.Default(),
	}
	for _, opt := range opts {
		opt(uc)
	}
	return uc
}

// ResultKey вычисляет ключ кэша для набора файлов и параметров разбора.
func ResultKey(uploads []Upload, opts domain.ParseOptions) (string, error) {
	hashes := make([]string, 0, len(uploads))
	for _, u := range uploads {
		hashes = append(hashes, cache.CalculateHashFromBytes(u.Data))
	}
	return cache.ResultKey(hashes, opts)
}

// ProcessChat конвертирует файлы в порядке загрузки. Повторный запрос с теми же
// файлами и параметрами отдается из кэша.
func (uc *ProcessChatUseCase) ProcessChat(ctx context.Context, uploads []Upload, opts domain.ParseOptions) (*domain.ConversionResult, error) {
	key, err := ResultKey(uploads, opts)
	if err != nil {
		return nil, err
	}

	if cachedItem, found := uc.cacheStore.Get(key); found {
		uc.log.InfoContext(ctx, "Cache hit for file set", "hash", key)
		return renameSources(cachedItem.Data, uploads), nil
	}

	sources := make([]ports.DataSource, 0, len(uploads))
	for _, u := range uploads {
		sources = append(sources, source.NewMemorySource(u.Name, u.Data))
	}

	result, err := uc.converter.Convert(ctx, sources, opts)
	if err != nil {
		return nil, fmt.Errorf("failed to convert uploads: %w", err)
	}

	uc.cacheStore.Put(key, result, uc.cacheTTL)
	uc.log.InfoContext(ctx, "Result cached for file set",
		"hash", key,
		"ttl", uc.cacheTTL.String(),
		"messages", result.MessageCount(),
	)
	return result, nil
}

// renameSources возвращает копию закэшированного результата с именами текущей загрузки:
// ключ кэша строится по содержимому, и те же байты могли прийти под другими именами.
// Записанный в кэш результат не меняется.
func renameSources(result *domain.ConversionResult, uploads []Upload) *domain.ConversionResult {
	renamed := *result
	renamed.Chats = make([]domain.ParsedChat, len(result.Chats))
	copy(renamed.Chats, result.Chats)
	for i := range renamed.Chats {
		if i < len(uploads) {
			renamed.Chats[i].Source = uploads[i].Name
		}
	}
	return &renamed
}
