package cache

import (
	"context"
	"sync"
	"time"

	"vkopt-message-parser/internal/domain"
)

// CacheItem - результат конвертации, сохраненный под ключом ResultKey.
type CacheItem struct {
	Data      *domain.ConversionResult
	StoredAt  time.Time
	ExpiresAt time.Time
}

func (i *CacheItem) expired(now time.Time) bool {
	return now.After(i.ExpiresAt)
}

// Stats - счетчики обращений к кэшу с момента создания.
type Stats struct {
	Hits      uint64
	Misses    uint64
	Evictions uint64
	Entries   int
}

// CacheStore хранит результаты с ограниченным сроком жизни.
// При заданном лимите записей новая запись вытесняет ту, что истекает раньше всех.
type CacheStore struct {
	mu         sync.RWMutex
	items      map[string]*CacheItem
	maxEntries int
	now        func() time.Time

	hits, misses, evictions uint64
}

// Option настраивает CacheStore.
type Option func(*CacheStore)

// WithMaxEntries ограничивает число записей. 0 снимает ограничение.
func WithMaxEntries(n int) Option {
	return func(cs *CacheStore) {
		if n > 0 {
			cs.maxEntries = n
		}
	}
}

// WithClock подменяет источник времени, используется в тестах.
func WithClock(now func() time.Time) Option {
	return func(cs *CacheStore) {
		cs.now = now
	}
}

func NewCacheStore(opts ...Option) *CacheStore {
	cs := &CacheStore{
		items: make(map[string]*CacheItem),
		now:   time.Now,
	}
	for _, opt := range opts {
		opt(cs)
	}
	return cs
}

// Get возвращает непросроченную запись. Просроченная запись остается до очистки.
func (cs *CacheStore) Get(key string) (*CacheItem, bool) {
	cs.mu.Lock()
	defer cs.mu.Unlock()

	item, ok := cs.items[key]
	if !ok || item.expired(cs.now()) {
		cs.misses++
		return nil, false
	}
	cs.hits++
	return item, true
}

// Put сохраняет результат на ttl, заменяя прежнюю запись с тем же ключом.
func (cs *CacheStore) Put(key string, data *domain.ConversionResult, ttl time.Duration) {
	cs.mu.Lock()
	defer cs.mu.Unlock()

	now := cs.now()
	if _, exists := cs.items[key]; !exists && cs.maxEntries > 0 && len(cs.items) >= cs.maxEntries {
		cs.removeExpiredLocked(now)
		if len(cs.items) >= cs.maxEntries {
			cs.evictSoonestLocked()
		}
	}
	cs.items[key] = &CacheItem{
		Data:      data,
		StoredAt:  now,
		ExpiresAt: now.Add(ttl),
	}
}

// Delete удаляет запись, если она есть.
func (cs *CacheStore) Delete(key string) {
	cs.mu.Lock()
	defer cs.mu.Unlock()
	delete(cs.items, key)
}

// Len возвращает количество элементов, включая еще не удаленные просроченные
func (cs *CacheStore) Len() int {
	cs.mu.RLock()
	defer cs.mu.RUnlock()
	return len(cs.items)
}

func (cs *CacheStore) Stats() Stats {
	cs.mu.RLock()
	defer cs.mu.RUnlock()
	return Stats{
		Hits:      cs.hits,
		Misses:    cs.misses,
		Evictions: cs.evictions,
		Entries:   len(cs.items),
	}
}

// CleanupExpired удаляет просроченные записи и возвращает их число.
func (cs *CacheStore) CleanupExpired() int {
	cs.mu.Lock()
	defer cs.mu.Unlock()
	return cs.removeExpiredLocked(cs.now())
}

func (cs *CacheStore) removeExpiredLocked(now time.Time) int {
	removed := 0
	for key, item := range cs.items {
		if item.expired(now) {
			delete(cs.items, key)
			removed++
		}
	}
	return removed
}

func (cs *CacheStore) evictSoonestLocked() {
	var victim string
	var soonest time.Time
	for key, item := range cs.items {
		if victim == "" || item.ExpiresAt.Before(soonest) {
			victim, soonest = key, item.ExpiresAt
		}
	}
	if victim != "" {
		delete(cs.items, victim)
		cs.evictions++
	}
}

// StartCleanupTicker периодически чистит кэш, пока не отменен ctx.
func (cs *CacheStore) StartCleanupTicker(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	go func() {
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				cs.CleanupExpired()
			}
		}
	}()
}
