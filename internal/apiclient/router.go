package apiclient

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"vkopt-message-parser/internal/domain"
)

var (
	// ErrNoHealthyBackends возвращается, когда в пуле нет доступных серверов.
	ErrNoHealthyBackends = errors.New("no healthy backends available")
	// ErrUnknownTask возвращается для задачи, запущенной не через этот Router.
	ErrUnknownTask = errors.New("task was not started by this router")
)

// Backend - один сервер конвертации. *Client реализует этот интерфейс.
type Backend interface {
	ID() string
	Health(ctx context.Context) error
	StartTask(ctx context.Context, files []DocumentFile, opts domain.ParseOptions) (string, error)
	StartByHash(ctx context.Context, hash string) (string, error)
	GetTaskStatus(ctx context.Context, taskID string) (*TaskStatus, error)
	GetTaskResult(ctx context.Context, taskID string, page, pageSize int) (*ResultPage, error)
	GetText(ctx context.Context, taskID string) (string, error)
}

// Strategy выбирает сервер для новой задачи.
type Strategy interface {
	Next(backends []Backend) (Backend, error)
}

// RoundRobinStrategy выбирает серверы по кругу.
type RoundRobinStrategy struct {
	currentIndex uint32
}

// NewRoundRobinStrategy создает новую Round Robin стратегию.
func NewRoundRobinStrategy() *RoundRobinStrategy {
	return &RoundRobinStrategy{}
}

// Next возвращает следующий сервер в списке.
func (s *RoundRobinStrategy) Next(backends []Backend) (Backend, error) {
	if len(backends) == 0 {
		return nil, ErrNoHealthyBackends
	}
	idx := atomic.AddUint32(&s.currentIndex, 1) - 1
	return backends[idx%uint32(len(backends))], nil
}

// RouterOption определяет функциональную опцию для конфигурации роутера.
type RouterOption func(*Router)

// WithHealthCheckInterval задает интервал проверки нездоровых серверов.
func WithHealthCheckInterval(d time.Duration) RouterOption {
	return func(r *Router) {
		if d > 0 {
			r.healthCheckInterval = d
		}
	}
}

// WithStrategy задает стратегию выбора сервера.
func WithStrategy(s Strategy) RouterOption {
	return func(r *Router) {
		if s != nil {
			r.strategy = s
		}
	}
}

// WithTaskRetention задает, сколько помнить, на каком сервере запущена задача.
func WithTaskRetention(d time.Duration) RouterOption {
	return func(r *Router) {
		if d > 0 {
			r.taskRetention = d
		}
	}
}

// WithRouterLogger задает логгер роутера.
func WithRouterLogger(l *slog.Logger) RouterOption {
	return func(r *Router) {
		if l != nil {
			r.log = l
		}
	}
}

type taskOwner struct {
	backend Backend
	started time.Time
}

// Router распределяет задачи между несколькими серверами конвертации.
// Задача живет на сервере, который ее принял, поэтому статус и результат
// запрашиваются у него же. Сервер, на котором запрос упал с сетевой ошибкой,
// проверяется через /health и при неудаче выводится из пула до восстановления.
type Router struct {
	mu        sync.RWMutex
	healthy   map[string]Backend
	unhealthy map[string]Backend
	tasks     map[string]taskOwner
	strategy  Strategy
	log       *slog.Logger

	healthCheckInterval time.Duration
	taskRetention       time.Duration
	ticker              *time.Ticker
	done                chan struct{}
	wg                  sync.WaitGroup
}

// NewRouter создает роутер и запускает фоновую проверку серверов.
func NewRouter(backends []Backend, opts ...RouterOption) (*Router, error) {
	if len(backends) == 0 {
		return nil, errors.New("no backends provided to router")
	}

	r := &Router{
		healthy:             make(map[string]Backend),
		unhealthy:           make(map[string]Backend),
		tasks:               make(map[string]taskOwner),
		strategy:            NewRoundRobinStrategy(),
		healthCheckInterval: 30 * time.Second,
		taskRetention:       24 * time.Hour,
		done:                make(chan struct{}),
		log:                 slog.Default().With("component", "router"),
	}
	for _, opt := range opts {
		opt(r)
	}
	for _, b := range backends {
		r.healthy[b.ID()] = b
	}

	r.ticker = time.NewTicker(r.healthCheckInterval)
	r.wg.Add(1)
	go r.healthCheckLoop()

	return r, nil
}

// Stop останавливает фоновую проверку.
func (r *Router) Stop() {
	r.ticker.Stop()
	close(r.done)
	r.wg.Wait()
	r.log.Info("router stopped")
}

// healthyBackends возвращает здоровые серверы, упорядоченные по ID.
func (r *Router) healthyBackends() []Backend {
	r.mu.RLock()
	defer r.mu.RUnlock()
	backends := make([]Backend, 0, len(r.healthy))
	for _, b := range r.healthy {
		backends = append(backends, b)
	}
	sort.Slice(backends, func(i, j int) bool { return backends[i].ID() < backends[j].ID() })
	return backends
}

// StartTask загружает файлы на следующий по стратегии сервер.
func (r *Router) StartTask(ctx context.Context, files []DocumentFile, opts domain.ParseOptions) (string, error) {
	backend, err := r.strategy.Next(r.healthyBackends())
	if err != nil {
		return "", err
	}
	r.log.DebugContext(ctx, "Backend selected by strategy", "backend", backend.ID())

	taskID, err := backend.StartTask(ctx, files, opts)
	if err != nil {
		r.handleError(ctx, backend, err)
		return "", err
	}
	r.remember(taskID, backend)
	return taskID, nil
}

// StartByHash ищет результат в кэше каждого здорового сервера.
func (r *Router) StartByHash(ctx context.Context, hash string) (string, error) {
	backends := r.healthyBackends()
	if len(backends) == 0 {
		return "", ErrNoHealthyBackends
	}

	var errs []error
	for _, backend := range backends {
		taskID, err := backend.StartByHash(ctx, hash)
		switch {
		case err == nil:
			r.remember(taskID, backend)
			return taskID, nil
		case errors.Is(err, ErrNotCached):
		default:
			r.handleError(ctx, backend, err)
			errs = append(errs, fmt.Errorf("%s: %w", backend.ID(), err))
		}
	}
	if len(errs) == len(backends) {
		return "", errors.Join(errs...)
	}
	return "", ErrNotCached
}

// GetTaskStatus запрашивает статус у сервера, принявшего задачу.
func (r *Router) GetTaskStatus(ctx context.Context, taskID string) (*TaskStatus, error) {
	backend, err := r.owner(taskID)
	if err != nil {
		return nil, err
	}
	status, err := backend.GetTaskStatus(ctx, taskID)
	r.handleError(ctx, backend, err)
	return status, err
}

// GetTaskResult запрашивает страницу результата у сервера, принявшего задачу.
func (r *Router) GetTaskResult(ctx context.Context, taskID string, page, pageSize int) (*ResultPage, error) {
	backend, err := r.owner(taskID)
	if err != nil {
		return nil, err
	}
	result, err := backend.GetTaskResult(ctx, taskID, page, pageSize)
	r.handleError(ctx, backend, err)
	return result, err
}

// GetText запрашивает текст у сервера, принявшего задачу.
func (r *Router) GetText(ctx context.Context, taskID string) (string, error) {
	backend, err := r.owner(taskID)
	if err != nil {
		return "", err
	}
	text, err := backend.GetText(ctx, taskID)
	r.handleError(ctx, backend, err)
	return text, err
}

func (r *Router) remember(taskID string, backend Backend) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.tasks[taskID] = taskOwner{backend: backend, started: time.Now()}
}

func (r *Router) owner(taskID string) (Backend, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	o, ok := r.tasks[taskID]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownTask, taskID)
	}
	return o.backend, nil
}

// handleError запускает проверку сервера после сетевой ошибки.
// Ответ с HTTP-статусом означает, что сервер жив.
func (r *Router) handleError(ctx context.Context, backend Backend, err error) {
	if err == nil {
		return
	}
	var se *StatusError
	if errors.As(err, &se) || errors.Is(err, context.Canceled) {
		return
	}
	r.log.WarnContext(ctx, "Backend call failed", "backend", backend.ID(), "error", err)
	go r.forceHealthCheck(backend)
}

func (r *Router) healthCheckLoop() {
	defer r.wg.Done()
	for {
		select {
		case <-r.ticker.C:
			r.checkUnhealthyBackends()
			r.forgetOldTasks()
		case <-r.done:
			return
		}
	}
}

func (r *Router) checkUnhealthyBackends() {
	r.mu.RLock()
	backends := make([]Backend, 0, len(r.unhealthy))
	for _, b := range r.unhealthy {
		backends = append(backends, b)
	}
	r.mu.RUnlock()

	for _, b := range backends {
		ctx, cancel := context.WithTimeout(context.Background(), r.healthCheckInterval)
		err := b.Health(ctx)
		cancel()
		if err == nil {
			r.setHealthy(b.ID())
		} else {
			r.log.Debug("Backend remains unhealthy", "backend", b.ID(), "reason", err)
		}
	}
}

func (r *Router) forceHealthCheck(backend Backend) {
	ctx, cancel := context.WithTimeout(context.Background(), r.healthCheckInterval)
	defer cancel()
	if err := backend.Health(ctx); err != nil {
		r.log.Warn("Backend failed health check, moving to unhealthy pool", "backend", backend.ID(), "reason", err)
		r.setUnhealthy(backend.ID())
	}
}

func (r *Router) forgetOldTasks() {
	r.mu.Lock()
	defer r.mu.Unlock()
	for id, o := range r.tasks {
		if time.Since(o.started) > r.taskRetention {
			delete(r.tasks, id)
		}
	}
}

func (r *Router) setUnhealthy(id string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	b, ok := r.healthy[id]
	if !ok {
		return
	}
	delete(r.healthy, id)
	r.unhealthy[id] = b
	r.log.Warn("Backend moved to unhealthy pool", "backend", id, "healthy_count", len(r.healthy), "unhealthy_count", len(r.unhealthy))
}

func (r *Router) setHealthy(id string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	b, ok := r.unhealthy[id]
	if !ok {
		return
	}
	delete(r.unhealthy, id)
	r.healthy[id] = b
	r.log.Info("Backend moved back to healthy pool", "backend", id, "healthy_count", len(r.healthy), "unhealthy_count", len(r.unhealthy))
}
