package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"mime/multipart"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/google/uuid"

	"vkopt-message-parser/internal/cache"
	"vkopt-message-parser/internal/core/filter"
	"vkopt-message-parser/internal/domain"
	"vkopt-message-parser/internal/pkg/config"
	"vkopt-message-parser/internal/server/usecase"
)

const (
	defaultPage     = 1
	defaultPageSize = 50
	maxPageSize     = 500
	// multipartMemory - сколько байт формы держать в памяти, остальное уходит во временные файлы.
	multipartMemory = 8 << 20
)

// ChatProcessor определяет интерфейс для варианта использования, который конвертирует экспорты.
type ChatProcessor interface {
	ProcessChat(ctx context.Context, uploads []usecase.Upload, opts domain.ParseOptions) (*domain.ConversionResult, error)
}

// Option - функциональная опция для Server.
type Option func(*Server)

// WithLogger устанавливает логгер сервера.
func WithLogger(l *slog.Logger) Option {
	return func(s *Server) {
		if l != nil {
			s.log = l
		}
	}
}

// Server представляет HTTP-сервер
type Server struct {
	HTTPServer *http.Server
	cfg        *config.Config
	taskStore  *TaskStore
	cacheStore *cache.CacheStore
	processor  ChatProcessor
	metrics    *metrics
	log        *slog.Logger
	maxUpload  int64

	// ctx живет до Shutdown и ограничивает фоновые задачи
	ctx    context.Context
	cancel context.CancelFunc
}

// New создает новый экземпляр Server
func New(cfg *config.Config, processor ChatProcessor, taskStore *TaskStore, cacheStore *cache.CacheStore, opts ...Option) (*Server, error) {
	maxUpload, err := cfg.Server.MaxUploadBytes()
	if err != nil {
		return nil, err
	}

	ctx, cancel := context.WithCancel(context.Background())
	s := &Server{
		cfg:        cfg,
		taskStore:  taskStore,
		cacheStore: cacheStore,
		processor:  processor,
		metrics:    newMetrics(cacheStore),
		log:        slog.Default(),
		maxUpload:  maxUpload,
		ctx:        ctx,
		cancel:     cancel,
	}
	for _, opt := range opts {
		opt(s)
	}

	s.HTTPServer = &http.Server{
		Addr:         cfg.Address(),
		Handler:      s.routes(),
		ReadTimeout:  config.DefaultReadTimeout,
		WriteTimeout: config.DefaultWriteTimeout,
		IdleTimeout:  config.DefaultIdleTimeout,
	}

	interval := cfg.Processing.CleanupInterval
	if interval <= 0 {
		interval = config.DefaultCleanupInterval
	}
	s.taskStore.StartCleanupTicker(ctx, interval)
	s.cacheStore.StartCleanupTicker(ctx, interval)

	return s, nil
}

func (s *Server) routes() http.Handler {
	r := chi.NewRouter()

	// Промежуточное ПО
	r.Use(middleware.RequestID)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)

	r.Get("/health", s.handleHealth)
	r.Handle("/metrics", s.metrics.handler())

	r.Route("/api/v1", func(r chi.Router) {
		r.Post("/process", s.handleProcess)
		r.Post("/process-by-hash", s.handleProcessByHash)
		r.Get("/tasks/{taskID}", s.handleTaskStatus)
		r.Get("/tasks/{taskID}/result", s.handleTaskResult)
		r.Get("/tasks/{taskID}/text", s.handleTaskText)
	})

	return r
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// handleProcess принимает один или несколько файлов экспорта и запускает задачу конвертации.
func (s *Server) handleProcess(w http.ResponseWriter, r *http.Request) {
	if r.ContentLength > s.maxUpload {
		http.Error(w, fmt.Sprintf("upload exceeds limit of %s", humanize.Bytes(uint64(s.maxUpload))), http.StatusRequestEntityTooLarge)
		return
	}
	r.Body = http.MaxBytesReader(w, r.Body, s.maxUpload)

	if err := r.ParseMultipartForm(multipartMemory); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			http.Error(w, fmt.Sprintf("upload exceeds limit of %s", humanize.Bytes(uint64(s.maxUpload))), http.StatusRequestEntityTooLarge)
			return
		}
		http.Error(w, "failed to parse multipart form", http.StatusBadRequest)
		return
	}
	defer r.MultipartForm.RemoveAll()

	opts, err := s.parseOptions(r)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	uploads, err := readUploads(r.MultipartForm)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	taskID := uuid.NewString()
	names := make([]string, 0, len(uploads))
	var total int
	for _, u := range uploads {
		names = append(names, u.Name)
		total += len(u.Data)
	}
	s.taskStore.CreateTask(taskID, names, s.cfg.Processing.TaskTTL)
	s.log.Info("Conversion task accepted",
		"task_id", taskID,
		"files", names,
		"size", humanize.Bytes(uint64(total)),
	)

	go s.runTask(taskID, uploads, opts)

	writeJSON(w, http.StatusAccepted, map[string]string{"task_id": taskID})
}

func (s *Server) runTask(taskID string, uploads []usecase.Upload, opts domain.ParseOptions) {
	_ = s.taskStore.MarkProcessing(taskID)
	s.metrics.inFlight.Inc()
	defer s.metrics.inFlight.Dec()

	taskCtx := s.ctx
	if s.cfg.Processing.TaskTimeout > 0 {
		var cancel context.CancelFunc
		taskCtx, cancel = context.WithTimeout(s.ctx, s.cfg.Processing.TaskTimeout)
		defer cancel()
	}

	started := time.Now()
	result, err := s.processor.ProcessChat(taskCtx, uploads, opts)
	s.metrics.duration.Observe(time.Since(started).Seconds())
	if err != nil {
		s.log.Warn("Conversion task failed", "task_id", taskID, "error", err)
		s.metrics.tasks.WithLabelValues(string(TaskStatusFailed)).Inc()
		_ = s.taskStore.Fail(taskID, err.Error())
		return
	}

	s.metrics.tasks.WithLabelValues(string(TaskStatusCompleted)).Inc()
	s.metrics.messages.Add(float64(result.MessageCount()))
	_ = s.taskStore.Complete(taskID, result)
	s.log.Info("Conversion task completed", "task_id", taskID, "messages", result.MessageCount())
}

// handleProcessByHash создает завершенную задачу из кэша по ключу, вычисленному клиентом
// (cache.ResultKey). При промахе клиент должен загрузить файлы через /process.
func (s *Server) handleProcessByHash(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Hash string `json:"hash"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "failed to decode request body", http.StatusBadRequest)
		return
	}
	if req.Hash == "" {
		http.Error(w, "hash is required", http.StatusBadRequest)
		return
	}

	item, found := s.cacheStore.Get(req.Hash)
	if !found {
		s.metrics.cacheLookups.WithLabelValues("miss").Inc()
		s.log.Info("Cache miss for hash", "hash", req.Hash)
		http.Error(w, "result for hash not found in cache", http.StatusNotFound)
		return
	}
	s.metrics.cacheLookups.WithLabelValues("hit").Inc()

	taskID := uuid.NewString()
	files := make([]string, 0, len(item.Data.Chats))
	for _, c := range item.Data.Chats {
		files = append(files, c.Source)
	}
	s.taskStore.CreateTask(taskID, files, s.cfg.Processing.TaskTTL)
	_ = s.taskStore.Complete(taskID, item.Data)
	s.log.Info("Cache hit for hash", "hash", req.Hash, "task_id", taskID)

	writeJSON(w, http.StatusAccepted, map[string]string{"task_id": taskID})
}

func (s *Server) handleTaskStatus(w http.ResponseWriter, r *http.Request) {
	task, ok := s.lookupTask(w, r)
	if !ok {
		return
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"task_id":       task.ID,
		"status":        task.Status,
		"files":         task.Files,
		"error_message": task.ErrorMessage,
		"duration_ms":   task.Duration(time.Now()).Milliseconds(),
	})
}

// Pagination описывает страницу результата.
type Pagination struct {
	CurrentPage int `json:"current_page"`
	PageSize    int `json:"page_size"`
	TotalItems  int `json:"total_items"`
	TotalPages  int `json:"total_pages"`
}

// ResultPage - ответ /tasks/{id}/result: страница сообщений верхнего уровня всех файлов
// и полный список участников.
type ResultPage struct {
	Pagination   Pagination           `json:"pagination"`
	Files        []string             `json:"files"`
	Data         []domain.Message     `json:"data"`
	Participants []domain.Participant `json:"participants"`
}

func (s *Server) handleTaskResult(w http.ResponseWriter, r *http.Request) {
	task, ok := s.completedTask(w, r)
	if !ok {
		return
	}

	page, err := queryInt(r, "page", defaultPage)
	if err != nil || page < 1 {
		http.Error(w, "page must be a positive integer", http.StatusBadRequest)
		return
	}
	pageSize, err := queryInt(r, "page_size", defaultPageSize)
	if err != nil || pageSize < 1 {
		http.Error(w, "page_size must be a positive integer", http.StatusBadRequest)
		return
	}
	if pageSize > maxPageSize {
		pageSize = maxPageSize
	}

	messages := task.Result.AllMessages()
	total := len(messages)
	start := (page - 1) * pageSize
	if start > total {
		start = total
	}
	end := start + pageSize
	if end > total {
		end = total
	}

	writeJSON(w, http.StatusOK, ResultPage{
		Pagination: Pagination{
			CurrentPage: page,
			PageSize:    pageSize,
			TotalItems:  total,
			TotalPages:  (total + pageSize - 1) / pageSize,
		},
		Files:        task.Files,
		Data:         messages[start:end],
		Participants: task.Result.Participants,
	})
}

func (s *Server) handleTaskText(w http.ResponseWriter, r *http.Request) {
	task, ok := s.completedTask(w, r)
	if !ok {
		return
	}

	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	_, _ = io.WriteString(w, task.Result.Text())
}

func (s *Server) lookupTask(w http.ResponseWriter, r *http.Request) (Task, bool) {
	task, err := s.taskStore.GetTask(chi.URLParam(r, "taskID"))
	if err != nil {
		http.Error(w, "task not found", http.StatusNotFound)
		return Task{}, false
	}
	return task, true
}

func (s *Server) completedTask(w http.ResponseWriter, r *http.Request) (Task, bool) {
	task, ok := s.lookupTask(w, r)
	if !ok {
		return Task{}, false
	}
	if task.Status != TaskStatusCompleted {
		http.Error(w, "task is not completed", http.StatusBadRequest)
		return Task{}, false
	}
	return task, true
}

// parseOptions собирает параметры разбора из полей формы и проверяет их фильтром.
// Незаданные поля берутся из конфигурации.
func (s *Server) parseOptions(r *http.Request) (domain.ParseOptions, error) {
	opts := domain.ParseOptions{
		FilterOptions: domain.FilterOptions{
			OnlyIncludeNames: splitNames(r.Form["only_include_names"]),
			ExcludeNames:     splitNames(r.Form["exclude_names"]),
			Since:            strings.TrimSpace(r.FormValue("since_date")),
			MaxDepth:         s.cfg.Filter.DefaultMaxDepth(),
		},
		Delimiter: domain.TextDelimiter(s.cfg.Output.Delimiter),
	}
	// Пустое поле - явный пустой разделитель, а не запрос значения по умолчанию.
	if v, ok := r.Form["text_delimiter"]; ok && len(v) > 0 {
		opts.Delimiter = domain.TextDelimiter(v[0])
	}

	if v := strings.TrimSpace(r.FormValue("max_depth")); v != "" {
		depth, err := strconv.Atoi(v)
		if err != nil {
			return opts, fmt.Errorf("invalid max_depth %q", v)
		}
		opts.MaxDepth = nil
		if depth >= 0 {
			opts.MaxDepth = &depth
		}
	}

	if _, err := filter.New(opts.FilterOptions); err != nil {
		return opts, err
	}
	return opts, nil
}

// readUploads читает файлы из поля "files" (или "file" для одного файла) в порядке формы.
func readUploads(form *multipart.Form) ([]usecase.Upload, error) {
	headers := form.File["files"]
	if len(headers) == 0 {
		headers = form.File["file"]
	}
	if len(headers) == 0 {
		return nil, errors.New("no files in form field \"files\"")
	}

	uploads := make([]usecase.Upload, 0, len(headers))
	for _, h := range headers {
		f, err := h.Open()
		if err != nil {
			return nil, fmt.Errorf("failed to open %s: %w", h.Filename, err)
		}
		data, err := io.ReadAll(f)
		f.Close()
		if err != nil {
			return nil, fmt.Errorf("failed to read %s: %w", h.Filename, err)
		}
		uploads = append(uploads, usecase.Upload{Name: h.Filename, Data: data})
	}
	return uploads, nil
}

// splitNames принимает как повторяющиеся поля, так и список через запятую.
func splitNames(values []string) []string {
	var names []string
	for _, v := range values {
		for _, name := range strings.Split(v, ",") {
			if name = strings.TrimSpace(name); name != "" {
				names = append(names, name)
			}
		}
	}
	return names
}

func queryInt(r *http.Request, key string, def int) (int, error) {
	v := r.URL.Query().Get(key)
	if v == "" {
		return def, nil
	}
	return strconv.Atoi(v)
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// ListenAndServe запускает HTTP-сервер
func (s *Server) ListenAndServe() error {
	return s.HTTPServer.ListenAndServe()
}

// Shutdown корректно завершает работу HTTP-сервера и останавливает фоновые задачи
func (s *Server) Shutdown(ctx context.Context) error {
	s.log.Info("Shutting down HTTP server")
	err := s.HTTPServer.Shutdown(ctx)
	s.cancel()
	return err
}
