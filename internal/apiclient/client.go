// Package apiclient - клиент HTTP API сервера конвертации.
package apiclient

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"vkopt-message-parser/internal/domain"
)

// Статусы задач, которые возвращает сервер.
const (
	StatusPending    = "pending"
	StatusProcessing = "processing"
	StatusCompleted  = "completed"
	StatusFailed     = "failed"
)

var (
	// ErrNotCached возвращается StartByHash, если результата нет в кэше сервера.
	ErrNotCached = errors.New("result is not cached")
	// ErrTaskFailed возвращается Wait, если задача завершилась с ошибкой.
	ErrTaskFailed = errors.New("task failed")
)

// StatusError описывает неожиданный HTTP-статус ответа.
type StatusError struct {
	Code int
	Body string
}

func (e *StatusError) Error() string {
	if e.Body == "" {
		return fmt.Sprintf("unexpected status code: %d", e.Code)
	}
	return fmt.Sprintf("unexpected status code: %d: %s", e.Code, e.Body)
}

// Client - клиент для взаимодействия с API бэкенд-сервера.
type Client struct {
	baseURL    string
	httpClient *http.Client
}

// Option - функциональная опция для Client.
type Option func(*Client)

// WithHTTPClient подменяет HTTP-клиент, например клиентом httptest-сервера.
func WithHTTPClient(c *http.Client) Option {
	return func(cl *Client) {
		if c != nil {
			cl.httpClient = c
		}
	}
}

// WithTimeout задает общий таймаут одного запроса.
func WithTimeout(d time.Duration) Option {
	return func(cl *Client) {
		if d > 0 {
			cl.httpClient.Timeout = d
		}
	}
}

// New создает новый экземпляр Client.
func New(baseURL string, opts ...Option) *Client {
	c := &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{Timeout: 30 * time.Second},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// ID возвращает адрес сервера, он же идентификатор в Router.
func (c *Client) ID() string {
	return c.baseURL
}

// Health проверяет, что сервер отвечает на /health.
func (c *Client) Health(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/health", nil)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	var resp map[string]string
	if err := c.do(req, http.StatusOK, &resp); err != nil {
		return err
	}
	if resp["status"] != "ok" {
		return fmt.Errorf("server reports status %q", resp["status"])
	}
	return nil
}

// API-ответы
type startTaskResponse struct {
	TaskID string `json:"task_id"`
}

// TaskStatus - состояние задачи.
type TaskStatus struct {
	TaskID       string   `json:"task_id"`
	Status       string   `json:"status"`
	Files        []string `json:"files"`
	ErrorMessage string   `json:"error_message,omitempty"`
	DurationMs   int64    `json:"duration_ms"`
}

// Pagination представляет собой объект пагинации из ответа сервера.
type Pagination struct {
	CurrentPage int `json:"current_page"`
	PageSize    int `json:"page_size"`
	TotalItems  int `json:"total_items"`
	TotalPages  int `json:"total_pages"`
}

// ResultPage - страница сообщений верхнего уровня и все участники.
type ResultPage struct {
	Pagination   Pagination           `json:"pagination"`
	Files        []string             `json:"files"`
	Data         []domain.Message     `json:"data"`
	Participants []domain.Participant `json:"participants"`
}

// DocumentFile представляет файл для загрузки.
type DocumentFile struct {
	Name    string
	Content io.Reader
}

// StartTask отправляет файлы на сервер в переданном порядке и возвращает ID задачи.
func (c *Client) StartTask(ctx context.Context, files []DocumentFile, opts domain.ParseOptions) (string, error) {
	var b bytes.Buffer
	w := multipart.NewWriter(&b)

	for _, file := range files {
		fw, err := w.CreateFormFile("files", file.Name)
		if err != nil {
			return "", fmt.Errorf("failed to create form file for %s: %w", file.Name, err)
		}
		if _, err = io.Copy(fw, file.Content); err != nil {
			return "", fmt.Errorf("failed to copy file content for %s: %w", file.Name, err)
		}
	}
	if err := writeOptions(w, opts); err != nil {
		return "", err
	}
	if err := w.Close(); err != nil {
		return "", fmt.Errorf("failed to close multipart writer: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/api/v1/process", &b)
	if err != nil {
		return "", fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", w.FormDataContentType())

	var resp startTaskResponse
	if err := c.do(req, http.StatusAccepted, &resp); err != nil {
		return "", err
	}
	return resp.TaskID, nil
}

func writeOptions(w *multipart.Writer, opts domain.ParseOptions) error {
	fields := map[string]string{
		"only_include_names": strings.Join(opts.OnlyIncludeNames, ","),
		"exclude_names":      strings.Join(opts.ExcludeNames, ","),
		"since_date":         opts.Since,
	}
	if opts.MaxDepth != nil {
		fields["max_depth"] = strconv.Itoa(*opts.MaxDepth)
	}
	for k, v := range fields {
		if v == "" {
			continue
		}
		if err := w.WriteField(k, v); err != nil {
			return fmt.Errorf("failed to write field %s: %w", k, err)
		}
	}
	// Разделитель отправляется и пустым: пустое поле отличается от отсутствующего.
	if opts.Delimiter != nil {
		if err := w.WriteField("text_delimiter", *opts.Delimiter); err != nil {
			return fmt.Errorf("failed to write field text_delimiter: %w", err)
		}
	}
	return nil
}

// StartByHash просит сервер создать задачу из кэша по ключу cache.ResultKey.
func (c *Client) StartByHash(ctx context.Context, hash string) (string, error) {
	body, err := json.Marshal(map[string]string{"hash": hash})
	if err != nil {
		return "", fmt.Errorf("failed to encode request: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/api/v1/process-by-hash", bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	var resp startTaskResponse
	if err := c.do(req, http.StatusAccepted, &resp); err != nil {
		var se *StatusError
		if errors.As(err, &se) && se.Code == http.StatusNotFound {
			return "", ErrNotCached
		}
		return "", err
	}
	return resp.TaskID, nil
}

// GetTaskStatus запрашивает статус задачи.
func (c *Client) GetTaskStatus(ctx context.Context, taskID string) (*TaskStatus, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/api/v1/tasks/"+url.PathEscape(taskID), nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	var status TaskStatus
	if err := c.do(req, http.StatusOK, &status); err != nil {
		return nil, err
	}
	return &status, nil
}

// GetTaskResult запрашивает страницу результата выполненной задачи.
func (c *Client) GetTaskResult(ctx context.Context, taskID string, page, pageSize int) (*ResultPage, error) {
	u := fmt.Sprintf("%s/api/v1/tasks/%s/result?page=%d&page_size=%d", c.baseURL, url.PathEscape(taskID), page, pageSize)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	var result ResultPage
	if err := c.do(req, http.StatusOK, &result); err != nil {
		return nil, err
	}
	return &result, nil
}

// GetAllMessages собирает все страницы результата.
func (c *Client) GetAllMessages(ctx context.Context, taskID string, pageSize int) ([]domain.Message, []domain.Participant, error) {
	var (
		messages     []domain.Message
		participants []domain.Participant
	)
	for page := 1; ; page++ {
		result, err := c.GetTaskResult(ctx, taskID, page, pageSize)
		if err != nil {
			return nil, nil, fmt.Errorf("failed to get task result page %d: %w", page, err)
		}
		messages = append(messages, result.Data...)
		participants = result.Participants

		if page >= result.Pagination.TotalPages {
			return messages, participants, nil
		}
	}
}

// GetText возвращает собранный текст выполненной задачи.
func (c *Client) GetText(ctx context.Context, taskID string) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/api/v1/tasks/"+url.PathEscape(taskID)+"/text", nil)
	if err != nil {
		return "", fmt.Errorf("failed to create request: %w", err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("failed to send request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", statusError(resp)
	}
	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("failed to read response: %w", err)
	}
	return string(data), nil
}

// Wait опрашивает статус задачи с интервалом interval, пока она не завершится.
// onStatus, если задан, вызывается после каждого опроса.
func (c *Client) Wait(ctx context.Context, taskID string, interval time.Duration, onStatus func(*TaskStatus)) (*TaskStatus, error) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		status, err := c.GetTaskStatus(ctx, taskID)
		if err != nil {
			return nil, err
		}
		if onStatus != nil {
			onStatus(status)
		}

		switch status.Status {
		case StatusCompleted:
			return status, nil
		case StatusFailed:
			return status, fmt.Errorf("%w: %s", ErrTaskFailed, status.ErrorMessage)
		case StatusPending, StatusProcessing:
		default:
			return status, fmt.Errorf("unknown task status %q", status.Status)
		}

		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-ticker.C:
		}
	}
}

func (c *Client) do(req *http.Request, wantStatus int, out interface{}) error {
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("failed to send request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != wantStatus {
		return statusError(resp)
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("failed to decode response: %w", err)
	}
	return nil
}

func statusError(resp *http.Response) error {
	body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
	return &StatusError{Code: resp.StatusCode, Body: strings.TrimSpace(string(body))}
}
