package server

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"vkopt-message-parser/internal/domain"
)

var (
	// ErrTaskNotFound возвращается для неизвестного или уже удаленного ID задачи.
	ErrTaskNotFound = errors.New("task not found")
	// ErrTaskFinished - задача уже завершена, ее состояние больше не меняется.
	ErrTaskFinished = errors.New("task already finished")
)

// TaskStatus представляет статус задачи обработки
type TaskStatus string

const (
	TaskStatusPending    TaskStatus = "pending"
	TaskStatusProcessing TaskStatus = "processing"
	TaskStatusCompleted  TaskStatus = "completed"
	TaskStatusFailed     TaskStatus = "failed"
)

// Finished сообщает, что статус конечный.
func (s TaskStatus) Finished() bool {
	return s == TaskStatusCompleted || s == TaskStatusFailed
}

// Task - одна задача конвертации.
type Task struct {
	ID           string
	Status       TaskStatus
	Result       *domain.ConversionResult
	ErrorMessage string
	// Files - имена загруженных файлов в порядке обработки.
	Files      []string
	CreatedAt  time.Time
	StartedAt  time.Time
	FinishedAt time.Time
	ExpiresAt  time.Time
}

// Duration - время обработки. Для незавершенной задачи считается до now.
func (t Task) Duration(now time.Time) time.Duration {
	if t.StartedAt.IsZero() {
		return 0
	}
	if t.FinishedAt.IsZero() {
		return now.Sub(t.StartedAt)
	}
	return t.FinishedAt.Sub(t.StartedAt)
}

// TaskStore хранит задачи до истечения их срока жизни.
type TaskStore struct {
	mu    sync.RWMutex
	tasks map[string]*Task
	now   func() time.Time
}

func NewTaskStore() *TaskStore {
	return &TaskStore{
		tasks: make(map[string]*Task),
		now:   time.Now,
	}
}

// CreateTask регистрирует задачу в статусе pending.
func (ts *TaskStore) CreateTask(taskID string, files []string, ttl time.Duration) {
	ts.mu.Lock()
	defer ts.mu.Unlock()

	now := ts.now()
	ts.tasks[taskID] = &Task{
		ID:        taskID,
		Status:    TaskStatusPending,
		Files:     files,
		CreatedAt: now,
		ExpiresAt: now.Add(ttl),
	}
}

// transition применяет fn к незавершенной задаче.
func (ts *TaskStore) transition(taskID string, fn func(t *Task, now time.Time)) error {
	ts.mu.Lock()
	defer ts.mu.Unlock()

	task, ok := ts.tasks[taskID]
	if !ok {
		return fmt.Errorf("%w: %s", ErrTaskNotFound, taskID)
	}
	if task.Status.Finished() {
		return fmt.Errorf("%w: %s is %s", ErrTaskFinished, taskID, task.Status)
	}
	fn(task, ts.now())
	return nil
}

// MarkProcessing переводит задачу в processing и запоминает время начала.
func (ts *TaskStore) MarkProcessing(taskID string) error {
	return ts.transition(taskID, func(t *Task, now time.Time) {
		t.Status = TaskStatusProcessing
		t.StartedAt = now
	})
}

// Complete сохраняет результат. Задача из кэша завершается сразу из pending.
func (ts *TaskStore) Complete(taskID string, result *domain.ConversionResult) error {
	return ts.transition(taskID, func(t *Task, now time.Time) {
		if t.StartedAt.IsZero() {
			t.StartedAt = now
		}
		t.Status = TaskStatusCompleted
		t.Result = result
		t.FinishedAt = now
	})
}

func (ts *TaskStore) Fail(taskID string, errorMessage string) error {
	return ts.transition(taskID, func(t *Task, now time.Time) {
		if t.StartedAt.IsZero() {
			t.StartedAt = now
		}
		t.Status = TaskStatusFailed
		t.ErrorMessage = errorMessage
		t.FinishedAt = now
	})
}

// GetTask возвращает копию задачи, чтобы обработчики не гонялись с воркером
func (ts *TaskStore) GetTask(taskID string) (Task, error) {
	ts.mu.RLock()
	defer ts.mu.RUnlock()

	task, ok := ts.tasks[taskID]
	if !ok {
		return Task{}, fmt.Errorf("%w: %s", ErrTaskNotFound, taskID)
	}
	return *task, nil
}

// CleanupExpired удаляет просроченные задачи и возвращает их число.
func (ts *TaskStore) CleanupExpired() int {
	ts.mu.Lock()
	defer ts.mu.Unlock()

	now := ts.now()
	removed := 0
	for id, task := range ts.tasks {
		if now.After(task.ExpiresAt) {
			delete(ts.tasks, id)
			removed++
		}
	}
	return removed
}

// StartCleanupTicker запускает тикер для периодической очистки просроченных задач
func (ts *TaskStore) StartCleanupTicker(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	go func() {
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				ts.CleanupExpired()
			}
		}
	}()
}
