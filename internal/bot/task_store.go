package bot

import (
	"sync"
	"time"
)

type activeTask struct {
	id      string
	started time.Time
}

// TaskStore хранит активную задачу бэкенда для каждого чата Telegram.
// В одном чате одновременно выполняется не больше одной задачи.
type TaskStore struct {
	mu    sync.RWMutex
	tasks map[int64]activeTask
	now   func() time.Time
}

// NewTaskStore создает новый экземпляр TaskStore.
func NewTaskStore() *TaskStore {
	return &TaskStore{
		tasks: make(map[int64]activeTask),
		now:   time.Now,
	}
}

// Set запоминает задачу чата, перезаписывая предыдущую.
func (s *TaskStore) Set(chatID int64, taskID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.tasks[chatID] = activeTask{id: taskID, started: s.now()}
}

// Get возвращает задачу чата.
func (s *TaskStore) Get(chatID int64) (string, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	t, ok := s.tasks[chatID]
	return t.id, ok
}

// Elapsed возвращает время с запуска задачи чата.
func (s *TaskStore) Elapsed(chatID int64) (time.Duration, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	t, ok := s.tasks[chatID]
	if !ok {
		return 0, false
	}
	return s.now().Sub(t.started), true
}

// Delete удаляет задачу для указанного chatID.
func (s *TaskStore) Delete(chatID int64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.tasks, chatID)
}
