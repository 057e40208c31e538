package main

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"vkopt-message-parser/internal/adapters/parser"
	"vkopt-message-parser/internal/cache"
	"vkopt-message-parser/internal/core/services"
	"vkopt-message-parser/internal/domain"
	"vkopt-message-parser/internal/pkg/config"
	"vkopt-message-parser/internal/server"
	"vkopt-message-parser/internal/server/usecase"
)

const export = `<html><body><hr>
<div class="msg_item">
<div class="from"><b>Anna</b> <a href="https://vk.com/id1">@id1</a> 2019.01.01 10:00:00</div>
<div class="msg_body">first</div>
</div>
<div class="msg_item">
<div class="from"><b>Oleg</b> <a href="https://vk.com/id2">@id2</a> 2019.06.01 10:00:00</div>
<div class="msg_body">second</div>
</div>
</body></html>`

// newBackend поднимает настоящий сервер конвертации и считает загрузки файлов.
func newBackend(t *testing.T) (*httptest.Server, *int32) {
	t.Helper()
	cfg := &config.Config{
		Server:     config.Server{Host: "localhost", Port: 8080, MaxUploadSize: "1 MB"},
		Processing: config.Processing{TaskTTL: time.Minute, CacheTTL: time.Minute, CleanupInterval: time.Hour},
		Output:     config.Output{Delimiter: "\n"},
		Filter:     config.Filter{MaxDepth: -1},
	}
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	cacheStore := cache.NewCacheStore()
	converter := services.NewConversionService(parser.NewHTMLParser(), services.NewExtractionService(), services.WithLogger(logger))
	uc := usecase.NewProcessChatUseCase(converter, cacheStore, time.Minute, usecase.WithLogger(logger))

	srv, err := server.New(cfg, uc, server.NewTaskStore(), cacheStore, server.WithLogger(logger))
	require.NoError(t, err)
	t.Cleanup(func() { _ = srv.Shutdown(context.Background()) })

	var uploads int32
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/api/v1/process" {
			atomic.AddInt32(&uploads, 1)
		}
		srv.HTTPServer.Handler.ServeHTTP(w, r)
	}))
	t.Cleanup(ts.Close)
	return ts, &uploads
}

func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	cmd := newRootCmd()
	var out, errOut bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&errOut)
	cmd.SetArgs(args)
	err := cmd.Execute()
	return out.String(), err
}

func writeExport(t *testing.T) (string, string) {
	t.Helper()
	dir := t.TempDir()
	path := filepath.Join(dir, "messages.html")
	require.NoError(t, os.WriteFile(path, []byte(export), 0o644))
	return dir, path
}

func TestRun(t *testing.T) {
	t.Run("текст в stdout, повтор берется из кэша", func(t *testing.T) {
		ts, uploads := newBackend(t)
		_, path := writeExport(t)

		text, err := execute(t, "--server", ts.URL, "--interval", "10ms", path)
		require.NoError(t, err)
		assert.Equal(t, "first\nsecond\n", text)
		assert.Equal(t, int32(1), atomic.LoadInt32(uploads))

		text, err = execute(t, "--server", ts.URL, "--interval", "10ms", path)
		require.NoError(t, err)
		assert.Equal(t, "first\nsecond\n", text)
		assert.Equal(t, int32(1), atomic.LoadInt32(uploads), "second run must be served from cache")
	})

	t.Run("фильтр и записи в файл", func(t *testing.T) {
		ts, _ := newBackend(t)
		dir, path := writeExport(t)
		out := filepath.Join(dir, "out.json")

		_, err := execute(t, "--server", ts.URL, "--interval", "10ms",
			"--exclude-names", "id1", "--format", "records", "-o", out, path)
		require.NoError(t, err)

		data, err := os.ReadFile(out)
		require.NoError(t, err)
		var result domain.ConversionResult
		require.NoError(t, json.Unmarshal(data, &result))
		require.Len(t, result.Chats, 1)
		assert.Equal(t, "messages.html", result.Chats[0].Source)
		assert.Equal(t, "second\n", result.Chats[0].Text)
		require.Len(t, result.Chats[0].Messages, 1)
		assert.Equal(t, "Oleg", result.Chats[0].Messages[0].FullName)
		require.Len(t, result.Participants, 1)
		assert.Equal(t, "id2", result.Participants[0].ShortName)
	})

	t.Run("ошибки", func(t *testing.T) {
		ts, _ := newBackend(t)
		_, path := writeExport(t)

		tests := []struct {
			name   string
			args   []string
			errMsg string
		}{
			{"нет файлов", []string{"--server", ts.URL}, "requires at least 1 arg"},
			{"xlsx в stdout", []string{"--server", ts.URL, "--format", "xlsx", path}, "cannot be written to stdout"},
			{"неизвестный формат", []string{"--server", ts.URL, "--format", "csv", path}, "unknown output format"},
			{"файл не найден", []string{"--server", ts.URL, filepath.Join(t.TempDir(), "missing.html")}, "failed to open file"},
			{"неверная дата", []string{"--server", ts.URL, "--since-date", "yesterday", path}, "400"},
			{"оба списка имен", []string{"--only-include-names", "a", "--exclude-names", "b", path}, "none of the others can be"},
		}
		for _, tt := range tests {
			t.Run(tt.name, func(t *testing.T) {
				_, err := execute(t, tt.args...)
				require.Error(t, err)
				assert.True(t, strings.Contains(err.Error(), tt.errMsg), "error %q must contain %q", err, tt.errMsg)
			})
		}
	})
}
