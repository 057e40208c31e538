package exporter

import (
	"encoding/json"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"

	"vkopt-message-parser/internal/domain"
)

func TestParseFormat(t *testing.T) {
	for _, name := range []string{"text", "records", "xlsx"} {
		f, err := ParseFormat(name)
		require.NoError(t, err)
		assert.Equal(t, Format(name), f)
	}

	_, err := ParseFormat("csv")
	assert.Error(t, err)
}

func TestFileExporter(t *testing.T) {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	t.Run("Текстовый файл", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "out.txt")
		require.NoError(t, NewFileExporter(path, FormatText, logger).Export(sampleResult()))

		data, err := os.ReadFile(path)
		require.NoError(t, err)
		assert.Equal(t, "Hi\nLook\nSaturday\n", string(data))

		_, err = os.Stat(path + ".lock")
		assert.NoError(t, err, "файл блокировки создается рядом с результатом")
	})

	t.Run("Записи в JSON", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "out.json")
		require.NoError(t, NewFileExporter(path, FormatRecords, logger).Export(sampleResult()))

		data, err := os.ReadFile(path)
		require.NoError(t, err)

		var decoded struct {
			Chats []struct {
				Messages []struct {
					ShortName   string `json:"short_name"`
					Attachments []struct {
						Kind string `json:"kind"`
					} `json:"attachments"`
					Forwarded []json.RawMessage `json:"forwarded"`
				} `json:"messages"`
			} `json:"chats"`
		}
		require.NoError(t, json.Unmarshal(data, &decoded))
		require.Len(t, decoded.Chats[0].Messages, 2)
		assert.Equal(t, "Photo", decoded.Chats[0].Messages[1].Attachments[0].Kind)
		assert.Len(t, decoded.Chats[0].Messages[1].Forwarded, 1)
	})

	t.Run("Книга Excel", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "out.xlsx")
		require.NoError(t, NewFileExporter(path, FormatXLSX, nil).Export(sampleResult()))

		f, err := excelize.OpenFile(path)
		require.NoError(t, err)
		defer f.Close()
		assert.Contains(t, f.GetSheetList(), messagesSheet)
	})

	t.Run("Неизвестный формат", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "out.csv")
		err := NewFileExporter(path, Format("csv"), logger).Export(&domain.ConversionResult{})
		assert.Error(t, err)

		_, statErr := os.Stat(path)
		assert.True(t, os.IsNotExist(statErr))
	})

	t.Run("Каталог не существует", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "missing", "out.txt")
		err := NewFileExporter(path, FormatText, logger).Export(sampleResult())
		assert.Error(t, err)
	})
}
