package parser

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"vkopt-message-parser/internal/core/filter"
	"vkopt-message-parser/internal/core/reader"
	"vkopt-message-parser/internal/domain"
)

func parseFixture(t *testing.T, opts domain.ParseOptions) (*domain.ParsedChat, error) {
	t.Helper()
	f, err := os.Open(filepath.Join("testdata", "chat.html"))
	require.NoError(t, err)
	defer f.Close()
	return NewHTMLParser().Parse(context.Background(), f, opts)
}

func intPtr(n int) *int { return &n }

func TestHTMLParser(t *testing.T) {
	t.Run("NewHTMLParser создает корректный экземпляр", func(t *testing.T) {
		assert.NotNil(t, NewHTMLParser())
	})

	t.Run("Собирает сообщения с пересланными", func(t *testing.T) {
		chat, err := parseFixture(t, domain.ParseOptions{})
		require.NoError(t, err)
		require.Len(t, chat.Messages, 3)

		first := chat.Messages[0]
		assert.Equal(t, "Anna Smirnova", first.FullName)
		assert.Equal(t, "id100", first.ShortName)
		assert.Equal(t, "2020.06.01 10:00:00", first.Date)
		assert.Equal(t, "Who is in for Oleg's party?", first.Body)

		second := chat.Messages[1]
		assert.Equal(t, "Me\nand this:", second.Body)
		require.Len(t, second.Attachments, 1)
		assert.Equal(t, domain.Attachment{
			Kind:        domain.AttachmentPhoto,
			URL:         "https://pp.userapi.com/c9/party.jpg",
			VkObj:       "photo200_1",
			Description: "Venue",
		}, second.Attachments[0])

		require.Len(t, second.Forwarded, 1)
		fwd := second.Forwarded[0]
		assert.Equal(t, uint32(1), fwd.Level)
		assert.Equal(t, "Saturday at 7", fwd.Body)
		require.Len(t, fwd.Forwarded, 1)
		assert.Equal(t, uint32(2), fwd.Forwarded[0].Level)
		assert.Equal(t, "When?", fwd.Forwarded[0].Body)

		third := chat.Messages[2]
		assert.True(t, third.IsChatAction())
		assert.Empty(t, third.Forwarded)
	})

	t.Run("Текст с разделителем по умолчанию", func(t *testing.T) {
		chat, err := parseFixture(t, domain.ParseOptions{})
		require.NoError(t, err)
		assert.Equal(t, "Who is in for Oleg's party?\nMe\nand this:\nSaturday at 7\nWhen?\n", chat.Text)
	})

	t.Run("Текст с заданным разделителем", func(t *testing.T) {
		chat, err := parseFixture(t, domain.ParseOptions{Delimiter: domain.TextDelimiter("\n---\n")})
		require.NoError(t, err)
		assert.True(t, strings.HasPrefix(chat.Text, "Who is in for Oleg's party?\n---\nMe"))
	})

	t.Run("Явный пустой разделитель склеивает тела", func(t *testing.T) {
		chat, err := parseFixture(t, domain.ParseOptions{Delimiter: domain.TextDelimiter("")})
		require.NoError(t, err)
		assert.Equal(t, "Who is in for Oleg's party?Me\nand this:Saturday at 7When?", chat.Text)
	})

	t.Run("Отклоненные сообщения не попадают в записи", func(t *testing.T) {
		chat, err := parseFixture(t, domain.ParseOptions{
			FilterOptions: domain.FilterOptions{ExcludeNames: []string{"id200"}},
		})
		require.NoError(t, err)

		require.Len(t, chat.Messages, 2)
		for _, m := range chat.Messages {
			assert.Equal(t, "id100", m.ShortName)
			assert.Empty(t, m.Forwarded)
		}
		assert.Equal(t, "Who is in for Oleg's party?\n", chat.Text)
	})

	t.Run("Отклоненное пересланное сообщение удаляется у родителя", func(t *testing.T) {
		chat, err := parseFixture(t, domain.ParseOptions{
			FilterOptions: domain.FilterOptions{Since: "2020.05.30 17:30:00"},
		})
		require.NoError(t, err)

		require.Len(t, chat.Messages, 3)
		fwd := chat.Messages[1].Forwarded
		require.Len(t, fwd, 1)
		assert.Empty(t, fwd[0].Forwarded)
		assert.NotContains(t, chat.Text, "When?")
	})

	t.Run("Ограничение глубины пересылки", func(t *testing.T) {
		chat, err := parseFixture(t, domain.ParseOptions{
			FilterOptions: domain.FilterOptions{MaxDepth: intPtr(0)},
		})
		require.NoError(t, err)

		require.Len(t, chat.Messages, 3)
		assert.Empty(t, chat.Messages[1].Forwarded)
		assert.Equal(t, "Who is in for Oleg's party?\nMe\nand this:\n", chat.Text)
	})

	t.Run("Некорректные параметры фильтра", func(t *testing.T) {
		_, err := parseFixture(t, domain.ParseOptions{
			FilterOptions: domain.FilterOptions{OnlyIncludeNames: []string{"a"}, ExcludeNames: []string{"b"}},
		})
		assert.ErrorIs(t, err, filter.ErrConflictingNameLists)
	})

	t.Run("Структурная ошибка разметки", func(t *testing.T) {
		markup := `<hr><div class="msg_item"><div class="from"><b>X</b><a href="#">@x</a></div>` +
			`<div class="attacments"><div class="attacment"><div class="att_ico att_poll"></div></div></div></div>`
		chat, err := NewHTMLParser().Parse(context.Background(), strings.NewReader(markup), domain.ParseOptions{})
		assert.Nil(t, chat)
		assert.ErrorIs(t, err, reader.ErrUnknownAttachment)
	})

	t.Run("Пустой документ", func(t *testing.T) {
		chat, err := NewHTMLParser().Parse(context.Background(), strings.NewReader(""), domain.ParseOptions{})
		require.NoError(t, err)
		assert.NotNil(t, chat.Messages)
		assert.Empty(t, chat.Messages)
		assert.Empty(t, chat.Text)
	})

	t.Run("Отмена контекста", func(t *testing.T) {
		ctx, cancel := context.WithCancel(context.Background())
		cancel()

		_, err := NewHTMLParser().Parse(ctx, strings.NewReader("<hr>"), domain.ParseOptions{})
		assert.ErrorIs(t, err, context.Canceled)
	})
}
