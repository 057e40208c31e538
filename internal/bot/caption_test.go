package bot

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"vkopt-message-parser/internal/core/filter"
)

func TestParseCaption(t *testing.T) {
	t.Run("пустая подпись", func(t *testing.T) {
		opts, err := parseCaption("")
		require.NoError(t, err)
		require.NotNil(t, opts.Delimiter)
		assert.Equal(t, "\n", *opts.Delimiter)
		assert.Nil(t, opts.MaxDepth)
		assert.Empty(t, opts.OnlyIncludeNames)
	})

	t.Run("все параметры", func(t *testing.T) {
		opts, err := parseCaption("Exclude: @id1, id2\nsince: 2019.01.01 13:00:00\n depth : 1\n")
		require.NoError(t, err)
		assert.Equal(t, []string{"id1", "id2"}, opts.ExcludeNames)
		assert.Equal(t, "2019.01.01 13:00:00", opts.Since)
		require.NotNil(t, opts.MaxDepth)
		assert.Equal(t, 1, *opts.MaxDepth)
	})

	tests := []struct {
		name    string
		caption string
		wantErr error
	}{
		{"оба списка имен", "only: id1\nexclude: id2", filter.ErrConflictingNameLists},
		{"неверная дата", "since: 21.01.2018", filter.ErrInvalidDate},
		{"отрицательная глубина", "depth: -1", filter.ErrInvalidMaxDepth},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := parseCaption(tt.caption)
			assert.ErrorIs(t, err, tt.wantErr)
		})
	}

	t.Run("синтаксические ошибки", func(t *testing.T) {
		for _, caption := range []string{"просто текст", "color: red", "depth: deep"} {
			_, err := parseCaption(caption)
			assert.Error(t, err, caption)
		}
	})
}
