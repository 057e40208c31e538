package cache

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"vkopt-message-parser/internal/domain"
)

func TestHashes(t *testing.T) {
	// sha256("hello world")
	const helloHash = "b94d27b9934d3e08a52e52d7da7dabfac484efe37a5380ee9088f7ace2efcde9"

	assert.Equal(t, helloHash, CalculateHashFromString("hello world"))
	assert.Equal(t, helloHash, CalculateHashFromBytes([]byte("hello world")))

	t.Run("Хеш файла", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "export.html")
		require.NoError(t, os.WriteFile(path, []byte("hello world"), 0o644))

		hash, err := CalculateFileHash(path)
		require.NoError(t, err)
		assert.Equal(t, helloHash, hash)
	})

	t.Run("Ошибки чтения", func(t *testing.T) {
		_, err := CalculateFileHash(filepath.Join(t.TempDir(), "missing.html"))
		assert.Error(t, err)
		_, err = CalculateFileHash(t.TempDir())
		assert.Error(t, err)
	})
}

func TestResultKey(t *testing.T) {
	hashes := []string{CalculateHashFromString("a"), CalculateHashFromString("b")}

	key1, err := ResultKey(hashes, domain.ParseOptions{})
	require.NoError(t, err)
	key2, err := ResultKey(hashes, domain.ParseOptions{})
	require.NoError(t, err)
	assert.Equal(t, key1, key2)
	assert.Len(t, key1, 64)

	reordered, err := ResultKey([]string{hashes[1], hashes[0]}, domain.ParseOptions{})
	require.NoError(t, err)
	assert.NotEqual(t, key1, reordered, "порядок файлов влияет на текст")

	filtered, err := ResultKey(hashes, domain.ParseOptions{FilterOptions: domain.FilterOptions{ExcludeNames: []string{"id1"}}})
	require.NoError(t, err)
	assert.NotEqual(t, key1, filtered)

	nilVsEmpty, err := ResultKey(hashes, domain.ParseOptions{FilterOptions: domain.FilterOptions{ExcludeNames: []string{}}})
	require.NoError(t, err)
	assert.Equal(t, key1, nilVsEmpty, "пустой и nil список дают один ключ")
}
