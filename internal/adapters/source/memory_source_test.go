package source

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestMemorySource(t *testing.T) {
	t.Run("NewMemorySource создает корректный экземпляр", func(t *testing.T) {
		source := NewMemorySource("upload.html", []byte("test data"))

		assert.NotNil(t, source)
		assert.Equal(t, "upload.html", source.Name())
	})

	t.Run("Fetch возвращает установленные данные", func(t *testing.T) {
		expectedData := []byte("test data")
		source := NewMemorySource("upload.html", expectedData)

		actualData, err := source.Fetch()

		assert.NoError(t, err)
		assert.Equal(t, expectedData, actualData)
	})

	t.Run("Fetch возвращает ошибку для nil данных", func(t *testing.T) {
		source := NewMemorySource("upload.html", nil)

		actualData, err := source.Fetch()

		assert.Error(t, err)
		assert.Nil(t, actualData)
		assert.Contains(t, err.Error(), "data not set")
	})

	t.Run("Fetch возвращает копию данных", func(t *testing.T) {
		originalData := []byte("test data")
		source := NewMemorySource("upload.html", originalData)

		fetched, err := source.Fetch()
		assert.NoError(t, err)

		fetched[0] = 'X'
		assert.Equal(t, byte('t'), originalData[0])
	})
}
