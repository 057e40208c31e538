package services

import (
	"context"
	"io"

	"github.com/stretchr/testify/mock"

	"vkopt-message-parser/internal/domain"
)

// mockParser - мок для интерфейса ports.Parser. Сравнивает вызовы по содержимому входа.
type mockParser struct {
	mock.Mock
}

func (m *mockParser) Parse(ctx context.Context, r io.Reader, opts domain.ParseOptions) (*domain.ParsedChat, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, err
	}
	args := m.Called(string(data), opts)
	if res := args.Get(0); res != nil {
		return res.(*domain.ParsedChat), args.Error(1)
	}
	return nil, args.Error(1)
}

// mockSource - мок для интерфейса ports.DataSource.
type mockSource struct {
	mock.Mock
}

func (m *mockSource) Fetch() ([]byte, error) {
	args := m.Called()
	if res := args.Get(0); res != nil {
		return res.([]byte), args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *mockSource) Name() string {
	return m.Called().String(0)
}
