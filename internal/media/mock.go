package media

import (
	"context"
	"io"

	"github.com/stretchr/testify/mock"
)

type MockUploader struct {
	mock.Mock
}

func (m *MockUploader) Upload(ctx context.Context, file io.Reader, publicId string) (string, error) {
	args := m.Called(ctx, file, publicId)
	return args.String(0), args.Error(1)
}
