package coordinator

import (
	"context"
	"github.com/shimmeringbee/da/capabilities"
	"github.com/stretchr/testify/mock"
)

type MockProjector struct {
	mock.Mock
}

func (m *MockProjector) Connect(ctx context.Context) error {
	return m.Called(ctx).Error(0)
}

func (m *MockProjector) Close() error {
	return m.Called().Error(0)
}

func (m *MockProjector) ProductInfo(ctx context.Context) (capabilities.ProductInfo, error) {
	args := m.Called(ctx)
	return args.Get(0).(capabilities.ProductInfo), args.Error(1)
}

func (m *MockProjector) SupportsCommand(command string) bool {
	return m.Called(command).Bool(0)
}

func (m *MockProjector) PowerStatus(ctx context.Context) (PowerStatus, error) {
	args := m.Called(ctx)
	return args.Get(0).(PowerStatus), args.Error(1)
}

func (m *MockProjector) Query(ctx context.Context, command string) (string, error) {
	args := m.Called(ctx, command)
	return args.String(0), args.Error(1)
}

func (m *MockProjector) Send(ctx context.Context, command string, action string) (string, error) {
	args := m.Called(ctx, command, action)
	return args.String(0), args.Error(1)
}

var _ Projector = (*MockProjector)(nil)
