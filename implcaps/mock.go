package implcaps

import (
	"context"
	"github.com/shimmeringbee/da/capabilities"
	"github.com/shimmeringbee/logwrap"
	"github.com/shimmeringbee/pda/coordinator"
	"github.com/stretchr/testify/mock"
)

type MockPDAInterface struct {
	mock.Mock
}

func (m *MockPDAInterface) Logger() logwrap.Logger {
	return m.Called().Get(0).(logwrap.Logger)
}

func (m *MockPDAInterface) Coordinator() Coordinator {
	return m.Called().Get(0).(Coordinator)
}

func (m *MockPDAInterface) SendEvent(a any) {
	m.Called(a)
}

var _ PDAInterface = (*MockPDAInterface)(nil)

type MockCoordinator struct {
	mock.Mock
}

func (m *MockCoordinator) UniqueID() string {
	return m.Called().String(0)
}

func (m *MockCoordinator) Data() coordinator.Snapshot {
	if s := m.Called().Get(0); s != nil {
		return s.(coordinator.Snapshot)
	}

	return nil
}

func (m *MockCoordinator) LastUpdateSuccess() bool {
	return m.Called().Bool(0)
}

func (m *MockCoordinator) PowerStatus() coordinator.PowerStatus {
	return m.Called().Get(0).(coordinator.PowerStatus)
}

func (m *MockCoordinator) Current() (coordinator.PowerStatus, coordinator.Snapshot) {
	args := m.Called()

	if s := args.Get(1); s != nil {
		return args.Get(0).(coordinator.PowerStatus), s.(coordinator.Snapshot)
	}

	return args.Get(0).(coordinator.PowerStatus), nil
}

func (m *MockCoordinator) ProductInfo() capabilities.ProductInfo {
	return m.Called().Get(0).(capabilities.ProductInfo)
}

func (m *MockCoordinator) SendCommand(ctx context.Context, command string, action string) (string, error) {
	args := m.Called(ctx, command, action)
	return args.String(0), args.Error(1)
}

func (m *MockCoordinator) RequestRefresh(ctx context.Context) error {
	return m.Called(ctx).Error(0)
}

var _ Coordinator = (*MockCoordinator)(nil)
