package mqttbridge

import (
	"github.com/stretchr/testify/mock"
)

type MockClient struct {
	mock.Mock
}

func (m *MockClient) Publish(topic string, qos byte, retained bool, payload []byte) error {
	return m.Called(topic, qos, retained, payload).Error(0)
}

func (m *MockClient) Subscribe(topic string, qos byte, h Handler) error {
	return m.Called(topic, qos, h).Error(0)
}

func (m *MockClient) Disconnect() {
	m.Called()
}

var _ Client = (*MockClient)(nil)
