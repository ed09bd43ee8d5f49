package directcache

import "github.com/stretchr/testify/mock"

type MockCodec struct {
	mock.Mock
}

func (m *MockCodec) Marshal(v interface{}) ([]byte, error) {
	args := m.Called(v)
	data, _ := args.Get(0).([]byte)
	return data, args.Error(1)
}

func (m *MockCodec) Unmarshal(data []byte, v interface{}) error {
	args := m.Called(data, v)
	return args.Error(0)
}
