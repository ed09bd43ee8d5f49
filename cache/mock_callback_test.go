package cache

import (
	. "github.com/onsi/ginkgo"
	"github.com/stretchr/testify/mock"
)

type MockCallback struct {
	mock.Mock
}

func (m *MockCallback) OnEvict(key string) {
	By("Evict " + key)
	m.Called(key)
}
