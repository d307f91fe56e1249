package store

import (
	"github.com/covhub/covhub/internal/contract"
	"github.com/covhub/covhub/schema"
	"github.com/stretchr/testify/mock"
)

// MockStoreManager is a mock implementation of StoreManager for testing.
type MockStoreManager struct {
	mock.Mock
}

var _ contract.StoreManager = &MockStoreManager{} // Compile-time check

// GetStore implements the StoreManager interface.
func (m *MockStoreManager) GetStore() contract.Store {
	ret := m.Called()
	st, _ := ret.Get(0).(contract.Store)
	return st
}

// GetArchiveStore implements the StoreManager interface.
func (m *MockStoreManager) GetArchiveStore() contract.ArchiveStore {
	ret := m.Called()
	archive, _ := ret.Get(0).(contract.ArchiveStore)
	return archive
}

// MockArchiveStore is a mock implementation of ArchiveStore for testing.
type MockArchiveStore struct {
	mock.Mock
}

var _ contract.ArchiveStore = &MockArchiveStore{} // Compile-time check

// Get implements the ArchiveStore interface.
func (m *MockArchiveStore) Get(key string) ([]byte, int, int64, error) {
	args := m.Called(key)
	data, _ := args.Get(0).([]byte)
	return data, args.Int(1), args.Get(2).(int64), args.Error(3)
}

// Set implements the ArchiveStore interface.
func (m *MockArchiveStore) Set(key string, data []byte, version int, ts int64) error {
	args := m.Called(key, data, version, ts)
	return args.Error(0)
}

// Close implements the ArchiveStore interface.
func (m *MockArchiveStore) Close() error {
	args := m.Called()
	return args.Error(0)
}

// GetStatus implements the ArchiveStore interface.
func (m *MockArchiveStore) GetStatus() (schema.ArchiveStatus, error) {
	args := m.Called()
	return args.Get(0).(schema.ArchiveStatus), args.Error(1)
}
