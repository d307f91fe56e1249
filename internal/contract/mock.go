package contract

import (
	"context"

	"github.com/stretchr/testify/mock"
)

// MockGitClient is a mock implementation of GitClient for testing.
type MockGitClient struct {
	mock.Mock
}

var _ GitClient = &MockGitClient{} // Compile-time check

// Run implements the GitClient interface.
func (m *MockGitClient) Run(ctx context.Context, repoPath string, args ...string) ([]byte, error) {
	var mockArgs []any
	mockArgs = append(mockArgs, ctx, repoPath)
	for _, arg := range args {
		mockArgs = append(mockArgs, arg)
	}
	ret := m.Called(mockArgs...)
	output, _ := ret.Get(0).([]byte)
	return output, ret.Error(1)
}

// GetCommitDiff implements the GitClient interface.
func (m *MockGitClient) GetCommitDiff(ctx context.Context, repoPath string, sha string) ([]byte, error) {
	ret := m.Called(ctx, repoPath, sha)
	output, _ := ret.Get(0).([]byte)
	return output, ret.Error(1)
}
