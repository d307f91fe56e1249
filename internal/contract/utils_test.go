package contract

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGetPlainLabel(t *testing.T) {
	tests := []struct {
		name     string
		coverage float64
		lines    int
		expected string
	}{
		{"no lines", 0, 0, UnknownValue},
		{"zero coverage", 0, 10, PoorValue},
		{"just before fair", 59.99, 10, PoorValue},
		{"exactly fair", 60, 10, FairValue},
		{"just before good", 79.99, 10, FairValue},
		{"exactly good", 80, 10, GoodValue},
		{"full", 100, 10, GoodValue},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, GetPlainLabel(tt.coverage, tt.lines))
		})
	}
}

func TestGetColorLabel(t *testing.T) {
	tests := []struct {
		name     string
		coverage float64
		label    string
	}{
		{"poor", 30, PoorValue},
		{"fair", 70, FairValue},
		{"good", 90, GoodValue},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Contains(t, GetColorLabel(tt.coverage, 5), tt.label)
		})
	}
}

func TestSelectOutputFile(t *testing.T) {
	t.Run("empty path returns stdout", func(t *testing.T) {
		file, err := SelectOutputFile("")
		require.NoError(t, err)
		assert.Equal(t, os.Stdout, file)
	})

	t.Run("valid path creates file", func(t *testing.T) {
		tempFile := filepath.Join(t.TempDir(), "test_output.txt")

		file, err := SelectOutputFile(tempFile)
		require.NoError(t, err)
		assert.NotNil(t, file)
		_ = file.Close()

		_, err = os.Stat(tempFile)
		assert.NoError(t, err)
	})
}

func TestTruncatePath(t *testing.T) {
	assert.Equal(t, "short.go", TruncatePath("short.go", 20))
	assert.Equal(t, "...c/d.go", TruncatePath("a/b/c/d.go", 9))
	assert.Equal(t, "a/b/c/d.go", TruncatePath("a/b/c/d.go", 3))
}

func TestSplitSlug(t *testing.T) {
	owner, repo, err := SplitSlug("codecov/api")
	require.NoError(t, err)
	assert.Equal(t, "codecov", owner)
	assert.Equal(t, "api", repo)

	for _, bad := range []string{"", "codecov", "/api", "codecov/", "a/b/c"} {
		_, _, err := SplitSlug(bad)
		assert.Error(t, err, "slug %q", bad)
	}
}

func TestParseBoolString(t *testing.T) {
	for _, s := range []string{"yes", "TRUE", "1"} {
		v, err := ParseBoolString(s)
		require.NoError(t, err)
		assert.True(t, v)
	}
	for _, s := range []string{"no", "False", "0"} {
		v, err := ParseBoolString(s)
		require.NoError(t, err)
		assert.False(t, v)
	}
	_, err := ParseBoolString("maybe")
	assert.Error(t, err)
}

func TestComponentMatches(t *testing.T) {
	c := Component{Name: "api", Paths: []string{"api/", "services/api"}}
	assert.True(t, c.Matches("api/handlers.go"))
	assert.True(t, c.Matches("services/api/x.go"))
	assert.False(t, c.Matches("web/api/x.go"))
}
