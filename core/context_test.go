package core

import (
	"context"
	"sync"
	"testing"

	"github.com/covhub/covhub/schema"
	"github.com/stretchr/testify/assert"
)

// TestContextConcurrentAccess tests that context values can be safely accessed concurrently.
func TestContextConcurrentAccess(t *testing.T) {
	user := &schema.Owner{ID: 7, Username: "codecov"}
	ctx := WithRequestID(WithCurrentUser(context.Background(), user), "req-1")

	const numGoroutines = 50
	var wg sync.WaitGroup
	for i := range numGoroutines {
		wg.Add(1)
		go func(id int) {
			defer wg.Done()
			assert.Same(t, user, CurrentUser(ctx), "Goroutine %d: CurrentUser mismatch", id)
			assert.Equal(t, "req-1", RequestID(ctx), "Goroutine %d: RequestID mismatch", id)
		}(i)
	}
	wg.Wait()
}

func TestContextDefaults(t *testing.T) {
	ctx := context.Background()
	assert.Nil(t, CurrentUser(ctx))
	assert.Empty(t, RequestID(ctx))

	ctx = WithCurrentUser(ctx, nil)
	assert.Nil(t, CurrentUser(ctx))
}
