package core

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type funcTask struct {
	name string
	fn   func(ctx context.Context) error
}

func (t funcTask) Execute(ctx context.Context) error { return t.fn(ctx) }
func (t funcTask) Name() string                      { return t.name }

func TestDispatcher_RunsTasks(t *testing.T) {
	logger, hook := test.NewNullLogger()
	d := NewDispatcher(2, 10, logger)
	d.Start(context.Background())

	var ran atomic.Int32
	for i := 0; i < 5; i++ {
		require.NoError(t, d.Submit(funcTask{name: "ok", fn: func(context.Context) error {
			ran.Add(1)
			return nil
		}}))
	}
	require.NoError(t, d.Submit(funcTask{name: "bad", fn: func(context.Context) error {
		return errors.New("boom")
	}}))
	require.NoError(t, d.Submit(funcTask{name: "panics", fn: func(context.Context) error {
		panic("unexpected")
	}}))
	d.Shutdown()

	assert.Equal(t, int32(5), ran.Load())
	processed, failed := d.Stats()
	assert.Equal(t, int64(7), processed)
	assert.Equal(t, int64(2), failed)

	var errorsLogged int
	for _, e := range hook.AllEntries() {
		assert.Equal(t, "dispatcher", e.Data["component"])
		if e.Level == logrus.ErrorLevel {
			errorsLogged++
		}
	}
	assert.Equal(t, 2, errorsLogged)
}

func TestDispatcher_SubmitAfterShutdown(t *testing.T) {
	d := NewDispatcher(1, 1, nil)
	d.Start(context.Background())
	d.Shutdown()
	d.Shutdown()

	err := d.Submit(funcTask{name: "late", fn: func(context.Context) error { return nil }})
	assert.ErrorIs(t, err, ErrDispatcherClosed)
}

func TestDispatcher_QueueFull(t *testing.T) {
	d := NewDispatcher(1, 1, nil)
	// Not started: the queue only drains once workers run.
	noop := funcTask{name: "noop", fn: func(context.Context) error { return nil }}
	require.NoError(t, d.Submit(noop))
	err := d.Submit(noop)
	assert.ErrorIs(t, err, ErrQueueFull)

	d.Start(context.Background())
	d.Shutdown()
	processed, _ := d.Stats()
	assert.Equal(t, int64(1), processed)
}

func TestInlineSubmitter(t *testing.T) {
	want := errors.New("failed")
	err := InlineSubmitter{}.Submit(funcTask{name: "x", fn: func(context.Context) error { return want }})
	assert.ErrorIs(t, err, want)
}
