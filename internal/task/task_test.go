package task

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/breeze4/indiseek/internal/ierrors"
	"github.com/breeze4/indiseek/pkg/models"
)

func waitFor(t *testing.T, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatal("condition never became true")
}

func TestSubmit_RunsToCompletion(t *testing.T) {
	m := NewManager()

	record, err := m.Submit(context.Background(), "index", func(ctx context.Context, progress func(models.ProgressEvent)) (any, error) {
		progress(models.ProgressEvent{Stage: "parse", Current: 1, Total: 2})
		progress(models.ProgressEvent{Stage: "parse", Current: 2, Total: 2})
		return map[string]int{"files": 2}, nil
	})
	require.NoError(t, err)
	assert.Equal(t, models.TaskRunning, record.Status)

	waitFor(t, func() bool {
		got, _ := m.GetTask(record.ID)
		return got.Status == models.TaskCompleted
	})

	got, err := m.GetTask(record.ID)
	require.NoError(t, err)
	assert.Equal(t, models.TaskCompleted, got.Status)
	assert.Len(t, got.Events, 2)
	assert.False(t, m.IsRunning())
}

func TestSubmit_SecondWhileRunningFailsConflict(t *testing.T) {
	m := NewManager()
	release := make(chan struct{})

	_, err := m.Submit(context.Background(), "index", func(ctx context.Context, progress func(models.ProgressEvent)) (any, error) {
		<-release
		return nil, nil
	})
	require.NoError(t, err)

	_, err = m.Submit(context.Background(), "sync", func(ctx context.Context, progress func(models.ProgressEvent)) (any, error) {
		return nil, nil
	})
	require.Error(t, err)
	assert.True(t, ierrors.OfKind(err, ierrors.Conflict))

	close(release)
}

func TestSubmit_FailureRecordsError(t *testing.T) {
	m := NewManager()

	record, err := m.Submit(context.Background(), "index", func(ctx context.Context, progress func(models.ProgressEvent)) (any, error) {
		return nil, errors.New("boom")
	})
	require.NoError(t, err)

	waitFor(t, func() bool {
		got, _ := m.GetTask(record.ID)
		return got.Status == models.TaskFailed
	})

	got, err := m.GetTask(record.ID)
	require.NoError(t, err)
	assert.Equal(t, "boom", got.Error)
}

func TestSubscribe_ReceivesProgressAndTerminalEvent(t *testing.T) {
	m := NewManager()
	started := make(chan struct{})

	record, err := m.Submit(context.Background(), "index", func(ctx context.Context, progress func(models.ProgressEvent)) (any, error) {
		<-started
		progress(models.ProgressEvent{Stage: "parse", Current: 1, Total: 1})
		return "done", nil
	})
	require.NoError(t, err)

	ch := m.Subscribe(record.ID, "sub-1")
	require.NotNil(t, ch)
	close(started)

	var sawProgress, sawDone bool
	deadline := time.After(2 * time.Second)
	for !sawDone {
		select {
		case ev := <-ch:
			if ev.Progress != nil {
				sawProgress = true
			}
			if ev.Done {
				sawDone = true
				assert.Equal(t, "done", ev.Result)
			}
		case <-deadline:
			t.Fatal("timed out waiting for terminal event")
		}
	}
	assert.True(t, sawProgress)

	m.Unsubscribe(record.ID, "sub-1")
}

func TestSubscribe_UnknownTaskReturnsNil(t *testing.T) {
	m := NewManager()
	assert.Nil(t, m.Subscribe("does-not-exist", "sub-1"))
}

func TestGetTask_UnknownReturnsNotFound(t *testing.T) {
	m := NewManager()
	_, err := m.GetTask("does-not-exist")
	require.Error(t, err)
	assert.True(t, ierrors.OfKind(err, ierrors.NotFound))
}
