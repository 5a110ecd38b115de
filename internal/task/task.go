// Package task implements indiseek's Task Manager (spec.md §4.6): a
// single-writer job queue for indexing/sync operations with progress
// fan-out to subscribers, grounded on the teacher's Actor progress-pubsub
// shape (progressSubs map + non-blocking publish) found in the indexer
// daemon actor referenced by the example pack.
package task

import (
	"context"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"github.com/breeze4/indiseek/internal/ierrors"
	"github.com/breeze4/indiseek/pkg/models"
)

// maxEventRing bounds how many progress events a completed task retains
// for late subscribers that only ever poll GetTask.
const maxEventRing = 500

// subscriberBuffer is the per-subscriber channel capacity; a subscriber
// whose channel is still full on publish is dropped rather than blocking
// the worker (spec.md §5 Backpressure).
const subscriberBuffer = 64

// Event is one message delivered to a progress subscriber: either a
// progress tick, or a terminal completion/failure.
type Event struct {
	Progress *models.ProgressEvent
	Done     bool
	Error    string
	Result   any
}

// Func is the work a submitted task performs. It must itself honor
// ctx cancellation; the Task Manager does not support cancellation of a
// running task in this version (spec.md §4.6).
type Func func(ctx context.Context, progress func(models.ProgressEvent)) (any, error)

// submission is one Submit call's work, handed to the single worker
// goroutine over a depth-1 channel.
type submission struct {
	ctx    context.Context
	taskID string
	fn     Func
}

// Manager runs at most one task at a time, on a single worker goroutine
// started once at construction, and fans task progress out to any
// number of subscribers.
type Manager struct {
	mu      sync.Mutex
	tasks   map[string]*models.TaskRecord
	subs    map[string]map[string]chan Event
	running atomic.Bool
	work    chan submission
}

func NewManager() *Manager {
	m := &Manager{
		tasks: make(map[string]*models.TaskRecord),
		subs:  make(map[string]map[string]chan Event),
		work:  make(chan submission, 1),
	}
	go m.worker()
	return m
}

func (m *Manager) worker() {
	for sub := range m.work {
		m.run(sub.ctx, sub.taskID, sub.fn)
	}
}

// Submit hands name to the worker goroutine if no other task is
// currently running, and returns its record immediately in status
// "running". A second submission while one is in flight fails with
// Conflict — decided synchronously against the running flag, so the
// caller never blocks on the worker's depth-1 queue.
func (m *Manager) Submit(ctx context.Context, name string, fn Func) (*models.TaskRecord, error) {
	if !m.running.CompareAndSwap(false, true) {
		return nil, ierrors.Conflictf("a task is already running")
	}

	now := time.Now().UTC()
	record := &models.TaskRecord{
		ID:        uuid.NewString(),
		Name:      name,
		Status:    models.TaskRunning,
		CreatedAt: now,
		UpdatedAt: now,
	}
	m.mu.Lock()
	m.tasks[record.ID] = record
	m.mu.Unlock()

	m.work <- submission{ctx: ctx, taskID: record.ID, fn: fn}
	return record, nil
}

func (m *Manager) run(ctx context.Context, taskID string, fn Func) {
	result, err := fn(ctx, func(ev models.ProgressEvent) { m.recordProgress(taskID, ev) })

	m.mu.Lock()
	record := m.tasks[taskID]
	record.UpdatedAt = time.Now().UTC()
	if err != nil {
		record.Status = models.TaskFailed
		record.Error = err.Error()
	} else {
		record.Status = models.TaskCompleted
		record.Result = result
	}
	m.running.Store(false)
	m.mu.Unlock()

	if err != nil {
		m.publish(taskID, Event{Done: true, Error: err.Error()})
	} else {
		m.publish(taskID, Event{Done: true, Result: result})
	}
}

func (m *Manager) recordProgress(taskID string, ev models.ProgressEvent) {
	m.mu.Lock()
	if record, ok := m.tasks[taskID]; ok {
		record.Events = append(record.Events, ev)
		if len(record.Events) > maxEventRing {
			record.Events = record.Events[len(record.Events)-maxEventRing:]
		}
		record.UpdatedAt = time.Now().UTC()
	}
	m.mu.Unlock()

	m.publish(taskID, Event{Progress: &ev})
}

// publish fans ev out to every current subscriber of taskID without
// blocking; a subscriber whose buffer is still full is dropped entirely
// rather than skipping just this one event, so a slow consumer never
// silently falls behind without noticing.
func (m *Manager) publish(taskID string, ev Event) {
	m.mu.Lock()
	subs := m.subs[taskID]
	var stale []string
	for subID, ch := range subs {
		select {
		case ch <- ev:
		default:
			close(ch)
			stale = append(stale, subID)
		}
	}
	for _, subID := range stale {
		delete(subs, subID)
	}
	m.mu.Unlock()
}

// Subscribe registers a new channel for taskID's events, identified by
// subID so the caller can later Unsubscribe the same one. Returns nil if
// taskID is unknown.
func (m *Manager) Subscribe(taskID, subID string) chan Event {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.tasks[taskID]; !ok {
		return nil
	}
	if m.subs[taskID] == nil {
		m.subs[taskID] = make(map[string]chan Event)
	}
	ch := make(chan Event, subscriberBuffer)
	m.subs[taskID][subID] = ch
	return ch
}

// Unsubscribe removes and closes subID's channel for taskID. Safe to call
// more than once.
func (m *Manager) Unsubscribe(taskID, subID string) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if subs, ok := m.subs[taskID]; ok {
		if ch, ok := subs[subID]; ok {
			close(ch)
			delete(subs, subID)
		}
	}
}

// GetTask returns a snapshot of taskID's current record, or NotFound.
func (m *Manager) GetTask(taskID string) (*models.TaskRecord, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	record, ok := m.tasks[taskID]
	if !ok {
		return nil, ierrors.NotFoundf("task %q not found", taskID)
	}
	clone := *record
	clone.Events = append([]models.ProgressEvent(nil), record.Events...)
	return &clone, nil
}

// ListTasks returns a snapshot of every known task, most recently created
// first.
func (m *Manager) ListTasks() []*models.TaskRecord {
	m.mu.Lock()
	defer m.mu.Unlock()

	out := make([]*models.TaskRecord, 0, len(m.tasks))
	for _, record := range m.tasks {
		clone := *record
		clone.Events = append([]models.ProgressEvent(nil), record.Events...)
		out = append(out, &clone)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out
}

// IsRunning reports whether a task is currently in flight.
func (m *Manager) IsRunning() bool {
	return m.running.Load()
}
