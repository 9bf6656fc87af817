package charts

import (
	"context"
	"sync"

	"github.com/google/uuid"

	"github.com/vanboompow/efb-212-sub001/internal/model"
)

// Update is one progress notification for a download task.
type Update struct {
	TaskID   string              `json:"task_id"`
	RegionID string              `json:"region_id"`
	Progress float64             `json:"progress"`
	State    model.DownloadState `json:"state"`
	Err      error               `json:"-"`
}

// Observer receives task updates in order. Progress never decreases and
// exactly one terminal update is delivered.
type Observer func(Update)

// Task is an in-flight or finished region download.
type Task struct {
	ID       string
	RegionID string

	cancel context.CancelFunc
	done   chan struct{}

	// emitMu orders observer calls; mu guards the fields below.
	emitMu    sync.Mutex
	mu        sync.Mutex
	state     model.DownloadState
	progress  float64
	err       error
	observers []Observer
}

func newTask(regionID string, cancel context.CancelFunc) *Task {
	return &Task{
		ID:       uuid.NewString(),
		RegionID: regionID,
		cancel:   cancel,
		done:     make(chan struct{}),
		state:    model.DownloadQueued,
	}
}

func (t *Task) snapshotLocked() Update {
	return Update{TaskID: t.ID, RegionID: t.RegionID, Progress: t.progress, State: t.state, Err: t.err}
}

// Snapshot returns the current state as an Update.
func (t *Task) Snapshot() Update {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.snapshotLocked()
}

// State returns the current state.
func (t *Task) State() model.DownloadState {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.state
}

// Progress returns the completed fraction in [0, 1].
func (t *Task) Progress() float64 {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.progress
}

// Err returns the failure cause once the task has failed or been cancelled.
func (t *Task) Err() error {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.err
}

// Done is closed once the task reaches a terminal state.
func (t *Task) Done() <-chan struct{} {
	return t.done
}

// Wait blocks until the task finishes or ctx is done, returning the
// task's error.
func (t *Task) Wait(ctx context.Context) error {
	select {
	case <-t.done:
		return t.Err()
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Cancel requests cancellation. The task ends in DownloadCancelled unless
// it already finished.
func (t *Task) Cancel() {
	t.cancel()
}

// observe registers obs and immediately delivers the current state to it.
func (t *Task) observe(obs Observer) {
	if obs == nil {
		return
	}
	t.emitMu.Lock()
	defer t.emitMu.Unlock()

	t.mu.Lock()
	t.observers = append(t.observers, obs)
	snap := t.snapshotLocked()
	t.mu.Unlock()

	obs(snap)
}

// emit applies a transition and fans it out. Progress is clamped to [0, 1]
// and never goes backwards; transitions after a terminal state are dropped.
func (t *Task) emit(state model.DownloadState, progress float64, err error) {
	t.emitMu.Lock()
	defer t.emitMu.Unlock()

	t.mu.Lock()
	if t.state.Terminal() {
		t.mu.Unlock()
		return
	}
	progress = min(max(progress, 0), 1)
	if progress < t.progress {
		progress = t.progress
	}
	if state == t.state && progress == t.progress && !state.Terminal() {
		t.mu.Unlock()
		return
	}
	t.state = state
	t.progress = progress
	t.err = err
	snap := t.snapshotLocked()
	observers := append([]Observer(nil), t.observers...)
	t.mu.Unlock()

	for _, obs := range observers {
		obs(snap)
	}
	if state.Terminal() {
		close(t.done)
	}
}
