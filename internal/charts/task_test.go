package charts

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/vanboompow/efb-212-sub001/internal/model"
)

func TestTaskEmit(t *testing.T) {
	task := newTask("SEA", func() {})
	rec := &recorder{}
	task.observe(rec.observe)

	task.emit(model.DownloadDownloading, 0.5, nil)
	task.emit(model.DownloadDownloading, 0.25, nil) // clamped up, coalesced
	task.emit(model.DownloadDownloading, 7, nil)
	task.emit(model.DownloadFailed, 0, errors.New("boom"))
	task.emit(model.DownloadSucceeded, 1, nil) // dropped after terminal

	updates := rec.check(t)
	assert.Len(t, updates, 4)
	assert.InDelta(t, 1.0, updates[2].Progress, 0)
	assert.Equal(t, model.DownloadFailed, task.State())
	assert.EqualError(t, task.Err(), "boom")

	select {
	case <-task.Done():
	default:
		t.Fatal("done not closed")
	}
}

func TestTaskObserveAfterTerminal(t *testing.T) {
	task := newTask("SEA", func() {})
	task.emit(model.DownloadSucceeded, 1, nil)

	rec := &recorder{}
	task.observe(rec.observe)
	updates := rec.check(t)
	assert.Len(t, updates, 1)
	assert.Equal(t, model.DownloadSucceeded, updates[0].State)
}
