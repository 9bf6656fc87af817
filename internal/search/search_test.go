package search

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/facebookgo/clock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vanboompow/efb-212-sub001/internal/model"
)

func TestDebouncer_RunsAfterDelay(t *testing.T) {
	mock := clock.NewMock()
	d := NewDebouncer(mock, 200*time.Millisecond)

	var runs atomic.Int32
	d.Schedule(context.Background(), func(context.Context) { runs.Add(1) })

	mock.Add(199 * time.Millisecond)
	assert.Zero(t, runs.Load())

	mock.Add(time.Millisecond)
	assert.Eventually(t, func() bool { return runs.Load() == 1 }, time.Second, 5*time.Millisecond)
}

func TestDebouncer_SupersedeResetsDelay(t *testing.T) {
	mock := clock.NewMock()
	d := NewDebouncer(mock, 200*time.Millisecond)

	var mu sync.Mutex
	var got []string
	record := func(s string) func(context.Context) {
		return func(context.Context) {
			mu.Lock()
			got = append(got, s)
			mu.Unlock()
		}
	}

	d.Schedule(context.Background(), record("k"))
	mock.Add(150 * time.Millisecond)
	d.Schedule(context.Background(), record("ks"))
	mock.Add(150 * time.Millisecond)
	d.Schedule(context.Background(), record("ksq"))
	mock.Add(200 * time.Millisecond)

	assert.Eventually(t, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return len(got) == 1
	}, time.Second, 5*time.Millisecond)

	mock.Add(time.Second)
	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, []string{"ksq"}, got)
}

func TestDebouncer_SupersedeCancelsRunning(t *testing.T) {
	mock := clock.NewMock()
	d := NewDebouncer(mock, 100*time.Millisecond)

	started := make(chan struct{})
	cancelled := make(chan struct{})
	d.Schedule(context.Background(), func(ctx context.Context) {
		close(started)
		<-ctx.Done()
		close(cancelled)
	})
	go mock.Add(100 * time.Millisecond)
	<-started

	d.Schedule(context.Background(), func(context.Context) {})
	select {
	case <-cancelled:
	case <-time.After(time.Second):
		t.Fatal("running operation was not cancelled")
	}
}

func TestDebouncer_Stop(t *testing.T) {
	mock := clock.NewMock()
	d := NewDebouncer(mock, 100*time.Millisecond)

	var runs atomic.Int32
	d.Schedule(context.Background(), func(context.Context) { runs.Add(1) })
	d.Stop()
	mock.Add(time.Second)
	assert.Zero(t, runs.Load())
}

func TestDebouncer_ParentCancelled(t *testing.T) {
	mock := clock.NewMock()
	d := NewDebouncer(mock, 100*time.Millisecond)

	ctx, cancel := context.WithCancel(context.Background())
	var runs atomic.Int32
	d.Schedule(ctx, func(context.Context) { runs.Add(1) })
	cancel()
	mock.Add(time.Second)
	assert.Zero(t, runs.Load())
}

type fakeSource struct {
	mu      sync.Mutex
	queries []string
	err     error
}

func (f *fakeSource) SearchAirports(_ context.Context, q string, limit int) ([]model.Airport, error) {
	f.mu.Lock()
	f.queries = append(f.queries, q)
	f.mu.Unlock()
	if f.err != nil {
		return nil, f.err
	}
	return []model.Airport{{ICAO: "KSQL", Name: "San Carlos"}}, nil
}

type result struct {
	q        string
	airports []model.Airport
	err      error
}

func collector() (Callback, <-chan result) {
	ch := make(chan result, 8)
	return func(q string, a []model.Airport, err error) { ch <- result{q, a, err} }, ch
}

func TestAirportSearch_OnlyLatestQueryRuns(t *testing.T) {
	mock := clock.NewMock()
	src := &fakeSource{}
	s := NewAirportSearch(src, mock, 0)
	require.Equal(t, DefaultDelay, s.deb.Delay())

	cb, results := collector()
	s.Query(context.Background(), "s", 10, cb)
	s.Query(context.Background(), "sa", 10, cb)
	s.Query(context.Background(), " san ", 10, cb)
	mock.Add(DefaultDelay)

	select {
	case r := <-results:
		assert.Equal(t, "san", r.q)
		require.NoError(t, r.err)
		require.Len(t, r.airports, 1)
		assert.Equal(t, "KSQL", r.airports[0].ICAO)
	case <-time.After(time.Second):
		t.Fatal("no result")
	}

	src.mu.Lock()
	defer src.mu.Unlock()
	assert.Equal(t, []string{"san"}, src.queries)
}

func TestAirportSearch_BlankQuery(t *testing.T) {
	mock := clock.NewMock()
	src := &fakeSource{}
	s := NewAirportSearch(src, mock, 50*time.Millisecond)

	cb, results := collector()
	s.Query(context.Background(), "kp", 10, cb)
	s.Query(context.Background(), "   ", 10, cb)

	r := <-results
	assert.Empty(t, r.q)
	assert.Nil(t, r.airports)
	assert.NoError(t, r.err)

	mock.Add(time.Second)
	assert.Empty(t, results)
	assert.Empty(t, src.queries)
}

func TestAirportSearch_ErrorReported(t *testing.T) {
	mock := clock.NewMock()
	boom := errors.New("disk gone")
	s := NewAirportSearch(&fakeSource{err: boom}, mock, 50*time.Millisecond)

	cb, results := collector()
	s.Query(context.Background(), "kp", 10, cb)
	mock.Add(50 * time.Millisecond)

	select {
	case r := <-results:
		assert.ErrorIs(t, r.err, boom)
	case <-time.After(time.Second):
		t.Fatal("no result")
	}
}

func TestAirportSearch_Close(t *testing.T) {
	mock := clock.NewMock()
	src := &fakeSource{}
	s := NewAirportSearch(src, mock, 50*time.Millisecond)

	cb, results := collector()
	s.Query(context.Background(), "kp", 10, cb)
	s.Close()
	mock.Add(time.Second)
	assert.Empty(t, results)
}
