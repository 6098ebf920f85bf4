package scheduler

import (
	"bytes"
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tangocommunity/crawler/internal/model"
)

type fakeLane struct {
	name    model.Lane
	runs    atomic.Int32
	err     error
	failAll bool
	panics  bool
	block   chan struct{}
	started chan struct{}
	order   *[]model.Lane
	mu      *sync.Mutex
}

func (f *fakeLane) Name() model.Lane { return f.name }

func (f *fakeLane) Run(ctx context.Context) (*model.RunSummary, error) {
	f.runs.Add(1)
	if f.order != nil {
		f.mu.Lock()
		*f.order = append(*f.order, f.name)
		f.mu.Unlock()
	}
	if f.started != nil {
		f.started <- struct{}{}
	}
	if f.block != nil {
		select {
		case <-f.block:
		case <-ctx.Done():
		}
	}
	if f.panics {
		panic("lane exploded")
	}
	if f.err != nil {
		return nil, f.err
	}
	s := model.NewRunSummary(f.name)
	s.Add(model.CrawlResult{Lane: f.name, Failed: f.failAll})
	return s, nil
}

type gaugeSpy struct {
	mu    sync.Mutex
	calls []bool
}

func (g *gaugeSpy) SetLaneRunning(_ model.Lane, running bool) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.calls = append(g.calls, running)
}

func quiet() Options { return Options{Out: &bytes.Buffer{}} }

func stateOf(t *testing.T, s *Scheduler, lane model.Lane) model.LaneState {
	t.Helper()
	for _, st := range s.Snapshot() {
		if st.Lane == lane {
			return st
		}
	}
	t.Fatalf("lane %s not in snapshot", lane)
	return model.LaneState{}
}

func TestRunOnce_Sequential(t *testing.T) {
	var order []model.Lane
	mu := &sync.Mutex{}
	events := &fakeLane{name: model.LaneEvents, order: &order, mu: mu}
	products := &fakeLane{name: model.LaneProducts, order: &order, mu: mu}
	hotels := &fakeLane{name: model.LaneHotels, order: &order, mu: mu}
	gauge := &gaugeSpy{}
	opts := quiet()
	opts.Gauge = gauge
	s := New(nil, opts)

	summaries, err := s.RunOnce(context.Background(), events, products, hotels)
	require.NoError(t, err)

	assert.Len(t, summaries, 3)
	assert.Equal(t, []model.Lane{model.LaneEvents, model.LaneProducts, model.LaneHotels}, order)
	assert.Equal(t, []bool{true, false, true, false, true, false}, gauge.calls)

	st := stateOf(t, s, model.LaneEvents)
	assert.Equal(t, model.TaskPending, st.Status)
	assert.Equal(t, model.TaskOK, st.LastStatus)
	assert.Equal(t, 1, st.RunCount)
	assert.NotNil(t, st.LastRunAt)
}

func TestRunOnce_SetupErrorContinues(t *testing.T) {
	events := &fakeLane{name: model.LaneEvents, err: errors.New("list sources: connection refused")}
	products := &fakeLane{name: model.LaneProducts}
	s := New(nil, quiet())

	summaries, err := s.RunOnce(context.Background(), events, products)

	require.Error(t, err)
	assert.Contains(t, err.Error(), "connection refused")
	assert.Len(t, summaries, 1)
	assert.Equal(t, int32(1), products.runs.Load())
	st := stateOf(t, s, model.LaneEvents)
	assert.Equal(t, model.TaskError, st.LastStatus)
	assert.NotEmpty(t, st.LastError)
}

func TestRunOnce_AllSourcesFailedIsError(t *testing.T) {
	s := New(nil, quiet())
	_, err := s.RunOnce(context.Background(), &fakeLane{name: model.LaneHotels, failAll: true})
	require.NoError(t, err)
	assert.Equal(t, model.TaskError, stateOf(t, s, model.LaneHotels).LastStatus)
}

func TestRunOnce_PanicRecorded(t *testing.T) {
	s := New(nil, quiet())
	_, err := s.RunOnce(context.Background(), &fakeLane{name: model.LaneEvents, panics: true})
	require.Error(t, err)
	assert.Equal(t, model.TaskError, stateOf(t, s, model.LaneEvents).LastStatus)
}

func TestExecute_SkipsOverlappingRun(t *testing.T) {
	lane := &fakeLane{name: model.LaneEvents, block: make(chan struct{}), started: make(chan struct{}, 1)}
	s := New([]Task{{Lane: lane, Interval: time.Hour}}, quiet())
	tk := s.index[model.LaneEvents]

	done := make(chan struct{})
	go func() {
		defer close(done)
		_, _ = s.execute(context.Background(), tk)
	}()
	<-lane.started
	assert.Equal(t, model.TaskRunning, stateOf(t, s, model.LaneEvents).Status)

	summary, err := s.execute(context.Background(), tk)
	assert.NoError(t, err)
	assert.Nil(t, summary)

	close(lane.block)
	<-done
	assert.Equal(t, int32(1), lane.runs.Load())
	assert.Equal(t, 1, stateOf(t, s, model.LaneEvents).RunCount)
}

func TestStart_StaggeredInitialRuns(t *testing.T) {
	first := &fakeLane{name: model.LaneEvents}
	second := &fakeLane{name: model.LaneProducts}
	opts := quiet()
	opts.Stagger = time.Hour
	s := New([]Task{{Lane: first, Interval: time.Hour}, {Lane: second, Interval: time.Hour}}, opts)

	require.NoError(t, s.Start())
	assert.Eventually(t, func() bool { return first.runs.Load() == 1 }, time.Second, 10*time.Millisecond)

	require.NoError(t, s.Shutdown(context.Background()))
	assert.Zero(t, second.runs.Load())

	st := stateOf(t, s, model.LaneEvents)
	require.NotNil(t, st.NextRunAt)
	assert.Equal(t, time.Hour, st.Interval)
}

func TestStart_RejectsSubSecondInterval(t *testing.T) {
	s := New([]Task{{Lane: &fakeLane{name: model.LaneEvents}, Interval: time.Millisecond}}, quiet())
	assert.Error(t, s.Start())
}

func TestShutdown_CancelsRunningLaneAndClosesResources(t *testing.T) {
	lane := &fakeLane{name: model.LaneEvents, block: make(chan struct{}), started: make(chan struct{}, 1)}
	var closed atomic.Int32
	opts := quiet()
	opts.Closers = []CloseFunc{
		func(context.Context) error { closed.Add(1); return nil },
		func(context.Context) error { closed.Add(1); return nil },
	}
	s := New([]Task{{Lane: lane, Interval: time.Hour}}, opts)
	require.NoError(t, s.Start())
	<-lane.started

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	require.NoError(t, s.Shutdown(ctx))

	assert.Equal(t, int32(2), closed.Load())
	assert.Equal(t, model.TaskPending, stateOf(t, s, model.LaneEvents).Status)

	// Idempotent: no second close.
	require.NoError(t, s.Shutdown(ctx))
	assert.Equal(t, int32(2), closed.Load())
}

func TestShutdown_ReportsCloseError(t *testing.T) {
	opts := quiet()
	opts.Closers = []CloseFunc{func(context.Context) error { return errors.New("pool busy") }}
	s := New(nil, opts)

	err := s.Shutdown(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "pool busy")
	assert.Equal(t, err, s.Shutdown(context.Background()))
}

func TestRenderDashboardAfterRun(t *testing.T) {
	var out bytes.Buffer
	s := New(nil, Options{Out: &out})
	_, err := s.RunOnce(context.Background(), &fakeLane{name: model.LaneProducts})
	require.NoError(t, err)
	assert.Contains(t, out.String(), "products")
}
