// Package scheduler runs crawl lanes on fixed intervals and tracks their
// state.
package scheduler

import (
	"context"
	"errors"
	"io"
	"os"
	"sync"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/tangocommunity/crawler/internal/model"
	"github.com/tangocommunity/crawler/internal/monitoring"
	"github.com/tangocommunity/crawler/internal/pipeline"
)

// Task schedules one lane.
type Task struct {
	Lane     pipeline.Lane
	Interval time.Duration
}

// LaneGauge is told when lanes start and stop. monitoring.Metrics
// implements it.
type LaneGauge interface {
	SetLaneRunning(lane model.Lane, running bool)
}

// CloseFunc releases a shared resource during Shutdown.
type CloseFunc func(ctx context.Context) error

// Options tunes a Scheduler.
type Options struct {
	// Stagger spaces the initial run of each task: task i first runs after
	// i*Stagger.
	Stagger time.Duration
	// Dashboard is the interval between periodic dashboards. Zero disables
	// the periodic render; dashboards still follow each run.
	Dashboard time.Duration
	// Out receives dashboards. Defaults to stdout.
	Out   io.Writer
	Gauge LaneGauge
	// Closers run concurrently once lanes have drained.
	Closers []CloseFunc
}

type task struct {
	lane     pipeline.Lane
	interval time.Duration
	entry    cron.EntryID
	state    model.LaneState
}

// Scheduler runs lanes independently. A lane whose previous run is still in
// progress skips the tick.
type Scheduler struct {
	opts Options
	cron *cron.Cron
	log  *zap.Logger

	// ctx is the parent of every lane run; Shutdown cancels it.
	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	mu    sync.Mutex
	tasks []*task
	index map[model.Lane]*task

	shutdownOnce sync.Once
	shutdownErr  error
}

// New builds a Scheduler for tasks. Nothing runs until Start.
func New(tasks []Task, opts Options) *Scheduler {
	if opts.Out == nil {
		opts.Out = os.Stdout
	}
	ctx, cancel := context.WithCancel(context.Background())
	s := &Scheduler{
		opts:   opts,
		cron:   cron.New(cron.WithChain(cron.Recover(cron.DefaultLogger))),
		log:    zap.L().With(zap.String("component", "scheduler")),
		ctx:    ctx,
		cancel: cancel,
		index:  make(map[model.Lane]*task),
	}
	for _, t := range tasks {
		s.add(t.Lane, t.Interval)
	}
	return s
}

func (s *Scheduler) add(lane pipeline.Lane, interval time.Duration) *task {
	s.mu.Lock()
	defer s.mu.Unlock()
	if t, ok := s.index[lane.Name()]; ok {
		return t
	}
	t := &task{
		lane:     lane,
		interval: interval,
		state:    model.LaneState{Lane: lane.Name(), Status: model.TaskPending, Interval: interval},
	}
	s.tasks = append(s.tasks, t)
	s.index[lane.Name()] = t
	return t
}

// Start registers every task with cron and launches the staggered initial
// runs. It returns immediately.
func (s *Scheduler) Start() error {
	s.mu.Lock()
	tasks := append([]*task(nil), s.tasks...)
	s.mu.Unlock()

	for i, t := range tasks {
		if t.interval < time.Second {
			return eris.Errorf("scheduler: lane %s interval %s is below one second", t.state.Lane, t.interval)
		}
		id := s.cron.Schedule(cron.Every(t.interval), cron.FuncJob(func() { s.execute(s.ctx, t) }))
		s.mu.Lock()
		t.entry = id
		s.mu.Unlock()

		delay := time.Duration(i) * s.opts.Stagger
		s.wg.Add(1)
		go func() {
			defer s.wg.Done()
			timer := time.NewTimer(delay)
			defer timer.Stop()
			select {
			case <-s.ctx.Done():
				return
			case <-timer.C:
			}
			s.execute(s.ctx, t)
		}()
		s.log.Info("scheduler: lane scheduled",
			zap.String("lane", string(t.state.Lane)),
			zap.Duration("interval", t.interval),
			zap.Duration("first_run_in", delay),
		)
	}

	if s.opts.Dashboard > 0 {
		s.cron.Schedule(cron.Every(s.opts.Dashboard), cron.FuncJob(s.RenderDashboard))
	}
	s.cron.Start()
	return nil
}

// RunOnce runs lanes one after another and returns their summaries. Lanes
// that fail to start are logged and skipped; their errors are joined.
func (s *Scheduler) RunOnce(ctx context.Context, lanes ...pipeline.Lane) ([]*model.RunSummary, error) {
	var (
		summaries []*model.RunSummary
		errs      []error
	)
	for _, lane := range lanes {
		if ctx.Err() != nil {
			break
		}
		summary, err := s.execute(ctx, s.add(lane, 0))
		if err != nil {
			errs = append(errs, err)
			continue
		}
		if summary != nil {
			summaries = append(summaries, summary)
		}
	}
	if len(errs) > 0 {
		return summaries, eris.Wrap(errors.Join(errs...), "scheduler: run once")
	}
	return summaries, nil
}

// execute runs t once unless it is already running.
func (s *Scheduler) execute(ctx context.Context, t *task) (*model.RunSummary, error) {
	s.mu.Lock()
	if t.state.Status == model.TaskRunning {
		s.mu.Unlock()
		s.log.Info("scheduler: lane still running, skipping tick", zap.String("lane", string(t.state.Lane)))
		return nil, nil
	}
	start := time.Now()
	t.state.Status = model.TaskRunning
	t.state.LastRunAt = &start
	t.state.RunCount++
	s.mu.Unlock()

	s.wg.Add(1)
	defer s.wg.Done()
	if s.opts.Gauge != nil {
		s.opts.Gauge.SetLaneRunning(t.state.Lane, true)
		defer s.opts.Gauge.SetLaneRunning(t.state.Lane, false)
	}

	log := s.log.With(zap.String("lane", string(t.state.Lane)))
	log.Info("scheduler: lane run starting")

	summary, err := s.runLane(ctx, t.lane)

	last := model.TaskOK
	var lastErr string
	switch {
	case err != nil:
		last, lastErr = model.TaskError, err.Error()
		log.Error("scheduler: lane run failed", zap.Error(err))
	case summary != nil && summary.AllFailed():
		last, lastErr = model.TaskError, "every source failed"
		log.Warn("scheduler: every source in lane failed", zap.Int("sources", summary.Sources))
	}

	s.mu.Lock()
	t.state.Status = model.TaskPending
	t.state.LastStatus = last
	t.state.LastError = lastErr
	t.state.LastDuration = time.Since(start)
	s.mu.Unlock()

	log.Info("scheduler: lane run finished",
		zap.String("status", string(last)), zap.Duration("duration", time.Since(start)))
	s.RenderDashboard()
	return summary, err
}

func (s *Scheduler) runLane(ctx context.Context, lane pipeline.Lane) (summary *model.RunSummary, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = eris.Errorf("scheduler: lane %s panicked: %v", lane.Name(), r)
		}
	}()
	return lane.Run(ctx)
}

// Snapshot returns the state of every lane in registration order.
func (s *Scheduler) Snapshot() []model.LaneState {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]model.LaneState, 0, len(s.tasks))
	for _, t := range s.tasks {
		st := t.state
		if t.entry != 0 {
			if next := s.cron.Entry(t.entry).Next; !next.IsZero() {
				st.NextRunAt = &next
			}
		}
		out = append(out, st)
	}
	return out
}

// RenderDashboard writes the lane table to the configured output.
func (s *Scheduler) RenderDashboard() {
	monitoring.RenderDashboard(s.opts.Out, s.Snapshot())
}

// Shutdown stops scheduling, cancels staggered starts and in-flight lanes,
// waits for them to drain until ctx is done, then closes resources. Repeat
// calls return the first result.
func (s *Scheduler) Shutdown(ctx context.Context) error {
	s.shutdownOnce.Do(func() {
		s.log.Info("scheduler: shutting down")
		stopped := s.cron.Stop()
		s.cancel()

		drained := make(chan struct{})
		go func() {
			<-stopped.Done()
			s.wg.Wait()
			close(drained)
		}()
		select {
		case <-drained:
		case <-ctx.Done():
			s.log.Warn("scheduler: lanes did not drain before deadline")
		}

		g, gctx := errgroup.WithContext(ctx)
		for _, closeFn := range s.opts.Closers {
			g.Go(func() error { return closeFn(gctx) })
		}
		if err := g.Wait(); err != nil {
			s.shutdownErr = eris.Wrap(err, "scheduler: close resources")
		}
		s.log.Info("scheduler: stopped")
	})
	return s.shutdownErr
}
