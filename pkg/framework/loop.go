package framework

import (
	"context"
	"time"

	"github.com/golang/glog"
)

// DefaultInterval is the iteration interval when Loop.Interval is unset.
const DefaultInterval = 100 * time.Millisecond

// Loop runs controllers periodically, together with background runnables.
type Loop struct {
	Interval time.Duration

	controllers []Controller
	runners     []Runnable
	wakeUpCh    chan struct{}
}

type loopIteration struct {
	loop *Loop
	ctx  context.Context
	time time.Time
}

// NewLoop creates a Loop.
func NewLoop() *Loop {
	return &Loop{Interval: DefaultInterval, wakeUpCh: make(chan struct{}, 1)}
}

// AddController registers controllers in the order to be invoked.
// Controllers which are also Runnable are started with the loop.
func (l *Loop) AddController(ctls ...Controller) *Loop {
	l.controllers = append(l.controllers, ctls...)
	for _, ctl := range ctls {
		if runner, ok := ctl.(Runnable); ok {
			l.runners = append(l.runners, runner)
		}
	}
	return l
}

// AddRunnable adds Runnable implementions.
func (l *Loop) AddRunnable(runnables ...Runnable) *Loop {
	l.runners = append(l.runners, runnables...)
	return l
}

// TriggerNext wakes up the loop for an immediate iteration.
func (l *Loop) TriggerNext() {
	select {
	case l.wakeUpCh <- struct{}{}:
	default:
	}
}

// Run implements Runnable.
// It returns when the context is canceled or any runnable fails.
func (l *Loop) Run(ctx context.Context) error {
	if l.wakeUpCh == nil {
		l.wakeUpCh = make(chan struct{}, 1)
	}
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	runner := NewRunnerWith(ctx)
	runner.Go(l.runners...)
	failCh := make(chan error, 1)
	if len(l.runners) > 0 {
		go func() { failCh <- runner.WaitFirst() }()
	}

	interval := l.Interval
	if interval <= 0 {
		interval = DefaultInterval
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			cancel()
			runner.Wait()
			return ctx.Err()
		case err := <-failCh:
			cancel()
			runner.Wait()
			return err
		case <-ticker.C:
			l.runIteration(ctx)
		case <-l.wakeUpCh:
			l.runIteration(ctx)
		}
	}
}

func (l *Loop) runIteration(ctx context.Context) {
	iter := &loopIteration{loop: l, ctx: ctx, time: time.Now()}
	for _, ctl := range l.controllers {
		if err := ctl.Control(iter); err != nil {
			glog.Errorf("controller error: %v", err)
		}
	}
}

func (t *loopIteration) Context() context.Context { return t.ctx }
func (t *loopIteration) Time() time.Time          { return t.time }
func (t *loopIteration) TriggerNext()             { t.loop.TriggerNext() }
