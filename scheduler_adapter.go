package zrtp

import (
	"sync"

	"github.com/lanikai/zrtp/internal/scheduler"
)

// defaultScheduler implements the public Scheduler interface over
// internal/scheduler.Scheduler, keeping one internal Scheduler per
// Stream (matching that package's "one Scheduler per stream" lock
// hierarchy) and a table from the RetryTask the caller handed us to the
// internal/scheduler.Task it turned into, so CancelCallLater/
// WaitCallLater can find it again.
type streamSchedule struct {
	sched  *scheduler.Scheduler
	byTask map[*RetryTask]*scheduler.Task
}

type defaultScheduler struct {
	mu        sync.Mutex
	perStream map[*Stream]*streamSchedule
}

// NewDefaultScheduler returns the engine's built-in Scheduler, suitable
// for hosts that don't want to supply their own event loop integration.
func NewDefaultScheduler() Scheduler {
	return &defaultScheduler{perStream: make(map[*Stream]*streamSchedule)}
}

func (d *defaultScheduler) entryFor(stream *Stream) *streamSchedule {
	d.mu.Lock()
	defer d.mu.Unlock()

	e, ok := d.perStream[stream]
	if !ok {
		e = &streamSchedule{sched: scheduler.New(), byTask: make(map[*RetryTask]*scheduler.Task)}
		d.perStream[stream] = e
	}
	return e
}

func toInternalTiming(t RetryTiming) scheduler.Timing {
	return scheduler.Timing{Start: t.Start, Cap: t.Cap, MaxRetries: t.MaxRetries}
}

func (d *defaultScheduler) CallLater(stream *Stream, task *RetryTask) {
	e := d.entryFor(stream)
	it := e.sched.CallLater(toInternalTiming(task.Timing), func(retry int) bool {
		return task.Fire(retry)
	})

	d.mu.Lock()
	e.byTask[task] = it
	d.mu.Unlock()
}

func (d *defaultScheduler) CancelCallLater(stream *Stream, task *RetryTask) {
	e := d.entryFor(stream)

	if task == nil {
		e.sched.CancelAll()
		d.mu.Lock()
		e.byTask = make(map[*RetryTask]*scheduler.Task)
		d.mu.Unlock()
		return
	}

	d.mu.Lock()
	it, ok := e.byTask[task]
	delete(e.byTask, task)
	d.mu.Unlock()

	if ok {
		e.sched.CancelCallLater(it)
	}
}

func (d *defaultScheduler) WaitCallLater(stream *Stream) {
	e := d.entryFor(stream)

	d.mu.Lock()
	tasks := make([]*scheduler.Task, 0, len(e.byTask))
	for _, it := range e.byTask {
		tasks = append(tasks, it)
	}
	d.mu.Unlock()

	for _, it := range tasks {
		it.WaitCallLater()
	}
}
