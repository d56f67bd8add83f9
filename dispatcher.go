package identity

import (
	"context"
	"sync"
	"time"
)

// Dispatcher is a bounded work queue for fire-and-forget side effects:
// email dispatch and event publication. Work enqueued here runs after the
// primary transaction has committed and can neither block nor fail it.
// When the queue is full the task is dropped and logged rather than making
// the caller wait.
type Dispatcher struct {
	tasks       chan dispatcherTask
	wg          sync.WaitGroup
	logger      Logger
	taskTimeout time.Duration

	mu     sync.Mutex
	closed bool
}

type dispatcherTask struct {
	name string
	run  func(ctx context.Context) error
}

// DefaultQueueSize bounds how many undelivered side effects can be pending.
const DefaultQueueSize = 64

// DefaultQueueWorkers is the number of goroutines draining the queue.
const DefaultQueueWorkers = 2

const defaultTaskTimeout = 10 * time.Second

// NewDispatcher starts a dispatcher with the given queue size and worker
// count. Zero or negative values fall back to the defaults.
func NewDispatcher(queueSize, workers int, logger Logger) *Dispatcher {
	if queueSize <= 0 {
		queueSize = DefaultQueueSize
	}
	if workers <= 0 {
		workers = DefaultQueueWorkers
	}
	if logger == nil {
		logger = defLogger{}
	}

	d := &Dispatcher{
		tasks:       make(chan dispatcherTask, queueSize),
		logger:      logger,
		taskTimeout: defaultTaskTimeout,
	}

	d.wg.Add(workers)
	for i := 0; i < workers; i++ {
		go d.worker()
	}

	return d
}

// Enqueue hands a task to the queue without blocking. A full queue drops
// the task; delivery is best-effort by design.
func (d *Dispatcher) Enqueue(name string, task func(ctx context.Context) error) {
	if task == nil {
		return
	}

	d.mu.Lock()
	if d.closed {
		d.mu.Unlock()
		d.logger.Warn("dispatcher closed, dropping task: %s", name)
		return
	}

	select {
	case d.tasks <- dispatcherTask{name: name, run: task}:
		d.mu.Unlock()
	default:
		d.mu.Unlock()
		d.logger.Warn("dispatcher queue full, dropping task: %s", name)
	}
}

// Close stops accepting tasks and waits for in-flight work to drain.
func (d *Dispatcher) Close() {
	d.mu.Lock()
	if d.closed {
		d.mu.Unlock()
		return
	}
	d.closed = true
	close(d.tasks)
	d.mu.Unlock()

	d.wg.Wait()
}

func (d *Dispatcher) worker() {
	defer d.wg.Done()

	for task := range d.tasks {
		d.execute(task)
	}
}

func (d *Dispatcher) execute(task dispatcherTask) {
	defer func() {
		if r := recover(); r != nil {
			d.logger.Error("dispatcher task panicked: %s: %v", task.name, r)
		}
	}()

	ctx, cancel := context.WithTimeout(context.Background(), d.taskTimeout)
	defer cancel()

	if err := task.run(ctx); err != nil {
		d.logger.Warn("dispatcher task failed: %s: %v", task.name, err)
	}
}
