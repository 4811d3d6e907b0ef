package sim

import "sync"

// deliveryQueue runs callbacks one at a time, in submission order, on a
// dedicated goroutine.
type deliveryQueue struct {
	mu       sync.Mutex
	cond     *sync.Cond
	tasks    []func()
	inFlight bool
	closed   bool
	done     chan struct{}
}

func newDeliveryQueue() *deliveryQueue {
	q := &deliveryQueue{done: make(chan struct{})}
	q.cond = sync.NewCond(&q.mu)
	go q.run()
	return q
}

func (q *deliveryQueue) run() {
	defer close(q.done)
	for {
		q.mu.Lock()
		for len(q.tasks) == 0 && !q.closed {
			q.cond.Wait()
		}
		if len(q.tasks) == 0 && q.closed {
			q.mu.Unlock()
			return
		}
		task := q.tasks[0]
		q.tasks = q.tasks[1:]
		q.inFlight = true
		q.mu.Unlock()

		task()

		q.mu.Lock()
		q.inFlight = false
		q.cond.Broadcast()
		q.mu.Unlock()
	}
}

// push enqueues task. Tasks pushed after close are dropped.
func (q *deliveryQueue) push(task func()) {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.closed {
		return
	}
	q.tasks = append(q.tasks, task)
	q.cond.Broadcast()
}

// drain waits until the queue is empty and no task is running.
func (q *deliveryQueue) drain() {
	q.mu.Lock()
	defer q.mu.Unlock()
	for (len(q.tasks) > 0 || q.inFlight) && !q.closed {
		q.cond.Wait()
	}
}

// close delivers what is queued, then stops the goroutine.
func (q *deliveryQueue) close() {
	q.mu.Lock()
	q.closed = true
	q.cond.Broadcast()
	q.mu.Unlock()
	<-q.done
}
