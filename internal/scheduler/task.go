package scheduler

// TaskInfo describes one execution of a task.
type TaskInfo struct {
	// ID is the enqueue sequence number, starting at 1.
	ID uint64
	// Seq is the dequeue sequence number, assigned under the queue lock.
	Seq uint64
	// Worker is the index of the worker executing the task.
	Worker int
}

// Task is a type-erased unit of work. Run is invoked exactly once by the
// worker that dequeues the task; Discard is invoked instead when the task is
// dropped without running.
type Task struct {
	ID  uint64
	Seq uint64

	Run     func(TaskInfo)
	Discard func(error)
}

func (t *Task) discard(err error) {
	if t != nil && t.Discard != nil {
		t.Discard(err)
	}
}
