package pipeline

// gate is the admission side of the queue. slots counts admitted tasks
// that the worker has not finished yet; tasks carries them in arrival
// order. Because a send to tasks only happens after a slot was reserved,
// it never blocks.
type gate struct {
	slots chan struct{}
	tasks chan *Task
}

func newGate(capacity int) *gate {
	return &gate{
		slots: make(chan struct{}, capacity),
		tasks: make(chan *Task, capacity),
	}
}

// reserve claims a slot without blocking. It is the single check-and-update
// step of admission.
func (g *gate) reserve() bool {
	select {
	case g.slots <- struct{}{}:
		return true
	default:
		return false
	}
}

func (g *gate) enqueue(task *Task) {
	g.tasks <- task
}

// finish returns the slot held by one admitted task.
func (g *gate) finish() {
	<-g.slots
}

func (g *gate) occupancy() int {
	return len(g.slots)
}

func (g *gate) capacity() int {
	return cap(g.slots)
}
