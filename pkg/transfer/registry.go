package transfer

import "sync"

// registry tracks live transfer tasks by id. Insertion happens before the
// task goroutine starts, and removal is the single point that decides who
// delivers the terminal event: whichever caller wins the remove owns the
// handler invocation, so terminal delivery is at most once. Handlers are
// always invoked outside the lock.
type registry[R any] struct {
	mu    sync.Mutex
	tasks map[string]R
}

func newRegistry[R any]() *registry[R] {
	return &registry[R]{tasks: make(map[string]R)}
}

func (r *registry[R]) insert(id string, task R) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.tasks[id] = task
}

func (r *registry[R]) lookup(id string) (R, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	task, ok := r.tasks[id]
	return task, ok
}

func (r *registry[R]) remove(id string) (R, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	task, ok := r.tasks[id]
	if ok {
		delete(r.tasks, id)
	}
	return task, ok
}

func (r *registry[R]) snapshotIDs() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	ids := make([]string, 0, len(r.tasks))
	for id := range r.tasks {
		ids = append(ids, id)
	}
	return ids
}
