package game

import "sync"

// Task - единица работы, выполняемая в потоке физики перед шагом
type Task func() error

// taskQueue - неограниченная очередь задач: много писателей, один читатель.
// Порядок задач одного писателя сохраняется.
type taskQueue struct {
	mu    sync.Mutex
	tasks []Task
}

func (q *taskQueue) push(task Task) {
	q.mu.Lock()
	q.tasks = append(q.tasks, task)
	q.mu.Unlock()
}

// drain забирает все накопленные задачи
func (q *taskQueue) drain() []Task {
	q.mu.Lock()
	defer q.mu.Unlock()

	if len(q.tasks) == 0 {
		return nil
	}
	tasks := q.tasks
	q.tasks = nil
	return tasks
}

func (q *taskQueue) len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.tasks)
}
