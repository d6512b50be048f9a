package render_graph

// taskBase is the payload-independent part of a task.
type taskBase struct {
	id   int
	name string
}

func (t *taskBase) base() *taskBase { return t }

// Name returns the task's name.
func (t *taskBase) Name() string { return t.name }

// runner erases a task's payload type behind a uniform execute entry.
type runner interface {
	base() *taskBase
	run(ctx *Context) error
}

// Task is a registered task with its own payload. Payloads are never shared between tasks.
type Task[T any] struct {
	taskBase
	data T
	exec func(data *T, ctx *Context) error
}

// Data returns the task's payload. It is meant for inspection; the graph passes the same value
// to the execute callback.
func (t *Task[T]) Data() *T { return &t.data }

func (t *Task[T]) run(ctx *Context) error {
	if t.exec == nil {
		return nil
	}
	return t.exec(&t.data, ctx)
}

// AddTask registers a task whose payload starts as the zero value of T. setup runs immediately
// with a builder to declare the resources the task creates, reads and writes, and may fill the
// payload. exec runs once per frame with the payload and must treat it as read-only.
//
// Parameters:
//   - g: the graph to add to
//   - name: the task name, unique within the graph
//   - setup: declares resources; nil declares none
//   - exec: records the task's GPU work; nil makes the task a no-op
//
// Returns:
//   - *Task[T]: the registered task
//   - error: error if setup fails or declares invalid resources; the graph is left unchanged
func AddTask[T any](g Graph, name string, setup func(data *T, b *TaskBuilder) error, exec func(data *T, ctx *Context) error) (*Task[T], error) {
	t := &Task[T]{exec: exec}
	t.name = name
	err := g.addTask(t, func(b *TaskBuilder) error {
		if setup == nil {
			return nil
		}
		return setup(&t.data, b)
	})
	if err != nil {
		return nil, err
	}
	return t, nil
}
