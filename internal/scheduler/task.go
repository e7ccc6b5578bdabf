package scheduler

import "context"

// IdleChecker reports whether the agent is currently idle and whether the
// multiplexer session exists, used for the idle gate (spec.md §4.4).
type IdleChecker interface {
	IsAgentIdle() bool
	SessionExists(ctx context.Context) bool
}

// Task is a single first-party scheduled chore (spec.md C10). Run's only
// supported side effects are filesystem reads under the project directory,
// session-bridge injection, or direct adapter sends.
type Task struct {
	Name            string
	RequiresSession bool // not read by Dispatcher; its idle gate uses Slot.RequiresSession
	Run             func(ctx context.Context) error
}

// Registry holds all tasks registered at module load, keyed by name.
type Registry struct {
	tasks map[string]Task
}

// NewRegistry creates an empty task registry.
func NewRegistry() *Registry {
	return &Registry{tasks: make(map[string]Task)}
}

// Register adds a task as given, replacing any task already registered
// under the same name.
func (r *Registry) Register(t Task) {
	r.tasks[t.Name] = t
}

// Get returns a registered task by name.
func (r *Registry) Get(name string) (Task, bool) {
	t, ok := r.tasks[name]
	return t, ok
}

// Names returns all registered task names.
func (r *Registry) Names() []string {
	names := make([]string, 0, len(r.tasks))
	for n := range r.tasks {
		names = append(names, n)
	}
	return names
}
