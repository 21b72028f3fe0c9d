package tasks

import (
	"context"
	"sync"

	"gymhub_app_echo/internal/models"
)

// Handler runs one scheduled task and returns a result stored in history
type Handler func(ctx context.Context, task models.ScheduledTask) (map[string]interface{}, error)

// Definition is a task type the worker knows how to run
type Definition interface {
	TaskID() string
	HandleExecution(ctx context.Context, task models.ScheduledTask) (map[string]interface{}, error)
}

// Registry stores the mapping of task names to handlers
type Registry struct {
	mu       sync.RWMutex
	handlers map[string]Handler
}

func NewRegistry() *Registry {
	return &Registry{handlers: make(map[string]Handler)}
}

// Register adds a handler for a task name
func (r *Registry) Register(name string, handler Handler) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.handlers[name] = handler
}

// RegisterDefinition registers def under its own task id
func (r *Registry) RegisterDefinition(def Definition) {
	r.Register(def.TaskID(), def.HandleExecution)
}

// Get retrieves a handler for a task name
func (r *Registry) Get(name string) (Handler, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	handler, ok := r.handlers[name]
	return handler, ok
}
