// Package executors runs calendar commands against a calendar backend.
package executors

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"studio-scheduler-service/internal/models"
)

const (
	ExecutorTypeLog     = "log"
	ExecutorTypeWebhook = "webhook"
)

// Outcome is what a backend reports for a successful command.
type Outcome struct {
	GoogleEventID    string
	GoogleCalendarID string
}

type Executor interface {
	Execute(ctx context.Context, cmd models.CalendarCommand) (Outcome, error)
}

// Registry maps executor types to executors.
type Registry struct {
	mu        sync.RWMutex
	executors map[string]Executor
}

func NewRegistry() *Registry {
	return &Registry{executors: make(map[string]Executor)}
}

func (r *Registry) Register(executorType string, executor Executor) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.executors[executorType] = executor
}

func (r *Registry) Get(executorType string) (Executor, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	executor, exists := r.executors[executorType]
	if !exists {
		return nil, fmt.Errorf("no executor registered for type: %s", executorType)
	}
	return executor, nil
}

// Types lists the registered executor types in sorted order.
func (r *Registry) Types() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]string, 0, len(r.executors))
	for t := range r.executors {
		out = append(out, t)
	}
	sort.Strings(out)
	return out
}
