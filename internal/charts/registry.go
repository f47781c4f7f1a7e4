// Package charts keeps the live chart widgets of the dashboard.
//
// The Registry holds at most one widget per chart id. Upsert updates an
// existing widget in place and only recreates it when the update is refused.
// Every teardown path removes the widget from the registry before destroying
// it, so a destroyed widget is never reachable through the registry.
package charts

import (
	"fmt"
	"sync"
)

// Widget is a live chart instance.
type Widget interface {
	// Update replaces the data, labels and options in place.
	Update(cfg Config) error
	// Render draws the chart into at most width columns.
	Render(width int) string
	// Destroy releases the widget. Later calls to Update fail.
	Destroy()
}

// Factory creates a widget for id.
type Factory func(id string, cfg Config) (Widget, error)

// Registry maps chart ids to live widgets.
type Registry struct {
	mu      sync.Mutex
	factory Factory
	widgets map[string]Widget
	order   []string
	created int
}

// NewRegistry creates an empty registry. A nil factory uses NewTermWidget.
func NewRegistry(factory Factory) *Registry {
	if factory == nil {
		factory = NewTermWidget
	}
	return &Registry{
		factory: factory,
		widgets: make(map[string]Widget),
	}
}

// Upsert creates the widget for id or updates the existing one in place. If
// the existing widget refuses the update it is released and recreated.
func (r *Registry) Upsert(id string, cfg Config) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if w, ok := r.widgets[id]; ok {
		if err := w.Update(cfg); err == nil {
			return nil
		}
		r.remove(id)
		w.Destroy()
	}

	nw, err := r.factory(id, cfg)
	if err != nil {
		return fmt.Errorf("chart %s: %w", id, err)
	}
	r.widgets[id] = nw
	r.order = append(r.order, id)
	r.created++
	return nil
}

// remove unregisters id. The caller holds r.mu.
func (r *Registry) remove(id string) {
	delete(r.widgets, id)
	for i, v := range r.order {
		if v == id {
			r.order = append(r.order[:i], r.order[i+1:]...)
			break
		}
	}
}

// Release unregisters and destroys the widget for id, if any.
func (r *Registry) Release(id string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if w, ok := r.widgets[id]; ok {
		r.remove(id)
		w.Destroy()
	}
}

// DestroyAll unregisters and destroys every widget.
func (r *Registry) DestroyAll() {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, id := range r.order {
		w := r.widgets[id]
		delete(r.widgets, id)
		w.Destroy()
	}
	r.order = nil
}

// Get returns the live widget for id.
func (r *Registry) Get(id string) (Widget, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	w, ok := r.widgets[id]
	return w, ok
}

// IDs returns the registered ids in creation order.
func (r *Registry) IDs() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), r.order...)
}

// Len returns the number of live widgets.
func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.widgets)
}

// Created returns how many widgets the registry has created in total.
func (r *Registry) Created() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.created
}

// Render draws the widget for id. It returns false when id is not registered.
func (r *Registry) Render(id string, width int) (string, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	w, ok := r.widgets[id]
	if !ok {
		return "", false
	}
	return w.Render(width), true
}
