package app

import (
	"context"
	"errors"
	"fmt"
)

// Event names a lifecycle point at which listeners run.
type Event string

const (
	// BeforeStart listeners run before the server starts listening. An
	// error aborts startup.
	BeforeStart Event = "before_start"

	// AfterStart listeners run once the listener is bound.
	AfterStart Event = "after_start"
)

// ErrUnknownListener is returned for an event other than BeforeStart or
// AfterStart.
var ErrUnknownListener = errors.New("app: unknown listener event")

// Hook is a lifecycle listener.
type Hook func(ctx context.Context) error

// Listener registers hook for event. Hooks run in registration order.
func (a *App) Listener(event Event, hook Hook) error {
	if hook == nil {
		return errors.New("app: nil listener")
	}
	if event != BeforeStart && event != AfterStart {
		return fmt.Errorf("%w: %q", ErrUnknownListener, event)
	}

	a.mu.Lock()
	defer a.mu.Unlock()
	if a.built != nil {
		return ErrFrozen
	}
	a.hooks[event] = append(a.hooks[event], hook)
	return nil
}

// Hooks returns the listeners for event as plain functions, in order.
func (a *App) Hooks(event Event) []func(context.Context) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	out := make([]func(context.Context) error, 0, len(a.hooks[event]))
	for _, h := range a.hooks[event] {
		out = append(out, h)
	}
	return out
}

// RunHooks runs the listeners for event and stops at the first error.
func (a *App) RunHooks(ctx context.Context, event Event) error {
	for i, h := range a.Hooks(event) {
		if err := h(ctx); err != nil {
			return fmt.Errorf("%s listener %d: %w", event, i, err)
		}
	}
	return nil
}
