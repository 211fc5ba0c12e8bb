// Package actions implements the task runner: an open, string-keyed registry
// mapping action types to handlers.
//
// The handlers shipped here are the engine-side implementations; connectors
// with real side effects (EDR, firewall, ticketing) register themselves over
// these names at platform assembly time. An unknown action type is a generic
// no-op success, never an execution failure.
package actions

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// Result is the outcome of running one action.
type Result struct {
	Success bool           `json:"success"`
	Output  map[string]any `json:"output,omitempty"`
	Error   string         `json:"error,omitempty"`
}

// Handler executes one action type. params are the action's opaque
// parameters; execCtx is the read-only execution context.
type Handler func(ctx context.Context, params map[string]any, execCtx map[string]any) (*Result, error)

// Runner executes a playbook action against external collaborators.
type Runner interface {
	Execute(ctx context.Context, actionType string, params map[string]any, execCtx map[string]any) (*Result, error)
}

// Notifier delivers notifications for the send_notification action.
// The default implementation is a no-op; the platform wires a real sender.
type Notifier interface {
	Notify(ctx context.Context, channel, message string) error
}

// Registry maps action type names to handlers.
type Registry struct {
	handlers map[string]Handler
	notifier Notifier
}

// Option configures a Registry.
type Option func(*Registry)

// WithNotifier wires a notification sender into send_notification.
func WithNotifier(n Notifier) Option {
	return func(r *Registry) { r.notifier = n }
}

// NewRegistry creates a registry with the built-in action types registered.
func NewRegistry(opts ...Option) *Registry {
	r := &Registry{handlers: make(map[string]Handler)}
	for _, opt := range opts {
		opt(r)
	}

	r.Register("isolate_endpoint", r.isolateEndpoint)
	r.Register("unisolate_endpoint", r.unisolateEndpoint)
	r.Register("block_ip", r.blockIP)
	r.Register("unblock_ip", r.unblockIP)
	r.Register("send_notification", r.sendNotification)
	r.Register("create_ticket", r.createTicket)
	r.Register("enrich_ioc", r.enrichIOC)
	r.Register("custom_api", r.customAPI)
	r.Register("wait", r.wait)
	return r
}

// Register adds or replaces the handler for an action type.
func (r *Registry) Register(actionType string, h Handler) {
	r.handlers[actionType] = h
}

// Types returns the registered action type names.
func (r *Registry) Types() []string {
	out := make([]string, 0, len(r.handlers))
	for name := range r.handlers {
		out = append(out, name)
	}
	return out
}

// Execute dispatches to the registered handler. An unregistered action type
// returns a generic no-op success rather than erroring the execution.
func (r *Registry) Execute(ctx context.Context, actionType string, params map[string]any, execCtx map[string]any) (*Result, error) {
	h, ok := r.handlers[actionType]
	if !ok {
		return &Result{
			Success: true,
			Output: map[string]any{
				"action_type": actionType,
				"message":     "no handler registered; treated as no-op",
			},
		}, nil
	}
	return h(ctx, params, execCtx)
}

// stringParam reads a string parameter, tolerating non-string values.
func stringParam(params map[string]any, key string) string {
	if v, ok := params[key]; ok && v != nil {
		if s, ok := v.(string); ok {
			return s
		}
		return fmt.Sprintf("%v", v)
	}
	return ""
}

func (r *Registry) isolateEndpoint(ctx context.Context, params map[string]any, execCtx map[string]any) (*Result, error) {
	endpoint := stringParam(params, "endpoint_id")
	if endpoint == "" {
		endpoint = stringParam(params, "host")
	}
	if endpoint == "" {
		return &Result{Success: false, Error: "isolate_endpoint: endpoint_id parameter is required"}, nil
	}
	return &Result{Success: true, Output: map[string]any{
		"endpoint_id": endpoint,
		"isolated":    true,
		"isolated_at": time.Now().UTC().Format(time.RFC3339),
	}}, nil
}

func (r *Registry) unisolateEndpoint(ctx context.Context, params map[string]any, execCtx map[string]any) (*Result, error) {
	endpoint := stringParam(params, "endpoint_id")
	if endpoint == "" {
		return &Result{Success: false, Error: "unisolate_endpoint: endpoint_id parameter is required"}, nil
	}
	return &Result{Success: true, Output: map[string]any{
		"endpoint_id": endpoint,
		"isolated":    false,
	}}, nil
}

func (r *Registry) blockIP(ctx context.Context, params map[string]any, execCtx map[string]any) (*Result, error) {
	ip := stringParam(params, "ip")
	if ip == "" {
		return &Result{Success: false, Error: "block_ip: ip parameter is required"}, nil
	}
	return &Result{Success: true, Output: map[string]any{
		"ip":        ip,
		"blocked":   true,
		"direction": stringParamDefault(params, "direction", "both"),
	}}, nil
}

func (r *Registry) unblockIP(ctx context.Context, params map[string]any, execCtx map[string]any) (*Result, error) {
	ip := stringParam(params, "ip")
	if ip == "" {
		return &Result{Success: false, Error: "unblock_ip: ip parameter is required"}, nil
	}
	return &Result{Success: true, Output: map[string]any{"ip": ip, "blocked": false}}, nil
}

func (r *Registry) sendNotification(ctx context.Context, params map[string]any, execCtx map[string]any) (*Result, error) {
	channel := stringParamDefault(params, "channel", "soc")
	message := stringParam(params, "message")
	if r.notifier != nil {
		if err := r.notifier.Notify(ctx, channel, message); err != nil {
			return &Result{Success: false, Error: fmt.Sprintf("send_notification: %v", err)}, nil
		}
	}
	return &Result{Success: true, Output: map[string]any{
		"channel": channel,
		"sent":    true,
	}}, nil
}

func (r *Registry) createTicket(ctx context.Context, params map[string]any, execCtx map[string]any) (*Result, error) {
	title := stringParam(params, "title")
	if title == "" {
		return &Result{Success: false, Error: "create_ticket: title parameter is required"}, nil
	}
	return &Result{Success: true, Output: map[string]any{
		"ticket_id": uuid.New().String(),
		"title":     title,
		"priority":  stringParamDefault(params, "priority", "medium"),
	}}, nil
}

func (r *Registry) enrichIOC(ctx context.Context, params map[string]any, execCtx map[string]any) (*Result, error) {
	indicator := stringParam(params, "indicator")
	if indicator == "" {
		return &Result{Success: false, Error: "enrich_ioc: indicator parameter is required"}, nil
	}
	return &Result{Success: true, Output: map[string]any{
		"indicator": indicator,
		"verdict":   "unknown",
		"sources":   0,
	}}, nil
}

func (r *Registry) customAPI(ctx context.Context, params map[string]any, execCtx map[string]any) (*Result, error) {
	url := stringParam(params, "url")
	if url == "" {
		return &Result{Success: false, Error: "custom_api: url parameter is required"}, nil
	}
	return &Result{Success: true, Output: map[string]any{
		"url":    url,
		"method": stringParamDefault(params, "method", "POST"),
		"queued": true,
	}}, nil
}

// wait suspends for the requested number of seconds, honoring cancellation.
func (r *Registry) wait(ctx context.Context, params map[string]any, execCtx map[string]any) (*Result, error) {
	seconds := 1.0
	if v, ok := params["seconds"]; ok {
		switch n := v.(type) {
		case int:
			seconds = float64(n)
		case float64:
			seconds = n
		}
	}
	timer := time.NewTimer(time.Duration(seconds * float64(time.Second)))
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return &Result{Success: false, Error: "wait: cancelled"}, ctx.Err()
	case <-timer.C:
		return &Result{Success: true, Output: map[string]any{"waited_seconds": seconds}}, nil
	}
}

func stringParamDefault(params map[string]any, key, def string) string {
	if s := stringParam(params, key); s != "" {
		return s
	}
	return def
}
