// Package plugin defines the interfaces the core dispatches to
// dynamically: source connectors, actor connectors, transforms, and
// loggers. Concrete implementations (GitHub, Linear, cron, dedup,
// filter, file logger, syslog, OpenTelemetry, ...) are out of scope for
// the core and live in separate plugin repositories; the core only
// ever calls through these interfaces.
package plugin

import (
	"context"

	"github.com/orgloop/orgloop/internal/orgevent"
)

// PollResult is what a source connector returns from one poll.
type PollResult struct {
	Events     []orgevent.Event
	Checkpoint string
	// CheckpointSet distinguishes "no new checkpoint" from "explicit
	// empty-string checkpoint".
	CheckpointSet bool
}

// WebhookHandler consumes one inbound HTTP request and returns the
// events it produced. Handlers never see the response: the HTTP
// surface replies 200 with the number of events on success and 500
// when the handler returns an error.
type WebhookHandler func(ctx context.Context, r WebhookRequest) ([]orgevent.Event, error)

// WebhookRequest is the minimal request surface exposed to a handler.
type WebhookRequest struct {
	Method  string
	Path    string
	Headers map[string][]string
	Body    []byte
}

// SourceConnector produces events, either by being polled on a
// schedule or by exposing a webhook handler.
type SourceConnector interface {
	Init(ctx context.Context, config map[string]any) error
	Shutdown(ctx context.Context) error

	// Poll is never called for a connector whose Webhook reports true;
	// the runtime registers its handler instead of scheduling polls.
	Poll(ctx context.Context, checkpoint string) (PollResult, error)

	// Webhook returns (nil, false) if this connector is poll-only.
	Webhook() (WebhookHandler, bool)
}

// ActorConnector delivers a surviving event to a downstream system.
type ActorConnector interface {
	Init(ctx context.Context, config map[string]any) error
	Shutdown(ctx context.Context) error
	Deliver(ctx context.Context, event orgevent.Event, deliveryConfig map[string]any) (DeliverResult, error)
}

// DeliverResult is what an actor reports back for one delivery attempt.
type DeliverResult struct {
	Status string // "delivered" or anything else for failure
	Error  string
}

// TransformContext is passed to a package transform's Execute call.
type TransformContext struct {
	Source    string
	Target    string
	EventType string
	RouteName string
}

// Transform is a package transform implementation. Execute returns a
// nil event to signal "drop".
type Transform interface {
	Init(ctx context.Context, config map[string]any) error
	Execute(ctx context.Context, event orgevent.Event, tc TransformContext) (*orgevent.Event, error)
	Shutdown(ctx context.Context) error
}

// Logger is one fan-out sink for structured log entries.
type Logger interface {
	Init(ctx context.Context, config map[string]any) error
	Log(ctx context.Context, entry Entry) error
	Flush(ctx context.Context) error
	Shutdown(ctx context.Context) error
}

// Phase tags a log entry's place in the event lifecycle. See §4.3.
type Phase string

const (
	PhaseSourceEmit         Phase = "source.emit"
	PhaseTransformStart     Phase = "transform.start"
	PhaseTransformPass      Phase = "transform.pass"
	PhaseTransformDrop      Phase = "transform.drop"
	PhaseTransformError     Phase = "transform.error"
	PhaseTransformErrorDrop Phase = "transform.error_drop"
	PhaseTransformErrorHalt Phase = "transform.error_halt"
	PhaseRouteMatch         Phase = "route.match"
	PhaseRouteNoMatch       Phase = "route.no_match"
	PhaseDeliverAttempt     Phase = "deliver.attempt"
	PhaseDeliverSuccess     Phase = "deliver.success"
	PhaseDeliverFailure     Phase = "deliver.failure"
	PhaseDeliverRetry       Phase = "deliver.retry"
	PhaseSystemStart        Phase = "system.start"
	PhaseSystemStop         Phase = "system.stop"
	PhaseSystemError        Phase = "system.error"
	PhaseSourceCircuitOpen  Phase = "source.circuit_open"
	PhaseSourceCircuitRetry Phase = "source.circuit_retry"
	PhaseSourceCircuitClose Phase = "source.circuit_close"
	PhaseModuleLoading      Phase = "module.loading"
	PhaseModuleActive       Phase = "module.active"
	PhaseModuleUnloading    Phase = "module.unloading"
	PhaseModuleRemoved      Phase = "module.removed"
	PhaseModuleError        Phase = "module.error"
	PhaseRuntimeStart       Phase = "runtime.start"
	PhaseRuntimeStop        Phase = "runtime.stop"
)

// Entry is the structured shape fanned out to every logger.
type Entry struct {
	Timestamp      string         `json:"timestamp"`
	EventID        string         `json:"event_id,omitempty"`
	TraceID        string         `json:"trace_id,omitempty"`
	Phase          Phase          `json:"phase"`
	Source         string         `json:"source,omitempty"`
	Target         string         `json:"target,omitempty"`
	Route          string         `json:"route,omitempty"`
	Transform      string         `json:"transform,omitempty"`
	EventType      string         `json:"event_type,omitempty"`
	Result         string         `json:"result,omitempty"`
	DurationMs     int64          `json:"duration_ms,omitempty"`
	Error          string         `json:"error,omitempty"`
	Metadata       map[string]any `json:"metadata,omitempty"`
	Module         string         `json:"module,omitempty"`
	Workspace      string         `json:"workspace,omitempty"`
	Hostname       string         `json:"hostname,omitempty"`
	QueueDepth     int            `json:"queue_depth,omitempty"`
	OrgloopVersion string         `json:"orgloop_version,omitempty"`
}
