// Package config holds the already-parsed, env-substituted declarative
// configuration record the runtime consumes. Parsing YAML into these
// types is out of scope for the core (§1 Non-goals); callers hand the
// runtime a fully-built Module.
package config

// SourceInstance configures one polling or webhook-driven source.
type SourceInstance struct {
	ID        string         `json:"id"`
	Connector string         `json:"connector"`
	Config    map[string]any `json:"config,omitempty"`
	Poll      *PollConfig    `json:"poll,omitempty"`
	Emits     []string       `json:"emits,omitempty"`

	// CircuitBreaker overrides the runtime defaults for this source.
	CircuitBreaker *CircuitBreakerConfig `json:"circuit_breaker,omitempty"`
}

// PollConfig configures the scheduler's ticking interval for a source.
type PollConfig struct {
	Interval string `json:"interval"`
}

// CircuitBreakerConfig overrides the default failure threshold / retry
// delay for one source instance.
type CircuitBreakerConfig struct {
	FailureThreshold int    `json:"failure_threshold,omitempty"`
	RetryAfter       string `json:"retry_after,omitempty"`
}

// ActorInstance configures one delivery target.
type ActorInstance struct {
	ID        string         `json:"id"`
	Connector string         `json:"connector"`
	Config    map[string]any `json:"config,omitempty"`
}

// TransformDef declares a reusable transform implementation.
type TransformDef struct {
	Name      string         `json:"name"`
	Type      string         `json:"type"` // "package" | "script"
	Package   string         `json:"package,omitempty"`
	Script    string         `json:"script,omitempty"`
	Config    map[string]any `json:"config,omitempty"`
	TimeoutMs int            `json:"timeout_ms,omitempty"`
	OnError   string         `json:"on_error,omitempty"` // pass|drop|halt
}

// TransformRef is one step in a route's transform pipeline.
type TransformRef struct {
	Ref     string `json:"ref"`
	OnError string `json:"on_error,omitempty"`
}

// RouteWhen selects which events a route matches.
type RouteWhen struct {
	Source string            `json:"source"`
	Events []string          `json:"events"`
	Filter map[string]string `json:"filter,omitempty"`
}

// RouteThen names the actor a route delivers to, with opaque routing
// hints.
type RouteThen struct {
	Actor  string         `json:"actor"`
	Config map[string]any `json:"config,omitempty"`
}

// RouteWith carries optional sidecar inputs for a route.
type RouteWith struct {
	PromptFile string `json:"prompt_file,omitempty"`
}

// Route is a declarative rule wiring a source+filter to a transform
// pipeline and an actor.
type Route struct {
	Name       string         `json:"name"`
	When       RouteWhen      `json:"when"`
	Transforms []TransformRef `json:"transforms,omitempty"`
	Then       RouteThen      `json:"then"`
	With       *RouteWith     `json:"with,omitempty"`
}

// LoggerDef declares one logging sink.
type LoggerDef struct {
	Name   string         `json:"name"`
	Type   string         `json:"type"`
	Config map[string]any `json:"config,omitempty"`
}

// Defaults carries module-wide fallback settings.
type Defaults struct {
	PollInterval string `json:"poll_interval,omitempty"`
	// DeliveryConfig seeds every route's delivery config; a route's own
	// then.config overrides individual keys rather than replacing the
	// whole map (see MergeDeliveryConfig).
	DeliveryConfig map[string]any `json:"delivery_config,omitempty"`
}

// Module is a closed, independently loadable configuration bundle.
type Module struct {
	Name       string         `json:"name"`
	Sources    []SourceInstance `json:"sources,omitempty"`
	Actors     []ActorInstance  `json:"actors,omitempty"`
	Routes     []Route          `json:"routes,omitempty"`
	Transforms []TransformDef   `json:"transforms,omitempty"`
	Loggers    []LoggerDef      `json:"loggers,omitempty"`
	Defaults   *Defaults        `json:"defaults,omitempty"`

	// Dir is the absolute directory the module config was loaded from,
	// used to resolve script transform and prompt file paths. Not part
	// of the wire format; set by the loader.
	Dir string `json:"-"`
}
