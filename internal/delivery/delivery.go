// Package delivery implements the delivery stage (§4.7): resolving the
// launch prompt, invoking the actor, and reporting the outcome.
package delivery

import (
	"context"
	"os"
	"path/filepath"
	"time"

	"github.com/orgloop/orgloop/internal/config"
	"github.com/orgloop/orgloop/internal/orgevent"
	"github.com/orgloop/orgloop/internal/plugin"
	"github.com/orgloop/orgloop/internal/promptfile"
)

// Result is the outcome of one delivery attempt.
type Result struct {
	Success    bool
	Error      string
	DurationMs int64
}

// BuildConfig merges the module's defaults.delivery_config with
// route.Then.Config (the route wins on key conflicts) and, if the
// route names a prompt file, reads and splits it into launch_prompt /
// launch_prompt_file / launch_prompt_meta. A prompt file read failure
// is non-fatal: delivery proceeds without the prompt. A merge failure
// falls back to the route's own config unmerged.
func BuildConfig(route config.Route, moduleDir string, defaults *config.Defaults) map[string]any {
	var defaultConfig map[string]any
	if defaults != nil {
		defaultConfig = defaults.DeliveryConfig
	}
	out, err := config.MergeDeliveryConfig(defaultConfig, route.Then.Config)
	if err != nil {
		out = make(map[string]any, len(route.Then.Config))
		for k, v := range route.Then.Config {
			out[k] = v
		}
	}

	if route.With == nil || route.With.PromptFile == "" {
		return out
	}

	path := route.With.PromptFile
	if !filepath.IsAbs(path) {
		path = filepath.Join(moduleDir, path)
	}
	raw, err := os.ReadFile(path)
	if err != nil {
		return out
	}

	res := promptfile.Strip(string(raw))
	out["launch_prompt"] = res.Content
	out["launch_prompt_file"] = path
	out["launch_prompt_meta"] = res.Metadata
	return out
}

// Deliver invokes actor.Deliver, classifying an error return the same
// as a non-"delivered" status.
func Deliver(ctx context.Context, actor plugin.ActorConnector, event orgevent.Event, deliveryConfig map[string]any) Result {
	start := time.Now()
	res, err := actor.Deliver(ctx, event, deliveryConfig)
	duration := time.Since(start).Milliseconds()

	if err != nil {
		return Result{Success: false, Error: err.Error(), DurationMs: duration}
	}
	if res.Status != "delivered" {
		msg := res.Error
		if msg == "" {
			msg = "actor reported status " + res.Status
		}
		return Result{Success: false, Error: msg, DurationMs: duration}
	}
	return Result{Success: true, DurationMs: duration}
}
