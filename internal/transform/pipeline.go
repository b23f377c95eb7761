// Package transform executes a route's transform pipeline in
// declared order, applying drop / pass / halt / fail-open semantics
// per §4.6.
package transform

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"time"

	"github.com/orgloop/orgloop/internal/config"
	"github.com/orgloop/orgloop/internal/orgerr"
	"github.com/orgloop/orgloop/internal/orgevent"
	"github.com/orgloop/orgloop/internal/plugin"
)

const defaultScriptTimeout = 30 * time.Second

// Outcome is the end state of running a route's transform pipeline.
type Outcome int

const (
	// OutcomePass means the event survived and should be delivered.
	OutcomePass Outcome = iota
	// OutcomeDrop means a transform dropped the event or errored under
	// the "drop" policy; the route is abandoned silently.
	OutcomeDrop
	// OutcomeHalt means a transform errored under the "halt" policy;
	// the route is abandoned as a failure.
	OutcomeHalt
)

// StepLogger is called once per transform execution with the phases to
// emit. The pipeline does not log directly so callers can attach
// route/module context the pipeline itself doesn't have.
type StepLogger func(transformName string, phase plugin.Phase, durationMs int64, errMsg string)

// Resolver looks up a transform's definition and, for package
// transforms, its implementation.
type Resolver interface {
	TransformDef(name string) (config.TransformDef, bool)
	TransformImpl(name string) (plugin.Transform, bool)
}

// Run executes refs in order against event, for the given route/module
// directory (used to resolve relative script paths) and transform
// context. It returns the possibly-rewritten event, the pipeline
// outcome, and a fatal error only when a reference cannot be resolved
// at all or names an unknown transform type (a true configuration
// error, not a policy outcome).
func Run(
	ctx context.Context,
	resolver Resolver,
	moduleDir string,
	refs []config.TransformRef,
	event orgevent.Event,
	tc plugin.TransformContext,
	logStep StepLogger,
) (orgevent.Event, Outcome, error) {
	current := event

	for _, ref := range refs {
		def, ok := resolver.TransformDef(ref.Ref)
		if !ok {
			return current, OutcomeHalt, orgerr.Transform(ref.Ref, "unresolved transform reference", nil)
		}

		onError := def.OnError
		if onError == "" {
			onError = "pass"
		}
		if ref.OnError != "" {
			onError = ref.OnError
		}

		logStep(def.Name, plugin.PhaseTransformStart, 0, "")
		start := time.Now()

		var (
			next   *orgevent.Event
			runErr error
		)
		switch def.Type {
		case "package":
			next, runErr = runPackage(ctx, resolver, def, current, tc)
		case "script":
			next, runErr = runScript(ctx, moduleDir, def, current, tc)
		default:
			return current, OutcomeHalt, orgerr.Transform(def.Name, fmt.Sprintf("unknown transform type %q", def.Type), nil)
		}
		duration := time.Since(start).Milliseconds()

		if runErr != nil {
			switch onError {
			case "drop":
				logStep(def.Name, plugin.PhaseTransformErrorDrop, duration, runErr.Error())
				return current, OutcomeDrop, nil
			case "halt":
				logStep(def.Name, plugin.PhaseTransformErrorHalt, duration, runErr.Error())
				return current, OutcomeHalt, nil
			default: // "pass"
				logStep(def.Name, plugin.PhaseTransformError, duration, runErr.Error())
				continue
			}
		}

		if next == nil {
			logStep(def.Name, plugin.PhaseTransformDrop, duration, "")
			return current, OutcomeDrop, nil
		}

		logStep(def.Name, plugin.PhaseTransformPass, duration, "")
		current = *next
	}

	return current, OutcomePass, nil
}

func runPackage(
	ctx context.Context,
	resolver Resolver,
	def config.TransformDef,
	event orgevent.Event,
	tc plugin.TransformContext,
) (*orgevent.Event, error) {
	impl, ok := resolver.TransformImpl(def.Name)
	if !ok {
		return nil, fmt.Errorf("no package implementation registered for transform %q", def.Name)
	}
	return impl.Execute(ctx, event, tc)
}

func runScript(
	ctx context.Context,
	moduleDir string,
	def config.TransformDef,
	event orgevent.Event,
	tc plugin.TransformContext,
) (*orgevent.Event, error) {
	timeout := defaultScriptTimeout
	if def.TimeoutMs > 0 {
		timeout = time.Duration(def.TimeoutMs) * time.Millisecond
	}
	cctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	scriptPath := def.Script
	if !filepath.IsAbs(scriptPath) {
		scriptPath = filepath.Join(moduleDir, scriptPath)
	}

	stdin, err := json.Marshal(event)
	if err != nil {
		return nil, fmt.Errorf("marshal event for script transform: %w", err)
	}

	// Invoked as a vector, never through a shell, per the script
	// transform security design note.
	cmd := exec.CommandContext(cctx, scriptPath)
	cmd.Stdin = bytes.NewReader(stdin)
	cmd.Env = append(os.Environ(),
		"ORGLOOP_SOURCE="+tc.Source,
		"ORGLOOP_TARGET="+tc.Target,
		"ORGLOOP_EVENT_TYPE="+tc.EventType,
		"ORGLOOP_EVENT_ID="+event.ID,
		"ORGLOOP_ROUTE="+tc.RouteName,
	)

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	runErr := cmd.Run()

	if cctx.Err() == context.DeadlineExceeded {
		return nil, fmt.Errorf("script transform %q timed out after %s", def.Name, timeout)
	}

	exitCode := 0
	if exitErr, ok := runErr.(*exec.ExitError); ok {
		exitCode = exitErr.ExitCode()
	} else if runErr != nil {
		return nil, fmt.Errorf("script transform %q failed to start: %w", def.Name, runErr)
	}

	switch {
	case exitCode == 0 && stdout.Len() == 0:
		return nil, nil // intentional drop
	case exitCode == 0:
		var next orgevent.Event
		if err := json.Unmarshal(stdout.Bytes(), &next); err != nil {
			return nil, fmt.Errorf("script transform %q produced malformed stdout: %w", def.Name, err)
		}
		return &next, nil
	case exitCode == 1:
		return nil, nil // intentional drop
	default:
		return nil, fmt.Errorf("script transform %q exited %d: %s", def.Name, exitCode, stderr.String())
	}
}
