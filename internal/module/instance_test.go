package module

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/orgloop/orgloop/internal/config"
	"github.com/orgloop/orgloop/internal/orgerr"
	"github.com/orgloop/orgloop/internal/orgevent"
	"github.com/orgloop/orgloop/internal/plugin"
)

type fakeSource struct {
	initErr     error
	shutdownErr error
	shutdownN   *int
}

func (f *fakeSource) Init(ctx context.Context, cfg map[string]any) error { return f.initErr }
func (f *fakeSource) Shutdown(ctx context.Context) error {
	if f.shutdownN != nil {
		*f.shutdownN++
	}
	return f.shutdownErr
}
func (f *fakeSource) Poll(ctx context.Context, checkpoint string) (plugin.PollResult, error) {
	return plugin.PollResult{}, nil
}
func (f *fakeSource) Webhook() (plugin.WebhookHandler, bool) { return nil, false }

type fakeActor struct{ initErr error }

func (f *fakeActor) Init(ctx context.Context, cfg map[string]any) error { return f.initErr }
func (f *fakeActor) Shutdown(ctx context.Context) error                { return nil }
func (f *fakeActor) Deliver(ctx context.Context, event orgevent.Event, cfg map[string]any) (plugin.DeliverResult, error) {
	return plugin.DeliverResult{Status: "delivered"}, nil
}

type fakeTransform struct{ initErr error }

func (f *fakeTransform) Init(ctx context.Context, cfg map[string]any) error { return f.initErr }
func (f *fakeTransform) Execute(ctx context.Context, event orgevent.Event, tc plugin.TransformContext) (*orgevent.Event, error) {
	return &event, nil
}
func (f *fakeTransform) Shutdown(ctx context.Context) error { return nil }

type fakeLogger struct{}

func (f *fakeLogger) Init(ctx context.Context, cfg map[string]any) error    { return nil }
func (f *fakeLogger) Log(ctx context.Context, entry plugin.Entry) error    { return nil }
func (f *fakeLogger) Flush(ctx context.Context) error                     { return nil }
func (f *fakeLogger) Shutdown(ctx context.Context) error                  { return nil }

func TestInstanceInitializeSucceedsWithAllConnectors(t *testing.T) {
	cfg := config.Module{
		Name:    "github-mod",
		Sources: []config.SourceInstance{{ID: "gh"}},
		Actors:  []config.ActorInstance{{ID: "slack"}},
	}
	resources := Resources{
		Sources: map[string]plugin.SourceConnector{"gh": &fakeSource{}},
		Actors:  map[string]plugin.ActorConnector{"slack": &fakeActor{}},
	}
	inst := New(cfg, resources, nil)
	require.NoError(t, inst.Initialize(context.Background()))
}

func TestInstanceInitializeFailsWithoutConnector(t *testing.T) {
	cfg := config.Module{
		Name:    "github-mod",
		Sources: []config.SourceInstance{{ID: "gh"}},
	}
	inst := New(cfg, Resources{}, nil)

	err := inst.Initialize(context.Background())
	require.Error(t, err)
	kind, ok := orgerr.KindOf(err)
	require.True(t, ok)
	assert.Equal(t, orgerr.KindConnector, kind)
}

func TestInstanceInitializePropagatesConnectorInitError(t *testing.T) {
	cfg := config.Module{
		Name:    "github-mod",
		Sources: []config.SourceInstance{{ID: "gh"}},
	}
	boom := errors.New("dial failed")
	resources := Resources{Sources: map[string]plugin.SourceConnector{"gh": &fakeSource{initErr: boom}}}
	inst := New(cfg, resources, nil)

	err := inst.Initialize(context.Background())
	require.Error(t, err)
	require.ErrorIs(t, err, boom)
}

func TestInstanceLifecycleStateTransitions(t *testing.T) {
	inst := New(config.Module{Name: "m"}, Resources{}, nil)
	assert.Equal(t, StateLoading, inst.State())
	assert.False(t, inst.Active())

	inst.Activate()
	assert.Equal(t, StateActive, inst.State())
	assert.True(t, inst.Active())

	inst.Deactivate()
	assert.Equal(t, StateUnloading, inst.State())
	assert.False(t, inst.Active())
}

func TestInstanceShutdownCallsEveryConnectorEvenOnFailure(t *testing.T) {
	shutdownCount := 0
	cfg := config.Module{
		Name:    "m",
		Sources: []config.SourceInstance{{ID: "a"}, {ID: "b"}},
	}
	resources := Resources{
		Sources: map[string]plugin.SourceConnector{
			"a": &fakeSource{shutdownErr: errors.New("a failed"), shutdownN: &shutdownCount},
			"b": &fakeSource{shutdownN: &shutdownCount},
		},
	}
	inst := New(cfg, resources, nil)
	require.NoError(t, inst.Initialize(context.Background()))
	inst.Activate()

	err := inst.Shutdown(context.Background())
	require.Error(t, err)
	assert.Equal(t, 2, shutdownCount)
	assert.Equal(t, StateRemoved, inst.State())
}

func TestInstanceTransformDefAndImplLookup(t *testing.T) {
	cfg := config.Module{
		Name:       "m",
		Transforms: []config.TransformDef{{Name: "dedup", Type: "package"}},
	}
	resources := Resources{Transforms: map[string]plugin.Transform{"dedup": &fakeTransform{}}}
	inst := New(cfg, resources, nil)

	def, ok := inst.TransformDef("dedup")
	require.True(t, ok)
	assert.Equal(t, "package", def.Type)

	impl, ok := inst.TransformImpl("dedup")
	require.True(t, ok)
	assert.NotNil(t, impl)

	_, ok = inst.TransformDef("nonexistent")
	assert.False(t, ok)
}

func TestInstanceHealthPerSourceIsIndependent(t *testing.T) {
	cfg := config.Module{
		Name: "m",
		Sources: []config.SourceInstance{
			{ID: "a", CircuitBreaker: &config.CircuitBreakerConfig{FailureThreshold: 1}},
			{ID: "b"},
		},
	}
	inst := New(cfg, Resources{}, nil)

	ha := inst.Health("a")
	hb := inst.Health("b")
	require.NotNil(t, ha)
	require.NotNil(t, hb)

	ha.RecordFailure("boom")
	assert.Equal(t, StatusUnhealthy, ha.Status)
	assert.Equal(t, StatusHealthy, hb.Status)
}

func TestInstanceSnapshotReflectsState(t *testing.T) {
	inst := New(config.Module{Name: "m", Sources: []config.SourceInstance{{ID: "a"}}}, Resources{}, nil)
	inst.Activate()

	snap := inst.Snapshot()
	assert.Equal(t, "m", snap.Name)
	assert.Equal(t, StateActive, snap.State)
	assert.Contains(t, snap.Sources, "a")
}
