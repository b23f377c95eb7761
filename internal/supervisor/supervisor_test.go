package supervisor

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRunReturnsNilOnCleanExit(t *testing.T) {
	s := New(Config{Command: []string{"sh", "-c", "exit 0"}})
	err := s.Run(context.Background())
	assert.NoError(t, err)
}

// TestRunDeclaresCrashLoop exercises the sliding-window crash-loop
// policy: a child that exits non-zero immediately, every time, must
// trip the crash-loop detector within MaxRestarts attempts.
func TestRunDeclaresCrashLoop(t *testing.T) {
	var crashed bool
	s := New(Config{
		Command:        []string{"sh", "-c", "exit 1"},
		InitialBackoff: time.Millisecond,
		MaxBackoff:     2 * time.Millisecond,
		Window:         time.Minute,
		MaxRestarts:    3,
		OnCrashLoop:    func() { crashed = true },
	})

	err := s.Run(context.Background())
	require.Error(t, err)
	assert.True(t, crashed)
}

func TestRunRespectsContextCancellation(t *testing.T) {
	s := New(Config{
		Command:        []string{"sh", "-c", "exit 1"},
		InitialBackoff: 50 * time.Millisecond,
		MaxBackoff:     50 * time.Millisecond,
		MaxRestarts:    1000,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Millisecond)
	defer cancel()

	err := s.Run(ctx)
	require.Error(t, err)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestRunWritesAndRemovesPIDFile(t *testing.T) {
	pidFile := filepath.Join(t.TempDir(), "supervisor.pid")
	s := New(Config{Command: []string{"sh", "-c", "exit 0"}, PIDFile: pidFile})

	require.NoError(t, s.Run(context.Background()))
	_, err := os.Stat(pidFile)
	assert.True(t, os.IsNotExist(err))
}

func TestStopTerminatesRunningChild(t *testing.T) {
	s := New(Config{Command: []string{"sh", "-c", "sleep 30"}})

	done := make(chan error, 1)
	go func() { done <- s.Run(context.Background()) }()

	time.Sleep(100 * time.Millisecond)
	s.Stop()

	select {
	case err := <-done:
		assert.Error(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("supervisor did not stop the child in time")
	}
}

func TestRecordAbnormalExitResetsBackoffAfterStableUptime(t *testing.T) {
	s := New(Config{
		InitialBackoff:  10 * time.Millisecond,
		MaxBackoff:      time.Second,
		StableThreshold: 50 * time.Millisecond,
		Window:          time.Minute,
		MaxRestarts:     100,
	})

	_, wait1 := s.recordAbnormalExit(5 * time.Millisecond)
	assert.Equal(t, 10*time.Millisecond, wait1)

	_, wait2 := s.recordAbnormalExit(5 * time.Millisecond)
	assert.Equal(t, 20*time.Millisecond, wait2)

	// A stable run (uptime >= StableThreshold) resets backoff to initial.
	_, wait3 := s.recordAbnormalExit(100 * time.Millisecond)
	assert.Equal(t, 10*time.Millisecond, wait3)
}

func TestRecordAbnormalExitCapsBackoffAtMax(t *testing.T) {
	s := New(Config{
		InitialBackoff: 10 * time.Millisecond,
		MaxBackoff:     15 * time.Millisecond,
		Window:         time.Minute,
		MaxRestarts:    100,
	})

	_, _ = s.recordAbnormalExit(0)
	_, wait := s.recordAbnormalExit(0)
	assert.LessOrEqual(t, wait, 15*time.Millisecond)
}
