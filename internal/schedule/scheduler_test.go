package schedule

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// TestAddSourceFiresImmediatelyWhenRunning is the scheduler
// immediate-fire property: a source added after Start fires its first
// tick synchronously, without waiting out its interval.
func TestAddSourceFiresImmediatelyWhenRunning(t *testing.T) {
	s := New()
	fired := make(chan string, 1)
	s.Start(func(sourceID, moduleName string) { fired <- sourceID })

	s.AddSource("src-1", "mod-1", time.Hour)

	select {
	case id := <-fired:
		assert.Equal(t, "src-1", id)
	case <-time.After(time.Second):
		t.Fatal("source did not fire immediately")
	}
}

func TestStartFiresAllPreregisteredSourcesImmediately(t *testing.T) {
	s := New()
	s.AddSource("src-1", "mod-1", time.Hour)
	s.AddSource("src-2", "mod-1", time.Hour)

	var mu sync.Mutex
	seen := map[string]bool{}
	done := make(chan struct{})
	s.Start(func(sourceID, moduleName string) {
		mu.Lock()
		seen[sourceID] = true
		if len(seen) == 2 {
			close(done)
		}
		mu.Unlock()
	})

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("not all sources fired")
	}
}

func TestRemoveSourceStopsFurtherTicks(t *testing.T) {
	s := New()
	count := 0
	var mu sync.Mutex
	s.Start(func(sourceID, moduleName string) {
		mu.Lock()
		count++
		mu.Unlock()
	})
	s.AddSource("src-1", "mod-1", 10*time.Millisecond)
	time.Sleep(30 * time.Millisecond)
	s.RemoveSource("src-1")

	mu.Lock()
	countAtRemoval := count
	mu.Unlock()

	time.Sleep(50 * time.Millisecond)

	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, countAtRemoval, count)
}

func TestRemoveSourcesOnlyAffectsOwningModule(t *testing.T) {
	s := New()
	s.Start(func(sourceID, moduleName string) {})
	s.AddSource("src-a", "mod-a", time.Hour)
	s.AddSource("src-b", "mod-b", time.Hour)

	s.RemoveSources("mod-a")

	s.mu.Lock()
	_, hasA := s.entries["src-a"]
	_, hasB := s.entries["src-b"]
	s.mu.Unlock()
	assert.False(t, hasA)
	assert.True(t, hasB)

	// Re-adding src-a after its removal is accepted.
	s.AddSource("src-a", "mod-a", time.Hour)
	s.Stop()
}

func TestPanickingCallbackDoesNotStopScheduler(t *testing.T) {
	s := New()
	var calls int
	var mu sync.Mutex
	s.Start(func(sourceID, moduleName string) {
		mu.Lock()
		calls++
		mu.Unlock()
		if sourceID == "bad" {
			panic("boom")
		}
	})

	s.AddSource("bad", "mod", time.Hour)
	s.AddSource("good", "mod", time.Hour)

	require.Eventually(t, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return calls == 2
	}, time.Second, 5*time.Millisecond)
}

func TestStopCancelsAllTimers(t *testing.T) {
	s := New()
	var calls int
	var mu sync.Mutex
	s.Start(func(sourceID, moduleName string) {
		mu.Lock()
		calls++
		mu.Unlock()
	})
	s.AddSource("src-1", "mod-1", 5*time.Millisecond)
	time.Sleep(20 * time.Millisecond)
	s.Stop()

	mu.Lock()
	afterStop := calls
	mu.Unlock()
	time.Sleep(30 * time.Millisecond)

	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, afterStop, calls)
}
