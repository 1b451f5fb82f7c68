package rollover

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/waggleboard/waggle/pkg/board"
)

// fakeArchiver records transition calls and can be told to fail or stall.
type fakeArchiver struct {
	mu     sync.Mutex
	calls  []string
	result board.TransitionResult
	err    error
	delay  time.Duration
}

func (f *fakeArchiver) ArchiveWeek(ctx context.Context, monday string) (board.TransitionResult, error) {
	f.mu.Lock()
	f.calls = append(f.calls, monday)
	result, err, delay := f.result, f.err, f.delay
	f.mu.Unlock()

	if delay > 0 {
		time.Sleep(delay)
	}
	return result, err
}

func (f *fakeArchiver) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.calls)
}

func (f *fakeArchiver) setErr(err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.err = err
}

// memMarkers is an in-memory MarkerStore.
type memMarkers struct {
	mu     sync.Mutex
	marker string
}

func (m *memMarkers) TransitionMarker() (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.marker, nil
}

func (m *memMarkers) SetTransitionMarker(monday string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.marker = monday
	return nil
}

func testEngine(archiver *fakeArchiver, markers *memMarkers, now *time.Time) *Engine {
	return New(archiver, markers, Schedule{Weekday: time.Friday, Hour: 17}, Options{
		Now: func() time.Time { return *now },
	})
}

func TestTickOnceFiresExactlyOnce(t *testing.T) {
	archiver := &fakeArchiver{result: board.TransitionResult{ArchivedCount: 3, CarriedOverCount: 2}}
	markers := &memMarkers{}

	// Friday 2026-08-28, 17:05.
	now := at(2026, time.August, 28, 17).Add(5 * time.Minute)
	engine := testEngine(archiver, markers, &now)

	engine.TickOnce(context.Background())
	assert.Equal(t, 1, archiver.callCount())
	marker, _ := markers.TransitionMarker()
	assert.Equal(t, "2026-08-24", marker)

	// One minute later the marker short-circuits the tick.
	now = now.Add(time.Minute)
	engine.TickOnce(context.Background())
	assert.Equal(t, 1, archiver.callCount())

	// Still once for the rest of the evening.
	now = now.Add(3 * time.Hour)
	engine.TickOnce(context.Background())
	assert.Equal(t, 1, archiver.callCount())
}

func TestTickOnceRespectsSchedule(t *testing.T) {
	archiver := &fakeArchiver{}
	markers := &memMarkers{}

	t.Run("wrong day", func(t *testing.T) {
		now := at(2026, time.August, 27, 18) // Thursday
		testEngine(archiver, markers, &now).TickOnce(context.Background())
		assert.Zero(t, archiver.callCount())
	})

	t.Run("right day, too early", func(t *testing.T) {
		now := at(2026, time.August, 28, 16) // Friday 16:00
		testEngine(archiver, markers, &now).TickOnce(context.Background())
		assert.Zero(t, archiver.callCount())
	})
}

func TestTickOnceRetriesAfterFailure(t *testing.T) {
	archiver := &fakeArchiver{err: fmt.Errorf("redis unavailable")}
	markers := &memMarkers{}

	now := at(2026, time.August, 28, 17)
	engine := testEngine(archiver, markers, &now)

	engine.TickOnce(context.Background())
	assert.Equal(t, 1, archiver.callCount())
	marker, _ := markers.TransitionMarker()
	assert.Empty(t, marker, "marker must not be written on failure")

	// Next tick inside the window retries and succeeds.
	archiver.setErr(nil)
	now = now.Add(time.Minute)
	engine.TickOnce(context.Background())
	assert.Equal(t, 2, archiver.callCount())
	marker, _ = markers.TransitionMarker()
	assert.Equal(t, "2026-08-24", marker)
}

func TestTransitionToNextWeek(t *testing.T) {
	t.Run("manual run bypasses the day gate", func(t *testing.T) {
		archiver := &fakeArchiver{result: board.TransitionResult{ArchivedCount: 1}}
		markers := &memMarkers{}
		now := at(2026, time.August, 26, 12) // Wednesday
		engine := testEngine(archiver, markers, &now)

		result, err := engine.TransitionToNextWeek(context.Background())
		require.NoError(t, err)
		assert.Equal(t, 1, result.ArchivedCount)
		assert.Equal(t, 1, archiver.callCount())
	})

	t.Run("manual run excludes the automatic one for the week", func(t *testing.T) {
		archiver := &fakeArchiver{}
		markers := &memMarkers{}
		now := at(2026, time.August, 26, 12)
		engine := testEngine(archiver, markers, &now)

		_, err := engine.TransitionToNextWeek(context.Background())
		require.NoError(t, err)

		// Friday 17:00 comes around; the marker already covers this week.
		now = at(2026, time.August, 28, 17)
		engine.TickOnce(context.Background())
		assert.Equal(t, 1, archiver.callCount())
	})

	t.Run("concurrent triggers converge to one transition", func(t *testing.T) {
		archiver := &fakeArchiver{delay: 100 * time.Millisecond, result: board.TransitionResult{ArchivedCount: 2}}
		markers := &memMarkers{}
		now := at(2026, time.August, 28, 17)
		engine := testEngine(archiver, markers, &now)

		var wg sync.WaitGroup
		for i := 0; i < 2; i++ {
			wg.Add(1)
			go func() {
				defer wg.Done()
				_, err := engine.TransitionToNextWeek(context.Background())
				assert.NoError(t, err)
			}()
		}
		wg.Wait()

		// The loser of the race re-read the marker inside the critical
		// section and bailed out without archiving.
		assert.Equal(t, 1, archiver.callCount())
	})
}

func TestEngineRun(t *testing.T) {
	archiver := &fakeArchiver{}
	markers := &memMarkers{}
	now := at(2026, time.August, 28, 17)

	engine := New(archiver, markers, Schedule{Weekday: time.Friday, Hour: 17}, Options{
		Tick: 10 * time.Millisecond,
		Now:  func() time.Time { return now },
	})

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		_ = engine.Run(ctx)
		close(done)
	}()

	assert.Eventually(t, func() bool { return archiver.callCount() == 1 }, time.Second, 5*time.Millisecond)

	cancel()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Run did not stop on context cancellation")
	}
}

func TestDisplayMonday(t *testing.T) {
	archiver := &fakeArchiver{}
	markers := &memMarkers{}
	now := at(2026, time.August, 28, 18)
	engine := testEngine(archiver, markers, &now)

	assert.Equal(t, "2026-08-24", engine.DisplayMonday(now))

	require.NoError(t, markers.SetTransitionMarker("2026-08-24"))
	assert.Equal(t, "2026-08-31", engine.DisplayMonday(now))
}
