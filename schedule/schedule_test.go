package schedule

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/xerrors"

	"github.com/soter-security/soter/utils"
)

var now = time.Date(2019, 6, 1, 12, 0, 0, 0, time.UTC)

func clock() time.Time { return now }

func TestScheduler_Wait(t *testing.T) {
	tests := []struct {
		name     string
		lastRun  *time.Time
		stateDir string
		want     time.Duration
	}{
		{
			name: "no state",
		},
		{
			name:     "never ran",
			stateDir: "/state",
		},
		{
			name:     "ran recently",
			stateDir: "/state",
			lastRun:  func() *time.Time { t := now.Add(-time.Hour); return &t }(),
			want:     11 * time.Hour,
		},
		{
			name:     "restarted shortly before due",
			stateDir: "/state",
			lastRun:  func() *time.Time { t := now.Add(-11*time.Hour - 30*time.Minute); return &t }(),
			want:     30 * time.Minute,
		},
		{
			name:     "due now",
			stateDir: "/state",
			lastRun:  func() *time.Time { t := now.Add(-12 * time.Hour); return &t }(),
		},
		{
			name:     "overdue",
			stateDir: "/state",
			lastRun:  func() *time.Time { t := now.Add(-13 * time.Hour); return &t }(),
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			fs := afero.NewMemMapFs()
			if tt.lastRun != nil {
				err := utils.NewFs(fs).SetLastUpdatedDate("/state/last_updated.json", "scan", *tt.lastRun)
				require.NoError(t, err)
			}

			opts := []option{WithFs(fs), withClock(clock)}
			if tt.stateDir != "" {
				opts = append(opts, WithStateDir(tt.stateDir))
			}
			s := NewScheduler(DefaultInterval, func() error { return nil }, opts...)
			assert.Equal(t, tt.want, s.wait())
		})
	}
}

func TestScheduler_Run(t *testing.T) {
	fs := afero.NewMemMapFs()
	job := func() error { return nil }
	s := NewScheduler(time.Hour, job, WithFs(fs), WithStateDir("/state"), withClock(clock))
	s.run()

	got, err := utils.NewFs(fs).GetLastUpdatedDate("/state/last_updated.json", "scan")
	require.NoError(t, err)
	assert.True(t, got.Equal(now), got)
	assert.Equal(t, time.Hour, s.wait())
}

func TestScheduler_RunError(t *testing.T) {
	fs := afero.NewMemMapFs()
	job := func() error { return xerrors.New("a scan is already running") }
	s := NewScheduler(time.Hour, job, WithFs(fs), WithStateDir("/state"), withClock(clock))
	s.run()

	exists, err := afero.Exists(fs, "/state/last_updated.json")
	require.NoError(t, err)
	assert.False(t, exists)
}

func TestScheduler_Start(t *testing.T) {
	var runs atomic.Int32
	s := NewScheduler(5*time.Millisecond, func() error {
		runs.Add(1)
		return nil
	})

	ctx, cancel := context.WithCancel(context.Background())
	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		s.Start(ctx)
	}()

	require.Eventually(t, func() bool { return runs.Load() >= 3 }, time.Second, time.Millisecond)
	cancel()
	wg.Wait()

	stopped := runs.Load()
	time.Sleep(20 * time.Millisecond)
	assert.Equal(t, stopped, runs.Load())
}

func TestScheduler_StartAfterRestart(t *testing.T) {
	fs := afero.NewMemMapFs()
	interval := time.Hour
	last := time.Now().Add(-interval + 200*time.Millisecond)
	require.NoError(t, utils.NewFs(fs).SetLastUpdatedDate("/state/last_updated.json", "scan", last))

	var runs atomic.Int32
	s := NewScheduler(interval, func() error {
		runs.Add(1)
		return nil
	}, WithFs(fs), WithStateDir("/state"))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go s.Start(ctx)

	// the next run is due at last+interval, not a full interval after the restart
	assert.Never(t, func() bool { return runs.Load() > 0 }, 50*time.Millisecond, 5*time.Millisecond)
	require.Eventually(t, func() bool { return runs.Load() == 1 }, 2*time.Second, 5*time.Millisecond)
}

func TestScheduler_StartCancelledWhileWaiting(t *testing.T) {
	fs := afero.NewMemMapFs()
	require.NoError(t, utils.NewFs(fs).SetLastUpdatedDate("/state/last_updated.json", "scan", time.Now()))

	var runs atomic.Int32
	s := NewScheduler(time.Hour, func() error {
		runs.Add(1)
		return nil
	}, WithFs(fs), WithStateDir("/state"))

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		defer close(done)
		s.Start(ctx)
	}()
	cancel()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Start did not return after cancel")
	}
	assert.Zero(t, runs.Load())
}

func TestNewScheduler_DefaultInterval(t *testing.T) {
	s := NewScheduler(0, func() error { return nil })
	assert.Equal(t, 12*time.Hour, s.interval)
}
