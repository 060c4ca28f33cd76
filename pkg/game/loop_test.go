package game

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/chenBenjamin97/shot-analyzer/pkg/session"
	"github.com/chenBenjamin97/shot-analyzer/pkg/trajectory"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func runLoop(t *testing.T, o *Orchestrator) (*Loop, context.CancelFunc) {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())
	l := NewLoop(o, 16)
	go l.Run(ctx)
	return l, cancel
}

func TestLoop_Do(t *testing.T) {
	l, cancel := runLoop(t, New(DefaultConfig()))
	defer cancel()

	ctx := context.Background()
	require.NoError(t, l.Do(ctx, func(o *Orchestrator) error { return o.Start() }))

	var state session.State
	require.NoError(t, l.Do(ctx, func(o *Orchestrator) error {
		state, _ = o.State()
		return nil
	}))
	assert.Equal(t, session.SetupCamera, state)

	err := l.Do(ctx, func(o *Orchestrator) error { return o.Finish() })
	assert.ErrorIs(t, err, session.ErrInvalidTransition)
}

func TestLoop_Stopped(t *testing.T) {
	l, cancel := runLoop(t, New(DefaultConfig()))
	cancel()

	assert.Eventually(t, func() bool {
		err := l.Do(context.Background(), func(*Orchestrator) error { return nil })
		return err == ErrLoopStopped
	}, time.Second, 5*time.Millisecond)
}

func TestLoop_ContextCancelled(t *testing.T) {
	l := NewLoop(New(DefaultConfig()), 0) //never run

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()
	err := l.Do(ctx, func(*Orchestrator) error { return nil })
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

//Concurrent producers and resets must never leave partially recorded shots behind
func TestLoop_ConcurrentFramesAndReset(t *testing.T) {
	o, _ := tracking(t, DefaultConfig())
	l, cancel := runLoop(t, o)
	defer cancel()

	ctx := context.Background()
	var wg sync.WaitGroup

	for p := 0; p < 4; p++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := 0; i < 25; i++ {
				for _, c := range []trajectory.Candidate{launch, apex, dropIn} {
					_ = l.Do(ctx, func(o *Orchestrator) error {
						return o.TrajectoryCandidates([]trajectory.Candidate{c})
					})
				}
				for j := 0; j < 11; j++ {
					_ = l.Do(ctx, func(o *Orchestrator) error { return o.TrajectoryCandidates(nil) })
				}
			}
		}()
	}

	wg.Add(1)
	go func() {
		defer wg.Done()
		for i := 0; i < 10; i++ {
			_ = l.Do(ctx, func(o *Orchestrator) error {
				o.Reset()
				if err := o.Start(); err != nil {
					return err
				}
				if err := o.CameraReady(1000, 800); err != nil {
					return err
				}
				if err := o.HoopDetected(hoopRect, 0.95, contourBox); err != nil {
					return err
				}
				return o.PlayerDetected(playerRect, 0.9)
			})
			time.Sleep(time.Millisecond)
		}
	}()

	wg.Wait()

	require.NoError(t, l.Do(ctx, func(o *Orchestrator) error {
		assertStatsLockstep(t, o)
		o.Reset()
		s, _ := o.State()
		assert.Equal(t, session.Inactive, s)
		assert.Equal(t, 0, o.Stats().ShotCount)
		return nil
	}))
}
