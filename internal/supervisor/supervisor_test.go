package supervisor

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestRunCompletesAndDisarmsTimer(t *testing.T) {
	t.Parallel()

	exited := make(chan int, 1)
	s := NewWithExit(50*time.Millisecond, zap.NewNop(), func(code int) {
		exited <- code
	})

	err := s.Run(context.Background(), func(context.Context) error {
		return nil
	})
	require.NoError(t, err)
	require.Equal(t, StateCompleted, s.State())

	// The timer was stopped before exit; it must never fire afterwards.
	select {
	case code := <-exited:
		t.Fatalf("deadline fired after normal completion with code %d", code)
	case <-time.After(150 * time.Millisecond):
	}
}

func TestRunKillsOnDeadline(t *testing.T) {
	t.Parallel()

	exited := make(chan int, 1)
	release := make(chan struct{})
	s := NewWithExit(30*time.Millisecond, zap.NewNop(), func(code int) {
		exited <- code
	})

	go func() {
		_ = s.Run(context.Background(), func(context.Context) error {
			<-release
			return nil
		})
	}()

	select {
	case code := <-exited:
		require.Equal(t, KillExitCode, code)
	case <-time.After(time.Second):
		t.Fatal("deadline never fired")
	}
	require.Equal(t, StateKilled, s.State())
	close(release)
}

func TestRunPropagatesError(t *testing.T) {
	t.Parallel()

	s := NewWithExit(time.Minute, zap.NewNop(), func(int) {})
	err := s.Run(context.Background(), func(context.Context) error {
		return context.DeadlineExceeded
	})
	require.ErrorIs(t, err, context.DeadlineExceeded)
}
