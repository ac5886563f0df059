package state

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testEnv(t *testing.T) (*Env, chan func(*State) error) {
	t.Helper()
	ctx, cancel := context.WithCancelCause(context.Background())
	t.Cleanup(func() { cancel(context.Canceled) })
	dispatch := make(chan func(*State) error, 64)
	return &Env{
		Context:         ctx,
		Cancel:          cancel,
		DispatchChannel: dispatch,
		Clock:           clock.NewMock(),
	}, dispatch
}

func TestDispatchQueues(t *testing.T) {
	env, dispatch := testEnv(t)
	s := &State{Env: env}

	ran := false
	env.Dispatch(func(*State) error {
		ran = true
		return nil
	})

	f := <-dispatch
	require.NoError(t, f(s))
	assert.True(t, ran)
}

func TestDispatchWait(t *testing.T) {
	env, dispatch := testEnv(t)
	s := &State{Env: env}

	go func() {
		f := <-dispatch
		_ = f(s)
	}()

	res, err := env.DispatchWait(func(*State) (any, error) {
		return 42, nil
	})
	require.NoError(t, err)
	assert.Equal(t, 42, res)
}

func TestDispatchWaitPropagatesError(t *testing.T) {
	env, dispatch := testEnv(t)
	s := &State{Env: env}
	boom := errors.New("boom")

	go func() {
		f := <-dispatch
		_ = f(s)
	}()

	_, err := env.DispatchWait(func(*State) (any, error) {
		return nil, boom
	})
	assert.ErrorIs(t, err, boom)
}

func TestDispatchWaitUnblocksOnCancel(t *testing.T) {
	env, _ := testEnv(t)

	// Nothing consumes the channel; cancellation must unblock the caller.
	go func() {
		time.Sleep(10 * time.Millisecond)
		env.Cancel(context.Canceled)
	}()
	_, err := env.DispatchWait(func(*State) (any, error) {
		return nil, nil
	})
	assert.Error(t, err)
}

func TestScheduleTaskFiresOnce(t *testing.T) {
	env, dispatch := testEnv(t)
	clk := env.Clock.(*clock.Mock)

	env.ScheduleTask(func(*State) error { return nil }, time.Second)
	assert.Empty(t, dispatch)

	clk.Add(2 * time.Second)
	require.Eventually(t, func() bool { return len(dispatch) == 1 }, time.Second, time.Millisecond)
	clk.Add(10 * time.Second)
	time.Sleep(10 * time.Millisecond)
	assert.Len(t, dispatch, 1)
}

func TestRepeatTaskKeepsFiring(t *testing.T) {
	env, dispatch := testEnv(t)
	clk := env.Clock.(*clock.Mock)

	env.RepeatTask(func(*State) error { return nil }, time.Second)

	deadline := time.After(5 * time.Second)
	seen := 0
	for seen < 3 {
		select {
		case <-dispatch:
			seen++
		case <-deadline:
			t.Fatalf("only %d ticks dispatched", seen)
		default:
			clk.Add(time.Second)
			time.Sleep(time.Millisecond)
		}
	}
}
