package mrun

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mediocregopher/tinyredis/mctx"
)

func TestThreadWaitSuccess(t *testing.T) {
	ctx := mctx.NewChild(context.Background(), "test")
	done := make(chan struct{})
	Thread(ctx, func(context.Context) error {
		close(done)
		return nil
	})

	require.NoError(t, Wait(ctx, nil))
	select {
	case <-done:
	default:
		t.Fatal("Wait returned before thread ran")
	}
}

func TestThreadWaitPropagatesError(t *testing.T) {
	ctx := mctx.NewChild(context.Background(), "test")
	boom := errors.New("boom")
	started := make(chan struct{})
	Thread(ctx, func(context.Context) error {
		<-started
		return boom
	})
	close(started)

	assert.Equal(t, boom, Wait(ctx, nil))
}

func TestWaitTracksChildren(t *testing.T) {
	parent := mctx.NewChild(context.Background(), "parent")
	child := mctx.NewChild(parent, "child")
	Track(parent, child)

	ran := make(chan struct{})
	Thread(child, func(context.Context) error {
		close(ran)
		return nil
	})

	require.NoError(t, Wait(parent, nil))
	select {
	case <-ran:
	default:
		t.Fatal("Wait(parent) did not wait for child's thread")
	}
}

func TestWaitCanceled(t *testing.T) {
	ctx := mctx.NewChild(context.Background(), "test")
	block := make(chan struct{})
	Thread(ctx, func(context.Context) error {
		<-block
		return nil
	})
	defer close(block)

	cancelCh := make(chan struct{})
	close(cancelCh)

	assert.Equal(t, ErrCanceled, Wait(ctx, cancelCh))
}

func TestMultipleThreadsOnSameContext(t *testing.T) {
	ctx := mctx.NewChild(context.Background(), "test")
	n := 5
	var count int32
	for i := 0; i < n; i++ {
		Thread(ctx, func(context.Context) error {
			time.Sleep(time.Millisecond)
			atomic.AddInt32(&count, 1)
			return nil
		})
	}
	require.NoError(t, Wait(ctx, nil))
	assert.EqualValues(t, n, atomic.LoadInt32(&count))
}
