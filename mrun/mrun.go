// Package mrun provides lightweight tracking of goroutines spawned against an
// mctx.Context tree, so that a parent can wait for every goroutine spawned
// under it (and its children) to finish, bounded by an optional cancel
// channel.
package mrun

import (
	"context"
	"errors"
	"sync"
)

type futureErr struct {
	done chan struct{}
	err  error
}

func newFutureErr() *futureErr {
	return &futureErr{done: make(chan struct{})}
}

func (fe *futureErr) get(cancelCh <-chan struct{}) (error, bool) {
	select {
	case <-fe.done:
		return fe.err, true
	case <-cancelCh:
		return nil, false
	}
}

func (fe *futureErr) set(err error) {
	fe.err = err
	close(fe.done)
}

// registry tracks the futureErrs and parent/child links created by Track and
// Thread, keyed by the Context value itself.
type registry struct {
	l        sync.Mutex
	byCtx    map[context.Context][]*futureErr
	children map[context.Context][]context.Context
	parentOf map[context.Context]context.Context
}

var reg = &registry{
	byCtx:    map[context.Context][]*futureErr{},
	children: map[context.Context][]context.Context{},
	parentOf: map[context.Context]context.Context{},
}

func (r *registry) addThread(ctx context.Context, fe *futureErr) {
	r.l.Lock()
	defer r.l.Unlock()
	r.byCtx[ctx] = append(r.byCtx[ctx], fe)
}

func (r *registry) addChild(parent, child context.Context) {
	r.l.Lock()
	defer r.l.Unlock()
	r.children[parent] = append(r.children[parent], child)
	r.parentOf[child] = parent
}

func (r *registry) threadsOf(ctx context.Context) []*futureErr {
	r.l.Lock()
	defer r.l.Unlock()
	out := make([]*futureErr, len(r.byCtx[ctx]))
	copy(out, r.byCtx[ctx])
	return out
}

func (r *registry) childrenOf(ctx context.Context) []context.Context {
	r.l.Lock()
	defer r.l.Unlock()
	out := make([]context.Context, len(r.children[ctx]))
	copy(out, r.children[ctx])
	return out
}

// reap forgets ctx entirely once it (and anything spawned under it) is known
// to be done, so that a long-running parent (e.g. the listener) doesn't
// accumulate state for every connection it has ever handled.
func (r *registry) reap(ctx context.Context) {
	r.l.Lock()
	defer r.l.Unlock()
	for _, fe := range r.byCtx[ctx] {
		select {
		case <-fe.done:
		default:
			return // another thread spawned against ctx is still running
		}
	}
	delete(r.byCtx, ctx)
	delete(r.children, ctx)
	if parent, ok := r.parentOf[ctx]; ok {
		siblings := r.children[parent]
		for i, c := range siblings {
			if c == ctx {
				r.children[parent] = append(siblings[:i], siblings[i+1:]...)
				break
			}
		}
		delete(r.parentOf, ctx)
	}
}

// Track registers child as a descendant of parent for the purposes of Wait.
// It does not otherwise modify either Context. Callers which build their
// mctx.Context tree with mctx.NewChild should call Track with the same
// parent/child pair so Wait(parent, ...) also waits on threads spawned
// against child.
func Track(parent, child context.Context) {
	reg.addChild(parent, child)
}

// Thread spawns a goroutine running fn(ctx). Its completion (and any error it
// returns) becomes visible to Wait(ctx, ...) and to Wait calls against any
// ancestor of ctx which was linked in via Track. Once every thread spawned
// against ctx has returned, ctx is reaped from the registry, so a Context
// used for one logical unit of work (e.g. one per accepted connection)
// leaves nothing behind.
//
// Reaping happens right after the last such fn returns, so a Wait racing
// that exact moment could in principle see ctx as already gone rather than
// observe fn's error.
// Every caller here logs its own failures and always returns nil to Thread,
// using Wait purely for shutdown sequencing, so that race has no observable
// effect in this codebase.
func Thread(ctx context.Context, fn func(context.Context) error) {
	fe := newFutureErr()
	reg.addThread(ctx, fe)
	go func() {
		err := fn(ctx)
		fe.set(err)
		reg.reap(ctx)
	}()
}

// ErrCanceled is returned by Wait if cancelCh is closed before every thread
// it's waiting on has finished.
var ErrCanceled = errors.New("mrun: canceled before all threads finished")

// Wait blocks until every goroutine spawned via Thread against ctx, and
// against every descendant linked in via Track, has returned. If any of them
// returned a non-nil error, one such error is returned (which one is
// unspecified if more than one failed).
//
// If cancelCh is non-nil and is closed before all threads finish, Wait stops
// waiting early and returns ErrCanceled.
func Wait(ctx context.Context, cancelCh <-chan struct{}) error {
	for _, child := range reg.childrenOf(ctx) {
		if err := Wait(child, cancelCh); err != nil {
			return err
		}
	}

	for _, fe := range reg.threadsOf(ctx) {
		err, ok := fe.get(cancelCh)
		if !ok {
			return ErrCanceled
		} else if err != nil {
			return err
		}
	}
	return nil
}
