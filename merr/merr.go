// Package merr extends the errors package with contextual annotations
// (courtesy of mctx) and embedded stack traces.
//
// As is generally recommended for Go projects, errors.Is and errors.As should
// be used for equality checking; Error implements Unwrap so the wrapped error
// remains reachable.
package merr

import (
	"context"
	"errors"
	"strings"

	"github.com/mediocregopher/tinyredis/mctx"
)

// Error wraps an error with the mctx.Context annotations which were active
// at the point it was wrapped, plus a stack trace of that point.
type Error struct {
	Err        error
	Ctx        context.Context
	Stacktrace Stacktrace
}

// Error implements the error interface, rendering the wrapped error's
// message followed by its annotations, one per line.
func (e Error) Error() string {
	var sb strings.Builder
	sb.WriteString(strings.TrimSpace(e.Err.Error()))

	kvs := mctx.StringSlice(e.Ctx)
	for _, kv := range kvs {
		sb.WriteString("\n\t* ")
		sb.WriteString(kv[0])
		sb.WriteString(": ")
		sb.WriteString(kv[1])
	}
	if line := e.Stacktrace.String(); line != "" {
		sb.WriteString("\n\t* line: ")
		sb.WriteString(line)
	}
	return sb.String()
}

// Unwrap implements the interface used by errors.Is/errors.As.
func (e Error) Unwrap() error {
	return e.Err
}

// WrapSkip is like Wrap but allows skipping extra stack frames when
// embedding the stack trace, for helpers which themselves call Wrap.
func WrapSkip(ctx context.Context, err error, skip int) error {
	if err == nil {
		return nil
	}

	var existing Error
	if errors.As(err, &existing) {
		if _, direct := err.(Error); !direct {
			existing.Err = err
		}
		existing.Ctx = mctx.Annotate(existing.Ctx)
		for _, a := range mctx.Annotations(ctx) {
			existing.Ctx = mctx.Annotate(existing.Ctx, a.Key, a.Value)
		}
		return existing
	}

	return Error{
		Err:        err,
		Ctx:        ctx,
		Stacktrace: newStacktrace(skip + 1),
	}
}

// Wrap returns a copy of err wrapped in an Error carrying ctx's annotations
// and a stack trace of the call site. Wrapping nil returns nil. If err is
// already an Error its context is merged with ctx rather than nesting.
func Wrap(ctx context.Context, err error) error {
	return WrapSkip(ctx, err, 1)
}

// New is shorthand for WrapSkip(ctx, errors.New(s), 1).
func New(ctx context.Context, s string) error {
	return WrapSkip(ctx, errors.New(s), 1)
}
