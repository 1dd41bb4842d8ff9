package merr

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/mediocregopher/tinyredis/mctx"
)

func TestWrapNil(t *testing.T) {
	assert.Nil(t, Wrap(context.Background(), nil))
}

func TestWrapAnnotations(t *testing.T) {
	ctx := mctx.Annotate(context.Background(), "key", "k1")
	err := New(ctx, "something broke")
	assert.Contains(t, err.Error(), "something broke")
	assert.Contains(t, err.Error(), "key: k1")
}

func TestWrapIsAs(t *testing.T) {
	orig := errors.New("boom")
	wrapped := Wrap(context.Background(), orig)
	assert.True(t, errors.Is(wrapped, orig))

	var e Error
	assert.True(t, errors.As(wrapped, &e))
	assert.Equal(t, orig, e.Err)
}

func TestWrapTwiceMergesContext(t *testing.T) {
	orig := errors.New("boom")
	ctx1 := mctx.Annotate(context.Background(), "a", "1")
	ctx2 := mctx.Annotate(context.Background(), "b", "2")

	wrapped := Wrap(ctx1, orig)
	wrapped = Wrap(ctx2, wrapped)

	assert.Contains(t, wrapped.Error(), "a: 1")
	assert.Contains(t, wrapped.Error(), "b: 2")
}
