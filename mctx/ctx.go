// Package mctx extends the builtin context package to organize Contexts into
// a hierarchy and to carry annotation data useful for logging and errors.
//
// Each node in the hierarchy is given a name and is aware of all of its
// ancestors. The sequence of ancestors' names, ending in the node's own name,
// is called its path.
//
//	ctx := context.Background()
//	connCtx := mctx.NewChild(ctx, "127.0.0.1:51234")
//	fmt.Println(mctx.Path(connCtx)) // [127.0.0.1:51234]
package mctx

import (
	"context"
)

type ancestryKey int

const (
	ancestryKeyParent ancestryKey = iota
	ancestryKeyPath
)

// Path returns the sequence of names which were used to produce this Context
// via NewChild. If this Context wasn't produced by NewChild this returns nil.
func Path(ctx context.Context) []string {
	path, _ := ctx.Value(ancestryKeyPath).([]string)
	return path
}

func pathCP(ctx context.Context) []string {
	path := Path(ctx)
	out := make([]string, len(path), len(path)+1)
	copy(out, path)
	return out
}

// Name returns the name this Context was created with via NewChild, or false
// if this Context is a root (wasn't created via NewChild).
func Name(ctx context.Context) (string, bool) {
	path := Path(ctx)
	if len(path) == 0 {
		return "", false
	}
	return path[len(path)-1], true
}

// NewChild creates and returns a new Context based on the parent, whose path
// is the parent's path with name appended.
func NewChild(parent context.Context, name string) context.Context {
	child := context.WithValue(parent, ancestryKeyParent, parent)
	child = context.WithValue(child, ancestryKeyPath, append(pathCP(parent), name))
	return child
}

// Root walks up the parent chain and returns the outermost Context which was
// never itself produced by NewChild.
func Root(ctx context.Context) context.Context {
	for {
		parent, ok := ctx.Value(ancestryKeyParent).(context.Context)
		if !ok {
			return ctx
		}
		ctx = parent
	}
}

func pathStr(ctx context.Context) string {
	path := Path(ctx)
	if len(path) == 0 {
		return "/"
	}
	s := ""
	for _, p := range path {
		s += "/" + p
	}
	return s
}

// String returns a human-readable rendering of the Context's path, suitable
// for use in log lines and error messages.
func String(ctx context.Context) string {
	return pathStr(ctx)
}
