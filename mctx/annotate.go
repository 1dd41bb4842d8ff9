package mctx

import (
	"context"
	"fmt"
	"sort"
)

// Annotation describes a single key/value pair set on a Context via Annotate,
// along with the path of the Context it was set on.
type Annotation struct {
	Key, Value interface{}
	Path       []string
}

type annotation struct {
	Annotation
	prev *annotation
}

type annotationKey int

// Annotate takes in one or more key/value pairs (kvs must have an even
// length) and returns a Context carrying them, in addition to any
// annotations already on ctx.
func Annotate(ctx context.Context, kvs ...interface{}) context.Context {
	if len(kvs)%2 != 0 {
		panic("mctx.Annotate called with an odd number of arguments")
	} else if len(kvs) == 0 {
		return ctx
	}

	prev, _ := ctx.Value(annotationKey(0)).(*annotation)
	path := Path(ctx)
	var curr *annotation
	for i := 0; i < len(kvs); i += 2 {
		curr = &annotation{
			Annotation: Annotation{Key: kvs[i], Value: kvs[i+1], Path: path},
			prev:       prev,
		}
		prev = curr
	}
	return context.WithValue(ctx, annotationKey(0), curr)
}

// Annotations returns every Annotation set via Annotate on ctx, most recent
// first. If a key was annotated more than once at the same path only the
// most recent value is returned.
func Annotations(ctx context.Context) []Annotation {
	a, _ := ctx.Value(annotationKey(0)).(*annotation)
	if a == nil {
		return nil
	}

	type seenKey struct {
		path string
		key  interface{}
	}
	seen := map[seenKey]bool{}

	var out []Annotation
	for ; a != nil; a = a.prev {
		k := seenKey{path: pathStr(contextWithPath(a.Path)), key: a.Key}
		if seen[k] {
			continue
		}
		seen[k] = true
		out = append(out, a.Annotation)
	}
	return out
}

// contextWithPath is a tiny helper so pathStr (which takes a Context) can be
// reused for a bare path slice when deduplicating annotations.
func contextWithPath(path []string) context.Context {
	return context.WithValue(context.Background(), ancestryKeyPath, path)
}

// StringMap formats every Annotation on ctx into a map of string key to
// string value, using fmt.Sprint. Useful for structured loggers.
func StringMap(ctx context.Context) map[string]string {
	aa := Annotations(ctx)
	out := make(map[string]string, len(aa))
	for _, a := range aa {
		out[fmt.Sprint(a.Key)] = fmt.Sprint(a.Value)
	}
	return out
}

// StringSlice is like StringMap but returns sorted key/value tuples, for
// deterministic rendering (e.g. in error messages).
func StringSlice(ctx context.Context) [][2]string {
	m := StringMap(ctx)
	out := make([][2]string, 0, len(m))
	for k, v := range m {
		out = append(out, [2]string{k, v})
	}
	sort.Slice(out, func(i, j int) bool { return out[i][0] < out[j][0] })
	return out
}
