// Package mcfg provides a small declarative framework for command-line
// configuration parameters, in the style of mctx-scoped component trees:
// each parameter is registered against a context.Context path, and the path
// plus the parameter's name form its CLI flag.
package mcfg

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/mediocregopher/tinyredis/mctx"
)

// Param is a single configuration parameter. Params are collected onto a
// *Config via MustAdd (or, more commonly, one of the typed helpers below),
// then all populated at once by Config.Populate.
type Param struct {
	Name  string
	Usage string

	IsString bool
	IsBool   bool
	Required bool

	// Into is unmarshaled into via json.Unmarshal once a value is found for
	// this Param; its pre-existing value doubles as the default.
	Into interface{}

	// Path is the mctx path this Param was registered under, used to build
	// its CLI flag name.
	Path []string
}

// FlagName returns the "--foo-bar-baz" flag which sets this Param.
func (p Param) FlagName() string {
	return "--" + strings.Join(append(append([]string{}, p.Path...), p.Name), "-")
}

func (p Param) fuzzyParse(v string) json.RawMessage {
	switch {
	case p.IsBool:
		if v == "" || v == "0" || v == "false" {
			return json.RawMessage("false")
		}
		return json.RawMessage("true")
	case p.IsString && (v == "" || v[0] != '"'):
		return json.RawMessage(`"` + v + `"`)
	default:
		return json.RawMessage(v)
	}
}

// Config accumulates Params registered against it and, on Populate, fills
// them in from a slice of CLI-style arguments.
type Config struct {
	params []Param
}

// New returns an empty Config.
func New() *Config {
	return &Config{}
}

// MustAdd registers param against the path named by ctx (see mctx.Path),
// panicking if a Param of the same full name was already added.
func (c *Config) MustAdd(ctx context.Context, param Param) {
	param.Name = strings.ToLower(param.Name)
	param.Path = mctx.Path(ctx)

	for _, existing := range c.params {
		if existing.Name == param.Name && pathEqual(existing.Path, param.Path) {
			panic(fmt.Sprintf("mcfg: param %q already registered under path %v", param.Name, param.Path))
		}
	}
	c.params = append(c.params, param)
}

func pathEqual(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

// Int returns an *int which will be populated once Populate is called.
func Int(c *Config, ctx context.Context, name string, defaultVal int, usage string) *int {
	i := defaultVal
	c.MustAdd(ctx, Param{Name: name, Usage: usage, Into: &i})
	return &i
}

// String returns a *string which will be populated once Populate is called.
func String(c *Config, ctx context.Context, name, defaultVal, usage string) *string {
	s := defaultVal
	c.MustAdd(ctx, Param{Name: name, Usage: usage, IsString: true, Into: &s})
	return &s
}

// Bool returns a *bool which will be populated once Populate is called. It
// defaults to false; passing the flag with no value sets it to true.
func Bool(c *Config, ctx context.Context, name string, usage string) *bool {
	var b bool
	c.MustAdd(ctx, Param{Name: name, Usage: usage, IsBool: true, Into: &b})
	return &b
}

// RequiredString is like String but Populate returns an error if the flag
// isn't given.
func RequiredString(c *Config, ctx context.Context, name, usage string) *string {
	var s string
	c.MustAdd(ctx, Param{Name: name, Usage: usage, IsString: true, Required: true, Into: &s})
	return &s
}

// RequiredInt is like Int but Populate returns an error if the flag isn't
// given.
func RequiredInt(c *Config, ctx context.Context, name, usage string) *int {
	var i int
	c.MustAdd(ctx, Param{Name: name, Usage: usage, Required: true, Into: &i})
	return &i
}

// Float64 returns a *float64 which will be populated once Populate is called.
func Float64(c *Config, ctx context.Context, name string, defaultVal float64, usage string) *float64 {
	f := defaultVal
	c.MustAdd(ctx, Param{Name: name, Usage: usage, Into: &f})
	return &f
}
