package mcfg

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"reflect"
	"sort"
	"strings"
)

const (
	cliValSep  = "="
	cliHelpArg = "-h"
)

// Populate fills in every Param registered on c from args (typically
// os.Args[1:]). If "-h"/"--help" is present, usage is printed to stderr and
// the process exits with status 1. An unrecognized flag, a missing value, or
// a missing Required Param is returned as an error.
func (c *Config) Populate(args []string) error {
	byFlag := make(map[string]Param, len(c.params))
	for _, p := range c.params {
		byFlag[p.FlagName()] = p
	}

	seen := map[string]bool{}
	paramKey := func(p Param) string {
		return p.Name + "\x00" + strings.Join(p.Path, "\x00")
	}

	var (
		key      string
		p        Param
		pOk      bool
		strVal   string
		strValOk bool
	)
	for _, arg := range args {
		if pOk {
			strVal, strValOk = arg, true
		} else if arg == cliHelpArg || arg == "--help" {
			c.printHelp(os.Stderr, byFlag)
			os.Exit(1)
		} else {
			matched := false
			for flag, cand := range byFlag {
				if arg == flag {
					key, p, pOk, matched = flag, cand, true, true
					break
				}
				prefix := flag + cliValSep
				if strings.HasPrefix(arg, prefix) {
					key, p, pOk = flag, cand, true
					strVal, strValOk = strings.TrimPrefix(arg, prefix), true
					matched = true
					break
				}
			}
			if !matched {
				return fmt.Errorf("mcfg: unrecognized argument %q", arg)
			}
		}

		// pOk is always true here; p is filled in.
		if p.IsBool && !strValOk {
			strVal, strValOk = "true", true
		} else if !strValOk {
			// the next arg should carry the value
			continue
		}

		if err := unmarshalInto(p, p.fuzzyParse(strVal)); err != nil {
			return fmt.Errorf("mcfg: flag %s: %w", key, err)
		}
		seen[paramKey(p)] = true
		key, p, pOk, strVal, strValOk = "", Param{}, false, "", false
	}
	if pOk && !strValOk {
		return fmt.Errorf("mcfg: flag %s expects a value", key)
	}

	for _, p := range c.params {
		if p.Required && !seen[paramKey(p)] {
			return fmt.Errorf("mcfg: required flag %s not given", p.FlagName())
		}
	}
	return nil
}

func unmarshalInto(p Param, raw []byte) error {
	return json.Unmarshal(raw, p.Into)
}

func (c *Config) printHelp(w io.Writer, byFlag map[string]Param) {
	type entry struct {
		flag string
		Param
	}
	entries := make([]entry, 0, len(byFlag))
	for flag, p := range byFlag {
		entries = append(entries, entry{flag: flag, Param: p})
	}
	sort.Slice(entries, func(i, j int) bool {
		if entries[i].Required != entries[j].Required {
			return entries[i].Required
		}
		return entries[i].flag < entries[j].flag
	})

	fmt.Fprintf(w, "Usage: %s [options]\n\n", os.Args[0])
	if len(entries) == 0 {
		return
	}
	fmt.Fprint(w, "Options:\n\n")
	for _, e := range entries {
		fmt.Fprintf(w, "\t%s", e.flag)
		switch {
		case e.IsBool:
			fmt.Fprint(w, " (flag)")
		case e.Required:
			fmt.Fprint(w, " (required)")
		default:
			if d := defaultValStr(e.Into); d != "" {
				fmt.Fprintf(w, " (default: %s)", d)
			}
		}
		fmt.Fprintln(w)
		if e.Usage != "" {
			fmt.Fprintf(w, "\t\t%s\n", e.Usage)
		}
		fmt.Fprintln(w)
	}
}

func defaultValStr(ptr interface{}) string {
	if ptr == nil {
		return ""
	}
	val := reflect.Indirect(reflect.ValueOf(ptr))
	zero := reflect.Zero(val.Type())
	if reflect.DeepEqual(val.Interface(), zero.Interface()) {
		return ""
	}
	if val.Kind() == reflect.String {
		return fmt.Sprintf("%q", val.Interface())
	}
	return fmt.Sprint(val.Interface())
}
