// Copyright © 2026 Jonathan Whitaker <github@whitaker.io>.
//
// Use of this source code is governed by an MIT-style
// license that can be found in the LICENSE file.

// Package operator registers the engine's built-in operator catalogue
// against a sentrytx.OperatorRegistry. Each descriptor splits its
// lifecycle in two: Create compiles params once at registration time (a
// regexp, a CIDR list, a numeric literal), Execute runs that compiled
// state against a field on every invocation.
package operator

import (
	"fmt"
	"net"
	"regexp"
	"strconv"
	"strings"

	"github.com/whitaker-io/sentrytx"
)

// Register adds every built-in descriptor to r. Called once per Engine at
// construction, before any rule file is parsed.
func Register(r *sentrytx.OperatorRegistry) error {
	for _, d := range []*sentrytx.OperatorDescriptor{
		rxDescriptor(),
		streqDescriptor(),
		containsDescriptor(),
		compareDescriptor("gt", func(c int) bool { return c > 0 }),
		compareDescriptor("ge", func(c int) bool { return c >= 0 }),
		compareDescriptor("lt", func(c int) bool { return c < 0 }),
		compareDescriptor("le", func(c int) bool { return c <= 0 }),
		compareDescriptor("eq", func(c int) bool { return c == 0 }),
		existsDescriptor(),
		ipmatchDescriptor(),
	} {
		if err := r.Register(d); err != nil {
			return err
		}
	}
	return nil
}

func toString(field interface{}) (string, bool) {
	switch v := field.(type) {
	case string:
		return v, true
	case []byte:
		return string(v), true
	case fmt.Stringer:
		return v.String(), true
	case nil:
		return "", false
	default:
		return fmt.Sprint(v), true
	}
}

// rxDescriptor implements @rx: params is a regular expression, compiled
// once at Create; Execute reports whether it matches the field's string
// form anywhere (regexp.MatchString semantics, not full-string anchoring).
func rxDescriptor() *sentrytx.OperatorDescriptor {
	return &sentrytx.OperatorDescriptor{
		Name: "rx",
		Create: func(arena *sentrytx.Arena, params string) (interface{}, error) {
			re, err := regexp.Compile(params)
			if err != nil {
				return nil, fmt.Errorf("rx: invalid pattern %q: %w", params, err)
			}
			return re, nil
		},
		Execute: func(tx *sentrytx.TX, state interface{}, field interface{}) (bool, error) {
			s, ok := toString(field)
			if !ok {
				return false, nil
			}
			return state.(*regexp.Regexp).MatchString(s), nil
		},
	}
}

// streqDescriptor implements @streq: exact string equality against params.
func streqDescriptor() *sentrytx.OperatorDescriptor {
	return &sentrytx.OperatorDescriptor{
		Name: "streq",
		Create: func(arena *sentrytx.Arena, params string) (interface{}, error) {
			return params, nil
		},
		Execute: func(tx *sentrytx.TX, state interface{}, field interface{}) (bool, error) {
			s, ok := toString(field)
			if !ok {
				return false, nil
			}
			return s == state.(string), nil
		},
	}
}

// containsDescriptor implements @contains: substring match against params.
func containsDescriptor() *sentrytx.OperatorDescriptor {
	return &sentrytx.OperatorDescriptor{
		Name: "contains",
		Create: func(arena *sentrytx.Arena, params string) (interface{}, error) {
			return params, nil
		},
		Execute: func(tx *sentrytx.TX, state interface{}, field interface{}) (bool, error) {
			s, ok := toString(field)
			if !ok {
				return false, nil
			}
			return strings.Contains(s, state.(string)), nil
		},
	}
}

// compareDescriptor builds the @gt/@ge/@lt/@le/@eq family: params parses
// as a float64 at Create time, Execute parses the field the same way and
// applies cmp to the three-way comparison result.
func compareDescriptor(name string, cmp func(int) bool) *sentrytx.OperatorDescriptor {
	return &sentrytx.OperatorDescriptor{
		Name: name,
		Create: func(arena *sentrytx.Arena, params string) (interface{}, error) {
			f, err := strconv.ParseFloat(strings.TrimSpace(params), 64)
			if err != nil {
				return nil, fmt.Errorf("%s: invalid numeric argument %q: %w", name, params, err)
			}
			return f, nil
		},
		Execute: func(tx *sentrytx.TX, state interface{}, field interface{}) (bool, error) {
			s, ok := toString(field)
			if !ok {
				return false, nil
			}
			f, err := strconv.ParseFloat(strings.TrimSpace(s), 64)
			if err != nil {
				return false, nil
			}
			want := state.(float64)
			switch {
			case f < want:
				return cmp(-1), nil
			case f > want:
				return cmp(1), nil
			default:
				return cmp(0), nil
			}
		},
	}
}

// existsDescriptor implements @exists: true iff the selector resolved to
// any field at all, accepting null so it can also test for the structural
// absence the scheduler otherwise skips.
func existsDescriptor() *sentrytx.OperatorDescriptor {
	return &sentrytx.OperatorDescriptor{
		Name:         "exists",
		Capabilities: sentrytx.CapAcceptsNull,
		Execute: func(tx *sentrytx.TX, state interface{}, field interface{}) (bool, error) {
			return field != nil, nil
		},
	}
}

// ipmatchDescriptor implements @ipmatch: params is a comma-separated list
// of IPs or CIDR blocks, parsed once at Create; Execute reports whether the
// field parses as an IP contained in any of them.
func ipmatchDescriptor() *sentrytx.OperatorDescriptor {
	return &sentrytx.OperatorDescriptor{
		Name: "ipmatch",
		Create: func(arena *sentrytx.Arena, params string) (interface{}, error) {
			var nets []*net.IPNet
			var ips []net.IP
			for _, tok := range strings.Split(params, ",") {
				tok = strings.TrimSpace(tok)
				if tok == "" {
					continue
				}
				if strings.Contains(tok, "/") {
					_, n, err := net.ParseCIDR(tok)
					if err != nil {
						return nil, fmt.Errorf("ipmatch: invalid CIDR %q: %w", tok, err)
					}
					nets = append(nets, n)
					continue
				}
				ip := net.ParseIP(tok)
				if ip == nil {
					return nil, fmt.Errorf("ipmatch: invalid address %q", tok)
				}
				ips = append(ips, ip)
			}
			return ipmatchState{nets: nets, ips: ips}, nil
		},
		Execute: func(tx *sentrytx.TX, state interface{}, field interface{}) (bool, error) {
			s, ok := toString(field)
			if !ok {
				return false, nil
			}
			ip := net.ParseIP(strings.TrimSpace(s))
			if ip == nil {
				return false, nil
			}
			st := state.(ipmatchState)
			for _, want := range st.ips {
				if want.Equal(ip) {
					return true, nil
				}
			}
			for _, n := range st.nets {
				if n.Contains(ip) {
					return true, nil
				}
			}
			return false, nil
		},
	}
}

type ipmatchState struct {
	nets []*net.IPNet
	ips  []net.IP
}
