// Copyright 2022 Metrika Inc.
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
// http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package mbean

import (
	"errors"
	"fmt"
	"sort"
	"strings"
)

// ErrMalformedName is returned for object names that cannot be parsed.
var ErrMalformedName = errors.New("malformed object name")

// Property is a single key=value component of an object name.
type Property struct {
	Key, Value string
}

// ObjectName identifies a management object, in the form
// domain:key1=value1,key2=value2. Names used as query patterns may
// contain '*' and '?' wildcards in the domain and in property values, and
// may end with a ",*" element to match objects carrying extra properties.
type ObjectName struct {
	Domain string

	props       []Property
	listPattern bool
}

// ParseObjectName parses s into an ObjectName.
func ParseObjectName(s string) (ObjectName, error) {
	var on ObjectName

	colon := strings.IndexByte(s, ':')
	if colon < 0 {
		return on, fmt.Errorf("%w: %q: missing ':'", ErrMalformedName, s)
	}
	on.Domain = s[:colon]

	seen := map[string]struct{}{}
	for _, elem := range splitProperties(s[colon+1:]) {
		elem = strings.TrimSpace(elem)
		if elem == "*" {
			on.listPattern = true
			continue
		}

		eq := strings.IndexByte(elem, '=')
		if eq <= 0 {
			return ObjectName{}, fmt.Errorf("%w: %q: bad property %q", ErrMalformedName, s, elem)
		}

		key, value := strings.TrimSpace(elem[:eq]), strings.TrimSpace(elem[eq+1:])
		if value == "" {
			return ObjectName{}, fmt.Errorf("%w: %q: empty value for %q", ErrMalformedName, s, key)
		}
		if _, ok := seen[key]; ok {
			return ObjectName{}, fmt.Errorf("%w: %q: duplicate key %q", ErrMalformedName, s, key)
		}
		seen[key] = struct{}{}

		on.props = append(on.props, Property{Key: key, Value: value})
	}

	if len(on.props) == 0 && !on.listPattern {
		return ObjectName{}, fmt.Errorf("%w: %q: no properties", ErrMalformedName, s)
	}

	return on, nil
}

// MustParseObjectName is like ParseObjectName but panics on error.
func MustParseObjectName(s string) ObjectName {
	on, err := ParseObjectName(s)
	if err != nil {
		panic(err)
	}

	return on
}

// splitProperties splits on commas outside of quoted values.
func splitProperties(s string) []string {
	var (
		parts  []string
		quoted bool
		start  int
	)

	for i := 0; i < len(s); i++ {
		switch s[i] {
		case '\\':
			if quoted {
				i++
			}
		case '"':
			quoted = !quoted
		case ',':
			if !quoted {
				parts = append(parts, s[start:i])
				start = i + 1
			}
		}
	}

	return append(parts, s[start:])
}

// KeyProperty returns the value of key, or "" if the name has no such key.
func (o ObjectName) KeyProperty(key string) string {
	for _, p := range o.props {
		if p.Key == key {
			return p.Value
		}
	}

	return ""
}

// Properties returns a copy of the name's properties in declared order.
func (o ObjectName) Properties() []Property {
	return append([]Property(nil), o.props...)
}

// IsPattern reports whether the name contains any wildcard.
func (o ObjectName) IsPattern() bool {
	if o.listPattern || hasWildcard(o.Domain) {
		return true
	}
	for _, p := range o.props {
		if isValuePattern(p.Value) {
			return true
		}
	}

	return false
}

// String returns the canonical form: properties sorted by key.
func (o ObjectName) String() string {
	props := o.Properties()
	sort.Slice(props, func(i, j int) bool { return props[i].Key < props[j].Key })

	elems := make([]string, 0, len(props)+1)
	for _, p := range props {
		elems = append(elems, p.Key+"="+p.Value)
	}
	if o.listPattern {
		elems = append(elems, "*")
	}

	return o.Domain + ":" + strings.Join(elems, ",")
}

// Match reports whether name is selected by the pattern o. Without a
// trailing ",*" the key sets must be identical.
func (o ObjectName) Match(name ObjectName) bool {
	if !wildcardMatch(o.Domain, name.Domain) {
		return false
	}
	if !o.listPattern && len(o.props) != len(name.props) {
		return false
	}

	for _, p := range o.props {
		v := name.KeyProperty(p.Key)
		if v == "" {
			return false
		}
		if isValuePattern(p.Value) {
			if !wildcardMatch(p.Value, v) {
				return false
			}
			continue
		}
		if p.Value != v {
			return false
		}
	}

	return true
}

func hasWildcard(s string) bool {
	return strings.ContainsAny(s, "*?")
}

func isValuePattern(v string) bool {
	return !strings.HasPrefix(v, `"`) && hasWildcard(v)
}

// wildcardMatch matches s against a pattern where '*' is any run of
// characters and '?' exactly one.
func wildcardMatch(patternStr, str string) bool {
	var (
		pattern       = []rune(patternStr)
		s             = []rune(str)
		p, i          int
		star, starIdx = -1, 0
	)

	for i < len(s) {
		switch {
		case p < len(pattern) && (pattern[p] == '?' || pattern[p] == s[i]):
			p++
			i++
		case p < len(pattern) && pattern[p] == '*':
			star, starIdx = p, i
			p++
		case star >= 0:
			p = star + 1
			starIdx++
			i = starIdx
		default:
			return false
		}
	}

	for p < len(pattern) && pattern[p] == '*' {
		p++
	}

	return p == len(pattern)
}
