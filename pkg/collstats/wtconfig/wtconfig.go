// Package wtconfig parses WiredTiger configuration strings, such as the
// creationString reported in the wiredTiger block of $collStats.
//
// A configuration string is a comma separated list of key=value pairs, where
// a value is either a plain token, a quoted string, a bracketed list or a
// parenthesized nested configuration:
//
//	allocation_size=4KB,app_metadata=(formatVersion=1),colgroups=,log=(enabled=true)
package wtconfig

import (
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"
)

// ErrSyntax is matched by every error returned by Parse.
var ErrSyntax = errors.New("invalid WiredTiger configuration string")

// SyntaxError describes a malformed configuration string.
type SyntaxError struct {
	Offset int
	Msg    string
}

func (e *SyntaxError) Error() string {
	return fmt.Sprintf("%s at offset %d: %s", ErrSyntax, e.Offset, e.Msg)
}

// Is makes errors.Is(err, ErrSyntax) hold for every SyntaxError.
func (e *SyntaxError) Is(target error) bool { return target == ErrSyntax }

// Entry is a single key of a configuration. Nested is set when the value was
// a parenthesized group; Value then holds the group's raw text.
type Entry struct {
	Key    string
	Value  string
	Nested Config
}

// Config is an ordered list of entries.
type Config []Entry

// Parse parses a configuration string.
func Parse(s string) (Config, error) {
	p := parser{s: s}
	c, err := p.list(0)
	if err != nil {
		return nil, err
	}
	if p.pos < len(p.s) {
		return nil, p.errorf("unexpected %q", p.s[p.pos])
	}
	return c, nil
}

// Lookup returns the entry with the given key at the top level of c.
func (c Config) Lookup(key string) (Entry, bool) {
	for _, e := range c {
		if e.Key == key {
			return e, true
		}
	}
	return Entry{}, false
}

// Get resolves a dotted path such as "app_metadata.formatVersion" and returns
// the value found there.
func (c Config) Get(path string) (string, bool) {
	cur := c
	keys := strings.Split(path, ".")
	for i, key := range keys {
		e, ok := cur.Lookup(key)
		if !ok {
			return "", false
		}
		if i == len(keys)-1 {
			return e.Value, true
		}
		if e.Nested == nil {
			return "", false
		}
		cur = e.Nested
	}
	return "", false
}

// Bytes resolves path with Get and interprets its value as a size.
func (c Config) Bytes(path string) (int64, bool, error) {
	v, ok := c.Get(path)
	if !ok || v == "" {
		return 0, false, nil
	}
	n, err := ParseSize(v)
	if err != nil {
		return 0, true, fmt.Errorf("%s: %w", path, err)
	}
	return n, true, nil
}

// Map flattens c into dotted keys.
func (c Config) Map() map[string]string {
	m := make(map[string]string)
	c.flatten("", m)
	return m
}

func (c Config) flatten(prefix string, m map[string]string) {
	for _, e := range c {
		if e.Nested != nil {
			e.Nested.flatten(prefix+e.Key+".", m)
			continue
		}
		m[prefix+e.Key] = e.Value
	}
}

var sizeUnits = map[string]int64{
	"":   1,
	"b":  1,
	"k":  1 << 10,
	"kb": 1 << 10,
	"m":  1 << 20,
	"mb": 1 << 20,
	"g":  1 << 30,
	"gb": 1 << 30,
	"t":  1 << 40,
	"tb": 1 << 40,
	"p":  1 << 50,
	"pb": 1 << 50,
}

// ParseSize parses a WiredTiger size such as 4KB, 10m or 67108864.
func ParseSize(v string) (int64, error) {
	i := 0
	for i < len(v) && v[i] >= '0' && v[i] <= '9' {
		i++
	}
	if i == 0 {
		return 0, fmt.Errorf("invalid size %q", v)
	}
	n, err := strconv.ParseInt(v[:i], 10, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid size %q: %w", v, err)
	}
	mult, ok := sizeUnits[strings.ToLower(v[i:])]
	if !ok {
		return 0, fmt.Errorf("invalid size unit in %q", v)
	}
	if n > math.MaxInt64/mult {
		return 0, fmt.Errorf("invalid size %q: value out of range", v)
	}
	return n * mult, nil
}

type parser struct {
	s   string
	pos int
}

func (p *parser) errorf(format string, args ...interface{}) error {
	return &SyntaxError{Offset: p.pos, Msg: fmt.Sprintf(format, args...)}
}

// list parses entries until end (or until the end of input when end is 0).
func (p *parser) list(end byte) (Config, error) {
	c := Config{}
	for {
		p.skipSpace()
		if p.pos >= len(p.s) {
			if end != 0 {
				return nil, p.errorf("missing %q", end)
			}
			return c, nil
		}
		if end != 0 && p.s[p.pos] == end {
			p.pos++
			return c, nil
		}

		e, err := p.entry(end)
		if err != nil {
			return nil, err
		}
		c = append(c, e)

		p.skipSpace()
		if p.pos < len(p.s) && p.s[p.pos] == ',' {
			p.pos++
		}
	}
}

func (p *parser) entry(end byte) (Entry, error) {
	start := p.pos
	for p.pos < len(p.s) && !strings.ContainsRune("=,()[]", rune(p.s[p.pos])) && p.s[p.pos] != end {
		p.pos++
	}
	key := strings.TrimSpace(p.s[start:p.pos])
	if key == "" {
		return Entry{}, p.errorf("missing key")
	}

	if p.pos >= len(p.s) || p.s[p.pos] != '=' {
		// A bare key is a boolean flag.
		return Entry{Key: key, Value: "true"}, nil
	}
	p.pos++

	if p.pos >= len(p.s) {
		return Entry{Key: key}, nil
	}

	switch p.s[p.pos] {
	case '(':
		p.pos++
		valStart := p.pos
		nested, err := p.list(')')
		if err != nil {
			return Entry{}, err
		}
		return Entry{Key: key, Value: p.s[valStart : p.pos-1], Nested: nested}, nil
	case '[':
		v, err := p.bracketed()
		if err != nil {
			return Entry{}, err
		}
		return Entry{Key: key, Value: v}, nil
	case '"':
		v, err := p.quoted()
		if err != nil {
			return Entry{}, err
		}
		return Entry{Key: key, Value: v}, nil
	}

	valStart := p.pos
	for p.pos < len(p.s) && p.s[p.pos] != ',' && p.s[p.pos] != end {
		switch p.s[p.pos] {
		case '(', ')', '[', ']':
			return Entry{}, p.errorf("unexpected %q in value of %q", p.s[p.pos], key)
		}
		p.pos++
	}
	return Entry{Key: key, Value: strings.TrimSpace(p.s[valStart:p.pos])}, nil
}

// bracketed consumes a [...] list and returns its content.
func (p *parser) bracketed() (string, error) {
	start := p.pos
	depth := 0
	for ; p.pos < len(p.s); p.pos++ {
		switch p.s[p.pos] {
		case '[':
			depth++
		case ']':
			depth--
			if depth == 0 {
				p.pos++
				return p.s[start+1 : p.pos-1], nil
			}
		}
	}
	p.pos = start
	return "", p.errorf("unterminated list")
}

// quoted consumes a double quoted string and returns it unquoted.
func (p *parser) quoted() (string, error) {
	start := p.pos
	p.pos++
	for p.pos < len(p.s) {
		switch p.s[p.pos] {
		case '\\':
			p.pos += 2
			continue
		case '"':
			p.pos++
			v, err := strconv.Unquote(p.s[start:p.pos])
			if err != nil {
				return "", &SyntaxError{Offset: start, Msg: err.Error()}
			}
			return v, nil
		}
		p.pos++
	}
	p.pos = start
	return "", p.errorf("unterminated string")
}

func (p *parser) skipSpace() {
	for p.pos < len(p.s) && (p.s[p.pos] == ' ' || p.s[p.pos] == '\t' || p.s[p.pos] == '\n') {
		p.pos++
	}
}
