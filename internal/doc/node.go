// Package doc holds the report document tree: an ordered JSON value whose
// mappings keep their key order from parse to encode.
package doc

import (
	"errors"
	"math"
	"strconv"
	"strings"
)

// Kind tags the variant held by a Node
type Kind uint8

const (
	Null Kind = iota
	Bool
	Number
	String
	Mapping
	Sequence
)

func (k Kind) String() string {
	switch k {
	case Null:
		return "null"
	case Bool:
		return "bool"
	case Number:
		return "number"
	case String:
		return "string"
	case Mapping:
		return "mapping"
	case Sequence:
		return "sequence"
	default:
		return "unknown"
	}
}

// Field is one key/value pair of a mapping
type Field struct {
	Key   string
	Value *Node
}

// Node is a JSON value. Only the members matching Kind are meaningful.
// Numbers keep their source text so integers and decimals encode unchanged.
type Node struct {
	Kind   Kind
	Bool   bool
	Num    string
	Str    string
	Fields []Field
	Items  []*Node
}

func NewNull() *Node             { return &Node{Kind: Null} }
func NewBool(b bool) *Node       { return &Node{Kind: Bool, Bool: b} }
func NewString(s string) *Node   { return &Node{Kind: String, Str: s} }
func NewMapping() *Node          { return &Node{Kind: Mapping} }
func NewNumber(raw string) *Node { return &Node{Kind: Number, Num: raw} }

// NewInt returns an integer number node
func NewInt(i int) *Node {
	return &Node{Kind: Number, Num: strconv.Itoa(i)}
}

// NewFloat returns a number node that always carries a fractional part,
// so 80 encodes as 80.0.
func NewFloat(f float64) *Node {
	s := strconv.FormatFloat(f, 'f', -1, 64)
	if !strings.ContainsAny(s, ".eE") && !math.IsInf(f, 0) && !math.IsNaN(f) {
		s += ".0"
	}
	return &Node{Kind: Number, Num: s}
}

// NewSequence returns a sequence holding items
func NewSequence(items ...*Node) *Node {
	if items == nil {
		items = []*Node{}
	}
	return &Node{Kind: Sequence, Items: items}
}

// NewStrings returns a sequence of string nodes
func NewStrings(values []string) *Node {
	seq := NewSequence()
	for _, v := range values {
		seq.Items = append(seq.Items, NewString(v))
	}
	return seq
}

func (n *Node) IsNull() bool     { return n == nil || n.Kind == Null }
func (n *Node) IsMapping() bool  { return n != nil && n.Kind == Mapping }
func (n *Node) IsSequence() bool { return n != nil && n.Kind == Sequence }
func (n *Node) IsString() bool   { return n != nil && n.Kind == String }

// Get returns the value stored under key, or nil when n is not a mapping
// or has no such key.
func (n *Node) Get(key string) *Node {
	if !n.IsMapping() {
		return nil
	}
	for i := range n.Fields {
		if n.Fields[i].Key == key {
			return n.Fields[i].Value
		}
	}
	return nil
}

// Has reports whether the mapping holds key
func (n *Node) Has(key string) bool {
	if !n.IsMapping() {
		return false
	}
	for i := range n.Fields {
		if n.Fields[i].Key == key {
			return true
		}
	}
	return false
}

// Set stores value under key. An existing key keeps its position.
func (n *Node) Set(key string, value *Node) {
	if !n.IsMapping() {
		return
	}
	if value == nil {
		value = NewNull()
	}
	for i := range n.Fields {
		if n.Fields[i].Key == key {
			n.Fields[i].Value = value
			return
		}
	}
	n.Fields = append(n.Fields, Field{Key: key, Value: value})
}

// SetDefault returns the value under key, storing def first when absent
func (n *Node) SetDefault(key string, def *Node) *Node {
	if v := n.Get(key); v != nil || n.Has(key) {
		return v
	}
	n.Set(key, def)
	return def
}

// Keys returns the mapping keys in order
func (n *Node) Keys() []string {
	if !n.IsMapping() {
		return nil
	}
	keys := make([]string, len(n.Fields))
	for i, f := range n.Fields {
		keys[i] = f.Key
	}
	return keys
}

// Append adds items to a sequence
func (n *Node) Append(items ...*Node) {
	if !n.IsSequence() {
		return
	}
	n.Items = append(n.Items, items...)
}

// Len is the number of fields or items
func (n *Node) Len() int {
	switch {
	case n.IsMapping():
		return len(n.Fields)
	case n.IsSequence():
		return len(n.Items)
	default:
		return 0
	}
}

// Lookup follows a chain of mapping keys
func (n *Node) Lookup(keys ...string) *Node {
	cur := n
	for _, k := range keys {
		cur = cur.Get(k)
		if cur == nil {
			return nil
		}
	}
	return cur
}

// Text returns the string value and whether n is a string
func (n *Node) Text() (string, bool) {
	if !n.IsString() {
		return "", false
	}
	return n.Str, true
}

// Float coerces n to a float64. Numbers and numeric strings convert;
// booleans convert to 1 or 0. Out-of-range values become ±Inf. Anything
// else, and NaN, fails.
func (n *Node) Float() (float64, bool) {
	if n == nil {
		return 0, false
	}
	var (
		f   float64
		err error
	)
	switch n.Kind {
	case Number:
		f, err = strconv.ParseFloat(n.Num, 64)
	case String:
		f, err = strconv.ParseFloat(strings.TrimSpace(n.Str), 64)
	case Bool:
		if n.Bool {
			return 1, true
		}
		return 0, true
	default:
		return 0, false
	}
	if err != nil && !(errors.Is(err, strconv.ErrRange) && math.IsInf(f, 0)) {
		return 0, false
	}
	if math.IsNaN(f) {
		return 0, false
	}
	return f, true
}

// Clone returns a deep copy
func (n *Node) Clone() *Node {
	if n == nil {
		return nil
	}
	c := &Node{Kind: n.Kind, Bool: n.Bool, Num: n.Num, Str: n.Str}
	if n.Fields != nil {
		c.Fields = make([]Field, len(n.Fields))
		for i, f := range n.Fields {
			c.Fields[i] = Field{Key: f.Key, Value: f.Value.Clone()}
		}
	}
	if n.Items != nil {
		c.Items = make([]*Node, len(n.Items))
		for i, it := range n.Items {
			c.Items[i] = it.Clone()
		}
	}
	return c
}

// ChildPath joins a mapping key onto a parent path
func ChildPath(parent, key string) string {
	if parent == "" {
		return key
	}
	return parent + "." + key
}

// IndexPath appends a sequence position to a parent path
func IndexPath(parent string, i int) string {
	return parent + "[" + strconv.Itoa(i) + "]"
}

// EnsureMapping returns the mapping under key, replacing an absent or
// non-mapping value with an empty one.
func (n *Node) EnsureMapping(key string) *Node {
	if v := n.Get(key); v.IsMapping() {
		return v
	}
	m := NewMapping()
	n.Set(key, m)
	return m
}

// EnsureSequence is EnsureMapping for sequences
func (n *Node) EnsureSequence(key string) *Node {
	if v := n.Get(key); v.IsSequence() {
		return v
	}
	s := NewSequence()
	n.Set(key, s)
	return s
}

// Interface converts n to plain Go values: map[string]any, []any, string,
// bool, float64 or nil.
func (n *Node) Interface() any {
	if n == nil {
		return nil
	}
	switch n.Kind {
	case Bool:
		return n.Bool
	case Number:
		f, _ := strconv.ParseFloat(n.Num, 64)
		return f
	case String:
		return n.Str
	case Mapping:
		m := make(map[string]any, len(n.Fields))
		for _, f := range n.Fields {
			m[f.Key] = f.Value.Interface()
		}
		return m
	case Sequence:
		s := make([]any, len(n.Items))
		for i, it := range n.Items {
			s[i] = it.Interface()
		}
		return s
	default:
		return nil
	}
}

// Walk visits every node depth-first with its rendered path. Returning false
// from fn skips the node's children.
func (n *Node) Walk(fn func(path string, node *Node) bool) {
	walk("", n, fn)
}

func walk(path string, n *Node, fn func(string, *Node) bool) {
	if n == nil || !fn(path, n) {
		return
	}
	switch n.Kind {
	case Mapping:
		for _, f := range n.Fields {
			walk(ChildPath(path, f.Key), f.Value, fn)
		}
	case Sequence:
		for i, it := range n.Items {
			walk(IndexPath(path, i), it, fn)
		}
	}
}
