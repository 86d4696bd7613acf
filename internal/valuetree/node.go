package valuetree

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"
)

// Kind identifies the type of a Node.
type Kind int

// Node kinds. The zero Node is a null.
const (
	KindNull Kind = iota
	KindBool
	KindInt
	KindFloat
	KindString
	KindArray
	KindObject
)

var kindNames = [...]string{
	KindNull:   "null",
	KindBool:   "bool",
	KindInt:    "int",
	KindFloat:  "float",
	KindString: "string",
	KindArray:  "array",
	KindObject: "object",
}

// String returns the JSON-ish name of the kind.
func (k Kind) String() string {
	if k < 0 || int(k) >= len(kindNames) {
		return "Kind(" + strconv.Itoa(int(k)) + ")"
	}
	return kindNames[k]
}

// Member is a named child of an object node.
type Member struct {
	Name  string
	Value Node
}

// Node is an immutable value in a tree. Accessors never expose internal
// slices, so a Node can be shared freely between goroutines.
type Node struct {
	kind    Kind
	b       bool
	i       int64
	f       float64
	s       string
	items   []Node
	members []Member
}

// Null returns a null node.
func Null() Node { return Node{} }

// Bool returns a boolean node.
func Bool(v bool) Node { return Node{kind: KindBool, b: v} }

// Int returns an integer node.
func Int(v int64) Node { return Node{kind: KindInt, i: v} }

// Float returns a floating point node.
func Float(v float64) Node { return Node{kind: KindFloat, f: v} }

// String returns a string node.
func String(v string) Node { return Node{kind: KindString, s: v} }

// Array returns an array node holding a copy of items.
func Array(items ...Node) Node {
	return Node{kind: KindArray, items: append([]Node(nil), items...)}
}

// Object returns an object node holding a copy of members, in order.
func Object(members ...Member) Node {
	return Node{kind: KindObject, members: append([]Member(nil), members...)}
}

// Kind returns the node kind.
func (n Node) Kind() Kind { return n.kind }

// BoolValue returns the value of a bool node.
func (n Node) BoolValue() (bool, bool) { return n.b, n.kind == KindBool }

// IntValue returns the value of an int node.
func (n Node) IntValue() (int64, bool) { return n.i, n.kind == KindInt }

// FloatValue returns the value of a float node.
func (n Node) FloatValue() (float64, bool) { return n.f, n.kind == KindFloat }

// StringValue returns the value of a string node.
func (n Node) StringValue() (string, bool) { return n.s, n.kind == KindString }

// Len returns the number of children of a container, 0 for scalars.
func (n Node) Len() int {
	switch n.kind {
	case KindArray:
		return len(n.items)
	case KindObject:
		return len(n.members)
	default:
		return 0
	}
}

// Index returns the i-th element of an array node.
func (n Node) Index(i int) (Node, bool) {
	if n.kind != KindArray || i < 0 || i >= len(n.items) {
		return Node{}, false
	}
	return n.items[i], true
}

// Member returns the first member of an object node with the given name.
func (n Node) Member(name string) (Node, bool) {
	if n.kind != KindObject {
		return Node{}, false
	}
	for _, m := range n.members {
		if m.Name == name {
			return m.Value, true
		}
	}
	return Node{}, false
}

// Members returns a copy of the members of an object node.
func (n Node) Members() []Member {
	if n.kind != KindObject {
		return nil
	}
	return append([]Member(nil), n.members...)
}

// Lookup walks the tree along path. Each element names an object member or,
// for arrays, a decimal index. An empty path returns n itself.
func (n Node) Lookup(path ...string) (Node, bool) {
	cur := n
	for _, elem := range path {
		var ok bool
		switch cur.kind {
		case KindObject:
			cur, ok = cur.Member(elem)
		case KindArray:
			idx, err := strconv.Atoi(elem)
			if err != nil {
				return Node{}, false
			}
			cur, ok = cur.Index(idx)
		}
		if !ok {
			return Node{}, false
		}
	}
	return cur, true
}

// MarshalJSON encodes the node, keeping object member order.
func (n Node) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	if err := n.encode(&buf); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func (n Node) encode(buf *bytes.Buffer) error {
	switch n.kind {
	case KindNull:
		buf.WriteString("null")
	case KindBool:
		buf.WriteString(strconv.FormatBool(n.b))
	case KindInt:
		buf.WriteString(strconv.FormatInt(n.i, 10))
	case KindFloat:
		data, err := json.Marshal(n.f)
		if err != nil {
			return fmt.Errorf("valuetree: encoding float: %w", err)
		}
		buf.Write(data)
	case KindString:
		data, err := json.Marshal(n.s)
		if err != nil {
			return fmt.Errorf("valuetree: encoding string: %w", err)
		}
		buf.Write(data)
	case KindArray:
		buf.WriteByte('[')
		for i, item := range n.items {
			if i > 0 {
				buf.WriteByte(',')
			}
			if err := item.encode(buf); err != nil {
				return err
			}
		}
		buf.WriteByte(']')
	case KindObject:
		buf.WriteByte('{')
		for i, m := range n.members {
			if i > 0 {
				buf.WriteByte(',')
			}
			name, err := json.Marshal(m.Name)
			if err != nil {
				return fmt.Errorf("valuetree: encoding member name: %w", err)
			}
			buf.Write(name)
			buf.WriteByte(':')
			if err := m.Value.encode(buf); err != nil {
				return err
			}
		}
		buf.WriteByte('}')
	default:
		return fmt.Errorf("valuetree: unknown node kind %d", n.kind)
	}
	return nil
}
