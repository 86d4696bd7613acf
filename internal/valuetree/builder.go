package valuetree

import "fmt"

// frame is an open container on the builder stack.
type frame struct {
	kind       Kind
	items      []Node
	members    []Member
	name       string
	hasPending bool
}

// Builder constructs a tree depth-first. Every Begin must be matched by the
// corresponding End before Root is called.
//
// A Builder is not safe for concurrent use; the Node it returns is.
type Builder struct {
	stack   []*frame
	root    Node
	hasRoot bool
}

// NewBuilder returns an empty builder.
func NewBuilder() *Builder {
	return &Builder{}
}

// BeginObject opens an object container.
func (b *Builder) BeginObject() *Builder {
	b.push(KindObject)
	return b
}

// EndObject closes the innermost container, which must be an object.
func (b *Builder) EndObject() *Builder {
	f := b.pop(KindObject)
	if f.hasPending {
		panic(fmt.Sprintf("valuetree: member %q has no value", f.name))
	}
	b.add(Node{kind: KindObject, members: f.members})
	return b
}

// BeginArray opens an array container.
func (b *Builder) BeginArray() *Builder {
	b.push(KindArray)
	return b
}

// EndArray closes the innermost container, which must be an array.
func (b *Builder) EndArray() *Builder {
	f := b.pop(KindArray)
	b.add(Node{kind: KindArray, items: f.items})
	return b
}

// SetMember names the next value added to the innermost object.
func (b *Builder) SetMember(name string) *Builder {
	f := b.top()
	if f == nil || f.kind != KindObject {
		panic("valuetree: SetMember outside of an object")
	}
	if f.hasPending {
		panic(fmt.Sprintf("valuetree: member %q has no value", f.name))
	}
	f.name = name
	f.hasPending = true
	return b
}

// AddInt adds an integer value.
func (b *Builder) AddInt(v int64) *Builder { b.add(Int(v)); return b }

// AddFloat adds a floating point value.
func (b *Builder) AddFloat(v float64) *Builder { b.add(Float(v)); return b }

// AddString adds a string value.
func (b *Builder) AddString(v string) *Builder { b.add(String(v)); return b }

// AddBool adds a boolean value.
func (b *Builder) AddBool(v bool) *Builder { b.add(Bool(v)); return b }

// AddNull adds a null value.
func (b *Builder) AddNull() *Builder { b.add(Null()); return b }

// AddNode adds an already built subtree.
func (b *Builder) AddNode(n Node) *Builder { b.add(n); return b }

// Root returns the finished tree. It panics if a container is still open.
// A builder that was given no value returns a null node.
func (b *Builder) Root() Node {
	if len(b.stack) > 0 {
		panic(fmt.Sprintf("valuetree: %d unclosed container(s) at Root", len(b.stack)))
	}
	return b.root
}

func (b *Builder) top() *frame {
	if len(b.stack) == 0 {
		return nil
	}
	return b.stack[len(b.stack)-1]
}

func (b *Builder) push(kind Kind) {
	// The container counts as a value of its parent: check placement now so
	// the panic points at the Begin call rather than the End.
	b.checkPlacement()
	b.stack = append(b.stack, &frame{kind: kind})
}

func (b *Builder) pop(kind Kind) *frame {
	f := b.top()
	if f == nil {
		panic(fmt.Sprintf("valuetree: End%s without Begin", titleKind(kind)))
	}
	if f.kind != kind {
		panic(fmt.Sprintf("valuetree: End%s closes an open %s", titleKind(kind), f.kind))
	}
	b.stack = b.stack[:len(b.stack)-1]
	return f
}

func (b *Builder) checkPlacement() {
	f := b.top()
	switch {
	case f == nil:
		if b.hasRoot {
			panic("valuetree: tree already has a root value")
		}
	case f.kind == KindObject && !f.hasPending:
		panic("valuetree: object value added without SetMember")
	}
}

func (b *Builder) add(n Node) {
	b.checkPlacement()
	f := b.top()
	switch {
	case f == nil:
		b.root = n
		b.hasRoot = true
	case f.kind == KindObject:
		f.members = append(f.members, Member{Name: f.name, Value: n})
		f.name = ""
		f.hasPending = false
	default:
		f.items = append(f.items, n)
	}
}

func titleKind(k Kind) string {
	if k == KindObject {
		return "Object"
	}
	return "Array"
}
