// Package valuetree builds immutable JSON value trees.
//
// A tree is made of scalar nodes (integer, float, string, bool, null) and
// ordered containers (objects with named members, arrays). Trees are built
// depth-first with a Builder and are read-only once Root returns, so they can
// be handed to concurrent readers such as HTTP handlers without locking.
//
// Builder misuse is a programming error and panics: adding a value to an
// object without naming it, closing the wrong container kind, or calling
// Root while a container is still open.
//
// Usage:
//
//	b := valuetree.NewBuilder()
//	b.BeginObject()
//	b.SetMember("foo")
//	b.AddInt(78)
//	b.SetMember("bar")
//	b.BeginArray()
//	b.AddFloat(3.1415)
//	b.AddFloat(-1.41)
//	b.EndArray()
//	b.EndObject()
//	root := b.Root() // {"foo":78,"bar":[3.1415,-1.41]}
package valuetree
