package config

// Lookup resolves a group/key pair to a typed value. It reports false when
// the value is absent or of the wrong type.
type Lookup[T any] func(group, key string) (T, bool)

// Inject copies the value found at group/key into dst. When the lookup
// reports absent, dst is left unmodified. The return value tells whether
// dst was written.
//
// Inject is the typed replacement for setting a named property on an opaque
// object: callers keep an explicit options struct with built-in defaults and
// overlay only the keys that are present.
//
// Example:
//
//	opts := httpd.DefaultOptions()
//	config.Inject(&opts.Port, store.Int, "HTTP", "Port")
func Inject[T any](dst *T, lookup Lookup[T], group, key string) bool {
	v, ok := lookup(group, key)
	if !ok {
		return false
	}
	*dst = v
	return true
}

// InjectString is Inject specialised for string values of s.
func InjectString(s *Store, dst *string, group, key string) bool {
	return Inject(dst, s.String, group, key)
}

// InjectInt is Inject specialised for integer values of s.
func InjectInt(s *Store, dst *int, group, key string) bool {
	return Inject(dst, s.Int, group, key)
}
