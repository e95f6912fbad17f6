package domain

// Optional marks whether a value was supplied. The zero Optional is unset,
// which is distinct from Some of the type's zero value.
type Optional[T any] struct {
	value T
	set   bool
}

// Some returns an Optional holding v.
func Some[T any](v T) Optional[T] {
	return Optional[T]{value: v, set: true}
}

// None returns an unset Optional.
func None[T any]() Optional[T] {
	return Optional[T]{}
}

// Get returns the value and whether it was set.
func (o Optional[T]) Get() (T, bool) {
	return o.value, o.set
}

// IsSet reports whether a value was supplied.
func (o Optional[T]) IsSet() bool {
	return o.set
}

// ValueOr returns the value if set, otherwise def.
func (o Optional[T]) ValueOr(def T) T {
	if o.set {
		return o.value
	}
	return def
}
