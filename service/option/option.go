// Package option provides a small Option type for values that may be absent,
// such as a wallet identity that only exists while a wallet is connected.
package option

// Option holds either a value (Some) or nothing (None).
// The zero value is None.
type Option[T any] struct {
	value T
	ok    bool
}

// Some returns an Option holding v.
func Some[T any](v T) Option[T] {
	return Option[T]{value: v, ok: true}
}

// None returns an empty Option.
func None[T any]() Option[T] {
	return Option[T]{}
}

// Get returns the held value and whether it is present.
func (o Option[T]) Get() (T, bool) {
	return o.value, o.ok
}

// IsSome reports whether a value is present.
func (o Option[T]) IsSome() bool {
	return o.ok
}

// IsNone reports whether the Option is empty.
func (o Option[T]) IsNone() bool {
	return !o.ok
}

