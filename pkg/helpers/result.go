package helpers

// Result carries a value or the error that prevented computing it. It is
// used where a failure should be handed to the caller as data instead of
// aborting the surrounding operation, most prominently endpoint resolution
// where a failed lookup falls back to static configuration.
type Result[T any] struct {
	value T
	err   error
}

func NewResult[T any](value T, err error) Result[T] {
	return Result[T]{value: value, err: err}
}

func NewValueResult[T any](value T) Result[T] {
	return Result[T]{value: value}
}

func NewErrorResult[T any](err error) Result[T] {
	return Result[T]{err: err}
}

func (r Result[T]) Value() (T, error) {
	return r.value, r.err
}

func (r Result[T]) Error() error {
	return r.err
}

func (r Result[T]) Ok() bool {
	return r.err == nil
}

// ValueOr returns the value, or v when the result holds an error.
func (r Result[T]) ValueOr(v T) T {
	if r.err != nil {
		return v
	}
	return r.value
}

// ValueOrElse returns the value, or the fallback computed from the error.
// The callback sees the error so the caller can log why the fallback was
// taken without having to unpack the result twice.
func (r Result[T]) ValueOrElse(fallback func(err error) T) T {
	if r.err != nil {
		return fallback(r.err)
	}
	return r.value
}
