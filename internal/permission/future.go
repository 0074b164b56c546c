package permission

// Future is the deferred shape of a facade operation. Futures returned
// by Permissions are settled at construction: Result never blocks and
// Done is already closed. The immediate operations do all the work;
// this wrapper exists for call sites that treat capability checks as
// asynchronous, such as the sandbox host ABI.
type Future[T any] struct {
	value T
	err   error
	done  chan struct{}
}

func settled[T any](value T, err error) *Future[T] {
	f := &Future[T]{value: value, err: err, done: make(chan struct{})}
	close(f.done)
	return f
}

// Result returns the settled outcome.
func (f *Future[T]) Result() (T, error) {
	return f.value, f.err
}

// Done returns a channel that is closed once the future settles.
func (f *Future[T]) Done() <-chan struct{} {
	return f.done
}
