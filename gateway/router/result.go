package router

import (
	"context"
	"errors"
	"sync"

	"github.com/wricardo/wsgateway/gateway/envelope"
)

// ErrAlreadyResolved is returned when a Result is resolved a second time.
var ErrAlreadyResolved = errors.New("result already resolved")

// errNilFailure replaces a nil error passed to Fail.
var errNilFailure = errors.New("handler failed without an error")

// Result is a single-assignment sink for a handler outcome. A handler
// resolves it exactly once with Complete or Fail, possibly from another
// goroutine after the handler function has returned.
type Result struct {
	mu       sync.Mutex
	done     chan struct{}
	resolved bool
	resp     *envelope.Response
	err      error
}

// NewResult creates an unresolved Result.
func NewResult() *Result {
	return &Result{done: make(chan struct{})}
}

// Complete resolves the Result successfully. A nil response means the
// operation produces no frame for the caller.
func (r *Result) Complete(resp *envelope.Response) error {
	return r.resolve(resp, nil)
}

// Fail resolves the Result with an error.
func (r *Result) Fail(err error) error {
	if err == nil {
		err = errNilFailure
	}
	return r.resolve(nil, err)
}

func (r *Result) resolve(resp *envelope.Response, err error) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.resolved {
		return ErrAlreadyResolved
	}
	r.resolved = true
	r.resp = resp
	r.err = err
	close(r.done)
	return nil
}

// Done is closed once the Result is resolved.
func (r *Result) Done() <-chan struct{} {
	return r.done
}

// Resolved reports whether Complete or Fail has been called.
func (r *Result) Resolved() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.resolved
}

// Outcome returns the resolved response or error. Before resolution both are
// nil.
func (r *Result) Outcome() (*envelope.Response, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.resp, r.err
}

// Wait blocks until the Result is resolved or ctx is done.
func (r *Result) Wait(ctx context.Context) (*envelope.Response, error) {
	select {
	case <-r.done:
		return r.Outcome()
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}
