package listview

import (
	"context"
	"sync"

	"github.com/pkg/errors"
)

// ErrDeleteNotAllowed is returned when a non-admin viewer opens a delete dialog.
var ErrDeleteNotAllowed = errors.New("delete is not available")

// Deleter invokes the remote delete-mutation for one item.
type Deleter interface {
	Delete(ctx context.Context, id string) error
}

// DeleterFunc adapts a function to Deleter.
type DeleterFunc func(ctx context.Context, id string) error

func (f DeleterFunc) Delete(ctx context.Context, id string) error { return f(ctx, id) }

// DeleteFlow is the confirm-then-delete dialog of a list row. The row is never
// removed locally; the live source reports the deletion.
type DeleteFlow struct {
	mu     sync.Mutex
	gate   Gate
	target string
	open   bool
	err    error
}

// NewDeleteFlow returns a closed dialog for gate.
func NewDeleteFlow(gate Gate) *DeleteFlow {
	return &DeleteFlow{gate: gate}
}

// Open shows the confirmation for id.
func (f *DeleteFlow) Open(id string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if !AffordancesFor(f.gate).Delete {
		return ErrDeleteNotAllowed
	}
	f.target, f.open, f.err = id, true, nil
	return nil
}

// Confirm calls d for the open target. On success the dialog closes; on failure
// it stays open and the error is kept for display.
func (f *DeleteFlow) Confirm(ctx context.Context, d Deleter) error {
	f.mu.Lock()
	if !f.open {
		f.mu.Unlock()
		return errors.New("no delete in progress")
	}
	id := f.target
	f.mu.Unlock()

	err := d.Delete(ctx, id)

	f.mu.Lock()
	defer f.mu.Unlock()
	if err != nil {
		f.err = err
		return err
	}
	f.target, f.open, f.err = "", false, nil
	return nil
}

// Cancel closes the dialog without calling anything.
func (f *DeleteFlow) Cancel() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.target, f.open, f.err = "", false, nil
}

// IsOpen reports whether a confirmation is showing.
func (f *DeleteFlow) IsOpen() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.open
}

// Target returns the id awaiting confirmation.
func (f *DeleteFlow) Target() string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.target
}

// Err returns the last delete failure.
func (f *DeleteFlow) Err() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.err
}
