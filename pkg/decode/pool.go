package decode

import (
	"context"
	"fmt"

	"go.uber.org/zap"
)

// Factory constructs one configured decoder handle for the pool.
type Factory func() (Decoder, error)

// Pool is a fixed-capacity set of interchangeable decoder handles. Every
// handle is built up front with identical configuration; workers check a
// handle out with Acquire and must return it with Release. The pool never
// grows or shrinks.
//
// Handles carry a mutable series cursor, so SetSeries may only be called when
// every handle is checked in: it drains the pool, mutates each handle, and
// refills it. The converter guarantees this by fully draining the scheduler
// before each series transition.
type Pool struct {
	handles chan Decoder
	size    int
	log     *zap.Logger
}

// NewPool builds size identically configured handles. If any construction
// fails, every already-built handle is closed and the error is returned.
func NewPool(size int, factory Factory, log *zap.Logger) (*Pool, error) {
	if size <= 0 {
		return nil, fmt.Errorf("pool size must be positive, got %d", size)
	}
	p := &Pool{
		handles: make(chan Decoder, size),
		size:    size,
		log:     log,
	}
	for i := 0; i < size; i++ {
		d, err := factory()
		if err != nil {
			p.Close()
			return nil, fmt.Errorf("constructing decoder %d of %d: %w", i+1, size, err)
		}
		p.handles <- d
	}
	return p, nil
}

// Acquire blocks until a handle is available or the context is done.
func (p *Pool) Acquire(ctx context.Context) (Decoder, error) {
	select {
	case d, ok := <-p.handles:
		if !ok {
			return nil, ErrPoolClosed
		}
		return d, nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// Release returns a handle to the pool.
func (p *Pool) Release(d Decoder) {
	if d == nil {
		return
	}
	p.handles <- d
}

// Size returns the fixed pool capacity.
func (p *Pool) Size() int { return p.size }

// SetSeries moves every pooled handle's series cursor. It blocks until all
// handles are checked in, so callers must have drained any work that could
// still hold one.
func (p *Pool) SetSeries(series int) error {
	checked := make([]Decoder, 0, p.size)
	for i := 0; i < p.size; i++ {
		checked = append(checked, <-p.handles)
	}
	var firstErr error
	for _, d := range checked {
		if err := d.SetSeries(series); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	for _, d := range checked {
		p.handles <- d
	}
	if firstErr != nil {
		return fmt.Errorf("setting series %d on pooled decoders: %w", series, firstErr)
	}
	return nil
}

// Close closes every handle currently in the pool. Individual close failures
// are logged and do not stop the remaining handles from being closed.
func (p *Pool) Close() error {
	close(p.handles)
	for d := range p.handles {
		if err := d.Close(); err != nil {
			p.log.Error("closing pooled decoder", zap.Error(err))
		}
	}
	return nil
}
