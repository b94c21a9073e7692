package wapcruntime

import (
	"context"
	"fmt"
	"time"

	"github.com/Workiva/go-datastructures/queue"

	"github.com/wippyai/wapc-runtime/errors"
)

type (
	// Pool is a fixed-size set of instances of one module, backed by a ring
	// buffer. It exists because instances are single-caller: concurrent
	// invocations each borrow an instance with Get and hand it back with
	// Return.
	Pool struct {
		rb        *queue.RingBuffer
		module    Module
		instances []Instance
	}

	// InstanceInitialize prepares a fresh instance before it enters the
	// pool, e.g. by priming guest state with an invocation.
	InstanceInitialize func(instance Instance) error
)

// NewPool instantiates module size times and returns a pool holding the
// instances. If an initializer is given it runs once per instance; any
// failure aborts pool construction.
func NewPool(ctx context.Context, module Module, size uint64, initializer ...InstanceInitialize) (*Pool, error) {
	var initialize InstanceInitialize
	if len(initializer) > 0 {
		initialize = initializer[0]
	}

	rb := queue.NewRingBuffer(size)
	instances := make([]Instance, size)
	for n := uint64(0); n < size; n++ {
		inst, err := module.Instantiate(ctx)
		if err != nil {
			return nil, err
		}

		if initialize != nil {
			if err = initialize(inst); err != nil {
				return nil, errors.New(errors.PhasePool, errors.KindInvalidInput).
					Detail("initialize instance %d", n).
					Cause(err).
					Build()
			}
		}

		ok, err := rb.Offer(inst)
		if err != nil {
			return nil, err
		}
		if !ok {
			return nil, fmt.Errorf("could not add instance %d to pool of size %d", n, size)
		}

		instances[n] = inst
	}

	return &Pool{
		rb:        rb,
		module:    module,
		instances: instances,
	}, nil
}

// Get borrows an instance from the pool, waiting up to timeout for one to
// become available.
func (p *Pool) Get(timeout time.Duration) (Instance, error) {
	instanceIface, err := p.rb.Poll(timeout)
	if err != nil {
		return nil, errors.PoolExhausted(err)
	}

	inst, ok := instanceIface.(Instance)
	if !ok {
		return nil, fmt.Errorf("item retrieved from pool is not an instance")
	}

	return inst, nil
}

// Return hands a borrowed instance back to the pool.
func (p *Pool) Return(inst Instance) error {
	ok, err := p.rb.Offer(inst)
	if err != nil {
		return err
	}
	if !ok {
		return fmt.Errorf("cannot return instance to full pool")
	}
	return nil
}

// Close disposes the pool and closes every instance it created. Borrowed
// instances are closed too; callers must be done with them.
func (p *Pool) Close(ctx context.Context) {
	p.rb.Dispose()

	for _, inst := range p.instances {
		_ = inst.Close(ctx)
	}
}
