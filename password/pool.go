package password

import (
	"context"
	"errors"
	"runtime"
	"sync"
)

// ErrPoolClosed is returned by Pool methods after Close.
var ErrPoolClosed = errors.New("password pool closed")

type result struct {
	hash string
	ok   bool
	err  error
}

type job struct {
	run func() result
	out chan result
}

// Pool runs Argon2 work on a fixed set of worker goroutines so that the
// deliberately slow derivation never occupies more than Workers CPUs and
// callers only wait on their own result.
//
// Pool is safe for concurrent use.
type Pool struct {
	hasher  *Argon2
	workers int
	jobs    chan job
	done    chan struct{}

	wg        sync.WaitGroup
	closeOnce sync.Once
}

// NewPool starts workers goroutines (runtime.NumCPU() when workers <= 0)
// that execute Hash and Verify on hasher.
func NewPool(hasher *Argon2, workers int) (*Pool, error) {
	if hasher == nil {
		return nil, errors.New("nil hasher")
	}
	if workers <= 0 {
		workers = runtime.NumCPU()
	}

	p := &Pool{
		hasher:  hasher,
		workers: workers,
		jobs:    make(chan job),
		done:    make(chan struct{}),
	}
	p.wg.Add(workers)
	for i := 0; i < workers; i++ {
		go p.worker()
	}
	return p, nil
}

func (p *Pool) worker() {
	defer p.wg.Done()
	for {
		select {
		case j := <-p.jobs:
			j.out <- j.run()
		case <-p.done:
			return
		}
	}
}

func (p *Pool) submit(ctx context.Context, run func() result) (result, error) {
	if p == nil {
		return result{}, ErrPoolClosed
	}
	if ctx == nil {
		ctx = context.Background()
	}
	if err := ctx.Err(); err != nil {
		return result{}, err
	}

	// Buffered so a worker never blocks on a caller that gave up.
	out := make(chan result, 1)
	select {
	case p.jobs <- job{run: run, out: out}:
	case <-p.done:
		return result{}, ErrPoolClosed
	case <-ctx.Done():
		return result{}, ctx.Err()
	}

	select {
	case r := <-out:
		return r, nil
	case <-ctx.Done():
		return result{}, ctx.Err()
	}
}

// Hash hashes password on a worker.
func (p *Pool) Hash(ctx context.Context, password string) (string, error) {
	r, err := p.submit(ctx, func() result {
		h, err := p.hasher.Hash(password)
		return result{hash: h, err: err}
	})
	if err != nil {
		return "", err
	}
	return r.hash, r.err
}

// Verify checks password against encodedHash on a worker.
func (p *Pool) Verify(ctx context.Context, password, encodedHash string) (bool, error) {
	r, err := p.submit(ctx, func() result {
		ok, err := p.hasher.Verify(password, encodedHash)
		return result{ok: ok, err: err}
	})
	if err != nil {
		return false, err
	}
	return r.ok, r.err
}

// Workers returns the number of worker goroutines.
func (p *Pool) Workers() int {
	if p == nil {
		return 0
	}
	return p.workers
}

// Hasher returns the underlying Argon2 configuration holder.
func (p *Pool) Hasher() *Argon2 {
	if p == nil {
		return nil
	}
	return p.hasher
}

// Close stops the workers after in-flight jobs finish. Subsequent calls
// return ErrPoolClosed.
func (p *Pool) Close() {
	if p == nil {
		return
	}
	p.closeOnce.Do(func() {
		close(p.done)
		p.wg.Wait()
	})
}
