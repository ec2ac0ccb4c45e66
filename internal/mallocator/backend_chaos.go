package mallocator

import (
	"math/rand"
	"sync"
	"time"
	"unsafe"
)

// chaosOracle decides whether the next allocation-returning call should
// fail. decide is always called with the owning ChaosBackend's mutex
// held, so implementations need no locking of their own.
type chaosOracle interface {
	decide() bool
}

// randomOracle is a two-state Markov process: while non-failing, each
// call has probability pFailure of transitioning to failing; while
// failing, each call has probability pRecovery of transitioning back.
// The draw is consumed on every call regardless of which branch it
// lands in.
type randomOracle struct {
	pFailure, pRecovery float64
	failing             bool
	rng                 *rand.Rand
}

func (o *randomOracle) decide() bool {
	p := o.rng.Float64()
	if o.failing {
		if p < o.pRecovery {
			o.failing = false
		}
	} else {
		if p < o.pFailure {
			o.failing = true
		}
	}
	return o.failing
}

// stepOracle is a deterministic alternation: numSuccess consecutive
// non-failing calls, then numFailure consecutive failing calls. With
// repeat false, the cycle runs exactly once and then stays non-failing
// forever; with repeat true, it alternates indefinitely.
//
// The counter is incremented before the bound check, and reset to 1
// (not 0) on transition, so the call that causes a transition is
// itself the first call of the new phase — exactly bound calls elapse
// in each phase.
type stepOracle struct {
	numSuccess, numFailure uint
	repeat                 bool
	failing                bool
	failedOnce             bool
	count                  uint
}

func (o *stepOracle) decide() bool {
	o.count++
	if o.failing {
		if o.count > o.numFailure {
			o.failing = false
			o.count = 1
		}
	} else if !o.failedOnce || o.repeat {
		if o.count > o.numSuccess {
			o.failing = true
			o.failedOnce = true
			o.count = 1
		}
	}
	return o.failing
}

// OracleFunc is a caller-supplied chaos oracle: it returns true when
// the next allocation-returning call should fail. State the oracle
// needs belongs in the closure, not a separately threaded argument.
type OracleFunc func() bool

type customOracle struct {
	fn OracleFunc
}

func (o *customOracle) decide() bool { return o.fn() }

// ChaosBackend injects failures into an otherwise-working backend
// (the platform heap, by default) according to an oracle. Every
// allocation-returning operation (Alloc, Calloc, and Realloc when it is
// not acting as a free) consults the oracle exactly once; Free always
// succeeds and always reaches the underlying backend.
type ChaosBackend struct {
	mu         sync.Mutex
	refCount   int
	oracle     chaosOracle
	underlying Backend // nil means the platform heap directly
}

// ChaosRandomBackend builds a chaos backend driven by a two-state
// Markov oracle, seeded from the current time.
func ChaosRandomBackend(pFailure, pRecovery float64) *ChaosBackend {
	return ChaosRandomBackendSeeded(pFailure, pRecovery, time.Now().UnixNano())
}

// ChaosRandomBackendSeeded is ChaosRandomBackend with an explicit seed,
// for reproducible tests.
func ChaosRandomBackendSeeded(pFailure, pRecovery float64, seed int64) *ChaosBackend {
	return newChaosBackend(&randomOracle{
		pFailure:  pFailure,
		pRecovery: pRecovery,
		rng:       rand.New(rand.NewSource(seed)),
	}, nil)
}

// ChaosStepBackend builds a chaos backend driven by the deterministic
// numSuccess/numFailure alternation described on stepOracle.
func ChaosStepBackend(numSuccess, numFailure uint, repeat bool) *ChaosBackend {
	return newChaosBackend(&stepOracle{numSuccess: numSuccess, numFailure: numFailure, repeat: repeat}, nil)
}

// ChaosCustomBackend builds a chaos backend driven entirely by fn.
func ChaosCustomBackend(fn OracleFunc) *ChaosBackend {
	return newChaosBackend(&customOracle{fn: fn}, nil)
}

func newChaosBackend(oracle chaosOracle, underlying Backend) *ChaosBackend {
	return &ChaosBackend{refCount: 1, oracle: oracle, underlying: underlying}
}

func (c *ChaosBackend) fail() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.oracle.decide()
}

// CreateChild shares the single oracle across the whole subtree by
// incrementing a reference count rather than creating an independent
// copy: chaos injected under one child is observed by all its
// siblings, matching a single fault domain rather than one per node.
func (c *ChaosBackend) CreateChild(string) (Backend, error) {
	c.mu.Lock()
	c.refCount++
	c.mu.Unlock()
	return c, nil
}

func (c *ChaosBackend) Destroy() {
	c.mu.Lock()
	c.refCount--
	die := c.refCount == 0
	c.mu.Unlock()
	if die && c.underlying != nil {
		c.underlying.Destroy()
	}
}

func (c *ChaosBackend) Alloc(size uintptr) unsafe.Pointer {
	if c.fail() {
		return nil
	}
	if c.underlying != nil {
		return c.underlying.Alloc(size)
	}
	return platformAlloc(size)
}

func (c *ChaosBackend) Calloc(n, size uintptr) unsafe.Pointer {
	if c.fail() {
		return nil
	}
	if c.underlying != nil {
		return c.underlying.Calloc(n, size)
	}
	return platformCalloc(n, size)
}

func (c *ChaosBackend) Realloc(ptr unsafe.Pointer, oldSize, newSize uintptr) unsafe.Pointer {
	if newSize == 0 {
		c.Free(ptr, oldSize)
		return nil
	}
	if c.fail() {
		return nil
	}
	if c.underlying != nil {
		return c.underlying.Realloc(ptr, oldSize, newSize)
	}
	return platformRealloc(ptr, oldSize, newSize)
}

func (c *ChaosBackend) Free(ptr unsafe.Pointer, size uintptr) {
	if c.underlying != nil {
		c.underlying.Free(ptr, size)
		return
	}
	platformFree(ptr, size)
}
