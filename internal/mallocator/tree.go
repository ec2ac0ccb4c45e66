package mallocator

import (
	"sync"
	"sync/atomic"

	"github.com/arborist-systems/mallocator/internal/merr"
	"github.com/rs/zerolog"
)

// LeakReporterFunc is invoked once per handle, synchronously during its
// destruction, for any handle whose allocated counters exceed its freed
// counters at that moment. It must not block on anything that might in
// turn wait on an allocation — the same discipline a tracer callback
// must follow.
type LeakReporterFunc func(fullName string, blocksLeaked, bytesLeaked uint64)

// Tree is the shared structural state of one handle graph: the mutex
// guarding every handle's ref_count/children/parent in the graph, the
// root handle, the statistics strategy new handles are born with, and
// an optional leak reporter inherited by the whole graph.
type Tree struct {
	mu           sync.Mutex
	root         *Handle
	statsMode    StatsMode
	leakReporter atomic.Pointer[LeakReporterFunc]
	logger       zerolog.Logger
}

// Config collects the options a tree is constructed with.
type Config struct {
	StatsMode    StatsMode
	LeakReporter LeakReporterFunc
	Logger       zerolog.Logger
}

// Option mutates a Config during tree construction.
type Option func(*Config)

// WithStatsMode selects the statistics-collection strategy for every
// handle in the tree (root and every descendant created afterward).
func WithStatsMode(mode StatsMode) Option {
	return func(c *Config) { c.StatsMode = mode }
}

// WithLeakReporter installs a leak reporter at construction time,
// equivalent to calling SetLeakReporter on the freshly created root.
func WithLeakReporter(fn LeakReporterFunc) Option {
	return func(c *Config) { c.LeakReporter = fn }
}

// WithLogger overrides the tree's structured logger. The default
// logger is disabled; a tree stays silent until a caller opts in.
func WithLogger(logger zerolog.Logger) Option {
	return func(c *Config) { c.Logger = logger }
}

func defaultConfig() *Config {
	return &Config{
		StatsMode: StatsLocked,
		Logger:    zerolog.Nop(),
	}
}

// New creates a root handle backed directly by the platform heap.
func New(name string, opts ...Option) (*Handle, error) {
	return newRoot(name, nil, opts...)
}

// NewCustom creates a root handle backed by an explicit Backend, such
// as a chaos or tracer backend built by this package's factories.
func NewCustom(name string, backend Backend, opts ...Option) (*Handle, error) {
	if backend == nil {
		return nil, merr.InvalidConfig("NewCustom requires a non-nil backend")
	}
	return newRoot(name, backend, opts...)
}

func newRoot(name string, backend Backend, opts ...Option) (*Handle, error) {
	cfg := defaultConfig()
	for _, o := range opts {
		o(cfg)
	}

	tree := &Tree{statsMode: cfg.StatsMode, logger: cfg.Logger}
	root := &Handle{
		tree:    tree,
		name:    name,
		backend: backend,
		stats:   newStatsCollector(cfg.StatsMode),
	}
	root.refCount.Store(1)
	tree.root = root

	if cfg.LeakReporter != nil {
		tree.leakReporter.Store(&cfg.LeakReporter)
	}
	return root, nil
}

// SetLeakReporter installs or replaces the leak reporter for the whole
// tree root belongs to. root must be a handle with no parent — passing
// a non-root handle returns an error.
func SetLeakReporter(root *Handle, fn LeakReporterFunc) error {
	if root.parent != nil {
		return merr.InvalidConfig("SetLeakReporter requires a root handle")
	}
	root.tree.leakReporter.Store(&fn)
	return nil
}

// ClearLeakReporter removes whatever leak reporter is installed on
// root's tree.
func ClearLeakReporter(root *Handle) error {
	if root.parent != nil {
		return merr.InvalidConfig("ClearLeakReporter requires a root handle")
	}
	root.tree.leakReporter.Store(nil)
	return nil
}
