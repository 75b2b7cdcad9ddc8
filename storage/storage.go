// Package storage provides the entry point to a scenetree tree: Storage
// owns the root container and everything reachable from it, and tears the
// whole tree down on Dispose (spec §3 "Storage owns the root Container; on
// dispose, recursively unregisters all descendants").
package storage

import (
	"github.com/scenetree/scenetree/bufpool"
	"github.com/scenetree/scenetree/internal/core"
	"github.com/scenetree/scenetree/internal/xlog"
	"github.com/scenetree/scenetree/layout"
	"github.com/scenetree/scenetree/query"
	"github.com/scenetree/scenetree/view"
)

// options holds the settings Option values configure on a Storage (spec's ambient "Configuration" concern,
// following the teacher's nodefs.Options/fs.Options naming but a
// functional-options constructor, per the expanded spec's own call).
type options struct {
	registry   *core.Registry
	pool       *bufpool.Pool
	logger     *xlog.Logger
	separator  byte
	rootLayout *layout.Layout
}

// Option configures a Storage at construction time.
type Option func(*options)

// WithLogger attaches a structured logger for bootstrap/dispose
// diagnostics (spec §7 "no core operation logs" — this only ever touches
// Storage's own bookkeeping, never internal/core).
func WithLogger(l *xlog.Logger) Option {
	return func(o *options) { o.logger = l }
}

// WithSeparator records a path segment separator other than the default
// '.', reported by Separator. Storage's path methods do not use it; they
// always parse paths with '.'.
func WithSeparator(sep byte) Option {
	return func(o *options) { o.separator = sep }
}

// WithRootLayout sets the root container's initial layout; the canonical
// empty layout is used if omitted.
func WithRootLayout(l *layout.Layout) Option {
	return func(o *options) { o.rootLayout = l }
}

// WithRegistry injects a pre-built Registry, for tests and codecs that need
// several Storage instances to share identity space. Each Storage still
// owns only its own root subtree; dispose only tears that subtree down.
func WithRegistry(r *core.Registry) Option {
	return func(o *options) { o.registry = r }
}

// Storage is the root-owning handle produced by New or FromRoot.
type Storage struct {
	registry  *core.Registry
	root      view.ObjectView
	logger    *xlog.Logger
	separator byte
}

// DefaultSeparator is the path segment separator used when Options doesn't
// override it (spec §4.8 "default SEP '.'").
const DefaultSeparator = '.'

// New creates a Storage with a fresh root container. Each Storage gets its
// own Registry and buffer Pool by default — both types are independently
// concurrency-safe per spec §5, and per-instance isolation keeps one
// Storage's lifetime from growing another's steady-state footprint; pass
// WithRegistry to share identity space across instances when that is
// genuinely wanted (e.g. a codec test asserting ID non-collision across
// Storages).
func New(opts ...Option) *Storage {
	o := options{separator: DefaultSeparator}
	for _, opt := range opts {
		opt(&o)
	}
	if o.registry == nil {
		pool := o.pool
		if pool == nil {
			pool = bufpool.New()
		}
		o.registry = core.NewRegistry(pool)
	}
	if o.rootLayout == nil {
		o.rootLayout = layout.Empty
	}

	root := o.registry.Create(o.rootLayout)
	s := &Storage{
		registry:  o.registry,
		root:      view.NewObjectView(root),
		logger:    o.logger,
		separator: o.separator,
	}
	s.logger.Info("storage created", xlog.Int("root_id", int(root.ID())))
	return s
}

// newFromContainer wraps an already-materialized root container (used by
// FromRoot) as a Storage sharing its registry.
func newFromContainer(registry *core.Registry, root view.ObjectView, logger *xlog.Logger, sep byte) *Storage {
	if sep == 0 {
		sep = DefaultSeparator
	}
	return &Storage{registry: registry, root: root, logger: logger, separator: sep}
}

// FromRoot builds a Storage around a pre-existing root view, for a tree
// materialized outside storage.New.
func FromRoot(registry *core.Registry, root view.ObjectView, opts ...Option) *Storage {
	o := options{separator: DefaultSeparator}
	for _, opt := range opts {
		opt(&o)
	}
	return newFromContainer(registry, root, o.logger, o.separator)
}

// Root returns the Storage's root ObjectView.
func (s *Storage) Root() view.ObjectView { return s.root }

// Registry returns the Registry backing this Storage's tree, for codecs
// that need to allocate siblings of the root under the same identity
// space.
func (s *Storage) Registry() *core.Registry { return s.registry }

// Separator returns the separator set by WithSeparator, or DefaultSeparator
// if none was set. Storage's path methods do not consult it.
func (s *Storage) Separator() byte { return s.separator }

// Query begins a fluent query chain at the root (spec §4.8).
func (s *Storage) Query() query.Query { return query.New(s.root) }

// GetObjectByPath walks path from the root, allocating missing
// intermediates when createIfMissing is set (spec "get_object_by_path").
func (s *Storage) GetObjectByPath(path string, createIfMissing bool) (view.ObjectView, error) {
	return query.GetObjectByPath(s.root, path, createIfMissing)
}

// ReadPath navigates path without allocation and reads the final scalar
// field as T (spec "read_path<T>").
func ReadPath[T core.Scalar](s *Storage, path string) (T, error) {
	return query.ReadPath[T](s.root, path)
}

// WritePath navigates path, allocating intermediates as needed, and writes
// value into the leaf scalar field (spec "write_path<T>").
func WritePath[T core.Scalar](s *Storage, path string, value T) error {
	return query.WritePath[T](s.root, path, value)
}

// WriteArrayPath installs values as an inline value array at path's leaf
// segment (spec "write_array_path<T>").
func WriteArrayPath[T core.Scalar](s *Storage, path string, values []T) error {
	return query.WriteArrayPath[T](s.root, path, values)
}

// WriteStringPath installs s as a string container at path's leaf segment
// (spec "write_path(path, string)").
func (s *Storage) WriteStringPath(path string, str string) error {
	return query.WriteStringPath(s.root, path, str)
}

// Dispose tears down the root container and everything reachable from it
// through references, recursively unregistering the whole tree (spec §3,
// §4.4.2). Repeated calls are a no-op (spec P3 "repeated dispose() is a
// no-op") since Unregister on an already-disposed container is itself a
// no-op.
func (s *Storage) Dispose() {
	s.logger.Info("storage disposed", xlog.Int("root_id", int(s.root.ID())))
	s.root.Dispose()
}
