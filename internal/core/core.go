// Package core implements the Container and Registry described in spec §4.4
// and §4.5. It is internal: Go's internal/ visibility rule means no package
// outside this module can import it, which is what keeps the Container type
// out of every public signature (spec §6) without any extra bookkeeping —
// callers only ever see the view package's value-type handles.
//
// Container and Registry live in the same package, grounded on the
// teacher's nodefs package bundling Inode (container.go) and rawBridge
// (registry.go) together so that container teardown can reach directly into
// registry bookkeeping without an import cycle.
//
// Mutation of a single Container is single-threaded by design (spec §5
// non-goal: "thread-safe concurrent mutation of the same container"); only
// Registry.Get is required to be safe for concurrent callers, so only the
// Registry's id/parent maps are guarded by a mutex.
package core

import (
	"encoding/binary"
	"sync"

	"github.com/scenetree/scenetree/bufpool"
	"github.com/scenetree/scenetree/errs"
	"github.com/scenetree/scenetree/events"
	"github.com/scenetree/scenetree/layout"
)

// maxReentry bounds recursive self-triggering writes from inside an event
// handler (spec §9 open question: "implementations must document and enforce
// a bound"). A handler that rewrites its own field on every callback will
// stop recursing silently once this depth is reached, rather than blow the
// stack.
const maxReentry = 8

// ParentLink records where a container is referenced from: the holding
// container's ID, the field name, and (for reference-array fields) the
// element index.
type ParentLink struct {
	ParentID uint64
	Field    string
	Index    int
	HasIndex bool
}

// subscriptionEntry is one registered handler. seq gives stable dispatch
// ordering and a cancellation handle; live is cleared on cancel/auto-invalidate
// so a handler already captured by a dispatch snapshot does not fire twice.
type subscriptionEntry struct {
	seq     uint64
	handler events.Handler
	live    bool
}

// Container is a node in the tree: a pooled buffer laid out by one Layout,
// registered with a Registry under a stable ID (spec §3, §4.4).
type Container struct {
	id         uint64
	generation uint64
	layout     *layout.Layout
	buf        []byte
	disposed   bool
	registry   *Registry

	subs    map[events.Key][]*subscriptionEntry
	subSeq  uint64
	reentry map[string]int
}

// ID returns the container's stable 64-bit identifier.
func (c *Container) ID() uint64 { return c.id }

// Generation returns the container's current generation counter.
func (c *Container) Generation() uint64 { return c.generation }

// IsDisposed reports whether the container has been torn down.
func (c *Container) IsDisposed() bool { return c.disposed }

// Layout returns the container's current field schema.
func (c *Container) Layout() *layout.Layout { return c.layout }

// HasField reports whether name is currently a field of this container.
func (c *Container) HasField(name string) bool {
	_, ok := c.layout.Field(name)
	return ok
}

// Registry returns the container's owning registry.
func (c *Container) Registry() *Registry { return c.registry }

func (c *Container) target() events.Target {
	return events.Target{ID: c.id, Generation: c.generation}
}

// debugString mirrors nodefs/inode.go's debugString(): a terse one-line
// dump for ad-hoc debugging.
func (c *Container) debugString() string {
	return c.layout.String()
}

func (c *Container) checkLive(op string) error {
	if c.disposed {
		return errs.New(errs.ObjectDisposed, op, "container disposed")
	}
	return nil
}

// Registry is the process-wide identity service (spec §4.5): an ID→Container
// map plus a child→parent map, safe for concurrent Get calls from any thread
// while the owner thread mutates the tree (spec §5).
type Registry struct {
	mu         sync.RWMutex
	containers map[uint64]*Container
	parents    map[uint64]ParentLink
	nextID     uint64
	pool       *bufpool.Pool
}

// NewRegistry returns an empty Registry backed by pool.
func NewRegistry(pool *bufpool.Pool) *Registry {
	return &Registry{
		containers: make(map[uint64]*Container),
		parents:    make(map[uint64]ParentLink),
		pool:       pool,
		nextID:     1, // 0 is reserved for "none" (spec I1)
	}
}

// Create allocates a fresh container under the given layout and registers it.
func (r *Registry) Create(l *layout.Layout) *Container {
	if l == nil {
		l = layout.Empty
	}
	buf := r.pool.Rent(l.Stride())
	c := &Container{
		layout:     l,
		buf:        buf,
		generation: 1,
		subs:       make(map[events.Key][]*subscriptionEntry),
		reentry:    make(map[string]int),
	}

	r.mu.Lock()
	c.id = r.nextID
	r.nextID++
	c.registry = r
	r.containers[c.id] = c
	r.mu.Unlock()

	return c
}

// Get resolves id to its live container. It returns false once the
// container has been unregistered, and is safe to call concurrently with
// mutation happening on the owner thread (spec §5).
func (r *Registry) Get(id uint64) (*Container, bool) {
	if id == 0 {
		return nil, false
	}
	r.mu.RLock()
	c, ok := r.containers[id]
	r.mu.RUnlock()
	if !ok || c.disposed {
		return nil, false
	}
	return c, true
}

// ParentOf reports the recorded parent link for id, if any.
func (r *Registry) ParentOf(id uint64) (ParentLink, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	l, ok := r.parents[id]
	return l, ok
}

// SetParent records that childID is referenced from the given link. Per
// spec §9, a container already parented cannot be assigned a second parent
// (cyclic/shared references are disallowed by construction).
func (r *Registry) SetParent(childID uint64, link ParentLink) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if existing, ok := r.parents[childID]; ok && existing != link {
		return errs.Newf(errs.InvalidState, "Registry.SetParent", "container %d already has a parent", childID)
	}
	r.parents[childID] = link
	return nil
}

// ClearParent removes any recorded parent link for childID.
func (r *Registry) ClearParent(childID uint64) {
	r.mu.Lock()
	delete(r.parents, childID)
	r.mu.Unlock()
}

// Unregister recursively tears down c and every container reachable from it
// through reference/reference-array fields, post-order (spec §4.4.2,
// §4.4.2 state machine): children are disposed (and their Dispose events
// fired) before c itself. Unregistering an already-disposed container, or
// nil, is a no-op (spec I5, Registry invariant: "unregister is
// reentrant-safe for already-unregistered IDs").
func (r *Registry) Unregister(c *Container) {
	if c == nil || c.disposed {
		return
	}

	for _, f := range c.layout.Fields() {
		switch {
		case f.IsReference():
			if id := decodeRef(c.buf[f.Offset : f.Offset+8]); id != 0 {
				if child, ok := r.Get(id); ok {
					r.Unregister(child)
				}
			}
		case f.IsReferenceArray():
			for i := 0; i < f.ArrayLen; i++ {
				off := f.Offset + i*8
				if id := decodeRef(c.buf[off : off+8]); id != 0 {
					if child, ok := r.Get(id); ok {
						r.Unregister(child)
					}
				}
			}
		}
	}

	c.fireDisposeAndClear()
	c.disposed = true
	c.generation++

	r.mu.Lock()
	delete(r.containers, c.id)
	delete(r.parents, c.id)
	r.mu.Unlock()

	r.pool.Return(c.buf)
	c.buf = nil
}

func decodeRef(b []byte) uint64 {
	return binary.LittleEndian.Uint64(b)
}

func encodeRef(b []byte, id uint64) {
	binary.LittleEndian.PutUint64(b, id)
}
