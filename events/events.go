// Package events defines the public data-transfer types of scenetree's
// event bus (spec §4.6): event kinds, the Event value delivered to
// handlers, and the Handler and Subscription types used to register and
// cancel interest. Dispatch logic lives in internal/core next to Container,
// since subscription tables are per-container state; this package only
// carries the shapes both sides agree on.
package events

import "github.com/scenetree/scenetree/types"

// Kind classifies an Event.
type Kind uint8

const (
	Write Kind = iota
	Rename
	Delete
	Dispose
)

func (k Kind) String() string {
	switch k {
	case Write:
		return "write"
	case Rename:
		return "rename"
	case Delete:
		return "delete"
	case Dispose:
		return "dispose"
	default:
		return "unknown"
	}
}

// Target is the minimal view-shaped reference to the container an Event
// concerns, without importing the view package (which itself depends on
// internal/core, which depends on events — keeping this package leaf-level
// avoids that cycle). Target.ID == 0 denotes a disposed/null target.
type Target struct {
	ID         uint64
	Generation uint64
}

// IsNull reports whether the target refers to no live container.
func (t Target) IsNull() bool { return t.ID == 0 }

// Event carries one notification delivered to a subscriber.
type Event struct {
	Kind Kind

	// Target is the container the event concerns. For a Dispose event this
	// is the null Target (spec §4.4.2: "target set to null-view").
	Target Target

	// Path is the field name for an event on its own container, or a
	// dotted path from the receiving ancestor to the affected field for a
	// bubbled event (spec §4.6).
	Path string

	// FieldType is populated for Write and Rename events.
	FieldType types.Kind

	// OldName is populated for Rename events.
	OldName string
}

// Handler receives event notifications. Handlers run synchronously and
// inline on the emitting thread (spec §4.6) and may themselves mutate the
// container tree; a per-(container,field) reentrancy guard bounds recursive
// self-triggering (spec §9 open question, resolved in DESIGN.md).
type Handler func(Event)

// Key identifies what a Subscription listens to: either a specific field
// name, or AnyField for a container-wide subscription.
type Key struct {
	Field string
	Any   bool
}

// AnyField is the container-scoped subscription key (spec §4.6: "the
// sentinel any-field").
var AnyField = Key{Any: true}

// FieldKey builds a field-scoped subscription key.
func FieldKey(name string) Key { return Key{Field: name} }

// Subscription is an opaque, cancelable handle returned by Subscribe. It is
// a value type safe to store and copy; Cancel is idempotent.
type Subscription struct {
	containerID uint64
	generation  uint64
	key         Key
	seq         uint64
	cancel      func(id uint64, generation uint64, key Key, seq uint64)
}

// NewSubscription is called only by internal/core.
func NewSubscription(containerID, generation uint64, key Key, seq uint64, cancel func(uint64, uint64, Key, uint64)) Subscription {
	return Subscription{containerID: containerID, generation: generation, key: key, seq: seq, cancel: cancel}
}

// Cancel removes the subscription. Calling Cancel more than once, or after
// the underlying container was disposed, is a no-op.
func (s Subscription) Cancel() {
	if s.cancel != nil {
		s.cancel(s.containerID, s.generation, s.key, s.seq)
	}
}
