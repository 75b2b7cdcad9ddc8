// Package view implements the value-type handles described in spec §4.7:
// the only way the rest of the module ever touches a container. A View
// never holds a pointer to a container — only a (container-id, generation)
// pair plus the registry needed to re-resolve it —
// so a stale handle detects the mismatch and fails instead of dereferencing
// freed state (spec I4, design note "Views replace mutable borrows").
package view

import (
	"github.com/scenetree/scenetree/errs"
	"github.com/scenetree/scenetree/events"
	"github.com/scenetree/scenetree/internal/core"
	"github.com/scenetree/scenetree/layout"
	"github.com/scenetree/scenetree/types"
)

// Kind classifies what shape of thing a view addresses (spec §4.7).
type Kind uint8

const (
	Object Kind = iota
	Field
	Array
	Scalar
	Member
)

// ref is the common (id, generation, registry) triple every view kind
// embeds. Re-resolving through reg.Get plus the generation check is what
// makes a view inert after its target's teardown or reuse (spec I4).
type ref struct {
	id         uint64
	generation uint64
	reg        *core.Registry
}

func (r ref) isNull() bool { return r.id == 0 }

func (r ref) resolve(op string) (*core.Container, error) {
	if r.id == 0 {
		return nil, errs.New(errs.ObjectDisposed, op, "null view")
	}
	c, ok := r.reg.Get(r.id)
	if !ok || c.Generation() != r.generation {
		return nil, errs.New(errs.ObjectDisposed, op, "view target disposed or reused")
	}
	return c, nil
}

func refOf(c *core.Container) ref {
	return ref{id: c.ID(), generation: c.Generation(), reg: c.Registry()}
}

// ObjectView addresses a container in its "object" role: a bag of named
// fields (spec §3 "Container ... roles ... object").
type ObjectView struct{ r ref }

// NewObjectView wraps a freshly created or resolved container as the root ObjectView
// of a tree. Used by package storage; exported so other packages in this
// module (never outside it, since core.Container cannot leave the module)
// can bootstrap a view without reaching into internal/core themselves.
func NewObjectView(c *core.Container) ObjectView { return ObjectView{r: refOf(c)} }

// IsNull reports whether v addresses no container (spec "a null view has
// id=0").
func (v ObjectView) IsNull() bool { return v.r.isNull() }

// Exists reports whether v currently resolves to a live container.
func (v ObjectView) Exists() bool {
	_, err := v.r.resolve("ObjectView.Exists")
	return err == nil
}

// ID returns the addressed container's identifier, or 0 for a null view.
func (v ObjectView) ID() uint64 { return v.r.id }

func (v ObjectView) container(op string) (*core.Container, error) {
	return v.r.resolve(op)
}

// FieldHeaders returns a copy of the addressed container's field schema,
// for codecs that must walk every field without knowing names or kinds in
// advance.
func (v ObjectView) FieldHeaders() ([]layout.FieldHeader, error) {
	c, err := v.container("ObjectView.FieldHeaders")
	if err != nil {
		return nil, err
	}
	return c.Layout().Fields(), nil
}

// ReadScalarAny reads field's stored value and Kind without committing to
// a Go type (spec §6 JSON codec: scalar Kind is runtime-determined per
// field).
func (v ObjectView) ReadScalarAny(field string) (any, types.Kind, error) {
	c, err := v.container("ObjectView.ReadScalarAny")
	if err != nil {
		return nil, types.Unknown, err
	}
	return core.ReadScalarAny(c, field)
}

// ReadInlineArrayAny reads every element of an inline array field in its
// natively stored representation, alongside the element Kind.
func (v ObjectView) ReadInlineArrayAny(field string) ([]any, types.Kind, error) {
	c, err := v.container("ObjectView.ReadInlineArrayAny")
	if err != nil {
		return nil, types.Unknown, err
	}
	return core.ReadInlineArrayAny(c, field)
}

// WriteScalarAnyKind installs field as a fresh scalar of exactly kind,
// encoding an already Kind-shaped Go value. Used by codec unmarshal, which
// picks kind dynamically from the wire format.
func (v ObjectView) WriteScalarAnyKind(field string, kind types.Kind, value any) error {
	c, err := v.container("ObjectView.WriteScalarAnyKind")
	if err != nil {
		return err
	}
	return core.WriteScalarAnyKind(c, field, kind, value)
}

// SetInlineArrayAnyKind installs field as a fresh inline array of exactly
// kind elements holding values, replacing whatever previously occupied the
// slot.
func (v ObjectView) SetInlineArrayAnyKind(field string, kind types.Kind, values []any) error {
	c, err := v.container("ObjectView.SetInlineArrayAnyKind")
	if err != nil {
		return err
	}
	return core.SetInlineArrayAnyKind(c, field, kind, values)
}

// EncodeScalar renders a value already in kind's native Go representation
// into kind's fixed-width wire bytes, for codecs (snapcodec) that need to
// serialize a scalar outside of any particular Container.
func EncodeScalar(kind types.Kind, value any) []byte { return core.EncodeScalar(kind, value) }

// DecodeScalar is the inverse of EncodeScalar.
func DecodeScalar(kind types.Kind, raw []byte) any { return core.DecodeScalar(kind, raw) }

// HasField reports whether name is currently a field of the addressed
// container.
func (v ObjectView) HasField(name string) bool {
	c, err := v.container("ObjectView.HasField")
	if err != nil {
		return false
	}
	return c.HasField(name)
}

// Read reads field as T (spec §4.4.1 "read<T>").
func Read[T core.Scalar](v ObjectView, field string) (T, error) {
	var zero T
	c, err := v.container("ObjectView.Read")
	if err != nil {
		return zero, err
	}
	return core.ReadScalar[T](c, field)
}

// TryRead is Read without the error (spec "try_read<T>").
func TryRead[T core.Scalar](v ObjectView, field string) (T, bool) {
	c, err := v.container("ObjectView.TryRead")
	if err != nil {
		var zero T
		return zero, false
	}
	return core.TryReadScalar[T](c, field)
}

// ReadOrDefault reads field as T, substituting def on any failure (spec
// "read_or_default<T>").
func ReadOrDefault[T core.Scalar](v ObjectView, field string, def T) T {
	c, err := v.container("ObjectView.ReadOrDefault")
	if err != nil {
		return def
	}
	return core.ReadOrDefaultScalar[T](c, field, def)
}

// Write writes value into field (spec "write<T>").
func Write[T core.Scalar](v ObjectView, field string, value T, allowReschema bool) error {
	c, err := v.container("ObjectView.Write")
	if err != nil {
		return err
	}
	return core.WriteScalar[T](c, field, value, allowReschema)
}

// TryWrite is Write reporting success instead of an error (spec B1: a
// rejected write neither mutates nor fires events).
func TryWrite[T core.Scalar](v ObjectView, field string, value T, allowReschema bool) bool {
	return Write[T](v, field, value, allowReschema) == nil
}

// ReadArray reads an inline value array field as []T (spec "read_array<T>").
func ReadArray[T core.Scalar](v ObjectView, field string) ([]T, error) {
	c, err := v.container("ObjectView.ReadArray")
	if err != nil {
		return nil, err
	}
	return core.ReadInlineArray[T](c, field)
}

// WriteArrayElem writes one element of an existing inline array field (spec
// B3: an out-of-range index fails without mutation).
func WriteArrayElem[T core.Scalar](v ObjectView, field string, index int, value T) error {
	c, err := v.container("ObjectView.WriteArrayElem")
	if err != nil {
		return err
	}
	return core.WriteInlineArrayElem[T](c, field, index, value)
}

// TryWriteArrayElem is WriteArrayElem reporting success instead of an error.
func TryWriteArrayElem[T core.Scalar](v ObjectView, field string, index int, value T) bool {
	return WriteArrayElem[T](v, field, index, value) == nil
}

// ReadBlob returns a copy of a blob field's bytes.
func (v ObjectView) ReadBlob(field string) ([]byte, error) {
	c, err := v.container("ObjectView.ReadBlob")
	if err != nil {
		return nil, err
	}
	return c.ReadBlob(field)
}

// WriteBlob writes a blob field (spec "override" for blob content).
func (v ObjectView) WriteBlob(field string, data []byte, allowReschema bool) error {
	c, err := v.container("ObjectView.WriteBlob")
	if err != nil {
		return err
	}
	return c.WriteBlob(field, data, allowReschema)
}

// Object resolves field as a reference to a child object, materializing it
// (and the field itself) when missing and createIfMissing is set (spec
// "get_object"). A nil defaultLayout means the canonical empty layout.
func (v ObjectView) Object(field string, createIfMissing bool, defaultLayout *layout.Layout) (ObjectView, error) {
	c, err := v.container("ObjectView.Object")
	if err != nil {
		return ObjectView{}, err
	}
	child, err := c.GetObject(field, createIfMissing, defaultLayout)
	if err != nil {
		return ObjectView{}, err
	}
	if child == nil {
		return ObjectView{}, nil
	}
	return NewObjectView(child), nil
}

// Array resolves field as a reference to an array-container child, wrapping
// it as an ArrayView (spec "get_array").
func (v ObjectView) Array(field string, elem types.Kind, length int, createIfMissing, overrideExisting bool) (ArrayView, error) {
	c, err := v.container("ObjectView.Array")
	if err != nil {
		return ArrayView{}, err
	}
	child, err := c.GetArray(field, elem, length, createIfMissing, overrideExisting)
	if err != nil {
		return ArrayView{}, err
	}
	if child == nil {
		return ArrayView{}, nil
	}
	return ArrayView{r: refOf(child)}, nil
}

// SetArray unconditionally installs field as a freshly sized array
// container, replacing whatever previously occupied the slot (spec §4.8
// "write_path installs a string/array").
func (v ObjectView) SetArray(field string, elem types.Kind, length int) (ArrayView, error) {
	c, err := v.container("ObjectView.SetArray")
	if err != nil {
		return ArrayView{}, err
	}
	child, err := c.SetArray(field, elem, length)
	if err != nil {
		return ArrayView{}, err
	}
	return ArrayView{r: refOf(child)}, nil
}

// EnsureReferenceArray installs field as a reference-array of length if it
// does not already exist (spec §4.8 "make().object_array(min_length)").
func (v ObjectView) EnsureReferenceArray(field string, length int) error {
	c, err := v.container("ObjectView.EnsureReferenceArray")
	if err != nil {
		return err
	}
	return c.EnsureReferenceArray(field, length)
}

// EnsureEmptyReference installs field as an empty reference cell if it
// does not already exist, without materializing a child (spec §6 JSON
// codec: a field holding the JSON null literal).
func (v ObjectView) EnsureEmptyReference(field string) error {
	c, err := v.container("ObjectView.EnsureEmptyReference")
	if err != nil {
		return err
	}
	return c.EnsureEmptyReference(field)
}

// Index resolves element index of a direct (fixed-size) reference-array
// field as an ObjectView, materializing an element object when empty and
// createIfMissing is set.
func (v ObjectView) Index(field string, index int, createIfMissing bool, defaultLayout *layout.Layout) (ObjectView, error) {
	c, err := v.container("ObjectView.Index")
	if err != nil {
		return ObjectView{}, err
	}
	child, err := c.IndexReference(field, index, createIfMissing, defaultLayout)
	if err != nil {
		return ObjectView{}, err
	}
	if child == nil {
		return ObjectView{}, nil
	}
	return NewObjectView(child), nil
}

// Field addresses one named field without committing to its role, for the
// query package's expect()/make()/exist() checks.
func (v ObjectView) Field(name string) (FieldView, error) {
	c, err := v.container("ObjectView.Field")
	if err != nil {
		return FieldView{}, err
	}
	return newFieldView(c, name), nil
}

// Delete removes the named fields, cascading disposal of any reference
// subtrees they held (spec "delete").
func (v ObjectView) Delete(names ...string) (int, error) {
	c, err := v.container("ObjectView.Delete")
	if err != nil {
		return 0, err
	}
	return c.Delete(names...)
}

// Rename changes a field's name in place (spec "rename").
func (v ObjectView) Rename(oldName, newName string) error {
	c, err := v.container("ObjectView.Rename")
	if err != nil {
		return err
	}
	return c.Rename(oldName, newName)
}

// Subscribe registers handler for events on field (or the container as a
// whole, via events.AnyField), per spec §4.6.
func (v ObjectView) Subscribe(key events.Key, handler events.Handler) (events.Subscription, error) {
	c, err := v.container("ObjectView.Subscribe")
	if err != nil {
		return events.Subscription{}, err
	}
	return c.Subscribe(key, handler)
}

// Dispose tears down the addressed container and everything reachable from
// it through references (spec §4.4.2). Used directly by storage.Storage and
// available for manual subtree teardown.
func (v ObjectView) Dispose() {
	c, err := v.container("ObjectView.Dispose")
	if err != nil {
		return
	}
	c.Registry().Unregister(c)
}
