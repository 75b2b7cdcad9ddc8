package core

import (
	"github.com/scenetree/scenetree/errs"
	"github.com/scenetree/scenetree/events"
	"github.com/scenetree/scenetree/layout"
	"github.com/scenetree/scenetree/types"
)

// ReadInlineArray returns a copy of field's elements, decoded as T (spec
// §4.4.1, fixed-length inline value arrays).
func ReadInlineArray[T Scalar](c *Container, field string) ([]T, error) {
	if err := c.checkLive("Container.ReadInlineArray"); err != nil {
		return nil, err
	}
	h, ok := c.layout.Field(field)
	if !ok {
		return nil, errs.Newf(errs.InvalidArgument, "Container.ReadInlineArray", "no such field %q", field)
	}
	if !h.IsInlineArray() {
		return nil, errs.Newf(errs.TypeMismatch, "Container.ReadInlineArray", "field %q is not an inline array", field)
	}
	wantKind := kindOf[T]()
	if !types.ImplicitlyConvertible(h.Elem, wantKind) {
		return nil, errs.Newf(errs.TypeMismatch, "Container.ReadInlineArray", "field %q elements are %s, cannot read as %s", field, h.Elem, wantKind)
	}
	elemSize, _ := types.FixedSize(h.Elem)
	out := make([]T, h.ArrayLen)
	for i := 0; i < h.ArrayLen; i++ {
		off := h.Offset + i*elemSize
		decoded := decodeStored(h.Elem, c.buf[off:off+elemSize])
		v, ok := convertTo[T](wantKind, decoded)
		if !ok {
			return nil, errs.Newf(errs.TypeMismatch, "Container.ReadInlineArray", "element %d of %q could not convert", i, field)
		}
		out[i] = v
	}
	return out, nil
}

// WriteInlineArrayElem writes a single element of an existing inline array
// field in place (spec B3: an out-of-range index reports false/error
// without touching the buffer).
func WriteInlineArrayElem[T Scalar](c *Container, field string, index int, value T) error {
	if err := c.checkLive("Container.WriteInlineArrayElem"); err != nil {
		return err
	}
	h, ok := c.layout.Field(field)
	if !ok {
		return errs.Newf(errs.InvalidArgument, "Container.WriteInlineArrayElem", "no such field %q", field)
	}
	if !h.IsInlineArray() {
		return errs.Newf(errs.TypeMismatch, "Container.WriteInlineArrayElem", "field %q is not an inline array", field)
	}
	if index < 0 || index >= h.ArrayLen {
		return errs.Newf(errs.IndexOutOfRange, "Container.WriteInlineArrayElem", "index %d out of range for %q (len %d)", index, field, h.ArrayLen)
	}
	wantKind := kindOf[T]()
	if wantKind != h.Elem {
		return errs.Newf(errs.TypeMismatch, "Container.WriteInlineArrayElem", "field %q elements are %s, not %s", field, h.Elem, wantKind)
	}
	elemSize, _ := types.FixedSize(h.Elem)
	off := h.Offset + index*elemSize
	encodeInto(h.Elem, any(value), c.buf[off:off+elemSize])
	c.publish(events.Write, field, h.Elem, "")
	return nil
}

// TryWriteInlineArrayElem reports success instead of returning an error
// (spec B3 "try_write" style index-bound check).
func TryWriteInlineArrayElem[T Scalar](c *Container, field string, index int, value T) bool {
	return WriteInlineArrayElem[T](c, field, index, value) == nil
}

// ReadBlob returns a copy of a blob field's bytes.
func (c *Container) ReadBlob(field string) ([]byte, error) {
	if err := c.checkLive("Container.ReadBlob"); err != nil {
		return nil, err
	}
	h, ok := c.layout.Field(field)
	if !ok {
		return nil, errs.Newf(errs.InvalidArgument, "Container.ReadBlob", "no such field %q", field)
	}
	if h.Elem != types.Blob {
		return nil, errs.Newf(errs.TypeMismatch, "Container.ReadBlob", "field %q is not a blob", field)
	}
	out := make([]byte, h.Length)
	copy(out, c.buf[h.Offset:h.Offset+h.Length])
	return out, nil
}

// WriteBlob writes a new blob field, reschemaing to grow/shrink/add it as
// needed (blobs have no implicit-conversion domain: any size change is a
// reschema, spec §4.2 "Blob... participates in no implicit conversion").
func (c *Container) WriteBlob(field string, data []byte, allowReschema bool) error {
	if err := c.checkLive("Container.WriteBlob"); err != nil {
		return err
	}
	h, ok := c.layout.Field(field)
	if ok && h.Elem == types.Blob && h.Length == len(data) {
		copy(c.buf[h.Offset:h.Offset+h.Length], data)
		c.publish(events.Write, field, types.Blob, "")
		return nil
	}
	if !allowReschema {
		return errs.Newf(errs.TypeMismatch, "Container.WriteBlob", "field %q needs reschema and allow_reschema is false", field)
	}
	var fields []layout.FieldHeader
	replaced := false
	for _, f := range c.layout.Fields() {
		if f.Name == field {
			f.Elem = types.Blob
			f.Length = len(data)
			f.Flags = 0
			f.ArrayLen = 0
			replaced = true
		}
		fields = append(fields, f)
	}
	if !replaced {
		fields = append(fields, layout.FieldHeader{Name: field, Elem: types.Blob, Length: len(data)})
	}
	newLayout, err := rebuildLayout(fields)
	if err != nil {
		return errs.Newf(errs.InvalidState, "Container.WriteBlob", "%v", err)
	}
	c.reschema(newLayout, nil)
	nh, _ := c.layout.Field(field)
	copy(c.buf[nh.Offset:nh.Offset+nh.Length], data)
	c.publish(events.Write, field, types.Blob, "")
	return nil
}

// GetObject resolves field as a reference cell, materializing a fresh
// child container under defaultLayout (or the canonical empty layout) when
// the slot is empty and createIfMissing is set, and adding the reference
// field itself (reschema) when it does not yet exist at all (spec §4.4.1
// "get_object"). Returns (nil, nil) when the slot is empty and
// createIfMissing is false — callers surface that as a null view.
func (c *Container) GetObject(field string, createIfMissing bool, defaultLayout *layout.Layout) (*Container, error) {
	if err := c.checkLive("Container.GetObject"); err != nil {
		return nil, err
	}
	if defaultLayout == nil {
		defaultLayout = layout.Empty
	}

	h, ok := c.layout.Field(field)
	if ok && !h.IsReference() {
		return nil, errs.Newf(errs.TypeMismatch, "Container.GetObject", "field %q is not a reference", field)
	}

	if !ok {
		if !createIfMissing {
			return nil, errs.Newf(errs.InvalidArgument, "Container.GetObject", "no such field %q", field)
		}
		fields := append([]layout.FieldHeader{}, c.layout.Fields()...)
		newLayout, err := rebuildLayout(append(fields, layout.FieldHeader{Name: field, Elem: types.Ref, Length: 8, Flags: layout.FlagReference}))
		if err != nil {
			return nil, errs.Newf(errs.InvalidState, "Container.GetObject", "%v", err)
		}
		c.reschema(newLayout, nil)
		h, _ = c.layout.Field(field)
		child := c.registry.Create(defaultLayout)
		encodeRef(c.buf[h.Offset:h.Offset+8], child.ID())
		if err := c.registry.SetParent(child.ID(), ParentLink{ParentID: c.id, Field: field}); err != nil {
			return nil, err
		}
		c.publish(events.Write, field, types.Ref, "")
		return child, nil
	}

	id := decodeRef(c.buf[h.Offset : h.Offset+8])
	if id == 0 {
		if !createIfMissing {
			return nil, nil
		}
		child := c.registry.Create(defaultLayout)
		encodeRef(c.buf[h.Offset:h.Offset+8], child.ID())
		if err := c.registry.SetParent(child.ID(), ParentLink{ParentID: c.id, Field: field}); err != nil {
			return nil, err
		}
		c.publish(events.Write, field, types.Ref, "")
		return child, nil
	}
	existing, ok := c.registry.Get(id)
	if !ok {
		return nil, errs.New(errs.ObjectDisposed, "Container.GetObject", "referenced container no longer exists")
	}
	return existing, nil
}

// GetArray resolves field as a reference to an array-container child whose
// sole payload field (layout.ArrayFieldName) holds elem-kind elements,
// materializing it (and the reference field itself) when missing and
// createIfMissing is set (spec §4.4.1 "get_array"). overrideExisting
// replaces an incompatible existing array-container with a freshly sized
// one instead of failing.
func (c *Container) GetArray(field string, elem types.Kind, length int, createIfMissing, overrideExisting bool) (*Container, error) {
	arrayLayout, err := layout.NewArrayLayout(elem, length)
	if err != nil {
		return nil, errs.Newf(errs.InvalidArgument, "Container.GetArray", "%v", err)
	}

	h, fieldExists := c.layout.Field(field)
	if fieldExists && !h.IsReference() {
		return nil, errs.Newf(errs.TypeMismatch, "Container.GetArray", "field %q is not a reference", field)
	}

	if !fieldExists {
		if !createIfMissing {
			return nil, errs.Newf(errs.InvalidArgument, "Container.GetArray", "no such field %q", field)
		}
		return c.GetObject(field, true, arrayLayout)
	}

	id := decodeRef(c.buf[h.Offset : h.Offset+8])
	if id == 0 {
		if !createIfMissing {
			return nil, nil
		}
		return c.GetObject(field, true, arrayLayout)
	}

	child, ok := c.registry.Get(id)
	if !ok {
		return nil, errs.New(errs.ObjectDisposed, "Container.GetArray", "referenced container no longer exists")
	}
	// Compatibility is judged by element kind only, not length: an existing
	// array container of the right element type is returned as-is however
	// long it happens to be (callers read its actual length off the view).
	existingField, isArrayContainer := child.layout.ArrayField()
	compatible := isArrayContainer && existingField.Elem == elem
	if !compatible {
		if !overrideExisting {
			return nil, errs.Newf(errs.TypeMismatch, "Container.GetArray", "field %q already holds an incompatible array container", field)
		}
		fresh := c.registry.Create(arrayLayout)
		c.registry.Unregister(child)
		encodeRef(c.buf[h.Offset:h.Offset+8], fresh.ID())
		if err := c.registry.SetParent(fresh.ID(), ParentLink{ParentID: c.id, Field: field}); err != nil {
			return nil, err
		}
		c.publish(events.Write, field, types.Ref, "")
		return fresh, nil
	}
	return child, nil
}

// SetArray unconditionally installs field as a freshly sized array
// container of elem-kind elements, replacing (and cascade-disposing)
// whatever previously occupied the slot. Used by write_path's string/array
// installation (spec §4.8 "write_path(path, string) installs a string"),
// where the exact element count must match the new content regardless of
// what was there before.
func (c *Container) SetArray(field string, elem types.Kind, length int) (*Container, error) {
	arrayLayout, err := layout.NewArrayLayout(elem, length)
	if err != nil {
		return nil, errs.Newf(errs.InvalidArgument, "Container.SetArray", "%v", err)
	}

	h, fieldExists := c.layout.Field(field)
	if !fieldExists {
		return c.GetObject(field, true, arrayLayout)
	}
	if !h.IsReference() {
		return nil, errs.Newf(errs.TypeMismatch, "Container.SetArray", "field %q is not a reference", field)
	}

	if id := decodeRef(c.buf[h.Offset : h.Offset+8]); id != 0 {
		if old, ok := c.registry.Get(id); ok {
			c.registry.Unregister(old)
		}
	}
	fresh := c.registry.Create(arrayLayout)
	encodeRef(c.buf[h.Offset:h.Offset+8], fresh.ID())
	if err := c.registry.SetParent(fresh.ID(), ParentLink{ParentID: c.id, Field: field}); err != nil {
		return nil, err
	}
	c.publish(events.Write, field, types.Ref, "")
	return fresh, nil
}

// EnsureEmptyReference adds field as an empty reference cell if it does not
// already exist, without materializing a child (used by the JSON codec for
// a field whose value is the JSON null literal). An existing reference
// field, empty or populated, is left untouched.
func (c *Container) EnsureEmptyReference(field string) error {
	if err := c.checkLive("Container.EnsureEmptyReference"); err != nil {
		return err
	}
	if h, ok := c.layout.Field(field); ok {
		if !h.IsReference() {
			return errs.Newf(errs.TypeMismatch, "Container.EnsureEmptyReference", "field %q is not a reference", field)
		}
		return nil
	}
	fields := append([]layout.FieldHeader{}, c.layout.Fields()...)
	newLayout, err := rebuildLayout(append(fields, layout.FieldHeader{Name: field, Elem: types.Ref, Length: 8, Flags: layout.FlagReference}))
	if err != nil {
		return errs.Newf(errs.InvalidState, "Container.EnsureEmptyReference", "%v", err)
	}
	c.reschema(newLayout, nil)
	c.publish(events.Write, field, types.Ref, "")
	return nil
}

// EnsureReferenceArray adds field as a reference-array of the given length
// if it does not already exist (spec §4.8 "make().object_array(min_length)").
// An existing reference-array field is left untouched regardless of its
// current length.
func (c *Container) EnsureReferenceArray(field string, length int) error {
	if err := c.checkLive("Container.EnsureReferenceArray"); err != nil {
		return err
	}
	if h, ok := c.layout.Field(field); ok {
		if !h.IsReferenceArray() {
			return errs.Newf(errs.TypeMismatch, "Container.EnsureReferenceArray", "field %q is not a reference array", field)
		}
		return nil
	}
	fields := append([]layout.FieldHeader{}, c.layout.Fields()...)
	newLayout, err := rebuildLayout(append(fields, layout.FieldHeader{
		Name: field, Elem: types.Ref, Length: 8 * length, Flags: layout.FlagReferenceArray, ArrayLen: length,
	}))
	if err != nil {
		return errs.Newf(errs.InvalidState, "Container.EnsureReferenceArray", "%v", err)
	}
	c.reschema(newLayout, nil)
	c.publish(events.Write, field, types.Ref, "")
	return nil
}

// IndexReference resolves element index of a reference-array field,
// materializing a fresh child under defaultLayout when the slot is empty
// and createIfMissing is set (spec §4.8 "[i] indexes an array container,
// creating element objects if needed").
func (c *Container) IndexReference(field string, index int, createIfMissing bool, defaultLayout *layout.Layout) (*Container, error) {
	if err := c.checkLive("Container.IndexReference"); err != nil {
		return nil, err
	}
	h, ok := c.layout.Field(field)
	if !ok {
		return nil, errs.Newf(errs.InvalidArgument, "Container.IndexReference", "no such field %q", field)
	}
	if !h.IsReferenceArray() {
		return nil, errs.Newf(errs.TypeMismatch, "Container.IndexReference", "field %q is not a reference array", field)
	}
	if index < 0 || index >= h.ArrayLen {
		return nil, errs.Newf(errs.IndexOutOfRange, "Container.IndexReference", "index %d out of range for %q (len %d)", index, field, h.ArrayLen)
	}
	if defaultLayout == nil {
		defaultLayout = layout.Empty
	}

	off := h.Offset + index*8
	id := decodeRef(c.buf[off : off+8])
	if id == 0 {
		if !createIfMissing {
			return nil, nil
		}
		child := c.registry.Create(defaultLayout)
		encodeRef(c.buf[off:off+8], child.ID())
		if err := c.registry.SetParent(child.ID(), ParentLink{ParentID: c.id, Field: field, Index: index, HasIndex: true}); err != nil {
			return nil, err
		}
		c.publish(events.Write, field, types.Ref, "")
		return child, nil
	}
	existing, ok := c.registry.Get(id)
	if !ok {
		return nil, errs.New(errs.ObjectDisposed, "Container.IndexReference", "referenced container no longer exists")
	}
	return existing, nil
}
