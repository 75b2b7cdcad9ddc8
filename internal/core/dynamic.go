package core

import (
	"github.com/scenetree/scenetree/errs"
	"github.com/scenetree/scenetree/events"
	"github.com/scenetree/scenetree/layout"
	"github.com/scenetree/scenetree/types"
)

// EncodeScalar renders value (already in kind's native Go representation)
// into a freshly allocated buffer of kind's fixed width, for callers (the
// snapshot codec) that need a field's wire bytes without reaching into an
// existing Container buffer.
func EncodeScalar(kind types.Kind, value any) []byte {
	size, ok := types.FixedSize(kind)
	if !ok {
		return nil
	}
	buf := make([]byte, size)
	encodeInto(kind, value, buf)
	return buf
}

// DecodeScalar is the inverse of EncodeScalar.
func DecodeScalar(kind types.Kind, raw []byte) any {
	return decodeStored(kind, raw)
}

// ReadScalarAny reads field's raw stored value and Kind without committing
// to a Go type, for callers (the JSON/binary codecs) that must inspect a
// field's declared Kind at runtime before they can pick a T.
func ReadScalarAny(c *Container, field string) (any, types.Kind, error) {
	if err := c.checkLive("Container.ReadScalarAny"); err != nil {
		return nil, types.Unknown, err
	}
	h, ok := c.layout.Field(field)
	if !ok {
		return nil, types.Unknown, errs.Newf(errs.InvalidArgument, "Container.ReadScalarAny", "no such field %q", field)
	}
	if h.IsReference() || h.IsReferenceArray() || h.IsInlineArray() {
		return nil, types.Unknown, errs.Newf(errs.TypeMismatch, "Container.ReadScalarAny", "field %q is not a scalar", field)
	}
	return decodeStored(h.Elem, c.buf[h.Offset:h.Offset+h.Length]), h.Elem, nil
}

// ReadInlineArrayAny reads every element of an inline array field in its
// natively stored Go representation, alongside the array's element Kind.
func ReadInlineArrayAny(c *Container, field string) ([]any, types.Kind, error) {
	if err := c.checkLive("Container.ReadInlineArrayAny"); err != nil {
		return nil, types.Unknown, err
	}
	h, ok := c.layout.Field(field)
	if !ok {
		return nil, types.Unknown, errs.Newf(errs.InvalidArgument, "Container.ReadInlineArrayAny", "no such field %q", field)
	}
	if !h.IsInlineArray() {
		return nil, types.Unknown, errs.Newf(errs.TypeMismatch, "Container.ReadInlineArrayAny", "field %q is not an inline array", field)
	}
	elemSize, _ := types.FixedSize(h.Elem)
	out := make([]any, h.ArrayLen)
	for i := 0; i < h.ArrayLen; i++ {
		off := h.Offset + i*elemSize
		out[i] = decodeStored(h.Elem, c.buf[off:off+elemSize])
	}
	return out, h.Elem, nil
}

// WriteScalarAnyKind installs field as a fresh scalar of exactly kind,
// encoding value (which must already be the Go representation decodeStored
// would produce for kind). Used by codec unmarshal, which picks a field's
// Kind dynamically from the wire format rather than from a compile-time T.
func WriteScalarAnyKind(c *Container, field string, kind types.Kind, value any) error {
	if err := c.checkLive("Container.WriteScalarAnyKind"); err != nil {
		return err
	}
	size, ok := types.FixedSize(kind)
	if !ok {
		return errs.Newf(errs.InvalidArgument, "Container.WriteScalarAnyKind", "%s has no fixed scalar size", kind)
	}
	fields := append([]layout.FieldHeader{}, c.layout.Fields()...)
	newLayout, err := rebuildLayout(append(fields, layout.FieldHeader{Name: field, Elem: kind, Length: size}))
	if err != nil {
		return errs.Newf(errs.InvalidState, "Container.WriteScalarAnyKind", "%v", err)
	}
	c.reschema(newLayout, nil)
	h, _ := c.layout.Field(field)
	encodeInto(kind, value, c.buf[h.Offset:h.Offset+h.Length])
	c.publish(events.Write, field, kind, "")
	return nil
}

// SetInlineArrayAnyKind installs field as a fresh inline array of exactly
// kind elements, replacing whatever previously occupied the slot, and
// encodes values in order. Used by codec unmarshal for homogeneous JSON
// arrays of scalars, whose element Kind is picked dynamically.
func SetInlineArrayAnyKind(c *Container, field string, kind types.Kind, values []any) error {
	if err := c.checkLive("Container.SetInlineArrayAnyKind"); err != nil {
		return err
	}
	elemSize, ok := types.FixedSize(kind)
	if !ok {
		return errs.Newf(errs.InvalidArgument, "Container.SetInlineArrayAnyKind", "%s has no fixed element size", kind)
	}
	fields := append([]layout.FieldHeader{}, c.layout.Fields()...)
	replaced := false
	for i, f := range fields {
		if f.Name == field {
			fields[i] = layout.FieldHeader{Name: field, Elem: kind, Length: elemSize * len(values), Flags: layout.FlagInlineArray, ArrayLen: len(values)}
			replaced = true
		}
	}
	if !replaced {
		fields = append(fields, layout.FieldHeader{Name: field, Elem: kind, Length: elemSize * len(values), Flags: layout.FlagInlineArray, ArrayLen: len(values)})
	}
	newLayout, err := rebuildLayout(fields)
	if err != nil {
		return errs.Newf(errs.InvalidState, "Container.SetInlineArrayAnyKind", "%v", err)
	}
	c.reschema(newLayout, nil)
	h, _ := c.layout.Field(field)
	for i, v := range values {
		off := h.Offset + i*elemSize
		encodeInto(kind, v, c.buf[off:off+elemSize])
	}
	c.publish(events.Write, field, kind, "")
	return nil
}
