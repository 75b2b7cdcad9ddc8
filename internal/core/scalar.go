package core

import (
	"encoding/binary"
	"math"

	"github.com/scenetree/scenetree/errs"
	"github.com/scenetree/scenetree/events"
	"github.com/scenetree/scenetree/layout"
	"github.com/scenetree/scenetree/types"
)

// Scalar is the set of Go types a container field can be read or written
// as. types.CharUnit is distinguished from uint16 so a read<uint16>
// unambiguously means the U16 kind and read<types.CharUnit> means Char16.
type Scalar interface {
	bool | int8 | uint8 | int16 | uint16 | int32 | uint32 | int64 | uint64 | float32 | float64 | types.CharUnit
}

// KindOf returns the types.Kind a Go scalar type argument corresponds to,
// for callers outside the package that need to build a layout or array
// matching T (e.g. query.WriteArrayPath sizing a fresh inline array).
func KindOf[T Scalar]() types.Kind { return kindOf[T]() }

func kindOf[T Scalar]() types.Kind {
	var zero T
	switch any(zero).(type) {
	case bool:
		return types.Bool
	case int8:
		return types.I8
	case uint8:
		return types.U8
	case int16:
		return types.I16
	case uint16:
		return types.U16
	case types.CharUnit:
		return types.Char16
	case int32:
		return types.I32
	case uint32:
		return types.U32
	case int64:
		return types.I64
	case uint64:
		return types.U64
	case float32:
		return types.Float32
	case float64:
		return types.Float64
	default:
		return types.Unknown
	}
}

func decodeStored(elem types.Kind, raw []byte) any {
	switch elem {
	case types.Bool:
		return raw[0] != 0
	case types.I8:
		return int8(raw[0])
	case types.U8:
		return raw[0]
	case types.I16:
		return int16(binary.LittleEndian.Uint16(raw))
	case types.U16:
		return binary.LittleEndian.Uint16(raw)
	case types.Char16:
		return types.CharUnit(binary.LittleEndian.Uint16(raw))
	case types.I32:
		return int32(binary.LittleEndian.Uint32(raw))
	case types.U32:
		return binary.LittleEndian.Uint32(raw)
	case types.Float32:
		return math.Float32frombits(binary.LittleEndian.Uint32(raw))
	case types.I64:
		return int64(binary.LittleEndian.Uint64(raw))
	case types.U64:
		return binary.LittleEndian.Uint64(raw)
	case types.Float64:
		return math.Float64frombits(binary.LittleEndian.Uint64(raw))
	default:
		return nil
	}
}

func encodeInto(elem types.Kind, v any, dst []byte) {
	switch elem {
	case types.Bool:
		if v.(bool) {
			dst[0] = 1
		} else {
			dst[0] = 0
		}
	case types.I8:
		dst[0] = byte(v.(int8))
	case types.U8:
		dst[0] = v.(uint8)
	case types.I16:
		binary.LittleEndian.PutUint16(dst, uint16(v.(int16)))
	case types.U16:
		binary.LittleEndian.PutUint16(dst, v.(uint16))
	case types.Char16:
		binary.LittleEndian.PutUint16(dst, uint16(v.(types.CharUnit)))
	case types.I32:
		binary.LittleEndian.PutUint32(dst, uint32(v.(int32)))
	case types.U32:
		binary.LittleEndian.PutUint32(dst, v.(uint32))
	case types.Float32:
		binary.LittleEndian.PutUint32(dst, math.Float32bits(v.(float32)))
	case types.I64:
		binary.LittleEndian.PutUint64(dst, uint64(v.(int64)))
	case types.U64:
		binary.LittleEndian.PutUint64(dst, v.(uint64))
	case types.Float64:
		binary.LittleEndian.PutUint64(dst, math.Float64bits(v.(float64)))
	}
}

func toInt64(v any) (int64, bool) {
	switch x := v.(type) {
	case int8:
		return int64(x), true
	case int16:
		return int64(x), true
	case int32:
		return int64(x), true
	case int64:
		return x, true
	}
	return 0, false
}

func toUint64(v any) (uint64, bool) {
	switch x := v.(type) {
	case uint8:
		return uint64(x), true
	case uint16:
		return uint64(x), true
	case types.CharUnit:
		return uint64(x), true
	case uint32:
		return uint64(x), true
	case uint64:
		return x, true
	}
	return 0, false
}

func toFloat64(v any) (float64, bool) {
	switch x := v.(type) {
	case float32:
		return float64(x), true
	case float64:
		return x, true
	}
	if i, ok := toInt64(v); ok {
		return float64(i), true
	}
	if u, ok := toUint64(v); ok {
		return float64(u), true
	}
	return 0, false
}

// convertTo converts v (a decoded stored value of some Kind) into the Go
// type T, per wantKind's conversion domain. It implements spec §4.2's
// implicit read conversion matrix at the value level.
func convertTo[T Scalar](wantKind types.Kind, v any) (T, bool) {
	var zero T
	switch wantKind {
	case types.Bool:
		b, ok := v.(bool)
		if !ok {
			return zero, false
		}
		t, ok := any(b).(T)
		return t, ok
	case types.I8:
		i, ok := toInt64(v)
		if !ok {
			return zero, false
		}
		t, ok := any(int8(i)).(T)
		return t, ok
	case types.U8:
		u, ok := toUint64(v)
		if !ok {
			return zero, false
		}
		t, ok := any(uint8(u)).(T)
		return t, ok
	case types.I16:
		i, ok := toInt64(v)
		if !ok {
			return zero, false
		}
		t, ok := any(int16(i)).(T)
		return t, ok
	case types.U16:
		u, ok := toUint64(v)
		if !ok {
			return zero, false
		}
		t, ok := any(uint16(u)).(T)
		return t, ok
	case types.Char16:
		u, ok := toUint64(v)
		if !ok {
			return zero, false
		}
		t, ok := any(types.CharUnit(u)).(T)
		return t, ok
	case types.I32:
		i, ok := toInt64(v)
		if !ok {
			return zero, false
		}
		t, ok := any(int32(i)).(T)
		return t, ok
	case types.U32:
		u, ok := toUint64(v)
		if !ok {
			return zero, false
		}
		t, ok := any(uint32(u)).(T)
		return t, ok
	case types.I64:
		i, ok := toInt64(v)
		if !ok {
			return zero, false
		}
		t, ok := any(i).(T)
		return t, ok
	case types.U64:
		u, ok := toUint64(v)
		if !ok {
			return zero, false
		}
		t, ok := any(u).(T)
		return t, ok
	case types.Float32:
		f, ok := toFloat64(v)
		if !ok {
			return zero, false
		}
		t, ok := any(float32(f)).(T)
		return t, ok
	case types.Float64:
		f, ok := toFloat64(v)
		if !ok {
			return zero, false
		}
		t, ok := any(f).(T)
		return t, ok
	default:
		return zero, false
	}
}

// ReadScalar reads field as T, applying implicit widening conversion from
// the field's actually-stored Kind when the two differ compatibly (spec
// §4.2, §4.4.1 "read<T>").
func ReadScalar[T Scalar](c *Container, field string) (T, error) {
	var zero T
	if err := c.checkLive("Container.Read"); err != nil {
		return zero, err
	}
	h, ok := c.layout.Field(field)
	if !ok {
		return zero, errs.Newf(errs.InvalidArgument, "Container.Read", "no such field %q", field)
	}
	if h.IsReference() || h.IsReferenceArray() || h.IsInlineArray() {
		return zero, errs.Newf(errs.TypeMismatch, "Container.Read", "field %q is not a scalar", field)
	}
	wantKind := kindOf[T]()
	if !types.ImplicitlyConvertible(h.Elem, wantKind) {
		return zero, errs.Newf(errs.TypeMismatch, "Container.Read", "field %q is %s, cannot read as %s", field, h.Elem, wantKind)
	}
	decoded := decodeStored(h.Elem, c.buf[h.Offset:h.Offset+h.Length])
	out, ok := convertTo[T](wantKind, decoded)
	if !ok {
		return zero, errs.Newf(errs.TypeMismatch, "Container.Read", "field %q could not be converted to %s", field, wantKind)
	}
	return out, nil
}

// TryReadScalar is ReadScalar without the error: false for a missing field,
// wrong kind, or disposed container (spec §4.4.1 "try_read<T>").
func TryReadScalar[T Scalar](c *Container, field string) (T, bool) {
	v, err := ReadScalar[T](c, field)
	if err != nil {
		var zero T
		return zero, false
	}
	return v, true
}

// ReadOrDefaultScalar reads field as T, substituting def on any failure
// (spec §4.4.1 "read_or_default<T>").
func ReadOrDefaultScalar[T Scalar](c *Container, field string, def T) T {
	if v, ok := TryReadScalar[T](c, field); ok {
		return v
	}
	return def
}

// WriteScalar writes value into field (spec §4.4.1 "write<T>"):
//
//   - if field does not exist: add it (reschema) when allowReschema, else
//     fail with TypeMismatch;
//   - if field exists with the exact same Kind: overwrite in place;
//   - if field exists with a different, same-size Kind: swap the field's
//     declared Kind without touching any offsets (spec §4.2 "same-size
//     reassignment... changes the stored type without reschema" — no
//     buffer copy needed since every offset in the layout stays identical);
//   - if the written Kind is implicitly convertible into the stored Kind:
//     convert up and store under the unchanged stored Kind;
//   - otherwise: reschema, widening the field to accommodate T, when
//     allowReschema, else fail with TypeMismatch.
func WriteScalar[T Scalar](c *Container, field string, value T, allowReschema bool) error {
	if err := c.checkLive("Container.Write"); err != nil {
		return err
	}
	wantKind := kindOf[T]()
	h, ok := c.layout.Field(field)

	if !ok {
		if !allowReschema {
			return errs.Newf(errs.TypeMismatch, "Container.Write", "field %q does not exist and allow_reschema is false", field)
		}
		fields := append(append([]layout.FieldHeader{}, c.layout.Fields()...))
		size, _ := types.FixedSize(wantKind)
		newLayout, err := rebuildLayout(append(fields, layout.FieldHeader{Name: field, Elem: wantKind, Length: size}))
		if err != nil {
			return errs.Newf(errs.InvalidState, "Container.Write", "%v", err)
		}
		c.reschema(newLayout, nil)
		h, _ = c.layout.Field(field)
		encodeInto(wantKind, any(value), c.buf[h.Offset:h.Offset+h.Length])
		c.publish(events.Write, field, wantKind, "")
		return nil
	}

	if h.IsReference() || h.IsReferenceArray() || h.IsInlineArray() {
		return errs.Newf(errs.TypeMismatch, "Container.Write", "field %q is not a scalar", field)
	}

	switch {
	case h.Elem == wantKind:
		encodeInto(wantKind, any(value), c.buf[h.Offset:h.Offset+h.Length])

	case types.SameSize(h.Elem, wantKind):
		var fields []layout.FieldHeader
		for _, f := range c.layout.Fields() {
			if f.Name == field {
				f.Elem = wantKind
			}
			fields = append(fields, f)
		}
		newLayout, err := rebuildLayout(fields)
		if err != nil {
			return errs.Newf(errs.InvalidState, "Container.Write", "%v", err)
		}
		c.layout = newLayout
		nh, _ := c.layout.Field(field)
		encodeInto(wantKind, any(value), c.buf[nh.Offset:nh.Offset+nh.Length])

	case types.ImplicitlyConvertible(wantKind, h.Elem):
		converted := convertValueTo(h.Elem, wantKind, value)
		encodeInto(h.Elem, converted, c.buf[h.Offset:h.Offset+h.Length])

	default:
		if !allowReschema {
			return errs.Newf(errs.TypeMismatch, "Container.Write", "field %q is %s, incompatible with %s and allow_reschema is false", field, h.Elem, wantKind)
		}
		promoted := types.Promote(h.Elem, wantKind)
		var fields []layout.FieldHeader
		size, _ := types.FixedSize(promoted)
		for _, f := range c.layout.Fields() {
			if f.Name == field {
				f.Elem = promoted
				f.Length = size
			}
			fields = append(fields, f)
		}
		newLayout, err := rebuildLayout(fields)
		if err != nil {
			return errs.Newf(errs.InvalidState, "Container.Write", "%v", err)
		}
		c.reschema(newLayout, nil)
		nh, _ := c.layout.Field(field)
		encodeInto(promoted, convertValueTo(promoted, wantKind, value), c.buf[nh.Offset:nh.Offset+nh.Length])
	}

	h, _ = c.layout.Field(field)
	c.publish(events.Write, field, h.Elem, "")
	return nil
}

// TryWriteScalar is WriteScalar without a distinguishable error: it reports
// whether the write succeeded.
func TryWriteScalar[T Scalar](c *Container, field string, value T, allowReschema bool) bool {
	return WriteScalar[T](c, field, value, allowReschema) == nil
}

// convertValueTo widens value (of Kind fromKind) into destKind's
// representation for storage, used when writing a narrower value into an
// already-wider stored field.
func convertValueTo(destKind, fromKind types.Kind, value any) any {
	switch fromKind {
	case types.Bool:
		return value
	case types.I8, types.I16, types.I32, types.I64:
		i, _ := toInt64(value)
		return fromCanonicalInt(destKind, i)
	case types.U8, types.U16, types.Char16, types.U32, types.U64:
		u, _ := toUint64(value)
		return fromCanonicalUint(destKind, u)
	case types.Float32, types.Float64:
		f, _ := toFloat64(value)
		return fromCanonicalFloat(destKind, f)
	default:
		return value
	}
}

func fromCanonicalInt(destKind types.Kind, i int64) any {
	switch destKind {
	case types.I8:
		return int8(i)
	case types.I16:
		return int16(i)
	case types.I32:
		return int32(i)
	case types.I64:
		return i
	case types.Float32:
		return float32(i)
	case types.Float64:
		return float64(i)
	default:
		return i
	}
}

func fromCanonicalUint(destKind types.Kind, u uint64) any {
	switch destKind {
	case types.U8:
		return uint8(u)
	case types.U16:
		return uint16(u)
	case types.Char16:
		return types.CharUnit(u)
	case types.U32:
		return uint32(u)
	case types.U64:
		return u
	case types.Float32:
		return float32(u)
	case types.Float64:
		return float64(u)
	default:
		return u
	}
}

func fromCanonicalFloat(destKind types.Kind, f float64) any {
	switch destKind {
	case types.Float32:
		return float32(f)
	case types.Float64:
		return f
	default:
		return f
	}
}
