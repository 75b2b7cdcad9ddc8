// Package jsoncodec implements the JSON collaborator (spec §6): rendering
// a Storage tree to JSON and parsing JSON back into one. Uses goccy/go-json
// rather than the standard library's encoding/json — one of the pack's
// other example repos (AKJUS-bsc-erigon) depends on it for exactly this
// kind of decode-to-any tree walk, and it is a drop-in-compatible
// implementation of the same Marshal/NewDecoder/UseNumber/Number surface
// this package needs, so there is no reason to prefer the slower stdlib
// package over a real dependency already present in the corpus.
package jsoncodec

import (
	"bytes"
	"encoding/base64"
	"strings"
	"unicode/utf16"

	json "github.com/goccy/go-json"
	"github.com/scenetree/scenetree/errs"
	"github.com/scenetree/scenetree/layout"
	"github.com/scenetree/scenetree/storage"
	"github.com/scenetree/scenetree/types"
	"github.com/scenetree/scenetree/view"
)

// blobKey is the single JSON object key that marks a blob field (spec §6
// "Blobs are encoded as a JSON object with a single key $blob whose value
// is base64").
const blobKey = "$blob"

// Marshal renders s's tree to JSON (spec §6 "JSON codec (collaborator)").
func Marshal(s *storage.Storage) ([]byte, error) {
	tree, err := marshalObject(s.Root())
	if err != nil {
		return nil, err
	}
	return json.Marshal(tree)
}

// Unmarshal parses data into s's root, adding each key of the root JSON
// object as a field (spec "Unmarshal([]byte, *storage.Storage) error").
// Fields the root already has are kept; a key naming one of them is not a
// plain overwrite, and for a number or boolean value Unmarshal fails. The root JSON value must be an object (spec "the root JSON
// value must be an object; anything else is rejected").
func Unmarshal(data []byte, s *storage.Storage) error {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	var raw any
	if err := dec.Decode(&raw); err != nil {
		return errs.Newf(errs.InvalidState, "jsoncodec.Unmarshal", "invalid JSON: %v", err)
	}
	root, ok := raw.(map[string]any)
	if !ok {
		return errs.New(errs.InvalidState, "jsoncodec.Unmarshal", "root JSON value must be an object")
	}
	return populateObject(s.Root(), root)
}

func marshalObject(v view.ObjectView) (map[string]any, error) {
	headers, err := v.FieldHeaders()
	if err != nil {
		return nil, err
	}
	out := make(map[string]any, len(headers))
	for _, h := range headers {
		switch {
		case h.IsReference():
			child, err := v.Object(h.Name, false, nil)
			if err != nil {
				return nil, err
			}
			if child.IsNull() {
				out[h.Name] = nil
				continue
			}
			childHeaders, err := child.FieldHeaders()
			if err != nil {
				return nil, err
			}
			if len(childHeaders) == 1 && childHeaders[0].Name == layout.ArrayFieldName {
				val, err := marshalArrayContainer(child)
				if err != nil {
					return nil, err
				}
				out[h.Name] = val
				continue
			}
			nested, err := marshalObject(child)
			if err != nil {
				return nil, err
			}
			out[h.Name] = nested

		case h.IsReferenceArray():
			arr := make([]any, h.ArrayLen)
			for i := 0; i < h.ArrayLen; i++ {
				elem, err := v.Index(h.Name, i, false, nil)
				if err != nil {
					return nil, err
				}
				if elem.IsNull() {
					arr[i] = nil
					continue
				}
				nested, err := marshalObject(elem)
				if err != nil {
					return nil, err
				}
				arr[i] = nested
			}
			out[h.Name] = arr

		case h.IsInlineArray():
			vals, elem, err := v.ReadInlineArrayAny(h.Name)
			if err != nil {
				return nil, err
			}
			arr := make([]any, len(vals))
			for i, raw := range vals {
				arr[i] = scalarToJSON(elem, raw)
			}
			out[h.Name] = arr

		case h.Elem == types.Blob:
			data, err := v.ReadBlob(h.Name)
			if err != nil {
				return nil, err
			}
			out[h.Name] = map[string]any{blobKey: base64.StdEncoding.EncodeToString(data)}

		default:
			val, kind, err := v.ReadScalarAny(h.Name)
			if err != nil {
				return nil, err
			}
			out[h.Name] = scalarToJSON(kind, val)
		}
	}
	return out, nil
}

func marshalArrayContainer(child view.ObjectView) (any, error) {
	vals, elem, err := child.ReadInlineArrayAny(layout.ArrayFieldName)
	if err != nil {
		return nil, err
	}
	if elem == types.Char16 {
		return decodeCharUnits(vals), nil
	}
	arr := make([]any, len(vals))
	for i, raw := range vals {
		arr[i] = scalarToJSON(elem, raw)
	}
	return arr, nil
}

func decodeCharUnits(vals []any) string {
	u16 := make([]uint16, len(vals))
	for i, raw := range vals {
		u16[i] = uint16(raw.(types.CharUnit))
	}
	return string(utf16.Decode(u16))
}

// scalarToJSON converts a natively-decoded field value into a
// JSON-marshalable Go value. Integers widen to int64/uint64 and floats to
// float64 since encoding/json only has one numeric encoding path; the
// field's declared width is not itself part of the JSON wire format (spec
// §6 "scalars are standard JSON numbers").
func scalarToJSON(kind types.Kind, v any) any {
	switch kind {
	case types.Bool:
		return v.(bool)
	case types.I8:
		return int64(v.(int8))
	case types.U8:
		return int64(v.(uint8))
	case types.I16:
		return int64(v.(int16))
	case types.U16:
		return int64(v.(uint16))
	case types.Char16:
		return string(rune(v.(types.CharUnit)))
	case types.I32:
		return int64(v.(int32))
	case types.U32:
		return int64(v.(uint32))
	case types.I64:
		return v.(int64)
	case types.U64:
		return v.(uint64)
	case types.Float32:
		return float64(v.(float32))
	case types.Float64:
		return v.(float64)
	default:
		return nil
	}
}

func populateObject(v view.ObjectView, m map[string]any) error {
	for name, raw := range m {
		if err := populateField(v, name, raw); err != nil {
			return err
		}
	}
	return nil
}

func populateField(v view.ObjectView, name string, raw any) error {
	switch val := raw.(type) {
	case nil:
		return v.EnsureEmptyReference(name)
	case bool:
		return v.WriteScalarAnyKind(name, types.Bool, val)
	case json.Number:
		kind, i, f, err := inferNumberKind(val)
		if err != nil {
			return err
		}
		return v.WriteScalarAnyKind(name, kind, toStoredValue(kind, i, f))
	case string:
		return v.WriteString(name, val)
	case map[string]any:
		if blob, ok := asBlob(val); ok {
			data, err := base64.StdEncoding.DecodeString(blob)
			if err != nil {
				return errs.Newf(errs.IODecode, "jsoncodec.Unmarshal", "invalid base64 for field %q: %v", name, err)
			}
			return v.WriteBlob(name, data, true)
		}
		child, err := v.Object(name, true, nil)
		if err != nil {
			return err
		}
		return populateObject(child, val)
	case []any:
		return populateArray(v, name, val)
	default:
		return errs.Newf(errs.InvalidArgument, "jsoncodec.Unmarshal", "unsupported JSON value for field %q", name)
	}
}

func asBlob(m map[string]any) (string, bool) {
	if len(m) != 1 {
		return "", false
	}
	raw, ok := m[blobKey]
	if !ok {
		return "", false
	}
	s, ok := raw.(string)
	return s, ok
}

func populateArray(v view.ObjectView, name string, arr []any) error {
	if len(arr) == 0 {
		return v.SetInlineArrayAnyKind(name, view.DefaultEmptyArrayKind, nil)
	}

	if _, ok := arr[0].(map[string]any); ok {
		objs := make([]map[string]any, len(arr))
		for i, item := range arr {
			m, ok := item.(map[string]any)
			if !ok || isBlobShaped(item) {
				return errs.Newf(errs.InvalidArgument, "jsoncodec.Unmarshal", "mixed-type JSON array at field %q", name)
			}
			objs[i] = m
		}
		if err := v.EnsureReferenceArray(name, len(objs)); err != nil {
			return err
		}
		for i, m := range objs {
			elem, err := v.Index(name, i, true, nil)
			if err != nil {
				return err
			}
			if err := populateObject(elem, m); err != nil {
				return err
			}
		}
		return nil
	}

	if _, ok := arr[0].(bool); ok {
		values := make([]any, len(arr))
		for i, item := range arr {
			b, ok := item.(bool)
			if !ok {
				return errs.Newf(errs.InvalidArgument, "jsoncodec.Unmarshal", "mixed-type JSON array at field %q", name)
			}
			values[i] = b
		}
		return v.SetInlineArrayAnyKind(name, types.Bool, values)
	}

	finalKind := types.Unknown
	finalIsFloat := false
	ints := make([]int64, len(arr))
	floats := make([]float64, len(arr))
	for i, item := range arr {
		n, ok := item.(json.Number)
		if !ok {
			return errs.Newf(errs.InvalidArgument, "jsoncodec.Unmarshal", "mixed-type JSON array at field %q", name)
		}
		kind, iv, fv, err := inferNumberKind(n)
		if err != nil {
			return err
		}
		if types.IsFloat(kind) {
			finalIsFloat = true
		}
		if finalKind == types.Unknown {
			finalKind = kind
		} else {
			finalKind = types.Promote(finalKind, kind)
		}
		ints[i] = iv
		floats[i] = fv
	}
	if finalIsFloat && !types.IsFloat(finalKind) {
		finalKind = types.Float64
	}
	values := make([]any, len(arr))
	for i := range arr {
		values[i] = toStoredValue(finalKind, ints[i], floats[i])
	}
	return v.SetInlineArrayAnyKind(name, finalKind, values)
}

func isBlobShaped(item any) bool {
	m, ok := item.(map[string]any)
	if !ok {
		return false
	}
	_, ok = asBlob(m)
	return ok
}

// inferNumberKind picks the narrowest Kind that exactly represents n,
// preferring the narrowest signed integer kind for integral literals and
// the narrowest IEEE-754 kind for fractional/exponential ones. Narrower
// storage keeps the field readable at any wider T later (spec §4.2
// implicit conversion only ever widens), which is the closest this codec
// can get to preserving a caller's original declared width: JSON itself
// carries no such metadata (spec §9 open question, resolved for the
// scalar case the same way as for empty arrays — infer the narrowest
// faithful representation and document it here rather than in the spec
// text, since it is a codec decision, not a data-model one).
func inferNumberKind(n json.Number) (types.Kind, int64, float64, error) {
	s := string(n)
	if strings.ContainsAny(s, ".eE") {
		f, err := n.Float64()
		if err != nil {
			return types.Unknown, 0, 0, errs.Newf(errs.InvalidArgument, "jsoncodec", "invalid number %q", s)
		}
		if float64(float32(f)) == f {
			return types.Float32, int64(f), f, nil
		}
		return types.Float64, int64(f), f, nil
	}
	i, err := n.Int64()
	if err != nil {
		f, ferr := n.Float64()
		if ferr != nil {
			return types.Unknown, 0, 0, errs.Newf(errs.InvalidArgument, "jsoncodec", "invalid number %q", s)
		}
		return types.Float64, int64(f), f, nil
	}
	switch {
	case i >= -128 && i <= 127:
		return types.I8, i, float64(i), nil
	case i >= -32768 && i <= 32767:
		return types.I16, i, float64(i), nil
	case i >= -2147483648 && i <= 2147483647:
		return types.I32, i, float64(i), nil
	default:
		return types.I64, i, float64(i), nil
	}
}

func toStoredValue(kind types.Kind, i int64, f float64) any {
	switch kind {
	case types.Bool:
		return i != 0
	case types.I8:
		return int8(i)
	case types.U8:
		return uint8(i)
	case types.I16:
		return int16(i)
	case types.U16:
		return uint16(i)
	case types.I32:
		return int32(i)
	case types.U32:
		return uint32(i)
	case types.I64:
		return i
	case types.U64:
		return uint64(i)
	case types.Float32:
		return float32(f)
	case types.Float64:
		return f
	default:
		return nil
	}
}
