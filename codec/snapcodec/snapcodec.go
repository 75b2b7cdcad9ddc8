// Package snapcodec implements the binary snapshot collaborator (spec §6):
// a full tree round-trip that preserves layout and field types bit-exactly
// but never subscriptions, and assigns fresh container IDs on restore
// rather than preserving the originals. Grounded on internal/core's own
// encodeRef/decodeRef convention (fixed-width little-endian fields via
// encoding/binary, internal/core/core.go) and on the pack's only other
// from-scratch binary wire format, agilira-iris's BinaryEntry/BinaryField
// structs (other_examples/887bfa5f_agilira-iris__binary.go.go) — both
// favor explicit fixed-width fields over a self-describing container
// format, which is what this snapshot format does too.
package snapcodec

import (
	"bytes"
	"encoding/binary"
	"io"

	"github.com/scenetree/scenetree/errs"
	"github.com/scenetree/scenetree/storage"
	"github.com/scenetree/scenetree/types"
	"github.com/scenetree/scenetree/view"
)

// formatVersion guards against decoding a snapshot written by an
// incompatible future revision of this package.
const formatVersion = 1

const (
	tagScalar byte = iota
	tagReference
	tagReferenceArray
	tagInlineArray
	tagBlob
)

// Marshal renders s's tree to the binary snapshot format.
func Marshal(s *storage.Storage) ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte(formatVersion)
	if err := writeObject(&buf, s.Root()); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// Unmarshal restores data into s's root. Every reference and
// reference-array element is materialized as a brand new container with a
// freshly assigned ID; no subscription registered against the original
// tree carries over (spec §6 "no subscription persistence").
func Unmarshal(data []byte, s *storage.Storage) error {
	r := bytes.NewReader(data)
	ver, err := r.ReadByte()
	if err != nil {
		return errs.New(errs.IODecode, "snapcodec.Unmarshal", "empty snapshot")
	}
	if ver != formatVersion {
		return errs.Newf(errs.IODecode, "snapcodec.Unmarshal", "unsupported snapshot version %d", ver)
	}
	return readObject(r, s.Root())
}

func writeUint32(buf *bytes.Buffer, v uint32) {
	var tmp [4]byte
	binary.LittleEndian.PutUint32(tmp[:], v)
	buf.Write(tmp[:])
}

func writeBytesWithLen(buf *bytes.Buffer, data []byte) {
	writeUint32(buf, uint32(len(data)))
	buf.Write(data)
}

func writeString(buf *bytes.Buffer, s string) { writeBytesWithLen(buf, []byte(s)) }

func writeBool(buf *bytes.Buffer, b bool) {
	if b {
		buf.WriteByte(1)
		return
	}
	buf.WriteByte(0)
}

func writeObject(buf *bytes.Buffer, v view.ObjectView) error {
	headers, err := v.FieldHeaders()
	if err != nil {
		return err
	}
	writeUint32(buf, uint32(len(headers)))
	for _, h := range headers {
		writeString(buf, h.Name)
		switch {
		case h.IsReference():
			buf.WriteByte(tagReference)
			child, err := v.Object(h.Name, false, nil)
			if err != nil {
				return err
			}
			present := !child.IsNull()
			writeBool(buf, present)
			if present {
				if err := writeObject(buf, child); err != nil {
					return err
				}
			}

		case h.IsReferenceArray():
			buf.WriteByte(tagReferenceArray)
			writeUint32(buf, uint32(h.ArrayLen))
			for i := 0; i < h.ArrayLen; i++ {
				elem, err := v.Index(h.Name, i, false, nil)
				if err != nil {
					return err
				}
				present := !elem.IsNull()
				writeBool(buf, present)
				if present {
					if err := writeObject(buf, elem); err != nil {
						return err
					}
				}
			}

		case h.IsInlineArray():
			buf.WriteByte(tagInlineArray)
			buf.WriteByte(byte(h.Elem))
			vals, elem, err := v.ReadInlineArrayAny(h.Name)
			if err != nil {
				return err
			}
			writeUint32(buf, uint32(len(vals)))
			for _, val := range vals {
				buf.Write(view.EncodeScalar(elem, val))
			}

		case h.Elem == types.Blob:
			buf.WriteByte(tagBlob)
			data, err := v.ReadBlob(h.Name)
			if err != nil {
				return err
			}
			writeBytesWithLen(buf, data)

		default:
			buf.WriteByte(tagScalar)
			buf.WriteByte(byte(h.Elem))
			val, kind, err := v.ReadScalarAny(h.Name)
			if err != nil {
				return err
			}
			buf.Write(view.EncodeScalar(kind, val))
		}
	}
	return nil
}

func readUint32(r *bytes.Reader) (uint32, error) {
	var tmp [4]byte
	if _, err := io.ReadFull(r, tmp[:]); err != nil {
		return 0, err
	}
	return binary.LittleEndian.Uint32(tmp[:]), nil
}

func readBytes(r *bytes.Reader, n uint32) ([]byte, error) {
	out := make([]byte, n)
	if _, err := io.ReadFull(r, out); err != nil {
		return nil, err
	}
	return out, nil
}

func readString(r *bytes.Reader) (string, error) {
	n, err := readUint32(r)
	if err != nil {
		return "", err
	}
	b, err := readBytes(r, n)
	if err != nil {
		return "", err
	}
	return string(b), nil
}

func readBool(r *bytes.Reader) (bool, error) {
	b, err := r.ReadByte()
	if err != nil {
		return false, err
	}
	return b != 0, nil
}

func truncated(err error) error {
	return errs.Newf(errs.IODecode, "snapcodec.Unmarshal", "truncated snapshot: %v", err)
}

func readObject(r *bytes.Reader, v view.ObjectView) error {
	count, err := readUint32(r)
	if err != nil {
		return truncated(err)
	}
	for i := uint32(0); i < count; i++ {
		name, err := readString(r)
		if err != nil {
			return truncated(err)
		}
		tag, err := r.ReadByte()
		if err != nil {
			return truncated(err)
		}
		switch tag {
		case tagReference:
			present, err := readBool(r)
			if err != nil {
				return truncated(err)
			}
			if !present {
				if err := v.EnsureEmptyReference(name); err != nil {
					return err
				}
				continue
			}
			child, err := v.Object(name, true, nil)
			if err != nil {
				return err
			}
			if err := readObject(r, child); err != nil {
				return err
			}

		case tagReferenceArray:
			length, err := readUint32(r)
			if err != nil {
				return truncated(err)
			}
			if err := v.EnsureReferenceArray(name, int(length)); err != nil {
				return err
			}
			for idx := 0; idx < int(length); idx++ {
				present, err := readBool(r)
				if err != nil {
					return truncated(err)
				}
				if !present {
					continue
				}
				elem, err := v.Index(name, idx, true, nil)
				if err != nil {
					return err
				}
				if err := readObject(r, elem); err != nil {
					return err
				}
			}

		case tagInlineArray:
			kindByte, err := r.ReadByte()
			if err != nil {
				return truncated(err)
			}
			kind := types.Kind(kindByte)
			length, err := readUint32(r)
			if err != nil {
				return truncated(err)
			}
			size, ok := types.FixedSize(kind)
			if !ok {
				return errs.Newf(errs.IODecode, "snapcodec.Unmarshal", "field %q has unrecognized element kind %d", name, kindByte)
			}
			values := make([]any, length)
			for idx := range values {
				raw, err := readBytes(r, uint32(size))
				if err != nil {
					return truncated(err)
				}
				values[idx] = view.DecodeScalar(kind, raw)
			}
			if err := v.SetInlineArrayAnyKind(name, kind, values); err != nil {
				return err
			}

		case tagBlob:
			n, err := readUint32(r)
			if err != nil {
				return truncated(err)
			}
			data, err := readBytes(r, n)
			if err != nil {
				return truncated(err)
			}
			if err := v.WriteBlob(name, data, true); err != nil {
				return err
			}

		case tagScalar:
			kindByte, err := r.ReadByte()
			if err != nil {
				return truncated(err)
			}
			kind := types.Kind(kindByte)
			size, ok := types.FixedSize(kind)
			if !ok {
				return errs.Newf(errs.IODecode, "snapcodec.Unmarshal", "field %q has unrecognized element kind %d", name, kindByte)
			}
			raw, err := readBytes(r, uint32(size))
			if err != nil {
				return truncated(err)
			}
			if err := v.WriteScalarAnyKind(name, kind, view.DecodeScalar(kind, raw)); err != nil {
				return err
			}

		default:
			return errs.Newf(errs.IODecode, "snapcodec.Unmarshal", "unknown field tag %d for %q", tag, name)
		}
	}
	return nil
}
