package view

import (
	"github.com/scenetree/scenetree/errs"
	"github.com/scenetree/scenetree/types"
)

// ReadString reads field as a string container and decodes it to a Go
// string (spec §3 "String: an array container with Char16 elements").
func (v ObjectView) ReadString(field string) (string, error) {
	av, err := v.Array(field, types.Char16, 0, false, false)
	if err != nil {
		return "", err
	}
	if av.IsNull() {
		return "", errs.Newf(errs.InvalidArgument, "ObjectView.ReadString", "no such field %q", field)
	}
	return av.ReadString()
}

// WriteString installs field as a string container holding s, replacing
// whatever array container (if any) previously occupied the slot (spec
// §4.8 "write_path(path, string) installs a string").
func (v ObjectView) WriteString(field, s string) error {
	units := encodeUTF16(s)
	av, err := v.SetArray(field, types.Char16, len(units))
	if err != nil {
		return err
	}
	for i, u := range units {
		if err := WriteAt[types.CharUnit](av, i, types.CharUnit(u)); err != nil {
			return err
		}
	}
	return nil
}

// DefaultEmptyArrayKind is the element type an empty JSON array defaults to
// until a first value determines the real type (spec §9 open question,
// resolved in DESIGN.md: byte, i.e. U8).
const DefaultEmptyArrayKind = types.U8
